// Package accumulator provides order-independent reductions shared between the
// driver and its workers.
package accumulator

import (
	"math"
	"sync/atomic"

	"github.com/born-ml/scaleout/internal/nn"
)

// Max tracks the largest value added to it. The zero value is not ready; use
// NewMax. Add and Merge are safe for concurrent use and commute, so the result
// does not depend on the order workers report in.
type Max struct {
	bits atomic.Uint64
}

// NewMax returns a Max holding -Inf.
func NewMax() *Max {
	m := &Max{}
	m.bits.Store(math.Float64bits(math.Inf(-1)))
	return m
}

// Add raises the maximum to v if v is larger. NaN is ignored.
func (m *Max) Add(v float64) {
	if math.IsNaN(v) {
		return
	}
	for {
		old := m.bits.Load()
		if v <= math.Float64frombits(old) {
			return
		}
		if m.bits.CompareAndSwap(old, math.Float64bits(v)) {
			return
		}
	}
}

// Merge folds another accumulator in.
func (m *Max) Merge(other *Max) {
	m.Add(other.Value())
}

// Value returns the current maximum, -Inf if nothing was added.
func (m *Max) Value() float64 {
	return math.Float64frombits(m.bits.Load())
}

// BestScoreListener reports the network score to a Max after every iteration.
type BestScoreListener struct {
	Best *Max
}

// IterationDone implements nn.IterationListener.
func (l BestScoreListener) IterationDone(net *nn.MultiLayerNetwork, _ int) {
	l.Best.Add(net.Score())
}
