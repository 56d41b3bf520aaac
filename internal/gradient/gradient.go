// Package gradient holds per-parameter gradient tensors for one layer.
package gradient

import (
	"iter"

	"github.com/born-ml/scaleout/internal/tensor"
)

// Parameter keys used by dense layers.
const (
	WeightKey = "W"
	BiasKey   = "b"
)

// Gradient maps parameter names to gradient tensors, preserving insertion order.
//
// A Gradient is owned by the training step that produced it; the updater
// replaces its entries in place.
type Gradient struct {
	names  []string
	values map[string]*tensor.Dense
}

// New creates an empty gradient.
func New() *Gradient {
	return &Gradient{values: make(map[string]*tensor.Dense)}
}

// Set stores the gradient for name. Replacing an existing entry keeps its position.
func (g *Gradient) Set(name string, t *tensor.Dense) {
	if _, ok := g.values[name]; !ok {
		g.names = append(g.names, name)
	}
	g.values[name] = t
}

// Get returns the gradient for name, or nil.
func (g *Gradient) Get(name string) *tensor.Dense {
	return g.values[name]
}

// Names returns parameter names in insertion order.
func (g *Gradient) Names() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Len returns the number of entries.
func (g *Gradient) Len() int {
	return len(g.names)
}

// All iterates entries in insertion order.
func (g *Gradient) All() iter.Seq2[string, *tensor.Dense] {
	return func(yield func(string, *tensor.Dense) bool) {
		for _, name := range g.names {
			if !yield(name, g.values[name]) {
				return
			}
		}
	}
}

// Clone returns a deep copy.
func (g *Gradient) Clone() *Gradient {
	out := New()
	for name, t := range g.All() {
		out.Set(name, t.Clone())
	}
	return out
}

// Flatten concatenates all entries into one vector, in insertion order.
func (g *Gradient) Flatten() *tensor.Dense {
	ts := make([]*tensor.Dense, 0, len(g.names))
	for _, t := range g.All() {
		ts = append(ts, t)
	}
	return tensor.Concat(ts...)
}
