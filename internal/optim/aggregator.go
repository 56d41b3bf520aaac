package optim

import (
	"fmt"

	"github.com/born-ml/scaleout/internal/tensor"
	"github.com/pkg/errors"
)

// Aggregator combines the state of several updaters of one kind.
//
// It keeps running sums of every hyperparameter and state tensor; Updater
// returns their average. Sums make Aggregate and Combine associative and
// commutative, so the order in which worker results arrive does not matter.
type Aggregator interface {
	// Kind returns the kind of updater being aggregated.
	Kind() Kind

	// Count returns how many updaters have been folded in.
	Count() int

	// Aggregate folds one more updater into the running state.
	Aggregate(u GradientUpdater) error

	// Combine folds another aggregator's running state into this one.
	Combine(other Aggregator) error

	// Updater materializes a new updater holding the averaged state.
	Updater() GradientUpdater
}

// sumAggregator is the single Aggregator implementation.
type sumAggregator struct {
	kind       Kind
	count      int
	hyper      Hyper                    // Sum of hyperparameters
	state      map[string]*tensor.Dense // Sum of state tensors
	stateCount map[string]int           // Number of updaters contributing each state tensor
}

// newAggregator returns an aggregator seeded with u.
func newAggregator(u GradientUpdater) *sumAggregator {
	a := &sumAggregator{
		kind:       u.Kind(),
		state:      make(map[string]*tensor.Dense),
		stateCount: make(map[string]int),
	}
	a.add(u)
	return a
}

func (a *sumAggregator) Kind() Kind { return a.kind }
func (a *sumAggregator) Count() int { return a.count }

func (a *sumAggregator) add(u GradientUpdater) {
	a.count++
	a.hyper = a.hyper.add(u.Hyper())
	for name, t := range u.StateDict() {
		if sum, ok := a.state[name]; ok {
			sum.Add(t)
		} else {
			a.state[name] = t.Clone()
		}
		a.stateCount[name]++
	}
}

func (a *sumAggregator) checkShapes(state map[string]*tensor.Dense, other Kind) error {
	for name, t := range state {
		if sum, ok := a.state[name]; ok && !sum.Shape().Equal(t.Shape()) {
			return &AggregationError{
				Want:    a.kind,
				Got:     other,
				Details: fmt.Sprintf("state %s has shape %v, expected %v", name, t.Shape(), sum.Shape()),
			}
		}
	}
	return nil
}

func (a *sumAggregator) Aggregate(u GradientUpdater) error {
	if u == nil {
		return errors.WithStack(&AggregationError{Want: a.kind, Got: a.kind, Details: "nil updater"})
	}
	if u.Kind() != a.kind {
		return errors.WithStack(&AggregationError{Want: a.kind, Got: u.Kind()})
	}
	if err := a.checkShapes(u.StateDict(), u.Kind()); err != nil {
		return errors.WithStack(err)
	}
	a.add(u)
	return nil
}

func (a *sumAggregator) Combine(other Aggregator) error {
	o, ok := other.(*sumAggregator)
	if !ok || o == nil {
		return errors.WithStack(&AggregationError{Want: a.kind, Got: a.kind, Details: "foreign aggregator"})
	}
	if o.kind != a.kind {
		return errors.WithStack(&AggregationError{Want: a.kind, Got: o.kind})
	}
	if err := a.checkShapes(o.state, o.kind); err != nil {
		return errors.WithStack(err)
	}
	a.count += o.count
	a.hyper = a.hyper.add(o.hyper)
	for name, t := range o.state {
		if sum, ok := a.state[name]; ok {
			sum.Add(t)
		} else {
			a.state[name] = t.Clone()
		}
		a.stateCount[name] += o.stateCount[name]
	}
	return nil
}

func (a *sumAggregator) Updater() GradientUpdater {
	state := make(map[string]*tensor.Dense, len(a.state))
	for name, sum := range a.state {
		state[name] = sum.Clone().Scale(1 / float64(a.stateCount[name]))
	}
	hyper := a.hyper
	if a.count > 1 {
		hyper = hyper.scale(1 / float64(a.count))
	}
	u, err := Restore(a.kind, hyper, state)
	if err != nil {
		// The aggregator only ever holds state produced by updaters of its own kind.
		panic(err)
	}
	return u
}
