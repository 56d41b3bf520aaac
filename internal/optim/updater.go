// Package optim implements per-parameter gradient updaters.
//
// This package provides:
//   - GradientUpdater: stateful transform turning a raw gradient into the step
//     subtracted from a parameter (SGD, Nesterov momentum, AdaGrad, RMSProp,
//     Adam, AdaDelta, or a pass-through)
//   - Aggregator: running combination of many updaters' state, used to merge
//     the updaters trained by parallel workers
//
// Updater kinds form a closed set (see Kind). Every updater can produce an
// aggregator seeded with its own state and every aggregator can materialize a
// fresh updater, which is also how updaters are cloned.
//
// Example usage:
//
//	u, err := optim.New(optim.Nesterovs, optim.Hyper{LearningRate: 0.1, Momentum: 0.9})
//	if err != nil {
//	    return err
//	}
//	step := u.Step(grad, iteration)
//	param.Sub(step)
package optim

import (
	"fmt"

	"github.com/born-ml/scaleout/internal/tensor"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Common errors.
var (
	ErrUnknownKind = errors.New("unknown updater kind")
	ErrAggregation = errors.New("incompatible updater aggregation")
	ErrStateDict   = errors.New("invalid updater state")
)

// AggregationError reports an attempt to combine state from different updater kinds
// or incompatible state shapes. It signals a wiring bug, never a data problem.
type AggregationError struct {
	Want    Kind
	Got     Kind
	Details string
}

// Error implements the error interface.
func (e *AggregationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("aggregate %s with %s: %s", e.Want, e.Got, e.Details)
	}
	return fmt.Sprintf("aggregate %s with %s", e.Want, e.Got)
}

// Is makes errors.Is(err, ErrAggregation) match.
func (e *AggregationError) Is(target error) bool {
	return target == ErrAggregation
}

// GradientUpdater converts a raw gradient into the step applied to a parameter.
//
// Implementations keep per-parameter state (velocity, squared-gradient history,
// moments) that is created lazily on the first Step with the gradient's shape.
type GradientUpdater interface {
	// Kind returns the updater rule.
	Kind() Kind

	// Hyper returns the current hyperparameters.
	Hyper() Hyper

	// Step returns the update for grad at the given iteration and advances the
	// internal state. grad is not modified. The caller subtracts the result from
	// the parameter.
	Step(grad *tensor.Dense, iteration int) *tensor.Dense

	// SetLearningRate replaces the learning rate.
	SetLearningRate(lr float64)

	// SetMomentum replaces the momentum. Kinds without momentum ignore it.
	SetMomentum(m float64)

	// Aggregator returns a new aggregator seeded with this updater's state.
	Aggregator() Aggregator

	// Clone returns an independent copy, produced by materializing Aggregator().
	Clone() GradientUpdater

	// StateDict returns the state tensors by name. The tensors are live.
	StateDict() map[string]*tensor.Dense

	// LoadStateDict replaces the state with copies of the given tensors.
	LoadStateDict(state map[string]*tensor.Dense) error

	// Equal reports whether other has the same kind, hyperparameters and state,
	// bit for bit. An updater materialized from an aggregator of several
	// updaters matches its sources only within rounding; use EqualApprox there.
	Equal(other GradientUpdater) bool
}

// New creates a fresh updater of the given kind. Zero hyperparameters the
// kind needs are replaced by Defaults(kind).
func New(kind Kind, hyper Hyper) (GradientUpdater, error) {
	return build(kind, hyper.withDefaults(kind))
}

func build(kind Kind, hyper Hyper) (GradientUpdater, error) {
	if !kind.Valid() {
		return nil, errors.Wrapf(ErrUnknownKind, "%d", int(kind))
	}
	b := base{kind: kind, hyper: hyper}
	switch kind {
	case None:
		return &noOp{base: b}, nil
	case SGD:
		return &sgd{base: b}, nil
	case Nesterovs:
		return &nesterovs{base: b}, nil
	case AdaGrad:
		return &adaGrad{base: b}, nil
	case RMSProp:
		return &rmsProp{base: b}, nil
	case Adam:
		return &adam{base: b}, nil
	default:
		return &adaDelta{base: b}, nil
	}
}

// MustNew is like New but panics on error.
func MustNew(kind Kind, hyper Hyper) GradientUpdater {
	u, err := New(kind, hyper)
	if err != nil {
		panic(err)
	}
	return u
}

// Restore creates an updater with exactly the given hyperparameters and loads
// state into it. Zero values are kept.
func Restore(kind Kind, hyper Hyper, state map[string]*tensor.Dense) (GradientUpdater, error) {
	u, err := build(kind, hyper)
	if err != nil {
		return nil, err
	}
	if err := u.LoadStateDict(state); err != nil {
		return nil, err
	}
	return u, nil
}

// base carries the fields and methods shared by all kinds.
type base struct {
	kind  Kind
	hyper Hyper
}

func (b *base) Kind() Kind                 { return b.kind }
func (b *base) Hyper() Hyper               { return b.hyper }
func (b *base) SetLearningRate(lr float64) { b.hyper.LearningRate = lr }
func (b *base) SetMomentum(m float64)      { b.hyper.Momentum = m }

// stateSlots binds state names to the fields holding them.
type stateSlots map[string]**tensor.Dense

func (s stateSlots) dict() map[string]*tensor.Dense {
	out := make(map[string]*tensor.Dense, len(s))
	for name, slot := range s {
		if *slot != nil {
			out[name] = *slot
		}
	}
	return out
}

func (s stateSlots) load(kind Kind, state map[string]*tensor.Dense) error {
	for name := range state {
		if _, ok := s[name]; !ok {
			return errors.Wrapf(ErrStateDict, "%s has no state %q", kind, name)
		}
	}
	var shape tensor.Shape
	for name, t := range state {
		if t == nil {
			continue
		}
		if shape != nil && !shape.Equal(t.Shape()) {
			return errors.Wrapf(ErrStateDict, "%s state %q has shape %v, expected %v", kind, name, t.Shape(), shape)
		}
		shape = t.Shape()
	}
	for name, slot := range s {
		*slot = state[name].Clone()
	}
	return nil
}

func equalState(a, b GradientUpdater) bool {
	return compareState(a, b, -1)
}

// EqualApprox is like Equal but accepts hyperparameters and state elements
// that differ by at most tol.
func EqualApprox(a, b GradientUpdater, tol float64) bool {
	return compareState(a, b, tol)
}

// compareState compares exactly when tol is negative.
func compareState(a, b GradientUpdater, tol float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	if tol < 0 {
		if a.Hyper() != b.Hyper() {
			return false
		}
	} else if !floats.EqualApprox(a.Hyper().values(), b.Hyper().values(), tol) {
		return false
	}
	sa, sb := a.StateDict(), b.StateDict()
	if len(sa) != len(sb) {
		return false
	}
	for name, t := range sa {
		o, ok := sb[name]
		if !ok {
			return false
		}
		if tol < 0 {
			if !t.Equal(o) {
				return false
			}
		} else if !t.EqualApprox(o, tol) {
			return false
		}
	}
	return true
}

func cloneOf(u GradientUpdater) GradientUpdater {
	return u.Aggregator().Updater()
}
