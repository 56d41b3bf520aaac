package optim

import (
	"math"

	"github.com/born-ml/scaleout/internal/tensor"
)

// adam implements Adaptive Moment Estimation.
//
// Update rule, with t = iteration + 1:
//
//	m = beta1 * m + (1 - beta1) * gradient
//	v = beta2 * v + (1 - beta2) * gradient²
//	alpha = lr * sqrt(1 - beta2^t) / (1 - beta1^t)
//	step = alpha * m / (sqrt(v) + eps)
//
// The bias correction is folded into alpha. The timestep comes from the
// caller's iteration counter rather than internal state so that an updater
// rebuilt from aggregated state continues at the round's iteration.
type adam struct {
	base
	m *tensor.Dense // First moment estimate
	v *tensor.Dense // Second moment estimate
}

func (u *adam) Step(grad *tensor.Dense, iteration int) *tensor.Dense {
	if u.m == nil {
		u.m = tensor.Zeros(grad.Shape()...)
	}
	if u.v == nil {
		u.v = tensor.Zeros(grad.Shape()...)
	}
	h := u.hyper
	t := float64(iteration + 1)

	g := grad.Data()
	m := u.m.Data()
	v := u.v.Data()
	for i, gi := range g {
		m[i] = h.Beta1*m[i] + (1-h.Beta1)*gi
		v[i] = h.Beta2*v[i] + (1-h.Beta2)*gi*gi
	}

	alpha := h.LearningRate * math.Sqrt(1-math.Pow(h.Beta2, t)) / (1 - math.Pow(h.Beta1, t))
	if math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		alpha = h.Epsilon
	}

	step := u.m.Clone()
	s := step.Data()
	for i := range s {
		s[i] = alpha * s[i] / (math.Sqrt(v[i]) + h.Epsilon)
	}
	return step
}

func (u *adam) slots() stateSlots {
	return stateSlots{"m": &u.m, "v": &u.v}
}

func (u *adam) Aggregator() Aggregator                         { return newAggregator(u) }
func (u *adam) Clone() GradientUpdater                         { return cloneOf(u) }
func (u *adam) StateDict() map[string]*tensor.Dense            { return u.slots().dict() }
func (u *adam) Equal(other GradientUpdater) bool               { return equalState(u, other) }
func (u *adam) LoadStateDict(s map[string]*tensor.Dense) error { return u.slots().load(u.kind, s) }
