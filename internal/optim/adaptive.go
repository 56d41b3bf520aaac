package optim

import (
	"math"

	"github.com/born-ml/scaleout/internal/tensor"
)

// adaGrad scales each element by its accumulated squared gradient.
//
//	h += gradient²
//	step = lr * gradient / (sqrt(h) + eps)
type adaGrad struct {
	base
	h *tensor.Dense // Historical squared gradient
}

func (u *adaGrad) Step(grad *tensor.Dense, _ int) *tensor.Dense {
	if u.h == nil {
		u.h = tensor.Zeros(grad.Shape()...)
	}
	h := u.h.Data()
	step := grad.Clone()
	s := step.Data()
	for i, g := range s {
		h[i] += g * g
		s[i] = u.hyper.LearningRate * g / (math.Sqrt(h[i]) + u.hyper.Epsilon)
	}
	return step
}

func (u *adaGrad) slots() stateSlots {
	return stateSlots{"h": &u.h}
}

func (u *adaGrad) Aggregator() Aggregator                         { return newAggregator(u) }
func (u *adaGrad) Clone() GradientUpdater                         { return cloneOf(u) }
func (u *adaGrad) StateDict() map[string]*tensor.Dense            { return u.slots().dict() }
func (u *adaGrad) Equal(other GradientUpdater) bool               { return equalState(u, other) }
func (u *adaGrad) LoadStateDict(s map[string]*tensor.Dense) error { return u.slots().load(u.kind, s) }

// rmsProp keeps a decaying average of squared gradients.
//
//	r = decay * r + (1 - decay) * gradient²
//	step = lr * gradient / sqrt(r + eps)
type rmsProp struct {
	base
	r *tensor.Dense // Running mean of squared gradient
}

func (u *rmsProp) Step(grad *tensor.Dense, _ int) *tensor.Dense {
	if u.r == nil {
		u.r = tensor.Zeros(grad.Shape()...)
	}
	d := u.hyper.RMSDecay
	r := u.r.Data()
	step := grad.Clone()
	s := step.Data()
	for i, g := range s {
		r[i] = d*r[i] + (1-d)*g*g
		s[i] = u.hyper.LearningRate * g / math.Sqrt(r[i]+u.hyper.Epsilon)
	}
	return step
}

func (u *rmsProp) slots() stateSlots {
	return stateSlots{"r": &u.r}
}

func (u *rmsProp) Aggregator() Aggregator                         { return newAggregator(u) }
func (u *rmsProp) Clone() GradientUpdater                         { return cloneOf(u) }
func (u *rmsProp) StateDict() map[string]*tensor.Dense            { return u.slots().dict() }
func (u *rmsProp) Equal(other GradientUpdater) bool               { return equalState(u, other) }
func (u *rmsProp) LoadStateDict(s map[string]*tensor.Dense) error { return u.slots().load(u.kind, s) }

// adaDelta adapts per-element rates without a global learning rate.
//
//	msg = rho * msg + (1 - rho) * gradient²
//	step = sqrt(msdx + eps) / sqrt(msg + eps) * gradient
//	msdx = rho * msdx + (1 - rho) * step²
type adaDelta struct {
	base
	msg  *tensor.Dense // Mean squared gradient
	msdx *tensor.Dense // Mean squared update
}

func (u *adaDelta) Step(grad *tensor.Dense, _ int) *tensor.Dense {
	if u.msg == nil {
		u.msg = tensor.Zeros(grad.Shape()...)
	}
	if u.msdx == nil {
		u.msdx = tensor.Zeros(grad.Shape()...)
	}
	rho, eps := u.hyper.Rho, u.hyper.Epsilon
	msg := u.msg.Data()
	msdx := u.msdx.Data()
	step := grad.Clone()
	s := step.Data()
	for i, g := range s {
		msg[i] = rho*msg[i] + (1-rho)*g*g
		s[i] = math.Sqrt(msdx[i]+eps) / math.Sqrt(msg[i]+eps) * g
		msdx[i] = rho*msdx[i] + (1-rho)*s[i]*s[i]
	}
	return step
}

func (u *adaDelta) slots() stateSlots {
	return stateSlots{"msg": &u.msg, "msdx": &u.msdx}
}

func (u *adaDelta) Aggregator() Aggregator              { return newAggregator(u) }
func (u *adaDelta) Clone() GradientUpdater              { return cloneOf(u) }
func (u *adaDelta) StateDict() map[string]*tensor.Dense { return u.slots().dict() }
func (u *adaDelta) Equal(other GradientUpdater) bool    { return equalState(u, other) }
func (u *adaDelta) LoadStateDict(s map[string]*tensor.Dense) error {
	return u.slots().load(u.kind, s)
}
