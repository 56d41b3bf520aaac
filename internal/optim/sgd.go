package optim

import "github.com/born-ml/scaleout/internal/tensor"

// noOp passes gradients through unchanged.
type noOp struct {
	base
}

func (u *noOp) Step(grad *tensor.Dense, _ int) *tensor.Dense {
	return grad.Clone()
}

func (u *noOp) Aggregator() Aggregator                         { return newAggregator(u) }
func (u *noOp) Clone() GradientUpdater                         { return cloneOf(u) }
func (u *noOp) StateDict() map[string]*tensor.Dense            { return map[string]*tensor.Dense{} }
func (u *noOp) Equal(other GradientUpdater) bool               { return equalState(u, other) }
func (u *noOp) LoadStateDict(s map[string]*tensor.Dense) error { return stateSlots{}.load(u.kind, s) }

// sgd scales the gradient by the learning rate:
//
//	step = lr * gradient
type sgd struct {
	base
}

func (u *sgd) Step(grad *tensor.Dense, _ int) *tensor.Dense {
	return grad.Clone().Scale(u.hyper.LearningRate)
}

func (u *sgd) Aggregator() Aggregator                         { return newAggregator(u) }
func (u *sgd) Clone() GradientUpdater                         { return cloneOf(u) }
func (u *sgd) StateDict() map[string]*tensor.Dense            { return map[string]*tensor.Dense{} }
func (u *sgd) Equal(other GradientUpdater) bool               { return equalState(u, other) }
func (u *sgd) LoadStateDict(s map[string]*tensor.Dense) error { return stateSlots{}.load(u.kind, s) }

// nesterovs implements Nesterov accelerated gradient.
//
// Update rule:
//
//	v_prev = v
//	v = momentum * v - lr * gradient
//	step = momentum * v_prev - (1 + momentum) * v
//
// Subtracting step from the parameter applies the look-ahead correction.
type nesterovs struct {
	base
	v *tensor.Dense // Velocity
}

func (u *nesterovs) Step(grad *tensor.Dense, _ int) *tensor.Dense {
	if u.v == nil {
		u.v = tensor.Zeros(grad.Shape()...)
	}
	mu := u.hyper.Momentum
	vPrev := u.v.Clone()
	u.v.Scale(mu).AddScaled(-u.hyper.LearningRate, grad)
	return vPrev.Scale(mu).AddScaled(-(1 + mu), u.v)
}

func (u *nesterovs) slots() stateSlots {
	return stateSlots{"v": &u.v}
}

func (u *nesterovs) Aggregator() Aggregator              { return newAggregator(u) }
func (u *nesterovs) Clone() GradientUpdater              { return cloneOf(u) }
func (u *nesterovs) StateDict() map[string]*tensor.Dense { return u.slots().dict() }
func (u *nesterovs) Equal(other GradientUpdater) bool    { return equalState(u, other) }
func (u *nesterovs) LoadStateDict(s map[string]*tensor.Dense) error {
	return u.slots().load(u.kind, s)
}
