// Package updater turns a layer's raw gradients into the updates applied to its
// parameters.
//
// For every training step Updater.Update runs three phases over the layer's
// gradient:
//  1. PreApply: layer-wide normalization or clipping (conf.GradientNormalization)
//  2. per parameter, in insertion order: learning-rate/momentum schedules, then
//     the parameter's optim.GradientUpdater, created lazily from the layer config
//  3. PostApply: L1/L2 regularization terms (never for biases) and mini-batch
//     averaging
//
// The gradient entries are replaced in place with the results.
//
// Updaters trained by parallel workers are combined with an Aggregator, and
// MultiLayer/MultiLayerAggregator do the same for a whole network.
package updater

import (
	"math"

	"github.com/born-ml/scaleout/internal/conf"
	"github.com/born-ml/scaleout/internal/gradient"
	"github.com/born-ml/scaleout/internal/optim"
	"github.com/born-ml/scaleout/internal/tensor"
	"github.com/pkg/errors"
)

// Layer is the view of a network layer the updater needs.
type Layer interface {
	// Conf returns the layer's mutable training configuration.
	Conf() *conf.NeuralNetConfiguration

	// Param returns the current value of the named parameter.
	Param(name string) *tensor.Dense
}

// Updater holds one optim.GradientUpdater per parameter of a layer.
type Updater struct {
	names  []string
	byName map[string]optim.GradientUpdater
}

// New creates an updater with no per-parameter state.
func New() *Updater {
	return &Updater{byName: make(map[string]optim.GradientUpdater)}
}

// Update transforms grad in place into the updates for layer's parameters.
func (u *Updater) Update(layer Layer, grad *gradient.Gradient, iteration, miniBatchSize int) error {
	c := layer.Conf()
	if c.MiniBatch && miniBatchSize <= 0 {
		return conf.Errorf("miniBatchSize", "must be positive in mini-batch mode, got %d", miniBatchSize)
	}
	if err := u.PreApply(layer, grad, iteration); err != nil {
		return err
	}

	for name, g := range grad.All() {
		if c.UseSchedules {
			u.CheckSchedules(layer, iteration, name)
		}
		gu, err := u.init(name, layer)
		if err != nil {
			return err
		}
		step := gu.Step(g, iteration)
		u.PostApply(layer, step, name, miniBatchSize)
		grad.Set(name, step)
	}
	return nil
}

// init returns the updater for name, creating it from the layer config on first
// use. Other zero hyperparameters fall back to optim.Defaults.
func (u *Updater) init(name string, layer Layer) (optim.GradientUpdater, error) {
	if gu, ok := u.byName[name]; ok {
		return gu, nil
	}
	l := layer.Conf().Layer
	gu, err := optim.New(l.Updater, l.Hyper())
	if err != nil {
		return nil, conf.Errorf("updater", "%v", err)
	}
	// The configured learning rate is used as is; zero freezes the parameter.
	gu.SetLearningRate(l.LearningRate)
	u.set(name, gu)
	return gu, nil
}

func (u *Updater) set(name string, gu optim.GradientUpdater) {
	if _, ok := u.byName[name]; !ok {
		u.names = append(u.names, name)
	}
	u.byName[name] = gu
}

// CheckSchedules applies learning-rate and momentum schedule entries keyed at
// iteration. The new values are written to the layer config and pushed into the
// parameter's updater if it already exists.
func (u *Updater) CheckSchedules(layer Layer, iteration int, name string) {
	l := layer.Conf().Layer
	gu := u.byName[name]

	if lr, ok := l.LearningRateSchedule[iteration]; ok {
		l.LearningRate = lr
		if gu != nil {
			gu.SetLearningRate(lr)
		}
	}
	if m, ok := l.MomentumSchedule[iteration]; ok {
		l.Momentum = m
		if gu != nil {
			gu.SetLearningRate(l.LearningRate)
			gu.SetMomentum(m)
		}
	}
}

// PreApply normalizes or clips every gradient tensor of the layer according to
// the layer's GradientNormalization. It is a no-op for NoNormalization.
//
// Renormalizing an all-zero gradient leaves it unchanged.
func (u *Updater) PreApply(layer Layer, grad *gradient.Gradient, _ int) error {
	l := layer.Conf().Layer
	threshold := l.GradientNormalizationThreshold

	switch l.GradientNormalization {
	case conf.NoNormalization:
		return nil

	case conf.RenormalizeL2PerLayer:
		layerL2 := layerNorm2(grad)
		if layerL2 == 0 {
			return nil
		}
		for _, g := range grad.All() {
			g.Div(layerL2)
		}

	case conf.RenormalizeL2PerParamType:
		for _, g := range grad.All() {
			if l2 := g.Norm2(); l2 != 0 {
				g.Div(l2)
			}
		}

	case conf.ClipElementWiseAbsoluteValue:
		for _, g := range grad.All() {
			g.Clip(threshold)
		}

	case conf.ClipL2PerLayer:
		layerL2 := layerNorm2(grad)
		if layerL2 > threshold {
			scale := threshold / layerL2
			for _, g := range grad.All() {
				g.Scale(scale)
			}
		}

	case conf.ClipL2PerParamType:
		for _, g := range grad.All() {
			if l2 := g.Norm2(); l2 > threshold {
				// g / (l2/threshold) == g * threshold/l2
				g.Div(l2 / threshold)
			}
		}

	default:
		return conf.Errorf("gradientNormalization", "unknown (or not implemented) strategy %s", l.GradientNormalization)
	}
	return nil
}

// layerNorm2 returns sqrt(sum of squared L2 norms) over all tensors.
func layerNorm2(grad *gradient.Gradient) float64 {
	var sumSquares float64
	for _, g := range grad.All() {
		l2 := g.Norm2()
		sumSquares += l2 * l2
	}
	return math.Sqrt(sumSquares)
}

// PostApply adds regularization terms to the update g for param name and
// averages it over the mini-batch.
//
//	g += l2 * param          (regularization on, l2 > 0, not a bias)
//	g += l1 * sign(param)    (regularization on, l1 > 0, not a bias)
//	g /= miniBatchSize       (mini-batch mode)
func (u *Updater) PostApply(layer Layer, g *tensor.Dense, name string, miniBatchSize int) {
	c := layer.Conf()
	l := c.Layer
	if c.UseRegularization && name != gradient.BiasKey && (l.L2 > 0 || l.L1 > 0) {
		param := layer.Param(name)
		if l.L2 > 0 {
			g.AddScaled(l.L2, param)
		}
		if l.L1 > 0 {
			g.AddScaled(l.L1, param.Sign())
		}
	}
	if c.MiniBatch {
		g.Div(float64(miniBatchSize))
	}
}

// Get returns the updater for a parameter, or nil.
func (u *Updater) Get(name string) optim.GradientUpdater {
	return u.byName[name]
}

// Names returns parameter names in creation order.
func (u *Updater) Names() []string {
	out := make([]string, len(u.names))
	copy(out, u.names)
	return out
}

// Len returns the number of per-parameter updaters.
func (u *Updater) Len() int {
	return len(u.names)
}

// Equal reports whether both hold equal updaters for the same parameters.
// Aggregated state matches its sources only within rounding; see EqualApprox.
func (u *Updater) Equal(other *Updater) bool {
	return u.compare(other, func(a, b optim.GradientUpdater) bool { return a.Equal(b) })
}

// EqualApprox is like Equal with every hyperparameter and state element
// compared within tol.
func (u *Updater) EqualApprox(other *Updater, tol float64) bool {
	return u.compare(other, func(a, b optim.GradientUpdater) bool { return optim.EqualApprox(a, b, tol) })
}

func (u *Updater) compare(other *Updater, same func(a, b optim.GradientUpdater) bool) bool {
	if u == nil || other == nil {
		return u == other
	}
	if len(u.byName) != len(other.byName) {
		return false
	}
	for name, gu := range u.byName {
		o, ok := other.byName[name]
		if !ok || !same(gu, o) {
			return false
		}
	}
	return true
}

// Clone returns an updater whose per-parameter updaters are materialized from
// each updater's own aggregator, so no state is shared with u.
func (u *Updater) Clone() *Updater {
	c := New()
	for _, name := range u.names {
		c.set(name, u.byName[name].Aggregator().Updater())
	}
	return c
}

// ParamState is the serializable state of one parameter's updater.
type ParamState struct {
	Name  string
	Kind  optim.Kind
	Hyper optim.Hyper
	State map[string]*tensor.Dense
}

// StateDict exports every per-parameter updater in creation order. State
// tensors are copies.
func (u *Updater) StateDict() []ParamState {
	out := make([]ParamState, 0, len(u.names))
	for _, name := range u.names {
		gu := u.byName[name]
		state := make(map[string]*tensor.Dense)
		for k, t := range gu.StateDict() {
			state[k] = t.Clone()
		}
		out = append(out, ParamState{Name: name, Kind: gu.Kind(), Hyper: gu.Hyper(), State: state})
	}
	return out
}

// LoadStateDict replaces all per-parameter updaters.
func (u *Updater) LoadStateDict(states []ParamState) error {
	fresh := New()
	for _, ps := range states {
		gu, err := optim.Restore(ps.Kind, ps.Hyper, ps.State)
		if err != nil {
			return errors.Wrapf(err, "parameter %q", ps.Name)
		}
		fresh.set(ps.Name, gu)
	}
	*u = *fresh
	return nil
}
