package updater

import (
	"github.com/born-ml/scaleout/internal/gradient"
	"github.com/born-ml/scaleout/internal/optim"
	"github.com/pkg/errors"
)

// MultiLayer is the updater state of a whole network: one Updater per layer.
// It is the UpdaterState broadcast to workers and returned in their results.
type MultiLayer struct {
	layers []*Updater
}

// NewMultiLayer creates empty updaters for n layers.
func NewMultiLayer(n int) *MultiLayer {
	m := &MultiLayer{layers: make([]*Updater, n)}
	for i := range m.layers {
		m.layers[i] = New()
	}
	return m
}

// NumLayers returns the number of layer updaters.
func (m *MultiLayer) NumLayers() int {
	return len(m.layers)
}

// Layer returns the updater of layer i.
func (m *MultiLayer) Layer(i int) *Updater {
	return m.layers[i]
}

// Update runs layer i's updater.
func (m *MultiLayer) Update(i int, layer Layer, grad *gradient.Gradient, iteration, miniBatchSize int) error {
	if i < 0 || i >= len(m.layers) {
		return errors.Errorf("layer index %d out of range [0, %d)", i, len(m.layers))
	}
	return m.layers[i].Update(layer, grad, iteration, miniBatchSize)
}

// Equal reports whether every layer updater is equal.
func (m *MultiLayer) Equal(other *MultiLayer) bool {
	return m.compare(other, (*Updater).Equal)
}

// EqualApprox reports whether every layer updater matches within tol.
func (m *MultiLayer) EqualApprox(other *MultiLayer, tol float64) bool {
	return m.compare(other, func(a, b *Updater) bool { return a.EqualApprox(b, tol) })
}

func (m *MultiLayer) compare(other *MultiLayer, same func(a, b *Updater) bool) bool {
	if m == nil || other == nil {
		return m == other
	}
	if len(m.layers) != len(other.layers) {
		return false
	}
	for i := range m.layers {
		if !same(m.layers[i], other.layers[i]) {
			return false
		}
	}
	return true
}

// Clone deep-copies every layer updater.
func (m *MultiLayer) Clone() *MultiLayer {
	c := &MultiLayer{layers: make([]*Updater, len(m.layers))}
	for i, u := range m.layers {
		c.layers[i] = u.Clone()
	}
	return c
}

// StateDict exports every layer's parameter states.
func (m *MultiLayer) StateDict() [][]ParamState {
	out := make([][]ParamState, len(m.layers))
	for i, u := range m.layers {
		out[i] = u.StateDict()
	}
	return out
}

// LoadStateDict replaces all layer updaters. The layer count must match.
func (m *MultiLayer) LoadStateDict(states [][]ParamState) error {
	if len(states) != len(m.layers) {
		return errors.Wrapf(optim.ErrStateDict, "got state for %d layers, network has %d", len(states), len(m.layers))
	}
	fresh := make([]*Updater, len(states))
	for i, s := range states {
		fresh[i] = New()
		if err := fresh[i].LoadStateDict(s); err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
	}
	m.layers = fresh
	return nil
}

// Aggregator returns a new aggregator seeded with m.
func (m *MultiLayer) Aggregator() *MultiLayerAggregator {
	a := &MultiLayerAggregator{}
	// Seeding an empty aggregator cannot fail.
	_ = a.Aggregate(m)
	return a
}

// MultiLayerAggregator combines the updater state of many network copies.
type MultiLayerAggregator struct {
	layers []*Aggregator
}

// NewMultiLayerAggregator creates an empty aggregator.
func NewMultiLayerAggregator() *MultiLayerAggregator {
	return &MultiLayerAggregator{}
}

// NumLayers returns the number of layers aggregated, zero when empty.
func (a *MultiLayerAggregator) NumLayers() int {
	return len(a.layers)
}

// Aggregate folds one network's updater state in.
func (a *MultiLayerAggregator) Aggregate(m *MultiLayer) error {
	if a.layers == nil {
		a.layers = make([]*Aggregator, len(m.layers))
		for i := range a.layers {
			a.layers[i] = NewAggregator()
		}
	}
	if len(m.layers) != len(a.layers) {
		return errors.Wrapf(optim.ErrAggregation, "layer count %d, expected %d", len(m.layers), len(a.layers))
	}
	for i, u := range m.layers {
		if err := a.layers[i].Aggregate(u); err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
	}
	return nil
}

// Merge folds another aggregator in. An empty receiver adopts other's state.
func (a *MultiLayerAggregator) Merge(other *MultiLayerAggregator) error {
	if other == nil || other.layers == nil {
		return nil
	}
	if a.layers == nil {
		a.layers = other.layers
		return nil
	}
	if len(other.layers) != len(a.layers) {
		return errors.Wrapf(optim.ErrAggregation, "layer count %d, expected %d", len(other.layers), len(a.layers))
	}
	for i := range a.layers {
		if err := a.layers[i].Merge(other.layers[i]); err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
	}
	return nil
}

// Updater materializes the aggregated network updater state.
func (a *MultiLayerAggregator) Updater() *MultiLayer {
	m := &MultiLayer{layers: make([]*Updater, len(a.layers))}
	for i, ag := range a.layers {
		m.layers[i] = ag.Updater()
	}
	return m
}
