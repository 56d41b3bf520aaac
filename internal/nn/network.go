// Package nn implements the feed-forward network trained by each worker.
//
// A MultiLayerNetwork is rebuilt from a conf.MultiLayerConfiguration on every
// worker, loaded with the broadcast parameters and updater state, and trained
// for one step with Fit:
//
//	net, err := nn.New(c)
//	net.Init()
//	err = net.SetParams(params)
//	err = net.SetUpdater(state)
//	err = net.Fit(batch)
//
// Parameters are exposed as one flat vector ordered W then b per layer, which
// is the layout exchanged between driver and workers.
package nn

import (
	"github.com/born-ml/scaleout/internal/conf"
	"github.com/born-ml/scaleout/internal/dataset"
	"github.com/born-ml/scaleout/internal/gradient"
	"github.com/born-ml/scaleout/internal/tensor"
	"github.com/born-ml/scaleout/internal/updater"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MultiLayerNetwork is a stack of dense layers with a loss on the last one.
type MultiLayerNetwork struct {
	conf      *conf.MultiLayerConfiguration
	layers    []*DenseLayer
	loss      loss
	updater   *updater.MultiLayer
	listeners []IterationListener

	iteration int
	score     float64
}

// New builds an uninitialized network for c. Parameters are zero until Init.
func New(c *conf.MultiLayerConfiguration) (*MultiLayerNetwork, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	n := &MultiLayerNetwork{conf: c, updater: updater.NewMultiLayer(len(c.Layers))}
	for i := range c.Layers {
		l, err := newDenseLayer(c.LayerConf(i))
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		n.layers = append(n.layers, l)
	}
	lf, err := newLoss(c.Layers[len(c.Layers)-1].Loss)
	if err != nil {
		return nil, err
	}
	n.loss = lf
	return n, nil
}

// FromJSON parses a configuration and builds a network from it.
func FromJSON(s string) (*MultiLayerNetwork, error) {
	c, err := conf.FromJSON(s)
	if err != nil {
		return nil, err
	}
	return New(c)
}

// Init draws Xavier weights from the configured seed, zeroes biases and resets
// the updater state and iteration count.
func (n *MultiLayerNetwork) Init() {
	rng := newRand(n.conf.Seed)
	for _, l := range n.layers {
		Xavier(l.weight, l.NIn(), l.NOut(), rng)
		clear(l.bias.Data())
	}
	n.updater = updater.NewMultiLayer(len(n.layers))
	n.iteration = 0
	n.score = 0
}

// Conf returns the network configuration.
func (n *MultiLayerNetwork) Conf() *conf.MultiLayerConfiguration {
	return n.conf
}

// NumLayers returns the number of layers.
func (n *MultiLayerNetwork) NumLayers() int {
	return len(n.layers)
}

// Layer returns layer i.
func (n *MultiLayerNetwork) Layer(i int) *DenseLayer {
	return n.layers[i]
}

// NumParams returns the length of the flat parameter vector.
func (n *MultiLayerNetwork) NumParams() int {
	total := 0
	for _, l := range n.layers {
		total += l.NumParams()
	}
	return total
}

// Params returns a flat copy of all parameters, W then b per layer.
func (n *MultiLayerNetwork) Params() *tensor.Dense {
	return tensor.Concat(n.paramTensors()...)
}

func (n *MultiLayerNetwork) paramTensors() []*tensor.Dense {
	ts := make([]*tensor.Dense, 0, 2*len(n.layers))
	for _, l := range n.layers {
		ts = append(ts, l.weight, l.bias)
	}
	return ts
}

// SetParams copies params into the network. The length must equal NumParams
// exactly; the vector is never truncated or padded.
func (n *MultiLayerNetwork) SetParams(params *tensor.Dense) error {
	if params == nil {
		return conf.Errorf("params", "nil parameter vector")
	}
	if params.Len() != n.NumParams() {
		return conf.Errorf("params", "got %d parameters, network expects %d", params.Len(), n.NumParams())
	}
	return errors.WithStack(tensor.SplitInto(params, n.paramTensors()...))
}

// Updater returns the live updater state.
func (n *MultiLayerNetwork) Updater() *updater.MultiLayer {
	return n.updater
}

// SetUpdater replaces the updater state. It must cover every layer.
func (n *MultiLayerNetwork) SetUpdater(u *updater.MultiLayer) error {
	if u == nil {
		return conf.Errorf("updater", "nil updater state")
	}
	if u.NumLayers() != len(n.layers) {
		return conf.Errorf("updater", "state covers %d layers, network has %d", u.NumLayers(), len(n.layers))
	}
	n.updater = u
	return nil
}

// SetListeners replaces the iteration listeners.
func (n *MultiLayerNetwork) SetListeners(ls ...IterationListener) {
	n.listeners = append([]IterationListener(nil), ls...)
}

// Score returns the score of the most recent Fit: mean loss per example plus
// the regularization penalty.
func (n *MultiLayerNetwork) Score() float64 {
	return n.score
}

// Iteration returns the number of completed Fit steps.
func (n *MultiLayerNetwork) Iteration() int {
	return n.iteration
}

// Output runs a forward pass.
func (n *MultiLayerNetwork) Output(features *mat.Dense) *mat.Dense {
	a := features
	for _, l := range n.layers {
		a = l.Forward(a)
	}
	return a
}

// Fit runs exactly one forward, backward and update step over the whole batch.
func (n *MultiLayerNetwork) Fit(data *dataset.DataSet) error {
	batch := data.NumExamples()
	if batch == 0 {
		return errors.WithStack(dataset.ErrEmpty)
	}
	if data.NumFeatures() != n.layers[0].NIn() {
		return conf.Errorf("features", "got %d features, network expects %d", data.NumFeatures(), n.layers[0].NIn())
	}
	last := n.layers[len(n.layers)-1]
	if data.NumLabels() != last.NOut() {
		return conf.Errorf("labels", "got %d labels, network expects %d", data.NumLabels(), last.NOut())
	}

	out := n.Output(data.Features)
	n.score = n.loss.score(out, data.Labels)/float64(batch) + n.regularization()

	grads := n.backprop(out, data.Labels)
	for i, l := range n.layers {
		if err := n.updater.Update(i, l, grads[i], n.iteration, batch); err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
		l.weight.Sub(grads[i].Get(gradient.WeightKey))
		l.bias.Sub(grads[i].Get(gradient.BiasKey))
	}

	n.iteration++
	for _, ls := range n.listeners {
		ls.IterationDone(n, n.iteration)
	}
	return nil
}

// backprop returns one gradient per layer.
func (n *MultiLayerNetwork) backprop(out, labels *mat.Dense) []*gradient.Gradient {
	grads := make([]*gradient.Gradient, len(n.layers))
	last := len(n.layers) - 1
	delta := n.loss.delta(out, labels, n.layers[last].act)
	for i := last; i >= 0; i-- {
		l := n.layers[i]
		g, prev := l.Backward(delta)
		grads[i] = g
		if i > 0 {
			below := n.layers[i-1]
			delta = below.act.backward(below.output, prev)
		}
	}
	return grads
}

// regularization returns Σ ½·l2·‖W‖² + l1·‖W‖₁ over layers when enabled.
// Biases are never regularized.
func (n *MultiLayerNetwork) regularization() float64 {
	if !n.conf.UseRegularization {
		return 0
	}
	var r float64
	for _, l := range n.layers {
		lc := l.conf.Layer
		if lc.L2 > 0 {
			w := l.weight.Norm2()
			r += 0.5 * lc.L2 * w * w
		}
		if lc.L1 > 0 {
			for _, v := range l.weight.Data() {
				if v < 0 {
					r -= lc.L1 * v
				} else {
					r += lc.L1 * v
				}
			}
		}
	}
	return r
}
