package nn

import (
	"fmt"

	"github.com/born-ml/scaleout/internal/conf"
	"github.com/born-ml/scaleout/internal/gradient"
	"github.com/born-ml/scaleout/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// DenseLayer is a fully connected layer.
//
// Performs the transformation: a = act(x·W + b)
// where:
//   - x is the input with shape [batch_size, nIn]
//   - W is the weight matrix with shape [nIn, nOut]
//   - b is the bias vector with shape [nOut]
//   - a is the output with shape [batch_size, nOut]
//
// Parameters live in tensor.Dense values so the updater and the flat
// parameter vector can address them by name; mat views share their storage.
type DenseLayer struct {
	conf *conf.NeuralNetConfiguration
	act  activation

	weight *tensor.Dense // [nIn, nOut], gradient.WeightKey
	bias   *tensor.Dense // [nOut], gradient.BiasKey

	// Forward cache for backprop.
	input, output *mat.Dense
}

func newDenseLayer(c *conf.NeuralNetConfiguration) (*DenseLayer, error) {
	act, err := newActivation(c.Layer.Activation)
	if err != nil {
		return nil, err
	}
	return &DenseLayer{
		conf:   c,
		act:    act,
		weight: tensor.Zeros(c.Layer.NIn, c.Layer.NOut),
		bias:   tensor.Zeros(c.Layer.NOut),
	}, nil
}

// Conf returns the layer's training configuration. Schedules mutate it.
func (l *DenseLayer) Conf() *conf.NeuralNetConfiguration {
	return l.conf
}

// Param returns the named parameter, or nil.
func (l *DenseLayer) Param(name string) *tensor.Dense {
	switch name {
	case gradient.WeightKey:
		return l.weight
	case gradient.BiasKey:
		return l.bias
	default:
		return nil
	}
}

// NIn returns the number of inputs.
func (l *DenseLayer) NIn() int { return l.conf.Layer.NIn }

// NOut returns the number of outputs.
func (l *DenseLayer) NOut() int { return l.conf.Layer.NOut }

// weights returns a matrix view over the weight storage.
func (l *DenseLayer) weights() *mat.Dense {
	return mat.NewDense(l.NIn(), l.NOut(), l.weight.Data())
}

// Forward computes the layer output for x and caches what Backward needs.
func (l *DenseLayer) Forward(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	if c != l.NIn() {
		panic(fmt.Sprintf("DenseLayer.Forward: expected input with %d features, got %d", l.NIn(), c))
	}
	var z mat.Dense
	z.Mul(x, l.weights())
	b := l.bias.Data()
	for i := 0; i < r; i++ {
		row := z.RawRowView(i)
		for j := range row {
			row[j] += b[j]
		}
	}
	l.input = x
	l.output = l.act.forward(&z)
	return l.output
}

// Backward takes dL/dz for this layer and returns the parameter gradient
// (summed over the batch) and dL/da for the previous layer.
func (l *DenseLayer) Backward(delta *mat.Dense) (*gradient.Gradient, *mat.Dense) {
	var gw mat.Dense
	gw.Mul(l.input.T(), delta)

	r, c := delta.Dims()
	gb := make([]float64, c)
	for i := 0; i < r; i++ {
		row := delta.RawRowView(i)
		for j, v := range row {
			gb[j] += v
		}
	}

	var prev mat.Dense
	prev.Mul(delta, l.weights().T())

	g := gradient.New()
	g.Set(gradient.WeightKey, tensor.FromSlice(gw.RawMatrix().Data, l.NIn(), l.NOut()))
	g.Set(gradient.BiasKey, tensor.FromSlice(gb, l.NOut()))
	return g, &prev
}

// NumParams returns nIn*nOut + nOut.
func (l *DenseLayer) NumParams() int {
	return l.weight.Len() + l.bias.Len()
}
