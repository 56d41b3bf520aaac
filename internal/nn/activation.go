package nn

import (
	"math"

	"github.com/born-ml/scaleout/internal/conf"
	"github.com/born-ml/scaleout/internal/parallel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// activation is an element-wise (or, for softmax, row-wise) non-linearity.
//
// Derivatives are expressed through the activation's output a, which every
// supported function allows, so the pre-activation need not be cached.
type activation interface {
	// forward returns act(z) as a new matrix.
	forward(z *mat.Dense) *mat.Dense

	// backward returns dL/dz given the output a and dL/da.
	backward(a, grad *mat.Dense) *mat.Dense
}

// newActivation maps a configured name to its implementation.
func newActivation(name conf.Activation) (activation, error) {
	switch name {
	case conf.Identity:
		return identity{}, nil
	case conf.ReLU:
		return relu{}, nil
	case conf.Sigmoid, "":
		return sigmoid{}, nil
	case conf.Tanh:
		return tanh{}, nil
	case conf.Softmax:
		return softmax{}, nil
	default:
		return nil, conf.Errorf("activation", "unknown activation %q", name)
	}
}

// elementwise builds dL/dz = grad ⊙ d(a) for activations whose derivative is a
// function of the output alone.
func elementwise(a, grad *mat.Dense, d func(a float64) float64) *mat.Dense {
	var out mat.Dense
	out.Apply(func(i, j int, v float64) float64 { return v * d(a.At(i, j)) }, grad)
	return &out
}

type identity struct{}

func (identity) forward(z *mat.Dense) *mat.Dense { return mat.DenseCopyOf(z) }

func (identity) backward(_, grad *mat.Dense) *mat.Dense { return mat.DenseCopyOf(grad) }

// relu applies f(x) = max(0, x).
type relu struct{}

func (relu) forward(z *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, z)
	return &out
}

func (relu) backward(a, grad *mat.Dense) *mat.Dense {
	return elementwise(a, grad, func(a float64) float64 {
		if a > 0 {
			return 1
		}
		return 0
	})
}

// sigmoid applies σ(x) = 1 / (1 + exp(-x)).
type sigmoid struct{}

func (sigmoid) forward(z *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return 1 / (1 + math.Exp(-v)) }, z)
	return &out
}

func (sigmoid) backward(a, grad *mat.Dense) *mat.Dense {
	return elementwise(a, grad, func(a float64) float64 { return a * (1 - a) })
}

type tanh struct{}

func (tanh) forward(z *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, z)
	return &out
}

func (tanh) backward(a, grad *mat.Dense) *mat.Dense {
	return elementwise(a, grad, func(a float64) float64 { return 1 - a*a })
}

// softmax normalizes each row to a probability distribution.
type softmax struct{}

func (softmax) forward(z *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(z)
	r, _ := out.Dims()
	parallel.For(r, func(i int) {
		row := out.RawRowView(i)
		// Shift by the row max for numerical stability.
		floats.AddConst(-floats.Max(row), row)
		for j, v := range row {
			row[j] = math.Exp(v)
		}
		floats.Scale(1/floats.Sum(row), row)
	}, parallel.DefaultConfig())
	return out
}

// backward applies the softmax Jacobian row by row:
// dL/dz_j = a_j * (g_j - Σ_k g_k a_k).
func (softmax) backward(a, grad *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(grad)
	r, _ := out.Dims()
	parallel.For(r, func(i int) {
		ar := a.RawRowView(i)
		row := out.RawRowView(i)
		dot := floats.Dot(row, ar)
		floats.AddConst(-dot, row)
		floats.Mul(row, ar)
	}, parallel.DefaultConfig())
	return out
}
