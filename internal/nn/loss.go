package nn

import (
	"math"

	"github.com/born-ml/scaleout/internal/conf"
	"gonum.org/v1/gonum/mat"
)

// minProb keeps log() finite when a predicted probability underflows to zero.
const minProb = 1e-15

// loss scores a batch of predictions and seeds backpropagation.
type loss interface {
	// score returns the loss summed over all examples.
	score(out, labels *mat.Dense) float64

	// delta returns dL/dz at the output layer, summed-loss convention.
	delta(out, labels *mat.Dense, act activation) *mat.Dense
}

func newLoss(name conf.LossFunction) (loss, error) {
	switch name {
	case conf.MSE:
		return mse{}, nil
	case conf.MCXENT:
		return mcxent{}, nil
	default:
		return nil, conf.Errorf("loss", "unknown loss %q", name)
	}
}

// mse is half the squared error: L = ½ Σ (a - y)².
type mse struct{}

func (mse) score(out, labels *mat.Dense) float64 {
	var diff mat.Dense
	diff.Sub(out, labels)
	n := mat.Norm(&diff, 2)
	return 0.5 * n * n
}

func (mse) delta(out, labels *mat.Dense, act activation) *mat.Dense {
	var diff mat.Dense
	diff.Sub(out, labels)
	return act.backward(out, &diff)
}

// mcxent is multi-class cross entropy: L = -Σ y log(a).
type mcxent struct{}

func (mcxent) score(out, labels *mat.Dense) float64 {
	r, c := out.Dims()
	var s float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if y := labels.At(i, j); y != 0 {
				s -= y * math.Log(math.Max(out.At(i, j), minProb))
			}
		}
	}
	return s
}

// delta uses the softmax/cross-entropy identity dL/dz = a - y. Configuration
// validation guarantees mcxent is paired with softmax.
func (mcxent) delta(out, labels *mat.Dense, _ activation) *mat.Dense {
	var d mat.Dense
	d.Sub(out, labels)
	return &d
}
