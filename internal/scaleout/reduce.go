package scaleout

import (
	"github.com/born-ml/scaleout/internal/conf"
	"github.com/born-ml/scaleout/internal/tensor"
	"github.com/born-ml/scaleout/internal/updater"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// ErrNoResults is returned by Reduce when every partition was empty.
var ErrNoResults = errors.New("scaleout: no partition results to reduce")

// Reduce averages the parameters and scores of results and aggregates their
// updater states. The result does not depend on the order of results.
func Reduce(results []Result) (*tensor.Dense, *updater.MultiLayer, float64, error) {
	if len(results) == 0 {
		return nil, nil, 0, errors.WithStack(ErrNoResults)
	}
	r := reducer{field: "params"}
	score := 0.0
	for i, res := range results {
		if err := r.add(i, res.Params, res.Updater); err != nil {
			return nil, nil, 0, err
		}
		score += res.Score
	}
	mean, state := r.result()
	return mean, state, score / float64(len(results)), nil
}

// ReduceGradients averages the gradients of pairs and aggregates their updater
// states. It serves workers that report gradients instead of parameters.
func ReduceGradients(pairs []GradientPair) (*tensor.Dense, *updater.MultiLayer, error) {
	if len(pairs) == 0 {
		return nil, nil, errors.WithStack(ErrNoResults)
	}
	r := reducer{field: "gradient"}
	for i, p := range pairs {
		if err := r.add(i, GradientFromPair(p), p.Updater); err != nil {
			return nil, nil, err
		}
	}
	mean, state := r.result()
	return mean, state, nil
}

// reducer sums flat vectors of one length and aggregates updater states.
type reducer struct {
	field string
	sum   *tensor.Dense
	agg   *updater.MultiLayerAggregator
	n     int
}

func (r *reducer) add(i int, v *tensor.Dense, u *updater.MultiLayer) error {
	if v == nil {
		return conf.Errorf(r.field, "result %d is nil", i)
	}
	if r.sum == nil {
		r.sum = tensor.Zeros(v.Len())
		r.agg = updater.NewMultiLayerAggregator()
	}
	if v.Len() != r.sum.Len() {
		return conf.Errorf(r.field, "result %d has %d values, expected %d", i, v.Len(), r.sum.Len())
	}
	floats.Add(r.sum.Data(), v.Data())
	if u != nil {
		if err := r.agg.Aggregate(u); err != nil {
			return errors.Wrapf(err, "result %d", i)
		}
	}
	r.n++
	return nil
}

// result returns the mean vector and the aggregated state, which is nil when
// no result carried one.
func (r *reducer) result() (*tensor.Dense, *updater.MultiLayer) {
	var state *updater.MultiLayer
	if r.agg.NumLayers() > 0 {
		state = r.agg.Updater()
	}
	return r.sum.Div(float64(r.n)), state
}
