package optim_test

import (
	"math"
	"testing"

	"github.com/born-ml/scaleout/internal/optim"
	"github.com/born-ml/scaleout/internal/tensor"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSGD_Step tests step = lr * grad.
func TestSGD_Step(t *testing.T) {
	u := optim.MustNew(optim.SGD, optim.Hyper{LearningRate: 0.1})
	grad := tensor.FromSlice([]float64{1, -2})

	step := u.Step(grad, 0)

	assert.InDeltaSlice(t, []float64{0.1, -0.2}, step.Data(), 1e-12)
	assert.Equal(t, []float64{1, -2}, grad.Data(), "gradient must not be modified")
}

// TestNone_PassThrough tests the pass-through updater.
func TestNone_PassThrough(t *testing.T) {
	u := optim.MustNew(optim.None, optim.Hyper{})
	step := u.Step(tensor.FromSlice([]float64{3, 4}), 7)
	assert.Equal(t, []float64{3, 4}, step.Data())
	assert.Equal(t, 0.0, u.Hyper().LearningRate)
}

// TestNesterovs_TwoSteps checks the look-ahead update against hand computation.
func TestNesterovs_TwoSteps(t *testing.T) {
	u := optim.MustNew(optim.Nesterovs, optim.Hyper{LearningRate: 0.1, Momentum: 0.9})
	g := tensor.FromSlice([]float64{1})

	// v1 = 0.9*0 - 0.1*1 = -0.1
	// step1 = 0.9*0 - 1.9*(-0.1) = 0.19
	step := u.Step(g, 0)
	assert.InDelta(t, 0.19, step.Data()[0], 1e-12)

	// v2 = 0.9*(-0.1) - 0.1 = -0.19
	// step2 = 0.9*(-0.1) - 1.9*(-0.19) = -0.09 + 0.361 = 0.271
	step = u.Step(g, 1)
	assert.InDelta(t, 0.271, step.Data()[0], 1e-12)
	assert.InDelta(t, -0.19, u.StateDict()["v"].Data()[0], 1e-12)
}

// TestAdaGrad_Step tests the accumulated squared gradient scaling.
func TestAdaGrad_Step(t *testing.T) {
	u := optim.MustNew(optim.AdaGrad, optim.Hyper{LearningRate: 1, Epsilon: 1e-12})

	step := u.Step(tensor.FromSlice([]float64{2}), 0)
	assert.InDelta(t, 1.0, step.Data()[0], 1e-9)

	// h = 4 + 4 = 8; step = 2/sqrt(8)
	step = u.Step(tensor.FromSlice([]float64{2}), 1)
	assert.InDelta(t, 2/math.Sqrt(8), step.Data()[0], 1e-9)
}

// TestRMSProp_Step tests the decaying squared average.
func TestRMSProp_Step(t *testing.T) {
	u := optim.MustNew(optim.RMSProp, optim.Hyper{LearningRate: 0.01, RMSDecay: 0.9, Epsilon: 1e-8})

	step := u.Step(tensor.FromSlice([]float64{1}), 0)
	// r = 0.1; step = 0.01 / sqrt(0.1 + 1e-8)
	assert.InDelta(t, 0.01/math.Sqrt(0.1+1e-8), step.Data()[0], 1e-12)
}

// TestAdam_FirstStep tests Adam's bias-corrected first step.
func TestAdam_FirstStep(t *testing.T) {
	u := optim.MustNew(optim.Adam, optim.Hyper{LearningRate: 0.001})

	step := u.Step(tensor.FromSlice([]float64{1}), 0)

	// m = 0.1, v = 0.001, alpha = 0.001*sqrt(0.001)/0.1
	// step = alpha * 0.1 / (sqrt(0.001) + 1e-8) ≈ 0.001
	assert.InDelta(t, 0.001, step.Data()[0], 1e-6)

	h := u.Hyper()
	assert.Equal(t, 0.9, h.Beta1)
	assert.Equal(t, 0.999, h.Beta2)
	assert.Equal(t, 1e-8, h.Epsilon)
}

// TestAdaDelta_Step tests the first AdaDelta step.
func TestAdaDelta_Step(t *testing.T) {
	u := optim.MustNew(optim.AdaDelta, optim.Hyper{Rho: 0.5, Epsilon: 1e-6})

	step := u.Step(tensor.FromSlice([]float64{2}), 0)
	// msg = 0.5*4 = 2; step = sqrt(1e-6)/sqrt(2+1e-6)*2
	want := math.Sqrt(1e-6) / math.Sqrt(2+1e-6) * 2
	assert.InDelta(t, want, step.Data()[0], 1e-12)
	assert.InDelta(t, 0.5*want*want, u.StateDict()["msdx"].Data()[0], 1e-18)
}

// TestSetLearningRateAndMomentum tests schedule pushes into an updater.
func TestSetLearningRateAndMomentum(t *testing.T) {
	u := optim.MustNew(optim.Nesterovs, optim.Hyper{LearningRate: 0.1, Momentum: 0.5})
	u.SetLearningRate(0.01)
	u.SetMomentum(0.9)

	assert.Equal(t, 0.01, u.Hyper().LearningRate)
	assert.Equal(t, 0.9, u.Hyper().Momentum)
}

// TestNew_UnknownKind tests the closed kind set.
func TestNew_UnknownKind(t *testing.T) {
	_, err := optim.New(optim.Kind(42), optim.Hyper{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, optim.ErrUnknownKind))

	_, err = optim.ParseKind("lbfgs")
	assert.True(t, errors.Is(err, optim.ErrUnknownKind))
}

func TestKind_Text(t *testing.T) {
	for _, k := range []optim.Kind{optim.None, optim.SGD, optim.Nesterovs, optim.AdaGrad, optim.RMSProp, optim.Adam, optim.AdaDelta} {
		b, err := k.MarshalText()
		require.NoError(t, err)

		var back optim.Kind
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, k, back)
	}

	k, err := optim.ParseKind("nesterovs")
	require.NoError(t, err)
	assert.Equal(t, optim.Nesterovs, k)
	assert.Equal(t, "Kind(42)", optim.Kind(42).String())
}

// TestClone_Independent tests that a clone equals its source and shares no state.
func TestClone_Independent(t *testing.T) {
	for _, k := range []optim.Kind{optim.None, optim.SGD, optim.Nesterovs, optim.AdaGrad, optim.RMSProp, optim.Adam, optim.AdaDelta} {
		t.Run(k.String(), func(t *testing.T) {
			u := optim.MustNew(k, optim.Hyper{LearningRate: 0.05, Momentum: 0.9})
			u.Step(tensor.FromSlice([]float64{1, -1, 0.5}), 0)

			c := u.Clone()
			require.True(t, u.Equal(c))
			require.True(t, c.Equal(u))

			c.Step(tensor.FromSlice([]float64{3, 3, 3}), 1)
			if len(u.StateDict()) > 0 {
				assert.False(t, u.Equal(c), "stepping the clone must not touch the source")
			}
		})
	}
}

// TestStateDict_RoundTrip tests Restore from a StateDict.
func TestStateDict_RoundTrip(t *testing.T) {
	u := optim.MustNew(optim.Adam, optim.Hyper{LearningRate: 0.01})
	u.Step(tensor.FromSlice([]float64{0.5, 0.25}), 0)

	r, err := optim.Restore(optim.Adam, u.Hyper(), u.StateDict())
	require.NoError(t, err)
	assert.True(t, u.Equal(r))

	err = r.LoadStateDict(map[string]*tensor.Dense{"velocity": tensor.Zeros(2)})
	assert.True(t, errors.Is(err, optim.ErrStateDict))

	err = r.LoadStateDict(map[string]*tensor.Dense{"m": tensor.Zeros(2), "v": tensor.Zeros(3)})
	assert.True(t, errors.Is(err, optim.ErrStateDict))
}

// TestAggregator_IdenticalWorkers tests that N identical states average to the same state.
func TestAggregator_IdenticalWorkers(t *testing.T) {
	src := optim.MustNew(optim.Nesterovs, optim.Hyper{LearningRate: 0.1, Momentum: 0.9})
	src.Step(tensor.FromSlice([]float64{0.3, -0.7}), 0)

	agg := src.Clone().Aggregator()
	for range 4 {
		require.NoError(t, agg.Aggregate(src.Clone()))
	}
	assert.Equal(t, 5, agg.Count())

	got := agg.Updater()
	assert.True(t, optim.EqualApprox(src, got, 1e-12))
	assert.True(t, optim.EqualApprox(got, src, 1e-12))
	assert.False(t, optim.EqualApprox(src, optim.MustNew(optim.Nesterovs, src.Hyper()), 1e-12), "fresh updater has no velocity")
}

// TestEqualApprox_ThreeIdenticalWorkers tests the round trip through sum and
// divide, which need not be exact.
func TestEqualApprox_ThreeIdenticalWorkers(t *testing.T) {
	src := optim.MustNew(optim.Nesterovs, optim.Hyper{LearningRate: 0.1, Momentum: 0.9})
	src.Step(tensor.FromSlice([]float64{0.1, 0.7, -0.3}), 0)

	agg := src.Aggregator()
	require.NoError(t, agg.Aggregate(src.Clone()))
	require.NoError(t, agg.Aggregate(src.Clone()))
	got := agg.Updater()

	assert.True(t, optim.EqualApprox(src, got, 1e-12))
	assert.True(t, optim.EqualApprox(nil, nil, 0))
	assert.False(t, optim.EqualApprox(src, nil, 1))

	other := optim.MustNew(optim.SGD, src.Hyper())
	assert.False(t, optim.EqualApprox(src, other, 1))

	slower, err := optim.Restore(optim.Nesterovs, optim.Hyper{LearningRate: 0.2, Momentum: 0.9}, src.StateDict())
	require.NoError(t, err)
	assert.False(t, optim.EqualApprox(src, slower, 1e-12))
	assert.True(t, optim.EqualApprox(src, slower, 0.5))
}

// TestRestore_KeepsZeroHyper tests that Restore and aggregation never
// substitute defaults for stored zeros.
func TestRestore_KeepsZeroHyper(t *testing.T) {
	u := optim.MustNew(optim.SGD, optim.Hyper{LearningRate: 0.5})
	u.SetLearningRate(0)

	r, err := optim.Restore(optim.SGD, u.Hyper(), u.StateDict())
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Hyper().LearningRate)
	assert.True(t, u.Equal(r))

	c := u.Clone()
	assert.Equal(t, 0.0, c.Hyper().LearningRate)
	assert.True(t, u.Equal(c))

	agg := u.Aggregator()
	require.NoError(t, agg.Aggregate(u.Clone()))
	assert.Equal(t, 0.0, agg.Updater().Hyper().LearningRate)

	step := c.Step(tensor.FromSlice([]float64{1, 2}), 0)
	assert.Equal(t, []float64{0, 0}, step.Data())

	adam, err := optim.Restore(optim.Adam, optim.Hyper{LearningRate: 0.01, Beta1: 0, Beta2: 0.5, Epsilon: 1e-3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, adam.Hyper().Beta1)
	assert.Equal(t, 0.0, adam.Clone().Hyper().Beta1)
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, optim.Hyper{LearningRate: 0.1}, optim.Defaults(optim.SGD))
	assert.Equal(t, optim.Hyper{}, optim.Defaults(optim.None))
	assert.Equal(t, optim.Hyper{Rho: 0.95, Epsilon: 1e-6}, optim.Defaults(optim.AdaDelta))
	assert.Equal(t, optim.Hyper{LearningRate: 0.1, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}, optim.Defaults(optim.Adam))
	assert.Equal(t, optim.Defaults(optim.RMSProp), optim.MustNew(optim.RMSProp, optim.Hyper{}).Hyper())
}

// TestAggregator_Average tests averaging of differing states.
func TestAggregator_Average(t *testing.T) {
	a, err := optim.Restore(optim.AdaGrad, optim.Hyper{LearningRate: 0.1},
		map[string]*tensor.Dense{"h": tensor.FromSlice([]float64{1, 3})})
	require.NoError(t, err)
	b, err := optim.Restore(optim.AdaGrad, optim.Hyper{LearningRate: 0.3},
		map[string]*tensor.Dense{"h": tensor.FromSlice([]float64{3, 5})})
	require.NoError(t, err)

	agg := a.Aggregator()
	require.NoError(t, agg.Aggregate(b))

	got := agg.Updater()
	assert.InDelta(t, 0.2, got.Hyper().LearningRate, 1e-12)
	assert.InDeltaSlice(t, []float64{2, 4}, got.StateDict()["h"].Data(), 1e-12)
}

// TestAggregator_CombineOrderIndependent tests associativity and commutativity.
func TestAggregator_CombineOrderIndependent(t *testing.T) {
	mk := func(v float64) optim.GradientUpdater {
		u, err := optim.Restore(optim.RMSProp, optim.Hyper{LearningRate: v},
			map[string]*tensor.Dense{"r": tensor.FromSlice([]float64{v, 2 * v})})
		require.NoError(t, err)
		return u
	}

	left := mk(1).Aggregator()
	require.NoError(t, left.Aggregate(mk(2)))
	require.NoError(t, left.Combine(mk(3).Aggregator()))

	right := mk(3).Aggregator()
	require.NoError(t, right.Combine(mk(2).Aggregator()))
	require.NoError(t, right.Aggregate(mk(1)))

	l, r := left.Updater(), right.Updater()
	assert.InDelta(t, l.Hyper().LearningRate, r.Hyper().LearningRate, 1e-12)
	assert.InDeltaSlice(t, l.StateDict()["r"].Data(), r.StateDict()["r"].Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{2, 4}, l.StateDict()["r"].Data(), 1e-12)
}

// TestAggregator_KindMismatch tests that mixing kinds is a hard error.
func TestAggregator_KindMismatch(t *testing.T) {
	agg := optim.MustNew(optim.SGD, optim.Hyper{}).Aggregator()

	err := agg.Aggregate(optim.MustNew(optim.Adam, optim.Hyper{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, optim.ErrAggregation))

	var aggErr *optim.AggregationError
	require.True(t, errors.As(err, &aggErr))
	assert.Equal(t, optim.SGD, aggErr.Want)
	assert.Equal(t, optim.Adam, aggErr.Got)

	err = agg.Combine(optim.MustNew(optim.AdaGrad, optim.Hyper{}).Aggregator())
	assert.True(t, errors.Is(err, optim.ErrAggregation))
	assert.Equal(t, 1, agg.Count())
}

// TestAggregator_ShapeMismatch tests incompatible state shapes.
func TestAggregator_ShapeMismatch(t *testing.T) {
	a := optim.MustNew(optim.AdaGrad, optim.Hyper{})
	a.Step(tensor.Zeros(2), 0)
	b := optim.MustNew(optim.AdaGrad, optim.Hyper{})
	b.Step(tensor.Zeros(3), 0)

	err := a.Aggregator().Aggregate(b)
	assert.True(t, errors.Is(err, optim.ErrAggregation))
}

// TestAggregator_PartialState tests averaging when only some updaters have state.
func TestAggregator_PartialState(t *testing.T) {
	fresh := optim.MustNew(optim.Nesterovs, optim.Hyper{LearningRate: 0.1, Momentum: 0.5})
	used, err := optim.Restore(optim.Nesterovs, optim.Hyper{LearningRate: 0.1, Momentum: 0.5},
		map[string]*tensor.Dense{"v": tensor.FromSlice([]float64{4})})
	require.NoError(t, err)

	agg := fresh.Aggregator()
	require.NoError(t, agg.Aggregate(used))

	got := agg.Updater()
	assert.InDeltaSlice(t, []float64{4}, got.StateDict()["v"].Data(), 1e-12)
}
