package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSlice_CopiesData(t *testing.T) {
	src := []float64{1, 2, 3, 4}
	d := FromSlice(src, 2, 2)
	src[0] = 100

	assert.Equal(t, 1.0, d.Data()[0])
	assert.True(t, d.Shape().Equal(Shape{2, 2}))
	assert.Equal(t, 4, d.Len())
}

func TestTryFromSlice_ShapeMismatch(t *testing.T) {
	_, err := TryFromSlice([]float64{1, 2, 3}, 2, 2)
	require.Error(t, err)
	assert.Panics(t, func() { FromSlice([]float64{1}, 3) })
}

func TestClone_IsDeep(t *testing.T) {
	a := FromSlice([]float64{1, 2})
	b := a.Clone()
	b.Data()[0] = 9

	assert.Equal(t, 1.0, a.Data()[0])
	assert.False(t, a.Equal(b))

	var nilDense *Dense
	assert.Nil(t, nilDense.Clone())
}

func TestNorm2(t *testing.T) {
	assert.InDelta(t, 5.0, FromSlice([]float64{3, 4}).Norm2(), 1e-12)
	assert.Equal(t, 0.0, Zeros(3).Norm2())
}

func TestClip(t *testing.T) {
	d := FromSlice([]float64{-5, -0.5, 0, 0.5, 5})
	d.Clip(1)
	assert.Equal(t, []float64{-1, -0.5, 0, 0.5, 1}, d.Data())
}

func TestArithmetic(t *testing.T) {
	a := FromSlice([]float64{1, 2, 3})
	b := FromSlice([]float64{1, 1, 1})

	a.Add(b).Scale(2).Sub(b)
	assert.Equal(t, []float64{3, 5, 7}, a.Data())

	a.AddScaled(-1, b).Mul(FromSlice([]float64{0, 1, 2}))
	assert.Equal(t, []float64{0, 4, 12}, a.Data())

	a.Div(4).AddConst(1)
	assert.Equal(t, []float64{1, 2, 4}, a.Data())
	assert.Equal(t, 7.0, a.Sum())

	assert.Panics(t, func() { a.Add(Zeros(2)) })
}

func TestSign(t *testing.T) {
	s := FromSlice([]float64{-2, 0, 3}).Sign()
	assert.Equal(t, []float64{-1, 0, 1}, s.Data())
}

func TestApply(t *testing.T) {
	d := FromSlice([]float64{1, 4, 9}).Apply(math.Sqrt)
	assert.Equal(t, []float64{1, 2, 3}, d.Data())
}

func TestConcatAndSplit(t *testing.T) {
	a := FromSlice([]float64{1, 2, 3, 4}, 2, 2)
	b := FromSlice([]float64{5, 6})

	flat := Concat(a, b)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, flat.Data())

	x, y := Zeros(2, 2), Zeros(2)
	require.NoError(t, SplitInto(flat, x, y))
	assert.True(t, x.Equal(a))
	assert.True(t, y.Equal(b))

	require.Error(t, SplitInto(flat, Zeros(3)))
}

func TestEqualApprox(t *testing.T) {
	a := FromSlice([]float64{1, 2})
	b := FromSlice([]float64{1 + 1e-9, 2})
	assert.True(t, a.EqualApprox(b, 1e-6))
	assert.False(t, a.EqualApprox(FromSlice([]float64{1, 2}, 1, 2), 1e-6))
}
