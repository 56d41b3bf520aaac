package gradient

import (
	"testing"

	"github.com/born-ml/scaleout/internal/tensor"
	"github.com/stretchr/testify/assert"
)

func TestGradient_InsertionOrder(t *testing.T) {
	g := New()
	g.Set(WeightKey, tensor.FromSlice([]float64{1, 2}))
	g.Set(BiasKey, tensor.FromSlice([]float64{3}))
	g.Set(WeightKey, tensor.FromSlice([]float64{4, 5}))

	assert.Equal(t, []string{WeightKey, BiasKey}, g.Names())
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []float64{4, 5, 3}, g.Flatten().Data())
}

func TestGradient_AllStopsEarly(t *testing.T) {
	g := New()
	g.Set("a", tensor.Zeros(1))
	g.Set("b", tensor.Zeros(1))

	var seen []string
	for name := range g.All() {
		seen = append(seen, name)
		break
	}
	assert.Equal(t, []string{"a"}, seen)
}

func TestGradient_Clone(t *testing.T) {
	g := New()
	g.Set("a", tensor.FromSlice([]float64{1}))
	d := g.Clone()
	d.Get("a").Data()[0] = 7

	assert.Equal(t, 1.0, g.Get("a").Data()[0])
	assert.Nil(t, g.Get("missing"))
}
