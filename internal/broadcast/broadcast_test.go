package broadcast

import (
	"testing"

	"github.com/born-ml/scaleout/internal/tensor"
	"github.com/born-ml/scaleout/internal/updater"
	"github.com/stretchr/testify/assert"
)

func TestClone_IsIndependent(t *testing.T) {
	shared := tensor.FromSlice([]float64{1, 2, 3})
	b := New(shared)

	c := b.Clone()
	c.Data()[0] = 100
	assert.Equal(t, 1.0, shared.Data()[0])
	assert.NotSame(t, shared, b.Clone())
	assert.True(t, shared.Equal(b.Clone()))
}

func TestIsNil(t *testing.T) {
	var nilParams *tensor.Dense
	assert.True(t, New(nilParams).IsNil())
	assert.Nil(t, New(nilParams).Clone())

	var nilValue *Value[*updater.MultiLayer]
	assert.True(t, nilValue.IsNil())
	assert.Nil(t, nilValue.Clone())

	assert.False(t, New(updater.NewMultiLayer(1)).IsNil())
}
