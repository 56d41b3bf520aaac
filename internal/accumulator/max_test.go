package accumulator

import (
	"math"
	"sync"
	"testing"

	"github.com/born-ml/scaleout/internal/conf"
	"github.com/born-ml/scaleout/internal/dataset"
	"github.com/born-ml/scaleout/internal/nn"
	"github.com/born-ml/scaleout/internal/optim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMax_Empty(t *testing.T) {
	assert.True(t, math.IsInf(NewMax().Value(), -1))
}

func TestMax_Add(t *testing.T) {
	m := NewMax()
	m.Add(1)
	m.Add(-5)
	m.Add(math.NaN())
	m.Add(3)
	m.Add(2)
	assert.Equal(t, 3.0, m.Value())
}

func TestMax_Concurrent(t *testing.T) {
	m := NewMax()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				m.Add(float64(w*1000 + i))
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 7999.0, m.Value())
}

func TestMax_MergeOrderIndependent(t *testing.T) {
	a, b := NewMax(), NewMax()
	a.Add(1)
	b.Add(4)

	ab := NewMax()
	ab.Merge(a)
	ab.Merge(b)
	ba := NewMax()
	ba.Merge(b)
	ba.Merge(a)
	assert.Equal(t, ab.Value(), ba.Value())
	assert.Equal(t, 4.0, ab.Value())
}

func TestBestScoreListener(t *testing.T) {
	net, err := nn.New(&conf.MultiLayerConfiguration{
		Seed: 1,
		Layers: []conf.Layer{
			{NIn: 1, NOut: 1, Activation: conf.Identity, Loss: conf.MSE, Updater: optim.SGD},
		},
	})
	require.NoError(t, err)
	net.Init()

	best := NewMax()
	net.SetListeners(BestScoreListener{Best: best})
	d, err := dataset.FromRows([][]float64{{1}}, [][]float64{{10}})
	require.NoError(t, err)
	require.NoError(t, net.Fit(d))

	assert.Equal(t, net.Score(), best.Value())
}
