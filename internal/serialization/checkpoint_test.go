package serialization

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/scaleout/internal/conf"
	"github.com/born-ml/scaleout/internal/gradient"
	"github.com/born-ml/scaleout/internal/optim"
	"github.com/born-ml/scaleout/internal/tensor"
	"github.com/born-ml/scaleout/internal/updater"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLayer is the smallest updater.Layer.
type stubLayer struct {
	c *conf.NeuralNetConfiguration
}

func (s stubLayer) Conf() *conf.NeuralNetConfiguration { return s.c }
func (s stubLayer) Param(string) *tensor.Dense         { return tensor.Zeros(2) }

func trainedUpdater(t *testing.T) *updater.MultiLayer {
	t.Helper()
	m := updater.NewMultiLayer(2)
	kinds := []optim.Kind{optim.Adam, optim.SGD}
	for i, k := range kinds {
		layer := stubLayer{c: &conf.NeuralNetConfiguration{Layer: &conf.Layer{Updater: k, LearningRate: 0.01}}}
		g := gradient.New()
		g.Set(gradient.WeightKey, tensor.FromSlice([]float64{0.5, -1.5}))
		g.Set(gradient.BiasKey, tensor.FromSlice([]float64{2}))
		require.NoError(t, m.Update(i, layer, g, 0, 1))
	}
	return m
}

func sampleCheckpoint(t *testing.T) *Checkpoint {
	t.Helper()
	return &Checkpoint{
		Params:    tensor.FromSlice([]float64{1, -2, 3.5, math.Pi}),
		Updater:   trainedUpdater(t),
		Conf:      `{"layers":[]}`,
		Round:     4,
		Score:     0.25,
		BestScore: 0.75,
		Metadata:  map[string]string{"run": "test"},
	}
}

func encode(t *testing.T, c *Checkpoint) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteCheckpoint(&buf, c))
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	in := sampleCheckpoint(t)
	raw := encode(t, in)

	out, err := ReadCheckpoint(bytes.NewReader(raw), ReaderOptions{})
	require.NoError(t, err)
	assert.True(t, in.Params.Equal(out.Params))
	assert.True(t, in.Updater.Equal(out.Updater))
	assert.Equal(t, in.Conf, out.Conf)
	assert.Equal(t, 4, out.Round)
	assert.Equal(t, 0.25, out.Score)
	assert.Equal(t, 0.75, out.BestScore)
	assert.Equal(t, "test", out.Metadata["run"])
	assert.Equal(t, in.CreatedAt.Unix(), out.CreatedAt.Unix())
}

func TestLayout(t *testing.T) {
	raw := encode(t, sampleCheckpoint(t))
	require.GreaterOrEqual(t, len(raw), FixedHeaderSize)
	assert.Equal(t, MagicBytes, string(raw[0:4]))

	fixed, err := readFixedHeader(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, uint32(FormatVersion), fixed.version)
	assert.NotZero(t, fixed.flags&FlagHasOptimizer)
	assert.NotZero(t, fixed.flags&FlagHasMetadata)

	// Data starts on an aligned boundary and runs to the end.
	dataStart := int64(len(raw)) - int64(fixed.dataSize)
	assert.Zero(t, dataStart%HeaderAlignment)
}

func TestNonFiniteScores(t *testing.T) {
	c := sampleCheckpoint(t)
	c.Score = math.NaN()
	c.BestScore = math.Inf(-1)

	out, err := ReadCheckpoint(bytes.NewReader(encode(t, c)), ReaderOptions{})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out.Score))
	assert.True(t, math.IsInf(out.BestScore, -1))
}

func TestNoUpdater(t *testing.T) {
	c := sampleCheckpoint(t)
	c.Updater = nil
	out, err := ReadCheckpoint(bytes.NewReader(encode(t, c)), ReaderOptions{})
	require.NoError(t, err)
	assert.Nil(t, out.Updater)
}

func TestChecksumMismatch(t *testing.T) {
	raw := encode(t, sampleCheckpoint(t))
	raw[len(raw)-1] ^= 0xff

	_, err := ReadCheckpoint(bytes.NewReader(raw), ReaderOptions{})
	assert.True(t, errors.Is(err, ErrChecksumMismatch))

	_, err = ReadCheckpoint(bytes.NewReader(raw), ReaderOptions{SkipChecksumValidation: true})
	assert.NoError(t, err)
}

func TestReadErrors(t *testing.T) {
	raw := encode(t, sampleCheckpoint(t))

	bad := append([]byte(nil), raw...)
	copy(bad, "NOPE")
	_, err := ReadCheckpoint(bytes.NewReader(bad), ReaderOptions{})
	assert.True(t, errors.Is(err, ErrInvalidMagic))

	bad = append([]byte(nil), raw...)
	bad[4] = 9
	_, err = ReadCheckpoint(bytes.NewReader(bad), ReaderOptions{})
	assert.True(t, errors.Is(err, ErrUnsupportedVersion))

	_, err = ReadCheckpoint(bytes.NewReader(raw[:len(raw)-3]), ReaderOptions{})
	assert.Error(t, err)

	_, err = ReadCheckpoint(bytes.NewReader(raw[:10]), ReaderOptions{})
	assert.Error(t, err)
}

func TestWriteRequiresParams(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteCheckpoint(&buf, &Checkpoint{}))
	assert.Error(t, WriteCheckpoint(&buf, nil))
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.born")
	in := sampleCheckpoint(t)
	require.NoError(t, SaveFile(path, in))

	// Overwrite keeps a single file.
	in.Round = 5
	require.NoError(t, SaveFile(path, in))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	out, err := LoadFile(path, ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, out.Round)
	assert.True(t, in.Updater.Equal(out.Updater))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.born"), ReaderOptions{})
	assert.Error(t, err)
}
