package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/born-ml/scaleout/internal/tensor"
	"github.com/born-ml/scaleout/internal/updater"
	"github.com/pkg/errors"
)

// Checkpoint is the resumable state of a training run.
type Checkpoint struct {
	Params    *tensor.Dense       // Flat parameter vector
	Updater   *updater.MultiLayer // Per-layer updater state, may be nil
	Conf      string              // Network configuration JSON
	Round     int                 // Completed rounds
	Score     float64             // Score of the last round
	BestScore float64             // Best score so far, -Inf if none
	Metadata  map[string]string   // Free-form metadata
	CreatedAt time.Time           // Set by WriteCheckpoint
}

// namedTensor pairs a tensor with its name in the data section.
type namedTensor struct {
	name string
	t    *tensor.Dense
}

// updaterTensorName names a state tensor: updater.<layer>.<param>.<key>.
func updaterTensorName(layer int, param, key string) string {
	return fmt.Sprintf("%s.%d.%s.%s", updaterPrefix, layer, param, key)
}

// collect lays out c's tensors and the updater metadata that references them.
func collect(c *Checkpoint) ([]namedTensor, [][]UpdaterMeta) {
	tensors := []namedTensor{{name: ParamsTensor, t: c.Params}}
	if c.Updater == nil {
		return tensors, nil
	}
	metas := make([][]UpdaterMeta, c.Updater.NumLayers())
	for i, layer := range c.Updater.StateDict() {
		metas[i] = make([]UpdaterMeta, 0, len(layer))
		for _, ps := range layer {
			m := UpdaterMeta{Param: ps.Name, Kind: ps.Kind, Hyper: ps.Hyper}
			keys := make([]string, 0, len(ps.State))
			for k := range ps.State {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if len(keys) > 0 {
				m.State = make(map[string]string, len(keys))
			}
			for _, k := range keys {
				name := updaterTensorName(i, ps.Name, k)
				m.State[k] = name
				tensors = append(tensors, namedTensor{name: name, t: ps.State[k]})
			}
			metas[i] = append(metas[i], m)
		}
	}
	return tensors, metas
}

// WriteCheckpoint encodes c to w.
func WriteCheckpoint(w io.Writer, c *Checkpoint) error {
	if c == nil || c.Params == nil {
		return errors.New("serialization: checkpoint has no parameters")
	}
	tensors, updaters := collect(c)

	header := Header{
		FormatVersion: FormatVersion,
		CreatedAt:     time.Now().UTC(),
		Tensors:       make([]TensorMeta, 0, len(tensors)),
		Metadata:      c.Metadata,
		CheckpointMeta: &CheckpointMeta{
			Round:     c.Round,
			Score:     finite(c.Score),
			BestScore: finite(c.BestScore),
			Conf:      c.Conf,
			Updaters:  updaters,
		},
	}
	c.CreatedAt = header.CreatedAt

	// Data section and tensor offsets.
	var data bytes.Buffer
	for _, nt := range tensors {
		offset := int64(data.Len())
		for _, v := range nt.t.Data() {
			var b [float64Size]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
			data.Write(b[:])
		}
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   nt.name,
			DType:  DTypeFloat64,
			Shape:  []int(nt.t.Shape()),
			Offset: offset,
			Size:   int64(data.Len()) - offset,
		})
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "serialization: marshal header")
	}
	if len(headerJSON) > MaxHeaderSize {
		return errors.WithStack(ErrHeaderTooLarge)
	}

	flags := uint32(0)
	if len(updaters) > 0 {
		flags |= FlagHasOptimizer
	}
	if len(c.Metadata) > 0 {
		flags |= FlagHasMetadata
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(data.Len()))
	sum := ComputeChecksum(data.Bytes())
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], sum[:])

	pad := padding(int64(FixedHeaderSize + len(headerJSON)))
	for _, part := range [][]byte{fixed, headerJSON, make([]byte, pad), data.Bytes()} {
		if _, err := w.Write(part); err != nil {
			return errors.Wrap(err, "serialization: write checkpoint")
		}
	}
	return nil
}

// SaveFile writes c to path atomically: the checkpoint is written to a
// temporary file in the same directory and renamed over path.
func SaveFile(path string, c *Checkpoint) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "serialization: create temp file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = WriteCheckpoint(tmp, c); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "serialization: close temp file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "serialization: rename checkpoint")
	}
	return nil
}

// finite returns nil for NaN and ±Inf, which JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
