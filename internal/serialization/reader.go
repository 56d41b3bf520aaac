package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/born-ml/scaleout/internal/tensor"
	"github.com/born-ml/scaleout/internal/updater"
	"github.com/pkg/errors"
)

// ReaderOptions configures checkpoint decoding. The zero value validates
// everything.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// fixedHeader is the decoded 64-byte prefix.
type fixedHeader struct {
	version    uint32
	flags      uint32
	headerSize uint64
	dataSize   uint64
	checksum   [ChecksumSize]byte
}

func readFixedHeader(r io.Reader) (*fixedHeader, error) {
	buf := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(err, "serialization: read fixed header")
	}
	if string(buf[0:4]) != MagicBytes {
		return nil, errors.WithStack(ErrInvalidMagic)
	}
	h := &fixedHeader{
		version:    binary.LittleEndian.Uint32(buf[4:8]),
		flags:      binary.LittleEndian.Uint32(buf[8:12]),
		headerSize: binary.LittleEndian.Uint64(buf[16:24]),
		dataSize:   binary.LittleEndian.Uint64(buf[24:32]),
	}
	copy(h.checksum[:], buf[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if h.version != FormatVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "got %d, expected %d", h.version, FormatVersion)
	}
	if h.headerSize > MaxHeaderSize {
		return nil, errors.WithStack(ErrHeaderTooLarge)
	}
	return h, nil
}

// ReadCheckpoint decodes a checkpoint written by WriteCheckpoint.
func ReadCheckpoint(r io.Reader, opts ReaderOptions) (*Checkpoint, error) {
	fixed, err := readFixedHeader(r)
	if err != nil {
		return nil, err
	}

	headerJSON := make([]byte, fixed.headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, errors.Wrap(err, "serialization: read header")
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, errors.Wrap(err, "serialization: parse header")
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize.
	pad := padding(int64(FixedHeaderSize) + int64(fixed.headerSize))
	if _, err := io.CopyN(io.Discard, r, pad); err != nil {
		return nil, errors.Wrap(err, "serialization: read padding")
	}

	// ReadAll grows with the input, so a lying data size cannot force a huge
	// allocation up front.
	data, err := io.ReadAll(io.LimitReader(r, int64(fixed.dataSize))) //nolint:gosec // G115
	if err != nil {
		return nil, errors.Wrap(err, "serialization: read data")
	}
	if uint64(len(data)) != fixed.dataSize {
		return nil, errors.Errorf("serialization: data section truncated: got %d of %d bytes", len(data), fixed.dataSize)
	}

	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(data), fixed.checksum); err != nil {
			return nil, err
		}
	}
	if err := ValidateHeader(&header, int64(len(data)), opts.ValidationLevel); err != nil {
		return nil, errors.Wrap(err, "serialization: validation failed")
	}
	return decode(&header, data)
}

// decode rebuilds the checkpoint from a parsed header and its data section.
func decode(header *Header, data []byte) (*Checkpoint, error) {
	meta := header.CheckpointMeta
	if meta == nil {
		return nil, errors.WithStack(ErrNotCheckpoint)
	}

	tensors := make(map[string]*tensor.Dense, len(header.Tensors))
	for _, tm := range header.Tensors {
		t, err := decodeTensor(tm, data)
		if err != nil {
			return nil, err
		}
		tensors[tm.Name] = t
	}

	params, ok := tensors[ParamsTensor]
	if !ok {
		return nil, errors.Wrap(ErrMissingTensor, ParamsTensor)
	}
	c := &Checkpoint{
		Params:    params,
		Conf:      meta.Conf,
		Round:     meta.Round,
		Score:     math.NaN(),
		BestScore: math.Inf(-1),
		Metadata:  header.Metadata,
		CreatedAt: header.CreatedAt,
	}
	if meta.Score != nil {
		c.Score = *meta.Score
	}
	if meta.BestScore != nil {
		c.BestScore = *meta.BestScore
	}

	if meta.Updaters != nil {
		states := make([][]updater.ParamState, len(meta.Updaters))
		for i, layer := range meta.Updaters {
			for _, um := range layer {
				ps := updater.ParamState{Name: um.Param, Kind: um.Kind, Hyper: um.Hyper, State: map[string]*tensor.Dense{}}
				for key, name := range um.State {
					t, ok := tensors[name]
					if !ok {
						return nil, errors.Wrap(ErrMissingTensor, name)
					}
					ps.State[key] = t
				}
				states[i] = append(states[i], ps)
			}
		}
		c.Updater = updater.NewMultiLayer(len(states))
		if err := c.Updater.LoadStateDict(states); err != nil {
			return nil, errors.Wrap(err, "serialization: restore updater state")
		}
	}
	return c, nil
}

// decodeTensor reads one tensor from the data section. Bounds are checked
// here as well so ValidationNone cannot cause an out-of-range slice.
func decodeTensor(tm TensorMeta, data []byte) (*tensor.Dense, error) {
	if err := ValidateTensorLayout(tm); err != nil {
		return nil, err
	}
	if tm.Offset < 0 || tm.Offset+tm.Size > int64(len(data)) {
		return nil, &ValidationError{Kind: ErrOutOfBounds, Tensor: tm.Name, Details: "outside data section"}
	}
	raw := data[tm.Offset : tm.Offset+tm.Size]
	values := make([]float64, len(raw)/float64Size)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*float64Size:]))
	}
	return tensor.TryFromSlice(values, tm.Shape...)
}

// LoadFile reads a checkpoint from path.
func LoadFile(path string, opts ReaderOptions) (*Checkpoint, error) {
	//nolint:gosec // G304: loading a user-chosen checkpoint is the point.
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "serialization: open checkpoint")
	}
	defer func() { _ = f.Close() }()
	return ReadCheckpoint(bufio.NewReader(f), opts)
}
