package serialization

import (
	"time"

	"github.com/born-ml/scaleout/internal/optim"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 2    // Fixed header with SHA-256 checksum
	HeaderAlignment = 64   // Tensor data starts on a 64-byte boundary
	FixedHeaderSize = 64   // 0x40 bytes
	ChecksumSize    = 32   // SHA-256
	ChecksumOffset  = 0x20 // Checksum position in the fixed header
	float64Size     = 8
)

// DTypeFloat64 is the only element type written.
const DTypeFloat64 = "float64"

// Flags for the .born format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // Updater state included
	FlagHasMetadata  uint32 = 1 << 2 // Custom metadata included
)

// Tensor names used in checkpoints.
const (
	ParamsTensor  = "params"
	updaterPrefix = "updater"
)

// Header represents the JSON header of a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta is the training state stored alongside the tensors.
type CheckpointMeta struct {
	Round     int             `json:"round"`                // Completed driver rounds
	Score     *float64        `json:"score,omitempty"`      // Score of the last round, nil if not finite
	BestScore *float64        `json:"best_score,omitempty"` // Running best score, nil if not finite
	Conf      string          `json:"conf"`                 // Network configuration JSON
	Updaters  [][]UpdaterMeta `json:"updaters,omitempty"`   // Per layer, per parameter
}

// UpdaterMeta describes one parameter's updater. State maps state keys to the
// names of tensors in the data section.
type UpdaterMeta struct {
	Param string            `json:"param"`
	Kind  optim.Kind        `json:"kind"`
	Hyper optim.Hyper       `json:"hyper"`
	State map[string]string `json:"state,omitempty"`
}

// TensorMeta describes a tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "updater.0.W.m")
	DType  string `json:"dtype"`  // Element type, always "float64"
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// padding returns the bytes needed to align pos to HeaderAlignment.
func padding(pos int64) int64 {
	return (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
}
