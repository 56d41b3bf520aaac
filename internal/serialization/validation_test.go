package serialization

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func meta(name string, offset int64, n int) TensorMeta {
	return TensorMeta{Name: name, DType: DTypeFloat64, Shape: []int{n}, Offset: offset, Size: int64(n) * 8}
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name    string
		tensors []TensorMeta
		size    int64
		want    error
	}{
		{"adjacent", []TensorMeta{meta("a", 0, 2), meta("b", 16, 2)}, 32, nil},
		{"unsorted", []TensorMeta{meta("b", 16, 2), meta("a", 0, 2)}, 32, nil},
		{"overlap by one byte", []TensorMeta{meta("a", 0, 2), {Name: "b", Offset: 15, Size: 8}}, 32, ErrOffsetOverlap},
		{"out of bounds", []TensorMeta{meta("a", 0, 5)}, 32, ErrOutOfBounds},
		{"negative offset", []TensorMeta{{Name: "a", Offset: -8, Size: 8}}, 32, ErrNegativeOffset},
		{"negative size", []TensorMeta{{Name: "a", Offset: 0, Size: -1}}, 32, ErrNegativeOffset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.size)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestValidateTensorOffsets_TooMany(t *testing.T) {
	err := ValidateTensorOffsets(make([]TensorMeta, MaxTensorCount+1), 0)
	assert.True(t, errors.Is(err, ErrTooManyTensors))
}

func TestValidateTensorName(t *testing.T) {
	for _, name := range []string{"params", "updater.0.W.m", "updater.12.b.msdx"} {
		assert.NoError(t, ValidateTensorName(name), name)
	}
	for _, name := range []string{"", "../etc/passwd", "a/b", `a\b`, "a\x00b", strings.Repeat("x", MaxTensorNameLen+1)} {
		assert.True(t, errors.Is(ValidateTensorName(name), ErrInvalidTensorName), "%q", name)
	}
}

func TestValidateTensorLayout(t *testing.T) {
	assert.NoError(t, ValidateTensorLayout(TensorMeta{Name: "w", DType: DTypeFloat64, Shape: []int{2, 3}, Size: 48}))

	for _, tm := range []TensorMeta{
		{Name: "w", DType: "float32", Shape: []int{2}, Size: 16},
		{Name: "w", DType: DTypeFloat64, Shape: []int{2, 3}, Size: 40},
		{Name: "w", DType: DTypeFloat64, Shape: []int{0}, Size: 0},
	} {
		assert.True(t, errors.Is(ValidateTensorLayout(tm), ErrInvalidLayout), "%+v", tm)
	}
}

func TestValidateHeader_Levels(t *testing.T) {
	overlapping := &Header{Tensors: []TensorMeta{meta("a", 0, 2), meta("b", 8, 2)}}

	assert.True(t, errors.Is(ValidateHeader(overlapping, 32, ValidationStrict), ErrOffsetOverlap))
	assert.NoError(t, ValidateHeader(overlapping, 32, ValidationNormal))
	assert.NoError(t, ValidateHeader(overlapping, 32, ValidationNone))

	duplicate := &Header{Tensors: []TensorMeta{meta("a", 0, 1), meta("a", 8, 1)}}
	assert.True(t, errors.Is(ValidateHeader(duplicate, 16, ValidationNormal), ErrInvalidTensorName))
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Kind: ErrOffsetOverlap, Tensor: "a", Tensor2: "b", Details: "x"}
	assert.Contains(t, err.Error(), `"a" and "b"`)
	assert.Contains(t, (&ValidationError{Kind: ErrOutOfBounds, Tensor: "a"}).Error(), `tensor "a"`)
	assert.Equal(t, ErrTooManyTensors.Error()+": n", (&ValidationError{Kind: ErrTooManyTensors, Details: "n"}).Error())
}

func TestChecksum(t *testing.T) {
	a := ComputeChecksum([]byte("test data"))
	assert.Equal(t, a, ComputeChecksum([]byte("test data")))
	assert.NotEqual(t, a, ComputeChecksum([]byte("different data")))
	assert.NoError(t, ValidateChecksum(a, a))
	assert.True(t, errors.Is(ValidateChecksum(a, [ChecksumSize]byte{}), ErrChecksumMismatch))
}
