// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/scaleout/internal/tensor"
)

// Dense is a dense float64 tensor.
type Dense = tensor.Dense

// Shape represents tensor dimensions.
type Shape = tensor.Shape

// New creates a zero tensor with the given shape.
func New(shape ...int) *Dense {
	return tensor.New(shape...)
}

// Zeros is an alias of New.
func Zeros(shape ...int) *Dense {
	return tensor.Zeros(shape...)
}

// Full creates a tensor filled with value.
func Full(value float64, shape ...int) *Dense {
	return tensor.Full(value, shape...)
}

// FromSlice creates a tensor from a copy of data. It panics when shape does
// not match len(data).
func FromSlice(data []float64, shape ...int) *Dense {
	return tensor.FromSlice(data, shape...)
}

// TryFromSlice is FromSlice returning an error instead of panicking.
func TryFromSlice(data []float64, shape ...int) (*Dense, error) {
	return tensor.TryFromSlice(data, shape...)
}

// Concat flattens and joins tensors into one vector.
func Concat(ts ...*Dense) *Dense {
	return tensor.Concat(ts...)
}

// SplitInto copies consecutive chunks of flat into dsts.
func SplitInto(flat *Dense, dsts ...*Dense) error {
	return tensor.SplitInto(flat, dsts...)
}
