// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float64 tensors used for parameters,
// gradients and updater state.
//
// # Overview
//
// A Dense tensor owns a flat row-major []float64 and a Shape. Arithmetic
// methods work in place and return the receiver so they can be chained:
//
//	g := tensor.FromSlice([]float64{3, 4})
//	g.Scale(0.5).AddConst(1) // [2.5, 3]
//
// A network's parameters travel between driver and workers as one flat
// vector; Concat and SplitInto convert between that vector and the
// per-layer tensors.
package tensor
