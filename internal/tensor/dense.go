// Package tensor provides the dense float64 tensor used for parameters, gradients
// and updater state.
//
// Storage is a flat row-major slice; arithmetic is delegated to gonum's floats
// package. In-place methods mutate the receiver and return it so calls can be
// chained:
//
//	g := tensor.FromSlice([]float64{3, 4}, 2)
//	g.Scale(0.5).Clip(1.5)
package tensor

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Dense is a dense float64 tensor.
type Dense struct {
	shape Shape
	data  []float64
}

// New allocates a zero-filled tensor with the given shape.
func New(shape ...int) *Dense {
	s := Shape(shape).Clone()
	return &Dense{shape: s, data: make([]float64, s.NumElements())}
}

// Zeros is an alias of New kept for readability at call sites.
func Zeros(shape ...int) *Dense {
	return New(shape...)
}

// Full allocates a tensor filled with value.
func Full(value float64, shape ...int) *Dense {
	t := New(shape...)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// FromSlice creates a tensor from data. The slice is copied.
//
// When shape is omitted the tensor is a vector of len(data).
func FromSlice(data []float64, shape ...int) *Dense {
	t, err := TryFromSlice(data, shape...)
	if err != nil {
		panic(err)
	}
	return t
}

// TryFromSlice is FromSlice returning an error instead of panicking on a length mismatch.
func TryFromSlice(data []float64, shape ...int) (*Dense, error) {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	s := Shape(shape).Clone()
	if s.NumElements() != len(data) {
		return nil, errors.Errorf("shape %v requires %d elements, but got %d", s, s.NumElements(), len(data))
	}
	d := make([]float64, len(data))
	copy(d, data)
	return &Dense{shape: s, data: d}, nil
}

// Shape returns the tensor's shape.
func (t *Dense) Shape() Shape {
	return t.shape.Clone()
}

// Len returns the total number of elements.
func (t *Dense) Len() int {
	return len(t.data)
}

// Data returns the backing slice. Writes through it mutate the tensor.
func (t *Dense) Data() []float64 {
	return t.data
}

// Clone returns a deep copy.
func (t *Dense) Clone() *Dense {
	if t == nil {
		return nil
	}
	d := make([]float64, len(t.data))
	copy(d, t.data)
	return &Dense{shape: t.shape.Clone(), data: d}
}

// Equal reports whether both tensors have the same shape and identical elements.
func (t *Dense) Equal(other *Dense) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.shape.Equal(other.shape) && floats.Equal(t.data, other.data)
}

// EqualApprox reports whether both tensors have the same shape and elements within tol.
func (t *Dense) EqualApprox(other *Dense, tol float64) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.shape.Equal(other.shape) && floats.EqualApprox(t.data, other.data, tol)
}

func (t *Dense) mustMatch(other *Dense, op string) {
	if len(t.data) != len(other.data) {
		panic(fmt.Sprintf("tensor: %s: length mismatch %d vs %d (shapes %v, %v)",
			op, len(t.data), len(other.data), t.shape, other.shape))
	}
}

// Scale multiplies every element by f in place.
func (t *Dense) Scale(f float64) *Dense {
	floats.Scale(f, t.data)
	return t
}

// Div divides every element by f in place.
func (t *Dense) Div(f float64) *Dense {
	floats.Scale(1/f, t.data)
	return t
}

// Add adds other element-wise in place.
func (t *Dense) Add(other *Dense) *Dense {
	t.mustMatch(other, "add")
	floats.Add(t.data, other.data)
	return t
}

// Sub subtracts other element-wise in place.
func (t *Dense) Sub(other *Dense) *Dense {
	t.mustMatch(other, "sub")
	floats.Sub(t.data, other.data)
	return t
}

// Mul multiplies by other element-wise in place.
func (t *Dense) Mul(other *Dense) *Dense {
	t.mustMatch(other, "mul")
	floats.Mul(t.data, other.data)
	return t
}

// AddScaled performs t += alpha * other in place.
func (t *Dense) AddScaled(alpha float64, other *Dense) *Dense {
	t.mustMatch(other, "add scaled")
	floats.AddScaled(t.data, alpha, other.data)
	return t
}

// AddConst adds c to every element in place.
func (t *Dense) AddConst(c float64) *Dense {
	floats.AddConst(c, t.data)
	return t
}

// Apply replaces every element x with fn(x).
func (t *Dense) Apply(fn func(float64) float64) *Dense {
	for i, v := range t.data {
		t.data[i] = fn(v)
	}
	return t
}

// Clip replaces every element whose absolute value exceeds threshold with
// ±threshold, keeping its sign. Elements within range are untouched.
func (t *Dense) Clip(threshold float64) *Dense {
	for i, v := range t.data {
		if math.Abs(v) > threshold {
			if v > 0 {
				t.data[i] = threshold
			} else {
				t.data[i] = -threshold
			}
		}
	}
	return t
}

// Norm2 returns the L2 norm.
func (t *Dense) Norm2() float64 {
	return floats.Norm(t.data, 2)
}

// Sum returns the sum of all elements.
func (t *Dense) Sum() float64 {
	return floats.Sum(t.data)
}

// Sign returns a new tensor holding -1, 0 or 1 per element.
func (t *Dense) Sign() *Dense {
	out := New(t.shape...)
	for i, v := range t.data {
		switch {
		case v > 0:
			out.data[i] = 1
		case v < 0:
			out.data[i] = -1
		}
	}
	return out
}

// String implements fmt.Stringer.
func (t *Dense) String() string {
	return fmt.Sprintf("Dense%v%v", []int(t.shape), t.data)
}

// Concat flattens ts into one vector, in order.
func Concat(ts ...*Dense) *Dense {
	n := 0
	for _, t := range ts {
		n += t.Len()
	}
	out := New(n)
	off := 0
	for _, t := range ts {
		off += copy(out.data[off:], t.data)
	}
	return out
}

// SplitInto copies consecutive ranges of flat into each destination tensor.
// The total length of dsts must equal flat.Len().
func SplitInto(flat *Dense, dsts ...*Dense) error {
	n := 0
	for _, d := range dsts {
		n += d.Len()
	}
	if n != flat.Len() {
		return errors.Errorf("split: flat vector has %d elements, destinations need %d", flat.Len(), n)
	}
	off := 0
	for _, d := range dsts {
		off += copy(d.data, flat.data[off:off+d.Len()])
	}
	return nil
}
