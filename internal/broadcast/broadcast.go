// Package broadcast wraps driver state that is shared read-only by many tasks.
//
// Tasks co-located in one process receive the same instance. A Value never
// hands that instance out; callers only get deep copies, so no task can write
// into state another task is reading.
package broadcast

import "reflect"

// Cloner is implemented by types that can deep-copy themselves.
type Cloner[T any] interface {
	Clone() T
}

// Value is a read-only broadcast value.
type Value[T Cloner[T]] struct {
	v     T
	isNil bool
}

// New wraps v. The caller must not mutate v afterwards.
func New[T Cloner[T]](v T) *Value[T] {
	return &Value[T]{v: v, isNil: isNil(any(v))}
}

// Clone returns a deep copy of the wrapped value.
func (b *Value[T]) Clone() T {
	if b == nil || b.isNil {
		var zero T
		return zero
	}
	return b.v.Clone()
}

// IsNil reports whether nothing, or a nil pointer, was broadcast.
func (b *Value[T]) IsNil() bool {
	return b == nil || b.isNil
}

// isNil also catches typed nil pointers, which compare non-nil as any.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
