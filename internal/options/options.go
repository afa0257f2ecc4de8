package options

import (
	"fmt"

	"github.com/arloliu/wavemem/errs"
)

// Option represents a functional option for configuring any type T.
type Option[T any] interface {
	apply(T) error
}

// Func is a generic functional option that wraps a function.
type Func[T any] struct {
	applyFunc func(T) error
}

func (f *Func[T]) apply(target T) error {
	return f.applyFunc(target)
}

// New creates a new functional option from a function.
func New[T any](fn func(T) error) *Func[T] {
	return &Func[T]{applyFunc: fn}
}

// NoError creates a functional option from a function that can't fail.
func NoError[T any](fn func(T)) *Func[T] {
	return &Func[T]{
		applyFunc: func(target T) error {
			fn(target)
			return nil
		},
	}
}

// Apply applies options to target in order and stops at the first error.
func Apply[T any](target T, opts ...Option[T]) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(target); err != nil {
			return err
		}
	}

	return nil
}

// InRange returns ErrInvalidOption when v is outside [lo, hi].
// A negative hi means no upper bound.
func InRange(name string, v, lo, hi int) error {
	if v < lo || (hi >= 0 && v > hi) {
		if hi < 0 {
			return fmt.Errorf("%w: %s must be >= %d, got %d", errs.ErrInvalidOption, name, lo, v)
		}

		return fmt.Errorf("%w: %s must be in [%d, %d], got %d", errs.ErrInvalidOption, name, lo, hi, v)
	}

	return nil
}
