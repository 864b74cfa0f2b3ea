package pipeline

import (
	"context"
	"errors"
	"fmt"

	"transportetl/internal/transformer/builtin"
)

// MissingInputError reports that the raw input is absent or unreadable.
type MissingInputError struct {
	Path string
	Err  error
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("input %s not available: %v", e.Path, e.Err)
}

func (e *MissingInputError) Unwrap() error { return e.Err }

// TypeCoercionError reports a required column value that could not be
// converted. It is deterministic: rerunning on the same input fails again.
type TypeCoercionError = builtin.TypeCoercionError

// TransformError wraps any failure of the transform step. Stage is one of
// "open", "read", "clean" or "write".
type TransformError struct {
	Stage string
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Stage, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// LoadError wraps any failure of the load step.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ErrorKind classifies step failures for the retry policy.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMissingInput
	KindTypeCoercion
	KindTransform
	KindLoad
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissingInput:
		return "missing_input"
	case KindTypeCoercion:
		return "type_coercion"
	case KindTransform:
		return "transform"
	case KindLoad:
		return "load"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt could succeed. Coercion errors
// repeat on the same input and cancellation is final.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTypeCoercion, KindCanceled:
		return false
	default:
		return true
	}
}

// KindOf returns the most specific kind found in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var (
		tce *TypeCoercionError
		mie *MissingInputError
		te  *TransformError
		le  *LoadError
	)
	switch {
	case errors.As(err, &tce):
		return KindTypeCoercion
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &mie):
		return KindMissingInput
	case errors.As(err, &te):
		return KindTransform
	case errors.As(err, &le):
		return KindLoad
	default:
		return KindUnknown
	}
}
