// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind categorizes the errors of this package.
type ErrorKind uint8

const (
	// ErrConfig indicates an invalid description, such as
	// duplicate binding indices.
	ErrConfig ErrorKind = iota

	// ErrCompat indicates that a shader is not compatible
	// with the resource layout it is used with.
	ErrCompat

	// ErrNative indicates a failure of the native API.
	ErrNative
)

// String returns the name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrConfig:
		return "config"
	case ErrCompat:
		return "compat"
	case ErrNative:
		return "native"
	}
	return "unknown"
}

// Error is the error type returned by operations of
// this package. Use errors.Cause to retrieve it from
// wrapped errors.
type Error struct {
	Kind ErrorKind
	// Op is the operation that failed.
	Op  string
	Msg string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	s := fmt.Sprintf("d3d12 %s: %s: %s", e.Kind, e.Op, e.Msg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's
// chain, and false if there is none.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func configErr(op, format string, args ...any) error {
	return &Error{Kind: ErrConfig, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func compatErr(op, format string, args ...any) error {
	return &Error{Kind: ErrCompat, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func nativeErr(op string, err error, format string, args ...any) error {
	return &Error{Kind: ErrNative, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// ErrNoCompiler means that a DXIL shader had to be
// reflected or remapped but no DXCompiler was provided.
var ErrNoCompiler = errors.New("d3d12: DXIL remapping requires a DXCompiler")
