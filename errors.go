package gpulib

import (
	"errors"
	"fmt"
)

// Error kinds. Every sentinel below matches exactly one of them with
// errors.Is.
var (
	// ErrConfiguration groups errors caused by how a resource was sized.
	ErrConfiguration = errors.New("gpulib: configuration error")

	// ErrValidation groups errors caused by arguments that do not fit the
	// resources they refer to.
	ErrValidation = errors.New("gpulib: validation error")

	// ErrCompile matches every *CompileError.
	ErrCompile = errors.New("gpulib: shader compilation failed")

	// ErrLink matches every *LinkError.
	ErrLink = errors.New("gpulib: pipeline link failed")
)

// Configuration errors.
var (
	ErrArenaExhausted    = kindError(ErrConfiguration, "gpulib: arena exhausted")
	ErrInvalidDimensions = kindError(ErrConfiguration, "gpulib: invalid dimensions")
)

// Validation errors.
var (
	ErrOutOfRange        = kindError(ErrValidation, "gpulib: range out of bounds")
	ErrFormatMismatch    = kindError(ErrValidation, "gpulib: format mismatch")
	ErrDimensionMismatch = kindError(ErrValidation, "gpulib: dimension mismatch")
	ErrInvalidHandle     = kindError(ErrValidation, "gpulib: invalid handle")
	ErrInvalidState      = kindError(ErrValidation, "gpulib: invalid state")
	ErrNotPopulated      = kindError(ErrValidation, "gpulib: image level 0 not populated")
	ErrFeedbackMismatch  = kindError(ErrValidation, "gpulib: capture variables do not match feedback target")
)

// ErrClosed is returned by every Context method after Close.
var ErrClosed = errors.New("gpulib: context closed")

type sentinel struct {
	msg  string
	kind error
}

func kindError(kind error, msg string) error { return &sentinel{msg: msg, kind: kind} }

func (e *sentinel) Error() string { return e.msg }
func (e *sentinel) Unwrap() error { return e.kind }

// RangeError reports a byte or element range that does not fit its
// storage. It matches ErrOutOfRange.
type RangeError struct {
	What   string
	Offset uint64
	Length uint64
	Limit  uint64
	Align  uint64
}

func (e *RangeError) Error() string {
	if e.Align > 1 && (e.Offset%e.Align != 0 || e.Length%e.Align != 0) {
		return fmt.Sprintf("%v: %s [%d, +%d) not aligned to %d", ErrOutOfRange, e.What, e.Offset, e.Length, e.Align)
	}
	return fmt.Sprintf("%v: %s [%d, +%d) outside [0, %d)", ErrOutOfRange, e.What, e.Offset, e.Length, e.Limit)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// CompileError is a shader stage compilation failure. Log is the device
// diagnostic, verbatim.
type CompileError struct {
	Kind  StageKind
	Label string
	Log   string
}

func (e *CompileError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("gpulib: compile %s stage %q: %s", e.Kind, e.Label, e.Log)
	}
	return fmt.Sprintf("gpulib: compile %s stage: %s", e.Kind, e.Log)
}

// Is reports whether target is ErrCompile.
func (e *CompileError) Is(target error) bool { return target == ErrCompile }

// LinkError is a pipeline link failure.
type LinkError struct {
	Log string
}

func (e *LinkError) Error() string { return "gpulib: link pipeline: " + e.Log }

// Is reports whether target is ErrLink.
func (e *LinkError) Is(target error) bool { return target == ErrLink }

// OpError wraps a device failure raised while executing one Op of a
// Submit batch.
type OpError struct {
	Index int
	ID    int
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("gpulib: op %d (id %d): %v", e.Index, e.ID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
