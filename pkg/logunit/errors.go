package logunit

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure taxonomy.
var (
	// ErrOverwrite is returned by Append when the target address is
	// already present in a segment's known or trimmed set.
	ErrOverwrite = errors.New("logunit: overwrite")

	// ErrCorruption signals a checksum mismatch or a malformed frame.
	// It is fatal for the segment that produced it.
	ErrCorruption = errors.New("logunit: data corruption")

	// ErrVersionMismatch is fatal during startup verification.
	ErrVersionMismatch = errors.New("logunit: version mismatch")

	// ErrUnverifiedSegment is returned when the engine requires
	// checksum verification but an existing segment's header says it
	// was written without verification.
	ErrUnverifiedSegment = errors.New("logunit: segment written without checksum verification")

	// ErrEngineClosed is returned by any operation invoked after Close.
	ErrEngineClosed = errors.New("logunit: engine closed")

	// ErrStreamSegmentsDisabled is returned when a stream-tagged
	// LogAddress is used against an Engine configured with
	// StreamSegmentsEnabled false.
	ErrStreamSegmentsDisabled = errors.New("logunit: stream-tagged segments disabled")
)

// OpError provides structured error information for engine operations,
// grounded on the StorageError/ErrorBuilder shape.
type OpError struct {
	Op      string
	Segment string
	Address LogAddress
	Cause   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s (segment %s): %v", e.Op, e.Address, e.Segment, e.Cause)
}

func (e *OpError) Unwrap() error {
	return e.Cause
}

func (e *OpError) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

// ErrorBuilder is a fluent constructor for OpError, grounded on
// storage.ErrorBuilder.
type ErrorBuilder struct {
	err OpError
}

// NewOpError starts building an OpError for the given operation.
func NewOpError(op string) *ErrorBuilder {
	return &ErrorBuilder{err: OpError{Op: op}}
}

func (b *ErrorBuilder) Address(a LogAddress) *ErrorBuilder {
	b.err.Address = a
	return b
}

func (b *ErrorBuilder) Segment(path string) *ErrorBuilder {
	b.err.Segment = path
	return b
}

func (b *ErrorBuilder) Cause(err error) *ErrorBuilder {
	b.err.Cause = err
	return b
}

func (b *ErrorBuilder) Err() error {
	return &b.err
}

// IsOverwrite reports whether err (or its cause chain) is ErrOverwrite.
func IsOverwrite(err error) bool {
	return errors.Is(err, ErrOverwrite)
}

// IsCorruption reports whether err (or its cause chain) is ErrCorruption.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrCorruption)
}
