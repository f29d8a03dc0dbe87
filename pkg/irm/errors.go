// Package irm holds the types shared by every stage of the IRM audio codec:
// the error kinds returned across the pipeline and the stereo decision tag
// persisted in the container.
package irm

import (
	"errors"
	"fmt"
)

// Error kinds returned by the codec. Every stage failure wraps exactly one of
// these so callers can classify with errors.Is.
var (
	// ErrInvalidInput indicates the caller handed the codec something it cannot
	// process: an odd-length stereo buffer, an empty signal, a bad level count.
	// Recommended action: fix the input, do not retry.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCorruptContainer indicates a container that does not decode: short
	// header, declared lengths past the end of data, symbol count mismatch.
	// There is no resynchronization, so the whole decode fails.
	ErrCorruptContainer = errors.New("corrupt container")

	// ErrUnsupportedFormat indicates audio the codec does not handle, such as a
	// channel count other than 1 or 2 or an unusual bit depth.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrIOFailure indicates a file could not be opened, read, written or
	// committed.
	ErrIOFailure = errors.New("i/o failure")
)

// Error wraps an underlying cause with the operation that failed and its kind.
type Error struct {
	Op         string // operation that failed, e.g. "huffman.Decode"
	Kind       error  // one of the Err* kinds above
	Underlying error  // optional cause
	Message    string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Underlying != nil {
		msg = e.Underlying.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%v: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, msg)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Underlying == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Underlying}
}

// Errorf creates an error of the given kind for op with a formatted message.
func Errorf(kind error, op, format string, args ...any) error {
	return &Error{
		Op:      op,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap classifies an underlying error as kind. A nil err yields nil.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Op:         op,
		Kind:       kind,
		Underlying: err,
	}
}

// IsInvalidInput reports whether err was caused by bad caller input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsCorrupt reports whether err was caused by an undecodable container.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorruptContainer)
}

// IsUnsupported reports whether err was caused by an unsupported format.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat)
}

// IsIOFailure reports whether err was caused by a file system failure.
func IsIOFailure(err error) bool {
	return errors.Is(err, ErrIOFailure)
}
