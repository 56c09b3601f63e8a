// Package errors provides a structured error type with wrapping and metadata
package errors

// Always import the project errors package as perr (platform/errors)

import (
	"context"
	stderrs "errors"
	"fmt"
)

// ErrorCode classifies failures across the sync run
// Values are stable because they are written into the run log; add sparingly
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodePanic is for recovered panics
	ErrorCodePanic

	// ErrorCodeInvalidArgument is for bad input parameters
	ErrorCodeInvalidArgument

	// ErrorCodeValidation is for option validation failures
	ErrorCodeValidation

	// ErrorCodeStreamIO is for read failures on the input export; fatal for the run
	ErrorCodeStreamIO

	// ErrorCodeRecordParse is for a single record fragment that is not well-formed XML
	ErrorCodeRecordParse

	// ErrorCodeMissingGroupKey is for a record without a usable country code
	ErrorCodeMissingGroupKey

	// ErrorCodeFilesystem is for directory or file create/write failures; fatal for the run
	ErrorCodeFilesystem

	// ErrorCodeDownload is for failures fetching the export
	ErrorCodeDownload

	// ErrorCodeInterrupted is for runs cancelled by a signal
	ErrorCodeInterrupted
)

var codeNames = map[ErrorCode]string{
	ErrorCodeUnknown:         "unknown",
	ErrorCodePanic:           "panic",
	ErrorCodeInvalidArgument: "invalid_argument",
	ErrorCodeValidation:      "validation",
	ErrorCodeStreamIO:        "stream_io",
	ErrorCodeRecordParse:     "record_parse",
	ErrorCodeMissingGroupKey: "missing_group_key",
	ErrorCodeFilesystem:      "filesystem",
	ErrorCodeDownload:        "download",
	ErrorCodeInterrupted:     "interrupted",
}

// String returns the log-friendly name of the code
func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code_%d", uint16(c))
}

// Fatal reports whether errors with this code abort a run
// Record-level codes are recovered by skipping the record
func (c ErrorCode) Fatal() bool {
	switch c {
	case ErrorCodeRecordParse, ErrorCodeMissingGroupKey:
		return false
	default:
		return true
	}
}

// Exit statuses used by the CLI
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInterrupted = 130
)

// ExitCode turns any error into a process exit status
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if IsCode(err, ErrorCodeInterrupted) || stderrs.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	return ExitFailure
}

// Error is the structured error type with wrapping and metadata
// msg is human/developer facing; code is machine facing
// field is optional (for validation); op is optional operation tag
// orig is the wrapped cause
type Error struct {
	orig  error
	msg   string
	code  ErrorCode
	field string
	op    string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending field, if any
func (e *Error) Field() string { return e.field }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// Root returns the deepest wrapped cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// CodeOf extracts an ErrorCode from any error, defaulting to Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Mutators (copy-on-write)

// WithField attaches a field to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithField(err error, field string) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return err
}

// WithOp attaches an operation label to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// Constructors

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// WrapIf wraps only when err != nil (helper for 1-liners)
func WrapIf(err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, code, msg)
}

// Sugar

// InvalidArgf returns an invalid argument error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// StreamIOf wraps an input read failure
func StreamIOf(orig error, format string, a ...any) error {
	return Wrapf(orig, ErrorCodeStreamIO, format, a...)
}

// Filesystemf wraps an output filesystem failure
func Filesystemf(orig error, format string, a ...any) error {
	return Wrapf(orig, ErrorCodeFilesystem, format, a...)
}

// Downloadf returns a download error
func Downloadf(format string, a ...any) error { return Newf(ErrorCodeDownload, format, a...) }

// Interrupted wraps a context cancellation so callers can map it to an exit status
func Interrupted(orig error) error { return Wrap(orig, ErrorCodeInterrupted, "interrupted") }

// PanicErrf returns a panic error
func PanicErrf(format string, a ...any) error { return Newf(ErrorCodePanic, format, a...) }
