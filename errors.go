package dmmtrie

import (
	"errors"
	"fmt"
)

// Error is a structured DMMTrie/LSVPS error: an Error/ErrorCode split so
// callers can branch on Code() without parsing strings.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // wrapped error, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dmmtrie: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("dmmtrie: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode enumerates the error kinds DMMTrie/LSVPS can raise.
type ErrorCode int

const (
	// Success is the zero value; never wrapped in an *Error.
	Success ErrorCode = iota

	// ErrOutdatedVersion: Put called with version < current_version for
	// that pid. Recovered locally by the caller (Put returns false).
	ErrOutdatedVersion

	// ErrKeyNotFound: Get found no leaf, or LoadPage returned no page.
	// Recovered locally (Get returns a nil slice).
	ErrKeyNotFound

	// ErrPageOverflow: a DeltaPage serialization would exceed PageSize.
	ErrPageOverflow

	// ErrIO: a file open/read/write/seek call failed.
	ErrIO

	// ErrCorruptedBlock: an index/lookup block's declared count exceeds
	// its capacity, a block exceeds its fixed size, or a page failed to
	// deserialize.
	ErrCorruptedBlock

	// ErrMissingBasePage: a delta chain bottomed out at a non-sentinel
	// key LSVPS could not find. Violates the delta-chain invariant.
	ErrMissingBasePage

	// ErrChildOutOfRange: AttachChild/GetChildSlot/SetChildSlot called with
	// an index outside [0, DMM_NODE_FANOUT).
	ErrChildOutOfRange

	// ErrChildAbsent: GetChildSlot called on a slot whose bitmap bit is unset.
	ErrChildAbsent
)

var errorMessages = map[ErrorCode]string{
	Success:            "success",
	ErrOutdatedVersion: "version older than current version",
	ErrKeyNotFound:     "key not found",
	ErrPageOverflow:    "page serialization exceeds page size",
	ErrIO:              "I/O error",
	ErrCorruptedBlock:  "corrupted index or lookup block",
	ErrMissingBasePage: "delta chain has no base page",
	ErrChildOutOfRange: "child index out of range",
	ErrChildAbsent:     "child slot is not populated",
}

// NewError creates an *Error for code with its standard message.
func NewError(code ErrorCode) *Error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = fmt.Sprintf("unknown error code %d", code)
	}
	return &Error{Code: code, Message: msg}
}

// WrapError creates an *Error for code, wrapping err.
func WrapError(code ErrorCode, err error) *Error {
	e := NewError(code)
	e.Err = err
	return e
}

// Code returns the ErrorCode carried by err, or ErrIO if err is not a
// *Error (an unclassified failure is treated as an I/O-class error rather
// than silently reported as Success).
func Code(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrIO
}

// IsKeyNotFound reports whether err is (or wraps) ErrKeyNotFound.
func IsKeyNotFound(err error) bool {
	return Code(err) == ErrKeyNotFound
}

// IsOutdatedVersion reports whether err is (or wraps) ErrOutdatedVersion.
func IsOutdatedVersion(err error) bool {
	return Code(err) == ErrOutdatedVersion
}

// IsCorrupted reports whether err indicates on-disk corruption.
func IsCorrupted(err error) bool {
	switch Code(err) {
	case ErrCorruptedBlock, ErrMissingBasePage:
		return true
	default:
		return false
	}
}
