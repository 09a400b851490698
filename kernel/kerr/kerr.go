// Package kerr implements the error taxonomy of spec.md §7. Every VFS
// path and every FAT32 operation returns one of these codes wrapped in an
// *Error so that callers can both errors.Is against the taxonomy and
// errors.Unwrap to the underlying cause for logging.
package kerr

import (
	"errors"
	"fmt"
)

// Code is the kernel-wide error taxonomy. Positive outcomes are plain
// Go values (nonnegative ints, byte counts); only failures use Code.
type Code int

const (
	// Error is a generic failure: I/O, inconsistent state.
	Error Code = iota + 1
	// NotFound means a path, mount, process, or symbol is missing.
	NotFound
	// NoSpace means a table, disk, or handle table is exhausted.
	NoSpace
	// InvalidPath means normalisation failed, or the path is too long or malformed.
	InvalidPath
	// NotMounted means no mount covers the requested path.
	NotMounted
	// AlreadyMounted means the mount point is already taken.
	AlreadyMounted
	// OutOfRange is the corrected spec.md §9 behavior for
	// next_cluster(c) when c >= total_clusters — distinct from a
	// legitimate end-of-chain so callers can't mistake one for the other.
	OutOfRange
)

// Error lets a bare Code be used directly as an errors.Is target, e.g.
// errors.Is(err, kerr.NotFound).
func (c Code) Error() string {
	return c.String()
}

func (c Code) String() string {
	switch c {
	case Error:
		return "Error"
	case NotFound:
		return "NotFound"
	case NoSpace:
		return "NoSpace"
	case InvalidPath:
		return "InvalidPath"
	case NotMounted:
		return "NotMounted"
	case AlreadyMounted:
		return "AlreadyMounted"
	case OutOfRange:
		return "OutOfRange"
	}
	return "UnknownError"
}

// Errno is the original kernel's negative-integer convention, preserved
// for the syscall boundary (spec.md §4.3/§7): each Code maps to a small
// negative number, Success (0) for the absence of error.
func (c Code) Errno() int {
	return -int(c)
}

// Error carries a Code plus an optional wrapped cause and context.
type Error struct {
	Code  Code
	Msg   string
	Cause error
}

func New(c Code, msg string) *Error {
	return &Error{Code: c, Msg: msg}
}

func Wrap(c Code, msg string, cause error) *Error {
	return &Error{Code: c, Msg: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is lets errors.Is(err, kerr.NotFound) work directly against a bare Code,
// by comparing codes rather than requiring an identical *Error pointer.
func (e *Error) Is(target error) bool {
	if oc, ok := target.(Code); ok {
		return e != nil && e.Code == oc
	}
	var oe *Error
	if errors.As(target, &oe) {
		return e != nil && oe != nil && e.Code == oe.Code
	}
	return false
}

// CodeOf extracts the Code carried by err, or Error if err is non-nil but
// not a *Error, or 0 if err is nil.
func CodeOf(err error) Code {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Error
}
