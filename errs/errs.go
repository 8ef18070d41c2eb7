// Package errs defines the stable, numeric error taxonomy (spec.md §6, §7)
// shared by every layer of the library: AIO completions, pipe/endpoint
// lifecycle, and all three stream transports carry one of these codes
// rather than an ad-hoc error string, so that a caller written against one
// transport gets the same failure classification against any other.
package errs

import "fmt"

// Code is a stable, binding-independent error classification. Values never
// change meaning or number once assigned; new codes are only ever appended.
type Code int

const (
	// Lifecycle
	Closed Code = iota + 1
	TimedOut
	Canceled
	Stopped

	// Resource exhaustion
	NoMemory
	NoFiles

	// Configuration, returned synchronously and never closes a live pipe
	InvalidAddress
	InvalidArgument
	Busy
	NotSupported

	// Per-pipe fatal
	ProtocolError
	ConnectionShut
	ConnectionRefused
	MessageTooBig

	// Security
	PermissionDenied

	// Per-endpoint fatal
	AlreadyInUse
)

var names = map[Code]string{
	Closed:            "closed",
	TimedOut:          "timed-out",
	Canceled:          "canceled",
	Stopped:           "stopped",
	NoMemory:          "no-memory",
	NoFiles:           "no-files",
	InvalidAddress:    "invalid-address",
	InvalidArgument:   "invalid-argument",
	Busy:              "busy",
	NotSupported:      "not-supported",
	ProtocolError:     "protocol-error",
	ConnectionShut:    "connection-shut",
	ConnectionRefused: "connection-refused",
	MessageTooBig:     "message-too-big",
	PermissionDenied:  "permission-denied",
	AlreadyInUse:      "already-in-use",
}

func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("errs.Code(%d)", int(c))
}

// Error wraps a Code with optional local context, and satisfies the error
// interface. Providers finish AIOs with a Code (§7: "providers never raise
// exceptions"); Error is how that Code is handed back to a normal Go caller
// at an API boundary that returns error.
type Error struct {
	Code    Code
	Context string
	Wrapped error
}

func (e *Error) Error() string {
	switch {
	case e.Wrapped != nil && e.Context != "":
		return fmt.Sprintf("%s: %s: %v", e.Context, e.Code, e.Wrapped)
	case e.Wrapped != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Wrapped)
	case e.Context != "":
		return fmt.Sprintf("%s: %s", e.Context, e.Code)
	default:
		return e.Code.String()
	}
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds an *Error for code with no further context.
func New(code Code) *Error { return &Error{Code: code} }

// Wrap builds an *Error attributing context (typically an operation name or
// address) to an underlying Go error, tagged with code.
func Wrap(code Code, context string, err error) *Error {
	return &Error{Code: code, Context: context, Wrapped: err}
}

// Is reports whether err carries the given Code, unwrapping as necessary.
func Is(err error, code Code) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Code == code
}
