// Package errors defines the typed error taxonomy shared by the
// datastore and work-queue adapters (spec §7).
package errors

import "fmt"

// Kind classifies a ZeroGError.
type Kind string

const (
	// Datastore kinds.
	KindCASMismatch Kind = "CAS_MISMATCH"
	KindLocked      Kind = "LOCKED"
	KindTimeout     Kind = "TIMEOUT"
	KindNotFound    Kind = "NOT_FOUND"
	KindExists      Kind = "EXISTS"

	// Queue kinds.
	KindSocketError    Kind = "SOCKET_ERROR"
	KindReserveTimeout Kind = "RESERVE_TIMEOUT"

	// General.
	KindInvalid  Kind = "INVALID"
	KindInternal Kind = "INTERNAL"
)

// ZeroGError is the concrete error type carried through the datastore,
// queue, and job layers.
type ZeroGError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ZeroGError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ZeroGError) Unwrap() error { return e.Err }

// Is supports errors.Is comparisons against sentinels constructed with
// the same Kind (message and wrapped error are ignored).
func (e *ZeroGError) Is(target error) bool {
	t, ok := target.(*ZeroGError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates a ZeroGError with no wrapped cause.
func New(kind Kind, message string) error {
	return &ZeroGError{Kind: kind, Message: message}
}

// Wrap creates a ZeroGError wrapping an existing error.
func Wrap(kind Kind, message string, err error) error {
	return &ZeroGError{Kind: kind, Message: message, Err: err}
}

// Sentinels compared with errors.Is. Only Kind participates in equality.
var (
	ErrCASMismatch     = &ZeroGError{Kind: KindCASMismatch, Message: "cas mismatch"}
	ErrLocked          = &ZeroGError{Kind: KindLocked, Message: "record locked"}
	ErrTimeout         = &ZeroGError{Kind: KindTimeout, Message: "operation timed out"}
	ErrNotFound        = &ZeroGError{Kind: KindNotFound, Message: "not found"}
	ErrExists          = &ZeroGError{Kind: KindExists, Message: "already exists"}
	ErrSocketError     = &ZeroGError{Kind: KindSocketError, Message: "queue socket error"}
	ErrReserveTimeout  = &ZeroGError{Kind: KindReserveTimeout, Message: "reserve timed out"}
)

// KindOf extracts the Kind from err if it is (or wraps) a *ZeroGError.
func KindOf(err error) (Kind, bool) {
	var zerr *ZeroGError
	for err != nil {
		if z, ok := err.(*ZeroGError); ok {
			zerr = z
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if zerr == nil {
		return "", false
	}
	return zerr.Kind, true
}
