package apiclient

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindValidation Kind = iota + 1 // rejected before any request
	KindNetwork                    // no response received
	KindServer                     // non-2xx or envelope ok=false
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	}
	return "unknown"
}

// MsgUnreachable is shown for every network failure.
const MsgUnreachable = "cannot reach server"

// Error carries the best human-readable message for the failing call.
// For server errors Message is the envelope message verbatim when one was sent.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Message extracts the user-facing text from any error returned by this package.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "unexpected error"
}

func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

func IsUnauthorized(err error) bool { return hasStatus(err, http.StatusUnauthorized) }

func hasStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindServer && e.Status == status
}
