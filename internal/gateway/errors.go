// ABOUTME: Error kinds returned by the remote gateway client
// ABOUTME: Sentinel kinds match with errors.Is; Error carries status and server detail

package gateway

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is(err, gateway.ErrAuthFailure).
var (
	ErrAuthFailure       = errors.New("authentication failed")
	ErrNetworkFailure    = errors.New("request did not complete")
	ErrRemoteRejection   = errors.New("request rejected by server")
	ErrMalformedResponse = errors.New("malformed response")
	ErrValidation        = errors.New("invalid request")
)

// Error describes a failed gateway operation.
type Error struct {
	Kind   error  // one of the Err* kinds above
	Op     string // e.g. "POST /chat"
	Status int    // HTTP status, 0 when no response arrived
	Detail string // server-provided detail message, if any
	Err    error  // underlying cause
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail returns the server-provided message for display, falling back to
// the error text.
func Detail(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.Detail != "" {
		return gwErr.Detail
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func validationError(op, detail string) error {
	return &Error{Kind: ErrValidation, Op: op, Detail: detail}
}
