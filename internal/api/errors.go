package api

import (
	"errors"
	"fmt"
)

// Kind classifies a failed backend call. UI copy depends on the class, so
// the three-way split is part of the contract:
//
//   - KindAPI: the backend answered with an error payload; its message is
//     shown to the user verbatim.
//   - KindNetwork: the request went out but no usable response came back
//     (timeout, refused connection, dropped conn). Recoverable by retrying.
//   - KindRequest: the request could not even be built or sent.
type Kind int

const (
	KindAPI Kind = iota
	KindNetwork
	KindRequest
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindNetwork:
		return "network"
	case KindRequest:
		return "request"
	default:
		return "unknown"
	}
}

// Error is the uniform error returned by every Client method.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status for KindAPI, 0 otherwise
	Message string // Human-readable, safe to display
	Err     error  // Underlying cause, may be nil for KindAPI
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
	}
	return "api: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// AsError unwraps err into an *Error if it is one.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNetwork reports whether err is a network-class failure.
func IsNetwork(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindNetwork
}

// IsUnauthorized reports whether err is an HTTP 401 from the backend.
func IsUnauthorized(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindAPI && e.Status == 401
}
