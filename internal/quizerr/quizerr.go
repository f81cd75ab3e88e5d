// Package quizerr defines the error taxonomy shared by the quiz session and
// the collaborator client.
package quizerr

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError is returned before any network I/O when input is rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthorizationError means the collaborator answered 401 or 403. The caller
// should send the user to SignInURL instead of showing an in-place error.
type AuthorizationError struct {
	Op        string
	Status    int
	SignInURL string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: sign-in required (%d %s)", e.Op, e.Status, http.StatusText(e.Status))
}

// TransportError covers network failures and non-2xx statuses other than auth failures.
// Status is zero when no response was received.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d %s", e.Op, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError is a success status whose body does not have the expected shape.
type MalformedResponseError struct {
	Op  string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// AsAuthorization returns the *AuthorizationError in err's chain, if any.
func AsAuthorization(err error) (*AuthorizationError, bool) {
	var a *AuthorizationError
	ok := errors.As(err, &a)
	return a, ok
}

// IsTransport reports whether err should be shown as a generic failure.
// Malformed responses count as transport failures for that purpose.
func IsTransport(err error) bool {
	var t *TransportError
	if errors.As(err, &t) {
		return true
	}
	var m *MalformedResponseError
	return errors.As(err, &m)
}
