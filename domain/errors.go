package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotLinked             = errors.New("provider is not linked for this user")
	ErrUnrefreshable         = errors.New("access token expired and no refresh token is stored")
	ErrRefreshFailed         = errors.New("provider rejected the token refresh")
	ErrLastProviderInvariant = errors.New("cannot unlink the only remaining identity provider")
	ErrStore                 = errors.New("credential store failure")
	ErrUnknownProvider       = errors.New("unknown identity provider")
	ErrUserNotFound          = errors.New("user not found")
	ErrCredentialNotFound    = errors.New("credential not found")
)

// maxErrorBodyLen bounds how much of a provider response body is kept for diagnostics.
const maxErrorBodyLen = 512

// RefreshError describes a failed call to a provider's token endpoint.
type RefreshError struct {
	Provider   ProviderID
	StatusCode int    // 0 when the request never got a response
	Body       string // truncated response body
	Err        error  // transport or decode error, if any
}

// NewRefreshError builds a RefreshError keeping at most maxErrorBodyLen bytes of body.
func NewRefreshError(provider ProviderID, status int, body []byte, cause error) *RefreshError {
	if len(body) > maxErrorBodyLen {
		body = body[:maxErrorBodyLen]
	}
	return &RefreshError{Provider: provider, StatusCode: status, Body: string(body), Err: cause}
}

func (e *RefreshError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: token refresh failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: token refresh failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: token refresh failed", e.Provider)
}

func (e *RefreshError) Unwrap() error { return e.Err }

func (e *RefreshError) Is(target error) bool { return target == ErrRefreshFailed }

// StoreError wraps a persistence failure. It is surfaced as-is, never swallowed.
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError returns nil for a nil cause so call sites can wrap unconditionally.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// ErrorClass tells a caller what to show the user.
type ErrorClass string

const (
	ClassNone      ErrorClass = ""
	ClassReconnect ErrorClass = "reconnect" // re-authorize the provider
	ClassRetry     ErrorClass = "retry"     // transient upstream failure
	ClassBlocked   ErrorClass = "blocked"   // link another provider first
	ClassInvalid   ErrorClass = "invalid"   // bad input from the caller
	ClassInternal  ErrorClass = "internal"
)

// Classify maps an error returned by the core onto the user-visible categories.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrNotLinked), errors.Is(err, ErrUnrefreshable):
		return ClassReconnect
	case errors.Is(err, ErrRefreshFailed):
		return ClassRetry
	case errors.Is(err, ErrLastProviderInvariant):
		return ClassBlocked
	case errors.Is(err, ErrUnknownProvider), errors.Is(err, ErrUserNotFound):
		return ClassInvalid
	}
	return ClassInternal
}
