package mightycall

import (
	"errors"
	"fmt"
)

var ErrMissingCredentials = errors.New("mightycall_credentials_missing")

// AuthError reports a failed token exchange.
type AuthError struct {
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("mightycall auth failed: status %d", e.Status)
	}
	if e.Err != nil {
		return "mightycall auth failed: " + e.Err.Error()
	}
	return "mightycall auth failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

// ProviderError is a non-2xx response from a data endpoint.
type ProviderError struct {
	Path   string
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("mightycall %s: status %d", e.Path, e.Status)
}

// IsUpstream reports whether err came from the provider.
func IsUpstream(err error) bool {
	var authErr *AuthError
	var providerErr *ProviderError
	return errors.As(err, &authErr) || errors.As(err, &providerErr) || errors.Is(err, ErrMissingCredentials)
}
