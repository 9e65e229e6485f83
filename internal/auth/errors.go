package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrFlowExpired means there is no usable login flow for this session:
	// it was never started, already consumed, or timed out. The caller must
	// restart the login.
	ErrFlowExpired = errors.New("authentication session expired")

	// ErrDomainDenied means the verified email is outside the allowed domains.
	ErrDomainDenied = errors.New("email domain not allowed")

	// ErrProviderUnavailable means the identity provider could not be reached
	// or did not answer in time. The login may be retried.
	ErrProviderUnavailable = errors.New("identity provider unavailable")

	// ErrTokenExpired means a bearer token was well formed but past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenMalformed means a bearer token failed structural or signature checks.
	ErrTokenMalformed = errors.New("token malformed")

	// ErrUnauthenticated means no principal could be resolved for the request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrPermissionDenied means an authenticated principal lacks a required
	// role, or has no persisted user record at all.
	ErrPermissionDenied = errors.New("permission denied")
)

// ProviderError is an error reported by the identity provider, either on
// the callback query string or by the token endpoint.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("identity provider error: %s", e.Code)
	}
	return fmt.Sprintf("identity provider error: %s: %s", e.Code, e.Description)
}
