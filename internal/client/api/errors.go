package api

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks transport-level failures: connection refused, DNS,
	// timeouts. Such failures are surfaced as is, never retried, and never
	// treated as an expired credential.
	ErrNetwork = errors.New("network error")

	// ErrAuthExpired means credential renewal failed; the credential store
	// has been cleared and the session is over.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrNoRefreshToken is returned by a renewal attempted with no refresh
	// token on hand. No network call is made in that case; the pipeline
	// surfaces the original 401 response to the caller instead.
	ErrNoRefreshToken = errors.New("no refresh token")
)

// APIError is a server-side rejection other than an expired credential.
// Message carries the server-provided text verbatim so the UI layer can
// display it as is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// Message extracts a user-displayable message from err: the verbatim server
// message when err is an APIError, otherwise fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
