// Package creds persists the credential pair (access and refresh tokens)
// issued by the TaskHub server so a session survives client restarts.
package creds

import "context"

// Fixed storage keys for the two tokens. Nothing else is ever persisted here.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

// Pair holds the two opaque tokens issued by the server. A well-formed pair
// has both fields set or both empty; Set never writes half a pair.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Present reports whether the pair carries usable credentials.
func (p Pair) Present() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Store is the persistence contract for the credential pair.
//
// Callers treat a failing Get as "no credentials": a client that cannot
// reach its storage behaves as logged out rather than erroring out.
type Store interface {
	// Get returns the stored pair, or the zero Pair when nothing is stored.
	Get(ctx context.Context) (Pair, error)

	// Set replaces both tokens atomically.
	Set(ctx context.Context, pair Pair) error

	// SetAccessToken replaces only the access token, keeping the refresh
	// token as is. Used after a renewal round-trip, which returns a fresh
	// access token only.
	SetAccessToken(ctx context.Context, token string) error

	// Clear removes both tokens.
	Clear(ctx context.Context) error
}
