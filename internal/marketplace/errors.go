package marketplace

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential means the cookie blob lacked the access-token
	// cookie. Nothing downstream can proceed without a session.
	ErrMissingCredential = errors.New("marketplace: access token cookie missing")

	// ErrAuthExpired means the upstream rejected the session (401/403).
	// Never retried: the credential must be refreshed externally.
	ErrAuthExpired = errors.New("marketplace: session expired or rejected")

	// ErrRateLimited means 429 responses persisted past the retry budget.
	ErrRateLimited = errors.New("marketplace: rate limited")
)

// ShapeError marks a payload that does not match any known feed shape.
// The offending page/item is skipped and logged; the fetch continues.
type ShapeError struct {
	Feed   string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("marketplace: unexpected %s payload: %s", e.Feed, e.Reason)
}
