// Package flagstore persists the client intent flag: a single well-known key
// holding a plain string value, written by the page that initiates an auth
// flow and consumed exactly once when the provider redirects back. The value
// must survive a full navigation away to the provider, so implementations are
// backed by durable storage rather than process memory where that matters.
package flagstore

import (
	"context"
	"time"
)

// IntentKey is the well-known storage key under which the intent flag lives.
const IntentKey = "auth:intent"

// DefaultTTL bounds how long an abandoned flag survives. A user who requests
// a reset link and never clicks it must not have a later, unrelated callback
// classified as recovery.
const DefaultTTL = 30 * time.Minute

// Store persists intent flags keyed per client. An empty clientID is valid
// and addresses the single-user slot (CLI and desktop consumers).
type Store interface {
	// Get returns the flag value for the client, or "" when the flag is
	// absent or expired.
	Get(ctx context.Context, clientID string) (string, error)

	// Set writes the flag value, replacing any previous value.
	Set(ctx context.Context, clientID, value string) error

	// Clear removes the flag. Clearing an absent flag is not an error.
	Clear(ctx context.Context, clientID string) error
}

type entry struct {
	Value string    `json:"value"`
	SetAt time.Time `json:"set_at"`
}

func (e entry) expired(ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(e.SetAt) > ttl
}
