// Package session defines the provider-issued session types shared across
// auth-front. The application never constructs a Session itself; sessions are
// only ever received from the identity provider.
package session

import "time"

// User is the authenticated identity carried by a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the opaque proof of authentication issued by the identity
// provider, including whatever is needed to make subsequent authenticated
// requests.
type Session struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Same reports whether two sessions carry the same identity. Consumers that
// diff by identity must not observe a duplicate notification for an unchanged
// session as a distinct transition.
func Same(a, b *Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.User.ID == b.User.ID && a.AccessToken == b.AccessToken
}
