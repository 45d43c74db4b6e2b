// Package cookie centralizes the browser cookies auth-front sets.
package cookie

import (
	"net/http"
	"time"

	"github.com/dgellow/auth-front/internal/envutil"
)

// ClientIDCookie keys the persisted intent flag per browser. It carries a
// random opaque identifier, never user data.
const ClientIDCookie = "af_client"

// ClientIDMaxAge keeps the client identifier stable across flows without
// making it effectively permanent.
const ClientIDMaxAge = 30 * 24 * time.Hour

// SetClientID sets the client identifier cookie with appropriate security
// settings. SameSite is Lax so the cookie survives the top-level navigation
// back from the identity provider.
func SetClientID(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     ClientIDCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ClientIDMaxAge.Seconds()),
	})
}

// GetClientID retrieves the client identifier, or "" when absent.
func GetClientID(r *http.Request) string {
	c, err := r.Cookie(ClientIDCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// Clear removes a cookie by setting MaxAge to -1
func Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
