package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dgellow/auth-front/internal/log"
	"github.com/dgellow/auth-front/internal/session"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// DefaultTimeout bounds provider round trips when the config doesn't.
const DefaultTimeout = 30 * time.Second

// Config configures the HTTP provider client.
type Config struct {
	// TokenURL is the provider's token endpoint, used for code exchange.
	TokenURL string

	// UserInfoURL is the provider's user endpoint. Optional; when unset
	// the user identity is read from access-token claims instead.
	UserInfoURL string

	ClientID     string
	ClientSecret string

	// Timeout for provider round trips. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Ensure Client implements Provider
var _ Provider = (*Client)(nil)

// Client talks to the identity provider over HTTP and tracks the current
// session. Session changes from its own calls feed OnSessionChange
// subscribers.
type Client struct {
	cfg        Config
	httpClient *http.Client
	feed       changeFeed

	mu      sync.RWMutex
	current *session.Session
}

// NewClient creates a provider client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: c.cfg.TokenURL,
		},
	}
}

// ExchangeCode trades a single-use authorization code for a session. Not
// retried on failure: a reused code yields a second, more confusing rejection.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*session.Session, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth2Config().Exchange(ctx, code)
	if err != nil {
		log.LogErrorWithFields("provider", "Code exchange failed", map[string]any{
			"error": err.Error(),
		})
		return nil, &ExchangeError{Op: "exchange code", Err: err}
	}

	sess, err := c.buildSession(ctx, token.AccessToken, token.RefreshToken, token.Expiry)
	if err != nil {
		return nil, &ExchangeError{Op: "exchange code", Err: err}
	}

	c.setCurrent(sess)
	return sess, nil
}

// SessionFromTokenPair establishes a session from a fragment-carried token
// pair. The access token is validated against the provider (userinfo when
// configured); a rejected pair is an exchange failure like any other.
func (c *Client) SessionFromTokenPair(ctx context.Context, accessToken, refreshToken string) (*session.Session, error) {
	sess, err := c.buildSession(ctx, accessToken, refreshToken, time.Time{})
	if err != nil {
		log.LogErrorWithFields("provider", "Token pair rejected", map[string]any{
			"error": err.Error(),
		})
		return nil, &ExchangeError{Op: "session from token pair", Err: err}
	}

	c.setCurrent(sess)
	return sess, nil
}

// CurrentUser returns the current session, or (nil, nil) when no session is
// established.
func (c *Client) CurrentUser(ctx context.Context) (*session.Session, error) {
	c.mu.RLock()
	current := c.current
	c.mu.RUnlock()

	if current == nil {
		return nil, nil
	}

	// Re-validate against the provider when we can; a revoked session
	// should not keep reading as authenticated.
	if c.cfg.UserInfoURL != "" {
		user, err := c.fetchUser(ctx, current.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("fetching current user: %w", err)
		}
		current = &session.Session{
			User:         user,
			AccessToken:  current.AccessToken,
			RefreshToken: current.RefreshToken,
			ExpiresAt:    current.ExpiresAt,
		}
	}

	return current, nil
}

// SignOut drops the current session and notifies subscribers with nil.
func (c *Client) SignOut(ctx context.Context) {
	c.mu.Lock()
	had := c.current != nil
	c.current = nil
	c.mu.Unlock()

	if had {
		c.feed.emit(nil)
	}
}

// OnSessionChange registers a session change callback.
func (c *Client) OnSessionChange(fn func(*session.Session)) Unsubscribe {
	return c.feed.subscribe(fn)
}

func (c *Client) setCurrent(sess *session.Session) {
	c.mu.Lock()
	c.current = sess
	c.mu.Unlock()

	c.feed.emit(sess)
}

// buildSession resolves the user identity for a freshly issued access token.
// The userinfo endpoint is authoritative when configured; otherwise the
// token's own claims are used (the token just came from the provider over
// TLS, so its claims are as trustworthy as a userinfo response).
func (c *Client) buildSession(ctx context.Context, accessToken, refreshToken string, expiry time.Time) (*session.Session, error) {
	var user session.User

	if c.cfg.UserInfoURL != "" {
		var err error
		user, err = c.fetchUser(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		if expiry.IsZero() {
			if exp, err := tokenExpiry(accessToken); err == nil {
				expiry = exp
			}
		}
	} else {
		var err error
		user, expiry, err = userFromClaims(accessToken)
		if err != nil {
			return nil, err
		}
	}

	return &session.Session{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiry,
	}, nil
}

// userInfoResponse is the provider's user endpoint payload. Only the fields
// we need; extra fields are ignored.
type userInfoResponse struct {
	ID    string `json:"id"`
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

func (c *Client) fetchUser(ctx context.Context, accessToken string) (session.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UserInfoURL, nil)
	if err != nil {
		return session.User{}, fmt.Errorf("building userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return session.User{}, fmt.Errorf("userinfo request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return session.User{}, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var info userInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return session.User{}, fmt.Errorf("decoding userinfo response: %w", err)
	}

	id := info.ID
	if id == "" {
		id = info.Sub
	}
	if id == "" {
		return session.User{}, fmt.Errorf("userinfo response carries no user identifier")
	}

	return session.User{ID: id, Email: info.Email}, nil
}

// userFromClaims reads the user identity from the access token's claims
// without signature verification. Verification belongs to the provider; we
// only ever do this for tokens the provider itself just handed us.
func userFromClaims(accessToken string) (session.User, time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return session.User{}, time.Time{}, fmt.Errorf("parsing access token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return session.User{}, time.Time{}, fmt.Errorf("access token carries no subject")
	}

	email, _ := claims["email"].(string)

	var expiry time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiry = exp.Time
	}

	return session.User{ID: sub, Email: email}, expiry, nil
}

func tokenExpiry(accessToken string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("no expiry claim")
	}
	return exp.Time, nil
}
