// Package provider defines the identity provider capability surface consumed
// by auth-front, and an HTTP client implementing it. The provider's own
// protocol (PKCE internals, token issuance rules) stays on the provider side;
// this package only trades credential material for live sessions.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgellow/auth-front/internal/session"
)

// ErrExchangeFailed marks a credential exchange the provider rejected
// (expired, already used, malformed). Codes and token pairs are single-use by
// provider contract, so callers must not retry.
var ErrExchangeFailed = errors.New("identity provider rejected credential exchange")

// ExchangeError wraps the provider's underlying error. The underlying error
// is preserved for diagnostics only and must never be shown to the end user.
type ExchangeError struct {
	Op  string
	Err error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrExchangeFailed) match any ExchangeError.
func (e *ExchangeError) Is(target error) bool { return target == ErrExchangeFailed }

// Unsubscribe releases a session change subscription.
type Unsubscribe func()

// Provider is the identity provider capability surface.
type Provider interface {
	// ExchangeCode trades a single-use authorization code for a session.
	ExchangeCode(ctx context.Context, code string) (*session.Session, error)

	// SessionFromTokenPair establishes a session from an access/refresh
	// token pair carried in a redirect fragment.
	SessionFromTokenPair(ctx context.Context, accessToken, refreshToken string) (*session.Session, error)

	// CurrentUser returns the current session, or (nil, nil) when
	// unauthenticated.
	CurrentUser(ctx context.Context) (*session.Session, error)

	// OnSessionChange registers a callback invoked with the new session
	// (or nil on sign-out) whenever the session changes.
	OnSessionChange(fn func(*session.Session)) Unsubscribe
}

// changeFeed is the subscriber registry backing OnSessionChange.
// Callbacks run synchronously in registration order so that consumers
// observe session transitions in the order they happened.
type changeFeed struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(*session.Session)
}

func (f *changeFeed) subscribe(fn func(*session.Session)) Unsubscribe {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fns == nil {
		f.fns = make(map[int]func(*session.Session))
	}
	id := f.next
	f.next++
	f.fns[id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.fns, id)
	}
}

func (f *changeFeed) emit(s *session.Session) {
	f.mu.Lock()
	ids := make([]int, 0, len(f.fns))
	for id := range f.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(*session.Session), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, f.fns[id])
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
