// Package testutil provides test doubles shared across packages.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dgellow/auth-front/internal/provider"
	"github.com/dgellow/auth-front/internal/session"
)

// FakeProvider is a controllable Provider implementation. Exchange results
// and the current-user response are scripted by tests; change events are
// emitted manually with EmitChange.
type FakeProvider struct {
	// ExchangeSession is returned by both exchange methods when ExchangeErr
	// is nil.
	ExchangeSession *session.Session
	ExchangeErr     error

	// CurrentSession/CurrentErr script CurrentUser.
	CurrentSession *session.Session
	CurrentErr     error

	// CurrentUserGate, when non-nil, blocks CurrentUser until closed. Lets
	// tests race the init fetch against change events.
	CurrentUserGate chan struct{}

	exchangeCalls    atomic.Int64
	currentUserCalls atomic.Int64

	mu   sync.Mutex
	subs []func(*session.Session)
}

var _ provider.Provider = (*FakeProvider)(nil)

func (f *FakeProvider) ExchangeCode(ctx context.Context, code string) (*session.Session, error) {
	f.exchangeCalls.Add(1)
	if f.ExchangeErr != nil {
		return nil, f.ExchangeErr
	}
	return f.ExchangeSession, nil
}

func (f *FakeProvider) SessionFromTokenPair(ctx context.Context, access, refresh string) (*session.Session, error) {
	f.exchangeCalls.Add(1)
	if f.ExchangeErr != nil {
		return nil, f.ExchangeErr
	}
	return f.ExchangeSession, nil
}

func (f *FakeProvider) CurrentUser(ctx context.Context) (*session.Session, error) {
	f.currentUserCalls.Add(1)
	if f.CurrentUserGate != nil {
		<-f.CurrentUserGate
	}
	if f.CurrentErr != nil {
		return nil, f.CurrentErr
	}
	return f.CurrentSession, nil
}

func (f *FakeProvider) OnSessionChange(fn func(*session.Session)) provider.Unsubscribe {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
	i := len(f.subs) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.subs[i] = nil
	}
}

// EmitChange delivers a session change to all live subscribers.
func (f *FakeProvider) EmitChange(s *session.Session) {
	f.mu.Lock()
	subs := make([]func(*session.Session), len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()

	for _, fn := range subs {
		if fn != nil {
			fn(s)
		}
	}
}

// ExchangeCalls reports how many exchange attempts were made.
func (f *FakeProvider) ExchangeCalls() int64 { return f.exchangeCalls.Load() }

// CurrentUserCalls reports how many current-user lookups were made.
func (f *FakeProvider) CurrentUserCalls() int64 { return f.currentUserCalls.Load() }

// SubscriberCount reports how many subscriptions are currently live.
func (f *FakeProvider) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, fn := range f.subs {
		if fn != nil {
			n++
		}
	}
	return n
}
