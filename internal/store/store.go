// Package store holds the process-wide observable session state: the single
// source of truth for "who is signed in" consumed by everything else (top
// bar, profile surfaces, route guards). It is independent of any UI
// technology; consumers get subscribe/snapshot semantics and nothing more.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/dgellow/auth-front/internal/log"
	"github.com/dgellow/auth-front/internal/provider"
	"github.com/dgellow/auth-front/internal/session"
	"golang.org/x/sync/singleflight"
)

// Snapshot is an atomic view of the store. Readers never observe a
// half-updated user/loading pair.
type Snapshot struct {
	User    *session.User
	Loading bool
}

// Store is the observable session holder. Create one per application
// instance with New.
type Store struct {
	provider provider.Provider
	group    singleflight.Group

	mu        sync.Mutex
	user      *session.User
	last      *session.Session
	loading   bool
	eventSeen bool

	subs    map[int]func(Snapshot)
	nextSub int

	consumers int
	unsub     provider.Unsubscribe
}

// New creates a store over the given provider. No provider calls happen
// until the first consumer subscribes.
func New(p provider.Provider) *Store {
	return &Store{
		provider: p,
		loading:  true,
		subs:     make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{User: s.user, Loading: s.loading}
}

// Subscribe registers fn to be called on every state transition and counts
// the caller as a consumer. The first consumer triggers the initial
// current-user fetch and opens the provider change subscription; releasing
// the last consumer closes it, so provider-side listeners don't leak across
// navigations. The returned function releases the subscription and is safe
// to call once.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	s.consumers++
	first := s.consumers == 1
	if first && s.unsub == nil {
		s.unsub = s.provider.OnSessionChange(s.onChange)
	}
	settled := s.eventSeen || !s.loading
	s.mu.Unlock()

	if first && !settled {
		go s.fetchInitial()
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.release(id) })
	}
}

func (s *Store) release(id int) {
	s.mu.Lock()
	delete(s.subs, id)
	s.consumers--
	var unsub provider.Unsubscribe
	if s.consumers == 0 && s.unsub != nil {
		unsub = s.unsub
		s.unsub = nil
	}
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// fetchInitial resolves the initial user value. A change notification that
// arrives first wins; the fetch result is then stale and discarded. A failed
// fetch degrades to unauthenticated so the UI can always render.
func (s *Store) fetchInitial() {
	sess, err, _ := s.group.Do("current-user", func() (any, error) {
		return s.provider.CurrentUser(context.Background())
	})

	s.mu.Lock()
	if s.eventSeen {
		// The change stream already settled the store with a newer value.
		s.mu.Unlock()
		return
	}

	if err != nil {
		log.LogWarnWithFields("store", "Current user lookup failed, treating as unauthenticated", map[string]any{
			"error": err.Error(),
		})
		s.applyLocked(nil)
		return
	}

	current, _ := sess.(*session.Session)
	s.applyLocked(current)
}

// onChange feeds provider session changes into the store.
func (s *Store) onChange(sess *session.Session) {
	s.mu.Lock()
	s.eventSeen = true
	s.applyLocked(sess)
}

// applyLocked applies a session transition and notifies subscribers. Called
// with the mutex held; releases it. A duplicate carrying the same session
// identity is not observable as a distinct transition, and loading never
// re-enters true once the store has settled.
func (s *Store) applyLocked(sess *session.Session) {
	if !s.loading && session.Same(s.last, sess) {
		s.mu.Unlock()
		return
	}

	s.last = sess
	if sess != nil {
		user := sess.User
		s.user = &user
	} else {
		s.user = nil
	}
	s.loading = false

	snapshot := Snapshot{User: s.user, Loading: false}
	fns := s.subscribersLocked()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

func (s *Store) subscribersLocked() []func(Snapshot) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	return fns
}
