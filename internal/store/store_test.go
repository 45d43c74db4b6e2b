package store

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgellow/auth-front/internal/session"
	"github.com/dgellow/auth-front/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(id, email string) *session.Session {
	return &session.Session{
		User:        session.User{ID: id, Email: email},
		AccessToken: "access-" + id,
	}
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never held")
}

func TestSnapshot_LoadingUntilFetchResolves(t *testing.T) {
	fake := &testutil.FakeProvider{CurrentSession: testSession("user-1", "user@example.com")}
	s := New(fake)

	assert.True(t, s.Snapshot().Loading)

	release := s.Subscribe(func(Snapshot) {})
	defer release()

	waitFor(t, func() bool { return !s.Snapshot().Loading })
	snap := s.Snapshot()
	require.NotNil(t, snap.User)
	assert.Equal(t, "user-1", snap.User.ID)
}

func TestSnapshot_FetchFailureDegradesToUnauthenticated(t *testing.T) {
	fake := &testutil.FakeProvider{CurrentErr: errors.New("network blip")}
	s := New(fake)

	release := s.Subscribe(func(Snapshot) {})
	defer release()

	waitFor(t, func() bool { return !s.Snapshot().Loading })
	assert.Nil(t, s.Snapshot().User)
}

func TestChangeEventBeforeFetchWins(t *testing.T) {
	gate := make(chan struct{})
	fake := &testutil.FakeProvider{
		CurrentSession:  nil, // fetch would say unauthenticated
		CurrentUserGate: gate,
	}
	s := New(fake)

	release := s.Subscribe(func(Snapshot) {})
	defer release()

	// The change stream settles the store while the fetch is still pending.
	fake.EmitChange(testSession("user-1", "user@example.com"))

	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.User)
	assert.Equal(t, "user-1", snap.User.ID)

	// The stale fetch result must not clobber the event's value.
	close(gate)
	waitFor(t, func() bool { return fake.CurrentUserCalls() == 1 })
	time.Sleep(20 * time.Millisecond)

	snap = s.Snapshot()
	require.NotNil(t, snap.User)
	assert.Equal(t, "user-1", snap.User.ID)
	assert.False(t, snap.Loading)
}

func TestDuplicateNotificationIsNotATransition(t *testing.T) {
	fake := &testutil.FakeProvider{}
	s := New(fake)

	var transitions atomic.Int64
	release := s.Subscribe(func(Snapshot) { transitions.Add(1) })
	defer release()

	// The init fetch settles the store: that is the first transition.
	waitFor(t, func() bool { return transitions.Load() == 1 })

	sess := testSession("user-1", "user@example.com")
	fake.EmitChange(sess)
	fake.EmitChange(sess) // duplicate, same identity

	assert.Equal(t, int64(2), transitions.Load())
	assert.False(t, s.Snapshot().Loading)
}

func TestSignInThenSignOutTransitions(t *testing.T) {
	fake := &testutil.FakeProvider{}
	s := New(fake)

	release := s.Subscribe(func(Snapshot) {})
	defer release()

	waitFor(t, func() bool { return !s.Snapshot().Loading })

	fake.EmitChange(testSession("user-1", "user@example.com"))
	require.NotNil(t, s.Snapshot().User)

	fake.EmitChange(nil)
	assert.Nil(t, s.Snapshot().User)
	assert.False(t, s.Snapshot().Loading)
}

func TestProviderSubscriptionReleasedWithLastConsumer(t *testing.T) {
	fake := &testutil.FakeProvider{}
	s := New(fake)

	releaseA := s.Subscribe(func(Snapshot) {})
	releaseB := s.Subscribe(func(Snapshot) {})
	assert.Equal(t, 1, fake.SubscriberCount())

	releaseA()
	assert.Equal(t, 1, fake.SubscriberCount())

	releaseB()
	assert.Equal(t, 0, fake.SubscriberCount())

	// Releasing twice is a no-op.
	releaseB()
	assert.Equal(t, 0, fake.SubscriberCount())
}

func TestResubscribeAfterTeardown(t *testing.T) {
	fake := &testutil.FakeProvider{}
	s := New(fake)

	release := s.Subscribe(func(Snapshot) {})
	waitFor(t, func() bool { return !s.Snapshot().Loading })
	release()

	// A new consumer reopens the change subscription; loading stays false
	// for the remainder of the store's lifetime.
	release = s.Subscribe(func(Snapshot) {})
	defer release()

	assert.Equal(t, 1, fake.SubscriberCount())
	assert.False(t, s.Snapshot().Loading)
	assert.Equal(t, int64(1), fake.CurrentUserCalls())
}
