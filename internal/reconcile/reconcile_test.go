package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dgellow/auth-front/internal/flagstore"
	"github.com/dgellow/auth-front/internal/intent"
	"github.com/dgellow/auth-front/internal/payload"
	"github.com/dgellow/auth-front/internal/provider"
	"github.com/dgellow/auth-front/internal/session"
	"github.com/dgellow/auth-front/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const callbackPath = "/auth/callback"

func newController(t *testing.T, fake *testutil.FakeProvider) (*Controller, *flagstore.MemoryStore) {
	t.Helper()
	flags := flagstore.NewMemoryStore(flagstore.DefaultTTL)
	t.Cleanup(flags.Stop)
	return New(fake, flags, DefaultRoutes()), flags
}

func userSession() *session.Session {
	return &session.Session{
		User:        session.User{ID: "user-1", Email: "user@example.com"},
		AccessToken: "access-1",
	}
}

func TestRun_StandardLogin(t *testing.T) {
	fake := &testutil.FakeProvider{ExchangeSession: userSession()}
	ctrl, flags := newController(t, fake)

	out := ctrl.Run(context.Background(), "https://app.example.com/auth/callback?code=abc", callbackPath, "client-1")

	assert.Equal(t, StateSuccess, out.State)
	assert.Equal(t, intent.Standard, out.Intent)
	assert.Equal(t, "/profile", out.RedirectTo)
	require.NotNil(t, out.Session)
	assert.Equal(t, "user-1", out.Session.User.ID)
	assert.Equal(t, int64(1), fake.ExchangeCalls())

	v, err := flags.Get(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestRun_RecoveryViaFragmentType(t *testing.T) {
	fake := &testutil.FakeProvider{ExchangeSession: userSession()}
	ctrl, flags := newController(t, fake)

	ctx := context.Background()
	require.NoError(t, flags.Set(ctx, "client-1", intent.RecoveryFlag))

	// Both the fragment type and the flag say recovery; redundancy is free.
	out := ctrl.Run(ctx, "https://app.example.com/auth/callback#access_token=a&refresh_token=r&type=recovery", callbackPath, "client-1")

	assert.Equal(t, StateSuccess, out.State)
	assert.Equal(t, intent.Recovery, out.Intent)
	assert.Equal(t, "/reset-password", out.RedirectTo)

	v, err := flags.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Empty(t, v, "flag must be consumed")
}

func TestRun_RecoveryViaFlagAlone(t *testing.T) {
	fake := &testutil.FakeProvider{ExchangeSession: userSession()}
	ctrl, flags := newController(t, fake)

	ctx := context.Background()
	require.NoError(t, flags.Set(ctx, "client-1", intent.RecoveryFlag))

	out := ctrl.Run(ctx, "https://app.example.com/auth/callback?code=abc", callbackPath, "client-1")

	assert.Equal(t, intent.Recovery, out.Intent)
	assert.Equal(t, "/reset-password", out.RedirectTo)
}

func TestRun_MissingCredentials(t *testing.T) {
	fake := &testutil.FakeProvider{}
	ctrl, flags := newController(t, fake)

	ctx := context.Background()
	require.NoError(t, flags.Set(ctx, "client-1", intent.RecoveryFlag))

	out := ctrl.Run(ctx, "https://app.example.com/auth/callback", callbackPath, "client-1")

	assert.Equal(t, StateFailure, out.State)
	assert.Equal(t, "/login", out.RedirectTo)
	assert.ErrorIs(t, out.Err, payload.ErrMissingCredentials)
	assert.Zero(t, fake.ExchangeCalls(), "no exchange may be attempted")

	v, err := flags.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Empty(t, v, "flag cleared on failure too")
}

func TestRun_ExchangeFailure(t *testing.T) {
	fake := &testutil.FakeProvider{
		ExchangeErr: &provider.ExchangeError{Op: "exchange code", Err: errors.New("code expired")},
	}
	ctrl, flags := newController(t, fake)

	ctx := context.Background()
	require.NoError(t, flags.Set(ctx, "client-1", intent.RecoveryFlag))

	out := ctrl.Run(ctx, "https://app.example.com/auth/callback?code=expired", callbackPath, "client-1")

	assert.Equal(t, StateFailure, out.State)
	assert.Equal(t, "/login", out.RedirectTo)
	assert.ErrorIs(t, out.Err, provider.ErrExchangeFailed)
	assert.Equal(t, int64(1), fake.ExchangeCalls(), "no retry on single-use credentials")

	v, err := flags.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestRun_SecondInvocationIsNoOp(t *testing.T) {
	fake := &testutil.FakeProvider{ExchangeSession: userSession()}
	ctrl, _ := newController(t, fake)

	url := "https://app.example.com/auth/callback?code=abc"
	first := ctrl.Run(context.Background(), url, callbackPath, "client-1")
	second := ctrl.Run(context.Background(), url, callbackPath, "client-1")

	assert.Equal(t, int64(1), fake.ExchangeCalls())
	assert.Equal(t, first, second)
}

func TestRun_ConcurrentInvocationsSingleFlight(t *testing.T) {
	fake := &testutil.FakeProvider{ExchangeSession: userSession()}
	ctrl, _ := newController(t, fake)

	url := "https://app.example.com/auth/callback?code=abc"
	outcomes := make([]Outcome, 8)
	var wg sync.WaitGroup
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = ctrl.Run(context.Background(), url, callbackPath, "client-1")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), fake.ExchangeCalls())
	for _, out := range outcomes {
		assert.Equal(t, StateSuccess, out.State)
		assert.Equal(t, "/profile", out.RedirectTo)
	}
}

func TestRun_PathSignalClassifiesRecovery(t *testing.T) {
	fake := &testutil.FakeProvider{ExchangeSession: userSession()}
	ctrl, _ := newController(t, fake)

	out := ctrl.Run(context.Background(), "https://app.example.com/reset-password?code=abc", "/reset-password", "client-1")

	assert.Equal(t, intent.Recovery, out.Intent)
	assert.Equal(t, "/reset-password", out.RedirectTo)
}

func TestState_TerminalAfterRun(t *testing.T) {
	fake := &testutil.FakeProvider{ExchangeSession: userSession()}
	ctrl, _ := newController(t, fake)

	assert.Equal(t, StateInit, ctrl.State())
	ctrl.Run(context.Background(), "https://app.example.com/auth/callback?code=abc", callbackPath, "")
	assert.Equal(t, StateSuccess, ctrl.State())
}
