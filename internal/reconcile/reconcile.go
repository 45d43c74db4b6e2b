// Package reconcile orchestrates one provider callback: parse the redirect
// payload, classify the intent, exchange the credentials for a session, and
// decide the terminal redirect. The whole flow runs at most once per
// controller, no matter how often the surrounding code invokes it, because
// the credential material is single-use.
package reconcile

import (
	"context"
	"sync"

	"github.com/dgellow/auth-front/internal/flagstore"
	"github.com/dgellow/auth-front/internal/intent"
	"github.com/dgellow/auth-front/internal/log"
	"github.com/dgellow/auth-front/internal/payload"
	"github.com/dgellow/auth-front/internal/provider"
	"github.com/dgellow/auth-front/internal/session"
	"golang.org/x/sync/singleflight"
)

// State is the controller's position in the reconciliation flow.
type State int

const (
	StateInit State = iota
	StateParsing
	StateClassifying
	StateExchanging
	StateSuccess
	StateFailure
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateParsing:
		return "parsing"
	case StateClassifying:
		return "classifying"
	case StateExchanging:
		return "exchanging"
	case StateSuccess:
		return "success"
	case StateFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Routes are the terminal redirect targets.
type Routes struct {
	Profile       string
	ResetPassword string
	Login         string
}

// DefaultRoutes returns the standard targets.
func DefaultRoutes() Routes {
	return Routes{
		Profile:       "/profile",
		ResetPassword: "/reset-password",
		Login:         "/login",
	}
}

// Outcome is the terminal result of a reconciliation. Err carries the
// underlying failure for diagnostics only; the end user only ever sees the
// redirect.
type Outcome struct {
	State      State
	Intent     intent.Intent
	RedirectTo string
	Session    *session.Session
	Err        error
}

// Controller reconciles exactly one callback. Create one per page load.
type Controller struct {
	provider provider.Provider
	flags    flagstore.Store
	routes   Routes

	group singleflight.Group

	mu      sync.Mutex
	state   State
	outcome *Outcome
}

// New creates a controller over the given provider and flag store.
func New(p provider.Provider, flags flagstore.Store, routes Routes) *Controller {
	return &Controller{
		provider: p,
		flags:    flags,
		routes:   routes,
		state:    StateInit,
	}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run reconciles the callback and returns the terminal outcome. callbackURL
// is the full redirect URL including query and fragment; currentPath is the
// path of the page handling the callback; clientID keys the persisted intent
// flag. A duplicate invocation, sequential or concurrent, performs no work
// and observes the first outcome: the exchange happens at most once.
func (c *Controller) Run(ctx context.Context, callbackURL, currentPath, clientID string) Outcome {
	v, _, _ := c.group.Do("reconcile", func() (any, error) {
		c.mu.Lock()
		if c.outcome != nil {
			out := *c.outcome
			c.mu.Unlock()
			return out, nil
		}
		c.mu.Unlock()

		out := c.run(ctx, callbackURL, currentPath, clientID)

		c.mu.Lock()
		c.outcome = &out
		c.state = out.State
		c.mu.Unlock()
		return out, nil
	})
	return v.(Outcome)
}

func (c *Controller) run(ctx context.Context, callbackURL, currentPath, clientID string) Outcome {
	c.setState(StateParsing)
	p, err := payload.Parse(callbackURL)
	if err != nil {
		log.LogErrorWithFields("reconcile", "No usable credentials in callback", map[string]any{
			"path":  currentPath,
			"error": err.Error(),
		})
		return c.fail(ctx, clientID, err)
	}

	c.setState(StateClassifying)
	flag, err := c.flags.Get(ctx, clientID)
	if err != nil {
		// A missing flag only costs one of four redundant signals.
		log.LogWarnWithFields("reconcile", "Intent flag lookup failed", map[string]any{
			"error": err.Error(),
		})
		flag = ""
	}
	classified := intent.Classify(intent.Signals{
		TypeHint:       p.TypeHint,
		RedirectToHint: p.RedirectToHint,
		Path:           currentPath,
		Flag:           flag,
	})

	c.setState(StateExchanging)
	var sess *session.Session
	switch p.Kind {
	case payload.KindCode:
		sess, err = c.provider.ExchangeCode(ctx, p.Code)
	case payload.KindTokenPair:
		sess, err = c.provider.SessionFromTokenPair(ctx, p.AccessToken, p.RefreshToken)
	}
	if err != nil {
		log.LogErrorWithFields("reconcile", "Credential exchange failed", map[string]any{
			"kind":   p.Kind.String(),
			"intent": classified.String(),
			"error":  err.Error(),
		})
		return c.fail(ctx, clientID, err)
	}

	c.clearFlag(ctx, clientID)

	redirectTo := c.routes.Profile
	if classified == intent.Recovery {
		redirectTo = c.routes.ResetPassword
	}

	log.LogInfoWithFields("reconcile", "Callback reconciled", map[string]any{
		"kind":     p.Kind.String(),
		"intent":   classified.String(),
		"redirect": redirectTo,
		"user":     sess.User.ID,
	})

	return Outcome{
		State:      StateSuccess,
		Intent:     classified,
		RedirectTo: redirectTo,
		Session:    sess,
	}
}

// fail clears the intent flag and routes to sign-in. The flag is cleared on
// every terminal edge so it can never leak into a later, unrelated callback.
func (c *Controller) fail(ctx context.Context, clientID string, err error) Outcome {
	c.clearFlag(ctx, clientID)
	return Outcome{
		State:      StateFailure,
		RedirectTo: c.routes.Login,
		Err:        err,
	}
}

func (c *Controller) clearFlag(ctx context.Context, clientID string) {
	if err := c.flags.Clear(ctx, clientID); err != nil {
		log.LogWarnWithFields("reconcile", "Failed to clear intent flag", map[string]any{
			"error": err.Error(),
		})
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
