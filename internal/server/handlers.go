package server

import (
	"net/http"
	"strings"

	"github.com/dgellow/auth-front/internal/config"
	"github.com/dgellow/auth-front/internal/cookie"
	"github.com/dgellow/auth-front/internal/crypto"
	"github.com/dgellow/auth-front/internal/flagstore"
	jsonwriter "github.com/dgellow/auth-front/internal/json"
	"github.com/dgellow/auth-front/internal/log"
	"github.com/dgellow/auth-front/internal/provider"
	"github.com/dgellow/auth-front/internal/reconcile"
	"github.com/dgellow/auth-front/internal/session"
	"github.com/dgellow/auth-front/internal/store"
)

// Paths served by the auth front.
const (
	CallbackPath         = "/auth/callback"
	CallbackCompletePath = "/auth/callback/complete"
	IntentPath           = "/auth/intent"
	SessionPath          = "/auth/session"
	HealthPath           = "/healthz"
	LogLevelPath         = "/internal/loglevel"
)

// Server bundles the handlers behind the auth front's routes.
type Server struct {
	cfg      config.Config
	provider provider.Provider
	flags    flagstore.Store
	sessions *store.Store
	routes   reconcile.Routes
}

// New creates the server over its collaborators.
func New(cfg config.Config, p provider.Provider, flags flagstore.Store, sessions *store.Store) *Server {
	return &Server{
		cfg:      cfg,
		provider: p,
		flags:    flags,
		sessions: sessions,
		routes: reconcile.Routes{
			Profile:       cfg.Routes.ProfilePath,
			ResetPassword: cfg.Routes.ResetPasswordPath,
			Login:         cfg.Routes.LoginPath,
		},
	}
}

// Handler returns the routed, middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+CallbackPath, s.handleCallback)
	mux.HandleFunc("GET "+CallbackCompletePath, s.handleCallbackComplete)
	mux.HandleFunc("POST "+IntentPath, s.handleIntent)
	mux.HandleFunc("GET "+SessionPath, s.handleSession)
	mux.Handle("GET "+HealthPath, NewHealthHandler())
	mux.HandleFunc("POST "+LogLevelPath, s.handleLogLevel)

	return ChainMiddleware(mux,
		RecoverMiddleware,
		LoggingMiddleware,
		SecurityHeadersMiddleware,
	)
}

// handleCallback receives the provider redirect. Code flows carry the code
// in the query string and reconcile immediately. Token-pair flows carry the
// tokens in the URL fragment, which the browser never sends, so with no
// query credentials we serve the relay page that reflects the fragment onto
// the complete endpoint.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("code") != "" {
		s.reconcile(w, r, s.callbackURL(r))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := callbackPageTemplate.Execute(w, CallbackPageData{CompletePath: CallbackCompletePath}); err != nil {
		log.LogError("Failed to render callback page: %v", err)
	}
}

// handleCallbackComplete is the relay target: the fragment parameters arrive
// here as a query string and are folded back into a fragment so the payload
// parser sees the URL shape the provider originally produced.
func (s *Server) handleCallbackComplete(w http.ResponseWriter, r *http.Request) {
	s.reconcile(w, r, s.absoluteURL(CallbackPath)+"#"+r.URL.RawQuery)
}

func (s *Server) reconcile(w http.ResponseWriter, r *http.Request, callbackURL string) {
	clientID := cookie.GetClientID(r)

	ctrl := reconcile.New(s.provider, s.flags, s.routes)
	out := ctrl.Run(r.Context(), callbackURL, CallbackPath, clientID)

	// The user only ever sees the redirect; failures are already logged
	// with full detail by the controller.
	http.Redirect(w, r, out.RedirectTo, http.StatusFound)
}

// handleIntent records which flow the browser is about to start, before it
// navigates away to the identity provider. The value persists server-side
// keyed by a random per-browser identifier.
func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		jsonwriter.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}
	value := strings.TrimSpace(r.PostFormValue("intent"))
	if value == "" {
		jsonwriter.WriteError(w, http.StatusBadRequest, "invalid_request", "intent value is required")
		return
	}

	clientID := cookie.GetClientID(r)
	if clientID == "" {
		var err error
		clientID, err = crypto.GenerateSecureToken()
		if err != nil {
			jsonwriter.WriteError(w, http.StatusInternalServerError, "internal_error", "")
			return
		}
		cookie.SetClientID(w, clientID)
	}

	if err := s.flags.Set(r.Context(), clientID, value); err != nil {
		log.LogErrorWithFields("server", "Failed to persist intent flag", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// sessionResponse is the JSON shape of the session endpoint.
type sessionResponse struct {
	User    *session.User `json:"user"`
	Loading bool          `json:"loading"`
}

// handleSession exposes the session store snapshot to the rest of the
// application (top bar, route guards).
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	snap := s.sessions.Snapshot()
	_ = jsonwriter.Write(w, sessionResponse{User: snap.User, Loading: snap.Loading})
}

// handleLogLevel changes the log level at runtime, guarded by the ops token.
func (s *Server) handleLogLevel(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Ops == nil {
		http.NotFound(w, r)
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || !crypto.CompareOpsToken([]byte(s.cfg.Ops.LogLevelTokenHash), token) {
		jsonwriter.WriteError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	if err := r.ParseForm(); err != nil {
		jsonwriter.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}
	if err := log.SetLogLevel(r.PostFormValue("level")); err != nil {
		jsonwriter.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	_ = jsonwriter.Write(w, map[string]string{"level": log.GetLogLevel()})
}

// callbackURL rebuilds the absolute URL the browser requested. Fragments are
// invisible here; code flows don't use them.
func (s *Server) callbackURL(r *http.Request) string {
	return s.absoluteURL(r.URL.RequestURI())
}

func (s *Server) absoluteURL(pathAndQuery string) string {
	return strings.TrimSuffix(s.cfg.Proxy.BaseURL, "/") + pathAndQuery
}
