package internal

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/auth-front/internal/config"
	"github.com/dgellow/auth-front/internal/flagstore"
	"github.com/dgellow/auth-front/internal/log"
	"github.com/dgellow/auth-front/internal/provider"
	"github.com/dgellow/auth-front/internal/server"
	"github.com/dgellow/auth-front/internal/store"
	"github.com/dgellow/auth-front/internal/urlutil"
)

// AuthFront represents the complete auth front application
type AuthFront struct {
	config     config.Config
	httpServer *server.HTTPServer
	flags      flagstore.Store
	sessions   *store.Store

	releaseStore func()
	stopFlags    func()
}

// NewAuthFront creates a new auth front application with all dependencies built
func NewAuthFront(ctx context.Context, cfg config.Config) (*AuthFront, error) {
	log.LogInfoWithFields("authfront", "Building auth front application", map[string]any{
		"baseURL": cfg.Proxy.BaseURL,
		"storage": string(cfg.Intent.Kind),
	})

	flags, stopFlags, err := setupFlagStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup intent flag storage: %w", err)
	}

	idp := provider.NewClient(provider.Config{
		TokenURL:     cfg.IDP.TokenURL,
		UserInfoURL:  cfg.IDP.UserInfoURL,
		ClientID:     cfg.IDP.ClientID,
		ClientSecret: string(cfg.IDP.ClientSecret),
		Timeout:      cfg.IDP.Timeout.Std(),
	})

	sessions := store.New(idp)

	handler := server.New(cfg, idp, flags, sessions).Handler()
	httpServer := server.NewHTTPServer(handler, cfg.Proxy.Addr)

	log.LogInfoWithFields("authfront", "Register this redirect URL with your identity provider", map[string]any{
		"redirect_url": urlutil.MustJoinPath(cfg.Proxy.BaseURL, server.CallbackPath),
	})

	return &AuthFront{
		config:     cfg,
		httpServer: httpServer,
		flags:      flags,
		sessions:   sessions,
		stopFlags:  stopFlags,
	}, nil
}

// Run starts and manages the complete application lifecycle
func (a *AuthFront) Run() error {
	log.LogInfoWithFields("authfront", "Starting auth front application", map[string]any{
		"addr": a.config.Proxy.Addr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The application itself is the first session store consumer; this
	// opens the provider change subscription and triggers the initial
	// current-user fetch.
	a.releaseStore = a.sessions.Subscribe(func(snap store.Snapshot) {
		fields := map[string]any{"authenticated": snap.User != nil}
		if snap.User != nil {
			fields["user"] = snap.User.ID
		}
		log.LogDebugWithFields("authfront", "Session state changed", fields)
	})

	errChan := make(chan error, 1)
	go func() {
		if err := a.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("authfront", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("authfront", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	case <-ctx.Done():
		shutdownReason = "context cancelled"
	}

	log.LogInfoWithFields("authfront", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": "30s",
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("authfront", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	if a.releaseStore != nil {
		a.releaseStore()
	}
	if a.stopFlags != nil {
		a.stopFlags()
	}

	log.LogInfoWithFields("authfront", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}

// setupFlagStorage creates the intent flag store based on configuration.
// The returned stop function releases any background resources.
func setupFlagStorage(ctx context.Context, cfg config.Config) (flagstore.Store, func(), error) {
	ttl := cfg.Intent.TTL.Std()
	if ttl <= 0 {
		ttl = flagstore.DefaultTTL
	}

	switch cfg.Intent.Kind {
	case config.IntentStorageFirestore:
		fs, err := flagstore.NewFirestoreStore(ctx, cfg.Intent.GCPProject, cfg.Intent.Database, cfg.Intent.Collection, ttl)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() { _ = fs.Close() }, nil

	case config.IntentStorageFile:
		fs, err := flagstore.NewFileStore(cfg.Intent.Path, []byte(cfg.Intent.SigningKey), ttl)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil

	case config.IntentStorageMemory, "":
		log.LogWarn("Using memory intent flag storage - flags won't survive restarts")
		ms := flagstore.NewMemoryStore(ttl)
		return ms, ms.Stop, nil

	default:
		return nil, nil, fmt.Errorf("unknown intent storage kind: %s", cfg.Intent.Kind)
	}
}
