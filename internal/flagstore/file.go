package flagstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgellow/auth-front/internal/crypto"
	"github.com/dgellow/auth-front/internal/log"
)

// Ensure FileStore implements Store
var _ Store = (*FileStore)(nil)

// FileStore persists intent flags to a single file so they survive process
// restarts. Used by CLI and desktop consumers that catch provider redirects
// via a custom URL scheme. The file contents are HMAC-signed; a tampered or
// corrupt file reads as no flags rather than failing the auth flow.
type FileStore struct {
	mu     sync.Mutex
	path   string
	signer crypto.TokenSigner
	ttl    time.Duration
}

type fileContents struct {
	Entries map[string]entry `json:"entries"`
}

// NewFileStore creates a file store at path. The signing key authenticates
// the file contents; the TTL bounds flag lifetime.
func NewFileStore(path string, signingKey []byte, ttl time.Duration) (*FileStore, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("signing key is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating flag store directory: %w", err)
	}

	return &FileStore{
		path:   path,
		signer: crypto.NewTokenSigner(signingKey, 0),
		ttl:    ttl,
	}, nil
}

func (s *FileStore) Get(_ context.Context, clientID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents := s.load()
	e, ok := contents.Entries[clientID]
	if !ok || e.expired(s.ttl, time.Now()) {
		return "", nil
	}
	return e.Value, nil
}

func (s *FileStore) Set(_ context.Context, clientID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents := s.load()
	contents.Entries[clientID] = entry{Value: value, SetAt: time.Now()}
	return s.save(contents)
}

func (s *FileStore) Clear(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents := s.load()
	if _, ok := contents.Entries[clientID]; !ok {
		return nil
	}
	delete(contents.Entries, clientID)
	return s.save(contents)
}

// load reads and verifies the flag file. Any failure degrades to an empty
// store: a missing flag routes the callback to standard sign-in, which is
// always a safe outcome.
func (s *FileStore) load() fileContents {
	contents := fileContents{Entries: make(map[string]entry)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.LogWarnWithFields("flagstore", "Failed to read intent flag file", map[string]any{
				"path":  s.path,
				"error": err.Error(),
			})
		}
		return contents
	}

	if err := s.signer.Verify(string(data), &contents); err != nil {
		log.LogWarnWithFields("flagstore", "Intent flag file failed verification, ignoring", map[string]any{
			"path":  s.path,
			"error": err.Error(),
		})
		return fileContents{Entries: make(map[string]entry)}
	}

	if contents.Entries == nil {
		contents.Entries = make(map[string]entry)
	}
	return contents
}

func (s *FileStore) save(contents fileContents) error {
	// Drop expired entries while we hold the file anyway.
	now := time.Now()
	for id, e := range contents.Entries {
		if e.expired(s.ttl, now) {
			delete(contents.Entries, id)
		}
	}

	signed, err := s.signer.Sign(contents)
	if err != nil {
		return fmt.Errorf("signing flag store contents: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(signed), 0o600); err != nil {
		return fmt.Errorf("writing flag store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing flag store: %w", err)
	}
	return nil
}
