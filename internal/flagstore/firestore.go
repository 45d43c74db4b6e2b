package flagstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/auth-front/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Ensure FirestoreStore implements Store
var _ Store = (*FirestoreStore)(nil)

// FirestoreStore persists intent flags in Google Cloud Firestore for
// multi-instance deployments, where the instance that set the flag is not
// necessarily the one that handles the callback.
//
// Error handling strategy:
// - Get: a missing document reads as an absent flag, any other failure is
//   returned (a silently dropped flag would misclassify a recovery callback)
// - Clear: NotFound is success, the flag is gone either way
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	ttl        time.Duration

	stopSweep chan struct{}
	stopOnce  sync.Once
}

// flagDoc is the Firestore document shape for one client's flag.
type flagDoc struct {
	Value string    `firestore:"value"`
	SetAt time.Time `firestore:"set_at"`
}

// NewFirestoreStore creates a Firestore-backed store and starts the periodic
// sweep of expired flags.
func NewFirestoreStore(ctx context.Context, projectID, database, collection string, ttl time.Duration) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		collection = "intent_flags"
	}
	if database == "" {
		database = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	s := &FirestoreStore{
		client:     client,
		collection: collection,
		ttl:        ttl,
		stopSweep:  make(chan struct{}),
	}

	go s.sweepLoop()

	log.LogInfoWithFields("flagstore", "Firestore intent flag store initialized", map[string]any{
		"project":    projectID,
		"collection": collection,
	})

	return s, nil
}

// Close stops the sweep and releases the Firestore client.
func (s *FirestoreStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopSweep) })
	return s.client.Close()
}

// docID maps a client ID to a document ID. Firestore forbids empty IDs, so
// the single-user slot gets a fixed name.
func (s *FirestoreStore) docID(clientID string) string {
	if clientID == "" {
		return "_default"
	}
	return clientID
}

func (s *FirestoreStore) Get(ctx context.Context, clientID string) (string, error) {
	snap, err := s.client.Collection(s.collection).Doc(s.docID(clientID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", nil
		}
		return "", fmt.Errorf("reading intent flag: %w", err)
	}

	var doc flagDoc
	if err := snap.DataTo(&doc); err != nil {
		return "", fmt.Errorf("decoding intent flag: %w", err)
	}

	if (entry{Value: doc.Value, SetAt: doc.SetAt}).expired(s.ttl, time.Now()) {
		return "", nil
	}
	return doc.Value, nil
}

func (s *FirestoreStore) Set(ctx context.Context, clientID, value string) error {
	_, err := s.client.Collection(s.collection).Doc(s.docID(clientID)).Set(ctx, flagDoc{
		Value: value,
		SetAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("writing intent flag: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Clear(ctx context.Context, clientID string) error {
	_, err := s.client.Collection(s.collection).Doc(s.docID(clientID)).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("clearing intent flag: %w", err)
	}
	return nil
}

func (s *FirestoreStore) sweepLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopSweep:
			return
		}
	}
}

// sweep deletes expired flag documents. Failures are logged and retried on
// the next tick; an expired flag already reads as absent, so the sweep is
// purely garbage collection.
func (s *FirestoreStore) sweep() {
	if s.ttl <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-s.ttl)
	iter := s.client.Collection(s.collection).Where("set_at", "<", cutoff).Documents(ctx)
	defer iter.Stop()

	deleted := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.LogWarnWithFields("flagstore", "Intent flag sweep failed", map[string]any{
				"error": err.Error(),
			})
			return
		}

		if _, err := snap.Ref.Delete(ctx); err != nil {
			log.LogWarnWithFields("flagstore", "Failed to delete expired intent flag", map[string]any{
				"doc":   snap.Ref.ID,
				"error": err.Error(),
			})
			continue
		}
		deleted++
	}

	if deleted > 0 {
		log.LogDebugWithFields("flagstore", "Swept expired intent flags", map[string]any{
			"count": deleted,
		})
	}
}
