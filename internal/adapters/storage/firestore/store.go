package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const collectionName = "farum_documents"

// Store keeps each storage key as one Firestore document.
type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (FARUM_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(collectionName).Doc(key)
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type valueDoc struct {
	Value     []byte    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// ─────────────────────────────────────────
// KVStore implementation
// ─────────────────────────────────────────

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	snap, err := s.doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("firestore Get %q: %w", key, err)
	}

	var doc valueDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, false, fmt.Errorf("firestore Get decode %q: %w", key, err)
	}
	return doc.Value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.doc(key).Set(ctx, valueDoc{Value: value, UpdatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("firestore Set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
