package sessions

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/PabloGalante/farum-studio/internal/domain"
	"github.com/PabloGalante/farum-studio/internal/observability"
)

// Store reads and writes the cross-user sessions document. It never returns
// storage errors: reads fall back to a fresh seeded session and failed
// writes are logged and dropped. One Store is shared by every user's
// Manager; mu serializes the read-merge-write in Save.
type Store struct {
	mu    sync.Mutex
	kv    domain.KVStore
	clock *Clock
}

func NewStore(kv domain.KVStore, clock *Clock) *Store {
	return &Store{kv: kv, clock: clock}
}

func formatID(ts domain.Timestamp) string {
	return strconv.FormatInt(ts, 10)
}

func (s *Store) readAll(ctx context.Context) ([]*domain.Session, error) {
	raw, ok, err := s.kv.Get(ctx, domain.KeySessions)
	if err != nil {
		return nil, domain.NewAppError(domain.ErrCodeStorage, "read sessions", err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}

	var all []*domain.Session
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, domain.NewAppError(domain.ErrCodeStorage, "decode sessions", err)
	}
	return all, nil
}

// Load returns the user's sessions newest first and the id to activate.
// A seeded session is synthesized when there is nothing usable to load.
func (s *Store) Load(ctx context.Context, userID domain.UserID) ([]*domain.Session, domain.SessionID, bool) {
	log := observability.LoggerFromContext(ctx).With("user_id", userID)

	all, err := s.readAll(ctx)
	if err != nil {
		log.Warn("failed to load sessions, starting fresh", "error", err)
		observability.StorageFallbacks.WithLabelValues("load").Inc()
		seeded := NewSeededSession(userID, s.clock)
		return []*domain.Session{seeded}, seeded.ID, true
	}

	var mine []*domain.Session
	for _, sess := range all {
		if sess != nil && sess.UserID == userID {
			mine = append(mine, sess)
		}
	}

	if len(mine) == 0 {
		seeded := NewSeededSession(userID, s.clock)
		return []*domain.Session{seeded}, seeded.ID, true
	}

	sortNewestFirst(mine)
	log.Debug("sessions loaded", "count", len(mine))
	return mine, mine[0].ID, false
}

// Save merges the user's sessions into the stored document, leaving other
// users' entries untouched, and writes the whole document back.
func (s *Store) Save(ctx context.Context, sessions []*domain.Session, userID domain.UserID) {
	log := observability.LoggerFromContext(ctx).With("user_id", userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll(ctx)
	if err != nil {
		// Writing without the other users' entries would drop them.
		log.Error("failed to read sessions before save, skipping write", "error", err)
		observability.StorageFallbacks.WithLabelValues("save").Inc()
		return
	}

	merged := make([]*domain.Session, 0, len(all)+len(sessions))
	for _, sess := range all {
		if sess != nil && sess.UserID != userID {
			merged = append(merged, sess)
		}
	}
	merged = append(merged, sessions...)

	raw, err := json.Marshal(merged)
	if err != nil {
		log.Error("failed to encode sessions", "error", err)
		observability.StorageFallbacks.WithLabelValues("save").Inc()
		return
	}

	if err := s.kv.Set(ctx, domain.KeySessions, raw); err != nil {
		log.Error("failed to write sessions", slog.Any("error", err))
		observability.StorageFallbacks.WithLabelValues("save").Inc()
	}
}

func sortNewestFirst(list []*domain.Session) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt > list[j].CreatedAt
	})
}
