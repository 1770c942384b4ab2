package sessions

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PabloGalante/farum-studio/internal/domain"
	"github.com/PabloGalante/farum-studio/internal/observability"
)

// Manager owns one user's in-memory session collection, the active id and
// the context selection. Every change to the collection is saved through
// the Store.
type Manager struct {
	mu       sync.Mutex
	store    *Store
	clock    *Clock
	userID   domain.UserID
	sessions []*domain.Session // newest first
	activeID domain.SessionID
	context  *ContextSelector
	revision uint64
}

// Snapshot is a consistent copy of the state the history assembler needs.
type Snapshot struct {
	ActiveID        domain.SessionID
	Sessions        []*domain.Session
	Context         []domain.SessionID
	Revision        uint64
	ContextRevision uint64
}

// NewManager loads the user's sessions and activates the newest one.
func NewManager(ctx context.Context, store *Store, clock *Clock, userID domain.UserID) *Manager {
	sessions, active, seeded := store.Load(ctx, userID)
	m := &Manager{
		store:    store,
		clock:    clock,
		userID:   userID,
		sessions: sessions,
		activeID: active,
		context:  NewContextSelector(),
	}
	if seeded {
		m.persistLocked(ctx)
	}
	return m
}

func (m *Manager) UserID() domain.UserID {
	return m.userID
}

// NextTimestamp allocates a message key that is unique within any session.
func (m *Manager) NextTimestamp() domain.Timestamp {
	return m.clock.Next()
}

func (m *Manager) persistLocked(ctx context.Context) {
	m.revision++
	m.store.Save(ctx, m.sessions, m.userID)
}

func (m *Manager) indexLocked(id domain.SessionID) int {
	for i, s := range m.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) Sessions() []*domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*domain.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	return out
}

func (m *Manager) Session(id domain.SessionID) (*domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return nil, false
	}
	return m.sessions[i].Clone(), true
}

func (m *Manager) ActiveID() domain.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// CreateSession prepends a seeded session. The very first session of a
// collection is always activated.
func (m *Manager) CreateSession(ctx context.Context, makeActive bool) domain.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := NewSeededSession(m.userID, m.clock)
	if len(m.sessions) == 0 {
		m.sessions = []*domain.Session{sess}
		makeActive = true
	} else {
		m.sessions = append([]*domain.Session{sess}, m.sessions...)
	}
	if makeActive {
		m.activeID = sess.ID
	}

	observability.LoggerFromContext(ctx).Info("session created",
		"user_id", m.userID, "session_id", sess.ID, "active", makeActive)

	m.persistLocked(ctx)
	return sess.ID
}

func (m *Manager) SwitchSession(id domain.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexLocked(id) < 0 {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	if m.activeID != id {
		m.activeID = id
		m.revision++
	}
	return nil
}

// DeleteSession removes a session. Removing the active one promotes the
// newest remaining session, or seeds a fresh one when nothing is left.
func (m *Manager) DeleteSession(ctx context.Context, id domain.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}

	m.sessions = append(m.sessions[:i:i], m.sessions[i+1:]...)
	m.context.Remove(id)

	if m.activeID == id {
		if len(m.sessions) == 0 {
			sess := NewSeededSession(m.userID, m.clock)
			m.sessions = []*domain.Session{sess}
			m.activeID = sess.ID
		} else {
			m.activeID = newest(m.sessions).ID
		}
	}

	observability.LoggerFromContext(ctx).Info("session deleted",
		"user_id", m.userID, "session_id", id, "active", m.activeID)

	m.persistLocked(ctx)
	return nil
}

func newest(list []*domain.Session) *domain.Session {
	best := list[0]
	for _, s := range list[1:] {
		if s.CreatedAt > best.CreatedAt {
			best = s
		}
	}
	return best
}

// RenameSession ignores titles that are blank after trimming.
func (m *Manager) RenameSession(ctx context.Context, id domain.SessionID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	m.sessions[i].Title = title
	m.persistLocked(ctx)
	return nil
}

// UpdateMessages replaces a session's messages and derives the title the
// first time a user message shows up in a session still named DefaultTitle.
func (m *Manager) UpdateMessages(ctx context.Context, id domain.SessionID, update MessagesUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	sess := m.sessions[i]

	prev := sess.Messages
	next := update.Apply(prev)

	if sess.Title == DefaultTitle {
		if _, had := firstUserMessage(prev); !had {
			if first, has := firstUserMessage(next); has {
				sess.Title = DeriveTitle(first)
			}
		}
	}
	sess.Messages = next

	m.persistLocked(ctx)
	return nil
}

// UpdateMessage edits the message keyed by ts in place. It reports false
// when no message has that key; nothing is inserted in that case.
func (m *Manager) UpdateMessage(ctx context.Context, id domain.SessionID, ts domain.Timestamp, fn func(*domain.Message)) (bool, error) {
	found := false
	err := m.UpdateMessages(ctx, id, TransformMessages(func(prev []domain.Message) []domain.Message {
		for j := range prev {
			if prev[j].Timestamp == ts {
				fn(&prev[j])
				found = true
				break
			}
		}
		return prev
	}))
	return found, err
}

// ActiveMessages derives the active session's messages from the collection.
func (m *Manager) ActiveMessages() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(m.activeID)
	if i < 0 {
		return []domain.Message{}
	}
	return append([]domain.Message{}, m.sessions[i].Messages...)
}

func (m *Manager) SetActiveMessages(ctx context.Context, update MessagesUpdate) error {
	return m.UpdateMessages(ctx, m.ActiveID(), update)
}

// ToggleContext flips id in the context selection and reports whether it is
// selected afterwards.
func (m *Manager) ToggleContext(id domain.SessionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.context.Toggle(id)
}

// ResetContext empties the context selection.
func (m *Manager) ResetContext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.context.Reset()
}

func (m *Manager) ContextIDs() []domain.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.context.IDs()
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make([]*domain.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s.Clone())
	}
	return Snapshot{
		ActiveID:        m.activeID,
		Sessions:        sessions,
		Context:         m.context.IDs(),
		Revision:        m.revision,
		ContextRevision: m.context.Revision(),
	}
}
