package sessions_test

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-studio/internal/adapters/storage/memory"
	"github.com/PabloGalante/farum-studio/internal/app/sessions"
	"github.com/PabloGalante/farum-studio/internal/domain"
)

func newManager(t *testing.T, kv *memory.KVStore, user domain.UserID) *sessions.Manager {
	t.Helper()
	clock := fixedClock(1000)
	return sessions.NewManager(context.Background(), sessions.NewStore(kv, clock), clock, user)
}

func assertSingleActive(t *testing.T, m *sessions.Manager) {
	t.Helper()
	active := m.ActiveID()
	matches := 0
	for _, s := range m.Sessions() {
		if s.ID == active {
			matches++
		}
	}
	assert.Equal(t, 1, matches, "active session %s must exist exactly once", active)
}

func TestManager_NewUserGetsSeededSessionPersisted(t *testing.T) {
	kv := memory.NewKVStore()
	m := newManager(t, kv, "alice")

	list := m.Sessions()
	require.Len(t, list, 1)
	assert.Equal(t, list[0].ID, m.ActiveID())

	doc := readDocument(t, kv)
	require.Len(t, doc, 1)
	assert.Equal(t, list[0].ID, doc[0].ID)
}

func TestManager_CreateSessionPrependsAndActivates(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.NewKVStore(), "alice")
	first := m.ActiveID()

	id := m.CreateSession(ctx, true)
	list := m.Sessions()
	require.Len(t, list, 2)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, id, m.ActiveID())
	assert.NotEqual(t, first, id)

	background := m.CreateSession(ctx, false)
	assert.Equal(t, id, m.ActiveID())
	assert.Equal(t, background, m.Sessions()[0].ID)
}

func TestManager_DeleteActivePromotesNewestRemaining(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	seedDocument(t, kv, []*domain.Session{
		session("S1", "alice", 100),
		session("S2", "alice", 200),
	})
	m := newManager(t, kv, "alice")
	require.Equal(t, domain.SessionID("S2"), m.ActiveID())

	require.NoError(t, m.DeleteSession(ctx, "S2"))

	assert.Equal(t, domain.SessionID("S1"), m.ActiveID())
	list := m.Sessions()
	require.Len(t, list, 1)
	assert.Equal(t, domain.SessionID("S1"), list[0].ID)
}

func TestManager_DeleteActivePicksGreatestCreatedAt(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	seedDocument(t, kv, []*domain.Session{
		session("a", "alice", 100),
		session("b", "alice", 300),
		session("c", "alice", 200),
		session("d", "alice", 400),
	})
	m := newManager(t, kv, "alice")
	require.NoError(t, m.SwitchSession("c"))

	require.NoError(t, m.DeleteSession(ctx, "c"))
	assert.Equal(t, domain.SessionID("d"), m.ActiveID())
}

func TestManager_DeleteLastSessionSeedsFreshOne(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.NewKVStore(), "alice")
	only := m.ActiveID()

	require.NoError(t, m.DeleteSession(ctx, only))

	list := m.Sessions()
	require.Len(t, list, 1)
	assert.NotEqual(t, only, list[0].ID)
	assert.Equal(t, list[0].ID, m.ActiveID())
	assert.Len(t, list[0].Messages, 1)
}

func TestManager_DeleteInactiveKeepsActive(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.NewKVStore(), "alice")
	old := m.ActiveID()
	current := m.CreateSession(ctx, true)

	require.NoError(t, m.DeleteSession(ctx, old))
	assert.Equal(t, current, m.ActiveID())
}

func TestManager_DeleteRemovesFromContext(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.NewKVStore(), "alice")
	other := m.ActiveID()
	m.CreateSession(ctx, true)

	require.True(t, m.ToggleContext(other))
	require.NoError(t, m.DeleteSession(ctx, other))
	assert.Empty(t, m.ContextIDs())
}

func TestManager_DeleteUnknown(t *testing.T) {
	m := newManager(t, memory.NewKVStore(), "alice")
	err := m.DeleteSession(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManager_RandomCreateDeleteKeepsOneActive(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.NewKVStore(), "alice")
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		if rng.Intn(2) == 0 {
			m.CreateSession(ctx, rng.Intn(2) == 0)
		} else {
			list := m.Sessions()
			victim := list[rng.Intn(len(list))].ID
			require.NoError(t, m.DeleteSession(ctx, victim))
		}
		assertSingleActive(t, m)
	}
}

func TestManager_RenameSession(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.NewKVStore(), "alice")
	id := m.ActiveID()

	require.NoError(t, m.RenameSession(ctx, id, "   "))
	s, _ := m.Session(id)
	assert.Equal(t, sessions.DefaultTitle, s.Title)

	require.NoError(t, m.RenameSession(ctx, id, "  Trip plans  "))
	s, _ = m.Session(id)
	assert.Equal(t, "Trip plans", s.Title)

	require.NoError(t, m.RenameSession(ctx, id, ""))
	s, _ = m.Session(id)
	assert.Equal(t, "Trip plans", s.Title)
}

func TestManager_AutoTitleFromFirstUserMessage(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.NewKVStore(), "alice")
	id := m.ActiveID()

	require.NoError(t, m.UpdateMessages(ctx, id, sessions.AppendMessages(userText(m.NextTimestamp(), "hello world"))))
	s, _ := m.Session(id)
	assert.Equal(t, "hello world", s.Title)

	require.NoError(t, m.UpdateMessages(ctx, id, sessions.AppendMessages(userText(m.NextTimestamp(), "second message"))))
	s, _ = m.Session(id)
	assert.Equal(t, "hello world", s.Title)
}

func TestManager_AutoTitleTruncates(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.NewKVStore(), "alice")
	id := m.ActiveID()
	long := strings.Repeat("abcdefghij", 5)

	require.NoError(t, m.UpdateMessages(ctx, id, sessions.AppendMessages(userText(m.NextTimestamp(), long))))
	s, _ := m.Session(id)
	assert.Equal(t, long[:sessions.MaxTitleLength]+"...", s.Title)
}

func TestManager_AutoTitleSkipsRenamedSessions(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.NewKVStore(), "alice")
	id := m.ActiveID()
	require.NoError(t, m.RenameSession(ctx, id, "Mine"))

	require.NoError(t, m.UpdateMessages(ctx, id, sessions.AppendMessages(userText(m.NextTimestamp(), "hello"))))
	s, _ := m.Session(id)
	assert.Equal(t, "Mine", s.Title)
}

func TestManager_AutoTitleFallbackForAttachmentOnly(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.NewKVStore(), "alice")
	id := m.ActiveID()

	attachment := domain.Message{
		Role:      domain.RoleUser,
		Parts:     []domain.Part{{InlineData: &domain.Blob{MIMEType: "image/png", Data: []byte{1}}}},
		Display:   []domain.DisplayPart{{Kind: domain.DisplayImage, URL: "data:image/png;base64,AQ=="}},
		Timestamp: m.NextTimestamp(),
	}
	require.NoError(t, m.UpdateMessages(ctx, id, sessions.AppendMessages(attachment)))
	s, _ := m.Session(id)
	assert.Equal(t, sessions.FallbackTitle, s.Title)
}

func TestManager_ReplaceMessages(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.NewKVStore(), "alice")
	replacement := []domain.Message{welcome(1), userText(2, "replaced")}

	require.NoError(t, m.SetActiveMessages(ctx, sessions.ReplaceMessages(replacement)))
	assert.Equal(t, replacement, m.ActiveMessages())
}

func TestManager_StreamingUpdatesSameSlot(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.NewKVStore(), "alice")
	id := m.ActiveID()

	ts := m.NextTimestamp()
	placeholder := domain.Message{Role: domain.RoleModel, Timestamp: ts, Generating: true}
	require.NoError(t, m.UpdateMessages(ctx, id, sessions.AppendMessages(userText(m.NextTimestamp(), "hi"), placeholder)))

	for _, text := range []string{"Hi", "Hi there", "Hi there!"} {
		found, err := m.UpdateMessage(ctx, id, ts, func(msg *domain.Message) {
			msg.Parts = []domain.Part{{Text: text}}
			msg.Display = []domain.DisplayPart{{Kind: domain.DisplayText, Text: text}}
		})
		require.NoError(t, err)
		require.True(t, found)
	}

	var slots []domain.Message
	for _, msg := range m.ActiveMessages() {
		if msg.Timestamp == ts {
			slots = append(slots, msg)
		}
	}
	require.Len(t, slots, 1)
	assert.Equal(t, "Hi there!", slots[0].DisplayText())
}

func TestManager_UpdateMessageUnknownTimestampInsertsNothing(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.NewKVStore(), "alice")
	before := m.ActiveMessages()

	found, err := m.UpdateMessage(ctx, m.ActiveID(), 12345, func(msg *domain.Message) { msg.Progress = "x" })
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, before, m.ActiveMessages())
}

func TestManager_BackgroundSessionStillUpdated(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.NewKVStore(), "alice")
	origin := m.ActiveID()
	ts := m.NextTimestamp()
	require.NoError(t, m.UpdateMessages(ctx, origin, sessions.AppendMessages(domain.Message{Role: domain.RoleModel, Timestamp: ts, Generating: true})))

	m.CreateSession(ctx, true)
	_, err := m.UpdateMessage(ctx, origin, ts, func(msg *domain.Message) {
		msg.Generating = false
		msg.Display = []domain.DisplayPart{{Kind: domain.DisplayText, Text: "done"}}
	})
	require.NoError(t, err)

	s, _ := m.Session(origin)
	assert.Equal(t, "done", s.Messages[len(s.Messages)-1].DisplayText())
	assert.NotEqual(t, origin, m.ActiveID())
}

func TestManager_ChangesArePersisted(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	m := newManager(t, kv, "alice")
	id := m.CreateSession(ctx, true)
	require.NoError(t, m.RenameSession(ctx, id, "Persisted"))

	reloaded := newManager(t, kv, "alice")
	s, ok := reloaded.Session(id)
	require.True(t, ok)
	assert.Equal(t, "Persisted", s.Title)
	assert.Empty(t, reloaded.ContextIDs())
}

func TestManager_RevisionTracksChanges(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.NewKVStore(), "alice")

	before := m.Snapshot()
	m.CreateSession(ctx, false)
	after := m.Snapshot()
	assert.Greater(t, after.Revision, before.Revision)

	m.ToggleContext(before.ActiveID)
	toggled := m.Snapshot()
	assert.Greater(t, toggled.ContextRevision, after.ContextRevision)
	assert.Equal(t, []domain.SessionID{before.ActiveID}, toggled.Context)
}
