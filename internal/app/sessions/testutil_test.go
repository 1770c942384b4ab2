package sessions_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-studio/internal/adapters/storage/memory"
	"github.com/PabloGalante/farum-studio/internal/app/sessions"
	"github.com/PabloGalante/farum-studio/internal/domain"
)

func fixedClock(start int64) *sessions.Clock {
	return sessions.NewClock(func() time.Time { return time.UnixMilli(start) })
}

func seedDocument(t *testing.T, kv *memory.KVStore, list []*domain.Session) {
	t.Helper()
	raw, err := json.Marshal(list)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), domain.KeySessions, raw))
}

func readDocument(t *testing.T, kv *memory.KVStore) []*domain.Session {
	t.Helper()
	raw, ok, err := kv.Get(context.Background(), domain.KeySessions)
	require.NoError(t, err)
	require.True(t, ok)

	var list []*domain.Session
	require.NoError(t, json.Unmarshal(raw, &list))
	return list
}

func welcome(ts int64) domain.Message {
	return domain.Message{
		Role:      domain.RoleModel,
		Parts:     []domain.Part{{Text: sessions.WelcomeText}},
		Display:   []domain.DisplayPart{{Kind: domain.DisplayText, Text: sessions.WelcomeText}},
		Timestamp: ts,
	}
}

func userText(ts int64, text string) domain.Message {
	return domain.Message{
		Role:      domain.RoleUser,
		Parts:     []domain.Part{{Text: text}},
		Display:   []domain.DisplayPart{{Kind: domain.DisplayText, Text: text}},
		Timestamp: ts,
	}
}

func session(id string, user domain.UserID, created int64, msgs ...domain.Message) *domain.Session {
	return &domain.Session{
		ID:        domain.SessionID(id),
		UserID:    user,
		Title:     sessions.DefaultTitle,
		CreatedAt: created,
		Messages:  append([]domain.Message{welcome(created)}, msgs...),
	}
}
