package workspace_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-studio/internal/adapters/llm"
	"github.com/PabloGalante/farum-studio/internal/adapters/storage/memory"
	"github.com/PabloGalante/farum-studio/internal/app/account"
	"github.com/PabloGalante/farum-studio/internal/app/conversation"
	"github.com/PabloGalante/farum-studio/internal/app/sessions"
	"github.com/PabloGalante/farum-studio/internal/app/workspace"
	"github.com/PabloGalante/farum-studio/internal/domain"
)

func TestRegistry_OneWorkspacePerUser(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	reg := workspace.NewRegistry(kv, llm.NewMockLLM(), account.NewCredentials(kv, "k"), time.Millisecond)

	a1, err := reg.Get(ctx, "alice")
	require.NoError(t, err)
	a2, err := reg.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	b, err := reg.Get(ctx, "bob")
	require.NoError(t, err)
	assert.NotSame(t, a1, b)
	assert.NotEqual(t, a1.Sessions.ActiveID(), b.Sessions.ActiveID())

	_, err = reg.Get(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRegistry_ForgetResetsContext(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	reg := workspace.NewRegistry(kv, llm.NewMockLLM(), account.NewCredentials(kv, "k"), time.Millisecond)

	ws, err := reg.Get(ctx, "alice")
	require.NoError(t, err)
	other := ws.Sessions.ActiveID()
	current := ws.Sessions.CreateSession(ctx, true)
	ws.Sessions.ToggleContext(other)

	reg.Forget("alice")
	reopened, err := reg.Get(ctx, "alice")
	require.NoError(t, err)

	assert.Same(t, ws, reopened)
	assert.Empty(t, reopened.Sessions.ContextIDs())
	assert.Equal(t, current, reopened.Sessions.ActiveID())
	assert.Len(t, reopened.Sessions.Sessions(), 2)
}

func TestRegistry_LogoutDuringVideoJobKeepsNewSessions(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	clock := sessions.NewClock(nil)
	mock := llm.NewMockLLM()
	mock.VideoPolls = 20
	reg := workspace.NewRegistry(kv, mock, account.NewCredentials(kv, "k"), time.Millisecond)

	ws, err := reg.Get(ctx, "alice")
	require.NoError(t, err)
	out, err := ws.Conversation.StartVideoGeneration(ctx, conversation.VideoInput{Prompt: "waves"})
	require.NoError(t, err)

	reg.Forget("alice")
	again, err := reg.Get(ctx, "alice")
	require.NoError(t, err)
	created := again.Sessions.CreateSession(ctx, true)

	require.Eventually(t, func() bool {
		s, ok := again.Sessions.Session(out.SessionID)
		if !ok {
			return false
		}
		last := s.Messages[len(s.Messages)-1]
		return !last.Generating && len(last.Display) == 1 && last.Display[0].Kind == domain.DisplayVideo
	}, 2*time.Second, 5*time.Millisecond)

	persisted, _, _ := sessions.NewStore(kv, clock).Load(ctx, "alice")
	ids := make([]domain.SessionID, 0, len(persisted))
	for _, s := range persisted {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []domain.SessionID{created, out.SessionID}, ids)
}
