package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-studio/internal/adapters/llm"
	"github.com/PabloGalante/farum-studio/internal/adapters/storage/memory"
	"github.com/PabloGalante/farum-studio/internal/app/account"
	"github.com/PabloGalante/farum-studio/internal/app/history"
	"github.com/PabloGalante/farum-studio/internal/app/sessions"
	"github.com/PabloGalante/farum-studio/internal/domain"
)

type fixture struct {
	ctx     context.Context
	mock    *llm.MockLLM
	creds   *account.Credentials
	manager *sessions.Manager
	binder  *history.Binder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	kv := memory.NewKVStore()
	clock := sessions.NewClock(func() time.Time { return time.UnixMilli(1000) })
	mock := llm.NewMockLLM()
	creds := account.NewCredentials(kv, "")
	require.NoError(t, creds.SetChatKey(ctx, "key-1"))

	return &fixture{
		ctx:     ctx,
		mock:    mock,
		creds:   creds,
		manager: sessions.NewManager(ctx, sessions.NewStore(kv, clock), clock, "alice"),
		binder:  history.NewBinder(mock, creds, nil),
	}
}

func (f *fixture) handle(t *testing.T) domain.ChatHandle {
	t.Helper()
	h, err := f.binder.Handle(f.ctx, f.manager.Snapshot())
	require.NoError(t, err)
	return h
}

func TestBinder_ReusesHandleWhileNothingChanges(t *testing.T) {
	f := newFixture(t)

	first := f.handle(t)
	second := f.handle(t)
	assert.Same(t, first, second)
	assert.Len(t, f.mock.Requests, 1)
}

func TestBinder_RebuildsOnEveryDependency(t *testing.T) {
	f := newFixture(t)
	f.handle(t)
	origin := f.manager.ActiveID()

	// collection change
	id := f.manager.CreateSession(f.ctx, true)
	f.handle(t)
	assert.Len(t, f.mock.Requests, 2)

	// active session change
	require.NoError(t, f.manager.SwitchSession(origin))
	f.handle(t)
	assert.Len(t, f.mock.Requests, 3)

	// context change
	f.manager.ToggleContext(id)
	f.handle(t)
	assert.Len(t, f.mock.Requests, 4)

	// search flag
	f.binder.SetWebSearch(true)
	f.handle(t)
	assert.Len(t, f.mock.Requests, 5)
	last, _ := f.mock.LastRequest()
	assert.True(t, last.Tools.WebSearch)

	// credentials
	require.NoError(t, f.creds.SetChatKey(f.ctx, "key-2"))
	f.handle(t)
	assert.Len(t, f.mock.Requests, 6)
	last, _ = f.mock.LastRequest()
	assert.Equal(t, "key-2", last.APIKey)
}

func TestBinder_AbsentWithoutCredentials(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.creds.SetChatKey(f.ctx, ""))

	_, err := f.binder.Handle(f.ctx, f.manager.Snapshot())
	assert.ErrorIs(t, err, domain.ErrChatUnavailable)
	assert.Empty(t, f.mock.Requests)

	require.NoError(t, f.creds.SetChatKey(f.ctx, "key-3"))
	f.handle(t)
	assert.Len(t, f.mock.Requests, 1)
}

func TestBinder_StartFailureIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.mock.StartErr = errors.New("invalid api key")

	_, err := f.binder.Handle(f.ctx, f.manager.Snapshot())
	assert.ErrorIs(t, err, domain.ErrChatUnavailable)

	f.mock.StartErr = nil
	_, err = f.binder.Handle(f.ctx, f.manager.Snapshot())
	assert.ErrorIs(t, err, domain.ErrChatUnavailable, "same inputs keep the handle absent")

	require.NoError(t, f.creds.SetChatKey(f.ctx, "key-fixed"))
	f.handle(t)
}
