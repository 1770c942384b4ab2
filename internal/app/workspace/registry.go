package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PabloGalante/farum-studio/internal/app/account"
	"github.com/PabloGalante/farum-studio/internal/app/conversation"
	"github.com/PabloGalante/farum-studio/internal/app/history"
	"github.com/PabloGalante/farum-studio/internal/app/sessions"
	"github.com/PabloGalante/farum-studio/internal/app/tools"
	"github.com/PabloGalante/farum-studio/internal/domain"
	"github.com/PabloGalante/farum-studio/internal/observability"
)

// Workspace is everything one signed-in user works with.
type Workspace struct {
	Sessions     *sessions.Manager
	Binder       *history.Binder
	Conversation *conversation.Service
}

// Registry builds workspaces lazily, one per user, and keeps them for the
// life of the process.
type Registry struct {
	mu           sync.Mutex
	store        *sessions.Store
	clock        *sessions.Clock
	gen          domain.Generator
	creds        *account.Credentials
	pollInterval time.Duration
	workspaces   map[domain.UserID]*Workspace
}

func NewRegistry(kv domain.KVStore, gen domain.Generator, creds *account.Credentials, pollInterval time.Duration) *Registry {
	clock := sessions.NewClock(nil)
	return &Registry{
		store:        sessions.NewStore(kv, clock),
		clock:        clock,
		gen:          gen,
		creds:        creds,
		pollInterval: pollInterval,
		workspaces:   make(map[domain.UserID]*Workspace),
	}
}

func (r *Registry) Get(ctx context.Context, userID domain.UserID) (*Workspace, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required: %w", domain.ErrUnauthorized)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ws, ok := r.workspaces[userID]; ok {
		return ws, nil
	}

	manager := sessions.NewManager(ctx, r.store, r.clock, userID)
	binder := history.NewBinder(r.gen, r.creds, tools.Declarations(tools.NewFilesTool()))
	ws := &Workspace{
		Sessions:     manager,
		Binder:       binder,
		Conversation: conversation.NewService(manager, binder, r.gen, r.creds, conversation.WithPollInterval(r.pollInterval)),
	}
	r.workspaces[userID] = ws

	observability.LoggerFromContext(ctx).Info("workspace opened", "user_id", userID, "sessions", len(manager.Sessions()))
	return ws, nil
}

// Forget clears the per-login state of a user's workspace on logout. The
// Manager itself is kept: background jobs still write through it, and a
// second Manager for the same user would overwrite their results on save.
func (r *Registry) Forget(userID domain.UserID) {
	r.mu.Lock()
	ws, ok := r.workspaces[userID]
	r.mu.Unlock()

	if ok {
		ws.Sessions.ResetContext()
	}
}
