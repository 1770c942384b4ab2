package history

import (
	"context"
	"sync"

	"github.com/PabloGalante/farum-studio/internal/app/sessions"
	"github.com/PabloGalante/farum-studio/internal/domain"
	"github.com/PabloGalante/farum-studio/internal/observability"
)

// CredentialSource supplies the chat API key and a counter that moves every
// time a key changes.
type CredentialSource interface {
	ChatKey(ctx context.Context) (string, error)
	Version() uint64
}

type bindKey struct {
	activeID        domain.SessionID
	revision        uint64
	contextRevision uint64
	webSearch       bool
	credVersion     uint64
}

// Binder keeps the upstream chat handle in sync with the workspace. The
// handle is rebuilt when the active session, the session collection, the
// context selection, the search flag or the credentials change. A failed
// build leaves the handle absent until one of those changes again.
type Binder struct {
	mu        sync.Mutex
	backend   domain.ChatBackend
	creds     CredentialSource
	functions []domain.FunctionDeclaration
	webSearch bool

	bound  bool
	key    bindKey
	handle domain.ChatHandle
}

func NewBinder(backend domain.ChatBackend, creds CredentialSource, functions []domain.FunctionDeclaration) *Binder {
	return &Binder{
		backend:   backend,
		creds:     creds,
		functions: functions,
	}
}

func (b *Binder) SetWebSearch(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.webSearch = on
}

func (b *Binder) WebSearch() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.webSearch
}

// Handle returns the chat handle for snap, rebuilding it if anything it
// depends on changed since the last call. It returns ErrChatUnavailable
// while the handle is absent.
func (b *Binder) Handle(ctx context.Context, snap sessions.Snapshot) (domain.ChatHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := bindKey{
		activeID:        snap.ActiveID,
		revision:        snap.Revision,
		contextRevision: snap.ContextRevision,
		webSearch:       b.webSearch,
		credVersion:     b.creds.Version(),
	}

	if !b.bound || key != b.key {
		b.handle = b.build(ctx, snap)
		b.key = key
		b.bound = true
	}

	if b.handle == nil {
		return nil, domain.ErrChatUnavailable
	}
	return b.handle, nil
}

func (b *Binder) build(ctx context.Context, snap sessions.Snapshot) domain.ChatHandle {
	log := observability.LoggerFromContext(ctx).With("session_id", snap.ActiveID)

	apiKey, err := b.creds.ChatKey(ctx)
	if err != nil || apiKey == "" {
		log.Warn("chat handle unavailable: no API key", "error", err)
		observability.ChatRebuilds.WithLabelValues("no_credentials").Inc()
		return nil
	}

	req := Assemble(Input{
		ActiveID:  snap.ActiveID,
		Sessions:  snap.Sessions,
		Context:   snap.Context,
		WebSearch: b.webSearch,
	}, b.functions)
	req.APIKey = apiKey

	handle, err := b.backend.StartChat(ctx, req)
	if err != nil {
		log.Error("failed to start upstream chat", "error", err)
		observability.ChatRebuilds.WithLabelValues("error").Inc()
		return nil
	}

	log.Debug("upstream chat rebuilt", "history_turns", len(req.History), "context_sessions", len(snap.Context))
	observability.ChatRebuilds.WithLabelValues("ok").Inc()
	return handle
}
