package account

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/PabloGalante/farum-studio/internal/domain"
)

// Credentials holds the user-supplied API keys. Version moves on every
// change so that upstream handles built with an old key get replaced.
type Credentials struct {
	kv         domain.KVStore
	defaultKey string
	version    atomic.Uint64
}

// NewCredentials uses defaultKey when no key has been stored.
func NewCredentials(kv domain.KVStore, defaultKey string) *Credentials {
	return &Credentials{kv: kv, defaultKey: defaultKey}
}

func (c *Credentials) read(ctx context.Context, key string) (string, error) {
	raw, ok, err := c.kv.Get(ctx, key)
	if err != nil {
		return "", domain.NewAppError(domain.ErrCodeStorage, "read "+key, err)
	}
	if !ok {
		return "", nil
	}
	return strings.TrimSpace(string(raw)), nil
}

func (c *Credentials) write(ctx context.Context, key, value string) error {
	if err := c.kv.Set(ctx, key, []byte(strings.TrimSpace(value))); err != nil {
		return domain.NewAppError(domain.ErrCodeStorage, "write "+key, err)
	}
	c.version.Add(1)
	return nil
}

// ChatKey is used for chat, image and speech calls.
func (c *Credentials) ChatKey(ctx context.Context) (string, error) {
	v, err := c.read(ctx, domain.KeyAPIKey)
	if err != nil {
		return "", err
	}
	if v == "" {
		v = c.defaultKey
	}
	if v == "" {
		return "", domain.NewAppError(domain.ErrCodeCredentials, "no chat API key configured", domain.ErrChatUnavailable)
	}
	return v, nil
}

func (c *Credentials) SetChatKey(ctx context.Context, key string) error {
	return c.write(ctx, domain.KeyAPIKey, key)
}

// VideoKey falls back to the chat key when no dedicated key is stored.
func (c *Credentials) VideoKey(ctx context.Context) (string, error) {
	v, err := c.read(ctx, domain.KeyVideoAPIKey)
	if err != nil {
		return "", err
	}
	if v != "" {
		return v, nil
	}
	return c.ChatKey(ctx)
}

func (c *Credentials) SetVideoKey(ctx context.Context, key string) error {
	return c.write(ctx, domain.KeyVideoAPIKey, key)
}

func (c *Credentials) Version() uint64 {
	return c.version.Load()
}
