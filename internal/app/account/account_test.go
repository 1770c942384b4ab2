package account_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-studio/internal/adapters/storage/memory"
	"github.com/PabloGalante/farum-studio/internal/app/account"
	"github.com/PabloGalante/farum-studio/internal/domain"
)

func TestCredentials_VersionAndFallbacks(t *testing.T) {
	ctx := context.Background()
	creds := account.NewCredentials(memory.NewKVStore(), "")

	_, err := creds.ChatKey(ctx)
	assert.ErrorIs(t, err, domain.ErrChatUnavailable)
	assert.Equal(t, uint64(0), creds.Version())

	require.NoError(t, creds.SetChatKey(ctx, "  chat-key \n"))
	assert.Equal(t, uint64(1), creds.Version())

	key, err := creds.ChatKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chat-key", key)

	video, err := creds.VideoKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chat-key", video)

	require.NoError(t, creds.SetVideoKey(ctx, "video-key"))
	assert.Equal(t, uint64(2), creds.Version())
	video, err = creds.VideoKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "video-key", video)
}

func TestCredentials_DefaultKey(t *testing.T) {
	creds := account.NewCredentials(memory.NewKVStore(), "from-env")
	key, err := creds.ChatKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
}

func TestUsers_SignUpLoginLogout(t *testing.T) {
	ctx := context.Background()
	users := account.NewUsers(memory.NewKVStore())

	created, err := users.SignUp(ctx, account.SignUpInput{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "ana", created.Username)
	assert.Empty(t, created.PasswordHash)

	current, err := users.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.ID, current.ID)

	require.NoError(t, users.Logout(ctx, "someone-else"))
	_, err = users.Current(ctx)
	require.NoError(t, err)

	require.NoError(t, users.Logout(ctx, created.ID))
	_, err = users.Current(ctx)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = users.Login(ctx, "ana@example.com", "wrong-pass")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	again, err := users.Login(ctx, "ANA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
}

func TestUsers_SignUpValidation(t *testing.T) {
	ctx := context.Background()
	users := account.NewUsers(memory.NewKVStore())

	_, err := users.SignUp(ctx, account.SignUpInput{Email: "not-an-email", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = users.SignUp(ctx, account.SignUpInput{Email: "a@b.co", Password: "123"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = users.SignUp(ctx, account.SignUpInput{Email: "a@b.co", Password: "secret1"})
	require.NoError(t, err)
	_, err = users.SignUp(ctx, account.SignUpInput{Email: "a@b.co", Password: "secret2"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUsers_LoginFederated(t *testing.T) {
	ctx := context.Background()
	users := account.NewUsers(memory.NewKVStore())

	first, err := users.LoginFederated(ctx, account.FederatedIdentity{Provider: "google", Email: "g@example.com", Username: "G"})
	require.NoError(t, err)
	second, err := users.LoginFederated(ctx, account.FederatedIdentity{Provider: "google", Email: "g@example.com"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = users.Login(ctx, "g@example.com", "anything")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestUsers_ByID(t *testing.T) {
	ctx := context.Background()
	users := account.NewUsers(memory.NewKVStore())

	ana, err := users.SignUp(ctx, account.SignUpInput{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)

	got, err := users.ByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", got.Email)
	assert.Empty(t, got.PasswordHash)

	_, err = users.ByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = users.ByID(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
