package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/PabloGalante/farum-studio/internal/domain"
	"github.com/PabloGalante/farum-studio/internal/observability"
)

const ProviderPassword = "password"

// Users manages local accounts and the currently signed-in user record.
type Users struct {
	kv domain.KVStore
}

func NewUsers(kv domain.KVStore) *Users {
	return &Users{kv: kv}
}

type SignUpInput struct {
	Email    string
	Username string
	Password string
}

// FederatedIdentity is what an external identity provider hands back.
type FederatedIdentity struct {
	Provider string
	Email    string
	Username string
	Avatar   string
}

func (u *Users) list(ctx context.Context) ([]*domain.User, error) {
	raw, ok, err := u.kv.Get(ctx, domain.KeyUsers)
	if err != nil {
		return nil, domain.NewAppError(domain.ErrCodeStorage, "read users", err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var users []*domain.User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, domain.NewAppError(domain.ErrCodeStorage, "decode users", err)
	}
	return users, nil
}

func (u *Users) saveList(ctx context.Context, users []*domain.User) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return err
	}
	if err := u.kv.Set(ctx, domain.KeyUsers, raw); err != nil {
		return domain.NewAppError(domain.ErrCodeStorage, "write users", err)
	}
	return nil
}

func (u *Users) setCurrent(ctx context.Context, user *domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := u.kv.Set(ctx, domain.KeyCurrentUser, raw); err != nil {
		return domain.NewAppError(domain.ErrCodeStorage, "write current user", err)
	}
	return nil
}

func findByEmail(users []*domain.User, email string) *domain.User {
	for _, user := range users {
		if strings.EqualFold(user.Email, email) {
			return user
		}
	}
	return nil
}

// public strips the password hash before a user leaves this package.
func public(user *domain.User) *domain.User {
	out := *user
	out.PasswordHash = ""
	return &out
}

func (u *Users) SignUp(ctx context.Context, in SignUpInput) (*domain.User, error) {
	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("email %q: %w", email, domain.ErrInvalidInput)
	}
	if len(in.Password) < 6 {
		return nil, fmt.Errorf("password must be at least 6 characters: %w", domain.ErrInvalidInput)
	}

	users, err := u.list(ctx)
	if err != nil {
		return nil, err
	}
	if findByEmail(users, email) != nil {
		return nil, fmt.Errorf("email %q already registered: %w", email, domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}

	user := &domain.User{
		ID:           domain.UserID(uuid.NewString()),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Provider:     ProviderPassword,
	}

	if err := u.saveList(ctx, append(users, user)); err != nil {
		return nil, err
	}
	if err := u.setCurrent(ctx, public(user)); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info("user signed up", "user_id", user.ID)
	return public(user), nil
}

func (u *Users) Login(ctx context.Context, email, password string) (*domain.User, error) {
	users, err := u.list(ctx)
	if err != nil {
		return nil, err
	}

	user := findByEmail(users, strings.TrimSpace(email))
	if user == nil || user.Provider != ProviderPassword {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrUnauthorized
	}

	if err := u.setCurrent(ctx, public(user)); err != nil {
		return nil, err
	}
	return public(user), nil
}

// LoginFederated signs in with an identity already verified by a provider,
// creating the account on first use.
func (u *Users) LoginFederated(ctx context.Context, id FederatedIdentity) (*domain.User, error) {
	if id.Provider == "" || id.Provider == ProviderPassword {
		return nil, fmt.Errorf("provider %q: %w", id.Provider, domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(id.Email); err != nil {
		return nil, fmt.Errorf("email %q: %w", id.Email, domain.ErrInvalidInput)
	}

	users, err := u.list(ctx)
	if err != nil {
		return nil, err
	}

	user := findByEmail(users, id.Email)
	if user == nil {
		user = &domain.User{
			ID:       domain.UserID(uuid.NewString()),
			Email:    id.Email,
			Username: id.Username,
			Provider: id.Provider,
			Avatar:   id.Avatar,
		}
		if err := u.saveList(ctx, append(users, user)); err != nil {
			return nil, err
		}
	} else if user.Provider != id.Provider {
		return nil, domain.ErrUnauthorized
	}

	if err := u.setCurrent(ctx, public(user)); err != nil {
		return nil, err
	}
	return public(user), nil
}

// Logout clears the signed-in record when it belongs to userID. Another
// user's sign-in is left alone.
func (u *Users) Logout(ctx context.Context, userID domain.UserID) error {
	current, err := u.Current(ctx)
	if errors.Is(err, domain.ErrUnauthorized) {
		return nil
	}
	if err != nil {
		return err
	}
	if current.ID != userID {
		return nil
	}

	if err := u.kv.Set(ctx, domain.KeyCurrentUser, []byte("null")); err != nil {
		return domain.NewAppError(domain.ErrCodeStorage, "clear current user", err)
	}
	return nil
}

// ByID returns a registered user, or ErrUnauthorized when id is unknown.
func (u *Users) ByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	if id == "" {
		return nil, domain.ErrUnauthorized
	}
	users, err := u.list(ctx)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		if user.ID == id {
			return public(user), nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", id, domain.ErrUnauthorized)
}

// Current returns the signed-in user or ErrUnauthorized.
func (u *Users) Current(ctx context.Context) (*domain.User, error) {
	raw, ok, err := u.kv.Get(ctx, domain.KeyCurrentUser)
	if err != nil {
		return nil, domain.NewAppError(domain.ErrCodeStorage, "read current user", err)
	}
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	var user *domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, errors.Join(domain.ErrUnauthorized, err)
	}
	if user == nil {
		return nil, domain.ErrUnauthorized
	}
	return user, nil
}
