package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plutochat/internal/auth"
	"plutochat/internal/config"
	"plutochat/internal/storage"
)

func newTestAuthService(t *testing.T) (AuthService, config.Config) {
	t.Helper()
	db := newTestDB(t)
	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecretKey: "test-secret",
			JWTExpiry:    time.Hour,
		},
	}
	return NewAuthService(storage.NewGormUserRepository(db), cfg), cfg
}

func TestRegisterAndLogin(t *testing.T) {
	svc, cfg := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "Alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "s3cret", user.PasswordHash, "password is stored hashed")

	token, loggedIn, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims, err := auth.ValidateToken(ctx, token, cfg.Auth.JWTSecretKey, nil)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.NotEmpty(t, claims.ID, "token carries a jti so logout can revoke it")
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "", "pw")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "", "other")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "", "right")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _ := newTestAuthService(t)

	_, _, err := svc.Login(context.Background(), "nobody", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterRequiresCredentials(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "", "pw")
	assert.Error(t, err)
	_, err = svc.Register(ctx, "alice", "", "")
	assert.Error(t, err)
}
