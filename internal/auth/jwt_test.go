package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plutochat/internal/config"
)

var testAuthCfg = config.AuthConfig{
	JWTSecretKey: "unit-test-secret",
	JWTExpiry:    time.Hour,
}

type fakeBlacklist struct {
	revoked map[string]bool
	err     error
}

func (f *fakeBlacklist) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	if f.revoked == nil {
		f.revoked = map[string]bool{}
	}
	f.revoked[jti] = true
	return nil
}

func (f *fakeBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.revoked[jti], nil
}

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken(42, "alice", testAuthCfg)
	require.NoError(t, err)

	claims, err := ValidateToken(context.Background(), token, testAuthCfg.JWTSecretKey, nil)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, "pluto-server", claims.Issuer)
}

func TestValidateTokenWrongKey(t *testing.T) {
	token, err := GenerateToken(1, "alice", testAuthCfg)
	require.NoError(t, err)

	_, err = ValidateToken(context.Background(), token, "different-secret", nil)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	cfg := testAuthCfg
	cfg.JWTExpiry = -time.Minute

	token, err := GenerateToken(1, "alice", cfg)
	require.NoError(t, err)

	_, err = ValidateToken(context.Background(), token, cfg.JWTSecretKey, nil)
	assert.Error(t, err)
}

func TestValidateTokenRevoked(t *testing.T) {
	token, err := GenerateToken(1, "alice", testAuthCfg)
	require.NoError(t, err)

	claims, err := ValidateToken(context.Background(), token, testAuthCfg.JWTSecretKey, nil)
	require.NoError(t, err)

	bl := &fakeBlacklist{}
	require.NoError(t, bl.Add(context.Background(), claims.ID, claims.ExpiresAt.Time))

	_, err = ValidateToken(context.Background(), token, testAuthCfg.JWTSecretKey, bl)
	assert.Error(t, err)
}

func TestValidateTokenBlacklistFailureRejects(t *testing.T) {
	token, err := GenerateToken(1, "alice", testAuthCfg)
	require.NoError(t, err)

	bl := &fakeBlacklist{err: context.DeadlineExceeded}
	_, err = ValidateToken(context.Background(), token, testAuthCfg.JWTSecretKey, bl)
	assert.Error(t, err, "an unreachable blacklist must fail closed")
}

func TestValidateTokenGarbage(t *testing.T) {
	_, err := ValidateToken(context.Background(), "not.a.jwt", testAuthCfg.JWTSecretKey, nil)
	assert.Error(t, err)
}
