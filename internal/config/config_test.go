package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "prod", cfg.AppEnv)
	assert.Equal(t, 3, cfg.MaxFailedAttempts)
	assert.Equal(t, time.Hour, cfg.LockDuration)
	assert.Equal(t, 2*time.Minute, cfg.SessionTTL)
	assert.Equal(t, bcrypt.DefaultCost, cfg.PinHashCost)
	assert.Equal(t, "http://localhost:3000", cfg.CorsOrigins)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("PORT", "8081")
	t.Setenv("APP_ENV", "dev")
	t.Setenv("MAX_FAILED_ATTEMPTS", "5")
	t.Setenv("LOCK_DURATION", "15m")
	t.Setenv("SESSION_TTL", "30s")
	t.Setenv("PIN_HASH_COST", "4")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 5, cfg.MaxFailedAttempts)
	assert.Equal(t, 15*time.Minute, cfg.LockDuration)
	assert.Equal(t, 30*time.Second, cfg.SessionTTL)
	assert.Equal(t, 4, cfg.PinHashCost)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("MAX_FAILED_ATTEMPTS", "0")

	_, err := Load(zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWTSecret")
	assert.Contains(t, err.Error(), "MaxFailedAttempts")
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load(zap.NewNop())
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("APP_ENV", "staging")

	_, err := Load(zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AppEnv")
}
