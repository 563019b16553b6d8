package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"ALLOWED_DOMAINS", "RATE_LIMIT_BACKEND", "SWEEP_SCHEDULE", "DEFAULT_NO_SHOW_TIMEOUT", "CREATE_QUEUE_COOLDOWN", "BOOK_COOLDOWN"} {
		unsetEnv(t, key)
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"mite.ac.in", "asterhyphen.xyz"}, cfg.AllowedDomains)
	require.Equal(t, 300*time.Second, cfg.DefaultNoShowTimeoutDuration())
	require.Equal(t, 60*time.Second, cfg.CreateQueueCooldownDuration())
	require.Equal(t, 2*time.Second, cfg.BookCooldownDuration())
	require.Equal(t, "@every 60s", cfg.SweepSchedule)
	require.Equal(t, "redis", cfg.RateLimitBackend)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ALLOWED_DOMAINS", " Campus.EDU , ,staff.campus.edu")
	t.Setenv("DEFAULT_NO_SHOW_TIMEOUT", "120")
	t.Setenv("CREATE_QUEUE_COOLDOWN", "0")
	t.Setenv("RATE_LIMIT_BACKEND", "Memory")
	t.Setenv("APP_PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"campus.edu", "staff.campus.edu"}, cfg.AllowedDomains)
	require.Equal(t, 120, cfg.DefaultNoShowTimeout)
	require.Equal(t, 60, cfg.CreateQueueCooldown)
	require.Equal(t, "memory", cfg.RateLimitBackend)
	require.Equal(t, "0.0.0.0:9000", cfg.Addr())
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.RateLimitBackend = "etcd"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.AllowedDomains = nil
	require.Error(t, cfg.Validate())
}

func TestTokenRoundTrip(t *testing.T) {
	now := time.Now()
	token, err := GenerateToken("secret", time.Hour, "u1", "a@mite.ac.in", true, "admin", now)
	require.NoError(t, err)

	claims, err := ValidateToken("secret", token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UID)
	require.Equal(t, "a@mite.ac.in", claims.Email)
	require.True(t, claims.EmailVerified)

	_, err = ValidateToken("other", token)
	require.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	token, err := GenerateToken("secret", time.Minute, "u1", "a@mite.ac.in", true, "", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = ValidateToken("secret", token)
	require.Error(t, err)
}

func TestTokenRequiresSecret(t *testing.T) {
	_, err := GenerateToken("", time.Hour, "u1", "", false, "", time.Now())
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestLoadEnvFile(t *testing.T) {
	unsetEnv(t, "BOOK_COOLDOWN")
	t.Setenv("LOW_PRIORITY_PREFIX", "1XX")

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("BOOK_COOLDOWN=7\nLOW_PRIORITY_PREFIX=4MT\n"), 0o600))
	LoadEnv(path)
	LoadEnv(filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 7*time.Second, cfg.BookCooldownDuration())
	require.Equal(t, "1XX", cfg.LowPriorityPrefix)
}

// unsetEnv removes key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}
