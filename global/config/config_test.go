package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"PNotify/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/ws", cfg.Gateway.WSPath)
	assert.Equal(t, 75*time.Second, cfg.Gateway.PongWait)
	assert.Equal(t, 1000, cfg.Queue.MaxPerIdentity)
	assert.Equal(t, "notify.deliver", cfg.NATS.Subject)
	assert.Equal(t, 5, cfg.Client.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Client.BackoffMax)
	assert.Equal(t, 2.0, cfg.Client.BackoffMultiplier)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("OFFLINE_QUEUE_MAX", "0")
	t.Setenv("NATS_URL", "nats://a:4222,nats://b:4222")
	t.Setenv("SESSION_STATIC", "s1=alice,s2=bob")
	t.Setenv("ALLOWED_ORIGINS", "app.example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 0, cfg.Queue.MaxPerIdentity)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.NATS.URLs)
	assert.Equal(t, map[string]string{"s1": "alice", "s2": "bob"}, cfg.Session.Static)
	assert.Equal(t, []string{"app.example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PPNOTIFY_TEST_ONLY=1\nWS_PATH=/notify\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("PPNOTIFY_TEST_ONLY")
		_ = os.Unsetenv("WS_PATH")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/notify", cfg.Gateway.WSPath)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("WS_PING_INTERVAL", "2m")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Equal(t, errs.ConfigError, errs.Code(err))
}

func TestLoad_BadValue(t *testing.T) {
	t.Setenv("NODE_ID", "not-a-number")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Equal(t, errs.ConfigError, errs.Code(err))
}

func TestLoad_PresenceTTLBelowPing(t *testing.T) {
	t.Setenv("PRESENCE_TTL", "30s")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRESENCE_TTL")
}
