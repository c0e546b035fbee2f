package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexbotov/xumm/pkg/xumm"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"XUMM_APIKEY", "XUMM_APISECRET", "XUMM_BASE_URL", "XUMM_LOG_LEVEL",
		"XUMM_LOG_DEVELOPMENT", "XUMM_JWT_STORE_DSN", "XUMM_METRICS_ADDR",
		"XUMM_WEBHOOK_ADDR", "XUMM_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xumm.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)

	assert.Equal(t, xumm.DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, xumm.DefaultSubscriptionConfig(), cfg.Subscription)
	assert.False(t, cfg.Metrics.Enabled())
	assert.False(t, cfg.Webhook.Enabled())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[api]
key = "  aaaaaaaa-bbbb-cccc-dddd-1234567890ab  "
secret = "bbbbbbbb-cccc-dddd-eeee-1234567890ab"
timeout = "5s"

[log]
level = "debug"
development = true

[metrics]
addr = ":9100"

[subscription]
keepalive_interval = "1s"
reconnect_delay = "500ms"
max_reconnect_attempts = 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "aaaaaaaa-bbbb-cccc-dddd-1234567890ab", cfg.API.Key)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.True(t, cfg.Metrics.Enabled())
	assert.Equal(t, time.Second, cfg.Subscription.KeepaliveInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Subscription.ReconnectDelay)
	assert.Equal(t, uint64(5), cfg.Subscription.MaxReconnectAttempts)
	// untouched keys keep their defaults
	assert.Equal(t, xumm.DefaultSubscriptionConfig().KeepaliveTimeout, cfg.Subscription.KeepaliveTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[api]
key = "from-file"

[webhook]
addr = ":8080"
`)
	t.Setenv("XUMM_APIKEY", "from-env")
	t.Setenv("XUMM_WEBHOOK_ADDR", ":9090")
	t.Setenv("XUMM_TIMEOUT", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.API.Key)
	assert.Equal(t, ":9090", cfg.Webhook.Addr)
	assert.Equal(t, 2*time.Second, cfg.API.Timeout)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, `[api`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[subscription]\nkeepalive_timeout = \"soon\"\n"))
	assert.ErrorContains(t, err, "subscription.keepalive_timeout")

	t.Setenv("XUMM_LOG_DEVELOPMENT", "maybe")
	_, err = Load("")
	assert.Error(t, err)
}

func TestClientConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("XUMM_APIKEY", "aaaaaaaa-bbbb-cccc-dddd-1234567890ab")
	t.Setenv("XUMM_APISECRET", "bbbbbbbb-cccc-dddd-eeee-1234567890ab")

	cfg, err := Load("")
	require.NoError(t, err)

	cc := cfg.ClientConfig()
	assert.Equal(t, "aaaaaaaa-bbbb-cccc-dddd-1234567890ab", cc.APIKey)
	assert.Equal(t, xumm.FlowAPISecret, cc.Flow)
	assert.Equal(t, cfg.Subscription, cc.Subscription)

	_, err = xumm.NewClient(cc)
	assert.NoError(t, err)
}
