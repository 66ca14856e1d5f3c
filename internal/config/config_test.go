package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cloudbox.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, "0.0.0.0", c.Host)
	assert.Equal(t, 5000, c.Port)
	assert.Equal(t, "cloud_storage", c.UploadDir)
	assert.Equal(t, "super_secret_key", c.SecretKey)
	assert.Equal(t, 24*time.Hour, c.SessionDuration.Duration)
	assert.Zero(t, c.IdleTimeout.Duration)
	assert.Equal(t, int64(32), c.MaxUploadMB)
	assert.Equal(t, int64(32<<20), c.MaxUploadBytes())
	assert.Equal(t, "0.0.0.0:5000", c.Addr())
	assert.Equal(t, map[string]string{"admin": "password123", "yam": "mypassword"}, c.Users)
	require.NoError(t, c.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
port = 8080
upload_dir = "/srv/files"
session_duration = "90m"
idle_timeout = "15m"
log_format = "json"
trusted_proxies = ["10.0.0.0/8", "127.0.0.1"]
audit_webhook = "https://hooks.example.com/audit"

[users]
alice = "s3cret"
`)
	c := Default()
	require.NoError(t, c.LoadFile(path))

	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, "/srv/files", c.UploadDir)
	assert.Equal(t, 90*time.Minute, c.SessionDuration.Duration)
	assert.Equal(t, 15*time.Minute, c.IdleTimeout.Duration)
	assert.Equal(t, "json", c.LogFormat)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, c.TrustedProxies)
	assert.Equal(t, "https://hooks.example.com/audit", c.AuditWebhook)
	// Untouched keys keep their defaults.
	assert.Equal(t, "0.0.0.0", c.Host)
	assert.Equal(t, "super_secret_key", c.SecretKey)
	// The users table is replaced, not merged.
	assert.Equal(t, map[string]string{"alice": "s3cret"}, c.Users)
}

func TestLoadFile_KeepsDefaultUsersWhenAbsent(t *testing.T) {
	c := Default()
	require.NoError(t, c.LoadFile(writeFile(t, `port = 9000`)))
	assert.Len(t, c.Users, 2)
}

func TestLoadFile_Errors(t *testing.T) {
	c := Default()
	assert.Error(t, c.LoadFile(filepath.Join(t.TempDir(), "missing.toml")))

	err := Default().LoadFile(writeFile(t, `bogus_key = 1`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus_key")

	assert.Error(t, Default().LoadFile(writeFile(t, `session_duration = "soon"`)))
	assert.Error(t, Default().LoadFile(writeFile(t, `port = `)))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvSecretKey, "from-env")
	t.Setenv(EnvUploadDir, "/data/uploads")
	t.Setenv(EnvSessionDB, "/data/sessions.db")

	c := Default()
	c.ApplyEnv()
	assert.Equal(t, "from-env", c.SecretKey)
	assert.Equal(t, "/data/uploads", c.UploadDir)
	assert.Equal(t, "/data/sessions.db", c.SessionDB)
}

func TestApplyEnv_EmptySecretIgnored(t *testing.T) {
	t.Setenv(EnvSecretKey, "")
	c := Default()
	c.ApplyEnv()
	assert.Equal(t, "super_secret_key", c.SecretKey)
}

func TestLoad_Precedence(t *testing.T) {
	t.Setenv(EnvSecretKey, "env-wins")
	path := writeFile(t, `secret_key = "file-value"`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-wins", c.SecretKey)

	c, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-wins", c.SecretKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"no upload dir", func(c *Config) { c.UploadDir = "" }},
		{"no secret", func(c *Config) { c.SecretKey = "" }},
		{"no users", func(c *Config) { c.Users = nil }},
		{"empty username", func(c *Config) { c.Users = map[string]string{"": "x"} }},
		{"zero upload size", func(c *Config) { c.MaxUploadMB = 0 }},
		{"zero session duration", func(c *Config) { c.SessionDuration.Duration = 0 }},
		{"negative idle", func(c *Config) { c.IdleTimeout.Duration = -time.Second }},
		{"cert without key", func(c *Config) { c.TLSCert = "cert.pem" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad webhook header", func(c *Config) { c.AuditWebhookHeader = "token" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestSlogLevel(t *testing.T) {
	c := Default()
	c.LogLevel = "debug"
	level, err := c.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1h30m")))
	assert.Equal(t, 90*time.Minute, d.Duration)
	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1h30m0s", string(b))
	assert.Error(t, d.UnmarshalText([]byte("later")))
}
