// Package config handles configuration for the server, including defaults,
// an optional TOML file, environment overrides and validation. Command-line
// flags are applied on top by the cobra command.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// EnvSecretKey overrides the session signing key.
	EnvSecretKey = "SECRET_KEY"
	// EnvUploadDir overrides the storage directory.
	EnvUploadDir = "CLOUDBOX_UPLOAD_DIR"
	// EnvSessionDB overrides the session database path.
	EnvSessionDB = "CLOUDBOX_SESSION_DB"
)

// Config holds runtime settings for the server.
//
// Fields:
//   - Host / Port: listen address.
//   - UploadDir: flat directory holding uploaded files.
//   - SecretKey: key for signing session cookies. The default is for
//     development only; set SECRET_KEY in production.
//   - SessionDB: bbolt file for persistent sessions; empty keeps sessions
//     in memory.
//   - SessionDuration / IdleTimeout: session lifetime and inactivity limit
//     (zero idle timeout disables the check).
//   - MaxUploadMB: largest accepted upload body.
//   - TrustedProxies: CIDRs whose forwarding headers identify the client
//     for login throttling.
//   - AuditWebhook / AuditWebhookHeader: optional endpoint receiving audit
//     events as JSON, and a "Name: value" header sent with them.
//   - Users: the login table, username to password.
type Config struct {
	Host               string            `toml:"host"`
	Port               int               `toml:"port"`
	UploadDir          string            `toml:"upload_dir"`
	SecretKey          string            `toml:"secret_key"`
	SessionDB          string            `toml:"session_db"`
	SessionDuration    Duration          `toml:"session_duration"`
	IdleTimeout        Duration          `toml:"idle_timeout"`
	MaxUploadMB        int64             `toml:"max_upload_mb"`
	TLSCert            string            `toml:"tls_cert"`
	TLSKey             string            `toml:"tls_key"`
	LogLevel           string            `toml:"log_level"`
	LogFormat          string            `toml:"log_format"`
	TrustedProxies     []string          `toml:"trusted_proxies"`
	AuditWebhook       string            `toml:"audit_webhook"`
	AuditWebhookHeader string            `toml:"audit_webhook_header"`
	Users              map[string]string `toml:"users"`
}

// Duration is a time.Duration written as a Go duration string ("24h", "90m")
// in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            5000,
		UploadDir:       "cloud_storage",
		SecretKey:       "super_secret_key",
		SessionDuration: Duration{24 * time.Hour},
		MaxUploadMB:     32,
		LogLevel:        "info",
		LogFormat:       "text",
		Users: map[string]string{
			"admin": "password123",
			"yam":   "mypassword",
		},
	}
}

// LoadFile overlays the TOML file at path onto c. Unknown keys are an error.
// A users table in the file replaces the built-in one instead of merging
// with it.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	defaults := c.Users
	c.Users = nil
	err = toml.NewDecoder(f).DisallowUnknownFields().Decode(c)
	if c.Users == nil {
		c.Users = defaults
	}
	if err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parsing %s: %s", path, strict.String())
		}
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment overrides onto c.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvSecretKey); ok && v != "" {
		c.SecretKey = v
	}
	if v, ok := os.LookupEnv(EnvUploadDir); ok && v != "" {
		c.UploadDir = v
	}
	if v, ok := os.LookupEnv(EnvSessionDB); ok {
		c.SessionDB = v
	}
}

// Load builds a Config from defaults, the optional file at path, and the
// environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("port %d out of range", c.Port)
	case c.UploadDir == "":
		return errors.New("upload directory must not be empty")
	case c.SecretKey == "":
		return errors.New("secret key must not be empty")
	case len(c.Users) == 0:
		return errors.New("at least one user must be configured")
	case c.MaxUploadMB <= 0:
		return fmt.Errorf("max upload size must be positive, got %d MB", c.MaxUploadMB)
	case c.SessionDuration.Duration <= 0:
		return fmt.Errorf("session duration must be positive, got %s", c.SessionDuration)
	case c.IdleTimeout.Duration < 0:
		return fmt.Errorf("idle timeout must not be negative, got %s", c.IdleTimeout)
	case (c.TLSCert == "") != (c.TLSKey == ""):
		return errors.New("tls cert and key must be given together")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("log format must be text or json, got %q", c.LogFormat)
	case c.AuditWebhookHeader != "" && !strings.Contains(c.AuditWebhookHeader, ":"):
		return errors.New("audit webhook header must look like \"Name: value\"")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	for name := range c.Users {
		if name == "" {
			return errors.New("usernames must not be empty")
		}
	}
	return nil
}
