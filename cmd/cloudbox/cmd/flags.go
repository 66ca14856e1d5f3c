package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/cloudbox/internal/config"
)

// configFlags mirrors the settings in config.Config that can be given on
// the command line. Flags override the file and environment only when set.
type configFlags struct {
	configPath         string
	host               string
	port               int
	uploadDir          string
	sessionDB          string
	sessionDuration    time.Duration
	idleTimeout        time.Duration
	maxUploadMB        int64
	tlsCert            string
	tlsKey             string
	logLevel           string
	logFormat          string
	trustedProxies     []string
	auditWebhook       string
	auditWebhookHeader string
}

func (f *configFlags) register(cmd *cobra.Command) {
	d := config.Default()
	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "Path to a TOML config file")
	fs.StringVar(&f.host, "host", d.Host, "Address to listen on")
	fs.IntVarP(&f.port, "port", "p", d.Port, "Port to listen on")
	fs.StringVar(&f.uploadDir, "upload-dir", d.UploadDir, "Directory for uploaded files (env "+config.EnvUploadDir+")")
	fs.StringVar(&f.sessionDB, "session-db", d.SessionDB, "BBolt file for sessions; empty keeps them in memory (env "+config.EnvSessionDB+")")
	fs.DurationVar(&f.sessionDuration, "session-duration", d.SessionDuration.Duration, "Session lifetime")
	fs.DurationVar(&f.idleTimeout, "idle-timeout", d.IdleTimeout.Duration, "End sessions unused for this long; 0 disables")
	fs.Int64Var(&f.maxUploadMB, "max-upload-mb", d.MaxUploadMB, "Largest accepted upload in MiB")
	fs.StringVar(&f.tlsCert, "tls-cert", "", "Path to TLS certificate file")
	fs.StringVar(&f.tlsKey, "tls-key", "", "Path to TLS key file")
	fs.StringVar(&f.logLevel, "log-level", d.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", d.LogFormat, "Log format: text or json")
	fs.StringSliceVar(&f.trustedProxies, "trusted-proxies", nil, "CIDRs whose X-Forwarded-For headers are trusted")
	fs.StringVar(&f.auditWebhook, "audit-webhook", "", "URL receiving audit events as JSON")
	fs.StringVar(&f.auditWebhookHeader, "audit-webhook-header", "", `Header sent with audit events, as "Name: value"`)
}

// load builds the effective configuration: defaults, then the config file,
// then the environment, then explicitly set flags.
func (f *configFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("host") {
		cfg.Host = f.host
	}
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("upload-dir") {
		cfg.UploadDir = f.uploadDir
	}
	if changed("session-db") {
		cfg.SessionDB = f.sessionDB
	}
	if changed("session-duration") {
		cfg.SessionDuration.Duration = f.sessionDuration
	}
	if changed("idle-timeout") {
		cfg.IdleTimeout.Duration = f.idleTimeout
	}
	if changed("max-upload-mb") {
		cfg.MaxUploadMB = f.maxUploadMB
	}
	if changed("tls-cert") {
		cfg.TLSCert = f.tlsCert
	}
	if changed("tls-key") {
		cfg.TLSKey = f.tlsKey
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if changed("trusted-proxies") {
		cfg.TrustedProxies = f.trustedProxies
	}
	if changed("audit-webhook") {
		cfg.AuditWebhook = f.auditWebhook
	}
	if changed("audit-webhook-header") {
		cfg.AuditWebhookHeader = f.auditWebhookHeader
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
