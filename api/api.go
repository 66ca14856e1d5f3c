package api

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/cloudbox/web"
)

// DefaultMaxUploadSize caps multipart upload bodies unless overridden with
// WithMaxUploadSize.
const DefaultMaxUploadSize int64 = 32 << 20

// Authenticator checks a username/password pair.
type Authenticator interface {
	Verify(username, password string) bool
}

// Sessions creates, resolves and destroys login sessions.
type Sessions interface {
	Create(username string) (token string, expiresAt time.Time, err error)
	Resolve(token string) (username string, ok bool)
	Destroy(token string)
}

// CookieSigner binds session tokens to the server's secret key.
type CookieSigner interface {
	Sign(token string) (string, error)
	Verify(value string) (token string, ok bool)
}

// Files is the access-controlled view of the storage directory.
type Files interface {
	ListFiles(ctx context.Context, token string) ([]string, error)
	Store(ctx context.Context, token, rawName string, content io.Reader) (string, error)
	Retrieve(ctx context.Context, token, name string) ([]byte, error)
}

// API holds the dependencies needed by the HTTP handlers.
type API struct {
	users    Authenticator
	sessions Sessions
	signer   CookieSigner
	files    Files
	pages    *web.Renderer

	rateLimiter   *loginRateLimiter
	ipLimiter     *ipRateLimiter
	globalLimiter *globalRateLimiter

	audit          *auditLogger
	logger         *slog.Logger
	metrics        *metricsCollector
	maxUploadSize  int64
	trustedProxies []netip.Prefix
	webhookURL     string
	webhookAuth    string
}

//go:embed openapi.yaml
var openapiDocument []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events and handler errors.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithAlertFunc registers a callback for anomaly alerts such as login
// failure spikes.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.metrics = newMetricsCollector(fn)
	}
}

// WithAuditWebhook forwards every audit event as JSON to url. authHeader,
// when non-empty, is a "Name: value" header added to each request.
func WithAuditWebhook(url, authHeader string) Option {
	return func(a *API) {
		a.webhookURL = url
		a.webhookAuth = authHeader
	}
}

// WithMaxUploadSize sets the largest accepted upload body in bytes.
func WithMaxUploadSize(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxUploadSize = n
		}
	}
}

// WithTrustedProxies lists the CIDR ranges whose forwarding headers are
// believed when attributing login failures to a client IP. A bare address
// is treated as a single-host prefix.
func WithTrustedProxies(cidrs []string) (Option, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if prefix, err := netip.ParsePrefix(raw); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return func(a *API) {
		a.trustedProxies = prefixes
	}, nil
}

// New creates a new API instance.
func New(users Authenticator, sessions Sessions, signer CookieSigner, files Files, pages *web.Renderer, opts ...Option) *API {
	a := &API{
		users:         users,
		sessions:      sessions,
		signer:        signer,
		files:         files,
		pages:         pages,
		rateLimiter:   newLoginRateLimiter(),
		ipLimiter:     newIPRateLimiter(),
		globalLimiter: newGlobalRateLimiter(),
		maxUploadSize: DefaultMaxUploadSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	a.audit = newAuditLogger(a.logger)
	a.audit.metrics = a.metrics
	if a.webhookURL != "" {
		a.audit.webhook = newAuditWebhook(a.webhookURL, a.webhookAuth, a.logger)
	}
	return a
}

// Close drains pending audit webhook deliveries.
func (a *API) Close() {
	if a.audit != nil && a.audit.webhook != nil {
		a.audit.webhook.close()
	}
}

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiDocument)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/openapi.yaml",
		Path:    "redoc",
	}, nil))

	r.Get("/login", a.LoginPage)
	r.Post("/login", a.Login)
	r.Get("/logout", a.Logout)

	r.Group(func(r chi.Router) {
		r.Use(a.RequireSession)
		r.Get("/", a.Home)
		r.Post("/upload", a.Upload)
		r.Get("/download/{name}", a.Download)
	})

	r.With(a.RequireSessionJSON).Get("/files", a.ListFiles)

	return r
}

// SweepRateLimiters drops expired login-failure records.
func (a *API) SweepRateLimiters() {
	a.rateLimiter.sweep()
	a.ipLimiter.sweep()
}

// RunSweeper calls SweepRateLimiters every interval until ctx is done.
func (a *API) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.SweepRateLimiters()
		}
	}
}
