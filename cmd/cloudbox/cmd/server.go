package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/cloudbox/api"
	"github.com/jmcleod/cloudbox/credentials"
	"github.com/jmcleod/cloudbox/gateway"
	"github.com/jmcleod/cloudbox/internal/config"
	"github.com/jmcleod/cloudbox/session"
	"github.com/jmcleod/cloudbox/storage/disk"
	"github.com/jmcleod/cloudbox/web"
)

const (
	defaultSecretKey     = "super_secret_key"
	rateLimitSweepPeriod = 10 * time.Minute
)

var serverFlags configFlags

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the file server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := serverFlags.load(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(os.Stderr, cfg)
		if err != nil {
			return err
		}
		return runServer(cmd, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverFlags.register(serverCmd)
}

// app is the assembled HTTP stack plus whatever must be released on exit.
type app struct {
	handler http.Handler
	api     *api.API
	closers []func() error
}

func (a *app) close() error {
	a.api.Close()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// newApp wires credentials, sessions, storage and the HTTP routes.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	users, err := credentials.New(cfg.Users)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}

	var (
		store   session.Store
		closers []func() error
	)
	if cfg.SessionDB != "" {
		bolt, err := session.OpenBoltStore(cfg.SessionDB, &bbolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, fmt.Errorf("opening session database: %w", err)
		}
		store = bolt
		closers = append(closers, bolt.Close)
	} else {
		store = session.NewMemoryStore()
	}
	fail := func(err error) (*app, error) {
		for _, c := range closers {
			c()
		}
		return nil, err
	}

	tracker := session.NewTracker(store,
		session.WithDuration(cfg.SessionDuration.Duration),
		session.WithIdleTimeout(cfg.IdleTimeout.Duration))

	signer, err := session.NewSigner([]byte(cfg.SecretKey))
	if err != nil {
		return fail(fmt.Errorf("loading secret key: %w", err))
	}

	files, err := disk.New(cfg.UploadDir)
	if err != nil {
		return fail(fmt.Errorf("preparing upload directory: %w", err))
	}

	pages, err := web.NewRenderer()
	if err != nil {
		return fail(err)
	}

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithMaxUploadSize(cfg.MaxUploadBytes()),
		api.WithAlertFunc(func(e api.AlertEvent) {
			logger.Warn("security alert",
				"type", e.Type, "message", e.Message, "count", e.Count, "threshold", e.Threshold)
		}),
	}
	if len(cfg.TrustedProxies) > 0 {
		opt, err := api.WithTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			return fail(err)
		}
		opts = append(opts, opt)
	}
	if cfg.AuditWebhook != "" {
		opts = append(opts, api.WithAuditWebhook(cfg.AuditWebhook, cfg.AuditWebhookHeader))
	}

	gw := gateway.New(tracker, files, gateway.WithLogger(logger))
	a := api.New(users, tracker, signer, gw, pages, opts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.SecurityHeaders)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Mount("/", a.Router())

	return &app{handler: r, api: a, closers: closers}, nil
}

func runServer(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	if cfg.SecretKey == defaultSecretKey {
		logger.Warn("using the built-in development secret key; set " + config.EnvSecretKey + " in production")
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			logger.Error("shutdown cleanup failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go a.api.RunSweeper(ctx, rateLimitSweepPeriod)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	useTLS := cfg.TLSCert != ""
	if useTLS {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan error, 1)
	go func() {
		var err error
		if useTLS {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- fmt.Errorf("server failed: %w", err)
			return
		}
		done <- nil
	}()

	out := cmd.OutOrStdout()
	printBanner(out)
	fmt.Fprintf(out, "Starting server on %s (uploads: %s)...\n", cfg.Addr(), cfg.UploadDir)
	logger.Info("server started",
		"addr", cfg.Addr(),
		"tls", useTLS,
		"upload_dir", cfg.UploadDir,
		"users", len(cfg.Users),
		"session_db", cfg.SessionDB)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-done:
		return err
	}
}
