// Package gateway mediates every read and write against the stored file set.
//
// Each operation first resolves the caller's session token; nothing is
// listed, written or read for an unauthenticated caller. Uploads are run
// through the filename validator before the store is touched. Downloads are
// not re-validated: any file physically present in the store is servable.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmcleod/cloudbox/filename"
	"github.com/jmcleod/cloudbox/storage"
)

// ErrUnauthorized indicates the caller has no valid session.
var ErrUnauthorized = errors.New("unauthorized")

// Resolver maps a session token to the logged-in username.
type Resolver interface {
	Resolve(token string) (username string, ok bool)
}

// Gateway is the access-controlled front of a storage.FileStore.
type Gateway struct {
	sessions Resolver
	files    storage.FileStore
	logger   *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger used for debug tracing of file operations.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New returns a Gateway that authorizes through sessions and stores in files.
func New(sessions Resolver, files storage.FileStore, opts ...Option) *Gateway {
	g := &Gateway{
		sessions: sessions,
		files:    files,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "gateway")
	return g
}

func (g *Gateway) authorize(token string) (string, error) {
	user, ok := g.sessions.Resolve(token)
	if !ok {
		return "", ErrUnauthorized
	}
	return user, nil
}

// ListFiles returns the stored names in store order. The result is never nil.
func (g *Gateway) ListFiles(ctx context.Context, token string) ([]string, error) {
	if _, err := g.authorize(token); err != nil {
		return nil, err
	}
	names, err := g.files.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Store validates rawName and writes content under the resulting safe name,
// replacing any file of that name. It returns the safe name. Rejected names
// return an error wrapping filename.ErrRejected and leave the store untouched.
func (g *Gateway) Store(ctx context.Context, token, rawName string, content io.Reader) (string, error) {
	user, err := g.authorize(token)
	if err != nil {
		return "", err
	}
	safe, err := filename.Classify(rawName)
	if err != nil {
		return "", fmt.Errorf("%q: %w", rawName, err)
	}
	if err := g.files.Write(ctx, safe, content); err != nil {
		return "", fmt.Errorf("storing %s: %w", safe, err)
	}
	g.logger.DebugContext(ctx, "file stored", "user", user, "name", safe)
	return safe, nil
}

// Retrieve returns the content of the named file. It returns an error
// wrapping storage.ErrNotFound when no such file exists.
func (g *Gateway) Retrieve(ctx context.Context, token, name string) ([]byte, error) {
	user, err := g.authorize(token)
	if err != nil {
		return nil, err
	}
	data, err := g.files.Read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("retrieving %s: %w", name, err)
	}
	g.logger.DebugContext(ctx, "file retrieved", "user", user, "name", name, "size", len(data))
	return data, nil
}
