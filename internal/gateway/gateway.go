// ABOUTME: Gateway struct, initialization, and HTTP server lifecycle
// ABOUTME: Wires store, conversation service, auth middleware, and routes

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/morphlabs/morph-gateway/internal/auth"
	"github.com/morphlabs/morph-gateway/internal/conversation"
	"github.com/morphlabs/morph-gateway/internal/store"
)

// Gateway is the HTTP server exposing the conversation pipeline.
type Gateway struct {
	store      store.Store
	service    *conversation.Service
	verifier   auth.TokenVerifier
	logger     *slog.Logger
	httpServer *http.Server
}

// Options configures a Gateway.
type Options struct {
	Addr     string
	Store    store.Store
	Service  *conversation.Service
	Verifier auth.TokenVerifier
	Logger   *slog.Logger
}

// New creates a Gateway with its routes registered.
func New(opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		store:    opts.Store,
		service:  opts.Service,
		verifier: opts.Verifier,
		logger:   logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	// Health endpoint (no auth)
	mux.HandleFunc("/health", g.handleHealth)

	// API routes behind authentication
	authMiddleware := auth.HTTPMiddleware(opts.Verifier)
	mux.Handle("/api/chats", authMiddleware(http.HandlerFunc(g.handleChats)))
	mux.Handle("/api/chats/", authMiddleware(http.HandlerFunc(g.handleChatRoutes)))
	mux.Handle("/api/modules", authMiddleware(http.HandlerFunc(g.handleListModules)))

	g.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g
}

// Handler returns the gateway's HTTP handler (used by tests).
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails, then shuts down gracefully.
func (g *Gateway) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", g.httpServer.Addr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
	case serverErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		g.logger.Error("HTTP shutdown failed", "error", err)
		if serverErr == nil {
			serverErr = fmt.Errorf("shutting down: %w", err)
		}
	}

	return serverErr
}

// handleHealth handles GET /health requests.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
