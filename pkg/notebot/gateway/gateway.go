// Package gateway provides the read-only HTTP API over daily notes.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jholhewres/notebot/pkg/notebot/channels"
	"github.com/jholhewres/notebot/pkg/notebot/config"
	"github.com/jholhewres/notebot/pkg/notebot/dailynote"
	"github.com/jholhewres/notebot/pkg/notebot/metrics"
)

// NoteSource serves exports and listings. *dailynote.Exporter satisfies it.
type NoteSource interface {
	Export(ctx context.Context, date string) (*dailynote.Artifact, error)
	List(ctx context.Context) ([]dailynote.DocumentInfo, error)
}

// Deps are the collaborators the gateway reads from.
type Deps struct {
	Notes    NoteSource
	Gatherer prometheus.Gatherer
	Channels []channels.Channel
}

// Gateway is the HTTP API gateway.
type Gateway struct {
	deps      Deps
	config    config.GatewayConfig
	limiter   *rate.Limiter
	server    *http.Server
	logger    *slog.Logger
	startedAt time.Time
}

// New creates a new Gateway.
func New(deps Deps, cfg config.GatewayConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1:8085"
	}
	g := &Gateway{
		deps:      deps,
		config:    cfg,
		logger:    logger.With("component", "gateway"),
		startedAt: time.Now(),
	}
	if cfg.RatePerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.RatePerMinute)
	}
	return g
}

// Handler builds the router with its middleware stack:
//
//	requestID → logging → securityHeaders → rateLimit → auth
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(g.requestIDMiddleware)
	r.Use(g.loggingMiddleware)
	r.Use(g.securityHeadersMiddleware)
	r.Use(g.rateLimitMiddleware)
	r.Use(g.authMiddleware)

	r.Get("/health", g.handleHealth)
	if g.deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(g.deps.Gatherer))
	}
	r.Route("/api/notes", func(r chi.Router) {
		r.Get("/", g.handleListNotes)
		r.Get("/{date}", g.handleGetNote)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		g.writeError(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	return r
}

// Start binds the listener and serves in the background. Bind errors are
// returned synchronously.
func (g *Gateway) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Address)
	if err != nil {
		return fmt.Errorf("gateway listen %s: %w", g.config.Address, err)
	}
	g.startedAt = time.Now()
	g.server = &http.Server{
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if g.config.AuthToken == "" && !isLoopback(g.config.Address) {
		g.logger.Warn("SECURITY: gateway has no auth token and is bound to a non-loopback address",
			"address", g.config.Address)
	}

	go func() {
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway server error", "error", err)
		}
	}()
	g.logger.Info("gateway started", "address", ln.Addr().String())
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("gateway stopping...")
	return g.server.Shutdown(ctx)
}

func isLoopback(address string) bool {
	host, _, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
