// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/cardsmith/internal/api"
	"github.com/starford/cardsmith/internal/assets"
	"github.com/starford/cardsmith/internal/capture"
	"github.com/starford/cardsmith/internal/export"
	"github.com/starford/cardsmith/internal/mcpserver"
	"github.com/starford/cardsmith/internal/models"
	"github.com/starford/cardsmith/internal/session"
	"github.com/starford/cardsmith/internal/sse"
	"github.com/starford/cardsmith/internal/storage"
	"github.com/starford/cardsmith/internal/watch"
	"github.com/starford/cardsmith/web"
)

// components is the object graph shared by every entry point.
type components struct {
	cfg      *Config
	logger   *slog.Logger
	store    *storage.FS
	resolver *assets.Resolver
	session  *session.Session
	exporter *export.Exporter
	cardPath string
	version  string
}

// setup builds the shared components. notifier may be nil.
func setup(notifier export.Notifier, opts ...Option) (*components, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	cardPath := cfg.Card.Path
	if app.cardPath != "" {
		cardPath = app.cardPath
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("assets_path", cfg.Assets.Path),
		slog.String("remote_policy", string(cfg.Assets.RemotePolicy)),
		slog.String("card_path", cardPath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure asset directory exists.
	if err := os.MkdirAll(cfg.Assets.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create assets dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Assets.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	resolver := assets.NewResolver(store,
		assets.WithRemotePolicy(cfg.Assets.RemotePolicy),
		assets.WithMaxBytes(cfg.Assets.MaxBytes),
		assets.WithFetchTimeout(cfg.Assets.FetchTimeout),
		assets.WithLogger(logger),
	)

	sess := session.New(resolver, logger)
	if cardPath != "" {
		if _, err := sess.LoadFile(cardPath); err != nil {
			return nil, fmt.Errorf("load card: %w", err)
		}
	}

	capturer := capture.New(
		capture.WithScale(cfg.Export.Scale),
		capture.WithSettleDelay(cfg.Export.SettleDelay),
		capture.WithLogger(logger),
	)

	return &components{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		resolver: resolver,
		session:  sess,
		exporter: export.New(capturer, sess,
			export.WithLogger(logger),
			export.WithNotifier(notifier),
			export.WithFallbackStem(cfg.Export.DefaultName),
			export.WithAnimatedOptions(cfg.Export.AnimatedOptions()),
		),
		cardPath: cardPath,
		version:  app.version,
	}, nil
}

// Run starts the editor HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	// SSE broker doubles as the export notifier.
	broker := sse.NewBroker(500 * time.Millisecond)
	defer broker.Close()

	c, err := setup(broker, opts...)
	if err != nil {
		return err
	}
	cfg, logger := c.cfg, c.logger

	handler := api.NewHandler(c.session, c.store, c.exporter, cfg.Assets.MaxBytes)
	apiRouter := api.NewRouter(handler, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Editor page.
	r.Handle("/*", http.FileServerFS(web.FS()))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the card file and push updates to the editor.
	if c.cardPath != "" && cfg.Card.Watch {
		g.Go(func() error {
			err := watch.Watch(gCtx, c.session, c.cardPath, watch.DefaultDebounce, logger, func(kind string) {
				broker.PublishCardEvent(kind)
			})
			if err != nil {
				logger.Error("watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Close SSE streams first so Shutdown doesn't wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown stops the errgroup so the watcher exits with the server.
var errShutdown = errors.New("shutdown")

// Format names accepted by Render.
const (
	FormatPNG = "png"
	FormatGIF = "gif"
)

// Render exports the configured card once and writes it to out. An empty
// out writes <stem>.<format> into the current directory. It returns the
// written path.
func Render(ctx context.Context, format, out string, opts ...Option) (string, error) {
	c, err := setup(nil, opts...)
	if err != nil {
		return "", err
	}

	var art *models.Artifact
	switch format {
	case FormatPNG:
		art, err = c.exporter.Still(ctx)
	case FormatGIF:
		art, err = c.exporter.Animated(ctx)
	default:
		return "", fmt.Errorf("unknown format %q (want png or gif)", format)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", export.UserMessage(err), err)
	}
	if art == nil {
		return "", fmt.Errorf("nothing to export")
	}

	if out == "" {
		out = art.Name
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(out, art.Data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	c.logger.Info("card rendered",
		slog.String("path", out),
		slog.String("format", format),
		slog.Int("bytes", len(art.Data)))
	return out, nil
}

// ServeMCP runs the MCP server on stdio until the client disconnects.
// Logs go to stderr unless WithLogOutput says otherwise.
func ServeMCP(_ context.Context, opts ...Option) error {
	c, err := setup(nil, append([]Option{WithLogOutput(io.Writer(os.Stderr))}, opts...)...)
	if err != nil {
		return err
	}
	srv := mcpserver.New(c.session, c.exporter, c.store, c.resolver, c.version)
	c.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
