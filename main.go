package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/lending-admin/internal/autosave"
	"github.com/debemdeboas/lending-admin/internal/config"
	"github.com/debemdeboas/lending-admin/internal/db"
	"github.com/debemdeboas/lending-admin/internal/draft"
	"github.com/debemdeboas/lending-admin/internal/editor"
	"github.com/debemdeboas/lending-admin/internal/gateway"
	"github.com/debemdeboas/lending-admin/internal/logger"
	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/render"
	"github.com/debemdeboas/lending-admin/internal/repository"
	"github.com/debemdeboas/lending-admin/internal/session"
	"github.com/debemdeboas/lending-admin/internal/sse"
)

const shutdownTimeout = 15 * time.Second

var clients = sse.NewSSEClients()

func main() {
	envErr := godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	if err := config.LoadConfig(configPath); err != nil {
		l := logger.New("info")
		l.Fatal().Err(err).Str("path", configPath).Msg("Error loading config")
	}
	cfg := config.AppConfig

	log := logger.New(cfg.Logging.Level)
	setLoggers(log)
	if envErr != nil {
		log.Debug().Err(envErr).Msg("No .env file loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := repository.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Error opening repository")
	}
	defer repo.Close()

	hub := gateway.NewHub(repo)
	hub.Listen(func(key model.ResourceKey) {
		clients.Broadcast(key, sse.EventReload)
	})

	sessions := editor.NewSessions(nil)
	handler := editor.NewHandler(editor.DefaultRegistry(), sessions, editor.Env{
		Hub:      hub,
		Editor:   cfg.Editor,
		Renderer: render.New(cfg.Render),
	})
	defer handler.Close()
	go sessions.Run(ctx, editor.DefaultSweepInterval, editor.DefaultMaxIdle)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           routes(handler, clients, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down server")
		}
	}()

	log.Info().
		Str("addr", srv.Addr).
		Str("backend", cfg.Storage.Backend).
		Msg("Starting admin server")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}

func setLoggers(log zerolog.Logger) {
	config.SetLogger(log.With().Str("component", "config").Logger())
	db.SetLogger(log.With().Str("component", "db").Logger())
	repository.SetLogger(log.With().Str("component", "repository").Logger())
	gateway.SetLogger(log.With().Str("component", "gateway").Logger())
	draft.SetLogger(log.With().Str("component", "draft").Logger())
	autosave.SetLogger(log.With().Str("component", "autosave").Logger())
	session.SetLogger(log.With().Str("component", "session").Logger())
	render.SetLogger(log.With().Str("component", "render").Logger())
	editor.SetLogger(log.With().Str("component", "editor").Logger())
}

func routes(h *editor.Handler, events http.Handler, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nDisallow: /"))
	})
	mux.Handle("GET /sse", events)
	h.Register(mux)

	return withLogger(log, secureHeaders(noCache(mux)))
}

// withLogger attaches a request-scoped logger to the request context.
func withLogger(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := log.With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
	})
}

// noCache keeps browsers from reusing editor state across sessions.
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-store")
		w.Header().Set("Vary", "Cookie")
		next.ServeHTTP(w, r)
	})
}

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		next.ServeHTTP(w, r)
	})
}
