// AI Debate Arena - round orchestration server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prysmai/debate-arena/internal/api"
	"github.com/prysmai/debate-arena/internal/backend"
	"github.com/prysmai/debate-arena/internal/config"
	"github.com/prysmai/debate-arena/internal/debate"
	"github.com/prysmai/debate-arena/internal/domain"
	"github.com/prysmai/debate-arena/internal/middleware"
	"github.com/prysmai/debate-arena/internal/session"
	"github.com/prysmai/debate-arena/internal/store"
	"github.com/prysmai/debate-arena/internal/ws"
	"github.com/prysmai/debate-arena/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "offline", cfg.OfflineMode())

	// Transcript archive.
	archive, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize transcript archive", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := archive.Close(); closeErr != nil {
			slog.Error("Failed to close transcript archive", "error", closeErr)
		}
	}()

	if err := archive.Ping(context.Background()); err != nil {
		slog.Error("Transcript archive health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Transcript archive connected", "path", cfg.DBPath)

	// Lineup and backends. With no API key configured, debates run against
	// deterministic scripted backends so the server works offline.
	agents := domain.DefaultLineup(cfg.Backend.GPTModel, cfg.Backend.ClaudeModel)
	backends := make(map[string]backend.Backend, len(agents))
	var judgeBackend backend.Backend
	if cfg.OfflineMode() {
		slog.Warn("PRYSM_API_KEY not set, using scripted offline backends")
		for _, ag := range agents {
			backends[ag.Key] = backend.NewScripted(ag.Key, nil).WithTokenDelay(20 * time.Millisecond)
		}
		judgeBackend = backend.NewScripted("judge", nil)
	} else {
		client := backend.NewOpenAIClient(cfg.Backend.BaseURL, cfg.Backend.APIKey, cfg.Backend.HTTPTimeout, logger)
		for _, ag := range agents {
			backends[ag.Key] = client
		}
		judgeBackend = client
		slog.Info("Model proxy configured", "base_url", cfg.Backend.BaseURL)
	}

	// Debate core.
	sessions := session.NewStore(cfg.MaxSessions, logger)
	debateCfg := debate.Config{
		CallTimeout:  cfg.Debate.CallTimeout,
		MaxRetries:   cfg.Debate.MaxRetries,
		RetryBackoff: cfg.Debate.RetryBackoff,
		PreviewCap:   cfg.Debate.PreviewCap,
		EventBuffer:  cfg.Debate.EventBuffer,
	}
	coordinator := debate.NewCoordinator(backends, debateCfg, logger)
	orchestrator := debate.NewOrchestrator(
		sessions, coordinator, agents, judgeBackend, cfg.Backend.JudgeModel, archive, debateCfg, logger)

	// Handlers.
	debateHandler := api.NewHandler(orchestrator, archive)
	healthHandler := api.NewHealthHandler(archive)
	spectateHandler := ws.NewSpectateHandler(orchestrator, cfg.FrontendURL, cfg.IsDevelopment())

	// Router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	healthHandler.RegisterHealth(r)
	debateHandler.RegisterRoutes(r)
	r.Get("/ws/debate/{sessionID}", spectateHandler.ServeHTTP)
	r.Handle("/*", web.SPAHandler())

	// SSE connections require long-lived responses, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions.StartTTLWorker(ctx, cfg.SessionTTL)

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
