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

	"github.com/nikhilbhutani/promptcompliance/internal/api"
	"github.com/nikhilbhutani/promptcompliance/internal/api/handlers"
	"github.com/nikhilbhutani/promptcompliance/internal/app"
	"github.com/nikhilbhutani/promptcompliance/internal/config"
	"github.com/nikhilbhutani/promptcompliance/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	svc := api.Services{
		Evaluations: a.Evaluations,
		Prompts:     a.Improver,
		Versions:    a.Prompts,
		Analyses:    a.Checker,
		Chat:        a.Chat,
		Documents:   a.Pipeline,
		Extractor:   a.Checker,
		Health:      map[string]handlers.Pinger{"database": a.DB},
	}
	if cfg.Redis.Enabled() {
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		svc.Queue = qc
		svc.Health["redis"] = a.Cache
	}

	router := api.NewRouter(cfg, svc)
	handler := router.Setup()

	done := make(chan struct{})
	defer close(done)
	go router.Limiter().Cleanup(done)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
