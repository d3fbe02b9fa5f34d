// Package app assembles the services shared by the API server, the worker and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/promptcompliance/internal/cache"
	"github.com/nikhilbhutani/promptcompliance/internal/chat"
	"github.com/nikhilbhutani/promptcompliance/internal/compliance"
	"github.com/nikhilbhutani/promptcompliance/internal/config"
	"github.com/nikhilbhutani/promptcompliance/internal/database"
	"github.com/nikhilbhutani/promptcompliance/internal/embedding"
	"github.com/nikhilbhutani/promptcompliance/internal/evaluation"
	"github.com/nikhilbhutani/promptcompliance/internal/improver"
	"github.com/nikhilbhutani/promptcompliance/internal/llm"
	"github.com/nikhilbhutani/promptcompliance/internal/prompt"
	"github.com/nikhilbhutani/promptcompliance/internal/rag"
	"github.com/nikhilbhutani/promptcompliance/internal/reference"
	"github.com/nikhilbhutani/promptcompliance/internal/vectorstore"
)

const analysisKeyPrefix = "compliance:"

type App struct {
	Config *config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Cache  *cache.Cache

	Gateway     llm.Gateway
	Prompts     *prompt.Store
	Checker     *compliance.Checker
	Evaluations *evaluation.Service
	Improver    *improver.Service
	Pipeline    *rag.Pipeline
	Chat        *chat.Service
}

// New connects to Postgres (and Redis when configured), applies migrations,
// seeds the prompt store and wires every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	gw, err := llm.NewGateway(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm gateway: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: pool, Gateway: gw}

	if err := database.RunMigrations(pool); err != nil {
		a.Close()
		return nil, err
	}

	var analyses compliance.AnalysisStore = compliance.NewMemoryStore()
	if cfg.Redis.Enabled() {
		rdb, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rdb
		a.Cache = cache.NewCache(rdb, analysisKeyPrefix)
		analyses = compliance.NewRedisStore(a.Cache, cfg.Evaluation.AnalysisCacheTTL)
	}

	a.Prompts = prompt.NewStore(pool)
	if err := a.seedPrompt(ctx); err != nil {
		a.Close()
		return nil, err
	}

	scenarios, err := improver.LoadScenarios(cfg.Evaluation.ScenariosPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Checker = compliance.NewChecker(gw, analyses, cfg.Evaluation.JudgeLocale)
	a.Evaluations = evaluation.NewService(
		reference.NewMatcher(cfg.Evaluation.DatasetPath),
		a.Checker,
		evaluation.NewPostgresRepository(pool),
	)
	a.Improver = improver.NewService(a.Prompts, a.Evaluations, gw, improver.Options{
		Provider:  cfg.Evaluation.ImproverProvider,
		Model:     cfg.Evaluation.ImproverModel,
		Scenarios: scenarios,
	})
	a.Evaluations.SetHistorySink(a.Improver)

	a.Pipeline = rag.NewPipeline(
		vectorstore.NewPgVectorStore(pool),
		embedding.NewService(gw, cfg.LLM.EmbeddingModel),
		cfg.LLM.Model,
	)
	a.Chat = chat.NewService(a.Pipeline, gw, a.Checker)

	slog.Info("services ready",
		"llm_provider", gw.DefaultProvider(),
		"scenarios", len(scenarios),
		"redis", cfg.Redis.Enabled(),
	)
	return a, nil
}

func (a *App) seedPrompt(ctx context.Context) error {
	path := a.Config.Evaluation.PromptSeedFile
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompt seed: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		slog.Warn("prompt seed file is empty, skipping", "path", path)
		return nil
	}

	v, created, err := a.Prompts.Bootstrap(ctx, content)
	if err != nil {
		return fmt.Errorf("seed prompt: %w", err)
	}
	if created {
		slog.Info("seeded prompt store", "version", v.ID)
	}
	return nil
}

func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
