package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	LLM        LLMConfig
	Evaluation EvaluationConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host           string   `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port           int      `env:"SERVER_PORT" envDefault:"8000"`
	CORSOrigins    []string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000,http://localhost:5173" envSeparator:","`
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"100"`
}

type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxConns        int           `env:"DB_MAX_CONNS" envDefault:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	ConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Enabled reports whether a Redis address was supplied.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

type AuthConfig struct {
	// JWTSecret enables bearer-token auth on /api when set.
	JWTSecret string `env:"AUTH_JWT_SECRET"`
}

type LLMConfig struct {
	OpenAIKey        string        `env:"OPENAI_API_KEY"`
	OpenAIModel      string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	AnthropicKey     string        `env:"ANTHROPIC_API_KEY"`
	AnthropicModel   string        `env:"ANTHROPIC_MODEL" envDefault:"claude-3-haiku-20240307"`
	UpstageKey       string        `env:"UPSTAGE_API_KEY"`
	UpstageBaseURL   string        `env:"UPSTAGE_BASE_URL" envDefault:"https://api.upstage.ai/v1"`
	UpstageModel     string        `env:"UPSTAGE_MODEL" envDefault:"solar-pro2"`
	OllamaURL        string        `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaModel      string        `env:"OLLAMA_MODEL" envDefault:"llama3.2"`
	DefaultProvider  string        `env:"LLM_PROVIDER" envDefault:"ollama"`
	Model            string        `env:"LLM_MODEL"`
	FallbackProvider string        `env:"LLM_FALLBACK_PROVIDER"`
	MaxRetries       int           `env:"LLM_MAX_RETRIES" envDefault:"2"`
	Timeout          time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	EmbeddingModel   string        `env:"EMBEDDING_MODEL"`
}

type EvaluationConfig struct {
	DatasetPath      string        `env:"DATASET_PATH" envDefault:"./data/hh_rlhf_samples.jsonl"`
	ScenariosPath    string        `env:"SCENARIOS_PATH" envDefault:"./config/scenarios.json"`
	PromptSeedFile   string        `env:"PROMPT_SEED_FILE"`
	JudgeLocale      string        `env:"JUDGE_LOCALE" envDefault:"Korean"`
	ImproverProvider string        `env:"IMPROVER_PROVIDER" envDefault:"openai"`
	ImproverModel    string        `env:"IMPROVER_MODEL" envDefault:"gpt-4o-mini"`
	AnalysisCacheTTL time.Duration `env:"ANALYSIS_CACHE_TTL" envDefault:"0s"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// knownProviders mirrors llm.KnownProviders; config cannot import llm.
var knownProviders = map[string]bool{
	"ollama":    true,
	"openai":    true,
	"upstage":   true,
	"anthropic": true,
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports configuration errors that must stop the process.
func (c *Config) Validate() error {
	var problems []string
	if c.Database.URL == "" {
		problems = append(problems, "missing DATABASE_URL")
	}
	if !knownProviders[c.LLM.DefaultProvider] {
		problems = append(problems, fmt.Sprintf("unknown LLM_PROVIDER %q", c.LLM.DefaultProvider))
	}
	if c.LLM.FallbackProvider != "" && !knownProviders[c.LLM.FallbackProvider] {
		problems = append(problems, fmt.Sprintf("unknown LLM_FALLBACK_PROVIDER %q", c.LLM.FallbackProvider))
	}
	if c.Evaluation.ImproverProvider != "" && !knownProviders[c.Evaluation.ImproverProvider] {
		problems = append(problems, fmt.Sprintf("unknown IMPROVER_PROVIDER %q", c.Evaluation.ImproverProvider))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
