package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/graph"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/media"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/orchestrator"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/repo"
	"github.com/Chative-core-poc-v1/orchestrator/internal/core"
	"github.com/Chative-core-poc-v1/orchestrator/internal/resilience"
	logx "github.com/Chative-core-poc-v1/orchestrator/pkg/logger"
	pkgredis "github.com/Chative-core-poc-v1/orchestrator/pkg/redis"
)

// AppConfig defines all configurable parameters of the orchestrator,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis pkgredis.Config
	Store model.StoreConfig

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Intent       model.IntentModelConfig
	Response     model.ResponseModelConfig
	Image        model.ImageModelConfig
	Conversation model.ConversationConfig
	Resilience   model.ResilienceConfig
	Search       model.SearchConfig
	Media        model.MediaConfig
}

func loadConfig() (AppConfig, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %v\n", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("process environment config: %w", err)
	}

	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(cfg.Environment),
		Level:       cfg.LogLevel,
	})
	return cfg, nil
}

func retryPolicy(c model.ResilienceConfig) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:       c.MaxAttempts,
		BaseDelay:         c.BaseDelay,
		MaxDelay:          c.MaxDelay,
		BackoffFactor:     c.BackoffFactor,
		Jitter:            c.Jitter,
		TimeoutPerAttempt: c.AttemptTimeout,
	}
}

// app holds everything a command needs to run turns.
type app struct {
	orchestrator *orchestrator.Orchestrator
	media        *media.SessionTracker
	closers      []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

func newApp(ctx context.Context, cfg AppConfig) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	policy := retryPolicy(cfg.Resilience)
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry settings: %w", err)
	}
	executor := resilience.NewExecutor(resilience.BreakerSettings{
		FailureThreshold: cfg.Resilience.FailureThreshold,
		ResetTimeout:     cfg.Resilience.ResetTimeout,
	})

	var (
		rdb   *redis.Client
		store model.ConversationStore
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Driver)) {
	case "redis", "":
		client, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialise redis client: %w", err)
		}
		a.closers = append(a.closers, client)
		rdb = client
		store = repo.NewRedisConversationStore(rdb, cfg.Conversation.TTL)
		logx.Info().Msg("Connected to Redis successfully")
	case "sqlite":
		s, err := repo.NewSQLiteConversationStore(cfg.Store.SQLitePath, cfg.Conversation.TTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		store = s
		logx.Info().Str("path", cfg.Store.SQLitePath).Msg("Opened SQLite conversation store")
	case "memory":
		store = repo.NewMemoryConversationStore()
		logx.Warn().Msg("Using in-memory conversation store; history is lost on exit")
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}

	// No media backend is wired in this build; media turns get the
	// unavailable notice and never open a session.
	var sessions redis.Cmdable
	if rdb != nil {
		sessions = rdb
	}
	tracker := media.NewSessionTracker(sessions, nil, cfg.Media)

	g, err := graph.Build(ctx, graph.Config{
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.BaseURL,
		IntentModel:   cfg.Intent,
		ResponseModel: cfg.Response,
		ImageModel:    cfg.Image,
		Conversation:  cfg.Conversation,
		Search:        cfg.Search,
		Executor:      executor,
		Policy:        policy,
		Media:         tracker,
	})
	if err != nil {
		return nil, fmt.Errorf("build conversation graph: %w", err)
	}

	a.orchestrator = orchestrator.New(store, g)
	a.media = tracker
	ok = true
	return a, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
