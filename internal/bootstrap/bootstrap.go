package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/yfetch-digest/internal/config"
	"github.com/kirillkom/yfetch-digest/internal/core/domain"
	"github.com/kirillkom/yfetch-digest/internal/core/usecase"
	"github.com/kirillkom/yfetch-digest/internal/infrastructure/auth"
	"github.com/kirillkom/yfetch-digest/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/yfetch-digest/internal/infrastructure/httpclient"
	"github.com/kirillkom/yfetch-digest/internal/infrastructure/llm/summaryapi"
	"github.com/kirillkom/yfetch-digest/internal/infrastructure/queue/nats"
	"github.com/kirillkom/yfetch-digest/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/yfetch-digest/internal/infrastructure/resilience"
	"github.com/kirillkom/yfetch-digest/internal/observability/metrics"
)

// App holds the wiring shared by the API and the worker.
type App struct {
	Config config.Config

	Queue     *nats.Queue
	Tokens    *auth.JWTManager
	Posts     *usecase.PostsUseCase
	Summaries *usecase.SummarizeUseCase
	Jobs      *usecase.SummaryJobUseCase
	Digests   *usecase.DigestUseCase
	Exporter  *xlsx.Exporter

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string, registerer prometheus.Registerer) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	tokens, err := auth.NewJWTManager(cfg.AuthJWTSecret, cfg.AuthIssuer, time.Duration(cfg.AuthTokenTTLSeconds)*time.Second)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init token manager: %w", err)
	}

	timeout := time.Duration(cfg.SummaryTimeoutMS) * time.Millisecond
	completions, err := summaryapi.New(summaryapi.Config{
		EndpointURL: cfg.SummaryEndpointURL,
		APIKey:      cfg.SummaryAPIKey,
		Config: httpclient.Config{
			Credentials: httpclient.CredentialsInclude,
			Timeout:     timeout,
			Retries:     cfg.SummaryMaxRetries,
		},
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts: 3,
			BreakerEnabled:   cfg.BreakerEnabled,
		}),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	retrier := resilience.NewRetrier(completions.RetryPolicy(time.Duration(cfg.SummaryRetryDelayMS) * time.Millisecond))
	observer := metrics.NewSummaryMetrics(service, registerer)

	postRepo := postgres.NewPostRepository(db)
	summaryRepo := postgres.NewSummaryRepository(db)
	digestRepo := postgres.NewDigestRepository(db)

	summarizeUC := usecase.NewSummarizeUseCase(summaryRepo, auth.NewTokenSource(tokens), completions, retrier, observer, cfg.SummaryModel)

	digestUC := usecase.NewDigestUseCase(summarizeUC, postRepo, summaryRepo, digestRepo, observer).
		WithSummaryDefaults(domain.SummaryOptions{
			MaxLength: cfg.SummaryMaxLength,
			Style:     domain.SummaryStyle(cfg.SummaryStyle),
		})

	return &App{
		Config: cfg,
		Queue:  queue,
		Tokens: tokens,

		Posts:     usecase.NewPostsUseCase(postRepo),
		Summaries: summarizeUC,
		Jobs:      usecase.NewSummaryJobUseCase(postRepo, queue, summarizeUC),
		Digests:   digestUC,
		Exporter:  xlsx.NewExporter(),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
