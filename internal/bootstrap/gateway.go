package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/yfetch-digest/internal/config"
	"github.com/kirillkom/yfetch-digest/internal/infrastructure/auth"
	"github.com/kirillkom/yfetch-digest/internal/infrastructure/llm/perplexity"
	"github.com/kirillkom/yfetch-digest/internal/infrastructure/resilience"
)

// Gateway holds the summarization gateway dependencies. It needs neither
// postgres nor nats.
type Gateway struct {
	Config    config.Config
	Verifier  *auth.JWTManager
	Forwarder *perplexity.Client
}

func NewGateway(cfg config.Config) (*Gateway, error) {
	if cfg.ProviderAPIKey == "" {
		return nil, errors.New("PROVIDER_API_KEY is required")
	}
	verifier, err := auth.NewJWTManager(cfg.AuthJWTSecret, cfg.AuthIssuer, time.Duration(cfg.AuthTokenTTLSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("init token verifier: %w", err)
	}

	// The caller owns retries; the gateway only trips a breaker.
	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: 1,
		AttemptTimeout:   -1,
		BreakerEnabled:   cfg.BreakerEnabled,
	})
	forwarder := perplexity.New(cfg.ProviderURL, cfg.ProviderAPIKey, perplexity.Options{
		Timeout:            time.Duration(cfg.ProviderTimeoutSeconds) * time.Second,
		ResilienceExecutor: executor,
	})

	return &Gateway{
		Config:    cfg,
		Verifier:  verifier,
		Forwarder: forwarder,
	}, nil
}
