package summaryapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
	"github.com/kirillkom/yfetch-digest/internal/infrastructure/httpclient"
	"github.com/kirillkom/yfetch-digest/internal/infrastructure/resilience"
)

const clientInfo = "yfetch-digest/1.0.0"

// Client calls the summarization gateway with a caller supplied bearer token.
type Client struct {
	http *httpclient.Client
}

type Config struct {
	EndpointURL string
	APIKey      string
	httpclient.Config
}

func New(cfg Config) (*Client, error) {
	httpCfg := cfg.Config
	httpCfg.BaseURL = cfg.EndpointURL
	headers := map[string]string{"x-client-info": clientInfo}
	if strings.TrimSpace(cfg.APIKey) != "" {
		headers["apikey"] = cfg.APIKey
	}
	for k, v := range httpCfg.Headers {
		headers[k] = v
	}
	httpCfg.Headers = headers

	client, err := httpclient.New(httpCfg)
	if err != nil {
		return nil, fmt.Errorf("init summary endpoint client: %w", err)
	}
	return &Client{http: client}, nil
}

func (c *Client) Retries() int {
	return c.http.Retries()
}

func (c *Client) Timeout() time.Duration {
	return c.http.Timeout()
}

// RetryPolicy retries Complete up to Retries times, each attempt bounded by
// Timeout.
func (c *Client) RetryPolicy(baseDelay time.Duration) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:    c.Retries(),
		BaseDelay:      baseDelay,
		AttemptTimeout: c.Timeout(),
		NonRetryable:   NonRetryable,
	}
}

// NonRetryable reports failures that repeat identically on every attempt: a
// locally invalid request, or a request the endpoint rejected as malformed.
func NonRetryable(err error) bool {
	if errors.Is(err, domain.ErrValidation) {
		return true
	}
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusUnprocessableEntity
	}
	return false
}

func (c *Client) Complete(ctx context.Context, token string, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.WrapError(domain.ErrAuthorization, "summary endpoint", errors.New("missing bearer token"))
	}

	var out domain.CompletionResponse
	err := c.http.Post(ctx, "", req, map[string]string{
		"Authorization": "Bearer " + token,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
