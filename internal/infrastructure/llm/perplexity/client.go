package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
	"github.com/kirillkom/yfetch-digest/internal/infrastructure/resilience"
)

const (
	DefaultURL   = "https://api.perplexity.ai/chat/completions"
	DefaultModel = "llama-3.1-sonar-large-128k-online"

	maxProviderBody = 1 << 20
)

// Client forwards chat completion bodies to the provider with the server
// held API key.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
}

func New(url, apiKey string, options Options) *Client {
	if strings.TrimSpace(url) == "" {
		url = DefaultURL
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		url:        url,
		apiKey:     apiKey,
		httpClient: httpClient,
		executor:   options.ResilienceExecutor,
	}
}

// Forward sends body unchanged and returns the provider's raw JSON reply.
func (c *Client) Forward(ctx context.Context, body []byte) ([]byte, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, errors.New("provider api key is not configured")
	}

	var out []byte
	call := func(callCtx context.Context) error {
		resp, err := c.post(callCtx, body)
		if err != nil {
			return err
		}
		out = resp
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "provider.forward", call, classifyProviderError)
	} else {
		err = call(ctx)
	}
	if resilience.IsCircuitOpen(err) {
		return nil, domain.WrapError(domain.ErrTemporary, "provider forward", err)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create provider request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(raw)}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyResponse
	}
	if !json.Valid(raw) {
		return nil, ErrMalformedResponse
	}
	return raw, nil
}
