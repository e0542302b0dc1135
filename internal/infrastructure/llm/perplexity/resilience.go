package perplexity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
	"github.com/kirillkom/yfetch-digest/internal/infrastructure/resilience"
)

var (
	ErrEmptyResponse     = fmt.Errorf("empty response from provider: %w", domain.ErrInvalidResponse)
	ErrMalformedResponse = fmt.Errorf("invalid JSON response from provider: %w", domain.ErrInvalidResponse)
)

type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "provider status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("provider status: %s", e.Status)
	}
	return fmt.Sprintf("provider status: %s: %s", e.Status, strings.TrimSpace(e.Body))
}

func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

func (e *StatusError) Unwrap() error {
	return domain.ErrAPI
}

// Truncated returns at most n bytes of the provider body.
func (e *StatusError) Truncated(n int) string {
	body := strings.TrimSpace(e.Body)
	if len(body) <= n {
		return body
	}
	return body[:n]
}

func classifyProviderError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return resilience.ErrorClassification{
			Retryable:     isRetryableHTTPStatus(statusErr.StatusCode),
			RecordFailure: statusErr.StatusCode >= http.StatusInternalServerError || statusErr.StatusCode == http.StatusTooManyRequests,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
