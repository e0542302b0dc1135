package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

func TestDoMergesHeadersWithPerCallPrecedence(t *testing.T) {
	var gotHeaders http.Header
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client, err := New(Config{
		BaseURL: srv.URL,
		Headers: map[string]string{"apikey": "default-key", "x-client-info": "yfetch-digest/1.0.0"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var out struct {
		OK bool `json:"ok"`
	}
	err = client.Post(context.Background(), "/summarize", map[string]string{"model": "m"}, map[string]string{"apikey": "call-key"}, &out)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if !out.OK {
		t.Fatalf("expected decoded response")
	}
	if gotHeaders.Get("apikey") != "call-key" {
		t.Fatalf("expected per-call header to win, got %q", gotHeaders.Get("apikey"))
	}
	if gotHeaders.Get("x-client-info") != "yfetch-digest/1.0.0" {
		t.Fatalf("expected default header, got %q", gotHeaders.Get("x-client-info"))
	}
	if gotHeaders.Get("Content-Type") != "application/json" {
		t.Fatalf("expected json content type, got %q", gotHeaders.Get("Content-Type"))
	}
	if gotBody != `{"model":"m"}` {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestDoReturnsAPIErrorForNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("provider exploded"))
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = client.Get(context.Background(), "/", nil, nil)
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Body != "provider exploded" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestDoReturnsInvalidResponseForBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var out map[string]any
	err = client.Get(context.Background(), "/", nil, &out)
	if !domain.IsKind(err, domain.ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestDoTimesOutWithConfiguredDuration(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := New(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = client.Get(context.Background(), "/slow", nil, nil)
	var timeoutErr *domain.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if timeoutErr.Duration != 20*time.Millisecond {
		t.Fatalf("unexpected timeout duration %v", timeoutErr.Duration)
	}
}

func TestNewDefaultsAndValidation(t *testing.T) {
	client, err := New(Config{BaseURL: "https://edge.example.com/functions/v1/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client.Timeout() != DefaultTimeout || client.Retries() != DefaultRetries {
		t.Fatalf("unexpected defaults timeout=%v retries=%d", client.Timeout(), client.Retries())
	}
	if got := client.resolve("perplexity", nil); got != "https://edge.example.com/functions/v1/perplexity" {
		t.Fatalf("unexpected resolved url %q", got)
	}

	if _, err := New(Config{BaseURL: "not a url"}); err == nil {
		t.Fatalf("expected error for relative base url")
	}
	if _, err := New(Config{BaseURL: "https://x.test", Credentials: "sometimes"}); err == nil {
		t.Fatalf("expected error for unknown credentials mode")
	}
}

func TestSameOriginRefusesCrossHostRedirect(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer other.Close()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, other.URL, http.StatusFound)
	}))
	defer origin.Close()

	client, err := New(Config{BaseURL: origin.URL, Credentials: CredentialsSameOrigin})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := client.Get(context.Background(), "/", nil, nil); err == nil {
		t.Fatalf("expected cross-origin redirect to fail")
	}
}
