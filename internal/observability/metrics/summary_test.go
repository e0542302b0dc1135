package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

func TestSummaryMetricsExposedOnHTTPRegistry(t *testing.T) {
	httpMetrics := NewHTTPServerMetrics("api")
	summaries := NewSummaryMetrics("api", httpMetrics.Registerer())

	summaries.ObserveSummary(domain.SummaryCompleted, 1500*time.Millisecond)
	summaries.ObserveSummary(domain.SummaryFailed, 30*time.Second)
	summaries.ObserveDigest(nil, 4)
	summaries.ObserveDigest(errors.New("boom"), 2)

	rec := httptest.NewRecorder()
	httpMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`yfetch_summary_total{service="api",status="completed"} 1`,
		`yfetch_summary_total{service="api",status="failed"} 1`,
		`yfetch_digest_builds_total{service="api",status="error"} 1`,
		`yfetch_digest_builds_total{service="api",status="success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}

func TestMiddlewareNormalizesPostPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/posts/abc/summary", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `yfetch_http_requests_total{method="POST",path="/v1/posts/{post_id}/summary",service="api",status="202"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Fatalf("expected %q in metrics output:\n%s", want, rec.Body.String())
	}
}
