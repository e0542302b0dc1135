package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

// SummaryMetrics records summary generation and digest outcomes.
type SummaryMetrics struct {
	service string

	summaryTotal    *prometheus.CounterVec
	summaryDuration *prometheus.HistogramVec
	digestTotal     *prometheus.CounterVec
	digestPosts     *prometheus.HistogramVec
}

func NewSummaryMetrics(service string, registerer prometheus.Registerer) *SummaryMetrics {
	summaryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yfetch",
			Name:      "summary_total",
			Help:      "Summary generations by terminal status.",
		},
		[]string{"service", "status"},
	)
	summaryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "yfetch",
			Name:      "summary_duration_seconds",
			Help:      "Summary generation duration in seconds, retries included.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"service", "status"},
	)
	digestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yfetch",
			Name:      "digest_builds_total",
			Help:      "Digest builds by outcome.",
		},
		[]string{"service", "status"},
	)
	digestPosts := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "yfetch",
			Name:      "digest_posts",
			Help:      "Posts per digest build.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
		[]string{"service"},
	)

	registerer.MustRegister(summaryTotal, summaryDuration, digestTotal, digestPosts)

	return &SummaryMetrics{
		service:         service,
		summaryTotal:    summaryTotal,
		summaryDuration: summaryDuration,
		digestTotal:     digestTotal,
		digestPosts:     digestPosts,
	}
}

func (m *SummaryMetrics) ObserveSummary(status domain.SummaryStatus, duration time.Duration) {
	m.summaryTotal.WithLabelValues(m.service, string(status)).Inc()
	m.summaryDuration.WithLabelValues(m.service, string(status)).Observe(duration.Seconds())
}

func (m *SummaryMetrics) ObserveDigest(err error, postCount int) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.digestTotal.WithLabelValues(m.service, status).Inc()
	m.digestPosts.WithLabelValues(m.service).Observe(float64(postCount))
}
