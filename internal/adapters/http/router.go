package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/yfetch-digest/internal/config"
	"github.com/kirillkom/yfetch-digest/internal/core/domain"
	"github.com/kirillkom/yfetch-digest/internal/core/ports"
	"github.com/kirillkom/yfetch-digest/internal/observability/metrics"
)

const (
	serviceAPI          = "api"
	maxPostsBodyBytes   = 5 << 20
	maxCommandBodyBytes = 64 << 10
	backpressureWait    = 250 * time.Millisecond
	xlsxContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// SummaryService generates summaries and reads their current state.
type SummaryService interface {
	ports.SummaryGenerator
	ports.SummaryReader
}

type Services struct {
	Posts     ports.PostService
	Summaries SummaryService
	Jobs      ports.SummaryJobEnqueuer
	Digests   ports.DigestService
	Exporter  ports.DigestExporter
	Verifier  TokenVerifier
	Metrics   *metrics.HTTPServerMetrics
}

type Router struct {
	posts     ports.PostService
	summaries SummaryService
	jobs      ports.SummaryJobEnqueuer
	digests   ports.DigestService
	exporter  ports.DigestExporter
	verifier  TokenVerifier
	metrics   *metrics.HTTPServerMetrics

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	summaryDefault domain.SummaryOptions
}

func NewRouter(cfg config.Config, services Services) *Router {
	return &Router{
		posts:          services.Posts,
		summaries:      services.Summaries,
		jobs:           services.Jobs,
		digests:        services.Digests,
		exporter:       services.Exporter,
		verifier:       services.Verifier,
		metrics:        services.Metrics,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIMaxInFlight,
		summaryDefault: domain.SummaryOptions{
			MaxLength: cfg.SummaryMaxLength,
			Style:     domain.SummaryStyle(cfg.SummaryStyle),
		},
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/posts", rt.storePosts)
	api.HandleFunc("GET /v1/posts", rt.listPosts)
	api.HandleFunc("DELETE /v1/posts/{id}", rt.deletePost)
	api.HandleFunc("POST /v1/posts/{id}/summary", rt.summarizePost)
	api.HandleFunc("GET /v1/posts/{id}/summary", rt.currentSummary)
	api.HandleFunc("POST /v1/digests", rt.buildDigest)
	api.HandleFunc("GET /v1/digests/latest", rt.latestDigest)
	api.HandleFunc("GET /v1/digests/latest/export", rt.exportLatestDigest)
	api.HandleFunc("GET /v1/summaries", rt.summaryOverview)

	var protected http.Handler = authMiddleware(rt.verifier, api)
	protected = backpressureWithReject(protected, rt.maxInFlight, backpressureWait, rt.rejected("backpressure"))
	protected = rateLimitMiddleware(protected, rt.rateLimitRPS, rt.rateLimitBurst, rt.rejected("rate_limit"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", protected)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceAPI, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) rejected(reason string) func() {
	if rt.metrics == nil {
		return nil
	}
	return func() { rt.metrics.RecordRejected(serviceAPI, reason) }
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type storePostsRequest struct {
	Source domain.PostSource `json:"source"`
	Posts  []domain.Post     `json:"posts"`
}

func (rt *Router) storePosts(w http.ResponseWriter, r *http.Request) {
	var req storePostsRequest
	if err := decodeJSON(w, r, maxPostsBodyBytes, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	stored, err := rt.posts.Store(r.Context(), userIDFromContext(r.Context()), req.Source, req.Posts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"posts":   stored,
		"stored":  len(stored),
		"skipped": len(req.Posts) - len(stored),
	})
}

func (rt *Router) listPosts(w http.ResponseWriter, r *http.Request) {
	source := domain.PostSource(strings.TrimSpace(r.URL.Query().Get("source")))
	posts, err := rt.posts.List(r.Context(), userIDFromContext(r.Context()), source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (rt *Router) deletePost(w http.ResponseWriter, r *http.Request) {
	if err := rt.posts.Delete(r.Context(), userIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type summarizeRequest struct {
	MaxLength int                 `json:"max_length"`
	Style     domain.SummaryStyle `json:"style"`
	SummaryID string              `json:"summary_id"`
	Async     bool                `json:"async"`
}

func (rt *Router) summarizePost(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := decodeJSON(w, r, maxCommandBodyBytes, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	opts, err := rt.summaryOptions(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	userID := userIDFromContext(ctx)
	postID := r.PathValue("id")

	if req.Async {
		if rt.jobs == nil {
			writeError(w, r, domain.WrapError(domain.ErrTemporary, "enqueue summary", errors.New("async summaries are not configured")))
			return
		}
		job, err := rt.jobs.Enqueue(ctx, userID, postID, opts)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "job": job})
		return
	}

	post, err := rt.posts.Get(ctx, userID, postID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := rt.summaries.Generate(ctx, userID, *post, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary, "post_id": post.ID})
}

func (rt *Router) summaryOptions(req summarizeRequest) (domain.SummaryOptions, error) {
	opts := domain.SummaryOptions{MaxLength: req.MaxLength, Style: req.Style, SummaryID: req.SummaryID}
	if opts.MaxLength == 0 {
		opts.MaxLength = rt.summaryDefault.MaxLength
	}
	if opts.Style == "" {
		opts.Style = rt.summaryDefault.Style
	}
	opts = opts.WithDefaults()

	verr := &domain.ValidationError{}
	if req.MaxLength < 0 {
		verr.Add("max_length", "must not be negative")
	}
	switch opts.Style {
	case domain.StyleConcise, domain.StyleDetailed, domain.StyleBullet:
	default:
		verr.Add("style", "must be one of concise, detailed, bullet")
	}
	if verr.HasErrors() {
		return domain.SummaryOptions{}, verr
	}
	return opts, nil
}

func (rt *Router) currentSummary(w http.ResponseWriter, r *http.Request) {
	record, err := rt.summaries.Current(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type buildDigestRequest struct {
	Source domain.PostSource `json:"source"`
}

func (rt *Router) buildDigest(w http.ResponseWriter, r *http.Request) {
	var req buildDigestRequest
	if err := decodeJSON(w, r, maxCommandBodyBytes, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Source != "" && !req.Source.Valid() {
		writeError(w, r, domain.WrapError(domain.ErrValidation, "build digest", fmt.Errorf("unsupported source %q", req.Source)))
		return
	}

	digest, err := rt.digests.BuildForUser(r.Context(), userIDFromContext(r.Context()), req.Source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, digest)
}

func (rt *Router) latestDigest(w http.ResponseWriter, r *http.Request) {
	digest, err := rt.digests.Latest(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, digest)
}

func (rt *Router) exportLatestDigest(w http.ResponseWriter, r *http.Request) {
	digest, err := rt.digests.Latest(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := rt.exporter.Export(&buf, digest); err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("digest-%s.xlsx", digest.GeneratedAt.UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (rt *Router) summaryOverview(w http.ResponseWriter, r *http.Request) {
	categories, err := rt.digests.Overview(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// decodeJSON reads a bounded JSON body. With allowEmpty an absent body leaves
// dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil:
		return nil
	case allowEmpty && errors.Is(err, io.EOF):
		return nil
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.WrapError(domain.ErrValidation, "decode body", fmt.Errorf("body exceeds %d bytes", tooLarge.Limit))
		}
		return domain.WrapError(domain.ErrValidation, "decode body", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
