package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
	"github.com/kirillkom/yfetch-digest/internal/core/ports"
	"github.com/kirillkom/yfetch-digest/internal/observability/metrics"
)

const (
	serviceGateway         = "gateway"
	defaultAllowedOrigin   = "https://app.yfetch.com"
	defaultGatewayMaxBody  = 1 << 20
	providerErrorBodyLimit = 100
	providerLogBodyLimit   = 1000

	errorTypeAuthorization = "authorization"
	errorTypeValidation    = "validation"
	errorTypeProvider      = "provider"
)

type GatewayConfig struct {
	AllowedOrigin string
	MaxBodyBytes  int64
}

// upstreamStatusError is a non-2xx reply from the LLM provider.
type upstreamStatusError interface {
	error
	HTTPStatus() int
	Truncated(n int) string
}

// GatewayHandler authenticates dashboard callers and relays their chat
// completion bodies to the provider with the server held key.
type GatewayHandler struct {
	cfg       GatewayConfig
	verifier  TokenVerifier
	forwarder ports.CompletionForwarder
	metrics   *metrics.HTTPServerMetrics
}

func NewGatewayHandler(cfg GatewayConfig, verifier TokenVerifier, forwarder ports.CompletionForwarder) *GatewayHandler {
	if strings.TrimSpace(cfg.AllowedOrigin) == "" {
		cfg.AllowedOrigin = defaultAllowedOrigin
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultGatewayMaxBody
	}
	return &GatewayHandler{cfg: cfg, verifier: verifier, forwarder: forwarder}
}

func (h *GatewayHandler) WithMetrics(m *metrics.HTTPServerMetrics) *GatewayHandler {
	h.metrics = m
	return h
}

func (h *GatewayHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
	mux.HandleFunc("/v1/summarize", h.serve)
	mux.HandleFunc("/{$}", h.serve)

	handler := h.responseHeaders(mux)
	if h.metrics != nil {
		handler = h.metrics.Middleware(serviceGateway, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

// responseHeaders stamps CORS and no-store headers on every response,
// including health checks and unmatched paths.
func (h *GatewayHandler) responseHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.setResponseHeaders(w.Header())
		next.ServeHTTP(w, r)
	})
}

func (h *GatewayHandler) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		writeGatewayError(w, http.StatusMethodNotAllowed, "method not allowed", errorTypeValidation)
		return
	}

	token, ok := bearerToken(r)
	if !ok {
		writeGatewayError(w, http.StatusUnauthorized, "missing authorization header", errorTypeAuthorization)
		return
	}
	userID, err := h.verifier.Verify(token)
	if err != nil {
		slog.Warn("gateway_token_rejected", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeGatewayError(w, http.StatusUnauthorized, "invalid authorization token", errorTypeAuthorization)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		writeGatewayError(w, http.StatusBadRequest, "invalid JSON in request body", errorTypeValidation)
		return
	}
	if msg := validateCompletionBody(body); msg != "" {
		writeGatewayError(w, http.StatusBadRequest, msg, errorTypeValidation)
		return
	}

	reply, err := h.forwarder.Forward(r.Context(), body)
	if err != nil {
		h.writeForwardError(w, r, userID, err)
		return
	}

	h.recordUpstream("ok")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(reply)
}

func (h *GatewayHandler) writeForwardError(w http.ResponseWriter, r *http.Request, userID string, err error) {
	requestID := requestIDFromContext(r.Context())

	var statusErr upstreamStatusError
	switch {
	case errors.As(err, &statusErr):
		h.recordUpstream("provider_error")
		slog.Error("provider_api_error",
			"request_id", requestID,
			"user_id", userID,
			"status", statusErr.HTTPStatus(),
			"body", statusErr.Truncated(providerLogBodyLimit),
		)
		msg := fmt.Sprintf("provider API error: %d - %s", statusErr.HTTPStatus(), statusErr.Truncated(providerErrorBodyLimit))
		writeGatewayError(w, http.StatusInternalServerError, msg, errorTypeProvider)
	case domain.IsKind(err, domain.ErrTemporary):
		h.recordUpstream("unavailable")
		slog.Warn("provider_unavailable", "request_id", requestID, "error", err)
		writeGatewayError(w, http.StatusServiceUnavailable, "provider temporarily unavailable", errorTypeProvider)
	case domain.IsKind(err, domain.ErrInvalidResponse):
		h.recordUpstream("invalid_response")
		slog.Error("provider_invalid_response", "request_id", requestID, "error", err)
		writeGatewayError(w, http.StatusInternalServerError, "invalid response from provider", errorTypeProvider)
	default:
		h.recordUpstream("failed")
		slog.Error("provider_request_failed", "request_id", requestID, "error", err)
		writeGatewayError(w, http.StatusInternalServerError, "provider request failed", errorTypeProvider)
	}
}

func (h *GatewayHandler) setResponseHeaders(header http.Header) {
	header.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	header.Set("Access-Control-Allow-Origin", h.cfg.AllowedOrigin)
	header.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type, accept")
	header.Set("Access-Control-Allow-Credentials", "true")
	header.Set("Access-Control-Max-Age", "86400")
	header.Add("Vary", "Origin")
}

func (h *GatewayHandler) recordUpstream(outcome string) {
	if h.metrics != nil {
		h.metrics.RecordUpstream(serviceGateway, outcome)
	}
}

// validateCompletionBody checks the two fields the gateway depends on and
// returns the client facing message for the first problem found.
func validateCompletionBody(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return "invalid JSON in request body"
	}

	var messages []json.RawMessage
	raw, ok := fields["messages"]
	if !ok || json.Unmarshal(raw, &messages) != nil || len(messages) == 0 {
		return "messages array is required"
	}

	var model string
	raw, ok = fields["model"]
	if !ok || json.Unmarshal(raw, &model) != nil || strings.TrimSpace(model) == "" {
		return "model is required"
	}
	return ""
}

func writeGatewayError(w http.ResponseWriter, status int, message, errType string) {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(map[string]string{"error": message, "type": errType})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
