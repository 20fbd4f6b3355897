package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/clinical-evidence-engine/internal/config"
	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
	"github.com/kirillkom/clinical-evidence-engine/internal/core/ports"
	"github.com/kirillkom/clinical-evidence-engine/internal/observability/metrics"
)

const (
	serviceName     = "api"
	maxRequestBytes = 1 << 20
	readinessBudget = 3 * time.Second
)

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Router struct {
	searcher ports.EvidenceSearcher
	analyzer ports.QueryAnalyzer
	metrics  *metrics.HTTPServerMetrics
	checks   map[string]ReadinessCheck

	authToken      string
	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	overloadWait   time.Duration
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func WithReadinessCheck(name string, check ReadinessCheck) RouterOption {
	return func(rt *Router) {
		if check != nil {
			rt.checks[name] = check
		}
	}
}

func NewRouter(cfg config.Config, searcher ports.EvidenceSearcher, analyzer ports.QueryAnalyzer, opts ...RouterOption) *Router {
	rt := &Router{
		searcher:       searcher,
		analyzer:       analyzer,
		checks:         make(map[string]ReadinessCheck),
		authToken:      strings.TrimSpace(cfg.APIAuthToken),
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIMaxInFlight,
		overloadWait:   cfg.APIOverloadWait,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/v1/evidence/search", rt.searchEvidence)
	api.HandleFunc("/v1/evidence/understand", rt.understandQuery)

	var guarded http.Handler = api
	guarded = rt.authMiddleware(guarded)
	guarded = backpressureMiddleware(guarded, rt.maxInFlight, rt.overloadWait)
	guarded = rateLimitMiddleware(guarded, rt.rateLimitRPS, rt.rateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/readyz", rt.readyz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessBudget)
	defer cancel()

	status := http.StatusOK
	report := make(map[string]string, len(rt.checks))
	for name, check := range rt.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			report[name] = "unavailable"
			slog.Warn("readiness_check_failed",
				"request_id", requestIDFromContext(r.Context()),
				"check", name,
				"error", err,
			)
			continue
		}
		report[name] = "ok"
	}
	writeJSON(w, status, report)
}

func (rt *Router) searchEvidence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req domain.EvidenceSearchRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := rt.searcher.Search(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type understandRequest struct {
	Query string `json:"query"`
}

type understandResponse struct {
	Query         string                     `json:"query"`
	IsMedical     bool                       `json:"isMedical"`
	Understanding *domain.QueryUnderstanding `json:"understanding,omitempty"`
}

func (rt *Router) understandQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req understandRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	resp := understandResponse{
		Query:     query,
		IsMedical: rt.analyzer.IsMedicalQuery(query),
	}
	if resp.IsMedical {
		understanding := rt.analyzer.Understand(query)
		resp.Understanding = &understanding
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		return errors.New("invalid json")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
