// Package handler exposes the search executor over HTTP and serves the
// cache administration endpoints.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/matcher"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/translit-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/middleware"
)

type SearchExecutor interface {
	Search(ctx context.Context, req executor.Request) (*executor.SearchResult, error)
	Count(ctx context.Context, req executor.Request) (int, error)
}

// CountResult is the body of /api/v1/search/count.
type CountResult struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
	Total int    `json:"total"`
}

// Handler serves the search API. Cache, Collector and Metrics are optional.
type Handler struct {
	executor  SearchExecutor
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	cfg       config.SearchConfig
	logger    *slog.Logger
}

func New(exec SearchExecutor, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics, cfg config.SearchConfig) *Handler {
	return &Handler{
		executor:  exec,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		cfg:       cfg,
		logger:    logger.WithComponent("search-handler"),
	}
}

// Routes registers the search and cache endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/search/count", h.Count)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := h.ParseRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.RunSearch(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	req, err := h.ParseRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.RunCount(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ParseRequest reads q, mode, superfluous, page and limit from the query
// string and the caller from the X-Caller-ID header.
func (h *Handler) ParseRequest(r *http.Request) (executor.Request, error) {
	params := r.URL.Query()
	req := executor.Request{
		Query:  params.Get("q"),
		Caller: r.Header.Get(middleware.CallerHeader),
	}
	if req.Query == "" {
		return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required")
	}

	modeName := params.Get("mode")
	if modeName == "" {
		modeName = h.cfg.DefaultMode
	}
	mode, err := matcher.ParseMode(modeName)
	if err != nil {
		return req, err
	}
	req.Mode = mode

	if v := params.Get("superfluous"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "superfluous must be true or false")
		}
		req.IncludeSuperfluous = include
	}
	if v := params.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "page must be a positive integer")
		}
		req.Page = page
	}
	if v := params.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
		}
		req.Limit = limit
	}
	return h.Complete(req), nil
}

// Complete fills defaults for page and limit and caps the limit.
func (h *Handler) Complete(req executor.Request) executor.Request {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = h.cfg.DefaultLimit
	}
	if h.cfg.MaxLimit > 0 && req.Limit > h.cfg.MaxLimit {
		req.Limit = h.cfg.MaxLimit
	}
	return req
}

// RunSearch executes req through the cache and records metrics and
// analytics. It is shared by the HTTP and RPC front ends.
func (h *Handler) RunSearch(ctx context.Context, req executor.Request) (*executor.SearchResult, error) {
	start := time.Now()
	result, cacheHit, err := h.lookup(ctx, cache.KindSearch, req, func() (*executor.SearchResult, error) {
		return h.executor.Search(ctx, req)
	})
	h.observe(ctx, analytics.EventSearch, req, result, cacheHit, time.Since(start), err)
	return result, err
}

// RunCount is RunSearch for the size of the match set.
func (h *Handler) RunCount(ctx context.Context, req executor.Request) (*CountResult, error) {
	start := time.Now()
	result, cacheHit, err := h.lookup(ctx, cache.KindCount, req, func() (*executor.SearchResult, error) {
		total, err := h.executor.Count(ctx, req)
		if err != nil {
			return nil, err
		}
		return &executor.SearchResult{Query: req.Query, Mode: req.Mode.String(), Total: total}, nil
	})
	h.observe(ctx, analytics.EventCount, req, result, cacheHit, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &CountResult{Query: req.Query, Mode: req.Mode.String(), Total: result.Total}, nil
}

func (h *Handler) lookup(
	ctx context.Context,
	kind cache.Kind,
	req executor.Request,
	compute func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if h.cache == nil {
		result, err := compute()
		return result, false, err
	}
	return h.cache.GetOrCompute(ctx, kind, req, compute)
}

func (h *Handler) observe(
	ctx context.Context,
	typ analytics.EventType,
	req executor.Request,
	result *executor.SearchResult,
	cacheHit bool,
	elapsed time.Duration,
	err error,
) {
	log := logger.FromContext(ctx)
	outcome := apperrors.Reason(err)
	event := analytics.SearchEvent{
		Type:      typ,
		Query:     req.Query,
		Mode:      req.Mode.String(),
		LatencyMs: elapsed.Milliseconds(),
		CacheHit:  cacheHit,
		Outcome:   outcome,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	}
	if result != nil {
		event.Phrases = result.Stats.Phrases
		event.Slots = result.Stats.Slots
		event.Candidates = result.Stats.Candidates
		event.CandidateDocuments = result.Stats.CandidateDocuments
		event.Total = result.Total
		event.Returned = len(result.Results)
		if result.Total == 0 {
			outcome = "zero_result"
		}
		log.Info("search completed",
			"type", typ,
			"query", req.Query,
			"mode", event.Mode,
			"total", result.Total,
			"returned", event.Returned,
			"cache_hit", cacheHit,
			"latency_ms", event.LatencyMs,
		)
	}

	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
		if err == nil {
			status := "miss"
			if cacheHit {
				status = "hit"
			}
			h.metrics.SearchLatency.WithLabelValues(status).Observe(elapsed.Seconds())
			h.metrics.SearchResultsCount.Observe(float64(result.Total))
		}
	}
	if h.collector != nil {
		h.collector.Track(event)
	}
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("search failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		log.Warn("search rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": apperrors.PublicMessage(err)})
}
