// Package handler implements the HTTP surface of queryd: query
// compilation, patch application, catalog search, and the cache
// management endpoints.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kavyarao/streamfilter/internal/analytics"
	"github.com/kavyarao/streamfilter/internal/catalog"
	"github.com/kavyarao/streamfilter/internal/query/compiler"
	"github.com/kavyarao/streamfilter/internal/query/filterstate"
	"github.com/kavyarao/streamfilter/internal/query/fragment"
	"github.com/kavyarao/streamfilter/internal/query/pattern"
	"github.com/kavyarao/streamfilter/internal/query/reducer"
	"github.com/kavyarao/streamfilter/internal/queryd/cache"
	apperrors "github.com/kavyarao/streamfilter/pkg/errors"
	"github.com/kavyarao/streamfilter/pkg/logger"
	"github.com/kavyarao/streamfilter/pkg/metrics"
	"github.com/kavyarao/streamfilter/pkg/proto"
	"github.com/kavyarao/streamfilter/pkg/resilience"
	"github.com/kavyarao/streamfilter/pkg/tracing"
)

// TableSource supplies the current pattern table. The refresher swaps
// tables behind this interface; a static table works too.
type TableSource interface {
	Table() *pattern.Table
}

// CatalogSearcher executes filter states against the title catalog.
type CatalogSearcher interface {
	Search(ctx context.Context, state filterstate.State, limit, offset int) (*catalog.SearchResult, error)
}

// Handler serves the query API. Cache, collector, searcher, and metrics
// are all optional; a nil dependency disables the feature it backs.
type Handler struct {
	tables       TableSource
	searcher     CatalogSearcher
	cache        *cache.CompileCache
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	breaker      *resilience.CircuitBreaker
	maxTextLen   int
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New wires the handler. tables must not be nil.
func New(
	tables TableSource,
	searcher CatalogSearcher,
	compileCache *cache.CompileCache,
	collector *analytics.Collector,
	m *metrics.Metrics,
	maxTextLen, defaultLimit, maxResults int,
) *Handler {
	h := &Handler{
		tables:       tables,
		searcher:     searcher,
		cache:        compileCache,
		collector:    collector,
		metrics:      m,
		maxTextLen:   maxTextLen,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "query-handler"),
	}
	if searcher != nil {
		h.breaker = resilience.NewCircuitBreaker("catalog-search", resilience.BreakerConfig{})
		if m != nil {
			h.breaker.OnStateChange(func(from, to resilience.BreakerState) {
				m.CircuitBreakerState.WithLabelValues("catalog-search").Set(float64(to))
			})
		}
	}
	return h
}

// Compile handles POST /api/v1/query/compile. Compilation itself never
// fails: unrecognized text yields an empty fragment list and an empty
// patch.
func (h *Handler) Compile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req proto.CompileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		h.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if h.maxTextLen > 0 && len(req.Text) > h.maxTextLen {
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("text exceeds %d bytes", h.maxTextLen))
		return
	}

	ctx, span := tracing.Start(ctx, "compile", logger.RequestID(ctx))
	entry, cacheHit := h.compile(ctx, req.Text, req.ContentType)
	span.SetAttr("fragments", len(entry.Fragments))
	span.SetAttr("cache_hit", cacheHit)
	span.End()
	span.Emit()

	latency := time.Since(start)
	h.observeCompile(entry.Fragments, cacheHit, latency)

	log.Info("query compiled",
		"text_len", len(req.Text),
		"fragments", len(entry.Fragments),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)

	if h.collector != nil {
		h.collector.Track(analytics.CompileEvent{
			Type:          analytics.EventCompile,
			Text:          req.Text,
			ContentType:   req.ContentType,
			FragmentCount: len(entry.Fragments),
			FragmentKinds: fragmentKinds(entry.Fragments),
			ZeroFragments: len(entry.Fragments) == 0,
			CacheHit:      cacheHit,
			LatencyMs:     latency.Milliseconds(),
			Timestamp:     time.Now().UTC(),
			RequestID:     logger.RequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, proto.CompileResponse{
		Fragments: entry.Fragments,
		Patch:     entry.Patch,
	})
}

// Apply handles POST /api/v1/query/apply. It merges either an explicit
// patch or the reduction of a fragment list into the caller's state.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	var req proto.ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var patch reducer.FilterPatch
	switch {
	case req.Patch != nil:
		patch = *req.Patch
	default:
		patch = reducer.Reduce(req.Fragments, reducer.ContentType(req.ContentType))
	}

	h.writeJSON(w, http.StatusOK, proto.ApplyResponse{
		Patch: patch,
		State: filterstate.Merge(req.State, patch),
	})
}

// Search handles GET /api/v1/search. The q parameter is compiled and
// reduced into a filter state which is then run against the catalog.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.searcher == nil {
		h.writeError(w, http.StatusServiceUnavailable, "catalog is not configured")
		return
	}

	text := r.URL.Query().Get("q")
	if text == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	contentType := r.URL.Query().Get("content_type")

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}
	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = parsed
	}

	ctx, span := tracing.Start(ctx, "search", logger.RequestID(ctx))
	defer func() {
		span.End()
		span.Emit()
	}()

	compileCtx, compileSpan := tracing.Child(ctx, "compile")
	entry, cacheHit := h.compile(compileCtx, text, contentType)
	compileSpan.SetAttr("fragments", len(entry.Fragments))
	compileSpan.SetAttr("cache_hit", cacheHit)
	compileSpan.End()
	state := filterstate.Merge(filterstate.State{ContentType: contentType}, entry.Patch)

	searchStart := time.Now()
	searchCtx, searchSpan := tracing.Child(ctx, "catalog_search")
	var result *catalog.SearchResult
	err := h.breaker.Execute(func() error {
		var searchErr error
		result, searchErr = h.searcher.Search(searchCtx, state, limit, offset)
		return searchErr
	})
	searchSpan.End()
	if err != nil {
		span.SetError(err)
		if err == resilience.ErrCircuitOpen {
			h.writeError(w, http.StatusServiceUnavailable, "catalog temporarily unavailable")
			return
		}
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("catalog search failed", "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, "search failed")
		return
	}
	if h.metrics != nil {
		h.metrics.CatalogSearchLatency.Observe(time.Since(searchStart).Seconds())
	}

	log.Info("search completed",
		"total_hits", result.Total,
		"returned", len(result.Titles),
		"fragments", len(entry.Fragments),
		"cache_hit", cacheHit,
	)

	if h.collector != nil {
		h.collector.Track(analytics.SearchEvent{
			Type:      analytics.EventSearch,
			TotalHits: result.Total,
			Returned:  len(result.Titles),
			LatencyMs: time.Since(searchStart).Milliseconds(),
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"state":     state,
		"fragments": entry.Fragments,
		"titles":    result.Titles,
		"total":     result.Total,
	})
}

// CacheStats handles GET /api/v1/cache/stats.
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

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "invalidated",
		"keys_deleted": deleted,
	})
}

// compile runs the compiler and reducer for text under the content-type
// context, consulting the cache when configured.
func (h *Handler) compile(ctx context.Context, text, contentType string) (*cache.Entry, bool) {
	computeFn := func() (*cache.Entry, error) {
		fragments := compiler.Compile(h.tables.Table(), text)
		return &cache.Entry{
			Fragments: fragments,
			Patch:     reducer.Reduce(fragments, reducer.ContentType(contentType)),
		}, nil
	}

	if h.cache == nil {
		entry, _ := computeFn()
		return entry, false
	}
	entry, cacheHit, err := h.cache.GetOrCompute(ctx, text, contentType, computeFn)
	if err != nil {
		// computeFn cannot fail; only cache plumbing can. Fall back to
		// a direct compile.
		h.logger.Error("cache lookup failed", "error", err)
		entry, _ = computeFn()
		return entry, false
	}
	return entry, cacheHit
}

func (h *Handler) observeCompile(fragments []fragment.Fragment, cacheHit bool, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	status := "miss"
	if cacheHit {
		status = "hit"
	}
	h.metrics.CompileLatency.WithLabelValues(status).Observe(latency.Seconds())
	h.metrics.FragmentsPerCompile.Observe(float64(len(fragments)))
	for _, f := range fragments {
		h.metrics.FragmentKindTotal.WithLabelValues(string(f.Kind)).Inc()
	}
	if len(fragments) == 0 {
		h.metrics.ZeroFragmentTotal.Inc()
	}
	if cacheHit {
		h.metrics.CacheHitsTotal.Inc()
	} else {
		h.metrics.CacheMissesTotal.Inc()
	}
}

func fragmentKinds(fragments []fragment.Fragment) []string {
	if len(fragments) == 0 {
		return nil
	}
	kinds := make([]string, len(fragments))
	for i, f := range fragments {
		kinds[i] = string(f.Kind)
	}
	return kinds
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
