package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kavyarao/streamfilter/pkg/kafka"
)

// AggregatedStats is the snapshot served by the stats endpoint.
type AggregatedStats struct {
	TotalCompiles       int64        `json:"total_compiles"`
	TotalSearches       int64        `json:"total_searches"`
	CacheHits           int64        `json:"cache_hits"`
	CacheMisses         int64        `json:"cache_misses"`
	ZeroFragmentCount   int64        `json:"zero_fragment_count"`
	ZeroFragmentRate    float64      `json:"zero_fragment_rate"`
	AvgLatencyMs        float64      `json:"avg_latency_ms"`
	P50LatencyMs        int64        `json:"p50_latency_ms"`
	P95LatencyMs        int64        `json:"p95_latency_ms"`
	P99LatencyMs        int64        `json:"p99_latency_ms"`
	TopQueries          []QueryCount `json:"top_queries"`
	ZeroFragmentQueries []QueryCount `json:"zero_fragment_queries"`
	FragmentKindCounts  []QueryCount `json:"fragment_kind_counts"`
	CompilesPerMinute   float64      `json:"compiles_per_minute"`
}

// QueryCount pairs a query text (or fragment kind) with a count.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator consumes the analytics topic and maintains running stats.
type Aggregator struct {
	mu            sync.RWMutex
	totalCompiles atomic.Int64
	totalSearches atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	zeroFragments atomic.Int64
	latencies     []int64
	queryCounts   map[string]int64
	zeroQueries   map[string]int64
	kindCounts    map[string]int64
	startTime     time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an aggregator fed by the given consumer.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies:   make([]int64, 0, 10000),
		queryCounts: make(map[string]int64),
		zeroQueries: make(map[string]int64),
		kindCounts:  make(map[string]int64),
		startTime:   time.Now(),
		consumer:    consumer,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// Start blocks consuming the analytics topic until ctx is canceled.
func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent returns the Kafka handler that feeds the aggregator.
// Undecodable events are logged and skipped, never retried.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		compile, err := kafka.DecodeJSON[CompileEvent](value)
		if err == nil && compile.Type == EventCompile {
			agg.recordCompileEvent(compile)
			return nil
		}
		search, err := kafka.DecodeJSON[SearchEvent](value)
		if err == nil && search.Type == EventSearch {
			agg.recordSearchEvent(search)
			return nil
		}
		agg.logger.Error("failed to decode analytics event", "error", err)
		return nil
	}
}

func (a *Aggregator) recordCompileEvent(event CompileEvent) {
	a.totalCompiles.Add(1)

	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.ZeroFragments {
		a.zeroFragments.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.queryCounts[event.Text]++
	if event.ZeroFragments {
		a.zeroQueries[event.Text]++
	}
	for _, kind := range event.FragmentKinds {
		a.kindCounts[kind]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordSearchEvent(event SearchEvent) {
	a.totalSearches.Add(1)
}

// Stats computes a snapshot of the running aggregates.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalCompiles:     a.totalCompiles.Load(),
		TotalSearches:     a.totalSearches.Load(),
		CacheHits:         a.cacheHits.Load(),
		CacheMisses:       a.cacheMisses.Load(),
		ZeroFragmentCount: a.zeroFragments.Load(),
	}
	if stats.TotalCompiles > 0 {
		stats.ZeroFragmentRate = float64(stats.ZeroFragmentCount) / float64(stats.TotalCompiles)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroFragmentQueries = topN(a.zeroQueries, 10)
	stats.FragmentKindCounts = topN(a.kindCounts, len(a.kindCounts))
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.CompilesPerMinute = float64(stats.TotalCompiles) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
