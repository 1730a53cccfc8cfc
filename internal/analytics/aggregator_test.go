package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func compileEvent(text string, fragments int, cacheHit bool, latencyMs int64) []byte {
	ev := CompileEvent{
		Type:          EventCompile,
		Text:          text,
		FragmentCount: fragments,
		ZeroFragments: fragments == 0,
		CacheHit:      cacheHit,
		LatencyMs:     latencyMs,
		Timestamp:     time.Now(),
	}
	data, _ := json.Marshal(ev)
	return data
}

func TestAggregatorCompileStats(t *testing.T) {
	agg := NewAggregator(nil)
	handle := HandleEvent(agg)
	ctx := context.Background()

	events := [][]byte{
		compileEvent("action movies", 2, false, 10),
		compileEvent("action movies", 2, true, 1),
		compileEvent("action movies", 2, true, 2),
		compileEvent("what should i watch", 0, false, 5),
	}
	for _, ev := range events {
		if err := handle(ctx, []byte("analytics"), ev); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	stats := agg.Stats()
	if stats.TotalCompiles != 4 {
		t.Errorf("TotalCompiles = %d, want 4", stats.TotalCompiles)
	}
	if stats.CacheHits != 2 || stats.CacheMisses != 2 {
		t.Errorf("cache hits/misses = %d/%d, want 2/2", stats.CacheHits, stats.CacheMisses)
	}
	if stats.ZeroFragmentCount != 1 {
		t.Errorf("ZeroFragmentCount = %d, want 1", stats.ZeroFragmentCount)
	}
	if stats.ZeroFragmentRate != 0.25 {
		t.Errorf("ZeroFragmentRate = %v, want 0.25", stats.ZeroFragmentRate)
	}
	if len(stats.TopQueries) == 0 || stats.TopQueries[0].Query != "action movies" {
		t.Errorf("unexpected top queries: %v", stats.TopQueries)
	}
	if len(stats.ZeroFragmentQueries) != 1 || stats.ZeroFragmentQueries[0].Query != "what should i watch" {
		t.Errorf("unexpected zero-fragment queries: %v", stats.ZeroFragmentQueries)
	}
}

func TestAggregatorFragmentKindCounts(t *testing.T) {
	agg := NewAggregator(nil)
	handle := HandleEvent(agg)

	ev := CompileEvent{
		Type:          EventCompile,
		Text:          "action movies on netflix",
		FragmentCount: 3,
		FragmentKinds: []string{"genre", "content_type", "provider"},
		Timestamp:     time.Now(),
	}
	data, _ := json.Marshal(ev)
	if err := handle(context.Background(), nil, data); err != nil {
		t.Fatalf("handle: %v", err)
	}

	stats := agg.Stats()
	if len(stats.FragmentKindCounts) != 3 {
		t.Fatalf("expected 3 kind counts, got %v", stats.FragmentKindCounts)
	}
}

func TestAggregatorSearchEvents(t *testing.T) {
	agg := NewAggregator(nil)
	handle := HandleEvent(agg)

	ev := SearchEvent{Type: EventSearch, TotalHits: 12, Returned: 10, Timestamp: time.Now()}
	data, _ := json.Marshal(ev)
	if err := handle(context.Background(), nil, data); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if got := agg.Stats().TotalSearches; got != 1 {
		t.Errorf("TotalSearches = %d, want 1", got)
	}
}

func TestAggregatorSkipsUndecodableEvents(t *testing.T) {
	agg := NewAggregator(nil)
	handle := HandleEvent(agg)

	if err := handle(context.Background(), nil, []byte("not json")); err != nil {
		t.Errorf("undecodable events must not error (no redelivery), got %v", err)
	}
	if got := agg.Stats().TotalCompiles; got != 0 {
		t.Errorf("TotalCompiles = %d, want 0", got)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(sorted, 50); got != 6 {
		t.Errorf("p50 = %d, want 6", got)
	}
	if got := percentile(sorted, 99); got != 10 {
		t.Errorf("p99 = %d, want 10", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("empty percentile = %d, want 0", got)
	}
}
