// Package analytics tracks compile and search activity. Events flow
// through Kafka: the service publishes them via a buffered collector,
// and an in-process aggregator consumes the topic to answer the stats
// endpoint. Zero-fragment queries get special attention since they are
// the main signal that the pattern table is missing a phrasing users
// actually type.
package analytics

import "time"

type EventType string

const (
	EventCompile EventType = "compile"
	EventSearch  EventType = "search"
)

// CompileEvent records one query compilation.
type CompileEvent struct {
	Type          EventType `json:"type"`
	Text          string    `json:"text"`
	ContentType   string    `json:"content_type,omitempty"`
	FragmentCount int       `json:"fragment_count"`
	FragmentKinds []string  `json:"fragment_kinds,omitempty"`
	ZeroFragments bool      `json:"zero_fragments"`
	CacheHit      bool      `json:"cache_hit"`
	LatencyMs     int64     `json:"latency_ms"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id"`
}

// SearchEvent records one catalog search.
type SearchEvent struct {
	Type      EventType `json:"type"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}
