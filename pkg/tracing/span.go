// Package tracing implements in-process span trees carried through
// context.Context and emitted as structured slog records. It gives the
// compile and search paths per-stage timing without an external
// trace backend.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed stage of a request. Spans nest: children are
// attached to the span found in the context at creation time.
type Span struct {
	Name    string
	TraceID string

	start    time.Time
	end      time.Time
	err      error
	children []*Span
	attrs    []any
	mu       sync.Mutex
}

// Start opens a root span identified by traceID (normally the request
// id) and returns a context carrying it.
func Start(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{Name: name, TraceID: traceID, start: time.Now()}
	return context.WithValue(ctx, contextKey{}, s), s
}

// Child opens a span nested under the one in ctx. Without a parent in
// ctx the child behaves as a detached root with an empty trace id.
func Child(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{Name: name, start: time.Now()}
	if parent, ok := ctx.Value(contextKey{}).(*Span); ok && parent != nil {
		s.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, s), s
}

// FromContext returns the span carried by ctx, or nil.
func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

// SetAttr attaches a key-value pair emitted with the span record.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// SetError marks the span failed. The error is logged with the record.
func (s *Span) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// End closes the span and stamps its duration.
func (s *Span) End() {
	s.end = time.Now()
}

// Duration reports the elapsed time of a closed span, or time since
// start for one still open.
func (s *Span) Duration() time.Duration {
	if s.end.IsZero() {
		return time.Since(s.start)
	}
	return s.end.Sub(s.start)
}

// Emit logs the span and its descendants, one record per span, with a
// depth field indicating nesting.
func (s *Span) Emit() {
	s.emit(0)
}

func (s *Span) emit(depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration().Milliseconds(),
		"depth", depth,
	}
	attrs = append(attrs, s.attrs...)
	failed := s.err != nil
	if failed {
		attrs = append(attrs, "error", s.err)
	}
	children := s.children
	s.mu.Unlock()

	if failed {
		slog.Warn("span", attrs...)
	} else {
		slog.Info("span", attrs...)
	}
	for _, c := range children {
		c.emit(depth + 1)
	}
}
