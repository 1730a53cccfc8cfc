package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Timeout bounds each request with a deadline and answers 504 when the
// handler has not produced any output in time. Once either side starts
// writing, the other side's output is suppressed.
func Timeout(limit time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()

			gw := &guardedWriter{ResponseWriter: w}
			finished := make(chan struct{})
			go func() {
				defer close(finished)
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-finished:
			case <-ctx.Done():
				if gw.own(ownerTimeout) {
					slog.Warn("request timed out",
						"method", r.Method,
						"path", r.URL.Path,
						"limit", limit,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					w.Write([]byte(`{"error":"request timeout"}`))
				}
			}
		})
	}
}

const (
	ownerNone int32 = iota
	ownerHandler
	ownerTimeout
)

// guardedWriter lets exactly one writer win the response: the wrapped
// handler or the timeout reply. Writes from the loser are discarded.
type guardedWriter struct {
	http.ResponseWriter
	owner atomic.Int32
}

// own claims the response for who, or reports false if the other side
// already owns it.
func (g *guardedWriter) own(who int32) bool {
	return g.owner.CompareAndSwap(ownerNone, who) || g.owner.Load() == who
}

func (g *guardedWriter) WriteHeader(code int) {
	if g.own(ownerHandler) {
		g.ResponseWriter.WriteHeader(code)
	}
}

func (g *guardedWriter) Write(b []byte) (int, error) {
	if !g.own(ownerHandler) {
		return len(b), nil
	}
	return g.ResponseWriter.Write(b)
}
