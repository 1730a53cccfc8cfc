package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Handler exposes the aggregator's current view over HTTP. Stats are
// computed on demand from whatever the consumer has processed so far.
type Handler struct {
	agg *Aggregator
}

func NewHandler(agg *Aggregator) *Handler {
	return &Handler{agg: agg}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.agg.Stats()); err != nil {
		slog.Error("failed to write analytics response", "error", err)
	}
}
