// Package proto defines the request and response message types shared
// by the RPC server in queryd and its internal clients.
package proto

import (
	"github.com/kavyarao/streamfilter/internal/query/filterstate"
	"github.com/kavyarao/streamfilter/internal/query/fragment"
	"github.com/kavyarao/streamfilter/internal/query/reducer"
)

// CompileRequest asks the compiler to turn free text into fragments.
// ContentType carries the caller's current filter context and steers
// which date-range field year fragments will target on reduce.
type CompileRequest struct {
	Text        string `json:"text"`
	ContentType string `json:"content_type,omitempty"`
}

// CompileResponse carries the compiled fragments and the folded patch.
type CompileResponse struct {
	Fragments []fragment.Fragment `json:"fragments"`
	Patch     reducer.FilterPatch `json:"patch"`
}

// ReduceRequest folds an explicit fragment list, typically one the
// caller has edited by removing chips, against a content type context.
type ReduceRequest struct {
	Fragments   []fragment.Fragment `json:"fragments"`
	ContentType string              `json:"content_type,omitempty"`
}

// ReduceResponse carries the folded patch.
type ReduceResponse struct {
	Patch reducer.FilterPatch `json:"patch"`
}

// ApplyRequest merges new criteria into an existing filter state.
// Callers either send an explicit Patch, or the fragment list left
// after chip removal, which is re-reduced under ContentType before
// merging.
type ApplyRequest struct {
	State       filterstate.State    `json:"state"`
	Patch       *reducer.FilterPatch `json:"patch,omitempty"`
	Fragments   []fragment.Fragment  `json:"fragments,omitempty"`
	ContentType string               `json:"content_type,omitempty"`
}

// ApplyResponse carries the applied patch and the merged state.
type ApplyResponse struct {
	Patch reducer.FilterPatch `json:"patch"`
	State filterstate.State   `json:"state"`
}
