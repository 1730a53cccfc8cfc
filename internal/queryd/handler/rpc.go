package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kavyarao/streamfilter/internal/query/filterstate"
	"github.com/kavyarao/streamfilter/internal/query/reducer"
	"github.com/kavyarao/streamfilter/pkg/proto"
	"github.com/kavyarao/streamfilter/pkg/rpc"
)

// RegisterRPC exposes the compiler over the internal RPC server, for
// sidecar processes that want compilation without the HTTP edge.
func (h *Handler) RegisterRPC(s *rpc.Server) {
	s.Register("Query.Compile", h.rpcCompile)
	s.Register("Query.Reduce", h.rpcReduce)
	s.Register("Query.Apply", h.rpcApply)
}

func (h *Handler) rpcCompile(ctx context.Context, params json.RawMessage) (any, error) {
	var req proto.CompileRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("decoding compile request: %w", err)
	}
	if req.Text == "" {
		return nil, fmt.Errorf("text is required")
	}
	if h.maxTextLen > 0 && len(req.Text) > h.maxTextLen {
		return nil, fmt.Errorf("text exceeds %d bytes", h.maxTextLen)
	}

	entry, _ := h.compile(ctx, req.Text, req.ContentType)
	return &proto.CompileResponse{
		Fragments: entry.Fragments,
		Patch:     entry.Patch,
	}, nil
}

func (h *Handler) rpcReduce(ctx context.Context, params json.RawMessage) (any, error) {
	var req proto.ReduceRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("decoding reduce request: %w", err)
	}
	return &proto.ReduceResponse{
		Patch: reducer.Reduce(req.Fragments, reducer.ContentType(req.ContentType)),
	}, nil
}

func (h *Handler) rpcApply(ctx context.Context, params json.RawMessage) (any, error) {
	var req proto.ApplyRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("decoding apply request: %w", err)
	}
	var patch reducer.FilterPatch
	if req.Patch != nil {
		patch = *req.Patch
	} else {
		patch = reducer.Reduce(req.Fragments, reducer.ContentType(req.ContentType))
	}
	return &proto.ApplyResponse{
		Patch: patch,
		State: filterstate.Merge(req.State, patch),
	}, nil
}
