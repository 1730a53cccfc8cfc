package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kavyarao/streamfilter/internal/catalog"
	"github.com/kavyarao/streamfilter/internal/query/filterstate"
	"github.com/kavyarao/streamfilter/internal/query/pattern"
	"github.com/kavyarao/streamfilter/pkg/proto"
)

type staticTable struct{ t *pattern.Table }

func (s staticTable) Table() *pattern.Table { return s.t }

type fakeSearcher struct {
	lastState filterstate.State
	result    *catalog.SearchResult
	err       error
}

func (f *fakeSearcher) Search(ctx context.Context, state filterstate.State, limit, offset int) (*catalog.SearchResult, error) {
	f.lastState = state
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestHandler(searcher CatalogSearcher) *Handler {
	return New(staticTable{pattern.Default()}, searcher, nil, nil, nil, 512, 20, 100)
}

func postCompile(t *testing.T, h *Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query/compile", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	h.Compile(rec, req)
	return rec
}

func TestCompileEndpoint(t *testing.T) {
	h := newTestHandler(nil)

	rec := postCompile(t, h, proto.CompileRequest{Text: "action movies on netflix"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp proto.CompileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Fragments) != 3 {
		t.Fatalf("expected 3 fragments, got %d: %+v", len(resp.Fragments), resp.Fragments)
	}
	if resp.Patch.ContentType == nil || *resp.Patch.ContentType != "movie" {
		t.Errorf("patch content type = %v, want movie", resp.Patch.ContentType)
	}
	if len(resp.Patch.GenreIDs) != 1 || resp.Patch.GenreIDs[0] != 28 {
		t.Errorf("patch genre ids = %v, want [28]", resp.Patch.GenreIDs)
	}
	if len(resp.Patch.ProviderIDs) != 1 || resp.Patch.ProviderIDs[0] != 8 {
		t.Errorf("patch provider ids = %v, want [8]", resp.Patch.ProviderIDs)
	}
}

func TestCompileEndpointNoiseYieldsEmpty(t *testing.T) {
	h := newTestHandler(nil)

	rec := postCompile(t, h, proto.CompileRequest{Text: "something to watch tonight please"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (compilation never fails)", rec.Code)
	}

	var resp proto.CompileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Fragments) != 0 {
		t.Errorf("expected zero fragments, got %+v", resp.Fragments)
	}
}

func TestCompileEndpointValidation(t *testing.T) {
	h := newTestHandler(nil)

	rec := postCompile(t, h, proto.CompileRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty text: status = %d, want 400", rec.Code)
	}

	rec = postCompile(t, h, proto.CompileRequest{Text: strings.Repeat("x", 600)})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized text: status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query/compile", strings.NewReader("{not json"))
	rec2 := httptest.NewRecorder()
	h.Compile(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", rec2.Code)
	}
}

func TestApplyEndpointReducesFragments(t *testing.T) {
	h := newTestHandler(nil)

	// Compile first, then apply the fragments to an existing state.
	rec := postCompile(t, h, proto.CompileRequest{Text: "comedies since 2015"})
	var compiled proto.CompileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &compiled); err != nil {
		t.Fatalf("decode compile response: %v", err)
	}

	applyReq := proto.ApplyRequest{
		State:     filterstate.State{ContentType: "movie", GenreIDs: []int{18}},
		Fragments: compiled.Fragments,
	}
	data, _ := json.Marshal(applyReq)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query/apply", bytes.NewReader(data))
	rec2 := httptest.NewRecorder()
	h.Apply(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec2.Code)
	}

	var resp proto.ApplyResponse
	if err := json.Unmarshal(rec2.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode apply response: %v", err)
	}
	if len(resp.State.GenreIDs) != 2 {
		t.Errorf("genre lists should union, got %v", resp.State.GenreIDs)
	}
	if resp.State.MovieReleaseDate == nil || resp.State.MovieReleaseDate.Start != "2015" {
		t.Errorf("unexpected movie release date: %+v", resp.State.MovieReleaseDate)
	}
}

func TestSearchEndpoint(t *testing.T) {
	searcher := &fakeSearcher{result: &catalog.SearchResult{
		Titles: []catalog.Title{{ID: 1, Name: "Example", ContentType: "movie", Rating: 7.5}},
		Total:  1,
	}}
	h := newTestHandler(searcher)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=action+movies+rated+above+7", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if searcher.lastState.ContentType != "movie" {
		t.Errorf("search state content type = %q, want movie", searcher.lastState.ContentType)
	}
	if searcher.lastState.Rating == nil || searcher.lastState.Rating.Min == nil || *searcher.lastState.Rating.Min != 7 {
		t.Errorf("search state rating = %+v, want min 7", searcher.lastState.Rating)
	}

	var resp struct {
		Total  int               `json:"total"`
		Titles []catalog.Title   `json:"titles"`
		State  filterstate.State `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || len(resp.Titles) != 1 {
		t.Errorf("unexpected result payload: %+v", resp)
	}
}

func TestSearchEndpointRequiresQuery(t *testing.T) {
	h := newTestHandler(&fakeSearcher{result: &catalog.SearchResult{}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearchEndpointWithoutCatalog(t *testing.T) {
	h := newTestHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=movies", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestSearchEndpointCircuitBreaker(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("connection refused")}
	h := newTestHandler(searcher)

	// Trip the breaker with repeated failures.
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=movies", nil)
		h.Search(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=movies", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 once breaker is open", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "temporarily unavailable") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	h := newTestHandler(nil)

	rec := httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "disabled") {
		t.Errorf("stats without cache: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("invalidate without cache: status = %d, want 503", rec.Code)
	}
}

func TestRPCCompile(t *testing.T) {
	h := newTestHandler(nil)

	params, _ := json.Marshal(proto.CompileRequest{Text: "movies 2010-2019"})
	result, err := h.rpcCompile(context.Background(), params)
	if err != nil {
		t.Fatalf("rpcCompile: %v", err)
	}
	resp, ok := result.(*proto.CompileResponse)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}
	if len(resp.Fragments) != 2 {
		t.Errorf("expected 2 fragments, got %+v", resp.Fragments)
	}

	if _, err := h.rpcCompile(context.Background(), []byte(`{"text":""}`)); err == nil {
		t.Error("empty text should error over RPC")
	}
}
