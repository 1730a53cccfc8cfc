package filterstate

import (
	"reflect"
	"testing"

	"github.com/kavyarao/streamfilter/internal/query/reducer"
)

func strPtr(s string) *string { return &s }

func TestMergeScalarsWin(t *testing.T) {
	state := State{ContentType: "tv", Region: "US"}
	patch := reducer.FilterPatch{
		ContentType: strPtr("movie"),
		Region:      strPtr("GB"),
	}
	merged := Merge(state, patch)
	if merged.ContentType != "movie" {
		t.Errorf("content type = %q, want movie", merged.ContentType)
	}
	if merged.Region != "GB" {
		t.Errorf("region = %q, want GB", merged.Region)
	}
}

func TestMergeAbsentPatchFieldsKeepState(t *testing.T) {
	state := State{
		ContentType: "tv",
		Rating:      &reducer.RatingRange{},
		GenreIDs:    []int{18},
	}
	merged := Merge(state, reducer.FilterPatch{})
	if merged.ContentType != "tv" {
		t.Errorf("content type = %q, want tv", merged.ContentType)
	}
	if merged.Rating == nil {
		t.Error("rating dropped by empty patch")
	}
	if !reflect.DeepEqual(merged.GenreIDs, []int{18}) {
		t.Errorf("genre ids = %v, want [18]", merged.GenreIDs)
	}
}

func TestMergeListsUnion(t *testing.T) {
	state := State{GenreIDs: []int{18, 28}, ProviderIDs: []int{8}}
	patch := reducer.FilterPatch{
		GenreIDs:    []int{28, 35},
		ProviderIDs: []int{8, 15},
	}
	merged := Merge(state, patch)
	if !reflect.DeepEqual(merged.GenreIDs, []int{18, 28, 35}) {
		t.Errorf("genre ids = %v, want [18 28 35]", merged.GenreIDs)
	}
	if !reflect.DeepEqual(merged.ProviderIDs, []int{8, 15}) {
		t.Errorf("provider ids = %v, want [8 15]", merged.ProviderIDs)
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	state := State{GenreIDs: []int{18}}
	patch := reducer.FilterPatch{GenreIDs: []int{35}}
	_ = Merge(state, patch)
	if !reflect.DeepEqual(state.GenreIDs, []int{18}) {
		t.Errorf("input state mutated: %v", state.GenreIDs)
	}
}

func TestMergeDateRangeReplacedWholesale(t *testing.T) {
	state := State{MovieReleaseDate: &reducer.DateRange{Start: "2000", End: "2005"}}
	patch := reducer.FilterPatch{MovieReleaseDate: &reducer.DateRange{Start: "2015"}}
	merged := Merge(state, patch)
	if got, want := *merged.MovieReleaseDate, (reducer.DateRange{Start: "2015"}); got != want {
		t.Errorf("range = %+v, want %+v", got, want)
	}
}
