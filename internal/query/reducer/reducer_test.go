package reducer

import (
	"reflect"
	"testing"

	"github.com/kavyarao/streamfilter/internal/query/fragment"
)

func yearFragment(kind fragment.Kind, start, end string) fragment.Fragment {
	return fragment.Fragment{ID: "t", Kind: kind, Value: fragment.YearSpan{Start: start, End: end}, Removable: true}
}

func TestReduceYearBoundsMergeIndependently(t *testing.T) {
	frags := []fragment.Fragment{
		yearFragment(fragment.KindYearFrom, "2015", ""),
		yearFragment(fragment.KindYearTo, "", "2020"),
	}

	patch := Reduce(frags, ContentMovie)
	if patch.MovieReleaseDate == nil {
		t.Fatal("movie release-date range not set")
	}
	if got, want := *patch.MovieReleaseDate, (DateRange{Start: "2015", End: "2020"}); got != want {
		t.Errorf("movie range = %+v, want %+v", got, want)
	}
	if patch.TVFirstAirDate != nil {
		t.Errorf("tv range should be absent, got %+v", patch.TVFirstAirDate)
	}

	patch = Reduce(frags, ContentTV)
	if patch.TVFirstAirDate == nil {
		t.Fatal("tv first-air-date range not set")
	}
	if got, want := *patch.TVFirstAirDate, (DateRange{Start: "2015", End: "2020"}); got != want {
		t.Errorf("tv range = %+v, want %+v", got, want)
	}
	if patch.MovieReleaseDate != nil {
		t.Errorf("movie range should be absent, got %+v", patch.MovieReleaseDate)
	}
}

func TestReduceLastWriteWinsWithinPass(t *testing.T) {
	frags := []fragment.Fragment{
		yearFragment(fragment.KindYearFrom, "2010", ""),
		yearFragment(fragment.KindYearFrom, "2015", ""),
		yearFragment(fragment.KindYearExact, "2018", "2018"),
	}
	patch := Reduce(frags, ContentMovie)
	if got, want := *patch.MovieReleaseDate, (DateRange{Start: "2018", End: "2018"}); got != want {
		t.Errorf("range = %+v, want %+v", got, want)
	}
}

func TestReduceGenreDeduplication(t *testing.T) {
	frags := []fragment.Fragment{
		{Kind: fragment.KindGenre, Value: fragment.ID(28)},
		{Kind: fragment.KindGenre, Value: fragment.ID(28)},
		{Kind: fragment.KindGenre, Value: fragment.ID(35)},
	}
	patch := Reduce(frags, ContentMovie)
	if !reflect.DeepEqual(patch.GenreIDs, []int{28, 35}) {
		t.Errorf("genre ids = %v, want [28 35]", patch.GenreIDs)
	}
}

func TestReduceProviderDeduplication(t *testing.T) {
	frags := []fragment.Fragment{
		{Kind: fragment.KindProvider, Value: fragment.ID(8)},
		{Kind: fragment.KindProvider, Value: fragment.ID(8)},
	}
	patch := Reduce(frags, ContentMovie)
	if !reflect.DeepEqual(patch.ProviderIDs, []int{8}) {
		t.Errorf("provider ids = %v, want [8]", patch.ProviderIDs)
	}
}

func TestReduceContentTypeOverwrites(t *testing.T) {
	frags := []fragment.Fragment{
		{Kind: fragment.KindContentType, Value: fragment.Text("movie")},
		{Kind: fragment.KindContentType, Value: fragment.Text("tv")},
	}
	patch := Reduce(frags, ContentMovie)
	if patch.ContentType == nil || *patch.ContentType != "tv" {
		t.Errorf("content type = %v, want tv", patch.ContentType)
	}
}

func TestReduceRatingBoundsMerge(t *testing.T) {
	min, max := 6.0, 8.0
	frags := []fragment.Fragment{
		{Kind: fragment.KindRatingMin, Value: fragment.RatingBounds{Min: &min}},
		{Kind: fragment.KindRatingMax, Value: fragment.RatingBounds{Max: &max}},
	}
	patch := Reduce(frags, ContentMovie)
	if patch.Rating == nil {
		t.Fatal("rating range not set")
	}
	if patch.Rating.Min == nil || *patch.Rating.Min != 6 {
		t.Errorf("rating min = %v, want 6", patch.Rating.Min)
	}
	if patch.Rating.Max == nil || *patch.Rating.Max != 8 {
		t.Errorf("rating max = %v, want 8", patch.Rating.Max)
	}
}

func TestReduceCountryOverwritesRegion(t *testing.T) {
	frags := []fragment.Fragment{
		{Kind: fragment.KindCountry, Value: fragment.Text("US")},
		{Kind: fragment.KindCountry, Value: fragment.Text("GB")},
	}
	patch := Reduce(frags, ContentMovie)
	if patch.Region == nil || *patch.Region != "GB" {
		t.Errorf("region = %v, want GB", patch.Region)
	}
}

func TestReduceDeterministic(t *testing.T) {
	min := 7.0
	frags := []fragment.Fragment{
		{Kind: fragment.KindContentType, Value: fragment.Text("movie")},
		yearFragment(fragment.KindYearRange, "2010", "2019"),
		{Kind: fragment.KindRatingMin, Value: fragment.RatingBounds{Min: &min}},
		{Kind: fragment.KindProvider, Value: fragment.ID(8)},
	}
	a := Reduce(frags, ContentMovie)
	b := Reduce(frags, ContentMovie)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("reduce is not deterministic: %+v vs %+v", a, b)
	}
}

func TestReduceEmptyFragments(t *testing.T) {
	patch := Reduce(nil, ContentMovie)
	if !reflect.DeepEqual(patch, FilterPatch{}) {
		t.Errorf("expected empty patch, got %+v", patch)
	}
}
