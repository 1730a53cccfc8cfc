package catalog

import (
	"strings"
	"testing"

	"github.com/kavyarao/streamfilter/internal/query/filterstate"
	"github.com/kavyarao/streamfilter/internal/query/reducer"
)

func f64(v float64) *float64 { return &v }

func TestBuildSearchQueryEmpty(t *testing.T) {
	query, countQuery, args := buildSearchQuery(filterstate.State{}, 20, 0)

	if strings.Contains(query, "WHERE") {
		t.Errorf("empty state should produce no WHERE clause, got %q", query)
	}
	if countQuery != "SELECT COUNT(*) FROM titles" {
		t.Errorf("unexpected count query %q", countQuery)
	}
	if len(args) != 2 {
		t.Fatalf("expected only limit and offset args, got %v", args)
	}
	if args[0] != 20 || args[1] != 0 {
		t.Errorf("expected limit 20 offset 0, got %v", args)
	}
}

func TestBuildSearchQueryFullState(t *testing.T) {
	state := filterstate.State{
		ContentType:      "movie",
		MovieReleaseDate: &reducer.DateRange{Start: "2010", End: "2019"},
		Rating:           &reducer.RatingRange{Min: f64(7)},
		GenreIDs:         []int{28, 878},
		ProviderIDs:      []int{8},
		Region:           "US",
	}

	query, countQuery, args := buildSearchQuery(state, 10, 20)

	for _, want := range []string{
		"content_type = $1",
		"release_date >= $2",
		"release_date <= $3",
		"rating >= $4",
		"genre_ids && $5",
		"provider_ids && $6",
		"$7 = ANY(regions)",
		"LIMIT $8 OFFSET $9",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q:\n%s", want, query)
		}
	}
	if strings.Contains(countQuery, "LIMIT") {
		t.Errorf("count query must not page: %q", countQuery)
	}
	if len(args) != 9 {
		t.Fatalf("expected 9 args, got %d: %v", len(args), args)
	}
	if args[1] != "2010-01-01" || args[2] != "2019-12-31" {
		t.Errorf("year bounds should expand to full dates, got %v %v", args[1], args[2])
	}
}

func TestBuildSearchQueryDateRangeFollowsContentType(t *testing.T) {
	state := filterstate.State{
		ContentType:      "tv",
		MovieReleaseDate: &reducer.DateRange{Start: "1990"},
		TVFirstAirDate:   &reducer.DateRange{Start: "2015"},
	}

	_, _, args := buildSearchQuery(state, 20, 0)

	found := false
	for _, a := range args {
		if a == "2015-01-01" {
			found = true
		}
		if a == "1990-01-01" {
			t.Error("tv state must not use the movie date range")
		}
	}
	if !found {
		t.Error("tv first-air-date start not applied")
	}
}

func TestBuildSearchQueryMovieRangePreferredWithoutContentType(t *testing.T) {
	state := filterstate.State{
		MovieReleaseDate: &reducer.DateRange{End: "2000"},
	}

	query, _, args := buildSearchQuery(state, 20, 0)

	if !strings.Contains(query, "release_date <= $1") {
		t.Errorf("expected release_date upper bound, got %q", query)
	}
	if args[0] != "2000-12-31" {
		t.Errorf("expected 2000-12-31, got %v", args[0])
	}
}

func TestBuildSearchQueryPartialRating(t *testing.T) {
	state := filterstate.State{
		Rating: &reducer.RatingRange{Max: f64(6)},
	}

	query, _, args := buildSearchQuery(state, 20, 0)

	if strings.Contains(query, "rating >=") {
		t.Errorf("min bound should be absent, got %q", query)
	}
	if !strings.Contains(query, "rating <= $1") {
		t.Errorf("expected max bound, got %q", query)
	}
	if args[0] != 6.0 {
		t.Errorf("expected 6.0, got %v", args[0])
	}
}
