// Package reducer folds an accepted fragment list into a canonical
// filter-state patch. The fold is pure: the same fragments and content-type
// context always produce the same patch, and a patch never contains
// conflicting values for one field (scalars are last-write-wins, lists are
// additive with duplicates removed).
package reducer

import (
	"github.com/kavyarao/streamfilter/internal/query/fragment"
)

// ContentType selects which date-range field year fragments target.
type ContentType string

const (
	ContentMovie ContentType = "movie"
	ContentTV    ContentType = "tv"
)

// DateRange is a partial year range; either bound may be empty.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// RatingRange is a partial numeric rating range.
type RatingRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// FilterPatch is a partial update destined to be merged into the caller's
// full filter-state record. Nil fields are absent from the patch.
type FilterPatch struct {
	ContentType      *string      `json:"content_type,omitempty"`
	MovieReleaseDate *DateRange   `json:"movie_release_date,omitempty"`
	TVFirstAirDate   *DateRange   `json:"tv_first_air_date,omitempty"`
	Rating           *RatingRange `json:"rating,omitempty"`
	ProviderIDs      []int        `json:"provider_ids,omitempty"`
	GenreIDs         []int        `json:"genre_ids,omitempty"`
	Region           *string      `json:"region,omitempty"`
}

// Reduce applies each fragment, in list order, to an accumulator patch.
// Year fragments target the movie release-date range or the TV first-air-date
// range depending on current, merging start and end independently; later
// fragments of the same sub-key overwrite earlier ones within the pass.
func Reduce(fragments []fragment.Fragment, current ContentType) FilterPatch {
	var patch FilterPatch
	for _, f := range fragments {
		switch f.Kind {
		case fragment.KindContentType:
			if v, ok := f.Value.(fragment.Text); ok {
				s := string(v)
				patch.ContentType = &s
			}
		case fragment.KindYearFrom, fragment.KindYearTo, fragment.KindYearExact, fragment.KindYearRange:
			if v, ok := f.Value.(fragment.YearSpan); ok {
				mergeDateRange(dateRangeFor(&patch, current), v)
			}
		case fragment.KindRatingMin, fragment.KindRatingFloor, fragment.KindRatingMax, fragment.KindRatingRange:
			if v, ok := f.Value.(fragment.RatingBounds); ok {
				mergeRating(&patch, v)
			}
		case fragment.KindProvider:
			if v, ok := f.Value.(fragment.ID); ok {
				patch.ProviderIDs = appendUnique(patch.ProviderIDs, int(v))
			}
		case fragment.KindGenre:
			if v, ok := f.Value.(fragment.ID); ok {
				patch.GenreIDs = appendUnique(patch.GenreIDs, int(v))
			}
		case fragment.KindCountry:
			if v, ok := f.Value.(fragment.Text); ok {
				s := string(v)
				patch.Region = &s
			}
		}
	}
	return patch
}

// dateRangeFor returns the patch's date-range field for the given content
// type, allocating it on first use.
func dateRangeFor(patch *FilterPatch, current ContentType) *DateRange {
	if current == ContentTV {
		if patch.TVFirstAirDate == nil {
			patch.TVFirstAirDate = &DateRange{}
		}
		return patch.TVFirstAirDate
	}
	if patch.MovieReleaseDate == nil {
		patch.MovieReleaseDate = &DateRange{}
	}
	return patch.MovieReleaseDate
}

func mergeDateRange(dst *DateRange, span fragment.YearSpan) {
	if span.Start != "" {
		dst.Start = span.Start
	}
	if span.End != "" {
		dst.End = span.End
	}
}

func mergeRating(patch *FilterPatch, bounds fragment.RatingBounds) {
	if patch.Rating == nil {
		patch.Rating = &RatingRange{}
	}
	if bounds.Min != nil {
		v := *bounds.Min
		patch.Rating.Min = &v
	}
	if bounds.Max != nil {
		v := *bounds.Max
		patch.Rating.Max = &v
	}
}

func appendUnique(list []int, id int) []int {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}
