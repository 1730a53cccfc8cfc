// Package filterstate holds the caller-owned filter-state record and the
// shallow merge that applies a reducer patch to it: patch values win for
// scalars, patch lists are unioned into existing lists.
package filterstate

import (
	"github.com/kavyarao/streamfilter/internal/query/reducer"
)

// State is the full filter-state record reflected by the editing surface.
type State struct {
	ContentType      string               `json:"content_type,omitempty"`
	MovieReleaseDate *reducer.DateRange   `json:"movie_release_date,omitempty"`
	TVFirstAirDate   *reducer.DateRange   `json:"tv_first_air_date,omitempty"`
	Rating           *reducer.RatingRange `json:"rating,omitempty"`
	ProviderIDs      []int                `json:"provider_ids,omitempty"`
	GenreIDs         []int                `json:"genre_ids,omitempty"`
	Region           string               `json:"region,omitempty"`
}

// Merge applies patch to state and returns the result. state is not mutated.
func Merge(state State, patch reducer.FilterPatch) State {
	merged := state
	merged.ProviderIDs = append([]int(nil), state.ProviderIDs...)
	merged.GenreIDs = append([]int(nil), state.GenreIDs...)

	if patch.ContentType != nil {
		merged.ContentType = *patch.ContentType
	}
	if patch.MovieReleaseDate != nil {
		r := *patch.MovieReleaseDate
		merged.MovieReleaseDate = &r
	}
	if patch.TVFirstAirDate != nil {
		r := *patch.TVFirstAirDate
		merged.TVFirstAirDate = &r
	}
	if patch.Rating != nil {
		r := *patch.Rating
		merged.Rating = &r
	}
	for _, id := range patch.ProviderIDs {
		merged.ProviderIDs = appendUnique(merged.ProviderIDs, id)
	}
	for _, id := range patch.GenreIDs {
		merged.GenreIDs = appendUnique(merged.GenreIDs, id)
	}
	if patch.Region != nil {
		merged.Region = *patch.Region
	}
	return merged
}

func appendUnique(list []int, id int) []int {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}
