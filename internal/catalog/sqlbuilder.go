package catalog

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/kavyarao/streamfilter/internal/query/filterstate"
	"github.com/kavyarao/streamfilter/internal/query/reducer"
)

const titleColumns = "id, name, content_type, release_date, rating, genre_ids, provider_ids, regions"

// buildSearchQuery turns a filter state into a parameterized SELECT over
// the titles table. It returns the page query, the matching COUNT query,
// and the arguments; the final two arguments are limit and offset, which
// the count query omits.
//
// The date range matching the state's content type constrains
// release_date. Genre and provider lists use int-array overlap, so a
// title matches if it carries any of the requested ids.
func buildSearchQuery(state filterstate.State, limit, offset int) (query, countQuery string, args []any) {
	var conds []string
	args = make([]any, 0, 8)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if state.ContentType != "" {
		conds = append(conds, "content_type = "+arg(state.ContentType))
	}
	if r := activeDateRange(state); r != nil {
		if r.Start != "" {
			conds = append(conds, "release_date >= "+arg(r.Start+"-01-01"))
		}
		if r.End != "" {
			conds = append(conds, "release_date <= "+arg(r.End+"-12-31"))
		}
	}
	if state.Rating != nil {
		if state.Rating.Min != nil {
			conds = append(conds, "rating >= "+arg(*state.Rating.Min))
		}
		if state.Rating.Max != nil {
			conds = append(conds, "rating <= "+arg(*state.Rating.Max))
		}
	}
	if len(state.GenreIDs) > 0 {
		conds = append(conds, "genre_ids && "+arg(pq.Array(toInt64(state.GenreIDs))))
	}
	if len(state.ProviderIDs) > 0 {
		conds = append(conds, "provider_ids && "+arg(pq.Array(toInt64(state.ProviderIDs))))
	}
	if state.Region != "" {
		conds = append(conds, arg(state.Region)+" = ANY(regions)")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	countQuery = "SELECT COUNT(*) FROM titles" + where
	query = fmt.Sprintf(
		"SELECT %s FROM titles%s ORDER BY rating DESC, id LIMIT %s OFFSET %s",
		titleColumns, where, arg(limit), arg(offset),
	)
	return query, countQuery, args
}

// activeDateRange picks the date range relevant to the state's content
// type. Without a content type, a movie range takes precedence over a
// TV range since both constrain the same release_date column.
func activeDateRange(state filterstate.State) *reducer.DateRange {
	switch reducer.ContentType(state.ContentType) {
	case reducer.ContentMovie:
		return state.MovieReleaseDate
	case reducer.ContentTV:
		return state.TVFirstAirDate
	}
	if state.MovieReleaseDate != nil {
		return state.MovieReleaseDate
	}
	return state.TVFirstAirDate
}

func toInt64(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
