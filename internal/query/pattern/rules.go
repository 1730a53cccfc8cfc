package pattern

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kavyarao/streamfilter/internal/query/fragment"
)

// Provider pairs a catalog provider id with its canonical display name.
type Provider struct {
	ID   int
	Name string
}

// Lookups holds the enumeration tables that back the extractors: case-folded
// genre names to genre ids, provider aliases to providers, and country names
// to ISO-3166 region codes. They are normally loaded from the catalog store
// at startup; DefaultLookups supplies the compiled-in fallback.
type Lookups struct {
	Genres    map[string]int
	Providers map[string]Provider
	Countries map[string]string
}

// DefaultLookups returns the compiled-in enumeration tables.
func DefaultLookups() Lookups {
	return Lookups{
		Genres: map[string]int{
			"action": 28, "adventure": 12, "animation": 16, "animated": 16,
			"anime": 16, "comedy": 35, "comedies": 35, "crime": 80,
			"documentary": 99, "documentaries": 99, "drama": 18, "dramas": 18,
			"family": 10751, "fantasy": 14, "history": 36, "historical": 36,
			"horror": 27, "music": 10402, "musical": 10402, "mystery": 9648,
			"romance": 10749, "romantic": 10749, "rom-com": 10749, "romcom": 10749,
			"sci-fi": 878, "scifi": 878, "science fiction": 878,
			"thriller": 53, "thrillers": 53, "war": 10752,
			"western": 37, "westerns": 37,
		},
		Providers: map[string]Provider{
			"netflix":            {ID: 8, Name: "Netflix"},
			"amazon prime video": {ID: 9, Name: "Amazon Prime Video"},
			"amazon prime":       {ID: 9, Name: "Amazon Prime Video"},
			"prime video":        {ID: 9, Name: "Amazon Prime Video"},
			"amazon":             {ID: 9, Name: "Amazon Prime Video"},
			"prime":              {ID: 9, Name: "Amazon Prime Video"},
			"disney plus":        {ID: 337, Name: "Disney Plus"},
			"disney+":            {ID: 337, Name: "Disney Plus"},
			"disney":             {ID: 337, Name: "Disney Plus"},
			"hulu":               {ID: 15, Name: "Hulu"},
			"hbo max":            {ID: 384, Name: "HBO Max"},
			"hbo":                {ID: 384, Name: "HBO Max"},
			"max":                {ID: 384, Name: "HBO Max"},
			"apple tv plus":      {ID: 350, Name: "Apple TV Plus"},
			"apple tv+":          {ID: 350, Name: "Apple TV Plus"},
			"apple tv":           {ID: 350, Name: "Apple TV Plus"},
			"paramount plus":     {ID: 531, Name: "Paramount Plus"},
			"paramount+":         {ID: 531, Name: "Paramount Plus"},
			"paramount":          {ID: 531, Name: "Paramount Plus"},
			"peacock":            {ID: 386, Name: "Peacock"},
		},
		Countries: map[string]string{
			"us": "US", "usa": "US", "united states": "US", "america": "US",
			"uk": "GB", "united kingdom": "GB", "britain": "GB", "great britain": "GB",
			"germany": "DE", "france": "FR", "japan": "JP",
			"korea": "KR", "south korea": "KR", "india": "IN",
			"canada": "CA", "spain": "ES", "italy": "IT",
			"mexico": "MX", "brazil": "BR", "australia": "AU",
		},
	}
}

// Default returns the process-wide table built from the compiled-in lookups.
// The default rule set is static, so construction cannot fail.
func Default() *Table {
	t, err := NewFromLookups(DefaultLookups())
	if err != nil {
		panic("pattern: default table: " + err.Error())
	}
	return t
}

const yearGroup = `((?:19|20)\d{2})`

// NewFromLookups builds the full rule table over the given enumeration
// tables. Table order encodes precedence: genre and content-type phrases
// claim their words first, then providers, then the year and rating shapes
// from most to least specific, with bare four-digit years and country
// phrases last so they never steal text from larger phrases.
func NewFromLookups(l Lookups) (*Table, error) {
	genreAlt := alternation(keysOf(l.Genres))
	providerAlt := alternation(keysOf(l.Providers))
	countryAlt := alternation(keysOf(l.Countries))

	rules := []Rule{
		{
			Kind:    fragment.KindGenre,
			Matcher: regexp.MustCompile(`(?i)\b(` + genreAlt + `)\b`),
			Extract: genreExtractor(l.Genres),
		},
		{
			Kind:    fragment.KindContentType,
			Matcher: regexp.MustCompile(`(?i)\b(?:movies?|films?|cinema)\b`),
			Static:  fragment.Text("movie"),
		},
		{
			Kind:    fragment.KindContentType,
			Matcher: regexp.MustCompile(`(?i)\b(?:tv shows?|tv series|shows?|series)\b`),
			Static:  fragment.Text("tv"),
		},
		{
			Kind:    fragment.KindProvider,
			Matcher: regexp.MustCompile(`(?i)\bon\s+(` + providerAlt + `)\b`),
			Extract: providerExtractor(l.Providers),
		},
		{
			Kind:    fragment.KindProvider,
			Matcher: regexp.MustCompile(`(?i)\b(` + providerAlt + `)\b`),
			Extract: providerExtractor(l.Providers),
		},
		{
			Kind:    fragment.KindYearRange,
			Matcher: regexp.MustCompile(`\b` + yearGroup + `\s*-\s*` + yearGroup + `\b`),
			Extract: yearRangeExtractor,
		},
		{
			Kind:    fragment.KindYearFrom,
			Matcher: regexp.MustCompile(`(?i)\b(?:since|after|from)\s+` + yearGroup + `\b`),
			Extract: yearEdgeExtractor(true),
		},
		{
			Kind:    fragment.KindYearTo,
			Matcher: regexp.MustCompile(`(?i)\b(?:until|before|till|up to)\s+` + yearGroup + `\b`),
			Extract: yearEdgeExtractor(false),
		},
		{
			Kind:    fragment.KindRatingRange,
			Matcher: regexp.MustCompile(`(?i)\brat(?:ed|ing)\s+(\d{1,2}(?:\.\d+)?)\s*-\s*(\d{1,2}(?:\.\d+)?)\b`),
			Extract: ratingRangeExtractor,
		},
		{
			Kind:    fragment.KindRatingMin,
			Matcher: regexp.MustCompile(`(?i)\brat(?:ed|ing)\s+(?:above|over|at least)\s+(\d{1,2}(?:\.\d+)?)\b`),
			Extract: ratingEdgeExtractor(true),
		},
		{
			Kind:    fragment.KindRatingMin,
			Matcher: regexp.MustCompile(`(?i)\brat(?:ed|ing)\s+(\d{1,2}(?:\.\d+)?)\s*\+`),
			Extract: ratingEdgeExtractor(true),
		},
		{
			Kind:    fragment.KindRatingMax,
			Matcher: regexp.MustCompile(`(?i)\brat(?:ed|ing)\s+(?:below|under|less than)\s+(\d{1,2}(?:\.\d+)?)\b`),
			Extract: ratingEdgeExtractor(false),
		},
		{
			Kind:    fragment.KindRatingFloor,
			Matcher: regexp.MustCompile(`\b(\d{1,2}(?:\.\d+)?)\s*\+`),
			Extract: ratingEdgeExtractor(true),
		},
		{
			Kind:    fragment.KindYearExact,
			Matcher: regexp.MustCompile(`\b` + yearGroup + `\b`),
			Extract: yearExactExtractor,
		},
		{
			Kind:    fragment.KindCountry,
			Matcher: regexp.MustCompile(`(?i)\b(?:in|from)\s+(?:the\s+)?(` + countryAlt + `)\b`),
			Extract: countryExtractor(l.Countries),
		},
	}
	return New(rules)
}

func genreExtractor(genres map[string]int) Extractor {
	return func(captures []string) (Extracted, bool) {
		if len(captures) < 2 {
			return Extracted{}, false
		}
		matched := captures[1]
		id, ok := genres[fold(matched)]
		if !ok {
			return Extracted{}, false
		}
		return Extracted{Value: fragment.ID(id), Display: matched}, true
	}
}

func providerExtractor(providers map[string]Provider) Extractor {
	return func(captures []string) (Extracted, bool) {
		if len(captures) < 2 {
			return Extracted{}, false
		}
		p, ok := providers[fold(captures[1])]
		if !ok {
			return Extracted{}, false
		}
		return Extracted{Value: fragment.ID(p.ID), Display: p.Name}, true
	}
}

func countryExtractor(countries map[string]string) Extractor {
	return func(captures []string) (Extracted, bool) {
		if len(captures) < 2 {
			return Extracted{}, false
		}
		code, ok := countries[fold(captures[1])]
		if !ok {
			return Extracted{}, false
		}
		return Extracted{Value: fragment.Text(code), Display: code}, true
	}
}

func yearRangeExtractor(captures []string) (Extracted, bool) {
	if len(captures) < 3 {
		return Extracted{}, false
	}
	start, end := captures[1], captures[2]
	if !validYear(start) || !validYear(end) {
		return Extracted{}, false
	}
	return Extracted{Value: fragment.YearSpan{Start: start, End: end}}, true
}

func yearEdgeExtractor(isStart bool) Extractor {
	return func(captures []string) (Extracted, bool) {
		if len(captures) < 2 || !validYear(captures[1]) {
			return Extracted{}, false
		}
		if isStart {
			return Extracted{Value: fragment.YearSpan{Start: captures[1]}}, true
		}
		return Extracted{Value: fragment.YearSpan{End: captures[1]}}, true
	}
}

func yearExactExtractor(captures []string) (Extracted, bool) {
	if len(captures) < 2 || !validYear(captures[1]) {
		return Extracted{}, false
	}
	return Extracted{Value: fragment.YearSpan{Start: captures[1], End: captures[1]}}, true
}

func ratingRangeExtractor(captures []string) (Extracted, bool) {
	if len(captures) < 3 {
		return Extracted{}, false
	}
	min, okMin := parseRating(captures[1])
	max, okMax := parseRating(captures[2])
	if !okMin || !okMax {
		return Extracted{}, false
	}
	return Extracted{Value: fragment.RatingBounds{Min: &min, Max: &max}}, true
}

func ratingEdgeExtractor(isMin bool) Extractor {
	return func(captures []string) (Extracted, bool) {
		if len(captures) < 2 {
			return Extracted{}, false
		}
		v, ok := parseRating(captures[1])
		if !ok {
			return Extracted{}, false
		}
		if isMin {
			return Extracted{Value: fragment.RatingBounds{Min: &v}}, true
		}
		return Extracted{Value: fragment.RatingBounds{Max: &v}}, true
	}
}

// parseRating parses a decimal rating on the 0-10 scale. Anything outside
// the scale is treated as an unrecognized value, not a crash.
func parseRating(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 10 {
		return 0, false
	}
	return v, true
}

func validYear(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// alternation builds a regex alternation from lookup keys, longest first so
// multi-word aliases win over their prefixes.
func alternation(keys []string) string {
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return strings.Join(quoted, "|")
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
