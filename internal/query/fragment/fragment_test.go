package fragment

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestLabelTemplates(t *testing.T) {
	min, max := 7.0, 8.5
	cases := []struct {
		name    string
		kind    Kind
		value   Value
		display string
		want    string
	}{
		{"movie", KindContentType, Text("movie"), "", "Movies"},
		{"tv", KindContentType, Text("tv"), "", "TV Shows"},
		{"year exact", KindYearExact, YearSpan{Start: "1999", End: "1999"}, "", "Year: 1999"},
		{"year range", KindYearRange, YearSpan{Start: "2010", End: "2019"}, "", "Years: 2010-2019"},
		{"year from", KindYearFrom, YearSpan{Start: "2015"}, "", "Since: 2015"},
		{"year to", KindYearTo, YearSpan{End: "2020"}, "", "Until: 2020"},
		{"rating range", KindRatingRange, RatingBounds{Min: &min, Max: &max}, "", "Rating: 7-8.5"},
		{"rating min", KindRatingMin, RatingBounds{Min: &min}, "", "Rating: 7+"},
		{"rating floor", KindRatingFloor, RatingBounds{Min: &min}, "", "Rating: 7+"},
		{"rating max", KindRatingMax, RatingBounds{Max: &max}, "", "Rating: <8.5"},
		{"provider", KindProvider, ID(8), "Netflix", "On: Netflix"},
		{"genre", KindGenre, ID(28), "action", "Genre: action"},
		{"country", KindCountry, Text("US"), "", "Region: US"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Label(tc.kind, tc.value, tc.display); got != tc.want {
				t.Errorf("Label(%s) = %q, want %q", tc.kind, got, tc.want)
			}
		})
	}
}

func TestFragmentJSONRoundTrip(t *testing.T) {
	min := 7.0
	fragments := []Fragment{
		{ID: "frag-1", Kind: KindContentType, Value: Text("movie"), SourceSpan: "movies", Label: "Movies", Removable: true},
		{ID: "frag-2", Kind: KindYearRange, Value: YearSpan{Start: "2010", End: "2019"}, SourceSpan: "2010-2019", Label: "Years: 2010-2019", Removable: true},
		{ID: "frag-3", Kind: KindRatingMin, Value: RatingBounds{Min: &min}, SourceSpan: "rated 7+", Label: "Rating: 7+", Removable: true},
		{ID: "frag-4", Kind: KindGenre, Value: ID(28), SourceSpan: "action", Label: "Genre: action", Removable: true},
	}
	data, err := json.Marshal(fragments)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []Fragment
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(fragments, decoded) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, fragments)
	}
}

func TestDecodeValueUnknownKind(t *testing.T) {
	if _, err := DecodeValue(Kind("bogus"), json.RawMessage(`"x"`)); err == nil {
		t.Error("expected error for unknown kind")
	}
}
