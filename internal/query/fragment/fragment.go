// Package fragment defines the typed filter fragments produced by the query
// compiler. Each fragment represents one recognized phrase from the user's
// free text, carries a tagged value variant, and is individually removable
// before the reducer folds the surviving set into a filter patch.
package fragment

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies what a fragment contributes to the filter state.
type Kind string

const (
	KindContentType Kind = "content_type"
	KindYearFrom    Kind = "year_from"
	KindYearTo      Kind = "year_to"
	KindYearExact   Kind = "year_exact"
	KindYearRange   Kind = "year_range"
	KindRatingMin   Kind = "rating_min"
	KindRatingMax   Kind = "rating_max"
	KindRatingFloor Kind = "rating_floor"
	KindRatingRange Kind = "rating_range"
	KindProvider    Kind = "provider"
	KindGenre       Kind = "genre"
	KindCountry     Kind = "country"
)

// Value is the tagged variant carried by a fragment. The concrete type is
// determined by the fragment's Kind, and consumers switch exhaustively on it.
type Value interface {
	isValue()
}

// Text holds a string value: a content type ("movie" / "tv") or a region code.
type Text string

// ID holds a numeric catalog identifier (provider id, genre id).
type ID int

// YearSpan holds a year range; either bound may be empty.
type YearSpan struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// RatingBounds holds a numeric rating range; either bound may be absent.
type RatingBounds struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func (Text) isValue()         {}
func (ID) isValue()           {}
func (YearSpan) isValue()     {}
func (RatingBounds) isValue() {}

// Fragment is one recognized phrase, typed and labeled, pending user
// confirmation. Fragments are created fresh on every compile pass and never
// mutated afterwards.
type Fragment struct {
	ID         string
	Kind       Kind
	Value      Value
	SourceSpan string
	Label      string
	Removable  bool
}

// Label renders the human-readable description of a fragment's effect.
// display carries the canonical provider name or the matched genre text for
// the kinds whose label is not derivable from the value alone.
func Label(kind Kind, value Value, display string) string {
	switch kind {
	case KindContentType:
		if v, ok := value.(Text); ok && v == "tv" {
			return "TV Shows"
		}
		return "Movies"
	case KindYearExact:
		v, _ := value.(YearSpan)
		return "Year: " + v.Start
	case KindYearRange:
		v, _ := value.(YearSpan)
		return fmt.Sprintf("Years: %s-%s", v.Start, v.End)
	case KindYearFrom:
		v, _ := value.(YearSpan)
		return "Since: " + v.Start
	case KindYearTo:
		v, _ := value.(YearSpan)
		return "Until: " + v.End
	case KindRatingRange:
		v, _ := value.(RatingBounds)
		return fmt.Sprintf("Rating: %s-%s", formatRating(v.Min), formatRating(v.Max))
	case KindRatingMin, KindRatingFloor:
		v, _ := value.(RatingBounds)
		return "Rating: " + formatRating(v.Min) + "+"
	case KindRatingMax:
		v, _ := value.(RatingBounds)
		return "Rating: <" + formatRating(v.Max)
	case KindProvider:
		return "On: " + display
	case KindGenre:
		return "Genre: " + display
	case KindCountry:
		if v, ok := value.(Text); ok {
			return "Region: " + string(v)
		}
		return "Region: " + display
	}
	return display
}

func formatRating(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// wireFragment is the JSON shape exchanged with API clients.
type wireFragment struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Value      json.RawMessage `json:"value"`
	SourceSpan string          `json:"source_span"`
	Label      string          `json:"label"`
	Removable  bool            `json:"removable"`
}

// MarshalJSON encodes the fragment with a kind-specific value shape.
func (f Fragment) MarshalJSON() ([]byte, error) {
	value, err := json.Marshal(f.Value)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s value: %w", f.Kind, err)
	}
	return json.Marshal(wireFragment{
		ID:         f.ID,
		Kind:       f.Kind,
		Value:      value,
		SourceSpan: f.SourceSpan,
		Label:      f.Label,
		Removable:  f.Removable,
	})
}

// UnmarshalJSON decodes a fragment, selecting the value variant by kind.
func (f *Fragment) UnmarshalJSON(data []byte) error {
	var w wireFragment
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	value, err := DecodeValue(w.Kind, w.Value)
	if err != nil {
		return err
	}
	f.ID = w.ID
	f.Kind = w.Kind
	f.Value = value
	f.SourceSpan = w.SourceSpan
	f.Label = w.Label
	f.Removable = w.Removable
	return nil
}

// DecodeValue decodes a JSON value into the variant appropriate for kind.
func DecodeValue(kind Kind, raw json.RawMessage) (Value, error) {
	switch kind {
	case KindContentType, KindCountry:
		var v Text
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding %s value: %w", kind, err)
		}
		return v, nil
	case KindProvider, KindGenre:
		var v ID
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding %s value: %w", kind, err)
		}
		return v, nil
	case KindYearFrom, KindYearTo, KindYearExact, KindYearRange:
		var v YearSpan
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding %s value: %w", kind, err)
		}
		return v, nil
	case KindRatingMin, KindRatingMax, KindRatingFloor, KindRatingRange:
		var v RatingBounds
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding %s value: %w", kind, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown fragment kind: %q", kind)
}
