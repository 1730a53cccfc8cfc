package pattern

import (
	"regexp"
	"strings"
	"testing"

	"github.com/kavyarao/streamfilter/internal/query/fragment"
)

func TestNewRejectsDuplicateRules(t *testing.T) {
	matcher := regexp.MustCompile(`\bfoo\b`)
	rules := []Rule{
		{Kind: fragment.KindGenre, Matcher: matcher, Static: fragment.ID(1)},
		{Kind: fragment.KindGenre, Matcher: regexp.MustCompile(`\bfoo\b`), Static: fragment.ID(2)},
	}
	if _, err := New(rules); err == nil {
		t.Fatal("expected duplicate-rule error, got nil")
	}
}

func TestNewAllowsSameKindDifferentMatcher(t *testing.T) {
	rules := []Rule{
		{Kind: fragment.KindRatingMin, Matcher: regexp.MustCompile(`above (\d+)`), Extract: ratingEdgeExtractor(true)},
		{Kind: fragment.KindRatingMin, Matcher: regexp.MustCompile(`(\d+)\+`), Extract: ratingEdgeExtractor(true)},
	}
	if _, err := New(rules); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewRejectsRuleWithoutValueSource(t *testing.T) {
	rules := []Rule{
		{Kind: fragment.KindGenre, Matcher: regexp.MustCompile(`foo`)},
	}
	if _, err := New(rules); err == nil {
		t.Fatal("expected error for rule with neither extractor nor static value")
	}
}

func TestDefaultTableConstructs(t *testing.T) {
	table := Default()
	if table.Len() == 0 {
		t.Fatal("default table is empty")
	}
}

func TestGenreExtractorRejectsUnknownWord(t *testing.T) {
	extract := genreExtractor(map[string]int{"action": 28})
	if _, ok := extract([]string{"noir", "noir"}); ok {
		t.Error("expected unknown genre to be rejected")
	}
	got, ok := extract([]string{"Action", "Action"})
	if !ok {
		t.Fatal("expected known genre to extract")
	}
	if id := got.Value.(fragment.ID); id != 28 {
		t.Errorf("id = %d, want 28", id)
	}
	if got.Display != "Action" {
		t.Errorf("display = %q, want matched text", got.Display)
	}
}

func TestProviderExtractorFoldsAliases(t *testing.T) {
	lookups := DefaultLookups()
	extract := providerExtractor(lookups.Providers)
	for _, alias := range []string{"Netflix", "netflix", "NETFLIX"} {
		got, ok := extract([]string{alias, alias})
		if !ok {
			t.Fatalf("alias %q rejected", alias)
		}
		if got.Display != "Netflix" {
			t.Errorf("alias %q display = %q, want canonical name", alias, got.Display)
		}
	}
	if _, ok := extract([]string{"blockbuster", "blockbuster"}); ok {
		t.Error("expected unknown provider to be rejected")
	}
}

func TestRatingExtractorRejectsUnparseableAndOutOfScale(t *testing.T) {
	extract := ratingEdgeExtractor(true)
	cases := []struct {
		capture string
		want    bool
	}{
		{"7", true},
		{"8.5", true},
		{"0", true},
		{"10", true},
		{"11", false},
		{"15", false},
		{"x", false},
		{"", false},
	}
	for _, tc := range cases {
		if _, ok := extract([]string{tc.capture, tc.capture}); ok != tc.want {
			t.Errorf("capture %q: ok = %v, want %v", tc.capture, ok, tc.want)
		}
	}
}

func TestAlternationPrefersLongerAliases(t *testing.T) {
	alt := alternation([]string{"prime", "prime video", "amazon prime video"})
	first := strings.Split(alt, "|")[0]
	if first != `amazon prime video` {
		t.Errorf("first alternative = %q, want longest alias", first)
	}
}

func TestCountryExtractor(t *testing.T) {
	lookups := DefaultLookups()
	extract := countryExtractor(lookups.Countries)
	got, ok := extract([]string{"UK", "UK"})
	if !ok {
		t.Fatal("expected UK to extract")
	}
	if code := got.Value.(fragment.Text); code != "GB" {
		t.Errorf("code = %q, want GB", code)
	}
}
