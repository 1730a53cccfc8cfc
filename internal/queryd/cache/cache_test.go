package cache

import (
	"strings"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Action Movies", "action movies"},
		{"  action   movies  ", "action movies"},
		{"action\tmovies\non netflix", "action movies on netflix"},
		{"ACTION MOVIES", "action movies"},
	}
	for _, tt := range tests {
		if got := normalizeText(tt.in); got != tt.want {
			t.Errorf("normalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildKeyEquivalentQueries(t *testing.T) {
	c := &CompileCache{}

	a := c.buildKey("Action Movies on Netflix", "movie")
	b := c.buildKey("  action   movies on NETFLIX ", "movie")
	if a != b {
		t.Errorf("equivalent queries should share a key: %q vs %q", a, b)
	}
}

func TestBuildKeyDistinguishesContentType(t *testing.T) {
	c := &CompileCache{}

	movie := c.buildKey("since 2015", "movie")
	tv := c.buildKey("since 2015", "tv")
	if movie == tv {
		t.Error("content type must be part of the cache key")
	}
}

func TestBuildKeyPreservesWordOrder(t *testing.T) {
	c := &CompileCache{}

	a := c.buildKey("rated 7+ movies", "")
	b := c.buildKey("movies rated 7+", "")
	if a == b {
		t.Error("word order is significant and must not share a key")
	}
}

func TestBuildKeyPrefix(t *testing.T) {
	c := &CompileCache{}

	key := c.buildKey("anything", "")
	if !strings.HasPrefix(key, keyPrefix) {
		t.Errorf("key %q missing prefix %q", key, keyPrefix)
	}
}
