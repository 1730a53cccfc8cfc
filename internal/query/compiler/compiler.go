// Package compiler turns one free-text query string into an ordered list of
// typed filter fragments by scanning it against a pattern table.
//
// Conflict resolution is by excision: each accepted match is removed from the
// working copy of the text, so later rules never see characters an earlier
// rule has claimed. Excision replaces the first literal occurrence of the
// matched text, which means a rule that matches a substring of a later,
// larger phrase can steal its characters. That is an accepted limitation of
// the design; rule-table order is the specification of record for precedence.
package compiler

import (
	"fmt"
	"strings"

	"github.com/kavyarao/streamfilter/internal/query/fragment"
	"github.com/kavyarao/streamfilter/internal/query/pattern"
)

// Compile scans text against the table in rule order and returns the
// extracted fragments, ordered by rule, then left to right within a rule.
// It never fails: text with no recognizable phrases yields an empty list.
func Compile(table *pattern.Table, text string) []fragment.Fragment {
	remaining := text
	fragments := make([]fragment.Fragment, 0, 4)
	nextID := 0

	for _, rule := range table.Rules() {
		if remaining == "" {
			break
		}
		matches := rule.Matcher.FindAllStringSubmatch(remaining, -1)
		for _, captures := range matches {
			extracted, ok := extract(rule, captures)
			if !ok {
				continue
			}
			matched := captures[0]
			nextID++
			fragments = append(fragments, fragment.Fragment{
				ID:         fmt.Sprintf("frag-%d", nextID),
				Kind:       rule.Kind,
				Value:      extracted.Value,
				SourceSpan: matched,
				Label:      fragment.Label(rule.Kind, extracted.Value, extracted.Display),
				Removable:  true,
			})
			remaining = strings.Replace(remaining, matched, "", 1)
		}
	}
	return fragments
}

// extract resolves a rule's value for one match: the static value when the
// rule declares one, otherwise the extractor over the captured groups.
func extract(rule pattern.Rule, captures []string) (pattern.Extracted, bool) {
	if rule.Extract == nil {
		if rule.Static == nil {
			return pattern.Extracted{}, false
		}
		return pattern.Extracted{Value: rule.Static, Display: captures[0]}, true
	}
	return rule.Extract(captures)
}
