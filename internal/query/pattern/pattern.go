// Package pattern declares, in one place, every phrase shape the query
// compiler recognizes and how each maps to a typed fragment. A Table is
// immutable after construction; rules are evaluated in table order, and table
// order is the specification of record for conflict resolution (earlier
// rules claim text first).
package pattern

import (
	"fmt"
	"regexp"

	"github.com/kavyarao/streamfilter/internal/query/fragment"
)

// Extracted is the result of a successful extraction: the fragment value plus
// the display text used for label construction (canonical provider name,
// matched genre word).
type Extracted struct {
	Value   fragment.Value
	Display string
}

// Extractor derives a value from a rule's captured groups. ok=false means the
// match was syntactically valid but produced no usable value (an unrecognized
// genre, an out-of-range rating) and must be discarded without a fragment.
// Extractors are total: they never panic on well-formed captures.
type Extractor func(captures []string) (Extracted, bool)

// Rule pairs a regular expression with a fragment kind and a value source.
// Static, when non-nil, is used as the value for every match and Extract may
// be nil; otherwise Extract runs per match.
type Rule struct {
	Kind    fragment.Kind
	Matcher *regexp.Regexp
	Extract Extractor
	Static  fragment.Value
}

// Table is an ordered, immutable set of rules.
type Table struct {
	rules []Rule
}

// New builds a Table, rejecting duplicate rules. Two rules sharing both the
// same kind and an identical matcher source indicate a programming error in
// the rule set and must stop the process at startup.
func New(rules []Rule) (*Table, error) {
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if r.Matcher == nil {
			return nil, fmt.Errorf("rule %s: nil matcher", r.Kind)
		}
		if r.Extract == nil && r.Static == nil {
			return nil, fmt.Errorf("rule %s (%s): no extractor and no static value", r.Kind, r.Matcher)
		}
		key := string(r.Kind) + "\x00" + r.Matcher.String()
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate rule: kind %s, matcher %s", r.Kind, r.Matcher)
		}
		seen[key] = struct{}{}
	}
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &Table{rules: copied}, nil
}

// Rules returns the rules in evaluation order.
func (t *Table) Rules() []Rule {
	return t.rules
}

// Len returns the number of rules in the table.
func (t *Table) Len() int {
	return len(t.rules)
}
