// Package filter implements listing search over bucket items.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"propfeed/internal/model"
)

// Kind is the matching mode of a term.
type Kind string

// Term kinds.
const (
	Include   Kind = "include"
	Exclude   Kind = "exclude"
	IncludeRe Kind = "include_re"
	ExcludeRe Kind = "exclude_re"
)

// Scope restricts which listing fields a term is matched against.
type Scope string

// Term scopes.
const (
	ScopeAll      Scope = "all"
	ScopeName     Scope = "name"
	ScopeCity     Scope = "city"
	ScopeCategory Scope = "category"
)

// Term is one parsed search term.
type Term struct {
	Kind  Kind
	Scope Scope
	Value string

	re *regexp.Regexp
}

// Query is a parsed search. The zero Query matches everything.
type Query []Term

// Parse parses a search string. Terms are separated by spaces:
//
//	kochi        include listings mentioning kochi
//	-villa       exclude listings mentioning villa
//	city:kochi   match the city only (also name:, category:)
//	~flat|plot   regular expression, combinable: -city:~^ko
func Parse(s string) (Query, error) {
	var q Query
	for _, field := range strings.Fields(s) {
		t, err := parseTerm(field)
		if err != nil {
			return nil, err
		}
		q = append(q, t)
	}
	return q, nil
}

func parseTerm(s string) (Term, error) {
	t := Term{Kind: Include, Scope: ScopeAll}

	exclude := strings.HasPrefix(s, "-") && len(s) > 1
	if exclude {
		s = s[1:]
	}
	if scope, rest, ok := strings.Cut(s, ":"); ok {
		switch Scope(strings.ToLower(scope)) {
		case ScopeName, ScopeCity, ScopeCategory:
			t.Scope = Scope(strings.ToLower(scope))
			s = rest
		}
	}

	regex := strings.HasPrefix(s, "~")
	if regex {
		s = s[1:]
	}
	if s == "" {
		return Term{}, fmt.Errorf("empty search term")
	}
	t.Value = s

	switch {
	case regex:
		re, err := compile(s)
		if err != nil {
			return Term{}, err
		}
		t.re = re
		t.Kind = IncludeRe
		if exclude {
			t.Kind = ExcludeRe
		}
	case exclude:
		t.Kind = Exclude
	}
	return t, nil
}

// Match checks whether a listing passes the query.
// If the query is empty, the listing always passes.
// Include terms use OR logic (at least one must match).
// Exclude terms use AND logic (none must match).
func Match(r model.ListingRecord, q Query) bool {
	if len(q) == 0 {
		return true
	}

	hasIncludes := false
	anyIncludeMatched := false

	for _, t := range q {
		switch t.Kind {
		case Include, IncludeRe:
			hasIncludes = true
			if matchesTerm(r, t) {
				anyIncludeMatched = true
			}
		case Exclude, ExcludeRe:
			if matchesTerm(r, t) {
				return false
			}
		}
	}

	if hasIncludes && !anyIncludeMatched {
		return false
	}
	return true
}

// Apply returns the listings that pass q, in order. The input is not
// modified.
func Apply(items []model.ListingRecord, q Query) []model.ListingRecord {
	out := make([]model.ListingRecord, 0, len(items))
	for _, r := range items {
		if Match(r, q) {
			out = append(out, r)
		}
	}
	return out
}

// String renders q back in search syntax.
func (q Query) String() string {
	parts := make([]string, 0, len(q))
	for _, t := range q {
		var b strings.Builder
		if t.Kind == Exclude || t.Kind == ExcludeRe {
			b.WriteByte('-')
		}
		if t.Scope != ScopeAll && t.Scope != "" {
			b.WriteString(string(t.Scope))
			b.WriteByte(':')
		}
		if t.Kind == IncludeRe || t.Kind == ExcludeRe {
			b.WriteByte('~')
		}
		b.WriteString(t.Value)
		parts = append(parts, b.String())
	}
	return strings.Join(parts, " ")
}

func matchesTerm(r model.ListingRecord, t Term) bool {
	text := textForScope(r, t.Scope)
	switch t.Kind {
	case Include, Exclude:
		return strings.Contains(text, strings.ToLower(t.Value))
	case IncludeRe, ExcludeRe:
		re := t.re
		if re == nil {
			var err error
			if re, err = compile(t.Value); err != nil {
				return false
			}
		}
		return re.MatchString(text)
	}
	return false
}

func textForScope(r model.ListingRecord, scope Scope) string {
	switch scope {
	case ScopeName:
		return strings.ToLower(r.Name)
	case ScopeCity:
		return strings.ToLower(r.City)
	case ScopeCategory:
		return strings.ToLower(r.Category)
	default:
		return strings.ToLower(r.Name + " " + r.City + " " + r.Category)
	}
}

func compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return re, nil
}

// ValidateRegex checks whether a pattern is a valid regular expression.
func ValidateRegex(pattern string) error {
	_, err := compile(pattern)
	return err
}
