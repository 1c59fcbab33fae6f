// Package policy provides table, action, and executor access control for
// query definitions.
package policy

import (
	"fmt"
	"strings"
)

// Mode selects how a policy list is interpreted.
type Mode string

// Policy modes.
const (
	ModeNone  Mode = "none"
	ModeAllow Mode = "allow"
	ModeBlock Mode = "block"
)

// Category names a governed kind of identifier.
type Category string

// Governed categories.
const (
	CategoryTables    Category = "tables"
	CategoryActions   Category = "actions"
	CategoryExecutors Category = "executors"
)

// Policy is one access rule set.
type Policy struct {
	// Mode is none, allow, or block. An empty mode behaves as none.
	Mode Mode `json:"mode" yaml:"mode" toml:"mode"`

	// List holds glob patterns where * matches any run of characters.
	List []string `json:"list" yaml:"list" toml:"list"`
}

// Validate reports an unknown mode.
func (p Policy) Validate() error {
	switch p.Mode {
	case "", ModeNone, ModeAllow, ModeBlock:
		return nil
	default:
		return fmt.Errorf("unknown policy mode %q", p.Mode)
	}
}

// Policies groups the three governed categories.
type Policies struct {
	Tables    Policy `json:"tables" yaml:"tables" toml:"tables"`
	Actions   Policy `json:"actions" yaml:"actions" toml:"actions"`
	Executors Policy `json:"executors" yaml:"executors" toml:"executors"`
}

// For returns the policy governing a category.
func (p Policies) For(category Category) Policy {
	switch category {
	case CategoryTables:
		return p.Tables
	case CategoryActions:
		return p.Actions
	case CategoryExecutors:
		return p.Executors
	default:
		return Policy{Mode: ModeNone}
	}
}

// Validate validates every category.
func (p Policies) Validate() error {
	var errs []string
	for _, c := range []Category{CategoryTables, CategoryActions, CategoryExecutors} {
		if err := p.For(c).Validate(); err != nil {
			errs = append(errs, string(c)+": "+err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("policy validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsAllowed evaluates name against a policy. The category only labels the
// decision; matching is identical for all categories.
func IsAllowed(_ Category, name string, p Policy) bool {
	switch p.Mode {
	case ModeAllow:
		return matchesAny(p.List, name)
	case ModeBlock:
		return !matchesAny(p.List, name)
	default:
		return true
	}
}

func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if MatchPattern(pattern, name) {
			return true
		}
	}
	return false
}

// MatchPattern reports whether name matches a glob pattern in full.
// Matching is case-insensitive and * is the only metacharacter.
func MatchPattern(pattern, name string) bool {
	return wildcardMatch(strings.ToLower(pattern), strings.ToLower(name))
}

// wildcardMatch is the iterative star-backtracking matcher.
func wildcardMatch(pattern, name string) bool {
	p, n := 0, 0
	star, mark := -1, 0
	for n < len(name) {
		switch {
		case p < len(pattern) && pattern[p] != '*' && pattern[p] == name[n]:
			p++
			n++
		case p < len(pattern) && pattern[p] == '*':
			star = p
			mark = n
			p++
		case star >= 0:
			p = star + 1
			mark++
			n = mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
