package action

import (
	"regexp"
	"strings"
)

var (
	// identPattern accepts dotted identifiers with an optional trailing *.
	identPattern = regexp.MustCompile(`^(\*|[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)*(\.\*)?)$`)
	// aliasPattern splits "expr as alias".
	aliasPattern = regexp.MustCompile(`(?i)^\s*(\S+)\s+as\s+([A-Za-z_][A-Za-z0-9_]*)\s*$`)
)

// operators is the closed set of comparison operators, keyed by lowercase.
var operators = map[string]string{
	"=":                "=",
	"==":               "=",
	"<>":               "<>",
	"!=":               "<>",
	"<":                "<",
	"<=":               "<=",
	">":                ">",
	">=":               ">=",
	"like":             "LIKE",
	"not like":         "NOT LIKE",
	"ilike":            "ILIKE",
	"not ilike":        "NOT ILIKE",
	"is":               "IS",
	"is not":           "IS NOT",
	"is distinct from": "IS DISTINCT FROM",
}

// ValidIdent reports whether s is a plain or dotted identifier.
func ValidIdent(s string) bool {
	return identPattern.MatchString(s)
}

// SplitAlias splits "name as alias" and validates both parts.
func SplitAlias(s string) (name, alias string, ok bool) {
	if m := aliasPattern.FindStringSubmatch(s); m != nil {
		return m[1], m[2], ValidIdent(m[1])
	}
	s = strings.TrimSpace(s)
	return s, "", ValidIdent(s)
}

// ValidColumn accepts an identifier with an optional alias.
func ValidColumn(s string) bool {
	_, _, ok := SplitAlias(s)
	return ok
}

// CanonicalOperator maps an input operator to its SQL spelling.
func CanonicalOperator(op string) (string, bool) {
	canon, ok := operators[strings.ToLower(strings.Join(strings.Fields(op), " "))]
	return canon, ok
}
