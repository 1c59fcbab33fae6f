package policy

import "strings"

// deniedKeywords are whole tokens that may not appear in raw SQL fragments.
// They cover data definition, data modification, privilege changes, and
// procedure execution.
var deniedKeywords = map[string]bool{
	"insert":        true,
	"update":        true,
	"delete":        true,
	"drop":          true,
	"create":        true,
	"alter":         true,
	"truncate":      true,
	"grant":         true,
	"revoke":        true,
	"merge":         true,
	"replace":       true,
	"rename":        true,
	"exec":          true,
	"execute":       true,
	"call":          true,
	"go":            true,
	"shutdown":      true,
	"sp_executesql": true,
}

// deniedPrefixes mark extended stored procedures.
var deniedPrefixes = []string{"xp_"}

// CheckRaw scans a raw SQL fragment and returns a ViolationError naming the
// first denied token. String literals are skipped; comment delimiters,
// statement separators, backslashes inside literals, and dollar-quoted
// strings are denied outright.
func CheckRaw(kind, sql string) error {
	if tok, ok := findDenied(sql); ok {
		return &ViolationError{
			Category: CategoryActions,
			Name:     kind,
			Reason:   "raw SQL contains denied token " + tok,
		}
	}
	return nil
}

// findDenied lexes sql once and returns the first denied token.
func findDenied(sql string) (string, bool) {
	n := len(sql)
	pos := 0
	for pos < n {
		ch := sql[pos]
		switch {
		case ch == '\'':
			next, closed := skipQuoted(sql, pos, n, '\'')
			if !closed {
				return "unterminated string literal", true
			}
			// E'' strings and MySQL treat a backslash as an escape, which
			// would end the literal somewhere other than where we think.
			if strings.IndexByte(sql[pos:next], '\\') >= 0 {
				return "backslash in string literal", true
			}
			pos = next
		case ch == '$' && pos+1 < n && (sql[pos+1] == '$' || isIdentStart(sql[pos+1])):
			return "dollar-quoted string", true
		case ch == '"' || ch == '`':
			next, closed := skipQuoted(sql, pos, n, ch)
			if !closed {
				return "unterminated quoted identifier", true
			}
			pos = next
		case ch == ';':
			return ";", true
		case ch == '-' && pos+1 < n && sql[pos+1] == '-':
			return "--", true
		case ch == '/' && pos+1 < n && sql[pos+1] == '*':
			return "/*", true
		case ch == '*' && pos+1 < n && sql[pos+1] == '/':
			return "*/", true
		case isIdentStart(ch):
			word, next := readBareword(sql, pos, n)
			if isDeniedWord(strings.ToLower(word)) {
				return word, true
			}
			pos = next
		default:
			pos++
		}
	}
	return "", false
}

func isDeniedWord(word string) bool {
	if deniedKeywords[word] {
		return true
	}
	for _, prefix := range deniedPrefixes {
		if strings.HasPrefix(word, prefix) {
			return true
		}
	}
	return false
}

// skipQuoted advances past a quoted run where a doubled quote is an escape.
// It reports whether the closing quote was found.
func skipQuoted(sql string, pos, n int, quote byte) (int, bool) {
	pos++ // opening quote
	for pos < n {
		if sql[pos] == quote {
			pos++
			if pos < n && sql[pos] == quote {
				pos++
				continue
			}
			return pos, true
		}
		pos++
	}
	return pos, false
}

// readBareword reads an unquoted identifier (letters, digits, underscores).
func readBareword(sql string, pos, n int) (word string, next int) {
	start := pos
	for pos < n && isIdentChar(sql[pos]) {
		pos++
	}
	return sql[start:pos], pos
}

// isIdentStart returns true if ch can start an identifier (letter or underscore).
func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

// isIdentChar returns true if ch can continue an identifier.
func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
