package policy

import "strings"

// AliasMap maps friendly table names to underlying table paths.
type AliasMap map[string]string

// Lookup returns the underlying table for a friendly name, case-insensitively.
func (m AliasMap) Lookup(name string) (string, bool) {
	if target, ok := m[name]; ok {
		return target, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Grant records a CTE name that widened the table allow set.
type Grant struct {
	Name  string `json:"name"`
	Depth int    `json:"depth"`
}

// Scope is the table-name scope of one query definition. CTE names granted
// in a scope are visible to the rest of that scope and to its children, but
// never to the parent or to sibling scopes.
type Scope struct {
	aliases AliasMap
	ctes    map[string]struct{}
	parent  *Scope
	depth   int
	journal *[]Grant
}

// NewScope creates a root scope over a read-only alias map.
func NewScope(aliases AliasMap) *Scope {
	return &Scope{
		aliases: aliases,
		ctes:    make(map[string]struct{}),
		journal: &[]Grant{},
	}
}

// Child creates a nested scope that sees this scope's CTE names.
// Children share the root journal.
func (s *Scope) Child() *Scope {
	return &Scope{
		aliases: s.aliases,
		ctes:    make(map[string]struct{}),
		parent:  s,
		depth:   s.depth + 1,
		journal: s.journal,
	}
}

// Depth is the nesting depth; the root scope is zero.
func (s *Scope) Depth() int {
	return s.depth
}

// Grant admits a CTE name for the remainder of this scope and its children.
func (s *Scope) Grant(name string) {
	key := strings.ToLower(name)
	s.ctes[key] = struct{}{}
	*s.journal = append(*s.journal, Grant{Name: name, Depth: s.depth})
}

// IsCTE reports whether name was granted here or in an enclosing scope.
func (s *Scope) IsCTE(name string) bool {
	key := strings.ToLower(name)
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.ctes[key]; ok {
			return true
		}
	}
	return false
}

// Resolve maps a friendly name to its underlying table. CTE names and
// unknown names are returned as-is.
func (s *Scope) Resolve(name string) string {
	if s.IsCTE(name) {
		return name
	}
	if target, ok := s.aliases.Lookup(name); ok {
		return target
	}
	return name
}

// Journal returns a copy of every grant made in this scope tree so far.
func (s *Scope) Journal() []Grant {
	out := make([]Grant, len(*s.journal))
	copy(out, *s.journal)
	return out
}

// CheckTable applies the tables policy to name. CTE names in scope pass;
// everything else is resolved through the alias map and then matched.
func (s *Scope) CheckTable(p Policy, name string) error {
	if s.IsCTE(name) {
		return nil
	}
	return Check(CategoryTables, s.Resolve(name), p)
}
