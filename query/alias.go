package query

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

// AliasManager derives join aliases for relationship paths. An alias is
// the parent alias followed by the lowercased first letter of the field.
// A path asked twice gets the same alias; a path whose alias is already
// taken by another path gets the smallest free numeric suffix from 1.
type AliasManager struct {
	paths map[string]string
	used  map[string]bool
}

// NewAliasManager returns a manager with the given root aliases reserved.
func NewAliasManager(roots ...string) *AliasManager {
	m := &AliasManager{
		paths: make(map[string]string),
		used:  make(map[string]bool),
	}
	for _, r := range roots {
		m.used[r] = true
	}
	return m
}

// Alias returns the alias of the path parent.field.
func (m *AliasManager) Alias(parent, field string) string {
	path := parent + "." + field
	if a, ok := m.paths[path]; ok {
		return a
	}
	base := parent
	if r, _ := utf8.DecodeRuneInString(field); r != utf8.RuneError {
		base += string(unicode.ToLower(r))
	}
	alias := base
	for i := 1; m.used[alias]; i++ {
		alias = base + strconv.Itoa(i)
	}
	m.paths[path] = alias
	m.used[alias] = true
	return alias
}
