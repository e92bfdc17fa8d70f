package query

import (
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/syssam/gqlmap/dialect/sql"
	"github.com/syssam/gqlmap/graph"
)

// Selected reports whether the field resolved by info selects name,
// looking through inline fragments and fragment spreads.
func Selected(info graphql.ResolveInfo, name string) bool {
	for _, f := range SelectedFields(info) {
		if f == name {
			return true
		}
	}
	return false
}

// SelectedFields returns the names of the subfields selected on the field
// resolved by info, in selection order and without duplicates.
func SelectedFields(info graphql.ResolveInfo) []string {
	var (
		names []string
		seen  = make(map[string]bool)
	)
	for _, f := range info.FieldASTs {
		if f.SelectionSet != nil {
			names = collect(info, f.SelectionSet, names, seen)
		}
	}
	return names
}

func collect(info graphql.ResolveInfo, set *ast.SelectionSet, names []string, seen map[string]bool) []string {
	for _, s := range set.Selections {
		switch s := s.(type) {
		case *ast.Field:
			if s.Name != nil && !seen[s.Name.Value] {
				seen[s.Name.Value] = true
				names = append(names, s.Name.Value)
			}
		case *ast.InlineFragment:
			if s.SelectionSet != nil {
				names = collect(info, s.SelectionSet, names, seen)
			}
		case *ast.FragmentSpread:
			if s.Name == nil {
				continue
			}
			if def, ok := info.Fragments[s.Name.Value].(*ast.FragmentDefinition); ok && def.SelectionSet != nil {
				names = collect(info, def.SelectionSet, names, seen)
			}
		}
	}
	return names
}

// SortField is one ORDER BY term of a page query.
type SortField struct {
	Field     string
	Direction sql.Direction
}

// SortFields orders the sort argument of the field resolved by info. A
// literal object keeps the order written by the caller; a value supplied
// through a variable follows the field order of def.
func SortFields(info graphql.ResolveInfo, arg string, value map[string]any, def *graph.Input) []SortField {
	var order []string
	if lit := literalObject(info, arg); lit != nil {
		for _, f := range lit.Fields {
			if f.Name != nil {
				order = append(order, f.Name.Value)
			}
		}
	} else if def != nil {
		for _, f := range def.Fields() {
			order = append(order, f.Name)
		}
	}
	var out []SortField
	for _, name := range order {
		v, ok := value[name]
		if !ok || v == nil {
			continue
		}
		dir := sql.Asc
		if strings.EqualFold(strings.TrimSpace(toString(v)), graph.SortDesc) {
			dir = sql.Desc
		}
		out = append(out, SortField{Field: name, Direction: dir})
	}
	return out
}

func literalObject(info graphql.ResolveInfo, arg string) *ast.ObjectValue {
	for _, f := range info.FieldASTs {
		for _, a := range f.Arguments {
			if a.Name == nil || a.Name.Value != arg {
				continue
			}
			if obj, ok := a.Value.(*ast.ObjectValue); ok {
				return obj
			}
		}
	}
	return nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
