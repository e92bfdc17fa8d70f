package query

import (
	"context"
	"fmt"

	"github.com/syssam/gqlmap/dialect/sql"
	"github.com/syssam/gqlmap/gqlerr"
	"github.com/syssam/gqlmap/graph"
	"github.com/syssam/gqlmap/metadata"
)

// operators maps search operators to SQL comparisons.
var operators = map[string]sql.Op{
	graph.OpLT:  sql.OpLT,
	graph.OpLTE: sql.OpLTE,
	graph.OpEQ:  sql.OpEQ,
	graph.OpGTE: sql.OpGTE,
	graph.OpGT:  sql.OpGT,
	graph.OpNEQ: sql.OpNEQ,
}

// Emit receives the fragments built for one leaf field together with the
// values bound to them, keyed by parameter name.
type Emit func(fragments []*sql.Predicate, params map[string]any)

// Walker translates search input values into predicates on a selector,
// joining the tables of the relationships it walks through. A walker is
// used for a single statement; walking the same path twice reuses the
// join.
type Walker struct {
	catalog  *metadata.Catalog
	reg      *graph.Registry
	sel      *sql.Selector
	aliases  *AliasManager
	entities map[string]*metadata.Entity
	joined   map[string]bool
}

// NewWalker returns a walker adding joins to sel, whose alias reads root.
func NewWalker(c *metadata.Catalog, reg *graph.Registry, sel *sql.Selector, root *metadata.Entity) *Walker {
	return &Walker{
		catalog:  c,
		reg:      reg,
		sel:      sel,
		aliases:  NewAliasManager(sel.Alias()),
		entities: map[string]*metadata.Entity{sel.Alias(): root},
		joined:   make(map[string]bool),
	}
}

// Joined reports whether any join was added.
func (w *Walker) Joined() bool { return len(w.joined) > 0 }

// Walk visits the fields declared on def that are present in filter, in
// declaration order. Nested inputs join the related table under a derived
// alias and recurse; leaf fields emit one comparison per predicate. Keys
// of filter that def does not declare are ignored.
func (w *Walker) Walk(ctx context.Context, def *graph.Input, filter map[string]any, alias string, emit Emit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, ok := w.entities[alias]
	if !ok {
		return fmt.Errorf("query: unknown alias %q", alias)
	}
	for _, f := range def.Fields() {
		raw, ok := filter[f.Name]
		if !ok || raw == nil {
			continue
		}
		name := graph.Unwrap(f.Type).Name()
		if name == graph.SearchFilterInputName {
			field, ok := e.Field(f.Name)
			if !ok {
				continue
			}
			frags, params, err := leaf(alias, field, raw)
			if err != nil {
				return err
			}
			if len(frags) > 0 {
				emit(frags, params)
			}
			continue
		}
		nested, ok := w.reg.Input(name)
		if !ok {
			continue
		}
		a, ok := e.Association(f.Name)
		if !ok {
			continue
		}
		sub, ok := raw.(map[string]any)
		if !ok {
			return gqlerr.NewValidationError(f.Name, fmt.Errorf("expected an object, got %T", raw))
		}
		child, err := w.join(e, a, alias)
		if err != nil {
			return err
		}
		if err := w.Walk(ctx, nested, sub, child, emit); err != nil {
			return err
		}
	}
	return nil
}

// join adds the join of a from the parent alias and returns its alias.
func (w *Walker) join(e *metadata.Entity, a *metadata.Association, parent string) (string, error) {
	child := w.aliases.Alias(parent, a.Name)
	if w.joined[child] {
		return child, nil
	}
	target, ok := w.catalog.Get(a.Target)
	if !ok {
		return "", gqlerr.NewConfigError(e.Name, fmt.Sprintf("unknown target %q of %s", a.Target, a.Name), nil)
	}
	var on []*sql.Predicate
	switch {
	case a.Type == metadata.ManyToMany:
		jt, src, dst, err := w.catalog.LinkColumns(e, a)
		if err != nil {
			return "", err
		}
		link := child + "_j"
		var via []*sql.Predicate
		for _, jc := range src {
			via = append(via, sql.ColumnsEQ(link+"."+jc.Name, parent+"."+jc.ReferencedColumn))
		}
		w.sel.LeftJoin(jt.Name, link, sql.And(via...))
		for _, jc := range dst {
			on = append(on, sql.ColumnsEQ(child+"."+jc.ReferencedColumn, link+"."+jc.Name))
		}
	case a.IsOwningSide():
		for _, jc := range a.JoinColumns {
			on = append(on, sql.ColumnsEQ(child+"."+jc.ReferencedColumn, parent+"."+jc.Name))
		}
	default:
		_, owner, err := w.catalog.Owning(e, a)
		if err != nil {
			return "", err
		}
		for _, jc := range owner.JoinColumns {
			on = append(on, sql.ColumnsEQ(child+"."+jc.Name, parent+"."+jc.ReferencedColumn))
		}
	}
	w.sel.LeftJoin(target.TableName(), child, sql.And(on...))
	w.joined[child] = true
	w.entities[child] = target
	return child, nil
}

// leaf builds the comparisons of a list of {operator, value} predicates
// on one field. Values are converted to the kind of the column and bound
// under the parameter name alias_field_i.
func leaf(alias string, f *metadata.Field, raw any) ([]*sql.Predicate, map[string]any, error) {
	var list []any
	switch raw := raw.(type) {
	case []any:
		list = raw
	case map[string]any:
		list = []any{raw}
	default:
		return nil, nil, gqlerr.NewValidationError(f.Name, fmt.Errorf("expected a list of predicates, got %T", raw))
	}
	col := alias + "." + f.ColumnName()
	frags := make([]*sql.Predicate, 0, len(list))
	params := make(map[string]any, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, nil, gqlerr.NewValidationError(f.Name, fmt.Errorf("expected a predicate, got %T", item))
		}
		op, ok := operators[fmt.Sprint(m["operator"])]
		if !ok {
			return nil, nil, gqlerr.NewValidationError(f.Name, fmt.Errorf("unknown operator %v", m["operator"]))
		}
		v, err := f.Kind.Coerce(m["value"])
		if err != nil {
			return nil, nil, gqlerr.NewValidationError(f.Name, err)
		}
		params[fmt.Sprintf("%s_%s_%d", alias, f.Name, i)] = v
		switch {
		case v != nil:
			frags = append(frags, sql.Compare(col, op, v))
		case op == sql.OpEQ:
			frags = append(frags, sql.IsNull(col))
		case op == sql.OpNEQ:
			frags = append(frags, sql.NotNull(col))
		default:
			return nil, nil, gqlerr.NewValidationError(f.Name, fmt.Errorf("operator %v needs a value", m["operator"]))
		}
	}
	return frags, params, nil
}
