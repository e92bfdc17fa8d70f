package sqlstore

import (
	"context"
	"fmt"

	"github.com/syssam/gqlmap/dialect/sql"
	"github.com/syssam/gqlmap/entity"
	"github.com/syssam/gqlmap/internal/batch"
	"github.com/syssam/gqlmap/metadata"
)

// ownerPrefix aliases the join table columns selected next to the target
// columns of a many-to-many load.
const ownerPrefix = "__owner_"

// Load fills the association assoc of every instance in xs with a single
// query per chunk of owners.
func (r *reader) Load(ctx context.Context, assoc string, xs ...*entity.Entity) error {
	if len(xs) == 0 {
		return nil
	}
	e := xs[0].Meta()
	a, ok := e.Association(assoc)
	if !ok {
		return fmt.Errorf("sqlstore: %s has no association %q", e.ShortName(), assoc)
	}
	target, ok := r.st.catalog.Get(a.Target)
	if !ok {
		return fmt.Errorf("sqlstore: unknown target %q of %s.%s", a.Target, e.ShortName(), a.Name)
	}
	var err error
	switch {
	case a.Type == metadata.ManyToMany:
		err = r.loadJoinTable(ctx, a, target, xs)
	case a.IsOwningSide():
		err = r.loadOwned(ctx, a, target, xs)
	default:
		err = r.loadInverse(ctx, a, target, xs)
	}
	if err != nil {
		return fmt.Errorf("sqlstore: load %s.%s: %w", e.ShortName(), a.Name, err)
	}
	return nil
}

// loadOwned loads a single-valued association whose join columns live on
// the owners' table.
func (r *reader) loadOwned(ctx context.Context, a *metadata.Association, target *metadata.Entity, xs []*entity.Entity) error {
	var (
		cols, refs []string
		tuples     [][]any
		pending    []*entity.Entity
	)
	for _, jc := range a.JoinColumns {
		cols = append(cols, jc.Name)
		refs = append(refs, jc.ReferencedColumn)
	}
	for _, x := range xs {
		t, ok := tuple(x, cols, func(x *entity.Entity, c string) any {
			v, _ := x.JoinValue(c)
			return v
		})
		if !ok {
			x.LoadRef(a.Name, nil)
			continue
		}
		tuples = append(tuples, t)
		pending = append(pending, x)
	}
	rows, err := r.chunked(ctx, tuples, func(chunk [][]any) sql.Querier {
		return r.st.Selector(target, "").Where(keyPredicate(refs, chunk))
	})
	if err != nil {
		return err
	}
	found := make(map[string]*entity.Entity, len(rows))
	for _, row := range rows {
		t, err := r.hydrate(target, row)
		if err != nil {
			return err
		}
		k, _ := tuple(t, refs, columnValue)
		found[batch.Key(k...)] = t
	}
	for i, x := range pending {
		x.LoadRef(a.Name, found[batch.Key(tuples[i]...)])
	}
	return nil
}

// loadInverse loads a one-to-many or inverse one-to-one association by
// the join columns of the owning association on the target table.
func (r *reader) loadInverse(ctx context.Context, a *metadata.Association, target *metadata.Entity, xs []*entity.Entity) error {
	owner, ok := target.Association(a.MappedBy)
	if !ok {
		return fmt.Errorf("unknown owning side %q", a.MappedBy)
	}
	var cols, refs []string
	for _, jc := range owner.JoinColumns {
		cols = append(cols, jc.Name)
		refs = append(refs, jc.ReferencedColumn)
	}
	var (
		tuples  [][]any
		pending []*entity.Entity
	)
	for _, x := range xs {
		t, ok := tuple(x, refs, columnValue)
		if !ok {
			r.fill(x, a, nil)
			continue
		}
		tuples = append(tuples, t)
		pending = append(pending, x)
	}
	rows, err := r.chunked(ctx, tuples, func(chunk [][]any) sql.Querier {
		return r.st.Selector(target, "").Where(keyPredicate(cols, chunk))
	})
	if err != nil {
		return err
	}
	groups := make(map[string][]*entity.Entity)
	for _, row := range rows {
		t, err := r.hydrate(target, row)
		if err != nil {
			return err
		}
		k, _ := tuple(t, cols, columnValue)
		key := batch.Key(k...)
		groups[key] = append(groups[key], t)
	}
	for i, x := range pending {
		items := groups[batch.Key(tuples[i]...)]
		for _, t := range items {
			if !t.Loaded(owner.Name) {
				t.LoadRef(owner.Name, x)
			}
		}
		r.fill(x, a, items)
	}
	return nil
}

// loadJoinTable loads a many-to-many association from either side.
func (r *reader) loadJoinTable(ctx context.Context, a *metadata.Association, target *metadata.Entity, xs []*entity.Entity) error {
	jt, src, dst, err := r.st.catalog.LinkColumns(xs[0].Meta(), a)
	if err != nil {
		return err
	}
	var (
		refs, keys []string
		tuples     [][]any
		pending    []*entity.Entity
	)
	for _, jc := range src {
		refs = append(refs, jc.ReferencedColumn)
		keys = append(keys, "j."+jc.Name)
	}
	for _, x := range xs {
		t, ok := tuple(x, refs, columnValue)
		if !ok {
			r.fill(x, a, nil)
			continue
		}
		tuples = append(tuples, t)
		pending = append(pending, x)
	}
	on := make([]*sql.Predicate, 0, len(dst))
	for _, jc := range dst {
		on = append(on, sql.ColumnsEQ("j."+jc.Name, "t."+jc.ReferencedColumn))
	}
	rows, err := r.chunked(ctx, tuples, func(chunk [][]any) sql.Querier {
		sel := r.st.Selector(target, "t").Join(jt.Name, "j", sql.And(on...))
		for i, jc := range src {
			sel.AppendAs("j."+jc.Name, fmt.Sprintf("%s%d", ownerPrefix, i))
		}
		return sel.Where(keyPredicate(keys, chunk))
	})
	if err != nil {
		return err
	}
	groups := make(map[string][]*entity.Entity)
	for _, row := range rows {
		t, err := r.hydrate(target, row)
		if err != nil {
			return err
		}
		k := make([]any, len(src))
		for i := range src {
			k[i] = row[fmt.Sprintf("%s%d", ownerPrefix, i)]
		}
		key := batch.Key(k...)
		groups[key] = append(groups[key], t)
	}
	for i, x := range pending {
		r.fill(x, a, groups[batch.Key(tuples[i]...)])
	}
	return nil
}

// fill stores loaded items on x.
func (r *reader) fill(x *entity.Entity, a *metadata.Association, items []*entity.Entity) {
	if a.IsCollection() {
		x.Collection(a.Name).Load(items)
		return
	}
	var ref *entity.Entity
	if len(items) > 0 {
		ref = items[0]
	}
	x.LoadRef(a.Name, ref)
}

// chunked splits tuples and runs the query built for every chunk.
func (r *reader) chunked(ctx context.Context, tuples [][]any, query func([][]any) sql.Querier) ([]map[string]any, error) {
	if len(tuples) == 0 {
		return nil, nil
	}
	return batch.Run(ctx, batch.Chunk(uniqueTuples(tuples), r.st.chunk), r.parallel, func(ctx context.Context, chunk [][]any) ([]map[string]any, error) {
		return sql.QueryMaps(ctx, r.ex, query(chunk))
	})
}

// tuple reads the values of cols from x. It reports false if any is nil.
func tuple(x *entity.Entity, cols []string, value func(*entity.Entity, string) any) ([]any, bool) {
	t := make([]any, len(cols))
	for i, c := range cols {
		v := value(x, c)
		if v == nil {
			return nil, false
		}
		t[i] = v
	}
	return t, true
}

func uniqueTuples(tuples [][]any) [][]any {
	seen := make(map[string]bool, len(tuples))
	out := make([][]any, 0, len(tuples))
	for _, t := range tuples {
		k := batch.Key(t...)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

// keyPredicate matches rows whose cols equal one of the tuples.
func keyPredicate(cols []string, tuples [][]any) *sql.Predicate {
	if len(tuples) == 0 {
		return sql.False()
	}
	if len(cols) == 1 {
		vs := make([]any, len(tuples))
		for i, t := range tuples {
			vs[i] = t[0]
		}
		return sql.In(cols[0], vs...)
	}
	ors := make([]*sql.Predicate, len(tuples))
	for i, t := range tuples {
		ands := make([]*sql.Predicate, len(cols))
		for j, c := range cols {
			ands[j] = sql.EQ(c, t[j])
		}
		ors[i] = sql.And(ands...)
	}
	return sql.Or(ors...)
}
