package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/syssam/gqlmap/dialect"
	"github.com/syssam/gqlmap/dialect/sql"
	"github.com/syssam/gqlmap/dialect/sql/sqlgraph"
	"github.com/syssam/gqlmap/entity"
	"github.com/syssam/gqlmap/metadata"
)

// errDone is returned when a finished unit of work is committed again.
var errDone = errors.New("sqlstore: unit of work already finished")

type unitOfWork struct {
	reader
	tx   dialect.Tx
	done bool
}

// New returns a blank instance of e.
func (u *unitOfWork) New(e *metadata.Entity) *entity.Entity {
	return entity.New(e)
}

// Persist writes x and the pending changes reachable from it: owning
// references first, then x itself, then added collection items and
// inverse references.
func (u *unitOfWork) Persist(ctx context.Context, x *entity.Entity) error {
	return u.persist(ctx, x, make(map[*entity.Entity]bool))
}

func (u *unitOfWork) persist(ctx context.Context, x *entity.Entity, seen map[*entity.Entity]bool) error {
	if seen[x] || x.State() == entity.StateRemoved {
		return nil
	}
	seen[x] = true
	e := x.Meta()
	for _, a := range e.Associations {
		if a.IsCollection() || !a.IsOwningSide() || !x.IsChanged(a.Name) {
			continue
		}
		ref, _ := x.Ref(a.Name)
		if ref != nil {
			if err := u.persist(ctx, ref, seen); err != nil {
				return err
			}
		}
		if err := bindJoinColumns(x, a, ref); err != nil {
			return err
		}
	}
	u.st.log.Debug("persist", zap.String("entity", e.ShortName()), zap.Stringer("state", x.State()), zap.Strings("changed", x.Changed()))
	switch x.State() {
	case entity.StateNew:
		if err := u.insert(ctx, x); err != nil {
			return err
		}
	case entity.StateManaged:
		if err := u.update(ctx, x); err != nil {
			return err
		}
	}
	for _, a := range e.Associations {
		if err := u.cascade(ctx, x, a, seen); err != nil {
			return err
		}
	}
	x.SetState(entity.StateManaged)
	u.cache.Prime(identityKey(x), x)
	return nil
}

// cascade writes the inverse side and collection changes of a.
func (u *unitOfWork) cascade(ctx context.Context, x *entity.Entity, a *metadata.Association, seen map[*entity.Entity]bool) error {
	target, ok := u.st.catalog.Get(a.Target)
	if !ok {
		return fmt.Errorf("sqlstore: unknown target %q", a.Target)
	}
	switch {
	case a.Type == metadata.ManyToMany:
		for _, item := range x.Collection(a.Name).Added() {
			if err := u.persist(ctx, item, seen); err != nil {
				return err
			}
			if err := u.link(ctx, x, a, item); err != nil {
				return err
			}
		}
	case a.Type == metadata.OneToMany:
		owner, ok := target.Association(a.MappedBy)
		if !ok {
			return fmt.Errorf("sqlstore: unknown owning side %q of %s", a.MappedBy, a.Name)
		}
		for _, item := range x.Collection(a.Name).Added() {
			item.SetRef(owner.Name, x)
			if err := u.persistOwned(ctx, item, owner, x, seen); err != nil {
				return err
			}
		}
	case !a.IsOwningSide() && x.IsChanged(a.Name):
		ref, _ := x.Ref(a.Name)
		if ref == nil {
			return nil
		}
		owner, ok := target.Association(a.MappedBy)
		if !ok {
			return fmt.Errorf("sqlstore: unknown owning side %q of %s", a.MappedBy, a.Name)
		}
		ref.SetRef(owner.Name, x)
		return u.persistOwned(ctx, ref, owner, x, seen)
	}
	return nil
}

// persistOwned persists item whose owning association now points to x.
// An item already visited in this pass only gets its join columns
// written.
func (u *unitOfWork) persistOwned(ctx context.Context, item *entity.Entity, owner *metadata.Association, x *entity.Entity, seen map[*entity.Entity]bool) error {
	if !seen[item] {
		return u.persist(ctx, item, seen)
	}
	if item.State() != entity.StateManaged {
		return nil
	}
	if err := bindJoinColumns(item, owner, x); err != nil {
		return err
	}
	return u.update(ctx, item)
}

// insert writes a new row for x and reads back a generated identifier.
func (u *unitOfWork) insert(ctx context.Context, x *entity.Entity) error {
	e := x.Meta()
	ins := sql.Dialect(u.dialect()).Insert(e.TableName())
	set := make(map[string]bool)
	var generated *metadata.Field
	for _, f := range e.Fields {
		v, ok := x.Get(f.Name)
		if f.Generated && v == nil {
			generated = f
			continue
		}
		if !ok {
			continue
		}
		set[f.ColumnName()] = true
		ins.Set(f.ColumnName(), v)
	}
	for _, a := range e.Associations {
		if a.IsCollection() || !a.IsOwningSide() {
			continue
		}
		for _, jc := range a.JoinColumns {
			v, _ := x.JoinValue(jc.Name)
			if set[jc.Name] || v == nil {
				continue
			}
			set[jc.Name] = true
			ins.Set(jc.Name, v)
		}
	}
	if generated != nil && u.dialect() == dialect.Postgres {
		ins.Returning(generated.ColumnName())
		rows, err := sql.QueryMaps(ctx, u.ex, ins)
		if err != nil {
			return fmt.Errorf("sqlstore: insert %s: %w", e.ShortName(), sqlgraph.Wrap(err))
		}
		if len(rows) == 1 {
			id, err := generated.Kind.Coerce(rows[0][generated.ColumnName()])
			if err != nil {
				return fmt.Errorf("sqlstore: insert %s: %w", e.ShortName(), err)
			}
			x.Set(generated.Name, id)
		}
		return nil
	}
	res, err := sql.ExecResult(ctx, u.ex, ins)
	if err != nil {
		return fmt.Errorf("sqlstore: insert %s: %w", e.ShortName(), sqlgraph.Wrap(err))
	}
	if generated != nil {
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlstore: insert %s: last insert id: %w", e.ShortName(), err)
		}
		x.Set(generated.Name, id)
	}
	return nil
}

// update writes the changed columns of x. Identifier fields never change.
func (u *unitOfWork) update(ctx context.Context, x *entity.Entity) error {
	e := x.Meta()
	upd := sql.Dialect(u.dialect()).Update(e.TableName())
	for _, f := range e.Fields {
		if !x.IsChanged(f.Name) || e.IsIdentifier(f.Name) {
			continue
		}
		v, _ := x.Get(f.Name)
		upd.Set(f.ColumnName(), v)
	}
	for _, a := range e.Associations {
		if a.IsCollection() || !a.IsOwningSide() || !x.IsChanged(a.Name) || e.IsIdentifier(a.Name) {
			continue
		}
		for _, jc := range a.JoinColumns {
			v, _ := x.JoinValue(jc.Name)
			upd.Set(jc.Name, v)
		}
	}
	if upd.Empty() {
		return nil
	}
	if _, err := sql.ExecResult(ctx, u.ex, upd.Where(rowPredicate(x))); err != nil {
		return fmt.Errorf("sqlstore: update %s: %w", e.ShortName(), sqlgraph.Wrap(err))
	}
	return nil
}

// link inserts the join table row between x and item unless it exists.
func (u *unitOfWork) link(ctx context.Context, x *entity.Entity, a *metadata.Association, item *entity.Entity) error {
	jt, src, dst, err := u.st.catalog.LinkColumns(x.Meta(), a)
	if err != nil {
		return err
	}
	var preds []*sql.Predicate
	ins := sql.Dialect(u.dialect()).Insert(jt.Name)
	for _, jc := range src {
		v := columnValue(x, jc.ReferencedColumn)
		preds = append(preds, sql.EQ(jc.Name, v))
		ins.Set(jc.Name, v)
	}
	for _, jc := range dst {
		v := columnValue(item, jc.ReferencedColumn)
		preds = append(preds, sql.EQ(jc.Name, v))
		ins.Set(jc.Name, v)
	}
	n, err := sql.QueryInt(ctx, u.ex, sql.Dialect(u.dialect()).Select().From(jt.Name, "").Where(sql.And(preds...)).CountSelector())
	if err != nil {
		return fmt.Errorf("sqlstore: link %s: %w", a.Name, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := sql.ExecResult(ctx, u.ex, ins); err != nil {
		return fmt.Errorf("sqlstore: link %s: %w", a.Name, sqlgraph.Wrap(err))
	}
	return nil
}

// Remove deletes x together with the join table rows referencing it.
// Removing an instance that was never stored only marks it removed.
func (u *unitOfWork) Remove(ctx context.Context, x *entity.Entity) error {
	e := x.Meta()
	if x.State() != entity.StateManaged {
		x.SetState(entity.StateRemoved)
		return nil
	}
	u.st.log.Debug("remove", zap.String("entity", e.ShortName()), zap.Stringer("instance", x))
	for _, a := range e.Associations {
		if a.Type != metadata.ManyToMany {
			continue
		}
		jt, src, _, err := u.st.catalog.LinkColumns(e, a)
		if err != nil {
			return err
		}
		preds := make([]*sql.Predicate, 0, len(src))
		for _, jc := range src {
			preds = append(preds, sql.EQ(jc.Name, columnValue(x, jc.ReferencedColumn)))
		}
		if _, err := sql.ExecResult(ctx, u.ex, sql.Dialect(u.dialect()).Delete(jt.Name).Where(sql.And(preds...))); err != nil {
			return fmt.Errorf("sqlstore: unlink %s: %w", a.Name, sqlgraph.Wrap(err))
		}
	}
	del := sql.Dialect(u.dialect()).Delete(e.TableName()).Where(rowPredicate(x))
	if _, err := sql.ExecResult(ctx, u.ex, del); err != nil {
		return fmt.Errorf("sqlstore: delete %s: %w", e.ShortName(), sqlgraph.Wrap(err))
	}
	u.cache.Clear(identityKey(x))
	x.SetState(entity.StateRemoved)
	return nil
}

// Commit commits the transaction.
func (u *unitOfWork) Commit() error {
	if u.done {
		return errDone
	}
	u.done = true
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", sqlgraph.Wrap(err))
	}
	return nil
}

// Rollback rolls the transaction back. It is a no-op after Commit.
func (u *unitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	return u.tx.Rollback()
}

// bindJoinColumns copies the referenced column values of ref into the
// join columns of x.
func bindJoinColumns(x *entity.Entity, a *metadata.Association, ref *entity.Entity) error {
	for _, jc := range a.JoinColumns {
		if ref == nil {
			x.SetJoinValue(jc.Name, nil)
			continue
		}
		v := columnValue(ref, jc.ReferencedColumn)
		if v == nil {
			return fmt.Errorf("sqlstore: %s.%s references %s without %s", x.Meta().ShortName(), a.Name, ref.Meta().ShortName(), jc.ReferencedColumn)
		}
		x.SetJoinValue(jc.Name, v)
	}
	return nil
}

// rowPredicate matches the stored row of x by its identifier columns.
func rowPredicate(x *entity.Entity) *sql.Predicate {
	e := x.Meta()
	var preds []*sql.Predicate
	for _, name := range e.Identifier {
		if f, ok := e.Field(name); ok {
			v, _ := x.Get(name)
			preds = append(preds, sql.EQ(f.ColumnName(), v))
			continue
		}
		if a, ok := e.Association(name); ok {
			for _, jc := range a.JoinColumns {
				v, _ := x.JoinValue(jc.Name)
				preds = append(preds, sql.EQ(jc.Name, v))
			}
		}
	}
	return sql.And(preds...)
}
