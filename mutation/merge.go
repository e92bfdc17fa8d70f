package mutation

import (
	"context"
	"fmt"

	"github.com/syssam/gqlmap/entity"
	"github.com/syssam/gqlmap/gqlerr"
	"github.com/syssam/gqlmap/metadata"
	"github.com/syssam/gqlmap/store"
)

// MergeDeep assigns input onto x. Scalar values are converted to the kind
// of their field. Identifier fields of a stored instance are left alone.
// Association values are merged onto the related instance found by the
// identifier fields they carry, or onto a new one, which is then attached
// to x. Keys that name neither a field nor an association are ignored.
func (m *Manager) MergeDeep(ctx context.Context, uow store.UnitOfWork, x *entity.Entity, input map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := x.Meta()
	stored := x.State() == entity.StateManaged
	for _, f := range e.Fields {
		v, ok := input[f.Name]
		if !ok || (stored && e.IsIdentifier(f.Name)) {
			continue
		}
		cv, err := f.Kind.Coerce(v)
		if err != nil {
			return gqlerr.NewValidationError(f.Name, err)
		}
		if cv == nil && !f.Nullable && !f.Generated {
			return gqlerr.NewValidationError(f.Name, fmt.Errorf("%s.%s is not nullable", e.ShortName(), f.Name))
		}
		x.Set(f.Name, cv)
	}
	for _, a := range e.Associations {
		v, ok := input[a.Name]
		if !ok || (stored && e.IsIdentifier(a.Name)) {
			continue
		}
		target, ok := m.store.Catalog().Get(a.Target)
		if !ok {
			return gqlerr.NewConfigError(e.Name, fmt.Sprintf("unknown target %q of %s", a.Target, a.Name), nil)
		}
		if a.IsCollection() {
			if err := m.mergeCollection(ctx, uow, x, a, target, v); err != nil {
				return err
			}
			continue
		}
		if v == nil {
			x.SetRef(a.Name, nil)
			continue
		}
		fragment, ok := v.(map[string]any)
		if !ok {
			return gqlerr.NewValidationError(a.Name, fmt.Errorf("expected an object, got %T", v))
		}
		ref, err := m.lookupOrCreate(ctx, uow, target, fragment)
		if err != nil {
			return err
		}
		if err := m.MergeDeep(ctx, uow, ref, fragment); err != nil {
			return err
		}
		x.SetRef(a.Name, ref)
	}
	return nil
}

func (m *Manager) mergeCollection(ctx context.Context, uow store.UnitOfWork, x *entity.Entity, a *metadata.Association, target *metadata.Entity, v any) error {
	if v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return gqlerr.NewValidationError(a.Name, fmt.Errorf("expected a list, got %T", v))
	}
	for _, child := range list {
		fragment, ok := child.(map[string]any)
		if !ok {
			return gqlerr.NewValidationError(a.Name, fmt.Errorf("expected an object, got %T", child))
		}
		item, err := m.lookupOrCreate(ctx, uow, target, fragment)
		if err != nil {
			return err
		}
		if err := m.MergeDeep(ctx, uow, item, fragment); err != nil {
			return err
		}
		x.Collection(a.Name).Add(item)
	}
	return nil
}

// lookupOrCreate returns the stored instance of e whose identifier equals
// the identifier fields of fragment. A fragment without a complete
// identifier, or one matching no row, yields a new instance; MergeDeep
// then assigns the given identifier values to it.
func (m *Manager) lookupOrCreate(ctx context.Context, uow store.UnitOfWork, e *metadata.Entity, fragment map[string]any) (*entity.Entity, error) {
	ids := make(map[string]any, len(e.Identifier))
	for _, name := range e.Identifier {
		if v, ok := fragment[name]; ok && v != nil {
			ids[name] = v
		}
	}
	if len(ids) == 0 || len(ids) < len(e.Identifier) {
		return uow.New(e), nil
	}
	x, err := uow.FindOne(ctx, e, ids)
	if err != nil {
		return nil, err
	}
	if x == nil {
		return uow.New(e), nil
	}
	return x, nil
}
