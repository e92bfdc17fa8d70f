// Package resolver provides the field resolver shared by every generated
// object type.
package resolver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/graphql-go/graphql"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/syssam/gqlmap/entity"
	"github.com/syssam/gqlmap/query"
)

// Loader reads the stored state of an association for many instances of
// the same kind at once.
type Loader interface {
	Load(ctx context.Context, assoc string, xs ...*entity.Entity) error
}

// Getter is a source that exposes its fields by name, such as a page
// result.
type Getter interface {
	Get(name string) (any, bool)
}

// Resolver reads the field named by the resolve info from its source.
type Resolver struct {
	table  *entity.Table
	loader Loader
	log    *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) {
		r.log = log
	}
}

// New returns a resolver reading entities through t. Unloaded
// associations of stored instances are read through l; a nil loader
// leaves them empty.
func New(t *entity.Table, l Loader, opts ...Option) *Resolver {
	r := &Resolver{table: t, loader: l, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Field is a graphql.FieldResolveFn. An entity source is read through its
// accessor table. A collection source fans out: the result holds the
// field of every member, in order. Lists of entities returned by the
// field have the associations selected below it loaded in one batch.
func (r *Resolver) Field(p graphql.ResolveParams) (any, error) {
	v, err := r.resolve(p.Context, p.Source, p.Info.FieldName)
	if err != nil {
		return nil, err
	}
	if xs, ok := v.([]*entity.Entity); ok {
		if err := r.Prefetch(p, xs); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Prefetch loads the associations selected below the field resolved by p
// for every instance of xs. Root resolvers returning lists call it so
// that nested associations are read in one batch.
func (r *Resolver) Prefetch(p graphql.ResolveParams, xs []*entity.Entity) error {
	if len(xs) == 0 {
		return nil
	}
	return r.prefetch(p.Context, query.SelectedFields(p.Info), xs)
}

func (r *Resolver) resolve(ctx context.Context, src any, name string) (any, error) {
	switch src := src.(type) {
	case nil:
		return nil, nil
	case *entity.Entity:
		return r.entity(ctx, src, name)
	case *entity.Collection:
		return r.many(ctx, src.Items(), name)
	case []*entity.Entity:
		return r.many(ctx, src, name)
	case Getter:
		v, _ := src.Get(name)
		return output(v), nil
	case map[string]any:
		return output(src[name]), nil
	}
	return nil, fmt.Errorf("resolver: cannot read %q from %T", name, src)
}

func (r *Resolver) entity(ctx context.Context, x *entity.Entity, name string) (any, error) {
	acc, ok := r.table.Lookup(x.Meta().Name, name)
	if !ok {
		return nil, nil
	}
	if acc.Assoc != nil && r.pending(x, name) {
		if err := r.loader.Load(ctx, name, x); err != nil {
			return nil, fmt.Errorf("resolver: load %s.%s: %w", x.Meta().ShortName(), name, err)
		}
	}
	switch v := acc.Get(x).(type) {
	case *entity.Collection:
		return v.Items(), nil
	case *entity.Entity:
		return v, nil
	case nil:
		return nil, nil
	default:
		return output(v), nil
	}
}

func (r *Resolver) many(ctx context.Context, xs []*entity.Entity, name string) (any, error) {
	if err := r.prefetch(ctx, []string{name}, xs); err != nil {
		return nil, err
	}
	out := make([]any, 0, len(xs))
	for _, x := range xs {
		v, err := r.entity(ctx, x, name)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// prefetch loads each named association of the pending members of xs
// with one Load call per association and entity kind.
func (r *Resolver) prefetch(ctx context.Context, names []string, xs []*entity.Entity) error {
	if r.loader == nil {
		return nil
	}
	for _, name := range names {
		byKind := make(map[string][]*entity.Entity)
		var kinds []string
		for _, x := range xs {
			if x == nil || !x.Meta().HasAssociation(name) || !r.pending(x, name) {
				continue
			}
			kind := x.Meta().Name
			if _, ok := byKind[kind]; !ok {
				kinds = append(kinds, kind)
			}
			byKind[kind] = append(byKind[kind], x)
		}
		for _, kind := range kinds {
			r.log.Debug("prefetch", zap.String("entity", kind), zap.String("association", name), zap.Int("instances", len(byKind[kind])))
			if err := r.loader.Load(ctx, name, byKind[kind]...); err != nil {
				return fmt.Errorf("resolver: load %s: %w", name, err)
			}
		}
	}
	return nil
}

func (r *Resolver) pending(x *entity.Entity, name string) bool {
	return r.loader != nil && x.State() == entity.StateManaged && !x.Loaded(name)
}

// output converts storage values into values the built-in scalars
// serialize.
func output(v any) any {
	switch v := v.(type) {
	case decimal.Decimal:
		return v.InexactFloat64()
	case uuid.UUID:
		return v.String()
	case []*entity.Entity, *entity.Entity:
		return v
	case *entity.Collection:
		return v.Items()
	}
	return v
}
