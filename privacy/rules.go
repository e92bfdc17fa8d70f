package privacy

import (
	"context"
	"fmt"
	"regexp"
	"slices"

	"github.com/syssam/gqlmap/dialect/sql"
	"github.com/syssam/gqlmap/metadata"
	"github.com/syssam/gqlmap/mutation"
	"github.com/syssam/gqlmap/query"
)

// Viewer is the caller of an operation.
type Viewer interface {
	GetID() string
	GetRoles() []string
	// GetTenantID is empty outside multi-tenant deployments.
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a copy of ctx carrying v.
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, v)
}

// ViewerFromContext returns the viewer of ctx, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a Viewer built from request headers or tests.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

func (v *SimpleViewer) GetID() string       { return v.UserID }
func (v *SimpleViewer) GetRoles() []string  { return v.Roles }
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer denies anonymous reads and writes.
func DenyIfNoViewer() QueryMutationRule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("no viewer")
		}
		return Skip
	})
}

// HasRole allows viewers holding any of roles.
func HasRole(roles ...string) QueryMutationRule {
	return ContextRule(func(ctx context.Context) error {
		v := ViewerFromContext(ctx)
		if v == nil {
			return Skip
		}
		for _, r := range v.GetRoles() {
			if slices.Contains(roles, r) {
				return Allowf("role %s", r)
			}
		}
		return Skip
	})
}

// OnQuery evaluates rule for the listed read operations (query.OpGet,
// query.OpGetMany, query.OpPage) and skips the others.
func OnQuery(rule QueryRule, ops ...string) QueryRule {
	return QueryRuleFunc(func(ctx context.Context, q query.Query) error {
		if !slices.Contains(ops, q.Op()) {
			return Skip
		}
		return rule.EvalQuery(ctx, q)
	})
}

// OnMutation evaluates rule for the writes matching op, which may combine
// several operations, and skips the others.
func OnMutation(rule MutationRule, op mutation.Op) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m mutation.Mutation) error {
		if !m.Op().Is(op) {
			return Skip
		}
		return rule.EvalMutation(ctx, m)
	})
}

// DenyMutation denies the writes matching op.
func DenyMutation(op mutation.Op) MutationRule {
	return MutationRuleFunc(func(_ context.Context, m mutation.Mutation) error {
		if m.Op().Is(op) {
			return Denyf("%s of %s", m.Op().Name(), m.Type())
		}
		return Skip
	})
}

// DenyFieldUpdates denies updates whose input assigns one of fields.
// Creates may still set them.
func DenyFieldUpdates(fields ...string) MutationRule {
	return MutationRuleFunc(func(_ context.Context, m mutation.Mutation) error {
		if !m.Op().Is(mutation.OpUpdate) {
			return Skip
		}
		for _, f := range m.Fields() {
			if slices.Contains(fields, f) {
				return Denyf("%s.%s is read-only", m.Type(), f)
			}
		}
		return Skip
	})
}

// IsOwner allows writes of instances whose field or join column name
// holds the viewer ID.
func IsOwner(name string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m mutation.Mutation) error {
		v := ViewerFromContext(ctx)
		if v == nil {
			return Skip
		}
		if owner, ok := m.Field(name); ok && owner != nil && fmt.Sprint(owner) == v.GetID() {
			return Allowf("%s owns %s", v.GetID(), m.Type())
		}
		return Skip
	})
}

// Filterable is implemented by page reads, whose statement rules may
// narrow with predicates on query.RootAlias.
type Filterable interface {
	Filter() query.Filter
}

// Searchable is implemented by page reads. Params returns the values bound
// by the filter and match arguments, keyed alias_field_i.
type Searchable interface {
	Params() (filter, match map[string]any)
}

// FilterFunc adapts a function narrowing page reads to a QueryRule. Point
// reads skip.
type FilterFunc func(context.Context, *metadata.Entity, query.Filter) error

// EvalQuery calls f with the filter of page reads.
func (f FilterFunc) EvalQuery(ctx context.Context, q query.Query) error {
	fq, ok := q.(Filterable)
	if !ok {
		return Skip
	}
	filter := fq.Filter()
	if filter == nil {
		return Skip
	}
	return f(ctx, q.Entity(), filter)
}

// FilterByViewer narrows page reads to the rows whose field, or the join
// column of a to-one association, equals value(viewer). Anonymous page
// reads are denied.
func FilterByViewer(name string, value func(Viewer) string) QueryRule {
	return FilterFunc(func(ctx context.Context, e *metadata.Entity, f query.Filter) error {
		v := ViewerFromContext(ctx)
		if v == nil {
			return Denyf("no viewer to filter %s by %s", e.ShortName(), name)
		}
		col, err := columnOf(e, name)
		if err != nil {
			return Denyf("%v", err)
		}
		id := value(v)
		f.WhereP(func(s *sql.Selector) {
			s.Where(sql.EQ(query.RootAlias+"."+col, id))
		})
		return Skip
	})
}

// OwnerFilter narrows page reads to the rows owned by the viewer.
func OwnerFilter(name string) QueryRule {
	return FilterByViewer(name, Viewer.GetID)
}

// TenantFilter narrows page reads to the rows of the viewer's tenant.
func TenantFilter(name string) QueryRule {
	return FilterByViewer(name, Viewer.GetTenantID)
}

// DenySearchOn denies page reads whose filter or match compares one of
// the root entity's fields.
func DenySearchOn(fields ...string) QueryRule {
	return QueryRuleFunc(func(_ context.Context, q query.Query) error {
		sq, ok := q.(Searchable)
		if !ok {
			return Skip
		}
		filter, match := sq.Params()
		for _, params := range []map[string]any{filter, match} {
			for key := range params {
				if f, ok := rootField(key); ok && slices.Contains(fields, f) {
					return Denyf("%s cannot be searched by %s", q.Entity().ShortName(), f)
				}
			}
		}
		return Skip
	})
}

var paramKey = regexp.MustCompile(`^` + query.RootAlias + `_(.+)_\d+$`)

// rootField returns the field of a parameter bound on the root alias.
// Joined aliases extend the root alias without a separator, so their
// parameters never match.
func rootField(key string) (string, bool) {
	m := paramKey.FindStringSubmatch(key)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// columnOf resolves a field name or a to-one association with a single
// join column to its column on the entity table.
func columnOf(e *metadata.Entity, name string) (string, error) {
	if f, ok := e.Field(name); ok {
		return f.ColumnName(), nil
	}
	if a, ok := e.Association(name); ok && !a.IsCollection() && a.IsOwningSide() && len(a.JoinColumns) == 1 {
		return a.JoinColumns[0].Name, nil
	}
	return "", fmt.Errorf("%s has no column for %q", e.ShortName(), name)
}
