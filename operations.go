package gqlmap

import (
	"context"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/syssam/gqlmap/entity"
	"github.com/syssam/gqlmap/graph"
	"github.com/syssam/gqlmap/mutation"
	"github.com/syssam/gqlmap/privacy"
	"github.com/syssam/gqlmap/query"
)

// BuildQueries registers get{N}, getMany{N} and get{N}Page for every
// entity with a type family.
func (b *Builder) BuildQueries(ctx context.Context) error {
	for _, f := range b.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		qm := b.queryManager(f)
		ids, lists := b.identifierArgs(f)
		b.reg.AddQuery(&graph.Operation{
			Name:        "get" + f.name,
			Description: "Get single " + f.name,
			Type:        f.object,
			Args:        ids,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return result(qm.Get(p.Context, p.Args))
			},
		})
		b.reg.AddQuery(&graph.Operation{
			Name:        "getMany" + f.name,
			Description: "Get every " + f.name + " whose identifier is listed",
			Type:        b.reg.ListOf(f.object),
			Args:        lists,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				xs, err := qm.GetMany(p.Context, p.Args)
				if err != nil {
					return nil, err
				}
				if err := b.resolver.Prefetch(p, xs); err != nil {
					return nil, err
				}
				return xs, nil
			},
		})
		integer := b.reg.NonNullOf(b.builtin("Int"))
		b.reg.AddQuery(&graph.Operation{
			Name:        "get" + f.name + PageSuffix,
			Description: "Get a page of " + f.name,
			Type:        f.page,
			Args: []*graph.Argument{
				{Name: "page", Type: integer},
				{Name: "limit", Type: integer},
				{Name: "sort", Type: f.sortInput},
				{Name: "match", Type: f.searchInput},
				{Name: "filter", Type: f.searchInput},
			},
			Resolve: b.pageResolver(f, qm),
		})
	}
	b.log.Debug("queries registered", zap.Int("entities", len(b.order)))
	return nil
}

// BuildMutations registers create{N}, update{N} and delete{N} for every
// entity with a type family.
func (b *Builder) BuildMutations(ctx context.Context) error {
	for _, f := range b.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		mm := b.mutationManager(f)
		input := []*graph.Argument{{Name: "input", Type: b.reg.NonNullOf(f.input)}}
		ids, _ := b.identifierArgs(f)
		b.reg.AddMutation(&graph.Operation{
			Name:        "create" + f.name,
			Description: "Creates new " + f.name,
			Type:        f.object,
			Args:        input,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				in, _ := p.Args["input"].(map[string]any)
				return result(mm.Create(p.Context, in))
			},
		})
		b.reg.AddMutation(&graph.Operation{
			Name:        "update" + f.name,
			Description: "Updates " + f.name,
			Type:        f.object,
			Args:        input,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				in, _ := p.Args["input"].(map[string]any)
				return result(mm.Update(p.Context, in))
			},
		})
		b.reg.AddMutation(&graph.Operation{
			Name:        "delete" + f.name,
			Description: "Deletes a " + f.name,
			Type:        f.object,
			Args:        ids,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return result(mm.Delete(p.Context, p.Args))
			},
		})
	}
	b.log.Debug("mutations registered", zap.Int("entities", len(b.order)))
	return nil
}

// identifierArgs returns the arguments selecting one instance of f and
// the list arguments selecting many. Scalar identifiers take their
// non-null scalar, association identifiers the join input of their
// target.
func (b *Builder) identifierArgs(f *family) (one, many []*graph.Argument) {
	for _, id := range f.entity.Identifier {
		var typ graph.Definition
		if field, ok := f.entity.Field(id); ok {
			typ, _ = b.reg.MapScalarKind(field.Kind, false, false)
		} else if a, ok := f.entity.Association(id); ok {
			if t, ok := b.families[a.Target]; ok && t.join != nil {
				typ = b.reg.NonNullOf(t.join)
			}
		}
		if typ == nil {
			b.log.Warn("skip unmappable identifier", zap.String("entity", f.entity.Name), zap.String("identifier", id))
			continue
		}
		one = append(one, &graph.Argument{Name: id, Type: typ})
		many = append(many, &graph.Argument{Name: id, Type: b.reg.NonNullOf(b.reg.ListOf(typ))})
	}
	return one, many
}

func (b *Builder) queryManager(f *family) *query.Manager {
	opts := []query.Option{
		query.WithSearch(f.searchInput),
		query.WithMaxLimit(b.maxLimit),
		query.WithLogger(b.log),
	}
	if p, ok := b.policies[f.entity.Name]; ok {
		opts = append(opts, query.WithGuard(privacy.Guard(p)))
	}
	return query.NewManager(b.store, b.reg, f.entity, opts...)
}

func (b *Builder) mutationManager(f *family) *mutation.Manager {
	listener := b.listener
	if p, ok := b.policies[f.entity.Name]; ok {
		listener = mutation.Listeners{privacy.Listener(p), b.listener}
	}
	return mutation.NewManager(b.store, f.entity, mutation.WithListener(listener), mutation.WithLogger(b.log))
}

// pageResolver runs get{N}Page. The total is counted only when selected.
func (b *Builder) pageResolver(f *family, qm *query.Manager) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		page, _ := p.Args["page"].(int)
		limit, _ := p.Args["limit"].(int)
		sort, _ := p.Args["sort"].(map[string]any)
		filter, _ := p.Args["filter"].(map[string]any)
		match, _ := p.Args["match"].(map[string]any)
		res, err := qm.Page(p.Context, query.PageArgs{
			Page:   page,
			Limit:  limit,
			Sort:   query.SortFields(p.Info, "sort", sort, f.sortInput),
			Filter: filter,
			Match:  match,
		}, query.Selected(p.Info, "total"))
		if err != nil {
			return nil, err
		}
		return res, nil
	}
}

// result turns a missing instance into a GraphQL null.
func result(x *entity.Entity, err error) (any, error) {
	if err != nil || x == nil {
		return nil, err
	}
	return x, nil
}
