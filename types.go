package gqlmap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/syssam/gqlmap/graph"
	"github.com/syssam/gqlmap/metadata"
)

// Name suffixes of the generated type family.
const (
	InputSuffix       = "Input"
	JoinInputSuffix   = "JoinInput"
	SearchSuffix      = "Search"
	SearchInputSuffix = "SearchInput"
	SortSuffix        = "Sort"
	SortInputSuffix   = "SortInput"
	PageSuffix        = "Page"
)

// family is the type family generated for one entity.
type family struct {
	entity      *metadata.Entity
	name        string
	object      *graph.Object
	input       *graph.Input
	search      *graph.Object
	searchInput *graph.Input
	sort        *graph.Object
	sortInput   *graph.Input
	page        *graph.Object
	// join references a stored row by its identifier. It is nil when no
	// identifier field could be mapped.
	join *graph.Input
}

// BuildTypes registers the type family of every concrete entity and then
// wires the association fields, once every family exists.
func (b *Builder) BuildTypes(ctx context.Context) error {
	for _, e := range b.catalog.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.registerEntityType(e)
	}
	for _, f := range b.order {
		b.registerJoinInput(f)
	}
	for _, e := range b.catalog.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.registerRelationships(e)
	}
	return nil
}

// registerEntityType registers the object, input, search, sort and page
// types of e with one field per mappable scalar field. Entities without
// such a field get no types.
func (b *Builder) registerEntityType(e *metadata.Entity) {
	if e.Abstract {
		b.log.Debug("skip abstract entity", zap.String("entity", e.Name))
		return
	}
	name := b.names.Generate(e.Name)
	f := &family{
		entity:      e,
		name:        name,
		object:      graph.NewObject(name, fmt.Sprintf("Entity %s type", e.Name)),
		input:       graph.NewInput(name+InputSuffix, fmt.Sprintf("Entity %s input", e.Name)),
		search:      graph.NewObject(name+SearchSuffix, fmt.Sprintf("Entity %s pagination search type", e.Name)),
		searchInput: graph.NewInput(name+SearchInputSuffix, fmt.Sprintf("Entity %s search input", e.Name)),
		sort:        graph.NewObject(name+SortSuffix, fmt.Sprintf("Entity %s pagination sort type", e.Name)),
		sortInput:   graph.NewInput(name+SortInputSuffix, fmt.Sprintf("Entity %s sort input", e.Name)),
		page:        graph.NewObject(name+PageSuffix, fmt.Sprintf("Entity %s paginated list result", e.Name)),
		join:        graph.NewInput(name+JoinInputSuffix, fmt.Sprintf("Entity %s reference", e.Name)),
	}
	filter := b.builtin(graph.SearchFilterName)
	filterInput := b.builtin(graph.SearchFilterInputName)
	orientation := b.builtin(graph.SortingOrientationName)
	for _, field := range e.Fields {
		typ, ok := b.reg.MapScalarKind(field.Kind, field.Nullable, false)
		if !ok {
			b.log.Warn("skip field of unmapped kind",
				zap.String("entity", e.Name), zap.String("field", field.Name), zap.String("kind", string(field.Kind)))
			continue
		}
		optional, _ := b.reg.MapScalarKind(field.Kind, true, false)
		f.object.AddField(&graph.Field{Name: field.Name, Type: typ, Resolve: b.resolver.Field})
		in := typ
		if field.Generated {
			in = optional
		}
		f.input.AddField(&graph.Field{Name: field.Name, Type: in})
		f.search.AddField(&graph.Field{Name: field.Name, Type: b.reg.ListOf(filter)})
		f.searchInput.AddField(&graph.Field{Name: field.Name, Type: b.reg.ListOf(filterInput)})
		f.sort.AddField(&graph.Field{Name: field.Name, Type: orientation})
		f.sortInput.AddField(&graph.Field{Name: field.Name, Type: orientation})
		if e.IsIdentifier(field.Name) {
			f.join.AddField(&graph.Field{Name: field.Name, Type: optional})
		}
	}
	if len(f.object.Fields()) == 0 {
		b.log.Warn("skip entity without mappable fields", zap.String("entity", e.Name))
		return
	}
	integer := b.builtin("Int")
	f.page.
		AddField(&graph.Field{Name: "total", Type: integer, Resolve: b.resolver.Field}).
		AddField(&graph.Field{Name: "page", Type: b.reg.NonNullOf(integer), Resolve: b.resolver.Field}).
		AddField(&graph.Field{Name: "limit", Type: b.reg.NonNullOf(integer), Resolve: b.resolver.Field}).
		AddField(&graph.Field{Name: "sort", Type: f.sort, Resolve: b.resolver.Field}).
		AddField(&graph.Field{Name: "filter", Type: f.search, Resolve: b.resolver.Field}).
		AddField(&graph.Field{Name: "match", Type: f.search, Resolve: b.resolver.Field}).
		AddField(&graph.Field{Name: "items", Type: b.reg.ListOf(f.object), Resolve: b.resolver.Field})
	b.reg.
		AddType(f.object).
		AddType(f.input).
		AddType(f.search).
		AddType(f.searchInput).
		AddType(f.sort).
		AddType(f.sortInput).
		AddType(f.page)
	b.families[e.Name] = f
	b.order = append(b.order, f)
	b.log.Debug("register entity", zap.String("entity", e.Name), zap.String("type", name), zap.Int("fields", len(f.object.Fields())))
}

// registerJoinInput completes the join input of f with its association
// identifiers and registers it if it has any field.
func (b *Builder) registerJoinInput(f *family) {
	for _, id := range f.entity.Identifier {
		a, ok := f.entity.Association(id)
		if !ok {
			continue
		}
		if t, ok := b.families[a.Target]; ok && t.join != nil {
			f.join.AddField(&graph.Field{Name: a.Name, Type: t.join})
		}
	}
	if len(f.join.Fields()) == 0 {
		b.log.Warn("entity has no mappable identifier", zap.String("entity", f.entity.Name))
		f.join = nil
		return
	}
	b.reg.AddType(f.join)
}

// registerRelationships adds the association fields of e whose target
// has a type family: to the object type, to the search input, and for
// owning sides to the input as references.
func (b *Builder) registerRelationships(e *metadata.Entity) {
	f, ok := b.families[e.Name]
	if !ok {
		return
	}
	for _, a := range e.Associations {
		t, ok := b.families[a.Target]
		if !ok {
			b.log.Debug("skip association without target type",
				zap.String("entity", e.Name), zap.String("association", a.Name), zap.String("target", a.Target))
			continue
		}
		var typ graph.Definition = t.object
		if a.IsCollection() {
			typ = b.reg.ListOf(typ)
		}
		if !b.catalog.Nullable(e, a) {
			typ = b.reg.NonNullOf(typ)
		}
		f.object.AddField(&graph.Field{Name: a.Name, Type: typ, Resolve: b.resolver.Field})
		f.searchInput.AddField(&graph.Field{Name: a.Name, Type: t.searchInput})
		if a.IsOwningSide() && t.join != nil {
			var in graph.Definition = t.join
			if a.IsCollection() {
				in = b.reg.ListOf(in)
			}
			f.input.AddField(&graph.Field{Name: a.Name, Type: in})
		}
	}
}

// builtin returns a type registered by graph.NewRegistry.
func (b *Builder) builtin(name string) graph.Definition {
	if def, ok := b.reg.Type(name); ok {
		return def
	}
	return graph.Ref(name)
}
