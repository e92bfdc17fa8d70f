package graph

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/syssam/gqlmap/gqlerr"
)

// builder holds the state of one BuildSchema run: the direct type table,
// the wrapped table whose entries start as placeholders, and one visited
// set per pass.
type builder struct {
	reg      *Registry
	types    map[string]graphql.Type
	order    []graphql.Type
	wrapped  map[string]graphql.Type
	typeSeen map[string]bool
	relSeen  map[string]bool
	errs     []error
}

func newBuilder(reg *Registry) *builder {
	return &builder{
		reg:      reg,
		types:    make(map[string]graphql.Type),
		wrapped:  make(map[string]graphql.Type),
		typeSeen: make(map[string]bool),
		relSeen:  make(map[string]bool),
	}
}

// canonical returns the registered definition carrying the name of d, so
// that a stale definition reachable through a field never shadows the one
// in the registry.
func (b *builder) canonical(d Definition) Definition {
	if _, ok := d.(Wrapped); ok {
		return d
	}
	if def, ok := b.reg.Type(d.Name()); ok {
		return def
	}
	return d
}

func (b *builder) buildType(d Definition) {
	if d != nil {
		b.canonical(d).buildType(b)
	}
}

func (b *builder) buildRelations(d Definition) {
	if d != nil {
		b.canonical(d).buildRelations(b)
	}
}

// visitType marks name as visited by the first pass and reports whether
// it was unvisited.
func (b *builder) visitType(name string) bool {
	if b.typeSeen[name] {
		return false
	}
	b.typeSeen[name] = true
	return true
}

func (b *builder) visitRelations(name string) bool {
	if b.relSeen[name] {
		return false
	}
	b.relSeen[name] = true
	return true
}

func (b *builder) setType(name string, t graphql.Type) {
	b.types[name] = t
	b.order = append(b.order, t)
}

func (b *builder) placeholder(name string) {
	if _, ok := b.wrapped[name]; !ok {
		b.wrapped[name] = nil
	}
}

func (b *builder) setWrapped(name string, t graphql.Type) {
	b.wrapped[name] = t
}

// lookup returns the materialized type of name, or nil.
func (b *builder) lookup(name string) graphql.Type {
	if t, ok := b.types[name]; ok {
		return t
	}
	return b.wrapped[name]
}

// check records a configuration error if d did not materialize.
func (b *builder) check(owner, field string, d Definition) {
	if d == nil {
		b.errs = append(b.errs, gqlerr.NewConfigError(owner, fmt.Sprintf("field %q has no type", field), nil))
		return
	}
	if b.lookup(d.Name()) != nil {
		return
	}
	b.errs = append(b.errs, gqlerr.NewConfigError(owner,
		fmt.Sprintf("field %q references unknown type %q", field, Unwrap(d).Name()), nil))
}

func (b *builder) outputFields(fields []*Field) graphql.Fields {
	out := make(graphql.Fields, len(fields))
	for _, f := range fields {
		t, _ := b.lookup(f.Type.Name()).(graphql.Output)
		out[f.Name] = &graphql.Field{
			Name:        f.Name,
			Type:        t,
			Description: f.Description,
			Args:        b.args(f.Args),
			Resolve:     f.Resolve,
		}
	}
	return out
}

func (b *builder) inputFields(fields []*Field) graphql.InputObjectConfigFieldMap {
	out := make(graphql.InputObjectConfigFieldMap, len(fields))
	for _, f := range fields {
		t, _ := b.lookup(f.Type.Name()).(graphql.Input)
		out[f.Name] = &graphql.InputObjectFieldConfig{
			Type:         t,
			Description:  f.Description,
			DefaultValue: f.DefaultValue,
		}
	}
	return out
}

func (b *builder) args(args []*Argument) graphql.FieldConfigArgument {
	if len(args) == 0 {
		return nil
	}
	out := make(graphql.FieldConfigArgument, len(args))
	for _, a := range args {
		t, _ := b.lookup(a.Type.Name()).(graphql.Input)
		out[a.Name] = &graphql.ArgumentConfig{
			Type:         t,
			Description:  a.Description,
			DefaultValue: a.DefaultValue,
		}
	}
	return out
}

func (b *builder) operations(root string, ops []*Operation) graphql.Fields {
	out := make(graphql.Fields, len(ops))
	for _, op := range ops {
		for _, a := range op.Args {
			b.buildRelations(a.Type)
			b.check(root, op.Name+"("+a.Name+")", a.Type)
		}
		b.buildRelations(op.Type)
		b.check(root, op.Name, op.Type)
		if op.Type == nil {
			continue
		}
		t, _ := b.lookup(op.Type.Name()).(graphql.Output)
		out[op.Name] = &graphql.Field{
			Name:        op.Name,
			Type:        t,
			Description: op.Description,
			Args:        b.args(op.Args),
			Resolve:     op.Resolve,
		}
	}
	return out
}
