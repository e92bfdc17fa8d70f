package gen

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/gqlmap/gqlerr"
	"github.com/syssam/gqlmap/graph"
	"github.com/syssam/gqlmap/naming"
)

// TypeKind classifies a generated type.
type TypeKind int

// Generated type kinds.
const (
	KindObject TypeKind = iota + 1
	KindInput
	KindEnum
)

// Graph is the generator input derived from a registry.
type Graph struct {
	Types      []*Type
	Operations []*Operation
	// SDL is the printed schema.
	SDL string

	reg *graph.Registry
}

// Type is a named object, input or enum type.
type Type struct {
	Name        string
	Description string
	Kind        TypeKind
	Fields      []*Field
	// Values holds the symbols of an enum.
	Values []string
}

// Field is a field of an object or input type, or an argument of an
// operation.
type Field struct {
	Name   string
	GoName string
	Def    graph.Definition
}

// Operation is a root query or mutation.
type Operation struct {
	Name        string
	GoName      string
	Description string
	Mutation    bool
	Args        []*Field
	Result      graph.Definition
	// Document is the GraphQL request running the operation.
	Document string
}

// reserved are the identifiers of the generated client runtime.
var reserved = []string{"Client", "Error", "Errors", "New"}

// LoadOption configures Load.
type LoadOption func(*loader)

// WithDepth sets how many levels of object fields the generated selection
// sets follow below the operation result. The default is 1.
func WithDepth(n int) LoadOption {
	return func(l *loader) {
		if n >= 0 {
			l.depth = n
		}
	}
}

type loader struct {
	reg   *graph.Registry
	depth int
}

// Load derives the generator graph of reg.
func Load(reg *graph.Registry, opts ...LoadOption) (*Graph, error) {
	l := &loader{reg: reg, depth: 1}
	for _, opt := range opts {
		opt(l)
	}
	g := &Graph{reg: reg}
	for _, def := range reg.Types() {
		t, err := l.typ(def)
		if err != nil {
			return nil, err
		}
		if t != nil {
			g.Types = append(g.Types, t)
		}
	}
	for _, op := range reg.Queries() {
		o, err := l.operation(op, false)
		if err != nil {
			return nil, err
		}
		g.Operations = append(g.Operations, o)
	}
	for _, op := range reg.Mutations() {
		o, err := l.operation(op, true)
		if err != nil {
			return nil, err
		}
		g.Operations = append(g.Operations, o)
	}
	sdl, err := reg.SDL()
	if err != nil {
		return nil, err
	}
	g.SDL = sdl
	return g, nil
}

// Type returns the generated type with the given GraphQL name.
func (g *Graph) Type(name string) (*Type, bool) {
	for _, t := range g.Types {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

func (l *loader) typ(def graph.Definition) (*Type, error) {
	var t *Type
	switch d := def.(type) {
	case *graph.Object:
		t = &Type{Name: d.Name(), Description: d.Description(), Kind: KindObject, Fields: fields(d.Fields())}
	case *graph.Input:
		t = &Type{Name: d.Name(), Description: d.Description(), Kind: KindInput, Fields: fields(d.Fields())}
	case *graph.Enum:
		t = &Type{Name: d.Name(), Description: d.Description(), Kind: KindEnum}
		for _, v := range d.Values() {
			t.Values = append(t.Values, v.Name)
		}
	default:
		return nil, nil
	}
	if slices.Contains(reserved, t.Name) {
		return nil, gqlerr.NewConfigError(t.Name, "name is reserved by the generated client", nil)
	}
	for _, f := range t.Fields {
		if _, err := l.named(f.Def); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name, f.Name, err)
		}
	}
	return t, nil
}

func fields(fs []*graph.Field) []*Field {
	out := make([]*Field, 0, len(fs))
	for _, f := range fs {
		out = append(out, &Field{Name: f.Name, GoName: GoName(f.Name), Def: f.Type})
	}
	return out
}

func (l *loader) operation(op *graph.Operation, mutation bool) (*Operation, error) {
	o := &Operation{
		Name:        op.Name,
		GoName:      GoName(op.Name),
		Description: op.Description,
		Mutation:    mutation,
		Result:      op.Type,
	}
	for _, a := range op.Args {
		o.Args = append(o.Args, &Field{Name: a.Name, GoName: GoName(a.Name), Def: a.Type})
	}
	sel, err := l.selection(op.Type, l.depth)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op.Name, err)
	}
	var b strings.Builder
	if mutation {
		b.WriteString("mutation ")
	} else {
		b.WriteString("query ")
	}
	b.WriteString(o.GoName)
	if len(o.Args) > 0 {
		b.WriteByte('(')
		for i, a := range o.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%s: %s", a.Name, a.Def.Name())
		}
		b.WriteByte(')')
	}
	b.WriteString(" { ")
	b.WriteString(op.Name)
	if len(o.Args) > 0 {
		b.WriteByte('(')
		for i, a := range o.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: $%s", a.Name, a.Name)
		}
		b.WriteByte(')')
	}
	b.WriteString(sel)
	b.WriteString(" }")
	o.Document = b.String()
	return o, nil
}

// named resolves the named type under the modifiers of d.
func (l *loader) named(d graph.Definition) (graph.Definition, error) {
	d = graph.Unwrap(d)
	if ref, ok := d.(graph.Ref); ok {
		def, ok := l.reg.Type(ref.Name())
		if !ok {
			return nil, gqlerr.NewConfigError(ref.Name(), "unknown type", nil)
		}
		return def, nil
	}
	return d, nil
}

// selection returns the selection set of d, empty for leaf types. Object
// fields are followed depth levels down; fields requiring arguments are
// never selected.
func (l *loader) selection(d graph.Definition, depth int) (string, error) {
	def, err := l.named(d)
	if err != nil {
		return "", err
	}
	obj, ok := def.(*graph.Object)
	if !ok {
		return "", nil
	}
	var parts []string
	for _, f := range obj.Fields() {
		if requiresArgs(f) {
			continue
		}
		fd, err := l.named(f.Type)
		if err != nil {
			return "", err
		}
		if _, ok := fd.(*graph.Object); !ok {
			parts = append(parts, f.Name)
			continue
		}
		if depth == 0 {
			continue
		}
		sub, err := l.selection(fd, depth-1)
		if err != nil {
			return "", err
		}
		if sub != "" {
			parts = append(parts, f.Name+sub)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " { " + strings.Join(parts, " ") + " }", nil
}

func requiresArgs(f *graph.Field) bool {
	for _, a := range f.Args {
		if graph.IsNonNull(a.Type) && a.DefaultValue == nil {
			return true
		}
	}
	return false
}

// GoName returns the exported Go identifier of a GraphQL name.
//
//	GoName("id")           // ID
//	GoName("getUserPage")  // GetUserPage
func GoName(s string) string {
	if strings.EqualFold(s, "id") {
		return "ID"
	}
	s = naming.Pascal(s)
	if strings.HasSuffix(s, "Id") {
		s = strings.TrimSuffix(s, "Id") + "ID"
	}
	return s
}
