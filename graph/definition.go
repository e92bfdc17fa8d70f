package graph

import (
	"github.com/graphql-go/graphql"
)

// Definition is a deferred, name-addressed GraphQL type. Definitions are
// mutable until the registry materializes them with BuildSchema.
type Definition interface {
	// Name returns the GraphQL name of the type. Wrapped definitions
	// return the decorated name, e.g. [User] or User!.
	Name() string

	buildType(b *builder)
	buildRelations(b *builder)
}

// Wrapped is implemented by the List and NonNull modifiers. Wrapped
// definitions never enter the direct type table.
type Wrapped interface {
	Definition
	OfType() Definition
}

// Unwrap strips every List and NonNull modifier from d.
func Unwrap(d Definition) Definition {
	for {
		w, ok := d.(Wrapped)
		if !ok {
			return d
		}
		d = w.OfType()
	}
}

// IsNonNull reports if d is wrapped in NonNull at the top level.
func IsNonNull(d Definition) bool {
	_, ok := d.(*NonNull)
	return ok
}

// IsList reports if d is a list, possibly non-null.
func IsList(d Definition) bool {
	if nn, ok := d.(*NonNull); ok {
		d = nn.of
	}
	_, ok := d.(*List)
	return ok
}

// =============================================================================
// Leaf types
// =============================================================================

// Scalar wraps a concrete graphql-go scalar.
type Scalar struct {
	typ *graphql.Scalar
}

// NewScalar returns a scalar definition backed by typ.
func NewScalar(typ *graphql.Scalar) *Scalar {
	return &Scalar{typ: typ}
}

// Name implements Definition.
func (s *Scalar) Name() string { return s.typ.Name() }

// Type returns the backing scalar.
func (s *Scalar) Type() *graphql.Scalar { return s.typ }

func (s *Scalar) buildType(b *builder) {
	if b.visitType(s.Name()) {
		b.setType(s.Name(), s.typ)
	}
}

func (s *Scalar) buildRelations(*builder) {}

// EnumValue is one symbol of an enum.
type EnumValue struct {
	Name        string
	Value       any
	Description string
}

// Enum is an enumeration type. Values keep their declaration order.
type Enum struct {
	name        string
	description string
	values      []EnumValue
}

// NewEnum returns an enum definition.
func NewEnum(name, description string, values ...EnumValue) *Enum {
	return &Enum{name: name, description: description, values: values}
}

// Name implements Definition.
func (e *Enum) Name() string { return e.name }

// Description returns the enum description.
func (e *Enum) Description() string { return e.description }

// Values returns the enum values in declaration order.
func (e *Enum) Values() []EnumValue { return e.values }

// Lookup returns the internal value of the symbol name.
func (e *Enum) Lookup(name string) (any, bool) {
	for _, v := range e.values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return nil, false
}

func (e *Enum) buildType(b *builder) {
	if !b.visitType(e.name) {
		return
	}
	values := make(graphql.EnumValueConfigMap, len(e.values))
	for _, v := range e.values {
		values[v.Name] = &graphql.EnumValueConfig{Value: v.Value, Description: v.Description}
	}
	b.setType(e.name, graphql.NewEnum(graphql.EnumConfig{
		Name:        e.name,
		Description: e.description,
		Values:      values,
	}))
}

func (e *Enum) buildRelations(*builder) {}

// =============================================================================
// Composite types
// =============================================================================

// Argument is an argument of an object field or a root operation.
type Argument struct {
	Name         string
	Type         Definition
	Description  string
	DefaultValue any
}

// Field is a field of an object or input type.
type Field struct {
	Name         string
	Type         Definition
	Description  string
	Args         []*Argument
	Resolve      graphql.FieldResolveFn
	DefaultValue any
}

// fieldSet is an insertion ordered set of fields keyed by name. Adding an
// existing name replaces the field in place.
type fieldSet struct {
	fields []*Field
	index  map[string]int
}

func (s *fieldSet) add(f *Field) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[f.Name]; ok {
		s.fields[i] = f
		return
	}
	s.index[f.Name] = len(s.fields)
	s.fields = append(s.fields, f)
}

func (s *fieldSet) get(name string) (*Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.fields[i], true
}

func (s *fieldSet) remove(name string) {
	i, ok := s.index[name]
	if !ok {
		return
	}
	s.fields = append(s.fields[:i], s.fields[i+1:]...)
	delete(s.index, name)
	for j := i; j < len(s.fields); j++ {
		s.index[s.fields[j].Name] = j
	}
}

// Object is an output object type whose fields may be added after
// construction, which is how association fields get wired.
type Object struct {
	name        string
	description string
	set         fieldSet
}

// NewObject returns an object definition with the given fields.
func NewObject(name, description string, fields ...*Field) *Object {
	o := &Object{name: name, description: description}
	for _, f := range fields {
		o.set.add(f)
	}
	return o
}

// Name implements Definition.
func (o *Object) Name() string { return o.name }

// Description returns the object description.
func (o *Object) Description() string { return o.description }

// AddField adds or replaces a field.
func (o *Object) AddField(f *Field) *Object {
	o.set.add(f)
	return o
}

// RemoveField removes the named field if present.
func (o *Object) RemoveField(name string) *Object {
	o.set.remove(name)
	return o
}

// Field returns the named field.
func (o *Object) Field(name string) (*Field, bool) { return o.set.get(name) }

// Fields returns the fields in insertion order.
func (o *Object) Fields() []*Field { return o.set.fields }

func (o *Object) buildType(b *builder) {
	if !b.visitType(o.name) {
		return
	}
	for _, f := range o.set.fields {
		b.buildType(f.Type)
		for _, a := range f.Args {
			b.buildType(a.Type)
		}
	}
	b.setType(o.name, graphql.NewObject(graphql.ObjectConfig{
		Name:        o.name,
		Description: o.description,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return b.outputFields(o.set.fields)
		}),
	}))
}

func (o *Object) buildRelations(b *builder) {
	if !b.visitRelations(o.name) {
		return
	}
	for _, f := range o.set.fields {
		b.buildRelations(f.Type)
		b.check(o.name, f.Name, f.Type)
		for _, a := range f.Args {
			b.buildRelations(a.Type)
			b.check(o.name, f.Name+"("+a.Name+")", a.Type)
		}
	}
}

// Input is an input object type.
type Input struct {
	name        string
	description string
	set         fieldSet
}

// NewInput returns an input definition with the given fields.
func NewInput(name, description string, fields ...*Field) *Input {
	in := &Input{name: name, description: description}
	for _, f := range fields {
		in.set.add(f)
	}
	return in
}

// Name implements Definition.
func (in *Input) Name() string { return in.name }

// Description returns the input description.
func (in *Input) Description() string { return in.description }

// AddField adds or replaces a field.
func (in *Input) AddField(f *Field) *Input {
	in.set.add(f)
	return in
}

// RemoveField removes the named field if present.
func (in *Input) RemoveField(name string) *Input {
	in.set.remove(name)
	return in
}

// Field returns the named field.
func (in *Input) Field(name string) (*Field, bool) { return in.set.get(name) }

// Fields returns the fields in insertion order.
func (in *Input) Fields() []*Field { return in.set.fields }

func (in *Input) buildType(b *builder) {
	if !b.visitType(in.name) {
		return
	}
	for _, f := range in.set.fields {
		b.buildType(f.Type)
	}
	b.setType(in.name, graphql.NewInputObject(graphql.InputObjectConfig{
		Name:        in.name,
		Description: in.description,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			return b.inputFields(in.set.fields)
		}),
	}))
}

func (in *Input) buildRelations(b *builder) {
	if !b.visitRelations(in.name) {
		return
	}
	for _, f := range in.set.fields {
		b.buildRelations(f.Type)
		b.check(in.name, f.Name, f.Type)
	}
}

// =============================================================================
// Modifiers and references
// =============================================================================

// List wraps a definition in a list.
type List struct {
	of Definition
}

// NewList returns a list of of.
func NewList(of Definition) *List { return &List{of: of} }

// Name implements Definition.
func (l *List) Name() string { return "[" + l.of.Name() + "]" }

// OfType implements Wrapped.
func (l *List) OfType() Definition { return l.of }

func (l *List) buildType(b *builder) {
	if b.visitType(l.Name()) {
		b.buildType(l.of)
		b.placeholder(l.Name())
	}
}

func (l *List) buildRelations(b *builder) {
	if !b.visitRelations(l.Name()) {
		return
	}
	b.buildRelations(l.of)
	if inner := b.lookup(l.of.Name()); inner != nil {
		b.setWrapped(l.Name(), graphql.NewList(inner))
	}
}

// NonNull marks a definition as required.
type NonNull struct {
	of Definition
}

// NewNonNull returns a non-null of. Wrapping a NonNull again returns it
// unchanged.
func NewNonNull(of Definition) Definition {
	if nn, ok := of.(*NonNull); ok {
		return nn
	}
	return &NonNull{of: of}
}

// Name implements Definition.
func (n *NonNull) Name() string { return n.of.Name() + "!" }

// OfType implements Wrapped.
func (n *NonNull) OfType() Definition { return n.of }

func (n *NonNull) buildType(b *builder) {
	if b.visitType(n.Name()) {
		b.buildType(n.of)
		b.placeholder(n.Name())
	}
}

func (n *NonNull) buildRelations(b *builder) {
	if !b.visitRelations(n.Name()) {
		return
	}
	b.buildRelations(n.of)
	if inner := b.lookup(n.of.Name()); inner != nil {
		b.setWrapped(n.Name(), graphql.NewNonNull(inner))
	}
}

// Ref is a reference to a type by name only. It resolves against the
// registry when the schema is built; an unregistered name fails the build.
type Ref string

// Name implements Definition.
func (r Ref) Name() string { return string(r) }

func (Ref) buildType(*builder)      {}
func (Ref) buildRelations(*builder) {}

// Operation is a root query or mutation field.
type Operation struct {
	Name        string
	Description string
	Type        Definition
	Args        []*Argument
	Resolve     graphql.FieldResolveFn
}

// Arg returns the named argument.
func (op *Operation) Arg(name string) (*Argument, bool) {
	for _, a := range op.Args {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}
