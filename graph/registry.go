package graph

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/syssam/gqlmap/gqlerr"
	"github.com/syssam/gqlmap/metadata"
)

// Names of the built-in types.
const (
	DateTimeName           = "DateTime"
	SearchOperatorName     = "SearchOperator"
	SortingOrientationName = "SortingOrientation"
	SearchFilterName       = "SearchFilter"
	SearchFilterInputName  = "SearchFilterInput"
)

// Search operator symbols.
const (
	OpLT  = "LT"
	OpLTE = "LTE"
	OpEQ  = "EQ"
	OpGTE = "GTE"
	OpGT  = "GT"
	OpNEQ = "NEQ"
)

// Internal values of the SortingOrientation symbols.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// scalarKinds maps storage kinds to GraphQL scalar names.
var scalarKinds = map[metadata.Kind]string{
	metadata.Integer:    "Int",
	metadata.BigInt:     "Int",
	metadata.SmallInt:   "Int",
	metadata.Float:      "Float",
	metadata.Decimal:    "Float",
	metadata.Boolean:    "Boolean",
	metadata.UUID:       "String",
	metadata.String:     "String",
	metadata.Text:       "String",
	metadata.Date:       DateTimeName,
	metadata.Time:       DateTimeName,
	metadata.DateTime:   DateTimeName,
	metadata.DateTimeTZ: DateTimeName,
}

// Registry is a name-keyed store of type definitions plus the root
// queries and mutations. It is populated once at startup and materialized
// by BuildSchema; it is not safe for concurrent mutation.
type Registry struct {
	defs      []Definition
	index     map[string]int
	wrappers  map[string]Definition
	queries   opSet
	mutations opSet
}

// NewRegistry returns a registry holding the built-in types.
func NewRegistry() *Registry {
	r := &Registry{
		index:    make(map[string]int),
		wrappers: make(map[string]Definition),
	}
	for _, s := range []*graphql.Scalar{graphql.Int, graphql.Float, graphql.Boolean, graphql.String, DateTime} {
		def := NewScalar(s)
		r.AddType(def)
		r.wrap(NewNonNull(def))
		r.wrap(NewList(def))
	}
	op := NewEnum(SearchOperatorName, "Search filter operator",
		EnumValue{Name: OpLT, Value: OpLT, Description: "Less than"},
		EnumValue{Name: OpLTE, Value: OpLTE, Description: "Less than or equal"},
		EnumValue{Name: OpEQ, Value: OpEQ, Description: "Equal"},
		EnumValue{Name: OpGTE, Value: OpGTE, Description: "Greater than or equal"},
		EnumValue{Name: OpGT, Value: OpGT, Description: "Greater than"},
		EnumValue{Name: OpNEQ, Value: OpNEQ, Description: "Not equal"},
	)
	str, _ := r.Type("String")
	r.AddType(op)
	r.AddType(NewInput(SearchFilterInputName, "Search filter predicate",
		&Field{Name: "operator", Type: op},
		&Field{Name: "value", Type: str},
	))
	r.AddType(NewObject(SearchFilterName, "Search filter predicate",
		&Field{Name: "operator", Type: op},
		&Field{Name: "value", Type: str},
	))
	r.AddType(NewEnum(SortingOrientationName, "Sorting orientation (ascending or descending)",
		EnumValue{Name: "DESC", Value: SortDesc, Description: "Descending sort"},
		EnumValue{Name: "ASC", Value: SortAsc, Description: "Ascending sort"},
	))
	return r
}

// AddType inserts def under its name. A definition already registered
// under the same name is replaced in place; the last writer wins.
func (r *Registry) AddType(def Definition) *Registry {
	if w, ok := def.(Wrapped); ok {
		r.wrappers[w.Name()] = w
		return r
	}
	name := def.Name()
	if i, ok := r.index[name]; ok {
		r.defs[i] = def
		return r
	}
	r.index[name] = len(r.defs)
	r.defs = append(r.defs, def)
	return r
}

// Type returns the definition registered under name. Absence is an
// expected outcome, e.g. for an abstract association target.
func (r *Registry) Type(name string) (Definition, bool) {
	if i, ok := r.index[name]; ok {
		return r.defs[i], true
	}
	def, ok := r.wrappers[name]
	return def, ok
}

// Object returns the object definition registered under name.
func (r *Registry) Object(name string) (*Object, bool) {
	def, ok := r.Type(name)
	if !ok {
		return nil, false
	}
	o, ok := def.(*Object)
	return o, ok
}

// Input returns the input definition registered under name.
func (r *Registry) Input(name string) (*Input, bool) {
	def, ok := r.Type(name)
	if !ok {
		return nil, false
	}
	in, ok := def.(*Input)
	return in, ok
}

// Types returns the direct definitions in registration order.
func (r *Registry) Types() []Definition {
	return r.defs
}

// wrap returns the cached modifier with the name of w, registering w if
// none exists.
func (r *Registry) wrap(w Definition) Definition {
	if def, ok := r.wrappers[w.Name()]; ok {
		return def
	}
	r.wrappers[w.Name()] = w
	return w
}

// ListOf returns the shared list modifier of d.
func (r *Registry) ListOf(d Definition) Definition {
	return r.wrap(NewList(d))
}

// NonNullOf returns the shared non-null modifier of d.
func (r *Registry) NonNullOf(d Definition) Definition {
	return r.wrap(NewNonNull(d))
}

// MapScalarKind maps a storage kind to its GraphQL scalar. The scalar is
// wrapped in a list first if list is set, then in NonNull unless nullable.
// Unknown kinds report false and are expected to be skipped by the caller.
func (r *Registry) MapScalarKind(kind metadata.Kind, nullable, list bool) (Definition, bool) {
	name, ok := scalarKinds[kind]
	if !ok {
		return nil, false
	}
	def, ok := r.Type(name)
	if !ok {
		return nil, false
	}
	if list {
		def = r.ListOf(def)
	}
	if !nullable {
		def = r.NonNullOf(def)
	}
	return def, true
}

// AddQuery registers a root query. A query with the same name is replaced.
func (r *Registry) AddQuery(op *Operation) *Registry {
	r.queries.add(op)
	return r
}

// AddMutation registers a root mutation. A mutation with the same name is
// replaced.
func (r *Registry) AddMutation(op *Operation) *Registry {
	r.mutations.add(op)
	return r
}

// Query returns the named root query.
func (r *Registry) Query(name string) (*Operation, bool) { return r.queries.get(name) }

// Mutation returns the named root mutation.
func (r *Registry) Mutation(name string) (*Operation, bool) { return r.mutations.get(name) }

// Queries returns the root queries in registration order.
func (r *Registry) Queries() []*Operation { return r.queries.ops }

// Mutations returns the root mutations in registration order.
func (r *Registry) Mutations() []*Operation { return r.mutations.ops }

// BuildSchema materializes the registry. The first pass creates every
// direct type and a placeholder for every List and NonNull; the second
// pass resolves the placeholders now that their targets exist. The root
// types are assembled last. References to unknown types fail the build
// with a *gqlerr.ConfigError.
func (r *Registry) BuildSchema() (graphql.Schema, error) {
	b := newBuilder(r)
	for _, def := range r.defs {
		def.buildType(b)
	}
	for _, ops := range [][]*Operation{r.queries.ops, r.mutations.ops} {
		for _, op := range ops {
			for _, a := range op.Args {
				b.buildType(a.Type)
			}
			b.buildType(op.Type)
		}
	}
	for _, def := range r.defs {
		def.buildRelations(b)
	}
	queries := b.operations("Query", r.queries.ops)
	mutations := b.operations("Mutation", r.mutations.ops)
	if err := gqlerr.NewAggregateError(b.errs...); err != nil {
		return graphql.Schema{}, err
	}
	if len(queries) == 0 {
		queries["_schema"] = &graphql.Field{
			Type:        graphql.String,
			Description: "Placeholder field when no entity is exposed",
			Resolve: func(graphql.ResolveParams) (any, error) {
				return "No entities registered", nil
			},
		}
	}
	cfg := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: queries}),
		Types: b.order,
	}
	if len(mutations) > 0 {
		cfg.Mutation = graphql.NewObject(graphql.ObjectConfig{Name: "Mutation", Fields: mutations})
	}
	schema, err := graphql.NewSchema(cfg)
	if err != nil {
		return graphql.Schema{}, gqlerr.NewConfigError("Schema", "materializing schema", err)
	}
	return schema, nil
}

type opSet struct {
	ops   []*Operation
	index map[string]int
}

func (s *opSet) add(op *Operation) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[op.Name]; ok {
		s.ops[i] = op
		return
	}
	s.index[op.Name] = len(s.ops)
	s.ops = append(s.ops, op)
}

func (s *opSet) get(name string) (*Operation, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.ops[i], true
}

// String implements fmt.Stringer.
func (r *Registry) String() string {
	return fmt.Sprintf("Registry(types=%d, queries=%d, mutations=%d)", len(r.defs), len(r.queries.ops), len(r.mutations.ops))
}
