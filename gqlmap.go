// Package gqlmap derives a GraphQL schema from entity metadata: one type
// family per entity, association fields wired across entities, and the
// get, getMany, page, create, update and delete root operations.
//
// # Basic Usage
//
//	catalog, _ := metadata.LoadFile("mapping.yaml")
//	drv, _ := sql.Open(dialect.SQLite, "file:app.db")
//	st := sqlstore.New(drv, catalog)
//
//	b := gqlmap.New(graph.NewRegistry(), st)
//	schema, err := b.Build(ctx)
//
// # Extending the Schema
//
// Build runs BuildTypes, BuildQueries, BuildMutations and Schema in that
// order. Host code that adds its own types or operations calls the steps
// directly and registers between them:
//
//	b.BuildTypes(ctx)
//	reg.AddType(graph.NewObject("Stats", "", ...))
//	reg.AddQuery(&graph.Operation{Name: "stats", Type: graph.Ref("Stats"), ...})
//	b.BuildQueries(ctx)
//	b.BuildMutations(ctx)
//	schema, err := b.Schema()
package gqlmap

import (
	"context"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/syssam/gqlmap/entity"
	"github.com/syssam/gqlmap/graph"
	"github.com/syssam/gqlmap/metadata"
	"github.com/syssam/gqlmap/mutation"
	"github.com/syssam/gqlmap/naming"
	"github.com/syssam/gqlmap/privacy"
	"github.com/syssam/gqlmap/query"
	"github.com/syssam/gqlmap/resolver"
	"github.com/syssam/gqlmap/store"
)

// Builder registers the type family and root operations of every entity
// of a store's catalog into a registry.
type Builder struct {
	reg      *graph.Registry
	store    store.Store
	catalog  *metadata.Catalog
	names    naming.Generator
	listener mutation.Listener
	policies map[string]privacy.Evaluator
	maxLimit int
	log      *zap.Logger
	resolver *resolver.Resolver
	// families holds the registered type family of each entity, keyed by
	// fully qualified entity name, in catalog order.
	families map[string]*family
	order    []*family
}

// Option configures a Builder.
type Option func(*Builder)

// WithNameGenerator sets the generator of GraphQL type names. The default
// strips namespace separators.
func WithNameGenerator(g naming.Generator) Option {
	return func(b *Builder) {
		b.names = g
	}
}

// WithListener sets the listener notified of every create, update and
// delete inside its transaction.
func WithListener(l mutation.Listener) Option {
	return func(b *Builder) {
		b.listener = l
	}
}

// WithPolicy attaches a privacy policy to the entity with the given fully
// qualified name. Query rules guard its reads; mutation rules run inside
// its write transactions.
func WithPolicy(entity string, p privacy.Evaluator) Option {
	return func(b *Builder) {
		b.policies[entity] = p
	}
}

// WithPageLimits bounds the limit argument of page queries.
func WithPageLimits(maxLimit int) Option {
	return func(b *Builder) {
		if maxLimit > 0 {
			b.maxLimit = maxLimit
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(b *Builder) {
		b.log = log
	}
}

// New returns a builder registering into reg the entities of s.
func New(reg *graph.Registry, s store.Store, opts ...Option) *Builder {
	b := &Builder{
		reg:      reg,
		store:    s,
		catalog:  s.Catalog(),
		names:    naming.Simple,
		listener: mutation.Nop,
		policies: make(map[string]privacy.Evaluator),
		maxLimit: query.DefaultMaxLimit,
		log:      zap.NewNop(),
		families: make(map[string]*family),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.resolver = resolver.New(entity.NewTable(b.catalog), s, resolver.WithLogger(b.log))
	return b
}

// Registry returns the registry the builder writes into.
func (b *Builder) Registry() *graph.Registry { return b.reg }

// TypeName returns the GraphQL name of the entity with the given fully
// qualified name.
func (b *Builder) TypeName(entity string) string { return b.names.Generate(entity) }

// Build registers every type and operation and materializes the schema.
func (b *Builder) Build(ctx context.Context) (graphql.Schema, error) {
	if err := b.BuildTypes(ctx); err != nil {
		return graphql.Schema{}, err
	}
	if err := b.BuildQueries(ctx); err != nil {
		return graphql.Schema{}, err
	}
	if err := b.BuildMutations(ctx); err != nil {
		return graphql.Schema{}, err
	}
	return b.Schema()
}

// Schema materializes the registry.
func (b *Builder) Schema() (graphql.Schema, error) {
	schema, err := b.reg.BuildSchema()
	if err != nil {
		return graphql.Schema{}, err
	}
	b.log.Info("schema built", zap.Stringer("registry", b.reg))
	return schema, nil
}
