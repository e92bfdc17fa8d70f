// Package store defines the persistence collaborator the query and
// mutation engines run against. store/sqlstore implements it on the
// dialect layer.
package store

import (
	"context"

	"github.com/syssam/gqlmap/dialect/sql"
	"github.com/syssam/gqlmap/entity"
	"github.com/syssam/gqlmap/metadata"
)

// Criteria restricts a lookup: every key is a field name whose value must
// be one of the listed values. Keys are combined with AND.
type Criteria map[string][]any

// Reader reads instances.
type Reader interface {
	// FindOne returns the instance of e whose identifier fields equal ids,
	// or nil if none matches.
	FindOne(ctx context.Context, e *metadata.Entity, ids map[string]any) (*entity.Entity, error)
	// FindMany returns the instances of e matching criteria. An empty value
	// list matches no row.
	FindMany(ctx context.Context, e *metadata.Entity, criteria Criteria) ([]*entity.Entity, error)
}

// Store is the read side of the persistence layer and the factory of
// units of work.
type Store interface {
	Reader
	// Catalog returns the entity metadata the store is driven by.
	Catalog() *metadata.Catalog
	// Dialect returns the SQL dialect name.
	Dialect() string
	// Selector returns a selector reading every column of e under alias.
	Selector(e *metadata.Entity, alias string) *sql.Selector
	// Select runs s and scans the rows into instances of e.
	Select(ctx context.Context, e *metadata.Entity, s *sql.Selector) ([]*entity.Entity, error)
	// Count runs a counting query.
	Count(ctx context.Context, q sql.Querier) (int, error)
	// Load reads the stored state of the association assoc of every
	// instance in xs, which must all be of the same kind.
	Load(ctx context.Context, assoc string, xs ...*entity.Entity) error
	// Begin starts a unit of work on its own transaction.
	Begin(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork tracks the instances of one mutation and writes them in a
// single transaction.
type UnitOfWork interface {
	Reader
	// New returns a blank instance of e.
	New(e *metadata.Entity) *entity.Entity
	// Persist writes x and every pending association change reachable from
	// it.
	Persist(ctx context.Context, x *entity.Entity) error
	// Remove deletes x.
	Remove(ctx context.Context, x *entity.Entity) error
	// Load reads the stored state of an association within the
	// transaction.
	Load(ctx context.Context, assoc string, xs ...*entity.Entity) error
	Commit() error
	Rollback() error
}
