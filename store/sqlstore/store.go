// Package sqlstore implements store.Store on the dialect layer. Rows are
// read into column keyed maps with sqlx, converted to the canonical value
// of each field kind and tracked per unit of work in an identity map.
package sqlstore

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/syssam/gqlmap/dialect"
	"github.com/syssam/gqlmap/dialect/sql"
	"github.com/syssam/gqlmap/entity"
	"github.com/syssam/gqlmap/gqlerr"
	"github.com/syssam/gqlmap/internal/batch"
	"github.com/syssam/gqlmap/metadata"
	"github.com/syssam/gqlmap/store"
)

// DefaultChunkSize is the maximum number of values bound in one IN list.
const DefaultChunkSize = 500

// Store is a SQL backed store.Store.
type Store struct {
	drv      dialect.Driver
	catalog  *metadata.Catalog
	log      *zap.Logger
	chunk    int
	parallel int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// WithChunkSize bounds the number of values bound in one IN list.
func WithChunkSize(n int) Option {
	return func(s *Store) {
		s.chunk = n
	}
}

// WithParallelism bounds the number of chunk queries run concurrently
// outside units of work.
func WithParallelism(n int) Option {
	return func(s *Store) {
		s.parallel = n
	}
}

// New returns a store reading and writing the entities of c through drv.
func New(drv dialect.Driver, c *metadata.Catalog, opts ...Option) *Store {
	s := &Store{
		drv:      drv,
		catalog:  c,
		log:      zap.NewNop(),
		chunk:    DefaultChunkSize,
		parallel: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog implements store.Store.
func (s *Store) Catalog() *metadata.Catalog { return s.catalog }

// Dialect implements store.Store.
func (s *Store) Dialect() string { return s.drv.Dialect() }

// Driver returns the underlying driver.
func (s *Store) Driver() dialect.Driver { return s.drv }

// Selector implements store.Store.
func (s *Store) Selector(e *metadata.Entity, alias string) *sql.Selector {
	cols := columns(e)
	for i, c := range cols {
		cols[i] = qualify(alias, c)
	}
	return sql.Dialect(s.Dialect()).Select(cols...).From(e.TableName(), alias)
}

// FindOne implements store.Store.
func (s *Store) FindOne(ctx context.Context, e *metadata.Entity, ids map[string]any) (*entity.Entity, error) {
	return s.reader().FindOne(ctx, e, ids)
}

// FindMany implements store.Store.
func (s *Store) FindMany(ctx context.Context, e *metadata.Entity, criteria store.Criteria) ([]*entity.Entity, error) {
	return s.reader().FindMany(ctx, e, criteria)
}

// Select implements store.Store.
func (s *Store) Select(ctx context.Context, e *metadata.Entity, sel *sql.Selector) ([]*entity.Entity, error) {
	return s.reader().selectRows(ctx, e, sel)
}

// Count implements store.Store.
func (s *Store) Count(ctx context.Context, q sql.Querier) (int, error) {
	n, err := sql.QueryInt(ctx, s.drv, q)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: count: %w", err)
	}
	return n, nil
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context, assoc string, xs ...*entity.Entity) error {
	return s.reader().Load(ctx, assoc, xs...)
}

// Begin implements store.Store.
func (s *Store) Begin(ctx context.Context) (store.UnitOfWork, error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: begin: %w", err)
	}
	return &unitOfWork{
		reader: reader{st: s, ex: tx, parallel: 1, cache: batch.NewCache[string, *entity.Entity]()},
		tx:     tx,
	}, nil
}

func (s *Store) reader() *reader {
	return &reader{st: s, ex: s.drv, parallel: s.parallel}
}

// reader runs the read statements of a store, either directly on the
// driver or inside a transaction with an identity map.
type reader struct {
	st       *Store
	ex       dialect.ExecQuerier
	parallel int
	cache    *batch.Cache[string, *entity.Entity]
}

func (r *reader) dialect() string { return r.st.Dialect() }

// FindOne returns the instance whose identifier equals ids, or nil.
func (r *reader) FindOne(ctx context.Context, e *metadata.Entity, ids map[string]any) (*entity.Entity, error) {
	pred, ok, err := r.idPredicate(e, ids)
	if err != nil || !ok {
		return nil, err
	}
	xs, err := r.selectRows(ctx, e, r.st.Selector(e, "").Where(pred).Limit(1))
	if err != nil || len(xs) == 0 {
		return nil, err
	}
	return xs[0], nil
}

// FindMany returns the instances matching every criterion. The longest
// value list is split into chunks queried concurrently.
func (r *reader) FindMany(ctx context.Context, e *metadata.Entity, criteria store.Criteria) ([]*entity.Entity, error) {
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var (
		preds   []*sql.Predicate
		longest string
		values  []any
	)
	for _, k := range keys {
		col, kind := resolveColumn(e, k)
		vs, err := uniqueValues(kind, criteria[k])
		if err != nil {
			return nil, gqlerr.NewValidationError(k, err)
		}
		if len(vs) == 0 {
			return nil, nil
		}
		if len(vs) > len(values) {
			if longest != "" {
				preds = append(preds, sql.In(longest, values...))
			}
			longest, values = col, vs
			continue
		}
		preds = append(preds, sql.In(col, vs...))
	}
	if longest == "" {
		return r.selectRows(ctx, e, r.st.Selector(e, ""))
	}
	return batch.Run(ctx, batch.Chunk(values, r.st.chunk), r.parallel, func(ctx context.Context, chunk []any) ([]*entity.Entity, error) {
		sel := r.st.Selector(e, "").Where(sql.And(append(preds[:len(preds):len(preds)], sql.In(longest, chunk...))...))
		return r.selectRows(ctx, e, sel)
	})
}

// selectRows runs sel and hydrates the rows as instances of e.
func (r *reader) selectRows(ctx context.Context, e *metadata.Entity, sel sql.Querier) ([]*entity.Entity, error) {
	rows, err := sql.QueryMaps(ctx, r.ex, sel)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: select %s: %w", e.ShortName(), err)
	}
	xs := make([]*entity.Entity, 0, len(rows))
	for _, row := range rows {
		x, err := r.hydrate(e, row)
		if err != nil {
			return nil, err
		}
		xs = append(xs, x)
	}
	return xs, nil
}

// hydrate converts a row into an instance. Inside a unit of work a row
// whose identity is already tracked returns the tracked instance.
func (r *reader) hydrate(e *metadata.Entity, row map[string]any) (*entity.Entity, error) {
	values := make(map[string]any, len(e.Fields))
	for _, f := range e.Fields {
		v, ok := row[f.ColumnName()]
		if !ok {
			continue
		}
		cv, err := f.Kind.Coerce(v)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: %s.%s: %w", e.ShortName(), f.Name, err)
		}
		values[f.Name] = cv
	}
	x := entity.Managed(e, values)
	for _, col := range joinColumns(e) {
		x.SetJoinValue(col, row[col])
	}
	if r.cache == nil {
		return x, nil
	}
	key := identityKey(x)
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}
	r.cache.Prime(key, x)
	return x, nil
}

// idPredicate builds the identifier equality of e. It reports false if a
// value is missing, in which case no row can match.
func (r *reader) idPredicate(e *metadata.Entity, ids map[string]any) (*sql.Predicate, bool, error) {
	var preds []*sql.Predicate
	for _, name := range e.Identifier {
		v, ok := ids[name]
		if !ok || v == nil {
			return nil, false, nil
		}
		if f, ok := e.Field(name); ok {
			cv, err := f.Kind.Coerce(v)
			if err != nil {
				return nil, false, gqlerr.NewValidationError(name, err)
			}
			preds = append(preds, sql.EQ(f.ColumnName(), cv))
			continue
		}
		a, ok := e.Association(name)
		if !ok {
			return nil, false, gqlerr.NewConfigError(e.Name, fmt.Sprintf("unknown identifier %q", name), nil)
		}
		target, ok := r.st.catalog.Get(a.Target)
		if !ok {
			return nil, false, gqlerr.NewConfigError(e.Name, fmt.Sprintf("unknown target %q", a.Target), nil)
		}
		vals, err := refColumnValues(r.st.catalog, target, v)
		if err != nil {
			return nil, false, gqlerr.NewValidationError(name, err)
		}
		for _, jc := range a.JoinColumns {
			rv, ok := vals[jc.ReferencedColumn]
			if !ok || rv == nil {
				return nil, false, nil
			}
			preds = append(preds, sql.EQ(jc.Name, rv))
		}
	}
	return sql.And(preds...), len(preds) > 0, nil
}

// columns returns the columns read for e: its field columns followed by
// the join columns of its owning single-valued associations.
func columns(e *metadata.Entity) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, f := range e.Fields {
		if c := f.ColumnName(); !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, c := range joinColumns(e) {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	return cols
}

// joinColumns returns the join columns carried by the table of e.
func joinColumns(e *metadata.Entity) []string {
	var cols []string
	for _, a := range e.Associations {
		if a.IsCollection() || !a.IsOwningSide() {
			continue
		}
		for _, jc := range a.JoinColumns {
			cols = append(cols, jc.Name)
		}
	}
	return cols
}

func qualify(alias, col string) string {
	if alias == "" {
		return col
	}
	return alias + "." + col
}

// resolveColumn maps a criteria key to a column: a field name, a field
// column or a raw column such as a join column.
func resolveColumn(e *metadata.Entity, key string) (string, metadata.Kind) {
	if f, ok := e.Field(key); ok {
		return f.ColumnName(), f.Kind
	}
	for _, f := range e.Fields {
		if f.ColumnName() == key {
			return key, f.Kind
		}
	}
	return key, ""
}

// uniqueValues coerces vs to kind and drops duplicates.
func uniqueValues(kind metadata.Kind, vs []any) ([]any, error) {
	seen := make(map[string]bool, len(vs))
	out := make([]any, 0, len(vs))
	for _, v := range vs {
		if v == nil {
			continue
		}
		cv, err := kind.Coerce(v)
		if err != nil {
			return nil, err
		}
		k := batch.Key(cv)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, cv)
	}
	return out, nil
}

// columnValue returns the value x holds for a column of its table.
func columnValue(x *entity.Entity, col string) any {
	for _, f := range x.Meta().Fields {
		if f.ColumnName() == col {
			v, _ := x.Get(f.Name)
			return v
		}
	}
	v, _ := x.JoinValue(col)
	return v
}

// refColumnValues returns the column values identifying a target given
// either an instance, an input object keyed by field name or a bare
// identifier value.
func refColumnValues(c *metadata.Catalog, target *metadata.Entity, v any) (map[string]any, error) {
	out := make(map[string]any)
	switch v := v.(type) {
	case *entity.Entity:
		for _, col := range c.IdentifierColumns(target) {
			out[col] = columnValue(v, col)
		}
	case map[string]any:
		for _, f := range target.Fields {
			fv, ok := v[f.Name]
			if !ok || fv == nil {
				continue
			}
			cv, err := f.Kind.Coerce(fv)
			if err != nil {
				return nil, err
			}
			out[f.ColumnName()] = cv
		}
	default:
		if len(target.Identifier) != 1 {
			return nil, fmt.Errorf("composite identifier of %s needs an object", target.ShortName())
		}
		f, ok := target.Field(target.Identifier[0])
		if !ok {
			return nil, fmt.Errorf("identifier of %s is not a field", target.ShortName())
		}
		cv, err := f.Kind.Coerce(v)
		if err != nil {
			return nil, err
		}
		out[f.ColumnName()] = cv
	}
	return out, nil
}

// identityKey returns the key of x in the identity map.
func identityKey(x *entity.Entity) string {
	e := x.Meta()
	var vals []any
	for _, name := range e.Identifier {
		if _, ok := e.Field(name); ok {
			v, _ := x.Get(name)
			vals = append(vals, v)
			continue
		}
		if a, ok := e.Association(name); ok {
			for _, jc := range a.JoinColumns {
				v, _ := x.JoinValue(jc.Name)
				vals = append(vals, v)
			}
		}
	}
	return e.Name + "\x1e" + batch.Key(vals...)
}

var _ store.Store = (*Store)(nil)
