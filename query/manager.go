package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/gqlmap/dialect/sql"
	"github.com/syssam/gqlmap/entity"
	"github.com/syssam/gqlmap/gqlerr"
	"github.com/syssam/gqlmap/graph"
	"github.com/syssam/gqlmap/metadata"
	"github.com/syssam/gqlmap/store"
)

const (
	// RootAlias is the alias of the queried entity in page statements.
	RootAlias = "e"
	// DefaultMaxLimit bounds the page size.
	DefaultMaxLimit = 500
)

// Operation names passed to guards.
const (
	OpGet     = "get"
	OpGetMany = "getMany"
	OpPage    = "page"
)

// Query describes a read about to run. Guards inspect it before the
// statement executes.
type Query interface {
	Op() string
	Entity() *metadata.Entity
}

// Filter appends storage level predicates to a page statement.
type Filter interface {
	WhereP(...func(*sql.Selector))
}

// Guard decides whether a query may run. A non-nil error aborts it.
type Guard func(context.Context, Query) error

// Manager runs the read operations of one entity.
type Manager struct {
	store    store.Store
	reg      *graph.Registry
	entity   *metadata.Entity
	search   *graph.Input
	maxLimit int
	guard    Guard
	log      *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithSearch sets the search input walked by the filter and match
// arguments of page queries.
func WithSearch(def *graph.Input) Option {
	return func(m *Manager) {
		m.search = def
	}
}

// WithMaxLimit bounds the page size. Larger limits are clamped.
func WithMaxLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxLimit = n
		}
	}
}

// WithGuard sets the guard consulted before every query.
func WithGuard(g Guard) Option {
	return func(m *Manager) {
		m.guard = g
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager returns the query manager of e.
func NewManager(s store.Store, reg *graph.Registry, e *metadata.Entity, opts ...Option) *Manager {
	m := &Manager{
		store:    s,
		reg:      reg,
		entity:   e,
		maxLimit: DefaultMaxLimit,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxLimit returns the page size bound.
func (m *Manager) MaxLimit() int { return m.maxLimit }

// Get returns the instance whose identifier equals ids, or nil.
func (m *Manager) Get(ctx context.Context, ids map[string]any) (*entity.Entity, error) {
	if err := m.check(ctx, &read{op: OpGet, e: m.entity}); err != nil {
		return nil, err
	}
	x, err := m.store.FindOne(ctx, m.entity, ids)
	if err != nil {
		return nil, gqlerr.NewQueryError(m.entity.ShortName(), OpGet, err)
	}
	return x, nil
}

// GetMany returns the instances whose identifiers are in the given
// lists. Lists are combined with AND. An empty list for any identifier
// yields an empty result without touching the database.
func (m *Manager) GetMany(ctx context.Context, lists map[string]any) ([]*entity.Entity, error) {
	if err := m.check(ctx, &read{op: OpGetMany, e: m.entity}); err != nil {
		return nil, err
	}
	criteria, err := m.criteria(lists)
	if err != nil {
		return nil, err
	}
	if criteria == nil {
		return []*entity.Entity{}, nil
	}
	xs, err := m.store.FindMany(ctx, m.entity, criteria)
	if err != nil {
		return nil, gqlerr.NewQueryError(m.entity.ShortName(), OpGetMany, err)
	}
	return xs, nil
}

// criteria converts identifier lists into store criteria. Association
// identifiers are matched on their join column. It returns nil when a
// list is empty.
func (m *Manager) criteria(lists map[string]any) (store.Criteria, error) {
	if len(lists) == 0 {
		return nil, nil
	}
	criteria := make(store.Criteria, len(lists))
	for name, raw := range lists {
		values, ok := raw.([]any)
		if !ok {
			values = []any{raw}
		}
		if len(values) == 0 {
			return nil, nil
		}
		if _, ok := m.entity.Field(name); ok {
			criteria[name] = values
			continue
		}
		a, ok := m.entity.Association(name)
		if !ok || len(a.JoinColumns) != 1 {
			return nil, gqlerr.NewValidationError(name, fmt.Errorf("not a single column identifier of %s", m.entity.ShortName()))
		}
		target, ok := m.store.Catalog().Get(a.Target)
		if !ok || len(target.Identifier) != 1 {
			return nil, gqlerr.NewValidationError(name, fmt.Errorf("unsupported identifier target %q", a.Target))
		}
		col := a.JoinColumns[0].Name
		for _, v := range values {
			if obj, ok := v.(map[string]any); ok {
				v = obj[target.Identifier[0]]
			}
			criteria[col] = append(criteria[col], v)
		}
	}
	return criteria, nil
}

// PageArgs are the arguments of a page query.
type PageArgs struct {
	Page   int
	Limit  int
	Sort   []SortField
	Filter map[string]any
	Match  map[string]any
}

// Page is the result of a page query.
type Page struct {
	Total  int
	Page   int
	Limit  int
	Sort   map[string]any
	Filter map[string]any
	Match  map[string]any
	Items  []*entity.Entity
}

// Get returns the page field name.
func (p *Page) Get(name string) (any, bool) {
	switch name {
	case "total":
		return p.Total, true
	case "page":
		return p.Page, true
	case "limit":
		return p.Limit, true
	case "sort":
		return p.Sort, true
	case "filter":
		return p.Filter, true
	case "match":
		return p.Match, true
	case "items":
		return p.Items, true
	}
	return nil, false
}

// Page runs a paginated search. Filter predicates are AND-ed, match
// predicates OR-ed, and the two groups AND-ed together. A page below 1
// reads the first page. The total is counted only if wantTotal is set,
// concurrently with the item query.
func (m *Manager) Page(ctx context.Context, args PageArgs, wantTotal bool) (*Page, error) {
	if args.Limit <= 0 {
		return nil, gqlerr.NewValidationError("limit", fmt.Errorf("must be positive, got %d", args.Limit))
	}
	limit := min(args.Limit, m.maxLimit)
	page := max(args.Page, 1)
	sel := m.store.Selector(m.entity, RootAlias)
	var filters, matches []*sql.Predicate
	// Filter and match walks number their parameters independently.
	filterParams, matchParams := make(map[string]any), make(map[string]any)
	w := NewWalker(m.store.Catalog(), m.reg, sel, m.entity)
	if m.search != nil {
		if err := w.Walk(ctx, m.search, args.Filter, RootAlias, collect(&filters, filterParams)); err != nil {
			return nil, err
		}
		if err := w.Walk(ctx, m.search, args.Match, RootAlias, collect(&matches, matchParams)); err != nil {
			return nil, err
		}
	}
	sel.Where(sql.And(sql.And(filters...), sql.Or(matches...)))
	if err := m.check(ctx, &read{op: OpPage, e: m.entity, sel: sel, filterParams: filterParams, matchParams: matchParams}); err != nil {
		return nil, err
	}
	if w.Joined() {
		sel.Distinct()
	}
	var ids []string
	for _, col := range m.store.Catalog().IdentifierColumns(m.entity) {
		ids = append(ids, RootAlias+"."+col)
	}
	count := sel.CountSelector(ids...)
	sorted := make(map[string]bool, len(args.Sort))
	for _, s := range args.Sort {
		if f, ok := m.entity.Field(s.Field); ok {
			col := RootAlias + "." + f.ColumnName()
			if !sorted[col] {
				sel.OrderBy(col, s.Direction)
				sorted[col] = true
			}
		}
	}
	// Identifier columns order the rows left tied by the sort.
	for _, col := range ids {
		if !sorted[col] {
			sel.OrderBy(col, sql.Asc)
		}
	}
	sel.Limit(limit).Offset((page - 1) * limit)

	res := &Page{
		Page:   page,
		Limit:  limit,
		Sort:   sortValue(args.Sort),
		Filter: args.Filter,
		Match:  args.Match,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := m.store.Select(gctx, m.entity, sel)
		if err != nil {
			return err
		}
		res.Items = items
		return nil
	})
	if wantTotal {
		g.Go(func() error {
			n, err := m.store.Count(gctx, count)
			if err != nil {
				return err
			}
			res.Total = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, gqlerr.NewQueryError(m.entity.ShortName(), OpPage, err)
	}
	m.log.Debug("page",
		zap.String("entity", m.entity.ShortName()),
		zap.Int("page", page),
		zap.Int("limit", limit),
		zap.Any("filterParams", filterParams),
		zap.Any("matchParams", matchParams),
		zap.Int("items", len(res.Items)),
		zap.Bool("total", wantTotal))
	return res, nil
}

// collect returns an Emit appending fragments to dst and recording the
// bound values in params.
func collect(dst *[]*sql.Predicate, params map[string]any) Emit {
	return func(ps []*sql.Predicate, bound map[string]any) {
		*dst = append(*dst, ps...)
		for k, v := range bound {
			params[k] = v
		}
	}
}

func (m *Manager) check(ctx context.Context, q Query) error {
	if m.guard == nil {
		return nil
	}
	return m.guard(ctx, q)
}

func sortValue(fields []SortField) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if f.Direction == sql.Desc {
			out[f.Field] = graph.SortDesc
		} else {
			out[f.Field] = graph.SortAsc
		}
	}
	return out
}

// read is the Query handed to guards. Page reads are filterable and
// carry the values bound by the search walk.
type read struct {
	op           string
	e            *metadata.Entity
	sel          *sql.Selector
	filterParams map[string]any
	matchParams  map[string]any
}

func (r *read) Op() string               { return r.op }
func (r *read) Entity() *metadata.Entity { return r.e }

// Filter returns the filter of a page read, or nil for point reads.
func (r *read) Filter() Filter {
	if r.sel == nil {
		return nil
	}
	return selectorFilter{r.sel}
}

// Params returns the values bound by the filter and match walks of a page
// read, keyed alias_field_i. Point reads return nil maps.
func (r *read) Params() (filter, match map[string]any) {
	return r.filterParams, r.matchParams
}

type selectorFilter struct{ sel *sql.Selector }

func (f selectorFilter) WhereP(ps ...func(*sql.Selector)) {
	for _, p := range ps {
		p(f.sel)
	}
}
