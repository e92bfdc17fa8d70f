package query

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/gqlmap/dialect"
	"github.com/syssam/gqlmap/dialect/sql"
	"github.com/syssam/gqlmap/gqlerr"
	"github.com/syssam/gqlmap/graph"
	"github.com/syssam/gqlmap/metadata"
	"github.com/syssam/gqlmap/store/sqlstore"
)

const mapping = `
entities:
  - name: App\User
    table: users
    identifier: [id]
    fields:
      - {name: id, kind: integer, generated: true}
      - {name: name, kind: string}
      - {name: age, kind: integer, nullable: true}
    associations:
      - {name: posts, target: App\Post, type: oneToMany, mappedBy: author}
      - {name: groups, target: App\Group, type: manyToMany}
  - name: App\Post
    table: posts
    identifier: [id]
    fields:
      - {name: id, kind: integer, generated: true}
      - {name: title, kind: string}
    associations:
      - name: author
        target: App\User
        type: manyToOne
        joinColumns:
          - {name: author_id, referencedColumn: id, nullable: false}
  - name: App\Group
    table: groups
    identifier: [id]
    fields:
      - {name: id, kind: integer, generated: true}
      - {name: title, kind: string}
`

type fixture struct {
	catalog *metadata.Catalog
	reg     *graph.Registry
	user    *metadata.Entity
	search  *graph.Input
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, err := metadata.Load(strings.NewReader(mapping))
	require.NoError(t, err)
	reg := graph.NewRegistry()
	filter, ok := reg.Type(graph.SearchFilterInputName)
	require.True(t, ok)
	list := reg.ListOf(filter)
	group := graph.NewInput("GroupSearchInput", "",
		&graph.Field{Name: "id", Type: list},
		&graph.Field{Name: "title", Type: list},
	)
	post := graph.NewInput("PostSearchInput", "",
		&graph.Field{Name: "id", Type: list},
		&graph.Field{Name: "title", Type: list},
	)
	user := graph.NewInput("UserSearchInput", "",
		&graph.Field{Name: "id", Type: list},
		&graph.Field{Name: "name", Type: list},
		&graph.Field{Name: "age", Type: list},
		&graph.Field{Name: "posts", Type: post},
		&graph.Field{Name: "groups", Type: group},
	)
	post.AddField(&graph.Field{Name: "author", Type: user})
	reg.AddType(group).AddType(post).AddType(user)
	e, ok := c.Get(`App\User`)
	require.True(t, ok)
	return &fixture{catalog: c, reg: reg, user: e, search: user}
}

func pred(op string, v any) map[string]any {
	return map[string]any{"operator": op, "value": v}
}

func TestAliasManager(t *testing.T) {
	t.Parallel()
	m := NewAliasManager("e")
	assert.Equal(t, "ep", m.Alias("e", "posts"))
	assert.Equal(t, "ep", m.Alias("e", "posts"), "same path, same alias")
	assert.Equal(t, "ep1", m.Alias("e", "profile"))
	assert.Equal(t, "epa", m.Alias("ep", "author"))
	assert.Equal(t, "ep2", m.Alias("e", "Pets"))
	assert.Equal(t, "e1", m.Alias("", "e"), "root alias is reserved")
}

func TestWalker(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	t.Run("join_and_leaf", func(t *testing.T) {
		sel := sql.Dialect(dialect.SQLite).Select("e.id").From("users", "e")
		w := NewWalker(f.catalog, f.reg, sel, f.user)
		var (
			preds  []*sql.Predicate
			params = make(map[string]any)
		)
		err := w.Walk(ctx, f.search, map[string]any{
			"posts":   map[string]any{"title": []any{pred("EQ", "x")}},
			"age":     []any{pred("GTE", "18"), pred("LT", 30)},
			"unknown": []any{pred("EQ", "ignored")},
		}, "e", func(ps []*sql.Predicate, ps2 map[string]any) {
			preds = append(preds, ps...)
			for k, v := range ps2 {
				params[k] = v
			}
		})
		require.NoError(t, err)
		require.True(t, w.Joined())
		query, args := sel.Where(sql.And(preds...)).Query()
		assert.Equal(t, `SELECT "e"."id" FROM "users" AS "e" LEFT JOIN "posts" AS "ep" ON "ep"."author_id" = "e"."id" WHERE ("e"."age" >= ? AND "e"."age" < ? AND "ep"."title" = ?)`, query)
		assert.Equal(t, []any{int64(18), int64(30), "x"}, args)
		assert.Equal(t, map[string]any{"e_age_0": int64(18), "e_age_1": int64(30), "ep_title_0": "x"}, params)
	})

	t.Run("many_to_many", func(t *testing.T) {
		sel := sql.Dialect(dialect.Postgres).Select("e.id").From("users", "e")
		w := NewWalker(f.catalog, f.reg, sel, f.user)
		var preds []*sql.Predicate
		emit := func(ps []*sql.Predicate, _ map[string]any) { preds = append(preds, ps...) }
		filter := map[string]any{"groups": map[string]any{"title": []any{pred("NEQ", "x")}}}
		require.NoError(t, w.Walk(ctx, f.search, filter, "e", emit))
		require.NoError(t, w.Walk(ctx, f.search, filter, "e", emit), "second walk reuses the join")
		query, _ := sel.Where(sql.Or(preds...)).Query()
		assert.Equal(t, `SELECT "e"."id" FROM "users" AS "e" LEFT JOIN "users_groups" AS "eg_j" ON "eg_j"."users_id" = "e"."id" LEFT JOIN "groups" AS "eg" ON "eg"."id" = "eg_j"."groups_id" WHERE ("eg"."title" <> $1 OR "eg"."title" <> $2)`, query)
	})

	t.Run("null_value", func(t *testing.T) {
		sel := sql.Select("e.id").From("users", "e")
		w := NewWalker(f.catalog, f.reg, sel, f.user)
		var preds []*sql.Predicate
		require.NoError(t, w.Walk(ctx, f.search, map[string]any{"age": []any{pred("EQ", nil)}}, "e", func(ps []*sql.Predicate, _ map[string]any) {
			preds = append(preds, ps...)
		}))
		query, _ := sel.Where(sql.And(preds...)).Query()
		assert.Equal(t, `SELECT "e"."id" FROM "users" AS "e" WHERE "e"."age" IS NULL`, query)
	})

	t.Run("errors", func(t *testing.T) {
		for _, filter := range []map[string]any{
			{"age": []any{pred("LIKE", 1)}},
			{"age": []any{pred("EQ", "old")}},
			{"age": []any{pred("GT", nil)}},
			{"age": "18"},
			{"posts": []any{}},
		} {
			w := NewWalker(f.catalog, f.reg, sql.Select("e.id").From("users", "e"), f.user)
			err := w.Walk(ctx, f.search, filter, "e", func([]*sql.Predicate, map[string]any) {})
			require.Error(t, err, filter)
			assert.True(t, gqlerr.IsValidationError(err), filter)
		}
	})
}

func seed(t *testing.T, f *fixture) *sqlstore.Store {
	t.Helper()
	ctx := context.Background()
	drv, err := sql.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, age INTEGER)`,
		`CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL, author_id INTEGER NOT NULL)`,
	} {
		require.NoError(t, drv.Exec(ctx, stmt, []any{}, nil))
	}
	s := sqlstore.New(drv, f.catalog)
	post, _ := f.catalog.Get(`App\Post`)
	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	for i, age := range []int{17, 18, 21, 30} {
		u := uow.New(f.user)
		u.Set("name", string(rune('a'+i)))
		u.Set("age", age)
		p := uow.New(post)
		p.Set("title", "post")
		u.Collection("posts").Add(p)
		require.NoError(t, uow.Persist(ctx, u))
	}
	require.NoError(t, uow.Commit())
	return s
}

func ages(p *Page) []int64 {
	out := make([]int64, len(p.Items))
	for i, x := range p.Items {
		v, _ := x.Get("age")
		out[i], _ = v.(int64)
	}
	return out
}

func TestPage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	s := seed(t, f)
	m := NewManager(s, f.reg, f.user, WithSearch(f.search), WithMaxLimit(3))
	asc := []SortField{{Field: "age", Direction: sql.Asc}}

	p, err := m.Page(ctx, PageArgs{
		Page:   1,
		Limit:  10,
		Sort:   asc,
		Filter: map[string]any{"age": []any{pred("GTE", "18")}},
		Match:  map[string]any{"age": []any{pred("EQ", "18"), pred("EQ", "21")}},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{18, 21}, ages(p))
	assert.Equal(t, 2, p.Total)
	assert.Equal(t, 3, p.Limit, "clamped to the maximum")

	first, err := m.Page(ctx, PageArgs{Page: 0, Limit: 2, Sort: asc}, false)
	require.NoError(t, err)
	one, err := m.Page(ctx, PageArgs{Page: 1, Limit: 2, Sort: asc}, false)
	require.NoError(t, err)
	assert.Equal(t, ages(one), ages(first))
	assert.Equal(t, []int64{17, 18}, ages(first))
	assert.Zero(t, first.Total, "not counted unless asked")

	second, err := m.Page(ctx, PageArgs{Page: 2, Limit: 2, Sort: []SortField{{Field: "age", Direction: sql.Desc}}}, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{18, 17}, ages(second))
	assert.Equal(t, 4, second.Total)
	assert.Equal(t, map[string]any{"age": graph.SortDesc}, second.Sort)

	joined, err := m.Page(ctx, PageArgs{
		Page:   1,
		Limit:  3,
		Sort:   asc,
		Filter: map[string]any{"posts": map[string]any{"title": []any{pred("EQ", "post")}}},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{17, 18, 21}, ages(joined))
	assert.Equal(t, 4, joined.Total, "distinct count across the join")

	_, err = m.Page(ctx, PageArgs{Page: 1, Limit: 0}, false)
	require.Error(t, err)
	assert.True(t, gqlerr.IsValidationError(err))

	x, err := m.Get(ctx, map[string]any{"id": 2})
	require.NoError(t, err)
	require.NotNil(t, x)
	v, _ := x.Get("age")
	assert.Equal(t, int64(18), v)

	xs, err := m.GetMany(ctx, map[string]any{"id": []any{1, 3}, "name": []any{"a", "b"}})
	require.NoError(t, err)
	require.Len(t, xs, 1, "lists are AND-ed")
}

func TestGetManyEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	m := NewManager(sqlstore.New(sql.OpenDB(dialect.SQLite, db), f.catalog), f.reg, f.user)

	xs, err := m.GetMany(context.Background(), map[string]any{"id": []any{}})
	require.NoError(t, err)
	assert.Empty(t, xs)
	require.NoError(t, mock.ExpectationsWereMet(), "no statement for an empty list")
}

func TestGuard(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := seed(t, f)
	var ops []string
	m := NewManager(s, f.reg, f.user, WithGuard(func(_ context.Context, q Query) error {
		ops = append(ops, q.Op())
		if fr, ok := q.(interface{ Filter() Filter }); ok && fr.Filter() != nil {
			fr.Filter().WhereP(func(s *sql.Selector) { s.Where(sql.GT(RootAlias+".age", 20)) })
		}
		return nil
	}))
	p, err := m.Page(context.Background(), PageArgs{Page: 1, Limit: 10}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Total)
	_, err = m.Get(context.Background(), map[string]any{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, []string{OpPage, OpGet}, ops)
}

func TestSelection(t *testing.T) {
	t.Parallel()
	orientation := graphql.NewEnum(graphql.EnumConfig{
		Name: "SortingOrientation",
		Values: graphql.EnumValueConfigMap{
			"DESC": {Value: graph.SortDesc},
			"ASC":  {Value: graph.SortAsc},
		},
	})
	sortInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "UserSortInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"name": {Type: orientation},
			"age":  {Type: orientation},
		},
	})
	def := graph.NewInput("UserSortInput", "", &graph.Field{Name: "name"}, &graph.Field{Name: "age"})
	var (
		total bool
		sorts []SortField
	)
	page := graphql.NewObject(graphql.ObjectConfig{
		Name: "UserPage",
		Fields: graphql.Fields{
			"total": {Type: graphql.Int},
			"page":  {Type: graphql.Int},
		},
	})
	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name: "Query",
			Fields: graphql.Fields{
				"getUserPage": {
					Type: page,
					Args: graphql.FieldConfigArgument{"sort": {Type: sortInput}},
					Resolve: func(p graphql.ResolveParams) (any, error) {
						total = Selected(p.Info, "total")
						arg, _ := p.Args["sort"].(map[string]any)
						sorts = SortFields(p.Info, "sort", arg, def)
						return map[string]any{"total": 1, "page": 1}, nil
					},
				},
			},
		}),
	})
	require.NoError(t, err)

	res := graphql.Do(graphql.Params{Schema: schema, RequestString: `{ getUserPage(sort: {age: DESC, name: ASC}) { ...F } } fragment F on UserPage { total }`})
	require.Empty(t, res.Errors)
	assert.True(t, total)
	assert.Equal(t, []SortField{{Field: "age", Direction: sql.Desc}, {Field: "name", Direction: sql.Asc}}, sorts)

	res = graphql.Do(graphql.Params{
		Schema:         schema,
		RequestString:  `query($s: UserSortInput) { getUserPage(sort: $s) { page } }`,
		VariableValues: map[string]any{"s": map[string]any{"age": "ASC", "name": "DESC"}},
	})
	require.Empty(t, res.Errors)
	assert.False(t, total)
	assert.Equal(t, []SortField{{Field: "name", Direction: sql.Desc}, {Field: "age", Direction: sql.Asc}}, sorts)
}

func ids(p *Page) []int64 {
	out := make([]int64, len(p.Items))
	for i, x := range p.Items {
		v, _ := x.Get("id")
		out[i], _ = v.(int64)
	}
	return out
}

func TestPageOrderIsTotal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	s := seed(t, f)
	require.NoError(t, s.Driver().Exec(ctx, `UPDATE users SET age = 20`, []any{}, nil))
	m := NewManager(s, f.reg, f.user, WithSearch(f.search))

	for _, sort := range [][]SortField{
		nil,
		{{Field: "age", Direction: sql.Desc}},
	} {
		var seen []int64
		for page := 1; page <= 4; page++ {
			p, err := m.Page(ctx, PageArgs{Page: page, Limit: 1, Sort: sort}, false)
			require.NoError(t, err)
			seen = append(seen, ids(p)...)
		}
		assert.Equal(t, []int64{1, 2, 3, 4}, seen, "ties are broken by identifier")
	}

	p, err := m.Page(ctx, PageArgs{Page: 1, Limit: 4, Sort: []SortField{{Field: "id", Direction: sql.Desc}}}, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 3, 2, 1}, ids(p), "an explicit identifier sort wins")
}

func TestPageMatchKeepsRowsWithoutRelated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	s := seed(t, f)
	require.NoError(t, s.Driver().Exec(ctx, `DELETE FROM posts WHERE author_id = 4`, []any{}, nil))
	require.NoError(t, s.Driver().Exec(ctx, `UPDATE posts SET title = 'first' WHERE author_id = 1`, []any{}, nil))
	m := NewManager(s, f.reg, f.user, WithSearch(f.search))

	p, err := m.Page(ctx, PageArgs{
		Page:  1,
		Limit: 10,
		Match: map[string]any{
			"age":   []any{pred("EQ", "30")},
			"posts": map[string]any{"title": []any{pred("EQ", "first")}},
		},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{17, 30}, ages(p))
	assert.Equal(t, 2, p.Total)
}

func TestGuardParams(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := seed(t, f)
	var filter, match map[string]any
	m := NewManager(s, f.reg, f.user, WithSearch(f.search), WithGuard(func(_ context.Context, q Query) error {
		if pq, ok := q.(interface {
			Params() (map[string]any, map[string]any)
		}); ok {
			filter, match = pq.Params()
		}
		return nil
	}))
	_, err := m.Page(context.Background(), PageArgs{
		Page:   1,
		Limit:  10,
		Filter: map[string]any{"age": []any{pred("GTE", "18")}},
		Match:  map[string]any{"age": []any{pred("EQ", "18"), pred("EQ", "21")}},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"e_age_0": int64(18)}, filter)
	assert.Equal(t, map[string]any{"e_age_0": int64(18), "e_age_1": int64(21)}, match)
}

func TestGetManyListsAreIntersected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	m := NewManager(seed(t, f), f.reg, f.user)

	xs, err := m.GetMany(ctx, map[string]any{"id": []any{1, 2, 3}})
	require.NoError(t, err)
	assert.Len(t, xs, 3)

	xs, err = m.GetMany(ctx, map[string]any{"id": []any{1, 2, 3}, "name": []any{"b", "c", "d"}})
	require.NoError(t, err)
	assert.Len(t, xs, 2, "rows must match every list")

	xs, err = m.GetMany(ctx, map[string]any{"id": []any{1}, "name": []any{"d"}})
	require.NoError(t, err)
	assert.Empty(t, xs, "one row per list is not enough")
}
