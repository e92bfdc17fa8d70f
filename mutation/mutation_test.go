package mutation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/gqlmap/dialect"
	"github.com/syssam/gqlmap/dialect/sql"
	"github.com/syssam/gqlmap/entity"
	"github.com/syssam/gqlmap/gqlerr"
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

type env struct {
	drv   *sql.Driver
	store *sqlstore.Store
	users *Manager
	posts *Manager
	user  *metadata.Entity
	post  *metadata.Entity
	group *metadata.Entity
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	c, err := metadata.Load(strings.NewReader(mapping))
	require.NoError(t, err)
	drv, err := sql.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, age INTEGER)`,
		`CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL, author_id INTEGER NOT NULL)`,
		`CREATE TABLE "groups" (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL)`,
		`CREATE TABLE users_groups (users_id INTEGER NOT NULL, groups_id INTEGER NOT NULL, PRIMARY KEY (users_id, groups_id))`,
	} {
		require.NoError(t, drv.Exec(context.Background(), stmt, []any{}, nil))
	}
	s := sqlstore.New(drv, c)
	user, _ := c.Get(`App\User`)
	post, _ := c.Get(`App\Post`)
	group, _ := c.Get(`App\Group`)
	return &env{
		drv:   drv,
		store: s,
		users: NewManager(s, user, opts...),
		posts: NewManager(s, post, opts...),
		user:  user,
		post:  post,
		group: group,
	}
}

func (e *env) count(t *testing.T, table string) int {
	t.Helper()
	n, err := sql.QueryInt(context.Background(), e.drv, sql.Select().From(table, "").CountSelector())
	require.NoError(t, err)
	return n
}

func TestOpIs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		op    Op
		check Op
		want  bool
	}{
		{"Create is Create", OpCreate, OpCreate, true},
		{"Create is not Update", OpCreate, OpUpdate, false},
		{"Update is not Delete", OpUpdate, OpDelete, false},
		{"Combined Update|Delete is Delete", OpUpdate | OpDelete, OpDelete, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.Is(tt.check))
		})
	}
}

func TestOpString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "OpCreate", OpCreate.String())
	assert.Equal(t, "OpUpdate|OpDelete", (OpUpdate | OpDelete).String())
	assert.Equal(t, "Op(0)", Op(0).String())
	assert.Equal(t, "delete", OpDelete.Name())
}

func TestCreateNested(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	admins, err := NewManager(e.store, e.group).Create(ctx, map[string]any{"title": "admins"})
	require.NoError(t, err)
	adminsID, _ := admins.Get("id")

	u, err := e.users.Create(ctx, map[string]any{
		"name":   "ann",
		"age":    "30",
		"posts":  []any{map[string]any{"title": "first"}, map[string]any{"title": "second"}},
		"groups": []any{map[string]any{"id": adminsID}, map[string]any{"title": "editors"}},
	})
	require.NoError(t, err)
	require.Equal(t, entity.StateManaged, u.State())
	age, _ := u.Get("age")
	assert.Equal(t, int64(30), age)
	assert.Equal(t, 2, e.count(t, "posts"))
	assert.Equal(t, 2, e.count(t, "groups"), "the existing group is reused")
	assert.Equal(t, 2, e.count(t, "users_groups"))

	uid, _ := u.Get("id")
	p, err := e.posts.Create(ctx, map[string]any{"title": "third", "author": map[string]any{"id": uid}})
	require.NoError(t, err)
	author, _ := p.Ref("author")
	require.NotNil(t, author)
	assert.Same(t, author.Meta(), e.user)
	assert.Equal(t, 1, e.count(t, "users"), "the existing author is reused")
}

func TestCreateWithUnknownIdentifier(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.posts.Create(ctx, map[string]any{
		"title":  "orphan",
		"author": map[string]any{"id": 99, "name": "ghost"},
	})
	require.NoError(t, err)
	x, err := e.store.FindOne(ctx, e.user, map[string]any{"id": 99})
	require.NoError(t, err)
	require.NotNil(t, x, "created with the given identifier")
	name, _ := x.Get("name")
	assert.Equal(t, "ghost", name)
}

func TestUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	u, err := e.users.Create(ctx, map[string]any{"name": "ann", "age": 20})
	require.NoError(t, err)
	id, _ := u.Get("id")

	for range 2 {
		x, err := e.users.Update(ctx, map[string]any{"id": id, "age": 21})
		require.NoError(t, err)
		age, _ := x.Get("age")
		assert.Equal(t, int64(21), age)
	}
	x, err := e.store.FindOne(ctx, e.user, map[string]any{"id": id})
	require.NoError(t, err)
	name, _ := x.Get("name")
	assert.Equal(t, "ann", name, "fields absent from the input are kept")

	_, err = e.users.Update(ctx, map[string]any{"id": 42, "name": "bob"})
	require.Error(t, err)
	assert.True(t, gqlerr.IsNotFound(err))
	assert.True(t, gqlerr.IsMutationError(err))
	assert.True(t, errors.Is(err, gqlerr.ErrNotFound))

	_, err = e.users.Update(ctx, map[string]any{"name": "bob"})
	require.Error(t, err)
	assert.True(t, gqlerr.IsValidationError(err))

	_, err = e.users.Update(ctx, map[string]any{"id": id, "name": nil})
	require.Error(t, err)
	assert.True(t, gqlerr.IsValidationError(err))
}

func TestDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	x, err := e.users.Delete(ctx, map[string]any{"id": 42})
	require.NoError(t, err)
	assert.Nil(t, x, "missing rows are a no-op")

	u, err := e.users.Create(ctx, map[string]any{"name": "ann", "groups": []any{map[string]any{"title": "admins"}}})
	require.NoError(t, err)
	id, _ := u.Get("id")
	require.Equal(t, 1, e.count(t, "users_groups"))

	x, err = e.users.Delete(ctx, map[string]any{"id": id})
	require.NoError(t, err)
	require.NotNil(t, x)
	assert.Equal(t, entity.StateRemoved, x.State())
	assert.Zero(t, e.count(t, "users"))
	assert.Zero(t, e.count(t, "users_groups"))
	assert.Equal(t, 1, e.count(t, "groups"))
}

func TestListener(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	errDenied := errors.New("denied")
	var seen []string
	e := newEnv(t, WithListener(ListenerFuncs{
		Create: func(_ context.Context, m Mutation) error {
			id, ok := m.Field("id")
			require.True(t, ok, "identifier is assigned before listeners run")
			require.NotNil(t, id)
			seen = append(seen, m.Op().String()+":"+m.Type()+":"+strings.Join(m.Fields(), ","))
			if name, _ := m.Field("name"); name == "mallory" {
				return errDenied
			}
			return nil
		},
	}))

	_, err := e.users.Create(ctx, map[string]any{"name": "ann", "age": 3})
	require.NoError(t, err)
	_, err = e.users.Create(ctx, map[string]any{"name": "mallory", "posts": []any{map[string]any{"title": "spam"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errDenied))
	assert.Equal(t, 1, e.count(t, "users"), "rolled back")
	assert.Zero(t, e.count(t, "posts"))
	assert.Equal(t, []string{"OpCreate:User:age,name", "OpCreate:User:name,posts"}, seen)
}

func TestListeners(t *testing.T) {
	t.Parallel()
	var calls []string
	rec := func(name string) Listener {
		return ListenerFuncs{Delete: func(context.Context, Mutation) error {
			calls = append(calls, name)
			if name == "b" {
				return errors.New("stop")
			}
			return nil
		}}
	}
	ls := Listeners{rec("a"), nil, rec("b"), rec("c")}
	require.NoError(t, ls.OnCreate(context.Background(), nil))
	require.Error(t, ls.OnDelete(context.Background(), nil))
	assert.Equal(t, []string{"a", "b"}, calls)
}
