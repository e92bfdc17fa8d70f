package privacy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/gqlmap/dialect/sql"
	"github.com/syssam/gqlmap/entity"
	"github.com/syssam/gqlmap/metadata"
	"github.com/syssam/gqlmap/mutation"
	"github.com/syssam/gqlmap/privacy"
	"github.com/syssam/gqlmap/query"
)

var post = &metadata.Entity{
	Name:  `App\Entity\Post`,
	Table: "posts",
	Fields: []*metadata.Field{
		{Name: "id", Kind: metadata.Integer},
		{Name: "title", Kind: metadata.String},
		{Name: "tenantId", Column: "tenant_id", Kind: metadata.String},
	},
	Associations: []*metadata.Association{
		{Name: "author", Target: `App\Entity\User`, Type: metadata.ManyToOne, JoinColumns: []metadata.JoinColumn{{Name: "author_id", ReferencedColumn: "id"}}},
		{Name: "tags", Target: `App\Entity\Tag`, Type: metadata.ManyToMany},
	},
	Identifier: []string{"id"},
}

// write is a mutation of a Post. input lists the assigned fields; values
// holds the fields and join columns of the instance.
type write struct {
	op     mutation.Op
	input  []string
	values map[string]any
}

func (w *write) Op() mutation.Op        { return w.op }
func (w *write) Type() string           { return "Post" }
func (w *write) Fields() []string       { return w.input }
func (w *write) Entity() *entity.Entity { return nil }

func (w *write) Field(name string) (any, bool) {
	v, ok := w.values[name]
	return v, ok
}

// read is a point read of a Post.
type read struct{ op string }

func (r *read) Op() string                { return r.op }
func (r *read) Entity() *metadata.Entity { return post }

// pageRead is a page read of a Post applying its filters to sel.
type pageRead struct {
	read
	sel           *sql.Selector
	filter, match map[string]any
}

func newPage() *pageRead {
	return &pageRead{
		read: read{op: query.OpPage},
		sel:  sql.Dialect("postgres").Select("e.id").From("posts", query.RootAlias),
	}
}

func (p *pageRead) Filter() query.Filter                 { return p }
func (p *pageRead) Params() (filter, match map[string]any) { return p.filter, p.match }

func (p *pageRead) WhereP(ps ...func(*sql.Selector)) {
	for _, f := range ps {
		f(p.sel)
	}
}

func TestDecisions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		decision error
		want     error
	}{
		{"allow", privacy.Allow, privacy.Allow},
		{"deny", privacy.Deny, privacy.Deny},
		{"skip", privacy.Skip, privacy.Skip},
		{"allowf", privacy.Allowf("role %s", "admin"), privacy.Allow},
		{"denyf", privacy.Denyf("no viewer"), privacy.Deny},
		{"skipf", privacy.Skipf("rule %d", 1), privacy.Skip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, d := range []error{privacy.Allow, privacy.Deny, privacy.Skip} {
				assert.Equal(t, d == tt.want, errors.Is(tt.decision, d))
			}
		})
	}
	assert.Equal(t, "role admin: privacy: allow", privacy.Allowf("role %s", "admin").Error())
}

func TestQueryPolicy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	never := privacy.QueryRuleFunc(func(context.Context, query.Query) error { panic("not reached") })
	skip := privacy.QueryRuleFunc(func(context.Context, query.Query) error { return privacy.Skipf("next") })
	tests := []struct {
		name   string
		policy privacy.QueryPolicy
		want   error
	}{
		{"empty", nil, nil},
		{"allow_stops", privacy.QueryPolicy{privacy.AlwaysAllowRule(), never}, privacy.Allow},
		{"deny_stops", privacy.QueryPolicy{privacy.AlwaysDenyRule(), never}, privacy.Deny},
		{"skips_fall_through", privacy.QueryPolicy{skip, skip}, nil},
		{"skip_then_deny", privacy.QueryPolicy{skip, privacy.AlwaysDenyRule()}, privacy.Deny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.EvalQuery(ctx, &read{op: query.OpGet})
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestGuard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	guard := privacy.Guard(privacy.Policy{Query: privacy.QueryPolicy{
		privacy.OnQuery(privacy.AlwaysDenyRule(), query.OpPage),
	}})
	require.NoError(t, guard(ctx, &read{op: query.OpGet}))
	require.NoError(t, guard(ctx, &read{op: query.OpGetMany}))

	err := guard(ctx, newPage())
	require.ErrorIs(t, err, privacy.Deny)
	var denied *privacy.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "Post", denied.Entity)
	assert.Equal(t, query.OpPage, denied.Op)
	assert.Equal(t, "privacy: page Post denied: privacy: deny", err.Error())

	allow := privacy.Guard(privacy.Policy{Query: privacy.QueryPolicy{privacy.AlwaysAllowRule(), privacy.AlwaysDenyRule()}})
	assert.NoError(t, allow(ctx, newPage()), "allow passes the read")
}

func TestListener(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := privacy.Listener(privacy.Policy{Mutation: privacy.MutationPolicy{privacy.DenyMutation(mutation.OpDelete)}})
	m := func(op mutation.Op) mutation.Mutation { return &write{op: op} }

	require.NoError(t, l.OnCreate(ctx, m(mutation.OpCreate)))
	require.NoError(t, l.OnUpdate(ctx, m(mutation.OpUpdate)))
	err := l.OnDelete(ctx, m(mutation.OpDelete))
	require.ErrorIs(t, err, privacy.Deny)
	var denied *privacy.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "Post", denied.Entity)
	assert.Equal(t, mutation.OpDelete.String(), denied.Op)
	assert.Contains(t, err.Error(), "delete of Post")
}

func TestFilterFunc(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var seen *metadata.Entity
	rule := privacy.FilterFunc(func(_ context.Context, e *metadata.Entity, f query.Filter) error {
		seen = e
		f.WhereP(func(s *sql.Selector) { s.Where(sql.EQ(s.Alias()+".title", "draft")) })
		return privacy.Skip
	})

	assert.ErrorIs(t, rule.EvalQuery(ctx, &read{op: query.OpGet}), privacy.Skip, "point reads are not filterable")
	assert.Nil(t, seen)

	page := newPage()
	require.ErrorIs(t, rule.EvalQuery(ctx, page), privacy.Skip)
	assert.Same(t, post, seen)
	q, args := page.sel.Query()
	assert.Equal(t, `SELECT "e"."id" FROM "posts" AS "e" WHERE "e"."title" = $1`, q)
	assert.Equal(t, []any{"draft"}, args)
}
