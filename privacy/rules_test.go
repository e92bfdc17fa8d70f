package privacy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/gqlmap/mutation"
	"github.com/syssam/gqlmap/privacy"
	"github.com/syssam/gqlmap/query"
)

func viewer(id string, roles ...string) context.Context {
	return privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: id, Roles: roles, TenantID: "acme"})
}

func TestViewerContext(t *testing.T) {
	t.Parallel()
	assert.Nil(t, privacy.ViewerFromContext(context.Background()))
	got := privacy.ViewerFromContext(viewer("7", "user"))
	require.NotNil(t, got)
	assert.Equal(t, "7", got.GetID())
	assert.Equal(t, []string{"user"}, got.GetRoles())
	assert.Equal(t, "acme", got.GetTenantID())
}

func TestRoleRules(t *testing.T) {
	t.Parallel()
	q := &read{op: query.OpGet}
	anon := context.Background()

	assert.ErrorIs(t, privacy.DenyIfNoViewer().EvalQuery(anon, q), privacy.Deny)
	assert.ErrorIs(t, privacy.DenyIfNoViewer().EvalQuery(viewer("1"), q), privacy.Skip)

	editors := privacy.HasRole("admin", "editor")
	assert.ErrorIs(t, editors.EvalQuery(viewer("1", "user", "editor"), q), privacy.Allow)
	assert.ErrorIs(t, editors.EvalMutation(viewer("1", "admin"), &write{op: mutation.OpCreate}), privacy.Allow)
	assert.ErrorIs(t, editors.EvalQuery(viewer("1", "user"), q), privacy.Skip)
	assert.ErrorIs(t, editors.EvalQuery(anon, q), privacy.Skip)
}

func TestOnQuery(t *testing.T) {
	t.Parallel()
	rule := privacy.OnQuery(privacy.AlwaysDenyRule(), query.OpGetMany, query.OpPage)
	ctx := context.Background()
	assert.ErrorIs(t, rule.EvalQuery(ctx, &read{op: query.OpGet}), privacy.Skip)
	assert.ErrorIs(t, rule.EvalQuery(ctx, &read{op: query.OpGetMany}), privacy.Deny)
	assert.ErrorIs(t, rule.EvalQuery(ctx, newPage()), privacy.Deny)
}

func TestOnMutation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	writes := privacy.OnMutation(privacy.DenyIfNoViewer(), mutation.OpUpdate|mutation.OpDelete)
	assert.ErrorIs(t, writes.EvalMutation(ctx, &write{op: mutation.OpCreate}), privacy.Skip)
	assert.ErrorIs(t, writes.EvalMutation(ctx, &write{op: mutation.OpUpdate}), privacy.Deny)
	assert.ErrorIs(t, writes.EvalMutation(ctx, &write{op: mutation.OpDelete}), privacy.Deny)
	assert.ErrorIs(t, writes.EvalMutation(viewer("1"), &write{op: mutation.OpDelete}), privacy.Skip)

	deletes := privacy.DenyMutation(mutation.OpDelete)
	assert.ErrorIs(t, deletes.EvalMutation(ctx, &write{op: mutation.OpUpdate}), privacy.Skip)
	assert.ErrorIs(t, deletes.EvalMutation(ctx, &write{op: mutation.OpDelete}), privacy.Deny)
}

func TestDenyFieldUpdates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rule := privacy.DenyFieldUpdates("tenantId", "author")

	create := &write{op: mutation.OpCreate, input: []string{"tenantId", "title"}}
	assert.ErrorIs(t, rule.EvalMutation(ctx, create), privacy.Skip, "creates may set read-only fields")

	rename := &write{op: mutation.OpUpdate, input: []string{"title"}}
	assert.ErrorIs(t, rule.EvalMutation(ctx, rename), privacy.Skip)

	move := &write{op: mutation.OpUpdate, input: []string{"author", "title"}}
	err := rule.EvalMutation(ctx, move)
	require.ErrorIs(t, err, privacy.Deny)
	assert.Contains(t, err.Error(), "Post.author is read-only")
}

func TestIsOwner(t *testing.T) {
	t.Parallel()
	rule := privacy.IsOwner("author_id")
	m := &write{op: mutation.OpUpdate, values: map[string]any{"author_id": int64(5)}}

	assert.ErrorIs(t, rule.EvalMutation(viewer("5"), m), privacy.Allow)
	assert.ErrorIs(t, rule.EvalMutation(viewer("6"), m), privacy.Skip)
	assert.ErrorIs(t, rule.EvalMutation(context.Background(), m), privacy.Skip)
	orphan := &write{op: mutation.OpUpdate, values: map[string]any{"author_id": nil}}
	assert.ErrorIs(t, rule.EvalMutation(viewer("5"), orphan), privacy.Skip)
}

func TestFilterByViewer(t *testing.T) {
	t.Parallel()
	ctx := viewer("42")

	page := newPage()
	require.ErrorIs(t, privacy.TenantFilter("tenantId").EvalQuery(ctx, page), privacy.Skip)
	require.ErrorIs(t, privacy.OwnerFilter("author").EvalQuery(ctx, page), privacy.Skip)
	q, args := page.sel.Query()
	assert.Equal(t, `SELECT "e"."id" FROM "posts" AS "e" WHERE ("e"."tenant_id" = $1 AND "e"."author_id" = $2)`, q)
	assert.Equal(t, []any{"acme", "42"}, args)

	assert.ErrorIs(t, privacy.OwnerFilter("author").EvalQuery(ctx, &read{op: query.OpGet}), privacy.Skip, "point reads pass")
	assert.ErrorIs(t, privacy.OwnerFilter("author").EvalQuery(context.Background(), newPage()), privacy.Deny)

	for _, name := range []string{"tags", "missing"} {
		err := privacy.OwnerFilter(name).EvalQuery(ctx, newPage())
		require.ErrorIs(t, err, privacy.Deny, name)
		assert.Contains(t, err.Error(), "Post has no column for")
	}
}

func TestDenySearchOn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rule := privacy.DenySearchOn("tenantId")

	assert.ErrorIs(t, rule.EvalQuery(ctx, &read{op: query.OpGetMany}), privacy.Skip)

	page := newPage()
	page.filter = map[string]any{"e_title_0": "a"}
	page.match = map[string]any{"ea_tenantId_0": "acme"}
	assert.ErrorIs(t, rule.EvalQuery(ctx, page), privacy.Skip, "joined aliases are not the root entity")

	page.match["e_tenantId_1"] = "acme"
	err := rule.EvalQuery(ctx, page)
	require.ErrorIs(t, err, privacy.Deny)
	assert.Contains(t, err.Error(), "Post cannot be searched by tenantId")
}

func TestPolicyChain(t *testing.T) {
	t.Parallel()
	policy := privacy.MutationPolicy{
		privacy.DenyIfNoViewer(),
		privacy.DenyFieldUpdates("author_id"),
		privacy.HasRole("admin"),
		privacy.IsOwner("author_id"),
		privacy.AlwaysDenyRule(),
	}
	owned := map[string]any{"author_id": int64(5)}
	retitle := &write{op: mutation.OpUpdate, input: []string{"title"}, values: owned}
	move := &write{op: mutation.OpUpdate, input: []string{"author_id"}, values: owned}

	assert.ErrorIs(t, policy.EvalMutation(viewer("5"), retitle), privacy.Allow)
	assert.ErrorIs(t, policy.EvalMutation(viewer("6", "admin"), retitle), privacy.Allow)
	assert.ErrorIs(t, policy.EvalMutation(viewer("6"), retitle), privacy.Deny)
	assert.ErrorIs(t, policy.EvalMutation(context.Background(), retitle), privacy.Deny)
	assert.ErrorIs(t, policy.EvalMutation(viewer("5"), move), privacy.Deny)
	assert.ErrorIs(t, policy.EvalMutation(viewer("6", "admin"), move), privacy.Deny, "read-only fields bind admins too")
}
