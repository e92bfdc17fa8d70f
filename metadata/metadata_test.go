package metadata_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/gqlmap/metadata"
)

func TestLoadFile(t *testing.T) {
	c, err := metadata.LoadFile("testdata/blog.yaml")
	require.NoError(t, err)
	require.Equal(t, 4, c.Len())

	names := make([]string, 0, c.Len())
	for _, e := range c.All() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{`App\Entity\User`, `App\Entity\Post`, `App\Entity\Group`, `App\Entity\Node`}, names)

	user, ok := c.Get(`App\Entity\User`)
	require.True(t, ok)
	assert.Equal(t, "User", user.ShortName())
	assert.True(t, user.IsIdentifier("id"))
	assert.False(t, user.IsIdentifier("age"))

	age, ok := user.Field("age")
	require.True(t, ok)
	assert.Equal(t, metadata.Integer, age.Kind)
	assert.True(t, age.Nullable)
	assert.Equal(t, "age", age.ColumnName())

	posts, ok := user.Association("posts")
	require.True(t, ok)
	assert.Equal(t, metadata.OneToMany, posts.Type)
	assert.False(t, posts.IsOwningSide())
	assert.True(t, posts.IsCollection())

	groups, ok := user.Association("groups")
	require.True(t, ok)
	require.NotNil(t, groups.JoinTable)
	assert.Equal(t, "users_group", groups.JoinTable.Name)
	assert.Equal(t, "users_id", groups.JoinTable.JoinColumns[0].Name)
	assert.Equal(t, "group_id", groups.JoinTable.InverseJoinColumns[0].Name)

	post, _ := c.Get(`App\Entity\Post`)
	created, _ := post.Field("createdAt")
	assert.Equal(t, "created_at", created.ColumnName())

	group, _ := c.Get(`App\Entity\Group`)
	assert.Equal(t, "group", group.TableName())
}

func TestCatalogNullable(t *testing.T) {
	c, err := metadata.LoadFile("testdata/blog.yaml")
	require.NoError(t, err)
	user, _ := c.Get(`App\Entity\User`)
	post, _ := c.Get(`App\Entity\Post`)

	author, _ := post.Association("author")
	assert.False(t, c.Nullable(post, author), "non-nullable join column")

	// The inverse side follows the owning side's join columns.
	posts, _ := user.Association("posts")
	assert.False(t, c.Nullable(user, posts))

	owner, assoc, err := c.Owning(user, posts)
	require.NoError(t, err)
	assert.Same(t, post, owner)
	assert.Same(t, author, assoc)

	groups, _ := user.Association("groups")
	assert.True(t, c.Nullable(user, groups), "default join columns are nullable")
}

func TestResolveDefaultJoinColumns(t *testing.T) {
	c := metadata.NewCatalog(
		&metadata.Entity{
			Name:       "Group",
			Identifier: []string{"id"},
			Fields:     []*metadata.Field{{Name: "id", Kind: metadata.Integer}},
		},
		&metadata.Entity{
			Name:       "Member",
			Identifier: []string{"id"},
			Fields:     []*metadata.Field{{Name: "id", Kind: metadata.Integer}},
			Associations: []*metadata.Association{
				{Name: "mainGroup", Target: "Group", Type: metadata.ManyToOne},
			},
		},
	)
	require.NoError(t, c.Resolve())
	member, _ := c.Get("Member")
	a, _ := member.Association("mainGroup")
	require.Len(t, a.JoinColumns, 1)
	assert.Equal(t, "main_group_id", a.JoinColumns[0].Name)
	assert.Equal(t, "id", a.JoinColumns[0].ReferencedColumn)
	assert.True(t, c.Nullable(member, a))
	assert.Equal(t, []string{"id"}, c.IdentifierColumns(member))
}

func TestValidate(t *testing.T) {
	c := metadata.NewCatalog(
		&metadata.Entity{
			Name:   "User",
			Fields: []*metadata.Field{{Name: "id", Kind: metadata.Integer}, {Name: "geo", Kind: "point"}},
			Associations: []*metadata.Association{
				{Name: "posts", Target: "Post", Type: metadata.OneToMany},
				{Name: "team", Target: "Team", Type: metadata.ManyToOne},
			},
		},
		&metadata.Entity{
			Name:       "Post",
			Identifier: []string{"author"},
			Fields:     []*metadata.Field{{Name: "title", Kind: metadata.String}},
			Associations: []*metadata.Association{
				{Name: "author", Target: "User", Type: metadata.OneToMany, MappedBy: "missing"},
			},
		},
	)
	r := c.Validate()
	require.True(t, r.HasErrors())
	require.True(t, r.HasWarnings())
	msg := r.String()
	assert.Contains(t, msg, "User: missing identifier")
	assert.Contains(t, msg, "User.posts: one-to-many association requires mappedBy")
	assert.Contains(t, msg, `User.team: unknown target entity "Team"`)
	assert.Contains(t, msg, `Post.author: mappedBy "missing" not found on User`)
	assert.Contains(t, msg, "Post.author: identifier association must be an owning single-valued association")
	assert.Contains(t, msg, `User.geo: unknown kind "point": field is not exposed`)
	require.Error(t, r.Err())

	assert.Equal(t, "No issues found", (&metadata.ValidationResult{}).String())
	assert.NoError(t, (&metadata.ValidationResult{}).Err())
}

func TestLoadErrors(t *testing.T) {
	_, err := metadata.Load(strings.NewReader("entities:\n  - name: A\n    bogus: 1\n"))
	require.Error(t, err)

	_, err = metadata.Load(strings.NewReader("entities:\n  - name: A\n    associations:\n      - {name: b, target: A, type: sideways}\n"))
	require.Error(t, err)

	_, err = metadata.LoadFile("testdata/missing.yaml")
	require.Error(t, err)

	c, err := metadata.Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, c.Len())
}

func TestKinds(t *testing.T) {
	t.Parallel()
	for _, k := range []metadata.Kind{
		metadata.Integer, metadata.BigInt, metadata.SmallInt, metadata.Float, metadata.Decimal,
		metadata.Boolean, metadata.UUID, metadata.String, metadata.Text, metadata.Date,
		metadata.Time, metadata.DateTime, metadata.DateTimeTZ,
	} {
		assert.True(t, k.Known(), k)
	}
	assert.False(t, metadata.Kind("json").Known())
	assert.True(t, metadata.Decimal.IsNumeric())
	assert.False(t, metadata.UUID.IsNumeric())
	assert.True(t, metadata.DateTimeTZ.IsTime())

	typ, err := metadata.ParseAssociationType("many_to_many")
	require.NoError(t, err)
	assert.Equal(t, metadata.ManyToMany, typ)
	assert.Equal(t, "manyToMany", typ.String())
	assert.Equal(t, "AssociationType(9)", metadata.AssociationType(9).String())
}
