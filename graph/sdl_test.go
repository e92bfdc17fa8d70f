package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/gqlmap/gqlerr"
	"github.com/syssam/gqlmap/metadata"
)

func TestSDL(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	id, _ := reg.MapScalarKind(metadata.Integer, false, false)
	created, _ := reg.MapScalarKind(metadata.DateTime, true, false)
	user := NewObject("User", "Entity User type",
		&Field{Name: "id", Type: id},
		&Field{Name: "createdAt", Type: created},
	)
	input := NewInput("UserInput", "Entity User input", &Field{Name: "id", Type: id})
	reg.AddType(user).AddType(input)
	user.AddField(&Field{Name: "friends", Type: reg.ListOf(user)})
	reg.AddQuery(&Operation{Name: "getUser", Type: user, Args: []*Argument{{Name: "id", Type: id}}})
	reg.AddMutation(&Operation{Name: "createUser", Type: user, Args: []*Argument{{Name: "input", Type: reg.NonNullOf(input)}}})

	sdl, err := reg.SDL()
	require.NoError(t, err)
	assert.Contains(t, sdl, "scalar DateTime")
	assert.Contains(t, sdl, "type User")
	assert.Contains(t, sdl, "friends: [User]")
	assert.Contains(t, sdl, "input UserInput")
	assert.Contains(t, sdl, "enum SearchOperator")
	assert.Contains(t, sdl, "getUser(id: Int!): User")
	assert.Contains(t, sdl, "createUser(input: UserInput!): User")
	assert.NotContains(t, sdl, "scalar Int")
}

func TestSDLUnknownReference(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.AddQuery(&Operation{Name: "getUser", Type: Ref("User")})
	_, err := reg.SDL()
	require.Error(t, err)
	assert.True(t, gqlerr.IsConfigError(err))
}

func TestSDLEmpty(t *testing.T) {
	t.Parallel()
	sdl, err := NewRegistry().SDL()
	require.NoError(t, err)
	assert.Contains(t, sdl, "_schema: String")
	assert.NotContains(t, sdl, "type Mutation")
}
