package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerators(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		gen  Generator
		in   string
		want string
	}{
		{"simple", Simple, `LLA\DoctrineGraphQLTest\Entity\User`, "LLADoctrineGraphQLTestEntityUser"},
		{"simple_dotted", Simple, "app.entity.User", "appentityUser"},
		{"simple_flat", Simple, "User", "User"},
		{"trim_prefix", TrimPrefix("LLADoctrineGraphQLTest"), `LLA\DoctrineGraphQLTest\Entity\User`, "EntityUser"},
		{"short", Short, `App\Entity\User`, "User"},
		{"short_snake", Short, `App\Entity\blog_post`, "BlogPost"},
		{"func", Func(func(s string) string { return "X" + s }), "User", "XUser"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.gen.Generate(tt.in))
		})
	}
}

func TestPascal(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "CreatedAt", Pascal("createdAt"))
	assert.Equal(t, "ID", Pascal("iD"))
	assert.Equal(t, "Posts", Plural("Post"))
}
