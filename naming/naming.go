// Package naming derives GraphQL type names from fully qualified entity
// names.
package naming

import (
	"strings"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Generator turns a fully qualified entity name into a GraphQL type name.
type Generator interface {
	Generate(name string) string
}

// Func is an adapter to allow the use of ordinary functions as Generator.
type Func func(string) string

// Generate calls f(name).
func (f Func) Generate(name string) string { return f(name) }

// separators are the namespace separators removed by Simple.
const separators = `\./`

// Simple strips namespace separators: App\Entity\User becomes AppEntityUser.
var Simple Generator = Func(func(name string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(separators, r) {
			return -1
		}
		return r
	}, name)
})

// TrimPrefix applies Simple and removes the given (separator free) prefix.
//
//	TrimPrefix(`App`).Generate(`App\Entity\User`) // EntityUser
func TrimPrefix(prefix string) Generator {
	return Func(func(name string) string {
		return strings.TrimPrefix(Simple.Generate(name), prefix)
	})
}

// Short keeps the last namespace segment only, camelized:
// App\Entity\blog_post becomes BlogPost.
var Short Generator = Func(func(name string) string {
	if i := strings.LastIndexAny(name, separators); i >= 0 {
		name = name[i+1:]
	}
	return inflect.Camelize(name)
})

// Pascal upper-cases the first letter of s and keeps the rest, so that
// createdAt becomes CreatedAt.
func Pascal(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(s)
}

// Plural returns the plural form of s.
func Plural(s string) string {
	return inflect.Pluralize(s)
}
