// Package graph provides the deferred GraphQL type graph the schema builder
// registers into, and the registry that materializes it.
//
// # Definitions
//
// Definitions are addressed by name only. Objects and inputs stay mutable
// until BuildSchema, which is how association fields are wired onto types
// that were registered earlier:
//
//	reg := graph.NewRegistry()
//	user := graph.NewObject("User", "Entity User type")
//	post := graph.NewObject("Post", "Entity Post type")
//	reg.AddType(user).AddType(post)
//	user.AddField(&graph.Field{Name: "posts", Type: reg.ListOf(post)})
//	post.AddField(&graph.Field{Name: "author", Type: user})
//
// List and NonNull modifiers wrap other definitions. They never enter the
// direct type table; the registry shares one instance per decorated name.
// Ref names a type that is expected to be registered by the time the
// schema is built.
//
// # Materialization
//
// BuildSchema runs two passes over the registered definitions. The first
// creates a graphql-go type for every direct definition, with fields
// supplied through thunks, and a placeholder for every modifier. The
// second resolves the placeholders once their targets exist. Visited sets
// keyed by name make cyclic graphs terminate. Unresolvable references are
// reported as *gqlerr.ConfigError.
//
// # Built-ins
//
// NewRegistry registers Int, Float, Boolean, String and DateTime with their
// X! and [X] modifiers, the SearchOperator and SortingOrientation enums,
// and the SearchFilter object and SearchFilterInput input.
package graph
