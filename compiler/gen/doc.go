// Package gen generates a typed Go client and the SDL file of a built
// schema registry.
//
// # Pipeline
//
// Generation runs in two steps, the same way for every registry:
//
//	graph.Registry (after gqlmap.Builder has run)
//	        ↓
//	   Load: Graph (types, enums, operations with their documents)
//	        ↓
//	   Generator: types.go, operations.go, client.go, schema.graphql
//
// Load walks the registry once. Object and input types become Go structs,
// enums become string types, and every root query and mutation becomes a
// GraphQL document plus a client method. Selection sets follow object
// fields up to a configurable depth, so that cyclic associations terminate.
//
// # Usage
//
//	g, err := gen.Load(reg, gen.WithDepth(2))
//	if err != nil {
//		return err
//	}
//	err = gen.New(g, "./client", gen.WithPackage("client")).Generate(ctx)
//
// The generated client posts documents to a GraphQL endpoint:
//
//	c := client.New("http://localhost:8080/graphql")
//	user, err := c.GetUser(ctx, 42)
//
// # Errors
//
// Load reports registry problems, such as an unknown type reference or a
// type name reserved by the generated client, as *gqlerr.ConfigError.
package gen
