// Package privacy provides authorization rules evaluated before generated
// queries run and inside the transaction of generated mutations.
//
// # Core Concepts
//
//   - Policy: query and mutation rules for one entity
//   - Rule: a function that returns Allow, Deny, or Skip
//   - Viewer: the caller, carried in the context
//
// # Defining Policies
//
// Policies are attached to entities by name when the schema is built:
//
//	b := gqlmap.New(reg, st, gqlmap.WithPolicy(`App\Entity\Post`, privacy.Policy{
//	    Mutation: privacy.MutationPolicy{
//	        privacy.DenyIfNoViewer(),
//	        privacy.DenyFieldUpdates("author"),
//	        privacy.HasRole("admin"),
//	        privacy.IsOwner("author_id"),
//	        privacy.AlwaysDenyRule(),
//	    },
//	    Query: privacy.QueryPolicy{
//	        privacy.DenySearchOn("secret"),
//	        privacy.OnQuery(privacy.HasRole("admin"), query.OpPage),
//	        privacy.TenantFilter("tenantId"),
//	    },
//	}))
//
// Query rules run as a query.Guard. Page reads are Filterable, so rules
// such as TenantFilter narrow the statement on query.RootAlias instead of
// denying it, and Searchable, so rules can inspect the bound filter and
// match parameters. Mutation rules run as a mutation.Listener after the
// instance is written and before the transaction commits; a deny rolls
// everything back.
//
// # Rule Evaluation
//
// Rules are evaluated in order until one returns a final decision:
//
//   - Allow: grants access and stops evaluation
//   - Deny: denies access and stops evaluation
//   - Skip: continues to the next rule
//
// If every rule skips, access is granted. End a policy with
// AlwaysDenyRule to deny by default.
//
// # Viewer
//
//	ctx := privacy.WithViewer(ctx, &privacy.SimpleViewer{
//	    UserID:   "42",
//	    Roles:    []string{"user"},
//	    TenantID: "acme",
//	})
//
// A denied operation fails with a *DeniedError wrapping Deny:
//
//	if errors.Is(err, privacy.Deny) { ... }
package privacy
