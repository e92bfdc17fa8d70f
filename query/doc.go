// Package query implements the read side of the generated API: point
// lookups by identifier, identifier list lookups, and paginated search.
//
// A page query walks the filter and match arguments against the search
// input of the entity. Scalar fields become comparisons on the column of
// the current alias; nested inputs join the related table under an alias
// derived by AliasManager and recurse into it:
//
//	{ posts: { author: { age: [{operator: GTE, value: "18"}] } } }
//
// joins posts as "ep" and users as "epa" and emits "epa"."age" >= ?.
//
// Filter predicates are AND-ed, match predicates OR-ed, and the two groups
// AND-ed together. When any join was added the statement selects DISTINCT
// rows and the total counts distinct identifiers.
package query
