// Package sql provides the SQL driver, statement builders and row scanning
// used by the gqlmap SQL store.
//
// # Builder Types
//
//   - Builder: low-level string builder with identifier quoting and
//     dialect-specific placeholders ("?" or "$n")
//   - Selector: SELECT with joins, DISTINCT, ordering and offset pagination
//   - InsertBuilder: INSERT with optional RETURNING
//   - UpdateBuilder: UPDATE with SET and WHERE clauses
//   - DeleteBuilder: DELETE with WHERE predicates
//
// # Predicates
//
//	sql.EQ("u.name", "john")              // "u"."name" = ?
//	sql.Compare("u.age", sql.OpGTE, 18)   // "u"."age" >= ?
//	sql.In("id", 1, 2, 3)                 // "id" IN (?, ?, ?)
//	sql.ColumnsEQ("u.id", "p.user_id")    // join condition
//	sql.And(p1, sql.Or(p2, p3))
//
// # Joins and counting
//
//	s := sql.Dialect(dialect.Postgres).
//	    Select("u.id", "u.name").
//	    From("users", "u").
//	    Join("posts", "up", sql.ColumnsEQ("u.id", "up.user_id")).
//	    Where(sql.GT("up.score", 10)).
//	    Distinct().
//	    OrderBy("u.name", sql.Asc).
//	    Limit(10).Offset(20)
//
//	count := s.CountSelector("u.id") // SELECT COUNT(*) FROM (SELECT DISTINCT ...) AS t
//
// # Statistics
//
// NewStatsDriver wraps any dialect.Driver, counts statements, logs slow ones
// through zap and optionally feeds Prometheus collectors created by
// NewMetrics.
package sql
