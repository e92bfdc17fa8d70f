// Package dialect provides the database abstraction used by the gqlmap
// persistence layer.
//
// This package defines the interfaces the SQL store talks to, so the query
// and mutation engines never depend on a concrete database/sql handle.
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL database (github.com/lib/pq)
//   - MySQL: MySQL/MariaDB database (github.com/go-sql-driver/mysql)
//   - SQLite: SQLite database (modernc.org/sqlite)
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface carries the same Exec and Query methods plus Commit and
// Rollback. Both Driver and Tx satisfy ExecQuerier, which is what the
// statement builders in dialect/sql execute against.
//
// # Usage
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db?_pragma=foreign_keys(1)")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
//	st := sqlstore.New(drv, catalog)
//
// # Sub-packages
//
//   - dialect/sql: driver implementation, statement builders, row scanning, stats
//   - dialect/sql/schema: table creation from entity metadata
//   - dialect/sql/sqlgraph: constraint error classification
package dialect
