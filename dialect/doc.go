// Package dialect defines the driver contract the statement pipeline is
// plugged into.
//
// The interfaces mirror the ORM runtime: every statement goes through
// Exec or Query with a query string, the positional arguments and a
// destination value. Plugins wrap a Driver and rewrite the statement
// before it reaches the database.
//
// # Supported Dialects
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite3"
//
// Statements are always written with "?" placeholders. Drivers for
// dialects with numbered placeholders (Postgres) rebind them right
// before execution, see dialect/sql.Rebind.
//
// # Sub-packages
//
//   - dialect/sql: database/sql backed Driver, statistics and debug wrappers
//   - dialect/sql/sqlrewrite: AST based SQL rewriting (version predicates,
//     pagination, logical delete)
package dialect
