// Package sqlrewrite parses statements into a vitess AST, transforms
// them and serializes them back to text.
//
// Input statements use "?" placeholders and MySQL compatible syntax;
// Postgres statements may double quote identifiers. Output keeps "?"
// placeholders for every bind argument, so callers rebind them for the
// target dialect (see dialect/sql.Rebind). For Postgres, identifiers
// keep the quoting they had in the input, and LIMIT clauses use the
// "limit N offset M" form.
package sqlrewrite
