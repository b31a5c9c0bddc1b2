package sqlrewrite

import (
	"errors"
	"fmt"
	"strconv"

	"vitess.io/vitess/go/vt/sqlparser"
)

// Order is an ORDER BY item appended by Paginate.
type Order struct {
	Column string
	Asc    bool
}

// Asc returns an ascending order on column.
func Asc(column string) Order { return Order{Column: column, Asc: true} }

// Desc returns a descending order on column.
func Desc(column string) Order { return Order{Column: column} }

var errHasLimit = errors.New("statement already has a parameterized LIMIT clause")

// Paginate appends the orders to a SELECT (or UNION) statement and
// sets its LIMIT and OFFSET. A limit below 1 leaves the statement
// unlimited. Existing literal LIMIT clauses are replaced.
func Paginate(query string, offset, limit int64, orders []Order, dialect string) (string, error) {
	parsed, err := Parse(query, dialect)
	if err != nil {
		return "", rewriteErr("paginate", query, err)
	}
	var (
		orderBy *sqlparser.OrderBy
		lim     **sqlparser.Limit
	)
	switch stmt := parsed.AST.(type) {
	case *sqlparser.Select:
		orderBy, lim = &stmt.OrderBy, &stmt.Limit
	case *sqlparser.Union:
		orderBy, lim = &stmt.OrderBy, &stmt.Limit
	default:
		return "", rewriteErr("paginate", query, fmt.Errorf("statement is not a SELECT: %T", stmt))
	}
	if *lim != nil && countArgs(*lim) > 0 {
		return "", rewriteErr("paginate", query, errHasLimit)
	}
	for _, o := range orders {
		if !IsIdent(o.Column) {
			return "", rewriteErr("paginate", query, fmt.Errorf("invalid order column %q", o.Column))
		}
		dir := sqlparser.DescOrder
		if o.Asc {
			dir = sqlparser.AscOrder
		}
		*orderBy = append(*orderBy, &sqlparser.Order{Expr: colName(o.Column), Direction: dir})
	}
	if limit > 0 {
		l := &sqlparser.Limit{Rowcount: sqlparser.NewIntLiteral(strconv.FormatInt(limit, 10))}
		if offset > 0 {
			l.Offset = sqlparser.NewIntLiteral(strconv.FormatInt(offset, 10))
		}
		*lim = l
	}
	return parsed.SQL(), nil
}

// CountQuery wraps a SELECT statement into a row count query:
//
//	select count(*) from (<query>) as total
//
// ORDER BY is dropped from the inner query unless it holds bind
// arguments, so the count query binds the same arguments as the input.
func CountQuery(query, dialect string) (string, error) {
	parsed, err := Parse(query, dialect)
	if err != nil {
		return "", rewriteErr("count", query, err)
	}
	switch stmt := parsed.AST.(type) {
	case *sqlparser.Select:
		if countArgs(stmt.OrderBy) == 0 {
			stmt.OrderBy = nil
		}
	case *sqlparser.Union:
		if countArgs(stmt.OrderBy) == 0 {
			stmt.OrderBy = nil
		}
	default:
		return "", rewriteErr("count", query, fmt.Errorf("statement is not a SELECT: %T", stmt))
	}
	return "select count(*) from (" + parsed.SQL() + ") as total", nil
}
