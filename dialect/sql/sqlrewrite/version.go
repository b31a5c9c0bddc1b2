package sqlrewrite

import (
	"fmt"

	"vitess.io/vitess/go/vt/sqlparser"
)

// VersionRewrite is the result of AddVersionPredicate.
type VersionRewrite struct {
	// SQL is the statement text. It is the input text, untouched, when
	// Rewritten is false.
	SQL string
	// Position is the ordinal of the inserted placeholder among the
	// statement's bind arguments.
	Position int
	// Rewritten reports whether the predicate was added.
	Rewritten bool
}

// AddVersionPredicate ANDs "column = ?" in front of the WHERE clause of
// an UPDATE statement. Statements without a WHERE clause, or whose
// WHERE clause already mentions the column, are returned unchanged.
// Anything but an UPDATE is an error.
func AddVersionPredicate(query, column, dialect string) (VersionRewrite, error) {
	stmt, err := Parse(query, dialect)
	if err != nil {
		return VersionRewrite{}, rewriteErr("version", query, err)
	}
	upd, ok := stmt.AST.(*sqlparser.Update)
	if !ok {
		return VersionRewrite{}, rewriteErr("version", query, fmt.Errorf("%w: %T", errNotUpdate, stmt.AST))
	}
	if upd.Where == nil || upd.Where.Expr == nil || mentions(upd.Where, column) {
		return VersionRewrite{SQL: query}, nil
	}
	pos := countArgs(sqlparser.TableExprs(upd.TableExprs), upd.Exprs)
	if upd.With != nil {
		pos += countArgs(upd.With)
	}
	upd.Where.Expr = sqlparser.AndExpressions(
		&sqlparser.ComparisonExpr{
			Operator: sqlparser.EqualOp,
			Left:     colName(column),
			Right:    sqlparser.NewArgument("version"),
		},
		upd.Where.Expr,
	)
	return VersionRewrite{SQL: stmt.SQL(), Position: pos, Rewritten: true}, nil
}
