package sqlrewrite

import (
	"errors"
	"fmt"
	"strings"

	"vitess.io/vitess/go/vt/sqlparser"
)

// LogicDelete rewrites statements on logically deleted tables.
type LogicDelete struct {
	Column     string // flag column, e.g. "deleted"
	Deleted    string // SQL literal marking a deleted row, e.g. "1" or "NOW()"
	NotDeleted string // SQL literal marking a live row, e.g. "0" or "NULL"
	// Match reports whether a table is logically deleted. A nil Match
	// matches every table.
	Match func(table string) bool
}

// LogicRewrite is the result of LogicDelete.Rewrite.
type LogicRewrite struct {
	SQL       string
	Rewritten bool
	// Converted reports that a DELETE was turned into an UPDATE.
	Converted bool
}

// Validate checks the configured column and values.
func (l *LogicDelete) Validate() error {
	if !IsIdent(l.Column) || strings.Contains(l.Column, ".") {
		return fmt.Errorf("sqlrewrite: invalid logic delete column %q", l.Column)
	}
	if _, err := l.value(l.Deleted); err != nil {
		return fmt.Errorf("sqlrewrite: invalid deleted value %q: %w", l.Deleted, err)
	}
	if _, err := l.value(l.NotDeleted); err != nil {
		return fmt.Errorf("sqlrewrite: invalid not deleted value %q: %w", l.NotDeleted, err)
	}
	return nil
}

// Rewrite filters SELECT and UPDATE statements on live rows and turns
// single table DELETE statements into flag updates. Other statements,
// and statements on unmatched tables, are returned unchanged.
func (l *LogicDelete) Rewrite(query, dialect string) (LogicRewrite, error) {
	parsed, err := Parse(query, dialect)
	if err != nil {
		return LogicRewrite{}, rewriteErr("logic delete", query, err)
	}
	var changed, converted bool
	switch s := parsed.AST.(type) {
	case *sqlparser.Select:
		changed, err = l.filter(s.From, &s.Where)
	case *sqlparser.Update:
		changed, err = l.filter(s.TableExprs, &s.Where)
	case *sqlparser.Delete:
		var upd *sqlparser.Update
		if upd, err = l.convert(s); upd != nil {
			parsed.AST, changed, converted = upd, true, true
		}
	}
	if err != nil {
		return LogicRewrite{}, rewriteErr("logic delete", query, err)
	}
	if !changed {
		return LogicRewrite{SQL: query}, nil
	}
	return LogicRewrite{SQL: parsed.SQL(), Rewritten: true, Converted: converted}, nil
}

// filter adds the live row predicate of every matched table. Tables of
// the outermost FROM list go to WHERE, the right side of joins goes to
// the join condition.
func (l *LogicDelete) filter(from []sqlparser.TableExpr, where **sqlparser.Where) (bool, error) {
	var changed bool
	for _, te := range from {
		ok, err := l.filterExpr(te, where, false)
		if err != nil {
			return false, err
		}
		changed = changed || ok
	}
	return changed, nil
}

func (l *LogicDelete) filterExpr(te sqlparser.TableExpr, where **sqlparser.Where, joined bool) (bool, error) {
	switch te := te.(type) {
	case *sqlparser.AliasedTableExpr:
		qualifier, table, ok := l.qualifier(te, joined)
		if !ok {
			return false, nil
		}
		if *where != nil && l.filtered(*where, qualifier, table) {
			return false, nil
		}
		pred, err := l.predicate(qualifier)
		if err != nil {
			return false, err
		}
		if *where == nil {
			*where = sqlparser.NewWhere(sqlparser.WhereClause, pred)
		} else {
			(*where).Expr = sqlparser.AndExpressions((*where).Expr, pred)
		}
		return true, nil
	case *sqlparser.JoinTableExpr:
		left, err := l.filterExpr(te.LeftExpr, where, true)
		if err != nil {
			return false, err
		}
		right, err := l.filterJoin(te)
		if err != nil {
			return false, err
		}
		return left || right, nil
	case *sqlparser.ParenTableExpr:
		return l.filter(te.Exprs, where)
	}
	return false, nil
}

func (l *LogicDelete) filterJoin(join *sqlparser.JoinTableExpr) (bool, error) {
	if join.Condition != nil && len(join.Condition.Using) > 0 {
		return false, nil
	}
	var on *sqlparser.Where
	if join.Condition != nil && join.Condition.On != nil {
		on = sqlparser.NewWhere(sqlparser.WhereClause, join.Condition.On)
	}
	changed, err := l.filterExpr(join.RightExpr, &on, true)
	if err != nil || !changed {
		return false, err
	}
	if join.Condition == nil {
		join.Condition = &sqlparser.JoinCondition{}
	}
	join.Condition.On = on.Expr
	return true, nil
}

// qualifier returns the name used to qualify the flag column of a
// matched table (its alias, or its name inside joins) and the table name.
func (l *LogicDelete) qualifier(te *sqlparser.AliasedTableExpr, joined bool) (string, string, bool) {
	name, ok := te.Expr.(sqlparser.TableName)
	if !ok || !l.matches(name.Name.String()) {
		return "", "", false
	}
	table := name.Name.String()
	switch {
	case !te.As.IsEmpty():
		return te.As.String(), table, true
	case joined:
		return table, table, true
	default:
		return "", table, true
	}
}

// filtered reports whether where already references the flag column of
// the table. An unqualified reference only counts for a table that is
// not qualified itself.
func (l *LogicDelete) filtered(where *sqlparser.Where, qualifier, table string) bool {
	return references(where, l.Column, func(col *sqlparser.ColName) bool {
		q := col.Qualifier.Name.String()
		switch {
		case q == "":
			return qualifier == ""
		case qualifier == "":
			return strings.EqualFold(q, table)
		default:
			return strings.EqualFold(q, qualifier)
		}
	})
}

func (l *LogicDelete) matches(table string) bool {
	return l.Match == nil || l.Match(table)
}

func (l *LogicDelete) convert(del *sqlparser.Delete) (*sqlparser.Update, error) {
	if len(del.Targets) > 0 || len(del.TableExprs) != 1 {
		return nil, nil
	}
	te, ok := del.TableExprs[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return nil, nil
	}
	qualifier, table, ok := l.qualifier(te, false)
	if !ok {
		return nil, nil
	}
	deleted, err := l.value(l.Deleted)
	if err != nil {
		return nil, err
	}
	where := del.Where
	if where == nil || !l.filtered(where, qualifier, table) {
		pred, err := l.predicate(qualifier)
		if err != nil {
			return nil, err
		}
		if where == nil {
			where = sqlparser.NewWhere(sqlparser.WhereClause, pred)
		} else {
			where.Expr = sqlparser.AndExpressions(where.Expr, pred)
		}
	}
	return &sqlparser.Update{
		With:       del.With,
		Comments:   del.Comments,
		TableExprs: del.TableExprs,
		Exprs: sqlparser.UpdateExprs{
			&sqlparser.UpdateExpr{Name: l.column(qualifier), Expr: deleted},
		},
		Where:   where,
		OrderBy: del.OrderBy,
		Limit:   del.Limit,
	}, nil
}

func (l *LogicDelete) column(qualifier string) *sqlparser.ColName {
	if qualifier == "" {
		return sqlparser.NewColName(l.Column)
	}
	return sqlparser.NewColNameWithQualifier(l.Column, sqlparser.NewTableName(qualifier))
}

// predicate returns the live row condition.
func (l *LogicDelete) predicate(qualifier string) (sqlparser.Expr, error) {
	col := l.column(qualifier)
	if strings.EqualFold(strings.TrimSpace(l.NotDeleted), "null") {
		return &sqlparser.IsExpr{Left: col, Right: sqlparser.IsNullOp}, nil
	}
	v, err := l.value(l.NotDeleted)
	if err != nil {
		return nil, err
	}
	return &sqlparser.ComparisonExpr{Operator: sqlparser.EqualOp, Left: col, Right: v}, nil
}

var errArgValue = errors.New("value must be a literal")

// value parses a configured value. Anything that does not parse as an
// expression is used as a string literal.
func (l *LogicDelete) value(s string) (sqlparser.Expr, error) {
	s = strings.TrimSpace(s)
	expr, err := ParseExpr(s)
	if err != nil {
		return sqlparser.NewStrLiteral(s), nil
	}
	if countArgs(expr) > 0 {
		return nil, errArgValue
	}
	if _, ok := expr.(*sqlparser.ColName); ok {
		return sqlparser.NewStrLiteral(s), nil
	}
	return expr, nil
}
