package sqlrewrite

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/lib/pq"
	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/syssam/veloxplug"
	"github.com/syssam/veloxplug/dialect"
)

// parser is shared by all rewrites. sqlparser.Parser is safe for
// concurrent use once built.
var parser = sync.OnceValues(func() (*sqlparser.Parser, error) {
	return sqlparser.New(sqlparser.Options{MySQLServerVersion: "8.0.40"})
})

// Statement is a parsed statement and the dialect it was written in.
type Statement struct {
	AST     sqlparser.Statement
	dialect string
	// quoted holds the identifiers that were double quoted in a
	// Postgres input. They are the only ones quoted on output.
	quoted map[string]bool
}

// Parse parses a single statement written for the given dialect.
// Postgres double quoted identifiers are accepted; numbered
// placeholders ($1) are not, statements must use "?".
func Parse(query, dialectName string) (*Statement, error) {
	p, err := parser()
	if err != nil {
		return nil, fmt.Errorf("sqlrewrite: init parser: %w", err)
	}
	s := &Statement{dialect: dialectName}
	if dialectName == dialect.Postgres {
		if query, s.quoted, err = fromPostgres(query); err != nil {
			return nil, err
		}
	}
	if s.AST, err = p.Parse(query); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseExpr parses a single expression, e.g. a literal value.
func ParseExpr(expr string) (sqlparser.Expr, error) {
	p, err := parser()
	if err != nil {
		return nil, fmt.Errorf("sqlrewrite: init parser: %w", err)
	}
	return p.ParseExpr(expr)
}

// SQL serializes the statement.
func (s *Statement) SQL() string {
	return s.Format(s.AST)
}

// Format serializes the statement or a node of it. Bind arguments are
// written as "?".
func (s *Statement) Format(node sqlparser.SQLNode) string {
	buf := sqlparser.NewTrackedBuffer(s.formatNode)
	buf.Myprintf("%v", node)
	return buf.String()
}

func (s *Statement) formatNode(buf *sqlparser.TrackedBuffer, node sqlparser.SQLNode) {
	postgres := s.dialect == dialect.Postgres
	switch node := node.(type) {
	case *sqlparser.Argument:
		buf.WriteByte('?')
	case sqlparser.IdentifierCI:
		if !postgres {
			node.Format(buf)
			return
		}
		s.writeIdent(buf, node.String())
	case sqlparser.IdentifierCS:
		if !postgres {
			node.Format(buf)
			return
		}
		s.writeIdent(buf, node.String())
	case *sqlparser.Limit:
		if !postgres || node == nil {
			node.Format(buf)
			return
		}
		buf.Myprintf(" limit %v", node.Rowcount)
		if node.Offset != nil {
			buf.Myprintf(" offset %v", node.Offset)
		}
	default:
		node.Format(buf)
	}
}

func (s *Statement) writeIdent(buf *sqlparser.TrackedBuffer, ident string) {
	switch {
	case ident == "":
	case s.quoted[ident]:
		buf.WriteString(pq.QuoteIdentifier(ident))
	default:
		buf.WriteString(ident)
	}
}

var errNumbered = errors.New(`numbered placeholders are not supported, use "?"`)

// fromPostgres turns a Postgres statement into the MySQL grammar of the
// parser. Double quoted identifiers become backquoted ones and are
// recorded, so Format can quote them again.
func fromPostgres(query string) (string, map[string]bool, error) {
	var (
		b      strings.Builder
		quoted map[string]bool
	)
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' || c == '`':
			end, _ := quotedEnd(query, i, c)
			b.WriteString(query[i:end])
			i = end - 1
		case c == '"':
			end, ok := quotedEnd(query, i, c)
			if !ok {
				return "", nil, fmt.Errorf("unterminated quoted identifier at position %d", i)
			}
			name := strings.ReplaceAll(query[i+1:end-1], `""`, `"`)
			if quoted == nil {
				quoted = make(map[string]bool)
			}
			quoted[name] = true
			b.WriteByte('`')
			b.WriteString(strings.ReplaceAll(name, "`", "``"))
			b.WriteByte('`')
			i = end - 1
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query) - i
			}
			b.WriteString(query[i : i+end])
			i += end - 1
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				b.WriteString(query[i:])
				return b.String(), quoted, nil
			}
			b.WriteString(query[i : i+end+4])
			i += end + 3
		case c == '$' && i+1 < len(query) && isDigit(query[i+1]) && (i == 0 || !isIdentByte(query[i-1])):
			return "", nil, errNumbered
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), quoted, nil
}

// quotedEnd returns the index right after the quoted section starting
// at i, and whether the section is terminated. Doubled quote characters
// are escapes.
func quotedEnd(s string, i int, q byte) (int, bool) {
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j + 1, true
	}
	return len(s), false
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || isDigit(c) || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// IsIdent reports whether s is a plain or table qualified column name
// that can be placed in a statement without quoting.
func IsIdent(s string) bool {
	return identRe.MatchString(s)
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// colName builds a column reference from a plain or qualified name.
func colName(name string) *sqlparser.ColName {
	if table, column, ok := strings.Cut(name, "."); ok {
		return sqlparser.NewColNameWithQualifier(column, sqlparser.NewTableName(table))
	}
	return sqlparser.NewColName(name)
}

// countArgs counts the bind arguments in the given nodes.
func countArgs(nodes ...sqlparser.SQLNode) int {
	var n int
	visit := func(node sqlparser.SQLNode) (bool, error) {
		if _, ok := node.(*sqlparser.Argument); ok {
			n++
		}
		return true, nil
	}
	for _, node := range nodes {
		_ = sqlparser.Walk(visit, node)
	}
	return n
}

// mentions reports whether the text of node mentions column.
func mentions(node sqlparser.SQLNode, column string) bool {
	text := strings.ReplaceAll(sqlparser.String(node), "`", "")
	return strings.Contains(strings.ToLower(text), strings.ToLower(column))
}

// references reports whether node holds a reference to column for
// which match returns true. Subqueries are not searched.
func references(node sqlparser.SQLNode, column string, match func(*sqlparser.ColName) bool) bool {
	var found bool
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch node := node.(type) {
		case *sqlparser.Subquery:
			return false, nil
		case *sqlparser.ColName:
			if node.Name.EqualString(column) && match(node) {
				found = true
			}
		}
		return !found, nil
	}, node)
	return found
}

func rewriteErr(op, query string, err error) error {
	return &veloxplug.SQLRewriteError{Op: op, SQL: query, Err: err}
}

var errNotUpdate = errors.New("statement is not an UPDATE")
