// Package logicdelete turns DELETE statements into flag updates and
// hides flagged rows from SELECT and UPDATE statements.
package logicdelete

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/syssam/veloxplug/dialect/sql/sqlrewrite"
	"github.com/syssam/veloxplug/plugin"
	"github.com/syssam/veloxplug/schema"
)

// Default flag values.
const (
	DefaultColumn     = "deleted"
	DefaultDeleted    = "1"
	DefaultNotDeleted = "0"
)

// Interceptor applies logical deletion to registered tables.
type Interceptor struct {
	rewriter sqlrewrite.LogicDelete
	log      *slog.Logger

	mu     sync.RWMutex
	tables map[string]struct{}
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// Column sets the flag column.
func Column(name string) Option {
	return func(i *Interceptor) {
		i.rewriter.Column = name
	}
}

// Values sets the SQL literals of deleted and live rows, e.g. "1" and
// "0", or "NOW()" and "NULL".
func Values(deleted, notDeleted string) Option {
	return func(i *Interceptor) {
		i.rewriter.Deleted = deleted
		i.rewriter.NotDeleted = notDeleted
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Interceptor) {
		i.log = l
	}
}

// New returns an interceptor. Tables are added with Register.
func New(opts ...Option) (*Interceptor, error) {
	i := &Interceptor{
		rewriter: sqlrewrite.LogicDelete{
			Column:     DefaultColumn,
			Deleted:    DefaultDeleted,
			NotDeleted: DefaultNotDeleted,
		},
		log:    slog.Default(),
		tables: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	if err := i.rewriter.Validate(); err != nil {
		return nil, err
	}
	i.rewriter.Match = i.has
	return i, nil
}

// Register marks tables as logically deleted. Targets are table names
// or entities, resolved with schema.TableName.
func (i *Interceptor) Register(targets ...any) error {
	names := make([]string, 0, len(targets))
	for _, target := range targets {
		name, err := schema.TableName(target)
		if err != nil {
			return fmt.Errorf("logicdelete: %w", err)
		}
		names = append(names, strings.ToLower(name))
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, name := range names {
		i.tables[name] = struct{}{}
	}
	return nil
}

func (i *Interceptor) has(table string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.tables[strings.ToLower(table)]
	return ok
}

// Intercept implements plugin.Interceptor.
func (i *Interceptor) Intercept(ctx context.Context, inv *plugin.Invocation) error {
	stmt := inv.Statement
	switch stmt.Command {
	case plugin.CommandSelect, plugin.CommandUpdate, plugin.CommandDelete:
	default:
		return nil
	}
	r, err := i.rewriter.Rewrite(stmt.SQL, inv.Dialect)
	if err != nil {
		return err
	}
	if !r.Rewritten {
		return nil
	}
	stmt.SQL = r.SQL
	if r.Converted {
		stmt.Command = plugin.CommandUpdate
		i.log.DebugContext(ctx, "delete converted to flag update", slog.String("statement", stmt.ID))
	}
	return nil
}

var _ plugin.Interceptor = (*Interceptor)(nil)
