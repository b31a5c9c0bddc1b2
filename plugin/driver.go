package plugin

import (
	"context"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/syssam/veloxplug"
	"github.com/syssam/veloxplug/dialect"
	"github.com/syssam/veloxplug/dialect/sql"
)

// Stats counts statements prepared by a Driver.
type Stats struct {
	// Statements is the number of statements prepared.
	Statements atomic.Int64
	// Rewritten is the number of statements whose text was changed by
	// an interceptor.
	Rewritten atomic.Int64
	// Conflicts is the number of optimistic lock conflicts reported in
	// strict mode.
	Conflicts atomic.Int64
}

// Driver is a dialect.Driver that runs Statements through an
// interceptor chain. Raw Exec and Query calls are passed to the
// wrapped driver unchanged.
type Driver struct {
	dialect.Driver
	chain  Chain
	types  *TypeRegistry
	log    *slog.Logger
	strict bool
	stats  Stats
}

// Option configures a Driver.
type Option func(*Driver)

// WithInterceptors appends interceptors to the chain.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(d *Driver) {
		d.chain = append(d.chain, interceptors...)
	}
}

// WithLogger sets the logger for statement rewrites.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.log = l
	}
}

// WithTypeHandler registers a type handler for values of type t.
func WithTypeHandler(t reflect.Type, h TypeHandler) Option {
	return func(d *Driver) {
		d.types.Register(t, h)
	}
}

// WithStrictUpdate makes versioned updates that affect no row fail
// with a veloxplug.OptimisticLockError.
func WithStrictUpdate() Option {
	return func(d *Driver) {
		d.strict = true
	}
}

// NewDriver wraps drv with an interceptor chain.
func NewDriver(drv dialect.Driver, opts ...Option) *Driver {
	d := &Driver{
		Driver: drv,
		types:  NewTypeRegistry(),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stats returns the statement counters.
func (d *Driver) Stats() *Stats {
	return &d.stats
}

// Types returns the type handler registry.
func (d *Driver) Types() *TypeRegistry {
	return d.types
}

// Prepare runs the interceptor chain on stmt and returns the final
// query and arguments without executing them.
func (d *Driver) Prepare(ctx context.Context, stmt *Statement) (string, []any, error) {
	return d.prepare(ctx, d.Driver, stmt)
}

// ExecStatement prepares and executes a statement that returns no rows.
func (d *Driver) ExecStatement(ctx context.Context, stmt *Statement) (sql.Result, error) {
	return d.exec(ctx, d.Driver, stmt)
}

// QueryStatement prepares and executes a statement that returns rows.
func (d *Driver) QueryStatement(ctx context.Context, stmt *Statement, rows *sql.Rows) error {
	return d.query(ctx, d.Driver, stmt, rows)
}

// Tx starts a transaction running statements through the same chain.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	return d.BeginTx(ctx)
}

// BeginTx is like Tx but returns the concrete transaction type.
func (d *Driver) BeginTx(ctx context.Context) (*Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: tx, drv: d}, nil
}

func (d *Driver) prepare(ctx context.Context, exec dialect.ExecQuerier, stmt *Statement) (string, []any, error) {
	if stmt.Command == CommandUnknown {
		stmt.Command = CommandOf(stmt.SQL)
	}
	orig := stmt.SQL
	inv := &Invocation{
		Statement: stmt,
		Dialect:   d.Dialect(),
		Executor:  exec,
		Types:     d.types,
	}
	if err := d.chain.Intercept(ctx, inv); err != nil {
		return "", nil, err
	}
	d.stats.Statements.Add(1)
	if stmt.SQL != orig {
		d.stats.Rewritten.Add(1)
		d.log.DebugContext(ctx, "statement rewritten",
			slog.String("statement", stmt.ID),
			slog.String("sql", stmt.SQL),
		)
	}
	args, err := inv.Args()
	if err != nil {
		return "", nil, err
	}
	return stmt.SQL, args, nil
}

func (d *Driver) exec(ctx context.Context, exec dialect.ExecQuerier, stmt *Statement) (sql.Result, error) {
	query, args, err := d.prepare(ctx, exec, stmt)
	if err != nil {
		return nil, err
	}
	var res sql.Result
	if err := exec.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	if d.strict && stmt.Command == CommandUpdate && stmt.HasBinding(OriginVersionKey) {
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			d.stats.Conflicts.Add(1)
			version, _ := stmt.AdditionalParameter(OriginVersionKey)
			return res, veloxplug.NewOptimisticLockError(statementName(stmt), version)
		}
	}
	return res, nil
}

func (d *Driver) query(ctx context.Context, exec dialect.ExecQuerier, stmt *Statement, rows *sql.Rows) error {
	query, args, err := d.prepare(ctx, exec, stmt)
	if err != nil {
		return err
	}
	return exec.Query(ctx, query, args, rows)
}

func statementName(stmt *Statement) string {
	if stmt.ID != "" {
		return stmt.ID
	}
	return stmt.SQL
}

// Tx is a transaction running statements through the driver chain.
type Tx struct {
	dialect.Tx
	drv *Driver
}

// ExecStatement prepares and executes a statement in the transaction.
func (tx *Tx) ExecStatement(ctx context.Context, stmt *Statement) (sql.Result, error) {
	return tx.drv.exec(ctx, tx.Tx, stmt)
}

// QueryStatement prepares and executes a query in the transaction.
func (tx *Tx) QueryStatement(ctx context.Context, stmt *Statement, rows *sql.Rows) error {
	return tx.drv.query(ctx, tx.Tx, stmt, rows)
}

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Tx     = (*Tx)(nil)
)
