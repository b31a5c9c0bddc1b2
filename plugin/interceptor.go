package plugin

import (
	"context"

	"github.com/syssam/veloxplug/dialect"
)

// Invocation is the context of one statement execution handed to
// every interceptor in the chain.
type Invocation struct {
	Statement *Statement
	// Dialect of the underlying driver.
	Dialect string
	// Executor runs auxiliary statements, e.g. pagination count
	// queries. Inside a transaction it is the transaction.
	Executor dialect.ExecQuerier
	// Types holds the registered type handlers.
	Types *TypeRegistry
}

// Args resolves the current bindings of the statement.
func (inv *Invocation) Args() ([]any, error) {
	return inv.Statement.Args(inv.Types)
}

// Interceptor inspects or rewrites a statement before execution.
// Interceptors are shared by concurrent executions and must not keep
// per-call state.
type Interceptor interface {
	Intercept(context.Context, *Invocation) error
}

// The InterceptFunc type is an adapter to allow the use of ordinary
// functions as Interceptor.
type InterceptFunc func(context.Context, *Invocation) error

// Intercept calls f(ctx, inv).
func (f InterceptFunc) Intercept(ctx context.Context, inv *Invocation) error {
	return f(ctx, inv)
}

// Chain runs interceptors in order, stopping at the first error.
type Chain []Interceptor

// Intercept implements Interceptor.
func (c Chain) Intercept(ctx context.Context, inv *Invocation) error {
	for _, i := range c {
		if err := i.Intercept(ctx, inv); err != nil {
			return err
		}
	}
	return nil
}
