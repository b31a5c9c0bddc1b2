// Package plugin runs SQL statements through a chain of interceptors
// before they reach a dialect.Driver.
//
// A Statement carries the SQL text, its parameter object and the
// ordered bindings that turn the parameter into positional arguments.
// Interceptors may rewrite the text, change the parameter or edit the
// bindings. After the chain has run, bindings are resolved into the
// argument list passed to the underlying driver:
//
//	drv := plugin.NewDriver(sql.OpenDB(dialect.Postgres, db),
//	    plugin.WithInterceptors(optlock.New()),
//	    plugin.WithStrictUpdate(),
//	)
//	stmt := plugin.NewStatement(
//	    "UPDATE users SET name = ? WHERE id = ?",
//	    &user, plugin.Bind("Name", "ID")...,
//	)
//	res, err := drv.ExecStatement(ctx, stmt)
package plugin
