// Package optlock implements optimistic locking for UPDATE statements.
//
// An entity opts in by tagging one field as its version:
//
//	type User struct {
//	    ID      int64  `db:"id"`
//	    Name    string `db:"name"`
//	    Version int64  `db:"version" veloxplug:"version"`
//	}
//
// For every UPDATE whose entity carries a non-nil version, the
// interceptor adds "version = ?" to the WHERE clause, binds the value
// read from the entity to that placeholder and writes the next value
// into the entity, so the statement's "SET version = ?" binding stores
// the incremented version. An update that matches no row then means
// another writer got there first.
//
// Version values advance through strategies resolved by field type.
// Integer types are incremented with wrap-around, time.Time fields are
// set to the current time. Other types need a registered strategy:
//
//	optlock.New(optlock.WithStrategies(
//	    optlock.StrategyOf(optlock.IncrementerFunc[MyVersion](func(v MyVersion) MyVersion {
//	        return v.Next()
//	    })),
//	))
package optlock
