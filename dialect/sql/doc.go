// Package sql provides a database/sql backed implementation of the
// dialect.Driver contract, plus driver wrappers that observe every
// statement.
//
// # Driver
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// Statements handed to the driver use "?" placeholders. For Postgres
// they are rebound to $1, $2, ... right before execution:
//
//	sql.Rebind(dialect.Postgres, "select * from users where id = ? and org = ?")
//	// select * from users where id = $1 and org = $2
//
// # Statistics
//
// StatsDriver counts queries, execs, errors and slow statements, and can
// log slow ones through log/slog:
//
//	stats := sql.NewStatsDriver(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(nil),
//	)
//	fmt.Println(stats.QueryStats().Stats())
//
// DebugDriver logs every statement at debug level.
package sql
