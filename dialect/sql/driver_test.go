package sql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxplug/dialect"
)

func TestOpenDB(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		dialect string
	}{
		{"Postgres", dialect.Postgres, dialect.Postgres},
		{"MySQL", dialect.MySQL, dialect.MySQL},
		{"SQLite", dialect.SQLite, dialect.SQLite},
		{"SQLiteSuffix", "sqlite3-trace", dialect.SQLite},
		{"Unknown", "oracle", "oracle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.driver, db)
			require.NotNil(t, drv)
			assert.Equal(t, tt.dialect, drv.Dialect())
			assert.Same(t, db, drv.DB())
		})
	}
}

func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("simple_query", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name FROM users").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
				AddRow(1, "Alice").
				AddRow(2, "Bob"))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT id, name FROM users", []any{}, rows)
		require.NoError(t, err)
		require.NoError(t, rows.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rebinds_placeholders", func(t *testing.T) {
		mock.ExpectQuery("SELECT name FROM users WHERE id = \\$1 AND name <> \\$2").
			WithArgs(1, "?").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Alice"))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT name FROM users WHERE id = ? AND name <> ?", []any{1, "?"}, rows)
		require.NoError(t, err)
		require.NoError(t, rows.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_error", func(t *testing.T) {
		mock.ExpectQuery("SELECT").WillReturnError(errors.New("database error"))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT", []any{}, rows)
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid_target", func(t *testing.T) {
		var n int
		err := drv.Query(context.Background(), "SELECT 1", []any{}, &n)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expect *sql.Rows")
	})

	t.Run("invalid_args", func(t *testing.T) {
		err := drv.Query(context.Background(), "SELECT 1", 1, &Rows{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expect []any for args")
	})
}

func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("simple_exec", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := drv.Exec(context.Background(), "INSERT INTO users (name) VALUES ('test?')", []any{}, nil)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec_into_result", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET name = \\$1 WHERE version = \\$2 AND id = \\$3").
			WithArgs("Alice", 3, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		var res sql.Result
		err := drv.Exec(context.Background(), "UPDATE users SET name = ? WHERE version = ? AND id = ?", []any{"Alice", 3, 1}, &res)
		require.NoError(t, err)
		n, err := res.RowsAffected()
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec_error", func(t *testing.T) {
		mock.ExpectExec("DELETE").WillReturnError(errors.New("constraint violation"))

		err := drv.Exec(context.Background(), "DELETE FROM users", []any{}, nil)
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid_target", func(t *testing.T) {
		var n int64
		err := drv.Exec(context.Background(), "DELETE FROM users", []any{}, &n)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expect *sql.Result")
	})
}

func TestDriverTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("successful_commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users \\(name\\) VALUES \\(\\$1\\)").
			WithArgs("test").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)

		err = tx.Exec(context.Background(), "INSERT INTO users (name) VALUES (?)", []any{"test"}, nil)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("error"))
		mock.ExpectRollback()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)

		err = tx.Exec(context.Background(), "INSERT INTO users (name) VALUES ('test')", []any{}, nil)
		require.Error(t, err)
		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_in_transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		tx, err := drv.BeginTx(context.Background(), &TxOptions{ReadOnly: true})
		require.NoError(t, err)

		rows := &Rows{}
		require.NoError(t, tx.Query(context.Background(), "SELECT id FROM users", []any{}, rows))
		require.NoError(t, rows.Close())
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin_error", func(t *testing.T) {
		mock.ExpectBegin().WillReturnError(errors.New("no connection"))

		_, err := drv.Tx(context.Background())
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestContextCancellation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock.ExpectQuery("SELECT").WillReturnError(context.Canceled)
	err = drv.Query(ctx, "SELECT 1", []any{}, &Rows{})
	assert.Error(t, err)
}

func TestScanInt64(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.MySQL, db)

	t.Run("value", func(t *testing.T) {
		mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

		rows := &Rows{}
		require.NoError(t, drv.Query(context.Background(), "SELECT count(*) FROM users", []any{}, rows))
		n, err := ScanInt64(rows)
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
	})

	t.Run("no_rows", func(t *testing.T) {
		mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}))

		rows := &Rows{}
		require.NoError(t, drv.Query(context.Background(), "SELECT count(*) FROM users", []any{}, rows))
		_, err := ScanInt64(rows)
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("scan_error", func(t *testing.T) {
		mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow("many"))

		rows := &Rows{}
		require.NoError(t, drv.Query(context.Background(), "SELECT count(*) FROM users", []any{}, rows))
		_, err := ScanInt64(rows)
		assert.Error(t, err)
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNullValues(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"name", "email"}).
			AddRow("Alice", nil).
			AddRow(nil, "bob@example.com"))

	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT name, email FROM users", []any{}, rows))
	var names, emails []NullString
	for rows.Next() {
		var name, email NullString
		require.NoError(t, rows.Scan(&name, &email))
		names = append(names, name)
		emails = append(emails, email)
	}
	require.NoError(t, rows.Close())
	assert.True(t, names[0].Valid)
	assert.False(t, names[1].Valid)
	assert.False(t, emails[0].Valid)
	assert.Equal(t, "bob@example.com", emails[1].String)
	require.NoError(t, mock.ExpectationsWereMet())
}

func BenchmarkDriver(b *testing.B) {
	db, mock, err := sqlmock.New()
	if err != nil {
		b.Fatal(err)
	}
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	b.Run("Query_Simple", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
			rows := &Rows{}
			_ = drv.Query(context.Background(), "SELECT 1", []any{}, rows)
			rows.Close()
		}
	})

	b.Run("Exec_Rebind", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 1))
			_ = drv.Exec(context.Background(), "UPDATE t SET a = ? WHERE version = ? AND id = ?", []any{1, 2, 3}, nil)
		}
	})
}
