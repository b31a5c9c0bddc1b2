package sqlrewrite_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxplug"
	"github.com/syssam/veloxplug/dialect"
	"github.com/syssam/veloxplug/dialect/sql/sqlrewrite"
)

func unquote(s string) string { return strings.ReplaceAll(s, "`", "") }

func TestAddVersionPredicate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		query     string
		want      string
		position  int
		rewritten bool
	}{
		{
			name:      "simple",
			query:     "UPDATE users SET name = ? WHERE id = ?",
			want:      "update users set name = ? where version = ? and id = ?",
			position:  1,
			rewritten: true,
		},
		{
			name:      "several set expressions",
			query:     "UPDATE users SET name = ?, age = ?, version = ? WHERE id = ?",
			want:      "update users set name = ?, age = ?, version = ? where version = ? and id = ?",
			position:  3,
			rewritten: true,
		},
		{
			name:      "or condition is grouped",
			query:     "UPDATE users SET name = ? WHERE id = ? OR email = ?",
			want:      "update users set name = ? where version = ? and (id = ? or email = ?)",
			position:  1,
			rewritten: true,
		},
		{
			name:      "literal set expression",
			query:     "UPDATE users SET name = 'a' WHERE id = ?",
			want:      "update users set name = 'a' where version = ? and id = ?",
			position:  0,
			rewritten: true,
		},
		{
			name:  "no where clause",
			query: "UPDATE users SET name = ?",
			want:  "UPDATE users SET name = ?",
		},
		{
			name:  "where already has version",
			query: "UPDATE users SET name = ? WHERE id = ? AND VERSION = ?",
			want:  "UPDATE users SET name = ? WHERE id = ? AND VERSION = ?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := sqlrewrite.AddVersionPredicate(tt.query, "version", dialect.Postgres)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.SQL)
			assert.Equal(t, tt.position, r.Position)
			assert.Equal(t, tt.rewritten, r.Rewritten)
		})
	}
}

func TestAddVersionPredicateMySQL(t *testing.T) {
	t.Parallel()
	r, err := sqlrewrite.AddVersionPredicate("UPDATE `users` SET `name` = ? WHERE `id` = ? LIMIT 1", "version", dialect.MySQL)
	require.NoError(t, err)
	assert.True(t, r.Rewritten)
	assert.Equal(t, "update users set name = ? where version = ? and id = ? limit 1", unquote(r.SQL))
	assert.Equal(t, 1, r.Position)
}

func TestAddVersionPredicatePostgresIdentifiers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		query  string
		column string
		want   string
	}{
		{
			name:   "unquoted mixed case stays unquoted",
			query:  "UPDATE Users SET Name = ? WHERE ID = ?",
			column: "version",
			want:   "update Users set Name = ? where version = ? and ID = ?",
		},
		{
			name:   "verbatim column name is not quoted",
			query:  "UPDATE users SET name = ? WHERE id = ?",
			column: "Version",
			want:   "update users set name = ? where Version = ? and id = ?",
		},
		{
			name:   "quoted identifiers stay quoted",
			query:  `UPDATE "Users" SET "Name" = ? WHERE "ID" = ?`,
			column: "version",
			want:   `update "Users" set "Name" = ? where version = ? and "ID" = ?`,
		},
		{
			name:   "column quoted elsewhere is quoted",
			query:  `UPDATE users SET "Version" = ? WHERE id = ?`,
			column: "Version",
			want:   `update users set "Version" = ? where "Version" = ? and id = ?`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := sqlrewrite.AddVersionPredicate(tt.query, tt.column, dialect.Postgres)
			require.NoError(t, err)
			assert.True(t, r.Rewritten)
			assert.Equal(t, tt.want, r.SQL)
		})
	}
}

func TestAddVersionPredicateErrors(t *testing.T) {
	t.Parallel()
	t.Run("not an update", func(t *testing.T) {
		_, err := sqlrewrite.AddVersionPredicate("SELECT * FROM users WHERE id = ?", "version", dialect.MySQL)
		require.Error(t, err)
		assert.True(t, veloxplug.IsSQLRewrite(err))
	})
	t.Run("numbered placeholders", func(t *testing.T) {
		_, err := sqlrewrite.AddVersionPredicate("update users set name=$1 where id=$2", "version", dialect.Postgres)
		require.Error(t, err)
		assert.True(t, veloxplug.IsSQLRewrite(err))
	})
	t.Run("parse failure", func(t *testing.T) {
		_, err := sqlrewrite.AddVersionPredicate("UPDATE users SET WHERE", "version", dialect.MySQL)
		require.Error(t, err)
		var rerr *veloxplug.SQLRewriteError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "version", rerr.Op)
		assert.Equal(t, "UPDATE users SET WHERE", rerr.SQL)
	})
}
