package logicdelete_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxplug/dialect"
	"github.com/syssam/veloxplug/plugin"
	"github.com/syssam/veloxplug/plugin/logicdelete"
)

type Article struct {
	ID int64
}

type Tag struct {
	ID int64
}

func (Tag) TableName() string { return "blog_tags" }

func intercept(t *testing.T, i plugin.Interceptor, query string) *plugin.Statement {
	t.Helper()
	inv := &plugin.Invocation{
		Statement: plugin.NewStatement(query, nil),
		Dialect:   dialect.Postgres,
	}
	require.NoError(t, i.Intercept(context.Background(), inv))
	return inv.Statement
}

func TestIntercept(t *testing.T) {
	i, err := logicdelete.New(logicdelete.Values("-1", "1"))
	require.NoError(t, err)
	require.NoError(t, i.Register(Article{}, &Tag{}, "Comments"))

	t.Run("delete", func(t *testing.T) {
		stmt := intercept(t, i, "DELETE FROM articles WHERE id = ?")
		assert.Equal(t, "update articles set deleted = -1 where id = ? and deleted = 1", stmt.SQL)
		assert.Equal(t, plugin.CommandUpdate, stmt.Command)
	})
	t.Run("select", func(t *testing.T) {
		stmt := intercept(t, i, "SELECT id FROM blog_tags")
		assert.Equal(t, "select id from blog_tags where deleted = 1", stmt.SQL)
		assert.Equal(t, plugin.CommandSelect, stmt.Command)
	})
	t.Run("table names are case insensitive", func(t *testing.T) {
		stmt := intercept(t, i, "SELECT id FROM comments WHERE post_id = ?")
		assert.Equal(t, "select id from comments where post_id = ? and deleted = 1", stmt.SQL)
	})
	t.Run("similar column is not a filter", func(t *testing.T) {
		stmt := intercept(t, i, "SELECT id FROM articles WHERE deleted_by = ? OR title = 'deleted'")
		assert.Equal(t, "select id from articles where (deleted_by = ? or title = 'deleted') and deleted = 1", stmt.SQL)
	})
	t.Run("unregistered table", func(t *testing.T) {
		const query = "DELETE FROM sessions WHERE id = ?"
		stmt := intercept(t, i, query)
		assert.Equal(t, query, stmt.SQL)
		assert.Equal(t, plugin.CommandDelete, stmt.Command)
	})
	t.Run("insert", func(t *testing.T) {
		const query = "INSERT INTO articles (id) VALUES (?)"
		assert.Equal(t, query, intercept(t, i, query).SQL)
	})
}

func TestNewInvalid(t *testing.T) {
	_, err := logicdelete.New(logicdelete.Column("deleted flag"))
	assert.Error(t, err)
}

func TestRegisterInvalid(t *testing.T) {
	i, err := logicdelete.New()
	require.NoError(t, err)
	assert.Error(t, i.Register(""))
	assert.Error(t, i.Register(42))
}
