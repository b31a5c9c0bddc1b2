package optlock_test

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxplug"
	"github.com/syssam/veloxplug/dialect"
	"github.com/syssam/veloxplug/plugin"
	"github.com/syssam/veloxplug/plugin/optlock"
)

type User struct {
	ID      int64  `db:"id"`
	Name    string `db:"name"`
	Version *int64 `db:"version" veloxplug:"version"`
}

type Counter struct {
	ID      int64
	Version int16 `veloxplug:"version"`
}

type Revision struct {
	Major, Minor int
}

type Document struct {
	ID       int64
	Revision Revision `db:"revision" veloxplug:"version"`
}

type Stamped struct {
	ID        int64
	UpdatedAt time.Time `db:"updated_at" veloxplug:"version"`
}

type Twice struct {
	ID    int64
	First int64 `db:"first" veloxplug:"version"`
	Other int64 `db:"other" veloxplug:"version"`
}

type Plain struct {
	ID   int64
	Name string
}

func ptr[T any](v T) *T { return &v }

func invocation(query string, param any, bindings ...plugin.Binding) *plugin.Invocation {
	return &plugin.Invocation{
		Statement: plugin.NewStatement(query, param, bindings...),
		Dialect:   dialect.MySQL,
	}
}

func newInterceptor(t *testing.T, opts ...optlock.Option) *optlock.Interceptor {
	t.Helper()
	i, err := optlock.New(opts...)
	require.NoError(t, err)
	return i
}

func TestInterceptUpdate(t *testing.T) {
	t.Parallel()
	i := newInterceptor(t)
	u := &User{ID: 5, Name: "Bob", Version: ptr[int64](3)}
	inv := invocation("update users set name=? where id=?", u, plugin.Bind("Name", "ID")...)

	require.NoError(t, i.Intercept(context.Background(), inv))

	assert.Equal(t, int64(4), *u.Version)
	assert.Equal(t, "update users set name = ? where version = ? and id = ?", unquote(inv.Statement.SQL))
	require.Len(t, inv.Statement.Bindings, 3)
	assert.Equal(t, plugin.OriginVersionKey, inv.Statement.Bindings[1].Property)

	args, err := inv.Args()
	require.NoError(t, err)
	assert.Equal(t, []any{"Bob", int64(3), int64(5)}, args)
}

func TestInterceptSetsNewVersion(t *testing.T) {
	t.Parallel()
	i := newInterceptor(t)
	u := &User{ID: 5, Name: "Bob", Version: ptr[int64](3)}
	inv := invocation("UPDATE users SET name = ?, version = ? WHERE id = ?", u, plugin.Bind("Name", "Version", "ID")...)

	require.NoError(t, i.Intercept(context.Background(), inv))

	args, err := inv.Args()
	require.NoError(t, err)
	assert.Equal(t, []any{"Bob", int64(4), int64(3), int64(5)}, args)
}

func TestInterceptParamMap(t *testing.T) {
	t.Parallel()
	i := newInterceptor(t)
	u := &User{ID: 5, Name: "Bob", Version: ptr[int64](7)}
	inv := invocation("UPDATE users SET name = ? WHERE id = ?", plugin.ParamMap{plugin.EntityKey: u},
		plugin.Bind("et.Name", "et.ID")...)

	require.NoError(t, i.Intercept(context.Background(), inv))

	assert.Equal(t, int64(8), *u.Version)
	args, err := inv.Args()
	require.NoError(t, err)
	assert.Equal(t, []any{"Bob", int64(7), int64(5)}, args)
}

func TestInterceptNilVersion(t *testing.T) {
	t.Parallel()
	i := newInterceptor(t)
	u := &User{ID: 5, Name: "Bob"}
	const query = "update users set name=? where id=?"
	inv := invocation(query, u, plugin.Bind("Name", "ID")...)

	require.NoError(t, i.Intercept(context.Background(), inv))

	assert.Nil(t, u.Version)
	assert.Equal(t, query, inv.Statement.SQL)
	assert.Len(t, inv.Statement.Bindings, 2)
	_, ok := inv.Statement.AdditionalParameter(plugin.OriginVersionKey)
	assert.False(t, ok)
}

func TestInterceptWrapAround(t *testing.T) {
	t.Parallel()
	i := newInterceptor(t)
	c := &Counter{ID: 1, Version: 32767}
	inv := invocation("UPDATE counters SET Version = ? WHERE ID = ?", c, plugin.Bind("Version", "ID")...)

	require.NoError(t, i.Intercept(context.Background(), inv))

	assert.Equal(t, int16(-32768), c.Version)
	args, err := inv.Args()
	require.NoError(t, err)
	assert.Equal(t, []any{int16(-32768), int16(32767), int64(1)}, args)
}

func TestInterceptCustomStrategy(t *testing.T) {
	t.Parallel()
	var calls int
	next := optlock.IncrementerFunc[Revision](func(r Revision) Revision {
		calls++
		return Revision{Major: r.Major, Minor: r.Minor + 1}
	})
	i := newInterceptor(t, optlock.WithStrategies(optlock.StrategyOf(next)))
	d := &Document{ID: 1, Revision: Revision{Major: 1, Minor: 9}}
	inv := invocation("UPDATE documents SET revision = ? WHERE id = ?", d, plugin.Bind("Revision", "ID")...)

	require.NoError(t, i.Intercept(context.Background(), inv))

	assert.Equal(t, 1, calls)
	assert.Equal(t, Revision{Major: 1, Minor: 10}, d.Revision)
}

func TestInterceptTimeVersion(t *testing.T) {
	t.Parallel()
	i := newInterceptor(t)
	before := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Stamped{ID: 1, UpdatedAt: before}
	inv := invocation("UPDATE stamps SET updated_at = ? WHERE id = ?", s, plugin.Bind("UpdatedAt", "ID")...)

	require.NoError(t, i.Intercept(context.Background(), inv))

	assert.True(t, s.UpdatedAt.After(before))
	v, ok := inv.Statement.AdditionalParameter(plugin.OriginVersionKey)
	require.True(t, ok)
	assert.Equal(t, before, v)
}

func TestInterceptSkips(t *testing.T) {
	t.Parallel()
	i := newInterceptor(t)
	t.Run("select", func(t *testing.T) {
		u := &User{ID: 1, Version: ptr[int64](1)}
		inv := invocation("SELECT * FROM users WHERE id = ?", u, plugin.Bind("ID")...)
		require.NoError(t, i.Intercept(context.Background(), inv))
		assert.Equal(t, int64(1), *u.Version)
	})
	t.Run("insert", func(t *testing.T) {
		u := &User{ID: 1, Version: ptr[int64](1)}
		inv := invocation("INSERT INTO users (id, version) VALUES (?, ?)", u, plugin.Bind("ID", "Version")...)
		require.NoError(t, i.Intercept(context.Background(), inv))
		assert.Equal(t, int64(1), *u.Version)
	})
	t.Run("not versioned", func(t *testing.T) {
		p := &Plain{ID: 1}
		const query = "UPDATE plains SET Name = ? WHERE ID = ?"
		inv := invocation(query, p, plugin.Bind("Name", "ID")...)
		require.NoError(t, i.Intercept(context.Background(), inv))
		assert.Equal(t, query, inv.Statement.SQL)
	})
	t.Run("scalar parameter", func(t *testing.T) {
		inv := invocation("UPDATE users SET name = 'x' WHERE id = ?", int64(1), plugin.Bind("")...)
		require.NoError(t, i.Intercept(context.Background(), inv))
	})
	t.Run("no where clause", func(t *testing.T) {
		u := &User{ID: 1, Version: ptr[int64](1)}
		const query = "UPDATE users SET name = ?"
		inv := invocation(query, u, plugin.Bind("Name")...)
		require.NoError(t, i.Intercept(context.Background(), inv))
		assert.Equal(t, query, inv.Statement.SQL)
		assert.Len(t, inv.Statement.Bindings, 1)
		assert.Equal(t, int64(2), *u.Version)
	})
}

func TestInterceptFirstVersionFieldWins(t *testing.T) {
	t.Parallel()
	i := newInterceptor(t)
	tw := &Twice{ID: 1, First: 1, Other: 10}
	inv := invocation("UPDATE twice SET first = ? WHERE ID = ?", tw, plugin.Bind("First", "ID")...)

	require.NoError(t, i.Intercept(context.Background(), inv))

	assert.Equal(t, int64(2), tw.First)
	assert.Equal(t, int64(10), tw.Other)
	assert.Contains(t, unquote(inv.Statement.SQL), "where first = ?")
}

func TestInterceptErrors(t *testing.T) {
	t.Parallel()
	i := newInterceptor(t)
	t.Run("unsupported type", func(t *testing.T) {
		d := &Document{ID: 1}
		inv := invocation("UPDATE documents SET revision = ? WHERE id = ?", d, plugin.Bind("Revision", "ID")...)
		err := i.Intercept(context.Background(), inv)
		require.Error(t, err)
		assert.True(t, veloxplug.IsUnsupportedVersionFieldType(err))
		var uerr *veloxplug.UnsupportedVersionFieldTypeError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "Revision", uerr.Field)
		assert.Equal(t, reflect.TypeFor[Document](), uerr.Entity)
	})
	t.Run("entity by value", func(t *testing.T) {
		inv := invocation("UPDATE users SET name = ? WHERE id = ?", User{ID: 1, Version: ptr[int64](1)}, plugin.Bind("Name", "ID")...)
		assert.Error(t, i.Intercept(context.Background(), inv))
	})
	t.Run("unparsable statement", func(t *testing.T) {
		u := &User{ID: 1, Version: ptr[int64](1)}
		inv := invocation("UPDATE users SET WHERE", u)
		err := i.Intercept(context.Background(), inv)
		require.Error(t, err)
		assert.True(t, veloxplug.IsSQLRewrite(err))
		assert.Equal(t, int64(1), *u.Version, "entity must not change when the rewrite fails")
	})
}

func TestInterceptConcurrent(t *testing.T) {
	t.Parallel()
	i := newInterceptor(t)
	var wg sync.WaitGroup
	for n := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := &User{ID: int64(n), Name: "n", Version: ptr(int64(n))}
			inv := invocation("UPDATE users SET name = ? WHERE id = ?", u, plugin.Bind("Name", "ID")...)
			assert.NoError(t, i.Intercept(context.Background(), inv))
			assert.Equal(t, int64(n+1), *u.Version)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), i.Cache().Scans())
}
