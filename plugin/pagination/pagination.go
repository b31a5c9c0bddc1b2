// Package pagination limits SELECT statements to one page and counts
// the total number of rows.
package pagination

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syssam/veloxplug/dialect/sql"
	"github.com/syssam/veloxplug/dialect/sql/sqlrewrite"
	"github.com/syssam/veloxplug/plugin"
)

// PageKey is the ParamMap key under which a *Page may be passed.
const PageKey = "page"

// OrderItem is an ORDER BY item requested by the caller.
type OrderItem struct {
	Column string
	Asc    bool
}

// Page describes the requested page and receives the row count.
type Page struct {
	// Current is the 1-based page number.
	Current int64
	// Size is the page size. Sizes below 1 disable pagination.
	Size   int64
	Orders []OrderItem
	// SearchCount enables the count query.
	SearchCount bool
	// Total is set by the interceptor when SearchCount is true.
	Total int64
}

// NewPage returns a page with counting enabled.
func NewPage(current, size int64, orders ...OrderItem) *Page {
	return &Page{Current: current, Size: size, Orders: orders, SearchCount: true}
}

// Offset returns the row offset of the page.
func (p *Page) Offset() int64 {
	if p.Current <= 1 {
		return 0
	}
	return (p.Current - 1) * p.Size
}

// Pages returns the number of pages.
func (p *Page) Pages() int64 {
	if p.Size <= 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}

// Interceptor paginates SELECT statements carrying a *Page parameter.
type Interceptor struct {
	maxLimit int64
	overflow bool
	log      *slog.Logger
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// MaxLimit caps the page size. Zero means no cap.
func MaxLimit(n int64) Option {
	return func(i *Interceptor) {
		i.maxLimit = n
	}
}

// Overflow resets requests beyond the last page to the first page.
func Overflow(b bool) Option {
	return func(i *Interceptor) {
		i.overflow = b
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Interceptor) {
		i.log = l
	}
}

// New returns a pagination interceptor.
func New(opts ...Option) *Interceptor {
	i := &Interceptor{log: slog.Default()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// PageOf returns the page carried by a statement parameter.
func PageOf(param any) (*Page, bool) {
	switch p := param.(type) {
	case *Page:
		return p, p != nil
	case plugin.ParamMap:
		if pg, ok := p[PageKey].(*Page); ok && pg != nil {
			return pg, true
		}
		for _, v := range p {
			if pg, ok := v.(*Page); ok && pg != nil {
				return pg, true
			}
		}
	}
	return nil, false
}

// Intercept implements plugin.Interceptor.
func (i *Interceptor) Intercept(ctx context.Context, inv *plugin.Invocation) error {
	stmt := inv.Statement
	if stmt.Command != plugin.CommandSelect {
		return nil
	}
	page, ok := PageOf(stmt.Param)
	if !ok {
		return nil
	}
	if i.maxLimit > 0 && page.Size > i.maxLimit {
		page.Size = i.maxLimit
	}
	if page.SearchCount {
		total, err := i.count(ctx, inv)
		if err != nil {
			return err
		}
		page.Total = total
		if i.overflow && page.Size > 0 && page.Current > page.Pages() {
			page.Current = 1
		}
	}
	orders := make([]sqlrewrite.Order, len(page.Orders))
	for j, o := range page.Orders {
		orders[j] = sqlrewrite.Order{Column: o.Column, Asc: o.Asc}
	}
	query, err := sqlrewrite.Paginate(stmt.SQL, page.Offset(), page.Size, orders, inv.Dialect)
	if err != nil {
		return err
	}
	stmt.SQL = query
	return nil
}

func (i *Interceptor) count(ctx context.Context, inv *plugin.Invocation) (int64, error) {
	query, err := sqlrewrite.CountQuery(inv.Statement.SQL, inv.Dialect)
	if err != nil {
		return 0, err
	}
	args, err := inv.Args()
	if err != nil {
		return 0, err
	}
	i.log.DebugContext(ctx, "counting page rows", slog.String("sql", query))
	var rows sql.Rows
	if err := inv.Executor.Query(ctx, query, args, &rows); err != nil {
		return 0, fmt.Errorf("pagination: count: %w", err)
	}
	n, err := sql.ScanInt64(rows)
	if err != nil {
		return 0, fmt.Errorf("pagination: count: %w", err)
	}
	return n, nil
}

var _ plugin.Interceptor = (*Interceptor)(nil)
