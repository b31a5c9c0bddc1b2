package optlock

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/syssam/veloxplug/dialect/sql/sqlrewrite"
	"github.com/syssam/veloxplug/plugin"
	"github.com/syssam/veloxplug/schema"
)

// Interceptor adds optimistic lock predicates to UPDATE statements.
type Interceptor struct {
	registry   *Registry
	naming     schema.Naming
	strategies []Strategy
	named      []string
	catalog    Catalog
	cache      *Cache
	log        *slog.Logger
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithRegistry sets the strategy registry. It defaults to NewRegistry().
func WithRegistry(r *Registry) Option {
	return func(i *Interceptor) {
		i.registry = r
	}
}

// WithStrategies registers additional strategies.
func WithStrategies(strategies ...Strategy) Option {
	return func(i *Interceptor) {
		i.strategies = append(i.strategies, strategies...)
	}
}

// WithNamedStrategies registers strategies built by the named catalog
// factories.
func WithNamedStrategies(catalog Catalog, names ...string) Option {
	return func(i *Interceptor) {
		i.catalog = catalog
		i.named = append(i.named, names...)
	}
}

// WithNaming sets how columns of version fields without a db tag are
// named.
func WithNaming(n schema.Naming) Option {
	return func(i *Interceptor) {
		i.naming = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Interceptor) {
		i.log = l
	}
}

// New returns an optimistic lock interceptor. Strategy registration
// errors are returned as veloxplug.StrategyRegistrationError.
func New(opts ...Option) (*Interceptor, error) {
	i := &Interceptor{log: slog.Default()}
	for _, opt := range opts {
		opt(i)
	}
	if i.registry == nil {
		i.registry = NewRegistry()
	}
	for _, s := range i.strategies {
		if err := i.registry.Register(s); err != nil {
			return nil, err
		}
	}
	if err := i.registry.RegisterNamed(i.named, i.catalog); err != nil {
		return nil, err
	}
	i.cache = NewCache(i.registry, i.naming)
	return i, nil
}

// Cache returns the descriptor cache.
func (i *Interceptor) Cache() *Cache {
	return i.cache
}

// versionBinding is the binding of the inserted version placeholder.
var versionBinding = plugin.Binding{Property: plugin.OriginVersionKey}

// eligible returns the descriptor of a versioned UPDATE, or nil for
// any other statement. The command is checked before the cache.
func (i *Interceptor) eligible(stmt *plugin.Statement) (*Descriptor, error) {
	if stmt.Command != plugin.CommandUpdate {
		return nil, nil
	}
	d, err := i.cache.Lookup(stmt.ParameterType())
	if err != nil || !d.Controlled() {
		return nil, err
	}
	return d, nil
}

// Intercept implements plugin.Interceptor.
func (i *Interceptor) Intercept(ctx context.Context, inv *plugin.Invocation) error {
	stmt := inv.Statement
	d, err := i.eligible(stmt)
	if err != nil || d == nil {
		return err
	}
	entity := reflect.ValueOf(stmt.Entity())
	if entity.Kind() != reflect.Pointer || entity.IsNil() {
		return fmt.Errorf("optlock: entity of versioned update must be a non-nil pointer, got %T", stmt.Entity())
	}
	old := d.Get(entity)
	if old == nil {
		return nil
	}
	r, err := sqlrewrite.AddVersionPredicate(stmt.SQL, d.Column(), inv.Dialect)
	if err != nil {
		return err
	}
	if err := d.Set(entity, d.Strategy().PlusOne(old)); err != nil {
		return err
	}
	if r.Rewritten {
		stmt.SQL = r.SQL
		stmt.InsertBinding(r.Position, versionBinding)
	} else {
		i.log.DebugContext(ctx, "version predicate not added",
			slog.String("statement", stmt.ID),
			slog.String("column", d.Column()),
		)
	}
	stmt.SetAdditionalParameter(plugin.OriginVersionKey, old)
	return nil
}

var _ plugin.Interceptor = (*Interceptor)(nil)
