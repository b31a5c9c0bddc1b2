// Package config builds a plugin.Driver from a YAML file.
//
//	dialect: postgres
//	driver: pgx
//	dsn: postgres://localhost/app
//	strict_update: true
//	slow_threshold: 200ms
//	optimistic_lock:
//	  naming: snake
//	  strategies: [revision]
//	pagination:
//	  max_limit: 500
//	  overflow: true
//	logic_delete:
//	  column: deleted
//	  deleted_value: "1"
//	  not_deleted_value: "0"
//	  tables: [users, orders]
//	auto_fill:
//	  audit: true
package config

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/veloxplug/dialect"
	dsql "github.com/syssam/veloxplug/dialect/sql"
	"github.com/syssam/veloxplug/plugin"
	"github.com/syssam/veloxplug/plugin/autofill"
	"github.com/syssam/veloxplug/plugin/logicdelete"
	"github.com/syssam/veloxplug/plugin/optlock"
	"github.com/syssam/veloxplug/plugin/pagination"
	"github.com/syssam/veloxplug/schema"
)

// Config is the plugin configuration.
type Config struct {
	// Dialect is the SQL dialect: mysql, sqlite3 or postgres.
	Dialect string `yaml:"dialect,omitempty"`
	// Driver is the database/sql driver name. It defaults to Dialect.
	Driver string `yaml:"driver,omitempty"`
	// DSN is the data source name used by Connect.
	DSN string `yaml:"dsn,omitempty"`
	// MaxOpenConns limits the connection pool opened by Connect.
	MaxOpenConns int `yaml:"max_open_conns,omitempty"`
	// StrictUpdate reports versioned updates matching no row as errors.
	StrictUpdate bool `yaml:"strict_update,omitempty"`
	// SlowThreshold enables statement statistics and slow statement
	// logging when positive.
	SlowThreshold time.Duration `yaml:"slow_threshold,omitempty"`
	// Debug logs every statement at debug level.
	Debug bool `yaml:"debug,omitempty"`

	OptimisticLock OptimisticLock `yaml:"optimistic_lock,omitempty"`
	Pagination     *Pagination    `yaml:"pagination,omitempty"`
	LogicDelete    *LogicDelete   `yaml:"logic_delete,omitempty"`
	AutoFill       *AutoFill      `yaml:"auto_fill,omitempty"`
}

// OptimisticLock configures the optimistic lock interceptor.
type OptimisticLock struct {
	// Naming names version columns without a db tag: "field" or "snake".
	Naming string `yaml:"naming,omitempty"`
	// Strategies are catalog names of extra increment strategies.
	Strategies StringList `yaml:"strategies,omitempty"`
}

// Pagination configures the pagination interceptor.
type Pagination struct {
	MaxLimit int64 `yaml:"max_limit,omitempty"`
	Overflow bool  `yaml:"overflow,omitempty"`
}

// LogicDelete configures the logical delete interceptor.
type LogicDelete struct {
	Column          string     `yaml:"column,omitempty"`
	DeletedValue    string     `yaml:"deleted_value,omitempty"`
	NotDeletedValue string     `yaml:"not_deleted_value,omitempty"`
	Tables          StringList `yaml:"tables,omitempty"`
}

// AutoFill configures the auto-fill interceptor.
type AutoFill struct {
	// Audit installs autofill.AuditHandler.
	Audit bool `yaml:"audit,omitempty"`
}

// StringList is a YAML type that can be either a string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler for StringList.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("expected string or list, got %v", node.Kind)
	}
}

// Load reads a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plugin config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse plugin config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Dialect {
	case "", dialect.MySQL, dialect.SQLite, dialect.Postgres:
	default:
		return fmt.Errorf("plugin config: unknown dialect %q", c.Dialect)
	}
	if _, ok := schema.NamingOf(c.OptimisticLock.Naming); !ok {
		return fmt.Errorf("plugin config: unknown naming %q", c.OptimisticLock.Naming)
	}
	if c.SlowThreshold < 0 {
		return fmt.Errorf("plugin config: negative slow_threshold %s", c.SlowThreshold)
	}
	return nil
}

// Build returns the configured interceptors in execution order:
// auto-fill, logical delete, optimistic lock and pagination. Entities
// are registered as logically deleted tables in addition to the
// configured table names. Named strategies resolve against catalog.
func (c *Config) Build(catalog optlock.Catalog, log *slog.Logger, entities ...any) ([]plugin.Interceptor, error) {
	if log == nil {
		log = slog.Default()
	}
	var chain []plugin.Interceptor
	if c.AutoFill != nil && c.AutoFill.Audit {
		chain = append(chain, autofill.New(autofill.AuditHandler{}))
	}
	if ld := c.LogicDelete; ld != nil {
		opts := []logicdelete.Option{logicdelete.WithLogger(log)}
		if ld.Column != "" {
			opts = append(opts, logicdelete.Column(ld.Column))
		}
		if ld.DeletedValue != "" || ld.NotDeletedValue != "" {
			deleted, live := ld.DeletedValue, ld.NotDeletedValue
			if deleted == "" {
				deleted = logicdelete.DefaultDeleted
			}
			if live == "" {
				live = logicdelete.DefaultNotDeleted
			}
			opts = append(opts, logicdelete.Values(deleted, live))
		}
		i, err := logicdelete.New(opts...)
		if err != nil {
			return nil, err
		}
		targets := make([]any, 0, len(ld.Tables)+len(entities))
		for _, t := range ld.Tables {
			targets = append(targets, t)
		}
		if err := i.Register(append(targets, entities...)...); err != nil {
			return nil, err
		}
		chain = append(chain, i)
	}
	naming, ok := schema.NamingOf(c.OptimisticLock.Naming)
	if !ok {
		return nil, fmt.Errorf("plugin config: unknown naming %q", c.OptimisticLock.Naming)
	}
	lock, err := optlock.New(
		optlock.WithNaming(naming),
		optlock.WithNamedStrategies(catalog, c.OptimisticLock.Strategies...),
		optlock.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	chain = append(chain, lock)
	if p := c.Pagination; p != nil {
		chain = append(chain, pagination.New(
			pagination.MaxLimit(p.MaxLimit),
			pagination.Overflow(p.Overflow),
			pagination.WithLogger(log),
		))
	}
	return chain, nil
}

// Open wraps drv with the configured interceptors and drivers.
func (c *Config) Open(drv dialect.Driver, catalog optlock.Catalog, log *slog.Logger, entities ...any) (*plugin.Driver, error) {
	if log == nil {
		log = slog.Default()
	}
	chain, err := c.Build(catalog, log, entities...)
	if err != nil {
		return nil, err
	}
	if c.Debug {
		drv = dsql.NewDebugDriver(drv, log)
	}
	if c.SlowThreshold > 0 {
		drv = dsql.NewStatsDriver(drv,
			dsql.WithSlowThreshold(c.SlowThreshold),
			dsql.WithSlowQueryLog(log),
		)
	}
	opts := []plugin.Option{plugin.WithInterceptors(chain...), plugin.WithLogger(log)}
	if c.StrictUpdate {
		opts = append(opts, plugin.WithStrictUpdate())
	}
	return plugin.NewDriver(drv, opts...), nil
}

// Connect opens the configured database and wraps it with Open.
func (c *Config) Connect(catalog optlock.Catalog, log *slog.Logger, entities ...any) (*plugin.Driver, error) {
	if c.Dialect == "" || c.DSN == "" {
		return nil, fmt.Errorf("plugin config: dialect and dsn are required to connect")
	}
	name := c.Driver
	if name == "" {
		name = c.Dialect
	}
	db, err := sql.Open(name, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("plugin config: open %s: %w", name, err)
	}
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	drv, err := c.Open(dsql.OpenDB(c.Dialect, db), catalog, log, entities...)
	if err != nil {
		return nil, fmt.Errorf("plugin config: %w", errors.Join(err, db.Close()))
	}
	return drv, nil
}
