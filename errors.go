package veloxplug

import (
	"errors"
	"fmt"
	"reflect"
)

// Sentinel errors matched through errors.Is by the typed errors below.
var (
	// ErrUnsupportedVersionFieldType is returned when a version field has
	// a type without a registered increment strategy.
	ErrUnsupportedVersionFieldType = errors.New("veloxplug: unsupported version field type")

	// ErrSQLRewrite is returned when a statement cannot be parsed or rewritten.
	ErrSQLRewrite = errors.New("veloxplug: sql rewrite failed")

	// ErrStrategyRegistration is returned when an increment strategy
	// cannot be constructed or registered.
	ErrStrategyRegistration = errors.New("veloxplug: strategy registration failed")

	// ErrOptimisticLock is returned by strict drivers when a versioned
	// update matched no row.
	ErrOptimisticLock = errors.New("veloxplug: optimistic lock conflict")
)

// UnsupportedVersionFieldTypeError reports a version field whose type
// has no increment strategy. It is a configuration error and is not
// cached: every lookup of the entity type fails the same way.
type UnsupportedVersionFieldTypeError struct {
	Entity reflect.Type // Entity type declaring the field
	Field  string       // Go field name
	Type   reflect.Type // Declared field type
}

// Error returns the error string.
func (e *UnsupportedVersionFieldTypeError) Error() string {
	if e.Entity == nil {
		return fmt.Sprintf("veloxplug: no increment strategy registered for version type %s", e.Type)
	}
	return fmt.Sprintf("veloxplug: version field %s.%s has unsupported type %s, register an increment strategy for it", e.Entity, e.Field, e.Type)
}

// Is reports whether the target error matches ErrUnsupportedVersionFieldType.
func (e *UnsupportedVersionFieldTypeError) Is(err error) bool {
	return err == ErrUnsupportedVersionFieldType
}

// NewUnsupportedVersionFieldTypeError returns a new UnsupportedVersionFieldTypeError.
func NewUnsupportedVersionFieldTypeError(entity reflect.Type, field string, typ reflect.Type) *UnsupportedVersionFieldTypeError {
	return &UnsupportedVersionFieldTypeError{Entity: entity, Field: field, Type: typ}
}

// IsUnsupportedVersionFieldType returns true if the error is an UnsupportedVersionFieldTypeError.
func IsUnsupportedVersionFieldType(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedVersionFieldTypeError
	return errors.As(err, &e) || errors.Is(err, ErrUnsupportedVersionFieldType)
}

// SQLRewriteError wraps a failure to parse or rewrite a statement.
type SQLRewriteError struct {
	Op  string // Rewrite operation, e.g. "version", "paginate"
	SQL string // Original statement text
	Err error  // Underlying error
}

// Error returns the error string.
func (e *SQLRewriteError) Error() string {
	return fmt.Sprintf("veloxplug: %s rewrite of %q: %v", e.Op, e.SQL, e.Err)
}

// Unwrap returns the underlying error.
func (e *SQLRewriteError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches ErrSQLRewrite.
func (e *SQLRewriteError) Is(err error) bool {
	return err == ErrSQLRewrite
}

// NewSQLRewriteError returns a new SQLRewriteError.
func NewSQLRewriteError(op, sql string, err error) *SQLRewriteError {
	return &SQLRewriteError{Op: op, SQL: sql, Err: err}
}

// IsSQLRewrite returns true if the error is a SQLRewriteError.
func IsSQLRewrite(err error) bool {
	if err == nil {
		return false
	}
	var e *SQLRewriteError
	return errors.As(err, &e) || errors.Is(err, ErrSQLRewrite)
}

// StrategyRegistrationError wraps a failure to construct or register an
// increment strategy at startup.
type StrategyRegistrationError struct {
	Name string // Configured strategy name or value type
	Err  error  // Underlying error
}

// Error returns the error string.
func (e *StrategyRegistrationError) Error() string {
	return fmt.Sprintf("veloxplug: register version strategy %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *StrategyRegistrationError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches ErrStrategyRegistration.
func (e *StrategyRegistrationError) Is(err error) bool {
	return err == ErrStrategyRegistration
}

// NewStrategyRegistrationError returns a new StrategyRegistrationError.
func NewStrategyRegistrationError(name string, err error) *StrategyRegistrationError {
	return &StrategyRegistrationError{Name: name, Err: err}
}

// IsStrategyRegistration returns true if the error is a StrategyRegistrationError.
func IsStrategyRegistration(err error) bool {
	if err == nil {
		return false
	}
	var e *StrategyRegistrationError
	return errors.As(err, &e) || errors.Is(err, ErrStrategyRegistration)
}

// OptimisticLockError reports a versioned update that affected no row:
// the row was changed (or removed) since its version was read.
type OptimisticLockError struct {
	Statement string // Statement identifier
	Version   any    // Version value the update expected
}

// Error returns the error string.
func (e *OptimisticLockError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("veloxplug: optimistic lock conflict on %s (version=%v)", e.Statement, e.Version)
	}
	return fmt.Sprintf("veloxplug: optimistic lock conflict (version=%v)", e.Version)
}

// Is reports whether the target error matches ErrOptimisticLock.
func (e *OptimisticLockError) Is(err error) bool {
	return err == ErrOptimisticLock
}

// NewOptimisticLockError returns a new OptimisticLockError.
func NewOptimisticLockError(stmt string, version any) *OptimisticLockError {
	return &OptimisticLockError{Statement: stmt, Version: version}
}

// IsOptimisticLock returns true if the error is an OptimisticLockError.
func IsOptimisticLock(err error) bool {
	if err == nil {
		return false
	}
	var e *OptimisticLockError
	return errors.As(err, &e) || errors.Is(err, ErrOptimisticLock)
}
