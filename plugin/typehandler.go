package plugin

import (
	"database/sql/driver"
	"reflect"
	"sync"
)

// TypeHandler converts a resolved property value into a driver argument.
type TypeHandler interface {
	Convert(v any) (driver.Value, error)
}

// TypeHandlerFunc adapts a function to TypeHandler.
type TypeHandlerFunc func(any) (driver.Value, error)

// Convert calls f(v).
func (f TypeHandlerFunc) Convert(v any) (driver.Value, error) { return f(v) }

// TypeRegistry maps Go types to type handlers. It is safe for
// concurrent use; a nil registry has no handlers.
type TypeRegistry struct {
	mu       sync.RWMutex
	handlers map[reflect.Type]TypeHandler
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{handlers: make(map[reflect.Type]TypeHandler)}
}

// Register sets the handler for t. The last registration wins.
func (r *TypeRegistry) Register(t reflect.Type, h TypeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
}

// Lookup returns the handler registered for t.
func (r *TypeRegistry) Lookup(t reflect.Type) (TypeHandler, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	return h, ok
}

// UnknownTypeHandler returns a handler that picks the conversion per
// value: values implementing driver.Valuer are passed through, types
// with a registered handler use it, and non-nil pointers are
// dereferenced. Everything else is passed as is.
func UnknownTypeHandler(types *TypeRegistry) TypeHandler {
	return TypeHandlerFunc(func(v any) (driver.Value, error) {
		return convert(types, v)
	})
}

func convert(types *TypeRegistry, v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	if h, ok := types.Lookup(reflect.TypeOf(v)); ok {
		return h.Convert(v)
	}
	if _, ok := v.(driver.Valuer); ok {
		return v, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		return convert(types, rv.Elem().Interface())
	}
	return v, nil
}
