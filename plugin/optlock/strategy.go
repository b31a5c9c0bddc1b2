package optlock

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/syssam/veloxplug"
)

// Strategy advances version values of one Go type.
type Strategy interface {
	// Type returns the value type the strategy handles.
	Type() reflect.Type
	// PlusOne returns the version following v. v is never nil and is
	// of the strategy type.
	PlusOne(v any) any
}

// Incrementer is the typed form of a strategy.
type Incrementer[T any] interface {
	PlusOne(T) T
}

// IncrementerFunc adapts a function to Incrementer.
type IncrementerFunc[T any] func(T) T

// PlusOne calls f(v).
func (f IncrementerFunc[T]) PlusOne(v T) T { return f(v) }

// StrategyOf returns a Strategy for T backed by inc.
func StrategyOf[T any](inc Incrementer[T]) Strategy {
	return typed[T]{inc: inc}
}

type typed[T any] struct {
	inc Incrementer[T]
}

func (s typed[T]) Type() reflect.Type { return reflect.TypeFor[T]() }

func (s typed[T]) PlusOne(v any) any { return s.inc.PlusOne(v.(T)) }

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func plusOne[T integer](v T) T { return v + 1 }

// builtins returns the strategies every registry starts with.
func builtins() []Strategy {
	return []Strategy{
		StrategyOf(IncrementerFunc[int](plusOne[int])),
		StrategyOf(IncrementerFunc[int8](plusOne[int8])),
		StrategyOf(IncrementerFunc[int16](plusOne[int16])),
		StrategyOf(IncrementerFunc[int32](plusOne[int32])),
		StrategyOf(IncrementerFunc[int64](plusOne[int64])),
		StrategyOf(IncrementerFunc[uint](plusOne[uint])),
		StrategyOf(IncrementerFunc[uint16](plusOne[uint16])),
		StrategyOf(IncrementerFunc[uint32](plusOne[uint32])),
		StrategyOf(IncrementerFunc[uint64](plusOne[uint64])),
		StrategyOf(IncrementerFunc[time.Time](func(time.Time) time.Time { return time.Now() })),
	}
}

// Registry maps version value types to strategies. It is safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	strategies map[reflect.Type]Strategy
}

// NewRegistry returns a registry holding the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[reflect.Type]Strategy)}
	for _, s := range builtins() {
		r.strategies[s.Type()] = s
	}
	return r
}

var (
	errNilStrategy = errors.New("strategy is nil")
	errNoType      = errors.New("strategy has no value type")
)

// Register adds s, replacing any strategy for the same type.
func (r *Registry) Register(s Strategy) error {
	if s == nil {
		return veloxplug.NewStrategyRegistrationError("<nil>", errNilStrategy)
	}
	t := s.Type()
	if t == nil {
		return veloxplug.NewStrategyRegistrationError(fmt.Sprintf("%T", s), errNoType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[t] = s
	return nil
}

// Register adds a typed incrementer to r.
func Register[T any](r *Registry, inc Incrementer[T]) error {
	if inc == nil {
		return veloxplug.NewStrategyRegistrationError(reflect.TypeFor[T]().String(), errNilStrategy)
	}
	return r.Register(StrategyOf(inc))
}

// Resolve returns the strategy for t.
func (r *Registry) Resolve(t reflect.Type) (Strategy, error) {
	r.mu.RLock()
	s, ok := r.strategies[t]
	r.mu.RUnlock()
	if !ok {
		return nil, veloxplug.NewUnsupportedVersionFieldTypeError(nil, "", t)
	}
	return s, nil
}

// Factory builds a strategy. It is called once, at registration.
type Factory func() (Strategy, error)

// Catalog names the strategy factories that configuration files may
// refer to.
type Catalog map[string]Factory

// RegisterNamed builds and registers the named strategies. Names may be
// given one per entry or comma-separated.
func (r *Registry) RegisterNamed(names []string, catalog Catalog) error {
	for _, entry := range names {
		for name := range strings.SplitSeq(entry, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			f, ok := catalog[name]
			if !ok || f == nil {
				return veloxplug.NewStrategyRegistrationError(name, errors.New("unknown strategy"))
			}
			s, err := f()
			if err != nil {
				return veloxplug.NewStrategyRegistrationError(name, err)
			}
			if err := r.Register(s); err != nil {
				return veloxplug.NewStrategyRegistrationError(name, errors.Unwrap(err))
			}
		}
	}
	return nil
}
