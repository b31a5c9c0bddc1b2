package plugin

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/syssam/veloxplug/schema"
)

// CommandType is the kind of a SQL statement.
type CommandType uint8

// Command types.
const (
	CommandUnknown CommandType = iota
	CommandSelect
	CommandInsert
	CommandUpdate
	CommandDelete
)

// String returns the SQL keyword of the command.
func (c CommandType) String() string {
	switch c {
	case CommandSelect:
		return "SELECT"
	case CommandInsert:
		return "INSERT"
	case CommandUpdate:
		return "UPDATE"
	case CommandDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

var commandRe = regexp.MustCompile(`(?is)^\s*(?:/\*.*?\*/\s*)*(?:with\b.*?\)\s*)?(select|insert|replace|update|delete)\b`)

// CommandOf classifies a statement by its leading keyword.
func CommandOf(query string) CommandType {
	m := commandRe.FindStringSubmatch(query)
	if m == nil {
		return CommandUnknown
	}
	switch strings.ToLower(m[1]) {
	case "select":
		return CommandSelect
	case "insert", "replace":
		return CommandInsert
	case "update":
		return CommandUpdate
	default:
		return CommandDelete
	}
}

// ParamMap is a named parameter object. The entity of an update
// statement is stored under EntityKey.
type ParamMap map[string]any

const (
	// EntityKey is the ParamMap key holding the statement entity.
	EntityKey = "et"
	// OriginVersionKey is the additional parameter holding the version
	// value an entity had before an optimistic lock update.
	OriginVersionKey = "_originVersion"
)

// Binding maps one positional placeholder to a parameter property.
type Binding struct {
	// Property is a property path into the parameter, e.g. "Name" or
	// "et.Version". An empty property binds the parameter itself.
	Property string
	// Handler converts the resolved value. Nil selects the handler
	// registered for the value type at execution time.
	Handler TypeHandler
}

// Bind returns bindings for the given properties, resolved with the
// registered type handlers.
func Bind(props ...string) []Binding {
	bs := make([]Binding, len(props))
	for i, p := range props {
		bs[i] = Binding{Property: p}
	}
	return bs
}

// Statement is a statement flowing through the interceptor chain.
type Statement struct {
	// ID identifies the statement in logs and errors.
	ID string
	// Command is derived from SQL by NewStatement. Interceptors update
	// it when they change the statement kind.
	Command CommandType
	SQL     string
	// Param is the parameter object: an entity pointer, a ParamMap or
	// a scalar value.
	Param any
	// ParamType is the declared parameter type. When nil, the dynamic
	// type of the entity is used.
	ParamType reflect.Type
	Bindings  []Binding

	additional map[string]any
}

// NewStatement returns a statement for the given text and parameter.
func NewStatement(query string, param any, bindings ...Binding) *Statement {
	return &Statement{
		Command:  CommandOf(query),
		SQL:      query,
		Param:    param,
		Bindings: bindings,
	}
}

// Entity returns the entity the statement operates on: the EntityKey
// value of a ParamMap parameter, or the parameter itself.
func (s *Statement) Entity() any {
	if m, ok := s.Param.(ParamMap); ok {
		return m[EntityKey]
	}
	return s.Param
}

// ParameterType returns the declared parameter type, falling back to
// the dynamic type of the entity.
func (s *Statement) ParameterType() reflect.Type {
	if s.ParamType != nil {
		return s.ParamType
	}
	if e := s.Entity(); e != nil {
		return reflect.TypeOf(e)
	}
	return nil
}

// InsertBinding inserts b at position pos, clamped to the bounds of
// the binding list.
func (s *Statement) InsertBinding(pos int, b Binding) {
	pos = min(max(pos, 0), len(s.Bindings))
	s.Bindings = slices.Insert(s.Bindings, pos, b)
}

// HasBinding reports whether a binding resolves the given property.
func (s *Statement) HasBinding(prop string) bool {
	return slices.ContainsFunc(s.Bindings, func(b Binding) bool { return b.Property == prop })
}

// SetAdditionalParameter stores a named value that bindings resolve
// before looking into the parameter object.
func (s *Statement) SetAdditionalParameter(name string, v any) {
	if s.additional == nil {
		s.additional = make(map[string]any)
	}
	s.additional[name] = v
}

// AdditionalParameter returns an additional parameter.
func (s *Statement) AdditionalParameter(name string) (any, bool) {
	v, ok := s.additional[name]
	return v, ok
}

// Value resolves a property path against the additional parameters
// and the parameter object.
func (s *Statement) Value(prop string) (any, error) {
	if v, ok := s.additional[prop]; ok {
		return v, nil
	}
	head, rest, _ := strings.Cut(prop, ".")
	if v, ok := s.additional[head]; ok && rest != "" {
		return resolve(v, rest, prop)
	}
	if prop == "" || isScalar(s.Param) {
		return s.Param, nil
	}
	return resolve(s.Param, prop, prop)
}

// Args resolves the bindings into positional arguments.
func (s *Statement) Args(types *TypeRegistry) ([]any, error) {
	args := make([]any, len(s.Bindings))
	for i, b := range s.Bindings {
		v, err := s.Value(b.Property)
		if err != nil {
			return nil, err
		}
		h := b.Handler
		if h == nil {
			h = UnknownTypeHandler(types)
		}
		if args[i], err = h.Convert(v); err != nil {
			return nil, fmt.Errorf("plugin: convert property %q: %w", b.Property, err)
		}
	}
	return args, nil
}

// resolve walks a dotted property path through maps and structs.
func resolve(root any, path, prop string) (any, error) {
	cur := root
	for seg := range strings.SplitSeq(path, ".") {
		if cur == nil {
			return nil, nil
		}
		next, err := property(cur, seg)
		if err != nil {
			return nil, fmt.Errorf("plugin: resolve property %q: %w", prop, err)
		}
		cur = next
	}
	return cur, nil
}

func property(v any, name string) (any, error) {
	switch m := v.(type) {
	case ParamMap:
		return mapProperty(m, name)
	case map[string]any:
		return mapProperty(m, name)
	}
	rv, ok := schema.Value(v)
	if !ok {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		return nil, fmt.Errorf("no property %q on %T", name, v)
	}
	f, ok := schema.FieldByProperty(rv.Type(), name)
	if !ok {
		return nil, fmt.Errorf("no property %q on %s", name, rv.Type())
	}
	fv, ok := schema.FieldValue(rv, f.Index)
	if !ok {
		return nil, nil
	}
	return fv.Interface(), nil
}

func mapProperty(m map[string]any, name string) (any, error) {
	if v, ok := m[name]; ok {
		return v, nil
	}
	if et, ok := m[EntityKey]; ok && et != nil {
		return property(et, name)
	}
	return nil, fmt.Errorf("no key %q in parameter map", name)
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, ParamMap, map[string]any:
		return false
	}
	if _, ok := v.(interface{ Value() (any, error) }); ok {
		return true
	}
	t := schema.Indirect(reflect.TypeOf(v))
	return t.Kind() != reflect.Struct || t.PkgPath() == "time"
}
