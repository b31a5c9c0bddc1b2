// Package autofill populates audit fields of entities before INSERT and
// UPDATE statements are bound.
//
// Only fields tagged with a fill mode can be set:
//
//	type Post struct {
//	    ID        uuid.UUID `db:"id" veloxplug:"fill=insert"`
//	    CreatedAt time.Time `db:"created_at" veloxplug:"fill=insert"`
//	    UpdatedAt time.Time `db:"updated_at" veloxplug:"fill=insert_update"`
//	}
package autofill

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/veloxplug/plugin"
	"github.com/syssam/veloxplug/schema"
)

// Handler fills entity fields.
type Handler interface {
	InsertFill(context.Context, *MetaObject) error
	UpdateFill(context.Context, *MetaObject) error
}

// MetaObject gives a Handler access to the fill fields of one entity.
type MetaObject struct {
	value  reflect.Value
	insert bool
}

// IsInsert reports whether the statement is an INSERT.
func (m *MetaObject) IsInsert() bool { return m.insert }

// Type returns the entity type.
func (m *MetaObject) Type() reflect.Type { return m.value.Type() }

// Fields returns the fields fillable by the current statement.
func (m *MetaObject) Fields() []schema.Field {
	var fields []schema.Field
	for _, f := range schema.Fields(m.value.Type()) {
		if m.fillable(f) {
			fields = append(fields, f)
		}
	}
	return fields
}

// Get returns the value of a field.
func (m *MetaObject) Get(name string) (any, bool) {
	f, ok := schema.FieldByProperty(m.value.Type(), name)
	if !ok {
		return nil, false
	}
	fv, ok := schema.FieldValue(m.value, f.Index)
	if !ok {
		return nil, false
	}
	return fv.Interface(), true
}

// Set sets a fillable field. Values are converted to the field type,
// and assigned through a new pointer for pointer fields.
func (m *MetaObject) Set(name string, v any) error {
	_, err := m.set(name, v, false)
	return err
}

// SetIfZero sets a fillable field holding its zero value. It reports
// whether the field was set.
func (m *MetaObject) SetIfZero(name string, v any) (bool, error) {
	return m.set(name, v, true)
}

func (m *MetaObject) set(name string, v any, onlyZero bool) (bool, error) {
	f, ok := schema.FieldByProperty(m.value.Type(), name)
	if !ok || !m.fillable(f) {
		return false, nil
	}
	fv, ok := schema.FieldValue(m.value, f.Index)
	if !ok {
		return false, nil
	}
	if onlyZero && !fv.IsZero() {
		return false, nil
	}
	nv := reflect.ValueOf(v)
	target := f.Type
	if target.Kind() == reflect.Pointer {
		target = target.Elem()
	}
	switch {
	case !nv.IsValid():
		fv.SetZero()
		return true, nil
	case nv.Type().AssignableTo(target):
	case nv.Type().ConvertibleTo(target):
		nv = nv.Convert(target)
	default:
		return false, fmt.Errorf("autofill: cannot assign %T to %s.%s", v, m.value.Type(), f.Name)
	}
	if f.Type.Kind() == reflect.Pointer {
		p := reflect.New(target)
		p.Elem().Set(nv)
		nv = p
	}
	fv.Set(nv)
	return true, nil
}

func (m *MetaObject) fillable(f schema.Field) bool {
	if m.insert {
		return f.Tag.Fill.OnInsert()
	}
	return f.Tag.Fill.OnUpdate()
}

// Interceptor runs a Handler on the entity of INSERT and UPDATE
// statements.
type Interceptor struct {
	handler Handler
}

// New returns an interceptor running h.
func New(h Handler) *Interceptor {
	return &Interceptor{handler: h}
}

// Intercept implements plugin.Interceptor.
func (i *Interceptor) Intercept(ctx context.Context, inv *plugin.Invocation) error {
	stmt := inv.Statement
	if stmt.Command != plugin.CommandInsert && stmt.Command != plugin.CommandUpdate {
		return nil
	}
	rv := reflect.ValueOf(stmt.Entity())
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil
	}
	m := &MetaObject{value: rv.Elem(), insert: stmt.Command == plugin.CommandInsert}
	if m.insert {
		return i.handler.InsertFill(ctx, m)
	}
	return i.handler.UpdateFill(ctx, m)
}

// AuditHandler fills time.Time fields with the current time and zero
// uuid.UUID fields with a random UUID. On UPDATE, time fields are
// overwritten.
type AuditHandler struct {
	// Now returns the current time. It defaults to time.Now.
	Now func() time.Time
}

var (
	timeType = reflect.TypeFor[time.Time]()
	uuidType = reflect.TypeFor[uuid.UUID]()
)

// InsertFill implements Handler.
func (h AuditHandler) InsertFill(_ context.Context, m *MetaObject) error {
	return h.fill(m, true)
}

// UpdateFill implements Handler.
func (h AuditHandler) UpdateFill(_ context.Context, m *MetaObject) error {
	return h.fill(m, false)
}

func (h AuditHandler) fill(m *MetaObject, insert bool) error {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	ts := now()
	for _, f := range m.Fields() {
		var err error
		switch schema.Indirect(f.Type) {
		case timeType:
			if insert {
				_, err = m.SetIfZero(f.Name, ts)
			} else {
				err = m.Set(f.Name, ts)
			}
		case uuidType:
			_, err = m.SetIfZero(f.Name, uuid.New())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

var _ plugin.Interceptor = (*Interceptor)(nil)
