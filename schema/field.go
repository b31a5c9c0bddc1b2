package schema

import (
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Field describes an exported struct field reachable from an entity type.
type Field struct {
	Name   string       // Go field name
	DBName string       // db tag name, empty when absent
	Index  []int        // index path for reflect.Value.FieldByIndex
	Type   reflect.Type // declared type
	Tag    Tag          // parsed veloxplug tag
	Struct reflect.StructField
}

// fieldCache memoizes Fields per struct type for the process lifetime.
var fieldCache sync.Map // map[reflect.Type][]Field

// Fields returns the exported fields of a struct type, including the
// ones of embedded structs, in declaration order. Embedded structs are
// transparent: they contribute their fields, not a column of their
// own. On name conflicts the shallower field wins, as in Go. Pointer
// types are dereferenced. Non-struct types have no fields.
func Fields(t reflect.Type) []Field {
	t = Indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	if v, ok := fieldCache.Load(t); ok {
		return v.([]Field)
	}
	var (
		all   []Field
		depth = make(map[string]int)
	)
	walk(t, nil, map[reflect.Type]bool{t: true}, func(f Field) {
		if d, ok := depth[f.Name]; !ok || len(f.Index) < d {
			depth[f.Name] = len(f.Index)
		}
		all = append(all, f)
	})
	fields := make([]Field, 0, len(all))
	for _, f := range all {
		if depth[f.Name] == len(f.Index) {
			fields = append(fields, f)
			depth[f.Name] = -1
		}
	}
	v, _ := fieldCache.LoadOrStore(t, fields)
	return v.([]Field)
}

func walk(t reflect.Type, index []int, path map[reflect.Type]bool, visit func(Field)) {
	for i := range t.NumField() {
		sf := t.Field(i)
		idx := append(slices.Clip(index), i)
		if sf.Anonymous {
			et := Indirect(sf.Type)
			if et.Kind() == reflect.Struct {
				if _, tagged := dbName(sf); !tagged && !path[et] {
					path[et] = true
					walk(et, idx, path, visit)
					delete(path, et)
					continue
				}
			}
		}
		if !sf.IsExported() {
			continue
		}
		sf.Index = idx
		db, _ := dbName(sf)
		visit(Field{
			Name:   sf.Name,
			DBName: db,
			Index:  idx,
			Type:   sf.Type,
			Tag:    ParseTag(sf),
			Struct: sf,
		})
	}
}

// FieldByProperty finds the field a binding property refers to: the Go
// field name, or the db tag name, compared case-insensitively.
func FieldByProperty(t reflect.Type, prop string) (Field, bool) {
	fields := Fields(t)
	for _, f := range fields {
		if f.Name == prop || f.DBName == prop {
			return f, true
		}
	}
	for _, f := range fields {
		if strings.EqualFold(f.Name, prop) || strings.EqualFold(f.DBName, prop) {
			return f, true
		}
	}
	return Field{}, false
}

// Indirect dereferences pointer types.
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// Value returns the struct value held by v, dereferencing pointers.
// It reports false for nil pointers and non-struct values.
func Value(v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return rv, true
}

// FieldValue returns the field at the given index path. Nil embedded
// pointers on the path report false.
func FieldValue(v reflect.Value, index []int) (reflect.Value, bool) {
	fv, err := v.FieldByIndexErr(index)
	if err != nil {
		return reflect.Value{}, false
	}
	return fv, true
}
