package schema

import (
	"reflect"
	"strings"

	"github.com/go-openapi/inflect"
)

// TagName is the struct tag key read by the plugins.
const TagName = "veloxplug"

// FillMode tells when a field is auto-populated.
type FillMode uint8

// Fill modes.
const (
	FillNone FillMode = iota
	FillInsert
	FillUpdate
	FillInsertUpdate
)

// OnInsert reports whether the field is filled on INSERT.
func (m FillMode) OnInsert() bool { return m == FillInsert || m == FillInsertUpdate }

// OnUpdate reports whether the field is filled on UPDATE.
func (m FillMode) OnUpdate() bool { return m == FillUpdate || m == FillInsertUpdate }

// String returns the tag spelling of the mode.
func (m FillMode) String() string {
	switch m {
	case FillInsert:
		return "insert"
	case FillUpdate:
		return "update"
	case FillInsertUpdate:
		return "insert_update"
	default:
		return ""
	}
}

// Tag is the parsed form of a veloxplug struct tag.
type Tag struct {
	Version bool     // optimistic lock version field
	Logic   bool     // logical delete flag field
	Fill    FillMode // auto-fill mode
}

// ParseTag parses the veloxplug tag of a struct field. Unknown options
// are ignored.
func ParseTag(sf reflect.StructField) Tag {
	var t Tag
	raw, ok := sf.Tag.Lookup(TagName)
	if !ok {
		return t
	}
	for _, opt := range strings.Split(raw, ",") {
		opt = strings.TrimSpace(opt)
		switch {
		case opt == "version":
			t.Version = true
		case opt == "logic":
			t.Logic = true
		case strings.HasPrefix(opt, "fill="):
			switch strings.TrimPrefix(opt, "fill=") {
			case "insert":
				t.Fill = FillInsert
			case "update":
				t.Fill = FillUpdate
			case "insert_update", "update_insert":
				t.Fill = FillInsertUpdate
			}
		}
	}
	return t
}

// Naming maps a Go field name to a column name.
type Naming func(string) string

// Verbatim keeps the field name as the column name.
func Verbatim(name string) string { return name }

// Snake converts a field name to snake case, e.g. CreatedAt to created_at.
func Snake(name string) string { return inflect.Underscore(name) }

// NamingOf returns the Naming registered under the given name:
// "snake" or "" / "field" for verbatim.
func NamingOf(name string) (Naming, bool) {
	switch strings.ToLower(name) {
	case "", "field", "verbatim":
		return Verbatim, true
	case "snake", "snake_case":
		return Snake, true
	default:
		return nil, false
	}
}

// Column returns the column name of a struct field: the db tag when
// present, the named field otherwise.
func Column(sf reflect.StructField, naming Naming) string {
	if name, ok := dbName(sf); ok {
		return name
	}
	if naming == nil {
		naming = Verbatim
	}
	return naming(sf.Name)
}

func dbName(sf reflect.StructField) (string, bool) {
	tag, ok := sf.Tag.Lookup("db")
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return "", false
	}
	return name, true
}
