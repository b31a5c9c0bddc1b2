package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-openapi/inflect"
)

// TableNamer provides a custom table name for an entity.
type TableNamer interface {
	TableName() string
}

var tableNamerType = reflect.TypeFor[TableNamer]()

// TableName resolves the table of an entity target. Targets may be a
// table name string, an entity value or pointer implementing
// TableNamer, or any named struct whose type name is pluralized and
// snake cased (User -> users).
func TableName(target any) (string, error) {
	switch v := target.(type) {
	case nil:
		return "", errors.New("schema: nil table target")
	case string:
		name := strings.TrimSpace(v)
		if name == "" {
			return "", errors.New("schema: empty table name")
		}
		return name, nil
	case TableNamer:
		return namerTable(v)
	}
	typ := Indirect(reflect.TypeOf(target))
	if typ.Kind() != reflect.Struct {
		return "", fmt.Errorf("schema: unsupported table target %T", target)
	}
	if reflect.PointerTo(typ).Implements(tableNamerType) {
		return namerTable(reflect.New(typ).Interface().(TableNamer))
	}
	if typ.Name() == "" {
		return "", fmt.Errorf("schema: cannot derive table name for anonymous struct %v", typ)
	}
	return inflect.Pluralize(inflect.Underscore(typ.Name())), nil
}

func namerTable(n TableNamer) (string, error) {
	name := strings.TrimSpace(n.TableName())
	if name == "" {
		return "", fmt.Errorf("schema: TableName returned empty string for %T", n)
	}
	return name, nil
}
