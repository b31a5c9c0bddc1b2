package optlock

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/veloxplug"
	"github.com/syssam/veloxplug/schema"
)

// Descriptor is the cached version metadata of an entity type.
type Descriptor struct {
	controlled bool
	entity     reflect.Type
	field      string
	column     string
	index      []int
	typ        reflect.Type // value type, without the pointer of nullable fields
	nullable   bool
	strategy   Strategy
}

// notVersioned is shared by every type without a version field.
var notVersioned = &Descriptor{}

// Controlled reports whether the entity type has a version field.
func (d *Descriptor) Controlled() bool { return d.controlled }

// Entity returns the entity struct type.
func (d *Descriptor) Entity() reflect.Type { return d.entity }

// Field returns the Go name of the version field.
func (d *Descriptor) Field() string { return d.field }

// Column returns the column name of the version field.
func (d *Descriptor) Column() string { return d.column }

// Type returns the version value type.
func (d *Descriptor) Type() reflect.Type { return d.typ }

// Strategy returns the increment strategy of the version type.
func (d *Descriptor) Strategy() Strategy { return d.strategy }

// Get reads the version of the entity held by v. It returns nil when
// the version is unset (a nil pointer field) or unreachable.
func (d *Descriptor) Get(v reflect.Value) any {
	fv, ok := d.fieldValue(v)
	if !ok {
		return nil
	}
	if d.nullable {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}
	return fv.Interface()
}

// Set writes version into the entity held by v, which must be
// addressable. Nullable fields get a new pointer.
func (d *Descriptor) Set(v reflect.Value, version any) error {
	fv, ok := d.fieldValue(v)
	if !ok || !fv.CanSet() {
		return fmt.Errorf("optlock: version field %s.%s is not settable", d.entity, d.field)
	}
	nv := reflect.ValueOf(version)
	if !nv.IsValid() || nv.Type() != d.typ {
		return fmt.Errorf("optlock: strategy for %s returned %T", d.typ, version)
	}
	if d.nullable {
		p := reflect.New(d.typ)
		p.Elem().Set(nv)
		nv = p
	}
	fv.Set(nv)
	return nil
}

func (d *Descriptor) fieldValue(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Type() != d.entity {
		return reflect.Value{}, false
	}
	return schema.FieldValue(v, d.index)
}

// Cache memoizes descriptors per entity type for the process lifetime.
type Cache struct {
	registry *Registry
	naming   schema.Naming
	entries  sync.Map // map[reflect.Type]*Descriptor
	group    singleflight.Group
	scans    atomic.Int64
}

// NewCache returns a cache resolving strategies from registry and
// naming columns of untagged fields with naming.
func NewCache(registry *Registry, naming schema.Naming) *Cache {
	if registry == nil {
		registry = NewRegistry()
	}
	if naming == nil {
		naming = schema.Verbatim
	}
	return &Cache{registry: registry, naming: naming}
}

// Lookup returns the descriptor of t. Pointer types are dereferenced.
// Concurrent first lookups of a type share a single scan. Errors are
// not cached.
func (c *Cache) Lookup(t reflect.Type) (*Descriptor, error) {
	t = schema.Indirect(t)
	if t == nil {
		return notVersioned, nil
	}
	if d, ok := c.entries.Load(t); ok {
		return d.(*Descriptor), nil
	}
	key := strconv.FormatUint(uint64(reflect.ValueOf(t).Pointer()), 16)
	v, err, _ := c.group.Do(key, func() (any, error) {
		if d, ok := c.entries.Load(t); ok {
			return d, nil
		}
		d, err := c.scan(t)
		if err != nil {
			return nil, err
		}
		c.entries.Store(t, d)
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Descriptor), nil
}

// Scans returns the number of type scans performed.
func (c *Cache) Scans() int64 { return c.scans.Load() }

func (c *Cache) scan(t reflect.Type) (*Descriptor, error) {
	c.scans.Add(1)
	for _, f := range schema.Fields(t) {
		if !f.Tag.Version {
			continue
		}
		typ, nullable := f.Type, false
		if typ.Kind() == reflect.Pointer {
			typ, nullable = typ.Elem(), true
		}
		s, err := c.registry.Resolve(typ)
		if err != nil {
			return nil, veloxplug.NewUnsupportedVersionFieldTypeError(t, f.Name, f.Type)
		}
		return &Descriptor{
			controlled: true,
			entity:     t,
			field:      f.Name,
			column:     schema.Column(f.Struct, c.naming),
			index:      f.Index,
			typ:        typ,
			nullable:   nullable,
			strategy:   s,
		}, nil
	}
	return notVersioned, nil
}
