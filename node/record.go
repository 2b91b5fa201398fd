package node

import (
	"reflect"
	"strings"
	"sync"
)

// Property describes one readable record property.
type Property struct {
	// Name under which the property is rendered.
	Name string
	// Index of the backing struct field.
	Index int
	// Expandable properties render sequence values as repeated sibling
	// entries instead of one composite entry.
	Expandable bool
}

// RecordMeta is the ordered property list of one record type.
type RecordMeta struct {
	Type       reflect.Type
	Properties []Property
}

// Property returns the descriptor with the given rendered name.
func (m *RecordMeta) Property(name string) (Property, bool) {
	for _, p := range m.Properties {
		if p.Name == name {
			return p, true
		}
	}

	return Property{}, false
}

var (
	metaMu    sync.RWMutex
	metaCache = map[reflect.Type]*RecordMeta{}
)

// MetaOf computes the ordered property list for a struct type. Results are
// cached for the process lifetime; struct types are immutable at runtime so
// the cache never invalidates.
//
// Property naming precedence per field: `uon:"name"` tag, then the json tag
// name, then the field name. A tag name of "-" excludes the field, and the
// "expand" tag option marks the property expandable. Unexported fields are
// never properties.
func MetaOf(rtype reflect.Type) *RecordMeta {
	metaMu.RLock()
	meta, ok := metaCache[rtype]
	metaMu.RUnlock()

	if ok {
		return meta
	}

	meta = &RecordMeta{Type: rtype}

	for i := 0; i < rtype.NumField(); i++ {
		field := rtype.Field(i)
		if !field.IsExported() {
			continue
		}

		name, expand, skip := parseFieldTag(field)
		if skip {
			continue
		}

		meta.Properties = append(meta.Properties, Property{
			Name:       name,
			Index:      i,
			Expandable: expand,
		})
	}

	metaMu.Lock()
	metaCache[rtype] = meta
	metaMu.Unlock()

	return meta
}

// parseFieldTag resolves the rendered name and options for a struct field:
// `uon:` tag first, json tag name as fallback, field name otherwise.
func parseFieldTag(field reflect.StructField) (name string, expand, skip bool) {
	if tag, ok := field.Tag.Lookup("uon"); ok {
		parts := strings.Split(tag, ",")
		if parts[0] == "-" {
			return "", false, true
		}

		name = parts[0]
		for _, opt := range parts[1:] {
			if opt == "expand" {
				expand = true
			}
		}
	}

	if name == "" {
		name = jsonTagName(field)
	}

	if name == "" {
		name = field.Name
	}

	return name, expand, false
}

func jsonTagName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" || tag == "-" {
		return ""
	}

	// trim options
	if idx := strings.IndexByte(tag, ','); idx >= 0 {
		tag = tag[:idx]
	}

	return tag
}
