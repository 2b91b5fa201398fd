package node

import (
	"io"
	"reflect"

	"uon-marshaller/primitive"
)

// Node is the classified view of one runtime value at one traversal step.
// Kind is derived purely from the actual type after pointer and interface
// unwrapping, never guessed from the value's contents.
type Node struct {
	Kind   Kind
	Scalar primitive.KindEnum // scalar sub-kind, set when Kind is KindScalar

	Declared reflect.Type // static type the value was reached through, may be nil
	Actual   reflect.Type // dynamic type after unwrapping, nil for null scalars
	Value    reflect.Value

	Name string // property name under which this node was reached, "" at root

	// Ambiguous marks values that matched no kind and defaulted to scalar
	// (channels, functions, unsafe pointers).
	Ambiguous bool

	// Ordered marks maps that carry their own entry order (OrderedMap).
	Ordered bool

	// Ident is the value's identity handle for recursion detection. It is
	// zero for values that cannot appear as their own descendant (scalars,
	// value structs reached without a pointer).
	Ident Ident
}

// Ident identifies one referenced value. Two nodes with the same non-zero
// Ident refer to the same underlying data.
type Ident struct {
	Ptr  uintptr
	Type reflect.Type
	Len  int // disambiguates slices sharing a backing array
}

// IsZero reports whether the identity is untracked.
func (i Ident) IsZero() bool { return i.Ptr == 0 }

// IsNull reports whether the node represents a null scalar.
func (n Node) IsNull() bool {
	return n.Kind == KindScalar && n.Scalar == primitive.KindNull
}

// MapEntry is one key/value pair of an OrderedMap.
type MapEntry struct {
	Key   string
	Value any
}

// OrderedMap is a map substitute that preserves entry order. Go's built-in
// maps iterate in randomized order, so a plain map always renders sorted;
// callers that need insertion order use this type instead. It classifies as
// KindMap.
type OrderedMap []MapEntry

// Set appends or replaces the entry for key and returns the map for chaining.
func (m OrderedMap) Set(key string, value any) OrderedMap {
	for i := range m {
		if m[i].Key == key {
			m[i].Value = value
			return m
		}
	}

	return append(m, MapEntry{Key: key, Value: value})
}

// Get returns the value for key and whether it was present.
func (m OrderedMap) Get(key string) (any, bool) {
	for i := range m {
		if m[i].Key == key {
			return m[i].Value, true
		}
	}

	return nil, false
}

var (
	mapEntryType = reflect.TypeOf(MapEntry{})
	readerType   = reflect.TypeOf((*io.Reader)(nil)).Elem()
)

// ClassifyAny classifies a plain value. A nil value is the null scalar.
func ClassifyAny(v any) Node {
	if v == nil {
		return nullNode()
	}

	return Classify(reflect.ValueOf(v))
}

// Classify determines the semantic kind of a value. Classification has no
// side effects and is safe to repeat on the same value.
//
/// Priority, mirroring the structural rules of the wire model:
//  1. invalid values and nil pointers/interfaces are null scalars
//  2. scalar types (numbers, booleans, strings, byte slices, time values)
//  3. maps (built-in maps and OrderedMap)
//  4. arrays, then slices as collections
//  5. structs with readable properties are records; property access takes
//     precedence over an incidental Read method
//  6. remaining io.Reader implementations are streams
//  7. everything else defaults to scalar, flagged as ambiguous
func Classify(v reflect.Value) Node {
	if !v.IsValid() {
		return nullNode()
	}

	// Unwrap interfaces and pointers down to the concrete value, remembering
	// the outermost value so method sets on pointer receivers stay reachable.
	orig := v

	var ident Ident

	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nullNode()
		}

		if v.Kind() == reflect.Pointer {
			orig = v
			ident = Ident{Ptr: v.Pointer(), Type: v.Type()}
		}

		v = v.Elem()
	}

	rtype := v.Type()

	if kind := primitive.FromReflectType(rtype); kind != 0 {
		return Node{Kind: KindScalar, Scalar: kind, Actual: rtype, Value: v}
	}

	switch rtype.Kind() {
	case reflect.Map:
		return Node{Kind: KindMap, Actual: rtype, Value: v,
			Ident: Ident{Ptr: v.Pointer(), Type: rtype}}

	case reflect.Array:
		return Node{Kind: KindArray, Actual: rtype, Value: v, Ident: ident}

	case reflect.Slice:
		sliceIdent := Ident{Ptr: v.Pointer(), Type: rtype, Len: v.Len()}

		if rtype.Elem() == mapEntryType {
			return Node{Kind: KindMap, Actual: rtype, Value: v, Ordered: true, Ident: sliceIdent}
		}

		return Node{Kind: KindCollection, Actual: rtype, Value: v, Ident: sliceIdent}

	case reflect.Struct:
		if len(MetaOf(rtype).Properties) == 0 {
			if r, ok := streamValue(v, orig); ok {
				return Node{Kind: KindStream, Actual: rtype, Value: r}
			}
		}

		return Node{Kind: KindRecord, Actual: rtype, Value: v, Ident: ident}
	}

	if r, ok := streamValue(v, orig); ok {
		return Node{Kind: KindStream, Actual: rtype, Value: r}
	}

	return Node{
		Kind:      KindScalar,
		Scalar:    primitive.KindString,
		Actual:    rtype,
		Value:     v,
		Ambiguous: true,
	}
}

// KindOfType classifies by type alone, without a value. Pointers unwrap;
// interface types are KindUnknown since the kind depends on the dynamic
// value. Used by swap discovery to judge candidate result types.
func KindOfType(rtype reflect.Type) Kind {
	for rtype != nil && rtype.Kind() == reflect.Pointer {
		rtype = rtype.Elem()
	}

	if rtype == nil {
		return KindUnknown
	}

	if primitive.FromReflectType(rtype) != 0 {
		return KindScalar
	}

	switch rtype.Kind() {
	default:
		return KindUnknown
	case reflect.Interface:
		return KindUnknown
	case reflect.Map:
		return KindMap
	case reflect.Array:
		return KindArray
	case reflect.Slice:
		if rtype.Elem() == mapEntryType {
			return KindMap
		}

		return KindCollection
	case reflect.Struct:
		if len(MetaOf(rtype).Properties) == 0 &&
			(rtype.Implements(readerType) || reflect.PointerTo(rtype).Implements(readerType)) {
			return KindStream
		}

		return KindRecord
	}
}

func nullNode() Node {
	return Node{Kind: KindScalar, Scalar: primitive.KindNull}
}

// streamValue returns a value usable as an io.Reader, preferring the
// outermost pointer so method sets on pointer receivers stay reachable.
func streamValue(v, orig reflect.Value) (reflect.Value, bool) {
	if orig.Type().Implements(readerType) {
		return orig, true
	}

	if v.Type().Implements(readerType) {
		return v, true
	}

	if v.CanAddr() && reflect.PointerTo(v.Type()).Implements(readerType) {
		return v.Addr(), true
	}

	return reflect.Value{}, false
}
