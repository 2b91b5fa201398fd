package swap

import (
	"fmt"
	"reflect"
	"sync"
)

// Registry maps declared types to substitutions. It is populated at
// configuration time, frozen by convention before the first traversal, and
// safe for concurrent read access by many sessions; the resolution cache is
// lock-protected because discovery may be triggered lazily.
type Registry struct {
	mu        sync.RWMutex
	entries   map[reflect.Type]*Swap
	order     []reflect.Type
	cache     map[reflect.Type]*Swap // per-type resolution results, nil entries are negative
	inspector Inspector
}

// New returns a registry using the default reflection-based MethodInspector.
func New() *Registry {
	return NewWithInspector(MethodInspector{})
}

// NewWithInspector returns a registry with a custom capability inspector.
func NewWithInspector(insp Inspector) *Registry {
	return &Registry{
		entries:   map[reflect.Type]*Swap{},
		cache:     map[reflect.Type]*Swap{},
		inspector: insp,
	}
}

// Register binds conversion functions to a declared type. The declared type
// is given as a sample value or a reflect.Type; forward and reverse are
// functions in the shapes ParseFunc accepts, either may be nil but not both.
// Re-registering a type replaces the prior entry (last write wins). This is
// a configuration-time operation, not safe to interleave with traversal.
func (r *Registry) Register(declared any, forward, reverse any) error {
	rtype := asType(declared)
	if rtype == nil {
		return fmt.Errorf("swap registration needs a declared type")
	}

	if forward == nil && reverse == nil {
		return fmt.Errorf("swap registration for %s needs at least one conversion", rtype)
	}

	sw := &Swap{Type: rtype}

	if forward != nil {
		f, err := ParseFunc(forward)
		if err != nil {
			return fmt.Errorf("forward swap for %s: %w", rtype, err)
		}

		if !acceptsType(rtype, f.In) {
			return fmt.Errorf("forward swap %s does not accept %s", f.Name, rtype)
		}

		sw.Forward = f
	}

	if reverse != nil {
		f, err := ParseFunc(reverse)
		if err != nil {
			return fmt.Errorf("reverse swap for %s: %w", rtype, err)
		}

		if !producesType(rtype, f.Out) {
			return fmt.Errorf("reverse swap %s does not produce %s", f.Name, rtype)
		}

		sw.Reverse = f
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[rtype]; !exists {
		r.order = append(r.order, rtype)
	}

	r.entries[rtype] = sw

	// Registration invalidates previously cached resolutions.
	r.cache = map[reflect.Type]*Swap{}

	return nil
}

// Resolve returns the substitution to apply when serializing a value of the
// given actual type, or nil. Reverse-only substitutions are rejected here:
// they cannot serve serialization.
func (r *Registry) Resolve(actual reflect.Type) *Swap {
	sw := r.lookup(actual)
	if !sw.CanForward() {
		return nil
	}

	return sw
}

// ResolveReverse returns the substitution whose reverse path reconstructs
// values of the given declared type, or nil. The caller sees
// ErrUnsupportedReverse from Revert when the substitution is forward-only.
func (r *Registry) ResolveReverse(declared reflect.Type) *Swap {
	return r.lookup(declared)
}

// Revert reconstructs a value of the declared type from its parsed
// substitute. Types without any substitution pass through unchanged.
func (r *Registry) Revert(ctx *Context, declared reflect.Type, substitute any) (any, error) {
	sw := r.lookup(declared)
	if sw == nil {
		return substitute, nil
	}

	return sw.Revert(ctx, substitute)
}

// lookup resolves a type to its substitution: exact registration first, then
// the pointer/element variants, then registered interface types the type
// satisfies in declaration order, then convention-based discovery. Results,
// including misses, are cached for the registry lifetime.
func (r *Registry) lookup(actual reflect.Type) *Swap {
	if actual == nil {
		return nil
	}

	r.mu.RLock()
	sw, cached := r.cache[actual]
	r.mu.RUnlock()

	if cached {
		return sw
	}

	sw = r.resolveSlow(actual)

	r.mu.Lock()
	r.cache[actual] = sw
	r.mu.Unlock()

	return sw
}

func (r *Registry) resolveSlow(actual reflect.Type) *Swap {
	r.mu.RLock()

	if sw, ok := r.entries[actual]; ok {
		r.mu.RUnlock()
		return sw
	}

	// Pointer/element variants: a value of T resolves a registration
	// against *T and vice versa.
	if sw, ok := r.entries[reflect.PointerTo(actual)]; ok {
		r.mu.RUnlock()
		return sw
	}

	if actual.Kind() == reflect.Pointer {
		if sw, ok := r.entries[actual.Elem()]; ok {
			r.mu.RUnlock()
			return sw
		}
	}

	// Interface registrations: the most specific compatible interface wins,
	// registration order breaks ties between equally specific ones.
	var best reflect.Type

	for _, declared := range r.order {
		if declared.Kind() != reflect.Interface {
			continue
		}

		if !actual.Implements(declared) && !reflect.PointerTo(actual).Implements(declared) {
			continue
		}

		if best == nil || moreSpecific(declared, best) {
			best = declared
		}
	}

	if best != nil {
		sw := r.entries[best]
		r.mu.RUnlock()
		return sw
	}

	r.mu.RUnlock()

	return r.discover(actual)
}

// moreSpecific reports whether interface a is strictly narrower than b:
// a's method set subsumes b's but not the other way around.
func moreSpecific(a, b reflect.Type) bool {
	return a.Implements(b) && !b.Implements(a)
}

func asType(declared any) reflect.Type {
	if declared == nil {
		return nil
	}

	if rtype, ok := declared.(reflect.Type); ok {
		return rtype
	}

	return reflect.TypeOf(declared)
}

// acceptsType reports whether a forward function parameter can take values
// of the declared type.
func acceptsType(declared, param reflect.Type) bool {
	return declared.AssignableTo(param) ||
		reflect.PointerTo(declared).AssignableTo(param) ||
		(declared.Kind() == reflect.Pointer && declared.Elem().AssignableTo(param)) ||
		declared.ConvertibleTo(param)
}

// producesType reports whether a reverse function result yields values of
// the declared type.
func producesType(declared, result reflect.Type) bool {
	return result.AssignableTo(declared) ||
		(result.Kind() == reflect.Pointer && result.Elem() == declared) ||
		result.ConvertibleTo(declared)
}
