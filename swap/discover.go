package swap

import (
	"reflect"
	"slices"

	"uon-marshaller/internal/common"
	"uon-marshaller/node"
)

// Inspector finds candidate conversion operations declared on a type. The
// registry depends only on this interface, never on a particular
// introspection mechanism; MethodInspector is the reflection-based default.
type Inspector interface {
	// ForwardCandidates returns every operation that can produce a swapped
	// representation of the type, in a stable enumeration order.
	ForwardCandidates(rtype reflect.Type) []Candidate

	// ReverseCandidate returns the operation reconstructing the type from
	// the given substitute type, if one exists.
	ReverseCandidate(rtype, substitute reflect.Type) (Candidate, bool)
}

// Candidate is one conversion operation found by an Inspector.
type Candidate struct {
	Name string
	Func *Func
}

// Method name conventions, scanned in order. The order is the documented
// (but arbitrary) tie-break when a type declares more than one forward
// operation.
var (
	forwardNames = []string{"Swap", "Swapped"}
	reverseNames = []string{"Unswap"}
)

// MethodInspector discovers conversions by scanning a type's exported method
// set. Unexported methods are invisible to reflection and thus below the
// visibility threshold by construction.
type MethodInspector struct {
	// Skip lists method names excluded from discovery, for types whose
	// conventionally-named methods mean something else (sort.Interface
	// implementations are excluded by signature already).
	Skip []string
}

// ForwardCandidates scans for methods matching the forward convention:
// named Swap or Swapped, taking no arguments beyond an optional *Context,
// returning a substitute (plus an optional error) whose kind is map,
// collection, array, or scalar.
func (mi MethodInspector) ForwardCandidates(rtype reflect.Type) []Candidate {
	var out []Candidate

	for _, name := range forwardNames {
		if slices.Contains(mi.Skip, name) {
			continue
		}

		m, ok := methodOn(rtype, name)
		if !ok {
			continue
		}

		f, ok := forwardFromMethod(m)
		if !ok {
			continue
		}

		out = append(out, Candidate{Name: name, Func: f})
	}

	return out
}

// ReverseCandidate scans for the reverse convention: a pointer-receiver
// method named Unswap accepting the substitute type (after an optional
// *Context), returning nothing or an error.
func (mi MethodInspector) ReverseCandidate(rtype, substitute reflect.Type) (Candidate, bool) {
	for _, name := range reverseNames {
		if slices.Contains(mi.Skip, name) {
			continue
		}

		m, ok := reflect.PointerTo(rtype).MethodByName(name)
		if !ok {
			continue
		}

		f, ok := reverseFromMethod(m, rtype, substitute)
		if !ok {
			continue
		}

		return Candidate{Name: name, Func: f}, true
	}

	return Candidate{}, false
}

// methodOn prefers the value receiver so discovered forwards work on
// unaddressable values; the pointer method set is the fallback.
func methodOn(rtype reflect.Type, name string) (reflect.Method, bool) {
	if m, ok := rtype.MethodByName(name); ok {
		return m, true
	}

	return reflect.PointerTo(rtype).MethodByName(name)
}

func forwardFromMethod(m reflect.Method) (*Func, bool) {
	mt := m.Func.Type()

	f := &Func{
		Name:   m.Name,
		In:     mt.In(0), // receiver
		method: true,
		fn:     m.Func,
	}

	switch mt.NumIn() {
	default:
		return nil, false
	case 1:
	case 2:
		if mt.In(1) != ctxType {
			return nil, false
		}

		f.HasCtx = true
	}

	switch mt.NumOut() {
	default:
		return nil, false
	case 1:
		f.Out = mt.Out(0)
	case 2:
		if !isError(mt.Out(1)) {
			return nil, false
		}

		f.HasErr = true
		f.Out = mt.Out(0)
	}

	// The substitute must move the value out of record territory; a forward
	// producing another record (or a stream) is not a usable swap.
	switch node.KindOfType(f.Out) {
	case node.KindRecord, node.KindStream:
		return nil, false
	}

	f.PackageAlias = common.PkgAlias(mt.In(0).String())

	return f, true
}

func reverseFromMethod(m reflect.Method, rtype, substitute reflect.Type) (*Func, bool) {
	mt := m.Func.Type()

	f := &Func{
		Name:   m.Name,
		Out:    rtype,
		method: true,
		fn:     m.Func,
	}

	switch mt.NumIn() {
	default:
		return nil, false
	case 2:
		f.In = mt.In(1)
	case 3:
		if mt.In(1) != ctxType {
			return nil, false
		}

		f.HasCtx = true
		f.In = mt.In(2)
	}

	if substitute != nil && !substitute.AssignableTo(f.In) && !substitute.ConvertibleTo(f.In) {
		return nil, false
	}

	switch mt.NumOut() {
	default:
		return nil, false
	case 0:
	case 1:
		if !isError(mt.Out(0)) {
			return nil, false
		}

		f.HasErr = true
	}

	f.PackageAlias = common.PkgAlias(rtype.String())

	return f, true
}

// discover builds a substitution from convention scanning, or nil when the
// type declares no qualifying forward operation. A forward candidate without
// a matching reverse still yields a serialization-only swap.
func (r *Registry) discover(rtype reflect.Type) *Swap {
	if r.inspector == nil {
		return nil
	}

	candidates := r.inspector.ForwardCandidates(rtype)
	if common.IsEmpty(candidates) {
		return nil
	}

	first, _ := common.First(candidates)

	sw := &Swap{
		Type:       rtype,
		Forward:    first.Func,
		Discovered: true,
		Ambiguous:  common.IsMultiple(candidates),
	}

	if rc, ok := r.inspector.ReverseCandidate(rtype, first.Func.Out); ok {
		sw.Reverse = rc.Func
	}

	return sw
}
