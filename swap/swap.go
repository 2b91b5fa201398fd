package swap

import (
	"errors"
	"reflect"

	"uon-marshaller/options"
)

// ErrUnsupportedReverse reports an attempt to reconstruct a value through a
// substitution that only declares a forward conversion. Forward-only swaps
// are legal for serialization; the failure surfaces only on the parse path.
var ErrUnsupportedReverse = errors.New("swap has no reverse operation")

// Context carries per-call state handed to swap operations that declare a
// context parameter.
type Context struct {
	Options *options.Options
}

// NewContext returns a context over the given options, defaulting them when nil.
func NewContext(opts *options.Options) *Context {
	if opts == nil {
		opts = options.Default()
	}

	return &Context{Options: opts}
}

// Swap is a substitution scoped to a declared type: a forward conversion
// producing the swapped representation and an optional reverse conversion
// reconstructing the original. Either direction may be absent.
type Swap struct {
	// Type is the declared type the swap applies to.
	Type reflect.Type

	Forward *Func
	Reverse *Func

	// Discovered marks swaps produced by convention scanning rather than
	// explicit registration.
	Discovered bool

	// Ambiguous marks discovered swaps where more than one forward
	// candidate matched; the first in enumeration order was chosen.
	Ambiguous bool
}

// CanForward reports whether the swap is usable for serialization.
func (s *Swap) CanForward() bool { return s != nil && s.Forward != nil }

// CanReverse reports whether the swap is usable for reconstruction.
func (s *Swap) CanReverse() bool { return s != nil && s.Reverse != nil }

// Apply runs the forward conversion on a value and returns the substitute.
func (s *Swap) Apply(ctx *Context, v reflect.Value) (any, error) {
	if !s.CanForward() {
		return nil, errors.New("swap has no forward operation")
	}

	out, err := s.Forward.Call(ctx, v)
	if err != nil {
		return nil, err
	}

	if !out.IsValid() || (out.Kind() == reflect.Interface && out.IsNil()) {
		return nil, nil
	}

	return out.Interface(), nil
}

// Revert runs the reverse conversion on a substitute and returns the
// reconstructed value. Returns ErrUnsupportedReverse for forward-only swaps.
func (s *Swap) Revert(ctx *Context, substitute any) (any, error) {
	if !s.CanReverse() {
		return nil, ErrUnsupportedReverse
	}

	in := reflect.ValueOf(substitute)

	if s.Reverse.method {
		// Pointer-receiver reconstruction: allocate the target and let the
		// method populate it.
		recv := reflect.New(s.Type)
		if err := s.Reverse.CallOn(recv, ctx, in); err != nil {
			return nil, err
		}

		return recv.Elem().Interface(), nil
	}

	out, err := s.Reverse.Call(ctx, in)
	if err != nil {
		return nil, err
	}

	if !out.IsValid() {
		return nil, nil
	}

	// Registered reverse functions may produce *T for a T-typed swap.
	if out.Kind() == reflect.Pointer && out.Type().Elem() == s.Type {
		out = out.Elem()
	}

	return out.Interface(), nil
}
