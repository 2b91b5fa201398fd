package swap

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"uon-marshaller/internal/common"
	"uon-marshaller/utils"
)

var (
	ErrNotAFunction  = errors.New("provided swap is not a function")
	ErrNotASwapFunc  = errors.New("provided function is not a recognizable swap")
	ErrDoublePointer = errors.New("swap functions do not support double pointers")
)

var (
	ctxType = reflect.TypeOf((*Context)(nil))
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// Func is one direction of a substitution: a validated conversion function
// together with its signature metadata.
type Func struct {
	In, Out      reflect.Type
	PackageAlias string
	Name         string
	HasCtx       bool
	HasErr       bool

	method bool // fn expects the receiver as its first argument
	fn     reflect.Value
}

// ParseFunc inspects the provided function and returns a Func if it is a
// valid swap function.
//
// Supported shapes:
//   - func(in In) Out
//   - func(in In) (Out, error)
//   - func(ctx *Context, in In) Out
//   - func(ctx *Context, in In) (Out, error)
func ParseFunc(fn any) (*Func, error) {
	fnVal := reflect.ValueOf(fn)
	if !fnVal.IsValid() || fnVal.Kind() != reflect.Func {
		return nil, ErrNotAFunction
	}

	fnType := fnVal.Type()

	f := &Func{fn: fnVal}

	switch fnType.NumIn() {
	default:
		return nil, ErrNotASwapFunc

	case 1:
		f.In = fnType.In(0)

	case 2:
		if fnType.In(0) != ctxType {
			return nil, ErrNotASwapFunc
		}

		f.HasCtx = true
		f.In = fnType.In(1)
	}

	switch fnType.NumOut() {
	default:
		return nil, ErrNotASwapFunc

	case 1:
		f.Out = fnType.Out(0)

	case 2:
		if !isError(fnType.Out(1)) {
			return nil, ErrNotASwapFunc
		}

		f.HasErr = true
		f.Out = fnType.Out(0)
	}

	if isDoublePointer(f.In) || isDoublePointer(f.Out) {
		return nil, ErrDoublePointer
	}

	// Get the function object from its program counter for diagnostics.
	fnPC := runtime.FuncForPC(fnVal.Pointer())
	alias, name := utils.Unpack2(strings.SplitN(fnPC.Name(), ".", 2))
	f.Name = name
	f.PackageAlias = common.PkgAlias(alias)

	return f, nil
}

// Call invokes the conversion on one input value. Panics inside the
// conversion are recovered and reported as errors so one broken swap cannot
// abort an entire traversal.
func (f *Func) Call(ctx *Context, in reflect.Value) (out reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = reflect.Value{}
			err = fmt.Errorf("swap %s panicked: %v", f.Name, r)
		}
	}()

	in, err = conformValue(in, f.In)
	if err != nil {
		return reflect.Value{}, err
	}

	var args []reflect.Value
	if f.method {
		args = append(args, in)
		if f.HasCtx {
			args = append(args, reflect.ValueOf(orDefault(ctx)))
		}
	} else {
		if f.HasCtx {
			args = append(args, reflect.ValueOf(orDefault(ctx)))
		}
		args = append(args, in)
	}

	results := f.fn.Call(args)

	if f.HasErr && !results[len(results)-1].IsNil() {
		return reflect.Value{}, results[len(results)-1].Interface().(error)
	}

	if len(results) == 0 || (f.HasErr && len(results) == 1) {
		return reflect.Value{}, nil
	}

	return results[0], nil
}

// CallOn invokes a method-backed reverse conversion against an explicit
// receiver, reconstructing the original value in place.
func (f *Func) CallOn(recv reflect.Value, ctx *Context, in reflect.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("swap %s panicked: %v", f.Name, r)
		}
	}()

	in, err = conformValue(in, f.In)
	if err != nil {
		return err
	}

	args := []reflect.Value{recv}
	if f.HasCtx {
		args = append(args, reflect.ValueOf(orDefault(ctx)))
	}
	args = append(args, in)

	results := f.fn.Call(args)

	if f.HasErr && !results[len(results)-1].IsNil() {
		return results[len(results)-1].Interface().(error)
	}

	return nil
}

// conformValue makes a value compatible with the expected parameter type,
// taking the address (via a copy when unaddressable) for pointer parameters
// and converting between compatible types.
func conformValue(in reflect.Value, want reflect.Type) (reflect.Value, error) {
	if !in.IsValid() {
		return reflect.Value{}, fmt.Errorf("%w: nil input", ErrNotASwapFunc)
	}

	if in.Type() == want || in.Type().AssignableTo(want) {
		return in, nil
	}

	if want.Kind() == reflect.Pointer && in.Type() == want.Elem() {
		p := reflect.New(want.Elem())
		p.Elem().Set(in)
		return p, nil
	}

	if in.Kind() == reflect.Pointer && in.Type().Elem() == want {
		return in.Elem(), nil
	}

	if in.Type().ConvertibleTo(want) {
		return in.Convert(want), nil
	}

	return reflect.Value{}, fmt.Errorf("swap input %s does not fit parameter %s", in.Type(), want)
}

func orDefault(ctx *Context) *Context {
	if ctx == nil {
		return &Context{}
	}

	return ctx
}

func isError(rtype reflect.Type) bool {
	return rtype == errType || rtype.Implements(errType)
}

func isDoublePointer(rtype reflect.Type) bool {
	return rtype.Kind() == reflect.Pointer && rtype.Elem().Kind() == reflect.Pointer
}
