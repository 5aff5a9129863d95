package interp

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jward/questscript/ast"
	"github.com/jward/questscript/internal/types"
)

// Callable is the closed union of invocable entities: *NativeFunction,
// *NativeMethod, *ExtensionMethod and *UserDefined.
type Callable interface {
	Signature() *types.Function
	CallableName() string
	callable()
}

// NativeFunc is a host closure. Arguments arrive as host values; see
// Interpreter.HostValue.
type NativeFunc func(ctx context.Context, args []any) (any, error)

// MethodFunc is a host closure invoked with an explicit receiver.
type MethodFunc func(ctx context.Context, recv any, args []any) (any, error)

// NativeFunction is a global host function.
type NativeFunction struct {
	Name string
	Type *types.Function
	Fn   NativeFunc

	// set on builtins that operate on script values instead of host values
	values func(ctx context.Context, args []Value) (Value, error)
}

// NativeMethod is an instance method of a host class.
type NativeMethod struct {
	Name string
	On   *types.Aggregate
	Type *types.Function
	Fn   MethodFunc
}

// ExtensionMethod is a host function attached to a type it does not own.
type ExtensionMethod struct {
	Name string
	On   *types.Aggregate
	Type *types.Function
	Fn   MethodFunc
}

// UserDefined is a script function. Env is the memory space it was
// defined in; calls are parented to it, not to the caller.
type UserDefined struct {
	Name   string
	Type   *types.Function
	Params []string
	Body   *ast.Block
	Env    *MemorySpace
}

func (c *NativeFunction) Signature() *types.Function  { return c.Type }
func (c *NativeMethod) Signature() *types.Function    { return c.Type }
func (c *ExtensionMethod) Signature() *types.Function { return c.Type }
func (c *UserDefined) Signature() *types.Function     { return c.Type }

func (c *NativeFunction) CallableName() string  { return c.Name }
func (c *NativeMethod) CallableName() string    { return c.On.Name() + "." + c.Name }
func (c *ExtensionMethod) CallableName() string { return c.On.Name() + "." + c.Name }
func (c *UserDefined) CallableName() string     { return c.Name }

func (*NativeFunction) callable()  {}
func (*NativeMethod) callable()    {}
func (*ExtensionMethod) callable() {}
func (*UserDefined) callable()     {}

// CheckArgs validates args against c's signature.
func CheckArgs(c Callable, args []Value) error {
	fn := c.Signature()
	n := len(fn.Params)
	if fn.Variadic {
		if len(args) < n-1 {
			return &TypeMismatchError{Kind: Arity, Name: c.CallableName(), Index: -1, Want: "at least " + strconv.Itoa(n-1), Got: strconv.Itoa(len(args))}
		}
	} else if len(args) != n {
		return &TypeMismatchError{Kind: Arity, Name: c.CallableName(), Index: -1, Want: strconv.Itoa(n), Got: strconv.Itoa(len(args))}
	}
	for i, a := range args {
		want := paramType(fn, i)
		if !types.AssignableTo(a.Type(), want) {
			return &TypeMismatchError{Kind: ArgType, Name: c.CallableName(), Index: i, Want: want.String(), Got: a.Type().String()}
		}
	}
	return nil
}

func paramType(fn *types.Function, i int) types.Type {
	if i < len(fn.Params) {
		return fn.Params[i]
	}
	if fn.Variadic && len(fn.Params) > 0 {
		return fn.Params[len(fn.Params)-1]
	}
	return types.Any
}

// Call invokes c with already evaluated arguments. Arity and argument types
// are checked first; on mismatch no closure runs. args is not modified.
func (in *Interpreter) Call(ctx context.Context, c Callable, args []Value) (Value, error) {
	if err := CheckArgs(c, args); err != nil {
		return nil, err
	}
	fn := c.Signature()
	coerced := make([]Value, len(args))
	for i, a := range args {
		coerced[i] = coerce(a, paramType(fn, i))
	}

	switch c := c.(type) {
	case *NativeFunction:
		if c.values != nil {
			v, err := c.values(ctx, coerced)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", c.Name, err)
			}
			return v, nil
		}
		hargs, err := in.hostArgs(ctx, c.Name, coerced)
		if err != nil {
			return nil, err
		}
		out, err := c.Fn(ctx, hargs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name, err)
		}
		return wrapResult(c, out)
	case *NativeMethod:
		return in.callMethod(ctx, c, c.On, c.Fn, coerced)
	case *ExtensionMethod:
		return in.callMethod(ctx, c, c.On, c.Fn, coerced)
	case *UserDefined:
		return in.callUser(ctx, c, coerced)
	}
	panic(fmt.Sprintf("interp: unknown callable %T", c))
}

func (in *Interpreter) callMethod(ctx context.Context, c Callable, on *types.Aggregate, fn MethodFunc, args []Value) (Value, error) {
	name := c.CallableName()
	recv, err := in.receiver(ctx, on, name)
	if err != nil {
		return nil, err
	}
	hargs, err := in.hostArgs(ctx, name, args)
	if err != nil {
		return nil, err
	}
	out, err := fn(ctx, recv, hargs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return wrapResult(c, out)
}

func (in *Interpreter) hostArgs(ctx context.Context, name string, args []Value) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		h, err := in.HostValue(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", name, i+1, err)
		}
		out[i] = h
	}
	return out, nil
}

// HostValue translates v into the form host code receives. Script-built
// aggregates are instantiated into fresh host objects, lists convert
// element-wise, callable references become HostCallbacks and everything
// else goes through ToHost.
func (in *Interpreter) HostValue(ctx context.Context, v Value) (any, error) {
	switch v := v.(type) {
	case *Aggregate:
		obj, _, err := in.inst.Instantiate(ctx, v)
		if err != nil {
			return nil, err
		}
		return obj, nil
	case *List:
		out := make([]any, len(v.Items))
		for i, it := range v.Items {
			h, err := in.HostValue(ctx, it)
			if err != nil {
				return nil, err
			}
			out[i] = h
		}
		return out, nil
	case *CallableRef:
		return in.inst.callback(v), nil
	}
	return ToHost(v), nil
}

func wrapResult(c Callable, out any) (Value, error) {
	v, err := FromHost(out, c.Signature().Return)
	if err != nil {
		return nil, fmt.Errorf("%s: result: %w", c.CallableName(), err)
	}
	return v, nil
}

// receiver resolves the implicit receiver from the current instance memory
// space, checks that it is an instance of on and translates it for the host.
// A script-built receiver is instantiated for the call; the closure cannot
// mutate the script value.
func (in *Interpreter) receiver(ctx context.Context, on *types.Aggregate, name string) (any, error) {
	if len(in.instances) == 0 {
		return nil, &RuntimeError{Msg: name + ": no receiver"}
	}
	recv := in.instances[len(in.instances)-1].Receiver()
	if recv == nil {
		return nil, &RuntimeError{Msg: name + ": no receiver"}
	}
	if on != nil && !types.AssignableTo(recv.Type(), on) {
		return nil, &TypeMismatchError{Kind: ArgType, Name: name, Index: -1, Want: "receiver " + on.Name(), Got: recv.Type().String()}
	}
	h, err := in.HostValue(ctx, recv)
	if err != nil {
		return nil, fmt.Errorf("%s: receiver: %w", name, err)
	}
	return h, nil
}

func (in *Interpreter) callUser(ctx context.Context, c *UserDefined, args []Value) (Value, error) {
	if in.depth >= in.maxDepth {
		return nil, &RuntimeError{Range: span(c.Body), Msg: fmt.Sprintf("%s: call depth limit %d exceeded", c.Name, in.maxDepth)}
	}
	in.depth++
	defer func() { in.depth-- }()

	space := NewMemorySpace(c.Env, nil)
	for i, name := range c.Params {
		if err := space.Define(name, args[i]); err != nil {
			return nil, wrapAt(c.Body, err)
		}
	}
	in.push(space)
	defer in.pop()

	ctl, ret, err := in.execBlockIn(ctx, c.Body, space)
	if err != nil {
		return nil, err
	}
	if ctl != ctlReturn || ret == nil {
		return None, nil
	}
	if !types.AssignableTo(ret.Type(), c.Type.Return) {
		return nil, &TypeMismatchError{Kind: Result, Name: c.Name, Index: -1, Want: c.Type.Return.String(), Got: ret.Type().String()}
	}
	return coerce(ret, c.Type.Return), nil
}
