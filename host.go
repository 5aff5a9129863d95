package questscript

import (
	"github.com/jward/questscript/internal/interp"
	"github.com/jward/questscript/internal/types"
)

// Native is a global host function. A nil Return means the function
// returns none.
type Native struct {
	Name   string
	Params []TypeRef
	Return TypeRef
	Fn     NativeFunc
}

// Method is a host function bound to a host class. Extension methods are
// attached by hosts that do not own the class.
type Method struct {
	Class     *HostClass
	Name      string
	Params    []TypeRef
	Return    TypeRef
	Fn        MethodFunc
	Extension bool
}

func signature(ts *types.System, owner, name string, ret TypeRef, params []TypeRef) (*types.Function, error) {
	t, err := ts.Resolve(types.HostFunc(ret, params...))
	if err != nil {
		return nil, &RegistrationError{Class: owner, Member: name, Reason: err.Error()}
	}
	return t.(*types.Function), nil
}

func (n Native) callable(ts *types.System) (*interp.NativeFunction, error) {
	fn, err := signature(ts, "<native>", n.Name, n.Return, n.Params)
	if err != nil {
		return nil, err
	}
	return &interp.NativeFunction{Name: n.Name, Type: fn, Fn: n.Fn}, nil
}

func (m Method) callable(ts *types.System) (interp.Callable, error) {
	if m.Class == nil {
		return nil, &RegistrationError{Class: "<method>", Member: m.Name, Reason: "no class"}
	}
	agg, err := ts.RegisterHostClass(m.Class)
	if err != nil {
		return nil, err
	}
	fn, err := signature(ts, agg.Name(), m.Name, m.Return, m.Params)
	if err != nil {
		return nil, err
	}
	if m.Extension {
		return &interp.ExtensionMethod{Name: m.Name, On: agg, Type: fn, Fn: m.Fn}, nil
	}
	return &interp.NativeMethod{Name: m.Name, On: agg, Type: fn, Fn: m.Fn}, nil
}
