package interp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jward/questscript/internal/types"
)

type contextFrame struct {
	name  string
	value any
}

// Instantiator turns prototype values into host objects. It implements
// types.InstantiationContext for host constructors.
type Instantiator struct {
	in     *Interpreter
	frames []contextFrame
}

var _ types.InstantiationContext = (*Instantiator)(nil)

func newInstantiator(in *Interpreter) *Instantiator {
	return &Instantiator{in: in}
}

// PushContext binds name for the duration of the enclosing instantiation.
// Hosts use it to expose values such as the entity a component belongs to.
func (it *Instantiator) PushContext(name string, v any) {
	it.frames = append(it.frames, contextFrame{name: name, value: v})
}

// PopContext removes the innermost context binding.
func (it *Instantiator) PopContext() {
	if len(it.frames) > 0 {
		it.frames = it.frames[:len(it.frames)-1]
	}
}

// Lookup returns the innermost context value bound to name.
func (it *Instantiator) Lookup(name string) (any, bool) {
	for i := len(it.frames) - 1; i >= 0; i-- {
		if it.frames[i].name == name {
			return it.frames[i].value, true
		}
	}
	return nil, false
}

// Instantiate builds the host object for a prototype value:
//
//  1. resolve the prototype's originating aggregate to its host class
//  2. construct the empty host object
//  3. bind it as the context owner
//  4. instantiate and compose attachable members, write assigned data
//     members and wrap callback members
//  5. unbind the context owner
//
// A value that is not a prototype value fails with a WrongType
// TypeMismatchError. On any error no object is returned.
func (it *Instantiator) Instantiate(ctx context.Context, v Value) (any, *types.Aggregate, error) {
	agg, ok := v.(*Aggregate)
	if !ok {
		return nil, nil, wrongType(v.Type())
	}
	proto, ok := agg.typ.(*types.Prototype)
	if !ok {
		return nil, nil, wrongType(agg.typ)
	}
	origin := proto.Origin
	class := origin.Host
	if class == nil {
		return nil, nil, wrongType(origin)
	}

	obj := class.New(it)
	it.PushContext(types.ContextOwner, obj)
	defer it.PopContext()

	log := it.in.logger.With("class", origin.Name())
	for _, pm := range proto.Members() {
		if !agg.Assigned(pm.Name) {
			continue
		}
		val, _ := agg.Get(pm.Name)
		m, ok := origin.Member(pm.Name)
		if !ok {
			return nil, nil, fmt.Errorf("instantiate %s: no member %s", origin.Name(), pm.Name)
		}
		if val == None {
			continue
		}
		switch m.Role {
		case types.Attachable:
			part, err := it.part(ctx, val)
			if err != nil {
				return nil, nil, err
			}
			err = class.Compose(obj, part)
			if errors.Is(err, types.ErrNotAttachable) {
				log.DebugContext(ctx, "member not attachable", "member", m.Name, "err", err)
				continue
			}
			if err != nil {
				return nil, nil, fmt.Errorf("instantiate %s: compose %s: %w", origin.Name(), m.Name, err)
			}
		case types.Callback:
			ref, ok := val.(*CallableRef)
			if !ok {
				return nil, nil, &TypeMismatchError{Kind: ArgType, Name: origin.Name() + "." + m.Name, Index: -1, Want: m.Type.String(), Got: val.Type().String()}
			}
			if err := m.Host.Set(obj, it.callback(ref)); err != nil {
				return nil, nil, fmt.Errorf("instantiate %s: set %s: %w", origin.Name(), m.Name, err)
			}
		default:
			hv, err := it.in.HostValue(ctx, val)
			if err != nil {
				return nil, nil, fmt.Errorf("instantiate %s: %s: %w", origin.Name(), m.Name, err)
			}
			if err := m.Host.Set(obj, hv); err != nil {
				return nil, nil, fmt.Errorf("instantiate %s: set %s: %w", origin.Name(), m.Name, err)
			}
		}
	}
	log.DebugContext(ctx, "instantiated", "prototype", proto.Name())
	return obj, origin, nil
}

// part produces the host object for a member value: nested prototype values
// are instantiated, host values unwrap.
func (it *Instantiator) part(ctx context.Context, v Value) (any, error) {
	switch v := v.(type) {
	case *Aggregate:
		obj, _, err := it.Instantiate(ctx, v)
		return obj, err
	case *Host:
		return v.Object, nil
	}
	return nil, wrongType(v.Type())
}

// callback wraps a script function so the host can call it with host
// values. The call re-enters the interpreter.
func (it *Instantiator) callback(ref *CallableRef) types.HostCallback {
	return func(ctx context.Context, args ...any) (any, error) {
		fn := ref.C.Signature()
		vals := make([]Value, len(args))
		for i, a := range args {
			v, err := FromHost(a, paramType(fn, i))
			if err != nil {
				return nil, fmt.Errorf("callback %s: argument %d: %w", ref.C.CallableName(), i+1, err)
			}
			vals[i] = v
		}
		res, err := it.in.Call(ctx, ref.C, vals)
		if err != nil {
			return nil, err
		}
		return it.in.HostValue(ctx, res)
	}
}

func wrongType(t types.Type) error {
	return &TypeMismatchError{Kind: WrongType, Name: "instantiate", Index: -1, Want: "prototype", Got: t.String()}
}

var discardLogger = slog.New(slog.DiscardHandler)
