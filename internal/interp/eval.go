package interp

import (
	"context"
	"fmt"

	"github.com/jward/questscript/ast"
	"github.com/jward/questscript/internal/types"
)

type control int

const (
	ctlNext control = iota
	ctlReturn
)

// eval evaluates e. expected is the type the context wants, or nil; it
// only guides untyped aggregate and list literals.
func (in *Interpreter) eval(ctx context.Context, e ast.Expr, expected types.Type) (Value, error) {
	switch e := e.(type) {
	case *ast.IntLit:
		return NewInt(e.Value), nil
	case *ast.FloatLit:
		return NewFloat(e.Value), nil
	case *ast.StringLit:
		return NewString(e.Value), nil
	case *ast.BoolLit:
		return NewBool(e.Value), nil
	case *ast.NoneLit:
		return None, nil
	case *ast.Ident:
		return in.lookupIdent(e)
	case *ast.MemberExpr:
		return in.evalMember(ctx, e)
	case *ast.CallExpr:
		return in.evalCall(ctx, e)
	case *ast.BinaryExpr:
		return in.evalBinary(ctx, e)
	case *ast.UnaryExpr:
		x, err := in.eval(ctx, e.X, nil)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case ast.OpNot:
			return NewBool(!Truthy(x)), nil
		case ast.OpSub:
			if p, ok := x.(Primitive); ok {
				if i, ok := p.Int(); ok {
					return NewInt(-i), nil
				}
				if f, ok := p.Float(); ok {
					return NewFloat(-f), nil
				}
			}
			return nil, runtimeErrorf(e, "cannot negate %s", x.Type())
		}
		return nil, runtimeErrorf(e, "unknown unary operator %q", e.Op)
	case *ast.AggregateLit:
		return in.evalAggregate(ctx, e, expected)
	case *ast.ListLit:
		return in.evalList(ctx, e, expected)
	}
	return nil, runtimeErrorf(e, "cannot evaluate %T", e)
}

// lookupIdent searches the memory chain, then the spaces of other loaded
// files.
func (in *Interpreter) lookupIdent(id *ast.Ident) (Value, error) {
	if v, ok := in.current().Lookup(id.Name); ok {
		return v, nil
	}
	if v, ok := in.Lookup(id.Name); ok {
		return v, nil
	}
	return nil, runtimeErrorf(id, "undefined: %s", id.Name)
}

func (in *Interpreter) evalMember(ctx context.Context, e *ast.MemberExpr) (Value, error) {
	x, err := in.eval(ctx, e.X, nil)
	if err != nil {
		return nil, err
	}
	return in.member(x, e.Member)
}

func (in *Interpreter) member(x Value, id *ast.Ident) (Value, error) {
	name := id.Name
	switch x := x.(type) {
	case *Aggregate:
		if v, ok := x.Get(name); ok {
			return v, nil
		}
	case *Host:
		if x.Class == nil {
			break
		}
		m, ok := x.Class.Member(name)
		if !ok {
			break
		}
		if m.Host == nil || m.Host.Get == nil {
			return nil, runtimeErrorf(id, "%s.%s is not readable", x.Class.Name(), name)
		}
		v, err := FromHost(m.Host.Get(x.Object), m.Type)
		if err != nil {
			return nil, wrapAt(id, err)
		}
		return v, nil
	case noneValue:
		return nil, runtimeErrorf(id, "member %s of none", name)
	}
	return nil, runtimeErrorf(id, "%s has no member %s", x.Type(), name)
}

func (in *Interpreter) evalCall(ctx context.Context, e *ast.CallExpr) (Value, error) {
	var callee Value
	// obj.method(...) dispatches through the receiver's instance space.
	if me, ok := e.Fun.(*ast.MemberExpr); ok {
		recv, err := in.eval(ctx, me.X, nil)
		if err != nil {
			return nil, err
		}
		if c, inst, ok := in.methodOf(recv, me.Member.Name); ok {
			args, err := in.evalArgs(ctx, e.Args, c.Signature())
			if err != nil {
				return nil, err
			}
			in.instances = append(in.instances, inst)
			defer func() { in.instances = in.instances[:len(in.instances)-1] }()
			v, err := in.Call(ctx, c, args)
			if err != nil {
				return nil, wrapAt(e, err)
			}
			return v, nil
		}
		if callee, err = in.member(recv, me.Member); err != nil {
			return nil, err
		}
	} else {
		var err error
		if callee, err = in.eval(ctx, e.Fun, nil); err != nil {
			return nil, err
		}
	}
	ref, ok := callee.(*CallableRef)
	if !ok {
		return nil, runtimeErrorf(e.Fun, "%s is not callable", callee.Type())
	}
	args, err := in.evalArgs(ctx, e.Args, ref.C.Signature())
	if err != nil {
		return nil, err
	}
	v, err := in.Call(ctx, ref.C, args)
	if err != nil {
		return nil, wrapAt(e, err)
	}
	return v, nil
}

// methodOf finds a method bound to recv's type and the instance space to
// dispatch it in.
func (in *Interpreter) methodOf(recv Value, name string) (Callable, *MemorySpace, bool) {
	var agg *types.Aggregate
	var inst *MemorySpace
	switch r := recv.(type) {
	case *Host:
		agg = r.Class
		inst = NewMemorySpace(nil, r)
	case *Aggregate:
		switch t := r.typ.(type) {
		case *types.Aggregate:
			agg = t
		case *types.Prototype:
			agg = t.Origin
		}
		inst = r.space
	}
	if agg == nil {
		return nil, nil, false
	}
	c, ok := in.methods[agg][name]
	return c, inst, ok
}

func (in *Interpreter) evalArgs(ctx context.Context, exprs []ast.Expr, fn *types.Function) ([]Value, error) {
	args := make([]Value, 0, len(exprs))
	for i, a := range exprs {
		v, err := in.eval(ctx, a, paramType(fn, i))
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

func (in *Interpreter) evalBinary(ctx context.Context, e *ast.BinaryExpr) (Value, error) {
	x, err := in.eval(ctx, e.X, nil)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.OpOr:
		if Truthy(x) {
			return NewBool(true), nil
		}
		y, err := in.eval(ctx, e.Y, nil)
		if err != nil {
			return nil, err
		}
		return NewBool(Truthy(y)), nil
	case ast.OpAnd:
		if !Truthy(x) {
			return NewBool(false), nil
		}
		y, err := in.eval(ctx, e.Y, nil)
		if err != nil {
			return nil, err
		}
		return NewBool(Truthy(y)), nil
	}

	y, err := in.eval(ctx, e.Y, nil)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.OpEq:
		return NewBool(Equal(x, y)), nil
	case ast.OpNe:
		return NewBool(!Equal(x, y)), nil
	}

	xp, xok := x.(Primitive)
	yp, yok := y.(Primitive)
	if !xok || !yok {
		return nil, runtimeErrorf(e, "invalid operands %s %s %s", x.Type(), e.Op, y.Type())
	}

	xs, xstr := xp.Raw.(string)
	ys, ystr := yp.Raw.(string)
	if e.Op == ast.OpAdd && (xstr || ystr) {
		return NewString(xp.String() + yp.String()), nil
	}
	if xstr && ystr {
		switch e.Op {
		case ast.OpLt:
			return NewBool(xs < ys), nil
		case ast.OpLe:
			return NewBool(xs <= ys), nil
		case ast.OpGt:
			return NewBool(xs > ys), nil
		case ast.OpGe:
			return NewBool(xs >= ys), nil
		}
	}

	xi, xint := xp.Int()
	yi, yint := yp.Int()
	if xint && yint {
		switch e.Op {
		case ast.OpAdd:
			return NewInt(xi + yi), nil
		case ast.OpSub:
			return NewInt(xi - yi), nil
		case ast.OpMul:
			return NewInt(xi * yi), nil
		case ast.OpDiv:
			if yi == 0 {
				return nil, runtimeErrorf(e, "integer division by zero")
			}
			return NewInt(xi / yi), nil
		}
	}
	xf, xnum := xp.Float()
	yf, ynum := yp.Float()
	if !xnum || !ynum {
		return nil, runtimeErrorf(e, "invalid operands %s %s %s", x.Type(), e.Op, y.Type())
	}
	switch e.Op {
	case ast.OpAdd:
		return NewFloat(xf + yf), nil
	case ast.OpSub:
		return NewFloat(xf - yf), nil
	case ast.OpMul:
		return NewFloat(xf * yf), nil
	case ast.OpDiv:
		return NewFloat(xf / yf), nil
	case ast.OpLt:
		return NewBool(xf < yf), nil
	case ast.OpLe:
		return NewBool(xf <= yf), nil
	case ast.OpGt:
		return NewBool(xf > yf), nil
	case ast.OpGe:
		return NewBool(xf >= yf), nil
	}
	return nil, runtimeErrorf(e, "unknown operator %q", e.Op)
}

func (in *Interpreter) evalAggregate(ctx context.Context, e *ast.AggregateLit, expected types.Type) (Value, error) {
	var target types.Memberful
	if e.Type != nil {
		t, ok := in.types.Lookup(e.Type.Name)
		if !ok {
			return nil, runtimeErrorf(e.Type, "unknown type %s", e.Type.Name)
		}
		expected = t
	}
	switch t := expected.(type) {
	case *types.Aggregate:
		target = in.types.RegisterPrototype(t)
	case *types.Prototype:
		target = t
	default:
		return nil, runtimeErrorf(e, "cannot infer aggregate type")
	}
	agg := NewAggregate(target)
	if err := in.fill(ctx, agg, e.Fields); err != nil {
		return nil, err
	}
	return agg, nil
}

func (in *Interpreter) evalList(ctx context.Context, e *ast.ListLit, expected types.Type) (Value, error) {
	var elem types.Type
	if lt, ok := expected.(*types.List); ok {
		elem = lt.Elem
	}
	l := &List{Elem: elem}
	for _, x := range e.Elems {
		v, err := in.eval(ctx, x, elem)
		if err != nil {
			return nil, err
		}
		if l.Elem == nil {
			l.Elem = v.Type()
		}
		if !types.AssignableTo(v.Type(), l.Elem) {
			return nil, &TypeMismatchError{Kind: ArgType, Name: "list element", Index: -1, Want: l.Elem.String(), Got: v.Type().String()}
		}
		l.Items = append(l.Items, coerce(v, l.Elem))
	}
	if l.Elem == nil {
		l.Elem = types.Any
	}
	return l, nil
}

// --- Statements ---

func (in *Interpreter) execBlock(ctx context.Context, b *ast.Block) (control, Value, error) {
	return in.execBlockIn(ctx, b, NewMemorySpace(in.current(), nil))
}

func (in *Interpreter) execBlockIn(ctx context.Context, b *ast.Block, space *MemorySpace) (control, Value, error) {
	if space != in.current() {
		in.push(space)
		defer in.pop()
	}
	for _, s := range b.Stmts {
		ctl, v, err := in.exec(ctx, s)
		if err != nil || ctl == ctlReturn {
			return ctl, v, err
		}
	}
	return ctlNext, nil, nil
}

func (in *Interpreter) exec(ctx context.Context, s ast.Stmt) (control, Value, error) {
	switch s := s.(type) {
	case *ast.ExprStmt:
		_, err := in.eval(ctx, s.X, nil)
		return ctlNext, nil, err
	case *ast.VarDecl:
		return ctlNext, nil, in.declareVar(ctx, s, in.current())
	case *ast.AssignStmt:
		return ctlNext, nil, in.assign(ctx, s)
	case *ast.Block:
		return in.execBlock(ctx, s)
	case *ast.IfStmt:
		cond, err := in.eval(ctx, s.Cond, nil)
		if err != nil {
			return ctlNext, nil, err
		}
		if Truthy(cond) {
			return in.execBlock(ctx, s.Then)
		}
		if s.Else != nil {
			return in.exec(ctx, s.Else)
		}
		return ctlNext, nil, nil
	case *ast.WhileStmt:
		for {
			cond, err := in.eval(ctx, s.Cond, nil)
			if err != nil {
				return ctlNext, nil, err
			}
			if !Truthy(cond) {
				return ctlNext, nil, nil
			}
			ctl, v, err := in.execBlock(ctx, s.Body)
			if err != nil || ctl == ctlReturn {
				return ctl, v, err
			}
		}
	case *ast.ForStmt:
		iter, err := in.eval(ctx, s.Iter, nil)
		if err != nil {
			return ctlNext, nil, err
		}
		l, ok := iter.(*List)
		if !ok {
			return ctlNext, nil, runtimeErrorf(s.Iter, "cannot iterate over %s", iter.Type())
		}
		for _, item := range l.Items {
			space := NewMemorySpace(in.current(), nil)
			if err := space.Define(s.Var.Name, item); err != nil {
				return ctlNext, nil, wrapAt(s.Var, err)
			}
			ctl, v, err := in.execBlockIn(ctx, s.Body, space)
			if err != nil || ctl == ctlReturn {
				return ctl, v, err
			}
		}
		return ctlNext, nil, nil
	case *ast.ReturnStmt:
		if s.Value == nil {
			return ctlReturn, None, nil
		}
		v, err := in.eval(ctx, s.Value, nil)
		if err != nil {
			return ctlNext, nil, err
		}
		return ctlReturn, v, nil
	}
	return ctlNext, nil, runtimeErrorf(s, "cannot execute %T", s)
}

// assign rebinds an identifier in the nearest space defining it, or writes
// a member of an aggregate or host object.
func (in *Interpreter) assign(ctx context.Context, s *ast.AssignStmt) error {
	switch t := s.Target.(type) {
	case *ast.Ident:
		v, err := in.eval(ctx, s.Value, nil)
		if err != nil {
			return err
		}
		ok, err := in.current().Assign(t.Name, v)
		if err != nil {
			return wrapAt(t, err)
		}
		if !ok {
			return runtimeErrorf(t, "assignment to undefined %s", t.Name)
		}
		return nil
	case *ast.MemberExpr:
		x, err := in.eval(ctx, t.X, nil)
		if err != nil {
			return err
		}
		name := t.Member.Name
		switch x := x.(type) {
		case *Aggregate:
			m, ok := x.typ.Member(name)
			if !ok {
				return runtimeErrorf(t.Member, "%s has no member %s", x.typ.Name(), name)
			}
			v, err := in.eval(ctx, s.Value, m.Type)
			if err != nil {
				return err
			}
			return wrapNil(t, x.Set(name, v))
		case *Host:
			if x.Class == nil {
				break
			}
			m, ok := x.Class.Member(name)
			if !ok {
				return runtimeErrorf(t.Member, "%s has no member %s", x.Class.Name(), name)
			}
			if m.Role != types.Data {
				return runtimeErrorf(t.Member, "%s.%s is %s and cannot be assigned", x.Class.Name(), name, m.Role)
			}
			v, err := in.eval(ctx, s.Value, m.Type)
			if err != nil {
				return err
			}
			if !types.AssignableTo(v.Type(), m.Type) {
				return &TypeMismatchError{Kind: ArgType, Name: x.Class.Name() + "." + name, Index: -1, Want: m.Type.String(), Got: v.Type().String()}
			}
			hv, err := in.HostValue(ctx, coerce(v, m.Type))
			if err != nil {
				return wrapAt(t, err)
			}
			return wrapNil(t, m.Host.Set(x.Object, hv))
		}
		return runtimeErrorf(t, "cannot assign member %s of %s", name, x.Type())
	}
	return runtimeErrorf(s.Target, "invalid assignment target %T", s.Target)
}

// CallByName looks a function up by name among loaded files and globals and
// calls it with host arguments.
func (in *Interpreter) CallByName(ctx context.Context, name string, args ...any) (Value, error) {
	v, ok := in.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("undefined: %s", name)
	}
	ref, ok := v.(*CallableRef)
	if !ok {
		return nil, fmt.Errorf("%s is %s, not a function", name, v.Type())
	}
	fn := ref.C.Signature()
	vals := make([]Value, len(args))
	for i, a := range args {
		val, err := FromHost(a, paramType(fn, i))
		if err != nil {
			return nil, &TypeMismatchError{Kind: ArgType, Name: name, Index: i, Want: paramType(fn, i).String(), Got: fmt.Sprintf("%T", a)}
		}
		vals[i] = val
	}
	return in.Call(ctx, ref.C, vals)
}
