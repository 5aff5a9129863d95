package interp

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/questscript/ast"
	"github.com/jward/questscript/internal/asttest"
	"github.com/jward/questscript/internal/types"
)

func countingNative(calls *int, ret types.Type, params ...types.Type) *NativeFunction {
	return &NativeFunction{
		Name: "stub",
		Type: types.FuncOf(ret, params...),
		Fn: func(_ context.Context, args []any) (any, error) {
			*calls++
			if len(args) > 0 {
				return args[0], nil
			}
			return nil, nil
		},
	}
}

// =============================================================================
// Native functions
// =============================================================================

func TestCall_NativeRejectsStringForInt(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	calls := 0
	fn := countingNative(&calls, types.Int, types.Int)

	_, err := f.in.Call(f.ctx, fn, []Value{NewString("seven")})
	var tm *TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, ArgType, tm.Kind)
	assert.Equal(t, 0, tm.Index)
	assert.Equal(t, "int", tm.Want)
	assert.Equal(t, "string", tm.Got)
	assert.Zero(t, calls)

	out, err := f.in.Call(f.ctx, fn, []Value{NewInt(7)})
	require.NoError(t, err)
	assert.Equal(t, NewInt(7), out)
	assert.Equal(t, 1, calls)
}

func TestCall_NativeArity(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	calls := 0
	fn := countingNative(&calls, types.Int, types.Int)

	for _, args := range [][]Value{nil, {NewInt(1), NewInt(2)}} {
		_, err := f.in.Call(f.ctx, fn, args)
		var tm *TypeMismatchError
		require.ErrorAs(t, err, &tm)
		assert.Equal(t, Arity, tm.Kind)
	}
	assert.Zero(t, calls)
}

func TestCall_NativeWidensIntToFloat(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	var got any
	fn := &NativeFunction{
		Name: "half",
		Type: types.FuncOf(types.Float, types.Float),
		Fn: func(_ context.Context, args []any) (any, error) {
			got = args[0]
			return args[0].(float64) / 2, nil
		},
	}
	out, err := f.in.Call(f.ctx, fn, []Value{NewInt(3)})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
	assert.Equal(t, NewFloat(1.5), out)
}

func TestCall_NativeErrorWrapped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	boom := errors.New("boom")
	fn := &NativeFunction{
		Name: "explode",
		Type: types.FuncOf(types.None),
		Fn:   func(context.Context, []any) (any, error) { return nil, boom },
	}
	_, err := f.in.Call(f.ctx, fn, nil)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "explode")
}

func TestCall_NativeLeavesArgumentsUntouched(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	calls := 0
	fn := countingNative(&calls, types.Float, types.Float)
	args := []Value{NewInt(3)}

	out, err := f.in.Call(f.ctx, fn, args)
	require.NoError(t, err)
	assert.Equal(t, NewFloat(3), out)
	assert.Equal(t, []Value{NewInt(3)}, args)
}

func TestCall_NativeReceivesScriptBuiltAggregatesAsHostObjects(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	var got []any
	fn := &NativeFunction{
		Name: "span",
		Type: types.FuncOf(types.Int, f.position, types.ListOf(f.position)),
		Fn: func(_ context.Context, args []any) (any, error) {
			got = args
			from := args[0].(*position)
			to := args[1].([]any)[0].(*position)
			return (to.X - from.X) + (to.Y - from.Y), nil
		},
	}
	from := f.proto(f.position)
	mustSet(t, from, "x", NewInt(1))
	mustSet(t, from, "y", NewInt(2))
	to := f.proto(f.position)
	mustSet(t, to, "x", NewInt(4))
	mustSet(t, to, "y", NewInt(6))

	out, err := f.in.Call(f.ctx, fn, []Value{from, &List{Elem: f.position, Items: []Value{to}}})
	require.NoError(t, err)
	assert.Equal(t, NewInt(7), out)
	require.Len(t, got, 2)
	assert.Equal(t, &position{X: 1, Y: 2}, got[0])
	assert.Equal(t, []any{&position{X: 4, Y: 6}}, got[1])
}

func TestCall_MethodOnScriptBuiltReceiver(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	require.NoError(t, f.in.BindMethod(&ExtensionMethod{
		Name: "distance",
		On:   f.position,
		Type: types.FuncOf(types.Int, f.position),
		Fn: func(_ context.Context, recv any, args []any) (any, error) {
			a, ok := recv.(*position)
			if !ok {
				return nil, errors.New("receiver is not a position")
			}
			b, ok := args[0].(*position)
			if !ok {
				return nil, errors.New("argument is not a position")
			}
			return abs(a.X-b.X) + abs(a.Y-b.Y), nil
		},
	}))

	b := asttest.New("geometry.qs")
	f.load(t, b.File(
		b.Func("gap", nil, "int",
			b.Var("a", "position", b.Agg("", b.Prop("x", b.Int(1)), b.Prop("y", b.Int(2)))),
			b.Var("c", "position", b.Agg("", b.Prop("x", b.Int(4)), b.Prop("y", b.Int(6)))),
			b.Return(b.MethodCall(b.Ident("a"), "distance", b.Ident("c")))),
	))

	out, err := f.in.CallByName(f.ctx, "gap")
	require.NoError(t, err)
	assert.Equal(t, NewInt(7), out)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func TestProperty_CallArgumentLaw(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	sample := []Value{NewInt(4), NewString("s"), NewBool(true), NewFloat(0.5), None}

	properties.Property("mismatched calls never reach the closure", prop.ForAll(
		func(kinds []int) bool {
			f := newFixture(t)
			calls := 0
			fn := countingNative(&calls, types.Int, types.Int, types.String)
			args := make([]Value, len(kinds))
			for i, k := range kinds {
				args[i] = sample[k]
			}
			_, err := f.in.Call(f.ctx, fn, args)

			matches := len(kinds) == 2 && kinds[0] == 0 && kinds[1] == 1
			if matches {
				return err == nil && calls == 1
			}
			var tm *TypeMismatchError
			return errors.As(err, &tm) && calls == 0
		},
		gen.SliceOf(gen.IntRange(0, len(sample)-1)),
	))

	properties.TestingRun(t)
}

// =============================================================================
// Methods
// =============================================================================

func TestCall_MethodsDispatchThroughReceiver(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	var renamed *entity
	require.NoError(t, f.in.BindMethod(&NativeMethod{
		Name: "rename",
		On:   f.entity,
		Type: types.FuncOf(types.None, types.String),
		Fn: func(_ context.Context, recv any, args []any) (any, error) {
			renamed = recv.(*entity)
			renamed.Name = args[0].(string)
			return nil, nil
		},
	}))
	require.NoError(t, f.in.BindMethod(&ExtensionMethod{
		Name: "sum",
		On:   f.position,
		Type: types.FuncOf(types.Int),
		Fn: func(_ context.Context, recv any, _ []any) (any, error) {
			p := recv.(*position)
			return p.X + p.Y, nil
		},
	}))

	b := asttest.New("methods.qs")
	file := b.File(
		b.Object("entity", "hero", b.Prop("name", b.Str("hero"))),
		b.Object("position", "spot", b.Prop("x", b.Int(2)), b.Prop("y", b.Int(5))),
		b.Func("retitle", nil, "", b.Expr(b.MethodCall(b.Ident("hero"), "rename", b.Str("champion")))),
		b.Func("total", nil, "int", b.Return(b.MethodCall(b.Ident("spot"), "sum"))),
	)
	f.load(t, file)

	_, err := f.in.CallByName(f.ctx, "retitle")
	require.NoError(t, err)
	require.NotNil(t, renamed)
	assert.Equal(t, "champion", renamed.Name)

	out, err := f.in.CallByName(f.ctx, "total")
	require.NoError(t, err)
	assert.Equal(t, NewInt(7), out)

	m, ok := f.entity.Method("rename")
	require.True(t, ok)
	assert.False(t, m.Extension)
	ext, ok := f.position.Method("sum")
	require.True(t, ok)
	assert.True(t, ext.Extension)
}

func TestCall_MethodWithoutReceiver(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	calls := 0
	m := &NativeMethod{
		Name: "poke",
		On:   f.entity,
		Type: types.FuncOf(types.None),
		Fn:   func(context.Context, any, []any) (any, error) { calls++; return nil, nil },
	}
	_, err := f.in.Call(f.ctx, m, nil)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Msg, "no receiver")
	assert.Zero(t, calls)
}

func TestBindMethod_Incomplete(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	var regErr *types.RegistrationError
	assert.ErrorAs(t, f.in.BindMethod(&NativeMethod{Name: "x", On: f.entity, Type: types.FuncOf(types.None)}), &regErr)
	assert.ErrorAs(t, f.in.BindMethod(&UserDefined{Name: "u"}), &regErr)
	assert.ErrorAs(t, f.in.DefineNative(&NativeFunction{Name: "n"}), &regErr)
	assert.ErrorAs(t, f.in.DefineNative(&NativeFunction{Name: "print", Type: types.FuncOf(types.None),
		Fn: func(context.Context, []any) (any, error) { return nil, nil }}), &regErr, "builtins cannot be replaced")
}

// =============================================================================
// User-defined functions
// =============================================================================

func TestCall_UserDefined(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := asttest.New("math.qs")
	f.load(t, b.File(
		b.Func("add", []*ast.Param{b.Param("a", "int"), b.Param("b", "int")}, "int",
			b.Return(b.Bin(ast.OpAdd, b.Ident("a"), b.Ident("b")))),
	))

	out, err := f.in.CallByName(f.ctx, "add", 2, 40)
	require.NoError(t, err)
	assert.Equal(t, NewInt(42), out)

	_, err = f.in.CallByName(f.ctx, "add", "2", 40)
	var tm *TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, 0, tm.Index)

	_, err = f.in.CallByName(f.ctx, "add", 1)
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, Arity, tm.Kind)
}

func TestCall_UserDefinedResultMustMatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := asttest.New("results.qs")
	f.load(t, b.File(
		b.Func("liar", nil, "int", b.Return(b.Str("x"))),
		b.Func("half", nil, "float", b.Return(b.Int(1))),
		b.Func("silent", nil, "int"),
	))

	_, err := f.in.CallByName(f.ctx, "liar")
	var tm *TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, Result, tm.Kind)
	assert.Equal(t, "liar", tm.Name)
	assert.Equal(t, "int", tm.Want)
	assert.Equal(t, "string", tm.Got)

	out, err := f.in.CallByName(f.ctx, "half")
	require.NoError(t, err)
	assert.Equal(t, NewFloat(1), out)

	out, err = f.in.CallByName(f.ctx, "silent")
	require.NoError(t, err)
	assert.Equal(t, None, out)
}

func TestCall_UserDefinedIsLexicallyScoped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := asttest.New("scope.qs")
	f.load(t, b.File(
		b.Var("base", "int", b.Int(10)),
		b.Func("outer", nil, "int",
			b.Var("local", "int", b.Int(5)),
			b.Return(b.Call("inner")),
		),
		b.Func("inner", nil, "int", b.Return(b.Ident("local"))),
		b.Func("offset", []*ast.Param{b.Param("x", "int")}, "int",
			b.Return(b.Bin(ast.OpAdd, b.Ident("x"), b.Ident("base")))),
	))

	_, err := f.in.CallByName(f.ctx, "outer")
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Error(), "undefined: local")

	out, err := f.in.CallByName(f.ctx, "offset", 1)
	require.NoError(t, err)
	assert.Equal(t, NewInt(11), out)
}

func TestCall_DepthLimit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, WithMaxDepth(8))
	b := asttest.New("loop.qs")
	f.load(t, b.File(
		b.Func("forever", []*ast.Param{b.Param("n", "int")}, "int",
			b.Return(b.Call("forever", b.Bin(ast.OpAdd, b.Ident("n"), b.Int(1))))),
	))

	_, err := f.in.CallByName(f.ctx, "forever", 0)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Error(), "call depth limit 8")
	assert.Zero(t, f.in.depth, "depth unwinds after the failure")
}

func TestCall_Callback(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := asttest.New("goblin.qs")
	f.load(t, b.File(
		b.Func("describe", []*ast.Param{b.Param("dmg", "int")}, "string",
			b.Return(b.Bin(ast.OpAdd, b.Str("hit for "), b.Ident("dmg")))),
		b.Proto("goblin", "entity", b.Prop("on_hit", b.Ident("describe"))),
	))

	v, ok := f.in.Lookup("goblin")
	require.True(t, ok)
	obj, _, err := f.in.Instantiator().Instantiate(f.ctx, v)
	require.NoError(t, err)
	e := obj.(*entity)
	require.NotNil(t, e.OnHit)

	out, err := e.OnHit(f.ctx, int64(3))
	require.NoError(t, err)
	assert.Equal(t, "hit for 3", out)

	_, err = e.OnHit(f.ctx, "three")
	assert.Error(t, err)
}
