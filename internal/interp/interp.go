// Package interp is the tree-walking interpreter: runtime values, memory
// spaces, callable dispatch and instantiation of prototypes into host
// objects.
//
// An Interpreter is not safe for concurrent use. Independent programs use
// independent interpreters.
package interp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jward/questscript/ast"
	"github.com/jward/questscript/internal/types"
)

// DefaultMaxDepth bounds nested script calls.
const DefaultMaxDepth = 256

// Interpreter evaluates loaded files against a stack of memory spaces.
type Interpreter struct {
	types  *types.System
	logger *slog.Logger
	out    io.Writer

	global    *MemorySpace
	files     map[string]*MemorySpace
	fileOrder []string

	stack     []*MemorySpace
	instances []*MemorySpace
	methods   map[*types.Aggregate]map[string]Callable
	inst      *Instantiator

	depth         int
	maxDepth      int
	defaultOrigin string
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(in *Interpreter) { in.logger = l }
}

// WithOutput sets where the print builtin writes.
func WithOutput(w io.Writer) Option {
	return func(in *Interpreter) { in.out = w }
}

// WithMaxDepth bounds nested user-defined calls.
func WithMaxDepth(n int) Option {
	return func(in *Interpreter) {
		if n > 0 {
			in.maxDepth = n
		}
	}
}

// WithDefaultOrigin names the host class used by prototypes that do not
// name one.
func WithDefaultOrigin(name string) Option {
	return func(in *Interpreter) { in.defaultOrigin = name }
}

// New creates an interpreter over ts. The global space holds the builtins
// instantiate, print and len.
func New(ts *types.System, opts ...Option) *Interpreter {
	in := &Interpreter{
		types:         ts,
		logger:        discardLogger,
		out:           io.Discard,
		global:        NewMemorySpace(nil, nil),
		files:         make(map[string]*MemorySpace),
		methods:       make(map[*types.Aggregate]map[string]Callable),
		maxDepth:      DefaultMaxDepth,
		defaultOrigin: "entity",
	}
	for _, opt := range opts {
		opt(in)
	}
	in.inst = newInstantiator(in)
	in.defineBuiltins()
	return in
}

// Types returns the type system the interpreter runs against.
func (in *Interpreter) Types() *types.System { return in.types }

// Instantiator returns the instantiator bound to this interpreter.
func (in *Interpreter) Instantiator() *Instantiator { return in.inst }

// Global returns the global memory space.
func (in *Interpreter) Global() *MemorySpace { return in.global }

// DefineNative exposes a host function as a global.
func (in *Interpreter) DefineNative(fn *NativeFunction) error {
	if fn == nil || fn.Name == "" || fn.Type == nil || (fn.Fn == nil && fn.values == nil) {
		return &types.RegistrationError{Class: "<native>", Member: nameOf(fn), Reason: "incomplete native function"}
	}
	if err := in.global.Define(fn.Name, &CallableRef{C: fn}); err != nil {
		return &types.RegistrationError{Class: "<native>", Member: fn.Name, Reason: err.Error()}
	}
	return nil
}

func nameOf(fn *NativeFunction) string {
	if fn == nil {
		return ""
	}
	return fn.Name
}

// BindMethod attaches a *NativeMethod or *ExtensionMethod to its type.
func (in *Interpreter) BindMethod(c Callable) error {
	var (
		on        *types.Aggregate
		name      string
		extension bool
	)
	switch m := c.(type) {
	case *NativeMethod:
		on, name = m.On, m.Name
		if m.Fn == nil {
			return &types.RegistrationError{Class: typeName(on), Member: name, Reason: "missing closure"}
		}
	case *ExtensionMethod:
		on, name, extension = m.On, m.Name, true
		if m.Fn == nil {
			return &types.RegistrationError{Class: typeName(on), Member: name, Reason: "missing closure"}
		}
	default:
		return &types.RegistrationError{Class: "<method>", Reason: fmt.Sprintf("%T is not a method", c)}
	}
	if err := in.types.BindMethod(on, name, c.Signature(), extension); err != nil {
		return err
	}
	if in.methods[on] == nil {
		in.methods[on] = make(map[string]Callable)
	}
	in.methods[on][name] = c
	return nil
}

func typeName(t types.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}

// Method returns the method bound to agg under name.
func (in *Interpreter) Method(agg *types.Aggregate, name string) (Callable, bool) {
	c, ok := in.methods[agg][name]
	return c, ok
}

func (in *Interpreter) defineBuiltins() {
	builtins := []*NativeFunction{
		{
			Name: "instantiate",
			Type: types.FuncOf(types.Any, types.Any),
			values: func(ctx context.Context, args []Value) (Value, error) {
				obj, class, err := in.inst.Instantiate(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return &Host{Class: class, Object: obj}, nil
			},
		},
		{
			Name: "print",
			Type: &types.Function{Params: []types.Type{types.Any}, Return: types.None, Variadic: true},
			values: func(ctx context.Context, args []Value) (Value, error) {
				parts := make([]string, len(args))
				for i, a := range args {
					parts[i] = a.String()
				}
				line := strings.Join(parts, " ")
				in.logger.DebugContext(ctx, "print", "text", line)
				if _, err := fmt.Fprintln(in.out, line); err != nil {
					return nil, err
				}
				return None, nil
			},
		},
		{
			Name: "len",
			Type: types.FuncOf(types.Int, types.Any),
			Fn: func(_ context.Context, args []any) (any, error) {
				switch x := args[0].(type) {
				case []any:
					return len(x), nil
				case string:
					return len(x), nil
				}
				return nil, fmt.Errorf("len of %T", args[0])
			},
		},
	}
	for _, b := range builtins {
		if err := in.DefineNative(b); err != nil {
			panic(err)
		}
	}
}

// FileSpace returns the memory space of a loaded file.
func (in *Interpreter) FileSpace(path string) (*MemorySpace, bool) {
	s, ok := in.files[path]
	return s, ok
}

// Lookup resolves a name visible to host callers: file spaces in load
// order, then globals.
func (in *Interpreter) Lookup(name string) (Value, bool) {
	for _, p := range in.fileOrder {
		if v, ok := in.files[p].Local(name); ok {
			return v, true
		}
	}
	return in.global.Local(name)
}

// Unload discards the memory space of path.
func (in *Interpreter) Unload(path string) {
	if _, ok := in.files[path]; !ok {
		return
	}
	delete(in.files, path)
	for i, p := range in.fileOrder {
		if p == path {
			in.fileOrder = append(in.fileOrder[:i], in.fileOrder[i+1:]...)
			break
		}
	}
}

// LoadFile creates the file's memory space and runs its top-level
// declarations: functions first, then variables, prototypes and objects in
// declaration order. Loading a path again replaces the previous space.
func (in *Interpreter) LoadFile(ctx context.Context, f *ast.File) error {
	in.Unload(f.Path)
	space := NewMemorySpace(in.global, nil)
	in.files[f.Path] = space
	in.fileOrder = append(in.fileOrder, f.Path)

	log := in.logger.With("file", f.Path)

	for _, d := range f.Decls {
		fd, ok := d.(*ast.FuncDef)
		if !ok {
			continue
		}
		fn, err := in.userFunc(fd, space)
		if err != nil {
			return err
		}
		if err := space.Define(fd.Name.Name, &CallableRef{C: fn}); err != nil {
			return wrapAt(fd.Name, err)
		}
	}

	in.push(space)
	defer in.pop()
	for _, d := range f.Decls {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch d := d.(type) {
		case *ast.VarDecl:
			err = in.declareVar(ctx, d, space)
		case *ast.PrototypeDef:
			err = in.declarePrototype(ctx, d, space)
		case *ast.ObjectDef:
			err = in.declareObject(ctx, d, space)
		}
		if err != nil {
			return err
		}
	}
	log.Debug("file loaded", "decls", len(f.Decls))
	return nil
}

func (in *Interpreter) userFunc(fd *ast.FuncDef, env *MemorySpace) (*UserDefined, error) {
	fn := &types.Function{Return: types.None}
	var names []string
	for _, p := range fd.Params {
		t, err := in.resolveTypeRef(p.Type)
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, t)
		names = append(names, p.Name.Name)
	}
	if fd.Result != nil {
		t, err := in.resolveTypeRef(fd.Result)
		if err != nil {
			return nil, err
		}
		fn.Return = t
	}
	return &UserDefined{Name: fd.Name.Name, Type: fn, Params: names, Body: fd.Body, Env: env}, nil
}

func (in *Interpreter) resolveTypeRef(tr *ast.TypeRef) (types.Type, error) {
	if tr == nil {
		return types.Any, nil
	}
	t, ok := in.types.Lookup(tr.Name.Name)
	if !ok {
		return nil, runtimeErrorf(tr, "unknown type %s", tr.Name.Name)
	}
	if tr.List {
		return types.ListOf(t), nil
	}
	return t, nil
}

func (in *Interpreter) declareVar(ctx context.Context, d *ast.VarDecl, space *MemorySpace) error {
	var (
		declared types.Type
		err      error
	)
	if d.Type != nil {
		if declared, err = in.resolveTypeRef(d.Type); err != nil {
			return err
		}
	}
	var v Value
	if d.Value != nil {
		if v, err = in.eval(ctx, d.Value, declared); err != nil {
			return err
		}
		if declared != nil {
			if !types.AssignableTo(v.Type(), declared) {
				return &TypeMismatchError{Kind: ArgType, Name: d.Name.Name, Index: -1, Want: declared.String(), Got: v.Type().String()}
			}
			v = coerce(v, declared)
		}
	} else if declared != nil {
		v = defaultValue(declared)
	} else {
		v = None
	}
	if err := space.Define(d.Name.Name, v); err != nil {
		return wrapAt(d.Name, err)
	}
	return nil
}

// prototypeType returns the script prototype named by d, defining it when
// analysis has not already done so.
func (in *Interpreter) prototypeType(d *ast.PrototypeDef) (*types.Prototype, error) {
	if t, ok := in.types.Lookup(d.Name.Name); ok {
		if p, ok := t.(*types.Prototype); ok {
			return p, nil
		}
		return nil, runtimeErrorf(d.Name, "%s is a %s, not a prototype", d.Name.Name, t)
	}
	originName := in.defaultOrigin
	var at ast.Node = d.Name
	if d.Origin != nil {
		originName, at = d.Origin.Name, d.Origin
	}
	t, ok := in.types.Lookup(originName)
	if !ok {
		return nil, runtimeErrorf(at, "unknown host class %s", originName)
	}
	origin, ok := t.(*types.Aggregate)
	if !ok {
		return nil, runtimeErrorf(at, "%s is not a host class", originName)
	}
	p, err := in.types.DefinePrototype(d.Name.Name, origin)
	if err != nil {
		return nil, wrapAt(d.Name, err)
	}
	return p, nil
}

func (in *Interpreter) declarePrototype(ctx context.Context, d *ast.PrototypeDef, space *MemorySpace) error {
	p, err := in.prototypeType(d)
	if err != nil {
		return err
	}
	agg := NewAggregate(p)
	if err := in.fill(ctx, agg, d.Props); err != nil {
		return err
	}
	return wrapNil(d.Name, space.Define(d.Name.Name, agg))
}

func (in *Interpreter) declareObject(ctx context.Context, d *ast.ObjectDef, space *MemorySpace) error {
	t, ok := in.types.Lookup(d.Type.Name)
	if !ok {
		return runtimeErrorf(d.Type, "unknown type %s", d.Type.Name)
	}
	var agg *Aggregate
	switch t := t.(type) {
	case *types.Aggregate:
		agg = NewAggregate(in.types.RegisterPrototype(t))
	case *types.Prototype:
		base, ok := in.Lookup(t.Name())
		if src, isAgg := base.(*Aggregate); ok && isAgg {
			agg = src.Clone(t)
		} else {
			agg = NewAggregate(t)
		}
	default:
		return &TypeMismatchError{Kind: WrongType, Name: d.Name.Name, Index: -1, Want: "host class or prototype", Got: t.String()}
	}
	if err := in.fill(ctx, agg, d.Props); err != nil {
		return err
	}
	obj, class, err := in.inst.Instantiate(ctx, agg)
	if err != nil {
		return wrapAt(d.Name, err)
	}
	return wrapNil(d.Name, space.Define(d.Name.Name, &Host{Class: class, Object: obj}))
}

func wrapNil(n ast.Node, err error) error {
	if err == nil {
		return nil
	}
	return wrapAt(n, err)
}

// fill evaluates props into agg with each member's type as the expected
// type of its value.
func (in *Interpreter) fill(ctx context.Context, agg *Aggregate, props []*ast.Property) error {
	for _, p := range props {
		m, ok := agg.typ.Member(p.Name.Name)
		if !ok {
			return runtimeErrorf(p.Name, "%s has no member %s", agg.typ.Name(), p.Name.Name)
		}
		v, err := in.eval(ctx, p.Value, m.Type)
		if err != nil {
			return err
		}
		if err := agg.Set(p.Name.Name, v); err != nil {
			return wrapAt(p, err)
		}
	}
	return nil
}

func (in *Interpreter) push(s *MemorySpace) { in.stack = append(in.stack, s) }
func (in *Interpreter) pop()               { in.stack = in.stack[:len(in.stack)-1] }

func (in *Interpreter) current() *MemorySpace {
	if len(in.stack) == 0 {
		return in.global
	}
	return in.stack[len(in.stack)-1]
}
