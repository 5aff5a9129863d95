package analysis

import (
	"github.com/jward/questscript/ast"
	"github.com/jward/questscript/internal/scope"
	"github.com/jward/questscript/internal/types"
)

type walker struct {
	a    *Analyzer
	file string
	fs   scope.ID
	// symbols created in the first pass, bound or not
	syms map[ast.Decl]*scope.Symbol
}

// bind binds sym in id, recording either its definition or a redefinition.
func (w *walker) bind(id scope.ID, sym *scope.Symbol) bool {
	sym.File = w.file
	if w.a.table.Bind(id, sym) {
		w.a.coll.Define(sym)
		return true
	}
	first, _ := w.a.table.Resolve(id, sym.Name, false)
	w.a.coll.Redefinition(sym.Name, w.file, sym.Range, first)
	return false
}

// resolve looks name up from cur outward, then in the scopes of other
// loaded files.
func (w *walker) resolve(cur scope.ID, name string) (*scope.Symbol, bool) {
	if sym, ok := w.a.table.Resolve(cur, name, true); ok {
		return sym, true
	}
	for _, id := range w.a.table.Files() {
		if id == w.fs {
			continue
		}
		if sym, ok := w.a.table.Resolve(id, name, false); ok {
			return sym, true
		}
	}
	return nil, false
}

func (w *walker) use(sym *scope.Symbol, id *ast.Ident) {
	w.a.coll.Use(sym, w.file, id.Range)
}

// --- Pass 1 ---

func (w *walker) declare(d ast.Decl) {
	t := w.a.table
	switch d := d.(type) {
	case *ast.FuncDef:
		sym := t.NewScopedSymbol(w.fs, d.Name.Name, scope.KindFunction, w.funcType(d, false), d, d.Name.Range)
		w.syms[d] = sym
		w.bind(w.fs, sym)
	case *ast.PrototypeDef:
		// prototype names are program-wide types
		if first, ok := w.prototypeElsewhere(d.Name.Name); ok {
			w.a.coll.Redefinition(d.Name.Name, w.file, d.Name.Range, first)
			return
		}
		var typ types.Type
		if origin := w.origin(d, false); origin != nil {
			p, err := w.a.types.DefinePrototype(d.Name.Name, origin)
			if err == nil {
				typ = p
			}
		}
		sym := t.NewScopedSymbol(w.fs, d.Name.Name, scope.KindPrototype, typ, d, d.Name.Range)
		w.syms[d] = sym
		w.bind(w.fs, sym)
	case *ast.ObjectDef:
		sym := scope.NewSymbol(d.Name.Name, scope.KindObject, nil, d, d.Name.Range)
		w.syms[d] = sym
		w.bind(w.fs, sym)
	case *ast.VarDecl:
		var typ types.Type
		if d.Type != nil {
			typ = w.typeRef(w.fs, d.Type, false)
		}
		sym := scope.NewSymbol(d.Name.Name, scope.KindVariable, typ, d, d.Name.Range)
		w.syms[d] = sym
		w.bind(w.fs, sym)
	}
}

// prototypeElsewhere finds a prototype called name bound by another file.
func (w *walker) prototypeElsewhere(name string) (*scope.Symbol, bool) {
	for _, id := range w.a.table.Files() {
		if id == w.fs {
			continue
		}
		if sym, ok := w.a.table.Resolve(id, name, false); ok && sym.Kind == scope.KindPrototype {
			return sym, true
		}
	}
	return nil, false
}

// origin resolves the host class a prototype builds on.
func (w *walker) origin(d *ast.PrototypeDef, record bool) *types.Aggregate {
	name := w.a.defaultOrigin
	if d.Origin != nil {
		name = d.Origin.Name
		if record {
			if sym, ok := w.resolve(w.fs, name); ok {
				w.use(sym, d.Origin)
			} else {
				w.a.coll.Unresolved("type", name, w.file, d.Origin.Range)
			}
		}
	}
	t, ok := w.a.types.Lookup(name)
	if !ok {
		return nil
	}
	agg, _ := t.(*types.Aggregate)
	return agg
}

func (w *walker) funcType(d *ast.FuncDef, record bool) *types.Function {
	fn := &types.Function{Return: types.None}
	for _, p := range d.Params {
		fn.Params = append(fn.Params, w.typeRef(w.fs, p.Type, record))
	}
	if d.Result != nil {
		fn.Return = w.typeRef(w.fs, d.Result, record)
	}
	return fn
}

// typeRef resolves a written type. Unknown names resolve to Any and, when
// record is set, are reported.
func (w *walker) typeRef(cur scope.ID, tr *ast.TypeRef, record bool) types.Type {
	if tr == nil {
		return types.Any
	}
	name := tr.Name.Name
	t, ok := w.a.types.Lookup(name)
	if record {
		if sym, found := w.resolve(cur, name); found && ok {
			w.use(sym, tr.Name)
		} else if !ok {
			w.a.coll.Unresolved("type", name, w.file, tr.Name.Range)
		}
	}
	if !ok {
		return types.Any
	}
	if tr.List {
		return types.ListOf(t)
	}
	return t
}

// --- Pass 2 ---

func (w *walker) analyze(d ast.Decl) {
	t := w.a.table
	switch d := d.(type) {
	case *ast.FuncDef:
		sym := w.syms[d]
		w.funcType(d, true)
		for i, p := range d.Params {
			var pt types.Type = types.Any
			if fn, ok := sym.Type.(*types.Function); ok && i < len(fn.Params) {
				pt = fn.Params[i]
			}
			w.bind(sym.Nested, scope.NewSymbol(p.Name.Name, scope.KindParameter, pt, p, p.Name.Range))
		}
		body := t.NewScope(sym.Nested, "body", d.Body)
		w.stmts(body, d.Body.Stmts)
	case *ast.PrototypeDef:
		origin := w.origin(d, true)
		if origin == nil {
			if d.Origin == nil {
				w.a.coll.Unresolved("type", w.a.defaultOrigin, w.file, d.Name.Range)
			}
			for _, p := range d.Props {
				w.expr(w.fs, p.Value, nil)
			}
			return
		}
		w.props(w.fs, origin, d.Props)
	case *ast.ObjectDef:
		sym := w.syms[d]
		var target types.Type
		if ts, ok := w.resolve(w.fs, d.Type.Name); ok {
			w.use(ts, d.Type)
		}
		if typ, ok := w.a.types.Lookup(d.Type.Name); ok {
			target = typ
		} else {
			w.a.coll.Unresolved("type", d.Type.Name, w.file, d.Type.Range)
		}
		agg := aggregateOf(target)
		sym.Type = target
		if p, ok := target.(*types.Prototype); ok {
			sym.Type = p.Origin
		}
		if agg == nil {
			for _, p := range d.Props {
				w.expr(w.fs, p.Value, nil)
			}
			return
		}
		w.props(w.fs, agg, d.Props)
	case *ast.VarDecl:
		sym := w.syms[d]
		if d.Type != nil {
			w.typeRef(w.fs, d.Type, true)
		}
		if d.Value != nil {
			vt := w.expr(w.fs, d.Value, sym.Type)
			if sym.Type == nil {
				sym.Type = vt
			}
		}
		if sym.Type == nil {
			sym.Type = types.Any
		}
	}
}

// props resolves property names against agg's member scope and walks their
// values with the member type as expected type.
func (w *walker) props(cur scope.ID, agg *types.Aggregate, props []*ast.Property) {
	members := w.memberScope(agg)
	for _, p := range props {
		var expected types.Type
		if m, ok := agg.Member(p.Name.Name); ok {
			expected = m.Type
		}
		if sym, ok := w.a.table.Resolve(members, p.Name.Name, false); ok && members != scope.Null {
			w.use(sym, p.Name)
		} else {
			w.a.coll.Unresolved("member", agg.Name()+"."+p.Name.Name, w.file, p.Name.Range)
		}
		w.expr(cur, p.Value, expected)
	}
}

// memberScope returns the nested scope of agg's type symbol.
func (w *walker) memberScope(agg *types.Aggregate) scope.ID {
	sym, ok := w.a.table.Resolve(w.a.table.Global(), agg.Name(), false)
	if !ok || sym.Kind != scope.KindType {
		return scope.Null
	}
	return sym.Nested
}

func aggregateOf(t types.Type) *types.Aggregate {
	switch t := t.(type) {
	case *types.Aggregate:
		return t
	case *types.Prototype:
		return t.Origin
	}
	return nil
}

func (w *walker) stmts(cur scope.ID, list []ast.Stmt) {
	for _, s := range list {
		w.stmt(cur, s)
	}
}

func (w *walker) stmt(cur scope.ID, s ast.Stmt) {
	t := w.a.table
	switch s := s.(type) {
	case *ast.VarDecl:
		var typ types.Type
		if s.Type != nil {
			typ = w.typeRef(cur, s.Type, true)
		}
		if s.Value != nil {
			vt := w.expr(cur, s.Value, typ)
			if typ == nil {
				typ = vt
			}
		}
		if typ == nil {
			typ = types.Any
		}
		w.bind(cur, scope.NewSymbol(s.Name.Name, scope.KindVariable, typ, s, s.Name.Range))
	case *ast.AssignStmt:
		tt := w.expr(cur, s.Target, nil)
		w.expr(cur, s.Value, tt)
	case *ast.ExprStmt:
		w.expr(cur, s.X, nil)
	case *ast.Block:
		w.stmts(t.NewScope(cur, "block", s), s.Stmts)
	case *ast.IfStmt:
		w.expr(cur, s.Cond, nil)
		w.stmts(t.NewScope(cur, "then", s.Then), s.Then.Stmts)
		if s.Else != nil {
			w.stmt(cur, s.Else)
		}
	case *ast.WhileStmt:
		w.expr(cur, s.Cond, nil)
		w.stmts(t.NewScope(cur, "while", s.Body), s.Body.Stmts)
	case *ast.ForStmt:
		it := w.expr(cur, s.Iter, nil)
		var elem types.Type = types.Any
		if lt, ok := it.(*types.List); ok {
			elem = lt.Elem
		}
		loop := t.NewScope(cur, "for", s)
		w.bind(loop, scope.NewSymbol(s.Var.Name, scope.KindVariable, elem, s, s.Var.Range))
		w.stmts(t.NewScope(loop, "body", s.Body), s.Body.Stmts)
	case *ast.ReturnStmt:
		if s.Value != nil {
			w.expr(cur, s.Value, nil)
		}
	}
}

// expr resolves usages inside e and returns its static type, Any when it
// cannot be determined.
func (w *walker) expr(cur scope.ID, e ast.Expr, expected types.Type) types.Type {
	switch e := e.(type) {
	case *ast.IntLit:
		return types.Int
	case *ast.FloatLit:
		return types.Float
	case *ast.StringLit:
		return types.String
	case *ast.BoolLit:
		return types.Bool
	case *ast.NoneLit:
		return types.None
	case *ast.Ident:
		sym, ok := w.resolve(cur, e.Name)
		if !ok {
			w.a.coll.Unresolved("identifier", e.Name, w.file, e.Range)
			return types.Any
		}
		w.use(sym, e)
		if sym.Type == nil {
			return types.Any
		}
		return sym.Type
	case *ast.MemberExpr:
		xt := w.expr(cur, e.X, nil)
		agg := aggregateOf(xt)
		if agg == nil {
			return types.Any
		}
		members := w.memberScope(agg)
		sym, ok := w.a.table.Resolve(members, e.Member.Name, false)
		if !ok || members == scope.Null {
			w.a.coll.Unresolved("member", agg.Name()+"."+e.Member.Name, w.file, e.Member.Range)
			return types.Any
		}
		w.use(sym, e.Member)
		return sym.Type
	case *ast.CallExpr:
		ft := w.expr(cur, e.Fun, nil)
		fn, _ := ft.(*types.Function)
		for i, arg := range e.Args {
			var pt types.Type
			if fn != nil && i < len(fn.Params) {
				pt = fn.Params[i]
			}
			w.expr(cur, arg, pt)
		}
		if fn == nil {
			return types.Any
		}
		return fn.Return
	case *ast.BinaryExpr:
		xt := w.expr(cur, e.X, nil)
		yt := w.expr(cur, e.Y, nil)
		switch e.Op {
		case ast.OpOr, ast.OpAnd, ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
			return types.Bool
		case ast.OpAdd:
			if xt == types.String || yt == types.String {
				return types.String
			}
		}
		switch {
		case xt == types.Int && yt == types.Int:
			return types.Int
		case (xt == types.Int || xt == types.Float) && (yt == types.Int || yt == types.Float):
			return types.Float
		}
		return types.Any
	case *ast.UnaryExpr:
		xt := w.expr(cur, e.X, nil)
		if e.Op == ast.OpNot {
			return types.Bool
		}
		return xt
	case *ast.AggregateLit:
		target := expected
		if e.Type != nil {
			if sym, ok := w.resolve(cur, e.Type.Name); ok {
				w.use(sym, e.Type)
			}
			t, ok := w.a.types.Lookup(e.Type.Name)
			if !ok {
				w.a.coll.Unresolved("type", e.Type.Name, w.file, e.Type.Range)
			}
			target = t
		}
		agg := aggregateOf(target)
		if agg == nil {
			for _, f := range e.Fields {
				w.expr(cur, f.Value, nil)
			}
			return types.Any
		}
		w.props(cur, agg, e.Fields)
		return w.a.types.RegisterPrototype(agg)
	case *ast.ListLit:
		var elem types.Type
		if lt, ok := expected.(*types.List); ok {
			elem = lt.Elem
		}
		for _, x := range e.Elems {
			xt := w.expr(cur, x, elem)
			if elem == nil {
				elem = xt
			}
		}
		if elem == nil {
			elem = types.Any
		}
		return types.ListOf(elem)
	}
	return types.Any
}
