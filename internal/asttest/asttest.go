// Package asttest builds syntax trees for tests. Every node gets its own
// line, so ranges are distinct and positions are easy to read back from the
// returned nodes.
package asttest

import "github.com/jward/questscript/ast"

// Builder hands out ranges for one file.
type Builder struct {
	Path string
	line int
}

func New(path string) *Builder {
	return &Builder{Path: path}
}

func (b *Builder) span(width int) ast.Range {
	if width < 1 {
		width = 1
	}
	r := ast.Range{
		Start: ast.Position{Line: b.line, Col: 0},
		End:   ast.Position{Line: b.line, Col: width - 1},
	}
	b.line++
	return r
}

// File wraps decls in a file spanning every line handed out so far.
func (b *Builder) File(decls ...ast.Decl) *ast.File {
	return &ast.File{
		Range: ast.Range{End: ast.Position{Line: b.line}},
		Path:  b.Path,
		Decls: decls,
	}
}

func (b *Builder) Ident(name string) *ast.Ident {
	return &ast.Ident{Range: b.span(len(name)), Name: name}
}

// Type refers to the named type. A trailing "[]" makes it a list type.
func (b *Builder) Type(name string) *ast.TypeRef {
	list := len(name) > 2 && name[len(name)-2:] == "[]"
	if list {
		name = name[:len(name)-2]
	}
	return &ast.TypeRef{Range: b.span(len(name)), Name: b.Ident(name), List: list}
}

func (b *Builder) Param(name, typ string) *ast.Param {
	return &ast.Param{Range: b.span(1), Name: b.Ident(name), Type: b.Type(typ)}
}

// Func declares a function. An empty result means none.
func (b *Builder) Func(name string, params []*ast.Param, result string, body ...ast.Stmt) *ast.FuncDef {
	fd := &ast.FuncDef{Range: b.span(1), Name: b.Ident(name), Params: params}
	if result != "" {
		fd.Result = b.Type(result)
	}
	fd.Body = b.Block(body...)
	return fd
}

// Proto declares a prototype. An empty origin uses the default host class.
func (b *Builder) Proto(name, origin string, props ...*ast.Property) *ast.PrototypeDef {
	pd := &ast.PrototypeDef{Range: b.span(1), Name: b.Ident(name), Props: props}
	if origin != "" {
		pd.Origin = b.Ident(origin)
	}
	return pd
}

func (b *Builder) Object(typ, name string, props ...*ast.Property) *ast.ObjectDef {
	return &ast.ObjectDef{Range: b.span(1), Type: b.Ident(typ), Name: b.Ident(name), Props: props}
}

// Var declares a variable. An empty typ leaves the type to inference.
func (b *Builder) Var(name, typ string, value ast.Expr) *ast.VarDecl {
	vd := &ast.VarDecl{Range: b.span(1), Name: b.Ident(name), Value: value}
	if typ != "" {
		vd.Type = b.Type(typ)
	}
	return vd
}

func (b *Builder) Prop(name string, value ast.Expr) *ast.Property {
	return &ast.Property{Range: b.span(1), Name: b.Ident(name), Value: value}
}

// --- Statements ---

func (b *Builder) Block(stmts ...ast.Stmt) *ast.Block {
	return &ast.Block{Range: b.span(1), Stmts: stmts}
}

func (b *Builder) Expr(x ast.Expr) *ast.ExprStmt {
	return &ast.ExprStmt{Range: b.span(1), X: x}
}

func (b *Builder) Assign(target, value ast.Expr) *ast.AssignStmt {
	return &ast.AssignStmt{Range: b.span(1), Target: target, Value: value}
}

// If builds an if statement. els may be nil.
func (b *Builder) If(cond ast.Expr, then *ast.Block, els ast.Stmt) *ast.IfStmt {
	return &ast.IfStmt{Range: b.span(1), Cond: cond, Then: then, Else: els}
}

func (b *Builder) While(cond ast.Expr, body ...ast.Stmt) *ast.WhileStmt {
	return &ast.WhileStmt{Range: b.span(1), Cond: cond, Body: b.Block(body...)}
}

func (b *Builder) For(v string, iter ast.Expr, body ...ast.Stmt) *ast.ForStmt {
	return &ast.ForStmt{Range: b.span(1), Var: b.Ident(v), Iter: iter, Body: b.Block(body...)}
}

// Return builds a return statement. x may be nil.
func (b *Builder) Return(x ast.Expr) *ast.ReturnStmt {
	return &ast.ReturnStmt{Range: b.span(1), Value: x}
}

// --- Expressions ---

func (b *Builder) Int(v int64) *ast.IntLit       { return &ast.IntLit{Range: b.span(1), Value: v} }
func (b *Builder) Float(v float64) *ast.FloatLit { return &ast.FloatLit{Range: b.span(1), Value: v} }
func (b *Builder) Str(v string) *ast.StringLit   { return &ast.StringLit{Range: b.span(len(v) + 2), Value: v} }
func (b *Builder) Bool(v bool) *ast.BoolLit      { return &ast.BoolLit{Range: b.span(1), Value: v} }
func (b *Builder) None() *ast.NoneLit            { return &ast.NoneLit{Range: b.span(4)} }

// Call calls the function named fn.
func (b *Builder) Call(fn string, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{Range: b.span(1), Fun: b.Ident(fn), Args: args}
}

// CallExpr calls an arbitrary callee expression.
func (b *Builder) CallExpr(fun ast.Expr, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{Range: b.span(1), Fun: fun, Args: args}
}

// MethodCall calls recv.name(args...).
func (b *Builder) MethodCall(recv ast.Expr, name string, args ...ast.Expr) *ast.CallExpr {
	return b.CallExpr(b.Member(recv, name), args...)
}

func (b *Builder) Member(x ast.Expr, name string) *ast.MemberExpr {
	return &ast.MemberExpr{Range: b.span(1), X: x, Member: b.Ident(name)}
}

func (b *Builder) Bin(op string, x, y ast.Expr) *ast.BinaryExpr {
	return &ast.BinaryExpr{Range: b.span(1), Op: op, X: x, Y: y}
}

func (b *Builder) Unary(op string, x ast.Expr) *ast.UnaryExpr {
	return &ast.UnaryExpr{Range: b.span(1), Op: op, X: x}
}

// Agg builds an aggregate literal. An empty typ takes the type from
// context.
func (b *Builder) Agg(typ string, fields ...*ast.Property) *ast.AggregateLit {
	al := &ast.AggregateLit{Range: b.span(1), Fields: fields}
	if typ != "" {
		al.Type = b.Ident(typ)
	}
	return al
}

func (b *Builder) List(elems ...ast.Expr) *ast.ListLit {
	return &ast.ListLit{Range: b.span(1), Elems: elems}
}

// Strs builds a list literal of strings.
func (b *Builder) Strs(vs ...string) *ast.ListLit {
	elems := make([]ast.Expr, len(vs))
	for i, v := range vs {
		elems[i] = b.Str(v)
	}
	return b.List(elems...)
}
