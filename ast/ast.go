// Package ast defines the syntax tree consumed by the questscript core.
//
// Parsing is done elsewhere. A parser (or a tool emitting JSON, see Decode)
// hands the core a *File whose nodes all carry a source Range. Lines and
// columns are 0-based.
package ast

import "fmt"

// Position is a 0-based line/column pair.
type Position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Before reports whether p sorts strictly before q.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Col < q.Col
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Range is a source span. End is the position of its last character.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Span returns r. Every node embeds a Range, so Span is promoted onto it.
func (r Range) Span() Range { return r }

// Contains reports whether p falls inside r. The end column is inclusive so
// a cursor placed right after an identifier still hits it.
func (r Range) Contains(p Position) bool {
	if p.Before(r.Start) {
		return false
	}
	return !r.End.Before(p)
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Node is any syntax tree node.
type Node interface {
	Span() Range
}

// Decl is a top-level declaration.
type Decl interface {
	Node
	declNode()
}

// Stmt is a statement inside a function body.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression.
type Expr interface {
	Node
	exprNode()
}

// File is one parsed source unit.
type File struct {
	Range `json:"range"`
	Path  string
	Decls []Decl
}

// --- Declarations ---

// Ident is a name occurrence. It is both a usage (as an Expr) and the name
// slot of declarations.
type Ident struct {
	Range `json:"range"`
	Name  string
}

// TypeRef names a type, optionally as a list of that type ("int[]").
type TypeRef struct {
	Range `json:"range"`
	Name  *Ident
	List  bool
}

// Param is one function parameter.
type Param struct {
	Range `json:"range"`
	Name  *Ident
	Type  *TypeRef
}

// FuncDef declares a script function. A nil Result means none.
type FuncDef struct {
	Range  `json:"range"`
	Name   *Ident
	Params []*Param
	Result *TypeRef
	Body   *Block
}

// Property is a "name: value" pair inside prototypes, objects and aggregate
// literals.
type Property struct {
	Range `json:"range"`
	Name  *Ident
	Value Expr
}

// PrototypeDef declares a named template for a host class. Origin names the
// host class; when nil the host's default entity class is used.
type PrototypeDef struct {
	Range  `json:"range"`
	Name   *Ident
	Origin *Ident
	Props  []*Property
}

// ObjectDef declares a host object that is instantiated when the file loads.
// Type may name a host class or a script prototype.
type ObjectDef struct {
	Range `json:"range"`
	Type  *Ident
	Name  *Ident
	Props []*Property
}

// VarDecl declares a variable, at file level or inside a block.
type VarDecl struct {
	Range `json:"range"`
	Name  *Ident
	Type  *TypeRef
	Value Expr
}

// --- Statements ---

type Block struct {
	Range `json:"range"`
	Stmts []Stmt
}

type ExprStmt struct {
	Range `json:"range"`
	X     Expr
}

// AssignStmt rebinds Target, which must be an Ident or a MemberExpr.
type AssignStmt struct {
	Range  `json:"range"`
	Target Expr
	Value  Expr
}

// IfStmt. Else is nil, a *Block or another *IfStmt.
type IfStmt struct {
	Range `json:"range"`
	Cond  Expr
	Then  *Block
	Else  Stmt
}

type WhileStmt struct {
	Range `json:"range"`
	Cond  Expr
	Body  *Block
}

// ForStmt iterates Var over the elements of a list.
type ForStmt struct {
	Range `json:"range"`
	Var   *Ident
	Iter  Expr
	Body  *Block
}

type ReturnStmt struct {
	Range `json:"range"`
	Value Expr
}

// --- Expressions ---

type IntLit struct {
	Range `json:"range"`
	Value int64
}

type FloatLit struct {
	Range `json:"range"`
	Value float64
}

type StringLit struct {
	Range `json:"range"`
	Value string
}

type BoolLit struct {
	Range `json:"range"`
	Value bool
}

type NoneLit struct {
	Range `json:"range"`
}

type CallExpr struct {
	Range `json:"range"`
	Fun   Expr
	Args  []Expr
}

type MemberExpr struct {
	Range  `json:"range"`
	X      Expr
	Member *Ident
}

// Binary operators.
const (
	OpOr  = "or"
	OpAnd = "and"
	OpEq  = "=="
	OpNe  = "!="
	OpLt  = "<"
	OpLe  = "<="
	OpGt  = ">"
	OpGe  = ">="
	OpAdd = "+"
	OpSub = "-"
	OpMul = "*"
	OpDiv = "/"
	OpNot = "!"
)

type BinaryExpr struct {
	Range `json:"range"`
	Op    string
	X, Y  Expr
}

// UnaryExpr supports "!" and "-".
type UnaryExpr struct {
	Range `json:"range"`
	Op    string
	X     Expr
}

// AggregateLit builds an aggregate value. Type is nil when the type comes
// from context (a prototype member or a typed variable).
type AggregateLit struct {
	Range  `json:"range"`
	Type   *Ident
	Fields []*Property
}

type ListLit struct {
	Range `json:"range"`
	Elems []Expr
}

func (*FuncDef) declNode()      {}
func (*PrototypeDef) declNode() {}
func (*ObjectDef) declNode()    {}
func (*VarDecl) declNode()      {}

func (*VarDecl) stmtNode()    {}
func (*Block) stmtNode()      {}
func (*ExprStmt) stmtNode()   {}
func (*AssignStmt) stmtNode() {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}
func (*ForStmt) stmtNode()    {}
func (*ReturnStmt) stmtNode() {}

func (*Ident) exprNode()        {}
func (*IntLit) exprNode()       {}
func (*FloatLit) exprNode()     {}
func (*StringLit) exprNode()    {}
func (*BoolLit) exprNode()      {}
func (*NoneLit) exprNode()      {}
func (*CallExpr) exprNode()     {}
func (*MemberExpr) exprNode()   {}
func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}
func (*AggregateLit) exprNode() {}
func (*ListLit) exprNode()      {}
