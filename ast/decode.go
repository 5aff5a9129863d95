package ast

import (
	"encoding/json"
	"fmt"
	"io"
)

// wire is the JSON shape of every node. Which fields are meaningful
// depends on Kind.
type wire struct {
	Kind   string   `json:"kind"`
	Range  Range    `json:"range"`
	Path   string   `json:"path,omitempty"`
	Ident  string   `json:"ident,omitempty"`
	Name   *wire    `json:"name,omitempty"`
	Type   *wire    `json:"type,omitempty"`
	Origin *wire    `json:"origin,omitempty"`
	Result *wire    `json:"result,omitempty"`
	List   bool     `json:"list,omitempty"`
	Params []*wire  `json:"params,omitempty"`
	Props  []*wire  `json:"props,omitempty"`
	Decls  []*wire  `json:"decls,omitempty"`
	Stmts  []*wire  `json:"stmts,omitempty"`
	Elems  []*wire  `json:"elems,omitempty"`
	Args   []*wire  `json:"args,omitempty"`
	Body   *wire    `json:"body,omitempty"`
	Then   *wire    `json:"then,omitempty"`
	Else   *wire    `json:"else,omitempty"`
	Cond   *wire    `json:"cond,omitempty"`
	Value  *wire    `json:"value,omitempty"`
	Target *wire    `json:"target,omitempty"`
	Iter   *wire    `json:"iter,omitempty"`
	Fun    *wire    `json:"fun,omitempty"`
	X      *wire    `json:"x,omitempty"`
	Y      *wire    `json:"y,omitempty"`
	Op     string   `json:"op,omitempty"`
	Int    *int64   `json:"int,omitempty"`
	Float  *float64 `json:"float,omitempty"`
	Str    *string  `json:"str,omitempty"`
	Bool   *bool    `json:"bool,omitempty"`
}

// Decode reads a JSON-encoded file tree. The top-level object must have kind
// "file". Each node carries a "kind" and a "range".
func Decode(r io.Reader) (*File, error) {
	var w wire
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("ast: decode: %w", err)
	}
	if w.Kind != "file" {
		return nil, fmt.Errorf("ast: decode: top-level kind %q, want file", w.Kind)
	}
	f := &File{Range: w.Range, Path: w.Path}
	for _, d := range w.Decls {
		decl, err := toDecl(d)
		if err != nil {
			return nil, fmt.Errorf("ast: decode %s: %w", w.Path, err)
		}
		f.Decls = append(f.Decls, decl)
	}
	return f, nil
}

func toDecl(w *wire) (Decl, error) {
	switch w.Kind {
	case "func":
		fn := &FuncDef{Range: w.Range}
		var err error
		if fn.Name, err = toIdent(w.Name); err != nil {
			return nil, err
		}
		for _, p := range w.Params {
			param := &Param{Range: p.Range}
			if param.Name, err = toIdent(p.Name); err != nil {
				return nil, err
			}
			if param.Type, err = toTypeRef(p.Type); err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, param)
		}
		if w.Result != nil {
			if fn.Result, err = toTypeRef(w.Result); err != nil {
				return nil, err
			}
		}
		if fn.Body, err = toBlock(w.Body); err != nil {
			return nil, err
		}
		return fn, nil
	case "prototype":
		p := &PrototypeDef{Range: w.Range}
		var err error
		if p.Name, err = toIdent(w.Name); err != nil {
			return nil, err
		}
		if w.Origin != nil {
			if p.Origin, err = toIdent(w.Origin); err != nil {
				return nil, err
			}
		}
		if p.Props, err = toProps(w.Props); err != nil {
			return nil, err
		}
		return p, nil
	case "object":
		o := &ObjectDef{Range: w.Range}
		var err error
		if o.Type, err = toIdent(w.Type); err != nil {
			return nil, err
		}
		if o.Name, err = toIdent(w.Name); err != nil {
			return nil, err
		}
		if o.Props, err = toProps(w.Props); err != nil {
			return nil, err
		}
		return o, nil
	case "var":
		return toVarDecl(w)
	}
	return nil, fmt.Errorf("%s: unknown declaration kind %q", w.Range, w.Kind)
}

func toVarDecl(w *wire) (*VarDecl, error) {
	v := &VarDecl{Range: w.Range}
	var err error
	if v.Name, err = toIdent(w.Name); err != nil {
		return nil, err
	}
	if w.Type != nil {
		if v.Type, err = toTypeRef(w.Type); err != nil {
			return nil, err
		}
	}
	if w.Value != nil {
		if v.Value, err = toExpr(w.Value); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func toIdent(w *wire) (*Ident, error) {
	if w == nil {
		return nil, fmt.Errorf("missing identifier")
	}
	if w.Kind != "ident" {
		return nil, fmt.Errorf("%s: kind %q, want ident", w.Range, w.Kind)
	}
	return &Ident{Range: w.Range, Name: w.Ident}, nil
}

func toTypeRef(w *wire) (*TypeRef, error) {
	if w == nil {
		return nil, fmt.Errorf("missing type")
	}
	if w.Kind == "ident" {
		id, _ := toIdent(w)
		return &TypeRef{Range: w.Range, Name: id}, nil
	}
	if w.Kind != "typeref" {
		return nil, fmt.Errorf("%s: kind %q, want typeref", w.Range, w.Kind)
	}
	name, err := toIdent(w.Name)
	if err != nil {
		return nil, err
	}
	return &TypeRef{Range: w.Range, Name: name, List: w.List}, nil
}

func toProps(ws []*wire) ([]*Property, error) {
	var props []*Property
	for _, p := range ws {
		name, err := toIdent(p.Name)
		if err != nil {
			return nil, err
		}
		val, err := toExpr(p.Value)
		if err != nil {
			return nil, err
		}
		props = append(props, &Property{Range: p.Range, Name: name, Value: val})
	}
	return props, nil
}

func toBlock(w *wire) (*Block, error) {
	if w == nil {
		return nil, fmt.Errorf("missing block")
	}
	if w.Kind != "block" {
		return nil, fmt.Errorf("%s: kind %q, want block", w.Range, w.Kind)
	}
	b := &Block{Range: w.Range}
	for _, s := range w.Stmts {
		stmt, err := toStmt(s)
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, stmt)
	}
	return b, nil
}

func toStmt(w *wire) (Stmt, error) {
	if w == nil {
		return nil, fmt.Errorf("missing statement")
	}
	var err error
	switch w.Kind {
	case "block":
		return toBlock(w)
	case "var":
		return toVarDecl(w)
	case "expr":
		s := &ExprStmt{Range: w.Range}
		if s.X, err = toExpr(w.X); err != nil {
			return nil, err
		}
		return s, nil
	case "assign":
		s := &AssignStmt{Range: w.Range}
		if s.Target, err = toExpr(w.Target); err != nil {
			return nil, err
		}
		if s.Value, err = toExpr(w.Value); err != nil {
			return nil, err
		}
		return s, nil
	case "if":
		s := &IfStmt{Range: w.Range}
		if s.Cond, err = toExpr(w.Cond); err != nil {
			return nil, err
		}
		if s.Then, err = toBlock(w.Then); err != nil {
			return nil, err
		}
		if w.Else != nil {
			if s.Else, err = toStmt(w.Else); err != nil {
				return nil, err
			}
		}
		return s, nil
	case "while":
		s := &WhileStmt{Range: w.Range}
		if s.Cond, err = toExpr(w.Cond); err != nil {
			return nil, err
		}
		if s.Body, err = toBlock(w.Body); err != nil {
			return nil, err
		}
		return s, nil
	case "for":
		s := &ForStmt{Range: w.Range}
		if s.Var, err = toIdent(w.Name); err != nil {
			return nil, err
		}
		if s.Iter, err = toExpr(w.Iter); err != nil {
			return nil, err
		}
		if s.Body, err = toBlock(w.Body); err != nil {
			return nil, err
		}
		return s, nil
	case "return":
		s := &ReturnStmt{Range: w.Range}
		if w.Value != nil {
			if s.Value, err = toExpr(w.Value); err != nil {
				return nil, err
			}
		}
		return s, nil
	}
	return nil, fmt.Errorf("%s: unknown statement kind %q", w.Range, w.Kind)
}

func toExpr(w *wire) (Expr, error) {
	if w == nil {
		return nil, fmt.Errorf("missing expression")
	}
	var err error
	switch w.Kind {
	case "ident":
		return toIdent(w)
	case "int":
		if w.Int == nil {
			return nil, fmt.Errorf("%s: int literal without value", w.Range)
		}
		return &IntLit{Range: w.Range, Value: *w.Int}, nil
	case "float":
		if w.Float == nil {
			return nil, fmt.Errorf("%s: float literal without value", w.Range)
		}
		return &FloatLit{Range: w.Range, Value: *w.Float}, nil
	case "string":
		if w.Str == nil {
			return nil, fmt.Errorf("%s: string literal without value", w.Range)
		}
		return &StringLit{Range: w.Range, Value: *w.Str}, nil
	case "bool":
		if w.Bool == nil {
			return nil, fmt.Errorf("%s: bool literal without value", w.Range)
		}
		return &BoolLit{Range: w.Range, Value: *w.Bool}, nil
	case "none":
		return &NoneLit{Range: w.Range}, nil
	case "call":
		c := &CallExpr{Range: w.Range}
		if c.Fun, err = toExpr(w.Fun); err != nil {
			return nil, err
		}
		for _, a := range w.Args {
			arg, err := toExpr(a)
			if err != nil {
				return nil, err
			}
			c.Args = append(c.Args, arg)
		}
		return c, nil
	case "member":
		m := &MemberExpr{Range: w.Range}
		if m.X, err = toExpr(w.X); err != nil {
			return nil, err
		}
		if m.Member, err = toIdent(w.Name); err != nil {
			return nil, err
		}
		return m, nil
	case "binary":
		b := &BinaryExpr{Range: w.Range, Op: w.Op}
		if b.X, err = toExpr(w.X); err != nil {
			return nil, err
		}
		if b.Y, err = toExpr(w.Y); err != nil {
			return nil, err
		}
		return b, nil
	case "unary":
		u := &UnaryExpr{Range: w.Range, Op: w.Op}
		if u.X, err = toExpr(w.X); err != nil {
			return nil, err
		}
		return u, nil
	case "aggregate":
		a := &AggregateLit{Range: w.Range}
		if w.Type != nil {
			if a.Type, err = toIdent(w.Type); err != nil {
				return nil, err
			}
		}
		if a.Fields, err = toProps(w.Props); err != nil {
			return nil, err
		}
		return a, nil
	case "list":
		l := &ListLit{Range: w.Range}
		for _, e := range w.Elems {
			elem, err := toExpr(e)
			if err != nil {
				return nil, err
			}
			l.Elems = append(l.Elems, elem)
		}
		return l, nil
	}
	return nil, fmt.Errorf("%s: unknown expression kind %q", w.Range, w.Kind)
}
