// Package scope implements the compile-time scope tree.
//
// Scopes live in an arena owned by a Table and are addressed by ID. Parent
// links and child sets are IDs, so a file's subtree can be released in one
// pass on reload.
package scope

import (
	"fmt"

	"github.com/jward/questscript/ast"
	"github.com/jward/questscript/internal/types"
)

// ID addresses a scope inside a Table.
type ID int

// Null is the distinguished root. It has no parent and rejects bindings.
const Null ID = 0

// Kind classifies a symbol.
type Kind int

const (
	KindVariable Kind = iota
	KindParameter
	KindFunction
	KindPrototype
	KindObject
	KindType
	KindMember
	KindNative
)

var kindNames = [...]string{
	KindVariable:  "variable",
	KindParameter: "parameter",
	KindFunction:  "function",
	KindPrototype: "prototype",
	KindObject:    "object",
	KindType:      "type",
	KindMember:    "member",
	KindNative:    "native",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Symbol is a named entity bound in a scope. Nested is non-Null for scoped
// symbols (functions, types, prototypes) and names the scope holding their
// parameters or members.
type Symbol struct {
	Name   string
	Kind   Kind
	Type   types.Type
	Owner  ID
	Nested ID
	Node   ast.Node
	// Range is the range of the defining name. Zero for host-provided
	// symbols.
	Range ast.Range
	// File is the path of the file that defined the symbol, empty for
	// host-provided symbols.
	File string
}

// Scoped reports whether the symbol owns a nested scope.
func (s *Symbol) Scoped() bool { return s.Nested != Null }

type scopeData struct {
	name     string
	parent   ID
	children []ID
	names    map[string]*Symbol
	order    []*Symbol
	node     ast.Node

	// Set on file scopes only.
	path string
	root *ast.File
}

// Table is the scope arena for one loaded program.
type Table struct {
	scopes []*scopeData
	files  map[string]ID
	global ID
}

// NewTable returns a table holding the Null root and a global scope.
func NewTable() *Table {
	t := &Table{
		scopes: []*scopeData{{name: "<null>", parent: Null}},
		files:  make(map[string]ID),
	}
	t.global = t.NewScope(Null, "global", nil)
	return t
}

// Global returns the scope holding host-provided names.
func (t *Table) Global() ID { return t.global }

// NewScope creates a scope under parent. Creating a scope under a released
// scope panics.
func (t *Table) NewScope(parent ID, name string, node ast.Node) ID {
	if parent != Null {
		t.mustGet(parent)
	}
	id := ID(len(t.scopes))
	t.scopes = append(t.scopes, &scopeData{
		name:   name,
		parent: parent,
		names:  make(map[string]*Symbol),
		node:   node,
	})
	if parent != Null {
		p := t.scopes[parent]
		p.children = append(p.children, id)
	}
	return id
}

// NewFileScope creates the scope for one source file under the global
// scope. An existing scope for the same path must be dropped first.
func (t *Table) NewFileScope(path string, root *ast.File) (ID, error) {
	if _, ok := t.files[path]; ok {
		return Null, fmt.Errorf("scope: file %s already loaded", path)
	}
	id := t.NewScope(t.global, path, root)
	d := t.scopes[id]
	d.path = path
	d.root = root
	t.files[path] = id
	return id, nil
}

// FileScope returns the scope for path.
func (t *Table) FileScope(path string) (ID, bool) {
	id, ok := t.files[path]
	return id, ok
}

// Files returns the IDs of all loaded file scopes in load order.
func (t *Table) Files() []ID {
	return t.Children(t.global)
}

// NewSymbol builds an unbound symbol.
func NewSymbol(name string, kind Kind, typ types.Type, node ast.Node, rng ast.Range) *Symbol {
	return &Symbol{Name: name, Kind: kind, Type: typ, Node: node, Range: rng}
}

// NewScopedSymbol builds an unbound symbol whose nested scope is created
// immediately under in, so lookups into it are valid before the symbol's
// body has been analyzed.
func (t *Table) NewScopedSymbol(in ID, name string, kind Kind, typ types.Type, node ast.Node, rng ast.Range) *Symbol {
	sym := NewSymbol(name, kind, typ, node, rng)
	sym.Nested = t.NewScope(in, name, node)
	return sym
}

// Bind adds sym to scope id. It returns false, leaving the scope untouched,
// when the name is already bound there. Binding into Null or a released
// scope panics.
func (t *Table) Bind(id ID, sym *Symbol) bool {
	if id == Null {
		panic("scope: bind " + sym.Name + " into the null scope")
	}
	d := t.mustGet(id)
	if _, exists := d.names[sym.Name]; exists {
		return false
	}
	d.names[sym.Name] = sym
	d.order = append(d.order, sym)
	sym.Owner = id
	return true
}

// Resolve looks name up in id and, when searchParent is set, in its
// ancestors. Null and released scopes resolve nothing.
func (t *Table) Resolve(id ID, name string, searchParent bool) (*Symbol, bool) {
	for id != Null {
		d := t.get(id)
		if d == nil {
			return nil, false
		}
		if sym, ok := d.names[name]; ok {
			return sym, true
		}
		if !searchParent {
			return nil, false
		}
		id = d.parent
	}
	return nil, false
}

// Parent returns the parent of id, Null for roots.
func (t *Table) Parent(id ID) ID {
	if d := t.get(id); d != nil {
		return d.parent
	}
	return Null
}

// Name returns the display name of id.
func (t *Table) Name(id ID) string {
	if d := t.get(id); d != nil {
		return d.name
	}
	return ""
}

// Node returns the AST node that introduced id, if any.
func (t *Table) Node(id ID) ast.Node {
	if d := t.get(id); d != nil {
		return d.node
	}
	return nil
}

// Children returns the live child scopes of id.
func (t *Table) Children(id ID) []ID {
	d := t.get(id)
	if d == nil {
		return nil
	}
	out := make([]ID, len(d.children))
	copy(out, d.children)
	return out
}

// Symbols returns the symbols bound in id in binding order.
func (t *Table) Symbols(id ID) []*Symbol {
	d := t.get(id)
	if d == nil {
		return nil
	}
	out := make([]*Symbol, len(d.order))
	copy(out, d.order)
	return out
}

// File returns the path and AST of the file scope enclosing id.
func (t *Table) File(id ID) (string, *ast.File, bool) {
	for id != Null {
		d := t.get(id)
		if d == nil {
			return "", nil, false
		}
		if d.root != nil {
			return d.path, d.root, true
		}
		id = d.parent
	}
	return "", nil, false
}

// Live reports whether id names a scope that has not been released.
func (t *Table) Live(id ID) bool {
	return id != Null && t.get(id) != nil
}

// DropFile releases the whole scope subtree of path. Symbols bound anywhere
// in the subtree become unreachable through the table.
func (t *Table) DropFile(path string) bool {
	id, ok := t.files[path]
	if !ok {
		return false
	}
	delete(t.files, path)
	parent := t.scopes[id].parent
	if p := t.get(parent); p != nil {
		for i, c := range p.children {
			if c == id {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
	stack := []ID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if d := t.scopes[cur]; d != nil {
			stack = append(stack, d.children...)
			t.scopes[cur] = nil
		}
	}
	return true
}

func (t *Table) get(id ID) *scopeData {
	if id <= Null || int(id) >= len(t.scopes) {
		return nil
	}
	return t.scopes[id]
}

func (t *Table) mustGet(id ID) *scopeData {
	d := t.get(id)
	if d == nil {
		panic(fmt.Sprintf("scope: use of released or unknown scope %d", id))
	}
	return d
}
