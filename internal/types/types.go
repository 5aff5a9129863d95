// Package types is the type system: fixed primitives, function types,
// aggregates synthesized from registered host classes, prototypes, enums
// and lists.
package types

import (
	"strings"
)

// Kind tags a Type variant.
type Kind int

const (
	KindPrimitive Kind = iota
	KindFunction
	KindAggregate
	KindPrototype
	KindEnum
	KindList
)

// Type is implemented by every type variant. Types are compared by
// identity except Function and List, which are structural.
type Type interface {
	Name() string
	Kind() Kind
	String() string
}

// Primitive is a built-in scalar type.
type Primitive struct {
	name string
}

func (p *Primitive) Name() string   { return p.name }
func (p *Primitive) Kind() Kind     { return KindPrimitive }
func (p *Primitive) String() string { return p.name }

// Built-in primitives. Any is only used by host signatures that accept
// arbitrary values.
var (
	Int    = &Primitive{name: "int"}
	Float  = &Primitive{name: "float"}
	Bool   = &Primitive{name: "bool"}
	String = &Primitive{name: "string"}
	None   = &Primitive{name: "none"}
	Any    = &Primitive{name: "any"}
)

// Primitives lists the fixed built-ins in registration order.
var Primitives = []*Primitive{Int, Float, Bool, String, None, Any}

// Function is a callable signature. When Variadic is set the last parameter
// type applies to any number of trailing arguments.
type Function struct {
	Params   []Type
	Return   Type
	Variadic bool
}

// FuncOf builds a function type. A nil ret means None.
func FuncOf(ret Type, params ...Type) *Function {
	if ret == nil {
		ret = None
	}
	return &Function{Params: params, Return: ret}
}

func (f *Function) Name() string { return f.String() }
func (f *Function) Kind() Kind   { return KindFunction }

func (f *Function) String() string {
	var b strings.Builder
	b.WriteString("func(")
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if f.Variadic && i == len(f.Params)-1 {
			b.WriteString("...")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") -> ")
	b.WriteString(f.Return.String())
	return b.String()
}

// Role says how instantiation treats an aggregate member.
type Role int

const (
	// Data members are written through the member's setter.
	Data Role = iota
	// Attachable members hold sub-objects that are composed onto the
	// owner with the host class's compose operation.
	Attachable
	// Callback members hold script functions wrapped as host callbacks.
	Callback
)

func (r Role) String() string {
	switch r {
	case Attachable:
		return "attachable"
	case Callback:
		return "callback"
	default:
		return "data"
	}
}

// Member is one named slot of an aggregate or prototype.
type Member struct {
	Name string
	Type Type
	Role Role
	// Host is the registration this member came from. Nil on prototype
	// members.
	Host *HostMember
}

// Method is a host method or extension method signature attached to an
// aggregate. The callable itself lives with the interpreter.
type Method struct {
	Name      string
	Type      *Function
	Extension bool
}

// Aggregate is a structural type with named members, synthesized from a
// host class.
type Aggregate struct {
	name    string
	members []*Member
	index   map[string]int
	methods []*Method
	// Host is the class this aggregate was registered from.
	Host *HostClass
}

func (a *Aggregate) Name() string   { return a.name }
func (a *Aggregate) Kind() Kind     { return KindAggregate }
func (a *Aggregate) String() string { return a.name }

// Members returns the members in declaration order.
func (a *Aggregate) Members() []*Member { return a.members }

// Member looks a member up by name.
func (a *Aggregate) Member(name string) (*Member, bool) {
	i, ok := a.index[name]
	if !ok {
		return nil, false
	}
	return a.members[i], true
}

// Methods returns the bound methods in binding order.
func (a *Aggregate) Methods() []*Method { return a.methods }

// Method looks a bound method up by name.
func (a *Aggregate) Method(name string) (*Method, bool) {
	for _, m := range a.methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

func (a *Aggregate) addMember(m *Member) bool {
	if _, dup := a.index[m.Name]; dup {
		return false
	}
	a.index[m.Name] = len(a.members)
	a.members = append(a.members, m)
	return true
}

// Prototype is a template type mirroring an aggregate. It is never
// instantiated directly; Origin names the aggregate it resolves to.
type Prototype struct {
	name    string
	members []*Member
	index   map[string]int
	Origin  *Aggregate
}

func (p *Prototype) Name() string   { return p.name }
func (p *Prototype) Kind() Kind     { return KindPrototype }
func (p *Prototype) String() string { return "prototype " + p.name }

// Members returns the members in declaration order.
func (p *Prototype) Members() []*Member { return p.members }

// Member looks a member up by name.
func (p *Prototype) Member(name string) (*Member, bool) {
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.members[i], true
}

// Enum is a closed set of named variants.
type Enum struct {
	name     string
	Variants []string
}

func (e *Enum) Name() string   { return e.name }
func (e *Enum) Kind() Kind     { return KindEnum }
func (e *Enum) String() string { return e.name }

// Has reports whether v is a variant of e.
func (e *Enum) Has(v string) bool {
	for _, x := range e.Variants {
		if x == v {
			return true
		}
	}
	return false
}

// List is a homogeneous list type.
type List struct {
	Elem Type
}

// ListOf builds a list type.
func ListOf(elem Type) *List { return &List{Elem: elem} }

func (l *List) Name() string   { return l.String() }
func (l *List) Kind() Kind     { return KindList }
func (l *List) String() string { return l.Elem.String() + "[]" }

// Memberful is implemented by aggregates and prototypes.
type Memberful interface {
	Type
	Members() []*Member
	Member(name string) (*Member, bool)
}

var (
	_ Memberful = (*Aggregate)(nil)
	_ Memberful = (*Prototype)(nil)
)

// Identical reports whether a and b denote the same type.
func Identical(a, b Type) bool {
	if a == b {
		return true
	}
	switch x := a.(type) {
	case *Function:
		y, ok := b.(*Function)
		if !ok || len(x.Params) != len(y.Params) || x.Variadic != y.Variadic {
			return false
		}
		for i := range x.Params {
			if !Identical(x.Params[i], y.Params[i]) {
				return false
			}
		}
		return Identical(x.Return, y.Return)
	case *List:
		y, ok := b.(*List)
		return ok && Identical(x.Elem, y.Elem)
	}
	return false
}

// AssignableTo reports whether a value of type src may be stored where dst
// is expected.
func AssignableTo(src, dst Type) bool {
	if dst == Any || Identical(src, dst) {
		return true
	}
	switch d := dst.(type) {
	case *Primitive:
		return d == Float && src == Int
	case *Aggregate:
		if src == None {
			return true
		}
		if p, ok := src.(*Prototype); ok {
			return p.Origin == d
		}
	case *Prototype:
		if src == None {
			return true
		}
		if p, ok := src.(*Prototype); ok {
			return p.Origin == d.Origin
		}
	case *Function:
		return src == None
	case *List:
		if src == None {
			return true
		}
		if s, ok := src.(*List); ok {
			return s.Elem == Any || AssignableTo(s.Elem, d.Elem)
		}
	case *Enum:
		return src == String
	}
	return false
}
