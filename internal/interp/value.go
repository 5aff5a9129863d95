package interp

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/jward/questscript/internal/types"
)

// Value is a runtime value. The set of implementations is closed.
type Value interface {
	Type() types.Type
	String() string
	value()
}

// Primitive holds an int64, float64, bool or string.
type Primitive struct {
	T   *types.Primitive
	Raw any
}

func NewInt(v int64) Primitive     { return Primitive{T: types.Int, Raw: v} }
func NewFloat(v float64) Primitive { return Primitive{T: types.Float, Raw: v} }
func NewBool(v bool) Primitive     { return Primitive{T: types.Bool, Raw: v} }
func NewString(v string) Primitive { return Primitive{T: types.String, Raw: v} }

func (p Primitive) Type() types.Type { return p.T }
func (Primitive) value()             {}

func (p Primitive) String() string {
	switch v := p.Raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the raw value of an int primitive.
func (p Primitive) Int() (int64, bool) {
	v, ok := p.Raw.(int64)
	return v, ok
}

// Float returns the value of an int or float primitive as a float64.
func (p Primitive) Float() (float64, bool) {
	switch v := p.Raw.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

type noneValue struct{}

func (noneValue) Type() types.Type { return types.None }
func (noneValue) String() string   { return "none" }
func (noneValue) value()           {}

// None is the absent value.
var None Value = noneValue{}

// Aggregate is a script-built value of an aggregate or prototype type. Its
// members live in a MemorySpace whose receiver slot is the aggregate itself.
type Aggregate struct {
	typ      types.Memberful
	space    *MemorySpace
	assigned map[string]bool
}

// NewAggregate builds an aggregate with every member set to its type's
// default value. Defaults do not count as assigned.
func NewAggregate(t types.Memberful) *Aggregate {
	a := &Aggregate{typ: t, assigned: make(map[string]bool)}
	a.space = NewMemorySpace(nil, a)
	for _, m := range t.Members() {
		a.space.values[m.Name] = defaultValue(m.Type)
	}
	return a
}

func (a *Aggregate) Type() types.Type { return a.typ }
func (*Aggregate) value()             {}

// Space returns the aggregate's instance memory space.
func (a *Aggregate) Space() *MemorySpace { return a.space }

// Get reads a member.
func (a *Aggregate) Get(name string) (Value, bool) {
	if _, ok := a.typ.Member(name); !ok {
		return nil, false
	}
	return a.space.Local(name)
}

// Set writes a member and marks it assigned. The value must be assignable
// to the member type.
func (a *Aggregate) Set(name string, v Value) error {
	m, ok := a.typ.Member(name)
	if !ok {
		return fmt.Errorf("%s has no member %s", a.typ.Name(), name)
	}
	if !types.AssignableTo(v.Type(), m.Type) {
		return &TypeMismatchError{Kind: ArgType, Name: a.typ.Name() + "." + name, Index: -1, Want: m.Type.String(), Got: v.Type().String()}
	}
	a.space.values[name] = coerce(v, m.Type)
	a.assigned[name] = true
	return nil
}

// Assigned reports whether name was explicitly set.
func (a *Aggregate) Assigned(name string) bool { return a.assigned[name] }

// Clone copies the aggregate with the same assigned members under type t,
// which must share the member set.
func (a *Aggregate) Clone(t types.Memberful) *Aggregate {
	c := NewAggregate(t)
	for name := range a.assigned {
		c.space.values[name] = a.space.values[name]
		c.assigned[name] = true
	}
	return c
}

func (a *Aggregate) String() string {
	var b strings.Builder
	b.WriteString(a.typ.Name())
	b.WriteString("{")
	first := true
	for _, m := range a.typ.Members() {
		if !a.assigned[m.Name] {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		v := a.space.values[m.Name]
		b.WriteString(m.Name + ": " + v.String())
	}
	b.WriteString("}")
	return b.String()
}

// Host wraps a live host object. Class is nil for objects whose type the
// core does not know.
type Host struct {
	Class  *types.Aggregate
	Object any
}

func (h *Host) Type() types.Type {
	if h.Class == nil {
		return types.Any
	}
	return h.Class
}

func (h *Host) String() string {
	if h.Class == nil {
		return fmt.Sprintf("host(%v)", h.Object)
	}
	return fmt.Sprintf("%s(%v)", h.Class.Name(), h.Object)
}

func (*Host) value() {}

// CallableRef is a first-class reference to a callable.
type CallableRef struct {
	C Callable
}

func (r *CallableRef) Type() types.Type { return r.C.Signature() }
func (r *CallableRef) String() string   { return "func " + r.C.CallableName() }
func (*CallableRef) value()             {}

// List is an ordered list of values sharing an element type.
type List struct {
	Elem  types.Type
	Items []Value
}

func (l *List) Type() types.Type { return types.ListOf(l.Elem) }
func (*List) value()             {}

func (l *List) String() string {
	parts := make([]string, len(l.Items))
	for i, it := range l.Items {
		parts[i] = it.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// EnumValue is one variant of an enum.
type EnumValue struct {
	T       *types.Enum
	Variant string
}

func (e EnumValue) Type() types.Type { return e.T }
func (e EnumValue) String() string   { return e.Variant }
func (EnumValue) value()             {}

func defaultValue(t types.Type) Value {
	switch t := t.(type) {
	case *types.Primitive:
		switch t {
		case types.Int:
			return NewInt(0)
		case types.Float:
			return NewFloat(0)
		case types.Bool:
			return NewBool(false)
		case types.String:
			return NewString("")
		}
	case *types.List:
		return &List{Elem: t.Elem}
	case *types.Enum:
		return EnumValue{T: t, Variant: t.Variants[0]}
	}
	return None
}

// coerce widens ints where a float is expected and strings where an enum is
// expected. Other values pass through.
func coerce(v Value, t types.Type) Value {
	p, ok := v.(Primitive)
	if !ok {
		return v
	}
	switch t := t.(type) {
	case *types.Primitive:
		if t == types.Float {
			if i, ok := p.Int(); ok {
				return NewFloat(float64(i))
			}
		}
	case *types.Enum:
		if s, ok := p.Raw.(string); ok && t.Has(s) {
			return EnumValue{T: t, Variant: s}
		}
	}
	return v
}

// Truthy reports the boolean interpretation of v: none, false, zero
// numbers, empty strings, empty lists and empty aggregates are false.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case Primitive:
		switch raw := v.Raw.(type) {
		case bool:
			return raw
		case int64:
			return raw != 0
		case float64:
			return raw != 0
		case string:
			return raw != ""
		}
	case *List:
		return len(v.Items) > 0
	case *Aggregate:
		return len(v.typ.Members()) > 0
	case *Host:
		return v.Object != nil
	case *CallableRef, EnumValue:
		return true
	}
	return false
}

// ToHost translates a value without evaluation: primitives become their
// raw Go values, none becomes nil, host values unwrap, lists become []any
// and enums their variant name. Aggregates and callable references are
// returned as they are; Interpreter.HostValue translates those too.
func ToHost(v Value) any {
	switch v := v.(type) {
	case Primitive:
		return v.Raw
	case noneValue:
		return nil
	case *Host:
		return v.Object
	case *List:
		out := make([]any, len(v.Items))
		for i, it := range v.Items {
			out[i] = ToHost(it)
		}
		return out
	case EnumValue:
		return v.Variant
	}
	return v
}

// FromHost wraps a host value as a Value of static type t.
func FromHost(x any, t types.Type) (Value, error) {
	if v, ok := x.(Value); ok {
		return v, nil
	}
	if x == nil {
		return None, nil
	}
	switch t := t.(type) {
	case *types.Primitive:
		if t == types.Any {
			return fromDynamic(x), nil
		}
		if t == types.None {
			return None, nil
		}
		if v, ok := primitiveOf(x, t); ok {
			return v, nil
		}
		return nil, fmt.Errorf("host value %T is not %s", x, t)
	case *types.Aggregate:
		return &Host{Class: t, Object: x}, nil
	case *types.Enum:
		s, ok := x.(string)
		if !ok || !t.Has(s) {
			return nil, fmt.Errorf("host value %v is not a variant of %s", x, t)
		}
		return EnumValue{T: t, Variant: s}, nil
	case *types.List:
		items, ok := x.([]any)
		if !ok {
			return nil, fmt.Errorf("host value %T is not a list", x)
		}
		l := &List{Elem: t.Elem}
		for _, it := range items {
			v, err := FromHost(it, t.Elem)
			if err != nil {
				return nil, err
			}
			l.Items = append(l.Items, v)
		}
		return l, nil
	}
	return fromDynamic(x), nil
}

func primitiveOf(x any, t *types.Primitive) (Value, bool) {
	switch t {
	case types.Int:
		switch n := x.(type) {
		case int:
			return NewInt(int64(n)), true
		case int32:
			return NewInt(int64(n)), true
		case int64:
			return NewInt(n), true
		}
	case types.Float:
		switch n := x.(type) {
		case float64:
			return NewFloat(n), true
		case float32:
			return NewFloat(float64(n)), true
		case int:
			return NewFloat(float64(n)), true
		case int64:
			return NewFloat(float64(n)), true
		}
	case types.Bool:
		if b, ok := x.(bool); ok {
			return NewBool(b), true
		}
	case types.String:
		if s, ok := x.(string); ok {
			return NewString(s), true
		}
	}
	return nil, false
}

func fromDynamic(x any) Value {
	switch n := x.(type) {
	case int, int32, int64:
		v, _ := primitiveOf(n, types.Int)
		return v
	case float32, float64:
		v, _ := primitiveOf(n, types.Float)
		return v
	case bool:
		return NewBool(n)
	case string:
		return NewString(n)
	case []any:
		l := &List{Elem: types.Any}
		for _, it := range n {
			l.Items = append(l.Items, fromDynamic(it))
		}
		return l
	}
	return &Host{Object: x}
}

// Equal compares two values. Numbers compare across int and float, host
// values by object identity.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Primitive:
		y, ok := b.(Primitive)
		if !ok {
			return false
		}
		if xf, ok := x.Float(); ok {
			yf, ok := y.Float()
			return ok && xf == yf
		}
		return x.Raw == y.Raw
	case noneValue:
		_, ok := b.(noneValue)
		return ok
	case *Host:
		y, ok := b.(*Host)
		return ok && sameObject(x.Object, y.Object)
	case EnumValue:
		y, ok := b.(EnumValue)
		return ok && x.T == y.T && x.Variant == y.Variant
	case *List:
		y, ok := b.(*List)
		if !ok || len(x.Items) != len(y.Items) {
			return false
		}
		for i := range x.Items {
			if !Equal(x.Items[i], y.Items[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}

// sameObject compares host objects with ==. Maps and slices of the same
// type are equal only when they share storage; other values of types
// that are not comparable are never equal.
func sameObject(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Comparable() && vb.Comparable() {
		return a == b
	}
	switch va.Kind() {
	case reflect.Map:
		return va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Slice:
		return va.UnsafePointer() == vb.UnsafePointer() && va.Len() == vb.Len()
	}
	return false
}
