package types

import "fmt"

// System is the type registry of one loaded program.
type System struct {
	byName  map[string]Type
	classes map[*HostClass]*Aggregate
	protos  map[*Aggregate]*Prototype
	// script prototypes defined by name, tracked so reloads can forget them
	defined map[string]*Prototype
}

// NewSystem returns a registry holding the built-in primitives.
func NewSystem() *System {
	s := &System{
		byName:  make(map[string]Type),
		classes: make(map[*HostClass]*Aggregate),
		protos:  make(map[*Aggregate]*Prototype),
		defined: make(map[string]*Prototype),
	}
	for _, p := range Primitives {
		if p == Any {
			continue
		}
		s.byName[p.name] = p
	}
	return s
}

// Lookup resolves a script-visible type name.
func (s *System) Lookup(name string) (Type, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Aggregates returns every registered aggregate, in no particular order.
func (s *System) Aggregates() []*Aggregate {
	out := make([]*Aggregate, 0, len(s.classes))
	for _, a := range s.classes {
		out = append(out, a)
	}
	return out
}

// Enums returns every registered enum, in no particular order.
func (s *System) Enums() []*Enum {
	var out []*Enum
	for _, t := range s.byName {
		if e, ok := t.(*Enum); ok {
			out = append(out, e)
		}
	}
	return out
}

// AggregateOf returns the aggregate registered for c.
func (s *System) AggregateOf(c *HostClass) (*Aggregate, bool) {
	a, ok := s.classes[c]
	return a, ok
}

// RegisterHostClass produces the aggregate for c. Member types are derived
// recursively; a class that is already registered (or is being registered
// further up the stack) yields its cached aggregate, so registering the
// same class twice returns the identical *Aggregate.
func (s *System) RegisterHostClass(c *HostClass) (*Aggregate, error) {
	if c == nil {
		return nil, &RegistrationError{Class: "<nil>", Reason: "nil host class"}
	}
	if a, ok := s.classes[c]; ok {
		return a, nil
	}
	if c.Name == "" {
		return nil, &RegistrationError{Class: "<unnamed>", Reason: "empty class name"}
	}
	if _, taken := s.byName[c.Name]; taken {
		return nil, &RegistrationError{Class: c.Name, Reason: "name already registered"}
	}
	if c.New == nil {
		return nil, &RegistrationError{Class: c.Name, Reason: "missing constructor"}
	}

	agg := &Aggregate{name: c.Name, index: make(map[string]int), Host: c}
	s.classes[c] = agg
	s.byName[c.Name] = agg

	for i := range c.Members {
		hm := &c.Members[i]
		typ, err := s.memberType(c, hm)
		if err == nil && !agg.addMember(&Member{Name: hm.Name, Type: typ, Role: hm.Role, Host: hm}) {
			err = &RegistrationError{Class: c.Name, Member: hm.Name, Reason: "duplicate member"}
		}
		if err != nil {
			delete(s.classes, c)
			delete(s.byName, c.Name)
			return nil, err
		}
	}
	return agg, nil
}

func (s *System) memberType(c *HostClass, hm *HostMember) (Type, error) {
	fail := func(reason string) error {
		return &RegistrationError{Class: c.Name, Member: hm.Name, Reason: reason}
	}
	if hm.Name == "" {
		return nil, fail("empty member name")
	}
	if hm.Type == nil {
		return nil, fail("missing member type")
	}
	typ, err := s.Resolve(hm.Type)
	if err != nil {
		return nil, fail(err.Error())
	}
	switch hm.Role {
	case Data:
		if hm.Get == nil || hm.Set == nil {
			return nil, fail("data member needs Get and Set")
		}
	case Attachable:
		if _, ok := typ.(*Aggregate); !ok {
			return nil, fail("attachable member must have a host class type, got " + typ.String())
		}
		if c.Compose == nil {
			return nil, fail("attachable member on a class without Compose")
		}
	case Callback:
		if _, ok := typ.(*Function); !ok {
			return nil, fail("callback member must have a function type, got " + typ.String())
		}
		if hm.Set == nil {
			return nil, fail("callback member needs Set")
		}
	default:
		return nil, fail(fmt.Sprintf("unknown role %d", hm.Role))
	}
	return typ, nil
}

// Resolve turns a host type reference into a Type, registering host classes
// and enums it mentions.
func (s *System) Resolve(ref TypeRef) (Type, error) {
	switch r := ref.(type) {
	case *Primitive:
		return r, nil
	case *HostClass:
		return s.RegisterHostClass(r)
	case *Enum:
		if t, ok := s.byName[r.name]; ok && t != Type(r) {
			return nil, fmt.Errorf("enum %s clashes with an existing type", r.name)
		}
		s.byName[r.name] = r
		return r, nil
	case hostList:
		elem, err := s.Resolve(r.elem)
		if err != nil {
			return nil, err
		}
		return ListOf(elem), nil
	case hostFunc:
		fn := &Function{Return: None}
		if r.ret != nil {
			ret, err := s.Resolve(r.ret)
			if err != nil {
				return nil, err
			}
			fn.Return = ret
		}
		for _, p := range r.params {
			pt, err := s.Resolve(p)
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, pt)
		}
		return fn, nil
	}
	return nil, fmt.Errorf("unsupported type reference %T", ref)
}

// RegisterEnum adds a named enum.
func (s *System) RegisterEnum(name string, variants ...string) (*Enum, error) {
	if name == "" || len(variants) == 0 {
		return nil, &RegistrationError{Class: name, Reason: "enum needs a name and variants"}
	}
	if _, taken := s.byName[name]; taken {
		return nil, &RegistrationError{Class: name, Reason: "name already registered"}
	}
	e := &Enum{name: name, Variants: variants}
	s.byName[name] = e
	return e, nil
}

// NewEnum builds an enum for use in host registrations. It is registered
// under its name when a class referencing it is registered.
func NewEnum(name string, variants ...string) *Enum {
	return &Enum{name: name, Variants: variants}
}

// RegisterPrototype returns the template type mirroring agg. Members whose
// type is an aggregate become that aggregate's prototype. The result is
// cached per aggregate.
func (s *System) RegisterPrototype(agg *Aggregate) *Prototype {
	if p, ok := s.protos[agg]; ok {
		return p
	}
	p := &Prototype{name: agg.name, index: make(map[string]int), Origin: agg}
	s.protos[agg] = p
	for _, m := range agg.members {
		typ := m.Type
		if inner, ok := typ.(*Aggregate); ok {
			typ = s.RegisterPrototype(inner)
		}
		p.index[m.Name] = len(p.members)
		p.members = append(p.members, &Member{Name: m.Name, Type: typ, Role: m.Role})
	}
	return p
}

// DefinePrototype registers a named script prototype resolving to origin.
// Redefining a name with the same origin returns the existing prototype.
func (s *System) DefinePrototype(name string, origin *Aggregate) (*Prototype, error) {
	if origin == nil {
		return nil, fmt.Errorf("types: prototype %s: no origin", name)
	}
	if p, ok := s.defined[name]; ok {
		if p.Origin != origin {
			return nil, fmt.Errorf("types: prototype %s already defined for %s", name, p.Origin.name)
		}
		return p, nil
	}
	if _, taken := s.byName[name]; taken {
		return nil, fmt.Errorf("types: prototype %s: name already registered", name)
	}
	base := s.RegisterPrototype(origin)
	p := &Prototype{name: name, members: base.members, index: base.index, Origin: origin}
	s.defined[name] = p
	s.byName[name] = p
	return p, nil
}

// Forget removes a script prototype so a reloaded file can define it again.
// Host types cannot be forgotten.
func (s *System) Forget(name string) bool {
	if _, ok := s.defined[name]; !ok {
		return false
	}
	delete(s.defined, name)
	delete(s.byName, name)
	return true
}

// BindMethod attaches a method signature to agg. Extension methods come
// from hosts that do not own the type.
func (s *System) BindMethod(agg *Aggregate, name string, fn *Function, extension bool) error {
	if agg == nil || fn == nil || name == "" {
		return &RegistrationError{Class: "<method>", Member: name, Reason: "incomplete method binding"}
	}
	if _, ok := agg.Member(name); ok {
		return &RegistrationError{Class: agg.name, Member: name, Reason: "method name clashes with a member"}
	}
	if _, ok := agg.Method(name); ok {
		return &RegistrationError{Class: agg.name, Member: name, Reason: "method already bound"}
	}
	agg.methods = append(agg.methods, &Method{Name: name, Type: fn, Extension: extension})
	return nil
}
