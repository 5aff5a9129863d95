package interp

import (
	"errors"
	"fmt"
	"sort"
)

// Receiver is the reserved slot holding the implicit receiver of an
// instance memory space. It is fixed when the space is constructed and
// cannot be bound through Define or Assign.
const Receiver = "this"

// ErrReservedName is returned when script code tries to bind Receiver.
var ErrReservedName = errors.New("reserved name " + Receiver)

// MemorySpace is runtime storage: one per activation, block, file and
// aggregate instance.
type MemorySpace struct {
	parent   *MemorySpace
	values   map[string]Value
	receiver Value
}

// NewMemorySpace creates a space. receiver may be nil for spaces that are
// not instance spaces.
func NewMemorySpace(parent *MemorySpace, receiver Value) *MemorySpace {
	return &MemorySpace{parent: parent, values: make(map[string]Value), receiver: receiver}
}

// Parent returns the enclosing space.
func (m *MemorySpace) Parent() *MemorySpace { return m.parent }

// Receiver returns the receiver bound at construction, or nil.
func (m *MemorySpace) Receiver() Value { return m.receiver }

// Define binds name in this space. It fails for the reserved receiver name
// and for names already defined here.
func (m *MemorySpace) Define(name string, v Value) error {
	if name == Receiver {
		return ErrReservedName
	}
	if _, exists := m.values[name]; exists {
		return fmt.Errorf("%s already defined", name)
	}
	m.values[name] = v
	return nil
}

// Local returns the value bound to name in this space only.
func (m *MemorySpace) Local(name string) (Value, bool) {
	if name == Receiver {
		return m.receiver, m.receiver != nil
	}
	v, ok := m.values[name]
	return v, ok
}

// Lookup walks the parent chain.
func (m *MemorySpace) Lookup(name string) (Value, bool) {
	for s := m; s != nil; s = s.parent {
		if v, ok := s.Local(name); ok {
			return v, true
		}
	}
	return nil, false
}

// Assign rebinds name in the nearest space that already defines it. It
// never creates a binding and returns false when no space defines name.
func (m *MemorySpace) Assign(name string, v Value) (bool, error) {
	if name == Receiver {
		return false, ErrReservedName
	}
	for s := m; s != nil; s = s.parent {
		if _, ok := s.values[name]; ok {
			s.values[name] = v
			return true, nil
		}
	}
	return false, nil
}

// Names returns the names defined locally, sorted.
func (m *MemorySpace) Names() []string {
	names := make([]string, 0, len(m.values))
	for n := range m.values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
