package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAttachable is returned (wrapped) by a HostClass.Compose when the
// part cannot be attached to the owner. Instantiation skips such members.
var ErrNotAttachable = errors.New("not attachable")

// ContextOwner is the context name under which instantiation exposes the
// host object currently being built.
const ContextOwner = "owner"

// InstantiationContext gives host constructors access to the objects being
// built around them.
type InstantiationContext interface {
	// Lookup returns the innermost context value bound to name.
	Lookup(name string) (any, bool)
}

// HostCallback is what a Callback member receives: a script function
// wrapped so the host can call it with host values.
type HostCallback func(ctx context.Context, args ...any) (any, error)

// TypeRef names a member type in a host registration. It is implemented by
// the built-in primitives, *HostClass, *Enum and the results of HostList and
// HostFunc.
type TypeRef interface {
	typeRef()
}

func (*Primitive) typeRef() {}
func (*HostClass) typeRef() {}
func (*Enum) typeRef()      {}

type hostList struct{ elem TypeRef }

func (hostList) typeRef() {}

// HostList refers to a list of elem.
func HostList(elem TypeRef) TypeRef { return hostList{elem: elem} }

type hostFunc struct {
	ret    TypeRef
	params []TypeRef
}

func (hostFunc) typeRef() {}

// HostFunc refers to a function type. A nil ret means None.
func HostFunc(ret TypeRef, params ...TypeRef) TypeRef {
	return hostFunc{ret: ret, params: params}
}

// HostMember is one registered member of a host class.
type HostMember struct {
	Name string
	Type TypeRef
	Role Role
	// Get reads the member from a host object. Required for Data members.
	Get func(obj any) any
	// Set writes the member. Required for Data and Callback members.
	Set func(obj any, v any) error
}

// HostClass is the explicit registration of a host type. Registration
// produces an Aggregate whose members mirror Members.
type HostClass struct {
	// Name is the script-visible type name.
	Name string
	// New constructs an empty host object.
	New func(ic InstantiationContext) any
	// Members in declaration order.
	Members []HostMember
	// Compose attaches part, a host object built for an Attachable member,
	// to owner. Errors wrapping ErrNotAttachable are skipped.
	Compose func(owner, part any) error
}

// RegistrationError reports a host class or closure that violates the
// registration contract. It is fatal at startup.
type RegistrationError struct {
	Class  string
	Member string
	Reason string
}

func (e *RegistrationError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("register %s.%s: %s", e.Class, e.Member, e.Reason)
	}
	return fmt.Sprintf("register %s: %s", e.Class, e.Reason)
}
