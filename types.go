package questscript

import (
	"github.com/jward/questscript/internal/diagnostics"
	"github.com/jward/questscript/internal/interp"
	"github.com/jward/questscript/internal/runtime"
	"github.com/jward/questscript/internal/store"
	"github.com/jward/questscript/internal/types"
)

// Public aliases for internal types used in the Engine API. These are Go
// type aliases (=), identical to the internal types at compile time.

type (
	HostClass            = types.HostClass
	HostMember           = types.HostMember
	HostCallback         = types.HostCallback
	InstantiationContext = types.InstantiationContext
	TypeRef              = types.TypeRef
	Role                 = types.Role
	Enum                 = types.Enum
	RegistrationError    = types.RegistrationError

	TypeMismatchError = interp.TypeMismatchError
	RuntimeError      = interp.RuntimeError
	NativeFunc        = interp.NativeFunc
	MethodFunc        = interp.MethodFunc
	Value             = interp.Value

	Diagnostic = diagnostics.Diagnostic
	Location   = diagnostics.Location

	ScriptNative = runtime.ScriptNative

	Store       = store.Store
	IndexedFile = store.File
)

// Member roles.
const (
	Data       = types.Data
	Attachable = types.Attachable
	Callback   = types.Callback
)

// ContextOwner is the instantiation context name of the object being built.
const ContextOwner = types.ContextOwner

// Built-in types usable in registrations.
var (
	Int    = types.Int
	Float  = types.Float
	Bool   = types.Bool
	String = types.String
	None   = types.None
	Any    = types.Any
)

// ErrNotAttachable is wrapped by Compose implementations to reject a part.
var ErrNotAttachable = types.ErrNotAttachable

// HostList refers to a list of elem in a registration.
func HostList(elem TypeRef) TypeRef { return types.HostList(elem) }

// HostFunc refers to a function type in a registration. A nil ret means None.
func HostFunc(ret TypeRef, params ...TypeRef) TypeRef { return types.HostFunc(ret, params...) }

// NewEnum declares an enum for use as a member type.
func NewEnum(name string, variants ...string) *Enum { return types.NewEnum(name, variants...) }
