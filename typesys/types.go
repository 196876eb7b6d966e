package typesys

import "strings"

// ID is an opaque type identity token. Two types are the same type exactly when
// their IDs are equal.
type ID string

// Object is the root reference type every type converts to.
const Object ID = "object"

// String returns the type name.
func (id ID) String() string {
	return string(id)
}

// Kind classifies a type.
type Kind uint8

const (
	// KindClass is a reference type with constructors.
	KindClass Kind = iota
	// KindInterface is an abstract reference type.
	KindInterface
	// KindStruct is a value type.
	KindStruct
	// KindDelegate is a function type with a Signature.
	KindDelegate
	// KindTask is a task-like wrapper around an asynchronously produced Elem.
	KindTask
	// KindNullable wraps a value type Elem.
	KindNullable
)

// String returns the lower-case kind name used by manifests.
func (k Kind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindStruct:
		return "struct"
	case KindDelegate:
		return "delegate"
	case KindTask:
		return "task"
	case KindNullable:
		return "nullable"
	default:
		return "class"
	}
}

// ParseKind parses a manifest kind name. The empty string is a class.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "class":
		return KindClass, true
	case "interface":
		return KindInterface, true
	case "struct":
		return KindStruct, true
	case "delegate", "func":
		return KindDelegate, true
	case "task":
		return KindTask, true
	case "nullable":
		return KindNullable, true
	}
	return KindClass, false
}

// Access is the accessibility of a constructor or method.
type Access uint8

const (
	AccessPublic Access = iota
	AccessInternal
	AccessProtected
	AccessPrivate
)

// ParseAccess parses an accessibility name. The empty string is public.
func ParseAccess(s string) (Access, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "public":
		return AccessPublic, true
	case "internal":
		return AccessInternal, true
	case "protected":
		return AccessProtected, true
	case "private":
		return AccessPrivate, true
	}
	return AccessPublic, false
}

// RefKind is the by-reference kind of a parameter.
type RefKind uint8

const (
	RefNone RefKind = iota
	RefRef
	RefIn
	RefOut
)

// String returns the parameter modifier keyword.
func (r RefKind) String() string {
	switch r {
	case RefRef:
		return "ref"
	case RefIn:
		return "in"
	case RefOut:
		return "out"
	default:
		return ""
	}
}

// ParseRefKind parses a parameter modifier. The empty string means by value.
func ParseRefKind(s string) (RefKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return RefNone, true
	case "ref":
		return RefRef, true
	case "in":
		return RefIn, true
	case "out":
		return RefOut, true
	}
	return RefNone, false
}

// InitKind describes a required initialization hook run after construction.
type InitKind uint8

const (
	InitNone InitKind = iota
	InitSync
	InitAsync
)

// ParseInitKind parses an initialization kind name.
func ParseInitKind(s string) (InitKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return InitNone, true
	case "sync":
		return InitSync, true
	case "async":
		return InitAsync, true
	}
	return InitNone, false
}

// Param is a constructor or method parameter.
type Param struct {
	Name string
	Type ID
	Ref  RefKind
}

// Method describes a constructor, factory method or decorator factory method.
// Constructors leave Name and Return empty.
type Method struct {
	Name   string
	Params []Param
	Return ID
	Static bool
	Access Access
}

// IsPublic reports whether the method is publicly accessible.
func (m Method) IsPublic() bool {
	return m.Access == AccessPublic
}

// HasByRefParams reports whether any parameter is passed by reference.
func (m Method) HasByRefParams() bool {
	for _, p := range m.Params {
		if p.Ref != RefNone {
			return true
		}
	}
	return false
}

// Signature is the parameter list and return type of a delegate type.
type Signature struct {
	Params []ID
	Return ID
}

// FactorySpec marks an interface as a factory capability producing Produces.
type FactorySpec struct {
	Produces ID
	Async    bool
}

// DisposalCaps records which disposal capabilities a type implements.
type DisposalCaps struct {
	Sync  bool
	Async bool
}

// Any reports whether the type is disposable at all.
func (d DisposalCaps) Any() bool {
	return d.Sync || d.Async
}

// TypeInfo is everything the planner knows about a single type.
type TypeInfo struct {
	ID           ID
	Kind         Kind
	Public       bool
	Abstract     bool
	Unbound      bool
	Definition   ID
	Args         []ID
	Base         ID
	Interfaces   []ID
	Constructors []Method
	Elem         ID
	Signature    *Signature
	Factory      *FactorySpec
	Disposal     DisposalCaps
	Init         InitKind
}

// IsValueType reports whether instances are copied by value.
func (t *TypeInfo) IsValueType() bool {
	return t.Kind == KindStruct || t.Kind == KindNullable
}

// IsReferenceType reports whether instances are references.
func (t *TypeInfo) IsReferenceType() bool {
	return !t.IsValueType()
}

// IsAbstract reports whether the type cannot be instantiated directly.
func (t *TypeInfo) IsAbstract() bool {
	return t.Abstract || t.Kind == KindInterface
}

// IsGeneric reports whether the type is a generic instantiation or definition.
func (t *TypeInfo) IsGeneric() bool {
	return t.Unbound || len(t.Args) > 0
}

// PublicConstructors returns the publicly accessible constructors.
func (t *TypeInfo) PublicConstructors() []Method {
	var out []Method
	for _, c := range t.Constructors {
		if c.IsPublic() {
			out = append(out, c)
		}
	}
	return out
}
