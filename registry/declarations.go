// Package registry builds registration tables from module and container
// declarations.
package registry

import (
	"github.com/gocrud/injectgen/diag"
	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
)

// Surface supplies the declarations attached to a module or container type.
type Surface interface {
	Declarations(id typesys.ID) (*Declarations, bool)
}

// DisposalPreference is how a container wants to be torn down.
type DisposalPreference uint8

const (
	// DisposalAuto picks async teardown when anything needs it.
	DisposalAuto DisposalPreference = iota
	DisposalSync
	DisposalAsync
)

// Declarations is everything declared directly on one module or container.
type Declarations struct {
	Type      typesys.ID
	Container bool
	Disposal  DisposalPreference
	Location  diag.Location

	Registrations    []RegistrationDecl
	Factories        []FactoryDecl
	Imports          []ImportDecl
	FactoryMethods   []FactoryMethodDecl
	Decorators       []DecoratorDecl
	DecoratorMethods []DecoratorMethodDecl
	Instances        []InstanceDecl
	Roots            []RootDecl
}

// RegistrationDecl registers Type, optionally only as the As types.
type RegistrationDecl struct {
	Type     typesys.ID
	As       []typesys.ID
	Scope    source.Scope
	Location diag.Location
}

// FactoryDecl registers a factory type. The factory instance lives in Scope;
// values it produces live in TargetScope and are additionally exposed as As.
type FactoryDecl struct {
	Type        typesys.ID
	As          []typesys.ID
	Scope       source.Scope
	TargetScope source.Scope
	Location    diag.Location
}

// ImportDecl pulls in the table of Module except the Exclude types.
type ImportDecl struct {
	Module   typesys.ID
	Exclude  []typesys.ID
	Location diag.Location
}

// FactoryMethodDecl marks a method of the declaring type as a factory. A
// task-like return type makes it async.
type FactoryMethodDecl struct {
	Method   typesys.Method
	As       []typesys.ID
	Scope    source.Scope
	Location diag.Location
}

// DecoratorDecl wraps Decorates with the decorator type Type. Its constructor
// takes exactly one parameter of the decorated type.
type DecoratorDecl struct {
	Type      typesys.ID
	Decorates typesys.ID
	Dispose   bool
	Location  diag.Location
}

// DecoratorMethodDecl wraps the method's return type with a factory method
// that takes exactly one parameter of that type.
type DecoratorMethodDecl struct {
	Method   typesys.Method
	Dispose  bool
	Location diag.Location
}

// InstanceDecl exposes an existing field or property.
type InstanceDecl struct {
	Name     string
	Type     typesys.ID
	Property bool
	As       []typesys.ID
	Location diag.Location
}

// RootDecl is a type the container resolves for its callers.
type RootDecl struct {
	Type     typesys.ID
	Async    bool
	Location diag.Location
}

// MapSurface is a Surface over a map, used by the manifest loader and tests.
type MapSurface map[typesys.ID]*Declarations

func (m MapSurface) Declarations(id typesys.ID) (*Declarations, bool) {
	d, ok := m[id]
	return d, ok
}

// Add stores decls under its own type and returns the surface.
func (m MapSurface) Add(decls ...*Declarations) MapSurface {
	for _, d := range decls {
		m[d.Type] = d
	}
	return m
}
