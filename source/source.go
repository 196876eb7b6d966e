// Package source defines instance sources, the descriptors of how an instance
// of a type is produced, and the scope chain used to look them up.
//
// Sources are immutable once built. Identity matters: passes key their state
// on the source pointer, so the same registration reached through two paths
// is recognised as the same value.
package source

import (
	"fmt"

	"github.com/gocrud/injectgen/diag"
	"github.com/gocrud/injectgen/typesys"
)

// Source is one variant of the instance source tagged union.
type Source interface {
	// OfType is the type this source produces as seen by dependents.
	OfType() typesys.ID
	// Describe is a short human readable description used in diagnostics.
	Describe() string
	isSource()
}

// Registration constructs a concrete type through its chosen constructor.
type Registration struct {
	Type        typesys.ID
	Scope       Scope
	Constructor typesys.Method
	Init        typesys.InitKind
	Location    diag.Location
}

// FactoryRegistration produces Produces by invoking an instance of a factory.
// Resolving the factory and invoking it are separate steps.
type FactoryRegistration struct {
	Produces    typesys.ID
	FactoryType typesys.ID
	Factory     Source
	Scope       Scope
	Async       bool
	Location    diag.Location
}

// FactoryMethod calls a module or container declared method.
type FactoryMethod struct {
	Declaring typesys.ID
	Method    typesys.Method
	Produces  typesys.ID
	Scope     Scope
	Async     bool
	Location  diag.Location
}

// Delegate synthesises a function value whose body resolves Return. When Async
// is set the function returns a task of Return and its body may await.
type Delegate struct {
	Type   typesys.ID
	Params []typesys.ID
	Return typesys.ID
	Async  bool
}

// DecoratorSpec is a decorator declaration: either a decorator type whose
// constructor takes the decorated instance, or a decorator factory method.
type DecoratorSpec struct {
	Declaring typesys.ID
	Type      typesys.ID
	Decorates typesys.ID
	Method    typesys.Method
	Factory   bool
	Index     int
	Async     bool
	Init      typesys.InitKind
	Dispose   bool
	Location  diag.Location
}

// Decorator wraps Inner with Spec. Chains of decorators nest inside-out.
type Decorator struct {
	Spec  *DecoratorSpec
	Inner Source
}

// Instance is a pre-existing field or property of the container.
type Instance struct {
	Declaring typesys.ID
	Name      string
	Type      typesys.ID
	Property  bool
	Location  diag.Location
}

// Forwarded exposes Underlying as a different type (registered-as aliases,
// upcasts and nullable wrapping). It never gets its own variable.
type Forwarded struct {
	As         typesys.ID
	Underlying Source
}

// DelegateParameter is bound to an argument of an enclosing delegate.
type DelegateParameter struct {
	Type  typesys.ID
	Name  string
	Depth int
	Index int
}

func (*Registration) isSource()        {}
func (*FactoryRegistration) isSource() {}
func (*FactoryMethod) isSource()       {}
func (*Delegate) isSource()            {}
func (*Decorator) isSource()           {}
func (*Instance) isSource()            {}
func (*Forwarded) isSource()           {}
func (*DelegateParameter) isSource()   {}

func (s *Registration) OfType() typesys.ID        { return s.Type }
func (s *FactoryRegistration) OfType() typesys.ID { return s.Produces }
func (s *FactoryMethod) OfType() typesys.ID       { return s.Produces }
func (s *Delegate) OfType() typesys.ID            { return s.Type }
func (s *Decorator) OfType() typesys.ID           { return s.Spec.Decorates }
func (s *Instance) OfType() typesys.ID            { return s.Type }
func (s *Forwarded) OfType() typesys.ID           { return s.As }
func (s *DelegateParameter) OfType() typesys.ID   { return s.Type }

func (s *Registration) Describe() string {
	return fmt.Sprintf("registration %s (%s)", s.Type, s.Scope)
}

func (s *FactoryRegistration) Describe() string {
	return fmt.Sprintf("factory %s producing %s (%s)", s.FactoryType, s.Produces, s.Scope)
}

func (s *FactoryMethod) Describe() string {
	return fmt.Sprintf("factory method %s.%s (%s)", s.Declaring, s.Method.Name, s.Scope)
}

func (s *Delegate) Describe() string {
	return fmt.Sprintf("delegate %s", s.Type)
}

func (s *Decorator) Describe() string {
	if s.Spec.Factory {
		return fmt.Sprintf("decorator method %s.%s for %s", s.Spec.Declaring, s.Spec.Method.Name, s.Spec.Decorates)
	}
	return fmt.Sprintf("decorator %s for %s", s.Spec.Type, s.Spec.Decorates)
}

func (s *Instance) Describe() string {
	return fmt.Sprintf("instance %s.%s", s.Declaring, s.Name)
}

func (s *Forwarded) Describe() string {
	return fmt.Sprintf("%s as %s", s.Underlying.Describe(), s.As)
}

func (s *DelegateParameter) Describe() string {
	return fmt.Sprintf("delegate parameter %s %s", s.Name, s.Type)
}

// ScopeOf returns the scope of a source. Pass-through variants (instances and
// delegate parameters) have no scope and report false. Forwarded sources and
// decorators take the scope of what they wrap.
func ScopeOf(s Source) (Scope, bool) {
	switch v := s.(type) {
	case *Registration:
		return v.Scope, true
	case *FactoryRegistration:
		return v.Scope, true
	case *FactoryMethod:
		return v.Scope, true
	case *Delegate:
		return InstancePerResolution, true
	case *Decorator:
		return ScopeOf(v.Inner)
	case *Forwarded:
		return ScopeOf(v.Underlying)
	}
	return 0, false
}

// IsSingleInstance reports whether s is constructed once per container.
func IsSingleInstance(s Source) bool {
	sc, ok := ScopeOf(s)
	return ok && sc == SingleInstance
}

// Unwrap strips Forwarded layers.
func Unwrap(s Source) Source {
	for {
		f, ok := s.(*Forwarded)
		if !ok {
			return s
		}
		s = f.Underlying
	}
}

// RequiresAsync reports whether constructing s itself needs an await: an async
// factory, an async factory method, an async decorator, or a type that requires
// asynchronous initialization. Dependencies are not considered.
func RequiresAsync(s Source) bool {
	switch v := s.(type) {
	case *Registration:
		return v.Init == typesys.InitAsync
	case *FactoryRegistration:
		return v.Async
	case *FactoryMethod:
		return v.Async
	case *Decorator:
		return v.Spec.Async || v.Spec.Init == typesys.InitAsync
	}
	return false
}

// LocationOf returns the declaration site of s, if it has one.
func LocationOf(s Source) diag.Location {
	switch v := s.(type) {
	case *Registration:
		return v.Location
	case *FactoryRegistration:
		return v.Location
	case *FactoryMethod:
		return v.Location
	case *Decorator:
		return v.Spec.Location
	case *Instance:
		return v.Location
	case *Forwarded:
		return LocationOf(v.Underlying)
	}
	return diag.Location{}
}

// Dependency is one input of a source. Fixed is set when the input is a
// specific source rather than whatever the scope chain resolves Type to.
type Dependency struct {
	Name  string
	Type  typesys.ID
	Fixed Source
}

// Dependencies lists the direct inputs of s in parameter order. Delegates
// report none: their body is resolved in a nested scope.
func Dependencies(s Source) []Dependency {
	switch v := s.(type) {
	case *Registration:
		return params(v.Constructor.Params)
	case *FactoryMethod:
		return params(v.Method.Params)
	case *FactoryRegistration:
		return []Dependency{{Name: "factory", Type: v.FactoryType, Fixed: v.Factory}}
	case *Decorator:
		deps := params(v.Spec.Method.Params)
		if v.Spec.Index >= 0 && v.Spec.Index < len(deps) {
			deps[v.Spec.Index].Fixed = v.Inner
		}
		return deps
	case *Forwarded:
		return []Dependency{{Name: "value", Type: v.Underlying.OfType(), Fixed: v.Underlying}}
	}
	return nil
}

func params(ps []typesys.Param) []Dependency {
	deps := make([]Dependency, len(ps))
	for i, p := range ps {
		deps[i] = Dependency{Name: p.Name, Type: p.Type}
	}
	return deps
}
