package source

import (
	"slices"

	"github.com/gocrud/injectgen/typesys"
)

// Equivalent reports whether a and b produce the same instance the same way.
// Declaration sites are ignored, so one type registered identically by two
// modules is not a conflict. Equivalent sources are still distinct values;
// passes keep keying on the pointer.
func Equivalent(a, b Source) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	switch x := a.(type) {
	case *Registration:
		y, ok := b.(*Registration)
		return ok && x.Type == y.Type && x.Scope == y.Scope && x.Init == y.Init &&
			sameMethod(x.Constructor, y.Constructor)
	case *FactoryRegistration:
		y, ok := b.(*FactoryRegistration)
		return ok && x.Produces == y.Produces && x.FactoryType == y.FactoryType &&
			x.Scope == y.Scope && x.Async == y.Async && Equivalent(x.Factory, y.Factory)
	case *FactoryMethod:
		y, ok := b.(*FactoryMethod)
		return ok && x.Declaring == y.Declaring && x.Produces == y.Produces &&
			x.Scope == y.Scope && x.Async == y.Async && sameMethod(x.Method, y.Method)
	case *Delegate:
		y, ok := b.(*Delegate)
		return ok && x.Type == y.Type && x.Return == y.Return && x.Async == y.Async &&
			slices.Equal(x.Params, y.Params)
	case *Decorator:
		y, ok := b.(*Decorator)
		return ok && EquivalentDecorators(x.Spec, y.Spec) && Equivalent(x.Inner, y.Inner)
	case *Instance:
		y, ok := b.(*Instance)
		return ok && x.Declaring == y.Declaring && x.Name == y.Name && x.Type == y.Type &&
			x.Property == y.Property
	case *Forwarded:
		y, ok := b.(*Forwarded)
		return ok && x.As == y.As && Equivalent(x.Underlying, y.Underlying)
	case *DelegateParameter:
		y, ok := b.(*DelegateParameter)
		return ok && *x == *y
	}
	return false
}

// EquivalentDecorators is Equivalent for decorator declarations.
func EquivalentDecorators(a, b *DecoratorSpec) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Declaring == b.Declaring && a.Type == b.Type && a.Decorates == b.Decorates &&
		a.Factory == b.Factory && a.Index == b.Index && a.Async == b.Async &&
		a.Init == b.Init && a.Dispose == b.Dispose && sameMethod(a.Method, b.Method)
}

func sameMethod(a, b typesys.Method) bool {
	return a.Name == b.Name && a.Return == b.Return && a.Static == b.Static &&
		a.Access == b.Access && slices.Equal(a.Params, b.Params)
}
