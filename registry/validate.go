package registry

import (
	"github.com/gocrud/injectgen/diag"
	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
)

// concrete checks that id can be constructed directly in scope.
func (b *Builder) concrete(id typesys.ID, scope source.Scope, loc diag.Location) (*typesys.TypeInfo, bool) {
	info, ok := b.oracle.Info(id)
	if !ok {
		diag.Report(b.sink, diag.UnknownType, loc, "unknown type %s", id)
		return nil, false
	}
	if info.Unbound {
		diag.Report(b.sink, diag.UnboundGeneric, loc, "unbound generic type %s cannot be registered", id)
		return nil, false
	}
	if !info.Public {
		diag.Report(b.sink, diag.TypeNotPublic, loc, "%s is not public", id)
		return nil, false
	}
	if info.IsAbstract() {
		diag.Report(b.sink, diag.AbstractRegistration, loc, "%s is abstract and cannot be registered as itself", id)
		return nil, false
	}
	if !b.scopeAllowed(id, scope, loc) {
		return nil, false
	}
	return info, true
}

// scopeAllowed rejects value types with SingleInstance scope.
func (b *Builder) scopeAllowed(id typesys.ID, scope source.Scope, loc diag.Location) bool {
	if scope != source.SingleInstance {
		return true
	}
	info, ok := b.oracle.Info(id)
	if ok && info.IsValueType() {
		diag.Report(b.sink, diag.StructSingleInstance, loc, "struct %s cannot be registered as SingleInstance", id)
		return false
	}
	return true
}

// constructor picks the constructor of info. A single public constructor is
// used as is; with several, the parameterless ones are ignored and exactly one
// must remain.
func (b *Builder) constructor(info *typesys.TypeInfo, loc diag.Location) (typesys.Method, bool) {
	public := info.PublicConstructors()
	var chosen typesys.Method
	switch len(public) {
	case 0:
		diag.Report(b.sink, diag.NoAccessibleConstructor, loc, "%s has no public constructor", info.ID)
		return typesys.Method{}, false
	case 1:
		chosen = public[0]
	default:
		var withParams []typesys.Method
		for _, c := range public {
			if len(c.Params) > 0 {
				withParams = append(withParams, c)
			}
		}
		if len(withParams) != 1 {
			diag.Report(b.sink, diag.AmbiguousConstructors, loc,
				"%s has %d public constructors with parameters", info.ID, len(withParams))
			return typesys.Method{}, false
		}
		chosen = withParams[0]
	}
	if chosen.HasByRefParams() {
		diag.Report(b.sink, diag.ByRefParameter, loc, "constructor of %s has a by-ref parameter", info.ID)
		return typesys.Method{}, false
	}
	return chosen, true
}

// registeredAs validates the registered-as list of id. An empty list means id
// itself. Every failing pair is reported before giving up.
func (b *Builder) registeredAs(id typesys.ID, as []typesys.ID, loc diag.Location) ([]typesys.ID, bool) {
	if len(as) == 0 {
		return []typesys.ID{id}, true
	}
	ok := true
	for _, a := range as {
		info, known := b.oracle.Info(a)
		if !known {
			diag.Report(b.sink, diag.UnknownType, loc, "unknown type %s", a)
			ok = false
			continue
		}
		if !info.Public {
			diag.Report(b.sink, diag.TypeNotPublic, loc, "%s is not public", a)
			ok = false
			continue
		}
		if info.Unbound {
			diag.Report(b.sink, diag.UnboundGeneric, loc, "unbound generic type %s cannot be registered", a)
			ok = false
			continue
		}
		if conv := b.oracle.Conversion(id, a); !conv.Exists() {
			diag.Report(b.sink, diag.InvalidConversion, loc, "%s has no conversion to %s", id, a)
			ok = false
		}
	}
	return as, ok
}
