package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gocrud/injectgen/diag"
	"github.com/gocrud/injectgen/registry"
	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
)

// Build turns the manifest into a type universe and the declaration surface
// of its modules. Every malformed entry is reported; the returned error joins
// all of them.
func (m *Manifest) Build() (*typesys.Universe, registry.MapSurface, error) {
	b := &builder{m: m, u: typesys.NewUniverse(), surface: registry.MapSurface{}}
	for i := range m.Types {
		b.defineType(&m.Types[i])
	}
	for i := range m.Modules {
		b.defineModule(&m.Modules[i])
	}
	if len(b.errs) > 0 {
		return nil, nil, errors.Join(b.errs...)
	}
	return b.u, b.surface, nil
}

type builder struct {
	m       *Manifest
	u       *typesys.Universe
	surface registry.MapSurface
	errs    []error
}

func (b *builder) fail(line int, format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf("%w: %s: %s", ErrInvalidManifest, b.loc(line), fmt.Sprintf(format, args...)))
}

func (b *builder) loc(line int) diag.Location {
	return diag.Location{File: b.m.Name, Line: line}
}

// ref resolves a type reference. "Task<X>" and "X?" name the task-like and
// nullable wrappers of X.
func (b *builder) ref(s string) typesys.ID {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ""
	case strings.HasPrefix(s, "Task<") && strings.HasSuffix(s, ">"):
		return b.u.TaskOf(b.ref(s[len("Task<") : len(s)-1]))
	case strings.HasSuffix(s, "?"):
		return b.u.NullableOf(b.ref(s[:len(s)-1]))
	}
	return typesys.ID(s)
}

func (b *builder) refs(ss []string) []typesys.ID {
	if len(ss) == 0 {
		return nil
	}
	out := make([]typesys.ID, len(ss))
	for i, s := range ss {
		out[i] = b.ref(s)
	}
	return out
}

func (b *builder) defineType(t *Type) {
	if t.ID == "" {
		b.fail(t.Line, "type without id")
		return
	}
	kind, ok := typesys.ParseKind(t.Kind)
	if !ok {
		b.fail(t.Line, "type %s: unknown kind %q", t.ID, t.Kind)
		return
	}
	initKind, ok := typesys.ParseInitKind(t.Init)
	if !ok {
		b.fail(t.Line, "type %s: unknown init %q", t.ID, t.Init)
		return
	}
	info := &typesys.TypeInfo{
		ID:         typesys.ID(t.ID),
		Kind:       kind,
		Public:     !t.Private,
		Abstract:   t.Abstract,
		Unbound:    t.Unbound,
		Definition: typesys.ID(t.Definition),
		Args:       b.refs(t.Args),
		Base:       b.ref(t.Base),
		Interfaces: b.refs(t.Interfaces),
		Elem:       b.ref(t.Elem),
		Init:       initKind,
	}
	for _, c := range t.Constructors {
		method, ok := b.method(c, t.Line)
		if !ok {
			return
		}
		info.Constructors = append(info.Constructors, method)
	}
	if t.Signature != nil {
		info.Signature = &typesys.Signature{Params: b.refs(t.Signature.Params), Return: b.ref(t.Signature.Returns)}
	}
	if t.Factory != nil {
		info.Factory = &typesys.FactorySpec{Produces: b.ref(t.Factory.Produces), Async: t.Factory.Async}
	}
	for _, d := range t.Dispose {
		switch strings.ToLower(d) {
		case "sync":
			info.Disposal.Sync = true
		case "async":
			info.Disposal.Async = true
		default:
			b.fail(t.Line, "type %s: unknown disposal %q", t.ID, d)
			return
		}
	}
	if err := b.u.Define(info); err != nil {
		b.fail(t.Line, "%v", err)
	}
}

func (b *builder) method(m Method, line int) (typesys.Method, bool) {
	access, ok := typesys.ParseAccess(m.Access)
	if !ok {
		b.fail(line, "method %s: unknown access %q", m.Name, m.Access)
		return typesys.Method{}, false
	}
	out := typesys.Method{Name: m.Name, Return: b.ref(m.Returns), Static: m.Static, Access: access}
	for _, p := range m.Params {
		rk, ok := typesys.ParseRefKind(p.Ref)
		if !ok {
			b.fail(line, "method %s: parameter %s: unknown modifier %q", m.Name, p.Name, p.Ref)
			return typesys.Method{}, false
		}
		out.Params = append(out.Params, typesys.Param{Name: p.Name, Type: b.ref(p.Type), Ref: rk})
	}
	return out, true
}

func (b *builder) scope(s string, line int) (source.Scope, bool) {
	sc, err := source.ParseScope(s)
	if err != nil {
		b.fail(line, "%v", err)
		return sc, false
	}
	return sc, true
}

func parseDisposal(s string) (registry.DisposalPreference, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return registry.DisposalAuto, true
	case "sync":
		return registry.DisposalSync, true
	case "async":
		return registry.DisposalAsync, true
	}
	return registry.DisposalAuto, false
}

func (b *builder) defineModule(mod *Module) {
	if mod.ID == "" {
		b.fail(mod.Line, "module without id")
		return
	}
	id := typesys.ID(mod.ID)
	if _, dup := b.surface[id]; dup {
		b.fail(mod.Line, "module %s declared twice", mod.ID)
		return
	}
	// Modules need not be listed among the types.
	if _, ok := b.u.Info(id); !ok {
		_ = b.u.Define(&typesys.TypeInfo{ID: id, Public: true})
	}
	disposal, ok := parseDisposal(mod.Disposal)
	if !ok {
		b.fail(mod.Line, "module %s: unknown disposal %q", mod.ID, mod.Disposal)
		return
	}

	d := &registry.Declarations{
		Type:      id,
		Container: mod.Container,
		Disposal:  disposal,
		Location:  diag.Location{File: b.m.Name, Line: mod.Line, Symbol: mod.ID},
	}
	for _, r := range mod.Registrations {
		if sc, ok := b.scope(r.Scope, r.Line); ok {
			d.Registrations = append(d.Registrations, registry.RegistrationDecl{
				Type: b.ref(r.Type), As: b.refs(r.As), Scope: sc, Location: b.loc(r.Line)})
		}
	}
	for _, f := range mod.Factories {
		sc, ok := b.scope(f.Scope, f.Line)
		if !ok {
			continue
		}
		target, ok := b.scope(f.TargetScope, f.Line)
		if !ok {
			continue
		}
		d.Factories = append(d.Factories, registry.FactoryDecl{
			Type: b.ref(f.Type), As: b.refs(f.As), Scope: sc, TargetScope: target, Location: b.loc(f.Line)})
	}
	for _, i := range mod.Imports {
		d.Imports = append(d.Imports, registry.ImportDecl{
			Module: b.ref(i.Module), Exclude: b.refs(i.Exclude), Location: b.loc(i.Line)})
	}
	for _, fm := range mod.FactoryMethods {
		sc, ok := b.scope(fm.Scope, fm.Line)
		if !ok {
			continue
		}
		method, ok := b.method(fm.Method, fm.Line)
		if !ok {
			continue
		}
		d.FactoryMethods = append(d.FactoryMethods, registry.FactoryMethodDecl{
			Method: method, As: b.refs(fm.As), Scope: sc, Location: b.loc(fm.Line)})
	}
	for _, dec := range mod.Decorators {
		d.Decorators = append(d.Decorators, registry.DecoratorDecl{
			Type: b.ref(dec.Type), Decorates: b.ref(dec.Decorates), Dispose: dec.Dispose, Location: b.loc(dec.Line)})
	}
	for _, dm := range mod.DecoratorMethods {
		method, ok := b.method(dm.Method, dm.Line)
		if !ok {
			continue
		}
		d.DecoratorMethods = append(d.DecoratorMethods, registry.DecoratorMethodDecl{
			Method: method, Dispose: dm.Dispose, Location: b.loc(dm.Line)})
	}
	for _, in := range mod.Instances {
		d.Instances = append(d.Instances, registry.InstanceDecl{
			Name: in.Name, Type: b.ref(in.Type), Property: in.Property, As: b.refs(in.As), Location: b.loc(in.Line)})
	}
	for _, r := range mod.Roots {
		d.Roots = append(d.Roots, registry.RootDecl{Type: b.ref(r.Type), Async: r.Async, Location: b.loc(r.Line)})
	}
	b.surface.Add(d)
}
