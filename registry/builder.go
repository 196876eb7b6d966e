package registry

import (
	"slices"

	"github.com/gocrud/injectgen/diag"
	"github.com/gocrud/injectgen/logging"
	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
)

// Builder turns declarations into registration tables. Tables are memoised per
// module, so a module imported along two paths contributes the same sources
// and is never reported as conflicting with itself.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	decls   Surface
	oracle  typesys.Oracle
	sink    diag.Sink
	logger  logging.Logger

	tables    map[typesys.ID]*Table
	stack     []typesys.ID
	recursive map[typesys.ID]bool
}

// NewBuilder creates a builder reporting problems to sink.
func NewBuilder(decls Surface, oracle typesys.Oracle, sink diag.Sink, opts ...Option) *Builder {
	b := &Builder{
		decls:     decls,
		oracle:    oracle,
		sink:      sink,
		logger:    logging.Nop(),
		tables:    make(map[typesys.ID]*Table),
		recursive: make(map[typesys.ID]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithCategory("registry")
	return b
}

// GetRegistrations returns the table for a module or container. Unknown types
// and recursive modules yield an empty table.
func (b *Builder) GetRegistrations(id typesys.ID) *Table {
	if t, ok := b.tables[id]; ok {
		return t
	}
	decls, ok := b.decls.Declarations(id)
	if !ok {
		t := newTable(id, nil)
		b.tables[id] = t
		return t
	}

	b.stack = append(b.stack, id)
	t := b.build(decls)
	b.stack = b.stack[:len(b.stack)-1]

	if b.recursive[id] {
		t = newTable(id, decls)
	}
	b.tables[id] = t
	b.logger.Debug("registration table built",
		logging.Field{Key: "module", Value: id},
		logging.Field{Key: "entries", Value: t.Len()})
	return t
}

type directEntry struct {
	src source.Source
	loc diag.Location
}

type inheritedEntry struct {
	src source.Source
	loc diag.Location
}

func (b *Builder) build(decls *Declarations) *Table {
	t := newTable(decls.Type, decls)

	direct := make(map[typesys.ID]directEntry)
	add := func(id typesys.ID, src source.Source, loc diag.Location) {
		if prev, dup := direct[id]; dup {
			diag.Report(b.sink, diag.DuplicateRegistration, loc,
				"%s is registered more than once in %s (first at %s)", id, decls.Type, prev.loc)
			return
		}
		direct[id] = directEntry{src: src, loc: loc}
	}

	for _, r := range decls.Registrations {
		b.addRegistration(r, add)
	}
	for _, f := range decls.Factories {
		b.addFactory(f, add)
	}
	for _, m := range decls.FactoryMethods {
		b.addFactoryMethod(decls, m, add)
	}
	for _, in := range decls.Instances {
		b.addInstance(decls, in, add)
	}

	inherited, importedDecorators := b.imports(decls, direct)

	for id, e := range inherited {
		if e.src == nil {
			continue
		}
		t.bases[id] = e.src
	}
	for id, e := range direct {
		t.bases[id] = e.src
	}

	for id, specs := range importedDecorators {
		t.decorators[id] = append(t.decorators[id], specs...)
	}
	for _, d := range decls.Decorators {
		if spec := b.decorator(decls, d); spec != nil {
			t.decorators[spec.Decorates] = append(t.decorators[spec.Decorates], spec)
		}
	}
	for _, d := range decls.DecoratorMethods {
		if spec := b.decoratorMethod(decls, d); spec != nil {
			t.decorators[spec.Decorates] = append(t.decorators[spec.Decorates], spec)
		}
	}

	t.compose()
	return t
}

// imports merges the tables of imported modules. A nil source in the result
// marks a type dropped because two imports disagree on it.
func (b *Builder) imports(decls *Declarations, direct map[typesys.ID]directEntry) (map[typesys.ID]inheritedEntry, map[typesys.ID][]*source.DecoratorSpec) {
	inherited := make(map[typesys.ID]inheritedEntry)
	decorators := make(map[typesys.ID][]*source.DecoratorSpec)

	for _, imp := range decls.Imports {
		if i := slices.Index(b.stack, imp.Module); i >= 0 {
			diag.Report(b.sink, diag.RecursiveModule, imp.Location,
				"module %s imports itself through %s", imp.Module, decls.Type)
			for _, m := range b.stack[i:] {
				b.recursive[m] = true
			}
			continue
		}
		if _, ok := b.decls.Declarations(imp.Module); !ok {
			diag.Report(b.sink, diag.UnknownModule, imp.Location, "unknown module %s", imp.Module)
			continue
		}
		mod := b.GetRegistrations(imp.Module)

		for id, src := range mod.bases {
			if _, own := direct[id]; own || slices.Contains(imp.Exclude, id) {
				continue
			}
			prev, seen := inherited[id]
			switch {
			case !seen:
				inherited[id] = inheritedEntry{src: src, loc: imp.Location}
			case source.Equivalent(prev.src, src):
			default:
				if prev.src != nil {
					diag.Report(b.sink, diag.ConflictingModules, prev.loc,
						"%s is registered differently by modules imported into %s", id, decls.Type)
				}
				diag.Report(b.sink, diag.ConflictingModules, imp.Location,
					"%s is registered differently by modules imported into %s", id, decls.Type)
				inherited[id] = inheritedEntry{loc: imp.Location}
			}
		}
		for id, specs := range mod.decorators {
			if slices.Contains(imp.Exclude, id) {
				continue
			}
			for _, s := range specs {
				if !slices.ContainsFunc(decorators[id], func(d *source.DecoratorSpec) bool {
					return source.EquivalentDecorators(d, s)
				}) {
					decorators[id] = append(decorators[id], s)
				}
			}
		}
	}
	return inherited, decorators
}

type adder func(id typesys.ID, src source.Source, loc diag.Location)

func (b *Builder) addRegistration(r RegistrationDecl, add adder) {
	info, ok := b.concrete(r.Type, r.Scope, r.Location)
	if !ok {
		return
	}
	ctor, ok := b.constructor(info, r.Location)
	if !ok {
		return
	}
	as, ok := b.registeredAs(r.Type, r.As, r.Location)
	if !ok {
		return
	}
	reg := &source.Registration{
		Type:        r.Type,
		Scope:       r.Scope,
		Constructor: ctor,
		Init:        info.Init,
		Location:    r.Location,
	}
	for i, src := range b.expose(reg, as, add, r.Location) {
		b.addProducts(as[i], src, source.InstancePerResolution, nil, add, r.Location)
	}
}

func (b *Builder) addFactory(f FactoryDecl, add adder) {
	info, ok := b.concrete(f.Type, f.Scope, f.Location)
	if !ok {
		return
	}
	caps := typesys.FactoryCapabilities(b.oracle, f.Type)
	if len(caps) == 0 {
		diag.Report(b.sink, diag.NotAFactory, f.Location, "%s does not implement a factory interface", f.Type)
		return
	}
	ctor, ok := b.constructor(info, f.Location)
	if !ok {
		return
	}
	reg := &source.Registration{
		Type:        f.Type,
		Scope:       f.Scope,
		Constructor: ctor,
		Init:        info.Init,
		Location:    f.Location,
	}
	if !slices.Contains(caps, f.Type) {
		add(f.Type, reg, f.Location)
	}
	for i, src := range b.expose(reg, caps, add, f.Location) {
		b.addProducts(caps[i], src, f.TargetScope, f.As, add, f.Location)
	}
}

// addProducts registers the value produced by a factory capability, if cap is one.
func (b *Builder) addProducts(capID typesys.ID, factory source.Source, scope source.Scope, as []typesys.ID, add adder, loc diag.Location) {
	info, ok := b.oracle.Info(capID)
	if !ok || info.Factory == nil {
		return
	}
	produces := info.Factory.Produces
	if !b.scopeAllowed(produces, scope, loc) {
		return
	}
	validAs, ok := b.registeredAs(produces, as, loc)
	if !ok {
		return
	}
	fr := &source.FactoryRegistration{
		Produces:    produces,
		FactoryType: capID,
		Factory:     factory,
		Scope:       scope,
		Async:       info.Factory.Async,
		Location:    loc,
	}
	b.expose(fr, validAs, add, loc)
}

func (b *Builder) addFactoryMethod(decls *Declarations, m FactoryMethodDecl, add adder) {
	method := m.Method
	if method.Return == "" {
		diag.Report(b.sink, diag.InvalidFactoryMethod, m.Location,
			"factory method %s.%s has no return type", decls.Type, method.Name)
		return
	}
	if !method.Static && !decls.Container {
		diag.Report(b.sink, diag.InvalidFactoryMethod, m.Location,
			"factory method %s.%s must be static in a module", decls.Type, method.Name)
		return
	}
	if method.HasByRefParams() {
		diag.Report(b.sink, diag.ByRefParameter, m.Location,
			"factory method %s.%s has a by-ref parameter", decls.Type, method.Name)
		return
	}
	produces, async := method.Return, false
	if elem, ok := typesys.IsTask(b.oracle, produces); ok {
		produces, async = elem, true
	}
	info, ok := b.oracle.Info(produces)
	if !ok {
		diag.Report(b.sink, diag.UnknownType, m.Location, "unknown type %s", produces)
		return
	}
	if info.Unbound {
		diag.Report(b.sink, diag.UnboundGeneric, m.Location,
			"factory method %s.%s returns unbound generic %s", decls.Type, method.Name, produces)
		return
	}
	if !b.scopeAllowed(produces, m.Scope, m.Location) {
		return
	}
	as, ok := b.registeredAs(produces, m.As, m.Location)
	if !ok {
		return
	}
	fm := &source.FactoryMethod{
		Declaring: decls.Type,
		Method:    method,
		Produces:  produces,
		Scope:     m.Scope,
		Async:     async,
		Location:  m.Location,
	}
	b.expose(fm, as, add, m.Location)
}

func (b *Builder) addInstance(decls *Declarations, in InstanceDecl, add adder) {
	if _, ok := b.oracle.Info(in.Type); !ok {
		diag.Report(b.sink, diag.UnknownType, in.Location, "unknown type %s", in.Type)
		return
	}
	as, ok := b.registeredAs(in.Type, in.As, in.Location)
	if !ok {
		return
	}
	inst := &source.Instance{
		Declaring: decls.Type,
		Name:      in.Name,
		Type:      in.Type,
		Property:  in.Property,
		Location:  in.Location,
	}
	b.expose(inst, as, add, in.Location)
}

func (b *Builder) decorator(decls *Declarations, d DecoratorDecl) *source.DecoratorSpec {
	info, ok := b.concrete(d.Type, source.InstancePerResolution, d.Location)
	if !ok {
		return nil
	}
	if conv := b.oracle.Conversion(d.Type, d.Decorates); !conv.Exists() {
		diag.Report(b.sink, diag.InvalidConversion, d.Location,
			"decorator %s cannot be converted to %s", d.Type, d.Decorates)
		return nil
	}
	ctor, ok := b.constructor(info, d.Location)
	if !ok {
		return nil
	}
	idx, ok := b.decoratedIndex(ctor, d.Decorates, string(d.Type), d.Location)
	if !ok {
		return nil
	}
	return &source.DecoratorSpec{
		Declaring: decls.Type,
		Type:      d.Type,
		Decorates: d.Decorates,
		Method:    ctor,
		Index:     idx,
		Init:      info.Init,
		Dispose:   d.Dispose,
		Location:  d.Location,
	}
}

func (b *Builder) decoratorMethod(decls *Declarations, d DecoratorMethodDecl) *source.DecoratorSpec {
	method := d.Method
	if !method.Static && !decls.Container {
		diag.Report(b.sink, diag.InvalidDecorator, d.Location,
			"decorator method %s.%s must be static in a module", decls.Type, method.Name)
		return nil
	}
	if method.HasByRefParams() {
		diag.Report(b.sink, diag.ByRefParameter, d.Location,
			"decorator method %s.%s has a by-ref parameter", decls.Type, method.Name)
		return nil
	}
	decorates, async := method.Return, false
	if elem, ok := typesys.IsTask(b.oracle, decorates); ok {
		decorates, async = elem, true
	}
	if decorates == "" {
		diag.Report(b.sink, diag.InvalidDecorator, d.Location,
			"decorator method %s.%s has no return type", decls.Type, method.Name)
		return nil
	}
	idx, ok := b.decoratedIndex(method, decorates, string(decls.Type)+"."+method.Name, d.Location)
	if !ok {
		return nil
	}
	return &source.DecoratorSpec{
		Declaring: decls.Type,
		Type:      decorates,
		Decorates: decorates,
		Method:    method,
		Factory:   true,
		Index:     idx,
		Async:     async,
		Dispose:   d.Dispose,
		Location:  d.Location,
	}
}

func (b *Builder) decoratedIndex(m typesys.Method, decorates typesys.ID, name string, loc diag.Location) (int, bool) {
	idx := -1
	for i, p := range m.Params {
		if p.Type != decorates {
			continue
		}
		if idx >= 0 {
			diag.Report(b.sink, diag.InvalidDecorator, loc,
				"decorator %s takes more than one %s", name, decorates)
			return 0, false
		}
		idx = i
	}
	if idx < 0 {
		diag.Report(b.sink, diag.InvalidDecorator, loc,
			"decorator %s does not take a %s to decorate", name, decorates)
		return 0, false
	}
	return idx, true
}

// expose adds src under every type in as, forwarding where the type differs,
// and returns the exposed sources in the order of as.
func (b *Builder) expose(src source.Source, as []typesys.ID, add adder, loc diag.Location) []source.Source {
	out := make([]source.Source, len(as))
	for i, a := range as {
		out[i] = forwardTo(src, a)
		add(a, out[i], loc)
	}
	return out
}

func forwardTo(src source.Source, as typesys.ID) source.Source {
	if src.OfType() == as {
		return src
	}
	return &source.Forwarded{As: as, Underlying: src}
}
