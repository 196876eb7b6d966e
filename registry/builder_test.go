package registry_test

import (
	"testing"

	"github.com/gocrud/injectgen/diag"
	"github.com/gocrud/injectgen/registry"
	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func class(id typesys.ID, params ...typesys.ID) *typesys.TypeInfo {
	ps := make([]typesys.Param, len(params))
	for i, p := range params {
		ps[i] = typesys.Param{Name: "p" + string(rune('0'+i)), Type: p}
	}
	return &typesys.TypeInfo{ID: id, Public: true, Constructors: []typesys.Method{{Params: ps}}}
}

func universe() *typesys.Universe {
	u := typesys.NewUniverse()
	ia := &typesys.TypeInfo{ID: "IA", Kind: typesys.KindInterface, Public: true}
	a := class("A", "B")
	a.Interfaces = []typesys.ID{"IA"}
	u.MustDefine(ia, a, class("B"), class("C"), class("Other"))

	u.MustDefine(&typesys.TypeInfo{ID: "IFactory<C>", Kind: typesys.KindInterface, Public: true,
		Factory: &typesys.FactorySpec{Produces: "C"}})
	cf := class("CFactory")
	cf.Interfaces = []typesys.ID{"IFactory<C>"}
	u.MustDefine(cf)

	dec := class("LoggingA", "IA")
	dec.Interfaces = []typesys.ID{"IA"}
	dec2 := class("CachingA", "IA")
	dec2.Interfaces = []typesys.ID{"IA"}
	u.MustDefine(dec, dec2)
	return u
}

func build(t *testing.T, u *typesys.Universe, root typesys.ID, decls ...*registry.Declarations) (*registry.Table, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag()
	b := registry.NewBuilder(registry.MapSurface{}.Add(decls...), u, bag)
	return b.GetRegistrations(root), bag
}

func loc(line int) diag.Location { return diag.Location{File: "m.yaml", Line: line} }

func TestBuilder_RegistrationAndForwarding(t *testing.T) {
	table, bag := build(t, universe(), "App", &registry.Declarations{
		Type: "App", Container: true,
		Registrations: []registry.RegistrationDecl{
			{Type: "A", As: []typesys.ID{"A", "IA"}, Scope: source.SingleInstance},
			{Type: "B"},
		},
	})
	require.Zero(t, bag.Len(), bag.All())

	a, ok := table.Lookup("A")
	require.True(t, ok)
	reg := a.(*source.Registration)
	assert.Equal(t, source.SingleInstance, reg.Scope)
	assert.Equal(t, typesys.ID("B"), reg.Constructor.Params[0].Type)

	ia, ok := table.Lookup("IA")
	require.True(t, ok)
	assert.Same(t, reg, ia.(*source.Forwarded).Underlying)
	assert.Equal(t, []typesys.ID{"A", "B", "IA"}, table.Types())
}

func TestBuilder_Validation(t *testing.T) {
	u := universe()
	u.MustDefine(
		&typesys.TypeInfo{ID: "List<>", Public: true, Unbound: true, Constructors: []typesys.Method{{}}},
		&typesys.TypeInfo{ID: "Hidden", Constructors: []typesys.Method{{}}},
		&typesys.TypeInfo{ID: "Base", Public: true, Abstract: true, Constructors: []typesys.Method{{}}},
		&typesys.TypeInfo{ID: "Point", Kind: typesys.KindStruct, Public: true, Constructors: []typesys.Method{{}}},
		&typesys.TypeInfo{ID: "NoCtor", Public: true, Constructors: []typesys.Method{{Access: typesys.AccessPrivate}}},
		&typesys.TypeInfo{ID: "TwoCtors", Public: true, Constructors: []typesys.Method{
			{Params: []typesys.Param{{Type: "B"}}}, {Params: []typesys.Param{{Type: "C"}}}}},
		&typesys.TypeInfo{ID: "DefaultPlusOne", Public: true, Constructors: []typesys.Method{
			{}, {Params: []typesys.Param{{Type: "B"}}}}},
		&typesys.TypeInfo{ID: "ByRef", Public: true, Constructors: []typesys.Method{
			{Params: []typesys.Param{{Type: "B", Ref: typesys.RefOut}}}}},
	)

	cases := []struct {
		name string
		decl registry.RegistrationDecl
		code diag.Code
	}{
		{"unknown", registry.RegistrationDecl{Type: "Nope"}, diag.UnknownType},
		{"unbound generic", registry.RegistrationDecl{Type: "List<>"}, diag.UnboundGeneric},
		{"not public", registry.RegistrationDecl{Type: "Hidden"}, diag.TypeNotPublic},
		{"abstract", registry.RegistrationDecl{Type: "Base"}, diag.AbstractRegistration},
		{"struct singleton", registry.RegistrationDecl{Type: "Point", Scope: source.SingleInstance}, diag.StructSingleInstance},
		{"no constructor", registry.RegistrationDecl{Type: "NoCtor"}, diag.NoAccessibleConstructor},
		{"ambiguous", registry.RegistrationDecl{Type: "TwoCtors"}, diag.AmbiguousConstructors},
		{"by ref", registry.RegistrationDecl{Type: "ByRef"}, diag.ByRefParameter},
		{"bad conversion", registry.RegistrationDecl{Type: "B", As: []typesys.ID{"IA"}}, diag.InvalidConversion},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.decl.Location = loc(7)
			table, bag := build(t, u, "App", &registry.Declarations{
				Type: "App", Registrations: []registry.RegistrationDecl{tc.decl},
			})
			require.Len(t, bag.All(), 1)
			d := bag.All()[0]
			assert.Equal(t, tc.code, d.Code)
			assert.Equal(t, diag.SeverityError, d.Severity)
			assert.Equal(t, 7, d.Location.Line)
			assert.Zero(t, table.Len())
		})
	}

	t.Run("default plus one constructor", func(t *testing.T) {
		table, bag := build(t, u, "App", &registry.Declarations{
			Type: "App", Registrations: []registry.RegistrationDecl{{Type: "DefaultPlusOne"}},
		})
		assert.Zero(t, bag.Len())
		src, _ := table.Lookup("DefaultPlusOne")
		assert.Len(t, src.(*source.Registration).Constructor.Params, 1)
	})
}

func TestBuilder_Imports(t *testing.T) {
	u := universe()
	shared := &registry.Declarations{Type: "Shared",
		Registrations: []registry.RegistrationDecl{{Type: "C"}}}
	m1 := &registry.Declarations{Type: "M1",
		Imports:       []registry.ImportDecl{{Module: "Shared"}},
		Registrations: []registry.RegistrationDecl{{Type: "B", Location: loc(1)}}}
	m2 := &registry.Declarations{Type: "M2",
		Imports:       []registry.ImportDecl{{Module: "Shared"}},
		Registrations: []registry.RegistrationDecl{{Type: "B", Scope: source.SingleInstance}}}

	t.Run("conflict reported at each import", func(t *testing.T) {
		app := &registry.Declarations{Type: "App", Imports: []registry.ImportDecl{
			{Module: "M1", Location: loc(10)}, {Module: "M2", Location: loc(11)}}}
		table, bag := build(t, u, "App", app, m1, m2, shared)

		conflicts := bag.WithCode(diag.ConflictingModules)
		require.Len(t, conflicts, 2)
		assert.ElementsMatch(t, []int{10, 11}, []int{conflicts[0].Location.Line, conflicts[1].Location.Line})
		_, ok := table.Lookup("B")
		assert.False(t, ok)
		_, ok = table.Lookup("C")
		assert.True(t, ok, "identical registrations from a shared module are not a conflict")
	})

	t.Run("identical registrations in sibling modules", func(t *testing.T) {
		own1 := &registry.Declarations{Type: "Own1",
			Registrations: []registry.RegistrationDecl{{Type: "C", Location: loc(20)}}}
		own2 := &registry.Declarations{Type: "Own2",
			Registrations: []registry.RegistrationDecl{{Type: "C", Location: loc(21)}}}
		app := &registry.Declarations{Type: "App", Imports: []registry.ImportDecl{
			{Module: "Own1", Location: loc(10)}, {Module: "Own2", Location: loc(11)}}}
		table, bag := build(t, u, "App", app, own1, own2)

		assert.Empty(t, bag.WithCode(diag.ConflictingModules))
		c, ok := table.Lookup("C")
		require.True(t, ok)
		assert.Equal(t, 20, c.(*source.Registration).Location.Line, "the first import is kept")
	})

	t.Run("exclusion resolves the conflict", func(t *testing.T) {
		app := &registry.Declarations{Type: "App", Imports: []registry.ImportDecl{
			{Module: "M1"}, {Module: "M2", Exclude: []typesys.ID{"B"}}}}
		table, bag := build(t, u, "App", app, m1, m2, shared)
		assert.Zero(t, bag.Len())
		b, _ := table.Lookup("B")
		assert.Equal(t, source.InstancePerResolution, b.(*source.Registration).Scope)
	})

	t.Run("direct wins", func(t *testing.T) {
		app := &registry.Declarations{Type: "App",
			Imports:       []registry.ImportDecl{{Module: "M1"}, {Module: "M2"}},
			Registrations: []registry.RegistrationDecl{{Type: "B", Location: loc(3)}}}
		table, bag := build(t, u, "App", app, m1, m2, shared)
		assert.Zero(t, bag.Len())
		b, _ := table.Lookup("B")
		assert.Equal(t, 3, b.(*source.Registration).Location.Line)
	})

	t.Run("duplicate direct", func(t *testing.T) {
		app := &registry.Declarations{Type: "App", Registrations: []registry.RegistrationDecl{
			{Type: "B", Location: loc(1)}, {Type: "B", Location: loc(2)}}}
		_, bag := build(t, u, "App", app)
		dups := bag.WithCode(diag.DuplicateRegistration)
		require.Len(t, dups, 1)
		assert.Equal(t, 2, dups[0].Location.Line)
	})

	t.Run("unknown module", func(t *testing.T) {
		app := &registry.Declarations{Type: "App", Imports: []registry.ImportDecl{{Module: "Ghost"}}}
		_, bag := build(t, u, "App", app)
		assert.Len(t, bag.WithCode(diag.UnknownModule), 1)
	})
}

func TestBuilder_RecursiveModule(t *testing.T) {
	u := universe()
	a := &registry.Declarations{Type: "ModA",
		Imports:       []registry.ImportDecl{{Module: "ModB"}},
		Registrations: []registry.RegistrationDecl{{Type: "B"}}}
	b := &registry.Declarations{Type: "ModB",
		Imports:       []registry.ImportDecl{{Module: "ModA", Location: loc(5)}},
		Registrations: []registry.RegistrationDecl{{Type: "C"}}}

	table, bag := build(t, u, "ModA", a, b)
	rec := bag.WithCode(diag.RecursiveModule)
	require.Len(t, rec, 1)
	assert.Equal(t, 5, rec[0].Location.Line)
	assert.Zero(t, table.Len())
}

func TestBuilder_FactoryRegistration(t *testing.T) {
	table, bag := build(t, universe(), "App", &registry.Declarations{Type: "App",
		Factories: []registry.FactoryDecl{{Type: "CFactory", Scope: source.SingleInstance, TargetScope: source.InstancePerDependency}}})
	require.Zero(t, bag.Len(), bag.All())

	factory, ok := table.Lookup("CFactory")
	require.True(t, ok)
	c, ok := table.Lookup("C")
	require.True(t, ok)
	fr := c.(*source.FactoryRegistration)
	assert.Equal(t, typesys.ID("IFactory<C>"), fr.FactoryType)
	assert.Equal(t, source.InstancePerDependency, fr.Scope)
	assert.Same(t, factory, source.Unwrap(fr.Factory))

	capSrc, _ := table.Lookup("IFactory<C>")
	assert.Same(t, capSrc, fr.Factory)
}

func TestBuilder_FactoryViaRegisteredAs(t *testing.T) {
	table, bag := build(t, universe(), "App", &registry.Declarations{Type: "App",
		Registrations: []registry.RegistrationDecl{{Type: "CFactory", As: []typesys.ID{"IFactory<C>"}}}})
	require.Zero(t, bag.Len(), bag.All())
	c, ok := table.Lookup("C")
	require.True(t, ok)
	assert.IsType(t, &source.FactoryRegistration{}, c)
	_, ok = table.Lookup("CFactory")
	assert.False(t, ok)
}

func TestBuilder_NotAFactory(t *testing.T) {
	_, bag := build(t, universe(), "App", &registry.Declarations{Type: "App",
		Factories: []registry.FactoryDecl{{Type: "B"}}})
	assert.Len(t, bag.WithCode(diag.NotAFactory), 1)
}

func TestBuilder_FactoryMethods(t *testing.T) {
	u := universe()
	task := u.TaskOf("C")
	table, bag := build(t, u, "Mod", &registry.Declarations{Type: "Mod",
		FactoryMethods: []registry.FactoryMethodDecl{
			{Method: typesys.Method{Name: "MakeC", Return: task, Static: true}, Scope: source.SingleInstance},
			{Method: typesys.Method{Name: "MakeB", Return: "B"}, Location: loc(4)},
			{Method: typesys.Method{Name: "MakeOther", Return: "Other", Static: true,
				Params: []typesys.Param{{Type: "B", Ref: typesys.RefRef}}}},
		}})

	c, ok := table.Lookup("C")
	require.True(t, ok)
	fm := c.(*source.FactoryMethod)
	assert.True(t, fm.Async)
	assert.Equal(t, typesys.ID("C"), fm.Produces)
	assert.Equal(t, typesys.ID("Mod"), fm.Declaring)

	invalid := bag.WithCode(diag.InvalidFactoryMethod)
	require.Len(t, invalid, 1, "instance factory methods are only allowed on containers")
	assert.Equal(t, 4, invalid[0].Location.Line)
	assert.Len(t, bag.WithCode(diag.ByRefParameter), 1)
}

func TestBuilder_DecoratorsApplyInsideOut(t *testing.T) {
	u := universe()
	mod := &registry.Declarations{Type: "Mod",
		Registrations: []registry.RegistrationDecl{{Type: "A", As: []typesys.ID{"IA"}}},
		Decorators:    []registry.DecoratorDecl{{Type: "LoggingA", Decorates: "IA"}}}
	app := &registry.Declarations{Type: "App", Container: true,
		Imports:    []registry.ImportDecl{{Module: "Mod"}},
		Decorators: []registry.DecoratorDecl{{Type: "CachingA", Decorates: "IA", Dispose: true}}}

	table, bag := build(t, u, "App", app, mod)
	require.Zero(t, bag.Len(), bag.All())

	src, ok := table.Lookup("IA")
	require.True(t, ok)
	outer := src.(*source.Decorator)
	assert.Equal(t, typesys.ID("CachingA"), outer.Spec.Type)
	assert.True(t, outer.Spec.Dispose)
	inner := outer.Inner.(*source.Decorator)
	assert.Equal(t, typesys.ID("LoggingA"), inner.Spec.Type)
	assert.IsType(t, &source.Forwarded{}, inner.Inner)

	base, _ := table.Base("IA")
	assert.Same(t, inner.Inner, base)
}

func TestBuilder_InvalidDecorator(t *testing.T) {
	_, bag := build(t, universe(), "App", &registry.Declarations{Type: "App",
		Decorators: []registry.DecoratorDecl{{Type: "A", Decorates: "IA"}}})
	assert.Len(t, bag.WithCode(diag.InvalidDecorator), 1)
}

func TestBuilder_Instances(t *testing.T) {
	table, bag := build(t, universe(), "App", &registry.Declarations{Type: "App", Container: true,
		Instances: []registry.InstanceDecl{{Name: "current", Type: "A", As: []typesys.ID{"IA"}}}})
	require.Zero(t, bag.Len())
	src, ok := table.Lookup("IA")
	require.True(t, ok)
	inst := source.Unwrap(src).(*source.Instance)
	assert.Equal(t, "current", inst.Name)
	_, ok = table.Lookup("A")
	assert.False(t, ok)
}
