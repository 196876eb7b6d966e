package generator_test

import (
	"testing"

	"github.com/gocrud/injectgen/diag"
	"github.com/gocrud/injectgen/generator"
	"github.com/gocrud/injectgen/plan"
	"github.com/gocrud/injectgen/registry"
	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctor(params ...typesys.ID) []typesys.Method {
	ps := make([]typesys.Param, len(params))
	for i, p := range params {
		ps[i] = typesys.Param{Name: "p" + string(p), Type: p}
	}
	return []typesys.Method{{Params: ps}}
}

func universe() *typesys.Universe {
	return typesys.NewUniverse().MustDefine(
		&typesys.TypeInfo{ID: "App", Public: true},
		&typesys.TypeInfo{ID: "Module", Public: true},
		&typesys.TypeInfo{ID: "Service", Public: true, Constructors: ctor("Repo")},
		&typesys.TypeInfo{ID: "Repo", Public: true, Constructors: ctor("Db"),
			Disposal: typesys.DisposalCaps{Sync: true}},
		&typesys.TypeInfo{ID: "Db", Public: true, Constructors: ctor(),
			Disposal: typesys.DisposalCaps{Async: true}},
		&typesys.TypeInfo{ID: "Broken", Public: true, Constructors: ctor("Missing")},
		&typesys.TypeInfo{ID: "Missing", Public: true},
	)
}

func surface(disposal registry.DisposalPreference) registry.MapSurface {
	return registry.MapSurface{}.Add(
		&registry.Declarations{Type: "Module", Registrations: []registry.RegistrationDecl{
			{Type: "Db", Scope: source.SingleInstance},
			{Type: "Repo"},
		}},
		&registry.Declarations{
			Type:          "App",
			Container:     true,
			Disposal:      disposal,
			Imports:       []registry.ImportDecl{{Module: "Module"}},
			Registrations: []registry.RegistrationDecl{{Type: "Service"}, {Type: "Broken"}},
			Roots: []registry.RootDecl{
				{Type: "Service", Async: true},
				{Type: "Broken"},
				{Type: "Service"},
			},
		},
	)
}

func TestGenerate_PlansRootsAndStubsFailures(t *testing.T) {
	g := generator.New(surface(registry.DisposalAuto), universe())
	c, bag := g.Generate("App")
	require.NotNil(t, c)

	require.Len(t, c.Roots, 2, "duplicate roots are planned once")
	svc, ok := c.Root("Service")
	require.True(t, ok)
	assert.False(t, svc.Stub)
	require.NotNil(t, svc.Plan)
	assert.True(t, svc.Plan.Async)

	broken, ok := c.Root("Broken")
	require.True(t, ok)
	assert.True(t, broken.Stub)
	assert.Nil(t, broken.Plan)
	assert.Equal(t, 1, broken.Errors)
	assert.Len(t, bag.WithCode(diag.MissingDependency), 1)

	require.Len(t, c.Singletons, 1)
	assert.Equal(t, typesys.ID("Db"), c.Singletons[0].Type)
	assert.True(t, c.AsyncTeardown, "the Db singleton can only be released asynchronously")
}

func TestGenerate_SyncPreferenceWarns(t *testing.T) {
	g := generator.New(surface(registry.DisposalSync), universe())
	c, bag := g.Generate("App")
	require.NotNil(t, c)
	assert.False(t, c.AsyncTeardown)
	assert.Len(t, bag.WithCode(diag.SyncTeardownOfAsyncValue), 1)
}

func TestGenerate_NotAContainer(t *testing.T) {
	g := generator.New(surface(registry.DisposalAuto), universe())
	for _, id := range []typesys.ID{"Module", "Nope"} {
		c, bag := g.Generate(id)
		assert.Nil(t, c)
		assert.Len(t, bag.WithCode(diag.NotAContainer), 1)
	}
}

func TestGenerate_StubDoesNotAffectOtherRoots(t *testing.T) {
	g := generator.New(surface(registry.DisposalAuto), universe())
	c, _ := g.Generate("App")
	svc, _ := c.Root("Service")

	var types []typesys.ID
	for _, op := range svc.Plan.Operations {
		switch s := op.Statement.(type) {
		case *plan.Create:
			types = append(types, s.Type)
		case *plan.SingletonRef:
			types = append(types, s.Singleton.Type)
		}
	}
	assert.Equal(t, []typesys.ID{"Db", "Repo", "Service"}, types)
}

func TestContainers(t *testing.T) {
	g := generator.New(surface(registry.DisposalAuto), universe())
	assert.Equal(t, []typesys.ID{"App"}, g.Containers([]typesys.ID{"Module", "App", "Nope"}))
}

// requireSyncPlansNeverAwait walks every plan of c, delegate bodies
// included, and fails on an await inside a synchronous one.
func requireSyncPlansNeverAwait(t *testing.T, c *plan.Container) {
	t.Helper()
	var walk func(p *plan.Plan)
	walk = func(p *plan.Plan) {
		if p == nil {
			return
		}
		for _, op := range p.Operations {
			if !p.Async {
				require.Nil(t, op.Await, "synchronous plan for %s awaits", p.Type)
			}
			if dc, ok := op.Statement.(*plan.DelegateCreate); ok {
				walk(dc.Body)
			}
		}
	}
	for _, r := range c.Roots {
		walk(r.Plan)
	}
	for _, s := range c.Singletons {
		walk(s.Init)
	}
}

func TestGenerate_AsyncSingletonBehindNestedDelegatesAndSingletons(t *testing.T) {
	u := typesys.NewUniverse().MustDefine(
		&typesys.TypeInfo{ID: "App", Public: true},
		&typesys.TypeInfo{ID: "Root", Public: true, Constructors: ctor("Func<Handler>")},
		&typesys.TypeInfo{ID: "Handler", Public: true, Constructors: ctor("Service")},
		&typesys.TypeInfo{ID: "Service", Public: true, Constructors: ctor("Func<Worker>")},
		&typesys.TypeInfo{ID: "Worker", Public: true, Constructors: ctor("Db")},
		&typesys.TypeInfo{ID: "Db", Public: true, Constructors: ctor(), Init: typesys.InitAsync},
		&typesys.TypeInfo{ID: "Func<Handler>", Kind: typesys.KindDelegate, Public: true,
			Signature: &typesys.Signature{Return: "Handler"}},
		&typesys.TypeInfo{ID: "Func<Worker>", Kind: typesys.KindDelegate, Public: true,
			Signature: &typesys.Signature{Return: "Worker"}},
	)
	s := registry.MapSurface{}.Add(&registry.Declarations{
		Type:      "App",
		Container: true,
		Registrations: []registry.RegistrationDecl{
			{Type: "Root"}, {Type: "Handler"}, {Type: "Worker"},
			{Type: "Service", Scope: source.SingleInstance},
			{Type: "Db", Scope: source.SingleInstance},
		},
		Roots: []registry.RootDecl{{Type: "Root", Async: true}, {Type: "Service", Async: true}},
	})

	c, bag := generator.New(s, u).Generate("App")
	require.NotNil(t, c)
	require.False(t, bag.HasErrors(), bag.All())
	requireSyncPlansNeverAwait(t, c)

	require.Len(t, c.Singletons, 2)
	for _, single := range c.Singletons {
		assert.True(t, single.Async, "%s is created asynchronously", single.Type)
	}

	root, ok := c.Root("Root")
	require.True(t, ok)
	ops := root.Plan.Operations
	require.Len(t, ops, 3)
	ref := ops[0].Statement.(*plan.SingletonRef)
	assert.Equal(t, typesys.ID("Service"), ref.Singleton.Type, "hoisted out of Func<Handler>")
	require.NotNil(t, ops[0].Await)
	_, ok = ops[1].Statement.(*plan.DelegateCreate)
	assert.True(t, ok)
}
