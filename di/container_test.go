package di_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gocrud/injectgen/di"
	"github.com/gocrud/injectgen/generator"
	"github.com/gocrud/injectgen/registry"
	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journal records constructions and disposals in order.
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	j.events = append(j.events, e)
	j.mu.Unlock()
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

type node struct {
	name string
	j    *journal
	deps []*node
}

type closer struct {
	node
	closed atomic.Int32
}

func (c *closer) Close() error {
	c.closed.Add(1)
	c.j.add("close " + c.name)
	return nil
}

type world struct {
	u     *typesys.Universe
	decls *registry.Declarations
	j     *journal
	b     *di.Bindings
}

func newWorld() *world {
	return &world{
		u:     typesys.NewUniverse(),
		decls: &registry.Declarations{Type: "App", Container: true},
		j:     &journal{},
		b:     di.NewBindings(),
	}
}

func (w *world) class(id typesys.ID, scope source.Scope, params ...typesys.ID) *typesys.TypeInfo {
	ps := make([]typesys.Param, len(params))
	for i, p := range params {
		ps[i] = typesys.Param{Name: strings.ToLower(string(p)), Type: p}
	}
	info := &typesys.TypeInfo{ID: id, Public: true, Constructors: []typesys.Method{{Params: ps}}}
	w.u.MustDefine(info)
	w.decls.Registrations = append(w.decls.Registrations, registry.RegistrationDecl{Type: id, Scope: scope})
	return info
}

// plain binds a constructor of n *node parameters that records its name.
func (w *world) plain(id typesys.ID, arity int) {
	name := string(id)
	record := func(deps ...*node) *node {
		w.j.add("new " + name)
		return &node{name: name, j: w.j, deps: deps}
	}
	switch arity {
	case 0:
		w.b.Constructor(id, func() *node { return record() })
	case 1:
		w.b.Constructor(id, func(a *node) *node { return record(a) })
	case 2:
		w.b.Constructor(id, func(a, b *node) *node { return record(a, b) })
	}
}

func (w *world) delegate(id, ret typesys.ID, params ...typesys.ID) {
	w.u.MustDefine(&typesys.TypeInfo{ID: id, Kind: typesys.KindDelegate, Public: true,
		Signature: &typesys.Signature{Params: params, Return: ret}})
}

func (w *world) root(id typesys.ID, async bool) {
	w.decls.Roots = append(w.decls.Roots, registry.RootDecl{Type: id, Async: async})
}

func (w *world) container(t *testing.T) *di.Container {
	t.Helper()
	c, bag := generator.New(registry.MapSurface{}.Add(w.decls), w.u).Generate("App")
	require.NotNil(t, c)
	require.False(t, bag.HasErrors(), bag.All())
	return di.New(c, w.b)
}

func TestContainer_ScenarioA(t *testing.T) {
	w := newWorld()
	w.class("A", source.InstancePerResolution, "B", "C")
	w.class("B", source.InstancePerResolution, "C", "D")
	w.class("C", source.InstancePerResolution)
	w.class("D", source.InstancePerResolution, "C")
	w.plain("A", 2)
	w.plain("B", 2)
	w.plain("C", 0)
	w.plain("D", 1)
	w.root("A", false)

	a, release, err := di.Resolve[*node](context.Background(), w.container(t), "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"new C", "new D", "new B", "new A"}, w.j.all())

	b, c := a.deps[0], a.deps[1]
	assert.Same(t, c, b.deps[0], "C is shared within the resolution")
	assert.Same(t, c, b.deps[1].deps[0])
	assert.NoError(t, release(context.Background()))
}

func TestContainer_ScenarioD_SingletonsAreShared(t *testing.T) {
	w := newWorld()
	w.class("A", source.SingleInstance, "B")
	w.class("B", source.InstancePerResolution, "C")
	w.class("C", source.SingleInstance)
	w.plain("A", 1)
	w.plain("B", 1)
	w.plain("C", 0)
	w.root("A", false)
	c := w.container(t)
	ctx := context.Background()

	a1, _, err := di.Resolve[*node](ctx, c, "A")
	require.NoError(t, err)
	a2, _, err := di.Resolve[*node](ctx, c, "A")
	require.NoError(t, err)
	assert.Same(t, a1, a2)
	assert.Same(t, a1.deps[0].deps[0], a2.deps[0].deps[0])
	assert.Equal(t, []string{"new C", "new B", "new A"}, w.j.all(), "only one A, hence one B, is ever built")
}

func TestContainer_SingletonCreatedOnceUnderContention(t *testing.T) {
	w := newWorld()
	w.class("R", source.InstancePerResolution, "S")
	w.class("S", source.SingleInstance)
	var built atomic.Int32
	w.b.Constructor("S", func() *node {
		built.Add(1)
		return &node{name: "S"}
	})
	w.plain("R", 1)
	w.root("R", false)
	c := w.container(t)

	var wg sync.WaitGroup
	seen := make([]*node, 64)
	for i := range seen {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, _, err := di.Resolve[*node](context.Background(), c, "R")
			if assert.NoError(t, err) {
				seen[i] = r.deps[0]
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 1, built.Load())
	for _, s := range seen {
		assert.Same(t, seen[0], s)
	}
}

func scenarioE(t *testing.T) (*world, *di.Func, di.Release) {
	t.Helper()
	w := newWorld()
	w.class("A", source.InstancePerResolution, "B", "C")
	w.u.MustDefine(&typesys.TypeInfo{ID: "B", Public: true})
	w.class("C", source.InstancePerResolution).Disposal = typesys.DisposalCaps{Sync: true}
	w.u.MustDefine(&typesys.TypeInfo{ID: "Func<B,A>", Kind: typesys.KindDelegate, Public: true,
		Signature: &typesys.Signature{Params: []typesys.ID{"B"}, Return: "A"}})
	w.b.Constructor("C", func() *closer {
		w.j.add("new C")
		return &closer{node: node{name: "C", j: w.j}}
	})
	w.b.Constructor("A", func(b *closer, c *closer) *node {
		return &node{name: "A", deps: []*node{&b.node, &c.node}}
	})
	w.root("Func<B,A>", false)

	v, release, err := w.container(t).Resolve(context.Background(), "Func<B,A>")
	require.NoError(t, err)
	f, ok := v.(*di.Func)
	require.True(t, ok)
	assert.Equal(t, 1, f.Arity())
	return w, f, release
}

func TestContainer_ScenarioE_PerInvocationDisposal(t *testing.T) {
	w, f, release := scenarioE(t)
	ctx := context.Background()

	b1 := &closer{node: node{name: "B1", j: w.j}}
	b2 := &closer{node: node{name: "B2", j: w.j}}
	a1, err := f.Call(ctx, b1)
	require.NoError(t, err)
	a2, err := f.Call(ctx, b2)
	require.NoError(t, err)

	n1, n2 := a1.(*node), a2.(*node)
	assert.NotSame(t, n1.deps[1], n2.deps[1], "each invocation builds its own C")
	assert.Same(t, &b1.node, n1.deps[0])

	require.NoError(t, release(ctx))
	assert.Equal(t, []string{"new C", "new C", "close C", "close C"}, w.j.all())
	assert.Zero(t, b1.closed.Load(), "caller supplied parameters are never disposed")
	assert.Zero(t, b2.closed.Load())
}

func TestContainer_CallOwned(t *testing.T) {
	w, f, release := scenarioE(t)
	ctx := context.Background()

	_, rel, err := f.CallOwned(ctx, &closer{node: node{name: "B", j: w.j}})
	require.NoError(t, err)
	require.NoError(t, rel(ctx))
	assert.Equal(t, []string{"new C", "close C"}, w.j.all())

	require.NoError(t, release(ctx))
	assert.Equal(t, []string{"new C", "close C"}, w.j.all(), "owned invocations are not in the bag")

	_, err = f.Call(ctx)
	assert.ErrorIs(t, err, di.ErrArgumentCount)
}

func TestContainer_DelegateAfterClose(t *testing.T) {
	w := newWorld()
	w.class("A", source.InstancePerResolution)
	w.plain("A", 0)
	w.delegate("Func<A>", "A")
	w.root("Func<A>", false)
	c := w.container(t)
	ctx := context.Background()

	v, release, err := c.Resolve(ctx, "Func<A>")
	require.NoError(t, err)
	f := v.(*di.Func)
	_, err = f.Call(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Close(ctx))

	// The resolution scope is still open; only the container is closed.
	_, err = f.Call(ctx)
	assert.ErrorIs(t, err, di.ErrDisposed)
	_, rel, err := f.CallOwned(ctx)
	assert.ErrorIs(t, err, di.ErrDisposed)
	assert.Nil(t, rel)
	assert.Equal(t, []string{"new A"}, w.j.all(), "nothing is built after close")
	require.NoError(t, release(ctx))
}

func TestContainer_DelegateCalledConcurrently(t *testing.T) {
	w, f, release := scenarioE(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Call(ctx, &closer{node: node{name: "B", j: w.j}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.NoError(t, release(ctx))

	closes := 0
	for _, e := range w.j.all() {
		if e == "close C" {
			closes++
		}
	}
	assert.Equal(t, 32, closes)
}

func TestContainer_UnwindsOnFailure(t *testing.T) {
	w := newWorld()
	w.class("A", source.InstancePerResolution, "B", "C")
	w.class("B", source.InstancePerResolution).Disposal = typesys.DisposalCaps{Sync: true}
	w.class("C", source.InstancePerResolution)
	boom := errors.New("boom")
	var b *closer
	w.b.Constructor("B", func() *closer {
		b = &closer{node: node{name: "B", j: w.j}}
		return b
	})
	w.b.Constructor("C", func() (*node, error) { return nil, boom })
	w.plain("A", 2)
	w.root("A", false)

	_, _, err := w.container(t).Resolve(context.Background(), "A")
	require.ErrorIs(t, err, boom, "the original error is propagated")
	require.NotNil(t, b)
	assert.EqualValues(t, 1, b.closed.Load())
}

func TestContainer_TeardownIsReverseAndFinal(t *testing.T) {
	w := newWorld()
	w.class("R", source.InstancePerResolution, "S2")
	w.class("S1", source.SingleInstance).Disposal = typesys.DisposalCaps{Sync: true}
	w.class("S2", source.SingleInstance, "S1").Disposal = typesys.DisposalCaps{Sync: true}
	w.b.Constructor("S1", func() *closer { return &closer{node: node{name: "S1", j: w.j}} })
	w.b.Constructor("S2", func(s1 *closer) *closer { return &closer{node: node{name: "S2", j: w.j}} })
	w.b.Constructor("R", func(s2 *closer) *node { return &node{name: "R"} })
	w.root("R", false)
	c := w.container(t)
	ctx := context.Background()

	require.NoError(t, c.Run(ctx, "R", func(context.Context, any) error { return nil }))
	assert.Empty(t, w.j.all(), "singletons outlive the resolution")

	require.NoError(t, c.Close(ctx))
	assert.Equal(t, []string{"close S2", "close S1"}, w.j.all())

	_, _, err := c.Resolve(ctx, "R")
	assert.ErrorIs(t, err, di.ErrDisposed)
	assert.ErrorIs(t, c.Close(ctx), di.ErrDisposed)
}

func TestContainer_RootErrors(t *testing.T) {
	w := newWorld()
	w.class("Broken", source.InstancePerResolution, "Missing")
	w.u.MustDefine(&typesys.TypeInfo{ID: "Missing", Public: true})
	w.class("Unbound", source.InstancePerResolution)
	w.root("Broken", false)
	w.root("Unbound", false)

	c, _ := generator.New(registry.MapSurface{}.Add(w.decls), w.u).Generate("App")
	rt := di.New(c, w.b)
	ctx := context.Background()

	_, _, err := rt.Resolve(ctx, "Broken")
	assert.ErrorIs(t, err, di.ErrNotImplemented)
	_, _, err = rt.Resolve(ctx, "Nope")
	assert.ErrorIs(t, err, di.ErrUnknownRoot)
	_, _, err = rt.Resolve(ctx, "Unbound")
	assert.ErrorIs(t, err, di.ErrMissingBinding)
}

type db struct {
	ready  atomic.Bool
	closed atomic.Bool
}

func (d *db) Init(ctx context.Context) error {
	d.ready.Store(true)
	return nil
}

func (d *db) CloseContext(ctx context.Context) error {
	d.closed.Store(true)
	return nil
}

func TestContainer_AsyncInitialization(t *testing.T) {
	w := newWorld()
	w.class("Repo", source.InstancePerResolution, "Db")
	dbInfo := w.class("Db", source.SingleInstance)
	dbInfo.Init = typesys.InitAsync
	dbInfo.Disposal = typesys.DisposalCaps{Async: true}
	w.b.Constructor("Db", func() *db { return &db{} })
	w.b.Constructor("Repo", func(d *db) (*node, error) {
		if !d.ready.Load() {
			return nil, errors.New("db used before init")
		}
		return &node{name: "Repo"}, nil
	})
	w.root("Repo", true)
	c := w.container(t)
	ctx := context.Background()

	_, _, err := c.Resolve(ctx, "Repo")
	require.NoError(t, err)

	v, _, err := c.Resolve(ctx, "Repo")
	require.NoError(t, err)
	assert.Equal(t, "Repo", v.(*node).name)

	require.NoError(t, c.Close(ctx))
}

func TestContainer_AsyncFactoryMethodAndFields(t *testing.T) {
	w := newWorld()
	w.u.MustDefine(&typesys.TypeInfo{ID: "Conn", Public: true}, &typesys.TypeInfo{ID: "Settings", Public: true})
	w.decls.FactoryMethods = []registry.FactoryMethodDecl{{
		Method: typesys.Method{Name: "Open", Params: []typesys.Param{{Name: "s", Type: "Settings"}},
			Return: w.u.TaskOf("Conn"), Static: true},
	}}
	w.decls.Instances = []registry.InstanceDecl{{Name: "settings", Type: "Settings"}}
	w.root("Conn", true)

	type settings struct{ dsn string }
	w.b.Field("settings", &settings{dsn: "mem"})
	w.b.Method("App", "Open", func(ctx context.Context, s *settings) (*node, error) {
		return &node{name: "conn:" + s.dsn}, nil
	})

	v, _, err := w.container(t).Resolve(context.Background(), "Conn")
	require.NoError(t, err)
	assert.Equal(t, "conn:mem", v.(*node).name)
}

type productFactory struct {
	j *journal
}

func (f *productFactory) Create(context.Context) (any, error) {
	f.j.add("create C")
	return &node{name: "C"}, nil
}

func (f *productFactory) Release(_ context.Context, v any) error {
	f.j.add("release " + v.(*node).name)
	return nil
}

func TestContainer_FactoryReleasesItsProducts(t *testing.T) {
	w := newWorld()
	w.u.MustDefine(&typesys.TypeInfo{ID: "IFactory<C>", Kind: typesys.KindInterface, Public: true,
		Factory: &typesys.FactorySpec{Produces: "C"}})
	w.u.MustDefine(&typesys.TypeInfo{ID: "C", Public: true})
	cf := &typesys.TypeInfo{ID: "CFactory", Public: true, Interfaces: []typesys.ID{"IFactory<C>"},
		Constructors: []typesys.Method{{}}}
	w.u.MustDefine(cf)
	w.decls.Factories = []registry.FactoryDecl{{Type: "CFactory", Scope: source.SingleInstance}}
	w.class("R", source.InstancePerResolution, "C")
	w.b.Constructor("CFactory", func() *productFactory { return &productFactory{j: w.j} })
	w.b.Constructor("R", func(c *node) *node { return &node{name: "R", deps: []*node{c}} })
	w.root("R", false)

	err := w.container(t).Run(context.Background(), "R", func(_ context.Context, v any) error {
		assert.Equal(t, "C", v.(*node).deps[0].name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"create C", "release C"}, w.j.all())
}

func TestContainer_RunPrefersCallbackError(t *testing.T) {
	w := newWorld()
	w.class("A", source.InstancePerResolution)
	w.plain("A", 0)
	w.root("A", false)
	boom := errors.New("boom")

	err := w.container(t).Run(context.Background(), "A", func(context.Context, any) error { return boom })
	assert.ErrorIs(t, err, boom)
}
