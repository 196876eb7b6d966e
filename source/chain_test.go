package source_test

import (
	"testing"

	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type table map[typesys.ID]source.Source

func (t table) Lookup(id typesys.ID) (source.Source, bool) {
	s, ok := t[id]
	return s, ok
}

func fixture() (*typesys.Universe, table) {
	u := typesys.NewUniverse()
	u.MustDefine(
		&typesys.TypeInfo{ID: "A", Public: true},
		&typesys.TypeInfo{ID: "B", Public: true},
		&typesys.TypeInfo{ID: "Point", Kind: typesys.KindStruct, Public: true},
	)
	u.MustDefine(
		&typesys.TypeInfo{ID: "Func<B,A>", Kind: typesys.KindDelegate, Public: true,
			Signature: &typesys.Signature{Params: []typesys.ID{"B"}, Return: "A"}},
		&typesys.TypeInfo{ID: "AsyncFunc<A>", Kind: typesys.KindDelegate, Public: true,
			Signature: &typesys.Signature{Return: u.TaskOf("A")}},
	)
	u.NullableOf("Point")
	t := table{
		"A":     &source.Registration{Type: "A"},
		"B":     &source.Registration{Type: "B"},
		"Point": &source.Registration{Type: "Point"},
	}
	return u, t
}

func TestChain_LookupTable(t *testing.T) {
	u, tab := fixture()
	c := source.NewChain(tab, u)

	src, ok := c.Lookup("A")
	require.True(t, ok)
	assert.Same(t, tab["A"], src)

	_, ok = c.Lookup("Missing")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Depth())
	assert.Same(t, c, c.Root())
}

func TestChain_SynthesizedDelegateIsInterned(t *testing.T) {
	u, tab := fixture()
	c := source.NewChain(tab, u)

	first, ok := c.Lookup("Func<B,A>")
	require.True(t, ok)
	d, ok := first.(*source.Delegate)
	require.True(t, ok)
	assert.Equal(t, []typesys.ID{"B"}, d.Params)
	assert.Equal(t, typesys.ID("A"), d.Return)
	assert.False(t, d.Async)

	inner, _ := c.EnterDelegate(d)
	second, ok := inner.Lookup("Func<B,A>")
	require.True(t, ok)
	assert.Same(t, first, second)

	async, ok := c.Lookup("AsyncFunc<A>")
	require.True(t, ok)
	assert.True(t, async.(*source.Delegate).Async)
	assert.Equal(t, typesys.ID("A"), async.(*source.Delegate).Return)
}

func TestChain_EnterDelegateShadows(t *testing.T) {
	u, tab := fixture()
	c := source.NewChain(tab, u)
	d := &source.Delegate{Type: "Func<B,A>", Params: []typesys.ID{"B", "B"}, Return: "A"}

	inner, params := c.EnterDelegate(d)
	require.Len(t, params, 2)
	assert.Equal(t, 1, inner.Depth())
	assert.Same(t, c, inner.Parent())
	assert.Same(t, c, inner.Root())

	src, ok := inner.Lookup("B")
	require.True(t, ok)
	assert.Same(t, params[0], src)
	assert.Equal(t, 1, params[1].Index)

	outer, _ := c.Lookup("B")
	assert.Same(t, tab["B"], outer)
}

func TestChain_Nullable(t *testing.T) {
	u, tab := fixture()
	c := source.NewChain(tab, u)

	src, ok := c.Lookup("Point?")
	require.True(t, ok)
	f, ok := src.(*source.Forwarded)
	require.True(t, ok)
	assert.Same(t, tab["Point"], f.Underlying)
	assert.Equal(t, typesys.ID("Point?"), f.OfType())

	again, _ := c.Lookup("Point?")
	assert.Same(t, src, again)
}

func TestScopeOfAndDependencies(t *testing.T) {
	reg := &source.Registration{Type: "A", Scope: source.SingleInstance, Constructor: typesys.Method{
		Params: []typesys.Param{{Name: "b", Type: "B"}, {Name: "c", Type: "C"}},
	}}
	fwd := &source.Forwarded{As: "IA", Underlying: reg}

	sc, ok := source.ScopeOf(fwd)
	require.True(t, ok)
	assert.Equal(t, source.SingleInstance, sc)
	assert.True(t, source.IsSingleInstance(fwd))
	assert.Same(t, reg, source.Unwrap(fwd))

	_, ok = source.ScopeOf(&source.DelegateParameter{Type: "B"})
	assert.False(t, ok)

	deps := source.Dependencies(reg)
	require.Len(t, deps, 2)
	assert.Equal(t, typesys.ID("C"), deps[1].Type)
	assert.Nil(t, deps[1].Fixed)

	dec := &source.Decorator{Inner: reg, Spec: &source.DecoratorSpec{Decorates: "A", Index: 1,
		Method: typesys.Method{Params: []typesys.Param{{Name: "log", Type: "L"}, {Name: "inner", Type: "A"}}}}}
	deps = source.Dependencies(dec)
	assert.Same(t, reg, deps[1].Fixed)
	assert.Nil(t, deps[0].Fixed)
}

func TestParseScope(t *testing.T) {
	cases := []struct {
		in   string
		want source.Scope
		err  bool
	}{
		{"", source.InstancePerResolution, false},
		{"transient", source.InstancePerDependency, false},
		{"SingleInstance", source.SingleInstance, false},
		{"forever", source.InstancePerResolution, true},
	}
	for _, tc := range cases {
		got, err := source.ParseScope(tc.in)
		if tc.err {
			assert.ErrorIs(t, err, source.ErrUnknownScope)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}
