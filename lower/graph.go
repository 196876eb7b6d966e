package lower

import (
	"math/bits"

	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
)

type enterKey struct {
	chain    *source.Chain
	delegate *source.Delegate
}

type entered struct {
	chain  *source.Chain
	params []*source.DelegateParameter
	ret    typesys.ID
}

// enter returns the body level of d under chain. Levels are cached so that
// every pass over the same delegate sees the same chain and parameters.
func (l *Lowerer) enter(chain *source.Chain, d *source.Delegate) *entered {
	k := enterKey{chain: chain, delegate: d}
	if e, ok := l.entered[k]; ok {
		return e
	}
	inner, params := chain.EnterDelegate(d)
	e := &entered{chain: inner, params: params, ret: d.Return}
	l.entered[k] = e
	return e
}

func (l *Lowerer) deps(src source.Source, chain *source.Chain) []source.Source {
	var out []source.Source
	for _, dep := range source.Dependencies(src) {
		if ds, ok := l.dependency(dep, chain); ok {
			out = append(out, ds)
		}
	}
	return out
}

// needsAsync reports whether creating src, including the single instances it
// references, must await. An async delegate never awaits on creation. A sync
// one does when its body reaches a single instance that needs async, since
// that instance is hoisted into the creating frame.
func (l *Lowerer) needsAsync(src source.Source) bool {
	if v, ok := l.asyncMemo[src]; ok {
		return v
	}
	// A cycle is reported by the checker; treat the back edge as synchronous.
	l.asyncMemo[src] = false
	v := l.computeAsync(src)
	l.asyncMemo[src] = v
	return v
}

func (l *Lowerer) computeAsync(src source.Source) bool {
	switch v := src.(type) {
	case *source.Instance, *source.DelegateParameter:
		return false
	case *source.Delegate:
		if v.Async {
			return false
		}
		found := false
		l.asyncSingletons(l.enter(l.chain, v), func(source.Source) { found = true })
		return found
	}
	if source.RequiresAsync(src) {
		return true
	}
	for _, ds := range l.deps(src, l.chain) {
		if l.needsAsync(ds) {
			return true
		}
	}
	return false
}

// hoist creates, in the async frame f, every single instance that the sync
// delegate entered as in needs and that can only be created asynchronously.
// The delegate body then reuses the awaited values.
func (l *Lowerer) hoist(in *entered, f *frame) {
	l.asyncSingletons(in, func(src source.Source) { l.value(src, f) })
}

// asyncSingletons calls fn for each single instance needing async that the
// body of the sync delegate entered as in reaches, looking through nested
// sync delegates.
func (l *Lowerer) asyncSingletons(in *entered, fn func(source.Source)) {
	seen := make(map[maskKey]bool)
	opened := make(map[*source.Delegate]bool)
	var walk func(src source.Source, chain *source.Chain)
	walk = func(src source.Source, chain *source.Chain) {
		k := maskKey{src: src, chain: chain}
		if seen[k] {
			return
		}
		seen[k] = true
		if source.IsSingleInstance(src) {
			if l.needsAsync(src) {
				fn(src)
			}
			return
		}
		if d, ok := src.(*source.Delegate); ok {
			// Each nesting enters a fresh chain; stop at recursion.
			if d.Async || opened[d] {
				return
			}
			opened[d] = true
			defer delete(opened, d)
			inner := l.enter(chain, d)
			if ret, ok := inner.chain.Lookup(d.Return); ok {
				walk(ret, inner.chain)
			}
			return
		}
		for _, ds := range l.deps(src, chain) {
			walk(ds, chain)
		}
	}
	if ret, ok := in.chain.Lookup(in.ret); ok {
		walk(ret, in.chain)
	}
}

type maskKey struct {
	src   source.Source
	chain *source.Chain
}

// paramDepth is the depth of the innermost delegate parameter that the value
// of src, looked up in chain, depends on, or -1 when it depends on none.
func (l *Lowerer) paramDepth(src source.Source, chain *source.Chain) int {
	return bits.Len64(l.mask(src, chain)) - 1
}

// mask returns the set of chain depths whose delegate parameters src depends
// on, bit i standing for depth i. A delegate's own parameters are excluded
// since every invocation binds them afresh.
func (l *Lowerer) mask(src source.Source, chain *source.Chain) uint64 {
	k := maskKey{src: src, chain: chain}
	if m, ok := l.maskMemo[k]; ok {
		return m
	}
	if l.walking[k] {
		l.cut = true
		return 0
	}
	l.walking[k] = true
	outer := l.cut
	l.cut = false
	m := l.computeMask(src, chain)
	if !l.cut {
		l.maskMemo[k] = m
	}
	l.cut = outer || l.cut
	delete(l.walking, k)
	return m
}

func (l *Lowerer) computeMask(src source.Source, chain *source.Chain) uint64 {
	switch v := src.(type) {
	case *source.DelegateParameter:
		return 1 << uint(v.Depth)
	case *source.Instance:
		return 0
	case *source.Forwarded:
		return l.mask(v.Underlying, chain)
	case *source.Delegate:
		// A recursive delegate contributes nothing beyond what its outermost
		// occurrence already collects.
		if l.opened[v] {
			l.cut = true
			return 0
		}
		l.opened[v] = true
		defer delete(l.opened, v)
		in := l.enter(chain, v)
		ret, ok := in.chain.Lookup(v.Return)
		if !ok {
			return 0
		}
		return l.mask(ret, in.chain) &^ (^uint64(0) << uint(chain.Depth()+1))
	}
	if source.IsSingleInstance(src) {
		return 0
	}
	var m uint64
	for _, ds := range l.deps(src, chain) {
		m |= l.mask(ds, chain)
	}
	return m
}
