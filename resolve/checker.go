// Package resolve checks that a requested type can be resolved from a scope
// chain: every dependency has a source, nothing depends on itself outside a
// delegate, and nothing awaits on a synchronous path.
package resolve

import (
	"slices"

	"github.com/gocrud/injectgen/diag"
	"github.com/gocrud/injectgen/logging"
	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
)

// Request is one root type to check.
type Request struct {
	Type     typesys.ID
	Async    bool
	Location diag.Location
}

// Result is the outcome of checking one root.
type Result struct {
	Type   typesys.ID
	Source source.Source
	// Missing lists every type without a source, in discovery order.
	Missing []typesys.ID
	Errors  int
}

// OK reports whether the root can be lowered.
func (r Result) OK() bool {
	return r.Source != nil && r.Errors == 0
}

// Checker validates roots against one container chain. Warnings about a
// delegate are reported once per Checker even when several roots reach it.
//
// A Checker is not safe for concurrent use.
type Checker struct {
	chain  *source.Chain
	oracle typesys.Oracle
	sink   diag.Sink
	logger logging.Logger

	warned map[warnKey]bool
}

type warnKey struct {
	code  diag.Code
	typ   typesys.ID
	index int
}

// NewChecker creates a checker over the root level of a container chain.
func NewChecker(chain *source.Chain, sink diag.Sink, opts ...Option) *Checker {
	c := &Checker{
		chain:  chain.Root(),
		oracle: chain.Oracle(),
		sink:   sink,
		logger: logging.Nop(),
		warned: make(map[warnKey]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithCategory("resolve")
	return c
}

// frame is the traversal context. path holds the sources currently being
// resolved since the last delegate boundary.
type frame struct {
	chain *source.Chain
	async bool
	// hoist is set inside a synchronous delegate body reached from an async
	// context: async single-instance sources are created ahead of the delegate.
	hoist bool
	path  map[source.Source]bool
}

type visitKey struct {
	src   source.Source
	chain *source.Chain
	async bool
	hoist bool
}

type run struct {
	*Checker
	req      Request
	counter  *diag.Counter
	done     map[visitKey]bool
	entered  map[*source.Delegate]bool
	used     map[*source.DelegateParameter]bool
	missing  []typesys.ID
	required map[typesys.ID]typesys.ID
}

// Check resolves req and reports every problem found. It never stops at the
// first failure: sibling dependencies are still visited so that all missing
// types are reported together.
func (c *Checker) Check(req Request) Result {
	r := &run{
		Checker:  c,
		req:      req,
		counter:  &diag.Counter{Sink: c.sink},
		done:     make(map[visitKey]bool),
		entered:  make(map[*source.Delegate]bool),
		used:     make(map[*source.DelegateParameter]bool),
		required: make(map[typesys.ID]typesys.ID),
	}

	res := Result{Type: req.Type}
	root, ok := c.chain.Lookup(req.Type)
	if ok {
		res.Source = root
		r.visit(root, frame{chain: c.chain, async: req.Async, path: make(map[source.Source]bool)})
	} else {
		r.miss(req.Type, "")
	}

	for _, t := range r.missing {
		if by := r.required[t]; by != "" {
			diag.Report(r.counter, diag.MissingDependency, req.Location,
				"no source for %s, required by %s when resolving %s", t, by, req.Type)
		} else {
			diag.Report(r.counter, diag.MissingDependency, req.Location,
				"no source for %s", t)
		}
	}

	res.Missing = r.missing
	res.Errors = r.counter.Errors()
	c.logger.Debug("root checked",
		logging.Field{Key: "root", Value: req.Type},
		logging.Field{Key: "async", Value: req.Async},
		logging.Field{Key: "errors", Value: res.Errors})
	return res
}

func (r *run) miss(t, by typesys.ID) {
	if slices.Contains(r.missing, t) {
		return
	}
	r.missing = append(r.missing, t)
	r.required[t] = by
}

func (r *run) visit(src source.Source, f frame) {
	if f.path[src] {
		diag.Report(r.counter, diag.CircularDependency, r.req.Location,
			"circular dependency on %s when resolving %s", src.OfType(), r.req.Type)
		return
	}
	key := visitKey{src: src, chain: f.chain, async: f.async, hoist: f.hoist}
	if r.done[key] {
		return
	}

	switch v := src.(type) {
	case *source.DelegateParameter:
		r.used[v] = true
		r.done[key] = true
		return
	case *source.Instance:
		r.done[key] = true
		return
	case *source.Delegate:
		r.delegate(v, f)
		r.done[key] = true
		return
	}

	next := f
	canAwait := f.async
	if source.IsSingleInstance(src) {
		// Single instances are built once for the container, from the root level.
		// Inside a hoisting body they are created ahead of the delegate, in the
		// enclosing async context.
		canAwait = f.async || f.hoist
		next.chain = f.chain.Root()
		next.async = canAwait
		next.hoist = false
	}
	if source.RequiresAsync(src) && !canAwait {
		diag.Report(r.counter, diag.AsyncInSyncContext, r.req.Location,
			"%s requires asynchronous resolution but %s is resolved synchronously",
			src.Describe(), r.req.Type)
	}

	f.path[src] = true
	for _, dep := range source.Dependencies(src) {
		ds := dep.Fixed
		if ds == nil {
			var ok bool
			ds, ok = next.chain.Lookup(dep.Type)
			if !ok {
				r.miss(dep.Type, src.OfType())
				continue
			}
		}
		r.visit(ds, next)
	}
	delete(f.path, src)
	r.done[key] = true
}

func (r *run) delegate(d *source.Delegate, f frame) {
	if r.entered[d] {
		return
	}
	r.entered[d] = true
	defer delete(r.entered, d)

	inner, params := f.chain.EnterDelegate(d)
	r.delegateShape(d, params)

	ret, ok := inner.Lookup(d.Return)
	if !ok {
		r.miss(d.Return, d.Type)
		return
	}
	if source.IsSingleInstance(ret) {
		r.warn(diag.DelegateReturnsSingleton, d.Type, -1,
			"delegate %s always returns the same single instance %s", d.Type, d.Return)
	}

	body := frame{
		chain: inner,
		async: d.Async,
		hoist: !d.Async && (f.async || f.hoist),
		path:  make(map[source.Source]bool),
	}
	r.visit(ret, body)

	for _, p := range params {
		if visible, _ := inner.Lookup(p.Type); visible != p {
			continue
		}
		if !r.used[p] {
			r.warn(diag.UnusedDelegateParameter, d.Type, p.Index,
				"parameter %d (%s) of delegate %s is never used", p.Index, p.Type, d.Type)
		}
	}
}

// delegateShape reports problems visible from the signature alone.
func (r *run) delegateShape(d *source.Delegate, params []*source.DelegateParameter) {
	seen := make(map[typesys.ID]bool, len(params))
	for _, p := range params {
		if seen[p.Type] {
			diag.Report(r.counter, diag.AmbiguousDelegateParameter, r.req.Location,
				"delegate %s has more than one parameter of type %s", d.Type, p.Type)
			continue
		}
		seen[p.Type] = true
		if p.Type == d.Return {
			r.warn(diag.DelegateIdentity, d.Type, p.Index,
				"delegate %s returns its own parameter %s", d.Type, p.Type)
		}
	}

	innerSig, ok := typesys.DelegateSignature(r.oracle, d.Return)
	if !ok {
		return
	}
	innerRet := innerSig.Return
	if elem, ok := typesys.IsTask(r.oracle, innerRet); ok {
		innerRet = elem
	}
	if slices.Contains(innerSig.Params, innerRet) {
		return
	}
	for _, p := range params {
		if p.Type == innerRet {
			r.warn(diag.NestedDelegateIdentity, d.Type, p.Index,
				"delegate %s returns a delegate %s that returns parameter %s", d.Type, d.Return, p.Type)
		}
	}
}

func (r *run) warn(code diag.Code, typ typesys.ID, index int, format string, args ...any) {
	k := warnKey{code: code, typ: typ, index: index}
	if r.warned[k] {
		return
	}
	r.warned[k] = true
	diag.Report(r.counter, code, r.req.Location, format, args...)
}
