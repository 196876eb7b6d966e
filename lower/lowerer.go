// Package lower turns a checked instance source into an ordered plan: each
// dependency is bound to a variable before its dependents, shared values are
// reused, singletons are referenced through their slots, and delegates carry
// their own nested plans.
package lower

import (
	"fmt"

	"github.com/gocrud/injectgen/dispose"
	"github.com/gocrud/injectgen/logging"
	"github.com/gocrud/injectgen/plan"
	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
)

// Request is a root to lower.
type Request struct {
	Type   typesys.ID
	Async  bool
	Source source.Source
}

// Lowerer lowers the roots of one container. Singleton initializers are shared
// by every root lowered with the same Lowerer.
//
// A Lowerer is not safe for concurrent use. Input sources must have passed the
// resolve checks; unresolvable dependencies are skipped.
type Lowerer struct {
	chain    *source.Chain
	disposer *dispose.Planner
	logger   logging.Logger

	singletons map[source.Source]*plan.Singleton
	order      []*plan.Singleton

	entered   map[enterKey]*entered
	asyncMemo map[source.Source]bool
	maskMemo  map[maskKey]uint64
	walking   map[maskKey]bool
	opened    map[*source.Delegate]bool
	cut       bool
}

// Option configures a Lowerer.
type Option func(*Lowerer)

// WithLogger sets the lowering logger.
func WithLogger(l logging.Logger) Option {
	return func(lw *Lowerer) {
		if l != nil {
			lw.logger = l
		}
	}
}

// New creates a lowerer for the container whose root level is chain.
// Asynchronous disposals in synchronous plans are reported through disposer.
func New(chain *source.Chain, disposer *dispose.Planner, opts ...Option) *Lowerer {
	l := &Lowerer{
		chain:      chain.Root(),
		disposer:   disposer,
		logger:     logging.Nop(),
		singletons: make(map[source.Source]*plan.Singleton),
		entered:    make(map[enterKey]*entered),
		asyncMemo:  make(map[source.Source]bool),
		maskMemo:   make(map[maskKey]uint64),
		walking:    make(map[maskKey]bool),
		opened:     make(map[*source.Delegate]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.WithCategory("lower")
	return l
}

// Lower produces the plan for one root.
func (l *Lowerer) Lower(req Request) *plan.Plan {
	root := newFrame(nil, l.chain, req.Async)
	result := l.value(req.Source, root)
	p := root.plan(&plan.Plan{Type: req.Type, Result: result})
	l.logger.Debug("root lowered",
		logging.Field{Key: "root", Value: req.Type},
		logging.Field{Key: "operations", Value: len(p.Operations)})
	return p
}

// Singletons returns every singleton referenced so far, in first-use order.
func (l *Lowerer) Singletons() []*plan.Singleton {
	return l.order
}

// value returns a reference to the value of src in f, emitting whatever
// operations are needed first.
func (l *Lowerer) value(src source.Source, f *frame) plan.Value {
	switch v := src.(type) {
	case *source.Forwarded:
		return l.value(v.Underlying, f)
	case *source.Instance:
		return plan.Value{Field: v.Name}
	case *source.DelegateParameter:
		if b, _, ok := f.find(v); ok {
			return b.val
		}
		return plan.Value{}
	}

	if b, ok := l.reusable(src, f); ok {
		return b.val
	}
	if source.IsSingleInstance(src) && !creates(f.creating, src) {
		return l.singletonRef(src, f)
	}
	if d, ok := src.(*source.Delegate); ok {
		return l.delegate(d, f)
	}
	return l.create(src, f)
}

// reusable applies the reuse rule: a binding in f itself is always reused; a
// binding from an enclosing frame only when src does not depend on a delegate
// parameter introduced deeper than that binding.
func (l *Lowerer) reusable(src source.Source, f *frame) (binding, bool) {
	if sc, ok := source.ScopeOf(src); ok && sc == source.InstancePerDependency {
		return binding{}, false
	}
	b, at, ok := f.find(src)
	if !ok {
		return binding{}, false
	}
	if at == f {
		return b, true
	}
	return b, l.paramDepth(src, f.chain) <= b.depth
}

// creates reports whether src is the value a singleton initializer for
// creating builds itself, rather than a reference to another singleton.
func creates(creating, src source.Source) bool {
	for cur := creating; cur != nil; {
		if cur == src {
			return true
		}
		switch v := cur.(type) {
		case *source.Decorator:
			cur = v.Inner
		case *source.Forwarded:
			cur = v.Underlying
		default:
			return false
		}
	}
	return false
}

func (l *Lowerer) dependency(dep source.Dependency, chain *source.Chain) (source.Source, bool) {
	if dep.Fixed != nil {
		return dep.Fixed, true
	}
	return chain.Lookup(dep.Type)
}

func (l *Lowerer) create(src source.Source, f *frame) plan.Value {
	deps := source.Dependencies(src)
	args := make([]plan.Value, len(deps))
	for i, dep := range deps {
		ds, ok := l.dependency(dep, f.chain)
		if !ok {
			continue
		}
		args[i] = l.value(ds, f)
	}

	stmt := &plan.Create{Source: src, Type: src.OfType(), Args: args}
	init := typesys.InitNone
	callAsync := false
	switch v := src.(type) {
	case *source.Registration:
		stmt.Call = plan.CallConstructor
		init = v.Init
	case *source.FactoryMethod:
		stmt.Call = plan.CallFactoryMethod
		stmt.Declaring = v.Declaring
		stmt.Method = v.Method.Name
		callAsync = v.Async
	case *source.FactoryRegistration:
		stmt.Call = plan.CallFactory
		stmt.Declaring = v.FactoryType
		callAsync = v.Async
	case *source.Decorator:
		stmt.Call = plan.CallDecorator
		stmt.Type = v.Spec.Type
		if v.Spec.Factory {
			stmt.Call = plan.CallDecoratorMethod
			stmt.Declaring = v.Spec.Declaring
			stmt.Method = v.Spec.Method.Name
		}
		callAsync = v.Spec.Async
		init = v.Spec.Init
	}

	name := f.newVar()
	op := plan.Operation{Statement: stmt}
	if callAsync {
		stmt.Async = true
		stmt.Var = name
		name = f.newVar()
		op.Await = &plan.Await{Var: name, Task: stmt.Var}
	} else {
		stmt.Var = name
	}
	op.Disposal = l.disposer.ActionFor(src, name, args)
	if f.creating == nil {
		// Singleton initializer disposals run at container teardown.
		l.disposer.CheckContext(op.Disposal, f.async, src)
	}
	f.emit(op)

	if init != typesys.InitNone {
		ic := &plan.InitCall{Target: name}
		iop := plan.Operation{Statement: ic}
		if init == typesys.InitAsync {
			ic.Async = true
			ic.Task = f.newVar()
			iop.Await = &plan.Await{Task: ic.Task}
		}
		f.emit(iop)
	}

	val := plan.Value{Var: name}
	if sc, ok := source.ScopeOf(src); !ok || sc != source.InstancePerDependency {
		f.bind(src, val)
	}
	return val
}

func (l *Lowerer) singletonRef(src source.Source, f *frame) plan.Value {
	s := l.singleton(src)
	stmt := &plan.SingletonRef{Singleton: s, Var: f.newVar()}
	op := plan.Operation{Statement: stmt}
	name := stmt.Var
	if s.Async {
		name = f.newVar()
		op.Await = &plan.Await{Var: name, Task: stmt.Var}
	}
	f.emit(op)
	val := plan.Value{Var: name}
	f.bind(src, val)
	return val
}

// singleton returns the slot for src, lowering its initializer on first use.
// The slot is registered before its initializer is lowered so that a cycle
// through it cannot recurse forever.
func (l *Lowerer) singleton(src source.Source) *plan.Singleton {
	if s, ok := l.singletons[src]; ok {
		return s
	}
	s := &plan.Singleton{
		Index:  len(l.order),
		Type:   src.OfType(),
		Source: src,
		Async:  l.needsAsync(src),
	}
	s.Field = fmt.Sprintf("_singleton_%d", s.Index)
	l.singletons[src] = s
	l.order = append(l.order, s)

	init := newFrame(nil, l.chain, s.Async)
	init.creating = src
	result := l.value(src, init)
	s.Init = init.plan(&plan.Plan{Type: s.Type, Result: result})
	return s
}

func (l *Lowerer) delegate(d *source.Delegate, f *frame) plan.Value {
	in := l.enter(f.chain, d)
	if f.async && !d.Async {
		l.hoist(in, f)
	}

	// Bound before the body is lowered so that a recursive delegate refers
	// to itself.
	name := f.newVar()
	val := plan.Value{Var: name}
	f.bind(d, val)

	body := newFrame(f, in.chain, d.Async)
	params := make([]string, len(in.params))
	for i, p := range in.params {
		params[i] = body.newVar()
		if visible, _ := in.chain.Lookup(p.Type); visible == p {
			body.bind(p, plan.Value{Var: params[i]})
		}
	}
	var result plan.Value
	if ret, ok := in.chain.Lookup(d.Return); ok {
		result = l.value(ret, body)
	}
	bodyPlan := body.plan(&plan.Plan{Type: d.Return, Result: result})

	stmt := &plan.DelegateCreate{Var: name, Source: d, Params: params, Body: bodyPlan}
	if bodyPlan.HasDisposals() {
		stmt.Bag = f.newVar()
		bag := l.disposer.BagFor(stmt.Bag, bodyPlan)
		if f.creating == nil {
			l.disposer.CheckContext(bag, f.async, d)
		}
		f.emit(plan.Operation{Statement: &plan.DisposeBagCreate{Var: stmt.Bag}, Disposal: bag})
	}
	f.emit(plan.Operation{Statement: stmt})
	return val
}
