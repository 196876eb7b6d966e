package di

import (
	"context"
	"fmt"

	"github.com/gocrud/injectgen/plan"
)

// Func is the runtime value of a delegate. Each invocation runs the delegate
// body with its own variables; outer values are shared. A Func may be called
// from several goroutines at once.
type Func struct {
	c   *Container
	def *plan.DelegateCreate
	env *env
	bag *Bag
}

// Call invokes the delegate. What the invocation owns is released when the
// scope that created the delegate ends.
func (f *Func) Call(ctx context.Context, args ...any) (any, error) {
	v, release, err := f.CallOwned(ctx, args...)
	if err != nil {
		return nil, err
	}
	if f.bag == nil {
		return v, release(ctx)
	}
	if err := f.bag.add(ctx, release); err != nil {
		return nil, err
	}
	return v, nil
}

// CallOwned invokes the delegate and hands what the invocation owns to the
// caller through release. It fails with ErrDisposed once the container that
// created the delegate is closed.
func (f *Func) CallOwned(ctx context.Context, args ...any) (any, Release, error) {
	if f.c.disposed.Load() {
		return nil, nil, ErrDisposed
	}
	if len(args) != len(f.def.Params) {
		return nil, nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArgumentCount, f.def.Source.Type, len(f.def.Params), len(args))
	}
	e := newEnv(f.env)
	for i, name := range f.def.Params {
		e.set(name, args[i])
	}
	return f.c.run(ctx, f.def.Body, e)
}

// Arity is the number of parameters the delegate takes.
func (f *Func) Arity() int { return len(f.def.Params) }
