package di

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gocrud/injectgen/dispose"
	"github.com/gocrud/injectgen/logging"
	"github.com/gocrud/injectgen/plan"
)

func (c *Container) run(ctx context.Context, p *plan.Plan, e *env) (any, Release, error) {
	return c.execute(ctx, p, e, p.Async)
}

// execute runs the operations of p in order. When operation k fails, the
// disposals of operations before k are run in reverse and the error of k is
// returned.
func (c *Container) execute(ctx context.Context, p *plan.Plan, e *env, async bool) (any, Release, error) {
	for k, op := range p.Operations {
		if err := c.step(ctx, op, e); err != nil {
			if rerr := c.release(ctx, e, dispose.Unwind(p.Operations, k), async); rerr != nil {
				c.logger.Warn("unwinding failed resolution",
					logging.Field{Key: "type", Value: p.Type},
					logging.Field{Key: "error", Value: rerr})
			}
			return nil, nil, err
		}
	}

	v, err := c.value(e, p.Result)
	if err != nil {
		return nil, nil, errors.Join(err, c.release(ctx, e, dispose.Teardown(p.Operations), async))
	}
	if !p.HasDisposals() {
		return v, noRelease, nil
	}
	ds := dispose.Teardown(p.Operations)
	return v, func(ctx context.Context) error { return c.release(ctx, e, ds, async) }, nil
}

func (c *Container) value(e *env, v plan.Value) (any, error) {
	if v.Field != "" {
		return c.bindings.field(v.Field)
	}
	if v.Var == "" {
		return nil, nil
	}
	val, _ := e.get(v.Var)
	return val, nil
}

func (c *Container) values(e *env, vs []plan.Value) ([]any, error) {
	out := make([]any, len(vs))
	for i, v := range vs {
		val, err := c.value(e, v)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

func (c *Container) step(ctx context.Context, op plan.Operation, e *env) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch s := op.Statement.(type) {
	case *plan.Create:
		if err := c.create(ctx, s, e); err != nil {
			return err
		}
	case *plan.SingletonRef:
		v, err := c.singleton(ctx, s.Singleton)
		if err != nil {
			return err
		}
		if s.Singleton.Async {
			e.set(s.Var, completedTask(v))
		} else {
			e.set(s.Var, v)
		}
	case *plan.DelegateCreate:
		f := &Func{c: c, def: s, env: e}
		if s.Bag != "" {
			bag, _ := e.get(s.Bag)
			f.bag, _ = bag.(*Bag)
		}
		e.set(s.Var, f)
	case *plan.InitCall:
		target, _ := e.get(s.Target)
		in, ok := target.(Initializer)
		if !ok {
			return fmt.Errorf("%w: %T requires initialization but has no Init method", ErrMissingBinding, target)
		}
		if s.Async {
			e.set(s.Task, startTask(ctx, func(ctx context.Context) (any, error) { return nil, in.Init(ctx) }))
		} else if err := in.Init(ctx); err != nil {
			return err
		}
	case *plan.DisposeBagCreate:
		e.set(s.Var, &Bag{})
	}

	if aw := op.Await; aw != nil {
		t, _ := e.get(aw.Task)
		tk, ok := t.(*task)
		if !ok {
			return fmt.Errorf("di: %s is not a task", aw.Task)
		}
		v, err := tk.wait(ctx)
		if err != nil {
			return err
		}
		if aw.Var != "" {
			e.set(aw.Var, v)
		}
	}
	return nil
}

func (c *Container) create(ctx context.Context, s *plan.Create, e *env) error {
	args, err := c.values(e, s.Args)
	if err != nil {
		return err
	}

	var call func(ctx context.Context) (any, error)
	switch s.Call {
	case plan.CallConstructor, plan.CallDecorator:
		fn, err := c.bindings.constructor(s.Type)
		if err != nil {
			return err
		}
		call = func(ctx context.Context) (any, error) { return fn(ctx, args) }
	case plan.CallFactoryMethod, plan.CallDecoratorMethod:
		fn, err := c.bindings.method(s.Declaring, s.Method)
		if err != nil {
			return err
		}
		call = func(ctx context.Context) (any, error) { return fn(ctx, args) }
	case plan.CallFactory:
		f, ok := firstArg(args).(Factory)
		if !ok {
			return fmt.Errorf("%w: %s has no Create method", ErrMissingBinding, s.Declaring)
		}
		call = f.Create
	}

	if s.Async {
		e.set(s.Var, startTask(ctx, call))
		return nil
	}
	v, err := call(ctx)
	if err != nil {
		return err
	}
	e.set(s.Var, v)
	return nil
}

func firstArg(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

// release runs ds, which are already in teardown order. Every disposal runs
// even when an earlier one fails.
func (c *Container) release(ctx context.Context, e *env, ds []plan.Disposal, async bool) error {
	var errs []error
	for _, d := range ds {
		target, _ := e.get(d.Target)
		var err error
		switch d.Kind {
		case plan.DisposeValue:
			err = closeValue(ctx, target, d, async)
		case plan.DisposeRelease:
			factory, _ := c.value(e, d.Factory)
			if r, ok := factory.(Releaser); ok {
				err = r.Release(ctx, target)
			}
		case plan.DisposeBag:
			if b, ok := target.(*Bag); ok {
				err = b.Close(ctx)
			}
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// closeValue prefers the asynchronous form in async teardowns and the
// synchronous one otherwise, falling back to whichever the value has.
func closeValue(ctx context.Context, v any, d plan.Disposal, async bool) error {
	ac, hasAsync := v.(AsyncCloser)
	sc, hasSync := v.(io.Closer)
	switch {
	case async && d.Async && hasAsync:
		return ac.CloseContext(ctx)
	case d.Sync && hasSync:
		return sc.Close()
	case hasAsync:
		return ac.CloseContext(ctx)
	case hasSync:
		return sc.Close()
	}
	return nil
}
