// Package di runs container plans. A Container executes the plan of a root
// against Go bindings: singletons are created once per container, values are
// shared within one resolution, delegates become Func values, and everything
// owned is released in reverse construction order.
package di

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gocrud/injectgen/logging"
	"github.com/gocrud/injectgen/plan"
	"github.com/gocrud/injectgen/typesys"
)

// Container is the runtime of one planned container. It is safe for
// concurrent use.
type Container struct {
	plan     *plan.Container
	bindings *Bindings
	logger   logging.Logger

	slots []slot

	mu       sync.Mutex
	teardown []Release
	disposed atomic.Bool
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the container logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Container) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(p *plan.Container, b *Bindings, opts ...Option) *Container {
	c := &Container{
		plan:     p,
		bindings: b,
		logger:   logging.Nop(),
		slots:    make([]slot, len(p.Singletons)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithCategory("di").WithFields(logging.Field{Key: "container", Value: p.Type})
	return c
}

// Resolve builds root and returns it with the release of everything the
// resolution owns. On failure everything already built is released and the
// original error is returned.
func (c *Container) Resolve(ctx context.Context, root typesys.ID) (any, Release, error) {
	if c.disposed.Load() {
		return nil, nil, ErrDisposed
	}
	r, ok := c.plan.Root(root)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownRoot, root)
	}
	if r.Stub {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotImplemented, root)
	}
	return c.run(ctx, r.Plan, newEnv(nil))
}

// Run builds root, passes it to fn and releases the resolution when fn
// returns. The error of fn takes precedence over release errors.
func (c *Container) Run(ctx context.Context, root typesys.ID, fn func(ctx context.Context, v any) error) error {
	v, release, err := c.Resolve(ctx, root)
	if err != nil {
		return err
	}
	ferr := fn(ctx, v)
	rerr := release(ctx)
	if ferr != nil {
		if rerr != nil {
			c.logger.Error("release after failed run", logging.Field{Key: "root", Value: root},
				logging.Field{Key: "error", Value: rerr})
		}
		return ferr
	}
	return rerr
}

// Close releases every singleton in reverse creation order. Later calls and
// every other operation return ErrDisposed.
func (c *Container) Close(ctx context.Context) error {
	if !c.disposed.CompareAndSwap(false, true) {
		return ErrDisposed
	}
	c.mu.Lock()
	rs := c.teardown
	c.teardown = nil
	c.mu.Unlock()

	var errs []error
	for i := len(rs) - 1; i >= 0; i-- {
		if err := rs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.logger.Debug("container closed", logging.Field{Key: "released", Value: len(rs)})
	return errors.Join(errs...)
}

// singleton returns the value of s, running its initializer on first use.
func (c *Container) singleton(ctx context.Context, s *plan.Singleton) (any, error) {
	sl := &c.slots[s.Index]
	if v, ok := sl.load(); ok {
		return v, nil
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if v, ok := sl.load(); ok {
		return v, nil
	}
	if c.disposed.Load() {
		return nil, ErrDisposed
	}

	// Released with the container, so in the container's teardown mode.
	v, release, err := c.execute(ctx, s.Init, newEnv(nil), c.plan.AsyncTeardown)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.disposed.Load() {
		c.mu.Unlock()
		return nil, errors.Join(ErrDisposed, release(ctx))
	}
	c.teardown = append(c.teardown, release)
	c.mu.Unlock()

	sl.val.Store(boxed{v: v})
	c.logger.Debug("singleton created", logging.Field{Key: "type", Value: s.Type})
	return v, nil
}

// Resolve is the typed form of Container.Resolve.
func Resolve[T any](ctx context.Context, c *Container, root typesys.ID) (T, Release, error) {
	var zero T
	v, release, err := c.Resolve(ctx, root)
	if err != nil {
		return zero, nil, err
	}
	t, ok := v.(T)
	if !ok && v != nil {
		return zero, nil, errors.Join(fmt.Errorf("di: %s resolved to %T, expected %T", root, v, zero), release(ctx))
	}
	return t, release, nil
}
