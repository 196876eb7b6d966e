package di

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// env holds the variables of one running plan. Delegate bodies read the env
// they were created in through parent, possibly from other goroutines.
type env struct {
	parent *env
	mu     sync.RWMutex
	vars   map[string]any
}

func newEnv(parent *env) *env {
	return &env{parent: parent, vars: make(map[string]any)}
}

func (e *env) set(name string, v any) {
	e.mu.Lock()
	e.vars[name] = v
	e.mu.Unlock()
}

func (e *env) get(name string) (any, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		v, ok := cur.vars[name]
		cur.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// task is a value produced on another goroutine.
type task struct {
	done chan struct{}
	val  any
	err  error
}

func startTask(ctx context.Context, fn func(context.Context) (any, error)) *task {
	t := &task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.val, t.err = fn(ctx)
	}()
	return t
}

func completedTask(v any) *task {
	t := &task{done: make(chan struct{}), val: v}
	close(t.done)
	return t
}

func (t *task) wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.val, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release undoes a resolution: it disposes what the resolution owns in reverse
// construction order.
type Release func(ctx context.Context) error

func noRelease(context.Context) error { return nil }

// Bag collects the releases of delegate invocations and runs them, newest
// first, when the scope that created the delegate ends. Safe for concurrent
// use.
type Bag struct {
	mu       sync.Mutex
	releases []Release
	closed   bool
}

func (b *Bag) add(ctx context.Context, r Release) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		// The scope is gone; nothing will ever release this invocation.
		return errors.Join(ErrDisposed, r(ctx))
	}
	b.releases = append(b.releases, r)
	b.mu.Unlock()
	return nil
}

// Close runs every collected release once.
func (b *Bag) Close(ctx context.Context) error {
	b.mu.Lock()
	rs := b.releases
	b.releases = nil
	b.closed = true
	b.mu.Unlock()

	var errs []error
	for i := len(rs) - 1; i >= 0; i-- {
		if err := rs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// slot is a singleton cell: lock-free reads once set, creation under mu.
type slot struct {
	val atomic.Value // boxed
	mu  sync.Mutex
}

type boxed struct{ v any }

func (s *slot) load() (any, bool) {
	if b, ok := s.val.Load().(boxed); ok {
		return b.v, true
	}
	return nil, false
}
