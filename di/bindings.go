package di

import (
	"context"
	"fmt"

	"github.com/gocrud/injectgen/typesys"
)

// Initializer is implemented by values that need initialization after
// construction.
type Initializer interface {
	Init(ctx context.Context) error
}

// AsyncCloser is implemented by values released asynchronously. Values
// released synchronously implement io.Closer.
type AsyncCloser interface {
	CloseContext(ctx context.Context) error
}

// Factory produces values for factory registrations.
type Factory interface {
	Create(ctx context.Context) (any, error)
}

// Releaser is implemented by factories that take back the values they made.
type Releaser interface {
	Release(ctx context.Context, v any) error
}

// Bindings maps the calls in a container plan to Go code.
type Bindings struct {
	constructors map[typesys.ID]invoker
	methods      map[string]invoker
	fields       map[string]any
}

func NewBindings() *Bindings {
	return &Bindings{
		constructors: make(map[typesys.ID]invoker),
		methods:      make(map[string]invoker),
		fields:       make(map[string]any),
	}
}

// Constructor binds the constructor of t, used for registrations and
// decorators. fn takes the constructor parameters in declaration order,
// optionally preceded by a context.Context.
func (b *Bindings) Constructor(t typesys.ID, fn any) *Bindings {
	b.constructors[t] = newInvoker(string(t), fn)
	return b
}

// Method binds the factory or decorator method declaring.name.
func (b *Bindings) Method(declaring typesys.ID, name string, fn any) *Bindings {
	key := methodKey(declaring, name)
	b.methods[key] = newInvoker(key, fn)
	return b
}

// Field binds an instance field or property of the container.
func (b *Bindings) Field(name string, v any) *Bindings {
	b.fields[name] = v
	return b
}

func methodKey(declaring typesys.ID, name string) string {
	return fmt.Sprintf("%s.%s", declaring, name)
}

func (b *Bindings) constructor(t typesys.ID) (invoker, error) {
	if fn, ok := b.constructors[t]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("%w: constructor of %s", ErrMissingBinding, t)
}

func (b *Bindings) method(declaring typesys.ID, name string) (invoker, error) {
	if fn, ok := b.methods[methodKey(declaring, name)]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("%w: method %s", ErrMissingBinding, methodKey(declaring, name))
}

func (b *Bindings) field(name string) (any, error) {
	if v, ok := b.fields[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: field %s", ErrMissingBinding, name)
}
