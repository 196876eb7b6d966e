// Package plan is the intermediate representation produced by lowering: flat,
// ordered operation lists that construct a requested value, and the disposal
// actions paired with them.
package plan

import (
	"github.com/gocrud/injectgen/diag"
	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
)

// Value references a bound variable or a container field.
type Value struct {
	Var   string
	Field string
}

// IsZero reports whether the value references nothing.
func (v Value) IsZero() bool { return v.Var == "" && v.Field == "" }

func (v Value) String() string {
	if v.Field != "" {
		return "this." + v.Field
	}
	return v.Var
}

// Operation is one step of a plan: a statement, the disposal of what it
// produced, and an optional await of the task it returned.
type Operation struct {
	Statement Statement
	Disposal  *Disposal
	Await     *Await
}

// Result is the variable that holds the usable value after the operation.
func (o Operation) Result() string {
	if o.Await != nil {
		return o.Await.Var
	}
	return o.Statement.Binds()
}

// Await unwraps the task held in Task into Var. Var is empty when the awaited
// task carries no value, as for asynchronous initialization.
type Await struct {
	Var  string
	Task string
}

// Plan constructs one value. Operations only reference variables bound by
// earlier operations, enclosing plans, or delegate parameters.
type Plan struct {
	Type       typesys.ID
	Async      bool
	Depth      int
	Operations []Operation
	Result     Value
}

// Disposals returns the disposal actions in construction order.
func (p *Plan) Disposals() []Disposal {
	var out []Disposal
	for _, op := range p.Operations {
		if op.Disposal != nil {
			out = append(out, *op.Disposal)
		}
	}
	return out
}

// HasDisposals reports whether running the plan owns anything to release.
func (p *Plan) HasDisposals() bool {
	for _, op := range p.Operations {
		if op.Disposal != nil {
			return true
		}
	}
	return false
}

// Singleton is a container-wide slot with its lazily run initializer.
type Singleton struct {
	Index  int
	Field  string
	Type   typesys.ID
	Source source.Source
	// Async is set when the initializer awaits; references then await the slot.
	Async bool
	Init  *Plan
}

// Root is one type the container exposes.
type Root struct {
	Type     typesys.ID
	Async    bool
	Location diag.Location
	Plan     *Plan
	// Stub roots failed to resolve and always fail with "not implemented".
	Stub   bool
	Errors int
}

// Container is everything emitted for one container type.
type Container struct {
	Type       typesys.ID
	Roots      []*Root
	Singletons []*Singleton
	// AsyncTeardown is set when releasing the singletons needs to await.
	AsyncTeardown bool
}

// Root returns the root for t.
func (c *Container) Root(t typesys.ID) (*Root, bool) {
	for _, r := range c.Roots {
		if r.Type == t {
			return r, true
		}
	}
	return nil, false
}
