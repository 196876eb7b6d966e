package plan

import (
	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
)

// Statement is the action of an operation.
type Statement interface {
	// Binds is the variable the statement assigns, empty if none.
	Binds() string
	isStatement()
}

// CallKind is how a Create statement produces its value.
type CallKind uint8

const (
	// CallConstructor invokes the constructor of Type.
	CallConstructor CallKind = iota
	// CallFactoryMethod invokes Declaring.Method.
	CallFactoryMethod
	// CallFactory invokes the factory held in Args[0].
	CallFactory
	// CallDecorator invokes the decorator constructor of Type.
	CallDecorator
	// CallDecoratorMethod invokes the decorator method Declaring.Method.
	CallDecoratorMethod
)

func (k CallKind) String() string {
	switch k {
	case CallFactoryMethod:
		return "method"
	case CallFactory:
		return "factory"
	case CallDecorator:
		return "decorator"
	case CallDecoratorMethod:
		return "decorator-method"
	default:
		return "new"
	}
}

// Create produces a value. When Async is set Var holds a task that the
// operation's Await unwraps.
type Create struct {
	Var       string
	Source    source.Source
	Call      CallKind
	Type      typesys.ID
	Declaring typesys.ID
	Method    string
	Args      []Value
	Async     bool
}

// SingletonRef reads a singleton slot, running its initializer under the slot
// lock on first use.
type SingletonRef struct {
	Var       string
	Singleton *Singleton
}

// DelegateCreate builds a function value whose invocations run Body. Bag is
// the dispose bag collecting per-invocation releases, empty if Body owns
// nothing.
type DelegateCreate struct {
	Var    string
	Source *source.Delegate
	Params []string
	Body   *Plan
	Bag    string
}

// InitCall runs the required initialization of Target. An async call stores
// its task in Task.
type InitCall struct {
	Target string
	Async  bool
	Task   string
}

// DisposeBagCreate creates an empty concurrent dispose bag.
type DisposeBagCreate struct {
	Var string
}

func (s *Create) Binds() string           { return s.Var }
func (s *SingletonRef) Binds() string     { return s.Var }
func (s *DelegateCreate) Binds() string   { return s.Var }
func (s *InitCall) Binds() string         { return s.Task }
func (s *DisposeBagCreate) Binds() string { return s.Var }

func (*Create) isStatement()           {}
func (*SingletonRef) isStatement()     {}
func (*DelegateCreate) isStatement()   {}
func (*InitCall) isStatement()         {}
func (*DisposeBagCreate) isStatement() {}

// DisposalKind is how a constructed value is released.
type DisposalKind uint8

const (
	// DisposeValue calls the value's own dispose capability.
	DisposeValue DisposalKind = iota
	// DisposeRelease hands the value back to the factory that produced it.
	DisposeRelease
	// DisposeBag runs every release collected in a dispose bag.
	DisposeBag
)

func (k DisposalKind) String() string {
	switch k {
	case DisposeRelease:
		return "release"
	case DisposeBag:
		return "bag"
	default:
		return "dispose"
	}
}

// Disposal releases Target. Sync and Async record which forms are available;
// a disposal with only Async needs an asynchronous teardown.
type Disposal struct {
	Kind    DisposalKind
	Target  string
	Factory Value
	Sync    bool
	Async   bool
}

// AsyncOnly reports whether the disposal cannot run synchronously.
func (d Disposal) AsyncOnly() bool {
	return d.Async && !d.Sync
}
