package source

import (
	"fmt"
	"sync"

	"github.com/gocrud/injectgen/typesys"
)

// Lookuper is a flat type to source mapping, usually a registration table.
type Lookuper interface {
	Lookup(id typesys.ID) (Source, bool)
}

// Chain is one level of the instance source scope chain. The root level is
// backed by a registration table; every delegate body adds a level holding the
// delegate's parameters. Levels are never modified after creation.
type Chain struct {
	parent  *Chain
	depth   int
	entries map[typesys.ID]Source
	table   Lookuper
	oracle  typesys.Oracle
	synth   *synthesized
}

type nullableKey struct {
	as         typesys.ID
	underlying Source
}

// synthesized interns sources created on demand so that every lookup of the
// same delegate or nullable type yields the same pointer.
type synthesized struct {
	mu        sync.Mutex
	delegates map[typesys.ID]*Delegate
	nullables map[nullableKey]*Forwarded
}

// NewChain creates the root level over table.
func NewChain(table Lookuper, oracle typesys.Oracle) *Chain {
	return &Chain{
		table:  table,
		oracle: oracle,
		synth: &synthesized{
			delegates: make(map[typesys.ID]*Delegate),
			nullables: make(map[nullableKey]*Forwarded),
		},
	}
}

// Depth is 0 for the root and increases by one per enclosing delegate.
func (c *Chain) Depth() int { return c.depth }

// Parent returns the enclosing level, nil at the root.
func (c *Chain) Parent() *Chain { return c.parent }

// Oracle returns the type oracle the chain was built with.
func (c *Chain) Oracle() typesys.Oracle { return c.oracle }

// Root returns the container level.
func (c *Chain) Root() *Chain {
	for c.parent != nil {
		c = c.parent
	}
	return c
}

// Lookup finds the source for id, walking outward from the innermost level.
// Delegate types and nullable value types without an explicit entry are
// synthesised.
func (c *Chain) Lookup(id typesys.ID) (Source, bool) {
	if src, ok := c.find(id); ok {
		return src, true
	}
	info, ok := c.oracle.Info(id)
	if !ok {
		return nil, false
	}
	switch info.Kind {
	case typesys.KindDelegate:
		if d := c.delegate(id, info); d != nil {
			return d, true
		}
	case typesys.KindNullable:
		under, ok := c.Lookup(info.Elem)
		if !ok {
			return nil, false
		}
		return c.nullable(id, under), true
	}
	return nil, false
}

func (c *Chain) find(id typesys.ID) (Source, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if src, ok := cur.entries[id]; ok {
			return src, true
		}
		if cur.table != nil {
			if src, ok := cur.table.Lookup(id); ok {
				return src, true
			}
		}
	}
	return nil, false
}

func (c *Chain) delegate(id typesys.ID, info *typesys.TypeInfo) *Delegate {
	if info.Signature == nil {
		return nil
	}
	c.synth.mu.Lock()
	defer c.synth.mu.Unlock()
	if d, ok := c.synth.delegates[id]; ok {
		return d
	}
	d := &Delegate{
		Type:   id,
		Params: append([]typesys.ID(nil), info.Signature.Params...),
		Return: info.Signature.Return,
	}
	if elem, ok := typesys.IsTask(c.oracle, d.Return); ok {
		d.Return = elem
		d.Async = true
	}
	c.synth.delegates[id] = d
	return d
}

func (c *Chain) nullable(id typesys.ID, under Source) *Forwarded {
	key := nullableKey{as: id, underlying: under}
	c.synth.mu.Lock()
	defer c.synth.mu.Unlock()
	if f, ok := c.synth.nullables[key]; ok {
		return f
	}
	f := &Forwarded{As: id, Underlying: under}
	c.synth.nullables[key] = f
	return f
}

// EnterDelegate returns the level used to resolve the body of d. Each parameter
// becomes a DelegateParameter that shadows outer entries of the same type. When
// two parameters share a type the first one is visible; all are returned.
func (c *Chain) EnterDelegate(d *Delegate) (*Chain, []*DelegateParameter) {
	inner := &Chain{
		parent:  c,
		depth:   c.depth + 1,
		entries: make(map[typesys.ID]Source, len(d.Params)),
		oracle:  c.oracle,
		synth:   c.synth,
	}
	params := make([]*DelegateParameter, len(d.Params))
	for i, t := range d.Params {
		p := &DelegateParameter{
			Type:  t,
			Name:  fmt.Sprintf("arg%d", i),
			Depth: inner.depth,
			Index: i,
		}
		params[i] = p
		if _, dup := inner.entries[t]; !dup {
			inner.entries[t] = p
		}
	}
	return inner, params
}
