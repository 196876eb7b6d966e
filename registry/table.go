package registry

import (
	"sort"

	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
)

// Table maps target types to their instance sources for one module or
// container. Decorators are kept apart from the base entries so that an
// importer can stack its own decorators on top.
type Table struct {
	module     typesys.ID
	decls      *Declarations
	bases      map[typesys.ID]source.Source
	decorators map[typesys.ID][]*source.DecoratorSpec
	entries    map[typesys.ID]source.Source
}

func newTable(module typesys.ID, decls *Declarations) *Table {
	return &Table{
		module:     module,
		decls:      decls,
		bases:      make(map[typesys.ID]source.Source),
		decorators: make(map[typesys.ID][]*source.DecoratorSpec),
		entries:    make(map[typesys.ID]source.Source),
	}
}

// Module is the type the table was built for.
func (t *Table) Module() typesys.ID { return t.module }

// Declarations returns the direct declarations of the module, nil when the
// module is unknown.
func (t *Table) Declarations() *Declarations { return t.decls }

// Lookup implements source.Lookuper. The returned source already includes
// every applicable decorator.
func (t *Table) Lookup(id typesys.ID) (source.Source, bool) {
	s, ok := t.entries[id]
	return s, ok
}

// Base returns the undecorated source for id.
func (t *Table) Base(id typesys.ID) (source.Source, bool) {
	s, ok := t.bases[id]
	return s, ok
}

// Decorators returns the decorators applied to id, innermost first.
func (t *Table) Decorators(id typesys.ID) []*source.DecoratorSpec {
	return t.decorators[id]
}

// Types returns the registered target types in sorted order.
func (t *Table) Types() []typesys.ID {
	ids := make([]typesys.ID, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of registered target types.
func (t *Table) Len() int { return len(t.entries) }

// compose wraps every base entry in its decorators, inside-out.
func (t *Table) compose() {
	for id, base := range t.bases {
		var cur source.Source = base
		for _, spec := range t.decorators[id] {
			cur = &source.Decorator{Spec: spec, Inner: cur}
		}
		t.entries[id] = cur
	}
}
