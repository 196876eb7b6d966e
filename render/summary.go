package render

import (
	"github.com/gocrud/injectgen/diag"
	"github.com/gocrud/injectgen/plan"
	"github.com/gocrud/injectgen/typesys"
)

// Summary is the JSON view of one planned container.
type Summary struct {
	Container     typesys.ID        `json:"container"`
	AsyncTeardown bool              `json:"asyncTeardown"`
	Roots         []RootSummary     `json:"roots"`
	Singletons    []SingletonInfo   `json:"singletons"`
	Diagnostics   []diag.Diagnostic `json:"diagnostics"`
	Errors        int               `json:"errors"`
	Listing       string            `json:"listing,omitempty"`
}

// RootSummary describes one root.
type RootSummary struct {
	Type       typesys.ID `json:"type"`
	Async      bool       `json:"async"`
	Stub       bool       `json:"stub"`
	Errors     int        `json:"errors"`
	Operations int        `json:"operations"`
	Disposals  int        `json:"disposals"`
}

// SingletonInfo describes one singleton slot.
type SingletonInfo struct {
	Field string     `json:"field"`
	Type  typesys.ID `json:"type"`
	Async bool       `json:"async"`
}

// Summarize builds the summary of c with the diagnostics reported while
// planning it. c may be nil when the id was not a container.
func Summarize(id typesys.ID, c *plan.Container, bag *diag.Bag, withListing bool) Summary {
	s := Summary{
		Container:   id,
		Roots:       []RootSummary{},
		Singletons:  []SingletonInfo{},
		Diagnostics: []diag.Diagnostic{},
	}
	if bag != nil {
		s.Diagnostics = append(s.Diagnostics, bag.Sorted()...)
		s.Errors = bag.ErrorCount()
	}
	if c == nil {
		return s
	}
	s.AsyncTeardown = c.AsyncTeardown
	for _, r := range c.Roots {
		rs := RootSummary{Type: r.Type, Async: r.Async, Stub: r.Stub, Errors: r.Errors}
		if r.Plan != nil {
			rs.Operations = countOperations(r.Plan)
			rs.Disposals = len(r.Plan.Disposals())
		}
		s.Roots = append(s.Roots, rs)
	}
	for _, sg := range c.Singletons {
		s.Singletons = append(s.Singletons, SingletonInfo{Field: sg.Field, Type: sg.Type, Async: sg.Async})
	}
	if withListing {
		s.Listing = ListingString(c)
	}
	return s
}

// countOperations counts operations including those of delegate bodies.
func countOperations(p *plan.Plan) int {
	n := len(p.Operations)
	for _, op := range p.Operations {
		if dc, ok := op.Statement.(*plan.DelegateCreate); ok {
			n += countOperations(dc.Body)
		}
	}
	return n
}
