// Package generator plans whole containers: it builds the registration table,
// checks and lowers every declared root, and decides the container teardown.
package generator

import (
	"github.com/gocrud/injectgen/diag"
	"github.com/gocrud/injectgen/dispose"
	"github.com/gocrud/injectgen/logging"
	"github.com/gocrud/injectgen/lower"
	"github.com/gocrud/injectgen/plan"
	"github.com/gocrud/injectgen/registry"
	"github.com/gocrud/injectgen/resolve"
	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
)

// Generator plans containers declared on a surface.
type Generator struct {
	surface registry.Surface
	oracle  typesys.Oracle
	logger  logging.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger handed to every planning pass.
func WithLogger(l logging.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

func New(surface registry.Surface, oracle typesys.Oracle, opts ...Option) *Generator {
	g := &Generator{surface: surface, oracle: oracle, logger: logging.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate plans the container id. Problems never abort planning: they are
// collected in the returned bag, and a root that fails to resolve becomes a
// stub while the other roots are planned normally. The container is nil only
// when id is not a container.
func (g *Generator) Generate(id typesys.ID) (*plan.Container, *diag.Bag) {
	bag := diag.NewBag()
	logger := g.logger.WithCategory("generator").WithFields(logging.Field{Key: "container", Value: id})

	decls, ok := g.surface.Declarations(id)
	if !ok || !decls.Container {
		var loc diag.Location
		if decls != nil {
			loc = decls.Location
		}
		diag.Report(bag, diag.NotAContainer, loc, "%s is not a container", id)
		return nil, bag
	}

	table := registry.NewBuilder(g.surface, g.oracle, bag, registry.WithLogger(g.logger)).GetRegistrations(id)
	chain := source.NewChain(table, g.oracle)
	checker := resolve.NewChecker(chain, bag, resolve.WithLogger(g.logger))
	disposer := dispose.NewPlanner(g.oracle, bag, dispose.WithLogger(g.logger))
	lowerer := lower.New(chain, disposer, lower.WithLogger(g.logger))

	c := &plan.Container{Type: id}
	seen := make(map[typesys.ID]bool, len(decls.Roots))
	for _, rd := range decls.Roots {
		if seen[rd.Type] {
			logger.Warn("duplicate root ignored", logging.Field{Key: "root", Value: rd.Type})
			continue
		}
		seen[rd.Type] = true

		res := checker.Check(resolve.Request{Type: rd.Type, Async: rd.Async, Location: rd.Location})
		root := &plan.Root{Type: rd.Type, Async: rd.Async, Location: rd.Location, Errors: res.Errors}
		if res.OK() {
			root.Plan = lowerer.Lower(lower.Request{Type: rd.Type, Async: rd.Async, Source: res.Source})
		} else {
			root.Stub = true
			logger.Info("root stubbed",
				logging.Field{Key: "root", Value: rd.Type},
				logging.Field{Key: "errors", Value: res.Errors})
		}
		c.Roots = append(c.Roots, root)
	}

	c.Singletons = lowerer.Singletons()
	c.AsyncTeardown = disposer.ContainerTeardown(c, decls.Disposal, decls.Location)
	logger.Debug("container planned",
		logging.Field{Key: "roots", Value: len(c.Roots)},
		logging.Field{Key: "singletons", Value: len(c.Singletons)},
		logging.Field{Key: "diagnostics", Value: bag.Len()})
	return c, bag
}

// Containers returns the ids among ids that declare a container.
func (g *Generator) Containers(ids []typesys.ID) []typesys.ID {
	var out []typesys.ID
	for _, id := range ids {
		if d, ok := g.surface.Declarations(id); ok && d.Container {
			out = append(out, id)
		}
	}
	return out
}
