// Package dispose decides how constructed values are released and in which
// order.
package dispose

import (
	"slices"

	"github.com/gocrud/injectgen/diag"
	"github.com/gocrud/injectgen/logging"
	"github.com/gocrud/injectgen/plan"
	"github.com/gocrud/injectgen/registry"
	"github.com/gocrud/injectgen/source"
	"github.com/gocrud/injectgen/typesys"
)

// Planner computes disposal actions. It is stateless apart from its
// collaborators and may be shared by the passes of one container.
type Planner struct {
	oracle typesys.Oracle
	sink   diag.Sink
	logger logging.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the planner logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPlanner(oracle typesys.Oracle, sink diag.Sink, opts ...Option) *Planner {
	p := &Planner{oracle: oracle, sink: sink, logger: logging.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithCategory("dispose")
	return p
}

// ActionFor returns the disposal of the value bound to target by src, or nil
// when nothing must be released. args are the values passed to src, so that a
// factory produced value can be handed back to its factory. Values released
// through a factory are never disposed directly.
func (p *Planner) ActionFor(src source.Source, target string, args []plan.Value) *plan.Disposal {
	switch v := src.(type) {
	case *source.Registration:
		return p.byCapability(v.Type, target)
	case *source.FactoryMethod:
		return p.byCapability(v.Produces, target)
	case *source.FactoryRegistration:
		if len(args) == 0 {
			return nil
		}
		return &plan.Disposal{Kind: plan.DisposeRelease, Target: target, Factory: args[0], Sync: true}
	case *source.Decorator:
		if !v.Spec.Dispose {
			return nil
		}
		return p.byCapability(v.Spec.Type, target)
	}
	return nil
}

func (p *Planner) byCapability(t typesys.ID, target string) *plan.Disposal {
	info, ok := p.oracle.Info(t)
	if !ok || !info.Disposal.Any() {
		return nil
	}
	return &plan.Disposal{
		Kind:   plan.DisposeValue,
		Target: target,
		Sync:   info.Disposal.Sync,
		Async:  info.Disposal.Async,
	}
}

// BagFor returns the disposal of a dispose bag collecting invocations of body.
// The bag needs async disposal when anything in body does.
func (p *Planner) BagFor(bag string, body *plan.Plan) *plan.Disposal {
	async := NeedsAsync(body.Disposals())
	return &plan.Disposal{Kind: plan.DisposeBag, Target: bag, Sync: !async, Async: true}
}

// CheckContext warns when an async-only disposal must run where nothing can
// await. A synchronous fallback is still emitted.
func (p *Planner) CheckContext(d *plan.Disposal, async bool, src source.Source) {
	if d == nil || async || !d.AsyncOnly() {
		return
	}
	diag.Report(p.sink, diag.AsyncDisposalInSyncContext, source.LocationOf(src),
		"%s only supports asynchronous disposal but is released synchronously", src.OfType())
}

// NeedsAsync reports whether any of ds can only be released asynchronously.
func NeedsAsync(ds []plan.Disposal) bool {
	return slices.ContainsFunc(ds, plan.Disposal.AsyncOnly)
}

// Teardown returns the disposals of ops in exact reverse construction order.
func Teardown(ops []plan.Operation) []plan.Disposal {
	var out []plan.Disposal
	for i := len(ops) - 1; i >= 0; i-- {
		if d := ops[i].Disposal; d != nil {
			out = append(out, *d)
		}
	}
	return out
}

// Unwind returns what must be released when operation k fails: everything
// produced by the operations before it, in reverse.
func Unwind(ops []plan.Operation, k int) []plan.Disposal {
	if k > len(ops) {
		k = len(ops)
	}
	if k < 0 {
		k = 0
	}
	return Teardown(ops[:k])
}

// ContainerTeardown decides whether the container's teardown is async. It is
// async when any singleton initializer owns an async-only disposal, unless the
// container asked for synchronous disposal: that container is warned and keeps
// a synchronous teardown that releases such values on a best-effort basis.
func (p *Planner) ContainerTeardown(c *plan.Container, pref registry.DisposalPreference, loc diag.Location) bool {
	async := pref == registry.DisposalAsync
	var needs bool
	for _, s := range c.Singletons {
		if s.Init != nil && NeedsAsync(s.Init.Disposals()) {
			needs = true
			break
		}
	}
	if needs && pref == registry.DisposalSync {
		diag.Report(p.sink, diag.SyncTeardownOfAsyncValue, loc,
			"container %s asks for synchronous disposal but owns values that can only be released asynchronously", c.Type)
	}
	p.logger.Debug("container teardown planned",
		logging.Field{Key: "container", Value: c.Type},
		logging.Field{Key: "needsAsync", Value: needs})
	return async || (needs && pref != registry.DisposalSync)
}
