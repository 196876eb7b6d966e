package lower

import (
	"fmt"

	"github.com/gocrud/injectgen/plan"
	"github.com/gocrud/injectgen/source"
)

type binding struct {
	val   plan.Value
	depth int
}

// frame is the lowering state of one plan: the container level, a delegate
// body, or a singleton initializer. Bindings made in a frame are never seen
// by sibling frames.
type frame struct {
	parent *frame
	depth  int
	chain  *source.Chain
	async  bool
	ops    []plan.Operation
	bound  map[source.Source]binding
	next   int
	// creating is the single-instance source this frame initializes.
	creating source.Source
}

func newFrame(parent *frame, chain *source.Chain, async bool) *frame {
	f := &frame{
		parent: parent,
		chain:  chain,
		async:  async,
		bound:  make(map[source.Source]binding),
	}
	if parent != nil {
		f.depth = parent.depth + 1
	}
	return f
}

// newVar returns a fresh name of the form _<depth>_<counter>.
func (f *frame) newVar() string {
	name := fmt.Sprintf("_%d_%d", f.depth, f.next)
	f.next++
	return name
}

func (f *frame) emit(op plan.Operation) {
	f.ops = append(f.ops, op)
}

func (f *frame) bind(src source.Source, val plan.Value) {
	f.bound[src] = binding{val: val, depth: f.depth}
}

// find returns the nearest binding of src and the frame holding it.
func (f *frame) find(src source.Source) (binding, *frame, bool) {
	for cur := f; cur != nil; cur = cur.parent {
		if b, ok := cur.bound[src]; ok {
			return b, cur, true
		}
	}
	return binding{}, nil, false
}

func (f *frame) plan(p *plan.Plan) *plan.Plan {
	p.Async = f.async
	p.Depth = f.depth
	p.Operations = f.ops
	return p
}
