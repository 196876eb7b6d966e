// Package render prints container plans. The listing is deterministic: the
// same plan always renders to the same text, so it can be diffed and cached.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocrud/injectgen/plan"
)

const indentUnit = "  "

// Listing writes a text rendering of c to w.
func Listing(w io.Writer, c *plan.Container) error {
	_, err := io.WriteString(w, ListingString(c))
	return err
}

// ListingString renders c as text.
func ListingString(c *plan.Container) string {
	var b strings.Builder
	teardown := "sync"
	if c.AsyncTeardown {
		teardown = "async"
	}
	fmt.Fprintf(&b, "container %s teardown=%s\n", c.Type, teardown)

	for _, s := range c.Singletons {
		fmt.Fprintf(&b, "\nsingleton %s %s%s\n", s.Field, s.Type, asyncTag(s.Async))
		if s.Init != nil {
			writePlan(&b, s.Init, 1)
		}
	}
	for _, r := range c.Roots {
		if r.Stub {
			fmt.Fprintf(&b, "\nroot %s%s stub errors=%d\n", r.Type, asyncTag(r.Async), r.Errors)
			continue
		}
		fmt.Fprintf(&b, "\nroot %s%s\n", r.Type, asyncTag(r.Async))
		writePlan(&b, r.Plan, 1)
	}
	return b.String()
}

func asyncTag(async bool) string {
	if async {
		return " async"
	}
	return ""
}

func writePlan(b *strings.Builder, p *plan.Plan, level int) {
	indent := strings.Repeat(indentUnit, level)
	for _, op := range p.Operations {
		writeOperation(b, op, level)
	}
	fmt.Fprintf(b, "%sreturn %s\n", indent, p.Result)
}

func writeOperation(b *strings.Builder, op plan.Operation, level int) {
	indent := strings.Repeat(indentUnit, level)
	b.WriteString(indent)
	switch s := op.Statement.(type) {
	case *plan.Create:
		fmt.Fprintf(b, "%s = %s %s(%s)", s.Var, s.Call, callee(s), values(s.Args))
	case *plan.SingletonRef:
		fmt.Fprintf(b, "%s = singleton %s", s.Var, s.Singleton.Field)
	case *plan.DisposeBagCreate:
		fmt.Fprintf(b, "%s = bag", s.Var)
	case *plan.InitCall:
		if s.Async {
			fmt.Fprintf(b, "%s = init %s", s.Task, s.Target)
		} else {
			fmt.Fprintf(b, "init %s", s.Target)
		}
	case *plan.DelegateCreate:
		fmt.Fprintf(b, "%s = func %s(%s)%s", s.Var, s.Source.Type, strings.Join(s.Params, ", "), asyncTag(s.Body.Async))
		if s.Bag != "" {
			fmt.Fprintf(b, " bag=%s", s.Bag)
		}
		b.WriteString(" {\n")
		writePlan(b, s.Body, level+1)
		b.WriteString(indent + "}")
	}
	if op.Await != nil {
		if op.Await.Var != "" {
			fmt.Fprintf(b, "; %s = await %s", op.Await.Var, op.Await.Task)
		} else {
			fmt.Fprintf(b, "; await %s", op.Await.Task)
		}
	}
	if d := op.Disposal; d != nil {
		fmt.Fprintf(b, "; %s", disposal(d))
	}
	b.WriteByte('\n')
}

func callee(s *plan.Create) string {
	switch s.Call {
	case plan.CallFactoryMethod, plan.CallDecoratorMethod:
		return fmt.Sprintf("%s.%s", s.Declaring, s.Method)
	case plan.CallFactory:
		return string(s.Declaring) + ".Create"
	}
	return string(s.Type)
}

func values(vs []plan.Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		if v.IsZero() {
			parts[i] = "?"
			continue
		}
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func disposal(d *plan.Disposal) string {
	mode := "sync"
	switch {
	case d.AsyncOnly():
		mode = "async"
	case d.Async:
		mode = "sync|async"
	}
	if d.Kind == plan.DisposeRelease {
		return fmt.Sprintf("release %s via %s", d.Target, d.Factory)
	}
	return fmt.Sprintf("%s %s %s", d.Kind, d.Target, mode)
}
