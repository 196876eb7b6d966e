// Package diag defines the diagnostics produced while building registration
// tables, checking dependency graphs and planning disposal.
//
// Diagnostics are data, not control flow: every pass reports into a Sink and
// keeps going so that one run surfaces as many independent problems as possible.
package diag

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Severity of a diagnostic.
type Severity uint8

const (
	SeverityWarning Severity = iota
	SeverityError
)

// String returns the lower-case severity name.
func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Location points at the declaration a diagnostic is about.
type Location struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// IsZero reports whether the location carries no information.
func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0 && l.Symbol == ""
}

// String formats the location as file:line (symbol).
func (l Location) String() string {
	var b strings.Builder
	if l.File != "" {
		b.WriteString(l.File)
		if l.Line > 0 {
			fmt.Fprintf(&b, ":%d", l.Line)
		}
	}
	if l.Symbol != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "(%s)", l.Symbol)
	}
	return b.String()
}

// Diagnostic is a single reported problem.
type Diagnostic struct {
	Code     Code     `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Location Location `json:"location"`
}

// String formats the diagnostic the way compilers do.
func (d Diagnostic) String() string {
	loc := d.Location.String()
	if loc == "" {
		return fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s %s: %s", loc, d.Severity, d.Code, d.Message)
}

// Sink receives diagnostics.
type Sink interface {
	Report(d Diagnostic)
}

// Report builds a diagnostic for code with the code's default severity.
func Report(sink Sink, code Code, loc Location, format string, args ...any) {
	sink.Report(Diagnostic{
		Code:     code,
		Severity: code.Severity(),
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	})
}

// Bag is a Sink that collects diagnostics. A Bag is safe for concurrent use.
type Bag struct {
	mu    sync.Mutex
	items []Diagnostic
}

// NewBag creates an empty bag.
func NewBag() *Bag {
	return &Bag{}
}

// Report implements Sink.
func (b *Bag) Report(d Diagnostic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, d)
}

// All returns the collected diagnostics in report order.
func (b *Bag) All() []Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	return out
}

// Len returns the number of collected diagnostics.
func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// ErrorCount returns the number of error diagnostics.
func (b *Bag) ErrorCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, d := range b.items {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}

// HasErrors reports whether any error diagnostic was collected.
func (b *Bag) HasErrors() bool {
	return b.ErrorCount() > 0
}

// WithCode returns the diagnostics that carry code.
func (b *Bag) WithCode(code Code) []Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Diagnostic
	for _, d := range b.items {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// Merge appends every diagnostic of other.
func (b *Bag) Merge(other *Bag) {
	for _, d := range other.All() {
		b.Report(d)
	}
}

// Sorted returns the diagnostics ordered by location, then code, then message.
func (b *Bag) Sorted() []Diagnostic {
	out := b.All()
	sort.SliceStable(out, func(i, j int) bool {
		a, c := out[i], out[j]
		if a.Location.File != c.Location.File {
			return a.Location.File < c.Location.File
		}
		if a.Location.Line != c.Location.Line {
			return a.Location.Line < c.Location.Line
		}
		if a.Code != c.Code {
			return a.Code < c.Code
		}
		return a.Message < c.Message
	})
	return out
}

// Counter wraps a Sink and counts the errors that pass through it.
type Counter struct {
	Sink   Sink
	errors int
}

// Report implements Sink.
func (c *Counter) Report(d Diagnostic) {
	if d.Severity == SeverityError {
		c.errors++
	}
	c.Sink.Report(d)
}

// Errors returns the number of errors reported so far.
func (c *Counter) Errors() int {
	return c.errors
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Report(Diagnostic) {}
