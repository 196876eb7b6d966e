package resolve

import "github.com/gocrud/injectgen/logging"

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger for per-root traces.
func WithLogger(l logging.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}
