package registry

import "github.com/gocrud/injectgen/logging"

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for table construction traces.
func WithLogger(l logging.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}
