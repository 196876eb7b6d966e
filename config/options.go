package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gocrud/injectgen/logging"
)

// OptionsCache keeps a section bound to T and rebinds it whenever the
// configuration reloads.
type OptionsCache[T any] struct {
	config  Configuration
	section string
	logger  logging.Logger
	current T
	mu      sync.RWMutex
}

// NewOptionsCache binds section once. A missing section leaves def in place;
// a section that does not bind to T is an error. A nil logger discards the
// reports of failed rebinds.
func NewOptionsCache[T any](config Configuration, section string, def T, logger logging.Logger) (*OptionsCache[T], error) {
	if logger == nil {
		logger = logging.Nop()
	}
	c := &OptionsCache[T]{config: config, section: section, logger: logger, current: def}
	if err := c.reload(); err != nil {
		return nil, err
	}
	if rc, ok := config.(interface{ OnReload(func()) }); ok {
		rc.OnReload(func() {
			if err := c.reload(); err != nil {
				c.logger.Warn("keeping previous config section",
					logging.Field{Key: "section", Value: section},
					logging.Field{Key: "error", Value: err})
			}
		})
	}
	return c, nil
}

func (c *OptionsCache[T]) reload() error {
	c.mu.RLock()
	next := c.current
	c.mu.RUnlock()
	if err := c.config.Bind(c.section, &next); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("bind config section %s: %w", c.section, err)
	}
	c.mu.Lock()
	c.current = next
	c.mu.Unlock()
	return nil
}

// Get returns the current value.
func (c *OptionsCache[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}
