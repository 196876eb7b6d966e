package config

import (
	"strings"
	"sync"
)

// PathCache memoizes key path splitting.
type PathCache struct {
	cache sync.Map
}

// GetPathSegments splits path on ":" and ".".
func (c *PathCache) GetPathSegments(path string) []string {
	if v, ok := c.cache.Load(path); ok {
		return v.([]string)
	}
	parts := strings.Split(strings.ReplaceAll(path, ":", "."), ".")
	c.cache.Store(path, parts)
	return parts
}

var globalPathCache = &PathCache{}
