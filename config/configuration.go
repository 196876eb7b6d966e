// Package config loads layered configuration. Sources are applied in the
// order they are added and later sources override earlier ones. Keys are
// paths separated by ":" or ".".
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Configuration is a read view over merged configuration data.
type Configuration interface {
	Get(key string) string
	GetWithDefault(key, defaultValue string) string
	GetInt(key string) (int, error)
	GetBool(key string) (bool, error)
	GetDuration(key string) (time.Duration, error)
	GetSection(key string) Configuration
	// Bind decodes the value at key into target. An empty key binds the
	// whole configuration.
	Bind(key string, target any) error
	GetAll() map[string]any
}

// ConfigurationSource produces one layer of configuration.
type ConfigurationSource interface {
	Load() (map[string]any, error)
	Name() string
}

// ConfigurationBuilder collects sources.
type ConfigurationBuilder struct {
	sources []ConfigurationSource
	mu      sync.RWMutex
}

func NewConfigurationBuilder() *ConfigurationBuilder {
	return &ConfigurationBuilder{}
}

func (b *ConfigurationBuilder) Add(source ConfigurationSource) *ConfigurationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, source)
	return b
}

func (b *ConfigurationBuilder) AddJsonFile(path string, optional ...bool) *ConfigurationBuilder {
	return b.Add(&JsonFileSource{Path: path, Optional: len(optional) > 0 && optional[0]})
}

func (b *ConfigurationBuilder) AddYamlFile(path string, optional ...bool) *ConfigurationBuilder {
	return b.Add(&YamlFileSource{Path: path, Optional: len(optional) > 0 && optional[0]})
}

// AddDotenvFile adds a .env file whose keys are read like environment
// variables with the given prefix.
func (b *ConfigurationBuilder) AddDotenvFile(path, prefix string, optional ...bool) *ConfigurationBuilder {
	return b.Add(&DotenvSource{Path: path, Prefix: prefix, Optional: len(optional) > 0 && optional[0]})
}

func (b *ConfigurationBuilder) AddEnvironmentVariables(prefix string) *ConfigurationBuilder {
	return b.Add(&EnvironmentVariableSource{Prefix: prefix})
}

func (b *ConfigurationBuilder) AddInMemory(data map[string]any) *ConfigurationBuilder {
	return b.Add(&InMemorySource{Data: data})
}

func (b *ConfigurationBuilder) AddEtcd(opts EtcdOptions) *ConfigurationBuilder {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	return b.Add(&EtcdSource{Options: opts})
}

// Build loads every source once.
func (b *ConfigurationBuilder) Build() (Configuration, error) {
	return b.BuildReloadable()
}

// BuildReloadable loads every source and keeps them for Reload.
func (b *ConfigurationBuilder) BuildReloadable() (*ReloadableConfiguration, error) {
	b.mu.RLock()
	sources := append([]ConfigurationSource(nil), b.sources...)
	b.mu.RUnlock()

	rc := &ReloadableConfiguration{sources: sources}
	rc.configuration.store = NewValueStore()
	if err := rc.Reload(); err != nil {
		return nil, err
	}
	return rc, nil
}

func loadAll(sources []ConfigurationSource) (map[string]any, error) {
	data := make(map[string]any)
	for _, source := range sources {
		layer, err := source.Load()
		if err != nil {
			return nil, fmt.Errorf("load config source %s: %w", source.Name(), err)
		}
		mergeMaps(data, layer)
	}
	return data, nil
}

// ReloadableConfiguration is a Configuration that can re-read its sources.
type ReloadableConfiguration struct {
	configuration
	sources []ConfigurationSource

	mu        sync.Mutex
	callbacks []func()
}

// Reload re-reads every source and swaps the data atomically. On error the
// previous data stays in place.
func (r *ReloadableConfiguration) Reload() error {
	data, err := loadAll(r.sources)
	if err != nil {
		return err
	}
	r.store.Store(data)

	r.mu.Lock()
	cbs := append([]func(){}, r.callbacks...)
	r.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
	return nil
}

// OnReload registers fn to run after every successful Reload.
func (r *ReloadableConfiguration) OnReload(fn func()) {
	r.mu.Lock()
	r.callbacks = append(r.callbacks, fn)
	r.mu.Unlock()
}

// configuration reads from a ValueStore snapshot, so reads never block a
// reload.
type configuration struct {
	store *ValueStore
}

func sectionOf(data map[string]any) *configuration {
	s := NewValueStore()
	s.Store(data)
	return &configuration{store: s}
}

func (c *configuration) Get(key string) string {
	switch v := c.getByPath(key).(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (c *configuration) GetWithDefault(key, defaultValue string) string {
	if v := c.Get(key); v != "" {
		return v
	}
	return defaultValue
}

func (c *configuration) GetInt(key string) (int, error) {
	switch v := c.getByPath(key).(type) {
	case nil:
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("config: cannot convert %v to int", v)
	}
}

func (c *configuration) GetBool(key string) (bool, error) {
	switch v := c.getByPath(key).(type) {
	case nil:
		return false, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("config: cannot convert %v to bool", v)
	}
}

// GetDuration accepts a Go duration string or a number of seconds.
func (c *configuration) GetDuration(key string) (time.Duration, error) {
	switch v := c.getByPath(key).(type) {
	case nil:
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	case string:
		return time.ParseDuration(v)
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("config: cannot convert %v to duration", v)
	}
}

func (c *configuration) GetSection(key string) Configuration {
	if m, ok := c.getByPath(key).(map[string]any); ok {
		return sectionOf(m)
	}
	return sectionOf(make(map[string]any))
}

func (c *configuration) Bind(key string, target any) error {
	data := c.getByPath(key)
	if data == nil {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	// Round-trip through JSON so json tags and Unmarshalers drive binding.
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("config: marshal %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("config: bind %s: %w", key, err)
	}
	return nil
}

func (c *configuration) GetAll() map[string]any {
	out := make(map[string]any)
	mergeMaps(out, c.store.Load())
	return out
}

func (c *configuration) getByPath(path string) any {
	data := c.store.Load()
	if path == "" {
		return data
	}
	var cur any = data
	for _, part := range globalPathCache.GetPathSegments(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// mergeMaps deep-merges src into dst. Nested maps are copied so that dst
// never aliases a source's data.
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			dstMap, ok := dst[k].(map[string]any)
			if !ok {
				dstMap = make(map[string]any)
				dst[k] = dstMap
			}
			mergeMaps(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
}
