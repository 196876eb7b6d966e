// Package planning plans the containers of a manifest and records the
// results. It is shared by the HTTP API, the watcher and the CLI.
package planning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/gocrud/injectgen/database"
	"github.com/gocrud/injectgen/generator"
	"github.com/gocrud/injectgen/logging"
	"github.com/gocrud/injectgen/manifest"
	"github.com/gocrud/injectgen/render"
	"github.com/gocrud/injectgen/typesys"
)

var (
	ErrUnknownContainer = errors.New("unknown container")
	ErrNoStore          = errors.New("no plan store configured")
)

// Cache holds encoded results keyed by manifest digest and container.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Result is the outcome of planning one manifest.
type Result struct {
	Manifest   string           `json:"manifest"`
	Digest     string           `json:"digest"`
	Containers []render.Summary `json:"containers"`
	Errors     int              `json:"errors"`
	Cached     bool             `json:"cached"`
}

// Service plans manifests. Store and cache are optional.
type Service struct {
	store  database.Store
	cache  Cache
	logger logging.Logger
}

func NewService(logger logging.Logger, store database.Store, cache Cache) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{store: store, cache: cache, logger: logger.WithCategory("planning")}
}

// CacheKey is the key a result is cached under.
func CacheKey(digest, container string) string {
	if container == "" {
		container = "*"
	}
	return digest + ":" + container
}

// Plan plans container, or every container of the manifest when container
// is empty. Planning problems are reported in the summaries; an error is
// returned only when the manifest cannot be read or container is unknown.
func (s *Service) Plan(ctx context.Context, raw []byte, name, container string) (*Result, error) {
	digest := manifest.Digest(raw)
	key := CacheKey(digest, container)
	if r, ok := s.cached(ctx, key, name); ok {
		return r, nil
	}

	m, err := manifest.Parse(raw, name)
	if err != nil {
		return nil, err
	}
	u, surface, err := m.Build()
	if err != nil {
		return nil, err
	}

	ids := m.Containers()
	if container != "" {
		if !slices.Contains(ids, container) {
			return nil, fmt.Errorf("%w: %s in %s", ErrUnknownContainer, container, name)
		}
		ids = []string{container}
	}

	g := generator.New(surface, u, generator.WithLogger(s.logger))
	res := &Result{Manifest: name, Digest: digest, Containers: make([]render.Summary, 0, len(ids))}
	for _, id := range ids {
		c, bag := g.Generate(typesys.ID(id))
		sum := render.Summarize(typesys.ID(id), c, bag, true)
		res.Containers = append(res.Containers, sum)
		res.Errors += sum.Errors
		if err := s.record(ctx, sum, name, digest); err != nil {
			return nil, err
		}
	}
	s.logger.Info("manifest planned",
		logging.Field{Key: "manifest", Value: name},
		logging.Field{Key: "containers", Value: len(ids)},
		logging.Field{Key: "errors", Value: res.Errors})

	s.remember(ctx, key, res)
	return res, nil
}

// PlanFile plans the manifest at path.
func (s *Service) PlanFile(ctx context.Context, path, container string) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return s.Plan(ctx, raw, path, container)
}

// Latest returns the newest stored summary of container.
func (s *Service) Latest(ctx context.Context, container string) (*database.Record, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.Latest(ctx, container)
}

// History returns up to limit stored records of container, newest first.
func (s *Service) History(ctx context.Context, container string, limit int) ([]*database.Record, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.History(ctx, container, limit)
}

func (s *Service) record(ctx context.Context, sum render.Summary, name, digest string) error {
	if s.store == nil {
		return nil
	}
	r, err := database.NewRecord(sum, name, digest)
	if err != nil {
		return err
	}
	return s.store.Save(ctx, r)
}

// cached returns the result stored under key, reported for manifest name:
// identical manifests share an entry whatever they are called.
func (s *Service) cached(ctx context.Context, key, name string) (*Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache read failed", logging.Field{Key: "key", Value: key}, logging.Field{Key: "error", Value: err})
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		s.logger.Warn("discarding unreadable cache entry", logging.Field{Key: "key", Value: key})
		return nil, false
	}
	r.Manifest = name
	r.Cached = true
	return &r, true
}

// remember caches res. Cache failures only cost a recomputation later.
func (s *Service) remember(ctx context.Context, key string, res *Result) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err == nil {
		err = s.cache.Set(ctx, key, raw)
	}
	if err != nil {
		s.logger.Warn("cache write failed", logging.Field{Key: "key", Value: key}, logging.Field{Key: "error", Value: err})
	}
}
