// Package cron re-plans a directory of manifests on a schedule.
package cron

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gocrud/injectgen/config"
	"github.com/gocrud/injectgen/logging"
	"github.com/gocrud/injectgen/manifest"
	"github.com/gocrud/injectgen/planning"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

var ErrNoDirectory = errors.New("watch directory is not configured")

// Option configures a Watcher.
type Option func(*Watcher)

// WithSeconds accepts schedules with a leading seconds field.
func WithSeconds() Option {
	return func(w *Watcher) { w.seconds = true }
}

// WithReload runs fn before every scan, typically to reload configuration.
func WithReload(fn func() error) Option {
	return func(w *Watcher) { w.reload = fn }
}

// Report summarizes one scan.
type Report struct {
	Scanned   int
	Planned   int
	Unchanged int
	Failed    int
	// Errors counts error diagnostics across the planned manifests.
	Errors int
}

// Watcher plans every manifest in a directory whose content changed since
// the previous scan. It is a hosted service.
type Watcher struct {
	settings func() config.WatchSettings
	planner  *planning.Service
	logger   logging.Logger
	reload   func() error
	seconds  bool

	cron *cron.Cron

	mu      sync.Mutex
	digests map[string]string
	scan    sync.Mutex
}

// NewWatcher validates the schedule of settings and returns a stopped
// watcher. settings is read again before every scan.
func NewWatcher(settings func() config.WatchSettings, planner *planning.Service, logger logging.Logger, opts ...Option) (*Watcher, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	w := &Watcher{
		settings: settings,
		planner:  planner,
		logger:   logger.WithCategory("cron"),
		digests:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(w)
	}

	cronOpts := []cron.Option{cron.WithChain(cron.Recover(newCronLogger(w.logger)))}
	if w.seconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}
	w.cron = cron.New(cronOpts...)
	if _, err := w.cron.AddFunc(settings().Schedule, w.tick); err != nil {
		return nil, fmt.Errorf("cron: schedule %q: %w", settings().Schedule, err)
	}
	return w, nil
}

func (w *Watcher) tick() {
	rep, err := w.RunOnce(context.Background())
	if err != nil {
		w.logger.Error("scan failed", logging.Field{Key: "error", Value: err})
		return
	}
	w.logger.Debug("scan finished",
		logging.Field{Key: "scanned", Value: rep.Scanned},
		logging.Field{Key: "planned", Value: rep.Planned},
		logging.Field{Key: "failed", Value: rep.Failed})
}

// RunOnce scans the directory now. Scans never overlap.
func (w *Watcher) RunOnce(ctx context.Context) (Report, error) {
	w.scan.Lock()
	defer w.scan.Unlock()

	if w.reload != nil {
		if err := w.reload(); err != nil {
			w.logger.Warn("configuration reload failed, keeping previous settings", logging.Field{Key: "error", Value: err})
		}
	}
	s := w.settings()
	if s.Dir == "" {
		return Report{}, ErrNoDirectory
	}
	paths, err := manifests(s.Dir)
	if err != nil {
		return Report{}, err
	}

	var (
		mu  sync.Mutex
		rep = Report{Scanned: len(paths)}
	)
	g, gctx := errgroup.WithContext(ctx)
	if s.Workers > 0 {
		g.SetLimit(s.Workers)
	}
	for _, path := range paths {
		g.Go(func() error {
			planned, errs, err := w.plan(gctx, path)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				rep.Failed++
				w.logger.Warn("manifest not planned", logging.Field{Key: "path", Value: path}, logging.Field{Key: "error", Value: err})
			case planned:
				rep.Planned++
				rep.Errors += errs
			default:
				rep.Unchanged++
			}
			// One bad manifest must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()
	return rep, ctx.Err()
}

// plan plans path when its digest changed.
func (w *Watcher) plan(ctx context.Context, path string) (planned bool, errs int, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, 0, err
	}
	digest := manifest.Digest(raw)
	w.mu.Lock()
	same := w.digests[path] == digest
	w.mu.Unlock()
	if same {
		return false, 0, nil
	}

	res, err := w.planner.Plan(ctx, raw, path, "")
	if err != nil {
		return false, 0, err
	}
	w.mu.Lock()
	w.digests[path] = digest
	w.mu.Unlock()
	return true, res.Errors, nil
}

func manifests(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read watch directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Start scans once, then on schedule until ctx ends.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("watcher starting", logging.Field{Key: "schedule", Value: w.settings().Schedule})
	if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Warn("initial scan failed", logging.Field{Key: "error", Value: err})
	}
	w.cron.Start()
	<-ctx.Done()
	<-w.cron.Stop().Done()
	return nil
}

// Stop waits for a running scan to finish or ctx to end.
func (w *Watcher) Stop(ctx context.Context) error {
	w.logger.Info("watcher stopping")
	select {
	case <-w.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(convertToFields(keysAndValues), logging.Field{Key: "error", Value: err})...)
}

func convertToFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{Key: fmt.Sprint(keysAndValues[i]), Value: keysAndValues[i+1]})
	}
	return fields
}
