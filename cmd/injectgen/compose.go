package main

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/gocrud/injectgen/config"
	"github.com/gocrud/injectgen/cron"
	"github.com/gocrud/injectgen/database"
	"github.com/gocrud/injectgen/di"
	"github.com/gocrud/injectgen/generator"
	"github.com/gocrud/injectgen/logging"
	"github.com/gocrud/injectgen/manifest"
	"github.com/gocrud/injectgen/mongodb"
	"github.com/gocrud/injectgen/planning"
	"github.com/gocrud/injectgen/redis"
	"github.com/gocrud/injectgen/render"
	"github.com/gocrud/injectgen/typesys"
	"github.com/gocrud/injectgen/web"
)

//go:embed services.yaml
var servicesManifest []byte

const (
	serverContainer typesys.ID = "Server"
	webHostRoot     typesys.ID = "WebHost"
	watcherRoot     typesys.ID = "Watcher"
)

// planServices reads the embedded server graph declarations.
func planServices(logger logging.Logger) (*generator.Generator, error) {
	m, err := manifest.Parse(servicesManifest, "services.yaml")
	if err != nil {
		return nil, err
	}
	u, surface, err := m.Build()
	if err != nil {
		return nil, err
	}
	return generator.New(surface, u, generator.WithLogger(logger)), nil
}

// compose plans the server graph and binds it. Any error diagnostic is fatal.
func compose(s config.Settings, cfg *config.ReloadableConfiguration, logger logging.Logger) (*di.Container, error) {
	g, err := planServices(logger)
	if err != nil {
		return nil, err
	}
	p, bag := g.Generate(serverContainer)
	if bag.HasErrors() {
		sum := render.Summarize(serverContainer, p, bag, false)
		for _, d := range sum.Diagnostics {
			logger.Error("service graph", logging.Field{Key: "diagnostic", Value: d.String()})
		}
		return nil, fmt.Errorf("service graph has %d errors", sum.Errors)
	}

	b := di.NewBindings().
		Field("settings", s).
		Field("configuration", cfg).
		Field("logger", logger).
		Method(serverContainer, "OpenStore", openStore).
		Method(serverContainer, "OpenCache", openCache).
		Constructor("Planner", func(l logging.Logger, store database.Store, cache planning.Cache) *planning.Service {
			return planning.NewService(l, store, cache)
		}).
		Constructor("WebHost", func(s config.Settings, p *planning.Service, l logging.Logger) *web.Host {
			return web.NewHost(web.Options{Addr: s.Server.Addr, Mode: s.Server.Mode}, p, l)
		}).
		Constructor("Watcher", func(cfg *config.ReloadableConfiguration, s config.Settings, p *planning.Service, l logging.Logger) (*cron.Watcher, error) {
			watch, err := config.NewOptionsCache(cfg, "watch", s.Watch, l.WithCategory("config"))
			if err != nil {
				return nil, err
			}
			return cron.NewWatcher(watch.Get, p, l, cron.WithReload(cfg.Reload))
		})
	return di.New(p, b, di.WithLogger(logger)), nil
}

// openStore opens the configured plan store. No driver means no store.
func openStore(ctx context.Context, s config.Settings, logger logging.Logger) (database.Store, error) {
	switch s.Store.Driver {
	case "":
		return nil, nil
	case "sqlite":
		return database.OpenSQLite(s.Store.DSN, func(o *database.DatabaseOptions) { o.Logger = logger })
	case "mongodb", "mongo":
		opts := mongodb.NewDefaultOptions(s.Mongo.URI)
		if s.Mongo.Database != "" {
			opts.Database = s.Mongo.Database
		}
		if s.Mongo.Collection != "" {
			opts.Collection = s.Mongo.Collection
		}
		opts.Logger = logger
		return mongodb.Open(ctx, opts)
	}
	return nil, fmt.Errorf("unknown store driver %q", s.Store.Driver)
}

// openCache connects the listing cache. No address means no cache.
func openCache(ctx context.Context, s config.Settings, logger logging.Logger) (planning.Cache, error) {
	if s.Redis.Addr == "" {
		return nil, nil
	}
	opts := redis.NewDefaultOptions(s.Redis.Addr)
	opts.Password = s.Redis.Password
	opts.DB = s.Redis.DB
	opts.TTL = s.Redis.TTL.Std()
	if s.Redis.Prefix != "" {
		opts.Prefix = s.Redis.Prefix
	}
	opts.Logger = logger
	return redis.New(ctx, opts)
}
