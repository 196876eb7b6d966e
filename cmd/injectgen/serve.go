package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/gocrud/injectgen/config"
	"github.com/gocrud/injectgen/cron"
	"github.com/gocrud/injectgen/di"
	"github.com/gocrud/injectgen/hosting"
	"github.com/gocrud/injectgen/logging"
	"github.com/gocrud/injectgen/web"
)

// serveCommand runs the hosted services until a shutdown signal. withWeb
// selects serve over watch.
func serveCommand(ctx context.Context, args []string, stderr io.Writer, withWeb bool) int {
	name := "watch"
	if withWeb {
		name = "serve"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		path    = fs.String("config", "", "configuration file (YAML)")
		timeout = fs.Duration("shutdown-timeout", hosting.DefaultShutdownTimeout, "graceful shutdown limit")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	s, cfg, err := config.LoadSettings(*path)
	if err != nil {
		fmt.Fprintf(stderr, "injectgen %s: %v\n", name, err)
		return 2
	}
	if !withWeb && s.Watch.Dir == "" {
		fmt.Fprintf(stderr, "injectgen %s: %v\n", name, cron.ErrNoDirectory)
		return 2
	}
	logger, closeLogs, err := newLogger(s.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "injectgen %s: %v\n", name, err)
		return 2
	}
	defer closeLogs()

	host, err := buildHost(ctx, s, cfg, logger, withWeb, hosting.WithShutdownTimeout(*timeout))
	if err != nil {
		logger.Error("startup failed", logging.Field{Key: "error", Value: err})
		return 1
	}
	if err := host.Run(ctx); err != nil {
		logger.Error("stopped with error", logging.Field{Key: "error", Value: err})
		return 1
	}
	return 0
}

// buildHost resolves the hosted services from the service container. The
// container is closed after the services stopped.
func buildHost(ctx context.Context, s config.Settings, cfg *config.ReloadableConfiguration, logger logging.Logger, withWeb bool, opts ...hosting.HostOption) (*hosting.Host, error) {
	c, err := compose(s, cfg, logger)
	if err != nil {
		return nil, err
	}
	host := hosting.NewHost(logger, opts...)
	host.OnShutdown(c.Close)

	if withWeb {
		h, release, err := di.Resolve[*web.Host](ctx, c, webHostRoot)
		if err != nil {
			return nil, closeAfter(ctx, c, err)
		}
		host.Add(h).OnShutdown(release)
	}
	if s.Watch.Dir != "" {
		w, release, err := di.Resolve[*cron.Watcher](ctx, c, watcherRoot)
		if err != nil {
			return nil, closeAfter(ctx, c, err)
		}
		host.Add(w).OnShutdown(release)
	} else if s.ReloadEvery > 0 {
		host.Add(hosting.NewTimedService("config-reload", s.ReloadEvery.Std(), func(context.Context) error {
			return cfg.Reload()
		}, logger))
	}
	return host, nil
}

func closeAfter(ctx context.Context, c *di.Container, err error) error {
	if cerr := c.Close(ctx); cerr != nil {
		return fmt.Errorf("%w (closing services: %v)", err, cerr)
	}
	return err
}
