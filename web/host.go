// Package web serves the planning API over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/injectgen/logging"
	"github.com/gocrud/injectgen/planning"
	"golang.org/x/sync/singleflight"
)

// Options configures a Host.
type Options struct {
	Addr string
	// Mode is the gin mode. Empty means release.
	Mode string
	// MaxManifestBytes limits request bodies. Zero means 4 MiB.
	MaxManifestBytes int64
}

// Host is the HTTP server of the planning API. It is a hosted service.
type Host struct {
	opts    Options
	planner *planning.Service
	logger  logging.Logger
	engine  *gin.Engine
	flight  singleflight.Group

	mu     sync.Mutex
	server *http.Server
	addr   string
}

func NewHost(opts Options, planner *planning.Service, logger logging.Logger) *Host {
	if opts.Mode == "" {
		opts.Mode = gin.ReleaseMode
	}
	if opts.MaxManifestBytes == 0 {
		opts.MaxManifestBytes = 4 << 20
	}
	if logger == nil {
		logger = logging.Nop()
	}
	gin.SetMode(opts.Mode)

	h := &Host{opts: opts, planner: planner, logger: logger.WithCategory("web")}
	h.engine = gin.New()
	h.engine.Use(gin.Recovery(), h.accessLog())
	h.routes(h.engine)
	return h
}

// Handler returns the HTTP handler, for tests and embedding.
func (h *Host) Handler() http.Handler { return h.engine }

// Address is the listen address once Start has bound it.
func (h *Host) Address() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Start listens and serves until Stop is called or ctx ends.
func (h *Host) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("web: listen on %s: %w", h.opts.Addr, err)
	}
	srv := &http.Server{
		Handler:           h.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	h.mu.Lock()
	h.server = srv
	h.addr = ln.Addr().String()
	h.mu.Unlock()
	h.logger.Info("web host started", logging.Field{Key: "address", Value: h.addr})

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.logger.Error("web host error", logging.Field{Key: "error", Value: err})
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	srv := h.server
	h.mu.Unlock()
	if srv == nil {
		return nil
	}
	// Start shuts the server down itself when its context ends; the
	// listener may already be closed.
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, net.ErrClosed) {
		h.logger.Error("web host shutdown failed", logging.Field{Key: "error", Value: err})
		return err
	}
	h.logger.Info("web host stopped")
	return nil
}

func (h *Host) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("request",
			logging.Field{Key: "method", Value: c.Request.Method},
			logging.Field{Key: "path", Value: c.FullPath()},
			logging.Field{Key: "status", Value: c.Writer.Status()},
			logging.Field{Key: "elapsed", Value: time.Since(start)})
	}
}
