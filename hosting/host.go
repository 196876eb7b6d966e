package hosting

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gocrud/injectgen/logging"
)

// DefaultShutdownTimeout bounds graceful shutdown when none is configured.
const DefaultShutdownTimeout = 30 * time.Second

// Host runs hosted services until a signal, cancellation or failure, then
// stops them and runs the cleanups in reverse registration order.
type Host struct {
	manager         *Manager
	logger          logging.Logger
	cleanups        []func(ctx context.Context) error
	shutdownTimeout time.Duration
	signals         []os.Signal
}

type HostOption func(*Host)

func WithShutdownTimeout(d time.Duration) HostOption {
	return func(h *Host) {
		if d > 0 {
			h.shutdownTimeout = d
		}
	}
}

// WithSignals replaces the signals that trigger shutdown. No signals means
// only ctx ends the host.
func WithSignals(sig ...os.Signal) HostOption {
	return func(h *Host) { h.signals = sig }
}

func NewHost(logger logging.Logger, opts ...HostOption) *Host {
	if logger == nil {
		logger = logging.Nop()
	}
	h := &Host{
		manager:         NewManager(logger.WithCategory("hosting")),
		logger:          logger.WithCategory("hosting"),
		shutdownTimeout: DefaultShutdownTimeout,
		signals:         []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Host) Add(services ...HostedService) *Host {
	h.manager.Add(services...)
	return h
}

// OnShutdown registers fn to run after every service stopped.
func (h *Host) OnShutdown(fn func(ctx context.Context) error) *Host {
	h.cleanups = append(h.cleanups, fn)
	return h
}

// Run blocks until ctx ends, a shutdown signal arrives or a service fails.
// It returns the failure of the service, joined with shutdown errors.
func (h *Host) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := h.manager.StartAll(runCtx)

	var sigCh chan os.Signal
	if len(h.signals) > 0 {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, h.signals...)
		defer signal.Stop(sigCh)
	}

	var runErr error
	select {
	case sig := <-sigCh:
		h.logger.Info("received shutdown signal", logging.Field{Key: "signal", Value: sig.String()})
	case <-ctx.Done():
		h.logger.Info("context cancelled")
	case runErr = <-errCh:
		h.logger.Error("hosted service failed, shutting down", logging.Field{Key: "error", Value: runErr})
	}

	h.logger.Info("shutting down", logging.Field{Key: "timeout", Value: h.shutdownTimeout.String()})
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer done()

	errs := []error{runErr, h.manager.StopAll(shutdownCtx)}
	h.manager.Wait()
	for i := len(h.cleanups) - 1; i >= 0; i-- {
		errs = append(errs, h.cleanups[i](shutdownCtx))
	}
	h.logger.Info("stopped")
	return errors.Join(errs...)
}
