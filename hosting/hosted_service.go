// Package hosting runs long-lived services and shuts them down together.
package hosting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/injectgen/logging"
)

// HostedService is a service with a start and stop lifecycle.
type HostedService interface {
	// Start runs the service and blocks until ctx is cancelled or the
	// service fails. It is called on its own goroutine.
	Start(ctx context.Context) error

	// Stop performs graceful shutdown and honours the deadline of ctx.
	Stop(ctx context.Context) error
}

// Named is implemented by services that want a name in the logs.
type Named interface {
	Name() string
}

func nameOf(svc HostedService, index int) string {
	if n, ok := svc.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T#%d", svc, index+1)
}

// Manager starts and stops a set of hosted services.
type Manager struct {
	services []HostedService
	logger   logging.Logger
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

func NewManager(logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{logger: logger}
}

func (m *Manager) Add(services ...HostedService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, svc := range services {
		if svc != nil {
			m.services = append(m.services, svc)
		}
	}
}

// StartAll starts every service on its own goroutine. Failures other than
// context cancellation are delivered on the returned channel.
func (m *Manager) StartAll(ctx context.Context) <-chan error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errCh := make(chan error, len(m.services))
	m.logger.Info("starting hosted services", logging.Field{Key: "count", Value: len(m.services)})

	for i, svc := range m.services {
		name := nameOf(svc, i)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.logger.Debug("starting hosted service", logging.Field{Key: "service", Value: name})
			err := svc.Start(ctx)
			switch {
			case err == nil:
				m.logger.Info("hosted service completed", logging.Field{Key: "service", Value: name})
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				m.logger.Debug("hosted service stopped", logging.Field{Key: "service", Value: name})
			default:
				m.logger.Error("hosted service failed",
					logging.Field{Key: "service", Value: name},
					logging.Field{Key: "error", Value: err})
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}
	return errCh
}

// StopAll stops every service concurrently and joins their errors.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.logger.Info("stopping hosted services", logging.Field{Key: "count", Value: len(m.services)})
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := len(m.services) - 1; i >= 0; i-- {
		svc, name := m.services[i], nameOf(m.services[i], i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Stop(ctx); err != nil {
				m.logger.Error("failed to stop hosted service",
					logging.Field{Key: "service", Value: name},
					logging.Field{Key: "error", Value: err})
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Wait blocks until every Start call has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// TimedService runs task every interval until its context ends. A failing
// task is logged and retried on the next tick.
type TimedService struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context) error
	logger   logging.Logger
}

func NewTimedService(name string, interval time.Duration, task func(ctx context.Context) error, logger logging.Logger) *TimedService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &TimedService{name: name, interval: interval, task: task, logger: logger}
}

func (s *TimedService) Name() string { return s.name }

func (s *TimedService) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.task(ctx); err != nil {
				s.logger.Warn("timed task failed",
					logging.Field{Key: "service", Value: s.name},
					logging.Field{Key: "error", Value: err})
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *TimedService) Stop(context.Context) error { return nil }
