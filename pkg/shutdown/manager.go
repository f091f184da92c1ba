package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shutdown_duration_seconds",
		Help:    "Total time taken to shutdown gracefully",
		Buckets: []float64{1, 5, 10, 15, 20, 30},
	})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shutdown_errors_total",
		Help: "Total number of shutdown errors by component",
	}, []string{"component"})
)

// ShutdownFunc shuts down a single component
type ShutdownFunc func(context.Context) error

type component struct {
	name string
	fn   ShutdownFunc
}

// Manager coordinates graceful shutdown of service components.
// Components shut down in reverse registration order, so register
// outer layers first (workers, HTTP servers) and the database last.
type Manager struct {
	logger     *zap.Logger
	components []component
	mu         sync.Mutex
	timeout    time.Duration
}

// NewManager creates a shutdown manager with the given overall timeout
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a component to shut down. Later registrations shut down first.
func (m *Manager) Register(name string, fn ShutdownFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component{name: name, fn: fn})
}

// RegisterCloser registers a component exposing Close() error
func (m *Manager) RegisterCloser(name string, closer interface{ Close() error }) {
	m.Register(name, func(context.Context) error {
		return closer.Close()
	})
}

// RegisterNoErr registers a shutdown function that cannot fail
func (m *Manager) RegisterNoErr(name string, fn func()) {
	m.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then runs Shutdown
func (m *Manager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	m.logger.Info("Received shutdown signal",
		zap.String("signal", sig.String()),
		zap.Duration("timeout", m.timeout),
	)

	m.Shutdown()
}

// Shutdown runs all registered shutdown functions in reverse order
func (m *Manager) Shutdown() {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	components := make([]component, len(m.components))
	copy(components, m.components)
	m.mu.Unlock()

	failures := 0
	for i := len(components) - 1; i >= 0; i-- {
		comp := components[i]

		compStart := time.Now()
		if err := comp.fn(ctx); err != nil {
			failures++
			shutdownErrors.WithLabelValues(comp.name).Inc()
			m.logger.Error("Component shutdown failed",
				zap.String("component", comp.name),
				zap.Error(err),
				zap.Duration("elapsed", time.Since(compStart)),
			)
		} else {
			m.logger.Info("Component shut down",
				zap.String("component", comp.name),
				zap.Duration("elapsed", time.Since(compStart)),
			)
		}

		if ctx.Err() != nil {
			m.logger.Warn("Shutdown timeout exceeded, remaining components may not complete",
				zap.Duration("timeout", m.timeout),
			)
		}
	}

	shutdownDuration.Observe(time.Since(start).Seconds())

	if failures > 0 {
		m.logger.Error("Graceful shutdown completed with errors",
			zap.Int("error_count", failures),
			zap.Duration("elapsed", time.Since(start)),
		)
	} else {
		m.logger.Info("Graceful shutdown completed",
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
