package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker is a background component with a non-blocking Start
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// Status is a snapshot of one managed worker
type Status struct {
	Name    string `json:"name"`
	Order   int    `json:"order"`
	Running bool   `json:"running"`
	LastErr string `json:"last_error,omitempty"`
}

type slot struct {
	worker  Worker
	order   int
	running bool
	lastErr error
}

// WorkerManager starts workers in registration order and stops them in reverse.
// Event sources go last so they stop first on shutdown.
type WorkerManager struct {
	logger *zap.Logger

	mu      sync.RWMutex
	slots   []*slot
	running bool
	cancel  context.CancelFunc
}

// NewWorkerManager creates an empty manager
func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerManager{logger: logger}
}

// Register appends a worker; its position is its start order.
// Nil workers and workers registered while running are ignored.
func (m *WorkerManager) Register(w Worker) {
	if w == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.logger.Warn("Worker registered while running, ignoring", zap.String("worker", w.Name()))
		return
	}
	s := &slot{worker: w, order: len(m.slots) + 1}
	m.slots = append(m.slots, s)
	m.logger.Debug("Worker registered", zap.String("worker", w.Name()), zap.Int("order", s.order))
}

// StartAll starts every worker in order. The first failure stops the
// workers already started and is returned.
func (m *WorkerManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("workers already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for _, s := range m.slots {
		s.lastErr = nil
		if err := s.worker.Start(runCtx); err != nil {
			s.lastErr = err
			m.logger.Error("Worker failed to start",
				zap.String("worker", s.worker.Name()),
				zap.Int("order", s.order),
				zap.Error(err))
			cancel()
			_ = m.stopRunning()
			return fmt.Errorf("start worker %s: %w", s.worker.Name(), err)
		}
		s.running = true
		m.logger.Info("Worker started", zap.String("worker", s.worker.Name()), zap.Int("order", s.order))
	}

	m.running = true
	m.logger.Info("All workers started", zap.Int("count", len(m.slots)))
	return nil
}

// StopAll stops running workers in reverse order and joins their errors
func (m *WorkerManager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	m.cancel()

	err := m.stopRunning()
	if err != nil {
		m.logger.Error("Workers stopped with errors", zap.Error(err))
		return err
	}
	m.logger.Info("All workers stopped")
	return nil
}

func (m *WorkerManager) stopRunning() error {
	var errs []error
	for i := len(m.slots) - 1; i >= 0; i-- {
		s := m.slots[i]
		if !s.running {
			continue
		}
		s.running = false
		if err := s.worker.Stop(); err != nil {
			s.lastErr = err
			m.logger.Warn("Worker failed to stop", zap.String("worker", s.worker.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("stop worker %s: %w", s.worker.Name(), err))
			continue
		}
		m.logger.Info("Worker stopped", zap.String("worker", s.worker.Name()))
	}
	return errors.Join(errs...)
}

// Statuses returns one entry per worker in start order
func (m *WorkerManager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(m.slots))
	for _, s := range m.slots {
		st := Status{Name: s.worker.Name(), Order: s.order, Running: s.running}
		if s.lastErr != nil {
			st.LastErr = s.lastErr.Error()
		}
		out = append(out, st)
	}
	return out
}

// GetWorkerCount returns the number of registered workers
func (m *WorkerManager) GetWorkerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}

// IsRunning reports whether StartAll succeeded and StopAll has not run
func (m *WorkerManager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}
