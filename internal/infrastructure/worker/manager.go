package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/garyjia/eak-connector/internal/application/service"
	"go.uber.org/zap"
)

// ErrUnknownWorker is returned by RunNow for a name no sync worker has
var ErrUnknownWorker = errors.New("unknown worker")

// Job names of the three eAK sync workers
const (
	JobVendorBills = "vendor-bills"
	JobPartners    = "partners"
	JobAttachments = "attachments"
)

// Worker defines the interface for background workers
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// WorkerManager manages lifecycle of multiple workers.
// Sync workers created through NewSyncWorker share one run lock so a
// scheduled run and an interactive trigger never overlap.
type WorkerManager struct {
	workers []Worker
	runLock sync.Mutex
	logger  *zap.Logger

	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewWorkerManager creates a new worker manager
func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	return &WorkerManager{
		workers: make([]Worker, 0),
		logger:  logger,
	}
}

// Register adds a worker to be managed
func (m *WorkerManager) Register(worker Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers = append(m.workers, worker)
	m.logger.Info("Worker registered",
		zap.String("worker_name", worker.Name()),
		zap.Int("total_workers", len(m.workers)))
}

// StartAll starts all registered workers
func (m *WorkerManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return fmt.Errorf("workers already running")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.isRunning = true
	m.mu.Unlock()

	m.logger.Info("Starting all workers", zap.Int("count", len(m.workers)))

	// Start all workers
	for _, worker := range m.workers {
		if err := worker.Start(m.ctx); err != nil {
			m.logger.Error("Failed to start worker",
				zap.String("worker_name", worker.Name()),
				zap.Error(err))
			// Continue starting other workers even if one fails
			continue
		}
		m.logger.Info("Worker started", zap.String("worker_name", worker.Name()))
	}

	return nil
}

// StopAll gracefully stops all workers
func (m *WorkerManager) StopAll() error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		m.logger.Warn("Workers not running, nothing to stop")
		return nil
	}

	m.isRunning = false
	m.mu.Unlock()

	m.logger.Info("Stopping all workers", zap.Int("count", len(m.workers)))

	// Cancel context to signal all workers to stop
	if m.cancel != nil {
		m.cancel()
	}

	// Stop in reverse registration order
	var failed []error
	for i := len(m.workers) - 1; i >= 0; i-- {
		worker := m.workers[i]
		if err := worker.Stop(); err != nil {
			m.logger.Error("Failed to stop worker",
				zap.String("worker_name", worker.Name()),
				zap.Error(err))
			failed = append(failed, err)
		} else {
			m.logger.Info("Worker stopped", zap.String("worker_name", worker.Name()))
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to stop %d workers: %w", len(failed), errors.Join(failed...))
	}

	m.logger.Info("All workers stopped successfully")
	return nil
}

// GetWorkerCount returns the number of registered workers
func (m *WorkerManager) GetWorkerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

// NewSyncWorker creates a sync worker bound to the manager's run lock and registers it
func (m *WorkerManager) NewSyncWorker(config SyncWorkerConfig, job JobFunc) *SyncWorker {
	w := NewSyncWorker(config, job, &m.runLock, m.logger)
	m.Register(w)
	return w
}

// RunNow runs the named sync worker's job immediately, whether or not workers are started
func (m *WorkerManager) RunNow(ctx context.Context, name string) (*service.RunReport, error) {
	m.mu.RLock()
	var target *SyncWorker
	for _, w := range m.workers {
		if sw, ok := w.(*SyncWorker); ok && sw.Name() == name {
			target = sw
			break
		}
	}
	m.mu.RUnlock()

	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorker, name)
	}
	return target.RunOnce(ctx)
}

// Statuses returns a snapshot of every sync worker
func (m *WorkerManager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Status
	for _, w := range m.workers {
		if sw, ok := w.(*SyncWorker); ok {
			out = append(out, sw.Status())
		}
	}
	return out
}

// IsRunning returns whether workers are running
func (m *WorkerManager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning
}
