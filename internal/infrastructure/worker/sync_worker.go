package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/eak-connector/internal/application/service"
	"go.uber.org/zap"
)

// JobFunc runs one sync over every configured company
type JobFunc func(ctx context.Context) (*service.RunReport, error)

// SyncWorkerConfig holds configuration for a sync worker
type SyncWorkerConfig struct {
	Name     string
	Interval time.Duration
	// RunTimeout bounds one run; zero means no bound
	RunTimeout time.Duration
	// RunOnStart triggers a run right after Start instead of waiting one interval
	RunOnStart bool
}

// Status is a snapshot of a worker's runtime state
type Status struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	Interval  string    `json:"interval"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastRunID string    `json:"last_run_id,omitempty"`
	LastRunAt time.Time `json:"last_run_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// SyncWorker invokes a sync job on a fixed interval.
// Runs of every worker sharing runLock are serialized.
type SyncWorker struct {
	config  SyncWorkerConfig
	job     JobFunc
	runLock *sync.Mutex
	logger  *zap.Logger

	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	runs      int
	failures  int
	lastRunID string
	lastRunAt time.Time
	lastError error
}

// NewSyncWorker creates a new sync worker. A nil runLock gives the worker its own lock.
func NewSyncWorker(config SyncWorkerConfig, job JobFunc, runLock *sync.Mutex, logger *zap.Logger) *SyncWorker {
	if runLock == nil {
		runLock = &sync.Mutex{}
	}
	return &SyncWorker{
		config:  config,
		job:     job,
		runLock: runLock,
		logger:  logger.With(zap.String("worker", config.Name)),
	}
}

// Start begins the worker loop
func (w *SyncWorker) Start(ctx context.Context) error {
	if w.config.Interval <= 0 {
		return fmt.Errorf("%s: interval must be positive", w.config.Name)
	}

	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("%s already running", w.config.Name)
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("Sync worker started", zap.Duration("interval", w.config.Interval))

	go w.loop()
	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.RLock()
	w.logger.Info("Sync worker stopped", zap.Int("runs", w.runs), zap.Int("failures", w.failures))
	w.mu.RUnlock()
	return nil
}

// Name returns the worker name for identification
func (w *SyncWorker) Name() string {
	return w.config.Name
}

func (w *SyncWorker) loop() {
	defer close(w.done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	if w.config.RunOnStart {
		w.RunOnce(w.ctx)
	}

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(w.ctx)
		}
	}
}

// RunOnce runs the job once, waiting for any other run sharing the lock
func (w *SyncWorker) RunOnce(ctx context.Context) (*service.RunReport, error) {
	w.runLock.Lock()
	defer w.runLock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runCtx := ctx
	if w.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.config.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	report, err := w.job(runCtx)

	w.mu.Lock()
	w.runs++
	w.lastRunAt = start
	w.lastError = err
	if err != nil {
		w.failures++
	}
	if report != nil {
		w.lastRunID = report.RunID
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Sync run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	w.logger.Info("Sync run completed",
		zap.String("run_id", report.RunID),
		zap.Int("companies", len(report.Outcomes)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", report.Failed()),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

// Status returns a snapshot of the worker state
func (w *SyncWorker) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := Status{
		Name:      w.config.Name,
		Running:   w.isRunning,
		Interval:  w.config.Interval.String(),
		Runs:      w.runs,
		Failures:  w.failures,
		LastRunID: w.lastRunID,
		LastRunAt: w.lastRunAt,
	}
	if w.lastError != nil {
		s.LastError = w.lastError.Error()
	}
	return s
}
