package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/eak-connector/internal/application/service"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func countingJob(counter *int32) JobFunc {
	return func(ctx context.Context) (*service.RunReport, error) {
		n := atomic.AddInt32(counter, 1)
		return &service.RunReport{RunID: fmt.Sprintf("run-%d", n)}, nil
	}
}

func TestSyncWorker_RunsOnInterval(t *testing.T) {
	var runs int32
	w := NewSyncWorker(SyncWorkerConfig{Name: JobVendorBills, Interval: 10 * time.Millisecond}, countingJob(&runs), nil, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "double start is rejected")

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	stopped := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, atomic.LoadInt32(&runs), "no runs after Stop")

	st := w.Status()
	assert.False(t, st.Running)
	assert.Equal(t, int(stopped), st.Runs)
	assert.Zero(t, st.Failures)
	assert.NotEmpty(t, st.LastRunID)
}

func TestSyncWorker_RunOnStartAndFailures(t *testing.T) {
	boom := errors.New("boom")
	var calls int32
	job := func(ctx context.Context) (*service.RunReport, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}
	w := NewSyncWorker(SyncWorkerConfig{Name: JobPartners, Interval: time.Hour, RunOnStart: true}, job, nil, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	st := w.Status()
	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, "boom", st.LastError)
}

func TestSyncWorker_RunOnceLogsFailedCompanies(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	job := func(ctx context.Context) (*service.RunReport, error) {
		return &service.RunReport{
			RunID: "run-1",
			Job:   entity.JobVendorBillSync,
			Outcomes: []*service.CompanyOutcome{
				{CompanyName: "Acme", Level: entity.SeverityError},
				{CompanyName: "Beta", Level: entity.SeveritySuccess},
				{CompanyName: "Gamma", Level: entity.SeverityError},
			},
			Skipped: []string{"Delta"},
		}, nil
	}
	w := NewSyncWorker(SyncWorkerConfig{Name: JobVendorBills, Interval: time.Hour}, job, nil, zap.New(core))

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed())

	entries := logs.FilterMessage("Sync run completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, int64(3), fields["companies"])
	assert.Equal(t, int64(1), fields["skipped"])
	assert.Equal(t, int64(2), fields["failed"])

	st := w.Status()
	assert.Equal(t, 1, st.Runs)
	assert.Zero(t, st.Failures, "company failures do not fail the run")
}

func TestSyncWorker_RejectsZeroInterval(t *testing.T) {
	w := NewSyncWorker(SyncWorkerConfig{Name: "x"}, countingJob(new(int32)), nil, zap.NewNop())
	assert.Error(t, w.Start(context.Background()))
	assert.NoError(t, w.Stop())
}

func TestWorkerManager_RunsAreSerialized(t *testing.T) {
	m := NewWorkerManager(zap.NewNop())

	var active, maxActive int32
	job := func(ctx context.Context) (*service.RunReport, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&maxActive)
			if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return &service.RunReport{RunID: "r"}, nil
	}
	m.NewSyncWorker(SyncWorkerConfig{Name: JobVendorBills, Interval: time.Hour}, job)
	m.NewSyncWorker(SyncWorkerConfig{Name: JobAttachments, Interval: time.Hour}, job)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		name := JobVendorBills
		if i%2 == 1 {
			name = JobAttachments
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.RunNow(context.Background(), name)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
	assert.Len(t, m.Statuses(), 2)

	_, err := m.RunNow(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownWorker)
}

func TestWorkerManager_StartStop(t *testing.T) {
	m := NewWorkerManager(zap.NewNop())
	var runs int32
	m.NewSyncWorker(SyncWorkerConfig{Name: JobVendorBills, Interval: 5 * time.Millisecond}, countingJob(&runs))

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) > 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.Equal(t, 1, m.GetWorkerCount())
}
