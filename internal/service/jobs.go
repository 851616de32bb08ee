package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/generation"
	"github.com/fleveque/stylelab/internal/model"
)

// ErrJobNotFound is returned for unknown or pruned job ids.
var ErrJobNotFound = errors.New("job not found")

// finishedJobTTL is how long a finished job stays queryable.
const finishedJobTTL = time.Hour

// BatchRunner is the part of Studio the job manager drives.
type BatchRunner interface {
	Prepare(b *generation.Batch, params model.GenerationParams) (*generation.Plan, error)
	Execute(ctx context.Context, b *generation.Batch, plan *generation.Plan) (generation.Outcome, error)
}

// JobSnapshot is a point-in-time view of a job, safe to serialise.
type JobSnapshot struct {
	ID         string                   `json:"id"`
	State      generation.State         `json:"state"`
	Progress   float64                  `json:"progress"`
	Total      int                      `json:"total"`
	Results    []model.GenerationResult `json:"results"`
	Error      string                   `json:"error,omitempty"`
	CreatedAt  time.Time                `json:"createdAt"`
	FinishedAt *time.Time               `json:"finishedAt,omitempty"`
}

type job struct {
	id        string
	batch     *generation.Batch
	total     int
	createdAt time.Time

	mu         sync.Mutex
	results    []model.GenerationResult
	err        error
	finishedAt *time.Time
}

func (j *job) snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	snap := JobSnapshot{
		ID:         j.id,
		State:      j.batch.State(),
		Progress:   j.batch.Progress(),
		Total:      j.total,
		Results:    append([]model.GenerationResult{}, j.results...),
		CreatedAt:  j.createdAt,
		FinishedAt: j.finishedAt,
	}
	if j.err != nil {
		snap.Error = j.err.Error()
	}
	return snap
}

// JobManager runs batches in the background so HTTP callers can poll them.
type JobManager struct {
	runner BatchRunner
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	jobs    map[string]*job
	running atomic.Int64
	now     func() time.Time
}

func NewJobManager(runner BatchRunner, logger *zap.Logger) *JobManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		runner: runner,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*job),
		now:    time.Now,
	}
}

// Submit validates and admits params synchronously, so validation and rate
// limit errors reach the caller directly, then runs the batch in the
// background.
func (m *JobManager) Submit(params model.GenerationParams) (JobSnapshot, error) {
	b := generation.NewBatch()
	plan, err := m.runner.Prepare(b, params)
	if err != nil {
		return JobSnapshot{}, err
	}

	j := &job{
		id:        uuid.NewString(),
		batch:     b,
		total:     len(plan.Units),
		createdAt: m.now(),
	}
	b.OnUnit = func(rep generation.UnitReport) {
		if rep.Result == nil {
			return
		}
		j.mu.Lock()
		j.results = append(j.results, *rep.Result)
		j.mu.Unlock()
	}

	m.mu.Lock()
	m.pruneLocked()
	m.jobs[j.id] = j
	m.mu.Unlock()

	m.running.Inc()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.running.Dec()

		_, err := m.runner.Execute(m.ctx, b, plan)
		finished := m.now()

		j.mu.Lock()
		j.err = err
		j.finishedAt = &finished
		j.mu.Unlock()

		fields := []zap.Field{
			zap.String("job_id", j.id),
			zap.String("state", string(b.State())),
		}
		if err != nil {
			m.logger.Warn("job finished with error", append(fields, zap.Error(err))...)
		} else {
			m.logger.Info("job finished", fields...)
		}
	}()

	return j.snapshot(), nil
}

func (m *JobManager) Get(id string) (JobSnapshot, error) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return JobSnapshot{}, ErrJobNotFound
	}
	return j.snapshot(), nil
}

// Cancel interrupts a job. The unit in flight finishes first.
func (m *JobManager) Cancel(id string) (JobSnapshot, error) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return JobSnapshot{}, ErrJobNotFound
	}
	j.batch.Interrupt()
	return j.snapshot(), nil
}

// Running is the number of jobs still executing.
func (m *JobManager) Running() int64 {
	return m.running.Load()
}

// Shutdown interrupts every job and waits for them to stop, or for ctx.
func (m *JobManager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	for _, j := range m.jobs {
		j.batch.Interrupt()
	}
	m.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		// Abort in-flight provider calls.
		m.cancel()
		return ctx.Err()
	}
}

// pruneLocked drops jobs that finished more than finishedJobTTL ago.
func (m *JobManager) pruneLocked() {
	cutoff := m.now().Add(-finishedJobTTL)
	for id, j := range m.jobs {
		j.mu.Lock()
		expired := j.finishedAt != nil && j.finishedAt.Before(cutoff)
		j.mu.Unlock()
		if expired {
			delete(m.jobs, id)
		}
	}
}
