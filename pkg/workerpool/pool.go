// Package workerpool runs flow side effects off the intake path. Tasks are
// round-robined across a fixed set of worker slots and correlated back to
// callers purely by task id.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/google/uuid"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("worker pool is shut down")

// Executor performs the side effect of one task. A returned error marks the
// task failed; a panic crashes the worker running it.
type Executor interface {
	Execute(ctx context.Context, task models.WorkerTask) (models.WorkerResult, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, task models.WorkerTask) (models.WorkerResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, task models.WorkerTask) (models.WorkerResult, error) {
	return f(ctx, task)
}

// Config sizes the pool.
type Config struct {
	// Workers is the number of worker slots.
	Workers int `validate:"gte=1"`

	// QueueDepth bounds tasks queued or running across the pool.
	QueueDepth int `validate:"gte=1"`

	// EffectTimeout bounds one task from submission to completion.
	EffectTimeout time.Duration `validate:"gt=0"`

	// Concurrency is the number of tasks one worker runs at once.
	Concurrency int `validate:"gte=1"`
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Workers:       runtime.NumCPU(),
		QueueDepth:    1024,
		EffectTimeout: 30 * time.Second,
		Concurrency:   4,
	}
}

// Pool is the execution worker pool.
type Pool struct {
	config   Config
	executor Executor
	logger   *slog.Logger

	slots []*slot
	next  atomic.Uint64

	pending     atomic.Int64
	outstanding sync.Map // task id -> *job

	mu     sync.RWMutex
	closed bool

	execCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type job struct {
	task   models.WorkerTask
	future *Future
	timer  atomic.Pointer[time.Timer]
}

// New starts a pool. Zero config fields fall back to DefaultConfig.
func New(config Config, executor Executor, logger *slog.Logger) *Pool {
	defaults := DefaultConfig()

	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}

	if config.QueueDepth <= 0 {
		config.QueueDepth = defaults.QueueDepth
	}

	if config.EffectTimeout <= 0 {
		config.EffectTimeout = defaults.EffectTimeout
	}

	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}

	execCtx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		config:   config,
		executor: executor,
		logger:   logger.With("module", "workerpool"),
		execCtx:  execCtx,
		cancel:   cancel,
	}

	p.slots = make([]*slot, config.Workers)
	for i := range p.slots {
		p.slots[i] = newSlot(p, i)

		p.wg.Add(1)

		go p.slots[i].loop()
	}

	p.logger.Info("Worker pool started",
		"workers", config.Workers,
		"queue_depth", config.QueueDepth,
		"effect_timeout", config.EffectTimeout,
		"concurrency", config.Concurrency,
	)

	return p
}

// Submit hands a task to the next worker. It fails fast with
// models.ErrPoolSaturated when QueueDepth tasks are already pending.
func (p *Pool) Submit(task models.WorkerTask) (*Future, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	if p.pending.Add(1) > int64(p.config.QueueDepth) {
		p.pending.Add(-1)

		return nil, fmt.Errorf("%w: %d tasks pending", models.ErrPoolSaturated, p.config.QueueDepth)
	}

	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}

	if task.SubmittedAt.IsZero() {
		task.SubmittedAt = time.Now()
	}

	j := &job{task: task, future: newFuture(task.TaskID)}
	p.outstanding.Store(task.TaskID, j)

	j.timer.Store(time.AfterFunc(p.config.EffectTimeout, func() {
		p.finish(j, models.WorkerResult{
			Status: models.TaskStatusTimeout,
			Error:  fmt.Sprintf("not completed within %s", p.config.EffectTimeout),
		})
	}))

	index := int((p.next.Add(1) - 1) % uint64(len(p.slots)))
	p.slots[index].inbox <- j

	p.logger.Debug("Task submitted",
		"task_id", task.TaskID,
		"kind", task.Payload.Kind,
		"conversation_id", task.ConversationID,
		"slot", index,
	)

	return j.future, nil
}

// Pending returns the number of tasks queued or running.
func (p *Pool) Pending() int {
	return int(p.pending.Load())
}

// Workers returns the number of worker slots.
func (p *Pool) Workers() int {
	return len(p.slots)
}

// Shutdown stops accepting tasks and waits for queued and running ones. When
// ctx ends first, running tasks are cancelled and every outstanding future
// completes with TaskStatusCancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return nil
	}

	p.closed = true

	for _, s := range p.slots {
		close(s.inbox)
	}
	p.mu.Unlock()

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("Worker pool stopped")

		return nil
	case <-ctx.Done():
		p.cancel()
		p.cancelOutstanding()
		p.logger.Warn("Worker pool stopped before draining", "pending", p.Pending())

		return ctx.Err()
	}
}

func (p *Pool) cancelOutstanding() {
	p.outstanding.Range(func(_, value any) bool {
		p.finish(value.(*job), models.WorkerResult{
			Status: models.TaskStatusCancelled,
			Error:  "worker pool shut down",
		})

		return true
	})
}

// finish completes j once and releases its queue slot.
func (p *Pool) finish(j *job, result models.WorkerResult) {
	if !j.future.complete(result) {
		return
	}

	if timer := j.timer.Load(); timer != nil {
		timer.Stop()
	}

	p.outstanding.Delete(j.task.TaskID)
	p.pending.Add(-1)

	if result.Status != models.TaskStatusSucceeded {
		p.logger.Warn("Task did not succeed",
			"task_id", j.task.TaskID,
			"conversation_id", j.task.ConversationID,
			"node_id", j.task.NodeID,
			"status", result.Status,
			"error", result.Error,
		)
	}
}

// killWorker crashes the current worker of slot i as if its task had panicked.
func (p *Pool) killWorker(i int) {
	p.slots[i].current().crash(errors.New("worker killed"))
}
