package workerpool

import (
	"context"
	"errors"
	"sync"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/sourcegraph/conc/panics"
)

// slot owns a task inbox and the worker currently serving it. A crashed
// worker is replaced in its slot; queued tasks stay in the inbox.
type slot struct {
	id    int
	pool  *Pool
	inbox chan *job

	mu         sync.Mutex
	worker     *worker
	generation int
}

func newSlot(p *Pool, id int) *slot {
	s := &slot{
		id:    id,
		pool:  p,
		inbox: make(chan *job, p.config.QueueDepth),
	}
	s.worker = newWorker(s, 0)

	return s
}

func (s *slot) current() *worker {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.worker
}

func (s *slot) replace(dead *worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.worker != dead {
		return
	}

	s.generation++
	s.worker = newWorker(s, s.generation)

	s.pool.logger.Warn("Worker replaced", "worker_id", s.id, "generation", s.generation)
}

func (s *slot) loop() {
	defer s.pool.wg.Done()

	for j := range s.inbox {
		s.assign(j)
	}
}

// assign blocks until a worker of this slot has room for j.
func (s *slot) assign(j *job) {
	p := s.pool

	// Timed out while queued.
	if _, done := j.future.Result(); done {
		return
	}

	for {
		if p.execCtx.Err() != nil {
			p.finish(j, models.WorkerResult{Status: models.TaskStatusCancelled, Error: "worker pool shut down"})

			return
		}

		w := s.current()

		select {
		case w.sem <- struct{}{}:
			if w.start(j) {
				return
			}

			<-w.sem
		case <-w.crashed:
		case <-p.execCtx.Done():
		}
	}
}

type worker struct {
	slot       *slot
	generation int
	sem        chan struct{}
	crashed    chan struct{}

	mu       sync.Mutex
	dead     bool
	inflight map[string]*job
}

func newWorker(s *slot, generation int) *worker {
	return &worker{
		slot:       s,
		generation: generation,
		sem:        make(chan struct{}, s.pool.config.Concurrency),
		crashed:    make(chan struct{}),
		inflight:   make(map[string]*job),
	}
}

func (w *worker) start(j *job) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dead {
		return false
	}

	w.inflight[j.task.TaskID] = j
	w.slot.pool.wg.Add(1)

	go w.execute(j)

	return true
}

func (w *worker) execute(j *job) {
	p := w.slot.pool

	defer p.wg.Done()
	defer func() { <-w.sem }()

	ctx, cancel := context.WithTimeout(p.execCtx, p.config.EffectTimeout)
	defer cancel()

	var (
		result models.WorkerResult
		err    error
	)

	recovered := panics.Try(func() {
		result, err = p.executor.Execute(ctx, j.task)
	})
	if recovered != nil {
		w.crash(recovered.AsError())

		return
	}

	w.mu.Lock()
	delete(w.inflight, j.task.TaskID)
	w.mu.Unlock()

	result.WorkerID = w.slot.id

	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		result.Status = models.TaskStatusTimeout
		result.Error = err.Error()
	case err != nil && errors.Is(err, context.Canceled):
		result.Status = models.TaskStatusCancelled
		result.Error = err.Error()
	case err != nil:
		result.Status = models.TaskStatusFailed
		result.Error = err.Error()
	case result.Status == "":
		result.Status = models.TaskStatusSucceeded
	}

	if result.Status == models.TaskStatusSucceeded && len(result.EffectsApplied) == 0 {
		result.EffectsApplied = []models.EffectKind{j.task.Payload.Kind}
	}

	p.finish(j, result)
}

// crash retires the worker: every task it was running fails with
// TaskStatusWorkerCrashed and a fresh worker takes over the slot.
func (w *worker) crash(cause error) {
	w.mu.Lock()
	if w.dead {
		w.mu.Unlock()

		return
	}

	w.dead = true
	inflight := w.inflight
	w.inflight = make(map[string]*job)
	w.mu.Unlock()

	p := w.slot.pool
	p.logger.Error("Worker crashed",
		"worker_id", w.slot.id,
		"generation", w.generation,
		"inflight", len(inflight),
		"error", cause,
	)

	w.slot.replace(w)
	close(w.crashed)

	for _, j := range inflight {
		p.finish(j, models.WorkerResult{
			Status:   models.TaskStatusWorkerCrashed,
			Error:    cause.Error(),
			WorkerID: w.slot.id,
		})
	}
}
