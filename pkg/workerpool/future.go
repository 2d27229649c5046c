package workerpool

import (
	"context"
	"sync"

	"github.com/KallebyX/simao-sub001/pkg/models"
)

// Future is the pending result of a submitted task. It completes exactly
// once; later completions (a late executor after a timeout, say) are ignored.
type Future struct {
	taskID string
	done   chan struct{}
	once   sync.Once
	result models.WorkerResult
}

func newFuture(taskID string) *Future {
	return &Future{taskID: taskID, done: make(chan struct{})}
}

// TaskID returns the correlation id of the task.
func (f *Future) TaskID() string {
	return f.taskID
}

// Done is closed when the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available or ctx is done.
func (f *Future) Wait(ctx context.Context) (models.WorkerResult, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return models.WorkerResult{}, ctx.Err()
	}
}

// Result returns the result and whether it is available yet.
func (f *Future) Result() (models.WorkerResult, bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return models.WorkerResult{}, false
	}
}

func (f *Future) complete(result models.WorkerResult) bool {
	completed := false

	f.once.Do(func() {
		result.TaskID = f.taskID
		f.result = result
		completed = true
		close(f.done)
	})

	return completed
}
