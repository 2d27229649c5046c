package dispatcher

import (
	"context"
)

// job is one unit of work serialized on a conversation.
type job struct {
	name string
	run  func(ctx context.Context) Outcome
	done chan Outcome
	// discarded runs when the job is dropped without running.
	discarded func()
}

func newJob(name string, run func(ctx context.Context) Outcome) *job {
	return &job{name: name, run: run, done: make(chan Outcome, 1)}
}

// mailbox runs a conversation's jobs one at a time, in arrival order. It is
// drained by a goroutine that exits, and removes the mailbox, once empty.
type mailbox struct {
	key     string
	jobs    []*job
	running bool
	// cancel aborts the job in progress; used by Close.
	cancel context.CancelFunc
}

// enqueue appends j to the conversation's mailbox, starting a drainer when
// none is running. front puts j ahead of queued jobs, which are discarded.
func (d *Dispatcher) enqueue(key string, j *job, front bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.enqueueLocked(key, j, front)
}

// enqueueLocked is enqueue with d.mu held.
func (d *Dispatcher) enqueueLocked(key string, j *job, front bool) {
	mb, ok := d.mailboxes[key]
	if !ok {
		mb = &mailbox{key: key}
		d.mailboxes[key] = mb
	}

	if front {
		for _, dropped := range mb.jobs {
			if dropped.discarded != nil {
				dropped.discarded()
			}

			dropped.done <- Outcome{Route: RouteDiscarded}
		}

		mb.jobs = mb.jobs[:0]

		if mb.cancel != nil {
			mb.cancel()
		}
	}

	mb.jobs = append(mb.jobs, j)

	if !mb.running {
		mb.running = true
		d.wg.Add(1)

		go d.drain(mb)
	}
}

func (d *Dispatcher) drain(mb *mailbox) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		if len(mb.jobs) == 0 {
			mb.running = false
			mb.cancel = nil
			delete(d.mailboxes, mb.key)
			d.mu.Unlock()

			return
		}

		j := mb.jobs[0]
		mb.jobs = mb.jobs[1:]

		ctx, cancel := context.WithCancel(d.baseCtx)
		mb.cancel = cancel
		d.mu.Unlock()

		outcome := j.run(ctx)
		cancel()

		j.done <- outcome
	}
}

// Pending returns the number of conversations with queued or running jobs.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.mailboxes)
}
