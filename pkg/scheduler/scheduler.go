// Package scheduler resumes conversations suspended on a wait node once
// their resume time has come.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/dispatcher"
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc/pool"
)

var ErrAlreadyStarted = errors.New("scheduler already started")

// Dispatcher receives the resume events. *dispatcher.Dispatcher implements it.
type Dispatcher interface {
	OnInboundEvent(ctx context.Context, event models.InboundEvent) (<-chan dispatcher.Outcome, error)
}

type Config struct {
	// Interval between polls of the context store.
	Interval time.Duration
	// BatchSize bounds the waits resumed per poll.
	BatchSize int
	// Concurrency bounds the resume events awaited at once.
	Concurrency int
}

func DefaultConfig() Config {
	return Config{
		Interval:    time.Second,
		BatchSize:   100,
		Concurrency: 8,
	}
}

// WaitResumer polls the context store for due waits and hands a resume
// event for each to the dispatcher.
type WaitResumer struct {
	config     Config
	contexts   persistence.ContextStore
	dispatcher Dispatcher
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	inflight map[string]struct{}
}

func New(config Config, contexts persistence.ContextStore, d Dispatcher, logger *slog.Logger) *WaitResumer {
	defaults := DefaultConfig()

	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}

	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}

	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}

	return &WaitResumer{
		config:     config,
		contexts:   contexts,
		dispatcher: d,
		logger:     logger.With("module", "scheduler"),
		now:        time.Now,
		inflight:   make(map[string]struct{}),
	}
}

// Start schedules the poll every Interval until Stop is called or ctx ends.
func (r *WaitResumer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return ErrAlreadyStarted
	}

	logger := cron.VerbosePrintfLogger(slog.NewLogLogger(r.logger.Handler(), slog.LevelDebug))

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(logger),
		cron.Recover(logger),
	))

	_, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.config.Interval), func() {
		if _, err := r.Tick(r.ctx); err != nil {
			r.logger.ErrorContext(r.ctx, "Failed to resume due waits", "error", err)
		}
	})
	if err != nil {
		r.cancel()
		r.cron = nil

		return fmt.Errorf("failed to schedule wait polling: %w", err)
	}

	r.cron.Start()
	r.logger.InfoContext(ctx, "Wait scheduler started", "interval", r.config.Interval)

	return nil
}

// Tick resumes the waits due now and returns how many were dispatched.
func (r *WaitResumer) Tick(ctx context.Context) (int, error) {
	now := r.now().UTC()

	due, err := r.contexts.DueWaits(ctx, now, r.config.BatchSize)
	if err != nil {
		return 0, err
	}

	p := pool.New().WithMaxGoroutines(r.config.Concurrency)
	dispatched := 0

	for _, execCtx := range due {
		if !r.claim(execCtx.Key()) {
			continue
		}

		dispatched++

		p.Go(func() {
			defer r.release(execCtx.Key())

			r.resume(ctx, execCtx, now)
		})
	}

	p.Wait()

	if dispatched > 0 {
		r.logger.DebugContext(ctx, "Resumed due waits", "count", dispatched)
	}

	return dispatched, nil
}

func (r *WaitResumer) resume(ctx context.Context, execCtx *models.ExecutionContext, now time.Time) {
	logger := r.logger.With(
		"tenant_id", execCtx.TenantID,
		"conversation_id", execCtx.ConversationID,
		"node_id", execCtx.CurrentNodeID,
	)

	done, err := r.dispatcher.OnInboundEvent(ctx, models.InboundEvent{
		TenantID:       execCtx.TenantID,
		ConversationID: execCtx.ConversationID,
		Kind:           models.EventKindResume,
		Timestamp:      now,
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to dispatch resume event", "error", err)

		return
	}

	select {
	case outcome := <-done:
		if outcome.Err != nil {
			logger.WarnContext(ctx, "Resumed flow failed", "route", outcome.Route, "reason", outcome.Reason, "error", outcome.Err)
		}
	case <-ctx.Done():
	}
}

// claim keeps one resume per conversation outstanding across ticks.
func (r *WaitResumer) claim(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.inflight[key]; ok {
		return false
	}

	r.inflight[key] = struct{}{}

	return true
}

func (r *WaitResumer) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.inflight, key)
}

// Stop ends polling and waits for a poll in progress.
func (r *WaitResumer) Stop(ctx context.Context) error {
	r.mu.Lock()
	c, cancel := r.cron, r.cancel
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return nil
	}

	stopped := c.Stop()

	select {
	case <-stopped.Done():
		cancel()
		r.logger.InfoContext(ctx, "Wait scheduler stopped")

		return nil
	case <-ctx.Done():
		cancel()

		return ctx.Err()
	}
}
