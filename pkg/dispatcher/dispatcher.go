// Package dispatcher matches inbound events to flows and drives executions.
// Every conversation has a mailbox, so at most one step of a conversation
// runs at any time and its events are handled in arrival order.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/eventbus"
	"github.com/KallebyX/simao-sub001/pkg/interpreter"
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
	"github.com/KallebyX/simao-sub001/pkg/registry"
	"github.com/KallebyX/simao-sub001/pkg/workerpool"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	ErrDispatcherClosed = errors.New("dispatcher is closed")
	ErrInvalidEvent     = errors.New("invalid inbound event")
)

// Advancer visits one node. *interpreter.Interpreter implements it.
type Advancer interface {
	Advance(prog *interpreter.Program, execCtx *models.ExecutionContext, event models.InboundEvent) models.StepResult
}

// Submitter hands effects to the worker pool. *workerpool.Pool implements it.
type Submitter interface {
	Submit(task models.WorkerTask) (*workerpool.Future, error)
}

type Config struct {
	// MaxHops bounds the nodes one run visits without suspending.
	MaxHops int
}

func DefaultConfig() Config {
	return Config{MaxHops: 64}
}

// Dispatcher implements the inbound side of the engine.
type Dispatcher struct {
	config    Config
	graphs    persistence.GraphStore
	contexts  persistence.ContextStore
	registry  *registry.Registry
	advancer  Advancer
	pool      Submitter
	publisher eventbus.Publisher
	tracer    trace.Tracer
	logger    *slog.Logger
	validate  *validator.Validate
	now       func() time.Time

	baseCtx context.Context
	stop    context.CancelFunc

	mu        sync.Mutex
	mailboxes map[string]*mailbox
	closed    bool
	wg        sync.WaitGroup

	// inflight holds webhook task ids this process awaits.
	inflight sync.Map
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTracer sets the tracer step runs are recorded with.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// WithClock replaces time.Now for timestamps of scheduler-less events.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func New(
	config Config,
	graphs persistence.GraphStore,
	contexts persistence.ContextStore,
	reg *registry.Registry,
	advancer Advancer,
	pool Submitter,
	publisher eventbus.Publisher,
	logger *slog.Logger,
	opts ...Option,
) *Dispatcher {
	if config.MaxHops <= 0 {
		config.MaxHops = DefaultConfig().MaxHops
	}

	baseCtx, stop := context.WithCancel(context.Background())

	d := &Dispatcher{
		config:    config,
		graphs:    graphs,
		contexts:  contexts,
		registry:  reg,
		advancer:  advancer,
		pool:      pool,
		publisher: publisher,
		tracer:    noop.NewTracerProvider().Tracer("dispatcher"),
		logger:    logger.With("module", "dispatcher"),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
		baseCtx:   baseCtx,
		stop:      stop,
		mailboxes: make(map[string]*mailbox),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// OnInboundEvent queues event on its conversation's mailbox. The returned
// channel receives the outcome once the event has been handled.
func (d *Dispatcher) OnInboundEvent(_ context.Context, event models.InboundEvent) (<-chan Outcome, error) {
	err := d.validate.Struct(event)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = d.now().UTC()
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = event.ReceivedAt
	}

	j := newJob("inbound", func(ctx context.Context) Outcome {
		return d.handleInbound(ctx, event)
	})

	if err := d.submit(models.ConversationKey(event.TenantID, event.ConversationID), j, false); err != nil {
		return nil, err
	}

	return j.done, nil
}

// Close cancels the conversation's flow. The job in progress is aborted,
// queued events are discarded and any worker result still in flight will
// be discarded when it arrives.
func (d *Dispatcher) Close(_ context.Context, tenantID, conversationID string) (<-chan Outcome, error) {
	if tenantID == "" || conversationID == "" {
		return nil, fmt.Errorf("%w: tenant and conversation are required", ErrInvalidEvent)
	}

	j := newJob("close", func(ctx context.Context) Outcome {
		return d.handleClose(ctx, tenantID, conversationID)
	})

	if err := d.submit(models.ConversationKey(tenantID, conversationID), j, true); err != nil {
		return nil, err
	}

	return j.done, nil
}

// submit enqueues j unless Shutdown has begun. The check and the enqueue
// share the lock so no drainer starts once Shutdown waits.
func (d *Dispatcher) submit(key string, j *job, front bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	d.enqueueLocked(key, j, front)

	return nil
}

// Shutdown stops accepting events and waits for queued jobs. When ctx ends
// first, jobs in progress are aborted.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})

	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.stop()

		return nil
	case <-ctx.Done():
		d.stop()
		<-done

		return ctx.Err()
	}
}
