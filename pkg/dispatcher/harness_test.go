package dispatcher

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/eventbus"
	"github.com/KallebyX/simao-sub001/pkg/interpreter"
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence/memory"
	"github.com/KallebyX/simao-sub001/pkg/randomizer"
	"github.com/KallebyX/simao-sub001/pkg/registry"
	"github.com/KallebyX/simao-sub001/pkg/workerpool"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// countingAdvancer records Advance calls and the highest number of calls
// that overlapped for one conversation.
type countingAdvancer struct {
	inner *interpreter.Interpreter

	mu      sync.Mutex
	active  map[string]int
	maxSeen int
	calls   atomic.Int64
	texts   map[string][]string
	delay   time.Duration
}

func newCountingAdvancer(src randomizer.Source) *countingAdvancer {
	return &countingAdvancer{
		inner:  interpreter.New(interpreter.WithRandomSource(src)),
		active: make(map[string]int),
		texts:  make(map[string][]string),
	}
}

func (a *countingAdvancer) Advance(prog *interpreter.Program, execCtx *models.ExecutionContext, event models.InboundEvent) models.StepResult {
	key := execCtx.Key()

	a.mu.Lock()
	a.active[key]++
	a.maxSeen = max(a.maxSeen, a.active[key])
	a.texts[key] = append(a.texts[key], event.Text)
	a.mu.Unlock()

	a.calls.Add(1)

	if a.delay > 0 {
		time.Sleep(a.delay)
	}

	defer func() {
		a.mu.Lock()
		a.active[key]--
		a.mu.Unlock()
	}()

	return a.inner.Advance(prog, execCtx, event)
}

func (a *countingAdvancer) MaxConcurrent() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.maxSeen
}

func (a *countingAdvancer) Texts(key string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]string(nil), a.texts[key]...)
}

// effectLog is the executor of the harness pool. Messages are recorded;
// webhooks are answered by the configured handler.
type effectLog struct {
	mu       sync.Mutex
	messages []string
	handoffs []string
	sent     chan string

	webhook func(ctx context.Context, task models.WorkerTask) (models.WorkerResult, error)
}

func (l *effectLog) Execute(ctx context.Context, task models.WorkerTask) (models.WorkerResult, error) {
	effect := task.Payload

	switch effect.Kind {
	case models.EffectSendMessage:
		l.mu.Lock()
		l.messages = append(l.messages, effect.Message.Text)
		l.mu.Unlock()

		select {
		case l.sent <- effect.Message.Text:
		default:
		}

	case models.EffectRouteToQueue:
		l.mu.Lock()
		l.handoffs = append(l.handoffs, effect.Handoff.QueueID)
		l.mu.Unlock()

	case models.EffectCallWebhook:
		if l.webhook != nil {
			return l.webhook(ctx, task)
		}

		next := effect.Webhook.OnSuccess

		return models.WorkerResult{NextNodeID: &next}, nil
	}

	return models.WorkerResult{}, nil
}

func (l *effectLog) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.messages...)
}

type harness struct {
	t          *testing.T
	store      *memory.Persistence
	bus        *eventbus.Bus
	pool       *workerpool.Pool
	effects    *effectLog
	advancer   *countingAdvancer
	dispatcher *Dispatcher
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	pool      workerpool.Config
	submitter Submitter
	maxHops   int
	random    randomizer.Source
}

func withPoolConfig(cfg workerpool.Config) harnessOption {
	return func(c *harnessConfig) { c.pool = cfg }
}

func withSubmitter(s Submitter) harnessOption {
	return func(c *harnessConfig) { c.submitter = s }
}

func withMaxHops(n int) harnessOption {
	return func(c *harnessConfig) { c.maxHops = n }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	cfg := harnessConfig{
		pool: workerpool.Config{
			Workers:       2,
			QueueDepth:    16,
			EffectTimeout: time.Second,
			Concurrency:   2,
		},
		maxHops: 16,
		random:  randomizer.Fixed(0.1),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	logger := testLogger()

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes(registry.DefaultNodeSettings())

	h := &harness{
		t:        t,
		store:    memory.NewPersistence(),
		bus:      eventbus.New(64, logger),
		effects:  &effectLog{sent: make(chan string, 64)},
		advancer: newCountingAdvancer(cfg.random),
	}

	h.pool = workerpool.New(cfg.pool, h.effects, logger)

	var submitter Submitter = h.pool
	if cfg.submitter != nil {
		submitter = cfg.submitter
	}

	h.dispatcher = New(Config{MaxHops: cfg.maxHops}, h.store, h.store, reg, h.advancer, submitter, h.bus, logger,
		WithClock(func() time.Time { return testTime }))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = h.dispatcher.Shutdown(ctx)
		_ = h.pool.Shutdown(ctx)
		_ = h.bus.Close()
	})

	return h
}

func (h *harness) saveFlow(graph *models.FlowGraph, phrases ...string) {
	h.t.Helper()

	ctx := context.Background()
	require.NoError(h.t, h.store.SaveGraph(ctx, graph))

	for _, phrase := range phrases {
		require.NoError(h.t, h.store.SaveTrigger(ctx, &models.Trigger{
			ID:       graph.ID + "-" + phrase,
			TenantID: graph.TenantID,
			Phrase:   phrase,
			FlowID:   graph.ID,
		}))
	}
}

func (h *harness) inbound(conversationID, text string) Outcome {
	h.t.Helper()

	return h.send(models.InboundEvent{
		TenantID:       "acme",
		ChannelID:      "ch-1",
		ConversationID: conversationID,
		Text:           text,
		Timestamp:      testTime,
	})
}

func (h *harness) send(event models.InboundEvent) Outcome {
	h.t.Helper()

	done, err := h.dispatcher.OnInboundEvent(context.Background(), event)
	require.NoError(h.t, err)

	return await(h.t, done)
}

func (h *harness) resume(conversationID string, at time.Time) Outcome {
	h.t.Helper()

	return h.send(models.InboundEvent{
		TenantID:       "acme",
		ConversationID: conversationID,
		Kind:           models.EventKindResume,
		Timestamp:      at,
	})
}

func (h *harness) context(conversationID string) *models.ExecutionContext {
	h.t.Helper()

	execCtx, err := h.store.LoadContext(context.Background(), "acme", conversationID)
	if err != nil {
		return nil
	}

	return execCtx
}

func (h *harness) nextMessage() string {
	h.t.Helper()

	select {
	case text := <-h.effects.sent:
		return text
	case <-time.After(2 * time.Second):
		h.t.Fatal("no message sent")

		return ""
	}
}

// inflightTasks counts the webhook tasks the dispatcher still awaits.
func (h *harness) inflightTasks() int {
	n := 0
	h.dispatcher.inflight.Range(func(_, _ any) bool {
		n++

		return true
	})

	return n
}

func await(t *testing.T, done <-chan Outcome) Outcome {
	t.Helper()

	select {
	case outcome := <-done:
		return outcome
	case <-time.After(3 * time.Second):
		t.Fatal("dispatcher did not answer")

		return Outcome{}
	}
}

// eventuallyContext waits until the conversation's stored context satisfies cond.
func (h *harness) eventuallyContext(conversationID string, cond func(*models.ExecutionContext) bool) {
	h.t.Helper()

	require.Eventually(h.t, func() bool {
		return cond(h.context(conversationID))
	}, 3*time.Second, 10*time.Millisecond)
}

type saturatedSubmitter struct {
	calls atomic.Int64
}

func (s *saturatedSubmitter) Submit(models.WorkerTask) (*workerpool.Future, error) {
	s.calls.Add(1)

	return nil, models.ErrPoolSaturated
}
