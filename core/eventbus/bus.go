// Package eventbus provides the priority-ordered publish/subscribe bus at
// the heart of the assistant core. Events posted asynchronously flow through
// a bounded priority queue drained by a worker pool; the immediate path
// dispatches synchronously on the calling goroutine. Handler failures are
// isolated per handler and never stop dispatch to the rest.
package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aurabot/aura-core/core/events"
)

const (
	defaultQueueCapacity = 1000
	defaultWorkerCount   = 1
	defaultHistoryLimit  = 100
	defaultPollInterval  = 100 * time.Millisecond
)

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	Processed      uint64
	Dropped        uint64
	QueueDepth     int
	HandlerCount   int
	Uptime         time.Duration
	WorkerCount    int
	Running        bool
	HandlersByType map[events.Type]int
}

// EventBus routes events from producers to registered handlers. Each bus is
// an explicit, constructed value; there is no process-wide instance.
type EventBus struct {
	queueCapacity int
	workerCount   int
	pollInterval  time.Duration

	queueMu sync.Mutex
	queue   *eventQueue
	notify  chan struct{}

	regMu    sync.RWMutex
	handlers map[string]*Handler
	byType   map[events.Type][]string

	history *history

	running     atomic.Bool
	stopCh      chan struct{}
	workers     sync.WaitGroup
	baseContext context.Context

	processed atomic.Uint64
	dropped   atomic.Uint64
	startTime time.Time
}

// Option configures a bus at construction time.
type Option func(*EventBus)

// WithQueueCapacity bounds the async queue. Posts beyond the bound are
// dropped, not blocked.
func WithQueueCapacity(n int) Option {
	return func(b *EventBus) {
		if n > 0 {
			b.queueCapacity = n
		}
	}
}

// WithWorkerCount sets how many goroutines drain the queue.
func WithWorkerCount(n int) Option {
	return func(b *EventBus) {
		if n > 0 {
			b.workerCount = n
		}
	}
}

// WithHistoryLimit bounds the retained event history.
func WithHistoryLimit(n int) Option {
	return func(b *EventBus) {
		if n > 0 {
			b.history = newHistory(n)
		}
	}
}

// WithPollInterval tunes how often idle workers re-check the queue. Shorter
// intervals shorten worst-case shutdown latency.
func WithPollInterval(d time.Duration) Option {
	return func(b *EventBus) {
		if d > 0 {
			b.pollInterval = d
		}
	}
}

// New creates a stopped bus. Call Start before posting asynchronous events.
func New(opts ...Option) *EventBus {
	b := &EventBus{
		queueCapacity: defaultQueueCapacity,
		workerCount:   defaultWorkerCount,
		pollInterval:  defaultPollInterval,
		handlers:      map[string]*Handler{},
		byType:        map[events.Type][]string{},
		history:       newHistory(defaultHistoryLimit),
		baseContext:   context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.queue = newEventQueue(b.queueCapacity)
	return b
}

// Start spawns the worker pool. ctx is the base context for handler
// dispatch and tracing.
func (b *EventBus) Start(ctx context.Context) error {
	if b.running.Swap(true) {
		return ErrAlreadyRunning
	}

	if ctx == nil {
		ctx = context.Background()
	}
	b.baseContext = ctx
	b.stopCh = make(chan struct{})
	b.notify = make(chan struct{}, 1)
	b.startTime = time.Now()

	for i := 0; i < b.workerCount; i++ {
		b.workers.Add(1)
		go b.worker(ctx)
	}

	logger.InfoContext(ctx, "event bus started", "workers", b.workerCount)
	return nil
}

// Stop signals the workers and waits up to timeout for them to drain.
// Events still queued when Stop returns are discarded; delivery is
// at-most-once across a stop boundary.
func (b *EventBus) Stop(timeout time.Duration) error {
	if !b.running.Swap(false) {
		return ErrNotRunning
	}

	close(b.stopCh)

	done := make(chan struct{})
	go func() {
		b.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("event bus stopped")
		return nil
	case <-time.After(timeout):
		logger.Warn("event bus stop timed out", "timeout", timeout)
		return ErrStopTimeout
	}
}

// IsRunning reports whether the worker pool is live.
func (b *EventBus) IsRunning() bool { return b.running.Load() }

// RegisterHandler adds the handler to the registry and returns its id.
// Registration indexes the handler per event type for O(1) candidate
// lookup during dispatch.
func (b *EventBus) RegisterHandler(h *Handler) string {
	b.regMu.Lock()
	defer b.regMu.Unlock()

	b.handlers[h.ID] = h
	for _, t := range h.Types {
		b.byType[t] = append(b.byType[t], h.ID)
	}

	logger.Debug("registered event handler", "handler", h.ID)
	return h.ID
}

// UnregisterHandler removes the handler from the registry and the per-type
// index. Once it returns, no subsequently posted event reaches the handler.
func (b *EventBus) UnregisterHandler(id string) bool {
	b.regMu.Lock()
	defer b.regMu.Unlock()

	h, ok := b.handlers[id]
	if !ok {
		logger.Warn("handler not found", "handler", id)
		return false
	}
	delete(b.handlers, id)

	for _, t := range h.Types {
		ids := b.byType[t]
		for i, hid := range ids {
			if hid == id {
				b.byType[t] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		if len(b.byType[t]) == 0 {
			delete(b.byType, t)
		}
	}

	logger.Debug("unregistered event handler", "handler", id)
	return true
}

// CreateHandler builds an unregistered handler matching the given types.
func (b *EventBus) CreateHandler(callback Callback, opts ...HandlerOption) *Handler {
	return NewHandler(callback, opts...)
}

// PostEvent queues the event for asynchronous dispatch. It never blocks:
// when the queue is full the event is dropped, the dropped counter
// incremented, and false returned. The event is appended to history
// regardless of queue admission.
func (b *EventBus) PostEvent(e *events.Event) bool {
	b.history.add(e)

	if !b.running.Load() {
		logger.Warn("event bus not running, cannot post event", "event", e.String())
		return false
	}

	b.queueMu.Lock()
	admitted := b.queue.push(e)
	b.queueMu.Unlock()

	if !admitted {
		b.dropped.Add(1)
		logger.Warn("event queue full, dropped event", "event", e.String())
		return false
	}

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return true
}

// PostEventImmediate bypasses the queue and runs every currently matching
// handler on the calling goroutine before returning. It reports whether at
// least one handler processed the event without error.
//
// Immediate calls from different goroutines are not serialized against each
// other; no cross-goroutine ordering is promised.
func (b *EventBus) PostEventImmediate(e *events.Event) bool {
	b.history.add(e)
	return b.dispatch(b.baseContext, e)
}

// History returns a copy of the retained event history, oldest first.
func (b *EventBus) History() []*events.Event { return b.history.snapshot() }

// ClearHistory discards the retained event history.
func (b *EventBus) ClearHistory() { b.history.clear() }

// Stats returns a snapshot of the bus counters.
func (b *EventBus) Stats() Stats {
	b.queueMu.Lock()
	depth := b.queue.len()
	b.queueMu.Unlock()

	b.regMu.RLock()
	handlerCount := len(b.handlers)
	byType := make(map[events.Type]int, len(b.byType))
	for t, ids := range b.byType {
		byType[t] = len(ids)
	}
	b.regMu.RUnlock()

	running := b.running.Load()
	var uptime time.Duration
	if running {
		uptime = time.Since(b.startTime)
	}

	workerCount := 0
	if running {
		workerCount = b.workerCount
	}

	return Stats{
		Processed:      b.processed.Load(),
		Dropped:        b.dropped.Load(),
		QueueDepth:     depth,
		HandlerCount:   handlerCount,
		Uptime:         uptime,
		WorkerCount:    workerCount,
		Running:        running,
		HandlersByType: byType,
	}
}

// worker drains the queue until stopped. It wakes on new-event signals and
// otherwise re-checks on a short poll interval so Stop stays responsive.
func (b *EventBus) worker(ctx context.Context) {
	defer b.workers.Done()

	for {
		select {
		case <-b.stopCh:
			return
		case <-b.notify:
		case <-time.After(b.pollInterval):
		}

		for {
			b.queueMu.Lock()
			e, ok := b.queue.pop()
			b.queueMu.Unlock()
			if !ok {
				break
			}

			b.dispatch(ctx, e)
			b.processed.Add(1)
		}
	}
}

// dispatch routes one event to every matching handler. Candidates come from
// the per-type index; when that set is empty and the event is HIGH priority
// or above, every registered handler is scanned instead so high-priority
// events are never lost to an indexing gap.
func (b *EventBus) dispatch(ctx context.Context, e *events.Event) bool {
	ctx, span := tracer.Start(ctx, "eventbus.dispatch")
	defer span.End()

	b.regMu.RLock()
	var candidates []*Handler
	for _, id := range b.byType[e.Type] {
		if h, ok := b.handlers[id]; ok {
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 && e.Priority >= events.PriorityHigh {
		for _, h := range b.handlers {
			candidates = append(candidates, h)
		}
	}
	b.regMu.RUnlock()

	handled := false
	matched := 0
	for _, h := range candidates {
		if !h.Matches(e) {
			continue
		}
		matched++
		if b.call(ctx, h, e) {
			handled = true
		}
	}

	if matched == 0 && e.Priority >= events.PriorityHigh {
		logger.WarnContext(ctx, "no handlers for high-priority event", "event", e.String())
	}

	return handled
}

// call invokes one handler with error and panic isolation. A failure is
// logged and recorded on the dispatch span; it never propagates to the
// worker or to sibling handlers.
func (b *EventBus) call(ctx context.Context, h *Handler, e *events.Event) (ok bool) {
	span := trace.SpanFromContext(ctx)

	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("event handler %s panicked: %v", h.ID, recovered)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.ErrorContext(ctx, "event handler panicked",
				"handler", h.ID, "event", e.String(), "panic", recovered)
			ok = false
		}
	}()

	if err := h.Callback(e); err != nil {
		err = fmt.Errorf("event handler %s failed: %w", h.ID, err)
		span.RecordError(err)
		logger.ErrorContext(ctx, "event handler failed",
			"handler", h.ID, "event", e.String(), "error", err)
		return false
	}

	h.markCalled()
	return true
}
