// Package eventbus is the process-wide publish/subscribe hub for domain
// events. Listeners are keyed by the concrete event type.
package eventbus

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a subscription.
type Option func(*subConfig)

type subConfig struct {
	priority   int
	bufferSize int
	blocking   bool
	name       string
}

// Priority orders synchronous listeners. Higher runs first; equal priorities
// run in subscription order.
func Priority(p int) Option {
	return func(c *subConfig) {
		c.priority = p
	}
}

// Buffered delivers events on a dedicated goroutine through a queue of the
// given size instead of on the publisher's goroutine.
func Buffered(size int) Option {
	return func(c *subConfig) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered listener block the publisher when its queue is
// full instead of dropping.
func Blocking() Option {
	return func(c *subConfig) {
		c.blocking = true
	}
}

// Named labels the listener in logs and metrics.
func Named(name string) Option {
	return func(c *subConfig) {
		c.name = name
	}
}

// High priority is used by listeners that must observe an event before any
// presentation layer does.
const High = 100

type subscription struct {
	id       uint64
	priority int
	name     string
	call     func(context.Context, any) error
	buffered bool
	blocking bool
	queue    chan queued // nil once closed; guarded by Bus.mu
}

type queued struct {
	ctx   context.Context
	event any
}

// Bus routes published events to the listeners of their type.
type Bus struct {
	logger Logger

	mu     sync.RWMutex
	subs   map[reflect.Type][]*subscription
	nextID uint64
	wg     sync.WaitGroup
	closed bool

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	published metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter
}

// New creates a new Bus with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Bus, error) {
	b := &Bus{
		logger: logger,
		subs:   make(map[reflect.Type][]*subscription),
	}

	m := meter()

	var err error

	b.queueSize, err = m.Int64ObservableGauge(
		"eventbus.queue.size",
		metric.WithDescription("Current number of events waiting in buffered listeners"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			b.mu.RLock()
			defer b.mu.RUnlock()
			for _, subs := range b.subs {
				for _, s := range subs {
					if s.queue != nil {
						o.ObserveInt64(b.queueSize, int64(len(s.queue)),
							metric.WithAttributes(attribute.String("listener", s.name)))
					}
				}
			}
			return nil
		},
		b.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	b.published, err = m.Int64Counter(
		"eventbus.events.published",
		metric.WithDescription("Total events published"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating published counter: %w", err)
	}

	b.dropped, err = m.Int64Counter(
		"eventbus.events.dropped",
		metric.WithDescription("Total events dropped due to a full listener queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	b.failed, err = m.Int64Counter(
		"eventbus.listener.errors",
		metric.WithDescription("Total listener invocations that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	return b, nil
}

// Subscribe registers fn for events of type T and returns a function that
// removes the subscription.
func Subscribe[T any](b *Bus, fn func(context.Context, T) error, opts ...Option) (unsubscribe func()) {
	cfg := &subConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	typ := reflect.TypeFor[T]()
	if cfg.name == "" {
		cfg.name = typ.String()
	}

	s := &subscription{
		priority: cfg.priority,
		name:     cfg.name,
		blocking: cfg.blocking,
		call: func(ctx context.Context, ev any) error {
			return fn(ctx, ev.(T))
		},
	}

	b.mu.Lock()
	b.nextID++
	s.id = b.nextID
	if cfg.bufferSize > 0 {
		s.buffered = true
		if !b.closed {
			q := make(chan queued, cfg.bufferSize)
			s.queue = q
			b.wg.Add(1)
			go b.drain(s, q)
		}
	}
	subs := append(b.subs[typ], s)
	slices.SortStableFunc(subs, func(a, c *subscription) int {
		return c.priority - a.priority
	})
	b.subs[typ] = subs
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(typ, s.id) })
	}
}

// Publish delivers ev to every listener of its concrete type. Synchronous
// listeners run on the caller's goroutine before Publish returns; a listener
// error is logged and does not stop delivery to the others.
func (b *Bus) Publish(ctx context.Context, ev any) {
	if ev == nil {
		return
	}
	typ := reflect.TypeOf(ev)

	b.mu.RLock()
	subs := slices.Clone(b.subs[typ])
	b.mu.RUnlock()

	typeAttr := attribute.String("event", typ.String())
	b.published.Add(ctx, 1, metric.WithAttributes(typeAttr))

	for _, s := range subs {
		if !s.buffered {
			b.invoke(ctx, s, ev)
			continue
		}
		b.enqueue(ctx, s, ev, typeAttr)
	}
}

// HasListeners reports whether any listener is registered for T.
func HasListeners[T any](b *Bus) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[reflect.TypeFor[T]()]) > 0
}

// Close stops accepting new buffered deliveries and waits for buffered
// listeners to drain their queues.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, s := range subs {
			if s.queue != nil {
				close(s.queue)
				s.queue = nil
			}
		}
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bus) enqueue(ctx context.Context, s *subscription, ev any, typeAttr attribute.KeyValue) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s.queue == nil {
		return
	}
	item := queued{ctx: context.WithoutCancel(ctx), event: ev}
	if s.blocking {
		s.queue <- item
		return
	}
	select {
	case s.queue <- item:
	default:
		b.dropped.Add(ctx, 1, metric.WithAttributes(typeAttr, attribute.String("listener", s.name)))
		b.logger.Error("listener queue full, event dropped", "listener", s.name, "event", typeAttr.Value.AsString())
	}
}

func (b *Bus) drain(s *subscription, q <-chan queued) {
	defer b.wg.Done()
	for item := range q {
		b.invoke(item.ctx, s, item.event)
	}
}

func (b *Bus) invoke(ctx context.Context, s *subscription, ev any) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			b.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("listener", s.name)))
			b.logger.Error("listener panicked", "listener", s.name, "panic", r)
		}
	}()
	if err := s.call(ctx, ev); err != nil {
		b.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("listener", s.name)))
		b.logger.Error("listener failed", "listener", s.name, "duration", time.Since(start), "error", err)
	}
}

func (b *Bus) remove(typ reflect.Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[typ] = slices.DeleteFunc(b.subs[typ], func(s *subscription) bool {
		if s.id != id {
			return false
		}
		if s.queue != nil {
			close(s.queue)
			s.queue = nil
		}
		return true
	})
}
