package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrUnknownCommand is returned by Dispatch for commands without a handler.
var ErrUnknownCommand = errors.New("unknown command")

// ErrQueueFull is returned by non-blocking buffered handlers that drop a call.
var ErrQueueFull = errors.New("queue full")

// Event is one call from the host server: a command name and its arguments.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result for the host.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(o *options) {
		o.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(o *options) {
		o.logged = true
	}
}

// Dispatcher routes host calls to registered handlers.
type Dispatcher struct {
	logger Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	buffers  map[string]chan Event
	closed   bool
	wg       sync.WaitGroup

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter
}

// New creates a Dispatcher. Metrics go to the global OTel meter, which is a
// no-op until a provider is installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}

	m := meter()
	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of calls in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total buffered calls processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total calls dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.events.failed",
		metric.WithDescription("Total calls whose handler returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command, replacing any previous one.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	handler := h
	if o.bufferSize > 0 {
		handler = d.withBuffer(command, o.bufferSize, o.blocking, handler)
	}
	if o.logged {
		handler = d.withLogging(command, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Commands lists the registered commands in sorted order.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		out = append(out, cmd)
	}
	slices.Sort(out)
	return out
}

// Close stops accepting buffered calls and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	if old, ok := d.buffers[command]; ok && !d.closed {
		close(old)
	}
	d.buffers[command] = buffer
	d.mu.Unlock()

	cmdAttr := metric.WithAttributes(attribute.String("command", command))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range buffer {
			if _, err := h(e); err != nil {
				d.failed.Add(context.Background(), 1, cmdAttr)
				d.logger.Error("buffered call failed", "command", command, "error", err)
			}
			d.processed.Add(context.Background(), 1, cmdAttr)
		}
	}()

	send := func(e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, fmt.Errorf("dispatcher closed: %s", command)
		}
		if blocking {
			buffer <- e
			return "queued", nil
		}
		select {
		case buffer <- e:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, cmdAttr)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
	return send
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling call", "command", command, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("call failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("call complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
