// Package gameloop runs the single simulation goroutine that owns all flag
// state. Other goroutines hand work to it with Post and Invoke; periodic work
// is scheduled with Every.
package gameloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned when work is handed to a loop that is not running.
var ErrStopped = errors.New("game loop stopped")

// Loop serializes tasks onto one goroutine.
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	logger *slog.Logger

	running  atomic.Bool
	stopOnce sync.Once
}

// New creates a loop with a task queue of the given size.
func New(queueSize int, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		tasks:  make(chan func(), queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run executes tasks until ctx is done. It must be called exactly once.
func (l *Loop) Run(ctx context.Context) error {
	l.running.Store(true)
	defer l.stopOnce.Do(func() { close(l.done) })

	for {
		select {
		case <-ctx.Done():
			l.running.Store(false)
			return nil
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn without waiting for it. It blocks while the queue is full.
func (l *Loop) Post(fn func()) error {
	if l.stopped() {
		return ErrStopped
	}
	select {
	case <-l.done:
		return ErrStopped
	case l.tasks <- fn:
		return nil
	}
}

// Invoke runs fn on the loop and waits for it to finish. If ctx ends before fn
// has started, fn never runs and the context error is returned. Invoke must
// not be called from the loop goroutine.
func (l *Loop) Invoke(ctx context.Context, fn func()) error {
	const (
		pending int32 = iota
		started
		abandoned
	)
	var state atomic.Int32
	finished := make(chan struct{})

	if l.stopped() {
		return ErrStopped
	}

	task := func() {
		if !state.CompareAndSwap(pending, started) {
			return
		}
		defer close(finished)
		fn()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	case l.tasks <- task:
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		if state.CompareAndSwap(pending, abandoned) {
			return ctx.Err()
		}
	case <-l.done:
		if state.CompareAndSwap(pending, abandoned) {
			return ErrStopped
		}
	}
	<-finished
	return nil
}

// Every posts fn to the loop once per interval until the returned stop
// function is called. Ticks that arrive while the previous one is still
// queued are skipped.
func (l *Loop) Every(interval time.Duration, fn func()) (stop func()) {
	ticker := time.NewTicker(interval)
	quit := make(chan struct{})
	var inFlight atomic.Bool
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-l.done:
				return
			case <-ticker.C:
				if !inFlight.CompareAndSwap(false, true) {
					continue
				}
				task := func() {
					defer inFlight.Store(false)
					select {
					case <-quit:
						return
					default:
					}
					fn()
				}
				if err := l.Post(task); err != nil {
					return
				}
			}
		}
	}()

	return func() {
		once.Do(func() { close(quit) })
	}
}

func (l *Loop) stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("game loop task panicked", "panic", r)
		}
	}()
	fn()
}
