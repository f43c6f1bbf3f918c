// Package audit emits structured audit records for security relevant
// gateway activity. Emission is asynchronous and never blocks the
// request path; under backpressure events are dropped and counted.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/apiconduit/conduit/internal/observability"
)

// Logger records audit events.
type Logger interface {
	// Emit queues an event for writing. It never blocks; when the
	// queue is full the event is dropped and counted.
	Emit(ctx context.Context, event *Event)

	// Close drains the queue and stops the writer goroutine.
	Close() error
}

const defaultQueueSize = 1024

// logger writes JSON lines from a bounded queue.
type logger struct {
	writer    io.Writer
	mu        sync.Mutex
	queue     chan *Event
	done      chan struct{}
	closeOnce sync.Once
	log       observability.Logger

	// closeMu orders Emit against Close so the queue is never written
	// after it is closed. Emits racing a Close are dropped, not panics.
	closeMu sync.RWMutex
	closed  bool
}

// Option configures the audit logger.
type Option func(*logger)

// WithWriter directs audit output to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(l *logger) { l.writer = w }
}

// WithQueueSize overrides the default queue capacity.
func WithQueueSize(n int) Option {
	return func(l *logger) {
		if n > 0 {
			l.queue = make(chan *Event, n)
		}
	}
}

// WithLogger sets the operational logger used for writer errors.
func WithLogger(log observability.Logger) Option {
	return func(l *logger) { l.log = log }
}

// NewLogger creates an audit logger and starts its writer goroutine.
func NewLogger(opts ...Option) Logger {
	l := &logger{
		writer: os.Stdout,
		queue:  make(chan *Event, defaultQueueSize),
		done:   make(chan struct{}),
		log:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.run()
	return l
}

func (l *logger) Emit(ctx context.Context, event *Event) {
	if event == nil {
		return
	}
	if event.RequestID == "" {
		event.RequestID = observability.RequestIDFromContext(ctx)
	}

	l.closeMu.RLock()
	defer l.closeMu.RUnlock()
	if l.closed {
		recordDropped()
		return
	}

	select {
	case l.queue <- event:
		recordEmitted(event)
	default:
		recordDropped()
	}
}

func (l *logger) run() {
	defer close(l.done)
	for event := range l.queue {
		l.write(event)
	}
}

func (l *logger) write(event *Event) {
	encoded, err := json.Marshal(event)
	if err != nil {
		l.log.Error("encode audit event", observability.Error(err))
		return
	}
	encoded = append(encoded, '\n')

	l.mu.Lock()
	_, err = l.writer.Write(encoded)
	l.mu.Unlock()
	if err != nil {
		l.log.Error("write audit event", observability.Error(err))
	}
}

func (l *logger) Close() error {
	l.closeOnce.Do(func() {
		l.closeMu.Lock()
		l.closed = true
		close(l.queue)
		l.closeMu.Unlock()
		<-l.done
	})
	return nil
}

// Nop returns an audit logger that discards everything.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Emit(context.Context, *Event) {}
func (nopLogger) Close() error                 { return nil }
