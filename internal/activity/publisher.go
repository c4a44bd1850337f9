package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher writes activity events to a store, synchronously by default or
// through a buffered channel when configured async. Close drains the buffer.
type Publisher struct {
	store  Store
	logger *slog.Logger

	inbox chan Event
	done  chan struct{}
	once  sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to asynchronous mode with the given
// channel capacity. When the buffer is full, events are dropped and logged
// rather than blocking the emitter.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan Event, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.done = make(chan struct{})
		go p.run()
	}
	return p
}

// Emit records one event. In async mode it never blocks; a full buffer drops
// the event with a log line.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		p.logger.Warn("activity buffer full, dropping event",
			"kind", event.Kind, "ref_id", event.RefID)
		return nil
	}
}

// ListByRef exposes the underlying store's history.
func (p *Publisher) ListByRef(ctx context.Context, refID string) ([]Event, error) {
	return p.store.ListByRef(ctx, refID)
}

// Close drains any buffered events and stops the worker. Safe to call twice.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	p.once.Do(func() {
		close(p.inbox)
		<-p.done
	})
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Warn("activity append failed",
				"kind", event.Kind, "ref_id", event.RefID, "error", err)
		}
	}
}
