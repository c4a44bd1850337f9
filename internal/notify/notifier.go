// Package notify is the listener's egress boundary. Subscribers register
// explicitly; ingestion never knows or cares what renders, stores, or relays
// the notification. Every callback is best-effort and must not block long.
package notify

import (
	"context"
	"log/slog"

	"trailguard/internal/emergency/models"
)

// Subscriber receives listener output. Implementations ignore callbacks they
// have no use for by embedding Base.
type Subscriber interface {
	EmergencyReceived(ctx context.Context, em models.Emergency)
	EventReceived(ctx context.Context, event models.BlockchainEvent)
	BlockProcessed(ctx context.Context, block uint64, eventCount int)
	Error(ctx context.Context, err error)
}

// Base is a no-op Subscriber for embedding.
type Base struct{}

func (Base) EmergencyReceived(context.Context, models.Emergency)   {}
func (Base) EventReceived(context.Context, models.BlockchainEvent) {}
func (Base) BlockProcessed(context.Context, uint64, int)           {}
func (Base) Error(context.Context, error)                          {}

// Multi fans notifications out to several subscribers in registration order.
type Multi struct {
	subscribers []Subscriber
}

func NewMulti(subscribers ...Subscriber) *Multi {
	return &Multi{subscribers: subscribers}
}

// Add registers another subscriber. Not safe to call concurrently with
// delivery; register everything before the listener starts.
func (m *Multi) Add(s Subscriber) {
	if s != nil {
		m.subscribers = append(m.subscribers, s)
	}
}

func (m *Multi) EmergencyReceived(ctx context.Context, em models.Emergency) {
	for _, s := range m.subscribers {
		s.EmergencyReceived(ctx, em)
	}
}

func (m *Multi) EventReceived(ctx context.Context, event models.BlockchainEvent) {
	for _, s := range m.subscribers {
		s.EventReceived(ctx, event)
	}
}

func (m *Multi) BlockProcessed(ctx context.Context, block uint64, eventCount int) {
	for _, s := range m.subscribers {
		s.BlockProcessed(ctx, block, eventCount)
	}
}

func (m *Multi) Error(ctx context.Context, err error) {
	for _, s := range m.subscribers {
		s.Error(ctx, err)
	}
}

// Log writes notifications to structured logs. The default subscriber.
type Log struct {
	Base
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) EmergencyReceived(_ context.Context, em models.Emergency) {
	l.logger.Info("emergency received",
		"emergency_id", em.ID.String(),
		"type", em.Type,
		"severity", em.Severity,
		"lat", em.Location.Latitude,
		"lon", em.Location.Longitude)
}

func (l *Log) BlockProcessed(_ context.Context, block uint64, eventCount int) {
	if eventCount > 0 {
		l.logger.Debug("block processed", "block", block, "events", eventCount)
	}
}

func (l *Log) Error(_ context.Context, err error) {
	l.logger.Warn("listener error", "error", err)
}
