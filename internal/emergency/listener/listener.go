// Package listener watches finalized ledger blocks for emergency remarks and
// turns them into notifications. One instance per process, owned by the
// composition root; it stays alive across connection loss through three
// independent mechanisms (error backoff, keep-alive, wake) whose races are
// settled by an idempotent start guard, not timer coordination.
package listener

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trailguard/internal/activity"
	"trailguard/internal/chain"
	"trailguard/internal/emergency/metrics"
	"trailguard/internal/emergency/models"
	"trailguard/internal/emergency/remark"
	"trailguard/internal/notify"
	"trailguard/pkg/apperrors"
)

// Status is the listener's lifecycle state.
type Status string

const (
	StatusStopped      Status = "stopped"
	StatusStarting     Status = "starting"
	StatusListening    Status = "listening"
	StatusReconnecting Status = "reconnecting"
	StatusError        Status = "error"
)

const (
	defaultErrorBackoff      = 5 * time.Second
	defaultStartBackoff      = 30 * time.Second
	defaultKeepAliveInterval = 60 * time.Second
)

// ActivityPublisher mirrors lifecycle changes into the activity ledger.
type ActivityPublisher interface {
	Emit(ctx context.Context, event activity.Event) error
}

// Listener is the remark ingestion service.
type Listener struct {
	client     chain.Client
	endpoint   string
	subscriber notify.Subscriber
	logger     *slog.Logger
	metrics    *metrics.Metrics
	activity   ActivityPublisher

	errorBackoff      time.Duration
	startBackoff      time.Duration
	keepAliveInterval time.Duration
	stayConnected     func() bool

	mu            sync.Mutex
	status        Status
	enabled       bool
	gen           uint64
	conn          chain.Conn
	cancelSub     func()
	reconnect     *time.Timer
	keepAliveStop chan struct{}
	baseCtx       context.Context
	baseCancel    context.CancelFunc

	monitor *Monitor
	window  *dedupeWindow
}

// Option configures a Listener.
type Option func(*Listener)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Listener) { l.metrics = m }
}

func WithActivityPublisher(p ActivityPublisher) Option {
	return func(l *Listener) { l.activity = p }
}

// WithErrorBackoff sets the delay before reconnecting after a runtime error.
func WithErrorBackoff(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.errorBackoff = d
		}
	}
}

// WithStartBackoff sets the longer delay used after a failed start.
func WithStartBackoff(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.startBackoff = d
		}
	}
}

func WithKeepAliveInterval(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.keepAliveInterval = d
		}
	}
}

// WithStayConnected injects the host's "should stay connected" signal. When
// it reports false, reconnects and keep-alive restarts stand down until
// Wake() or the next keep-alive tick finds it true again.
func WithStayConnected(fn func() bool) Option {
	return func(l *Listener) {
		if fn != nil {
			l.stayConnected = fn
		}
	}
}

func New(client chain.Client, endpoint string, subscriber notify.Subscriber, opts ...Option) (*Listener, error) {
	if client == nil {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "chain client is required")
	}
	if endpoint == "" {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "chain endpoint is required")
	}
	l := &Listener{
		client:            client,
		endpoint:          endpoint,
		subscriber:        subscriber,
		logger:            slog.Default(),
		errorBackoff:      defaultErrorBackoff,
		startBackoff:      defaultStartBackoff,
		keepAliveInterval: defaultKeepAliveInterval,
		stayConnected:     func() bool { return true },
		status:            StatusStopped,
		monitor:           NewMonitor(),
		window:            newDedupeWindow(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.subscriber == nil {
		l.subscriber = notify.NewLog(l.logger)
	}
	return l, nil
}

// Start begins (or resumes) listening. Idempotent: while a start is already
// underway or a subscription is live it reports the current status without
// opening a second connection.
func (l *Listener) Start() Status {
	l.mu.Lock()
	if l.status == StatusStarting || l.status == StatusListening {
		st := l.status
		l.mu.Unlock()
		return st
	}
	l.enabled = true
	l.status = StatusStarting
	l.gen++
	gen := l.gen
	if l.baseCtx == nil {
		l.baseCtx, l.baseCancel = context.WithCancel(context.Background())
	}
	if l.keepAliveStop == nil {
		l.keepAliveStop = make(chan struct{})
		go l.keepAliveLoop(l.keepAliveStop)
	}
	ctx := l.baseCtx
	l.mu.Unlock()

	go l.connect(ctx, gen)
	return StatusStarting
}

// Stop tears everything down at once: pending timers are cancelled, the
// keep-alive loop exits, and any in-flight connection attempt is superseded
// so its late callbacks are discarded.
func (l *Listener) Stop() {
	l.mu.Lock()
	l.enabled = false
	l.status = StatusStopped
	l.gen++
	if l.reconnect != nil {
		l.reconnect.Stop()
		l.reconnect = nil
	}
	if l.keepAliveStop != nil {
		close(l.keepAliveStop)
		l.keepAliveStop = nil
	}
	if l.baseCancel != nil {
		l.baseCancel()
		l.baseCtx, l.baseCancel = nil, nil
	}
	cancelSub := l.cancelSub
	l.cancelSub = nil
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if cancelSub != nil {
		cancelSub()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if l.metrics != nil {
		l.metrics.ListenerListening.Set(0)
	}
	l.emitActivity(activity.KindListenerStopped, nil)
	l.logger.Info("listener stopped")
}

// Status reports the current lifecycle state.
func (l *Listener) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Wake is the host's foreground-transition hook: re-check immediately and
// restart if the subscription is inactive while it should not be.
func (l *Listener) Wake() {
	l.restartIfInactive("wake")
}

// Monitor exposes the live-event buffer for display.
func (l *Listener) Monitor() *Monitor {
	return l.monitor
}

func (l *Listener) connect(ctx context.Context, gen uint64) {
	conn, err := l.client.Connect(ctx, l.endpoint)

	l.mu.Lock()
	if gen != l.gen || !l.enabled {
		l.mu.Unlock()
		if conn != nil {
			_ = conn.Close() // superseded attempt
		}
		return
	}
	if err != nil {
		l.status = StatusError
		l.mu.Unlock()
		l.logger.Warn("listener connect failed", "endpoint", l.endpoint, "error", err)
		l.subscriber.Error(ctx, err)
		l.scheduleReconnect(gen, l.startBackoff)
		return
	}
	l.conn = conn
	l.mu.Unlock()

	cancelSub, err := conn.SubscribeFinalizedHeads(ctx,
		func(h chain.Header) { l.handleHead(ctx, gen, h) },
		func(err error) { l.handleTransportError(ctx, gen, err) },
	)

	l.mu.Lock()
	if gen != l.gen || !l.enabled {
		l.mu.Unlock()
		if cancelSub != nil {
			cancelSub()
		}
		_ = conn.Close()
		return
	}
	if err != nil {
		l.status = StatusError
		l.conn = nil
		l.mu.Unlock()
		_ = conn.Close()
		l.logger.Warn("listener subscribe failed", "error", err)
		l.subscriber.Error(ctx, err)
		l.scheduleReconnect(gen, l.startBackoff)
		return
	}
	l.cancelSub = cancelSub
	l.status = StatusListening
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.ListenerListening.Set(1)
	}
	l.emitActivity(activity.KindListenerStarted, nil)
	l.logger.Info("listener subscribed", "endpoint", l.endpoint)
}

func (l *Listener) handleHead(ctx context.Context, gen uint64, head chain.Header) {
	l.mu.Lock()
	if gen != l.gen || !l.enabled {
		l.mu.Unlock()
		return
	}
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return
	}

	events, err := conn.Events(ctx, head.Number)
	if err != nil {
		l.handleTransportError(ctx, gen, err)
		return
	}

	var decoded int
	for _, raw := range events {
		em, err := remark.Decode(raw.Data)
		if err != nil {
			// Not every remark is ours; skip quietly.
			if l.metrics != nil {
				l.metrics.DecodesFailed.Inc()
			}
			l.logger.Debug("skipping undecodable event",
				"block", head.Number, "pallet", raw.Pallet, "name", raw.Name, "reason", err)
			continue
		}

		event := models.BlockchainEvent{
			BlockNumber: head.Number,
			Pallet:      raw.Pallet,
			Name:        raw.Name,
			Timestamp:   raw.Timestamp,
			Emergency:   *em,
		}
		if !l.window.Observe(event.Key()) {
			if l.metrics != nil {
				l.metrics.DuplicatesDropped.Inc()
			}
			continue
		}

		decoded++
		if l.metrics != nil {
			l.metrics.RemarksDecoded.Inc()
		}
		l.monitor.Append(event)
		l.subscriber.EventReceived(ctx, event)
		l.subscriber.EmergencyReceived(ctx, *em)
		l.emitActivity(activity.KindEmergencyReceived, map[string]string{
			"emergency_id": em.ID.String(),
			"severity":     string(em.Severity),
		})
	}

	if l.metrics != nil {
		l.metrics.BlocksProcessed.Inc()
	}
	l.subscriber.BlockProcessed(ctx, head.Number, decoded)
}

func (l *Listener) handleTransportError(ctx context.Context, gen uint64, err error) {
	l.mu.Lock()
	if gen != l.gen || !l.enabled {
		// Late callback from a superseded connection.
		l.mu.Unlock()
		return
	}
	l.status = StatusError
	cancelSub := l.cancelSub
	l.cancelSub = nil
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if cancelSub != nil {
		cancelSub()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if l.metrics != nil {
		l.metrics.ListenerListening.Set(0)
	}
	l.logger.Warn("listener transport error", "error", err)
	l.subscriber.Error(ctx, err)
	l.scheduleReconnect(gen, l.errorBackoff)
}

func (l *Listener) scheduleReconnect(gen uint64, delay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled || gen != l.gen {
		return
	}
	l.status = StatusReconnecting
	if l.metrics != nil {
		l.metrics.Reconnects.Inc()
	}
	if l.reconnect != nil {
		l.reconnect.Stop()
	}
	l.reconnect = time.AfterFunc(delay, func() {
		l.mu.Lock()
		if !l.enabled || gen != l.gen {
			l.mu.Unlock()
			return
		}
		if !l.stayConnected() {
			// Host says stand down; keep-alive or Wake picks this up later.
			l.status = StatusError
			l.mu.Unlock()
			return
		}
		l.status = StatusStarting
		l.gen++
		next := l.gen
		ctx := l.baseCtx
		l.mu.Unlock()
		go l.connect(ctx, next)
	})
}

func (l *Listener) keepAliveLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(l.keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.restartIfInactive("keep-alive")
		}
	}
}

func (l *Listener) restartIfInactive(trigger string) {
	l.mu.Lock()
	if !l.enabled || !l.stayConnected() {
		l.mu.Unlock()
		return
	}
	if l.status == StatusListening || l.status == StatusStarting {
		l.mu.Unlock()
		return
	}
	if l.reconnect != nil {
		l.reconnect.Stop()
		l.reconnect = nil
	}
	l.status = StatusStarting
	l.gen++
	gen := l.gen
	ctx := l.baseCtx
	l.mu.Unlock()

	l.logger.Info("restarting inactive listener", "trigger", trigger)
	go l.connect(ctx, gen)
}

func (l *Listener) emitActivity(kind activity.Kind, details map[string]string) {
	if l.activity == nil {
		return
	}
	refID := ""
	if details != nil {
		refID = details["emergency_id"]
	}
	if err := l.activity.Emit(context.Background(), activity.Event{
		Kind:      kind,
		RefID:     refID,
		Timestamp: time.Now(),
		Details:   details,
	}); err != nil {
		l.logger.Debug("activity emit failed", "kind", kind, "error", err)
	}
}
