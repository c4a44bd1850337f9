package listener

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailguard/internal/chain"
	"trailguard/internal/chain/chaintest"
	"trailguard/internal/emergency/models"
	"trailguard/internal/emergency/remark"
	"trailguard/pkg/domain"
)

type recordingSubscriber struct {
	mu          sync.Mutex
	emergencies []models.Emergency
	events      []models.BlockchainEvent
	blocks      []uint64
	counts      []int
	errs        []error
}

func (r *recordingSubscriber) EmergencyReceived(_ context.Context, em models.Emergency) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emergencies = append(r.emergencies, em)
}

func (r *recordingSubscriber) EventReceived(_ context.Context, event models.BlockchainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSubscriber) BlockProcessed(_ context.Context, block uint64, eventCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks = append(r.blocks, block)
	r.counts = append(r.counts, eventCount)
}

func (r *recordingSubscriber) Error(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingSubscriber) emergencyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.emergencies)
}

func (r *recordingSubscriber) blockCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.blocks)
}

func remarkEvent(t *testing.T, ts time.Time) chain.RawEvent {
	t.Helper()
	em := &models.Emergency{
		ID:       domain.NewEmergencyID(),
		Type:     models.TypeMedical,
		Severity: models.SeverityCritical,
		Location: models.GPSPoint{Latitude: 46.5197, Longitude: 6.6323},
		Reporter: domain.AccountID("5FHneW46"),
		Status:   models.StatusPending,
	}
	data, err := remark.Encode(em)
	require.NoError(t, err)
	return chain.RawEvent{Pallet: "system", Name: "Remarked", Timestamp: ts, Data: data}
}

func newTestListener(t *testing.T, fake *chaintest.Fake, sub *recordingSubscriber, opts ...Option) *Listener {
	t.Helper()
	base := []Option{
		WithLogger(slog.Default()),
		WithErrorBackoff(10 * time.Millisecond),
		WithStartBackoff(20 * time.Millisecond),
		WithKeepAliveInterval(time.Hour),
	}
	l, err := New(fake, "ws://fake", sub, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(l.Stop)
	return l
}

func waitListening(t *testing.T, l *Listener) {
	t.Helper()
	require.Eventually(t, func() bool {
		return l.Status() == StatusListening
	}, time.Second, 2*time.Millisecond)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "ws://fake", nil)
	assert.Error(t, err)

	_, err = New(chaintest.NewFake(), "", nil)
	assert.Error(t, err)
}

func TestStart_IsIdempotent(t *testing.T) {
	fake := chaintest.NewFake()
	l := newTestListener(t, fake, &recordingSubscriber{})

	l.Start()
	l.Start()
	waitListening(t, l)
	l.Start()

	assert.Equal(t, 1, fake.TotalConns(), "repeated starts must not open extra connections")
	assert.Equal(t, 1, fake.LiveConns())
}

func TestStart_ConcurrentCallsOpenOneConnection(t *testing.T) {
	fake := chaintest.NewFake()
	l := newTestListener(t, fake, &recordingSubscriber{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Start()
		}()
	}
	wg.Wait()
	waitListening(t, l)

	assert.Equal(t, 1, fake.TotalConns())
}

func TestHead_DeliversDecodedEmergency(t *testing.T) {
	fake := chaintest.NewFake()
	sub := &recordingSubscriber{}
	l := newTestListener(t, fake, sub)

	fake.AddBlock(7, remarkEvent(t, time.Unix(1700000000, 0)))
	l.Start()
	waitListening(t, l)

	fake.EmitHead(7)

	require.Eventually(t, func() bool { return sub.emergencyCount() == 1 }, time.Second, 2*time.Millisecond)
	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, models.StatusSubmitted, sub.emergencies[0].Status)
	assert.Equal(t, uint64(7), sub.events[0].BlockNumber)
	assert.Equal(t, []uint64{7}, sub.blocks)
	assert.Equal(t, []int{1}, sub.counts)
}

func TestHead_DuplicateEventReportedOnce(t *testing.T) {
	fake := chaintest.NewFake()
	sub := &recordingSubscriber{}
	l := newTestListener(t, fake, sub)

	fake.AddBlock(9, remarkEvent(t, time.Unix(1700000000, 0)))
	l.Start()
	waitListening(t, l)

	fake.EmitHead(9)
	fake.EmitHead(9)

	require.Eventually(t, func() bool { return sub.blockCount() == 2 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 1, sub.emergencyCount(), "identical (block, pallet, name, timestamp) must be dropped")
	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, []int{1, 0}, sub.counts)
}

func TestHead_SkipsForeignRemarks(t *testing.T) {
	fake := chaintest.NewFake()
	sub := &recordingSubscriber{}
	l := newTestListener(t, fake, sub)

	fake.AddBlock(3,
		chain.RawEvent{Pallet: "system", Name: "Remarked", Timestamp: time.Unix(1700000000, 0), Data: []byte("hello world")},
		remarkEvent(t, time.Unix(1700000001, 0)),
	)
	l.Start()
	waitListening(t, l)

	fake.EmitHead(3)

	require.Eventually(t, func() bool { return sub.blockCount() == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 1, sub.emergencyCount())
}

func TestTransportError_Reconnects(t *testing.T) {
	fake := chaintest.NewFake()
	sub := &recordingSubscriber{}
	l := newTestListener(t, fake, sub)

	l.Start()
	waitListening(t, l)

	fake.FailSubscriptions(errors.New("socket reset"))

	require.Eventually(t, func() bool {
		return fake.TotalConns() == 2 && l.Status() == StatusListening
	}, time.Second, 2*time.Millisecond)
	assert.Equal(t, 1, fake.LiveConns(), "failed connection must be closed before the replacement opens")
}

func TestStop_DuringBackoffPreventsReconnect(t *testing.T) {
	fake := chaintest.NewFake()
	fake.FailConnect(errors.New("refused"))
	l := newTestListener(t, fake, &recordingSubscriber{},
		WithStartBackoff(30*time.Millisecond))

	l.Start()
	require.Eventually(t, func() bool {
		return l.Status() == StatusReconnecting
	}, time.Second, 2*time.Millisecond)

	l.Stop()
	fake.FailConnect(nil)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 0, fake.TotalConns(), "stop during a backoff delay must cancel the pending attempt")
	assert.Equal(t, StatusStopped, l.Status())
}

func TestStop_ClosesLiveConnection(t *testing.T) {
	fake := chaintest.NewFake()
	l := newTestListener(t, fake, &recordingSubscriber{})

	l.Start()
	waitListening(t, l)
	l.Stop()

	assert.Equal(t, 0, fake.LiveConns())
	assert.Equal(t, StatusStopped, l.Status())
}

func TestWake_RestartsInactiveListener(t *testing.T) {
	fake := chaintest.NewFake()
	fake.FailConnect(errors.New("refused"))
	l := newTestListener(t, fake, &recordingSubscriber{},
		WithStartBackoff(time.Hour))

	l.Start()
	require.Eventually(t, func() bool {
		return l.Status() == StatusReconnecting
	}, time.Second, 2*time.Millisecond)

	fake.FailConnect(nil)
	l.Wake()
	waitListening(t, l)

	assert.Equal(t, 1, fake.TotalConns())
}

func TestWake_NoopWhileListening(t *testing.T) {
	fake := chaintest.NewFake()
	l := newTestListener(t, fake, &recordingSubscriber{})

	l.Start()
	waitListening(t, l)
	l.Wake()
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, fake.TotalConns())
}

func TestWake_NoopWhileStopped(t *testing.T) {
	fake := chaintest.NewFake()
	l := newTestListener(t, fake, &recordingSubscriber{})

	l.Wake()
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, fake.TotalConns())
	assert.Equal(t, StatusStopped, l.Status())
}

func TestKeepAlive_RestartsInactiveListener(t *testing.T) {
	fake := chaintest.NewFake()
	fake.FailConnect(errors.New("refused"))
	l := newTestListener(t, fake, &recordingSubscriber{},
		WithStartBackoff(time.Hour),
		WithKeepAliveInterval(15*time.Millisecond))

	l.Start()
	require.Eventually(t, func() bool {
		return l.Status() == StatusReconnecting
	}, time.Second, 2*time.Millisecond)

	fake.FailConnect(nil)
	waitListening(t, l)

	assert.Equal(t, 1, fake.TotalConns())
}

func TestReconnect_StandsDownWhenHostSaysDisconnect(t *testing.T) {
	fake := chaintest.NewFake()
	var stay atomic.Bool
	stay.Store(true)
	l := newTestListener(t, fake, &recordingSubscriber{},
		WithStayConnected(stay.Load))

	l.Start()
	waitListening(t, l)

	stay.Store(false)
	fake.FailSubscriptions(errors.New("socket reset"))

	require.Eventually(t, func() bool {
		return l.Status() == StatusError
	}, time.Second, 2*time.Millisecond)
	assert.Equal(t, 1, fake.TotalConns(), "reconnect must stand down while the host wants to stay offline")

	stay.Store(true)
	l.Wake()
	require.Eventually(t, func() bool {
		return fake.TotalConns() == 2 && l.Status() == StatusListening
	}, time.Second, 2*time.Millisecond)
}

func TestRestart_AfterStopReconnectsFromScratch(t *testing.T) {
	fake := chaintest.NewFake()
	sub := &recordingSubscriber{}
	l := newTestListener(t, fake, sub)

	l.Start()
	waitListening(t, l)
	l.Stop()
	l.Start()
	waitListening(t, l)

	assert.Equal(t, 2, fake.TotalConns())
	assert.Equal(t, 1, fake.LiveConns())
}
