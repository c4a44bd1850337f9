// Package chaintest provides a scripted in-memory chain client for tests.
// It counts live connections, replays scripted blocks, and fails on demand so
// listener and pipeline behavior can be driven deterministically.
package chaintest

import (
	"context"
	"fmt"
	"sync"

	"trailguard/internal/chain"
	"trailguard/pkg/sentinel"
)

// Fake implements chain.Client.
type Fake struct {
	mu sync.Mutex

	state        chain.ConnState
	connectErr   error
	submitResult chain.SubmitResult
	submitErr    error

	blocks map[uint64][]chain.RawEvent

	liveConns   int
	totalConns  int
	submissions [][]byte

	conns []*FakeConn
}

func NewFake() *Fake {
	return &Fake{
		state:        chain.StateConnected,
		submitResult: chain.SubmitResult{Success: true, TxHash: "0xfake", BlockNumber: 1},
		blocks:       make(map[uint64][]chain.RawEvent),
	}
}

// SetState scripts what State() reports.
func (f *Fake) SetState(s chain.ConnState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

// FailConnect makes subsequent Connect calls fail with err (nil to clear).
func (f *Fake) FailConnect(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

// SetSubmitResult scripts the outcome of Submit.
func (f *Fake) SetSubmitResult(res chain.SubmitResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitResult = res
	f.submitErr = err
}

// AddBlock scripts the events of a block; EmitHead later announces it.
func (f *Fake) AddBlock(number uint64, events ...chain.RawEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[number] = events
}

// LiveConns returns the number of currently open connections.
func (f *Fake) LiveConns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.liveConns
}

// TotalConns returns the number of Connect calls that succeeded.
func (f *Fake) TotalConns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totalConns
}

// Submissions returns every payload submitted through the client.
func (f *Fake) Submissions() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.submissions))
	copy(out, f.submissions)
	return out
}

// EmitHead announces a finalized head to every live subscription.
func (f *Fake) EmitHead(number uint64) {
	f.mu.Lock()
	conns := make([]*FakeConn, len(f.conns))
	copy(conns, f.conns)
	f.mu.Unlock()
	for _, c := range conns {
		c.emitHead(chain.Header{Number: number, Hash: fmt.Sprintf("0x%x", number)})
	}
}

// FailSubscriptions delivers a transport error to every live subscription.
func (f *Fake) FailSubscriptions(err error) {
	f.mu.Lock()
	conns := make([]*FakeConn, len(f.conns))
	copy(conns, f.conns)
	f.mu.Unlock()
	for _, c := range conns {
		c.emitErr(err)
	}
}

func (f *Fake) Connect(_ context.Context, endpoint string) (chain.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	conn := &FakeConn{fake: f, endpoint: endpoint}
	f.conns = append(f.conns, conn)
	f.liveConns++
	f.totalConns++
	return conn, nil
}

func (f *Fake) State() chain.ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Fake) Submit(_ context.Context, _ string, payload []byte) (chain.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return chain.SubmitResult{}, f.submitErr
	}
	f.submissions = append(f.submissions, payload)
	return f.submitResult, nil
}

func (f *Fake) dropConn(conn *FakeConn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.conns {
		if c == conn {
			f.conns = append(f.conns[:i], f.conns[i+1:]...)
			f.liveConns--
			return
		}
	}
}

// FakeConn implements chain.Conn.
type FakeConn struct {
	fake     *Fake
	endpoint string

	mu        sync.Mutex
	closed    bool
	onHead    func(chain.Header)
	onErr     func(error)
	cancelled bool
}

func (c *FakeConn) SubscribeFinalizedHeads(_ context.Context, onHead func(chain.Header), onErr func(error)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, sentinel.ErrClosed
	}
	c.onHead = onHead
	c.onErr = onErr
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.cancelled = true
		c.onHead = nil
		c.onErr = nil
	}, nil
}

func (c *FakeConn) Events(_ context.Context, block uint64) ([]chain.RawEvent, error) {
	c.fake.mu.Lock()
	defer c.fake.mu.Unlock()
	events, ok := c.fake.blocks[block]
	if !ok {
		return nil, nil
	}
	return events, nil
}

func (c *FakeConn) Submit(ctx context.Context, signer string, payload []byte) chain.SubmitResult {
	res, err := c.fake.Submit(ctx, signer, payload)
	if err != nil {
		return chain.SubmitResult{Success: false, Error: err.Error()}
	}
	return res
}

func (c *FakeConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.onHead = nil
	c.onErr = nil
	c.mu.Unlock()
	c.fake.dropConn(c)
	return nil
}

func (c *FakeConn) emitHead(h chain.Header) {
	c.mu.Lock()
	onHead := c.onHead
	c.mu.Unlock()
	if onHead != nil {
		onHead(h)
	}
}

func (c *FakeConn) emitErr(err error) {
	c.mu.Lock()
	onErr := c.onErr
	c.mu.Unlock()
	if onErr != nil {
		onErr(err)
	}
}
