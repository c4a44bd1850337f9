// Package chain defines the ledger client contract the emergency core
// consumes. It is network I/O at arm's length: every call may fail or hang,
// and callers wrap each one with explicit error handling. Consensus and
// transaction construction live behind this boundary, not in this repo.
package chain

import (
	"context"
	"time"
)

// ConnState describes the client's view of its transport.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Header announces a finalized block.
type Header struct {
	Number uint64
	Hash   string
}

// RawEvent is an undecoded ledger event within a block. Data carries the
// remark bytes when the event is a remark; decoding is the listener's job.
type RawEvent struct {
	Pallet    string
	Name      string
	Timestamp time.Time
	Data      []byte
}

// SubmitResult captures the outcome of a submission as a single shape: the
// call may succeed, be rejected, or time out, but it never surfaces as an
// uncaught failure.
type SubmitResult struct {
	Success     bool
	TxHash      string
	BlockNumber uint64
	Error       string
}

// Conn is a live connection handle. The listener owns its lifecycle; a handle
// created by a superseded connection attempt is simply closed and its late
// callbacks discarded.
type Conn interface {
	// SubscribeFinalizedHeads delivers finalized block headers to onHead until
	// cancel is called or the transport fails, in which case onErr fires once.
	SubscribeFinalizedHeads(ctx context.Context, onHead func(Header), onErr func(error)) (cancel func(), err error)

	// Events returns the ordered events of a finalized block.
	Events(ctx context.Context, block uint64) ([]RawEvent, error)

	// Submit signs and submits a remark extrinsic carrying payload.
	Submit(ctx context.Context, signer string, payload []byte) SubmitResult

	Close() error
}

// Client dials the ledger and reports transport state. The report pipeline
// reads State for its precondition check and submits over the current
// connection; the listener dials its own.
type Client interface {
	Connect(ctx context.Context, endpoint string) (Conn, error)
	State() ConnState

	// Submit sends over the client's current connection. Returns an error
	// (not a SubmitResult) when there is no live connection to use.
	Submit(ctx context.Context, signer string, payload []byte) (SubmitResult, error)
}
