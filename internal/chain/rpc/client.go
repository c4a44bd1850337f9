// Package rpc is a JSON-RPC-over-HTTP binding of the chain client contract.
// It talks to a node sidecar that exposes finalized-head, block-event, and
// remark-submission endpoints; finalized heads are polled since the sidecar
// offers no push transport.
package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"trailguard/internal/chain"
	"trailguard/pkg/apperrors"
	"trailguard/pkg/sentinel"
)

const (
	methodHealth        = "system_health"
	methodFinalizedHead = "chain_getFinalizedHead"
	methodBlockEvents   = "chain_getBlockEvents"
	methodSubmitRemark  = "author_submitRemark"

	defaultPollInterval = 6 * time.Second
	defaultCallTimeout  = 15 * time.Second
)

// Client implements chain.Client over HTTP JSON-RPC.
type Client struct {
	httpc        *http.Client
	pollInterval time.Duration
	logger       *slog.Logger

	mu    sync.Mutex
	state chain.ConnState
	conn  *Conn
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(opts ...Option) *Client {
	c := &Client{
		httpc:        &http.Client{Timeout: defaultCallTimeout},
		pollInterval: defaultPollInterval,
		logger:       slog.Default(),
		state:        chain.StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect verifies the endpoint is reachable and returns a connection handle.
func (c *Client) Connect(ctx context.Context, endpoint string) (chain.Conn, error) {
	c.setState(chain.StateConnecting)

	var health struct {
		Peers int `json:"peers"`
	}
	if err := c.call(ctx, endpoint, methodHealth, nil, &health); err != nil {
		c.setState(chain.StateDisconnected)
		return nil, apperrors.Wrap(err, apperrors.CodeConnection, "chain endpoint unreachable")
	}

	conn := &Conn{
		client:   c,
		endpoint: endpoint,
		closed:   make(chan struct{}),
	}

	c.mu.Lock()
	c.state = chain.StateConnected
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("chain connected", "endpoint", endpoint, "peers", health.Peers)
	return conn, nil
}

func (c *Client) State() chain.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit sends over the current connection.
func (c *Client) Submit(ctx context.Context, signer string, payload []byte) (chain.SubmitResult, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return chain.SubmitResult{}, fmt.Errorf("submit: %w", sentinel.ErrUnavailable)
	}
	return conn.Submit(ctx, signer, payload), nil
}

func (c *Client) setState(s chain.ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) dropConn(conn *Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.state = chain.StateDisconnected
	}
	c.mu.Unlock()
}

// Conn is a live handle onto one endpoint.
type Conn struct {
	client   *Client
	endpoint string

	closeOnce sync.Once
	closed    chan struct{}
}

// SubscribeFinalizedHeads polls for new finalized heads and delivers each new
// block number exactly once. A poll failure ends the subscription via onErr;
// the caller's reconnect logic decides what happens next.
func (n *Conn) SubscribeFinalizedHeads(ctx context.Context, onHead func(chain.Header), onErr func(error)) (func(), error) {
	head, err := n.finalizedHead(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConnection, "initial finalized head")
	}

	stop := make(chan struct{})
	var stopOnce sync.Once
	cancel := func() { stopOnce.Do(func() { close(stop) }) }

	go func() {
		last := head.Number
		ticker := time.NewTicker(n.client.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-n.closed:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			h, err := n.finalizedHead(ctx)
			if err != nil {
				onErr(apperrors.Wrap(err, apperrors.CodeConnection, "poll finalized head"))
				return
			}
			for h.Number > last {
				last++
				onHead(chain.Header{Number: last, Hash: h.Hash})
			}
		}
	}()

	return cancel, nil
}

type rpcEvent struct {
	Pallet    string    `json:"pallet"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Data      string    `json:"data"` // base64
}

func (n *Conn) Events(ctx context.Context, block uint64) ([]chain.RawEvent, error) {
	var raw []rpcEvent
	if err := n.call(ctx, methodBlockEvents, []any{block}, &raw); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConnection, "fetch block events")
	}
	events := make([]chain.RawEvent, 0, len(raw))
	for _, ev := range raw {
		data, err := base64.StdEncoding.DecodeString(ev.Data)
		if err != nil {
			// Undecodable transport payloads are dropped, not fatal.
			n.client.logger.Warn("skipping event with bad data encoding",
				"block", block, "pallet", ev.Pallet, "name", ev.Name)
			continue
		}
		events = append(events, chain.RawEvent{
			Pallet:    ev.Pallet,
			Name:      ev.Name,
			Timestamp: ev.Timestamp,
			Data:      data,
		})
	}
	return events, nil
}

func (n *Conn) Submit(ctx context.Context, signer string, payload []byte) chain.SubmitResult {
	var res struct {
		Success     bool   `json:"success"`
		TxHash      string `json:"tx_hash"`
		BlockNumber uint64 `json:"block_number"`
		Error       string `json:"error"`
	}
	params := []any{signer, base64.StdEncoding.EncodeToString(payload)}
	if err := n.call(ctx, methodSubmitRemark, params, &res); err != nil {
		return chain.SubmitResult{Success: false, Error: err.Error()}
	}
	return chain.SubmitResult{
		Success:     res.Success,
		TxHash:      res.TxHash,
		BlockNumber: res.BlockNumber,
		Error:       res.Error,
	}
}

func (n *Conn) Close() error {
	n.closeOnce.Do(func() {
		close(n.closed)
		n.client.dropConn(n)
	})
	return nil
}

func (n *Conn) finalizedHead(ctx context.Context) (chain.Header, error) {
	var head struct {
		Number uint64 `json:"number"`
		Hash   string `json:"hash"`
	}
	if err := n.call(ctx, methodFinalizedHead, nil, &head); err != nil {
		return chain.Header{}, err
	}
	return chain.Header{Number: head.Number, Hash: head.Hash}, nil
}

func (n *Conn) call(ctx context.Context, method string, params, out any) error {
	select {
	case <-n.closed:
		return sentinel.ErrClosed
	default:
	}
	return n.client.call(ctx, n.endpoint, method, params, out)
}

var callID atomic.Uint64

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, endpoint, method string, params, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      callID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s: %w", method, rpcResp.Error)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
