package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailguard/internal/chain"
)

// fakeNode is a scripted JSON-RPC endpoint.
type fakeNode struct {
	mu        sync.Mutex
	healthy   bool
	finalized uint64
	events    map[uint64][]rpcEvent
	submitted [][]any
}

func newFakeNode() *fakeNode {
	return &fakeNode{healthy: true, events: make(map[uint64][]rpcEvent)}
}

func (f *fakeNode) advance(to uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = to
}

func (f *fakeNode) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()

		respond := func(result any) {
			raw, _ := json.Marshal(result)
			_ = json.NewEncoder(w).Encode(rpcResponse{Result: raw})
		}

		switch req.Method {
		case methodHealth:
			if !f.healthy {
				_ = json.NewEncoder(w).Encode(rpcResponse{Error: &rpcError{Code: -32000, Message: "unhealthy"}})
				return
			}
			respond(map[string]int{"peers": 3})
		case methodFinalizedHead:
			respond(map[string]any{"number": f.finalized, "hash": "0xhead"})
		case methodBlockEvents:
			var params []uint64
			raw, _ := json.Marshal(req.Params)
			_ = json.Unmarshal(raw, &params)
			respond(f.events[params[0]])
		case methodSubmitRemark:
			var params []any
			raw, _ := json.Marshal(req.Params)
			_ = json.Unmarshal(raw, &params)
			f.submitted = append(f.submitted, params)
			respond(map[string]any{"success": true, "tx_hash": "0xsub", "block_number": f.finalized + 1})
		default:
			_ = json.NewEncoder(w).Encode(rpcResponse{Error: &rpcError{Code: -32601, Message: "method not found"}})
		}
	})
}

func newTestClient(t *testing.T) (*Client, *fakeNode, string) {
	t.Helper()
	node := newFakeNode()
	srv := httptest.NewServer(node.handler())
	t.Cleanup(srv.Close)
	client := New(WithPollInterval(5 * time.Millisecond))
	return client, node, srv.URL
}

func TestConnect_TracksState(t *testing.T) {
	client, _, url := newTestClient(t)
	assert.Equal(t, chain.StateDisconnected, client.State())

	conn, err := client.Connect(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	assert.Equal(t, chain.StateConnected, client.State())
}

func TestConnect_UnhealthyEndpoint(t *testing.T) {
	client, node, url := newTestClient(t)
	node.healthy = false

	_, err := client.Connect(context.Background(), url)

	assert.Error(t, err)
	assert.Equal(t, chain.StateDisconnected, client.State())
}

func TestSubscribe_DeliversEachBlockOnce(t *testing.T) {
	client, node, url := newTestClient(t)
	node.advance(10)

	conn, err := client.Connect(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var mu sync.Mutex
	var heads []uint64
	cancel, err := conn.SubscribeFinalizedHeads(context.Background(),
		func(h chain.Header) {
			mu.Lock()
			heads = append(heads, h.Number)
			mu.Unlock()
		},
		func(err error) { t.Errorf("unexpected subscription error: %v", err) },
	)
	require.NoError(t, err)
	t.Cleanup(cancel)

	node.advance(13)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(heads) == 3
	}, time.Second, 2*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{11, 12, 13}, heads, "catch-up delivers intermediate blocks in order")
}

func TestSubscribe_ErrorEndsSubscription(t *testing.T) {
	client, node, _ := newTestClient(t)
	srv := httptest.NewServer(node.handler())
	node.advance(5)

	conn, err := client.Connect(context.Background(), srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	errs := make(chan error, 1)
	cancel, err := conn.SubscribeFinalizedHeads(context.Background(),
		func(chain.Header) {},
		func(err error) { errs <- err },
	)
	require.NoError(t, err)
	t.Cleanup(cancel)

	srv.Close()

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("expected a poll error after the endpoint went away")
	}
}

func TestEvents_DecodesBase64Payloads(t *testing.T) {
	client, node, url := newTestClient(t)
	ts := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	node.events[7] = []rpcEvent{
		{Pallet: "system", Name: "Remarked", Timestamp: ts, Data: base64.StdEncoding.EncodeToString([]byte("payload"))},
		{Pallet: "system", Name: "Remarked", Timestamp: ts, Data: "%%% not base64"},
	}

	conn, err := client.Connect(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	events, err := conn.Events(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, events, 1, "undecodable payloads are skipped")
	assert.Equal(t, []byte("payload"), events[0].Data)
	assert.True(t, ts.Equal(events[0].Timestamp))
}

func TestSubmit_RoutesThroughCurrentConnection(t *testing.T) {
	client, node, url := newTestClient(t)

	_, err := client.Submit(context.Background(), "signer", []byte("x"))
	assert.Error(t, err, "submit without a connection is unavailable")

	conn, err := client.Connect(context.Background(), url)
	require.NoError(t, err)

	res, err := client.Submit(context.Background(), "signer", []byte("remark"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "0xsub", res.TxHash)

	node.mu.Lock()
	require.Len(t, node.submitted, 1)
	assert.Equal(t, "signer", node.submitted[0][0])
	node.mu.Unlock()

	require.NoError(t, conn.Close())
	assert.Equal(t, chain.StateDisconnected, client.State())
	_, err = client.Submit(context.Background(), "signer", []byte("x"))
	assert.Error(t, err, "submit after close is unavailable again")
}
