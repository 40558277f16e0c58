package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/a2ahost/a2ahost/protocol/a2a"
)

// fakeClient scripts protocol outcomes per attempt and records the envelope
// ids it saw, so tests can assert the retry reuses the idempotency key.
type fakeClient struct {
	responses []func() (*a2a.Response, error)
	calls     int
	seenIDs   []string
	seenCall  a2a.CallContext
}

func (f *fakeClient) FetchCard(ctx context.Context, endpoint string) (*a2a.CapabilityCard, error) {
	return nil, fmt.Errorf("%w: not used", a2a.ErrRemoteUnavailable)
}

func (f *fakeClient) Send(ctx context.Context, endpoint string, req *a2a.Request, call a2a.CallContext) (*a2a.Response, error) {
	idx := f.calls
	f.calls++
	f.seenIDs = append(f.seenIDs, req.ID)
	f.seenCall = call
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx]()
}

func ok(text string) func() (*a2a.Response, error) {
	return func() (*a2a.Response, error) {
		raw, _ := json.Marshal(text)
		return &a2a.Response{JSONRPC: "2.0", ID: "x", Result: raw}, nil
	}
}

func transient() func() (*a2a.Response, error) {
	return func() (*a2a.Response, error) {
		return nil, fmt.Errorf("%w: connection refused", a2a.ErrRemoteUnavailable)
	}
}

func rpcError(msg string) func() (*a2a.Response, error) {
	return func() (*a2a.Response, error) {
		return &a2a.Response{JSONRPC: "2.0", ID: "x", Error: &a2a.RPCError{Code: -32000, Message: msg}}, nil
	}
}

func newDispatcher(client a2a.Client) *Dispatcher {
	cfg := DefaultConfig()
	cfg.CallTimeout = time.Second
	cfg.RetryDelay = time.Millisecond
	cfg.RatePerSecond = 0
	return New(client, cfg, nil, zap.NewNop())
}

var testTarget = Target{AgentID: "mathagent", Endpoint: "http://math"}

func TestDispatch_Success(t *testing.T) {
	client := &fakeClient{responses: []func() (*a2a.Response, error){ok("42")}}
	res := newDispatcher(client).Dispatch(context.Background(), testTarget, "sum", a2a.CallContext{SessionID: "s1"})

	require.True(t, res.Success)
	assert.Equal(t, "42", res.ResponseText)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "s1", client.seenCall.SessionID)
}

func TestDispatch_ExactlyOneRetryThenUnreachable(t *testing.T) {
	client := &fakeClient{responses: []func() (*a2a.Response, error){transient()}}
	res := newDispatcher(client).Dispatch(context.Background(), testTarget, "sum", a2a.CallContext{})

	require.False(t, res.Success)
	assert.Equal(t, ErrorKindUnreachable, res.ErrorKind)
	assert.Equal(t, 2, res.Attempts, "exactly one retry, two total attempts")
	assert.Equal(t, 2, client.calls)
	assert.NotEmpty(t, res.ErrorMessage)
}

func TestDispatch_RetryReusesEnvelopeID(t *testing.T) {
	client := &fakeClient{responses: []func() (*a2a.Response, error){transient(), ok("recovered")}}
	res := newDispatcher(client).Dispatch(context.Background(), testTarget, "sum", a2a.CallContext{})

	require.True(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	require.Len(t, client.seenIDs, 2)
	assert.Equal(t, client.seenIDs[0], client.seenIDs[1], "retry must reuse the idempotency key")
}

func TestDispatch_ApplicationErrorNotRetried(t *testing.T) {
	client := &fakeClient{responses: []func() (*a2a.Response, error){rpcError("quota exceeded")}}
	res := newDispatcher(client).Dispatch(context.Background(), testTarget, "sum", a2a.CallContext{})

	require.False(t, res.Success)
	assert.Equal(t, ErrorKindApplication, res.ErrorKind)
	assert.Equal(t, 1, client.calls, "application errors must not be retried")
	assert.Contains(t, res.ErrorMessage, "quota exceeded")
}

func TestDispatch_RejectedNotRetried(t *testing.T) {
	client := &fakeClient{responses: []func() (*a2a.Response, error){
		func() (*a2a.Response, error) {
			return nil, fmt.Errorf("%w: status 400", a2a.ErrRejected)
		},
	}}
	res := newDispatcher(client).Dispatch(context.Background(), testTarget, "sum", a2a.CallContext{})

	require.False(t, res.Success)
	assert.Equal(t, ErrorKindApplication, res.ErrorKind)
	assert.Equal(t, 1, client.calls)
}

func TestDispatch_CallerDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeClient{responses: []func() (*a2a.Response, error){ok("never")}}
	res := newDispatcher(client).Dispatch(ctx, testTarget, "sum", a2a.CallContext{})

	require.False(t, res.Success)
	assert.Equal(t, ErrorKindTimeout, res.ErrorKind)
	assert.Equal(t, 0, client.calls)
}
