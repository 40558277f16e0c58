package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/a2ahost/a2ahost/internal/tlsutil"
)

// maxBodyBytes bounds how much of a remote response is read. Cards and
// response envelopes are small; anything larger is hostile or broken.
const maxBodyBytes = 1 << 20

// CallContext is the cross-process context propagated with a dispatched
// message. The auth token is opaque to the host and forwarded verbatim.
type CallContext struct {
	SessionID string
	UserID    string
	AuthToken string
}

// Client performs the protocol-level HTTP calls to a specialist agent.
// Each method issues exactly one attempt; retry policy belongs to the
// dispatcher, which knows which failures are safe to repeat.
type Client interface {
	// FetchCard retrieves the capability card from GET {endpoint}/card.
	FetchCard(ctx context.Context, endpoint string) (*CapabilityCard, error)

	// Send POSTs a send_message envelope to {endpoint}/message. A JSON-RPC
	// error body is returned inside the Response, not as a Go error, so
	// callers can distinguish transport failures from application refusals.
	Send(ctx context.Context, endpoint string, req *Request, call CallContext) (*Response, error)
}

// HTTPClient is the default Client backed by the shared hardened transport.
type HTTPClient struct {
	httpClient *http.Client
	userAgent  string
}

// NewHTTPClient creates a protocol client. The timeout is the transport
// ceiling; callers pass tighter per-call deadlines through ctx.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: tlsutil.SecureHTTPClient(timeout),
		userAgent:  "a2ahost",
	}
}

// FetchCard retrieves and validates a specialist's capability card.
func (c *HTTPClient) FetchCard(ctx context.Context, endpoint string) (*CapabilityCard, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: empty endpoint", ErrRemoteUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/card", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: discovery status %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	var card CapabilityCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCard, err)
	}
	card.Endpoint = endpoint
	card.AgentID = DeriveAgentID(card.Name, endpoint)
	if err := card.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCard, err)
	}
	return &card, nil
}

// Send issues one message attempt and classifies the outcome: transport and
// 5xx failures wrap ErrRemoteUnavailable (retryable), 4xx wraps ErrRejected
// (terminal), and a parsed envelope is returned as-is.
func (c *HTTPClient) Send(ctx context.Context, endpoint string, rpcReq *Request, call CallContext) (*Response, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: empty endpoint", ErrRemoteUnavailable)
	}

	payload, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, fmt.Errorf("serialize envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/message", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if call.SessionID != "" {
		req.Header.Set(HeaderSessionID, call.SessionID)
	}
	if call.UserID != "" {
		req.Header.Set(HeaderUserID, call.UserID)
	}
	if call.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+call.AuthToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrRemoteUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, truncate(body, 200))
	}

	var envelope Response
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if envelope.Error == nil && envelope.Result == nil {
		return nil, fmt.Errorf("%w: neither result nor error present", ErrMalformedResponse)
	}
	return &envelope, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)
