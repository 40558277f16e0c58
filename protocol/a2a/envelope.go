package a2a

import (
	"encoding/json"

	"github.com/google/uuid"
)

// jsonRPCVersion is the only protocol version this host speaks.
const jsonRPCVersion = "2.0"

// methodSendMessage is the single RPC method specialists expose.
const methodSendMessage = "send_message"

// Params carries the routed task. Session and user context deliberately do
// not appear here; they travel as headers.
type Params struct {
	Task string `json:"task"`
}

// Request is the JSON-RPC 2.0 envelope POSTed to {endpoint}/message.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  Params `json:"params"`
}

// NewRequest builds a send_message envelope with a fresh request id. The id
// doubles as the idempotency key for the single permitted retry.
func NewRequest(task string) *Request {
	return &Request{
		JSONRPC: jsonRPCVersion,
		ID:      uuid.New().String(),
		Method:  methodSendMessage,
		Params:  Params{Task: task},
	}
}

// Response is the JSON-RPC 2.0 envelope a specialist answers with. Exactly
// one of Result or Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// ResultText extracts the response text from a result object. Specialists
// answer with either a bare JSON string or an object carrying a
// "response"/"text"/"message" field; anything else is surfaced verbatim.
func (r *Response) ResultText() string {
	if len(r.Result) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Result, &s); err == nil {
		return s
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(r.Result, &obj); err == nil {
		for _, key := range []string{"response", "text", "message"} {
			if raw, ok := obj[key]; ok {
				if err := json.Unmarshal(raw, &s); err == nil {
					return s
				}
			}
		}
	}
	return string(r.Result)
}
