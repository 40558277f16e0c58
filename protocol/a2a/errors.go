package a2a

import (
	"errors"
	"fmt"
)

// Capability card validation errors.
var (
	// ErrCardMissingName indicates the fetched card has no name.
	ErrCardMissingName = errors.New("capability card: missing name")
	// ErrCardMissingEndpoint indicates the card is not bound to an endpoint.
	ErrCardMissingEndpoint = errors.New("capability card: missing endpoint")
)

// Protocol errors.
var (
	// ErrRemoteUnavailable indicates a transport-level failure reaching the
	// specialist: connection refused, timeout, or a 5xx response. Eligible
	// for a single retry.
	ErrRemoteUnavailable = errors.New("a2a: remote agent unavailable")
	// ErrMalformedCard indicates the discovery endpoint answered but the
	// body was not a valid capability card.
	ErrMalformedCard = errors.New("a2a: malformed capability card")
	// ErrMalformedResponse indicates the message endpoint answered but the
	// body was not a valid JSON-RPC response.
	ErrMalformedResponse = errors.New("a2a: malformed response envelope")
	// ErrRejected indicates the specialist rejected the request at the HTTP
	// layer (4xx). Never retried.
	ErrRejected = errors.New("a2a: request rejected by remote agent")
)

// RPCError is an application-level error returned inside a JSON-RPC
// response envelope. It is a terminal outcome: the call reached the
// specialist and the specialist refused it, so it is never retried.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("a2a: rpc error %d: %s", e.Code, e.Message)
}
