package llm

import (
	"errors"
	"fmt"
)

// ErrMissingFence is returned when the assistant content contains no
// ```json fenced block.
var ErrMissingFence = errors.New("no fenced json block in completion")

// TransportError wraps network-level failures (dial, timeout, body read).
// Transport errors are retryable.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("llm transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response from the completion endpoint.
// 5xx responses are retryable; 4xx are not.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm endpoint returned %d: %s", e.Code, e.Body)
}

// ProtocolError is a well-formed HTTP exchange whose payload violates the
// completion contract: undecodable response, empty choices, missing fence,
// or malformed fenced JSON. Retryable at the caller's discretion since LLM
// output is not deterministic.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm protocol: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("llm protocol: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsRetryable reports whether a completion error is worth another attempt:
// transport failures, 5xx statuses, and protocol violations. Deterministic
// client-side failures (4xx) are not.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return true
	}
	return errors.Is(err, ErrMissingFence)
}
