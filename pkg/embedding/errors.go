package embedding

import "fmt"

// TransportError wraps network-level failures reaching the embedding
// endpoint.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("embedding transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response from the embedding endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("embedding endpoint returned %d: %s", e.Code, e.Body)
}

// DimensionError is returned when a vector from the endpoint does not match
// the configured dimension. Stored vectors share one column type, so a
// mismatched vector can never be persisted or compared.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding has %d dimensions, want %d", e.Got, e.Want)
}
