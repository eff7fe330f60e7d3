package transform

import "context"

// Op selects the direction of a transform.
type Op uint8

const (
	OpEncode Op = iota + 1
	OpDecode
)

func (o Op) String() string {
	switch o {
	case OpEncode:
		return "encode"
	case OpDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Request is a message to a helper. ID correlates it with its Response.
type Request struct {
	ID   string
	Data []byte
	Op   Op
}

// Response answers the Request with the same ID.
// A non-nil Err makes the gateway fall back to the original payload.
type Response struct {
	Err  error
	ID   string
	Data []byte
}

// Helper performs transforms out of band.
//
// Send dispatches a request and returns without waiting for the result.
// Responses may arrive on the Responses channel in any order, late, or not
// at all; the gateway copes with each case.
type Helper interface {
	Send(ctx context.Context, req Request) error
	Responses() <-chan Response
	Close() error
}
