package transform

import "errors"

// Sentinel errors. The gateway never returns them to its callers; they
// surface only from helpers and in logs.
var (
	// ErrHelperClosed is returned by Send on a closed helper.
	ErrHelperClosed = errors.New("transform: helper closed")

	// ErrUnknownOp is reported by helpers for requests with an unsupported Op.
	ErrUnknownOp = errors.New("transform: unknown operation")

	// ErrDecode is reported when a payload looks encoded but cannot be decoded.
	ErrDecode = errors.New("transform: failed to decode payload")
)
