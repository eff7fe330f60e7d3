// Package transform moves payload compression off the caller's path.
//
// A [Gateway] sends each encode or decode request to a [Helper] with a
// correlation ID and waits for the matching [Response]. Several requests can
// be in flight at once and responses may arrive in any order. If no matching
// response arrives within the timeout (5 seconds by default), the gateway
// returns the original payload unchanged and forgets the request; a response
// that shows up afterwards is discarded and counted in [Stats].LateResponses.
// The gateway never returns an error.
//
// [ZstdHelper] is the bundled helper: a worker pool compressing with
// github.com/klauspost/compress/zstd.
//
//	helper, err := transform.NewZstdHelper(transform.WithMinSize(512))
//	if err != nil {
//	    return err
//	}
//	gw := transform.NewGateway(helper,
//	    transform.WithTimeout(time.Second),
//	    transform.WithLogger(log),
//	)
//	defer gw.Close()
//
//	packed := gw.Encode(ctx, payload)
//	raw := gw.Decode(ctx, packed)
//
// Any type implementing [Helper] can stand in for the zstd helper, for
// instance a client of a separate compression process.
package transform
