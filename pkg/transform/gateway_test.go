package transform_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cachekit/pkg/transform"
)

// manualHelper hands every request to the test, which decides when and how to answer.
type manualHelper struct {
	requests  chan transform.Request
	responses chan transform.Response
	sendErr   error
	closed    atomic.Bool
}

func newManualHelper() *manualHelper {
	return &manualHelper{
		requests:  make(chan transform.Request, 16),
		responses: make(chan transform.Response, 16),
	}
}

func (h *manualHelper) Send(_ context.Context, req transform.Request) error {
	if h.sendErr != nil {
		return h.sendErr
	}
	h.requests <- req
	return nil
}

func (h *manualHelper) Responses() <-chan transform.Response { return h.responses }

func (h *manualHelper) Close() error {
	h.closed.Store(true)
	return nil
}

func (h *manualHelper) next(t *testing.T) transform.Request {
	t.Helper()
	select {
	case req := <-h.requests:
		return req
	case <-time.After(time.Second):
		t.Fatal("no request reached the helper")
		return transform.Request{}
	}
}

func compressible() []byte {
	return bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 100)
}

func TestGateway_ZstdRoundTrip(t *testing.T) {
	t.Parallel()

	helper, err := transform.NewZstdHelper(transform.WithWorkers(2))
	require.NoError(t, err)
	gw := transform.NewGateway(helper)
	t.Cleanup(func() { _ = gw.Close() })

	ctx := context.Background()
	payload := compressible()

	encoded := gw.Encode(ctx, payload)
	require.True(t, transform.IsZstd(encoded))
	require.Less(t, len(encoded), len(payload))

	decoded := gw.Decode(ctx, encoded)
	require.Equal(t, payload, decoded)

	stats := gw.Stats()
	require.Equal(t, int64(2), stats.Requests)
	require.Equal(t, int64(2), stats.Completed)
	require.Zero(t, stats.Pending)
}

func TestGateway_ZstdPassThrough(t *testing.T) {
	t.Parallel()

	helper, err := transform.NewZstdHelper(transform.WithMinSize(1024))
	require.NoError(t, err)
	gw := transform.NewGateway(helper)
	t.Cleanup(func() { _ = gw.Close() })

	ctx := context.Background()

	t.Run("small payload is not encoded", func(t *testing.T) {
		small := []byte("short value")
		require.Equal(t, small, gw.Encode(ctx, small))
	})

	t.Run("raw payload decodes to itself", func(t *testing.T) {
		raw := []byte(`{"name":"raw"}`)
		require.Equal(t, raw, gw.Decode(ctx, raw))
	})

	t.Run("empty payload skips the helper", func(t *testing.T) {
		before := gw.Stats().Requests
		require.Empty(t, gw.Encode(ctx, nil))
		require.Equal(t, before, gw.Stats().Requests)
	})
}

func TestGateway_CorruptFrameFallsBack(t *testing.T) {
	t.Parallel()

	helper, err := transform.NewZstdHelper()
	require.NoError(t, err)
	gw := transform.NewGateway(helper)
	t.Cleanup(func() { _ = gw.Close() })

	corrupt := []byte{0x28, 0xB5, 0x2F, 0xFD, 0xFF, 0xFF, 0xFF}
	require.Equal(t, corrupt, gw.Decode(context.Background(), corrupt))
	require.Equal(t, int64(1), gw.Stats().Failures)
}

func TestGateway_Timeout(t *testing.T) {
	t.Parallel()

	helper := newManualHelper()
	gw := transform.NewGateway(helper, transform.WithTimeout(20*time.Millisecond))
	t.Cleanup(func() { _ = gw.Close() })

	payload := []byte("payload")
	start := time.Now()
	out := gw.Encode(context.Background(), payload)

	require.Equal(t, payload, out)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	stats := gw.Stats()
	require.Equal(t, int64(1), stats.Timeouts)
	require.Zero(t, stats.Pending)

	t.Run("late response is discarded", func(t *testing.T) {
		req := helper.next(t)
		helper.responses <- transform.Response{ID: req.ID, Data: []byte("too late")}

		require.Eventually(t, func() bool {
			return gw.Stats().LateResponses == 1
		}, time.Second, 5*time.Millisecond)
		require.Zero(t, gw.Stats().Completed)
	})
}

// stuckHelper never accepts a request: Send blocks until its context ends.
type stuckHelper struct {
	responses chan transform.Response
}

func (h *stuckHelper) Send(ctx context.Context, _ transform.Request) error {
	<-ctx.Done()
	return ctx.Err()
}

func (h *stuckHelper) Responses() <-chan transform.Response { return h.responses }

func (h *stuckHelper) Close() error { return nil }

func TestGateway_TimeoutCoversDispatch(t *testing.T) {
	t.Parallel()

	gw := transform.NewGateway(&stuckHelper{responses: make(chan transform.Response)},
		transform.WithTimeout(50*time.Millisecond))
	t.Cleanup(func() { _ = gw.Close() })

	done := make(chan []byte, 1)
	go func() { done <- gw.Encode(context.Background(), []byte("payload")) }()

	select {
	case out := <-done:
		require.Equal(t, []byte("payload"), out)
	case <-time.After(2 * time.Second):
		t.Fatal("encode blocked past the gateway timeout")
	}

	stats := gw.Stats()
	require.Equal(t, int64(1), stats.Timeouts)
	require.Zero(t, stats.Failures)
	require.Zero(t, stats.Pending)
}

func TestGateway_OutOfOrderResponses(t *testing.T) {
	t.Parallel()

	helper := newManualHelper()
	gw := transform.NewGateway(helper, transform.WithTimeout(time.Second))
	t.Cleanup(func() { _ = gw.Close() })

	ctx := context.Background()
	inputs := []string{"alpha", "beta"}
	results := make([][]byte, len(inputs))

	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = gw.Encode(ctx, []byte(in))
		}()
	}

	first, second := helper.next(t), helper.next(t)
	for _, req := range []transform.Request{second, first} {
		helper.responses <- transform.Response{ID: req.ID, Data: append([]byte("enc:"), req.Data...)}
	}
	wg.Wait()

	require.Equal(t, []byte("enc:alpha"), results[0])
	require.Equal(t, []byte("enc:beta"), results[1])
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, int64(2), gw.Stats().Completed)
}

func TestGateway_HelperErrors(t *testing.T) {
	t.Parallel()

	t.Run("error response returns input", func(t *testing.T) {
		t.Parallel()

		helper := newManualHelper()
		gw := transform.NewGateway(helper)
		t.Cleanup(func() { _ = gw.Close() })

		go func() {
			req := <-helper.requests
			helper.responses <- transform.Response{ID: req.ID, Err: errors.New("boom")}
		}()

		payload := []byte("payload")
		require.Equal(t, payload, gw.Decode(context.Background(), payload))
		require.Equal(t, int64(1), gw.Stats().Failures)
	})

	t.Run("send error returns input", func(t *testing.T) {
		t.Parallel()

		helper := newManualHelper()
		helper.sendErr = transform.ErrHelperClosed
		gw := transform.NewGateway(helper)
		t.Cleanup(func() { _ = gw.Close() })

		payload := []byte("payload")
		require.Equal(t, payload, gw.Encode(context.Background(), payload))

		stats := gw.Stats()
		require.Equal(t, int64(1), stats.Failures)
		require.Zero(t, stats.Pending)
	})
}

func TestGateway_ContextCanceled(t *testing.T) {
	t.Parallel()

	helper := newManualHelper()
	gw := transform.NewGateway(helper, transform.WithTimeout(time.Minute))
	t.Cleanup(func() { _ = gw.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	payload := []byte("payload")
	require.Equal(t, payload, gw.Encode(ctx, payload))
	require.Zero(t, gw.Stats().Pending)
}

func TestGateway_Close(t *testing.T) {
	t.Parallel()

	helper := newManualHelper()
	gw := transform.NewGateway(helper, transform.WithTimeout(time.Minute))

	done := make(chan []byte, 1)
	go func() { done <- gw.Encode(context.Background(), []byte("waiting")) }()
	helper.next(t)

	require.NoError(t, gw.Close())
	require.NoError(t, gw.Close())
	require.True(t, helper.closed.Load())

	select {
	case out := <-done:
		require.Equal(t, []byte("waiting"), out)
	case <-time.After(time.Second):
		t.Fatal("pending caller not released on close")
	}

	require.Equal(t, []byte("after"), gw.Encode(context.Background(), []byte("after")))
}

func TestZstdHelper_Closed(t *testing.T) {
	t.Parallel()

	helper, err := transform.NewZstdHelper(transform.WithWorkers(1))
	require.NoError(t, err)
	require.NoError(t, helper.Close())
	require.NoError(t, helper.Close())

	err = helper.Send(context.Background(), transform.Request{ID: "x", Op: transform.OpEncode, Data: compressible()})
	require.ErrorIs(t, err, transform.ErrHelperClosed)
}

func TestZstdHelper_UnknownOp(t *testing.T) {
	t.Parallel()

	helper, err := transform.NewZstdHelper(transform.WithWorkers(1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = helper.Close() })

	require.NoError(t, helper.Send(context.Background(), transform.Request{ID: "x", Data: []byte("x")}))

	select {
	case resp := <-helper.Responses():
		require.Equal(t, "x", resp.ID)
		require.ErrorIs(t, resp.Err, transform.ErrUnknownOp)
	case <-time.After(time.Second):
		t.Fatal("no response")
	}
}
