package transform

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/cachekit/pkg/logger"
)

// Gateway forwards encode/decode requests to a Helper and waits for the
// matching response.
//
// Each request gets a fresh correlation ID and a slot in the pending table.
// A dispatcher goroutine routes inbound responses to their slot. A single
// timeout bounds both handing the request to the helper and waiting for the
// answer. On timeout, helper error or a closed gateway the caller gets its
// input back unchanged: the gateway degrades to pass-through and never fails.
type Gateway struct {
	helper  Helper
	logger  *slog.Logger
	pending map[string]chan Response
	done    chan struct{}
	wg      sync.WaitGroup
	timeout time.Duration
	mu      sync.Mutex
	closed  bool

	requests  atomic.Int64
	completed atomic.Int64
	timeouts  atomic.Int64
	failures  atomic.Int64
	late      atomic.Int64
}

// Stats counts gateway outcomes since creation.
type Stats struct {
	Requests      int64 `json:"requests"`
	Completed     int64 `json:"completed"`
	Timeouts      int64 `json:"timeouts"`
	Failures      int64 `json:"failures"`
	LateResponses int64 `json:"late_responses"`
	Pending       int   `json:"pending"`
}

// NewGateway starts a gateway over h. The gateway owns h and closes it on Close.
//
// Example:
//
//	helper, err := transform.NewZstdHelper(transform.WithWorkers(4))
//	if err != nil {
//	    return err
//	}
//	gw := transform.NewGateway(helper, transform.WithTimeout(2*time.Second))
//	defer gw.Close()
//
//	compressed := gw.Encode(ctx, payload)
func NewGateway(h Helper, opts ...Option) *Gateway {
	o := defaultGatewayOptions()
	for _, opt := range opts {
		opt(o)
	}

	g := &Gateway{
		helper:  h,
		logger:  o.logger.With(slog.String("component", "transform")),
		timeout: o.timeout,
		pending: make(map[string]chan Response),
		done:    make(chan struct{}),
	}

	g.wg.Add(1)
	go g.dispatch()

	return g
}

// Encode returns the encoded form of data, or data itself on any failure.
func (g *Gateway) Encode(ctx context.Context, data []byte) []byte {
	return g.call(ctx, OpEncode, data)
}

// Decode returns the decoded form of data, or data itself on any failure.
func (g *Gateway) Decode(ctx context.Context, data []byte) []byte {
	return g.call(ctx, OpDecode, data)
}

// Stats returns a snapshot of the gateway counters.
func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	pending := len(g.pending)
	g.mu.Unlock()

	return Stats{
		Requests:      g.requests.Load(),
		Completed:     g.completed.Load(),
		Timeouts:      g.timeouts.Load(),
		Failures:      g.failures.Load(),
		LateResponses: g.late.Load(),
		Pending:       pending,
	}
}

// Close stops the dispatcher, releases waiting callers with their original
// payloads and closes the helper. Close is idempotent.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	close(g.done)
	g.pending = make(map[string]chan Response)
	g.mu.Unlock()

	g.wg.Wait()
	return g.helper.Close()
}

func (g *Gateway) call(ctx context.Context, op Op, data []byte) []byte {
	if len(data) == 0 {
		return data
	}

	id := uuid.NewString()
	slot := make(chan Response, 1)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return data
	}
	g.pending[id] = slot
	g.mu.Unlock()

	g.requests.Add(1)
	ctx = logger.WithCorrelationID(ctx, id)

	// One deadline covers both handing the request to the helper and
	// waiting for its answer.
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.helper.Send(ctx, Request{ID: id, Op: op, Data: data}); err != nil {
		g.forget(id)
		if ctx.Err() != nil {
			g.timedOut(ctx, op)
			return data
		}
		g.failures.Add(1)
		g.logger.WarnContext(ctx, "transform dispatch failed, using raw payload",
			slog.String("op", op.String()),
			slog.String("error", err.Error()),
		)
		return data
	}

	select {
	case resp := <-slot:
		if resp.Err != nil {
			g.failures.Add(1)
			g.logger.WarnContext(ctx, "transform failed, using raw payload",
				slog.String("op", op.String()),
				slog.String("error", resp.Err.Error()),
			)
			return data
		}
		g.completed.Add(1)
		return resp.Data
	case <-ctx.Done():
		g.forget(id)
		g.timedOut(ctx, op)
		return data
	case <-g.done:
		return data
	}
}

func (g *Gateway) timedOut(ctx context.Context, op Op) {
	g.timeouts.Add(1)
	g.logger.DebugContext(ctx, "transform timed out, using raw payload",
		slog.String("op", op.String()),
		slog.Duration("timeout", g.timeout),
	)
}

// forget drops a pending slot so a late response cannot be delivered to it.
func (g *Gateway) forget(id string) {
	g.mu.Lock()
	delete(g.pending, id)
	g.mu.Unlock()
}

// dispatch routes responses to their pending slots until Close.
func (g *Gateway) dispatch() {
	defer g.wg.Done()

	responses := g.helper.Responses()
	for {
		select {
		case <-g.done:
			return
		case resp, ok := <-responses:
			if !ok {
				return
			}
			g.deliver(resp)
		}
	}
}

func (g *Gateway) deliver(resp Response) {
	g.mu.Lock()
	slot, ok := g.pending[resp.ID]
	if ok {
		delete(g.pending, resp.ID)
	}
	g.mu.Unlock()

	if !ok {
		// The caller timed out or never existed.
		g.late.Add(1)
		g.logger.Debug("discarding late transform response", slog.String("correlation_id", resp.ID))
		return
	}

	// Buffered with capacity 1 and delivered at most once.
	slot <- resp
}
