package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic opens every zstd frame.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// IsZstd reports whether data starts with a zstd frame header.
func IsZstd(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// ZstdOption configures a ZstdHelper.
type ZstdOption func(*zstdOptions)

type zstdOptions struct {
	workers   int
	minSize   int
	maxMemory uint64
	level     zstd.EncoderLevel
}

func defaultZstdOptions() *zstdOptions {
	return &zstdOptions{
		workers:   runtime.GOMAXPROCS(0),
		minSize:   256,
		maxMemory: 64 << 20,
		level:     zstd.SpeedDefault,
	}
}

// WithWorkers sets the number of concurrent workers.
// Default: GOMAXPROCS.
func WithWorkers(n int) ZstdOption {
	return func(o *zstdOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithMinSize sets the payload size below which encoding is skipped.
// Default: 256 bytes.
func WithMinSize(n int) ZstdOption {
	return func(o *zstdOptions) {
		o.minSize = max(n, 0)
	}
}

// WithLevel sets the zstd encoder level.
// Default: zstd.SpeedDefault.
func WithLevel(l zstd.EncoderLevel) ZstdOption {
	return func(o *zstdOptions) {
		o.level = l
	}
}

// WithMaxDecodedSize caps the memory a single decode may allocate.
// Default: 64MB.
func WithMaxDecodedSize(n uint64) ZstdOption {
	return func(o *zstdOptions) {
		if n > 0 {
			o.maxMemory = n
		}
	}
}

// ZstdHelper is an in-process Helper that compresses with zstd on a pool
// of worker goroutines.
//
// Encoding keeps the original payload when it is smaller than the minimum
// size or when compression does not shrink it. Decoding returns payloads
// that are not zstd frames unchanged, so raw and compressed payloads can
// be mixed.
type ZstdHelper struct {
	enc       *zstd.Encoder
	dec       *zstd.Decoder
	requests  chan Request
	responses chan Response
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	minSize   int
}

// NewZstdHelper creates and starts a zstd helper.
func NewZstdHelper(opts ...ZstdOption) (*ZstdHelper, error) {
	o := defaultZstdOptions()
	for _, opt := range opts {
		opt(o)
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(o.level),
		zstd.WithEncoderConcurrency(o.workers),
	)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(o.workers),
		zstd.WithDecoderMaxMemory(o.maxMemory),
	)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	h := &ZstdHelper{
		enc:       enc,
		dec:       dec,
		minSize:   o.minSize,
		requests:  make(chan Request, o.workers),
		responses: make(chan Response, o.workers),
		done:      make(chan struct{}),
	}

	h.wg.Add(o.workers)
	for range o.workers {
		go h.work()
	}

	return h, nil
}

// Send queues req for a worker.
func (h *ZstdHelper) Send(ctx context.Context, req Request) error {
	select {
	case <-h.done:
		return ErrHelperClosed
	default:
	}

	select {
	case h.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHelperClosed
	}
}

// Responses returns the channel workers publish results on.
func (h *ZstdHelper) Responses() <-chan Response {
	return h.responses
}

// Close stops the workers and releases the codec. Close is idempotent.
func (h *ZstdHelper) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		h.dec.Close()
		err = h.enc.Close()
	})
	return err
}

func (h *ZstdHelper) work() {
	defer h.wg.Done()

	for {
		select {
		case <-h.done:
			return
		case req := <-h.requests:
			resp := h.process(req)
			select {
			case h.responses <- resp:
			case <-h.done:
				return
			}
		}
	}
}

func (h *ZstdHelper) process(req Request) Response {
	resp := Response{ID: req.ID}

	switch req.Op {
	case OpEncode:
		resp.Data = h.encode(req.Data)
	case OpDecode:
		data, err := h.decode(req.Data)
		resp.Data, resp.Err = data, err
	default:
		resp.Err = fmt.Errorf("%w: %d", ErrUnknownOp, req.Op)
	}

	return resp
}

func (h *ZstdHelper) encode(data []byte) []byte {
	if len(data) < h.minSize {
		return data
	}
	out := h.enc.EncodeAll(data, make([]byte, 0, len(data)/2))
	if len(out) >= len(data) {
		return data
	}
	return out
}

func (h *ZstdHelper) decode(data []byte) ([]byte, error) {
	if !IsZstd(data) {
		return data, nil
	}
	out, err := h.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Join(ErrDecode, err)
	}
	return out, nil
}
