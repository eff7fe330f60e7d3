package snapshot

import (
	"context"
	"errors"

	"github.com/klauspost/compress/zstd"

	"github.com/dmitrymomot/cachekit/pkg/transform"
)

// Compressed wraps a Store and zstd-compresses blobs on Save.
// Load accepts both compressed and raw blobs, so compression can be turned
// on for a store that already holds uncompressed snapshots.
type Compressed struct {
	Store
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCompressed wraps store with zstd compression.
func NewCompressed(store Store) (*Compressed, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	return &Compressed{Store: store, enc: enc, dec: dec}, nil
}

func (c *Compressed) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := c.Store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !transform.IsZstd(data) {
		return data, nil
	}

	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Join(ErrCorrupt, err)
	}
	return out, nil
}

func (c *Compressed) Save(ctx context.Context, key string, data []byte) error {
	return c.Store.Save(ctx, key, c.enc.EncodeAll(data, nil))
}

// Ping forwards to the wrapped store.
func (c *Compressed) Ping(ctx context.Context) error {
	return Healthcheck(c.Store)(ctx)
}

// Close releases the codec. The wrapped store is left open.
func (c *Compressed) Close() error {
	c.dec.Close()
	return c.enc.Close()
}

var _ Store = (*Compressed)(nil)
