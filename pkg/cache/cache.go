package cache

import (
	"context"
	"encoding/json"
	"errors"
)

// Marshaler serializes and deserializes cache values. The engine uses it to
// size values, to feed the compression transform and to write snapshots.
type Marshaler[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

type jsonMarshaler[V any] struct{}

func (jsonMarshaler[V]) Marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

func (jsonMarshaler[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrUnmarshal, err)
	}
	return v, nil
}

// Sizer returns the byte cost of a value charged against MaxSizeBytes.
type Sizer[V any] func(v V) int64

// Transformer encodes payloads on write and decodes them on read.
//
// Implementations must never fail: when the transform cannot complete
// they return the input unchanged. See transform.Gateway.
type Transformer interface {
	Encode(ctx context.Context, data []byte) []byte
	Decode(ctx context.Context, data []byte) []byte
	Close() error
}
