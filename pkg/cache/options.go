package cache

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/cachekit/pkg/logger"
	"github.com/dmitrymomot/cachekit/pkg/snapshot"
)

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger      *slog.Logger
	sizer       any // Sizer[V], asserted in New
	marshaler   any // Marshaler[V], asserted in New
	transformer Transformer
	store       snapshot.Store
	now         func() time.Time
}

func defaultEngineOptions() *engineOptions {
	return &engineOptions{
		logger: logger.NewNope(),
		now:    time.Now,
	}
}

// WithLogger sets the logger used for internal degradations
// (persistence failures, transform fallbacks, maintenance sweeps).
// Default: no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSizer overrides how the byte cost of a value is computed.
// The sizer's type parameter must match the engine's value type.
// Default: length of the marshaled value.
func WithSizer[V any](fn Sizer[V]) Option {
	return func(o *engineOptions) {
		o.sizer = fn
	}
}

// WithMarshaler sets the serializer used for sizing, compression and snapshots.
// Default: JSON.
func WithMarshaler[V any](m Marshaler[V]) Option {
	return func(o *engineOptions) {
		o.marshaler = m
	}
}

// WithTransformer sets the payload transform used when compression is enabled.
// The engine takes ownership and closes it on Close.
// Default: a transform.Gateway backed by an in-process zstd helper.
func WithTransformer(t Transformer) Option {
	return func(o *engineOptions) {
		o.transformer = t
	}
}

// WithSnapshotStore sets the durable store used when persistence is enabled.
func WithSnapshotStore(s snapshot.Store) Option {
	return func(o *engineOptions) {
		o.store = s
	}
}

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// SetOption configures a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	metadata map[string]string
	tags     []string
	ttl      time.Duration
	priority Priority
}

// WithTTL sets the entry lifetime. Zero uses the configured default,
// a negative duration means the entry never expires.
func WithTTL(d time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = d
	}
}

// WithPriority sets the entry priority. Default: PriorityMedium.
func WithPriority(p Priority) SetOption {
	return func(o *setOptions) {
		o.priority = p
	}
}

// WithTags attaches tags for bulk invalidation via InvalidateByTag.
func WithTags(tags ...string) SetOption {
	return func(o *setOptions) {
		o.tags = append(o.tags, tags...)
	}
}

// WithMetadata attaches free-form annotations. The engine never interprets them.
func WithMetadata(md map[string]string) SetOption {
	return func(o *setOptions) {
		if o.metadata == nil {
			o.metadata = make(map[string]string, len(md))
		}
		for k, v := range md {
			o.metadata[k] = v
		}
	}
}
