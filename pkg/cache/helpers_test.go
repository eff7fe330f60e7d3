package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cachekit/pkg/cache"
	"github.com/dmitrymomot/cachekit/pkg/transform"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// lenSizer charges a string its byte length.
func lenSizer() cache.Option {
	return cache.WithSizer[string](func(v string) int64 { return int64(len(v)) })
}

func newEngine[V any](t *testing.T, cfg cache.Config, opts ...cache.Option) *cache.Engine[V] {
	t.Helper()

	e, err := cache.New[V](cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// silentHelper accepts requests and never answers.
type silentHelper struct{}

func (silentHelper) Send(context.Context, transform.Request) error { return nil }
func (silentHelper) Responses() <-chan transform.Response         { return nil }
func (silentHelper) Close() error                                  { return nil }

// garblingTransformer encodes into bytes that do not decode back.
type garblingTransformer struct{}

func (garblingTransformer) Encode(_ context.Context, data []byte) []byte {
	return append([]byte("garbled:"), data...)
}
func (garblingTransformer) Decode(_ context.Context, data []byte) []byte { return data }
func (garblingTransformer) Close() error                                 { return nil }

// gatedTransformer garbles like garblingTransformer, but Decode blocks until
// release is closed, announcing itself on entered first.
type gatedTransformer struct {
	garblingTransformer
	entered chan struct{}
	release chan struct{}
}

func newGatedTransformer() *gatedTransformer {
	return &gatedTransformer{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gatedTransformer) Decode(ctx context.Context, data []byte) []byte {
	g.entered <- struct{}{}
	<-g.release
	return g.garblingTransformer.Decode(ctx, data)
}

type user struct {
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}
