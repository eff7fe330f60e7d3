package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/cachekit/pkg/cache"
	"github.com/dmitrymomot/cachekit/pkg/logger"
)

// Item is the simulated cached record.
type Item struct {
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	Version   int       `json:"version"`
}

const (
	tagGroups         = 16
	invalidationEvery = 2000
	reportEvery       = 30 * time.Second
)

// workload drives the engine with a skewed read-mostly access pattern:
// a small set of keys receives most reads, writes refresh random keys and
// whole tag groups are invalidated now and then.
type workload struct {
	log  *slog.Logger
	keys int
	rate int
}

// Cacher is the subset of the engine the workload drives.
type Cacher interface {
	GetOrSet(ctx context.Context, key string, fn func(ctx context.Context) (Item, error), opts ...cache.SetOption) (Item, error)
	Set(ctx context.Context, key string, value Item, opts ...cache.SetOption) error
	InvalidateByTag(tag string) int
	Stats() cache.Stats
}

func (w workload) run(ctx context.Context, c Cacher) error {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	zipf := rand.NewZipf(rng, 1.1, 1, uint64(w.keys-1))

	tick := time.NewTicker(time.Second / time.Duration(max(w.rate, 1)))
	defer tick.Stop()
	report := time.NewTicker(reportEvery)
	defer report.Stop()

	for op := 1; ; op++ {
		select {
		case <-ctx.Done():
			return nil
		case <-report.C:
			st := c.Stats()
			w.log.Info("cache stats",
				slog.String("strategy", string(st.Strategy)),
				slog.Int("entries", st.TotalEntries),
				slog.Float64("hit_rate", st.HitRate),
				slog.Float64("memory_pct", st.MemoryUsagePct),
				slog.Int64("evictions", st.EvictionCount),
			)
			continue
		case <-tick.C:
		}

		n := int(zipf.Uint64())
		key := fmt.Sprintf("item:%d", n)
		opts := []cache.SetOption{
			cache.WithTags(fmt.Sprintf("group:%d", n%tagGroups)),
			cache.WithPriority(priorityFor(n)),
			cache.WithTTL(time.Duration(5+rng.IntN(25)) * time.Minute),
		}

		switch {
		case op%invalidationEvery == 0:
			tag := fmt.Sprintf("group:%d", rng.IntN(tagGroups))
			removed := c.InvalidateByTag(tag)
			w.log.Debug("invalidated tag", slog.String("tag", tag), slog.Int("removed", removed))

		case rng.IntN(10) == 0:
			if err := c.Set(ctx, key, load(n, rng.IntN(100)), opts...); err != nil && !errors.Is(err, cache.ErrClosed) {
				w.log.Warn("set failed", slog.String("key", key), slog.String("error", err.Error()))
			}

		default:
			reqCtx := logger.WithCorrelationID(ctx, uuid.NewString())
			_, err := c.GetOrSet(reqCtx, key, func(context.Context) (Item, error) {
				return load(n, 0), nil
			}, opts...)
			if err != nil && !errors.Is(err, cache.ErrClosed) {
				w.log.WarnContext(reqCtx, "read failed", slog.String("key", key), slog.String("error", err.Error()))
			}
		}
	}
}

// priorityFor pins the hottest keys and spreads the rest.
func priorityFor(n int) cache.Priority {
	switch {
	case n < 10:
		return cache.PriorityCritical
	case n < 100:
		return cache.PriorityHigh
	case n%3 == 0:
		return cache.PriorityLow
	default:
		return cache.PriorityMedium
	}
}

// load simulates fetching a record from the source of truth.
func load(n, version int) Item {
	return Item{
		ID:        fmt.Sprintf("item:%d", n),
		Body:      strings.Repeat(fmt.Sprintf("payload-%d ", n), 16+n%64),
		Version:   version,
		UpdatedAt: time.Now(),
	}
}
