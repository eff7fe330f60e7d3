package cache

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/cachekit/pkg/snapshot"
	"github.com/dmitrymomot/cachekit/pkg/transform"
)

// Engine is an in-memory cache bounded by total bytes and entry count.
//
// Entries expire lazily on read and actively on a background sweep.
// When a write would exceed a budget, expired entries are dropped first
// and then live entries are evicted in the order of the current Strategy.
// Payloads can optionally round-trip through a Transformer (compression)
// and the whole store can be snapshotted to a snapshot.Store.
//
// All methods are safe for concurrent use.
type Engine[V any] struct {
	now         func() time.Time
	logger      *slog.Logger
	marshaler   Marshaler[V]
	sizer       Sizer[V]
	transformer Transformer
	snap        snapshot.Store
	onRemove    func(key string, reason RemovalReason)
	entries     *entryStore[V]
	recency     *recencyList
	freq        *frequencyTable
	scheduler   *cron.Cron
	saveCh      chan struct{}
	done        chan struct{}
	sf          singleflight.Group
	cfg         Config
	stats       telemetry
	wg          sync.WaitGroup
	seq         uint64
	epoch       uint64
	mu          sync.Mutex
	closed      bool
}

// New creates a cache engine and starts its background work.
//
// When cfg.PersistToDisk is set and a snapshot store is configured,
// New restores the last snapshot if it is fresh enough. Restore failures
// are logged; the engine then starts cold.
//
// Example:
//
//	c, err := cache.New[User](cache.Config{
//	    MaxSizeBytes:     32 << 20,
//	    MaxEntries:       5000,
//	    DefaultTTL:       10 * time.Minute,
//	    CleanupInterval:  30 * time.Second,
//	    AdaptiveEviction: true,
//	}, cache.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
func New[V any](cfg Config, opts ...Option) (*Engine[V], error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultEngineOptions()
	for _, opt := range opts {
		opt(o)
	}

	e := &Engine[V]{
		cfg:       cfg,
		now:       o.now,
		logger:    o.logger.With(slog.String("component", "cache")),
		marshaler: jsonMarshaler[V]{},
		entries:   newEntryStore[V](),
		recency:   newRecencyList(),
		freq:      newFrequencyTable(),
		done:      make(chan struct{}),
		saveCh:    make(chan struct{}, 1),
	}

	if o.marshaler != nil {
		m, ok := o.marshaler.(Marshaler[V])
		if !ok {
			return nil, fmt.Errorf("%w: marshaler %T does not match value type", ErrInvalidConfig, o.marshaler)
		}
		e.marshaler = m
	}
	if o.sizer != nil {
		s, ok := o.sizer.(Sizer[V])
		if !ok {
			return nil, fmt.Errorf("%w: sizer %T does not match value type", ErrInvalidConfig, o.sizer)
		}
		e.sizer = s
	}

	e.transformer = o.transformer
	if cfg.CompressionEnabled && e.transformer == nil {
		helper, err := transform.NewZstdHelper()
		if err != nil {
			return nil, errors.Join(ErrInvalidConfig, err)
		}
		e.transformer = transform.NewGateway(helper,
			transform.WithTimeout(cfg.TransformTimeout),
			transform.WithLogger(o.logger),
		)
	}

	if cfg.PersistToDisk && o.store != nil {
		e.snap = o.store
		e.load()

		e.wg.Add(1)
		go e.saveLoop()

		if cfg.SnapshotSchedule != "" {
			// Validate already parsed the expression.
			sched, _ := parseCronSchedule(cfg.SnapshotSchedule)
			e.scheduler = cron.New()
			e.scheduler.Schedule(sched, cron.FuncJob(e.requestSave))
			e.scheduler.Start()
		}
	}

	if cfg.CleanupInterval > 0 {
		e.wg.Add(1)
		go e.janitor()
	}

	return e, nil
}

// OnRemove sets a callback invoked whenever an entry leaves the cache:
// explicit invalidation, tag invalidation, expiration, eviction,
// replacement and Clear. The callback runs with the engine locked and
// must not call back into the engine.
func (e *Engine[V]) OnRemove(fn func(key string, reason RemovalReason)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onRemove = fn
}

// Set stores value under key, replacing any previous entry with fresh
// timestamps and a zero access count.
//
// Set never fails for capacity reasons: it evicts as needed. It returns
// ErrPayloadTooLarge only when the value alone exceeds MaxSizeBytes and
// ErrInvalidArgument for an empty key or an unknown priority.
func (e *Engine[V]) Set(ctx context.Context, key string, value V, opts ...SetOption) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}

	so := setOptions{priority: PriorityMedium}
	for _, opt := range opts {
		opt(&so)
	}
	if so.priority < PriorityLow || so.priority > PriorityCritical {
		return fmt.Errorf("%w: %s", ErrInvalidArgument, so.priority)
	}

	if e.isClosed() {
		return ErrClosed
	}

	// Marshal and transform outside the lock: the transform may wait on
	// the helper for up to the configured timeout.
	p, err := e.prepare(ctx, value)
	if err != nil {
		return err
	}
	if p.size > e.cfg.MaxSizeBytes {
		return fmt.Errorf("%w: %d bytes, budget %d", ErrPayloadTooLarge, p.size, e.cfg.MaxSizeBytes)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}

	now := e.now()

	// The previous version must not count against the budget of its replacement.
	e.removeLocked(key, RemovedReplaced)
	e.makeRoomLocked(p.size, now)

	ttl := so.ttl
	if ttl == 0 {
		ttl = e.cfg.DefaultTTL
	}

	e.seq++
	ent := &entry[V]{
		key:            key,
		createdAt:      now,
		lastAccessedAt: now,
		ttl:            ttl,
		sizeBytes:      p.size,
		priority:       so.priority,
		tags:           slices.Compact(slices.Sorted(slices.Values(so.tags))),
		metadata:       so.metadata,
		seq:            e.seq,
	}
	if p.encoded != nil {
		ent.encoded = p.encoded
		ent.isEncoded = true
	} else {
		ent.value = value
	}
	ent.elem = e.recency.add(key)
	e.entries.put(ent)
	e.mu.Unlock()

	e.requestSave()
	return nil
}

type prepared struct {
	encoded []byte
	size    int64
}

// prepare computes the byte cost of value and, when compression is on,
// its transformed representation.
func (e *Engine[V]) prepare(ctx context.Context, value V) (prepared, error) {
	if e.cfg.CompressionEnabled && e.transformer != nil {
		data, err := e.marshaler.Marshal(value)
		if err != nil {
			return prepared{}, err
		}
		encoded := e.transformer.Encode(ctx, data)
		return prepared{encoded: encoded, size: int64(len(encoded))}, nil
	}

	if e.sizer != nil {
		return prepared{size: max(e.sizer(value), 0)}, nil
	}

	data, err := e.marshaler.Marshal(value)
	if err != nil {
		return prepared{}, err
	}
	return prepared{size: int64(len(data))}, nil
}

// Get returns the value stored under key.
// Returns ErrNotFound if the key does not exist or its TTL has elapsed,
// whether or not the background sweep has run.
// A successful Get bumps the entry's access count and recency.
func (e *Engine[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V
	if key == "" {
		return zero, fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}

	e.mu.Lock()
	ent, ok := e.entries.take(key)
	if !ok {
		e.stats.misses++
		e.mu.Unlock()
		return zero, ErrNotFound
	}

	now := e.now()
	if ent.isExpired(now) {
		e.removeLocked(key, RemovedExpired)
		e.stats.expirations++
		e.stats.misses++
		e.mu.Unlock()
		return zero, ErrNotFound
	}

	ent.touch(now)
	e.recency.touch(ent.elem)
	e.freq.inc(key)
	e.stats.hits++

	if !ent.isEncoded {
		v := ent.value
		e.mu.Unlock()
		return v, nil
	}
	encoded := ent.encoded
	epoch := e.epoch
	e.mu.Unlock()

	data := encoded
	if e.transformer != nil {
		data = e.transformer.Decode(ctx, encoded)
	}
	v, err := e.marshaler.Unmarshal(data)
	if err != nil {
		// The transform degraded to pass-through on a compressed payload.
		// Treat the entry as lost rather than failing the read.
		e.logger.WarnContext(ctx, "dropping undecodable entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		e.dropUndecodable(ent, epoch)
		return zero, ErrNotFound
	}
	return v, nil
}

// dropUndecodable removes ent if it is still the live entry for its key
// and reclassifies the read as a miss. The hit is only taken back if no
// Clear has reset the counters since it was recorded.
func (e *Engine[V]) dropUndecodable(ent *entry[V], epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cur, ok := e.entries.take(ent.key); ok && cur == ent {
		e.removeLocked(ent.key, RemovedCorrupt)
	}
	if e.epoch == epoch {
		e.stats.hits--
	}
	e.stats.misses++
}

// GetOrSet returns the cached value for key or computes it with fn on a miss.
// Concurrent misses for the same key share a single fn call.
// The computed value is cached best-effort with opts; if fn fails,
// nothing is cached and the error is returned.
func (e *Engine[V]) GetOrSet(ctx context.Context, key string, fn func(ctx context.Context) (V, error), opts ...SetOption) (V, error) {
	var zero V

	v, err := e.Get(ctx, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return zero, err
	}

	res, err, _ := e.sf.Do(key, func() (any, error) {
		val, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if err := e.Set(ctx, key, val, opts...); err != nil {
			e.logger.DebugContext(ctx, "get-or-set: value not cached",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return val, nil
	})
	if err != nil {
		return zero, err
	}

	v, _ = res.(V)
	return v, nil
}

// Has reports whether key holds a live entry. It does not count as an access.
func (e *Engine[V]) Has(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries.take(key)
	return ok && !ent.isExpired(e.now())
}

// Peek returns the bookkeeping of a live entry without counting an access.
func (e *Engine[V]) Peek(key string) (EntryInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries.take(key)
	if !ok || ent.isExpired(e.now()) {
		return EntryInfo{}, false
	}
	return ent.info(), true
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (e *Engine[V]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entries.len()
}

// Invalidate removes key and reports whether it was present.
func (e *Engine[V]) Invalidate(key string) bool {
	e.mu.Lock()
	_, ok := e.removeLocked(key, RemovedExplicit)
	e.mu.Unlock()

	if ok {
		e.requestSave()
	}
	return ok
}

// InvalidateByTag removes every entry carrying tag and returns how many were removed.
func (e *Engine[V]) InvalidateByTag(tag string) int {
	e.mu.Lock()
	n := 0
	for _, key := range e.entries.keysWithTag(tag) {
		if _, ok := e.removeLocked(key, RemovedByTag); ok {
			n++
		}
	}
	e.mu.Unlock()

	if n > 0 {
		e.requestSave()
	}
	return n
}

// Clear removes all entries unconditionally, regardless of priority,
// and resets telemetry.
func (e *Engine[V]) Clear(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	old := e.entries.reset()
	e.recency.reset()
	e.freq.reset()
	e.stats = telemetry{}
	e.epoch++

	if e.onRemove != nil {
		for key := range old {
			e.onRemove(key, RemovedCleared)
		}
	}

	return nil
}

// HotKeys returns up to limit live entries with the highest access counts, descending.
func (e *Engine[V]) HotKeys(limit int) []KeyInfo {
	return e.keysByAccess(limit, true)
}

// ColdKeys returns up to limit live entries with the lowest access counts, ascending.
func (e *Engine[V]) ColdKeys(limit int) []KeyInfo {
	return e.keysByAccess(limit, false)
}

func (e *Engine[V]) keysByAccess(limit int, desc bool) []KeyInfo {
	if limit <= 0 {
		return nil
	}

	e.mu.Lock()
	type row struct {
		info KeyInfo
		seq  uint64
	}
	now := e.now()
	rows := make([]row, 0, e.entries.len())
	e.entries.each(func(ent *entry[V]) bool {
		if ent.isExpired(now) {
			return true
		}
		rows = append(rows, row{
			info: KeyInfo{Key: ent.key, AccessCount: ent.accessCount, LastAccessedAt: ent.lastAccessedAt},
			seq:  ent.seq,
		})
		return true
	})
	e.mu.Unlock()

	slices.SortFunc(rows, func(a, b row) int {
		c := cmp.Compare(a.info.AccessCount, b.info.AccessCount)
		if desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]KeyInfo, 0, min(limit, len(rows)))
	for _, r := range rows[:min(limit, len(rows))] {
		out = append(out, r.info)
	}
	return out
}

// MemoryUsage reports the bytes charged against MaxSizeBytes.
func (e *Engine[V]) MemoryUsage() MemoryUsage {
	e.mu.Lock()
	defer e.mu.Unlock()

	used := e.entries.size()
	return MemoryUsage{UsedBytes: used, Percentage: percentOf(used, e.cfg.MaxSizeBytes)}
}

// Close stops the maintenance sweep and the snapshot schedule, flushes a
// pending snapshot and releases the transformer. Close is idempotent.
func (e *Engine[V]) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.done)
	e.mu.Unlock()

	if e.scheduler != nil {
		<-e.scheduler.Stop().Done()
	}
	e.wg.Wait()

	if e.transformer != nil {
		return e.transformer.Close()
	}
	return nil
}

func (e *Engine[V]) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// makeRoomLocked guarantees that an entry of size bytes fits both budgets.
// Expired entries go first; live entries are evicted only if that is not enough.
// Caller must hold the mutex.
func (e *Engine[V]) makeRoomLocked(size int64, now time.Time) {
	needBytes := e.entries.size() + size - e.cfg.MaxSizeBytes
	needSlots := e.entries.len() + 1 - e.cfg.MaxEntries
	if needBytes <= 0 && needSlots <= 0 {
		return
	}

	e.sweepExpiredLocked(now)

	needBytes = e.entries.size() + size - e.cfg.MaxSizeBytes
	needSlots = e.entries.len() + 1 - e.cfg.MaxEntries
	if needBytes <= 0 && needSlots <= 0 {
		return
	}

	e.evictLocked(needBytes, needSlots, now)
}

// evictLocked removes live entries in eviction order until at least
// needBytes bytes and needSlots entries were freed or the store is empty.
// It returns the number of evicted entries.
// Caller must hold the mutex.
func (e *Engine[V]) evictLocked(needBytes int64, needSlots int, now time.Time) int {
	strategy := chooseStrategy(e.cfg.EvictionStrategy, e.cfg.AdaptiveEviction, e.statsLocked())

	var freedBytes int64
	freedSlots := 0
	for _, key := range e.selectVictims(strategy, e.entries.len(), now) {
		if freedBytes >= needBytes && freedSlots >= needSlots {
			break
		}
		ent, ok := e.removeLocked(key, RemovedEvicted)
		if !ok {
			continue
		}
		freedBytes += ent.sizeBytes
		freedSlots++
		e.stats.evictions++
	}

	if freedSlots > 0 {
		e.logger.Debug("evicted entries",
			slog.String("strategy", string(strategy)),
			slog.Int("count", freedSlots),
			slog.Int64("freed_bytes", freedBytes),
		)
	}
	return freedSlots
}

// sweepExpiredLocked removes every expired entry. Expirations are not evictions.
// Caller must hold the mutex.
func (e *Engine[V]) sweepExpiredLocked(now time.Time) int {
	var expired []string
	e.entries.each(func(ent *entry[V]) bool {
		if ent.isExpired(now) {
			expired = append(expired, ent.key)
		}
		return true
	})

	for _, key := range expired {
		e.removeLocked(key, RemovedExpired)
	}
	e.stats.expirations += int64(len(expired))
	return len(expired)
}

// removeLocked detaches key from the store and trackers.
// Access frequency survives replacement.
// Caller must hold the mutex.
func (e *Engine[V]) removeLocked(key string, reason RemovalReason) (*entry[V], bool) {
	ent, ok := e.entries.remove(key)
	if !ok {
		return nil, false
	}

	e.recency.remove(ent.elem)
	if reason != RemovedReplaced {
		e.freq.forget(key)
	}

	if e.onRemove != nil {
		e.onRemove(key, reason)
	}
	return ent, true
}
