package cache

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dmitrymomot/cachekit/pkg/snapshot"
)

const (
	snapshotVersion = 1
	persistTimeout  = 10 * time.Second
)

type snapshotDoc struct {
	SavedAt time.Time       `json:"saved_at"`
	Entries []snapshotEntry `json:"entries"`
	Stats   snapshotStats   `json:"stats"`
	Version int             `json:"version"`
}

type snapshotStats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	Expirations int64 `json:"expirations"`
}

type snapshotEntry struct {
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Key            string            `json:"key"`
	Payload        []byte            `json:"payload"`
	Tags           []string          `json:"tags,omitempty"`
	TTL            time.Duration     `json:"ttl"`
	AccessCount    int64             `json:"access_count"`
	SizeBytes      int64             `json:"size_bytes"`
	Priority       Priority          `json:"priority"`
	Encoded        bool              `json:"encoded"`
}

// Save writes a snapshot of all entries and counters to the snapshot store.
// It is a best-effort view: writes racing with Save may or may not be included.
// Without persistence configured Save is a no-op.
func (e *Engine[V]) Save(ctx context.Context) error {
	if e.snap == nil {
		return nil
	}

	doc, values := e.capture()
	for i, v := range values {
		if v.value == nil {
			continue
		}
		data, err := e.marshaler.Marshal(*v.value)
		if err != nil {
			return fmt.Errorf("snapshot entry %q: %w", doc.Entries[i].Key, err)
		}
		doc.Entries[i].Payload = data
	}

	blob, err := json.Marshal(doc)
	if err != nil {
		return errors.Join(ErrMarshal, err)
	}

	return e.snap.Save(ctx, e.cfg.SnapshotKey, blob)
}

type capturedValue[V any] struct {
	value *V // nil for entries already held in encoded form
}

// capture copies the store under the lock. Plain values are marshaled by
// the caller after the lock is released.
func (e *Engine[V]) capture() (snapshotDoc, []capturedValue[V]) {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := make([]*entry[V], 0, e.entries.len())
	e.entries.each(func(ent *entry[V]) bool {
		items = append(items, ent)
		return true
	})
	slices.SortFunc(items, func(a, b *entry[V]) int { return cmp.Compare(a.seq, b.seq) })

	doc := snapshotDoc{
		Version: snapshotVersion,
		SavedAt: e.now(),
		Stats: snapshotStats{
			Hits:        e.stats.hits,
			Misses:      e.stats.misses,
			Evictions:   e.stats.evictions,
			Expirations: e.stats.expirations,
		},
		Entries: make([]snapshotEntry, len(items)),
	}
	values := make([]capturedValue[V], len(items))

	for i, ent := range items {
		doc.Entries[i] = snapshotEntry{
			Key:            ent.key,
			CreatedAt:      ent.createdAt,
			LastAccessedAt: ent.lastAccessedAt,
			TTL:            ent.ttl,
			AccessCount:    ent.accessCount,
			SizeBytes:      ent.sizeBytes,
			Priority:       ent.priority,
			Tags:           ent.tags,
			Metadata:       ent.metadata,
			Encoded:        ent.isEncoded,
		}
		if ent.isEncoded {
			doc.Entries[i].Payload = ent.encoded
		} else {
			v := ent.value
			values[i].value = &v
		}
	}

	return doc, values
}

// requestSave schedules a background snapshot. Requests made while a save
// is pending are coalesced into it.
func (e *Engine[V]) requestSave() {
	if e.snap == nil {
		return
	}
	select {
	case e.saveCh <- struct{}{}:
	default:
	}
}

// saveLoop performs requested snapshots off the caller's path.
// A request pending at Close is flushed before the loop exits.
func (e *Engine[V]) saveLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.done:
			select {
			case <-e.saveCh:
				e.saveQuietly()
			default:
			}
			return
		case <-e.saveCh:
			e.saveQuietly()
		}
	}
}

// saveQuietly runs Save and logs instead of returning failures.
func (e *Engine[V]) saveQuietly() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := e.Save(ctx); err != nil {
		e.logger.Warn("snapshot save failed",
			slog.String("key", e.cfg.SnapshotKey),
			slog.String("error", err.Error()),
		)
	}
}

// load restores the last snapshot if it is younger than SnapshotMaxAge.
// Any failure leaves the engine cold.
func (e *Engine[V]) load() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	blob, err := e.snap.Load(ctx, e.cfg.SnapshotKey)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			e.logger.Info("no snapshot found, starting cold", slog.String("key", e.cfg.SnapshotKey))
			return
		}
		e.logger.Warn("snapshot load failed, starting cold",
			slog.String("key", e.cfg.SnapshotKey),
			slog.String("error", err.Error()),
		)
		return
	}

	var doc snapshotDoc
	if err := json.Unmarshal(blob, &doc); err != nil {
		e.logger.Warn("snapshot is corrupt, starting cold",
			slog.String("key", e.cfg.SnapshotKey),
			slog.String("error", err.Error()),
		)
		return
	}

	now := e.now()
	if age := now.Sub(doc.SavedAt); age >= e.cfg.SnapshotMaxAge || doc.Version != snapshotVersion {
		e.logger.Info("discarding stale snapshot",
			slog.String("key", e.cfg.SnapshotKey),
			slog.Duration("age", age),
			slog.Int("version", doc.Version),
		)
		if err := e.snap.Delete(ctx, e.cfg.SnapshotKey); err != nil && !errors.Is(err, snapshot.ErrNotFound) {
			e.logger.Warn("failed to delete stale snapshot", slog.String("error", err.Error()))
		}
		return
	}

	restored := e.restore(ctx, doc, now)
	e.logger.Info("snapshot restored",
		slog.String("key", e.cfg.SnapshotKey),
		slog.Int("entries", restored),
		slog.Int("skipped", len(doc.Entries)-restored),
	)
}

// restore rebuilds the store and trackers from doc and returns how many
// entries were kept. Expired entries, entries that no longer fit the
// budgets and payloads that cannot be decoded are skipped.
func (e *Engine[V]) restore(ctx context.Context, doc snapshotDoc, now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats = telemetry{
		hits:        doc.Stats.Hits,
		misses:      doc.Stats.Misses,
		evictions:   doc.Stats.Evictions,
		expirations: doc.Stats.Expirations,
	}

	kept := make([]*entry[V], 0, len(doc.Entries))
	for _, se := range doc.Entries {
		ent := &entry[V]{
			key:            se.Key,
			createdAt:      se.CreatedAt,
			lastAccessedAt: se.LastAccessedAt,
			ttl:            se.TTL,
			accessCount:    se.AccessCount,
			sizeBytes:      se.SizeBytes,
			priority:       se.Priority,
			tags:           se.Tags,
			metadata:       se.Metadata,
		}
		if se.Key == "" || ent.isExpired(now) {
			continue
		}
		if e.entries.len()+1 > e.cfg.MaxEntries || e.entries.size()+se.SizeBytes > e.cfg.MaxSizeBytes {
			continue
		}

		switch {
		case se.Encoded && e.transformer == nil:
			continue
		case se.Encoded:
			ent.encoded = se.Payload
			ent.isEncoded = true
		default:
			v, err := e.marshaler.Unmarshal(se.Payload)
			if err != nil {
				e.logger.DebugContext(ctx, "skipping snapshot entry",
					slog.String("key", se.Key),
					slog.String("error", err.Error()),
				)
				continue
			}
			ent.value = v
		}

		e.seq++
		ent.seq = e.seq
		e.entries.put(ent)
		kept = append(kept, ent)
	}

	// Oldest access first so that the most recently used key ends up in front.
	slices.SortStableFunc(kept, func(a, b *entry[V]) int {
		return a.lastAccessedAt.Compare(b.lastAccessedAt)
	})
	for _, ent := range kept {
		ent.elem = e.recency.add(ent.key)
		e.freq.seed(ent.key, ent.accessCount)
	}

	return len(kept)
}
