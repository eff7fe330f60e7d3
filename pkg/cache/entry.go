package cache

import (
	"container/list"
	"maps"
	"slices"
	"time"
)

// entry holds a cached payload with its bookkeeping.
// Exactly one of value and encoded is meaningful: encoded is set when the
// payload went through the Transformer on write.
type entry[V any] struct {
	createdAt      time.Time
	lastAccessedAt time.Time
	value          V
	metadata       map[string]string
	elem           *list.Element // position in the recency list
	key            string
	encoded        []byte
	tags           []string
	ttl            time.Duration // negative = never expires
	accessCount    int64
	sizeBytes      int64
	seq            uint64 // insertion order, breaks eviction ties
	priority       Priority
	isEncoded      bool
}

// isExpired reports whether the entry outlived its TTL at now.
func (e *entry[V]) isExpired(now time.Time) bool {
	if e.ttl < 0 {
		return false
	}
	return now.Sub(e.createdAt) > e.ttl
}

// touch records a successful read.
func (e *entry[V]) touch(now time.Time) {
	e.accessCount++
	e.lastAccessedAt = now
}

func (e *entry[V]) info() EntryInfo {
	return EntryInfo{
		Key:            e.key,
		CreatedAt:      e.createdAt,
		LastAccessedAt: e.lastAccessedAt,
		TTL:            e.ttl,
		AccessCount:    e.accessCount,
		SizeBytes:      e.sizeBytes,
		Priority:       e.priority,
		Tags:           slices.Clone(e.tags),
		Metadata:       maps.Clone(e.metadata),
	}
}
