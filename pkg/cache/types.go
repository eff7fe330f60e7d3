package cache

import (
	"fmt"
	"strings"
	"time"
)

// Priority influences eviction order. It never prevents TTL expiration.
type Priority int8

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

var priorityNames = [...]string{"low", "medium", "high", "critical"}

func (p Priority) String() string {
	if p < PriorityLow || p > PriorityCritical {
		return fmt.Sprintf("priority(%d)", int8(p))
	}
	return priorityNames[p]
}

// weight is the multiplier of the adaptive eviction score.
// Higher weight makes an entry cheaper to lose.
func (p Priority) weight() float64 {
	switch p {
	case PriorityCritical:
		return 0.1
	case PriorityHigh:
		return 0.5
	case PriorityLow:
		return 2.0
	default:
		return 1.0
	}
}

func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range priorityNames {
		if n == name {
			*p = Priority(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown priority %q", ErrInvalidArgument, name)
}

// RemovalReason tells an OnRemove callback why an entry left the cache.
type RemovalReason uint8

const (
	RemovedExplicit RemovalReason = iota + 1
	RemovedByTag
	RemovedExpired
	RemovedEvicted
	RemovedReplaced
	RemovedCleared
	RemovedCorrupt
)

func (r RemovalReason) String() string {
	switch r {
	case RemovedExplicit:
		return "explicit"
	case RemovedByTag:
		return "tag"
	case RemovedExpired:
		return "expired"
	case RemovedEvicted:
		return "evicted"
	case RemovedReplaced:
		return "replaced"
	case RemovedCleared:
		return "cleared"
	case RemovedCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// KeyInfo is a row of HotKeys and ColdKeys.
type KeyInfo struct {
	LastAccessedAt time.Time `json:"last_accessed_at"`
	Key            string    `json:"key"`
	AccessCount    int64     `json:"access_count"`
}

// EntryInfo describes a live entry without its payload.
type EntryInfo struct {
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Key            string            `json:"key"`
	Tags           []string          `json:"tags,omitempty"`
	TTL            time.Duration     `json:"ttl"`
	AccessCount    int64             `json:"access_count"`
	SizeBytes      int64             `json:"size_bytes"`
	Priority       Priority          `json:"priority"`
}

// MemoryUsage reports occupied bytes against MaxSizeBytes.
type MemoryUsage struct {
	UsedBytes  int64   `json:"used_bytes"`
	Percentage float64 `json:"percentage"`
}
