package cache

import (
	"cmp"
	"slices"
	"time"
)

// Strategy names an eviction order.
type Strategy string

const (
	// StrategyLRU evicts the least recently accessed entry first.
	StrategyLRU Strategy = "lru"
	// StrategyLFU evicts the least frequently accessed entry first.
	StrategyLFU Strategy = "lfu"
	// StrategyTTL evicts the oldest entry first, ignoring access recency.
	StrategyTTL Strategy = "ttl"
	// StrategyAdaptive evicts by a composite of idle time, access rate and priority.
	StrategyAdaptive Strategy = "adaptive"
)

func (s Strategy) valid() bool {
	switch s {
	case StrategyLRU, StrategyLFU, StrategyTTL, StrategyAdaptive:
		return true
	}
	return false
}

// Auto-selection thresholds.
const (
	stableHitRate     = 0.8
	stableMinAccesses = 100
	thrashingHitRate  = 0.5
)

// chooseStrategy picks the eviction order for the current workload.
// A pinned strategy always wins. Without adaptive eviction the engine
// falls back to LRU.
func chooseStrategy(pinned Strategy, adaptive bool, st Stats) Strategy {
	if pinned != "" {
		return pinned
	}
	if !adaptive {
		return StrategyLRU
	}
	switch {
	case st.HitRate > stableHitRate && st.TotalAccesses > stableMinAccesses:
		return StrategyLFU
	case st.HitRate < thrashingHitRate:
		return StrategyLRU
	default:
		return StrategyAdaptive
	}
}

// adaptiveScore grows with idle time and priority weight and shrinks with
// the access rate. The highest score is the cheapest entry to lose.
func adaptiveScore[V any](e *entry[V], now time.Time) float64 {
	idle := max(now.Sub(e.lastAccessedAt).Seconds(), 0)
	age := max(now.Sub(e.createdAt).Seconds(), 1)
	rate := float64(e.accessCount) / age
	return idle * e.priority.weight() / (rate + 1)
}

type candidate struct {
	key      string
	seq      uint64
	rank     float64
	critical bool
}

// selectVictims returns up to n keys in eviction order for strategy.
// Critical entries always come after every other entry; remaining ties are
// broken by insertion order, oldest first.
// Caller must hold the mutex.
func (e *Engine[V]) selectVictims(strategy Strategy, n int, now time.Time) []string {
	if n <= 0 || e.entries.len() == 0 {
		return nil
	}

	var recency map[string]int
	if strategy == StrategyLRU {
		recency = e.recency.ranks()
	}

	cands := make([]candidate, 0, e.entries.len())
	e.entries.each(func(ent *entry[V]) bool {
		c := candidate{
			key:      ent.key,
			seq:      ent.seq,
			critical: ent.priority == PriorityCritical,
		}
		switch strategy {
		case StrategyLFU:
			c.rank = float64(e.freq.get(ent.key))
		case StrategyTTL:
			c.rank = float64(ent.createdAt.Sub(now))
		case StrategyAdaptive:
			c.rank = -adaptiveScore(ent, now)
		default:
			c.rank = float64(recency[ent.key])
		}
		cands = append(cands, c)
		return true
	})

	slices.SortFunc(cands, func(a, b candidate) int {
		if a.critical != b.critical {
			if a.critical {
				return 1
			}
			return -1
		}
		if r := cmp.Compare(a.rank, b.rank); r != 0 {
			return r
		}
		return cmp.Compare(a.seq, b.seq)
	})

	n = min(n, len(cands))
	keys := make([]string, n)
	for i := range n {
		keys[i] = cands[i].key
	}
	return keys
}
