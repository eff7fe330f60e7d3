package cache

// telemetry holds the running counters behind Stats.
// Caller must hold the engine mutex.
type telemetry struct {
	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

// Stats is a point-in-time view of the engine's occupancy and counters.
type Stats struct {
	// Strategy is the eviction order the engine would use right now.
	Strategy       Strategy `json:"strategy"`
	TotalEntries   int      `json:"total_entries"`
	TotalSizeBytes int64    `json:"total_size_bytes"`
	Hits           int64    `json:"hits"`
	Misses         int64    `json:"misses"`
	TotalAccesses  int64    `json:"total_accesses"`
	HitRate        float64  `json:"hit_rate"`
	MissRate       float64  `json:"miss_rate"`
	EvictionCount  int64    `json:"eviction_count"`
	ExpiredCount   int64    `json:"expired_count"`
	MemoryUsagePct float64  `json:"memory_usage_pct"`
}

// Stats returns current counters and derived rates.
// Hit and miss rates are true ratios over all Get calls since start or the last Clear.
func (e *Engine[V]) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statsLocked()
}

func (e *Engine[V]) statsLocked() Stats {
	total := e.stats.hits + e.stats.misses
	st := Stats{
		TotalEntries:   e.entries.len(),
		TotalSizeBytes: e.entries.size(),
		Hits:           e.stats.hits,
		Misses:         e.stats.misses,
		TotalAccesses:  total,
		EvictionCount:  e.stats.evictions,
		ExpiredCount:   e.stats.expirations,
		MemoryUsagePct: percentOf(e.entries.size(), e.cfg.MaxSizeBytes),
	}
	if total > 0 {
		st.HitRate = float64(e.stats.hits) / float64(total)
		st.MissRate = float64(e.stats.misses) / float64(total)
	}
	st.Strategy = chooseStrategy(e.cfg.EvictionStrategy, e.cfg.AdaptiveEviction, st)
	return st
}

func percentOf(used, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(used) / float64(limit) * 100
}
