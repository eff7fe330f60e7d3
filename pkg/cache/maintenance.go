package cache

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// janitor runs the maintenance sweep every CleanupInterval until Close.
func (e *Engine[V]) janitor() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.maintain()
		}
	}
}

// maintain sweeps expired entries, evicts any overflow left afterwards and
// opens a new frequency window.
func (e *Engine[V]) maintain() (expired, evicted int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, 0
	}

	now := e.now()
	expired = e.sweepExpiredLocked(now)

	overSlots := e.entries.len() - e.cfg.MaxEntries
	overBytes := e.entries.size() - e.cfg.MaxSizeBytes
	if overSlots > 0 || overBytes > 0 {
		evicted = e.evictLocked(overBytes, overSlots, now)
	}

	e.freq.rebase(func(key string) (int64, bool) {
		ent, ok := e.entries.take(key)
		if !ok {
			return 0, false
		}
		return ent.accessCount, true
	})

	if expired > 0 || evicted > 0 {
		e.logger.Debug("maintenance sweep",
			slog.Int("expired", expired),
			slog.Int("evicted", evicted),
			slog.Int("entries", e.entries.len()),
		)
	}
	return expired, evicted
}

// parseCronSchedule parses a standard five-field cron expression or a
// descriptor such as "@every 5m".
func parseCronSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return parser.Parse(expr)
}
