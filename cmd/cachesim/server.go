package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/cachekit/pkg/cache"
	"github.com/dmitrymomot/cachekit/pkg/snapshot"
)

const (
	defaultKeyLimit = 20
	checkTimeout    = 5 * time.Second
)

// Admin is the engine surface exposed over HTTP.
type Admin interface {
	Stats() cache.Stats
	HotKeys(limit int) []cache.KeyInfo
	ColdKeys(limit int) []cache.KeyInfo
	MemoryUsage() cache.MemoryUsage
	Invalidate(key string) bool
	InvalidateByTag(tag string) int
	Clear(ctx context.Context) error
	Save(ctx context.Context) error
}

type server struct {
	cache  Admin
	checks map[string]func(context.Context) error
	log    *slog.Logger
}

func newRouter(c Admin, reg *prometheus.Registry, store snapshot.Store, log *slog.Logger) http.Handler {
	s := &server{
		cache:  c,
		log:    log,
		checks: map[string]func(context.Context) error{},
	}
	if store != nil {
		s.checks["snapshot_store"] = snapshot.Healthcheck(store)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Get("/health/ready", s.ready)

	r.Route("/cache", func(r chi.Router) {
		r.Get("/stats", s.stats)
		r.Get("/memory", s.memory)
		r.Get("/keys/hot", s.hotKeys)
		r.Get("/keys/cold", s.coldKeys)
		r.Delete("/keys/{key}", s.invalidate)
		r.Delete("/tags/{tag}", s.invalidateTag)
		r.Post("/clear", s.clear)
		r.Post("/snapshot", s.snapshot)
	})

	return r
}

func (s *server) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *server) memory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.MemoryUsage())
}

func (s *server) hotKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.HotKeys(limitParam(r)))
}

func (s *server) coldKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.ColdKeys(limitParam(r)))
}

func (s *server) invalidate(w http.ResponseWriter, r *http.Request) {
	if !s.cache.Invalidate(chi.URLParam(r, "key")) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "key not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) invalidateTag(w http.ResponseWriter, r *http.Request) {
	n := s.cache.InvalidateByTag(chi.URLParam(r, "tag"))
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *server) clear(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Clear(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) snapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Save(r.Context()); err != nil {
		s.log.WarnContext(r.Context(), "manual snapshot failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ready runs every check in parallel and reports 503 if any fails.
func (s *server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]checkResult, len(s.checks))
		healthy = true
	)
	for name, check := range s.checks {
		wg.Go(func() {
			res := checkResult{Status: "healthy"}
			if err := check(ctx); err != nil {
				res = checkResult{Status: "unhealthy", Error: err.Error()}
				s.log.WarnContext(ctx, "health check failed",
					slog.String("check", name),
					slog.String("error", err.Error()),
				)
			}

			mu.Lock()
			defer mu.Unlock()
			results[name] = res
			healthy = healthy && res.Status == "healthy"
		})
	}
	wg.Wait()

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": results})
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultKeyLimit
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
