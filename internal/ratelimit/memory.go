package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/ainexus/ainexus/gateway/pkg/models"
	"github.com/rs/zerolog/log"
)

// MemoryStore keeps windows in process memory. Each key has its own lock,
// so unrelated clients never contend.
type MemoryStore struct {
	windows sync.Map // client key → *window
}

type window struct {
	mu      sync.Mutex
	count   int
	start   time.Time
	size    time.Duration
	evicted bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Increment implements contracts.RateStore.
func (s *MemoryStore) Increment(_ context.Context, key string, size time.Duration, now time.Time) (models.RateWindow, error) {
	for {
		v, _ := s.windows.LoadOrStore(key, &window{})
		w := v.(*window)

		w.mu.Lock()
		if w.evicted {
			// Lost a race with Sweep; the entry is gone from the map.
			w.mu.Unlock()
			continue
		}
		if windowExpired(w.start, size, now) {
			w.count = 0
			w.start = now
		}
		w.count++
		w.size = size
		rw := models.RateWindow{Count: w.count, WindowStart: w.start, WindowSize: size}
		w.mu.Unlock()
		return rw, nil
	}
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	n := 0
	s.windows.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Sweep removes windows that ended before now and returns how many were dropped.
func (s *MemoryStore) Sweep(now time.Time) int {
	dropped := 0
	s.windows.Range(func(k, v any) bool {
		w := v.(*window)
		w.mu.Lock()
		if windowExpired(w.start, w.size, now) {
			w.evicted = true
			s.windows.CompareAndDelete(k, v)
			dropped++
		}
		w.mu.Unlock()
		return true
	})
	return dropped
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				log.Debug().Int("dropped", n).Int("remaining", s.Len()).Msg("Swept expired rate windows")
			}
		}
	}
}
