package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cineswipe/cineswipe/internal/domain"
)

type windowEntry struct {
	count    int
	resetsAt time.Time
}

// Memory is a single-process fixed-window limiter. Entries whose window
// has expired are removed by a periodic sweep so the map stays bounded;
// the sweep interval is independent of the window lengths.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	buckets map[string]Bucket
	clock   domain.Clock
	stop    chan struct{}
	done    chan struct{}
}

func NewMemory(buckets map[string]Bucket, sweepEvery time.Duration, clk domain.Clock) *Memory {
	m := &Memory{
		entries: make(map[string]*windowEntry),
		buckets: buckets,
		clock:   clk,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go m.sweepLoop(sweepEvery)
	return m
}

func (m *Memory) Admit(ctx context.Context, identity, bucket string) error {
	cfg, ok := m.buckets[bucket]
	if !ok || cfg.Max <= 0 || cfg.Window <= 0 {
		// Unconfigured buckets fall through to permissive mode.
		return nil
	}

	key := bucket + "|" + identity
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, exists := m.entries[key]
	if !exists || !now.Before(e.resetsAt) {
		m.entries[key] = &windowEntry{count: 1, resetsAt: now.Add(cfg.Window)}
		return nil
	}

	if e.count >= cfg.Max {
		return &LimitError{RetryAfter: retryAfterSeconds(e.resetsAt.Sub(now))}
	}

	e.count++
	return nil
}

// Stop terminates the sweep goroutine and waits for it to exit.
func (m *Memory) Stop() {
	close(m.stop)
	<-m.done
}

func (m *Memory) sweepLoop(every time.Duration) {
	defer close(m.done)
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) sweep() {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if !now.Before(e.resetsAt) {
			delete(m.entries, key)
		}
	}
}

var _ domain.Admission = (*Memory)(nil)
