package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 2, 14, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newMemoryLimiter(t *testing.T, buckets map[string]Bucket, clk *fakeClock) *Memory {
	t.Helper()
	m := NewMemory(buckets, time.Hour, clk)
	t.Cleanup(m.Stop)
	return m
}

func TestMemoryAdmit_WithinWindow_EnforcesMax(t *testing.T) {
	clk := newFakeClock()
	m := newMemoryLimiter(t, map[string]Bucket{
		"vote": {Max: 1, Window: time.Second},
	}, clk)

	ctx := context.Background()
	require.NoError(t, m.Admit(ctx, "203.0.113.7", "vote"))

	err := m.Admit(ctx, "203.0.113.7", "vote")
	assert.ErrorIs(t, err, ErrLimited)

	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 1, limitErr.RetryAfter)
}

func TestMemoryAdmit_WindowRollover_ResetsCount(t *testing.T) {
	clk := newFakeClock()
	m := newMemoryLimiter(t, map[string]Bucket{
		"vote": {Max: 1, Window: time.Second},
	}, clk)

	ctx := context.Background()
	require.NoError(t, m.Admit(ctx, "203.0.113.7", "vote"))
	require.ErrorIs(t, m.Admit(ctx, "203.0.113.7", "vote"), ErrLimited)

	clk.Advance(time.Second)
	assert.NoError(t, m.Admit(ctx, "203.0.113.7", "vote"))
}

func TestMemoryAdmit_IdentitiesAreIndependent(t *testing.T) {
	clk := newFakeClock()
	m := newMemoryLimiter(t, map[string]Bucket{
		"vote": {Max: 1, Window: time.Second},
	}, clk)

	ctx := context.Background()
	require.NoError(t, m.Admit(ctx, "203.0.113.7", "vote"))
	assert.NoError(t, m.Admit(ctx, "203.0.113.8", "vote"))
}

func TestMemoryAdmit_BucketsAreIndependent(t *testing.T) {
	clk := newFakeClock()
	m := newMemoryLimiter(t, map[string]Bucket{
		"vote": {Max: 1, Window: time.Second},
		"read": {Max: 30, Window: time.Second},
	}, clk)

	ctx := context.Background()
	require.NoError(t, m.Admit(ctx, "203.0.113.7", "vote"))
	require.ErrorIs(t, m.Admit(ctx, "203.0.113.7", "vote"), ErrLimited)

	// The read bucket still has headroom for the same caller.
	assert.NoError(t, m.Admit(ctx, "203.0.113.7", "read"))
}

func TestMemoryAdmit_UnknownBucket_Permissive(t *testing.T) {
	clk := newFakeClock()
	m := newMemoryLimiter(t, map[string]Bucket{}, clk)

	for i := 0; i < 100; i++ {
		require.NoError(t, m.Admit(context.Background(), "203.0.113.7", "unconfigured"))
	}
}

func TestMemoryAdmit_DisabledBucket_Permissive(t *testing.T) {
	clk := newFakeClock()
	m := newMemoryLimiter(t, map[string]Bucket{
		"vote": {Max: 0, Window: time.Second},
	}, clk)

	for i := 0; i < 100; i++ {
		require.NoError(t, m.Admit(context.Background(), "203.0.113.7", "vote"))
	}
}

func TestMemoryAdmit_RetryAfterReflectsRemainingWindow(t *testing.T) {
	clk := newFakeClock()
	m := newMemoryLimiter(t, map[string]Bucket{
		"read": {Max: 1, Window: 10 * time.Second},
	}, clk)

	ctx := context.Background()
	require.NoError(t, m.Admit(ctx, "203.0.113.7", "read"))

	clk.Advance(4 * time.Second)
	var limitErr *LimitError
	require.ErrorAs(t, m.Admit(ctx, "203.0.113.7", "read"), &limitErr)
	assert.Equal(t, 6, limitErr.RetryAfter)
}

func TestMemorySweep_DropsExpiredEntries(t *testing.T) {
	clk := newFakeClock()
	m := NewMemory(map[string]Bucket{
		"vote": {Max: 1, Window: time.Second},
	}, time.Hour, clk)
	t.Cleanup(m.Stop)

	ctx := context.Background()
	require.NoError(t, m.Admit(ctx, "203.0.113.7", "vote"))
	require.NoError(t, m.Admit(ctx, "203.0.113.8", "vote"))

	clk.Advance(2 * time.Second)
	m.sweep()

	m.mu.Lock()
	remaining := len(m.entries)
	m.mu.Unlock()
	assert.Zero(t, remaining)
}

func TestMemoryAdmit_ConcurrentCallersNeverExceedMax(t *testing.T) {
	clk := newFakeClock()
	m := newMemoryLimiter(t, map[string]Bucket{
		"vote": {Max: 5, Window: time.Minute},
	}, clk)

	const callers = 50
	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.Admit(context.Background(), "203.0.113.7", "vote")
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range results {
		if err == nil {
			admitted++
		} else if !errors.Is(err, ErrLimited) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 5, admitted)
}
