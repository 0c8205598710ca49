package dedup

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestCache(cooldown time.Duration) (*Cache, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	c := NewCache(cooldown)
	c.now = clk.now
	return c, clk
}

func TestIsRecentDuplicateWithinWindow(t *testing.T) {
	c, clk := newTestCache(3 * time.Second)

	assert.False(t, c.IsRecentDuplicate("0036000291452"))
	clk.advance(1 * time.Second)
	assert.True(t, c.IsRecentDuplicate("0036000291452"))
}

func TestIsRecentDuplicateAfterWindow(t *testing.T) {
	c, clk := newTestCache(3 * time.Second)

	assert.False(t, c.IsRecentDuplicate("0036000291452"))
	clk.advance(3 * time.Second)
	assert.False(t, c.IsRecentDuplicate("0036000291452"))
}

func TestDuplicateDoesNotExtendWindow(t *testing.T) {
	c, clk := newTestCache(3 * time.Second)

	require.False(t, c.IsRecentDuplicate("code"))
	clk.advance(2 * time.Second)
	// duplicate hit must not refresh last-seen
	require.True(t, c.IsRecentDuplicate("code"))
	clk.advance(1 * time.Second)
	assert.False(t, c.IsRecentDuplicate("code"))
}

func TestDistinctCodesIndependent(t *testing.T) {
	c, _ := newTestCache(3 * time.Second)

	assert.False(t, c.IsRecentDuplicate("a"))
	assert.False(t, c.IsRecentDuplicate("b"))
	assert.True(t, c.IsRecentDuplicate("a"))
}

func TestReset(t *testing.T) {
	c, _ := newTestCache(3 * time.Second)

	require.False(t, c.IsRecentDuplicate("code"))
	require.True(t, c.IsRecentDuplicate("code"))
	c.Reset()
	assert.False(t, c.IsRecentDuplicate("code"))
}

func TestPruneSweepsStaleEntries(t *testing.T) {
	c, clk := newTestCache(3 * time.Second)
	c.pruneLimit = 10

	for i := 0; i < 10; i++ {
		require.False(t, c.IsRecentDuplicate(string(rune('a'+i))))
	}
	clk.advance(10 * time.Second)
	// the 11th insert pushes the map over the limit and sweeps the stale ten
	require.False(t, c.IsRecentDuplicate("fresh"))
	assert.Equal(t, 1, c.Len())
}

func TestBelowLimitNothingPruned(t *testing.T) {
	c, clk := newTestCache(3 * time.Second)

	require.False(t, c.IsRecentDuplicate("a"))
	clk.advance(time.Hour)
	require.False(t, c.IsRecentDuplicate("b"))
	assert.Equal(t, 2, c.Len())
}

func TestConcurrentSameCodeSingleWinner(t *testing.T) {
	c := NewCache(3 * time.Second)

	const n = 50
	results := make(chan bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.IsRecentDuplicate("same")
		}()
	}
	wg.Wait()
	close(results)

	fresh := 0
	for dup := range results {
		if !dup {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh, "exactly one goroutine should win the check-and-set")
}
