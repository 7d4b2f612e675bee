package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheCapacityNeverExceeded(t *testing.T) {
	for _, capacity := range []int{1, 3, 16} {
		t.Run(fmt.Sprintf("capacity=%d", capacity), func(t *testing.T) {
			c := New[string, int](capacity, 0)
			for i := 0; i < capacity*4; i++ {
				c.Put(fmt.Sprintf("k%d", i), i)
				assert.LessOrEqual(t, c.Len(), capacity)
			}
			assert.Equal(t, capacity, c.Len())
		})
	}
}

func TestCacheEvictsOldestInsertion(t *testing.T) {
	c := New[string, int](3, 0)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)
	c.Put("d", 4)

	assert.False(t, c.Contains("a"), "oldest entry should be evicted first")
	assert.True(t, c.Contains("b"))
	assert.True(t, c.Contains("c"))
	assert.True(t, c.Contains("d"))
}

func TestCacheOverwriteRefreshesInsertionOrder(t *testing.T) {
	c := New[string, int](2, 0)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 10) // re-insert: "b" is now the oldest
	c.Put("c", 3)

	assert.False(t, c.Contains("b"))
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := New[string, float64](8, time.Second)
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	c.Put("mint", 0.5)

	v, ok := c.Get("mint")
	require.True(t, ok)
	assert.Equal(t, 0.5, v)

	// Exactly at the TTL boundary the entry is still valid.
	now = now.Add(time.Second)
	_, ok = c.Get("mint")
	assert.True(t, ok)

	// Past the TTL the entry reads as absent even though nothing wrote since.
	now = now.Add(time.Millisecond)
	_, ok = c.Get("mint")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is dropped on read")
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	c := New[string, struct{}](4, 0)
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	c.Put("sig", struct{}{})
	now = now.Add(24 * time.Hour)
	assert.True(t, c.Contains("sig"))
}

func TestCacheRemove(t *testing.T) {
	c := New[string, int](4, 0)
	c.Put("a", 1)
	c.Remove("a")
	assert.False(t, c.Contains("a"))
	c.Remove("missing") // no-op
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New[int, int](64, 0)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c.Put(g*1000+i, i)
				c.Get(g*1000 + i - 1)
				c.Contains(i)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
