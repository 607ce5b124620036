package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetGet(t *testing.T) {
	c := New()

	assert.Nil(t, c.Get("missing"))

	c.Set("worker:1", "value", TTLShort)
	assert.Equal(t, "value", c.Get("worker:1"))
}

func TestCache_Expiry(t *testing.T) {
	c := New()

	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("worker:1", "value", time.Minute)
	assert.Equal(t, "value", c.Get("worker:1"))

	// Advance past the TTL
	current = current.Add(2 * time.Minute)
	assert.Nil(t, c.Get("worker:1"))

	// Expired entry must be gone even after re-check
	assert.Nil(t, c.Get("worker:1"))
}

func TestCache_Delete(t *testing.T) {
	c := New()
	c.Set("worker:1", 1, TTLShort)
	c.Delete("worker:1")
	assert.Nil(t, c.Get("worker:1"))
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c := New()
	c.Set("stats:1:month", 10, TTLMedium)
	c.Set("stats:1:week", 20, TTLMedium)
	c.Set("stats:2:month", 30, TTLMedium)
	c.Set("services", []string{"a"}, TTLMedium)

	c.InvalidatePrefix("stats:1")

	assert.Nil(t, c.Get("stats:1:month"))
	assert.Nil(t, c.Get("stats:1:week"))
	assert.Equal(t, 30, c.Get("stats:2:month"))
	assert.NotNil(t, c.Get("services"))
}

func TestCache_Clear(t *testing.T) {
	c := New()
	c.Set("a", 1, TTLLong)
	c.Set("b", 2, TTLLong)
	c.Clear()
	assert.Nil(t, c.Get("a"))
	assert.Nil(t, c.Get("b"))
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("key", n, TTLShort)
				c.Get("key")
				c.InvalidatePrefix("k")
			}
		}(i)
	}
	wg.Wait()
}
