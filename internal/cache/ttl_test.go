package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTTLCache_SetGet(t *testing.T) {
	c := NewTTLCache[string](time.Minute)
	c.Set("k", "v")

	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Errorf("Get() = %q, %v, want v, true", got, ok)
	}
}

func TestTTLCache_Get_Miss(t *testing.T) {
	c := NewTTLCache[int](time.Minute)
	if _, ok := c.Get("missing"); ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

func TestTTLCache_ExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCacheWithClock[string](time.Minute, clock.Now)
	c.SetWithTTL("k", "v", 10*time.Second)

	clock.Advance(10 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should still be live exactly at TTL")
	}

	clock.Advance(time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("Get() ok = true after TTL, want false")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (expired entry removed on access)", c.Len())
	}
}

func TestTTLCache_DefaultTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCacheWithClock[string](0, clock.Now)
	c.Set("k", "v")

	clock.Advance(DefaultTTL)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should be live at DefaultTTL")
	}
	clock.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("entry should expire after DefaultTTL")
	}
}

func TestTTLCache_NonPositiveTTLUsesDefault(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCacheWithClock[string](time.Minute, clock.Now)
	c.SetWithTTL("k", "v", -5*time.Second)

	clock.Advance(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Error("non-positive ttl should fall back to default, entry expired early")
	}
}

func TestTTLCache_OverwriteRestartsTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCacheWithClock[string](time.Minute, clock.Now)
	c.Set("k", "v1")

	clock.Advance(50 * time.Second)
	c.Set("k", "v2")
	first, _ := c.StoredAt("k")

	clock.Advance(50 * time.Second)
	got, ok := c.Get("k")
	if !ok || got != "v2" {
		t.Fatalf("Get() = %q, %v, want v2, true", got, ok)
	}
	if !first.Equal(clock.Now().Add(-50 * time.Second)) {
		t.Errorf("StoredAt() = %v, want timestamp of second Set", first)
	}
}

func TestTTLCache_Delete(t *testing.T) {
	c := NewTTLCache[string](time.Minute)
	c.Set("k", "v")

	if !c.Delete("k") {
		t.Error("Delete() = false, want true for present key")
	}
	if c.Delete("k") {
		t.Error("Delete() = true, want false for absent key")
	}
	if _, ok := c.Get("k"); ok {
		t.Error("Get() after Delete ok = true")
	}
}

func TestTTLCache_Clear(t *testing.T) {
	c := NewTTLCache[int](time.Minute)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}

func TestTTLCache_Cleanup(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCacheWithClock[int](time.Minute, clock.Now)
	c.SetWithTTL("short-1", 1, time.Second)
	c.SetWithTTL("short-2", 2, time.Second)
	c.SetWithTTL("long", 3, time.Hour)

	clock.Advance(2 * time.Second)
	removed := c.Cleanup()

	if removed != 2 {
		t.Errorf("Cleanup() = %d, want 2", removed)
	}
	if keys := c.Keys(); len(keys) != 1 || keys[0] != "long" {
		t.Errorf("Keys() = %v, want [long]", keys)
	}
}

func TestTTLCache_Keys_Sorted(t *testing.T) {
	c := NewTTLCache[int](time.Minute)
	c.Set("b", 1)
	c.Set("a", 2)
	c.Set("c", 3)

	keys := c.Keys()
	want := []string{"a", "b", "c"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", keys, want)
		}
	}
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	c := NewTTLCache[int](time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%20)
				c.Set(key, g)
				c.Get(key)
				if i%50 == 0 {
					c.Cleanup()
				}
			}
		}(g)
	}
	wg.Wait()
	if c.Len() != 20 {
		t.Errorf("Len() = %d, want 20", c.Len())
	}
}
