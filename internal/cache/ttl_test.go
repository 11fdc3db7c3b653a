package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestTTL_FreshAndStale(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c, err := New[int, string](time.Hour, 0, WithClock(clk.Now))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c.Set(2024, "a")
	if v, ok := c.Get(2024); !ok || v != "a" {
		t.Fatalf("fresh get = %q,%v", v, ok)
	}
	clk.Advance(59 * time.Minute)
	if _, ok := c.Get(2024); !ok {
		t.Fatal("entry should still be fresh")
	}
	clk.Advance(time.Minute)
	if _, ok := c.Get(2024); ok {
		t.Fatal("entry at exactly TTL should be stale")
	}
	if v, ok := c.Peek(2024); !ok || v != "a" {
		t.Fatalf("peek should return stale entry, got %q,%v", v, ok)
	}
	c.Set(2024, "b")
	if v, ok := c.Get(2024); !ok || v != "b" {
		t.Fatalf("overwrite should refresh, got %q,%v", v, ok)
	}
}

func TestTTL_MissAndPurge(t *testing.T) {
	c, _ := New[string, int](time.Minute, 2)
	if _, ok := c.Get("x"); ok {
		t.Fatal("unexpected hit")
	}
	if _, ok := c.Peek("x"); ok {
		t.Fatal("unexpected peek hit")
	}
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	if c.Len() != 2 {
		t.Fatalf("len = %d, want bounded 2", c.Len())
	}
	if _, ok := c.Peek("a"); ok {
		t.Fatal("oldest entry should be evicted")
	}
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("len after purge = %d", c.Len())
	}
}

func TestTTL_Concurrent(t *testing.T) {
	c, _ := New[int, int](time.Minute, 0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(j, i)
				c.Get(j)
				c.Peek(j)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 100 {
		t.Fatalf("len = %d, want 100", c.Len())
	}
}
