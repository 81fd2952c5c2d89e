package cache

import (
	"testing"
	"time"

	"previsioni/internal/core"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[float64](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("a = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[float64](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be expired")
	}
	if removed := c.CleanExpired(); removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1", removed)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCache_ZeroTTLNeverExpires(t *testing.T) {
	now := time.Now()
	c := NewLRUCache[float64](10, 0)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	now = now.Add(24 * time.Hour)
	if _, ok := c.Get("a"); !ok {
		t.Error("entry should not expire with zero ttl")
	}
}

func TestLRUCache_PurgeAndStats(t *testing.T) {
	c := NewLRUCache[float64](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Get("missing")

	if n := c.Purge(); n != 2 {
		t.Errorf("Purge() = %d, want 2", n)
	}
	stats := c.Stats()
	if stats.Size != 0 || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
	c.Set("c", 3)
	if _, ok := c.Get("c"); !ok {
		t.Error("cache unusable after purge")
	}
}

func TestManager_StartStop(t *testing.T) {
	c := NewLRUCache[float64](10, time.Nanosecond)
	c.Set("a", 1)

	m := NewManager(nil)
	m.Register(c)
	m.StartCleanup(time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for c.Size() > 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	m.Stop()

	if c.Size() != 0 {
		t.Errorf("expected expired entry to be cleaned, size = %d", c.Size())
	}
}

func TestPredictionKey(t *testing.T) {
	a := PredictionKey("u1", core.Features{"x": core.Float(1), "y": nil})
	b := PredictionKey("u1", core.Features{"y": nil, "x": core.Float(1)})
	if a != b {
		t.Errorf("key depends on map order: %q vs %q", a, b)
	}
	if a == PredictionKey("u1", core.Features{"x": core.Float(1), "y": core.Float(0)}) {
		t.Error("nil and zero must produce different keys")
	}
	if PredictionKey("u1", nil) == PredictionKey("u2", nil) {
		t.Error("users must produce different keys")
	}
}
