package cache

import (
	"testing"
	"time"
)

func TestCacheMissWhenEmpty(t *testing.T) {
	c := New[string](time.Minute)
	if _, ok := c.Get(); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestCacheHitBeforeExpiry(t *testing.T) {
	c := New[int](time.Minute)
	c.Set(42)
	got, ok := c.Get()
	if !ok {
		t.Fatal("expected hit")
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	c := New[int](time.Millisecond)
	c.Set(1)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get(); ok {
		t.Fatal("expected miss after TTL elapsed")
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("x")
	c.Invalidate()
	if _, ok := c.Get(); ok {
		t.Fatal("expected miss after invalidate")
	}
}
