package cache_test

import (
	"sync"
	"testing"

	"objectstore/cache"
)

func TestMappingCacheGetSet(t *testing.T) {
	c := cache.NewMappingCache()
	key := cache.MappingKey{ClientID: "c1", NamespaceID: "n1"}

	if _, ok := c.Get(key); ok {
		t.Fatalf("Get on empty cache returned a hit")
	}

	c.Set(key, "abc123")
	got, ok := c.Get(key)
	if !ok || got != "abc123" {
		t.Fatalf("Get() = (%q, %v), want (\"abc123\", true)", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

// TestMappingCacheLockSerializesSameKey exercises the per-key striped lock
// used to serialize concurrent first-time resolves within one process
// (spec.md §5): two goroutines racing to provision the same key must not
// interleave inside the critical section.
func TestMappingCacheLockSerializesSameKey(t *testing.T) {
	c := cache.NewMappingCache()
	key := cache.MappingKey{ClientID: "c1", NamespaceID: "n1"}

	var active int32
	var maxActive int32
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := c.Lock(key)
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive > 1 {
		t.Errorf("max concurrent holders of the same key's lock = %d, want 1", maxActive)
	}
}

// TestMappingCacheLockIndependentKeys locks and sets ten distinct keys from
// concurrent goroutines and checks that every one lands in the cache.
func TestMappingCacheLockIndependentKeys(t *testing.T) {
	c := cache.NewMappingCache()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := cache.MappingKey{ClientID: "c1", NamespaceID: string(rune('a' + n))}
			unlock := c.Lock(key)
			defer unlock()
			c.Set(key, "suffix")
		}(i)
	}
	wg.Wait()

	if c.Len() != 10 {
		t.Errorf("Len() = %d, want 10", c.Len())
	}
}
