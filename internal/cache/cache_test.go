package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestCache_PutGetWithTTL(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "test_cache.json")

	cache, err := New(cachePath)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	if err := cache.Put("price", 12.5, time.Hour); err != nil {
		t.Fatalf("Failed to put price: %v", err)
	}
	if err := cache.Put("doc", map[string]float64{"NM": 0.7}, 0); err != nil {
		t.Fatalf("Failed to put doc: %v", err)
	}

	var price float64
	found, err := cache.Get("price", &price)
	if err != nil || !found {
		t.Fatalf("Expected to find price, found=%v err=%v", found, err)
	}
	if price != 12.5 {
		t.Errorf("Expected 12.5, got %v", price)
	}

	var doc map[string]float64
	found, err = cache.Get("doc", &doc)
	if err != nil || !found {
		t.Fatalf("Expected to find doc, found=%v err=%v", found, err)
	}
	if doc["NM"] != 0.7 {
		t.Errorf("Expected 0.7, got %v", doc["NM"])
	}
}

func TestCache_TTLExpiration(t *testing.T) {
	cache, err := New(filepath.Join(t.TempDir(), "ttl.json"))
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	if err := cache.Put("short", "value", 10*time.Millisecond); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	var v string
	found, err := cache.Get("short", &v)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if found {
		t.Error("Expected expired entry to be missing")
	}
	if cache.Len() != 0 {
		t.Errorf("Expected expired entry to be dropped, have %d entries", cache.Len())
	}
}

func TestCache_Persistence(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "nested", "persist.json")

	c1, err := New(cachePath)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	if err := c1.Put(SettingsKey(), "saved", 0); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}

	c2, err := New(cachePath)
	if err != nil {
		t.Fatalf("Failed to reopen cache: %v", err)
	}
	var v string
	if found, _ := c2.Get(SettingsKey(), &v); !found || v != "saved" {
		t.Errorf("Expected persisted value, got %q found=%v", v, found)
	}
	if _, err := os.Stat(cachePath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should have been renamed away")
	}
}

func TestCache_Concurrent(t *testing.T) {
	cache, err := New(filepath.Join(t.TempDir(), "concurrent.json"))
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			if err := cache.Put(key, i, time.Hour); err != nil {
				t.Errorf("put %s: %v", key, err)
			}
			var got int
			if found, _ := cache.Get(key, &got); !found || got != i {
				t.Errorf("get %s: got %d found=%v", key, got, found)
			}
		}(i)
	}
	wg.Wait()

	if cache.Len() != 20 {
		t.Errorf("Expected 20 entries, got %d", cache.Len())
	}
}

func TestCache_ClearAndRemove(t *testing.T) {
	cache, err := New(filepath.Join(t.TempDir(), "clear.json"))
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	_ = cache.Put("a", 1, 0)
	_ = cache.Put("b", 2, 0)

	if err := cache.Remove("a"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	var v int
	if found, _ := cache.Get("a", &v); found {
		t.Error("a should be removed")
	}
	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("Expected empty cache, got %d", cache.Len())
	}
}

func TestCache_CorruptedFile(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "corrupt.json")
	if err := os.WriteFile(cachePath, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	cache, err := New(cachePath)
	if err != nil {
		t.Fatalf("Corrupt cache should be ignored, got %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("Expected empty cache, got %d", cache.Len())
	}
}

func TestKeys(t *testing.T) {
	if got := MarketPriceKey("tcg", "base1-4", "holofoil"); got != "mp|tcg|base1-4|holofoil" {
		t.Errorf("unexpected key %q", got)
	}
	if got := SettingsKey(); got != "settings|pricing" {
		t.Errorf("unexpected key %q", got)
	}
}
