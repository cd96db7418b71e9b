package docstore

import (
	"sync"
	"testing"

	"docselect/internal/bucket"
)

func TestConditionCache(t *testing.T) {
	c := newConditionCache(testRegistry(t), bucket.NewFactory())

	first, err := c.get("music.year > 2000")
	if err != nil {
		t.Fatal(err)
	}
	again, err := c.get("music.year > 2000")
	if err != nil {
		t.Fatal(err)
	}
	if first != again {
		t.Error("repeated condition was parsed again")
	}

	if _, err := c.get("music.nope > 1"); err == nil {
		t.Error("condition on unknown field accepted")
	}
	if c.cache.Contains("music.nope > 1") {
		t.Error("failed parse was cached")
	}
}

func TestConditionCacheConcurrent(t *testing.T) {
	c := newConditionCache(testRegistry(t), bucket.NewFactory())

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			if _, err := c.get(`music.title = "a*"`); err != nil {
				t.Error(err)
			}
		})
	}
	wg.Wait()
	if c.cache.Len() != 1 {
		t.Errorf("cache holds %d entries, want 1", c.cache.Len())
	}
}
