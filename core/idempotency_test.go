package core

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestIdempotencyCacheReplaySkipsProducer(t *testing.T) {
	cache := NewIdempotencyCache(0, nil)
	var calls int32

	producer := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "tx-1", nil
	}

	result, fromCache, err := cache.WithCache("bid", "k1", producer)
	if err != nil || fromCache || result != "tx-1" {
		t.Fatalf("unexpected first call: %v %v %v", result, fromCache, err)
	}

	result, fromCache, err = cache.WithCache("bid", "k1", producer)
	if err != nil || !fromCache || result != "tx-1" {
		t.Fatalf("unexpected replay: %v %v %v", result, fromCache, err)
	}
	if calls != 1 {
		t.Fatalf("expected producer called exactly once, got %d", calls)
	}
}

func TestIdempotencyCacheEmptyKeyNeverCaches(t *testing.T) {
	cache := NewIdempotencyCache(0, nil)
	var calls int32
	producer := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "tx", nil
	}
	cache.WithCache("bid", "", producer)
	cache.WithCache("bid", "", producer)
	if calls != 2 {
		t.Fatalf("expected producer called every time with empty key, got %d", calls)
	}
}

func TestIdempotencyCacheConcurrentCallersShareProducer(t *testing.T) {
	cache := NewIdempotencyCache(0, nil)
	var calls int32
	start := make(chan struct{})
	var wg sync.WaitGroup

	producer := func() (interface{}, error) {
		<-start
		atomic.AddInt32(&calls, 1)
		return "tx-concurrent", nil
	}

	results := make([]interface{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, _, _ := cache.WithCache("send_many", "shared-key", producer)
			results[i] = r
		}(i)
	}
	close(start)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected exactly one producer invocation, got %d", calls)
	}
	for _, r := range results {
		if r != "tx-concurrent" {
			t.Fatalf("expected every caller to get the shared result, got %v", r)
		}
	}
}

func TestIdempotencyCacheClear(t *testing.T) {
	cache := NewIdempotencyCache(0, nil)
	cache.WithCache("open", "k", func() (interface{}, error) { return "v", nil })
	cache.ClearCacheKey("open", "k")

	var calls int32
	cache.WithCache("open", "k", func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "v2", nil
	})
	if calls != 1 {
		t.Fatalf("expected producer to run again after ClearCacheKey")
	}
}
