package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	if err := mc.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := mc.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q, want v", got)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	mc := NewMemoryCache()
	if _, err := mc.Get(context.Background(), "absent"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	if err := mc.Set(ctx, "k", []byte("v"), 20*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := mc.Get(ctx, "k"); err != nil {
		t.Fatalf("fresh read should hit: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if _, err := mc.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss after ttl, got %v", err)
	}

	// entry is dropped on the expired read
	ok, err := mc.Exists(ctx, "k")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatalf("entry should be gone after expired read")
	}
}

func TestMemoryCacheZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	if err := mc.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := mc.Get(ctx, "k"); err != nil {
		t.Fatalf("zero-ttl entry should persist: %v", err)
	}
}

func TestMemoryCacheConcurrent(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n%4)
			for j := 0; j < 100; j++ {
				_ = mc.Set(ctx, key, []byte("v"), time.Minute)
				_, _ = mc.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()
}

func TestMemoryCacheExpiredReadKeepsRefreshedEntry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	// Readers racing the lazy delete against a Set that refreshes the key.
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_, _ = mc.Get(ctx, "k")
			}
		}
	}()

	for i := 0; i < 500; i++ {
		_ = mc.Set(ctx, "k", []byte("stale"), time.Nanosecond)
		_ = mc.Set(ctx, "k", []byte("fresh"), time.Hour)
		got, err := mc.Get(ctx, "k")
		if err != nil {
			t.Fatalf("iteration %d: refreshed entry was dropped: %v", i, err)
		}
		if string(got) != "fresh" {
			t.Fatalf("iteration %d: got %q, want fresh", i, got)
		}
	}
	close(stop)
	wg.Wait()
}

func TestGetTyped(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	type payload struct {
		Price float64 `json:"price"`
	}
	if err := SetTyped(ctx, mc, "p", payload{Price: 3500.25}, time.Minute); err != nil {
		t.Fatalf("set typed: %v", err)
	}
	got, err := GetTyped[payload](ctx, mc, "p")
	if err != nil {
		t.Fatalf("get typed: %v", err)
	}
	if got.Price != 3500.25 {
		t.Fatalf("got %v, want 3500.25", got.Price)
	}
}
