package memory

import (
	"testing"
	"time"

	memorymodel "github.com/auralabs/aura/backend/internal/model/memory"
)

func TestCacheHitBeforeTTL(t *testing.T) {
	now := time.Now()
	cache := NewCache(10 * time.Minute)
	cache.now = func() time.Time { return now }

	key := memorymodel.Key{UserID: "u1", Topic: "Study"}
	cache.Put(key, memorymodel.Record{UserID: "u1", Topic: "Study", Summary: "studies math"})

	now = now.Add(10*time.Minute - time.Second)
	rec, ok := cache.Get(key)
	if !ok {
		t.Fatal("expected cache hit just before TTL")
	}
	if rec.Summary != "studies math" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestCacheMissAtTTL(t *testing.T) {
	now := time.Now()
	cache := NewCache(10 * time.Minute)
	cache.now = func() time.Time { return now }

	key := memorymodel.Key{UserID: "u1", Topic: "Study"}
	cache.Put(key, memorymodel.Record{UserID: "u1", Topic: "Study"})

	now = now.Add(10 * time.Minute)
	if _, ok := cache.Get(key); ok {
		t.Fatal("expected cache miss at exactly TTL")
	}
	if cache.Len() != 0 {
		t.Fatalf("expired entry should be dropped, len=%d", cache.Len())
	}
}

func TestCacheLastWriteWins(t *testing.T) {
	cache := NewCache(time.Minute)
	key := memorymodel.Key{UserID: "u1", Topic: "General"}

	cache.Put(key, memorymodel.Record{UserID: "u1", Topic: "General", Summary: "first"})
	cache.Put(key, memorymodel.Record{UserID: "u1", Topic: "General", Summary: "second"})

	rec, ok := cache.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if rec.Summary != "second" {
		t.Fatalf("expected last write to win, got %q", rec.Summary)
	}
}

func TestCacheSweep(t *testing.T) {
	now := time.Now()
	cache := NewCache(time.Minute)
	cache.now = func() time.Time { return now }

	cache.Put(memorymodel.Key{UserID: "u1", Topic: "Study"}, memorymodel.Record{})
	now = now.Add(2 * time.Minute)
	cache.Put(memorymodel.Key{UserID: "u2", Topic: "Study"}, memorymodel.Record{})

	if removed := cache.Sweep(); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if cache.Len() != 1 {
		t.Fatalf("unexpected len after sweep: %d", cache.Len())
	}
}

func TestCacheKeyIsolation(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Put(memorymodel.Key{UserID: "u1", Topic: "Study"}, memorymodel.Record{Summary: "study"})

	if _, ok := cache.Get(memorymodel.Key{UserID: "u1", Topic: "General"}); ok {
		t.Fatal("different topic must not hit the same entry")
	}
	if _, ok := cache.Get(memorymodel.Key{UserID: "u2", Topic: "Study"}); ok {
		t.Fatal("different user must not hit the same entry")
	}
}
