package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func TestBoltStoreMarksAndExpiresSpots(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		SpotTTL:         1 * time.Second,
		CleanupInterval: 1 * time.Second,
	}

	storeRaw, err := openBolt(filepath.Join(dir, "spots.db"), opts)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	key := SpotKey("e6a", 1187)
	seen, err := store.SeenSpots([]string{key})
	if err != nil || seen[key] {
		t.Fatalf("expected unseen spot, seen=%v err=%v", seen, err)
	}

	if err := store.MarkSpots([]string{key}); err != nil {
		t.Fatalf("MarkSpots: %v", err)
	}

	seen, err = store.SeenSpots([]string{key, SpotKey("e6a", 2043)})
	if err != nil || !seen[key] {
		t.Fatalf("expected spot marked as seen, got seen=%v err=%v", seen, err)
	}
	if seen[SpotKey("e6a", 2043)] {
		t.Fatalf("unmarked spot reported as seen")
	}

	// Fast-forward cleanup cadence and trigger expiry.
	store.lastCleanup.Store(time.Now().Add(-2 * time.Second).Unix())
	time.Sleep(1100 * time.Millisecond)

	seen, err = store.SeenSpots([]string{key})
	if err != nil {
		t.Fatalf("SeenSpots after expiry: %v", err)
	}
	if seen[key] {
		t.Fatalf("expected entry to expire and be removed")
	}
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "spots.db")
	store, err := NewStore("bbolt", path, Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.MarkSpots([]string{"q:1"}); err != nil {
		t.Fatalf("MarkSpots: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store, err = NewStore("bbolt", path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	seen, err := store.SeenSpots([]string{"q:1"})
	if err != nil || !seen["q:1"] {
		t.Fatalf("expected persisted key, seen=%v err=%v", seen, err)
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.MarkSpots([]string{"x"}); err != nil {
		t.Fatalf("noop store MarkSpots: %v", err)
	}
	seen, err := store.SeenSpots([]string{"x"})
	if err != nil || seen["x"] {
		t.Fatalf("noop store must never report seen, got %v %v", seen, err)
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("redis", "", Options{}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected error for missing bbolt path")
	}
}

func TestSpotKey(t *testing.T) {
	if got := SpotKey(" e6a ", 12); got != "e6a:12" {
		t.Fatalf("SpotKey = %q", got)
	}
}
