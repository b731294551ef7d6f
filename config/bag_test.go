package config

import (
	"path/filepath"
	"testing"
)

func TestFileBagRoundTripsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	bag, err := NewFileBag(path)
	if err != nil {
		t.Fatalf("NewFileBag: %v", err)
	}
	if err := bag.Set("KeePassRPC.Key.alice", "deadbeef"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := NewFileBag(path)
	if err != nil {
		t.Fatalf("NewFileBag (reopen): %v", err)
	}
	v, ok := reopened.Get("KeePassRPC.Key.alice")
	if !ok || v != "deadbeef" {
		t.Errorf("Get after reopen = (%q, %v), want (\"deadbeef\", true)", v, ok)
	}
}

func TestFileBagMissingFileStartsEmpty(t *testing.T) {
	bag, err := NewFileBag(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("NewFileBag: %v", err)
	}
	if _, ok := bag.Get("anything"); ok {
		t.Error("expected no value for a fresh bag")
	}
}

func TestMemoryBagDoesNotPersist(t *testing.T) {
	bag := NewMemoryBag()
	if err := bag.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok := bag.Get("k")
	if !ok || v != "v" {
		t.Errorf("Get = (%q, %v), want (\"v\", true)", v, ok)
	}

	other := NewMemoryBag()
	if _, ok := other.Get("k"); ok {
		t.Error("a fresh MemoryBag must not see another instance's data")
	}
}
