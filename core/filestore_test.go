package core

import (
	"path/filepath"
	"testing"

	"github.com/namebasehq/hsd/internal/testutil"
)

// Exercises the file-backed persistence path (SaveTo/LoadFileStore,
// BlindStore, LoadCoinIndexFromStore) against a real temp directory instead
// of an in-memory store, the way a wallet process restart actually reloads
// state from disk.
func TestFileBackedStoreSurvivesReload(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	defer sb.Cleanup()

	storePath := sb.Path(filepath.Join("wallet", "coins.json"))

	store, err := LoadFileStore(storePath)
	if err != nil {
		t.Fatalf("LoadFileStore (fresh): %v", err)
	}

	bs, err := NewBlindStore(store, nil)
	if err != nil {
		t.Fatalf("NewBlindStore: %v", err)
	}
	var blind Hash
	blind[0] = 0x42
	rec := BlindRecord{Value: 12_345, Nonce: Hash{0x7}}
	if err := bs.Put(blind, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ci := NewCoinIndex(nil)
	c := sampleCredit(0x55, 0, 1)
	b := ci.Batch()
	b.PutCredit(c)
	if err := b.Persist(store); err != nil {
		t.Fatalf("persist credit: %v", err)
	}

	if err := store.SaveTo(storePath); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	reloaded, err := LoadFileStore(storePath)
	if err != nil {
		t.Fatalf("LoadFileStore (reload): %v", err)
	}

	bs2, err := NewBlindStore(reloaded, nil)
	if err != nil {
		t.Fatalf("NewBlindStore (reload): %v", err)
	}
	got, err := bs2.Get(blind)
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if got.Value != rec.Value {
		t.Fatalf("blind record lost across reload: want %d got %d", rec.Value, got.Value)
	}

	ci2, err := LoadCoinIndexFromStore(reloaded, nil)
	if err != nil {
		t.Fatalf("LoadCoinIndexFromStore after reload: %v", err)
	}
	if !ci2.HasCoin(c.Coin.Outpoint.Hash, 0) {
		t.Fatalf("expected credit to survive reload")
	}
}
