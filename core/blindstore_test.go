package core

import "testing"

func TestBlindStorePutGetRoundTrip(t *testing.T) {
	store := NewMemStore()
	bs, err := NewBlindStore(store, nil)
	if err != nil {
		t.Fatalf("NewBlindStore: %v", err)
	}

	var blind Hash
	blind[0] = 0xAB
	var nonce Hash
	nonce[0] = 0xCD
	rec := BlindRecord{Value: 5_000_000, Nonce: nonce}

	if err := bs.Put(blind, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := bs.Get(blind)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Value != rec.Value || got.Nonce != rec.Nonce {
		t.Fatalf("round trip mismatch: want %+v got %+v", rec, got)
	}
}

func TestBlindStoreGetMissingReturnsErrBlindNotFound(t *testing.T) {
	store := NewMemStore()
	bs, err := NewBlindStore(store, nil)
	if err != nil {
		t.Fatalf("NewBlindStore: %v", err)
	}

	var blind Hash
	blind[0] = 0xFF
	if _, err := bs.Get(blind); err != ErrBlindNotFound {
		t.Fatalf("expected ErrBlindNotFound, got %v", err)
	}
}

func TestBlindStorePutPersistsRecordToStore(t *testing.T) {
	store := NewMemStore()
	bs, err := NewBlindStore(store, nil)
	if err != nil {
		t.Fatalf("NewBlindStore: %v", err)
	}

	var blind Hash
	blind[0] = 0x01
	rec := BlindRecord{Value: 42}
	if err := bs.Put(blind, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	raw, ok, err := store.Get(blindKey(blind))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected blind key persisted")
	}
	decoded, err := decodeBlindRecord(raw)
	if err != nil {
		t.Fatalf("decodeBlindRecord: %v", err)
	}
	if decoded.Value != rec.Value {
		t.Fatalf("persisted record mismatch: want %d got %d", rec.Value, decoded.Value)
	}
}

func TestBlindStoreReloadsFromPersistentStoreAfterColdCache(t *testing.T) {
	store := NewMemStore()
	bs1, err := NewBlindStore(store, nil)
	if err != nil {
		t.Fatalf("NewBlindStore: %v", err)
	}
	var blind Hash
	blind[0] = 0x02
	rec := BlindRecord{Value: 7}
	if err := bs1.Put(blind, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	bs2, err := NewBlindStore(store, nil)
	if err != nil {
		t.Fatalf("NewBlindStore: %v", err)
	}
	got, err := bs2.Get(blind)
	if err != nil {
		t.Fatalf("Get on fresh store-backed BlindStore: %v", err)
	}
	if got.Value != rec.Value {
		t.Fatalf("reload mismatch: want %d got %d", rec.Value, got.Value)
	}
}

func TestDecodeBlindRecordRejectsBadLength(t *testing.T) {
	if _, err := decodeBlindRecord([]byte{1, 2, 3}); err != ErrBadType {
		t.Fatalf("expected ErrBadType, got %v", err)
	}
}
