package core

import "testing"

func newTestWallet(t *testing.T) *HDWallet {
	t.Helper()
	w, _, err := NewRandomWallet(128)
	if err != nil {
		t.Fatalf("new random wallet: %v", err)
	}
	return w
}

func TestHDWalletDerivationIsDeterministic(t *testing.T) {
	w := newTestWallet(t)
	a1, err := w.NewAddress(0, 5)
	if err != nil {
		t.Fatalf("new address: %v", err)
	}
	a2, err := w.NewAddress(0, 5)
	if err != nil {
		t.Fatalf("new address: %v", err)
	}
	if a1 != a2 {
		t.Fatalf("expected deterministic derivation, got %v != %v", a1, a2)
	}

	a3, err := w.NewAddress(0, 6)
	if err != nil {
		t.Fatalf("new address: %v", err)
	}
	if a1 == a3 {
		t.Fatalf("expected different indices to derive different addresses")
	}
}

func TestHDWalletReceiveAndChangeChainsDisjoint(t *testing.T) {
	w := newTestWallet(t)
	receive, err := w.NextReceiveAddress(0)
	if err != nil {
		t.Fatalf("next receive: %v", err)
	}
	change, err := w.NextChangeAddress(0)
	if err != nil {
		t.Fatalf("next change: %v", err)
	}
	if receive == change {
		t.Fatalf("expected receive and change chains to never collide")
	}

	account, index, ok := w.LocateKey(receive)
	if !ok || account != 0 || index != 0 {
		t.Fatalf("expected to locate receive address at (0,0), got (%d,%d,%v)", account, index, ok)
	}
	_, changeIdx, ok := w.LocateKey(change)
	if !ok || changeIdx&changeIndexBit == 0 {
		t.Fatalf("expected change index to carry changeIndexBit, got %d", changeIdx)
	}
}

func TestHDWalletSignDigestRoundTrips(t *testing.T) {
	w := newTestWallet(t)
	digest := Hash{1, 2, 3}
	sig, err := w.SignDigest(digest, 0, 0)
	if err != nil {
		t.Fatalf("sign digest: %v", err)
	}
	if len(sig) != 96 {
		t.Fatalf("expected 96-byte witness, got %d", len(sig))
	}
}

func TestWatchOnlyWalletRejectsSigning(t *testing.T) {
	var w WatchOnlyWallet
	if !w.WatchOnly() {
		t.Fatalf("expected WatchOnly() to be true")
	}
	if _, err := w.SignDigest(Hash{}, 0, 0); err != ErrCannotSignWatchOnly {
		t.Fatalf("expected ErrCannotSignWatchOnly, got %v", err)
	}
}

func TestHDWalletIndexSnapshotRoundTrip(t *testing.T) {
	w := newTestWallet(t)
	receive, err := w.NextReceiveAddress(1)
	if err != nil {
		t.Fatalf("next receive: %v", err)
	}
	change, err := w.NextChangeAddress(1)
	if err != nil {
		t.Fatalf("next change: %v", err)
	}
	snap := w.IndexSnapshot()

	w2 := newTestWallet(t)
	if err := w2.RestoreIndex(snap); err != nil {
		t.Fatalf("restore index: %v", err)
	}

	account, index, ok := w2.LocateKey(receive)
	if !ok || account != 1 || index != 0 {
		t.Fatalf("expected restored wallet to locate receive address at (1,0), got (%d,%d,%v)", account, index, ok)
	}
	_, changeIdx, ok := w2.LocateKey(change)
	if !ok || changeIdx&changeIndexBit == 0 {
		t.Fatalf("expected restored wallet to locate change address with changeIndexBit set")
	}

	next, err := w2.NextReceiveAddress(1)
	if err != nil {
		t.Fatalf("next receive after restore: %v", err)
	}
	if next == receive {
		t.Fatalf("expected restored wallet to resume issuing addresses after the snapshot's next index")
	}
}
