package core

import (
	"context"
	"testing"
)

type stubKeys struct{}

func (stubKeys) PubKeyAt(idx uint32) ([]byte, error) {
	return []byte{byte(idx), byte(idx >> 8)}, nil
}

type stubAddrs struct{ next Address }

func (s *stubAddrs) NextReceiveAddress(account uint32) (Address, error) {
	s.next[0]++
	return s.next, nil
}

func newTestEngine(t *testing.T) (*NameEngine, *ChainStub, *CoinIndex) {
	t.Helper()
	chain := NewChainStub()
	coins := NewCoinIndex(nil)
	blinds, err := NewBlindStore(NewMemStore(), nil)
	if err != nil {
		t.Fatalf("new blind store: %v", err)
	}
	engine := NewNameEngine(chain, coins, blinds, &stubAddrs{}, stubKeys{}, nil)
	return engine, chain, coins
}

func TestNameEngineOpen(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	b, err := engine.Open(context.Background(), "example", 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(b.Outputs) != 1 || b.Outputs[0].Covenant.Type != CovenantOpen {
		t.Fatalf("unexpected builder: %+v", b)
	}
	if _, err := engine.Open(context.Background(), "example", 0); err != ErrAlreadyOpening {
		t.Fatalf("expected ErrAlreadyOpening, got %v", err)
	}
}

func TestNameEngineBidRequiresBiddingState(t *testing.T) {
	engine, chain, _ := newTestEngine(t)
	nameHash := NameHash("example")
	chain.PutNameState(&NameState{NameHash: nameHash, Height: 0})
	chain.SetHeight(0)

	if _, err := engine.Bid(context.Background(), "example", 100, 200, 0, Address{1}); err == nil {
		t.Fatalf("expected wrong-state error while still opening")
	}

	chain.SetHeight(TreeInterval)
	b, err := engine.Bid(context.Background(), "example", 100, 200, 0, Address{1})
	if err != nil {
		t.Fatalf("bid: %v", err)
	}
	if b.Outputs[0].Value != 200 || b.Outputs[0].Covenant.Type != CovenantBid {
		t.Fatalf("unexpected builder: %+v", b)
	}

	if _, err := engine.Bid(context.Background(), "example", 300, 200, 0, Address{1}); err != ErrBidExceedsLockup {
		t.Fatalf("expected ErrBidExceedsLockup, got %v", err)
	}
}

func TestNameEngineRevealResolvesBlind(t *testing.T) {
	engine, chain, coins := newTestEngine(t)
	nameHash := NameHash("example")
	epoch := uint32(1000)
	chain.PutNameState(&NameState{NameHash: nameHash, Height: epoch})
	biddingEnd := epoch + TreeInterval + BiddingPeriod
	chain.SetHeight(biddingEnd) // places h = biddingEnd+1 into REVEAL

	addr := Address{9}
	nonce, err := DeriveNonce(addr, 500, nameHash, stubKeys{})
	if err != nil {
		t.Fatalf("derive nonce: %v", err)
	}
	blind := DeriveBlind(500, nonce)
	if err := engine.blinds.Put(blind, BlindRecord{Value: 500, Nonce: nonce}); err != nil {
		t.Fatalf("put blind: %v", err)
	}

	bidOutpoint := Outpoint{Hash: Hash{1}, Index: 0}
	coins.LoadAll([]Credit{{
		Coin: Coin{
			Outpoint:    bidOutpoint,
			Value:       700,
			Covenant:    NewBidCovenant(nameHash, epoch, "example", blind),
			Address:     addr,
			BlockHeight: epoch + 1,
		},
		Own:     true,
		Account: 0,
	}})

	b, err := engine.Reveal(context.Background(), "example", 0)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if len(b.Outputs) != 1 || b.Outputs[0].Value != 500 {
		t.Fatalf("unexpected reveal builder: %+v", b)
	}
	if len(b.PreInputs) != 1 || b.PreInputs[0].Outpoint != bidOutpoint {
		t.Fatalf("expected reveal to spend the bid outpoint, got %+v", b.PreInputs)
	}
}

func TestNameEngineRegisterThenUpdateThenRenew(t *testing.T) {
	engine, chain, coins := newTestEngine(t)
	nameHash := NameHash("example")
	epoch := uint32(500)
	revealOutpoint := Outpoint{Hash: Hash{2}, Index: 0}
	addr := Address{3}

	ns := &NameState{NameHash: nameHash, Height: epoch, Owner: revealOutpoint, HasOwner: true, Value: 1_000, Renewal: epoch}
	chain.PutNameState(ns)
	chain.SetHeight(epoch + 10)

	coins.LoadAll([]Credit{{
		Coin: Coin{
			Outpoint:    revealOutpoint,
			Value:       1_000,
			Covenant:    NewRevealCovenant(nameHash, epoch, Hash{4}),
			Address:     addr,
			BlockHeight: epoch + 1,
		},
		Own: true,
	}})

	regBuilder, err := engine.Update(context.Background(), "example", []byte("a=1.2.3.4"), 0)
	if err != nil {
		t.Fatalf("update(register) : %v", err)
	}
	if regBuilder.Action != CovenantRegister {
		t.Fatalf("expected register builder, got action %v", regBuilder.Action)
	}

	registerOutpoint := Outpoint{Hash: Hash{5}, Index: 0}
	ns.Owner = registerOutpoint
	chain.PutNameState(ns)
	coins.LoadAll([]Credit{{
		Coin: Coin{
			Outpoint:    registerOutpoint,
			Value:       1_000,
			Covenant:    NewRegisterCovenant(nameHash, epoch, []byte("a=1.2.3.4"), Hash{}),
			Address:     addr,
			BlockHeight: epoch + 1,
		},
		Own: true,
	}})

	updBuilder, err := engine.Update(context.Background(), "example", []byte("a=5.6.7.8"), 0)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updBuilder.Action != CovenantUpdate {
		t.Fatalf("expected update builder, got %v", updBuilder.Action)
	}

	if _, err := engine.Renew(context.Background(), "example", 0); err != ErrNotYetMature {
		t.Fatalf("expected ErrNotYetMature before renewal window, got %v", err)
	}

	chain.SetHeight(epoch + TreeInterval + 1)
	renewBuilder, err := engine.Renew(context.Background(), "example", 0)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if renewBuilder.Action != CovenantRenew {
		t.Fatalf("expected renew builder, got %v", renewBuilder.Action)
	}
}

func TestNameEngineTransferCancelFinalize(t *testing.T) {
	engine, chain, coins := newTestEngine(t)
	nameHash := NameHash("example")
	epoch := uint32(100)
	ownerOutpoint := Outpoint{Hash: Hash{6}, Index: 0}
	addr := Address{7}
	target := Address{8}

	ns := &NameState{NameHash: nameHash, Height: epoch, Owner: ownerOutpoint, HasOwner: true, Value: 2_000, Renewal: epoch}
	chain.PutNameState(ns)
	chain.SetHeight(epoch + 1)
	coins.LoadAll([]Credit{{
		Coin: Coin{
			Outpoint:    ownerOutpoint,
			Value:       2_000,
			Covenant:    NewRegisterCovenant(nameHash, epoch, nil, Hash{}),
			Address:     addr,
			BlockHeight: epoch + 1,
		},
		Own: true,
	}})

	transferBuilder, err := engine.Transfer(context.Background(), "example", 0, target, 0)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	transferOutpoint := Outpoint{Hash: Hash{9}, Index: 0}
	ns.Owner = transferOutpoint
	chain.PutNameState(ns)
	coins.LoadAll([]Credit{{
		Coin: Coin{
			Outpoint:    transferOutpoint,
			Value:       2_000,
			Covenant:    transferBuilder.Outputs[0].Covenant,
			Address:     addr,
			BlockHeight: epoch + 1,
		},
		Own: true,
	}})

	if _, err := engine.Finalize(context.Background(), "example", 0); err != ErrTransferStillLocked {
		t.Fatalf("expected ErrTransferStillLocked, got %v", err)
	}

	cancelBuilder, err := engine.Cancel(context.Background(), "example", 0)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelBuilder.Action != CovenantUpdate || !cancelBuilder.Outputs[0].Covenant.IsCancel() {
		t.Fatalf("expected cancel-shaped update builder, got %+v", cancelBuilder)
	}

	chain.SetHeight(epoch + 1 + TransferLockup)
	finalizeBuilder, err := engine.Finalize(context.Background(), "example", 0)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if finalizeBuilder.Outputs[0].Address != target {
		t.Fatalf("expected finalize output to move to target address, got %v", finalizeBuilder.Outputs[0].Address)
	}
}

func TestNameEngineRevoke(t *testing.T) {
	engine, chain, coins := newTestEngine(t)
	nameHash := NameHash("example")
	epoch := uint32(50)
	ownerOutpoint := Outpoint{Hash: Hash{10}, Index: 0}
	addr := Address{11}

	ns := &NameState{NameHash: nameHash, Height: epoch, Owner: ownerOutpoint, HasOwner: true, Value: 500, Renewal: epoch}
	chain.PutNameState(ns)
	chain.SetHeight(epoch + 1)
	coins.LoadAll([]Credit{{
		Coin: Coin{
			Outpoint:    ownerOutpoint,
			Value:       500,
			Covenant:    NewRegisterCovenant(nameHash, epoch, nil, Hash{}),
			Address:     addr,
			BlockHeight: epoch + 1,
		},
		Own: true,
	}})

	b, err := engine.Revoke(context.Background(), "example", 0)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if b.Action != CovenantRevoke || b.Outputs[0].Value != 0 {
		t.Fatalf("unexpected revoke builder: %+v", b)
	}
}
