package core

import (
	"context"
	"testing"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *ChainStub, *CoinIndex, *HDWallet) {
	t.Helper()
	chain := NewChainStub()
	coins := NewCoinIndex(nil)
	blinds, err := NewBlindStore(NewMemStore(), nil)
	if err != nil {
		t.Fatalf("new blind store: %v", err)
	}
	wallet, _, err := NewRandomWallet(128)
	if err != nil {
		t.Fatalf("new random wallet: %v", err)
	}

	engine := NewNameEngine(chain, coins, blinds, wallet, wallet, nil)
	locks := NewLockManager(nil)
	funder := NewFunder(coins, locks, chain, wallet, nil)
	planner := NewBatchPlanner(0)
	idem := NewIdempotencyCache(0, nil)
	store := NewMemStore()

	d := NewDispatcher(engine, funder, planner, locks, idem, coins, chain, wallet, wallet, store, nil)
	return d, chain, coins, wallet
}

// fundWallet gives account a single large confirmed credit so Funder always
// has something to select from.
func fundWallet(t *testing.T, coins *CoinIndex, wallet *HDWallet, account uint32, value uint64, seed byte) Outpoint {
	t.Helper()
	addr, err := wallet.NextReceiveAddress(account)
	if err != nil {
		t.Fatalf("next receive address: %v", err)
	}
	op := Outpoint{Hash: Hash{seed}, Index: 0}
	coins.LoadAll([]Credit{{
		Coin:    Coin{Outpoint: op, Value: value, Address: addr, BlockHeight: 1},
		Own:     true,
		Account: account,
	}})
	return op
}

func TestDispatcherOpenBroadcastsAndBooksCredits(t *testing.T) {
	d, chain, coins, wallet := newTestDispatcher(t)
	fundWallet(t, coins, wallet, 0, 1_000_000, 1)
	chain.SetHeight(0)

	req := ActionRequest{IdempotencyKey: "open-example", Fund: FundOptions{Account: 0, Sort: true}}
	res, err := d.Open(context.Background(), "example", 0, req)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(chain.Sent()) != 1 {
		t.Fatalf("expected exactly one broadcast transaction, got %d", len(chain.Sent()))
	}
	for _, in := range res.Tx.Inputs {
		if len(in.Witness) != 1 || len(in.Witness[0]) != 96 {
			t.Fatalf("expected every input signed with a 96-byte witness, got %+v", in.Witness)
		}
	}

	funding, ok := coins.GetCredit(Hash{1}, 0)
	if !ok || !funding.Spent {
		t.Fatalf("expected funding credit marked spent, got %+v ok=%v", funding, ok)
	}

	// replay with the same idempotency key must not broadcast again
	res2, err := d.Open(context.Background(), "example", 0, req)
	if err != nil {
		t.Fatalf("replayed open: %v", err)
	}
	if res2.Hash != res.Hash {
		t.Fatalf("expected replayed result to match original, got %v != %v", res2.Hash, res.Hash)
	}
	if len(chain.Sent()) != 1 {
		t.Fatalf("expected replay to skip broadcasting, still have %d sent", len(chain.Sent()))
	}
}

func TestDispatcherBidThenReveal(t *testing.T) {
	d, chain, coins, wallet := newTestDispatcher(t)
	fundWallet(t, coins, wallet, 0, 1_000_000, 3)

	nameHash := NameHash("auctioned")
	chain.PutNameState(&NameState{NameHash: nameHash, Height: 0})
	chain.SetHeight(TreeInterval) // inside the bidding window

	bidAddr, err := wallet.NextReceiveAddress(0)
	if err != nil {
		t.Fatalf("next receive address: %v", err)
	}

	bidReq := ActionRequest{IdempotencyKey: "bid-auctioned", Fund: FundOptions{Account: 0}}
	bidRes, err := d.Bid(context.Background(), "auctioned", 500, 600, 0, bidAddr, bidReq)
	if err != nil {
		t.Fatalf("bid: %v", err)
	}

	// simulate the bid confirming on chain so reveal's maturity check passes
	bidOutpoint := Outpoint{Hash: bidRes.Hash, Index: 0}
	confirmed, ok := coins.GetCredit(bidOutpoint.Hash, bidOutpoint.Index)
	if !ok {
		t.Fatalf("expected bid output booked as an owned credit")
	}
	confirmed.Coin.BlockHeight = 1
	batch := coins.Batch()
	batch.PutCredit(confirmed)
	batch.Commit()

	chain.SetHeight(TreeInterval + BiddingPeriod) // inside the reveal window

	revealReq := ActionRequest{IdempotencyKey: "reveal-auctioned", Fund: FundOptions{Account: 0}}
	revealRes, err := d.Reveal(context.Background(), "auctioned", 0, revealReq)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if len(revealRes.Tx.Outputs) == 0 || revealRes.Tx.Outputs[0].Covenant.Type != CovenantReveal {
		t.Fatalf("expected a reveal output, got %+v", revealRes.Tx.Outputs)
	}

	spentBid, ok := coins.GetCredit(bidOutpoint.Hash, bidOutpoint.Index)
	if !ok || !spentBid.Spent {
		t.Fatalf("expected bid credit marked spent after reveal, got %+v ok=%v", spentBid, ok)
	}
}

func TestDispatcherWatchOnlySignerRejectsSigning(t *testing.T) {
	chain := NewChainStub()
	coins := NewCoinIndex(nil)
	blinds, err := NewBlindStore(NewMemStore(), nil)
	if err != nil {
		t.Fatalf("new blind store: %v", err)
	}
	wallet, _, err := NewRandomWallet(128)
	if err != nil {
		t.Fatalf("new random wallet: %v", err)
	}
	var watch WatchOnlyWallet

	engine := NewNameEngine(chain, coins, blinds, wallet, wallet, nil)
	locks := NewLockManager(nil)
	funder := NewFunder(coins, locks, chain, wallet, nil)
	planner := NewBatchPlanner(0)
	idem := NewIdempotencyCache(0, nil)
	store := NewMemStore()
	d := NewDispatcher(engine, funder, planner, locks, idem, coins, chain, watch, wallet, store, nil)

	fundWallet(t, coins, wallet, 0, 1_000_000, 4)
	chain.SetHeight(0)

	req := ActionRequest{IdempotencyKey: "watch-only", Fund: FundOptions{Account: 0}}
	if _, err := d.Open(context.Background(), "watchonly", 0, req); err != ErrCannotSignWatchOnly {
		t.Fatalf("expected ErrCannotSignWatchOnly, got %v", err)
	}
}

func TestDispatcherRevealAllPacksAndCachesPerName(t *testing.T) {
	d, chain, coins, wallet := newTestDispatcher(t)
	fundWallet(t, coins, wallet, 0, 1_000_000, 5)

	names := []string{"alpha", "beta"}
	for i, name := range names {
		nameHash := NameHash(name)
		chain.PutNameState(&NameState{NameHash: nameHash, Height: 0})
		chain.SetHeight(TreeInterval)

		addr, err := wallet.NextReceiveAddress(0)
		if err != nil {
			t.Fatalf("next receive address: %v", err)
		}
		bidRes, err := d.Bid(context.Background(), name, 100, 150, 0, addr, ActionRequest{
			IdempotencyKey: "bid-" + name,
			Fund:           FundOptions{Account: 0},
		})
		if err != nil {
			t.Fatalf("bid %s: %v", name, err)
		}
		credit, ok := coins.GetCredit(bidRes.Hash, 0)
		if !ok {
			t.Fatalf("expected bid %s booked", name)
		}
		credit.Coin.BlockHeight = uint32(i + 1)
		batch := coins.Batch()
		batch.PutCredit(credit)
		batch.Commit()
	}

	chain.SetHeight(TreeInterval + BiddingPeriod)
	res, rejected, err := d.RevealAll(context.Background(), 0, ActionRequest{
		IdempotencyKey: "reveal-all",
		Fund:           FundOptions{Account: 0},
	})
	if err != nil {
		t.Fatalf("reveal all: %v", err)
	}
	if len(rejected) != 0 {
		t.Fatalf("expected nothing rejected, got %+v", rejected)
	}
	reveals := 0
	for _, out := range res.Tx.Outputs {
		if out.Covenant.Type == CovenantReveal {
			reveals++
		}
	}
	if reveals != len(names) {
		t.Fatalf("expected %d reveal outputs packed, got %d", len(names), reveals)
	}
}

// TestDispatcherSendConcurrentCallsUseDisjointInputs exercises three parallel
// sends to three distinct addresses, each funded from its own credit, and
// asserts their selected input sets are pairwise disjoint.
func TestDispatcherSendConcurrentCallsUseDisjointInputs(t *testing.T) {
	d, _, coins, wallet := newTestDispatcher(t)
	fundWallet(t, coins, wallet, 0, 1_000_000, 10)
	fundWallet(t, coins, wallet, 0, 1_000_000, 11)
	fundWallet(t, coins, wallet, 0, 1_000_000, 12)

	type outcome struct {
		res *Result
		err error
	}
	results := make(chan outcome, 3)
	for i := 0; i < 3; i++ {
		go func(i int) {
			to, err := wallet.NextReceiveAddress(1)
			if err != nil {
				results <- outcome{err: err}
				return
			}
			req := ActionRequest{IdempotencyKey: "send-" + string(rune('a'+i)), Fund: FundOptions{Account: 0}}
			res, err := d.Send(context.Background(), to, 100_000, 0, req)
			results <- outcome{res: res, err: err}
		}(i)
	}

	seen := make(map[Outpoint]bool)
	for i := 0; i < 3; i++ {
		out := <-results
		if out.err != nil {
			t.Fatalf("send: %v", out.err)
		}
		for _, in := range out.res.Tx.Inputs {
			if seen[in.Outpoint] {
				t.Fatalf("input %+v reused across concurrent sends", in.Outpoint)
			}
			seen[in.Outpoint] = true
		}
	}
}

func TestDispatcherOpenManyRejectsOverCap(t *testing.T) {
	d, _, coins, wallet := newTestDispatcher(t)
	fundWallet(t, coins, wallet, 0, 1_000_000, 20)

	names := make([]string, MaxBatchItems+1)
	for i := range names {
		names[i] = "toomany"
	}
	req := ActionRequest{IdempotencyKey: "open-many-over", Fund: FundOptions{Account: 0}}
	if _, err := d.OpenMany(context.Background(), names, 0, req); err != ErrBatchTooLarge {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
}

func TestDispatcherOpenManyBroadcastsOneTxForAllNames(t *testing.T) {
	d, chain, coins, wallet := newTestDispatcher(t)
	fundWallet(t, coins, wallet, 0, 1_000_000, 21)
	chain.SetHeight(0)

	names := []string{"first", "second", "third"}
	req := ActionRequest{IdempotencyKey: "open-many", Fund: FundOptions{Account: 0}}
	res, err := d.OpenMany(context.Background(), names, 0, req)
	if err != nil {
		t.Fatalf("open many: %v", err)
	}
	opens := 0
	for _, out := range res.Tx.Outputs {
		if out.Covenant.Type == CovenantOpen {
			opens++
		}
	}
	if opens != len(names) {
		t.Fatalf("expected %d open outputs, got %d", len(names), opens)
	}
	if len(chain.Sent()) != 1 {
		t.Fatalf("expected a single broadcast transaction, got %d", len(chain.Sent()))
	}
}

func TestDispatcherFinishRedeemsAndRegistersInOneTx(t *testing.T) {
	d, chain, coins, wallet := newTestDispatcher(t)
	fundWallet(t, coins, wallet, 0, 1_000_000, 30)

	nameHash := NameHash("finishme")
	chain.PutNameState(&NameState{NameHash: nameHash, Height: 0, HasOwner: false})
	chain.SetHeight(0)

	winnerAddr, err := wallet.NextReceiveAddress(0)
	if err != nil {
		t.Fatalf("next receive address: %v", err)
	}
	loserAddr, err := wallet.NextReceiveAddress(0)
	if err != nil {
		t.Fatalf("next receive address: %v", err)
	}

	winnerOp := Outpoint{Hash: Hash{31}, Index: 0}
	loserOp := Outpoint{Hash: Hash{32}, Index: 0}
	coins.LoadAll([]Credit{
		{
			Coin: Coin{
				Outpoint: winnerOp, Value: 1000, Address: winnerAddr,
				Covenant: NewRevealCovenant(nameHash, 0, Hash{1}), BlockHeight: 1,
			},
			Own: true, Account: 0,
		},
		{
			Coin: Coin{
				Outpoint: loserOp, Value: 500, Address: loserAddr,
				Covenant: NewRevealCovenant(nameHash, 0, Hash{2}), BlockHeight: 1,
			},
			Own: true, Account: 0,
		},
	})

	ns := &NameState{NameHash: nameHash, Height: 0, HasOwner: true, Owner: winnerOp, Value: 900}
	chain.PutNameState(ns)
	chain.SetHeight(BiddingPeriod + RevealPeriod + TreeInterval + 10)

	req := ActionRequest{IdempotencyKey: "finish-finishme", Fund: FundOptions{Account: 0}}
	res, err := d.Finish(context.Background(), "finishme", nil, 0, req)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	var sawRedeem, sawRegister bool
	for _, out := range res.Tx.Outputs {
		switch out.Covenant.Type {
		case CovenantRedeem:
			sawRedeem = true
		case CovenantRegister:
			sawRegister = true
		}
	}
	if !sawRedeem {
		t.Fatalf("expected a redeem output for the losing reveal, got %+v", res.Tx.Outputs)
	}
	if !sawRegister {
		t.Fatalf("expected a register output for the winning reveal, got %+v", res.Tx.Outputs)
	}
}
