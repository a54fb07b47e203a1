package core

import (
	"context"
	"testing"
)

func newFunderHarness(t *testing.T) (*Funder, *CoinIndex, *HDWallet) {
	t.Helper()
	w, _, err := NewRandomWallet(256)
	if err != nil {
		t.Fatalf("NewRandomWallet: %v", err)
	}
	idx := NewCoinIndex(nil)
	locks := NewLockManager(nil)
	chain := NewChainStub()
	f := NewFunder(idx, locks, chain, w, nil)
	return f, idx, w
}

func fundCredit(txidByte byte, account uint32, value uint64, blockHeight uint32) Credit {
	var h Hash
	h[0] = txidByte
	return Credit{
		Coin: Coin{
			Outpoint:    Outpoint{Hash: h, Index: 0},
			Value:       value,
			BlockHeight: blockHeight,
		},
		Own:     true,
		Account: account,
	}
}

func TestFunderSelectsCoinsAndAddsChange(t *testing.T) {
	f, idx, w := newFunderHarness(t)
	idx.LoadAll([]Credit{fundCredit(1, 0, 100_000, 10)})

	dest, err := w.NextReceiveAddress(0)
	if err != nil {
		t.Fatalf("NextReceiveAddress: %v", err)
	}
	b := NewBuilder("example", CovenantOpen)
	b.AddOutput(TxOutput{Value: 10_000, Address: dest})

	fs := NewLockManager(nil).AcquireFund()
	defer fs.Release()

	tx, err := f.Fund(context.Background(), fs, b, FundOptions{Account: 0, Policy: SelectAge, FeeRate: DefaultFeeRate, Sort: true})
	if err != nil {
		t.Fatalf("Fund: %v", err)
	}
	if len(tx.Inputs) != 1 {
		t.Fatalf("expected exactly 1 input selected, got %d", len(tx.Inputs))
	}
	if len(tx.Outputs) != 2 {
		t.Fatalf("expected destination + change outputs, got %d", len(tx.Outputs))
	}
}

func TestFunderInsufficientFunds(t *testing.T) {
	f, idx, w := newFunderHarness(t)
	idx.LoadAll([]Credit{fundCredit(2, 0, 1_000, 10)})

	dest, _ := w.NextReceiveAddress(0)
	b := NewBuilder("example", CovenantOpen)
	b.AddOutput(TxOutput{Value: 100_000, Address: dest})

	fs := NewLockManager(nil).AcquireFund()
	defer fs.Release()

	_, err := f.Fund(context.Background(), fs, b, FundOptions{Account: 0, Policy: SelectAge, FeeRate: DefaultFeeRate})
	if err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestFunderSkipsSpentCoins(t *testing.T) {
	f, idx, _ := newFunderHarness(t)
	spent := fundCredit(3, 0, 100_000, 10)
	spent.Spent = true
	idx.LoadAll([]Credit{spent})

	eligible := f.eligibleCredits(0, SelectAge)
	if len(eligible) != 0 {
		t.Fatalf("expected spent coin excluded, got %d eligible", len(eligible))
	}
}

func TestFunderFundSingleInputRequiresExactShape(t *testing.T) {
	f, _, w := newFunderHarness(t)
	dest, _ := w.NextReceiveAddress(0)

	b := NewBuilder("example", CovenantReveal)
	b.RequireSingleInput = true
	b.AddPreInput(Outpoint{Hash: Hash{9}, Index: 0})
	b.AddOutput(TxOutput{Value: 100_000, Address: dest})

	fs := NewLockManager(nil).AcquireFund()
	defer fs.Release()

	tx, err := f.Fund(context.Background(), fs, b, FundOptions{FeeRate: DefaultFeeRate})
	if err != nil {
		t.Fatalf("Fund: %v", err)
	}
	if len(tx.Inputs) != 1 {
		t.Fatalf("expected exactly 1 input, got %d", len(tx.Inputs))
	}
	if tx.Outputs[0].Value >= 100_000 {
		t.Fatalf("expected fee subtracted from the single output")
	}
}

func TestFunderFundSingleInputRejectsSecondInput(t *testing.T) {
	f, _, w := newFunderHarness(t)
	dest, _ := w.NextReceiveAddress(0)

	b := NewBuilder("example", CovenantReveal)
	b.RequireSingleInput = true
	b.AddPreInput(Outpoint{Hash: Hash{9}, Index: 0})
	b.AddPreInput(Outpoint{Hash: Hash{10}, Index: 0})
	b.AddOutput(TxOutput{Value: 100_000, Address: dest})

	fs := NewLockManager(nil).AcquireFund()
	defer fs.Release()

	_, err := f.Fund(context.Background(), fs, b, FundOptions{FeeRate: DefaultFeeRate})
	if err != ErrSecondInputRequired {
		t.Fatalf("expected ErrSecondInputRequired, got %v", err)
	}
}

func TestCheckDustRejectsSmallNonCovenantOutput(t *testing.T) {
	err := checkDust([]TxOutput{{Value: DustThreshold - 1}})
	if err != ErrDustOutput {
		t.Fatalf("expected ErrDustOutput, got %v", err)
	}
}

func TestCheckDustAllowsZeroValueCovenantOutput(t *testing.T) {
	err := checkDust([]TxOutput{{Value: 0, Covenant: Covenant{Type: CovenantOpen}}})
	if err != nil {
		t.Fatalf("unexpected error for zero-value covenant output: %v", err)
	}
}

func TestEstimateFeeScalesWithInputsAndOutputs(t *testing.T) {
	small := estimateFee(1, 1, 1_000)
	large := estimateFee(5, 5, 1_000)
	if large <= small {
		t.Fatalf("expected larger tx to estimate a higher fee: small=%d large=%d", small, large)
	}
}
