package core

import (
	"context"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
)

// Coin-selection/fee invariants (§4.2). Stand-in defaults a live chain
// collaborator may override per network.
var (
	MaxFee          uint64 = 1_000_000
	MaxTxSigops     int    = 4_000
	MaxTxWeight     int    = 400_000
	MaxAncestors    int    = 25
	DustThreshold   uint64 = 546
	DefaultFeeRate  uint64 = 1_000 // per kB, used when no estimate/override given

	weightPerInput  = 300
	weightPerOutput = 150
	weightBase      = 200
)

// SelectionPolicy chooses which available credits a Funder prefers.
type SelectionPolicy string

const (
	SelectAge    SelectionPolicy = "age"
	SelectRandom SelectionPolicy = "random"
	SelectAll    SelectionPolicy = "all"
	SelectSmart  SelectionPolicy = "smart"
)

// ChangeAddressProvider hands out the account's next change key.
type ChangeAddressProvider interface {
	NextChangeAddress(account uint32) (Address, error)
}

// FundOptions parameterizes a single Fund call.
type FundOptions struct {
	Account     uint32
	Policy      SelectionPolicy
	FeeRate     uint64 // explicit rate, sat per kB; 0 means estimate/default
	HardFee     uint64 // overrides rate-based estimation when > 0
	Subtract    bool   // subtract fee from SubtractOutput instead of funding
	SubtractOut int
	Sort        bool
	Locktime    uint32
	ChainHeight uint32
}

// Funder performs coin selection and fee calculation over a Builder,
// producing a signed-ready (unsigned) transaction template (§4.2).
type Funder struct {
	index  *CoinIndex
	locks  *LockManager
	chain  ChainReader
	change ChangeAddressProvider
	logger *logrus.Logger
}

func NewFunder(index *CoinIndex, locks *LockManager, chain ChainReader, change ChangeAddressProvider, lg *logrus.Logger) *Funder {
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	return &Funder{index: index, locks: locks, chain: chain, change: change, logger: lg}
}

// Fund selects coins (or validates the pre-signed single-input case),
// computes the fee, attaches change, sorts per BIP69, and applies locktime.
// fs must be a FundScope already held by the caller (§4.6: all selection
// happens inside the fund lock).
func (f *Funder) Fund(ctx context.Context, fs *FundScope, b *Builder, opts FundOptions) (*Transaction, error) {
	if err := checkDust(b.Outputs); err != nil {
		return nil, err
	}

	if b.RequireSingleInput {
		return f.fundSingleInput(b, opts)
	}

	needed := sumOutputs(b.Outputs)
	for _, in := range b.PreInputs {
		c, ok := f.index.GetCredit(in.Outpoint.Hash, in.Outpoint.Index)
		if ok {
			needed -= min64(needed, c.Coin.Value)
		}
	}

	credits := f.eligibleCredits(opts.Account, opts.Policy)

	feeRate, err := f.resolveFeeRate(ctx, opts)
	if err != nil {
		return nil, err
	}

	var selected []Credit
	var selectedValue uint64
	estFee := estimateFee(len(b.PreInputs), len(b.Outputs), feeRate)
	for _, c := range credits {
		if selectedValue >= needed+estFee {
			break
		}
		if !fs.LockCoin(c.Coin.Outpoint) {
			continue // already spoken for by a concurrent producer
		}
		selected = append(selected, c)
		selectedValue += c.Coin.Value
		estFee = estimateFee(len(b.PreInputs)+len(selected), len(b.Outputs)+1, feeRate)
	}

	fee := opts.HardFee
	if fee == 0 {
		fee = estimateFee(len(b.PreInputs)+len(selected), len(b.Outputs)+1, feeRate)
	}
	if fee > MaxFee {
		return nil, ErrFeeExceedsMax
	}

	if opts.Subtract && opts.SubtractOut >= 0 && opts.SubtractOut < len(b.Outputs) {
		out := &b.Outputs[opts.SubtractOut]
		if out.Value < fee+DustThreshold && out.Covenant.Type != CovenantNone {
			return nil, ErrDustOutput
		}
		out.Value -= fee
	} else if selectedValue < needed+fee {
		return nil, ErrInsufficientFunds
	}

	tx := b.ToTransaction()
	for _, c := range selected {
		tx.Inputs = append(tx.Inputs, TxInput{Outpoint: c.Coin.Outpoint, Sequence: 0xffffffff})
	}

	if !opts.Subtract {
		change := selectedValue - needed - fee
		if change > DustThreshold {
			addr, err := f.change.NextChangeAddress(opts.Account)
			if err != nil {
				return nil, Wrap(err, "next change address")
			}
			tx.Outputs = append(tx.Outputs, TxOutput{Value: change, Address: addr})
		}
	}

	if err := checkAncestors(selected, MaxAncestors); err != nil {
		return nil, err
	}
	if err := checkSigops(len(tx.Inputs), MaxTxSigops); err != nil {
		return nil, err
	}
	if err := checkWeight(len(tx.Inputs), len(tx.Outputs), MaxTxWeight); err != nil {
		return nil, err
	}

	if opts.Sort {
		tx.SortBIP69()
	}
	tx.Locktime = opts.Locktime

	f.logger.WithField("name", b.Name).WithField("inputs", len(tx.Inputs)).
		WithField("outputs", len(tx.Outputs)).WithField("fee", fee).Debug("funder: built transaction")
	return tx, nil
}

// fundSingleInput handles the auction-in-advance pre-signed REVEAL flow: the
// final transaction must have exactly one input, the corresponding BID
// outpoint, with the fee subtracted from the REVEAL output itself. If that
// output can't absorb the fee without going to dust, the builder fails
// rather than silently adding a second input (§4.2).
func (f *Funder) fundSingleInput(b *Builder, opts FundOptions) (*Transaction, error) {
	if len(b.PreInputs) != 1 {
		return nil, ErrSecondInputRequired
	}
	if len(b.Outputs) != 1 {
		return nil, ErrSecondInputRequired
	}
	feeRate := opts.FeeRate
	if feeRate == 0 {
		feeRate = DefaultFeeRate
	}
	fee := opts.HardFee
	if fee == 0 {
		fee = estimateFee(1, 1, feeRate)
	}
	out := &b.Outputs[0]
	if out.Value <= fee+DustThreshold {
		return nil, ErrSecondInputRequired
	}
	out.Value -= fee

	tx := b.ToTransaction()
	tx.Locktime = opts.Locktime
	if opts.Sort {
		tx.SortBIP69()
	}
	return tx, nil
}

func (f *Funder) eligibleCredits(account uint32, policy SelectionPolicy) []Credit {
	all := f.index.CreditsFor(account)
	var eligible []Credit
	for _, c := range all {
		if c.Spent || !c.Own {
			continue
		}
		if f.locks.IsLocked(c.Coin.Outpoint) {
			continue
		}
		eligible = append(eligible, c)
	}

	switch policy {
	case SelectRandom:
		rand.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })
	case SelectSmart:
		var confirmed []Credit
		for _, c := range eligible {
			if c.Coin.BlockHeight != 0 {
				confirmed = append(confirmed, c)
			}
		}
		eligible = confirmed
	case SelectAll:
		// no reordering; every eligible credit is a candidate
	case SelectAge:
		fallthrough
	default:
		sort.Slice(eligible, func(i, j int) bool {
			hi, hj := eligible[i].Coin.BlockHeight, eligible[j].Coin.BlockHeight
			if hi == 0 {
				return false
			}
			if hj == 0 {
				return true
			}
			return hi < hj
		})
	}
	return eligible
}

func (f *Funder) resolveFeeRate(ctx context.Context, opts FundOptions) (uint64, error) {
	if opts.FeeRate > 0 {
		return opts.FeeRate, nil
	}
	if f.chain != nil {
		rate, err := f.chain.EstimateFee(ctx, 6)
		if err == nil && rate > 0 {
			return rate, nil
		}
	}
	return DefaultFeeRate, nil
}

func estimateFee(numInputs, numOutputs int, feeRatePerKB uint64) uint64 {
	vsize := weightBase + numInputs*weightPerInput + numOutputs*weightPerOutput
	return uint64(vsize) * feeRatePerKB / 1000
}

func checkDust(outputs []TxOutput) error {
	for _, o := range outputs {
		if o.Value == 0 && o.Covenant.Type != CovenantNone {
			continue // zero-valued covenant outputs are protocol-exempt
		}
		if o.Value > 0 && o.Value < DustThreshold {
			return ErrDustOutput
		}
	}
	return nil
}

func checkAncestors(selected []Credit, max int) error {
	unconfirmed := 0
	for _, c := range selected {
		if c.Coin.BlockHeight == 0 {
			unconfirmed++
		}
	}
	if unconfirmed > max {
		return ErrTooManyAncestors
	}
	return nil
}

func checkSigops(numInputs, max int) error {
	if numInputs > max {
		return ErrSigopsExceeded
	}
	return nil
}

func checkWeight(numInputs, numOutputs, max int) error {
	w := weightBase + numInputs*weightPerInput + numOutputs*weightPerOutput
	if w > max {
		return ErrWeightExceeded
	}
	return nil
}

func sumOutputs(outs []TxOutput) uint64 {
	var total uint64
	for _, o := range outs {
		total += o.Value
	}
	return total
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
