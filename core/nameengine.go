package core

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// ReceiveAddressProvider hands out the account's next receive key, used for
// OPEN and BID outputs (distinct from the Funder's ChangeAddressProvider,
// though a wallet typically satisfies both from the same key chain).
type ReceiveAddressProvider interface {
	NextReceiveAddress(account uint32) (Address, error)
}

// NameEngine builds the unsigned, unfunded transaction template for each
// name action (§4.1). It never selects funding coins, signs, or broadcasts;
// those responsibilities belong to Funder, Signer, and the Dispatcher that
// sequences them.
type NameEngine struct {
	chain  ChainReader
	coins  *CoinIndex
	blinds *BlindStore
	addrs  ReceiveAddressProvider
	keys   PubKeyProvider
	logger *logrus.Logger

	pendingMu    sync.Mutex
	pendingOpens map[Hash]bool
}

func NewNameEngine(chain ChainReader, coins *CoinIndex, blinds *BlindStore, addrs ReceiveAddressProvider, keys PubKeyProvider, lg *logrus.Logger) *NameEngine {
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	return &NameEngine{
		chain:        chain,
		coins:        coins,
		blinds:       blinds,
		addrs:        addrs,
		keys:         keys,
		logger:       lg,
		pendingOpens: make(map[Hash]bool),
	}
}

// ClearPendingOpen forgets a name's in-flight OPEN. The Dispatcher calls it
// when an OPEN fails before broadcast; a broadcast OPEN stays pending for the
// life of the engine, since nothing here observes confirmations.
func (e *NameEngine) ClearPendingOpen(nameHash Hash) {
	e.pendingMu.Lock()
	delete(e.pendingOpens, nameHash)
	e.pendingMu.Unlock()
}

func (e *NameEngine) height(ctx context.Context) (uint32, error) {
	h, err := e.chain.Height(ctx)
	if err != nil {
		return 0, Wrap(err, "read chain height")
	}
	return h + 1, nil
}

// lookupState resolves name to its hash and current NameState, returning a
// nil *NameState (no error) when no state has been recorded yet.
func (e *NameEngine) lookupState(ctx context.Context, name string) (Hash, *NameState, error) {
	if err := ValidateName(name); err != nil {
		return Hash{}, nil, err
	}
	nameHash := NameHash(name)
	ns, err := e.chain.GetNameState(ctx, nameHash)
	if err == ErrNameNotFound {
		return nameHash, nil, nil
	}
	if err != nil {
		return Hash{}, nil, Wrap(err, "get name state")
	}
	return nameHash, ns, nil
}

func isOneOf(t CovenantType, candidates ...CovenantType) bool {
	for _, c := range candidates {
		if t == c {
			return true
		}
	}
	return false
}

// Open builds an OPEN transaction template (§4.1). Legal when the name's
// syntax validates, it is neither reserved, lockup-held, nor pre-rollout,
// there is no recorded NameState or the recorded one is OPENING at height 0
// or the current height, and no OPEN for this name is already in flight.
func (e *NameEngine) Open(ctx context.Context, name string, account uint32) (*Builder, error) {
	nameHash, ns, err := e.lookupState(ctx, name)
	if err != nil {
		return nil, err
	}
	if IsReserved(name) || IsLockedUp(name) {
		return nil, ErrInvalidName
	}
	h, err := e.height(ctx)
	if err != nil {
		return nil, err
	}
	if !HasRolledOut(h) {
		return nil, ErrInvalidName
	}
	if ns != nil {
		state := ns.State(h)
		if state != StateOpening || (ns.Height != 0 && ns.Height != h) {
			return nil, &WrongState{Name: name, Expected: StateOpening, Actual: state}
		}
	}

	e.pendingMu.Lock()
	if e.pendingOpens[nameHash] {
		e.pendingMu.Unlock()
		return nil, ErrAlreadyOpening
	}
	e.pendingOpens[nameHash] = true
	e.pendingMu.Unlock()

	addr, err := e.addrs.NextReceiveAddress(account)
	if err != nil {
		e.ClearPendingOpen(nameHash)
		return nil, Wrap(err, "next receive address")
	}

	b := NewBuilder(name, CovenantOpen)
	b.Account = account
	b.AddOutput(TxOutput{Value: 0, Address: addr, Covenant: NewOpenCovenant(nameHash, name)})
	e.logger.WithField("name", name).WithField("name_hash", nameHash.Short()).Debug("nameengine: open")
	return b, nil
}

// Bid builds a BID transaction template (§4.1). The caller supplies the
// output address so a batch of bids across many names can reuse a single
// address for the batch's first bid and fresh addresses thereafter, without
// the engine needing batch-scoped state. value is the true bid amount,
// lockup the (>=value) amount actually committed on-chain; the BlindStore
// entry is persisted before the builder is returned so REVEAL can never
// outrun it.
func (e *NameEngine) Bid(ctx context.Context, name string, value, lockup uint64, account uint32, addr Address) (*Builder, error) {
	nameHash, ns, err := e.lookupState(ctx, name)
	if err != nil {
		return nil, err
	}
	if ns == nil {
		return nil, ErrNameNotFound
	}
	h, err := e.height(ctx)
	if err != nil {
		return nil, err
	}
	if err := ns.RequireState(name, h, StateBidding); err != nil {
		return nil, err
	}
	if value > lockup {
		return nil, ErrBidExceedsLockup
	}

	nonce, err := DeriveNonce(addr, value, nameHash, e.keys)
	if err != nil {
		return nil, err
	}
	blind := DeriveBlind(value, nonce)
	if err := e.blinds.Put(blind, BlindRecord{Value: value, Nonce: nonce}); err != nil {
		return nil, err
	}

	b := NewBuilder(name, CovenantBid)
	b.Account = account
	b.AddOutput(TxOutput{Value: lockup, Address: addr, Covenant: NewBidCovenant(nameHash, ns.Height, name, blind)})
	e.logger.WithField("name", name).WithField("lockup", lockup).Debug("nameengine: bid")
	return b, nil
}

// Reveal builds a REVEAL template spending every own, unspent BID credit
// the wallet holds for name whose confirmation height is at or after the
// auction's opening height (ns.Height). A BID whose BlindStore entry is missing
// fails the whole call rather than silently skipping it, since an
// unreveal-able bid's lockup would otherwise be stranded.
func (e *NameEngine) Reveal(ctx context.Context, name string, account uint32) (*Builder, error) {
	nameHash, ns, err := e.lookupState(ctx, name)
	if err != nil {
		return nil, err
	}
	if ns == nil {
		return nil, ErrNameNotFound
	}
	h, err := e.height(ctx)
	if err != nil {
		return nil, err
	}
	if err := ns.RequireState(name, h, StateReveal); err != nil {
		return nil, err
	}

	b := NewBuilder(name, CovenantReveal)
	b.Account = account
	for _, c := range e.coins.CreditsFor(account) {
		if err := e.appendReveal(b, c, nameHash, ns); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (e *NameEngine) appendReveal(b *Builder, c Credit, nameHash Hash, ns *NameState) error {
	if c.Spent || !c.Own {
		return nil
	}
	if c.Coin.Covenant.Type != CovenantBid || c.Coin.Covenant.NameHash() != nameHash {
		return nil
	}
	if c.Coin.BlockHeight == 0 || c.Coin.BlockHeight < ns.Height {
		return nil
	}
	rec, err := e.blinds.Get(c.Coin.Covenant.Blind())
	if err != nil {
		return err
	}
	b.AddPreInput(c.Coin.Outpoint)
	b.AddOutput(TxOutput{Value: rec.Value, Address: c.Coin.Address, Covenant: NewRevealCovenant(nameHash, ns.Height, rec.Nonce)})
	return nil
}

// RevealAll sweeps every name in REVEAL state with at least one own BID
// credit, returning one Builder per name so BatchPlanner can pack them
// independently (§4.1 REVEAL_ALL). Names the chain no longer recognizes (or
// whose NameState lookup fails) are skipped rather than aborting the sweep.
func (e *NameEngine) RevealAll(ctx context.Context, account uint32) (map[string]*Builder, error) {
	h, err := e.height(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[Hash][]Credit)
	for _, c := range e.coins.CreditsFor(account) {
		if c.Spent || !c.Own || c.Coin.Covenant.Type != CovenantBid {
			continue
		}
		nh := c.Coin.Covenant.NameHash()
		byName[nh] = append(byName[nh], c)
	}

	result := make(map[string]*Builder)
	for nameHash, group := range byName {
		ns, err := e.chain.GetNameState(ctx, nameHash)
		if err != nil {
			continue
		}
		if ns.State(h) != StateReveal {
			continue
		}
		rawName := group[0].Coin.Covenant.RawName()
		b := NewBuilder(rawName, CovenantReveal)
		b.Account = account
		for _, c := range group {
			if err := e.appendReveal(b, c, nameHash, ns); err != nil {
				return nil, err
			}
		}
		if len(b.Outputs) > 0 {
			result[rawName] = b
		}
	}
	return result, nil
}

// Redeem builds a REDEEM template for every own, unspent REVEAL credit for
// name that lost the auction (i.e. is not the recorded owner outpoint),
// once the name has closed.
func (e *NameEngine) Redeem(ctx context.Context, name string, account uint32) (*Builder, error) {
	nameHash, ns, err := e.lookupState(ctx, name)
	if err != nil {
		return nil, err
	}
	if ns == nil {
		return nil, ErrNameNotFound
	}
	h, err := e.height(ctx)
	if err != nil {
		return nil, err
	}
	if err := ns.RequireState(name, h, StateClosed); err != nil {
		return nil, err
	}

	b := NewBuilder(name, CovenantRedeem)
	b.Account = account
	for _, c := range e.coins.CreditsFor(account) {
		e.appendRedeem(b, c, nameHash, ns)
	}
	return b, nil
}

func (e *NameEngine) appendRedeem(b *Builder, c Credit, nameHash Hash, ns *NameState) {
	if c.Spent || !c.Own || c.Coin.Covenant.Type != CovenantReveal || c.Coin.Covenant.NameHash() != nameHash {
		return
	}
	if ns.HasOwner && c.Coin.Outpoint == ns.Owner {
		return // the winning reveal is not redeemable; it becomes the owner coin
	}
	b.AddPreInput(c.Coin.Outpoint)
	b.AddOutput(TxOutput{Value: c.Coin.Value, Address: c.Coin.Address, Covenant: NewRedeemCovenant(nameHash, ns.Height)})
}

// RedeemAll sweeps every closed name with at least one own losing REVEAL
// credit (§4.1 REDEEM_ALL), mirroring RevealAll's per-name grouping.
func (e *NameEngine) RedeemAll(ctx context.Context, account uint32) (map[string]*Builder, error) {
	h, err := e.height(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[Hash][]Credit)
	for _, c := range e.coins.CreditsFor(account) {
		if c.Spent || !c.Own || c.Coin.Covenant.Type != CovenantReveal {
			continue
		}
		nh := c.Coin.Covenant.NameHash()
		byName[nh] = append(byName[nh], c)
	}

	result := make(map[string]*Builder)
	for nameHash, group := range byName {
		ns, err := e.chain.GetNameState(ctx, nameHash)
		if err != nil {
			continue
		}
		if ns.State(h) != StateClosed {
			continue
		}
		rawName := findRevealRawName(e.coins, nameHash)
		b := NewBuilder(rawName, CovenantRedeem)
		b.Account = account
		for _, c := range group {
			e.appendRedeem(b, c, nameHash, ns)
		}
		if len(b.Outputs) > 0 {
			result[rawName] = b
		}
	}
	return result, nil
}

// findRevealRawName recovers a readable name for a REDEEM_ALL group: REVEAL
// covenants don't carry raw_name, so it always returns the name hash's hex
// form; callers only use this as a map key and log field.
func findRevealRawName(ci *CoinIndex, nameHash Hash) string {
	return nameHash.Hex()
}

// finishGroup builds one name's share of a FINISH (REDEEM+REGISTER): REDEEM
// outputs for every own losing REVEAL credit, plus a REGISTER output if the
// owner outpoint is still the winning REVEAL and has matured. resource is
// only used for the REGISTER half; a name with no losing credits and an
// already-registered owner contributes nothing and is omitted by the caller.
func (e *NameEngine) finishGroup(ctx context.Context, rawName string, nameHash Hash, ns *NameState, group []Credit, account uint32, resource []byte) (*Builder, error) {
	b := NewBuilder(rawName, CovenantRedeem)
	b.Account = account
	for _, c := range group {
		e.appendRedeem(b, c, nameHash, ns)
	}

	if ns.HasOwner {
		owner, ok := e.coins.GetCredit(ns.Owner.Hash, ns.Owner.Index)
		if ok && owner.Own && !owner.Spent && owner.Coin.Covenant.Type == CovenantReveal {
			h, err := e.height(ctx)
			if err != nil {
				return nil, err
			}
			if owner.Coin.BlockHeight != 0 && h >= owner.Coin.BlockHeight {
				renewalHash, err := e.chain.GetRenewalBlock(ctx)
				if err != nil {
					return nil, Wrap(err, "get renewal block")
				}
				b.AddPreInput(ns.Owner)
				b.AddOutput(TxOutput{Value: ns.Value, Address: owner.Coin.Address, Covenant: NewRegisterCovenant(nameHash, ns.Height, resource, renewalHash)})
			}
		}
	}
	return b, nil
}

// Finish builds a single name's FINISH transaction: REDEEM every own losing
// REVEAL credit and, if the name is still unregistered, REGISTER it with
// resource in the same transaction (§4.1, §4.4). Fails with
// ErrNothingToFinish if neither half applies.
func (e *NameEngine) Finish(ctx context.Context, name string, resource []byte, account uint32) (*Builder, error) {
	if len(resource) > MaxResourceBytes {
		return nil, ErrResourceTooLarge
	}
	nameHash, ns, err := e.lookupState(ctx, name)
	if err != nil {
		return nil, err
	}
	if ns == nil {
		return nil, ErrNameNotFound
	}
	h, err := e.height(ctx)
	if err != nil {
		return nil, err
	}
	if err := ns.RequireState(name, h, StateClosed); err != nil {
		return nil, err
	}

	var group []Credit
	for _, c := range e.coins.CreditsFor(account) {
		if c.Spent || !c.Own || c.Coin.Covenant.Type != CovenantReveal || c.Coin.Covenant.NameHash() != nameHash {
			continue
		}
		group = append(group, c)
	}

	b, err := e.finishGroup(ctx, name, nameHash, ns, group, account, resource)
	if err != nil {
		return nil, err
	}
	if len(b.Outputs) == 0 {
		return nil, ErrNothingToFinish
	}
	return b, nil
}

// FinishAll sweeps every closed name with an own losing REVEAL credit or a
// still-unregistered owner coin into one FINISH builder per name (§4.1
// FINISH, §4.4). The batch sweep always registers with an empty resource;
// a caller wanting to publish a resource at claim time uses Finish(name)
// directly instead.
func (e *NameEngine) FinishAll(ctx context.Context, account uint32) (map[string]*Builder, error) {
	h, err := e.height(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[Hash][]Credit)
	names := make(map[Hash]string)
	for _, c := range e.coins.CreditsFor(account) {
		if c.Spent || !c.Own || c.Coin.Covenant.Type != CovenantReveal {
			continue
		}
		nh := c.Coin.Covenant.NameHash()
		byName[nh] = append(byName[nh], c)
		if _, ok := names[nh]; !ok {
			names[nh] = findRevealRawName(e.coins, nh)
		}
	}

	result := make(map[string]*Builder)
	for nameHash, group := range byName {
		ns, err := e.chain.GetNameState(ctx, nameHash)
		if err != nil {
			continue
		}
		if ns.State(h) != StateClosed {
			continue
		}
		rawName := names[nameHash]
		b, err := e.finishGroup(ctx, rawName, nameHash, ns, group, account, nil)
		if err != nil {
			return nil, err
		}
		if len(b.Outputs) > 0 {
			result[rawName] = b
		}
	}
	return result, nil
}

// MaxBatchItems caps the number of names/bids a single OPEN/BID batch call
// may submit, the "array-length cap" validator spec.md §4.4 describes as
// upstream of BatchPlanner's output-budget packing (reusing the same 200
// figure as DefaultBatchBudget).
const MaxBatchItems = DefaultBatchBudget

// OpenMany builds one combined OPEN transaction for every name in names,
// each validated exactly as a single Open call would be (§4.4). The whole
// batch is rejected up front if it exceeds MaxBatchItems; a single invalid
// name fails the whole call rather than silently dropping it, since OPEN
// has no per-name replay story the way REVEAL_ALL/REDEEM_ALL/FINISH do.
func (e *NameEngine) OpenMany(ctx context.Context, names []string, account uint32) (*Builder, error) {
	if len(names) > MaxBatchItems {
		return nil, ErrBatchTooLarge
	}
	b := NewBuilder("", CovenantOpen)
	b.Account = account
	for _, name := range names {
		single, err := e.Open(ctx, name, account)
		if err != nil {
			for _, out := range b.Outputs {
				e.ClearPendingOpen(out.Covenant.NameHash())
			}
			return nil, err
		}
		b.Outputs = append(b.Outputs, single.Outputs...)
	}
	return b, nil
}

// BidRequest is one name's worth of a BidMany call.
type BidRequest struct {
	Name   string
	Value  uint64
	Lockup uint64
}

// BidMany builds one combined BID transaction for every entry in bids, each
// validated exactly as a single Bid call would be, deriving a fresh receive
// address per bid so no two bids in the batch can collide on the same
// commitment address (§4.4). Rejected up front if it exceeds MaxBatchItems.
func (e *NameEngine) BidMany(ctx context.Context, bids []BidRequest, account uint32) (*Builder, error) {
	if len(bids) > MaxBatchItems {
		return nil, ErrBatchTooLarge
	}
	b := NewBuilder("", CovenantBid)
	b.Account = account
	for _, req := range bids {
		addr, err := e.addrs.NextReceiveAddress(account)
		if err != nil {
			return nil, Wrap(err, "next receive address")
		}
		single, err := e.Bid(ctx, req.Name, req.Value, req.Lockup, account, addr)
		if err != nil {
			return nil, err
		}
		b.Outputs = append(b.Outputs, single.Outputs...)
	}
	return b, nil
}

// Register is the internal helper UPDATE invokes when a name's owner
// outpoint is still the winning REVEAL rather than a prior REGISTER: it
// is the first resource publication for a freshly closed auction (§4.1).
func (e *NameEngine) Register(ctx context.Context, name string, resource []byte, account uint32) (*Builder, error) {
	if len(resource) > MaxResourceBytes {
		return nil, ErrResourceTooLarge
	}
	nameHash, ns, err := e.lookupState(ctx, name)
	if err != nil {
		return nil, err
	}
	if ns == nil || !ns.HasOwner {
		return nil, ErrNotOwned
	}
	owner, ok := e.coins.GetCredit(ns.Owner.Hash, ns.Owner.Index)
	if !ok || !owner.Own {
		return nil, ErrNotOwned
	}
	if owner.Spent {
		return nil, &AlreadySpending{Outpoint: ns.Owner}
	}
	if owner.Coin.Covenant.Type != CovenantReveal {
		return nil, &WrongState{Name: name, Expected: StateClosed, Actual: ns.State(0)}
	}
	h, err := e.height(ctx)
	if err != nil {
		return nil, err
	}
	if owner.Coin.BlockHeight == 0 || h < owner.Coin.BlockHeight {
		return nil, ErrNotYetMature
	}

	renewalHash, err := e.chain.GetRenewalBlock(ctx)
	if err != nil {
		return nil, Wrap(err, "get renewal block")
	}

	b := NewBuilder(name, CovenantRegister)
	b.Account = account
	b.AddPreInput(ns.Owner)
	b.AddOutput(TxOutput{Value: ns.Value, Address: owner.Coin.Address, Covenant: NewRegisterCovenant(nameHash, ns.Height, resource, renewalHash)})
	return b, nil
}

// Update builds an UPDATE template publishing resource against the name's
// current owner coin, preserving its value and address (§4.1). A name whose
// owner outpoint is still the winning REVEAL is registered instead, via
// Register.
func (e *NameEngine) Update(ctx context.Context, name string, resource []byte, account uint32) (*Builder, error) {
	if len(resource) > MaxResourceBytes {
		return nil, ErrResourceTooLarge
	}
	nameHash, ns, err := e.lookupState(ctx, name)
	if err != nil {
		return nil, err
	}
	if ns == nil || !ns.HasOwner {
		return nil, ErrNotOwned
	}
	owner, ok := e.coins.GetCredit(ns.Owner.Hash, ns.Owner.Index)
	if !ok || !owner.Own {
		return nil, ErrNotOwned
	}
	if owner.Coin.Covenant.Type == CovenantReveal {
		return e.Register(ctx, name, resource, account)
	}
	if owner.Spent {
		return nil, &AlreadySpending{Outpoint: ns.Owner}
	}
	if !isOneOf(owner.Coin.Covenant.Type, CovenantRegister, CovenantUpdate, CovenantRenew, CovenantFinalize) {
		return nil, &WrongState{Name: name, Expected: StateClosed, Actual: ns.State(0)}
	}

	b := NewBuilder(name, CovenantUpdate)
	b.Account = account
	b.AddPreInput(ns.Owner)
	b.AddOutput(TxOutput{Value: owner.Coin.Value, Address: owner.Coin.Address, Covenant: NewUpdateCovenant(nameHash, ns.Height, resource)})
	return b, nil
}

// Renew builds a RENEW template refreshing the name's expiry, legal only
// once the renewal window has reached ns.Renewal+TreeInterval (§4.1).
func (e *NameEngine) Renew(ctx context.Context, name string, account uint32) (*Builder, error) {
	nameHash, ns, err := e.lookupState(ctx, name)
	if err != nil {
		return nil, err
	}
	if ns == nil || !ns.HasOwner {
		return nil, ErrNotOwned
	}
	h, err := e.height(ctx)
	if err != nil {
		return nil, err
	}
	if h < ns.Renewal+TreeInterval {
		return nil, ErrNotYetMature
	}
	owner, ok := e.coins.GetCredit(ns.Owner.Hash, ns.Owner.Index)
	if !ok || !owner.Own {
		return nil, ErrNotOwned
	}
	if owner.Spent {
		return nil, &AlreadySpending{Outpoint: ns.Owner}
	}
	if !isOneOf(owner.Coin.Covenant.Type, CovenantRegister, CovenantUpdate, CovenantRenew, CovenantFinalize) {
		return nil, &WrongState{Name: name, Expected: StateClosed, Actual: ns.State(h)}
	}

	renewalHash, err := e.chain.GetRenewalBlock(ctx)
	if err != nil {
		return nil, Wrap(err, "get renewal block")
	}

	b := NewBuilder(name, CovenantRenew)
	b.Account = account
	b.AddPreInput(ns.Owner)
	b.AddOutput(TxOutput{Value: owner.Coin.Value, Address: owner.Coin.Address, Covenant: NewRenewCovenant(nameHash, ns.Height, renewalHash)})
	return b, nil
}

// Transfer builds a TRANSFER template announcing an intended new owner
// address; the name's own address does not change until Finalize (§4.1).
func (e *NameEngine) Transfer(ctx context.Context, name string, addrVersion uint8, addrHash Address, account uint32) (*Builder, error) {
	nameHash, ns, err := e.lookupState(ctx, name)
	if err != nil {
		return nil, err
	}
	if ns == nil || !ns.HasOwner {
		return nil, ErrNotOwned
	}
	owner, ok := e.coins.GetCredit(ns.Owner.Hash, ns.Owner.Index)
	if !ok || !owner.Own {
		return nil, ErrNotOwned
	}
	if owner.Spent {
		return nil, &AlreadySpending{Outpoint: ns.Owner}
	}
	if owner.Coin.Covenant.Type == CovenantTransfer {
		return nil, ErrLockedBid
	}
	if !isOneOf(owner.Coin.Covenant.Type, CovenantRegister, CovenantUpdate, CovenantRenew, CovenantFinalize) {
		return nil, &WrongState{Name: name, Expected: StateClosed, Actual: ns.State(0)}
	}

	b := NewBuilder(name, CovenantTransfer)
	b.Account = account
	b.AddPreInput(ns.Owner)
	b.AddOutput(TxOutput{Value: owner.Coin.Value, Address: owner.Coin.Address, Covenant: NewTransferCovenant(nameHash, ns.Height, addrVersion, addrHash)})
	return b, nil
}

// Cancel reverts a pending TRANSFER by publishing an UPDATE with an empty
// resource, the CANCEL convention (§3, §4.1).
func (e *NameEngine) Cancel(ctx context.Context, name string, account uint32) (*Builder, error) {
	nameHash, ns, err := e.lookupState(ctx, name)
	if err != nil {
		return nil, err
	}
	if ns == nil || !ns.HasOwner {
		return nil, ErrNotOwned
	}
	owner, ok := e.coins.GetCredit(ns.Owner.Hash, ns.Owner.Index)
	if !ok || !owner.Own {
		return nil, ErrNotOwned
	}
	if owner.Coin.Covenant.Type != CovenantTransfer {
		return nil, ErrNotTransferring
	}
	if owner.Spent {
		return nil, &AlreadySpending{Outpoint: ns.Owner}
	}

	b := NewBuilder(name, CovenantUpdate)
	b.Account = account
	b.AddPreInput(ns.Owner)
	b.AddOutput(TxOutput{Value: owner.Coin.Value, Address: owner.Coin.Address, Covenant: NewUpdateCovenant(nameHash, ns.Height, nil)})
	return b, nil
}

// Finalize completes a pending TRANSFER once its lockup period has passed,
// moving the owner coin's address to the announced target (§4.1).
func (e *NameEngine) Finalize(ctx context.Context, name string, account uint32) (*Builder, error) {
	nameHash, ns, err := e.lookupState(ctx, name)
	if err != nil {
		return nil, err
	}
	if ns == nil || !ns.HasOwner {
		return nil, ErrNotOwned
	}
	owner, ok := e.coins.GetCredit(ns.Owner.Hash, ns.Owner.Index)
	if !ok || !owner.Own {
		return nil, ErrNotOwned
	}
	if owner.Coin.Covenant.Type != CovenantTransfer {
		return nil, ErrNotTransferring
	}
	if owner.Spent {
		return nil, &AlreadySpending{Outpoint: ns.Owner}
	}
	h, err := e.height(ctx)
	if err != nil {
		return nil, err
	}
	if owner.Coin.BlockHeight == 0 || h < owner.Coin.BlockHeight+TransferLockup {
		return nil, ErrTransferStillLocked
	}

	renewalHash, err := e.chain.GetRenewalBlock(ctx)
	if err != nil {
		return nil, Wrap(err, "get renewal block")
	}
	var flags uint8
	if ns.Weak {
		flags |= 0x1
	}
	targetAddr := owner.Coin.Covenant.AddrHash()

	b := NewBuilder(name, CovenantFinalize)
	b.Account = account
	b.AddPreInput(ns.Owner)
	b.AddOutput(TxOutput{
		Value: owner.Coin.Value, Address: targetAddr,
		Covenant: NewFinalizeCovenant(nameHash, ns.Height, name, flags, ns.Claimed, ns.Renewals+1, renewalHash),
	})
	return b, nil
}

// Revoke builds a REVOKE template permanently closing the name, legal
// against any of the closed-name ownership covenants so long as the name
// has not already expired (§4.1).
func (e *NameEngine) Revoke(ctx context.Context, name string, account uint32) (*Builder, error) {
	nameHash, ns, err := e.lookupState(ctx, name)
	if err != nil {
		return nil, err
	}
	if ns == nil || !ns.HasOwner {
		return nil, ErrNotOwned
	}
	h, err := e.height(ctx)
	if err != nil {
		return nil, err
	}
	if ns.IsExpired(h) {
		return nil, ErrExpiredName
	}
	owner, ok := e.coins.GetCredit(ns.Owner.Hash, ns.Owner.Index)
	if !ok || !owner.Own {
		return nil, ErrNotOwned
	}
	if owner.Spent {
		return nil, &AlreadySpending{Outpoint: ns.Owner}
	}
	if !owner.Coin.Covenant.IsOwnershipCovenant() {
		return nil, &WrongState{Name: name, Expected: StateClosed, Actual: ns.State(h)}
	}

	b := NewBuilder(name, CovenantRevoke)
	b.Account = account
	b.AddPreInput(ns.Owner)
	b.AddOutput(TxOutput{Value: 0, Address: owner.Coin.Address, Covenant: NewRevokeCovenant(nameHash, ns.Height)})
	return b, nil
}
