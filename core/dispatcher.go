package core

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Dispatcher sequences every collaborator a single name action or batch
// needs: idempotency cache -> fund lock -> template construction -> coin
// selection -> signing -> broadcast -> write lock -> credit bookkeeping
// (§4.5, §4.6, §4.7). The cache is consulted first; only a producer that
// actually runs takes the fund lock. Each public method is safe to call concurrently; the
// LockManager and IdempotencyCache underneath enforce that only one producer
// ever builds a transaction for a given (action, key), and that no two
// producers ever select the same coin.
type Dispatcher struct {
	engine  *NameEngine
	funder  *Funder
	planner *BatchPlanner
	locks   *LockManager
	idem    *IdempotencyCache
	coins   *CoinIndex
	chain   ChainWriter
	signer  Signer
	keys    KeyLocator
	store   PersistentStore
	logger  *logrus.Logger
}

func NewDispatcher(
	engine *NameEngine,
	funder *Funder,
	planner *BatchPlanner,
	locks *LockManager,
	idem *IdempotencyCache,
	coins *CoinIndex,
	chain ChainWriter,
	signer Signer,
	keys KeyLocator,
	store PersistentStore,
	lg *logrus.Logger,
) *Dispatcher {
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	return &Dispatcher{
		engine: engine, funder: funder, planner: planner, locks: locks,
		idem: idem, coins: coins, chain: chain, signer: signer, keys: keys,
		store: store, logger: lg,
	}
}

// Result is what a successful single or batched dispatch reports back.
type Result struct {
	Tx   *Transaction
	Hash Hash
}

// buildFunc produces the unsigned, unfunded template for one action. It is
// called at most once per (action, key) pair, inside the fund lock, thanks
// to the IdempotencyCache + LockManager composition in dispatch.
type buildFunc func(ctx context.Context) (*Builder, error)

// dispatch is the shared spine every single-name action method below drives:
// idempotency-gated, fund-locked, funded, signed, broadcast, and booked.
func (d *Dispatcher) dispatch(ctx context.Context, action, key string, build buildFunc, opts FundOptions) (*Result, error) {
	v, fromCache, err := d.idem.WithCache(action, key, func() (interface{}, error) {
		return d.run(ctx, build, opts)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*Result)
	if fromCache {
		d.logger.WithField("action", action).WithField("key", key).Debug("dispatcher: replayed cached result")
	}
	return res, nil
}

// run executes one producer's worth of work under the fund lock: build,
// fund, sign, broadcast, then book the resulting spends/credits under the
// write lock (§4.6: fund lock acquired first, write lock nested inside it).
func (d *Dispatcher) run(ctx context.Context, build buildFunc, opts FundOptions) (res *Result, err error) {
	fs := d.locks.AcquireFund()
	defer fs.Release()

	b, err := build(ctx)
	if err != nil {
		return nil, err
	}
	if b.Action == CovenantOpen {
		// A broadcast OPEN stays pending; one that fails before broadcast is
		// abandoned, so its names may be opened again.
		defer func() {
			if err != nil {
				for _, out := range b.Outputs {
					d.engine.ClearPendingOpen(out.Covenant.NameHash())
				}
			}
		}()
	}

	for _, in := range b.PreInputs {
		if !fs.LockCoin(in.Outpoint) {
			return nil, &AlreadySpending{Outpoint: in.Outpoint}
		}
	}

	tx, err := d.funder.Fund(ctx, fs, b, opts)
	if err != nil {
		return nil, err
	}

	if err := d.sign(tx); err != nil {
		return nil, err
	}

	txHash, err := d.chain.Send(ctx, tx)
	if err != nil {
		return nil, Wrap(err, "broadcast transaction")
	}

	d.book(tx, txHash)

	d.logger.WithField("name", b.Name).WithField("action", b.Action.String()).
		WithField("tx", txHash.Short()).Info("dispatcher: broadcast")
	return &Result{Tx: tx, Hash: txHash}, nil
}

// sign computes the template's pre-witness digest once, then signs every
// input with the key that owns its credit, looked up by address through
// KeyLocator so neither NameEngine nor CoinIndex ever touch key material.
func (d *Dispatcher) sign(tx *Transaction) error {
	if d.signer.WatchOnly() {
		return ErrCannotSignWatchOnly
	}
	digest, err := tx.Hash()
	if err != nil {
		return Wrap(err, "digest transaction")
	}
	for i, in := range tx.Inputs {
		credit, ok := d.coins.GetCredit(in.Outpoint.Hash, in.Outpoint.Index)
		if !ok || !credit.Own {
			return &AlreadySpending{Outpoint: in.Outpoint}
		}
		account, index, ok := d.keys.LocateKey(credit.Coin.Address)
		if !ok {
			return ErrNotOwned
		}
		witness, err := d.signer.SignDigest(digest, account, index)
		if err != nil {
			return Wrap(err, "sign input")
		}
		tx.Inputs[i].Witness = [][]byte{witness}
	}
	return nil
}

// book marks every spent input's credit and indexes every output the wallet
// itself controls as a new, unconfirmed credit, all inside the write lock and
// committed to the persistent store before the in-memory index reflects it
// (§4.3, §4.6: never let a crash between disk and memory duplicate a spend).
func (d *Dispatcher) book(tx *Transaction, txHash Hash) {
	ws := d.locks.AcquireWrite()
	defer ws.Release()

	batch := d.coins.Batch()
	for _, in := range tx.Inputs {
		if credit, ok := d.coins.GetCredit(in.Outpoint.Hash, in.Outpoint.Index); ok {
			credit.Spent = true
			batch.PutCredit(credit)
		}
	}
	for idx, out := range tx.Outputs {
		acct, _, ok := d.keys.LocateKey(out.Address)
		if !ok {
			continue
		}
		batch.PutCredit(Credit{
			Coin: Coin{
				Outpoint: Outpoint{Hash: txHash, Index: uint32(idx)},
				Value:    out.Value,
				Covenant: out.Covenant,
				Address:  out.Address,
			},
			Own:     true,
			Account: acct,
		})
	}
	if err := batch.Persist(d.store); err != nil {
		d.logger.WithError(err).Error("dispatcher: persistent batch write failed, discarding memory batch")
	}
}

// ──────────────────────────────────────────────────────────────────────────
// Single-name actions (§4.1, §4.5)
// ──────────────────────────────────────────────────────────────────────────

func (d *Dispatcher) Open(ctx context.Context, name string, account uint32, req ActionRequest) (*Result, error) {
	return d.dispatch(ctx, "open", req.IdempotencyKey, func(ctx context.Context) (*Builder, error) {
		return d.engine.Open(ctx, name, account)
	}, req.Fund)
}

func (d *Dispatcher) Bid(ctx context.Context, name string, value, lockup uint64, account uint32, addr Address, req ActionRequest) (*Result, error) {
	return d.dispatch(ctx, "bid", req.IdempotencyKey, func(ctx context.Context) (*Builder, error) {
		return d.engine.Bid(ctx, name, value, lockup, account, addr)
	}, req.Fund)
}

func (d *Dispatcher) Reveal(ctx context.Context, name string, account uint32, req ActionRequest) (*Result, error) {
	return d.dispatch(ctx, "reveal", req.IdempotencyKey, func(ctx context.Context) (*Builder, error) {
		return d.engine.Reveal(ctx, name, account)
	}, req.Fund)
}

func (d *Dispatcher) Redeem(ctx context.Context, name string, account uint32, req ActionRequest) (*Result, error) {
	return d.dispatch(ctx, "redeem", req.IdempotencyKey, func(ctx context.Context) (*Builder, error) {
		return d.engine.Redeem(ctx, name, account)
	}, req.Fund)
}

func (d *Dispatcher) Update(ctx context.Context, name string, resource []byte, account uint32, req ActionRequest) (*Result, error) {
	return d.dispatch(ctx, "update", req.IdempotencyKey, func(ctx context.Context) (*Builder, error) {
		return d.engine.Update(ctx, name, resource, account)
	}, req.Fund)
}

func (d *Dispatcher) Renew(ctx context.Context, name string, account uint32, req ActionRequest) (*Result, error) {
	return d.dispatch(ctx, "renew", req.IdempotencyKey, func(ctx context.Context) (*Builder, error) {
		return d.engine.Renew(ctx, name, account)
	}, req.Fund)
}

func (d *Dispatcher) Transfer(ctx context.Context, name string, addrVersion uint8, addrHash Address, account uint32, req ActionRequest) (*Result, error) {
	return d.dispatch(ctx, "transfer", req.IdempotencyKey, func(ctx context.Context) (*Builder, error) {
		return d.engine.Transfer(ctx, name, addrVersion, addrHash, account)
	}, req.Fund)
}

func (d *Dispatcher) Cancel(ctx context.Context, name string, account uint32, req ActionRequest) (*Result, error) {
	return d.dispatch(ctx, "cancel", req.IdempotencyKey, func(ctx context.Context) (*Builder, error) {
		return d.engine.Cancel(ctx, name, account)
	}, req.Fund)
}

func (d *Dispatcher) Finalize(ctx context.Context, name string, account uint32, req ActionRequest) (*Result, error) {
	return d.dispatch(ctx, "finalize", req.IdempotencyKey, func(ctx context.Context) (*Builder, error) {
		return d.engine.Finalize(ctx, name, account)
	}, req.Fund)
}

func (d *Dispatcher) Revoke(ctx context.Context, name string, account uint32, req ActionRequest) (*Result, error) {
	return d.dispatch(ctx, "revoke", req.IdempotencyKey, func(ctx context.Context) (*Builder, error) {
		return d.engine.Revoke(ctx, name, account)
	}, req.Fund)
}

// ActionRequest carries the per-call idempotency key and funding knobs
// shared by every single-name action.
type ActionRequest struct {
	IdempotencyKey string
	Fund           FundOptions
}

// ──────────────────────────────────────────────────────────────────────────
// Sweeps and batches (§4.1, §4.4)
// ──────────────────────────────────────────────────────────────────────────

// RevealAll builds one REVEAL builder per eligible name, packs as many as
// fit into a single transaction with the strict policy (a partial reveal
// would change auction semantics), broadcasts the packed transaction, and
// installs its result under every packed name in the "reveal" bucket so a
// later Reveal call keyed by that name replays instead of re-broadcasting
// (§4.4, §4.5). Names that didn't fit are reported, never silently dropped.
func (d *Dispatcher) RevealAll(ctx context.Context, account uint32, req ActionRequest) (*Result, []RejectedDomain, error) {
	return d.dispatchBatch(ctx, "reveal", req, func(ctx context.Context) (map[string]*Builder, error) {
		return d.engine.RevealAll(ctx, account)
	}, true)
}

// RedeemAll mirrors RevealAll for losing-bid redemption sweeps.
func (d *Dispatcher) RedeemAll(ctx context.Context, account uint32, req ActionRequest) (*Result, []RejectedDomain, error) {
	return d.dispatchBatch(ctx, "redeem", req, func(ctx context.Context) (map[string]*Builder, error) {
		return d.engine.RedeemAll(ctx, account)
	}, true)
}

// Finish builds and broadcasts the single-name FINISH (REDEEM+REGISTER)
// transaction for name (§4.1, §4.5 "finish" bucket).
func (d *Dispatcher) Finish(ctx context.Context, name string, resource []byte, account uint32, req ActionRequest) (*Result, error) {
	return d.dispatch(ctx, "finish", req.IdempotencyKey, func(ctx context.Context) (*Builder, error) {
		return d.engine.Finish(ctx, name, resource, account)
	}, req.Fund)
}

// FinishAll sweeps every name that still needs a REDEEM, a REGISTER, or both
// into one strictly packed FINISH batch, mirroring RevealAll/RedeemAll
// (§4.1, §4.4 "FINISH ... uses strict packing").
func (d *Dispatcher) FinishAll(ctx context.Context, account uint32, req ActionRequest) (*Result, []RejectedDomain, error) {
	return d.dispatchBatch(ctx, "finish", req, func(ctx context.Context) (map[string]*Builder, error) {
		return d.engine.FinishAll(ctx, account)
	}, true)
}

// OpenMany builds and broadcasts one OPEN transaction covering every name in
// names, capped at NameEngine's array-length budget (§4.4 "OPEN and BID use
// validator-enforced array-length caps").
func (d *Dispatcher) OpenMany(ctx context.Context, names []string, account uint32, req ActionRequest) (*Result, error) {
	return d.dispatch(ctx, "open_all", req.IdempotencyKey, func(ctx context.Context) (*Builder, error) {
		return d.engine.OpenMany(ctx, names, account)
	}, req.Fund)
}

// BidMany builds and broadcasts one BID transaction covering every entry in
// bids, capped at NameEngine's array-length budget (§4.4).
func (d *Dispatcher) BidMany(ctx context.Context, bids []BidRequest, account uint32, req ActionRequest) (*Result, error) {
	return d.dispatch(ctx, "bid_all", req.IdempotencyKey, func(ctx context.Context) (*Builder, error) {
		return d.engine.BidMany(ctx, bids, account)
	}, req.Fund)
}

// Send builds and broadcasts a plain, covenant-free payment of value to to
// from account, the wallet-level spend spec.md §4.5 caches under its
// "send_many" bucket and §8 scenario 5 exercises concurrently. It has no
// NameEngine counterpart: an ordinary send never touches an auction.
func (d *Dispatcher) Send(ctx context.Context, to Address, value uint64, account uint32, req ActionRequest) (*Result, error) {
	return d.dispatch(ctx, "send_many", req.IdempotencyKey, func(ctx context.Context) (*Builder, error) {
		b := NewBuilder("", CovenantNone)
		b.Account = account
		b.AddOutput(TxOutput{Value: value, Address: to, Covenant: Covenant{Type: CovenantNone}})
		return b, nil
	}, req.Fund)
}

// dispatchBatch is the batch counterpart of dispatch: it runs builders under
// a single producer call gated by the sweep's own idempotency key, packs
// them with the strict or partial policy, funds/signs/broadcasts the packed
// result once, and installs that one result under every packed domain's
// per-name key so later single-name lookups replay it.
func (d *Dispatcher) dispatchBatch(ctx context.Context, action string, req ActionRequest, collect func(context.Context) (map[string]*Builder, error), strict bool) (*Result, []RejectedDomain, error) {
	type batchOutcome struct {
		res      *Result
		rejected []RejectedDomain
		packed   []string
	}

	v, _, err := d.idem.WithCache(action+"_all", req.IdempotencyKey, func() (interface{}, error) {
		fs := d.locks.AcquireFund()
		defer fs.Release()

		domains, err := collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(domains) == 0 {
			return &batchOutcome{}, nil
		}

		var packed *Builder
		var rejected []RejectedDomain
		if strict {
			packed, rejected = d.planner.CreateStrictBatch(domains)
		} else {
			packed, rejected = d.planner.CreateBatch(domains)
		}
		if len(packed.Outputs) == 0 {
			return &batchOutcome{rejected: rejected}, nil
		}

		for _, in := range packed.PreInputs {
			if !fs.LockCoin(in.Outpoint) {
				return nil, &AlreadySpending{Outpoint: in.Outpoint}
			}
		}

		tx, err := d.funder.Fund(ctx, fs, packed, req.Fund)
		if err != nil {
			return nil, err
		}
		if err := d.sign(tx); err != nil {
			return nil, err
		}
		txHash, err := d.chain.Send(ctx, tx)
		if err != nil {
			return nil, Wrap(err, "broadcast batch transaction")
		}
		d.book(tx, txHash)

		rejectedNames := make(map[string]bool, len(rejected))
		for _, r := range rejected {
			rejectedNames[r.Name] = true
		}
		var packedNames []string
		for name := range domains {
			if !rejectedNames[name] {
				packedNames = append(packedNames, name)
			}
		}

		res := &Result{Tx: tx, Hash: txHash}
		for _, name := range packedNames {
			d.idem.Put(action, name, res)
		}

		d.logger.WithField("action", action+"_all").WithField("packed", len(packedNames)).
			WithField("rejected", len(rejected)).WithField("tx", txHash.Short()).Info("dispatcher: batch broadcast")
		return &batchOutcome{res: res, rejected: rejected, packed: packedNames}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	out := v.(*batchOutcome)
	return out.res, out.rejected, nil
}

// ──────────────────────────────────────────────────────────────────────────
// Administration (§4.5, §6)
// ──────────────────────────────────────────────────────────────────────────

// ClearCache evicts every cached result for action ("open", "bid", ...).
func (d *Dispatcher) ClearCache(action string) { d.idem.ClearCache(action) }

// ClearCacheKey evicts a single cached (action, key) result.
func (d *Dispatcher) ClearCacheKey(action, key string) { d.idem.ClearCacheKey(action, key) }
