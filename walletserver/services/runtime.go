package services

// Runtime is the long-lived counterpart of cmd/cli's per-invocation
// nameRuntime: the HTTP adapter loads the demo chain stub, coin index and
// blind store once at startup, keeps a single Dispatcher wired for the
// process lifetime, and flushes the mutated components back to disk after
// every request that could have changed them, under a single mutex so two
// concurrent requests never interleave a read-modify-write cycle against
// the on-disk stores.

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/namebasehq/hsd/core"
)

type Runtime struct {
	mu sync.Mutex

	dataDir string
	logger  *logrus.Logger

	Wallet *core.HDWallet
	Chain  *core.ChainStub
	store  *core.MemStore
	// bstore is the file-backed store under Blinds; persistLocked saves it.
	bstore *core.MemStore
	Blinds *core.BlindStore
	Coins  *core.CoinIndex
	Disp   *core.Dispatcher
}

func chainPath(dataDir string) string  { return filepath.Join(dataDir, "chain.json") }
func coinsPath(dataDir string) string  { return filepath.Join(dataDir, "coins.json") }
func blindsPath(dataDir string) string { return filepath.Join(dataDir, "blinds.json") }
func indexPath(dataDir string) string  { return filepath.Join(dataDir, "wallet.index.json") }

// NewRuntime loads every on-disk component for dataDir and wires a
// Dispatcher around the given wallet, mirroring the composition order
// core/dispatcher.go documents.
func NewRuntime(dataDir string, wallet *core.HDWallet, lg *logrus.Logger) (*Runtime, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, err
	}

	if raw, err := os.ReadFile(indexPath(dataDir)); err == nil {
		var snap core.AddressIndexSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, err
		}
		if err := wallet.RestoreIndex(snap); err != nil {
			return nil, err
		}
	}

	chain, err := core.LoadChainStub(chainPath(dataDir))
	if err != nil {
		return nil, err
	}
	store, err := core.LoadFileStore(coinsPath(dataDir))
	if err != nil {
		return nil, err
	}
	blindStoreFile, err := core.LoadFileStore(blindsPath(dataDir))
	if err != nil {
		return nil, err
	}
	blinds, err := core.NewBlindStore(blindStoreFile, lg)
	if err != nil {
		return nil, err
	}
	coins, err := core.LoadCoinIndexFromStore(store, lg)
	if err != nil {
		return nil, err
	}

	locks := core.NewLockManager(lg)
	funder := core.NewFunder(coins, locks, chain, wallet, lg)
	planner := core.NewBatchPlanner(0)
	idem := core.NewIdempotencyCache(0, lg)
	engine := core.NewNameEngine(chain, coins, blinds, wallet, wallet, lg)
	disp := core.NewDispatcher(engine, funder, planner, locks, idem, coins, chain, wallet, wallet, store, lg)

	return &Runtime{
		dataDir: dataDir,
		logger:  lg,
		Wallet:  wallet,
		Chain:   chain,
		store:   store,
		bstore:  blindStoreFile,
		Blinds:  blinds,
		Coins:   coins,
		Disp:    disp,
	}, nil
}

// persistLocked flushes the chain stub, coin store, blind store and wallet
// address-derivation index back to dataDir. Assumes rt.mu is already held — the
// blind store's hot layer already writes through its PersistentStore on
// every Put (see core/blindstore.go), so only its backing file needs a
// flush alongside the others.
func (rt *Runtime) persistLocked() error {
	if err := rt.Chain.SaveStub(chainPath(rt.dataDir)); err != nil {
		return err
	}
	if err := rt.store.SaveTo(coinsPath(rt.dataDir)); err != nil {
		return err
	}
	if err := rt.bstore.SaveTo(blindsPath(rt.dataDir)); err != nil {
		return err
	}
	snap := rt.Wallet.IndexSnapshot()
	buf, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(indexPath(rt.dataDir), buf, 0o600)
}

// Mutate runs fn under the runtime lock and, if it succeeds, persists the
// chain/coin/wallet-index state before releasing the lock — so a
// concurrent request never observes a state change without its on-disk
// counterpart, and never races the flush itself.
func (rt *Runtime) Mutate(fn func() error) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	return rt.persistLocked()
}

// ActionParams is the common JSON request body shared by every name
// operation: the account to spend from, an idempotency key, and the
// coin-selection knobs FundOptions needs.
type ActionParams struct {
	Account        uint32 `json:"account"`
	IdempotencyKey string `json:"idempotency_key"`
	FeeRate        uint64 `json:"fee_rate"`
	Policy         string `json:"policy"`
	Sort           *bool  `json:"sort"`
}

func (p ActionParams) fundOptions() core.FundOptions {
	sort := true
	if p.Sort != nil {
		sort = *p.Sort
	}
	policy := p.Policy
	if policy == "" {
		policy = string(core.SelectAge)
	}
	return core.FundOptions{
		Account: p.Account,
		Policy:  core.SelectionPolicy(policy),
		FeeRate: p.FeeRate,
		Sort:    sort,
	}
}

// Request builds the ActionRequest a Dispatcher call needs, minting a fresh
// idempotency key when the caller didn't supply one.
func (p ActionParams) Request() core.ActionRequest {
	key := p.IdempotencyKey
	if key == "" {
		key = core.NewIdempotencyKey()
	}
	return core.ActionRequest{IdempotencyKey: key, Fund: p.fundOptions()}
}
