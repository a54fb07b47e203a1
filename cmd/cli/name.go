package cli

// ──────────────────────────────────────────────────────────────────────────────
// Name-auction CLI – one subcommand per Dispatcher operation
//
// Root command: `name`
// Sub-routes mirror core.Dispatcher 1:1: open, open-all, bid, bid-all,
// reveal, reveal-all, redeem, redeem-all, finish, finish-all, update, renew,
// transfer, cancel, finalize, revoke, send, clear-cache, clear-cache-key.
//
// Every invocation is a fresh process, so the demo chain stub, coin index
// and blind store are loaded from JSON files under --data-dir on start and
// saved back on exit; the wallet's address-derivation bookkeeping is
// persisted the same way so a later invocation can still resolve an address
// issued by an earlier one (see core.HDWallet.IndexSnapshot).
// ──────────────────────────────────────────────────────────────────────────────

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/namebasehq/hsd/core"
)

func parseUint64(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }

func errRequired(flag string) error { return fmt.Errorf("%s required", flag) }

type nameRuntime struct {
	dataDir string

	wallet *core.HDWallet
	chain  *core.ChainStub
	store  *core.MemStore
	blinds *core.BlindStore
	// bstore is the file-backed store under blinds; close saves it.
	bstore *core.MemStore

	coins   *core.CoinIndex
	locks   *core.LockManager
	funder  *core.Funder
	planner *core.BatchPlanner
	idem    *core.IdempotencyCache
	disp    *core.Dispatcher
}

type nameFlags struct {
	wallet   string
	pwd      string
	dataDir  string
	account  uint32
	idempKey string
	feeRate  uint64
	policy   string
	sort     bool
}

func (nf *nameFlags) register(cmd *cobra.Command) {
	cmd.Flags().String("wallet", "", "wallet keystore file")
	cmd.Flags().String("password", "", "wallet password")
	cmd.Flags().String("data-dir", "./.hsw", "directory holding the demo chain/coin/blind stores")
	cmd.Flags().Uint32("account", 0, "account #")
	cmd.Flags().String("idempotency-key", "", "idempotency key (random if empty)")
	cmd.Flags().Uint64("fee-rate", 0, "explicit fee rate, sat/kB (0 = estimate)")
	cmd.Flags().String("policy", "age", "coin-selection policy: age|random|all|smart")
	cmd.Flags().Bool("sort", true, "BIP69 sort inputs/outputs")
}

func (nf *nameFlags) parse(cmd *cobra.Command) error {
	nf.wallet, _ = cmd.Flags().GetString("wallet")
	nf.pwd, _ = cmd.Flags().GetString("password")
	nf.dataDir, _ = cmd.Flags().GetString("data-dir")
	nf.account, _ = cmd.Flags().GetUint32("account")
	nf.idempKey, _ = cmd.Flags().GetString("idempotency-key")
	nf.feeRate, _ = cmd.Flags().GetUint64("fee-rate")
	nf.policy, _ = cmd.Flags().GetString("policy")
	nf.sort, _ = cmd.Flags().GetBool("sort")
	if nf.wallet == "" || nf.pwd == "" {
		return fmt.Errorf("--wallet and --password required")
	}
	if nf.idempKey == "" {
		nf.idempKey = core.NewIdempotencyKey()
	}
	return nil
}

func (nf *nameFlags) fundOptions() core.FundOptions {
	return core.FundOptions{
		Account: nf.account,
		Policy:  core.SelectionPolicy(nf.policy),
		FeeRate: nf.feeRate,
		Sort:    nf.sort,
	}
}

func (nf *nameFlags) request() core.ActionRequest {
	return core.ActionRequest{IdempotencyKey: nf.idempKey, Fund: nf.fundOptions()}
}

func chainPath(dataDir string) string  { return filepath.Join(dataDir, "chain.json") }
func coinsPath(dataDir string) string  { return filepath.Join(dataDir, "coins.json") }
func blindsPath(dataDir string) string { return filepath.Join(dataDir, "blinds.json") }
func indexPath(dataDir string) string  { return filepath.Join(dataDir, "wallet.index.json") }

// openRuntime loads every on-disk component and wires a Dispatcher, mirroring
// the composition order core/dispatcher.go itself documents.
func openRuntime(nf nameFlags) (*nameRuntime, error) {
	if err := os.MkdirAll(nf.dataDir, 0o700); err != nil {
		return nil, err
	}

	w, err := loadWallet(nf.wallet, nf.pwd)
	if err != nil {
		return nil, err
	}
	if raw, err := ioutil.ReadFile(indexPath(nf.dataDir)); err == nil {
		var snap core.AddressIndexSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, err
		}
		if err := w.RestoreIndex(snap); err != nil {
			return nil, err
		}
	}

	chain, err := core.LoadChainStub(chainPath(nf.dataDir))
	if err != nil {
		return nil, err
	}
	store, err := core.LoadFileStore(coinsPath(nf.dataDir))
	if err != nil {
		return nil, err
	}
	blindStoreFile, err := core.LoadFileStore(blindsPath(nf.dataDir))
	if err != nil {
		return nil, err
	}
	blinds, err := core.NewBlindStore(blindStoreFile, logger)
	if err != nil {
		return nil, err
	}
	coins, err := core.LoadCoinIndexFromStore(store, logger)
	if err != nil {
		return nil, err
	}

	locks := core.NewLockManager(logger)
	funder := core.NewFunder(coins, locks, chain, w, logger)
	planner := core.NewBatchPlanner(0)
	idem := core.NewIdempotencyCache(0, logger)
	engine := core.NewNameEngine(chain, coins, blinds, w, w, logger)
	disp := core.NewDispatcher(engine, funder, planner, locks, idem, coins, chain, w, w, store, logger)

	return &nameRuntime{
		dataDir: nf.dataDir,
		wallet:  w,
		chain:   chain,
		store:   store,
		blinds:  blinds,
		bstore:  blindStoreFile,
		coins:   coins,
		locks:   locks,
		funder:  funder,
		planner: planner,
		idem:    idem,
		disp:    disp,
	}, nil
}

// close persists every component modified during the command back to disk.
// The blind store's own hot layer writes straight through its PersistentStore
// on every Put (see core/blindstore.go), so only its backing file needs a
// final flush here, same as the coin store and chain stub.
func (rt *nameRuntime) close() error {
	if err := rt.chain.SaveStub(chainPath(rt.dataDir)); err != nil {
		return err
	}
	if err := rt.store.SaveTo(coinsPath(rt.dataDir)); err != nil {
		return err
	}
	if err := rt.bstore.SaveTo(blindsPath(rt.dataDir)); err != nil {
		return err
	}
	snap := rt.wallet.IndexSnapshot()
	buf, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(indexPath(rt.dataDir), buf, 0o600)
}

func printResult(cmd *cobra.Command, res *core.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "tx %s broadcast (%d inputs, %d outputs)\n",
		res.Hash.Hex(), len(res.Tx.Inputs), len(res.Tx.Outputs))
}

func printBatchResult(cmd *cobra.Command, res *core.Result, rejected []core.RejectedDomain) {
	if res != nil {
		printResult(cmd, res)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to pack")
	}
	for _, r := range rejected {
		fmt.Fprintf(cmd.OutOrStdout(), "rejected %s: %v (remaining %d)\n", r.Name, r.Err, r.Remaining)
	}
}

var nameCmd = &cobra.Command{
	Use:               "name",
	Short:             "Handshake name auction/management operations",
	PersistentPreRunE: initWalletMiddleware,
}

// RegisterName attaches the name command tree to root.
func RegisterName(root *cobra.Command) { root.AddCommand(nameCmd) }

func withRuntime(cmd *cobra.Command, nf *nameFlags, fn func(ctx context.Context, rt *nameRuntime) error) error {
	if err := nf.parse(cmd); err != nil {
		return err
	}
	rt, err := openRuntime(*nf)
	if err != nil {
		return err
	}
	if err := fn(cmd.Context(), rt); err != nil {
		return err
	}
	return rt.close()
}
