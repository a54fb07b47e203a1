package cli

// ──────────────────────────────────────────────────────────────────────────────
// HD wallet CLI – key management & transaction signing
//
// Root command:  `wallet`
// Sub‑routes:
//   create   – generate fresh 12/24‑word mnemonic + save encrypted wallet file
//   import   – import mnemonic and create wallet file
//   address  – derive address at account/index
//   sign     – sign an unsigned transaction JSON using a derived key
//
// Wallet file layout (JSON, encrypted with PBKDF2‑AES‑256‑GCM):
//   {
//     "salt": <hex>,
//     "nonce": <hex>,
//     "cipher": <hex>
//   }
//
// Env vars:
//   LOG_LEVEL          – trace|debug|info|warn|error (default info)
//
// ──────────────────────────────────────────────────────────────────────────────

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io/ioutil"
    "os"
    "sync"

    "github.com/joho/godotenv"
    "github.com/sirupsen/logrus"
    "github.com/spf13/cobra"

    "github.com/namebasehq/hsd/core"
)

// ──────────────────────────────────────────────────────────────────────────────
// Globals & middleware
// ──────────────────────────────────────────────────────────────────────────────

var (
    logger = logrus.StandardLogger()
    once   sync.Once
)

func initWalletMiddleware(cmd *cobra.Command, _ []string) error {
    var err error
    once.Do(func() {
        _ = godotenv.Load()
        lvl := os.Getenv("LOG_LEVEL")
        if lvl == "" { lvl = "info" }
        l, e := logrus.ParseLevel(lvl)
        if e != nil { err = e; return }
        logger.SetLevel(l)
        core.SetWalletLogger(logger)
    })
    return err
}

// ──────────────────────────────────────────────────────────────────────────────
// Controller logic
// ──────────────────────────────────────────────────────────────────────────────

type createFlags struct {
    bits int
    out  string
    pwd  string
}

type importFlags struct {
    mnemonic   string
    passphrase string
    pwd        string
    out        string
}

type addrFlags struct {
    wallet string
    pwd    string
    acct   uint32
    idx    uint32
}

type signFlags struct {
    wallet string
    pwd    string
    acct   uint32
    idx    uint32
    txIn   string
    txOut  string
}

func handleCreate(cmd *cobra.Command, _ []string) error {
    cf := cmd.Context().Value("cflags").(createFlags)
    w, mnemonic, err := core.NewRandomWallet(cf.bits)
    if err != nil { return err }

    ks, err := core.EncryptSeed(w.Seed(), cf.pwd)
    if err != nil { return err }
    data, _ := json.MarshalIndent(ks, "", "  ")

    if cf.out != "" {
        if err := ioutil.WriteFile(cf.out, data, 0o600); err != nil { return err }
        fmt.Fprintf(cmd.OutOrStdout(), "wallet saved to %s\n", cf.out)
    } else {
        cmd.OutOrStdout().Write(data)
        fmt.Fprintln(cmd.OutOrStdout())
    }
    fmt.Fprintf(cmd.OutOrStdout(), "mnemonic (WRITE IT DOWN): %s\n", mnemonic)
    return nil
}

func handleImport(cmd *cobra.Command, _ []string) error {
    f := cmd.Context().Value("iflags").(importFlags)
    w, err := core.WalletFromMnemonic(f.mnemonic, f.passphrase)
    if err != nil { return err }
    ks, err := core.EncryptSeed(w.Seed(), f.pwd)
    if err != nil { return err }
    data, _ := json.MarshalIndent(ks, "", "  ")
    if f.out != "" {
        if err := ioutil.WriteFile(f.out, data, 0o600); err != nil { return err }
        fmt.Fprintf(cmd.OutOrStdout(), "wallet saved to %s\n", f.out)
    } else {
        cmd.OutOrStdout().Write(data)
        fmt.Fprintln(cmd.OutOrStdout())
    }
    return nil
}

func loadWallet(path, pwd string) (*core.HDWallet, error) {
    return core.LoadKeystoreWallet(path, pwd, logger)
}

func handleAddress(cmd *cobra.Command, _ []string) error {
    af := cmd.Context().Value("aflags").(addrFlags)
    w, err := loadWallet(af.wallet, af.pwd); if err != nil { return err }
    addr, err := w.NewAddress(af.acct, af.idx); if err != nil { return err }
    fmt.Fprintln(cmd.OutOrStdout(), addr.Hex())
    return nil
}

// handleSign signs the digest of an unsigned transaction template with the
// key at (account, index) and attaches the resulting witness to every input
// — a debugging/offline-signing aid, not the path the dispatcher itself uses
// (which signs each input with the key that actually owns its credit).
func handleSign(cmd *cobra.Command, _ []string) error {
    sf := cmd.Context().Value("sflags").(signFlags)
    w, err := loadWallet(sf.wallet, sf.pwd); if err != nil { return err }
    raw, err := ioutil.ReadFile(sf.txIn); if err != nil { return err }
    var tx core.Transaction
    if err := json.Unmarshal(raw, &tx); err != nil { return err }

    digest, err := tx.Hash(); if err != nil { return err }
    witness, err := w.SignDigest(digest, sf.acct, sf.idx); if err != nil { return err }
    for i := range tx.Inputs {
        tx.Inputs[i].Witness = [][]byte{witness}
    }

    out, _ := json.MarshalIndent(&tx, "", "  ")
    if sf.txOut != "" {
        if err := ioutil.WriteFile(sf.txOut, out, 0o600); err != nil { return err }
        fmt.Fprintf(cmd.OutOrStdout(), "signed tx written to %s\n", sf.txOut)
    } else {
        cmd.OutOrStdout().Write(out)
        fmt.Fprintln(cmd.OutOrStdout())
    }
    return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Cobra command tree
// ──────────────────────────────────────────────────────────────────────────────

var walletCmd = &cobra.Command{
    Use:               "wallet",
    Short:             "HD wallet management & tx signing",
    PersistentPreRunE: initWalletMiddleware,
}

var createCmd = &cobra.Command{
    Use:  "create",
    Args: cobra.NoArgs,
    Short: "Generate a new wallet & mnemonic",
    RunE:  handleCreate,
    PreRunE: func(cmd *cobra.Command, args []string) error {
        cf := createFlags{}
        cf.bits, _ = cmd.Flags().GetInt("bits")
        cf.out, _ = cmd.Flags().GetString("out")
        cf.pwd, _ = cmd.Flags().GetString("password")
        if cf.pwd == "" { return errors.New("--password required") }
        ctx := context.WithValue(cmd.Context(), "cflags", cf)
        cmd.SetContext(ctx)
        return nil
    },
}

var importCmd = &cobra.Command{
    Use:   "import",
    Short: "Import existing mnemonic",
    Args:  cobra.NoArgs,
    RunE:  handleImport,
    PreRunE: func(cmd *cobra.Command, args []string) error {
        inf := importFlags{}
        inf.mnemonic, _ = cmd.Flags().GetString("mnemonic")
        inf.passphrase, _ = cmd.Flags().GetString("passphrase")
        inf.out, _ = cmd.Flags().GetString("out")
        inf.pwd, _ = cmd.Flags().GetString("password")
        if inf.mnemonic == "" || inf.pwd == "" { return errors.New("--mnemonic and --password required") }
        ctx := context.WithValue(cmd.Context(), "iflags", inf)
        cmd.SetContext(ctx)
        return nil
    },
}

var addressCmd = &cobra.Command{
    Use:   "address",
    Short: "Derive address",
    Args:  cobra.NoArgs,
    RunE:  handleAddress,
    PreRunE: func(cmd *cobra.Command, args []string) error {
        af := addrFlags{}
        af.wallet, _ = cmd.Flags().GetString("wallet")
        af.pwd, _ = cmd.Flags().GetString("password")
        af.acct, _ = cmd.Flags().GetUint32("account")
        af.idx, _ = cmd.Flags().GetUint32("index")
        if af.wallet == "" || af.pwd == "" { return errors.New("--wallet and --password required") }
        ctx := context.WithValue(cmd.Context(), "aflags", af)
        cmd.SetContext(ctx)
        return nil
    },
}

var signCmd = &cobra.Command{
    Use:   "sign",
    Short: "Sign an unsigned transaction JSON",
    Args:  cobra.NoArgs,
    RunE:  handleSign,
    PreRunE: func(cmd *cobra.Command, args []string) error {
        sf := signFlags{}
        sf.wallet, _ = cmd.Flags().GetString("wallet")
        sf.pwd, _ = cmd.Flags().GetString("password")
        sf.acct, _ = cmd.Flags().GetUint32("account")
        sf.idx, _ = cmd.Flags().GetUint32("index")
        sf.txIn, _ = cmd.Flags().GetString("in")
        sf.txOut, _ = cmd.Flags().GetString("out")
        if sf.wallet == "" || sf.pwd == "" || sf.txIn == "" {
            return errors.New("--wallet, --password, --in required")
        }
        ctx := context.WithValue(cmd.Context(), "sflags", sf)
        cmd.SetContext(ctx)
        return nil
    },
}

func init() {
    // create flags
    createCmd.Flags().Int("bits", 128, "entropy bits (128|256)")
    createCmd.Flags().String("out", "", "output wallet file")
    createCmd.Flags().String("password", "", "encryption password")

    // import flags
    importCmd.Flags().String("mnemonic", "", "bip39 words")
    importCmd.Flags().String("passphrase", "", "optional bip39 passphrase")
    importCmd.Flags().String("password", "", "encryption password")
    importCmd.Flags().String("out", "", "output wallet file")

    // address flags
    addressCmd.Flags().String("wallet", "", "wallet file")
    addressCmd.Flags().String("password", "", "wallet password")
    addressCmd.Flags().Uint32("account", 0, "account # (hardened)")
    addressCmd.Flags().Uint32("index", 0, "index # (hardened)")

    // sign flags
    signCmd.Flags().String("wallet", "", "wallet file")
    signCmd.Flags().String("password", "", "wallet password")
    signCmd.Flags().Uint32("account", 0, "account #")
    signCmd.Flags().Uint32("index", 0, "index #")
    signCmd.Flags().String("in", "", "unsigned tx JSON path")
    signCmd.Flags().String("out", "", "output signed tx path (stdout if empty)")

    walletCmd.AddCommand(createCmd, importCmd, addressCmd, signCmd)
}

// ──────────────────────────────────────────────────────────────────────────────
// Consolidated export
// ──────────────────────────────────────────────────────────────────────────────

var WalletCmd = walletCmd

func RegisterWallet(root *cobra.Command) { root.AddCommand(WalletCmd) }
