package controllers

// WalletController exposes keystore lifecycle operations: minting a fresh
// wallet, importing an existing mnemonic, and deriving addresses/signing
// digests against the wallet the server loaded at startup (rt.Wallet).
// Earlier versions of these endpoints accepted a raw core.HDWallet in the
// request body, which shipped a wallet's seed over HTTP on every call;
// every handler here operates on the server-resident wallet instead.

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/namebasehq/hsd/core"
	"github.com/namebasehq/hsd/walletserver/services"
)

type WalletController struct {
	svc *services.WalletService
	rt  *services.Runtime
}

func NewWalletController(svc *services.WalletService, rt *services.Runtime) *WalletController {
	return &WalletController{svc: svc, rt: rt}
}

// Create mints a brand new wallet keystore and returns its mnemonic plus the
// encrypted keystore JSON; it does not touch the server's loaded wallet.
func (wc *WalletController) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Bits     int    `json:"bits"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if req.Bits == 0 {
		req.Bits = 128
	}
	if req.Password == "" {
		writeErr(w, http.StatusBadRequest, errRequired("password"))
		return
	}
	wallet, mnemonic, err := wc.svc.CreateWallet(req.Bits)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	ks, err := core.EncryptSeed(wallet.Seed(), req.Password)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mnemonic": mnemonic, "keystore": ks})
}

// Import derives a wallet from an existing mnemonic and returns its
// encrypted keystore JSON; like Create, it does not replace the server's
// loaded wallet (that requires a restart against the new keystore file).
func (wc *WalletController) Import(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mnemonic   string `json:"mnemonic"`
		Passphrase string `json:"passphrase"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if req.Mnemonic == "" || req.Password == "" {
		writeErr(w, http.StatusBadRequest, errRequired("mnemonic and password"))
		return
	}
	wallet, err := wc.svc.ImportWallet(req.Mnemonic, req.Passphrase)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	ks, err := core.EncryptSeed(wallet.Seed(), req.Password)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keystore": ks})
}

// Address derives an address at account/index from the server's loaded
// wallet.
func (wc *WalletController) Address(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account uint32 `json:"account"`
		Index   uint32 `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	addr, err := wc.svc.DeriveAddress(wc.rt.Wallet, req.Account, req.Index)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr.Hex()})
}

// SignDigest signs a caller-supplied 32-byte digest with the key at
// account/index — an offline-signing aid mirroring cmd/cli/wallet.go's
// `sign` command, not the path the dispatcher itself uses.
func (wc *WalletController) SignDigest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Digest  string `json:"digest"`
		Account uint32 `json:"account"`
		Index   uint32 `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	raw, err := hex.DecodeString(req.Digest)
	if err != nil || len(raw) != 32 {
		writeErr(w, http.StatusBadRequest, errRequired("32-byte hex digest"))
		return
	}
	var digest core.Hash
	copy(digest[:], raw)
	sig, err := wc.rt.Wallet.SignDigest(digest, req.Account, req.Index)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"signature": hex.EncodeToString(sig)})
}
