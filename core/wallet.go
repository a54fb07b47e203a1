package core

// HD wallet key management for the name-auction transaction engine.
//
// Features
// --------
//   * Ed25519 key-pairs only (fast, deterministic and quantum-resistant).
//   * Hierarchical Deterministic derivation (SLIP-0010 / BIP-32-like).
//   * BIP-39 mnemonic utilities (12-/24-word human recovery phrases).
//   * Address derivation (SHA-256/Ripemd-160) matching core.Address.
//   * Digest signing wired for the Signer collaborator (§6).
//
// Import hygiene: wallet depends only on crypto/log/bip39 libraries, so it
// stays at the lowest tier and everything else in core can depend on it.

import (
	"crypto/ed25519"
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/ripemd160"
)

const (
	hardenedOffset uint32 = 0x80000000
	changeIndexBit uint32 = 1 << 30

	masterHMACKey = "ed25519 seed" // SLIP-0010 master-key string
)

func SetWalletLogger(l *log.Logger) { globalLogger = l }

var globalLogger = log.New()

// HDWallet keeps master key material in-memory only.
// *NEVER* persist the private fields directly - use encrypted keystores.
//
// Derivation model: SLIP-0010 hardened children only, path m / account' /
// index' (ed25519 does not support unhardened children). Receive and change
// addresses for the same account live in disjoint index ranges: change
// indices carry changeIndexBit so the two chains never collide.
type HDWallet struct {
	seed        []byte
	masterKey   []byte
	masterChain []byte
	logger      *log.Logger

	mu          sync.Mutex
	receiveNext map[uint32]uint32
	changeNext  map[uint32]uint32
	known       map[Address]addrRecord
}

type addrRecord struct {
	account uint32
	index   uint32
}

// Seed returns a copy of the wallet's master seed. Callers should securely
// wipe the returned slice after use.
func (w *HDWallet) Seed() []byte {
	out := make([]byte, len(w.seed))
	copy(out, w.seed)
	return out
}

// NewRandomWallet generates entropyBits (128/256) of RNG entropy, returns
// wallet + mnemonic. The caller MUST wipe the mnemonic or store it securely.
func NewRandomWallet(entropyBits int) (*HDWallet, string, error) {
	if entropyBits != 128 && entropyBits != 256 {
		return nil, "", fmt.Errorf("unsupported entropy size %d", entropyBits)
	}

	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, "", fmt.Errorf("entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", fmt.Errorf("mnemonic: %w", err)
	}
	seed := bip39.NewSeed(mnemonic, "")
	w, err := NewHDWalletFromSeed(seed, globalLogger)
	if err != nil {
		return nil, "", err
	}
	return w, mnemonic, nil
}

// WalletFromMnemonic imports an existing BIP-39 phrase.
func WalletFromMnemonic(mnemonic, passphrase string) (*HDWallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic checksum")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	return NewHDWalletFromSeed(seed, globalLogger)
}

func NewHDWalletFromSeed(seed []byte, lg *log.Logger) (*HDWallet, error) {
	if len(seed) < 16 {
		return nil, errors.New("seed too short")
	}

	I := hmacSHA512([]byte(masterHMACKey), seed)

	w := &HDWallet{
		seed:        seed,
		masterKey:   I[:32],
		masterChain: I[32:],
		logger:      lg,
		receiveNext: make(map[uint32]uint32),
		changeNext:  make(map[uint32]uint32),
		known:       make(map[Address]addrRecord),
	}

	lg.Infof("wallet: master key initialised (%d bytes seed)", len(seed))
	return w, nil
}

// derivePrivate returns the key material & new chain-code for a (hardened)
// index. Only hardened derivation is supported for ed25519 - index MUST
// already carry the hardened offset.
func derivePrivate(parentKey, parentChain []byte, index uint32) (key, ccode []byte, err error) {
	if index < hardenedOffset {
		return nil, nil, errors.New("non-hardened derivation not supported for ed25519")
	}
	// Data = 0x00 || parentKey || index(be)
	data := make([]byte, 1+32+4)
	copy(data[1:], parentKey)
	binary.BigEndian.PutUint32(data[33:], index)

	I := hmacSHA512(parentChain, data)
	key = I[:32]
	ccode = I[32:]
	return key, ccode, nil
}

func hmacSHA512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// PrivateKey returns the ed25519 key pair for derivation path
// m / account' / index'. account, index are hardened internally.
func (w *HDWallet) PrivateKey(account, index uint32) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	account |= hardenedOffset
	index |= hardenedOffset

	k1, c1, err := derivePrivate(w.masterKey, w.masterChain, account)
	if err != nil {
		return nil, nil, err
	}
	k2, _, err := derivePrivate(k1, c1, index)
	if err != nil {
		return nil, nil, err
	}
	priv := ed25519.NewKeyFromSeed(k2)
	pub := priv.Public().(ed25519.PublicKey)
	return priv, pub, nil
}

// pubKeyToAddress converts a 32-byte ed25519 public key into a 20-byte
// address: SHA-256(pub) -> RIPEMD-160.
func pubKeyToAddress(pub ed25519.PublicKey) Address {
	sha := sha256.Sum256(pub)
	ripemd := ripemd160.New()
	ripemd.Write(sha[:])
	var out Address
	copy(out[:], ripemd.Sum(nil))
	return out
}

// NewAddress derives account+index and returns its Address.
func (w *HDWallet) NewAddress(account, index uint32) (Address, error) {
	_, pub, err := w.PrivateKey(account, index)
	if err != nil {
		return Address{}, err
	}
	return pubKeyToAddress(pub), nil
}

// NextReceiveAddress hands out the next unused receive address for account,
// satisfying ReceiveAddressProvider (§4.1 OPEN/BID outputs).
func (w *HDWallet) NextReceiveAddress(account uint32) (Address, error) {
	w.mu.Lock()
	idx := w.receiveNext[account]
	w.receiveNext[account] = idx + 1
	w.mu.Unlock()
	return w.deriveAndRemember(account, idx)
}

// NextChangeAddress hands out the next unused change address for account,
// satisfying ChangeAddressProvider (§4.2 Funder change outputs).
func (w *HDWallet) NextChangeAddress(account uint32) (Address, error) {
	w.mu.Lock()
	idx := w.changeNext[account]
	w.changeNext[account] = idx + 1
	w.mu.Unlock()
	return w.deriveAndRemember(account, idx|changeIndexBit)
}

func (w *HDWallet) deriveAndRemember(account, index uint32) (Address, error) {
	addr, err := w.NewAddress(account, index)
	if err != nil {
		return Address{}, err
	}
	w.mu.Lock()
	w.known[addr] = addrRecord{account: account, index: index}
	w.mu.Unlock()
	return addr, nil
}

// LocateKey resolves a previously handed-out address back to the derivation
// path used to create it, satisfying KeyLocator so the Dispatcher can sign
// a selected credit without the engine itself tracking key material.
func (w *HDWallet) LocateKey(addr Address) (account, index uint32, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rec, ok := w.known[addr]
	return rec.account, rec.index, ok
}

// SignDigest signs digest with the key at (account, index) and returns a
// self-contained witness: [64-byte signature || 32-byte public key], so a
// verifier never needs the keyring to check it. Satisfies Signer (§6).
func (w *HDWallet) SignDigest(digest Hash, account, index uint32) ([]byte, error) {
	priv, pub, err := w.PrivateKey(account, index)
	if err != nil {
		return nil, err
	}
	sig := ed25519.Sign(priv, digest[:])
	out := make([]byte, 96)
	copy(out[:64], sig)
	copy(out[64:], pub)
	w.logger.WithField("digest", digest.Short()).WithField("account", account).
		WithField("index", index).Debug("wallet: signed digest")
	return out, nil
}

// PubKeyAt derives the public key at account 0, index idx (the same
// hardened path account 0's receive chain uses for that index), satisfying
// PubKeyProvider for blind-nonce derivation (§3), which needs a
// deterministic pubkey per bid value.
func (w *HDWallet) PubKeyAt(idx uint32) ([]byte, error) {
	_, pub, err := w.PrivateKey(0, idx)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// WatchOnly reports false: an HDWallet always holds signing key material.
func (w *HDWallet) WatchOnly() bool { return false }

// AddressIndexSnapshot is the persisted shape of a wallet's address
// derivation bookkeeping (next receive/change index per account, and every
// address handed out so far). The seed itself is never part of this
// snapshot; callers persist it separately via an encrypted keystore.
type AddressIndexSnapshot struct {
	ReceiveNext map[uint32]uint32  `json:"receive_next"`
	ChangeNext  map[uint32]uint32  `json:"change_next"`
	Known       map[string]addrRec `json:"known"`
}

type addrRec struct {
	Account uint32 `json:"account"`
	Index   uint32 `json:"index"`
}

// IndexSnapshot returns the wallet's current address-derivation bookkeeping,
// so a CLI process can persist it between invocations and resume handing out
// addresses (and locating keys for previously-issued ones) without starting
// over at index 0 every run.
func (w *HDWallet) IndexSnapshot() AddressIndexSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := AddressIndexSnapshot{
		ReceiveNext: make(map[uint32]uint32, len(w.receiveNext)),
		ChangeNext:  make(map[uint32]uint32, len(w.changeNext)),
		Known:       make(map[string]addrRec, len(w.known)),
	}
	for k, v := range w.receiveNext {
		snap.ReceiveNext[k] = v
	}
	for k, v := range w.changeNext {
		snap.ChangeNext[k] = v
	}
	for addr, rec := range w.known {
		snap.Known[addr.Hex()] = addrRec{Account: rec.account, Index: rec.index}
	}
	return snap
}

// RestoreIndex installs a previously saved AddressIndexSnapshot, resuming
// address derivation from where a prior process left off.
func (w *HDWallet) RestoreIndex(snap AddressIndexSnapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for k, v := range snap.ReceiveNext {
		w.receiveNext[k] = v
	}
	for k, v := range snap.ChangeNext {
		w.changeNext[k] = v
	}
	for hexAddr, rec := range snap.Known {
		addr, err := addressFromHex(hexAddr)
		if err != nil {
			return fmt.Errorf("restore wallet index: %w", err)
		}
		w.known[addr] = addrRecord{account: rec.Account, index: rec.Index}
	}
	return nil
}

// WatchOnlyWallet tracks addresses without their private keys. It satisfies
// Signer and PubKeyProvider so a watch-only account can still be indexed and
// scanned, but every signing attempt fails with ErrCannotSignWatchOnly (§6).
type WatchOnlyWallet struct{}

func (WatchOnlyWallet) SignDigest(Hash, uint32, uint32) ([]byte, error) {
	return nil, ErrCannotSignWatchOnly
}

func (WatchOnlyWallet) PubKeyAt(uint32) ([]byte, error) {
	return nil, ErrCannotSignWatchOnly
}

func (WatchOnlyWallet) WatchOnly() bool { return true }

// RandomMnemonicEntropy produces cryptographically-secure random entropy of
// the given number of bits.
func RandomMnemonicEntropy(bits int) ([]byte, error) {
	if bits%32 != 0 {
		return nil, errors.New("entropy bits must be multiple of 32")
	}
	b := make([]byte, bits/8)
	if _, err := crand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Wipe zeroes a byte slice in-place (best-effort - GC might still copy).
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
