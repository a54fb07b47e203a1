// Package core implements the wallet-side transaction engine that drives a
// Handshake name through its auction lifecycle and constructs the covenant
// transactions that implement each transition.
package core

import (
	"encoding/hex"
	"fmt"
)

// Address is a 20-byte account/script identifier, matching the on-chain
// address encoding (version + hash are carried separately where needed,
// e.g. in the TRANSFER covenant).
type Address [20]byte

// Hex returns the full hexadecimal representation of the address.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// Short returns a shortened version (first 4 + last 4 hex chars).
func (a Address) Short() string {
	full := hex.EncodeToString(a[:])
	if len(full) <= 8 {
		return full
	}
	return fmt.Sprintf("%s..%s", full[:4], full[len(full)-4:])
}

// ParseAddress decodes a hex string produced by Address.Hex (with or
// without its "0x" prefix) back into an Address, for callers (CLI flags,
// HTTP request bodies) that only have the text form.
func ParseAddress(s string) (Address, error) { return addressFromHex(s) }

// addressFromHex decodes a hex string produced by Address.Hex (with its
// "0x" prefix) back into an Address.
func addressFromHex(s string) (Address, error) {
	var a Address
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return a, err
	}
	if len(raw) != len(a) {
		return a, fmt.Errorf("address: expected %d bytes, got %d", len(a), len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// Hash is a 32-byte cryptographic digest, used for name hashes, transaction
// ids, blind commitments and renewal-block anchors.
type Hash [32]byte

func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

func (h Hash) Short() string {
	full := hex.EncodeToString(h[:])
	if len(full) <= 8 {
		return full
	}
	return fmt.Sprintf("%s..%s", full[:4], full[len(full)-4:])
}

func (h Hash) IsZero() bool { return h == Hash{} }

// hashFromHex decodes a hex string produced by Hash.Hex back into a Hash.
func hashFromHex(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("hash: expected %d bytes, got %d", len(h), len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// Outpoint identifies a transaction output by (txid, index), the unit that
// CoinIndex and the lock manager key everything on.
type Outpoint struct {
	Hash  Hash   `json:"hash"`
	Index uint32 `json:"index"`
}

func (o Outpoint) String() string { return fmt.Sprintf("%s:%d", o.Hash.Hex(), o.Index) }

// Coin is a single unspent (or pending) output the wallet knows about.
type Coin struct {
	Outpoint    Outpoint `json:"outpoint"`
	Value       uint64   `json:"value"`
	Covenant    Covenant `json:"covenant"`
	Address     Address  `json:"address"`
	BlockHeight uint32   `json:"block_height"` // 0 means unconfirmed
}

// Credit wraps a Coin with wallet-local bookkeeping. Spent marks a credit as
// committed to a pending transaction the engine must not reuse; Own marks
// whether the wallet controls the spending key (vs. merely having indexed a
// third party's output, e.g. another bidder's BID during an auction scan).
type Credit struct {
	Coin    Coin    `json:"coin"`
	Spent   bool    `json:"spent"`
	Own     bool    `json:"own"`
	Account uint32  `json:"account"`
}

// Clone returns a defensive copy, since CoinIndex hands out clones rather
// than pointers into its internal maps.
func (c Credit) Clone() Credit {
	cl := c
	cl.Coin.Covenant = c.Coin.Covenant.Clone()
	return cl
}
