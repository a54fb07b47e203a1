package core

import (
	"crypto/sha256"
	"encoding/binary"
	"regexp"
	"strconv"
)

// Consensus-ish constants the auction state machine depends on. These stand
// in for values that a real deployment reads from chain parameters; they are
// exported so a collaborator wiring a live chain can override them per
// network (main/test/regtest each use different figures upstream).
var (
	MaxNameLength     = 63
	MinNameLength     = 1
	RolloutHeight     = uint32(0) // height at which names become available
	TreeInterval      = uint32(36)
	TransferLockup    = uint32(10)
	CoinbaseMaturity  = uint32(100)
	MaxResourceBytes  = 512
	ReservedNames     = map[string]bool{}
	ICANNLockupActive = false
)

var validNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$|^[a-z0-9]$`)

// ValidateName applies the syntactic rules a name must satisfy before it can
// be OPENed: lowercase ASCII, bounded length, no leading/trailing hyphen, and
// not a bare base-10 integer (§9 Open Question: numeric names are rejected at
// the boundary rather than silently coerced).
func ValidateName(name string) error {
	if len(name) < MinNameLength || len(name) > MaxNameLength {
		return ErrInvalidName
	}
	if !validNamePattern.MatchString(name) {
		return ErrInvalidName
	}
	if _, err := strconv.ParseUint(name, 10, 64); err == nil {
		return ErrInvalidName
	}
	return nil
}

// IsReserved reports whether name is permanently reserved and can never be
// opened.
func IsReserved(name string) bool { return ReservedNames[name] }

// IsLockedUp reports whether name is still held back by the ICANN lockup
// period, when that enforcement is active.
func IsLockedUp(name string) bool {
	return ICANNLockupActive && lockedUpNames[name]
}

var lockedUpNames = map[string]bool{}

// HasRolledOut reports whether height has reached the block at which names
// in general become available for OPEN.
func HasRolledOut(height uint32) bool { return height >= RolloutHeight }

// NameHash returns the protocol identifier for a readable name: H(name).
func NameHash(name string) Hash {
	return Hash(sha256.Sum256([]byte(name)))
}

// blindIndex derives the hardened key index used to pick the account pubkey
// folded into a bid's nonce, per §3: idx = (value_hi xor value_lo) & 0x7fffffff.
func blindIndex(value uint64) uint32 {
	hi := uint32(value >> 32)
	lo := uint32(value)
	return (hi ^ lo) & 0x7fffffff
}

// PubKeyProvider derives the raw public key bytes for a hardened child index,
// satisfied by the wallet's Signer collaborator (core.HDWallet.PubKeyAt).
type PubKeyProvider interface {
	PubKeyAt(idx uint32) ([]byte, error)
}

// DeriveNonce computes nonce = H(addr_hash || account_pubkey(idx) || name_hash)
// deterministically from address, bid value and name hash, so a wallet that
// lost its BlindStore entry can regenerate the nonce instead of losing funds.
func DeriveNonce(addrHash Address, value uint64, nameHash Hash, keys PubKeyProvider) (Hash, error) {
	idx := blindIndex(value)
	pub, err := keys.PubKeyAt(idx)
	if err != nil {
		return Hash{}, Wrap(err, "derive nonce pubkey")
	}
	h := sha256.New()
	h.Write(addrHash[:])
	h.Write(pub)
	h.Write(nameHash[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}

// DeriveBlind computes blind = H(value || nonce), the commitment broadcast
// in a BID covenant and opened during REVEAL.
func DeriveBlind(value uint64, nonce Hash) Hash {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, value)
	h := sha256.New()
	h.Write(buf)
	h.Write(nonce[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
