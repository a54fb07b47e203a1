package core

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"
)

// CovenantType tags the shape of a covenant's item list (§3).
type CovenantType uint8

const (
	CovenantNone CovenantType = iota
	CovenantOpen
	CovenantBid
	CovenantReveal
	CovenantRedeem
	CovenantRegister
	CovenantUpdate
	CovenantRenew
	CovenantTransfer
	CovenantFinalize
	CovenantRevoke
)

func (t CovenantType) String() string {
	switch t {
	case CovenantOpen:
		return "OPEN"
	case CovenantBid:
		return "BID"
	case CovenantReveal:
		return "REVEAL"
	case CovenantRedeem:
		return "REDEEM"
	case CovenantRegister:
		return "REGISTER"
	case CovenantUpdate:
		return "UPDATE"
	case CovenantRenew:
		return "RENEW"
	case CovenantTransfer:
		return "TRANSFER"
	case CovenantFinalize:
		return "FINALIZE"
	case CovenantRevoke:
		return "REVOKE"
	default:
		return "NONE"
	}
}

// Covenant is the tagged side-data attached to a name-action output. Items
// are length-prefixed byte strings whose order and count is dictated by
// Type; construction goes exclusively through the New*Covenant helpers below
// so an out-of-shape covenant can never be built.
type Covenant struct {
	Type  CovenantType `json:"type"`
	Items [][]byte     `json:"items"`
}

func (c Covenant) Clone() Covenant {
	items := make([][]byte, len(c.Items))
	for i, it := range c.Items {
		cp := make([]byte, len(it))
		copy(cp, it)
		items[i] = cp
	}
	return Covenant{Type: c.Type, Items: items}
}

// rlpCovenant is the wire shape encoded/decoded via go-ethereum's RLP codec,
// giving us the §8 "decode then re-encode preserves bytes exactly" property
// without hand-rolling a length-prefixed codec.
type rlpCovenant struct {
	Type  uint8
	Items [][]byte
}

// Encode returns the canonical wire encoding of the covenant.
func (c Covenant) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(rlpCovenant{Type: uint8(c.Type), Items: c.Items})
}

// DecodeCovenant parses the wire encoding produced by Encode.
func DecodeCovenant(b []byte) (Covenant, error) {
	var w rlpCovenant
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return Covenant{}, Wrap(err, "decode covenant")
	}
	return Covenant{Type: CovenantType(w.Type), Items: w.Items}, nil
}

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func beU32(b []byte) uint32 {
	if len(b) != 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// NewOpenCovenant builds an OPEN covenant: name_hash, epoch=0, raw_name.
func NewOpenCovenant(nameHash Hash, rawName string) Covenant {
	return Covenant{Type: CovenantOpen, Items: [][]byte{nameHash[:], u32le(0), []byte(rawName)}}
}

// NewBidCovenant builds a BID covenant: name_hash, epoch, raw_name, blind.
func NewBidCovenant(nameHash Hash, epoch uint32, rawName string, blind Hash) Covenant {
	return Covenant{Type: CovenantBid, Items: [][]byte{nameHash[:], u32le(epoch), []byte(rawName), blind[:]}}
}

// NewRevealCovenant builds a REVEAL covenant: name_hash, epoch, nonce.
func NewRevealCovenant(nameHash Hash, epoch uint32, nonce Hash) Covenant {
	return Covenant{Type: CovenantReveal, Items: [][]byte{nameHash[:], u32le(epoch), nonce[:]}}
}

// NewRedeemCovenant builds a REDEEM covenant: name_hash, epoch.
func NewRedeemCovenant(nameHash Hash, epoch uint32) Covenant {
	return Covenant{Type: CovenantRedeem, Items: [][]byte{nameHash[:], u32le(epoch)}}
}

// NewRegisterCovenant builds a REGISTER covenant: name_hash, epoch,
// resource_bytes, renewal_block_hash.
func NewRegisterCovenant(nameHash Hash, epoch uint32, resource []byte, renewalBlockHash Hash) Covenant {
	return Covenant{Type: CovenantRegister, Items: [][]byte{nameHash[:], u32le(epoch), resource, renewalBlockHash[:]}}
}

// NewUpdateCovenant builds an UPDATE covenant: name_hash, epoch,
// resource_bytes. An empty resource is the CANCEL variant (§3).
func NewUpdateCovenant(nameHash Hash, epoch uint32, resource []byte) Covenant {
	return Covenant{Type: CovenantUpdate, Items: [][]byte{nameHash[:], u32le(epoch), resource}}
}

// NewRenewCovenant builds a RENEW covenant: name_hash, epoch,
// renewal_block_hash.
func NewRenewCovenant(nameHash Hash, epoch uint32, renewalBlockHash Hash) Covenant {
	return Covenant{Type: CovenantRenew, Items: [][]byte{nameHash[:], u32le(epoch), renewalBlockHash[:]}}
}

// NewTransferCovenant builds a TRANSFER covenant: name_hash, epoch,
// addr_version, addr_hash.
func NewTransferCovenant(nameHash Hash, epoch uint32, addrVersion uint8, addrHash Address) Covenant {
	return Covenant{Type: CovenantTransfer, Items: [][]byte{nameHash[:], u32le(epoch), {addrVersion}, addrHash[:]}}
}

// NewFinalizeCovenant builds a FINALIZE covenant: name_hash, epoch, raw_name,
// flags, claimed, renewals, renewal_block_hash.
func NewFinalizeCovenant(nameHash Hash, epoch uint32, rawName string, flags uint8, claimed, renewals uint32, renewalBlockHash Hash) Covenant {
	return Covenant{Type: CovenantFinalize, Items: [][]byte{
		nameHash[:], u32le(epoch), []byte(rawName), {flags}, u32le(claimed), u32le(renewals), renewalBlockHash[:],
	}}
}

// NewRevokeCovenant builds a REVOKE covenant: name_hash, epoch.
func NewRevokeCovenant(nameHash Hash, epoch uint32) Covenant {
	return Covenant{Type: CovenantRevoke, Items: [][]byte{nameHash[:], u32le(epoch)}}
}

// NameHash returns the first item common to every covenant type, or the zero
// hash if the covenant has none.
func (c Covenant) NameHash() Hash {
	if len(c.Items) == 0 {
		return Hash{}
	}
	var h Hash
	copy(h[:], c.Items[0])
	return h
}

// Epoch returns the second item for every covenant type that carries one
// (everything except CovenantNone).
func (c Covenant) Epoch() uint32 {
	if len(c.Items) < 2 {
		return 0
	}
	return beU32(c.Items[1])
}

// RawName returns the readable name for OPEN, BID and FINALIZE covenants.
func (c Covenant) RawName() string {
	switch c.Type {
	case CovenantOpen, CovenantBid:
		if len(c.Items) > 2 {
			return string(c.Items[2])
		}
	case CovenantFinalize:
		if len(c.Items) > 2 {
			return string(c.Items[2])
		}
	}
	return ""
}

// Blind returns the BID covenant's commitment.
func (c Covenant) Blind() Hash {
	var h Hash
	if c.Type == CovenantBid && len(c.Items) > 3 {
		copy(h[:], c.Items[3])
	}
	return h
}

// Nonce returns the REVEAL covenant's opened nonce.
func (c Covenant) Nonce() Hash {
	var h Hash
	if c.Type == CovenantReveal && len(c.Items) > 2 {
		copy(h[:], c.Items[2])
	}
	return h
}

// Resource returns the REGISTER/UPDATE covenant's resource bytes. An empty,
// non-nil slice for an UPDATE covenant means CANCEL.
func (c Covenant) Resource() []byte {
	switch c.Type {
	case CovenantRegister, CovenantUpdate:
		if len(c.Items) > 2 {
			return c.Items[2]
		}
	}
	return nil
}

// IsCancel reports whether an UPDATE covenant reverts a pending transfer by
// carrying an empty resource (§3 CANCEL is an UPDATE with empty resource).
func (c Covenant) IsCancel() bool {
	return c.Type == CovenantUpdate && len(c.Resource()) == 0
}

// RenewalBlockHash returns the anchor hash for REGISTER/RENEW/FINALIZE.
func (c Covenant) RenewalBlockHash() Hash {
	var h Hash
	switch c.Type {
	case CovenantRegister:
		if len(c.Items) > 3 {
			copy(h[:], c.Items[3])
		}
	case CovenantRenew:
		if len(c.Items) > 2 {
			copy(h[:], c.Items[2])
		}
	case CovenantFinalize:
		if len(c.Items) > 6 {
			copy(h[:], c.Items[6])
		}
	}
	return h
}

// AddrVersion/AddrHash return the TRANSFER covenant's target address.
func (c Covenant) AddrVersion() uint8 {
	if c.Type == CovenantTransfer && len(c.Items) > 2 && len(c.Items[2]) == 1 {
		return c.Items[2][0]
	}
	return 0
}

func (c Covenant) AddrHash() Address {
	var a Address
	if c.Type == CovenantTransfer && len(c.Items) > 3 {
		copy(a[:], c.Items[3])
	}
	return a
}

// Flags/Claimed/Renewals return FINALIZE's continuity bookkeeping.
func (c Covenant) Flags() uint8 {
	if c.Type == CovenantFinalize && len(c.Items) > 3 && len(c.Items[3]) == 1 {
		return c.Items[3][0]
	}
	return 0
}

func (c Covenant) Weak() bool { return c.Flags()&0x1 != 0 }

func (c Covenant) Claimed() uint32 {
	if c.Type == CovenantFinalize && len(c.Items) > 4 {
		return beU32(c.Items[4])
	}
	return 0
}

func (c Covenant) Renewals() uint32 {
	if c.Type == CovenantFinalize && len(c.Items) > 5 {
		return beU32(c.Items[5])
	}
	return 0
}

// IsOwnershipCovenant reports whether the covenant is one of the types that
// can sit on a name's owner outpoint once the auction has closed
// (REGISTER, UPDATE, RENEW, TRANSFER, FINALIZE).
func (c Covenant) IsOwnershipCovenant() bool {
	switch c.Type {
	case CovenantRegister, CovenantUpdate, CovenantRenew, CovenantTransfer, CovenantFinalize:
		return true
	default:
		return false
	}
}
