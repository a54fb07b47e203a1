package core

import (
	"crypto/sha256"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
)

// TxInput spends a prior output by outpoint.
type TxInput struct {
	Outpoint Outpoint `json:"outpoint"`
	Sequence uint32   `json:"sequence"`
	// Witness carries the signature(s) produced by the Signer collaborator;
	// left empty on an unsigned template.
	Witness [][]byte `json:"witness,omitempty"`
}

// TxOutput pairs a value and address with its covenant.
type TxOutput struct {
	Value    uint64   `json:"value"`
	Address  Address  `json:"address"`
	Covenant Covenant `json:"covenant"`
	// IdempotencyTag is carried on the output only to let the post-broadcast
	// step correlate mined outputs back to a caller-supplied idempotency
	// key (§4.1); it is never hashed into the protocol.
	IdempotencyTag string `json:"idempotency_tag,omitempty"`
}

// Transaction is the wire shape unchanged from consensus (§6): inputs,
// outputs with covenants, and a locktime.
type Transaction struct {
	Inputs   []TxInput  `json:"inputs"`
	Outputs  []TxOutput `json:"outputs"`
	Locktime uint32     `json:"locktime"`
}

type rlpTxInput struct {
	Hash     Hash
	Index    uint32
	Sequence uint32
	Witness  [][]byte
}

type rlpTxOutput struct {
	Value          uint64
	Address        Address
	CovenantType   uint8
	CovenantItems  [][]byte
	IdempotencyTag string
}

type rlpTransaction struct {
	Inputs   []rlpTxInput
	Outputs  []rlpTxOutput
	Locktime uint32
}

// Encode returns the canonical wire encoding, giving transaction templating
// the same exact-round-trip guarantee as Covenant.Encode (§8).
func (tx *Transaction) Encode() ([]byte, error) {
	w := rlpTransaction{Locktime: tx.Locktime}
	for _, in := range tx.Inputs {
		w.Inputs = append(w.Inputs, rlpTxInput{Hash: in.Outpoint.Hash, Index: in.Outpoint.Index, Sequence: in.Sequence, Witness: in.Witness})
	}
	for _, out := range tx.Outputs {
		w.Outputs = append(w.Outputs, rlpTxOutput{
			Value: out.Value, Address: out.Address,
			CovenantType: uint8(out.Covenant.Type), CovenantItems: out.Covenant.Items,
			IdempotencyTag: out.IdempotencyTag,
		})
	}
	return rlp.EncodeToBytes(w)
}

// DecodeTransaction parses the wire encoding produced by Encode.
func DecodeTransaction(b []byte) (*Transaction, error) {
	var w rlpTransaction
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return nil, Wrap(err, "decode transaction")
	}
	tx := &Transaction{Locktime: w.Locktime}
	for _, in := range w.Inputs {
		tx.Inputs = append(tx.Inputs, TxInput{Outpoint: Outpoint{Hash: in.Hash, Index: in.Index}, Sequence: in.Sequence, Witness: in.Witness})
	}
	for _, out := range w.Outputs {
		tx.Outputs = append(tx.Outputs, TxOutput{
			Value: out.Value, Address: out.Address,
			Covenant:       Covenant{Type: CovenantType(out.CovenantType), Items: out.CovenantItems},
			IdempotencyTag: out.IdempotencyTag,
		})
	}
	return tx, nil
}

// Hash returns the double-SHA256 transaction id, matching the HDWallet
// signing helper's digest convention.
func (tx *Transaction) Hash() (Hash, error) {
	b, err := tx.Encode()
	if err != nil {
		return Hash{}, err
	}
	d := sha256.Sum256(b)
	e := sha256.Sum256(d[:])
	return Hash(e), nil
}

// SortBIP69 orders inputs by (txid, index) and outputs by (value, address,
// covenant-type) ascending, the deterministic member ordering transaction
// templating preserves unless explicitly disabled (§4.2, §6).
func (tx *Transaction) SortBIP69() {
	sort.Slice(tx.Inputs, func(i, j int) bool {
		a, b := tx.Inputs[i].Outpoint, tx.Inputs[j].Outpoint
		if a.Hash != b.Hash {
			for k := 0; k < 32; k++ {
				if a.Hash[k] != b.Hash[k] {
					return a.Hash[k] < b.Hash[k]
				}
			}
		}
		return a.Index < b.Index
	})
	sort.Slice(tx.Outputs, func(i, j int) bool {
		a, b := tx.Outputs[i], tx.Outputs[j]
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		for k := 0; k < 20; k++ {
			if a.Address[k] != b.Address[k] {
				return a.Address[k] < b.Address[k]
			}
		}
		return a.Covenant.Type < b.Covenant.Type
	})
}

// Builder is an unfunded (or partially pre-funded) transaction together with
// the name-action bookkeeping the Funder and Dispatcher need. NameEngine
// produces one of these per action; it never signs or broadcasts (§4.1).
type Builder struct {
	Name   string
	Action CovenantType

	// PreInputs are inputs the action itself fixes (e.g. REVEAL's BID
	// outpoint, REDEEM's REVEAL outpoint); Funder must not remove these.
	PreInputs []TxInput
	Outputs   []TxOutput

	// RequireSingleInput is set by the auction-in-advance pre-signed REVEAL
	// flow: the final transaction must have exactly the one PreInput and no
	// additional funding input, or the builder fails (§4.2).
	RequireSingleInput bool

	// SubtractFeeFromOutput names an output index to shrink by the fee
	// instead of adding a funding input.
	SubtractFeeFromOutput int
	SubtractFeeFrom       bool

	Account uint32

	IdempotencyKey string
}

// NewBuilder starts an empty builder for the given action on name.
func NewBuilder(name string, action CovenantType) *Builder {
	return &Builder{Name: name, Action: action}
}

// AddOutput appends an output to the template.
func (b *Builder) AddOutput(out TxOutput) { b.Outputs = append(b.Outputs, out) }

// AddPreInput fixes an input the action itself requires to be spent.
func (b *Builder) AddPreInput(op Outpoint) {
	b.PreInputs = append(b.PreInputs, TxInput{Outpoint: op, Sequence: 0xffffffff})
}

// ToTransaction renders the builder's current (possibly unfunded) state into
// a Transaction template, inputs first.
func (b *Builder) ToTransaction() *Transaction {
	tx := &Transaction{Outputs: append([]TxOutput(nil), b.Outputs...)}
	tx.Inputs = append(tx.Inputs, b.PreInputs...)
	return tx
}
