package core

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// ChainStub is an in-memory Chain collaborator used by this package's own
// tests and by callers exercising the engine without a live node. It is not
// a consensus implementation: IsAvailable only reports whether no state is
// recorded for the name, EstimateFee returns a fixed rate unless overridden
// with SetFeeRate, and Send/AddTx just record what passed through.
type ChainStub struct {
	mu sync.Mutex

	height  uint32
	states  map[Hash]*NameState
	renewal Hash
	feeRate uint64

	sent []*Transaction
}

// NewChainStub returns a stub at height 0 with no recorded names.
func NewChainStub() *ChainStub {
	return &ChainStub{
		states:  make(map[Hash]*NameState),
		feeRate: DefaultFeeRate,
	}
}

func (cs *ChainStub) Height(ctx context.Context) (uint32, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.height, nil
}

// SetHeight advances (or rewinds) the stub's notion of chain height.
func (cs *ChainStub) SetHeight(h uint32) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.height = h
}

func (cs *ChainStub) GetNameState(ctx context.Context, nameHash Hash) (*NameState, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	ns, ok := cs.states[nameHash]
	if !ok {
		return nil, ErrNameNotFound
	}
	cp := *ns
	return &cp, nil
}

// PutNameState installs (or overwrites) a name's recorded state.
func (cs *ChainStub) PutNameState(ns *NameState) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cp := *ns
	cs.states[ns.NameHash] = &cp
}

func (cs *ChainStub) IsAvailable(ctx context.Context, nameHash Hash) (bool, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	_, ok := cs.states[nameHash]
	return !ok, nil
}

func (cs *ChainStub) GetRenewalBlock(ctx context.Context) (Hash, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.renewal, nil
}

// SetRenewalBlock fixes the anchor hash subsequent REGISTER/RENEW/FINALIZE
// builders embed.
func (cs *ChainStub) SetRenewalBlock(h Hash) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.renewal = h
}

func (cs *ChainStub) EstimateFee(ctx context.Context, blocks int) (uint64, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.feeRate, nil
}

// SetFeeRate fixes the rate EstimateFee reports, in sat per kB.
func (cs *ChainStub) SetFeeRate(rate uint64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.feeRate = rate
}

func (cs *ChainStub) Send(ctx context.Context, tx *Transaction) (Hash, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.sent = append(cs.sent, tx)
	return tx.Hash()
}

func (cs *ChainStub) AddTx(ctx context.Context, tx *Transaction) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.sent = append(cs.sent, tx)
	return nil
}

func (cs *ChainStub) SendClaim(ctx context.Context, claim *Transaction) (Hash, error) {
	return cs.Send(ctx, claim)
}

// Sent returns every transaction handed to Send or AddTx, in order.
func (cs *ChainStub) Sent() []*Transaction {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]*Transaction(nil), cs.sent...)
}

// chainStubSnapshot is the on-disk shape of a ChainStub, used by standalone
// CLI/HTTP runs that have no live Handshake node and persist the stub's
// state between process invocations instead (§6 names a live chain as an
// external collaborator; this is the offline stand-in, not a node).
type chainStubSnapshot struct {
	Height  uint32                `json:"height"`
	States  map[string]*NameState `json:"states"`
	Renewal Hash                  `json:"renewal"`
	FeeRate uint64                `json:"fee_rate"`
}

// SaveStub writes the stub's current state to path as JSON, creating parent
// directories as needed.
func (cs *ChainStub) SaveStub(path string) error {
	cs.mu.Lock()
	snap := chainStubSnapshot{
		Height:  cs.height,
		Renewal: cs.renewal,
		FeeRate: cs.feeRate,
		States:  make(map[string]*NameState, len(cs.states)),
	}
	for h, ns := range cs.states {
		cp := *ns
		snap.States[h.Hex()] = &cp
	}
	cs.mu.Unlock()

	buf, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return Wrap(err, "marshal chain stub snapshot")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Wrap(err, "create chain stub directory")
	}
	return os.WriteFile(path, buf, 0o600)
}

// LoadChainStub reads a previously saved stub from path, or returns a fresh
// stub at height 0 if the file does not exist yet.
func LoadChainStub(path string) (*ChainStub, error) {
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewChainStub(), nil
	}
	if err != nil {
		return nil, Wrap(err, "read chain stub snapshot")
	}
	var snap chainStubSnapshot
	if err := json.Unmarshal(buf, &snap); err != nil {
		return nil, Wrap(err, "unmarshal chain stub snapshot")
	}
	cs := NewChainStub()
	cs.height = snap.Height
	cs.renewal = snap.Renewal
	if snap.FeeRate != 0 {
		cs.feeRate = snap.FeeRate
	}
	for hexHash, ns := range snap.States {
		raw, err := hashFromHex(hexHash)
		if err != nil {
			return nil, Wrap(err, "decode chain stub name hash")
		}
		cs.states[raw] = ns
	}
	return cs, nil
}

// MemStore is a trivial in-memory PersistentStore used alongside ChainStub
// in tests that need a BlindStore or CachedBatch target without a real bdb.
type MemStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

// Snapshot returns a defensive copy of every key/value currently held,
// letting callers scan for a key prefix (e.g. CoinIndex's credit keys) that
// the PersistentStore interface itself has no way to enumerate.
func (m *MemStore) Snapshot() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

func (m *MemStore) Get(key []byte) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	cp := append([]byte(nil), v...)
	return cp, true, nil
}

func (m *MemStore) NewWriteBatch() WriteBatch {
	return &memBatch{store: m}
}

type memOp struct {
	del   bool
	key   []byte
	value []byte
}

type memBatch struct {
	store *MemStore
	ops   []memOp
}

func (b *memBatch) Put(key, value []byte) {
	b.ops = append(b.ops, memOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
}

func (b *memBatch) Del(key []byte) {
	b.ops = append(b.ops, memOp{del: true, key: append([]byte(nil), key...)})
}

func (b *memBatch) Write() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, op := range b.ops {
		if op.del {
			delete(b.store.data, string(op.key))
			continue
		}
		b.store.data[string(op.key)] = op.value
	}
	return nil
}

// SaveTo writes every key/value in the store to path as a base64-keyed JSON
// map, since store keys (credit keys, blind-store entries) are not valid
// UTF-8 strings.
func (m *MemStore) SaveTo(path string) error {
	m.mu.Lock()
	snap := make(map[string]string, len(m.data))
	for k, v := range m.data {
		snap[base64.StdEncoding.EncodeToString([]byte(k))] = base64.StdEncoding.EncodeToString(v)
	}
	m.mu.Unlock()

	buf, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return Wrap(err, "marshal store snapshot")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Wrap(err, "create store directory")
	}
	return os.WriteFile(path, buf, 0o600)
}

// LoadFileStore reads a store previously written by SaveTo, or returns an
// empty store if path does not exist yet.
func LoadFileStore(path string) (*MemStore, error) {
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewMemStore(), nil
	}
	if err != nil {
		return nil, Wrap(err, "read store snapshot")
	}
	var snap map[string]string
	if err := json.Unmarshal(buf, &snap); err != nil {
		return nil, Wrap(err, "unmarshal store snapshot")
	}
	m := NewMemStore()
	for k, v := range snap {
		key, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			return nil, Wrap(err, "decode store key")
		}
		val, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, Wrap(err, "decode store value")
		}
		m.data[string(key)] = val
	}
	return m, nil
}
