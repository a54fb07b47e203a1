package core

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// CoinIndex is an in-memory index over persisted credits, keyed by
// (txid, output-index) with a secondary index by account (§4.3). It gives
// O(1) lookup and account filtering during fund selection.
type CoinIndex struct {
	mu sync.RWMutex

	byOutpoint map[Hash]map[uint32]Credit
	byAccount  map[uint32]map[Hash]map[uint32]struct{}

	logger *logrus.Logger
}

// NewCoinIndex returns an empty index. Populate it from the persistent store
// via LoadAll on wallet open.
func NewCoinIndex(lg *logrus.Logger) *CoinIndex {
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	return &CoinIndex{
		byOutpoint: make(map[Hash]map[uint32]Credit),
		byAccount:  make(map[uint32]map[Hash]map[uint32]struct{}),
		logger:     lg,
	}
}

// LoadAll populates the index by scanning all persisted credits, indexing
// each under its derivation path's account, as happens once on wallet open.
func (ci *CoinIndex) LoadAll(credits []Credit) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	for _, c := range credits {
		ci.putLocked(c)
	}
	ci.logger.WithField("count", len(credits)).Debug("coin index: loaded credits")
}

func (ci *CoinIndex) putLocked(c Credit) {
	txid := c.Coin.Outpoint.Hash
	idx := c.Coin.Outpoint.Index
	if ci.byOutpoint[txid] == nil {
		ci.byOutpoint[txid] = make(map[uint32]Credit)
	}
	ci.byOutpoint[txid][idx] = c.Clone()

	if ci.byAccount[c.Account] == nil {
		ci.byAccount[c.Account] = make(map[Hash]map[uint32]struct{})
	}
	if ci.byAccount[c.Account][txid] == nil {
		ci.byAccount[c.Account][txid] = make(map[uint32]struct{})
	}
	ci.byAccount[c.Account][txid][idx] = struct{}{}
}

func (ci *CoinIndex) delLocked(txid Hash, idx uint32) {
	if m, ok := ci.byOutpoint[txid]; ok {
		if c, ok := m[idx]; ok {
			if acct, ok := ci.byAccount[c.Account]; ok {
				if set, ok := acct[txid]; ok {
					delete(set, idx)
					if len(set) == 0 {
						delete(acct, txid)
					}
				}
			}
		}
		delete(m, idx)
		if len(m) == 0 {
			delete(ci.byOutpoint, txid)
		}
	}
}

// GetCredit returns the credit at (tx, idx), if indexed.
func (ci *CoinIndex) GetCredit(tx Hash, idx uint32) (Credit, bool) {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	m, ok := ci.byOutpoint[tx]
	if !ok {
		return Credit{}, false
	}
	c, ok := m[idx]
	if !ok {
		return Credit{}, false
	}
	return c.Clone(), true
}

// HasCoin reports whether (tx, idx) is indexed at all.
func (ci *CoinIndex) HasCoin(tx Hash, idx uint32) bool {
	_, ok := ci.GetCredit(tx, idx)
	return ok
}

// HasCoinByAccount reports whether (tx, idx) is indexed under account acct.
func (ci *CoinIndex) HasCoinByAccount(acct uint32, tx Hash, idx uint32) bool {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	set, ok := ci.byAccount[acct][tx]
	if !ok {
		return false
	}
	_, ok = set[idx]
	return ok
}

// CreditsFor returns a defensive-cloned snapshot of every credit indexed
// under acct.
func (ci *CoinIndex) CreditsFor(acct uint32) []Credit {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	var out []Credit
	for txid, idxs := range ci.byAccount[acct] {
		for idx := range idxs {
			if c, ok := ci.byOutpoint[txid][idx]; ok {
				out = append(out, c.Clone())
			}
		}
	}
	return out
}

// OutpointsFor returns every outpoint indexed under acct.
func (ci *CoinIndex) OutpointsFor(acct uint32) []Outpoint {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	var out []Outpoint
	for txid, idxs := range ci.byAccount[acct] {
		for idx := range idxs {
			out = append(out, Outpoint{Hash: txid, Index: idx})
		}
	}
	return out
}

// --------------------------------------------------------------------------
// CachedBatch: deferred commit-to-memory-after-commit-to-disk
// --------------------------------------------------------------------------

type batchOpKind uint8

const (
	opPutCredit batchOpKind = iota
	opDelCredit
)

type batchOp struct {
	kind   batchOpKind
	credit Credit
	tx     Hash
	idx    uint32
}

// CachedBatch records intended CoinIndex mutations without applying them.
// Callers compose it with the persistent store's own write batch; the
// recorded ops are applied to the in-memory index only after the caller
// confirms the persistent write succeeded (Commit), so a failed disk write
// leaves the cache untouched (§4.3, §5).
type CachedBatch struct {
	index *CoinIndex
	ops   []batchOp
}

// Batch starts a new deferred batch against this index.
func (ci *CoinIndex) Batch() *CachedBatch {
	return &CachedBatch{index: ci}
}

// PutCredit stages a credit upsert.
func (b *CachedBatch) PutCredit(c Credit) {
	b.ops = append(b.ops, batchOp{kind: opPutCredit, credit: c.Clone()})
}

// DelCredit stages a credit removal.
func (b *CachedBatch) DelCredit(tx Hash, idx uint32) {
	b.ops = append(b.ops, batchOp{kind: opDelCredit, tx: tx, idx: idx})
}

// Commit applies every staged op to the in-memory index. Call this only
// after the corresponding persistent-store batch has committed successfully.
func (b *CachedBatch) Commit() {
	b.index.mu.Lock()
	defer b.index.mu.Unlock()
	for _, op := range b.ops {
		switch op.kind {
		case opPutCredit:
			b.index.putLocked(op.credit)
		case opDelCredit:
			b.index.delLocked(op.tx, op.idx)
		}
	}
	b.index.logger.WithField("ops", len(b.ops)).Debug("coin index: batch committed")
}

// Discard drops every staged op without touching the in-memory index, used
// when the persistent-store batch failed.
func (b *CachedBatch) Discard() {
	b.ops = nil
}

func creditKey(tx Hash, idx uint32) []byte {
	key := make([]byte, 0, 7+32+4)
	key = append(key, []byte("credit:")...)
	key = append(key, tx[:]...)
	key = append(key, u32le(idx)...)
	return key
}

func encodeCredit(c Credit) ([]byte, error) { return json.Marshal(c) }

func decodeCredit(buf []byte) (Credit, error) {
	var c Credit
	err := json.Unmarshal(buf, &c)
	return c, err
}

// Persist stages every op into store's own write batch and commits it; only
// once that commit succeeds does it apply the same ops to the in-memory
// index, so a failed disk write never leaves memory and disk disagreeing
// about which coins are spent (§4.3, §5). This is the only way a CachedBatch
// should be finalized outside of tests.
func (b *CachedBatch) Persist(store PersistentStore) error {
	wb := store.NewWriteBatch()
	for _, op := range b.ops {
		switch op.kind {
		case opPutCredit:
			buf, err := encodeCredit(op.credit)
			if err != nil {
				return Wrap(err, "encode credit")
			}
			wb.Put(creditKey(op.credit.Coin.Outpoint.Hash, op.credit.Coin.Outpoint.Index), buf)
		case opDelCredit:
			wb.Del(creditKey(op.tx, op.idx))
		}
	}
	if err := wb.Write(); err != nil {
		b.Discard()
		return Wrap(err, "persist coin batch")
	}
	b.Commit()
	return nil
}

var creditKeyPrefix = []byte("credit:")

// LoadCoinIndexFromStore scans a MemStore's entries for persisted credits and
// builds a populated CoinIndex from them. PersistentStore itself has no scan
// operation (§6 only promises get/batch-write), so this only works against
// the concrete in-process/file-backed MemStore the CLI and walletserver use
// in place of a real bdb; a production store would instead replay its own
// on-open iteration into CoinIndex.LoadAll.
func LoadCoinIndexFromStore(store *MemStore, lg *logrus.Logger) (*CoinIndex, error) {
	ci := NewCoinIndex(lg)
	var credits []Credit
	for key, buf := range store.Snapshot() {
		if !bytes.HasPrefix([]byte(key), creditKeyPrefix) {
			continue
		}
		c, err := decodeCredit(buf)
		if err != nil {
			return nil, Wrap(err, "decode persisted credit")
		}
		credits = append(credits, c)
	}
	ci.LoadAll(credits)
	return ci, nil
}
