package core

import (
	"encoding/binary"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// BlindRecord is the (value, nonce) pair a blind commitment opens to.
type BlindRecord struct {
	Value uint64 `json:"value"`
	Nonce Hash   `json:"nonce"`
}

// BlindStore is the persistent mapping from blind commitment to (value,
// nonce), required to later reveal a bid (§3). The BlindStore entry for a
// BID's blind is exclusively owned by the bidder. A bounded LRU sits in
// front of the persistent store so the hot path (REVEAL resolving a blind
// it just created) never touches disk.
type BlindStore struct {
	store  PersistentStore
	hot    *lru.Cache[Hash, BlindRecord]
	logger *logrus.Logger
}

const blindStoreHotCapacity = 4096

// NewBlindStore wires a BlindStore on top of a persistent store collaborator.
func NewBlindStore(store PersistentStore, lg *logrus.Logger) (*BlindStore, error) {
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	hot, err := lru.New[Hash, BlindRecord](blindStoreHotCapacity)
	if err != nil {
		return nil, Wrap(err, "blind store: new lru")
	}
	return &BlindStore{store: store, hot: hot, logger: lg}, nil
}

func blindKey(blind Hash) []byte {
	key := make([]byte, 0, 7+32)
	key = append(key, []byte("blind:")...)
	key = append(key, blind[:]...)
	return key
}

// Put persists blind -> (value, nonce), required before REVEAL can resolve
// it. It writes the record through its own persistent-store batch and, once
// that write succeeds, also adds it to the hot cache.
func (bs *BlindStore) Put(blind Hash, rec BlindRecord) error {
	buf, err := encodeBlindRecord(rec)
	if err != nil {
		return err
	}
	batch := bs.store.NewWriteBatch()
	batch.Put(blindKey(blind), buf)
	if err := batch.Write(); err != nil {
		return Wrap(err, "blind store: persist")
	}
	bs.hot.Add(blind, rec)
	bs.logger.WithField("blind", blind.Short()).Debug("blind store: put")
	return nil
}

// Get resolves a blind commitment to its (value, nonce), returning
// ErrBlindNotFound if the wallet never recorded it (or already forgot it).
func (bs *BlindStore) Get(blind Hash) (BlindRecord, error) {
	if rec, ok := bs.hot.Get(blind); ok {
		return rec, nil
	}
	raw, ok, err := bs.store.Get(blindKey(blind))
	if err != nil {
		return BlindRecord{}, Wrap(err, "blind store: get")
	}
	if !ok {
		return BlindRecord{}, ErrBlindNotFound
	}
	rec, err := decodeBlindRecord(raw)
	if err != nil {
		return BlindRecord{}, err
	}
	bs.hot.Add(blind, rec)
	return rec, nil
}

func encodeBlindRecord(rec BlindRecord) ([]byte, error) {
	buf := make([]byte, 8+32)
	binary.LittleEndian.PutUint64(buf[:8], rec.Value)
	copy(buf[8:], rec.Nonce[:])
	return buf, nil
}

func decodeBlindRecord(buf []byte) (BlindRecord, error) {
	if len(buf) != 40 {
		return BlindRecord{}, ErrBadType
	}
	var rec BlindRecord
	rec.Value = binary.LittleEndian.Uint64(buf[:8])
	copy(rec.Nonce[:], buf[8:])
	return rec, nil
}

// String renders the record as JSON for debugging dumps of the hot cache,
// without exposing the on-disk key encoding.
func (rec BlindRecord) String() string {
	b, _ := json.Marshal(rec)
	return string(b)
}
