package core

import "context"

// This file declares the external collaborators the engine depends on but
// does not implement (§6). Production wiring (chain client, HD signer,
// bdb-backed store, mempool broadcaster) lives outside this module; tests
// use the in-memory stand-ins in chainstub.go and wallet.go's HDWallet.

// ChainReader is the read side of the chain collaborator.
type ChainReader interface {
	Height(ctx context.Context) (uint32, error)
	GetNameState(ctx context.Context, nameHash Hash) (*NameState, error)
	IsAvailable(ctx context.Context, nameHash Hash) (bool, error)
	GetRenewalBlock(ctx context.Context) (Hash, error)
	EstimateFee(ctx context.Context, blocks int) (uint64, error)
}

// ChainWriter is the write side of the chain collaborator: broadcasting and
// direct mempool submission.
type ChainWriter interface {
	Send(ctx context.Context, tx *Transaction) (Hash, error)
	AddTx(ctx context.Context, tx *Transaction) error
	SendClaim(ctx context.Context, claim *Transaction) (Hash, error)
}

// Chain is the full chain collaborator interface (§6).
type Chain interface {
	ChainReader
	ChainWriter
}

// Signer produces signatures for a template transaction's inputs and embeds
// them, given the derivation path for each input. It must reject watch-only
// signing with ErrCannotSignWatchOnly.
type Signer interface {
	SignDigest(digest Hash, account, index uint32) ([]byte, error)
	PubKeyAt(idx uint32) ([]byte, error)
	WatchOnly() bool
}

// KeyLocator resolves an address the wallet previously handed out back to
// the derivation path used to create it, so the Dispatcher can sign a
// selected credit without NameEngine or CoinIndex ever touching key
// material themselves.
type KeyLocator interface {
	LocateKey(addr Address) (account, index uint32, ok bool)
}

// PersistentStore is the bdb-style atomic batch interface the engine
// composes its own batches on top of (§6): batch, put, del, write.
type PersistentStore interface {
	Get(key []byte) ([]byte, bool, error)
	NewWriteBatch() WriteBatch
}

// WriteBatch accumulates put/del ops and commits them atomically.
type WriteBatch interface {
	Put(key, value []byte)
	Del(key []byte)
	Write() error
}
