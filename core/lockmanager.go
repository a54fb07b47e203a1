package core

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// LockManager holds the two process-wide advisory locks per wallet that all
// mutation and all UTXO selection serialize through (§4.6). fundLock is
// always acquired before writeLock when both are needed, and released in
// reverse, to prevent deadlock across call paths that need both.
type LockManager struct {
	fundLock  sync.Mutex
	writeLock sync.Mutex

	softMu     sync.Mutex
	softLocked map[Outpoint]struct{}

	logger *logrus.Logger
}

func NewLockManager(lg *logrus.Logger) *LockManager {
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	return &LockManager{softLocked: make(map[Outpoint]struct{}), logger: lg}
}

// FundScope is a held fund-lock scope. Coins soft-locked through it are
// released when the scope ends (Release), so two overlapping transactions
// can never select the same UTXO even before either persists (§4.6).
type FundScope struct {
	lm     *LockManager
	locked []Outpoint
}

// AcquireFund blocks until the fund lock is free and returns a scope used to
// soft-lock coins for the lifetime of the enclosing producer.
func (lm *LockManager) AcquireFund() *FundScope {
	lm.fundLock.Lock()
	return &FundScope{lm: lm}
}

// Release releases every coin this scope soft-locked, then the fund lock
// itself. Callers must defer this immediately after AcquireFund.
func (fs *FundScope) Release() {
	fs.lm.softMu.Lock()
	for _, op := range fs.locked {
		delete(fs.lm.softLocked, op)
	}
	fs.lm.softMu.Unlock()
	fs.lm.fundLock.Unlock()
}

// LockCoin soft-locks op for the lifetime of this scope. It reports false if
// op is already soft-locked, by this scope or any other (AlreadySpending).
func (fs *FundScope) LockCoin(op Outpoint) bool {
	fs.lm.softMu.Lock()
	defer fs.lm.softMu.Unlock()
	if _, locked := fs.lm.softLocked[op]; locked {
		return false
	}
	fs.lm.softLocked[op] = struct{}{}
	fs.locked = append(fs.locked, op)
	return true
}

// IsLocked reports whether op is currently soft-locked by any in-flight
// producer, without acquiring a scope.
func (lm *LockManager) IsLocked(op Outpoint) bool {
	lm.softMu.Lock()
	defer lm.softMu.Unlock()
	_, ok := lm.softLocked[op]
	return ok
}

// WriteScope is a held write-lock scope for mutating wallet metadata,
// accounts, keys, or the blind store.
type WriteScope struct{ lm *LockManager }

// AcquireWrite blocks until the write lock is free. When a caller needs both
// locks, AcquireFund must be called first; AcquireWrite is then nested
// inside the fund scope and released before it.
func (lm *LockManager) AcquireWrite() *WriteScope {
	lm.writeLock.Lock()
	return &WriteScope{lm: lm}
}

func (ws *WriteScope) Release() { ws.lm.writeLock.Unlock() }
