package services

// WalletService wraps the wallet-lifecycle operations that don't need a
// running Runtime: minting a brand new keystore or importing one from a
// mnemonic. Every operation that touches names/coins goes through Runtime
// and core.Dispatcher instead.

import (
	"github.com/namebasehq/hsd/core"
)

type WalletService struct{}

func NewService() *WalletService { return &WalletService{} }

func (ws *WalletService) CreateWallet(bits int) (*core.HDWallet, string, error) {
	return core.NewRandomWallet(bits)
}

func (ws *WalletService) ImportWallet(mnemonic, passphrase string) (*core.HDWallet, error) {
	return core.WalletFromMnemonic(mnemonic, passphrase)
}

func (ws *WalletService) DeriveAddress(w *core.HDWallet, account, index uint32) (core.Address, error) {
	return w.NewAddress(account, index)
}
