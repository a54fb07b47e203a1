package core

// Keystore is the on-disk encrypted wallet seed format shared by cmd/cli
// and the optional HTTP adapter: PBKDF2-derived key, AES-256-GCM seal.
// NEVER persist a wallet's raw seed outside of this format.

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/pbkdf2"
)

type Keystore struct {
	Salt   string `json:"salt"`
	Nonce  string `json:"nonce"`
	Cipher string `json:"cipher"`
}

func deriveKeystoreKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, 150_000, 32, sha256.New)
}

// EncryptSeed seals seed under password into a Keystore ready to marshal
// to JSON and write to disk.
func EncryptSeed(seed []byte, password string) (*Keystore, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := deriveKeystoreKey(password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	cipherText := gcm.Seal(nil, nonce, seed, nil)
	return &Keystore{
		Salt:   hex.EncodeToString(salt),
		Nonce:  hex.EncodeToString(nonce),
		Cipher: hex.EncodeToString(cipherText),
	}, nil
}

// DecryptSeed reverses EncryptSeed, failing if password is wrong or ks was
// tampered with (GCM authentication).
func DecryptSeed(ks *Keystore, password string) ([]byte, error) {
	salt, err := hex.DecodeString(ks.Salt)
	if err != nil {
		return nil, err
	}
	nonce, err := hex.DecodeString(ks.Nonce)
	if err != nil {
		return nil, err
	}
	cipherText, err := hex.DecodeString(ks.Cipher)
	if err != nil {
		return nil, err
	}
	key := deriveKeystoreKey(password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, cipherText, nil)
}

// LoadKeystoreWallet reads, decrypts and derives an HDWallet from a keystore
// file in one call, the shape both cmd/cli and the HTTP adapter need.
func LoadKeystoreWallet(path, password string, lg *logrus.Logger) (*HDWallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ks Keystore
	if err := json.Unmarshal(raw, &ks); err != nil {
		return nil, err
	}
	seed, err := DecryptSeed(&ks, password)
	if err != nil {
		return nil, err
	}
	return NewHDWalletFromSeed(seed, lg)
}
