package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ecotrack/eco-go/pkg/metatx"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// Account is a local Ethereum account holding a secp256k1 private key.
type Account struct {
	priv *secp256k1.PrivateKey

	// Address is derived from the public key.
	Address common.Address

	// Label is an optional user-defined name.
	Label string
}

// ErrInvalidKey is returned for private keys that can't be used.
var ErrInvalidKey = errors.New("invalid private key")

// NewAccount creates a new Account with a randomly generated private key.
func NewAccount() (*Account, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return newAccount(priv), nil
}

// NewAccountFromBytes creates an Account from a 32-byte private key.
func NewAccountFromBytes(b []byte) (*Account, error) {
	if len(b) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("%w: expected %d bytes got %d", ErrInvalidKey, secp256k1.PrivKeyBytesLen, len(b))
	}
	priv := secp256k1.PrivKeyFromBytes(b)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("%w: zero key", ErrInvalidKey)
	}
	return newAccount(priv), nil
}

// NewAccountFromHex creates an Account from a hex-encoded private key, 0x
// prefix is optional.
func NewAccountFromHex(s string) (*Account, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return NewAccountFromBytes(b)
}

// NewAccountFromKeystore decrypts a Web3 Secret Storage (keystore v3) JSON
// with the given passphrase.
func NewAccountFromKeystore(data []byte, passphrase string) (*Account, error) {
	k, err := keystore.DecryptKey(data, passphrase)
	if err != nil {
		return nil, err
	}
	acc, err := NewAccountFromBytes(crypto.FromECDSA(k.PrivateKey))
	if err != nil {
		return nil, err
	}
	if acc.Address != k.Address {
		return nil, fmt.Errorf("keystore address mismatch: %s vs %s", k.Address, acc.Address)
	}
	return acc, nil
}

// NewAccountFromKeystoreFile is NewAccountFromKeystore reading from a file.
func NewAccountFromKeystoreFile(path, passphrase string) (*Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewAccountFromKeystore(data, passphrase)
}

func newAccount(priv *secp256k1.PrivateKey) *Account {
	return &Account{
		priv:    priv,
		Address: PublicKeyToAddress(priv.PubKey()),
	}
}

// PublicKeyToAddress returns an Ethereum address of the given public key,
// that is the last 20 bytes of Keccak-256 of its uncompressed form.
func PublicKeyToAddress(pub *secp256k1.PublicKey) common.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub.SerializeUncompressed()[1:])
	return common.BytesToAddress(h.Sum(nil)[12:])
}

// PrivateKeyBytes returns the raw private key.
func (a *Account) PrivateKeyBytes() []byte {
	return a.priv.Serialize()
}

// Keystore encrypts the account into a keystore v3 JSON. scryptN and scryptP
// are the KDF parameters, keystore.StandardScryptN/StandardScryptP are good
// defaults, Light* variants are useful for tests.
func (a *Account) Keystore(passphrase string, scryptN, scryptP int) ([]byte, error) {
	k := &keystore.Key{
		Id:         uuid.New(),
		Address:    a.Address,
		PrivateKey: a.priv.ToECDSA(),
	}
	return keystore.EncryptKey(k, passphrase, scryptN, scryptP)
}

// SaveKeystore writes the account into a keystore file.
func (a *Account) SaveKeystore(path, passphrase string, scryptN, scryptP int) error {
	data, err := a.Keystore(passphrase, scryptN, scryptP)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// SignHash signs the digest returning r || s || v signature with v being the
// recovery id (0 or 1), the form transactions use.
func (a *Account) SignHash(digest common.Hash) []byte {
	compact := ecdsa.SignCompact(a.priv, digest[:], false)
	sig := make([]byte, metatx.SignatureLen)
	copy(sig, compact[1:])
	sig[64] = compact[0] - 27
	return sig
}

// SignTypedData signs EIP-712 typed data returning the wire form of the
// signature (v is 27 or 28).
func (a *Account) SignTypedData(td apitypes.TypedData) ([]byte, error) {
	digest, err := metatx.HashTypedData(td)
	if err != nil {
		return nil, err
	}
	return metatx.ToWire(a.SignHash(digest))
}
