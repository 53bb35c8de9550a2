package wallet

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ecotrack/eco-go/pkg/metatx"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// Well-known development chain key.
const (
	testKeyHex  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestNewAccountFromHex(t *testing.T) {
	acc, err := NewAccountFromHex(testKeyHex)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress(testAddress), acc.Address)
	require.Equal(t, common.FromHex(testKeyHex), acc.PrivateKeyBytes())

	acc2, err := NewAccountFromHex("0x" + testKeyHex)
	require.NoError(t, err)
	require.Equal(t, acc.Address, acc2.Address)

	for _, s := range []string{"", "zz", testKeyHex[:62], "0000000000000000000000000000000000000000000000000000000000000000"} {
		_, err := NewAccountFromHex(s)
		require.ErrorIs(t, err, ErrInvalidKey, s)
	}
}

func TestNewAccount(t *testing.T) {
	acc, err := NewAccount()
	require.NoError(t, err)

	key, err := crypto.ToECDSA(acc.PrivateKeyBytes())
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), acc.Address)
}

func TestSignHash(t *testing.T) {
	acc, err := NewAccountFromHex(testKeyHex)
	require.NoError(t, err)

	digest := crypto.Keccak256Hash([]byte("eco"))
	sig := acc.SignHash(digest)
	require.Len(t, sig, 65)
	require.LessOrEqual(t, sig[64], byte(1))

	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	require.NoError(t, err)
	require.Equal(t, acc.Address, crypto.PubkeyToAddress(*pub))
}

func TestSignTypedData(t *testing.T) {
	acc, err := NewAccountFromHex(testKeyHex)
	require.NoError(t, err)

	d := metatx.Domain{Name: "EcoToken", Version: "1", ChainID: 31337, VerifyingContract: common.HexToAddress("0x42")}
	r := metatx.TransferRequest{
		From:     acc.Address,
		To:       common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		Amount:   big.NewInt(10),
		Nonce:    big.NewInt(3),
		Deadline: 1700000900,
	}
	sig, err := acc.SignTypedData(d.TypedData(r))
	require.NoError(t, err)
	require.True(t, sig[64] == 27 || sig[64] == 28)

	signer, err := d.Recover(r, sig)
	require.NoError(t, err)
	require.Equal(t, acc.Address, signer)
}

func TestKeystore(t *testing.T) {
	acc, err := NewAccountFromHex(testKeyHex)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, acc.SaveKeystore(path, "pass", keystore.LightScryptN, keystore.LightScryptP))

	back, err := NewAccountFromKeystoreFile(path, "pass")
	require.NoError(t, err)
	require.Equal(t, acc.Address, back.Address)
	require.Equal(t, acc.PrivateKeyBytes(), back.PrivateKeyBytes())

	_, err = NewAccountFromKeystoreFile(path, "wrong")
	require.ErrorIs(t, err, keystore.ErrDecrypt)

	_, err = NewAccountFromKeystoreFile(filepath.Join(t.TempDir(), "missing.json"), "pass")
	require.Error(t, err)
}
