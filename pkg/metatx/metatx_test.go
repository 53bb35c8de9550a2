package metatx

import (
	"encoding/json"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var testDomain = Domain{
	Name:              "EcoToken",
	Version:           "1",
	ChainID:           1337,
	VerifyingContract: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
}

func signRequest(t *testing.T, d Domain, r TransferRequest) []byte {
	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	digest, err := d.Hash(r)
	require.NoError(t, err)
	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)
	sig, err = ToWire(sig)
	require.NoError(t, err)
	return sig
}

func testRequest() TransferRequest {
	return TransferRequest{
		From:     common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		To:       common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		Amount:   big.NewInt(10),
		Nonce:    big.NewInt(0),
		Deadline: 1700000900,
	}
}

func TestRecover(t *testing.T) {
	r := testRequest()
	sig := signRequest(t, testDomain, r)
	require.Len(t, sig, SignatureLen)
	require.True(t, sig[64] == 27 || sig[64] == 28)

	signer, err := testDomain.Recover(r, sig)
	require.NoError(t, err)
	require.Equal(t, r.From, signer)
	require.NoError(t, testDomain.Verify(r, sig))

	t.Run("v in 0/1", func(t *testing.T) {
		raw, err := FromWire(sig)
		require.NoError(t, err)
		signer, err := testDomain.Recover(r, raw)
		require.NoError(t, err)
		require.Equal(t, r.From, signer)
	})
	t.Run("changed amount", func(t *testing.T) {
		r := testRequest()
		r.Amount = big.NewInt(11)
		require.ErrorIs(t, testDomain.Verify(r, sig), ErrInvalidSignature)
	})
	t.Run("other domain", func(t *testing.T) {
		d := testDomain
		d.ChainID = 1
		require.ErrorIs(t, d.Verify(r, sig), ErrInvalidSignature)
	})
	t.Run("bad length", func(t *testing.T) {
		_, err := testDomain.Recover(r, sig[:64])
		require.ErrorIs(t, err, ErrInvalidSignature)
	})
	t.Run("bad v", func(t *testing.T) {
		bad := common.CopyBytes(sig)
		bad[64] = 30
		_, err := testDomain.Recover(r, bad)
		require.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestHashDependsOnEveryField(t *testing.T) {
	base, err := testDomain.Hash(testRequest())
	require.NoError(t, err)

	mods := []func(*TransferRequest){
		func(r *TransferRequest) { r.From = common.HexToAddress("0x01") },
		func(r *TransferRequest) { r.To = common.HexToAddress("0x02") },
		func(r *TransferRequest) { r.Amount = big.NewInt(1) },
		func(r *TransferRequest) { r.Nonce = big.NewInt(1) },
		func(r *TransferRequest) { r.Deadline++ },
	}
	for i, mod := range mods {
		r := testRequest()
		mod(&r)
		h, err := testDomain.Hash(r)
		require.NoError(t, err)
		require.NotEqual(t, base, h, i)
	}
}

func TestHashInvalid(t *testing.T) {
	r := testRequest()
	r.Amount = new(big.Int).Lsh(big.NewInt(1), 256)
	_, err := testDomain.Hash(r)
	require.ErrorIs(t, err, ErrAmountOverflow)

	r = testRequest()
	r.Nonce = big.NewInt(-1)
	_, err = testDomain.Hash(r)
	require.ErrorIs(t, err, ErrNegative)
}

func TestExpired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	r := NewTransferRequest(common.Address{1}, common.Address{2}, big.NewInt(1), big.NewInt(0), now, DefaultValidity)
	require.EqualValues(t, 1700000000+15*60, r.Deadline)

	r.Deadline = uint64(now.Unix()) - 1
	require.True(t, r.Expired(now))
	r.Deadline = uint64(now.Unix())
	require.False(t, r.Expired(now))
	r.Deadline = uint64(now.Unix()) + 1
	require.False(t, r.Expired(now))
	r.Deadline = math.MaxUint64
	require.False(t, r.Expired(now))
	r.Deadline = 1 << 63
	require.False(t, r.Expired(now))
}

func TestRelayRequestJSON(t *testing.T) {
	r := testRequest()
	sig := signRequest(t, testDomain, r)
	wire := NewRelayRequest(r, sig)

	data, err := json.Marshal(wire)
	require.NoError(t, err)
	require.Contains(t, string(data), `"deadline":"1700000900"`)

	var back RelayRequest
	require.NoError(t, json.Unmarshal(data, &back))
	require.Empty(t, back.Missing())

	got, err := back.Request(r.From, r.To)
	require.NoError(t, err)
	require.Equal(t, r.From, got.From)
	require.Equal(t, r.To, got.To)
	require.Zero(t, r.Amount.Cmp(got.Amount))
	require.Zero(t, r.Nonce.Cmp(got.Nonce))
	require.Equal(t, r.Deadline, got.Deadline)
	gotSig, err := back.DecodeSignature()
	require.NoError(t, err)
	require.Equal(t, sig, gotSig)
}

func TestQuantityForms(t *testing.T) {
	var req RelayRequest
	require.NoError(t, json.Unmarshal([]byte(`{"amount": 10, "nonce": "0x0a", "deadline": "1700000900"}`), &req))
	require.Equal(t, int64(10), req.Amount.Big().Int64())
	require.Equal(t, int64(10), req.Nonce.Big().Int64())
	require.Equal(t, int64(1700000900), req.Deadline.Big().Int64())
	require.Equal(t, []string{"from", "to", "signature"}, req.Missing())

	require.Error(t, json.Unmarshal([]byte(`{"amount": "ten"}`), &req))
	require.Error(t, json.Unmarshal([]byte(`{"amount": 1.5}`), &req))
}

func TestRelayRequestBadValues(t *testing.T) {
	req := RelayRequest{
		Amount:    NewQuantity(big.NewInt(1)),
		Nonce:     NewQuantity(big.NewInt(0)),
		Deadline:  NewQuantity(big.NewInt(-5)),
		Signature: "0x1234",
	}
	_, err := req.Request(common.Address{}, common.Address{})
	require.ErrorIs(t, err, ErrBadDeadline)

	_, err = req.DecodeSignature()
	require.ErrorIs(t, err, ErrInvalidSignature)
	req.Signature = "zz"
	_, err = req.DecodeSignature()
	require.ErrorIs(t, err, ErrInvalidSignature)
}
