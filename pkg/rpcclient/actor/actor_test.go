package actor

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

type RPCClient struct {
	err       error
	estimErr  error
	sendErr   error
	gas       uint64
	gasPrice  *big.Int
	balance   *big.Int
	nonce     uint64
	chainID   uint64
	height    atomic.Uint64
	receipt   *types.Receipt
	receiptOn uint64
	sent      []*types.Transaction
	context   context.Context
}

func (r *RPCClient) CallContract(msg ethereum.CallMsg, height *big.Int) ([]byte, error) {
	return nil, r.err
}
func (r *RPCClient) FilterLogs(q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, r.err
}
func (r *RPCClient) BalanceAt(account common.Address, height *big.Int) (*big.Int, error) {
	return r.balance, r.err
}
func (r *RPCClient) ChainID() (uint64, error) {
	return r.chainID, r.err
}
func (r *RPCClient) EstimateGas(msg ethereum.CallMsg) (uint64, error) {
	return r.gas, r.estimErr
}
func (r *RPCClient) PendingNonceAt(account common.Address) (uint64, error) {
	return r.nonce, r.err
}
func (r *RPCClient) SendTransaction(tx *types.Transaction) error {
	if r.sendErr != nil {
		return r.sendErr
	}
	r.sent = append(r.sent, tx)
	return nil
}
func (r *RPCClient) SuggestGasPrice() (*big.Int, error) {
	return r.gasPrice, r.err
}
func (r *RPCClient) Context() context.Context {
	if r.context == nil {
		return context.Background()
	}
	return r.context
}
func (r *RPCClient) BlockNumber() (uint64, error) {
	return r.height.Add(1), r.err
}
func (r *RPCClient) TransactionReceipt(h common.Hash) (*types.Receipt, error) {
	if r.receipt != nil && r.height.Load() >= r.receiptOn {
		return r.receipt, nil
	}
	return nil, ethereum.NotFound
}

const testABI = `[{"type":"function","name":"addAuditor","stateMutability":"nonpayable","inputs":[{"name":"a","type":"address"}],"outputs":[]}]`

func testRPCAndAccount(t *testing.T) (*RPCClient, *wallet.Account) {
	client := &RPCClient{
		gas:      50000,
		gasPrice: big.NewInt(1000000000),
		balance:  big.NewInt(1000000000000000000),
		nonce:    7,
		chainID:  31337,
	}
	acc, err := wallet.NewAccount()
	require.NoError(t, err)
	return client, acc
}

func TestNew(t *testing.T) {
	client, acc := testRPCAndAccount(t)

	_, err := New(client, nil)
	require.Error(t, err)

	client.err = errors.New("boom")
	_, err = New(client, acc)
	require.Error(t, err)
	client.err = nil

	a, err := New(client, acc)
	require.NoError(t, err)
	require.Equal(t, acc.Address, a.Sender())
	require.EqualValues(t, 31337, a.ChainID())
	require.IsType(t, &PollingWaiter{}, a.Waiter)
}

func TestMakeCall(t *testing.T) {
	client, acc := testRPCAndAccount(t)
	ab, err := abi.JSON(strings.NewReader(testABI))
	require.NoError(t, err)
	a, err := New(client, acc)
	require.NoError(t, err)
	contract := common.Address{1}

	t.Run("good", func(t *testing.T) {
		tx, err := a.MakeCall(contract, &ab, "addAuditor", common.Address{2})
		require.NoError(t, err)
		require.EqualValues(t, 7, tx.Nonce())
		require.EqualValues(t, 60000, tx.Gas())
		require.Equal(t, contract, *tx.To())
		require.Equal(t, big.NewInt(31337), tx.ChainId())

		sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), tx)
		require.NoError(t, err)
		require.Equal(t, acc.Address, sender)
	})
	t.Run("unsigned", func(t *testing.T) {
		tx, err := a.MakeUnsignedCall(contract, &ab, "addAuditor", common.Address{2})
		require.NoError(t, err)
		v, r, s := tx.RawSignatureValues()
		require.Zero(t, v.Sign())
		require.Zero(t, r.Sign())
		require.Zero(t, s.Sign())
	})
	t.Run("bad params", func(t *testing.T) {
		_, err := a.MakeCall(contract, &ab, "addAuditor", 42)
		require.Error(t, err)
	})
	t.Run("predicted revert", func(t *testing.T) {
		client.estimErr = errors.New("execution reverted: AccessControl: account is missing role")
		defer func() { client.estimErr = nil }()
		_, err := a.MakeCall(contract, &ab, "addAuditor", common.Address{2})
		require.ErrorIs(t, err, ErrPredictedRevert)
	})
	t.Run("estimation transport error", func(t *testing.T) {
		client.estimErr = errors.New("connection refused")
		defer func() { client.estimErr = nil }()
		_, err := a.MakeCall(contract, &ab, "addAuditor", common.Address{2})
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrPredictedRevert)
	})
	t.Run("insufficient funds", func(t *testing.T) {
		client.balance = big.NewInt(1)
		defer func() { client.balance = big.NewInt(1000000000000000000) }()
		_, err := a.MakeCall(contract, &ab, "addAuditor", common.Address{2})
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})
	t.Run("modifier", func(t *testing.T) {
		a, err := NewTuned(client, acc, Options{Modifier: func(tx *types.LegacyTx) error {
			tx.Gas = 100000
			return nil
		}})
		require.NoError(t, err)
		tx, err := a.MakeCall(contract, &ab, "addAuditor", common.Address{2})
		require.NoError(t, err)
		require.EqualValues(t, 100000, tx.Gas())

		a, err = NewTuned(client, acc, Options{Modifier: func(*types.LegacyTx) error {
			return errors.New("too expensive")
		}})
		require.NoError(t, err)
		_, err = a.MakeCall(contract, &ab, "addAuditor", common.Address{2})
		require.Error(t, err)
	})
}

func TestSendCall(t *testing.T) {
	client, acc := testRPCAndAccount(t)
	ab, err := abi.JSON(strings.NewReader(testABI))
	require.NoError(t, err)
	a, err := New(client, acc)
	require.NoError(t, err)

	h, err := a.SendCall(common.Address{1}, &ab, "addAuditor", common.Address{2})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)
	require.Equal(t, client.sent[0].Hash(), h)

	client.sendErr = errors.New("insufficient funds for gas * price + value")
	_, err = a.SendCall(common.Address{1}, &ab, "addAuditor", common.Address{2})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	client.sendErr = errors.New("nonce too low")
	_, err = a.SendCall(common.Address{1}, &ab, "addAuditor", common.Address{2})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInsufficientFunds)
}
