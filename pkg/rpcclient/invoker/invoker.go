/*
Package invoker provides a convenient wrapper to perform read-only contract
calls via RPC.

Invoker packs parameters using the contract ABI, executes eth_call and unpacks
the result into the list of Go values defined by the ABI. It doesn't do
anything with these values, that's left for upper (contract) layer to deal
with. Invoker does not produce any transactions and does not change the state
of the chain.
*/
package invoker

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// revertErrorCode is the JSON-RPC error code nodes use for reverted calls.
const revertErrorCode = 3

var (
	// ErrExecutionReverted is returned when the call reverted. Contracts
	// use reverts to signal missing records, so this error is an expected
	// outcome for some calls.
	ErrExecutionReverted = errors.New("execution reverted")
	// ErrNoCode is returned when a call returns no data while the method
	// has outputs, which happens when there is no contract at the address.
	ErrNoCode = errors.New("no contract code at given address")
)

// RPCInvoke is a set of RPC methods needed to execute read-only calls.
// Height is nil for the latest block.
type RPCInvoke interface {
	CallContract(msg ethereum.CallMsg, height *big.Int) ([]byte, error)
	FilterLogs(q ethereum.FilterQuery) ([]types.Log, error)
}

// Invoker allows to test-execute things using RPC client. Its API simplifies
// reusing the same sender and block height for a series of calls and at the
// same time uses regular Go types for call parameters.
type Invoker struct {
	client RPCInvoke
	from   common.Address
	height *big.Int
}

// New creates an Invoker to execute calls at the latest block on behalf of
// the given sender (zero address if nil).
func New(client RPCInvoke, from *common.Address) *Invoker {
	inv := &Invoker{client: client}
	if from != nil {
		inv.from = *from
	}
	return inv
}

// NewHistoricAtHeight creates an Invoker to execute calls at the given block
// height, all of its calls see the same chain state.
func NewHistoricAtHeight(height uint64, client RPCInvoke, from *common.Address) *Invoker {
	inv := New(client, from)
	inv.height = new(big.Int).SetUint64(height)
	return inv
}

// Height returns the height Invoker is pinned to, nil for the latest block.
func (v *Invoker) Height() *big.Int {
	if v.height == nil {
		return nil
	}
	return new(big.Int).Set(v.height)
}

// Call invokes a method of the contract with the given parameters and returns
// the unpacked result.
func (v *Invoker) Call(contract common.Address, a *abi.ABI, method string, params ...any) ([]any, error) {
	m, ok := a.Methods[method]
	if !ok {
		return nil, fmt.Errorf("method %q not found", method)
	}
	data, err := a.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s parameters: %w", method, err)
	}
	out, err := v.CallRaw(contract, data)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 && len(m.Outputs) != 0 {
		return nil, ErrNoCode
	}
	return m.Outputs.Unpack(out)
}

// CallRaw executes a call with the given call data.
func (v *Invoker) CallRaw(contract common.Address, data []byte) ([]byte, error) {
	out, err := v.client.CallContract(ethereum.CallMsg{
		From: v.from,
		To:   &contract,
		Data: data,
	}, v.height)
	if err != nil {
		return nil, WrapCallError(err)
	}
	return out, nil
}

// Logs returns logs matching the query.
func (v *Invoker) Logs(q ethereum.FilterQuery) ([]types.Log, error) {
	return v.client.FilterLogs(q)
}

// WrapCallError marks errors caused by reverted executions with
// ErrExecutionReverted (decoding the revert reason if there is one), other
// errors are returned as is.
func WrapCallError(err error) error {
	if err == nil || errors.Is(err, ErrExecutionReverted) {
		return err
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			if reason, uerr := abi.UnpackRevert(common.FromHex(s)); uerr == nil {
				return fmt.Errorf("%w: %s", ErrExecutionReverted, reason)
			}
		}
	}
	var rpcErr rpc.Error
	if (errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertErrorCode) ||
		strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
		return fmt.Errorf("%w: %v", ErrExecutionReverted, err)
	}
	return err
}
