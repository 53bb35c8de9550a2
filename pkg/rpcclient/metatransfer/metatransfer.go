/*
Package metatransfer provides an RPC wrapper for the meta-transfer contract
that executes token transfers authorised by EIP-712 signatures of the token
owner (see metatx package) and paid for by a relayer.
*/
package metatransfer

import (
	"math/big"
	"strings"

	"github.com/ecotrack/eco-go/pkg/metatx"
	"github.com/ecotrack/eco-go/pkg/rpcclient/unwrap"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ABIJSON is the part of the meta-transfer contract ABI used by this
// package.
const ABIJSON = `[
{"type":"function","name":"nonces","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"transferWithSig","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"},{"name":"nonce","type":"uint256"},{"name":"deadline","type":"uint256"},{"name":"signature","type":"bytes"}],"outputs":[]}
]`

// ABI is the parsed ABIJSON.
var ABI = func() abi.ABI {
	a, err := abi.JSON(strings.NewReader(ABIJSON))
	if err != nil {
		panic(err)
	}
	return a
}()

// Invoker is used by Reader to call various safe methods.
type Invoker interface {
	Call(contract common.Address, a *abi.ABI, method string, params ...any) ([]any, error)
}

// Actor is used by Contract to create and send transactions.
type Actor interface {
	Invoker

	MakeCall(contract common.Address, a *abi.ABI, method string, params ...any) (*types.Transaction, error)
	SendCall(contract common.Address, a *abi.ABI, method string, params ...any) (common.Hash, error)
}

// Reader represents safe (read-only) methods of the contract.
type Reader struct {
	invoker Invoker
	hash    common.Address
}

// Contract provides full contract interface, both safe and state-changing
// methods.
type Contract struct {
	Reader

	actor Actor
}

// NewReader creates an instance of Reader for the contract at the given
// address using the given invoker.
func NewReader(invoker Invoker, hash common.Address) *Reader {
	return &Reader{invoker, hash}
}

// New creates an instance of Contract for the contract at the given address
// using the given actor.
func New(actor Actor, hash common.Address) *Contract {
	return &Contract{*NewReader(actor, hash), actor}
}

// Hash returns the contract address.
func (c *Reader) Hash() common.Address {
	return c.hash
}

// Nonces returns the current meta-transfer nonce of the owner, the next
// request of the owner must use exactly this value.
func (c *Reader) Nonces(owner common.Address) (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, &ABI, "nonces", owner))
}

func transferParams(req metatx.TransferRequest, sig []byte) []any {
	return []any{req.From, req.To, req.Amount, req.Nonce, new(big.Int).SetUint64(req.Deadline), sig}
}

// TransferWithSig creates and sends a transaction executing the signed
// request on behalf of its signer.
func (c *Contract) TransferWithSig(req metatx.TransferRequest, sig []byte) (common.Hash, error) {
	return c.actor.SendCall(c.hash, &ABI, "transferWithSig", transferParams(req, sig)...)
}

// TransferWithSigTransaction is TransferWithSig returning a signed
// transaction without sending it.
func (c *Contract) TransferWithSigTransaction(req metatx.TransferRequest, sig []byte) (*types.Transaction, error) {
	return c.actor.MakeCall(c.hash, &ABI, "transferWithSig", transferParams(req, sig)...)
}
