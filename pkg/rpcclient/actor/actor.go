/*
Package actor provides a way to change chain state via RPC client.

This layer builds on top of the basic RPC client and [invoker] package, it
simplifies creating, signing and sending transactions to the network (since
that's the only way chain state is changed). It's generic enough to be used for
any contract that you may want to invoke and contract-specific functions can
build on top of it.
*/
package actor

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ecotrack/eco-go/pkg/rpcclient/invoker"
	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrPredictedRevert is returned when gas estimation shows that the
	// transaction is going to revert.
	ErrPredictedRevert = errors.New("predicted revert")
	// ErrInsufficientFunds is returned when the sender can't pay for gas.
	ErrInsufficientFunds = errors.New("insufficient funds for gas")
)

// DefaultGasBuffer is the default percentage added to estimated gas.
const DefaultGasBuffer = 20

// RPCActor is an interface required from the RPC client to successfully
// create and send transactions.
type RPCActor interface {
	invoker.RPCInvoke

	BalanceAt(account common.Address, height *big.Int) (*big.Int, error)
	ChainID() (uint64, error)
	EstimateGas(msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(account common.Address) (uint64, error)
	SendTransaction(tx *types.Transaction) error
	SuggestGasPrice() (*big.Int, error)
}

// TransactionModifier is a callback that receives the transaction data
// before it's signed. It can check gas values and other fields and return an
// error if there is anything wrong there which will abort the creation
// process. It also can modify Nonce, Gas and GasPrice taking full
// responsibility on the effects of these modifications.
type TransactionModifier func(tx *types.LegacyTx) error

// DefaultModifier is the default modifier, it does nothing.
func DefaultModifier(tx *types.LegacyTx) error {
	return nil
}

// Options are used to create Actor with non-default settings.
type Options struct {
	// GasBuffer is a percentage added to estimated gas limit.
	GasBuffer uint64
	// Modifier is applied to every transaction before signing.
	Modifier TransactionModifier
	// PollInterval and WaitBlocks configure PollingWaiter, see
	// NewPollingWaiter.
	PollInterval time.Duration
	WaitBlocks   uint64
}

// Actor keeps a connection to the RPC endpoint and allows to perform
// state-changing actions (via transactions that can also be created without
// sending them to the network) on behalf of an account. It also provides an
// Invoker interface to perform test calls with the same sender.
//
// Actor-specific APIs follow the naming scheme set by Invoker in method
// suffixes. *Call methods operate with ABI function calls and require a
// contract address, ABI, a method and parameters if any. *Run methods operate
// with raw call data. Prefixes denote the action to be performed, "Make" prefix
// is used for methods that create transactions in various ways, while "Send"
// prefix is used by methods that directly transmit created transactions to
// the RPC server.
//
// Actor also provides a Waiter interface to wait until transaction is
// included into a block. PollingWaiter is used if RPCActor implements
// RPCPollingWaiter, NullWaiter is used otherwise.
type Actor struct {
	invoker.Invoker
	Waiter

	client  RPCActor
	opts    Options
	account *wallet.Account
	chainID uint64
	signer  types.Signer
}

// New creates an Actor instance using the specified RPC interface and the
// account. Upon Actor instance creation a ChainID call is made and the result
// of it is cached forever (and used for transaction signing).
func New(ra RPCActor, acc *wallet.Account) (*Actor, error) {
	return NewTuned(ra, acc, NewDefaultOptions())
}

// NewDefaultOptions returns default Options.
func NewDefaultOptions() Options {
	return Options{
		GasBuffer:    DefaultGasBuffer,
		Modifier:     DefaultModifier,
		PollInterval: DefaultPollInterval,
		WaitBlocks:   DefaultWaitBlocks,
	}
}

// NewTuned creates an Actor that will use the specified Options. Zero values
// are replaced with defaults.
func NewTuned(ra RPCActor, acc *wallet.Account, opts Options) (*Actor, error) {
	if acc == nil {
		return nil, errors.New("account is required")
	}
	def := NewDefaultOptions()
	if opts.Modifier == nil {
		opts.Modifier = def.Modifier
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.WaitBlocks == 0 {
		opts.WaitBlocks = def.WaitBlocks
	}
	chainID, err := ra.ChainID()
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	sender := acc.Address
	return &Actor{
		Invoker: *invoker.New(ra, &sender),
		Waiter:  newWaiter(ra, opts),
		client:  ra,
		opts:    opts,
		account: acc,
		chainID: chainID,
		signer:  types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)),
	}, nil
}

// ChainID returns the chain ID transactions are signed for.
func (a *Actor) ChainID() uint64 {
	return a.chainID
}

// Sender returns the sender address of transactions created by Actor.
func (a *Actor) Sender() common.Address {
	return a.account.Address
}

// Balance returns the current native balance of the sender.
func (a *Actor) Balance() (*big.Int, error) {
	return a.client.BalanceAt(a.account.Address, nil)
}

// MakeCall creates a signed transaction that calls the given method of the
// given contract with the given parameters.
func (a *Actor) MakeCall(contract common.Address, ab *abi.ABI, method string, params ...any) (*types.Transaction, error) {
	data, err := ab.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s parameters: %w", method, err)
	}
	return a.MakeRun(contract, data)
}

// MakeUnsignedCall is MakeCall returning an unsigned transaction.
func (a *Actor) MakeUnsignedCall(contract common.Address, ab *abi.ABI, method string, params ...any) (*types.Transaction, error) {
	data, err := ab.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s parameters: %w", method, err)
	}
	return a.MakeUnsignedRun(contract, data)
}

// MakeRun creates a signed transaction with the given call data.
func (a *Actor) MakeRun(contract common.Address, data []byte) (*types.Transaction, error) {
	tx, err := a.MakeUnsignedRun(contract, data)
	if err != nil {
		return nil, err
	}
	return a.Sign(tx)
}

// MakeUnsignedRun creates an unsigned transaction with the given call data.
// Gas is estimated (with a failed estimation reported as ErrPredictedRevert),
// the sender balance is checked to cover it (ErrInsufficientFunds is returned
// otherwise).
func (a *Actor) MakeUnsignedRun(contract common.Address, data []byte) (*types.Transaction, error) {
	gas, err := a.client.EstimateGas(ethereum.CallMsg{
		From: a.account.Address,
		To:   &contract,
		Data: data,
	})
	if err != nil {
		return nil, classifyError(err, ErrPredictedRevert)
	}
	gas += gas * a.opts.GasBuffer / 100

	price, err := a.client.SuggestGasPrice()
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	nonce, err := a.client.PendingNonceAt(a.account.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	txData := &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: price,
		Gas:      gas,
		To:       &contract,
		Data:     data,
	}
	if err := a.opts.Modifier(txData); err != nil {
		return nil, err
	}

	balance, err := a.client.BalanceAt(a.account.Address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	cost := new(big.Int).Mul(txData.GasPrice, new(big.Int).SetUint64(txData.Gas))
	if balance.Cmp(cost) < 0 {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, balance, cost)
	}
	return types.NewTx(txData), nil
}

// Sign signs the transaction with Actor account, the signed copy is returned.
func (a *Actor) Sign(tx *types.Transaction) (*types.Transaction, error) {
	sig := a.account.SignHash(a.signer.Hash(tx))
	return tx.WithSignature(a.signer, sig)
}

// Send allows to send arbitrary prepared transaction to the network. It
// returns transaction hash.
func (a *Actor) Send(tx *types.Transaction) (common.Hash, error) {
	if err := a.client.SendTransaction(tx); err != nil {
		return common.Hash{}, classifyError(err, nil)
	}
	return tx.Hash(), nil
}

// SignAndSend signs arbitrary transaction and sends it to the network.
func (a *Actor) SignAndSend(tx *types.Transaction) (common.Hash, error) {
	return a.sendWrapper(a.Sign(tx))
}

func (a *Actor) sendWrapper(tx *types.Transaction, err error) (common.Hash, error) {
	if err != nil {
		return common.Hash{}, err
	}
	return a.Send(tx)
}

// SendCall creates a transaction that calls the given method of the given
// contract with the given parameters (see also MakeCall) and sends it to the
// network.
func (a *Actor) SendCall(contract common.Address, ab *abi.ABI, method string, params ...any) (common.Hash, error) {
	return a.sendWrapper(a.MakeCall(contract, ab, method, params...))
}

// SendRun creates a transaction with the given call data (see also MakeRun)
// and sends it to the network.
func (a *Actor) SendRun(contract common.Address, data []byte) (common.Hash, error) {
	return a.sendWrapper(a.MakeRun(contract, data))
}

// classifyError marks node errors with ErrInsufficientFunds or (if
// revertErr is not nil) with revertErr for reverted executions.
func classifyError(err error, revertErr error) error {
	if strings.Contains(strings.ToLower(err.Error()), "insufficient funds") {
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	}
	if revertErr != nil {
		if werr := invoker.WrapCallError(err); errors.Is(werr, invoker.ErrExecutionReverted) {
			return fmt.Errorf("%w: %v", revertErr, werr)
		}
	}
	return err
}
