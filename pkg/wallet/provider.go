/*
Package wallet provides accounts and wallet providers. A provider is the
EIP-1193 style interface of a wallet holding user keys: it hands out accounts
after user approval, signs typed data, switches networks and pushes account
and network change events.
*/
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP-1193 and EIP-3085 error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
)

var (
	// ErrWalletUnavailable is returned when there is no wallet to talk to.
	ErrWalletUnavailable = errors.New("wallet unavailable")
	// ErrUserRejected is returned when the user declines a wallet request.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrUnauthorized is returned for requests made before the user has
	// granted access to accounts.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnrecognizedChain is returned when the wallet doesn't know the
	// requested chain, it should be added first.
	ErrUnrecognizedChain = errors.New("unrecognized chain")
	// ErrUnknownAccount is returned for signing requests for accounts the
	// wallet doesn't control.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrDisconnected is returned when the wallet is disconnected.
	ErrDisconnected = errors.New("wallet disconnected")
)

// RPCError is an error returned by a wallet, it unwraps to one of the
// package errors for known codes.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// Unwrap allows to match RPCError with errors.Is.
func (e *RPCError) Unwrap() error {
	switch e.Code {
	case CodeUserRejected:
		return ErrUserRejected
	case CodeUnauthorized:
		return ErrUnauthorized
	case CodeDisconnected, CodeChainDisconnected:
		return ErrDisconnected
	case CodeUnrecognizedChain:
		return ErrUnrecognizedChain
	}
	return nil
}

// EventType is a type of wallet event.
type EventType byte

const (
	// AccountsChanged is sent when the set of exposed accounts changes, an
	// empty list means no accounts are available anymore.
	AccountsChanged EventType = iota
	// ChainChanged is sent when the wallet switches to another chain.
	ChainChanged
	// Disconnected is sent when the wallet can't serve requests anymore.
	Disconnected
)

// String implements the fmt.Stringer interface.
func (t EventType) String() string {
	switch t {
	case AccountsChanged:
		return "accountsChanged"
	case ChainChanged:
		return "chainChanged"
	case Disconnected:
		return "disconnect"
	}
	return "unknown"
}

// Event is a wallet-pushed notification.
type Event struct {
	Type     EventType
	Accounts []common.Address
	ChainID  uint64
}

// NativeCurrency describes the native currency of a chain.
type NativeCurrency struct {
	Name     string `json:"name" yaml:"Name"`
	Symbol   string `json:"symbol" yaml:"Symbol"`
	Decimals uint8  `json:"decimals" yaml:"Decimals"`
}

// ChainParams is the metadata required to add a chain to a wallet.
type ChainParams struct {
	ChainID           uint64
	ChainName         string
	RPCURLs           []string
	BlockExplorerURLs []string
	NativeCurrency    NativeCurrency
}

// Provider is a wallet.
type Provider interface {
	// RequestAccounts asks the user for access to accounts.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Accounts returns accounts already exposed to the application, it
	// never prompts the user.
	Accounts(ctx context.Context) ([]common.Address, error)
	// ChainID returns the chain the wallet is connected to.
	ChainID(ctx context.Context) (uint64, error)
	// SwitchChain asks the wallet to switch to the given chain,
	// ErrUnrecognizedChain is returned for chains unknown to the wallet.
	SwitchChain(ctx context.Context, chainID uint64) error
	// AddChain asks the wallet to add (and switch to) the chain.
	AddChain(ctx context.Context, params ChainParams) error
	// SignTypedData asks the wallet to sign EIP-712 data with the given
	// account, 65-byte r || s || v signature (v is 27 or 28) is returned.
	SignTypedData(ctx context.Context, from common.Address, td apitypes.TypedData) ([]byte, error)
	// Events returns a channel of wallet events, it's closed when the
	// provider is closed.
	Events() <-chan Event
	// Close releases provider resources.
	Close() error
}
