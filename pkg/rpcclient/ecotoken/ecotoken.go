/*
Package ecotoken provides an RPC wrapper for the EcoToken contract: an
ERC20-style token with AccessControl roles (Admin, Manufacturer, Auditor) and
per-manufacturer records of carbon-reduction actions.

Reader provides safe read-only methods, Contract adds state-changing ones.
*/
package ecotoken

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ecotrack/eco-go/pkg/core/roles"
	"github.com/ecotrack/eco-go/pkg/core/state"
	"github.com/ecotrack/eco-go/pkg/rpcclient/unwrap"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MaxValidDecimals is the maximum value 'decimals' can return to be
// considered valid, it's log10(2^256).
const MaxValidDecimals = 77

// Invoker is used by Reader to call various safe methods.
type Invoker interface {
	Call(contract common.Address, a *abi.ABI, method string, params ...any) ([]any, error)
	Logs(q ethereum.FilterQuery) ([]types.Log, error)
}

// Actor is used by Contract to create and send transactions.
type Actor interface {
	Invoker

	MakeCall(contract common.Address, a *abi.ABI, method string, params ...any) (*types.Transaction, error)
	MakeUnsignedCall(contract common.Address, a *abi.ABI, method string, params ...any) (*types.Transaction, error)
	SendCall(contract common.Address, a *abi.ABI, method string, params ...any) (common.Hash, error)
}

// Reader represents safe (read-only) methods of EcoToken.
type Reader struct {
	invoker Invoker
	hash    common.Address
}

// Contract provides full EcoToken interface, both safe and state-changing
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

func (c *Reader) call(method string, params ...any) ([]any, error) {
	return c.invoker.Call(c.hash, &ABI, method, params...)
}

// RoleHash returns the on-chain identifier of the role.
func (c *Reader) RoleHash(r roles.Role) (common.Hash, error) {
	getter := r.Getter()
	if getter == "" {
		return common.Hash{}, fmt.Errorf("no identifier for %s role", r)
	}
	return unwrap.Hash(c.call(getter))
}

// RoleHashes returns identifiers of all known roles.
func (c *Reader) RoleHashes() (roles.Hashes, error) {
	res := make(roles.Hashes, len(roles.All))
	for _, r := range roles.All {
		h, err := c.RoleHash(r)
		if err != nil {
			return nil, fmt.Errorf("%s role: %w", r, err)
		}
		res[h] = r
	}
	return res, nil
}

// HasRole checks whether the account has the role with the given identifier.
func (c *Reader) HasRole(role common.Hash, account common.Address) (bool, error) {
	return unwrap.Bool(c.call("hasRole", role, account))
}

// Name returns the token name.
func (c *Reader) Name() (string, error) {
	return unwrap.UTF8String(c.call("name"))
}

// Symbol returns a short token identifier (like "ECO").
func (c *Reader) Symbol() (string, error) {
	return unwrap.PrintableASCIIString(c.call("symbol"))
}

// Decimals returns the number of decimals used by the token.
func (c *Reader) Decimals() (int, error) {
	d, err := unwrap.Uint8(c.call("decimals"))
	if err != nil {
		return 0, err
	}
	if d > MaxValidDecimals {
		return 0, errors.New("too big decimals value")
	}
	return int(d), nil
}

// TotalSupply returns the amount of minted tokens.
func (c *Reader) TotalSupply() (*big.Int, error) {
	return unwrap.BigInt(c.call("totalSupply"))
}

// BalanceOf returns the token balance of the given account in the smallest
// token units.
func (c *Reader) BalanceOf(account common.Address) (*big.Int, error) {
	return unwrap.BigInt(c.call("balanceOf", account))
}

// ManufacturerAction returns the action with the given index recorded by the
// manufacturer. The contract reverts for indexes past the last record, so
// invoker.ErrExecutionReverted means there is no such action.
func (c *Reader) ManufacturerAction(manufacturer common.Address, index uint64) (*state.EcoAction, error) {
	r, err := c.call("manufacturerActions", manufacturer, new(big.Int).SetUint64(index))
	if err != nil {
		return nil, err
	}
	if len(r) != 4 {
		return nil, fmt.Errorf("wrong number of action fields: %d", len(r))
	}
	desc, ok1 := r[0].(string)
	amount, ok2 := r[1].(*big.Int)
	evidence, ok3 := r[2].(string)
	verified, ok4 := r[3].(bool)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, errors.New("unexpected action field types")
	}
	return &state.EcoAction{
		ID:              index,
		Description:     desc,
		ReductionAmount: amount,
		EvidenceHash:    evidence,
		Verified:        verified,
	}, nil
}

// Actions returns an iterator over the actions recorded by the manufacturer.
func (c *Reader) Actions(manufacturer common.Address) *ActionIterator {
	return &ActionIterator{reader: c, manufacturer: manufacturer}
}

// SubmitEcoAction creates and sends a transaction recording a new action of
// the sender. The returned hash can be used to wait for inclusion.
func (c *Contract) SubmitEcoAction(description string, reductionAmount *big.Int, evidenceHash string) (common.Hash, error) {
	return c.actor.SendCall(c.hash, &ABI, "submitEcoAction", description, reductionAmount, evidenceHash)
}

// SubmitEcoActionTransaction creates a signed transaction recording a new
// action of the sender without sending it.
func (c *Contract) SubmitEcoActionTransaction(description string, reductionAmount *big.Int, evidenceHash string) (*types.Transaction, error) {
	return c.actor.MakeCall(c.hash, &ABI, "submitEcoAction", description, reductionAmount, evidenceHash)
}

// SubmitEcoActionUnsigned creates an unsigned transaction recording a new
// action of the sender.
func (c *Contract) SubmitEcoActionUnsigned(description string, reductionAmount *big.Int, evidenceHash string) (*types.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, &ABI, "submitEcoAction", description, reductionAmount, evidenceHash)
}

// VerifyAction creates and sends a transaction marking the action of the
// manufacturer as verified, the sender must be an auditor.
func (c *Contract) VerifyAction(manufacturer common.Address, id uint64) (common.Hash, error) {
	return c.actor.SendCall(c.hash, &ABI, "verifyAction", manufacturer, new(big.Int).SetUint64(id))
}

// VerifyActionTransaction is VerifyAction returning a signed transaction
// without sending it.
func (c *Contract) VerifyActionTransaction(manufacturer common.Address, id uint64) (*types.Transaction, error) {
	return c.actor.MakeCall(c.hash, &ABI, "verifyAction", manufacturer, new(big.Int).SetUint64(id))
}

// VerifyActionUnsigned is VerifyAction returning an unsigned transaction.
func (c *Contract) VerifyActionUnsigned(manufacturer common.Address, id uint64) (*types.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, &ABI, "verifyAction", manufacturer, new(big.Int).SetUint64(id))
}

// AddManufacturer grants the Manufacturer role to the account, the sender
// must be an admin.
func (c *Contract) AddManufacturer(account common.Address) (common.Hash, error) {
	return c.actor.SendCall(c.hash, &ABI, "addManufacturer", account)
}

// AddManufacturerTransaction is AddManufacturer returning a signed
// transaction without sending it.
func (c *Contract) AddManufacturerTransaction(account common.Address) (*types.Transaction, error) {
	return c.actor.MakeCall(c.hash, &ABI, "addManufacturer", account)
}

// AddAuditor grants the Auditor role to the account, the sender must be an
// admin.
func (c *Contract) AddAuditor(account common.Address) (common.Hash, error) {
	return c.actor.SendCall(c.hash, &ABI, "addAuditor", account)
}

// AddAuditorTransaction is AddAuditor returning a signed transaction without
// sending it.
func (c *Contract) AddAuditorTransaction(account common.Address) (*types.Transaction, error) {
	return c.actor.MakeCall(c.hash, &ABI, "addAuditor", account)
}

// GrantRole grants the role with the given identifier to the account.
func (c *Contract) GrantRole(role common.Hash, account common.Address) (common.Hash, error) {
	return c.actor.SendCall(c.hash, &ABI, "grantRole", role, account)
}

// RevokeRole revokes the role with the given identifier from the account.
func (c *Contract) RevokeRole(role common.Hash, account common.Address) (common.Hash, error) {
	return c.actor.SendCall(c.hash, &ABI, "revokeRole", role, account)
}

// RevokeRoleTransaction is RevokeRole returning a signed transaction without
// sending it.
func (c *Contract) RevokeRoleTransaction(role common.Hash, account common.Address) (*types.Transaction, error) {
	return c.actor.MakeCall(c.hash, &ABI, "revokeRole", role, account)
}

// Transfer transfers tokens from the sender to the account paying for gas
// (see metatransfer package for gasless transfers).
func (c *Contract) Transfer(to common.Address, amount *big.Int) (common.Hash, error) {
	return c.actor.SendCall(c.hash, &ABI, "transfer", to, amount)
}
