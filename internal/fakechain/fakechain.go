/*
Package fakechain provides an in-memory chain with EcoToken and meta-transfer
contracts for tests. It implements the RPC client interfaces used by invoker,
actor, cache, session and relay packages and speaks the real contract ABIs, so
the whole stack above RPC is exercised as is. Every accepted transaction is
put into a new block immediately.
*/
package fakechain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ecotrack/eco-go/pkg/core/roles"
	"github.com/ecotrack/eco-go/pkg/core/state"
	"github.com/ecotrack/eco-go/pkg/metatx"
	"github.com/ecotrack/eco-go/pkg/rpcclient/ecotoken"
	"github.com/ecotrack/eco-go/pkg/rpcclient/metatransfer"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Defaults used by the chain.
const (
	DefaultChainID = 31337
	GasPrice       = 1_000_000_000
	CallGas        = 60_000
)

// RevertError is returned for reverted calls, it mimics node errors.
type RevertError struct {
	Reason string
}

// Error implements the error interface.
func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

// ErrorCode implements the rpc.Error interface.
func (e *RevertError) ErrorCode() int { return 3 }

func revert(format string, args ...any) error {
	return &RevertError{Reason: fmt.Sprintf(format, args...)}
}

// Call is a record of a read-only call.
type Call struct {
	Method string
	// Height is the requested height, nil for the latest block.
	Height *big.Int
}

// Chain is an in-memory chain. It's safe for concurrent use.
type Chain struct {
	chainID      uint64
	token        common.Address
	meta         common.Address
	domain       metatx.Domain
	ctx          context.Context
	nowFunc      func() time.Time
	signer       types.Signer
	onCall       func(method string)
	failBalances map[common.Address]bool

	lock     sync.Mutex
	height   uint64
	native   map[common.Address]*big.Int
	txNonces map[common.Address]uint64
	balances map[common.Address]*big.Int
	supply   *big.Int
	actions  map[common.Address][]state.EcoAction
	nonces   map[common.Address]*big.Int
	logs     []types.Log
	receipts map[common.Hash]*types.Receipt
	calls    []Call
}

// Option configures Chain.
type Option func(*Chain)

// WithChainID sets chain ID.
func WithChainID(id uint64) Option {
	return func(c *Chain) { c.chainID = id }
}

// WithMetaTransfer deploys the meta-transfer contract at a separate address,
// by default it's a part of the token contract.
func WithMetaTransfer(addr common.Address) Option {
	return func(c *Chain) { c.meta = addr }
}

// WithClock sets the function used to get block timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.nowFunc = now }
}

// WithCallHook sets the function called before every read-only call
// execution (outside of the chain lock).
func WithCallHook(f func(method string)) Option {
	return func(c *Chain) { c.onCall = f }
}

// New creates a chain with the token deployed at the given address. Admin
// gets the admin role in the genesis block.
func New(token common.Address, admin common.Address, opts ...Option) *Chain {
	c := &Chain{
		chainID:      DefaultChainID,
		token:        token,
		meta:         token,
		ctx:          context.Background(),
		nowFunc:      time.Now,
		failBalances: make(map[common.Address]bool),
		native:       make(map[common.Address]*big.Int),
		txNonces:     make(map[common.Address]uint64),
		balances:     make(map[common.Address]*big.Int),
		supply:       new(big.Int),
		actions:      make(map[common.Address][]state.EcoAction),
		nonces:       make(map[common.Address]*big.Int),
		receipts:     make(map[common.Hash]*types.Receipt),
	}
	for _, o := range opts {
		o(c)
	}
	c.signer = types.LatestSignerForChainID(new(big.Int).SetUint64(c.chainID))
	c.domain = metatx.Domain{
		Name:              "EcoToken",
		Version:           "1",
		ChainID:           c.chainID,
		VerifyingContract: c.meta,
	}
	c.grant(roles.Admin.DefaultHash(), admin, admin, nil)
	return c
}

// Domain returns the EIP-712 domain of the meta-transfer contract.
func (c *Chain) Domain() metatx.Domain {
	return c.domain
}

// Token returns the token contract address.
func (c *Chain) Token() common.Address { return c.token }

// MetaTransfer returns the meta-transfer contract address.
func (c *Chain) MetaTransfer() common.Address { return c.meta }

// Fund sets the native balance of the account.
func (c *Chain) Fund(acc common.Address, amount *big.Int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.native[acc] = new(big.Int).Set(amount)
}

// Mint mints tokens to the account in a new block.
func (c *Chain) Mint(acc common.Address, amount *big.Int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.height++
	c.transfer(common.Address{}, acc, amount, nil)
}

// Grant grants the role to the account in a new block.
func (c *Chain) Grant(r roles.Role, acc common.Address) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.height++
	c.grant(r.DefaultHash(), acc, common.Address{}, nil)
}

// AddAction records an action of the manufacturer in a new block without
// role checks.
func (c *Chain) AddAction(manufacturer common.Address, description string, amount *big.Int, evidence string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.height++
	c.actions[manufacturer] = append(c.actions[manufacturer], state.EcoAction{
		ID:              uint64(len(c.actions[manufacturer])),
		Description:     description,
		ReductionAmount: new(big.Int).Set(amount),
		EvidenceHash:    evidence,
	})
}

// Mine adds an empty block.
func (c *Chain) Mine() {
	c.lock.Lock()
	c.height++
	c.lock.Unlock()
}

// FailBalanceOf makes balanceOf calls for the account revert.
func (c *Chain) FailBalanceOf(acc common.Address) {
	c.lock.Lock()
	c.failBalances[acc] = true
	c.lock.Unlock()
}

// Calls returns the list of read-only calls made.
func (c *Chain) Calls() []Call {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]Call(nil), c.calls...)
}

// TokenBalance returns the token balance of the account.
func (c *Chain) TokenBalance(acc common.Address) *big.Int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.balanceOf(acc)
}

// Context implements the actor.RPCPollingWaiter interface.
func (c *Chain) Context() context.Context {
	return c.ctx
}

// ChainID returns the chain ID.
func (c *Chain) ChainID() (uint64, error) {
	return c.chainID, nil
}

// BlockNumber returns the current height.
func (c *Chain) BlockNumber() (uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.height, nil
}

// BalanceAt returns the native balance, height is ignored.
func (c *Chain) BalanceAt(acc common.Address, _ *big.Int) (*big.Int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if b, ok := c.native[acc]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// PendingNonceAt returns the transaction nonce of the account.
func (c *Chain) PendingNonceAt(acc common.Address) (uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.txNonces[acc], nil
}

// SuggestGasPrice returns GasPrice.
func (c *Chain) SuggestGasPrice() (*big.Int, error) {
	return big.NewInt(GasPrice), nil
}

// EstimateGas executes the call without changing the state, CallGas is
// returned for successful executions.
func (c *Chain) EstimateGas(msg ethereum.CallMsg) (uint64, error) {
	if msg.To == nil {
		return 0, errors.New("contract creation is not supported")
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.execute(msg.From, *msg.To, msg.Data, false, nil); err != nil {
		return 0, err
	}
	return CallGas, nil
}

// CallContract executes a read-only call. Role checks are evaluated at the
// requested height, other data is taken from the latest state.
func (c *Chain) CallContract(msg ethereum.CallMsg, height *big.Int) ([]byte, error) {
	if msg.To == nil {
		return nil, errors.New("no recipient")
	}
	m, err := c.method(*msg.To, msg.Data)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	if c.onCall != nil {
		c.onCall(m.Name)
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	var h *big.Int
	if height != nil {
		h = new(big.Int).Set(height)
	}
	c.calls = append(c.calls, Call{Method: m.Name, Height: h})
	at := c.height
	if height != nil {
		if !height.IsUint64() || height.Uint64() > c.height {
			return nil, errors.New("header not found")
		}
		at = height.Uint64()
	}
	args, err := m.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	out, err := c.view(msg.From, m.Name, args, at)
	if err != nil {
		return nil, err
	}
	return m.Outputs.Pack(out...)
}

// FilterLogs returns logs matching the query (addresses and the first two
// topic positions are supported).
func (c *Chain) FilterLogs(q ethereum.FilterQuery) ([]types.Log, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	var res []types.Log
	for _, l := range c.logs {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if len(q.Addresses) != 0 && !containsAddress(q.Addresses, l.Address) {
			continue
		}
		if !topicsMatch(q.Topics, l.Topics) {
			continue
		}
		res = append(res, l)
	}
	return res, nil
}

// SendTransaction executes the transaction in a new block. Reverted
// transactions are included with a failed receipt.
func (c *Chain) SendTransaction(tx *types.Transaction) error {
	from, err := types.Sender(c.signer, tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if tx.To() == nil {
		return errors.New("contract creation is not supported")
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.receipts[tx.Hash()]; ok {
		return errors.New("already known")
	}
	if tx.Nonce() != c.txNonces[from] {
		return fmt.Errorf("invalid nonce: have %d, want %d", tx.Nonce(), c.txNonces[from])
	}
	cost := new(big.Int).Mul(tx.GasPrice(), new(big.Int).SetUint64(tx.Gas()))
	bal := c.native[from]
	if bal == nil || bal.Cmp(cost) < 0 {
		return fmt.Errorf("insufficient funds for gas * price + value: address %s", from)
	}
	c.height++
	c.txNonces[from]++
	c.native[from] = new(big.Int).Sub(bal, new(big.Int).Mul(tx.GasPrice(), big.NewInt(CallGas)))

	rcpt := &types.Receipt{
		Type:        tx.Type(),
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		GasUsed:     CallGas,
		BlockNumber: new(big.Int).SetUint64(c.height),
	}
	var logs []types.Log
	if err := c.execute(from, *tx.To(), tx.Data(), true, &logs); err != nil {
		rcpt.Status = types.ReceiptStatusFailed
		logs = nil
	}
	for i := range logs {
		logs[i].TxHash = tx.Hash()
		logs[i].BlockNumber = c.height
		logs[i].Index = uint(len(c.logs))
		c.logs = append(c.logs, logs[i])
		l := logs[i]
		rcpt.Logs = append(rcpt.Logs, &l)
	}
	c.receipts[tx.Hash()] = rcpt
	return nil
}

// TransactionReceipt returns the receipt of an included transaction or
// ethereum.NotFound.
func (c *Chain) TransactionReceipt(h common.Hash) (*types.Receipt, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	r, ok := c.receipts[h]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (c *Chain) abis(to common.Address) []*abi.ABI {
	var res []*abi.ABI
	if to == c.token {
		res = append(res, &ecotoken.ABI)
	}
	if to == c.meta {
		res = append(res, &metatransfer.ABI)
	}
	return res
}

func (c *Chain) method(to common.Address, data []byte) (*abi.Method, error) {
	list := c.abis(to)
	if len(list) == 0 {
		return nil, nil
	}
	if len(data) < 4 {
		return nil, revert("no method")
	}
	for _, a := range list {
		if m, err := a.MethodById(data[:4]); err == nil {
			return m, nil
		}
	}
	return nil, revert("unknown method %x", data[:4])
}

func (c *Chain) view(from common.Address, method string, args []any, height uint64) ([]any, error) {
	switch method {
	case "DEFAULT_ADMIN_ROLE":
		return []any{[32]byte(roles.Admin.DefaultHash())}, nil
	case "MANUFACTURER_ROLE":
		return []any{[32]byte(roles.Manufacturer.DefaultHash())}, nil
	case "AUDITOR_ROLE":
		return []any{[32]byte(roles.Auditor.DefaultHash())}, nil
	case "hasRole":
		return []any{c.hasRole(args[0].([32]byte), args[1].(common.Address), height)}, nil
	case "name":
		return []any{"EcoToken"}, nil
	case "symbol":
		return []any{"ECO"}, nil
	case "decimals":
		return []any{uint8(18)}, nil
	case "totalSupply":
		return []any{new(big.Int).Set(c.supply)}, nil
	case "balanceOf":
		acc := args[0].(common.Address)
		if c.failBalances[acc] {
			return nil, revert("balance unavailable")
		}
		return []any{c.balanceOf(acc)}, nil
	case "manufacturerActions":
		acts := c.actions[args[0].(common.Address)]
		idx := args[1].(*big.Int)
		if !idx.IsUint64() || idx.Uint64() >= uint64(len(acts)) {
			return nil, revert("")
		}
		a := acts[idx.Uint64()]
		return []any{a.Description, new(big.Int).Set(a.ReductionAmount), a.EvidenceHash, a.Verified}, nil
	case "nonces":
		return []any{c.nonceOf(args[0].(common.Address))}, nil
	}
	// State-changing methods called read-only.
	if err := c.run(from, method, args, false, nil); err != nil {
		return nil, err
	}
	if method == "transfer" {
		return []any{true}, nil
	}
	return nil, nil
}

// execute runs a state-changing call, state is only changed if apply is
// set. Logs are appended to logs if it's not nil.
func (c *Chain) execute(from, to common.Address, data []byte, apply bool, logs *[]types.Log) error {
	m, err := c.method(to, data)
	if err != nil {
		return err
	}
	if m == nil {
		return nil // Plain account.
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return revert("bad arguments: %v", err)
	}
	return c.run(from, m.Name, args, apply, logs)
}

func (c *Chain) run(from common.Address, method string, args []any, apply bool, logs *[]types.Log) error {
	switch method {
	case "submitEcoAction":
		if !c.hasRole(roles.Manufacturer.DefaultHash(), from, c.height) {
			return revert("caller is not a manufacturer")
		}
		amount := args[1].(*big.Int)
		if amount.Sign() <= 0 {
			return revert("reduction amount must be positive")
		}
		if apply {
			c.actions[from] = append(c.actions[from], state.EcoAction{
				ID:              uint64(len(c.actions[from])),
				Description:     args[0].(string),
				ReductionAmount: new(big.Int).Set(amount),
				EvidenceHash:    args[2].(string),
			})
		}
	case "verifyAction":
		if !c.hasRole(roles.Auditor.DefaultHash(), from, c.height) {
			return revert("caller is not an auditor")
		}
		acts := c.actions[args[0].(common.Address)]
		idx := args[1].(*big.Int)
		if !idx.IsUint64() || idx.Uint64() >= uint64(len(acts)) {
			return revert("invalid action id")
		}
		if acts[idx.Uint64()].Verified {
			return revert("action already verified")
		}
		if apply {
			acts[idx.Uint64()].Verified = true
		}
	case "addManufacturer", "addAuditor", "grantRole", "revokeRole":
		if !c.hasRole(roles.Admin.DefaultHash(), from, c.height) {
			return revert("caller is not an admin")
		}
		if !apply {
			return nil
		}
		switch method {
		case "addManufacturer":
			c.grant(roles.Manufacturer.DefaultHash(), args[0].(common.Address), from, logs)
		case "addAuditor":
			c.grant(roles.Auditor.DefaultHash(), args[0].(common.Address), from, logs)
		case "grantRole":
			c.grant(args[0].([32]byte), args[1].(common.Address), from, logs)
		case "revokeRole":
			c.revoke(args[0].([32]byte), args[1].(common.Address), from, logs)
		}
	case "transfer":
		amount := args[1].(*big.Int)
		if c.balanceOf(from).Cmp(amount) < 0 {
			return revert("transfer amount exceeds balance")
		}
		if apply {
			c.transfer(from, args[0].(common.Address), amount, logs)
		}
	case "transferWithSig":
		req := metatx.TransferRequest{
			From:   args[0].(common.Address),
			To:     args[1].(common.Address),
			Amount: args[2].(*big.Int),
			Nonce:  args[3].(*big.Int),
		}
		deadline := args[4].(*big.Int)
		if !deadline.IsUint64() {
			return revert("bad deadline")
		}
		req.Deadline = deadline.Uint64()
		if req.Expired(c.nowFunc()) {
			return revert("signature expired")
		}
		if req.Nonce.Cmp(c.nonceOf(req.From)) != 0 {
			return revert("invalid nonce")
		}
		if err := c.domain.Verify(req, args[5].([]byte)); err != nil {
			return revert("invalid signature")
		}
		if c.balanceOf(req.From).Cmp(req.Amount) < 0 {
			return revert("transfer amount exceeds balance")
		}
		if apply {
			c.nonces[req.From] = new(big.Int).Add(c.nonceOf(req.From), big.NewInt(1))
			c.transfer(req.From, req.To, req.Amount, logs)
		}
	default:
		return revert("method %s is not supported", method)
	}
	return nil
}

func (c *Chain) balanceOf(acc common.Address) *big.Int {
	if b, ok := c.balances[acc]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (c *Chain) nonceOf(acc common.Address) *big.Int {
	if n, ok := c.nonces[acc]; ok {
		return new(big.Int).Set(n)
	}
	return new(big.Int)
}

// transfer moves tokens, zero from means minting.
func (c *Chain) transfer(from, to common.Address, amount *big.Int, logs *[]types.Log) {
	if from == (common.Address{}) {
		c.supply.Add(c.supply, amount)
	} else {
		c.balances[from] = new(big.Int).Sub(c.balanceOf(from), amount)
	}
	c.balances[to] = new(big.Int).Add(c.balanceOf(to), amount)
	c.emit(logs, types.Log{
		Address: c.token,
		Topics: []common.Hash{
			ecotoken.ABI.Events["Transfer"].ID,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: common.LeftPadBytes(amount.Bytes(), 32),
	})
}

// hasRole evaluates role membership at the given height using role events.
func (c *Chain) hasRole(role common.Hash, acc common.Address, height uint64) bool {
	var res bool
	for _, l := range c.logs {
		if l.BlockNumber > height || l.Address != c.token || len(l.Topics) != 4 {
			continue
		}
		if l.Topics[1] != role || common.BytesToAddress(l.Topics[2].Bytes()) != acc {
			continue
		}
		switch l.Topics[0] {
		case ecotoken.RoleGrantedID:
			res = true
		case ecotoken.RoleRevokedID:
			res = false
		}
	}
	return res
}

func (c *Chain) grant(role common.Hash, acc, sender common.Address, logs *[]types.Log) {
	if c.hasRole(role, acc, c.height) {
		return
	}
	c.roleLog(ecotoken.RoleGrantedID, role, acc, sender, logs)
}

func (c *Chain) revoke(role common.Hash, acc, sender common.Address, logs *[]types.Log) {
	if !c.hasRole(role, acc, c.height) {
		return
	}
	c.roleLog(ecotoken.RoleRevokedID, role, acc, sender, logs)
}

func (c *Chain) roleLog(id, role common.Hash, acc, sender common.Address, logs *[]types.Log) {
	c.emit(logs, types.Log{
		Address: c.token,
		Topics: []common.Hash{
			id,
			role,
			common.BytesToHash(acc.Bytes()),
			common.BytesToHash(sender.Bytes()),
		},
	})
}

// emit appends the log to the transaction logs or directly to the chain
// (for logs produced outside of transactions).
func (c *Chain) emit(logs *[]types.Log, l types.Log) {
	if logs != nil {
		*logs = append(*logs, l)
		return
	}
	l.BlockNumber = c.height
	l.Index = uint(len(c.logs))
	c.logs = append(c.logs, l)
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func topicsMatch(filter [][]common.Hash, topics []common.Hash) bool {
	for i, set := range filter {
		if len(set) == 0 {
			continue
		}
		if i >= len(topics) {
			return false
		}
		var ok bool
		for _, t := range set {
			if t == topics[i] {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
