package wallet

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// RequestKind is a kind of request that needs user confirmation.
type RequestKind byte

const (
	// ConnectRequest is a request to expose accounts.
	ConnectRequest RequestKind = iota
	// SwitchChainRequest is a request to switch the chain.
	SwitchChainRequest
	// AddChainRequest is a request to add a new chain.
	AddChainRequest
	// SignRequest is a request to sign typed data.
	SignRequest
)

// ConfirmRequest describes a request presented to the user.
type ConfirmRequest struct {
	Kind      RequestKind
	Account   common.Address
	// Accounts are all accounts exposed by a ConnectRequest, Account is the
	// first of them.
	Accounts  []common.Address
	ChainID   uint64
	Chain     *ChainParams
	TypedData *apitypes.TypedData
}

// ConfirmFunc asks the user to approve the request, false means rejection.
type ConfirmFunc func(ctx context.Context, req ConfirmRequest) bool

// AutoConfirm approves any request.
func AutoConfirm(context.Context, ConfirmRequest) bool { return true }

const localEventBuffer = 16

// LocalProvider is a wallet holding accounts in memory. It's used by the CLI
// (with keystore accounts and terminal confirmations) and tests.
type LocalProvider struct {
	confirm ConfirmFunc

	lock      sync.RWMutex
	accounts  []*Account
	connected bool
	chainID   uint64
	chains    map[uint64]ChainParams
	closed    bool

	evLock   sync.Mutex
	evClosed bool
	events   chan Event
}

// NewLocalProvider creates a provider on the given chain, known chains can
// be switched to without adding them. If confirm is nil, every request is
// approved.
func NewLocalProvider(chainID uint64, confirm ConfirmFunc, accounts ...*Account) *LocalProvider {
	if confirm == nil {
		confirm = AutoConfirm
	}
	return &LocalProvider{
		confirm:  confirm,
		accounts: accounts,
		chainID:  chainID,
		chains:   map[uint64]ChainParams{chainID: {ChainID: chainID}},
		events:   make(chan Event, localEventBuffer),
	}
}

// RequestAccounts implements the Provider interface.
func (p *LocalProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if p.isClosed() {
		return nil, ErrDisconnected
	}
	p.lock.RLock()
	req := ConfirmRequest{Kind: ConnectRequest, Accounts: p.addresses()}
	p.lock.RUnlock()
	if len(req.Accounts) != 0 {
		req.Account = req.Accounts[0]
	}
	if !p.confirm(ctx, req) {
		return nil, ErrUserRejected
	}
	p.lock.Lock()
	p.connected = true
	p.lock.Unlock()
	return p.Accounts(ctx)
}

// Accounts implements the Provider interface.
func (p *LocalProvider) Accounts(context.Context) ([]common.Address, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.closed {
		return nil, ErrDisconnected
	}
	if !p.connected {
		return []common.Address{}, nil
	}
	return p.addresses(), nil
}

func (p *LocalProvider) addresses() []common.Address {
	res := make([]common.Address, 0, len(p.accounts))
	for _, acc := range p.accounts {
		res = append(res, acc.Address)
	}
	return res
}

// ChainID implements the Provider interface.
func (p *LocalProvider) ChainID(context.Context) (uint64, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.closed {
		return 0, ErrDisconnected
	}
	return p.chainID, nil
}

// SwitchChain implements the Provider interface.
func (p *LocalProvider) SwitchChain(ctx context.Context, chainID uint64) error {
	p.lock.RLock()
	_, known := p.chains[chainID]
	current := p.chainID
	p.lock.RUnlock()
	if !known {
		return &RPCError{Code: CodeUnrecognizedChain, Message: "unrecognized chain ID"}
	}
	if current == chainID {
		return nil
	}
	if !p.confirm(ctx, ConfirmRequest{Kind: SwitchChainRequest, ChainID: chainID}) {
		return ErrUserRejected
	}
	p.setChain(chainID)
	return nil
}

// AddChain implements the Provider interface.
func (p *LocalProvider) AddChain(ctx context.Context, params ChainParams) error {
	if !p.confirm(ctx, ConfirmRequest{Kind: AddChainRequest, ChainID: params.ChainID, Chain: &params}) {
		return ErrUserRejected
	}
	p.lock.Lock()
	p.chains[params.ChainID] = params
	p.lock.Unlock()
	p.setChain(params.ChainID)
	return nil
}

func (p *LocalProvider) setChain(chainID uint64) {
	p.lock.Lock()
	changed := p.chainID != chainID
	p.chainID = chainID
	p.lock.Unlock()
	if changed {
		p.emit(Event{Type: ChainChanged, ChainID: chainID})
	}
}

// SignTypedData implements the Provider interface.
func (p *LocalProvider) SignTypedData(ctx context.Context, from common.Address, td apitypes.TypedData) ([]byte, error) {
	p.lock.RLock()
	var (
		acc       *Account
		connected = p.connected
	)
	for _, a := range p.accounts {
		if a.Address == from {
			acc = a
			break
		}
	}
	p.lock.RUnlock()
	if !connected {
		return nil, ErrUnauthorized
	}
	if acc == nil {
		return nil, ErrUnknownAccount
	}
	if !p.confirm(ctx, ConfirmRequest{Kind: SignRequest, Account: from, TypedData: &td}) {
		return nil, ErrUserRejected
	}
	return acc.SignTypedData(td)
}

// SetAccounts replaces the set of accounts (the way a user switches or
// locks accounts in a wallet) and notifies about the change.
func (p *LocalProvider) SetAccounts(accounts ...*Account) {
	p.lock.Lock()
	p.accounts = accounts
	connected := p.connected
	addrs := p.addresses()
	p.lock.Unlock()
	if connected {
		p.emit(Event{Type: AccountsChanged, Accounts: addrs})
	}
}

// Events implements the Provider interface.
func (p *LocalProvider) Events() <-chan Event {
	return p.events
}

// Close implements the Provider interface.
func (p *LocalProvider) Close() error {
	p.lock.Lock()
	p.closed = true
	p.lock.Unlock()

	p.evLock.Lock()
	defer p.evLock.Unlock()
	if !p.evClosed {
		p.evClosed = true
		close(p.events)
	}
	return nil
}

func (p *LocalProvider) isClosed() bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.closed
}

// emit sends an event unless the provider is closed.
func (p *LocalProvider) emit(ev Event) {
	p.evLock.Lock()
	defer p.evLock.Unlock()
	if !p.evClosed {
		p.events <- ev
	}
}
