/*
Package session manages the wallet session: the connected account, its native
balance and the chain the wallet is on. A Session is an immutable snapshot
created on connection and replaced on every account or network change, the
replaced one is invalidated (its Done channel is closed).
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ErrNoAccounts is returned by Connect when the wallet exposes no accounts.
var ErrNoAccounts = errors.New("no accounts available")

// Session is the state of the connection to the wallet.
type Session struct {
	Address common.Address
	// NativeBalance is nil if it couldn't be read.
	NativeBalance *big.Int
	ChainID       uint64
	// WrongNetwork is set when the wallet is on a chain other than the one
	// the application works with. Reads are still possible.
	WrongNetwork bool

	done chan struct{}
}

// Done returns a channel that is closed when the session is replaced or
// cleared.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Valid checks whether the session is still the current one.
func (s *Session) Valid() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Chain is used to get native balances.
type Chain interface {
	BalanceAt(account common.Address, height *big.Int) (*big.Int, error)
}

// Manager tracks the wallet session. It's safe for concurrent use.
type Manager struct {
	provider wallet.Provider
	chain    Chain
	expected wallet.ChainParams
	log      *zap.Logger

	lock      sync.RWMutex
	current   *Session
	listeners []func(*Session)
}

// NewManager creates a manager for the given provider (nil if there is no
// wallet) expecting the wallet to be on the chain described by params.
func NewManager(provider wallet.Provider, chain Chain, params wallet.ChainParams, log *zap.Logger) *Manager {
	return &Manager{
		provider: provider,
		chain:    chain,
		expected: params,
		log:      log,
	}
}

// OnChange registers a function called with the new session (nil when the
// session is cleared) after every change.
func (m *Manager) OnChange(f func(*Session)) {
	m.lock.Lock()
	m.listeners = append(m.listeners, f)
	m.lock.Unlock()
}

// Current returns the current session or nil if there is none.
func (m *Manager) Current() *Session {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.current
}

// Connect requests access to wallet accounts and establishes a session for
// the first one. It fails with wallet.ErrWalletUnavailable when there is no
// provider and with wallet.ErrUserRejected when the user declines.
func (m *Manager) Connect(ctx context.Context) (*Session, error) {
	if m.provider == nil {
		return nil, wallet.ErrWalletUnavailable
	}
	accs, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect wallet: %w", err)
	}
	if len(accs) == 0 {
		return nil, ErrNoAccounts
	}
	chainID, err := m.provider.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet chain: %w", err)
	}
	s := m.newSession(accs[0], chainID, nil)
	m.swap(s)
	m.log.Info("wallet connected",
		zap.Stringer("address", s.Address),
		zap.Uint64("chain", s.ChainID),
		zap.Bool("wrong network", s.WrongNetwork))
	return s, nil
}

// Disconnect clears the session, nothing is sent to the wallet.
func (m *Manager) Disconnect() {
	if m.swap(nil) != nil {
		m.log.Info("wallet disconnected")
	}
}

// Refresh rereads the native balance of the current session account, the
// session is replaced with an updated one.
func (m *Manager) Refresh() (*Session, error) {
	cur := m.Current()
	if cur == nil {
		return nil, nil
	}
	s := m.newSession(cur.Address, cur.ChainID, cur.NativeBalance)
	if !m.replace(cur, s) {
		return m.Current(), nil
	}
	return s, nil
}

// SwitchNetwork asks the wallet to switch to the expected chain. If the
// wallet doesn't know the chain, it's asked to add it.
func (m *Manager) SwitchNetwork(ctx context.Context) error {
	if m.provider == nil {
		return wallet.ErrWalletUnavailable
	}
	err := m.provider.SwitchChain(ctx, m.expected.ChainID)
	if errors.Is(err, wallet.ErrUnrecognizedChain) {
		m.log.Info("chain is unknown to the wallet, adding it", zap.Uint64("chain", m.expected.ChainID))
		err = m.provider.AddChain(ctx, m.expected)
	}
	if err != nil {
		return fmt.Errorf("failed to switch network: %w", err)
	}
	return nil
}

// Run processes wallet events until the context is done or the provider is
// closed. Account changes resynchronize the session (or clear it when no
// accounts remain), network changes update the chain and WrongNetwork flag.
// Events are ignored when there is no session.
func (m *Manager) Run(ctx context.Context) error {
	if m.provider == nil {
		return wallet.ErrWalletUnavailable
	}
	events := m.provider.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				m.Disconnect()
				return wallet.ErrDisconnected
			}
			m.handleEvent(ev)
		}
	}
}

func (m *Manager) handleEvent(ev wallet.Event) {
	cur := m.Current()
	if cur == nil {
		return
	}
	switch ev.Type {
	case wallet.AccountsChanged:
		if len(ev.Accounts) == 0 {
			m.log.Info("no accounts left, clearing session")
			m.replace(cur, nil)
			return
		}
		var balance *big.Int
		if ev.Accounts[0] == cur.Address {
			balance = cur.NativeBalance
		}
		s := m.newSession(ev.Accounts[0], cur.ChainID, balance)
		if m.replace(cur, s) {
			m.log.Info("account changed", zap.Stringer("address", s.Address))
		}
	case wallet.ChainChanged:
		s := m.newSession(cur.Address, ev.ChainID, nil)
		if m.replace(cur, s) {
			m.log.Info("network changed",
				zap.Uint64("chain", s.ChainID),
				zap.Bool("wrong network", s.WrongNetwork))
		}
	case wallet.Disconnected:
		m.log.Info("wallet disconnected, clearing session")
		m.replace(cur, nil)
	}
}

// newSession creates a session reading the native balance, the stale value
// is kept if it can't be read.
func (m *Manager) newSession(addr common.Address, chainID uint64, stale *big.Int) *Session {
	s := &Session{
		Address:       addr,
		NativeBalance: stale,
		ChainID:       chainID,
		WrongNetwork:  chainID != m.expected.ChainID,
		done:          make(chan struct{}),
	}
	if m.chain != nil {
		b, err := m.chain.BalanceAt(addr, nil)
		if err != nil {
			m.log.Warn("failed to read native balance", zap.Stringer("address", addr), zap.Error(err))
		} else {
			s.NativeBalance = b
		}
	}
	return s
}

// swap unconditionally replaces the current session, the old one is
// returned.
func (m *Manager) swap(s *Session) *Session {
	m.lock.Lock()
	old := m.current
	m.current = s
	listeners := m.listeners
	m.lock.Unlock()
	m.finish(old, s, listeners)
	return old
}

// replace swaps the session only if old is still the current one.
func (m *Manager) replace(old, s *Session) bool {
	m.lock.Lock()
	if m.current != old {
		m.lock.Unlock()
		return false
	}
	m.current = s
	listeners := m.listeners
	m.lock.Unlock()
	m.finish(old, s, listeners)
	return true
}

func (m *Manager) finish(old, s *Session, listeners []func(*Session)) {
	if old == nil && s == nil {
		return
	}
	if old != nil {
		close(old.done)
	}
	for _, f := range listeners {
		f(s)
	}
}
