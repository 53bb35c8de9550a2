/*
Package cache keeps read-through views of EcoToken state for the current
account: its role set and recorded actions, plus the aggregated user list
and role change history shown to administrators.

Chain read failures never clear cached data: the stale value is kept and an
error wrapping ErrChainRead is returned. The cache doesn't serialize
concurrent refreshes of the same account, callers are expected to do that;
overlapping refreshes are memory-safe, but it's not defined which one wins.
*/
package cache

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"

	"github.com/ecotrack/eco-go/pkg/core/roles"
	"github.com/ecotrack/eco-go/pkg/core/state"
	"github.com/ecotrack/eco-go/pkg/rpcclient/ecotoken"
	"github.com/ecotrack/eco-go/pkg/rpcclient/invoker"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

// ErrChainRead is returned (wrapped) when data can't be read from the chain.
var ErrChainRead = errors.New("chain read failed")

// DefaultUsersSize is the default size of aggregated user info memo.
const DefaultUsersSize = 1024

// RPC is a set of RPC methods needed by Cache.
type RPC interface {
	invoker.RPCInvoke

	BlockNumber() (uint64, error)
}

// Config is the Cache configuration.
type Config struct {
	// Token is the EcoToken contract address.
	Token common.Address
	// FromBlock is the block role events are searched from.
	FromBlock uint64
	// UsersSize is the number of UserInfo entries kept.
	UsersSize int
}

// Cache is a read-through cache of EcoToken data.
type Cache struct {
	rpc RPC
	cfg Config
	log *zap.Logger

	hashesLock sync.Mutex
	hashes     roles.Hashes

	lock    sync.RWMutex
	roles   map[common.Address]state.RoleSet
	actions map[common.Address][]state.EcoAction
	events  []state.RoleChangeEvent
	users   *lru.Cache
}

// New creates a Cache.
func New(rpc RPC, cfg Config, log *zap.Logger) (*Cache, error) {
	if cfg.UsersSize <= 0 {
		cfg.UsersSize = DefaultUsersSize
	}
	users, err := lru.New(cfg.UsersSize)
	if err != nil {
		return nil, err
	}
	return &Cache{
		rpc:     rpc,
		cfg:     cfg,
		log:     log,
		roles:   make(map[common.Address]state.RoleSet),
		actions: make(map[common.Address][]state.EcoAction),
		users:   users,
	}, nil
}

func (c *Cache) reader(inv *invoker.Invoker) *ecotoken.Reader {
	return ecotoken.NewReader(inv, c.cfg.Token)
}

func chainReadError(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrChainRead, what, err)
}

// RoleHashes returns role identifiers used by the contract. They're
// requested once, unknown role identifiers map to roles.Unknown.
func (c *Cache) RoleHashes() (roles.Hashes, error) {
	c.hashesLock.Lock()
	defer c.hashesLock.Unlock()
	if c.hashes != nil {
		return c.hashes, nil
	}
	h, err := c.reader(invoker.New(c.rpc, nil)).RoleHashes()
	if err != nil {
		return nil, chainReadError("role identifiers", err)
	}
	c.hashes = h
	return h, nil
}

// RefreshRoles rereads roles of the account. All role queries are made at
// the same block height (concurrently) and the cached set is replaced only
// if all of them succeed. Stale (or empty) set is returned with an error
// otherwise.
func (c *Cache) RefreshRoles(acc common.Address) (state.RoleSet, error) {
	stale, _ := c.Roles(acc)
	set, err := c.readRoles(acc)
	if err != nil {
		c.log.Warn("failed to refresh roles", zap.Stringer("account", acc), zap.Error(err))
		return stale, err
	}
	c.lock.Lock()
	c.roles[acc] = set
	c.lock.Unlock()
	return set, nil
}

func (c *Cache) readRoles(acc common.Address) (state.RoleSet, error) {
	hashes, err := c.RoleHashes()
	if err != nil {
		return state.RoleSet{}, err
	}
	height, err := c.rpc.BlockNumber()
	if err != nil {
		return state.RoleSet{}, chainReadError("block number", err)
	}
	r := c.reader(invoker.NewHistoricAtHeight(height, c.rpc, nil))

	ids := make([]common.Hash, len(roles.All))
	for i, role := range roles.All {
		id, ok := hashes.Hash(role)
		if !ok {
			return state.RoleSet{}, fmt.Errorf("no identifier for %s role", role)
		}
		ids[i] = id
	}
	var (
		wg   sync.WaitGroup
		has  = make([]bool, len(roles.All))
		errs = make([]error, len(roles.All))
	)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id common.Hash) {
			defer wg.Done()
			has[i], errs[i] = r.HasRole(id, acc)
		}(i, id)
	}
	wg.Wait()

	set := state.RoleSet{Height: height}
	for i, role := range roles.All {
		if errs[i] != nil {
			return state.RoleSet{}, chainReadError(role.String()+" role", errs[i])
		}
		set = set.Set(role, has[i])
	}
	return set, nil
}

// Roles returns the cached role set of the account.
func (c *Cache) Roles(acc common.Address) (state.RoleSet, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	s, ok := c.roles[acc]
	return s, ok
}

// LoadActions rereads all actions of the manufacturer in index order. The
// end of the action list is not an error. On failure stale actions are
// kept and returned along with the error.
func (c *Cache) LoadActions(manufacturer common.Address) ([]state.EcoAction, error) {
	acts, err := c.reader(invoker.New(c.rpc, nil)).Actions(manufacturer).All()
	if err != nil {
		err = chainReadError("actions", err)
		c.log.Warn("failed to load actions", zap.Stringer("manufacturer", manufacturer), zap.Error(err))
		stale, _ := c.Actions(manufacturer)
		return stale, err
	}
	c.lock.Lock()
	c.actions[manufacturer] = acts
	c.lock.Unlock()
	return copyActions(acts), nil
}

// Actions returns cached actions of the manufacturer.
func (c *Cache) Actions(manufacturer common.Address) ([]state.EcoAction, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	acts, ok := c.actions[manufacturer]
	return copyActions(acts), ok
}

func copyActions(acts []state.EcoAction) []state.EcoAction {
	if acts == nil {
		return nil
	}
	res := make([]state.EcoAction, len(acts))
	for i := range acts {
		res[i] = acts[i].Copy()
	}
	return res
}

// LoadRoleEvents rereads role change history.
func (c *Cache) LoadRoleEvents() ([]state.RoleChangeEvent, error) {
	hashes, err := c.RoleHashes()
	if err != nil {
		return nil, err
	}
	evs, err := c.reader(invoker.New(c.rpc, nil)).RoleEvents(c.cfg.FromBlock, hashes)
	if err != nil {
		err = chainReadError("role events", err)
		c.log.Warn("failed to load role events", zap.Error(err))
		c.lock.RLock()
		stale := slices.Clone(c.events)
		c.lock.RUnlock()
		return stale, err
	}
	c.lock.Lock()
	c.events = evs
	c.lock.Unlock()
	return slices.Clone(evs), nil
}

// RecentRoleEvents returns at most limit newest cached role change events,
// newest first.
func (c *Cache) RecentRoleEvents(limit int) []state.RoleChangeEvent {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return state.RecentRoleEvents(c.events, limit)
}

// LoadAllUsers builds the list of accounts that were ever granted a role
// (plus current, if it's not zero) and rereads roles, token balance and the
// number of actions for every one of them. Failures for particular accounts
// are logged and these accounts are skipped, the result is ordered by
// address.
func (c *Cache) LoadAllUsers(current common.Address) ([]state.UserInfo, error) {
	evs, err := c.LoadRoleEvents()
	if err != nil {
		return nil, err
	}
	seen := make(map[common.Address]bool)
	var candidates []common.Address
	add := func(a common.Address) {
		if !seen[a] {
			seen[a] = true
			candidates = append(candidates, a)
		}
	}
	for _, ev := range evs {
		if ev.Granted {
			add(ev.User)
		}
	}
	if current != (common.Address{}) {
		add(current)
	}
	slices.SortFunc(candidates, func(a, b common.Address) int {
		return bytes.Compare(a[:], b[:])
	})

	res := make([]state.UserInfo, 0, len(candidates))
	for _, acc := range candidates {
		info, err := c.loadUser(acc)
		if err != nil {
			c.log.Warn("skipping user", zap.Stringer("account", acc), zap.Error(err))
			continue
		}
		c.users.Add(acc, info)
		res = append(res, info)
	}
	return res, nil
}

func (c *Cache) loadUser(acc common.Address) (state.UserInfo, error) {
	set, err := c.RefreshRoles(acc)
	if err != nil {
		return state.UserInfo{}, err
	}
	r := c.reader(invoker.New(c.rpc, nil))
	balance, err := r.BalanceOf(acc)
	if err != nil {
		return state.UserInfo{}, chainReadError("balance", err)
	}
	acts, err := c.LoadActions(acc)
	if err != nil {
		return state.UserInfo{}, err
	}
	return state.UserInfo{
		Address:     acc,
		Roles:       set,
		Balance:     balance,
		ActionCount: len(acts),
	}, nil
}

// User returns the last successfully loaded info of the account.
func (c *Cache) User(acc common.Address) (state.UserInfo, bool) {
	v, ok := c.users.Get(acc)
	if !ok {
		return state.UserInfo{}, false
	}
	info := v.(state.UserInfo)
	if info.Balance != nil {
		info.Balance = new(big.Int).Set(info.Balance)
	}
	return info, true
}

// Forget drops cached data of the account (used when a session ends).
func (c *Cache) Forget(acc common.Address) {
	c.lock.Lock()
	delete(c.roles, acc)
	delete(c.actions, acc)
	c.lock.Unlock()
	c.users.Remove(acc)
}
