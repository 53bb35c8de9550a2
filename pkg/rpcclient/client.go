/*
Package rpcclient implements an Ethereum JSON-RPC client used by higher-level
contract wrappers ([invoker], [actor] and contract-specific packages like
[ecotoken] and [metatransfer]).

Client methods don't accept contexts, every request is made with the context
Client was created with and limited by Options.RequestTimeout.
*/
package rpcclient

import (
	"context"
	"errors"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	defaultDialTimeout    = 4 * time.Second
	defaultRequestTimeout = 4 * time.Second
)

// Client represents the middleman for executing JSON RPC calls to an
// Ethereum node. Client is thread-safe and can be used from multiple
// goroutines.
type Client struct {
	rpc  *rpc.Client
	eth  *ethclient.Client
	ctx  context.Context
	opts Options
}

// Options defines options for the RPC client. All values are optional. If any
// duration is not specified, a default of 4 seconds will be used.
type Options struct {
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	// Limit total number of connections per host. No limit by default.
	MaxConnsPerHost int
}

// New returns a new Client ready to use. HTTP(S) and WS(S) endpoints are
// supported.
func New(ctx context.Context, endpoint string, opts Options) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("empty endpoint")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: opts.DialTimeout,
			}).DialContext,
			MaxConnsPerHost: opts.MaxConnsPerHost,
		},
		Timeout: opts.RequestTimeout,
	}
	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	rc, err := rpc.DialOptions(dialCtx, endpoint, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	return &Client{
		rpc:  rc,
		eth:  ethclient.NewClient(rc),
		ctx:  ctx,
		opts: opts,
	}, nil
}

// Context returns the client context, it's used by waiters to stop waiting
// when the client is done.
func (c *Client) Context() context.Context {
	return c.ctx
}

// Close closes underlying connections.
func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) reqCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.ctx, c.opts.RequestTimeout)
}

// ChainID returns the chain ID of the node.
func (c *Client) ChainID() (uint64, error) {
	ctx, cancel := c.reqCtx()
	defer cancel()
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	if !id.IsUint64() {
		return 0, errors.New("chain ID overflow")
	}
	return id.Uint64(), nil
}

// BlockNumber returns the number of the most recent block.
func (c *Client) BlockNumber() (uint64, error) {
	ctx, cancel := c.reqCtx()
	defer cancel()
	return c.eth.BlockNumber(ctx)
}

// BalanceAt returns the native currency balance of the account at the given
// height (latest if nil).
func (c *Client) BalanceAt(account common.Address, height *big.Int) (*big.Int, error) {
	ctx, cancel := c.reqCtx()
	defer cancel()
	return c.eth.BalanceAt(ctx, account, height)
}

// CallContract executes a read-only call at the given height (latest if
// nil).
func (c *Client) CallContract(msg ethereum.CallMsg, height *big.Int) ([]byte, error) {
	ctx, cancel := c.reqCtx()
	defer cancel()
	return c.eth.CallContract(ctx, msg, height)
}

// FilterLogs returns logs matching the query.
func (c *Client) FilterLogs(q ethereum.FilterQuery) ([]types.Log, error) {
	ctx, cancel := c.reqCtx()
	defer cancel()
	return c.eth.FilterLogs(ctx, q)
}

// PendingNonceAt returns the next nonce to use for the account.
func (c *Client) PendingNonceAt(account common.Address) (uint64, error) {
	ctx, cancel := c.reqCtx()
	defer cancel()
	return c.eth.PendingNonceAt(ctx, account)
}

// SuggestGasPrice returns the gas price suggested by the node.
func (c *Client) SuggestGasPrice() (*big.Int, error) {
	ctx, cancel := c.reqCtx()
	defer cancel()
	return c.eth.SuggestGasPrice(ctx)
}

// EstimateGas estimates gas needed to execute the message.
func (c *Client) EstimateGas(msg ethereum.CallMsg) (uint64, error) {
	ctx, cancel := c.reqCtx()
	defer cancel()
	return c.eth.EstimateGas(ctx, msg)
}

// SendTransaction sends the signed transaction to the node.
func (c *Client) SendTransaction(tx *types.Transaction) error {
	ctx, cancel := c.reqCtx()
	defer cancel()
	return c.eth.SendTransaction(ctx, tx)
}

// TransactionReceipt returns the receipt of a mined transaction,
// ethereum.NotFound is returned for pending or unknown transactions.
func (c *Client) TransactionReceipt(h common.Hash) (*types.Receipt, error) {
	ctx, cancel := c.reqCtx()
	defer cancel()
	return c.eth.TransactionReceipt(ctx, h)
}
