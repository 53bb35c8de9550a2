package fakechain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// NewServer returns a JSON-RPC server exposing the chain via the part of
// "eth" namespace rpcclient.Client uses. It's an http.Handler.
func NewServer(c *Chain) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("eth", &ethAPI{chain: c}); err != nil {
		return nil, err
	}
	return srv, nil
}

type ethAPI struct {
	chain *Chain
}

type callArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Data  *hexutil.Bytes  `json:"data"`
	Input *hexutil.Bytes  `json:"input"`
}

func (a callArgs) msg() ethereum.CallMsg {
	var m ethereum.CallMsg
	if a.From != nil {
		m.From = *a.From
	}
	m.To = a.To
	switch {
	case a.Input != nil:
		m.Data = *a.Input
	case a.Data != nil:
		m.Data = *a.Data
	}
	return m
}

type filterArgs struct {
	Address   []common.Address `json:"address"`
	Topics    [][]common.Hash  `json:"topics"`
	FromBlock *rpc.BlockNumber `json:"fromBlock"`
	ToBlock   *rpc.BlockNumber `json:"toBlock"`
}

// height converts the block parameter, nil means the latest block.
func height(bn *rpc.BlockNumber) *big.Int {
	if bn == nil || *bn < 0 {
		return nil
	}
	return big.NewInt(bn.Int64())
}

func blockHeight(b *rpc.BlockNumberOrHash) (*big.Int, error) {
	if b == nil {
		return nil, nil
	}
	if _, ok := b.Hash(); ok {
		return nil, errors.New("block hashes are not supported")
	}
	bn, _ := b.Number()
	return height(&bn), nil
}

func (e *ethAPI) ChainId() (*hexutil.Big, error) {
	id, err := e.chain.ChainID()
	return (*hexutil.Big)(new(big.Int).SetUint64(id)), err
}

func (e *ethAPI) BlockNumber() (hexutil.Uint64, error) {
	h, err := e.chain.BlockNumber()
	return hexutil.Uint64(h), err
}

func (e *ethAPI) GetBalance(_ context.Context, acc common.Address, block rpc.BlockNumberOrHash) (*hexutil.Big, error) {
	h, err := blockHeight(&block)
	if err != nil {
		return nil, err
	}
	b, err := e.chain.BalanceAt(acc, h)
	return (*hexutil.Big)(b), err
}

func (e *ethAPI) GetTransactionCount(_ context.Context, acc common.Address, _ rpc.BlockNumberOrHash) (hexutil.Uint64, error) {
	n, err := e.chain.PendingNonceAt(acc)
	return hexutil.Uint64(n), err
}

func (e *ethAPI) GasPrice() (*hexutil.Big, error) {
	p, err := e.chain.SuggestGasPrice()
	return (*hexutil.Big)(p), err
}

func (e *ethAPI) Call(_ context.Context, args callArgs, block rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	h, err := blockHeight(&block)
	if err != nil {
		return nil, err
	}
	return e.chain.CallContract(args.msg(), h)
}

func (e *ethAPI) EstimateGas(_ context.Context, args callArgs, _ *rpc.BlockNumberOrHash) (hexutil.Uint64, error) {
	g, err := e.chain.EstimateGas(args.msg())
	return hexutil.Uint64(g), err
}

func (e *ethAPI) GetLogs(_ context.Context, f filterArgs) ([]types.Log, error) {
	logs, err := e.chain.FilterLogs(ethereum.FilterQuery{
		Addresses: f.Address,
		Topics:    f.Topics,
		FromBlock: height(f.FromBlock),
		ToBlock:   height(f.ToBlock),
	})
	if logs == nil {
		logs = []types.Log{}
	}
	return logs, err
}

func (e *ethAPI) SendRawTransaction(_ context.Context, raw hexutil.Bytes) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), e.chain.SendTransaction(tx)
}

func (e *ethAPI) GetTransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	r, err := e.chain.TransactionReceipt(h)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cp := *r
	if cp.Logs == nil {
		cp.Logs = []*types.Log{}
	}
	return &cp, nil
}
