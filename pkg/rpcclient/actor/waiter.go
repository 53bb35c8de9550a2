package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	// PollingWaiterRetryCount is a threshold for a number of subsequent
	// failed attempts to get block number from the RPC server for
	// PollingWaiter. If it fails to retrieve block number
	// PollingWaiterRetryCount times in a row then transaction awaiting
	// attempt considered to be failed and an error is returned.
	PollingWaiterRetryCount = 3
	// DefaultPollInterval is the default PollingWaiter poll interval.
	DefaultPollInterval = time.Second
	// DefaultWaitBlocks is the default number of blocks PollingWaiter waits
	// for the transaction to be included.
	DefaultWaitBlocks = 50
)

var (
	// ErrTxNotAccepted is returned when transaction wasn't included into a
	// block within the configured number of blocks.
	ErrTxNotAccepted = errors.New("transaction was not accepted to chain")
	// ErrContextDone is returned when Waiter context has been done in the
	// middle of transaction awaiting process and no result was received yet.
	ErrContextDone = errors.New("waiter context done")
	// ErrAwaitingNotSupported is returned from Wait method if Waiter
	// instance doesn't support transaction awaiting.
	ErrAwaitingNotSupported = errors.New("awaiting not supported")
	// ErrExecutionReverted is returned along with the receipt of an
	// included transaction that has failed.
	ErrExecutionReverted = errors.New("execution reverted")
)

type (
	// Waiter is an interface providing transaction awaiting functionality
	// to Actor.
	Waiter interface {
		// Wait allows to wait until transaction is included into a block.
		// It can be used as a wrapper for Send or SignAndSend and accepts
		// transaction hash and an error. It returns the receipt or an
		// error if transaction wasn't included. Receipts of failed
		// transactions are returned along with ErrExecutionReverted.
		Wait(h common.Hash, err error) (*types.Receipt, error)
		// WaitAny waits until at least one of the specified transactions
		// is included. It uses the underlying RPCPollingWaiter context to
		// interrupt awaiting process, but additional ctx can be passed as
		// an argument for the same purpose.
		WaitAny(ctx context.Context, hashes ...common.Hash) (*types.Receipt, error)
	}
	// RPCPollingWaiter is an interface that enables transaction awaiting
	// functionality for Actor instance based on periodical BlockNumber and
	// TransactionReceipt polls.
	RPCPollingWaiter interface {
		// Context should return the RPC client context to be able to
		// gracefully shut down all running processes (if so).
		Context() context.Context
		BlockNumber() (uint64, error)
		TransactionReceipt(h common.Hash) (*types.Receipt, error)
	}
)

// NullWaiter is a Waiter stub that doesn't support transaction awaiting
// functionality.
type NullWaiter struct{}

// PollingWaiter is a polling-based Waiter.
type PollingWaiter struct {
	polling   RPCPollingWaiter
	pollTime  time.Duration
	maxBlocks uint64
}

func newWaiter(ra RPCActor, opts Options) Waiter {
	if pollW, ok := ra.(RPCPollingWaiter); ok {
		return NewPollingWaiter(pollW, opts.PollInterval, opts.WaitBlocks)
	}
	return NewNullWaiter()
}

// NewNullWaiter creates an instance of Waiter stub.
func NewNullWaiter() NullWaiter {
	return NullWaiter{}
}

// Wait implements Waiter interface.
func (NullWaiter) Wait(h common.Hash, err error) (*types.Receipt, error) {
	return nil, ErrAwaitingNotSupported
}

// WaitAny implements Waiter interface.
func (NullWaiter) WaitAny(ctx context.Context, hashes ...common.Hash) (*types.Receipt, error) {
	return nil, ErrAwaitingNotSupported
}

// NewPollingWaiter creates an instance of Waiter supporting poll-based
// transaction awaiting. It polls every pollTime and gives up after maxBlocks
// blocks are added to the chain without the transaction.
func NewPollingWaiter(waiter RPCPollingWaiter, pollTime time.Duration, maxBlocks uint64) *PollingWaiter {
	if pollTime <= 0 {
		pollTime = DefaultPollInterval
	}
	if maxBlocks == 0 {
		maxBlocks = DefaultWaitBlocks
	}
	return &PollingWaiter{
		polling:   waiter,
		pollTime:  pollTime,
		maxBlocks: maxBlocks,
	}
}

// Wait implements Waiter interface.
func (w *PollingWaiter) Wait(h common.Hash, err error) (*types.Receipt, error) {
	if err != nil {
		return nil, err
	}
	return w.WaitAny(context.TODO(), h)
}

// WaitAny implements Waiter interface.
func (w *PollingWaiter) WaitAny(ctx context.Context, hashes ...common.Hash) (*types.Receipt, error) {
	var (
		startHeight   uint64
		started       bool
		failedAttempt int
	)
	timer := time.NewTicker(w.pollTime)
	defer timer.Stop()
	for {
		for _, h := range hashes {
			rcpt, err := w.polling.TransactionReceipt(h)
			if err == nil && rcpt != nil {
				if rcpt.Status != types.ReceiptStatusSuccessful {
					return rcpt, fmt.Errorf("%w: transaction %s", ErrExecutionReverted, h)
				}
				return rcpt, nil
			}
			if err != nil && !errors.Is(err, ethereum.NotFound) {
				// Transient, the next poll can succeed.
				continue
			}
		}
		height, err := w.polling.BlockNumber()
		if err != nil {
			failedAttempt++
			if failedAttempt > PollingWaiterRetryCount {
				return nil, fmt.Errorf("failed to retrieve block number: %w", err)
			}
		} else {
			failedAttempt = 0
			if !started {
				startHeight, started = height, true
			}
			if height >= startHeight+w.maxBlocks {
				return nil, ErrTxNotAccepted
			}
		}
		select {
		case <-timer.C:
		case <-w.polling.Context().Done():
			return nil, fmt.Errorf("%w: %v", ErrContextDone, w.polling.Context().Err())
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrContextDone, ctx.Err())
		}
	}
}
