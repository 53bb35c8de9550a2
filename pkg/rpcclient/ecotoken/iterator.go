package ecotoken

import (
	"errors"

	"github.com/ecotrack/eco-go/pkg/core/state"
	"github.com/ecotrack/eco-go/pkg/rpcclient/invoker"
	"github.com/ethereum/go-ethereum/common"
)

// ActionIterator enumerates actions of a manufacturer. The contract doesn't
// expose the number of actions, so records are probed by index starting from
// zero until the first reverted lookup, which marks the end of the sequence
// (it's not an error). The iterator is lazy: nothing is requested until Next
// is called. It can be restarted with Reset.
type ActionIterator struct {
	reader       *Reader
	manufacturer common.Address
	next         uint64
	done         bool
}

// ErrInvalidBatchSize is returned by Next for non-positive batch sizes.
var ErrInvalidBatchSize = errors.New("batch size must be positive")

// Next returns the next set of actions (up to num of them) in index order.
// It can return less than num elements in case there are not that many and
// zero elements when the sequence is exhausted. A non-revert error stops the
// batch, already fetched actions are returned along with the error and the
// failed index is retried by the next call.
func (it *ActionIterator) Next(num int) ([]state.EcoAction, error) {
	if num <= 0 {
		return nil, ErrInvalidBatchSize
	}
	var res []state.EcoAction
	for ; !it.done && len(res) < num; it.next++ {
		a, err := it.reader.ManufacturerAction(it.manufacturer, it.next)
		if err != nil {
			if errors.Is(err, invoker.ErrExecutionReverted) {
				it.done = true
				break
			}
			return res, err
		}
		res = append(res, *a)
	}
	return res, nil
}

// All returns all remaining actions.
func (it *ActionIterator) All() ([]state.EcoAction, error) {
	var res []state.EcoAction
	for {
		batch, err := it.Next(actionBatch)
		res = append(res, batch...)
		if err != nil {
			return res, err
		}
		if len(batch) == 0 {
			return res, nil
		}
	}
}

// Done returns true after the end of the sequence is reached.
func (it *ActionIterator) Done() bool {
	return it.done
}

// Reset restarts enumeration from the first action.
func (it *ActionIterator) Reset() {
	it.next = 0
	it.done = false
}

const actionBatch = 16
