package metatransfer

import (
	"math/big"

	"github.com/ecotrack/eco-go/pkg/metatx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// WaitingActor is an Actor that can also wait for transactions to be
// included (like actor.Actor).
type WaitingActor interface {
	Actor

	Wait(h common.Hash, err error) (*types.Receipt, error)
}

// Executor executes signed transfer requests: it submits them and waits for
// their inclusion.
type Executor struct {
	contract *Contract
	actor    WaitingActor
}

// NewExecutor creates an Executor for the contract at the given address.
func NewExecutor(act WaitingActor, hash common.Address) *Executor {
	return &Executor{contract: New(act, hash), actor: act}
}

// Nonce returns the current nonce of the owner.
func (e *Executor) Nonce(owner common.Address) (*big.Int, error) {
	return e.contract.Nonces(owner)
}

// Execute submits the request and waits for the transaction to be included.
// The transaction hash is returned along with the error for transactions
// that were sent, but failed.
func (e *Executor) Execute(req metatx.TransferRequest, sig []byte) (common.Hash, error) {
	h, err := e.contract.TransferWithSig(req, sig)
	if err != nil {
		return common.Hash{}, err
	}
	_, err = e.actor.Wait(h, nil)
	return h, err
}
