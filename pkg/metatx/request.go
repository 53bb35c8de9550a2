/*
Package metatx implements gasless token transfers authorised by EIP-712
typed-data signatures: the request structure, its signing domain, hashing,
signature recovery and the relay wire format.
*/
package metatx

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DefaultValidity is the validity window of a transfer request, the deadline
// is set to the time of request creation plus DefaultValidity.
const DefaultValidity = 15 * time.Minute

var (
	// ErrAmountOverflow is returned for amounts that don't fit into uint256.
	ErrAmountOverflow = errors.New("value doesn't fit into uint256")
	// ErrNegative is returned for negative amounts or nonces.
	ErrNegative = errors.New("negative value")
)

// TransferRequest is a request to transfer Amount of tokens from From to To
// signed by From and executed on its behalf by a relayer. Nonce must match
// the current meta-transfer nonce of From at execution time, Deadline is a
// unix timestamp after which the request can't be executed.
type TransferRequest struct {
	From     common.Address `json:"from"`
	To       common.Address `json:"to"`
	Amount   *big.Int       `json:"amount"`
	Nonce    *big.Int       `json:"nonce"`
	Deadline uint64         `json:"deadline"`
}

// NewTransferRequest creates a request with the deadline set to now+validity.
func NewTransferRequest(from, to common.Address, amount, nonce *big.Int, now time.Time, validity time.Duration) TransferRequest {
	return TransferRequest{
		From:     from,
		To:       to,
		Amount:   new(big.Int).Set(amount),
		Nonce:    new(big.Int).Set(nonce),
		Deadline: uint64(now.Add(validity).Unix()),
	}
}

// Expired checks whether the deadline has passed at the given time. The
// deadline itself is still valid.
func (r TransferRequest) Expired(now time.Time) bool {
	ts := now.Unix()
	return ts >= 0 && r.Deadline < uint64(ts)
}

// Validate checks that numeric fields are present and fit into uint256.
func (r TransferRequest) Validate() error {
	for _, v := range []*big.Int{r.Amount, r.Nonce} {
		if err := CheckUint256(v); err != nil {
			return err
		}
	}
	return nil
}

// CheckUint256 checks that v is a non-nil non-negative number fitting into
// uint256.
func CheckUint256(v *big.Int) error {
	if v == nil {
		return errors.New("missing value")
	}
	if v.Sign() < 0 {
		return ErrNegative
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return ErrAmountOverflow
	}
	return nil
}
