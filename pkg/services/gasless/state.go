package gasless

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ecotrack/eco-go/pkg/metatx"
	"github.com/ethereum/go-ethereum/common"
)

// State is the state of a transfer attempt.
type State byte

// Attempt states, Confirmed and Failed are final.
const (
	Idle State = iota
	Built
	Signed
	Relayed
	Confirmed
	Failed
)

// String implements the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Built:
		return "built"
	case Signed:
		return "signed"
	case Relayed:
		return "relayed"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", byte(s))
}

// Reason is the reason an attempt has failed.
type Reason byte

// Failure reasons.
const (
	NoReason Reason = iota
	InvalidInput
	ChainReadFailed
	WalletUnavailable
	UserRejected
	SigningFailed
	RelayUnreachable
	RelayRejected
)

// String implements the fmt.Stringer interface.
func (r Reason) String() string {
	switch r {
	case NoReason:
		return ""
	case InvalidInput:
		return "invalid input"
	case ChainReadFailed:
		return "chain read failed"
	case WalletUnavailable:
		return "wallet unavailable"
	case UserRejected:
		return "user rejected"
	case SigningFailed:
		return "signing failed"
	case RelayUnreachable:
		return "relay unreachable"
	case RelayRejected:
		return "relay rejected"
	}
	return fmt.Sprintf("Reason(%d)", byte(r))
}

var (
	// ErrInvalidInput is returned for bad recipients or amounts, it's
	// detected before any network call.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRelayUnreachable is returned when the relay can't be reached or
	// doesn't return a proper response.
	ErrRelayUnreachable = errors.New("relay unreachable")
	// ErrWrongState is returned when a step is applied to an attempt in a
	// wrong state.
	ErrWrongState = errors.New("wrong attempt state")
)

// RelayError is a rejection returned by the relay, Reason is the relay's
// message which is shown to users as is.
type RelayError struct {
	StatusCode int
	Reason     string
}

// Error implements the error interface.
func (e *RelayError) Error() string {
	return e.Reason
}

// Attempt is a single gasless transfer attempt. Attempts are never retried,
// a new one has to be built with a fresh nonce.
type Attempt struct {
	State  State
	Reason Reason
	// Err is the error that moved the attempt to Failed state.
	Err error

	Request   metatx.TransferRequest
	Signature []byte
	// Degraded is set when the nonce couldn't be read from the chain and
	// the current time was used instead. Such requests are likely to be
	// rejected by the relay.
	Degraded bool
	// TxHash is the hash of the transaction returned by the relay.
	// Confirmed state only means the relay has accepted the request, the
	// transaction may still be pending or fail on chain.
	TxHash common.Hash
}

func (a *Attempt) fail(r Reason, err error) error {
	a.State = Failed
	a.Reason = r
	a.Err = err
	return err
}

func (a *Attempt) expect(s State) error {
	if a.State != s {
		return fmt.Errorf("%w: %s, expected %s", ErrWrongState, a.State, s)
	}
	return nil
}

// Amount returns a copy of the transfer amount.
func (a *Attempt) Amount() *big.Int {
	if a.Request.Amount == nil {
		return nil
	}
	return new(big.Int).Set(a.Request.Amount)
}
