package dashboard

import (
	"errors"

	"github.com/ecotrack/eco-go/pkg/cache"
	"github.com/ecotrack/eco-go/pkg/rpcclient/actor"
	"github.com/ecotrack/eco-go/pkg/rpcclient/invoker"
	"github.com/ecotrack/eco-go/pkg/services/gasless"
	"github.com/ecotrack/eco-go/pkg/session"
	"github.com/ecotrack/eco-go/pkg/wallet"
)

// Level is a notice level.
type Level byte

// Notice levels. Silent notices are not shown, the condition is either
// expected or only logged.
const (
	Silent Level = iota
	Success
	Warning
	Failure
)

// Notice is a transient message shown to the user.
type Notice struct {
	Level Level
	Text  string
}

// Notices shown for errors.
const (
	TextRejected          = "Request rejected in the wallet"
	TextWalletUnavailable = "Wallet is not available, connect it and retry"
	TextUnknownChain      = "The wallet doesn't know this network, add it and retry"
	TextRelayUnreachable  = "Relay service is unreachable, try again later"
	TextNoGas             = "Not enough funds to pay for gas"
	TextNotIncluded       = "Transaction is not included yet, check it later"
	TextUnexpected        = "Something went wrong, see the log for details"
)

// Succeeded returns a success notice.
func Succeeded(text string) Notice {
	return Notice{Level: Success, Text: text}
}

// NoticeFor returns a notice for the error. Expected conditions (no
// accounts) and chain read failures (stale data is shown instead) are
// silent, relay rejections are shown verbatim, invalid input is shown as is
// and unexpected errors get a generic text.
func NoticeFor(err error) Notice {
	if err == nil || errors.Is(err, session.ErrNoAccounts) || errors.Is(err, cache.ErrChainRead) {
		return Notice{Level: Silent}
	}
	if rerr, ok := gasless.IsRelayError(err); ok {
		return Notice{Level: Failure, Text: rerr.Reason}
	}
	switch {
	case errors.Is(err, gasless.ErrInvalidInput):
		return Notice{Level: Warning, Text: err.Error()}
	case errors.Is(err, wallet.ErrUserRejected):
		return Notice{Level: Warning, Text: TextRejected}
	case errors.Is(err, wallet.ErrUnrecognizedChain):
		return Notice{Level: Warning, Text: TextUnknownChain}
	case errors.Is(err, wallet.ErrWalletUnavailable),
		errors.Is(err, wallet.ErrDisconnected),
		errors.Is(err, wallet.ErrUnauthorized),
		errors.Is(err, wallet.ErrUnknownAccount):
		return Notice{Level: Warning, Text: TextWalletUnavailable}
	case errors.Is(err, gasless.ErrRelayUnreachable):
		return Notice{Level: Failure, Text: TextRelayUnreachable}
	case errors.Is(err, actor.ErrInsufficientFunds):
		return Notice{Level: Failure, Text: TextNoGas}
	case errors.Is(err, actor.ErrTxNotAccepted):
		return Notice{Level: Warning, Text: TextNotIncluded}
	case errors.Is(err, actor.ErrPredictedRevert),
		errors.Is(err, actor.ErrExecutionReverted),
		errors.Is(err, invoker.ErrExecutionReverted):
		return Notice{Level: Failure, Text: "Transaction failed: " + err.Error()}
	default:
		return Notice{Level: Failure, Text: TextUnexpected}
	}
}
