package options

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/ecotrack/eco-go/cli/input"
	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
)

// TerminalConfirm returns a wallet.ConfirmFunc describing requests to the
// user and asking for approval on the terminal.
func TerminalConfirm(w io.Writer) wallet.ConfirmFunc {
	return func(_ context.Context, req wallet.ConfirmRequest) bool {
		DescribeRequest(w, req)
		ok, err := input.Confirm(w, "Approve?")
		return err == nil && ok
	}
}

// DescribeRequest prints the wallet request in a human-readable form.
func DescribeRequest(w io.Writer, req wallet.ConfirmRequest) {
	switch req.Kind {
	case wallet.ConnectRequest:
		accs := req.Accounts
		if len(accs) == 0 {
			accs = []common.Address{req.Account}
		}
		for _, acc := range accs {
			fmt.Fprintf(w, "Connect account %s\n", acc)
		}
	case wallet.SwitchChainRequest:
		fmt.Fprintf(w, "Switch to chain %d\n", req.ChainID)
	case wallet.AddChainRequest:
		if req.Chain != nil {
			fmt.Fprintf(w, "Add chain %q (%d)\n", req.Chain.ChainName, req.Chain.ChainID)
		} else {
			fmt.Fprintf(w, "Add chain %d\n", req.ChainID)
		}
	case wallet.SignRequest:
		fmt.Fprintf(w, "Sign with %s\n", req.Account)
		if td := req.TypedData; td != nil {
			fmt.Fprintf(w, "Domain: %s v%s\n", td.Domain.Name, td.Domain.Version)
			fmt.Fprintf(w, "Type: %s\n", td.PrimaryType)
			keys := make([]string, 0, len(td.Message))
			for k := range td.Message {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "  %s: %v\n", k, td.Message[k])
			}
		}
	}
}
