package dashboard

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ecotrack/eco-go/pkg/cache"
	"github.com/ecotrack/eco-go/pkg/core/state"
	"github.com/ecotrack/eco-go/pkg/rpcclient/actor"
	"github.com/ecotrack/eco-go/pkg/rpcclient/invoker"
	"github.com/ecotrack/eco-go/pkg/services/gasless"
	"github.com/ecotrack/eco-go/pkg/session"
	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func eco(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func TestSelect(t *testing.T) {
	sess := &session.Session{Address: common.Address{1}, ChainID: 31337}

	v := Select(State{})
	require.Equal(t, []PanelKind{ConnectPanel}, v.Panels)
	require.False(t, v.WrongNetwork)

	v = Select(State{Session: sess})
	require.Equal(t, []PanelKind{AccountPanel, NoRolePanel}, v.Panels)

	testCases := []struct {
		roles  state.RoleSet
		panels []PanelKind
	}{
		{state.RoleSet{IsAdmin: true}, []PanelKind{AccountPanel, RoleManagementPanel}},
		{state.RoleSet{IsManufacturer: true}, []PanelKind{AccountPanel, SubmissionPanel}},
		{state.RoleSet{IsAuditor: true}, []PanelKind{AccountPanel, VerificationPanel}},
		{state.RoleSet{IsAdmin: true, IsManufacturer: true, IsAuditor: true},
			[]PanelKind{AccountPanel, RoleManagementPanel, SubmissionPanel, VerificationPanel}},
	}
	for _, tc := range testCases {
		v := Select(State{Session: sess, Roles: tc.roles})
		require.Equal(t, tc.panels, v.Panels)
		require.False(t, v.Has(NoRolePanel))
	}

	wrong := &session.Session{Address: common.Address{1}, ChainID: 1, WrongNetwork: true}
	v = Select(State{Session: wrong, Roles: state.RoleSet{IsAuditor: true}})
	require.True(t, v.WrongNetwork)
	// Panels are still available, reads aren't blocked.
	require.True(t, v.Has(VerificationPanel))
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "?", FormatAmount(nil, 18))
	require.Equal(t, "0", FormatAmount(big.NewInt(0), 18))
	require.Equal(t, "1,234,567", FormatAmount(eco(1234567), 18))
	require.Equal(t, "0.5", FormatAmount(big.NewInt(500_000_000_000_000_000), 18))
	require.Equal(t, "-1,000.25", FormatAmount(big.NewInt(-100025), 2))
	require.Equal(t, "42", FormatAmount(big.NewInt(42), 0))
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.Equal(t, "123456789012345678901234567890", FormatAmount(huge, 0))
}

func TestNoticeFor(t *testing.T) {
	testCases := []struct {
		err   error
		level Level
		text  string
	}{
		{nil, Silent, ""},
		{session.ErrNoAccounts, Silent, ""},
		{fmt.Errorf("%w: balance: %w", cache.ErrChainRead, errors.New("timeout")), Silent, ""},
		{fmt.Errorf("%w: zero recipient", gasless.ErrInvalidInput), Warning, "invalid input: zero recipient"},
		{wallet.ErrUserRejected, Warning, TextRejected},
		{&wallet.RPCError{Code: wallet.CodeUserRejected, Message: "User denied"}, Warning, TextRejected},
		{wallet.ErrWalletUnavailable, Warning, TextWalletUnavailable},
		{wallet.ErrDisconnected, Warning, TextWalletUnavailable},
		{wallet.ErrUnrecognizedChain, Warning, TextUnknownChain},
		{&gasless.RelayError{StatusCode: 409, Reason: "invalid nonce"}, Failure, "invalid nonce"},
		{fmt.Errorf("%w: dial tcp", gasless.ErrRelayUnreachable), Failure, TextRelayUnreachable},
		{fmt.Errorf("%w: have 0", actor.ErrInsufficientFunds), Failure, TextNoGas},
		{actor.ErrTxNotAccepted, Warning, TextNotIncluded},
		{fmt.Errorf("%w: caller is not an auditor", invoker.ErrExecutionReverted), Failure,
			"Transaction failed: execution reverted: caller is not an auditor"},
		{errors.New("nil pointer"), Failure, TextUnexpected},
	}
	for _, tc := range testCases {
		n := NoticeFor(tc.err)
		require.Equal(t, tc.level, n.Level, "%v", tc.err)
		require.Equal(t, tc.text, n.Text, "%v", tc.err)
	}
}
