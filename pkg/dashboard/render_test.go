package dashboard

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ecotrack/eco-go/pkg/core/roles"
	"github.com/ecotrack/eco-go/pkg/core/state"
	"github.com/ecotrack/eco-go/pkg/session"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func testState() State {
	return State{
		Session: &session.Session{
			Address:       common.HexToAddress("0x00000000000000000000000000000000000000b2"),
			NativeBalance: eco(2),
			ChainID:       31337,
		},
		Network:  "Hardhat",
		Symbol:   "ECO",
		Decimals: 18,
		Roles:    state.RoleSet{IsAdmin: true, IsManufacturer: true, IsAuditor: true},
		Balance:  eco(1500),
		Actions: []state.EcoAction{
			{ID: 0, Description: "Solar panels", ReductionAmount: eco(100), EvidenceHash: "Qm1", Verified: true},
			{ID: 1, Description: "Wind turbine", ReductionAmount: eco(50), EvidenceHash: "Qm2"},
		},
		Pending: []PendingAction{{
			Manufacturer: common.Address{0xc3},
			Action:       state.EcoAction{ID: 7, Description: "Heat pumps", ReductionAmount: eco(3)},
		}},
		Users: []state.UserInfo{{
			Address:     common.Address{0xc3},
			Roles:       state.RoleSet{IsManufacturer: true},
			Balance:     big.NewInt(0),
			ActionCount: 8,
		}},
		Events: []state.RoleChangeEvent{
			{User: common.Address{0xc3}, Role: roles.Manufacturer, Granted: true, BlockHeight: 5},
			{User: common.Address{0xc4}, Role: roles.Auditor, Granted: false, BlockHeight: 9},
		},
	}
}

func TestRender(t *testing.T) {
	s := testState()
	out := Render(s, Select(s))

	for _, sub := range []string{
		"Account", s.Session.Address.Hex(), "1,500 ECO", "Admin, Manufacturer, Auditor",
		"Role management", "Manufacturer", "#9 Auditor revoked",
		"Submit eco action", "Solar panels", "verified", "pending", "Verified reduction: 100 of 150",
		"Verify eco actions", "Heat pumps",
	} {
		require.Contains(t, out, sub)
	}
	require.NotContains(t, out, "Wrong network")
	// Newer events go first.
	require.Less(t, strings.Index(out, "#9 "), strings.Index(out, "#5 "))

	s.Session.WrongNetwork = true
	out = Render(s, Select(s))
	require.Contains(t, out, "Wrong network, switch the wallet to Hardhat")
}

func TestRenderPlaceholders(t *testing.T) {
	out := Render(State{}, Select(State{}))
	require.Contains(t, out, "No wallet connected")

	s := testState()
	s.Roles = state.RoleSet{}
	out = Render(s, Select(s))
	require.Contains(t, out, "has no roles")
	require.NotContains(t, out, "Solar panels")

	s.Roles = state.RoleSet{IsManufacturer: true, IsAuditor: true}
	s.Actions, s.Pending = nil, nil
	out = Render(s, Select(s))
	require.Contains(t, out, "No actions submitted yet.")
	require.Contains(t, out, "No actions awaiting verification.")
}

func TestRenderNotice(t *testing.T) {
	r := NewRenderer(DefaultTheme, 40)
	require.Empty(t, r.RenderNotice(NoticeFor(nil)))
	require.Contains(t, r.RenderNotice(Succeeded("Transfer sent")), "Transfer sent")
	require.Contains(t, r.RenderNotice(Notice{Level: Failure, Text: "invalid nonce"}), "invalid nonce")
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc…", truncate("abcdef", 4))
	r := NewRenderer(DefaultTheme, 40)
	row := r.row("a very long description that doesn't fit", "x")
	require.Contains(t, row, "…")
}
