/*
Package dashboard implements the terminal presentation of the application
state: role-gated panels, transient notices and the compliance report. Panel
selection is a pure function of cached state, rendering is done with lipgloss.
Nothing here talks to the chain, writes go through the cache, gasless and
rpcclient packages and are followed by an explicit cache refresh.
*/
package dashboard

import (
	"math/big"

	"github.com/ecotrack/eco-go/pkg/core/state"
	"github.com/ecotrack/eco-go/pkg/session"
	"github.com/ethereum/go-ethereum/common"
)

// PanelKind is a kind of dashboard panel.
type PanelKind byte

// Panels in the order they're shown.
const (
	// ConnectPanel asks to connect a wallet, it's the only panel without a
	// session.
	ConnectPanel PanelKind = iota
	// AccountPanel shows the account, its balances and the gasless
	// transfer form.
	AccountPanel
	// NoRolePanel is a placeholder for accounts without roles.
	NoRolePanel
	// RoleManagementPanel is shown to administrators.
	RoleManagementPanel
	// SubmissionPanel is shown to manufacturers.
	SubmissionPanel
	// VerificationPanel is shown to auditors.
	VerificationPanel
)

var panelNames = map[PanelKind]string{
	ConnectPanel:        "Connect wallet",
	AccountPanel:        "Account",
	NoRolePanel:         "No role",
	RoleManagementPanel: "Role management",
	SubmissionPanel:     "Submit eco action",
	VerificationPanel:   "Verify eco actions",
}

// String implements the fmt.Stringer interface.
func (k PanelKind) String() string {
	return panelNames[k]
}

// PendingAction is an unverified action of some manufacturer.
type PendingAction struct {
	Manufacturer common.Address
	Action       state.EcoAction
}

// State is the cached application state the dashboard is built from.
type State struct {
	// Session is nil when no wallet is connected.
	Session *session.Session
	// Network is the name of the expected network.
	Network  string
	Symbol   string
	Decimals int

	Roles state.RoleSet
	// Balance is the token balance of the session account, nil if unknown.
	Balance *big.Int
	// Actions are the actions of the session account (for manufacturers).
	Actions []state.EcoAction
	// Pending are unverified actions (for auditors).
	Pending []PendingAction
	// Users and Events are shown to administrators.
	Users  []state.UserInfo
	Events []state.RoleChangeEvent
}

// View is a set of panels to show.
type View struct {
	// WrongNetwork enables the wrong network banner.
	WrongNetwork bool
	Panels       []PanelKind
}

// Select returns panels available in the given state. Reads are never
// blocked by the wrong network flag, only the banner is added.
func Select(s State) View {
	if s.Session == nil {
		return View{Panels: []PanelKind{ConnectPanel}}
	}
	v := View{
		WrongNetwork: s.Session.WrongNetwork,
		Panels:       []PanelKind{AccountPanel},
	}
	if s.Roles.Empty() {
		v.Panels = append(v.Panels, NoRolePanel)
		return v
	}
	if s.Roles.IsAdmin {
		v.Panels = append(v.Panels, RoleManagementPanel)
	}
	if s.Roles.IsManufacturer {
		v.Panels = append(v.Panels, SubmissionPanel)
	}
	if s.Roles.IsAuditor {
		v.Panels = append(v.Panels, VerificationPanel)
	}
	return v
}

// Has checks whether the view contains the panel.
func (v View) Has(k PanelKind) bool {
	for _, p := range v.Panels {
		if p == k {
			return true
		}
	}
	return false
}
