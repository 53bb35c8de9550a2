package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ecotrack/eco-go/pkg/core/state"
	"github.com/ecotrack/eco-go/pkg/encoding/address"
)

// Theme defines colors of the dashboard. All colors use ANSI 256-color
// codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color
	Header     lipgloss.Color
	Border     lipgloss.Color

	BannerForeground lipgloss.Color
	BannerBackground lipgloss.Color

	Verified lipgloss.Color
	Pending  lipgloss.Color

	Success lipgloss.Color
	Warning lipgloss.Color
	Failure lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText:       lipgloss.Color("252"),
	FaintText:        lipgloss.Color("243"),
	Header:           lipgloss.Color("114"),
	Border:           lipgloss.Color("240"),
	BannerForeground: lipgloss.Color("231"),
	BannerBackground: lipgloss.Color("124"),
	Verified:         lipgloss.Color("78"),
	Pending:          lipgloss.Color("214"),
	Success:          lipgloss.Color("78"),
	Warning:          lipgloss.Color("214"),
	Failure:          lipgloss.Color("203"),
}

// DefaultWidth is the default width of rendered panels.
const DefaultWidth = 80

// Renderer draws dashboard views.
type Renderer struct {
	theme Theme
	width int
}

// NewRenderer creates a Renderer, DefaultWidth is used for non-positive
// widths.
func NewRenderer(theme Theme, width int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Renderer{theme: theme, width: width}
}

// Render draws the view of the given state with the default theme.
func Render(s State, v View) string {
	return NewRenderer(DefaultTheme, DefaultWidth).Render(s, v)
}

// Render draws the view of the given state.
func (r *Renderer) Render(s State, v View) string {
	var blocks []string
	if v.WrongNetwork {
		blocks = append(blocks, r.banner(s))
	}
	for _, p := range v.Panels {
		blocks = append(blocks, r.panel(p.String(), r.panelBody(p, s)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

// RenderNotice draws the notice, silent notices produce an empty string.
func (r *Renderer) RenderNotice(n Notice) string {
	var color lipgloss.Color
	switch n.Level {
	case Silent:
		return ""
	case Success:
		color = r.theme.Success
	case Warning:
		color = r.theme.Warning
	default:
		color = r.theme.Failure
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true).Width(r.width).Render(n.Text)
}

func (r *Renderer) banner(s State) string {
	text := "Wrong network"
	if s.Network != "" {
		text += ", switch the wallet to " + s.Network
	}
	return lipgloss.NewStyle().
		Foreground(r.theme.BannerForeground).
		Background(r.theme.BannerBackground).
		Bold(true).
		Width(r.width).
		Align(lipgloss.Center).
		Render(text)
}

func (r *Renderer) panel(title string, body string) string {
	titleStyle := lipgloss.NewStyle().Foreground(r.theme.Header).Bold(true)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(r.theme.Border).
		Padding(0, 1).
		Width(r.width - 2).
		Render(titleStyle.Render(title) + "\n" + body)
}

func (r *Renderer) panelBody(p PanelKind, s State) string {
	switch p {
	case ConnectPanel:
		return r.faint("No wallet connected. Run `wallet session` to connect.")
	case AccountPanel:
		return r.account(s)
	case NoRolePanel:
		return r.faint("This account has no roles. Ask an administrator to grant one.")
	case RoleManagementPanel:
		return r.roleManagement(s)
	case SubmissionPanel:
		return r.submission(s)
	case VerificationPanel:
		return r.verification(s)
	}
	return ""
}

func (r *Renderer) faint(text string) string {
	return lipgloss.NewStyle().Foreground(r.theme.FaintText).Render(text)
}

func (r *Renderer) account(s State) string {
	var (
		sess   = s.Session
		native = "?"
		lines  []string
	)
	if sess.NativeBalance != nil {
		native = FormatAmount(sess.NativeBalance, 18)
	}
	lines = append(lines,
		"Address:  "+sess.Address.Hex(),
		fmt.Sprintf("Chain:    %d", sess.ChainID),
		"Balance:  "+FormatAmount(s.Balance, s.Decimals)+" "+s.Symbol,
		"Gas:      "+native,
	)
	if !s.Roles.Empty() {
		lines = append(lines, "Roles:    "+roleList(s.Roles, ", "))
	}
	lines = append(lines, r.faint("Gasless transfers: `wallet transfer --to <address> --amount <value>`"))
	return strings.Join(lines, "\n")
}

func (r *Renderer) roleManagement(s State) string {
	var lines []string
	if len(s.Users) == 0 {
		lines = append(lines, r.faint("No users loaded."))
	} else {
		lines = append(lines, r.row("Address", "Roles", "Balance", "Actions"))
		for _, u := range s.Users {
			lines = append(lines, r.row(
				address.Short(u.Address),
				roleList(u.Roles, ","),
				FormatAmount(u.Balance, s.Decimals),
				formatCount(u.ActionCount)))
		}
	}
	if len(s.Events) != 0 {
		lines = append(lines, "", "Recent role changes:")
		for _, ev := range state.RecentRoleEvents(s.Events, state.DefaultRecentEvents) {
			verb := "revoked"
			if ev.Granted {
				verb = "granted"
			}
			lines = append(lines, fmt.Sprintf("  #%d %s %s %s", ev.BlockHeight, ev.Role, verb, address.Short(ev.User)))
		}
	}
	lines = append(lines, r.faint("Manage roles: `eco grant|revoke --role <role> --account <address>`"))
	return strings.Join(lines, "\n")
}

func (r *Renderer) submission(s State) string {
	var lines []string
	if len(s.Actions) == 0 {
		lines = append(lines, r.faint("No actions submitted yet."))
	} else {
		lines = append(lines, r.row("ID", "Description", "Reduction", "Status"))
		for _, a := range s.Actions {
			lines = append(lines, r.row(
				fmt.Sprintf("%d", a.ID),
				a.Description,
				FormatAmount(a.ReductionAmount, s.Decimals),
				r.status(a.Verified)))
		}
		lines = append(lines, fmt.Sprintf("Verified reduction: %s of %s",
			FormatAmount(state.TotalReduction(s.Actions, true), s.Decimals),
			FormatAmount(state.TotalReduction(s.Actions, false), s.Decimals)))
	}
	lines = append(lines, r.faint("Submit: `eco submit --description <text> --amount <value> --evidence <file>`"))
	return strings.Join(lines, "\n")
}

func (r *Renderer) verification(s State) string {
	var lines []string
	if len(s.Pending) == 0 {
		lines = append(lines, r.faint("No actions awaiting verification."))
	} else {
		lines = append(lines, r.row("Manufacturer", "ID", "Description", "Reduction"))
		for _, p := range s.Pending {
			lines = append(lines, r.row(
				address.Short(p.Manufacturer),
				fmt.Sprintf("%d", p.Action.ID),
				p.Action.Description,
				FormatAmount(p.Action.ReductionAmount, s.Decimals)))
		}
	}
	lines = append(lines, r.faint("Verify: `eco verify --manufacturer <address> --id <id>`"))
	return strings.Join(lines, "\n")
}

func (r *Renderer) status(verified bool) string {
	if verified {
		return lipgloss.NewStyle().Foreground(r.theme.Verified).Render("verified")
	}
	return lipgloss.NewStyle().Foreground(r.theme.Pending).Render("pending")
}

// row renders table cells in columns of equal width truncating long values.
func (r *Renderer) row(cells ...string) string {
	colWidth := (r.width - 4) / len(cells)
	cell := lipgloss.NewStyle().Width(colWidth).MaxWidth(colWidth)
	rendered := make([]string, len(cells))
	for i, c := range cells {
		if lipgloss.Width(c) > colWidth-1 {
			c = truncate(c, colWidth-1)
		}
		rendered[i] = cell.Render(c)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func truncate(s string, width int) string {
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)+"…") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

func roleList(rs state.RoleSet, sep string) string {
	roles := rs.Roles()
	if len(roles) == 0 {
		return "-"
	}
	names := make([]string, len(roles))
	for i := range roles {
		names[i] = roles[i].String()
	}
	return strings.Join(names, sep)
}
