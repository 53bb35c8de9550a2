package dashboard

import (
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ecotrack/eco-go/pkg/core/state"
	"github.com/ethereum/go-ethereum/common"
	json "github.com/nspcc-dev/go-ordered-json"
)

// ReportFormat is a compliance report output format.
type ReportFormat byte

// Report formats.
const (
	Markdown ReportFormat = iota
	JSON
)

// ParseReportFormat returns the format with the given name ("md" or
// "json").
func ParseReportFormat(s string) (ReportFormat, error) {
	switch strings.ToLower(s) {
	case "", "md", "markdown":
		return Markdown, nil
	case "json":
		return JSON, nil
	}
	return 0, fmt.Errorf("unknown report format %q", s)
}

// ReportData is the data of a compliance report of a manufacturer.
type ReportData struct {
	Manufacturer common.Address
	Network      string
	GeneratedAt  time.Time
	Symbol       string
	Decimals     int
	// Balance is the token balance, nil if unknown.
	Balance *big.Int
	Actions []state.EcoAction
}

// Summary is the summary of the report actions.
type Summary struct {
	Actions           int    `json:"actions"`
	Verified          int    `json:"verified"`
	Pending           int    `json:"pending"`
	TotalReduction    string `json:"totalReduction"`
	VerifiedReduction string `json:"verifiedReduction"`
}

// Summary computes the summary of the report.
func (d ReportData) Summary() Summary {
	var verified int
	for _, a := range d.Actions {
		if a.Verified {
			verified++
		}
	}
	return Summary{
		Actions:           len(d.Actions),
		Verified:          verified,
		Pending:           len(d.Actions) - verified,
		TotalReduction:    FormatAmount(state.TotalReduction(d.Actions, false), d.Decimals),
		VerifiedReduction: FormatAmount(state.TotalReduction(d.Actions, true), d.Decimals),
	}
}

type (
	reportJSON struct {
		Manufacturer common.Address `json:"manufacturer"`
		Network      string         `json:"network,omitempty"`
		GeneratedAt  time.Time      `json:"generatedAt"`
		Symbol       string         `json:"symbol,omitempty"`
		Balance      string         `json:"balance"`
		Summary      Summary        `json:"summary"`
		Actions      []actionJSON   `json:"actions"`
	}
	actionJSON struct {
		ID              uint64 `json:"id"`
		Description     string `json:"description"`
		ReductionAmount string `json:"reductionAmount"`
		EvidenceHash    string `json:"evidenceHash"`
		Verified        bool   `json:"verified"`
	}
)

// Report writes the compliance report in the given format.
func Report(w io.Writer, d ReportData, f ReportFormat) error {
	switch f {
	case Markdown:
		return reportMarkdown(w, d)
	case JSON:
		return reportJSONTo(w, d)
	}
	return fmt.Errorf("unknown report format %d", f)
}

func reportJSONTo(w io.Writer, d ReportData) error {
	res := reportJSON{
		Manufacturer: d.Manufacturer,
		Network:      d.Network,
		GeneratedAt:  d.GeneratedAt.UTC(),
		Symbol:       d.Symbol,
		Balance:      FormatAmount(d.Balance, d.Decimals),
		Summary:      d.Summary(),
		Actions:      make([]actionJSON, 0, len(d.Actions)),
	}
	for _, a := range d.Actions {
		res.Actions = append(res.Actions, actionJSON{
			ID:              a.ID,
			Description:     a.Description,
			ReductionAmount: FormatAmount(a.ReductionAmount, d.Decimals),
			EvidenceHash:    a.EvidenceHash,
			Verified:        a.Verified,
		})
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func reportMarkdown(w io.Writer, d ReportData) error {
	var (
		b   strings.Builder
		sum = d.Summary()
	)
	b.WriteString("# Carbon reduction compliance report\n\n")
	fmt.Fprintf(&b, "- Manufacturer: `%s`\n", d.Manufacturer.Hex())
	if d.Network != "" {
		fmt.Fprintf(&b, "- Network: %s\n", d.Network)
	}
	fmt.Fprintf(&b, "- Generated: %s\n", d.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Token balance: %s %s\n\n", FormatAmount(d.Balance, d.Decimals), d.Symbol)

	if len(d.Actions) == 0 {
		b.WriteString("No eco actions recorded.\n")
	} else {
		b.WriteString("| ID | Description | Reduction | Evidence | Status |\n")
		b.WriteString("|---:|---|---:|---|---|\n")
		for _, a := range d.Actions {
			status := "pending"
			if a.Verified {
				status = "verified"
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
				a.ID, mdEscape(a.Description), FormatAmount(a.ReductionAmount, d.Decimals),
				mdEscape(a.EvidenceHash), status)
		}
	}
	fmt.Fprintf(&b, "\nActions: %s (verified: %s, pending: %s)\n",
		formatCount(sum.Actions), formatCount(sum.Verified), formatCount(sum.Pending))
	fmt.Fprintf(&b, "Total reduction: %s\n", sum.TotalReduction)
	fmt.Fprintf(&b, "Verified reduction: %s\n", sum.VerifiedReduction)

	_, err := io.WriteString(w, b.String())
	return err
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
