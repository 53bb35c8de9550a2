package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ecotrack/eco-go/pkg/core/roles"
	"github.com/ecotrack/eco-go/pkg/encoding/evidence"
	"github.com/stretchr/testify/require"
)

func (e *executor) runTx(t *testing.T, args ...string) {
	e.Run(t, append(append([]string{"eco-go"}, args...), e.chainArgs()...)...)
	e.checkTxSucceeded(t)
	e.checkEOF(t)
}

func (e *executor) runChain(t *testing.T, args ...string) string {
	e.Run(t, append(append([]string{"eco-go"}, args...), e.chainArgs()...)...)
	return e.Out.String()
}

func (e *executor) runChainWithError(t *testing.T, args ...string) {
	e.RunWithError(t, append(append([]string{"eco-go"}, args...), e.chainArgs()...)...)
}

func TestEcoActionFlow(t *testing.T) {
	e := newExecutor(t, true)
	admin := walletConfig(t, e.Admin)
	m := e.newAccount(t)
	manufacturer := walletConfig(t, m)
	a := e.newAccount(t)
	auditor := walletConfig(t, a)

	e.runTx(t, "role", "grant", "--wallet-config", admin, "--force", m.Address.Hex(), "manufacturer")
	e.runTx(t, "role", "grant", "--wallet-config", admin, "--force", a.Address.Hex(), "Auditor")

	t.Run("role errors", func(t *testing.T) {
		e.runChainWithError(t, "role", "grant", "--wallet-config", admin, "--force", m.Address.Hex(), "manufacturer")
		e.runChainWithError(t, "role", "grant", "--wallet-config", admin, "--force", m.Address.Hex(), "superuser")
		e.runChainWithError(t, "role", "grant", "--wallet-config", admin, "--force", "0x12", "auditor")
		e.runChainWithError(t, "role", "grant", "--wallet-config", admin, "--force", m.Address.Hex())
		e.runChainWithError(t, "role", "revoke", "--wallet-config", admin, "--force", m.Address.Hex(), "auditor")
		// Not an administrator.
		e.runChainWithError(t, "role", "grant", "--wallet-config", manufacturer, "--force", a.Address.Hex(), "manufacturer")
	})

	doc := filepath.Join(t.TempDir(), "audit.pdf")
	require.NoError(t, os.WriteFile(doc, []byte("solar panels installation report"), 0o644))
	ev, err := evidence.FromFile(doc)
	require.NoError(t, err)

	e.runTx(t, "action", "submit", "--wallet-config", manufacturer, "--force",
		"--description", "Solar panels", "--amount", "12.5", "--evidence", doc)
	e.runTx(t, "action", "submit", "--wallet-config", manufacturer, "--force",
		"-m", "Heat pumps", "-a", "3", "--evidence-hash", evidence.FromBytes([]byte("heat pumps")))

	t.Run("submit errors", func(t *testing.T) {
		e.runChainWithError(t, "action", "submit", "--wallet-config", manufacturer, "--force",
			"--amount", "1", "--evidence", doc)
		e.runChainWithError(t, "action", "submit", "--wallet-config", manufacturer, "--force",
			"--description", "No evidence", "--amount", "1")
		e.runChainWithError(t, "action", "submit", "--wallet-config", manufacturer, "--force",
			"--description", "Both", "--amount", "1", "--evidence", doc, "--evidence-hash", ev)
		e.runChainWithError(t, "action", "submit", "--wallet-config", manufacturer, "--force",
			"--description", "Bad hash", "--amount", "1", "--evidence-hash", "nope")
		e.runChainWithError(t, "action", "submit", "--wallet-config", manufacturer, "--force",
			"--description", "Zero", "--amount", "0", "--evidence", doc)
		e.runChainWithError(t, "action", "submit", "--wallet-config", manufacturer, "--force",
			"--description", "Missing file", "--amount", "1", "--evidence", doc+".missing")
		// Auditors can't submit actions.
		e.runChainWithError(t, "action", "submit", "--wallet-config", auditor, "--force",
			"--description", "Not mine", "--amount", "1", "--evidence", doc)
	})

	out := e.runChain(t, "action", "list", "--wallet-config", manufacturer)
	require.Regexp(t, `(?m)^0\s+12\.5\s+pending\s+`+ev+`\s+Solar panels$`, out)
	require.Regexp(t, `(?m)^1\s+3\s+pending\s+\S+\s+Heat pumps$`, out)
	require.Contains(t, out, "Total: 15.5 ECO (verified: 0 ECO)")

	e.runTx(t, "action", "verify", "--wallet-config", auditor, "--force", m.Address.Hex(), "0")

	t.Run("verify errors", func(t *testing.T) {
		e.runChainWithError(t, "action", "verify", "--wallet-config", auditor, "--force", m.Address.Hex(), "0")
		e.runChainWithError(t, "action", "verify", "--wallet-config", auditor, "--force", m.Address.Hex(), "7")
		e.runChainWithError(t, "action", "verify", "--wallet-config", auditor, "--force", m.Address.Hex(), "one")
		e.runChainWithError(t, "action", "verify", "--wallet-config", auditor, "--force", m.Address.Hex())
		// Manufacturers can't verify actions.
		e.runChainWithError(t, "action", "verify", "--wallet-config", manufacturer, "--force", m.Address.Hex(), "1")
	})

	out = e.runChain(t, "query", "actions", m.Address.Hex())
	require.Regexp(t, `(?m)^0\s+12\.5\s+verified\s+`, out)
	require.Regexp(t, `(?m)^1\s+3\s+pending\s+`, out)
	require.Contains(t, out, "Total: 15.5 ECO (verified: 12.5 ECO)")

	t.Run("report", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.json")
		e.Run(t, append([]string{"eco-go", "report", "--format", "json", "--out", path, m.Address.Hex()}, e.chainArgs()...)...)
		e.checkEOF(t)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var res struct {
			Manufacturer string
			Summary      struct {
				Actions           int
				Verified          int
				Pending           int
				TotalReduction    string
				VerifiedReduction string
			}
			Actions []struct {
				ID          uint64
				Description string
				Verified    bool
			}
		}
		require.NoError(t, json.Unmarshal(data, &res))
		require.True(t, strings.EqualFold(m.Address.Hex(), res.Manufacturer))
		require.Equal(t, 2, res.Summary.Actions)
		require.Equal(t, 1, res.Summary.Verified)
		require.Equal(t, 1, res.Summary.Pending)
		require.Len(t, res.Actions, 2)
		require.Equal(t, "Solar panels", res.Actions[0].Description)
		require.True(t, res.Actions[0].Verified)

		out := e.runChain(t, "report", "--wallet-config", manufacturer)
		require.True(t, strings.HasPrefix(out, "# Carbon reduction compliance report"))
		require.Contains(t, out, "| 0 | Solar panels | 12.5 | "+ev+" | verified |")
		require.Contains(t, out, "| 1 | Heat pumps | 3 |")

		e.runChainWithError(t, "report", "--format", "xml", m.Address.Hex())
	})

	t.Run("revoke with confirmation", func(t *testing.T) {
		e.In.WriteString("n\r")
		e.runChainWithError(t, "role", "revoke", "--wallet-config", admin, a.Address.Hex(), "auditor")
		out := e.runChain(t, "query", "roles", a.Address.Hex())
		require.Regexp(t, `(?m)^Auditor:\s+true$`, out)

		e.In.WriteString("y\r")
		e.runTx(t, "role", "revoke", "--wallet-config", admin, a.Address.Hex(), "auditor")
		out = e.runChain(t, "query", "roles", a.Address.Hex())
		require.Regexp(t, `(?m)^Auditor:\s+false$`, out)
	})
}

func TestQueryRoles(t *testing.T) {
	e := newExecutor(t, true)
	admin := walletConfig(t, e.Admin)
	m := e.newAccount(t)
	e.runTx(t, "role", "grant", "--wallet-config", admin, "--force", m.Address.Hex(), "manufacturer")

	out := e.runChain(t, "query", "roles", m.Address.Hex())
	require.Regexp(t, `(?m)^Address:\s+`+m.Address.Hex()+`$`, out)
	require.Regexp(t, `(?m)^Manufacturer:\s+true$`, out)
	require.Regexp(t, `(?m)^Admin:\s+false$`, out)
	require.Regexp(t, `(?m)^Auditor:\s+false$`, out)

	t.Run("historic", func(t *testing.T) {
		out := e.runChain(t, "query", "roles", "--historic", "0", m.Address.Hex())
		require.Regexp(t, `(?m)^Manufacturer:\s+false$`, out)
		require.Regexp(t, `(?m)^Height:\s+0$`, out)

		out = e.runChain(t, "query", "roles", "--historic", "0", e.Admin.Address.Hex())
		require.Regexp(t, `(?m)^Admin:\s+true$`, out)

		e.runChainWithError(t, "query", "roles", "--historic", "latest", m.Address.Hex())
	})
	t.Run("errors", func(t *testing.T) {
		e.runChainWithError(t, "query", "roles")
		e.runChainWithError(t, "query", "roles", "0xbad")
		e.runChainWithError(t, "query", "roles", m.Address.Hex(), e.Admin.Address.Hex())
	})
}

func TestQueryUsersAndEvents(t *testing.T) {
	e := newExecutor(t, true)
	admin := walletConfig(t, e.Admin)
	m := e.newAccount(t)
	a := e.newAccount(t)
	e.runTx(t, "role", "grant", "--wallet-config", admin, "--force", m.Address.Hex(), "manufacturer")
	e.runTx(t, "role", "grant", "--wallet-config", admin, "--force", a.Address.Hex(), "auditor")
	e.runTx(t, "role", "revoke", "--wallet-config", admin, "--force", a.Address.Hex(), "auditor")
	e.Chain.AddAction(m.Address, "Wind farm", bigTokens(2), evidence.FromBytes([]byte("wind")))

	out := e.runChain(t, "query", "users")
	require.Regexp(t, `(?m)^Address\s+Roles\s+Balance\s+Actions$`, out)
	require.Regexp(t, `(?m)^`+e.Admin.Address.Hex()+`\s+Admin\s+0\s+0$`, out)
	require.Regexp(t, `(?m)^`+m.Address.Hex()+`\s+Manufacturer\s+0\s+1$`, out)
	require.Regexp(t, `(?m)^`+a.Address.Hex()+`\s+-\s+0\s+0$`, out)

	outsider := e.newAccount(t)
	out = e.runChain(t, "query", "users", "--address", outsider.Address.Hex())
	require.Contains(t, out, outsider.Address.Hex())
	e.runChainWithError(t, "query", "users", "--address", "nope")

	out = e.runChain(t, "query", "events")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	require.Regexp(t, `^Block\s+User\s+Role\s+Change\s+Transaction$`, lines[0])
	require.Regexp(t, a.Address.Hex()+`\s+`+roles.Auditor.String()+`\s+revoked`, lines[1])
	require.Regexp(t, a.Address.Hex()+`\s+`+roles.Auditor.String()+`\s+granted`, lines[2])
	require.Regexp(t, m.Address.Hex()+`\s+`+roles.Manufacturer.String()+`\s+granted`, lines[3])
	require.Regexp(t, `^0\s+`+e.Admin.Address.Hex()+`\s+Admin\s+granted`, lines[4])

	out = e.runChain(t, "query", "events", "--limit", "1")
	require.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
	e.runChainWithError(t, "query", "events", "--limit", "0")
}

func TestQueryTx(t *testing.T) {
	e := newExecutor(t, true)
	admin := walletConfig(t, e.Admin)
	m := e.newAccount(t)

	e.Run(t, append([]string{"eco-go", "role", "grant", "--wallet-config", admin, "--force", m.Address.Hex(), "manufacturer"}, e.chainArgs()...)...)
	h := e.checkTxSucceeded(t).Hex()

	e.Run(t, append([]string{"eco-go", "query", "tx", h}, e.chainArgs()...)...)
	e.checkNextLine(t, `^Hash:\s+`+h)
	e.checkNextLine(t, `^OnChain:\s+true`)
	e.checkNextLine(t, `^Block:\s+\d+`)
	e.checkNextLine(t, `^Success:\s+true`)
	e.checkEOF(t)

	e.Run(t, append([]string{"eco-go", "query", "tx", "--verbose", strings.TrimPrefix(h, "0x")}, e.chainArgs()...)...)
	out := e.Out.String()
	require.Regexp(t, `(?m)^GasUsed:\s+\d+$`, out)
	require.Regexp(t, `(?m)^Event:\s+`+tokenAddr.Hex()+` 0x[0-9a-f]{64}$`, out)

	unknown := "0x" + strings.Repeat("ab", 32)
	e.Run(t, append([]string{"eco-go", "query", "tx", unknown}, e.chainArgs()...)...)
	e.checkNextLine(t, `^Hash:\s+`+unknown)
	e.checkNextLine(t, `^OnChain:\s+false`)
	e.checkEOF(t)

	e.runChainWithError(t, "query", "tx")
	e.runChainWithError(t, "query", "tx", "0x1234")
	e.runChainWithError(t, "query", "tx", h, h)
}

func TestDashboard(t *testing.T) {
	e := newExecutor(t, true)
	admin := walletConfig(t, e.Admin)
	m := e.newAccount(t)
	e.runTx(t, "role", "grant", "--wallet-config", admin, "--force", m.Address.Hex(), "manufacturer")

	out := e.runChain(t, "dashboard")
	require.Contains(t, out, "Connect wallet")
	require.NotContains(t, out, "Role management")

	out = e.runChain(t, "dashboard", "--wallet-config", admin, "--force")
	require.Contains(t, out, "Account")
	require.Contains(t, out, "Role management")
	require.NotContains(t, out, "Submit eco action")

	out = e.runChain(t, "dashboard", "--wallet-config", walletConfig(t, m), "--force", "--width", "100")
	require.Contains(t, out, "Submit eco action")
	require.NotContains(t, out, "Role management")

	out = e.runChain(t, "dashboard", "--wallet-config", walletConfig(t, e.newAccount(t)), "--force")
	require.Contains(t, out, "No role")
}
