package console

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ecotrack/eco-go/cli/cmdargs"
	clidashboard "github.com/ecotrack/eco-go/cli/dashboard"
	"github.com/ecotrack/eco-go/cli/eco"
	"github.com/ecotrack/eco-go/cli/flags"
	"github.com/ecotrack/eco-go/cli/options"
	"github.com/ecotrack/eco-go/cli/query"
	cliwallet "github.com/ecotrack/eco-go/cli/wallet"
	"github.com/ecotrack/eco-go/pkg/dashboard"
	"github.com/ecotrack/eco-go/pkg/encoding/fixedn"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var commands = []cli.Command{
	{
		Name:        "exit",
		Usage:       "Exit the console",
		Description: "Exit the console",
		Action:      handleExit,
	},
	{
		Name:        "session",
		Usage:       "Show the wallet session",
		Description: "Show the connected account, its balances and roles and the chain the wallet is on",
		Action:      handleSession,
	},
	{
		Name:        "refresh",
		Usage:       "Reread the wallet session",
		Description: "Reread accounts, the chain and the native balance from the wallet",
		Action:      handleRefresh,
	},
	{
		Name:        "switch-network",
		Usage:       "Ask the wallet to switch to the configured network",
		Description: "Ask the wallet to switch to the configured network (adding it if needed)",
		Action:      handleSwitchNetwork,
	},
	{
		Name:      "roles",
		Usage:     "Show roles of the account",
		UsageText: `roles [<address>]`,
		Description: `roles [<address>]
<address> is the connected account if omitted, example:
> roles 0x70997970C51812dc3A010C7d01b50e0d17dc79C8`,
		Action: handleRoles,
	},
	{
		Name:      "actions",
		Usage:     "Show eco actions of the manufacturer",
		UsageText: `actions [<address>]`,
		Description: `actions [<address>]
<address> is the connected account if omitted`,
		Action: handleActions,
	},
	{
		Name:        "users",
		Usage:       "Show accounts that were ever granted a role",
		Description: "Show accounts that were ever granted a role along with their roles, balances and action counts",
		Action:      handleUsers,
	},
	{
		Name:      "events",
		Usage:     "Show role grants and revocations, newest first",
		UsageText: `events [--limit <n>]`,
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  "limit, l",
				Usage: "Number of the newest events to show",
				Value: query.DefaultEventsLimit,
			},
		},
		Action: handleEvents,
	},
	{
		Name:      "submit",
		Usage:     "Record a new eco action of the signing account",
		UsageText: `submit --description <text> --amount <amount> (--evidence <file> | --evidence-hash <hash>)`,
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "description, m",
				Usage: "Description of the action",
			},
			flags.AmountFlag{
				Name:  "amount, a",
				Usage: "Carbon reduction amount (in tokens)",
			},
			cli.StringFlag{
				Name:  "evidence, e",
				Usage: "Evidence document, its content hash is recorded",
			},
			cli.StringFlag{
				Name:  "evidence-hash",
				Usage: "Content hash of the evidence document",
			},
		},
		Action: handleSubmit,
	},
	{
		Name:      "verify",
		Usage:     "Verify the action of the manufacturer",
		UsageText: `verify <manufacturer> <id>`,
		Action:    handleVerify,
	},
	{
		Name:      "grant",
		Usage:     "Grant the role to the account",
		UsageText: `grant <address> <manufacturer|auditor|admin>`,
		Action:    handleGrant,
	},
	{
		Name:      "revoke",
		Usage:     "Revoke the role from the account",
		UsageText: `revoke <address> <manufacturer|auditor|admin>`,
		Action:    handleRevoke,
	},
	{
		Name:      "transfer",
		Usage:     "Send tokens from the connected account without paying for gas",
		UsageText: `transfer <address> <amount>`,
		Action:    handleTransfer,
	},
	{
		Name:        "dashboard",
		Usage:       "Show panels available to the connected account",
		Description: "Show panels available to the connected account",
		Action:      handleDashboard,
	},
	{
		Name:      "report",
		Usage:     "Generate carbon reduction compliance report of the manufacturer",
		UsageText: `report [--format md|json] [--out <file>] [<address>]`,
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "format, f",
				Usage: "Report format: md or json",
				Value: "md",
			},
			cli.StringFlag{
				Name:  "out, o",
				Usage: "Write the report to the file",
			},
		},
		Action: handleReport,
	},
	{
		Name:      "parse",
		Usage:     "Parse provided argument and convert it into other possible formats",
		UsageText: `parse <arg>`,
		Description: `parse <arg>

<arg> is an argument which is tried to be interpreted as an item of different types
        and converted to other formats. Strings are escaped and output in quotes.`,
		Action: handleParse,
	},
}

func handleExit(c *cli.Context) error {
	l := getReadlineInstanceFromContext(c.App)
	_ = l.Close()
	exit := getExitFuncFromContext(c.App)
	fmt.Fprintln(c.App.Writer, "Bye!")
	exit(0)
	return nil
}

func handleSession(c *cli.Context) error {
	s, err := getSessionFromContext(c.App)
	if err != nil {
		return err
	}
	cliwallet.DumpSession(c.App.Writer, getEnvFromContext(c.App), s)
	return nil
}

func handleRefresh(c *cli.Context) error {
	m := getManagerFromContext(c.App)
	if m == nil {
		return ErrNoSession
	}
	s, err := m.Refresh()
	if err != nil {
		return err
	}
	if s == nil {
		return ErrNoSession
	}
	cliwallet.DumpSession(c.App.Writer, getEnvFromContext(c.App), s)
	return nil
}

func handleSwitchNetwork(c *cli.Context) error {
	s, err := getSessionFromContext(c.App)
	if err != nil {
		return err
	}
	pc := getEnvFromContext(c.App).Config.ProtocolConfiguration
	if !s.WrongNetwork {
		fmt.Fprintf(c.App.Writer, "Wallet is already on %s (%d)\n", pc.ChainName, pc.ChainID)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), options.DefaultAwaitableTimeout)
	defer cancel()
	if err := getManagerFromContext(c.App).SwitchNetwork(ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Switched to %s (%d)\n", pc.ChainName, pc.ChainID)
	return nil
}

// accountFromArgs returns the address given as the only optional argument,
// the connected account or the signing one.
func accountFromArgs(c *cli.Context) (common.Address, error) {
	if len(c.Args()) > 1 {
		return common.Address{}, fmt.Errorf("expected at most one argument: [<address>]")
	}
	if c.Args().Present() {
		a, err := cmdargs.ParseAddress(c, 0)
		if err != nil {
			return common.Address{}, err
		}
		return a, nil
	}
	if s, err := getSessionFromContext(c.App); err == nil {
		return s.Address, nil
	}
	if w, err := getWriterFromContext(c.App); err == nil {
		return w.Sender(), nil
	}
	return common.Address{}, ErrNoSession
}

func handleRoles(c *cli.Context) error {
	acc, err := accountFromArgs(c)
	if err != nil {
		return err
	}
	set, err := getEnvFromContext(c.App).Cache.RefreshRoles(acc)
	if err != nil {
		return err
	}
	query.DumpRoles(c.App.Writer, acc, set)
	return nil
}

func handleActions(c *cli.Context) error {
	m, err := accountFromArgs(c)
	if err != nil {
		return err
	}
	env := getEnvFromContext(c.App)
	acts, err := env.Cache.LoadActions(m)
	if err != nil {
		return err
	}
	query.DumpActions(c.App.Writer, acts, env.Decimals(), env.Symbol())
	return nil
}

func handleUsers(c *cli.Context) error {
	if err := cmdargs.EnsureNone(c); err != nil {
		return err
	}
	var current common.Address
	if s, err := getSessionFromContext(c.App); err == nil {
		current = s.Address
	}
	env := getEnvFromContext(c.App)
	users, err := env.Cache.LoadAllUsers(current)
	if err != nil {
		return err
	}
	query.DumpUsers(c.App.Writer, users, env.Decimals())
	return nil
}

func handleEvents(c *cli.Context) error {
	if err := cmdargs.EnsureNone(c); err != nil {
		return err
	}
	limit := c.Int("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	env := getEnvFromContext(c.App)
	if _, err := env.Cache.LoadRoleEvents(); err != nil {
		return err
	}
	query.DumpEvents(c.App.Writer, env.Cache.RecentRoleEvents(limit))
	return nil
}

func handleSubmit(c *cli.Context) error {
	if err := cmdargs.EnsureNone(c); err != nil {
		return err
	}
	w, err := getWriterFromContext(c.App)
	if err != nil {
		return err
	}
	ev, err := eco.EvidenceFromContext(c)
	if err != nil {
		return err
	}
	amount, err := flags.AmountFromContext(c, "amount", getEnvFromContext(c.App).Decimals())
	if err != nil {
		return err
	}
	h, err := w.Submit(c.String("description"), amount, ev)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, h.Hex())
	return nil
}

func handleVerify(c *cli.Context) error {
	if err := cmdargs.EnsureCount(c, 2, "<manufacturer> <id>"); err != nil {
		return err
	}
	m, perr := cmdargs.ParseAddress(c, 0)
	if perr != nil {
		return perr
	}
	id, perr := cmdargs.ParseUint(c, 1, "action ID")
	if perr != nil {
		return perr
	}
	w, err := getWriterFromContext(c.App)
	if err != nil {
		return err
	}
	h, err := w.Verify(m, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, h.Hex())
	return nil
}

func handleGrant(c *cli.Context) error {
	return handleChangeRole(c, true)
}

func handleRevoke(c *cli.Context) error {
	return handleChangeRole(c, false)
}

func handleChangeRole(c *cli.Context, grant bool) error {
	if err := cmdargs.EnsureCount(c, 2, "<address> <role>"); err != nil {
		return err
	}
	acc, perr := cmdargs.ParseAddress(c, 0)
	if perr != nil {
		return perr
	}
	r, perr := cmdargs.ParseRole(c, 1)
	if perr != nil {
		return perr
	}
	w, err := getWriterFromContext(c.App)
	if err != nil {
		return err
	}
	h, err := w.ChangeRole(acc, r, grant)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, h.Hex())
	return nil
}

func handleTransfer(c *cli.Context) error {
	if err := cmdargs.EnsureCount(c, 2, "<address> <amount>"); err != nil {
		return err
	}
	s, err := getSessionFromContext(c.App)
	if err != nil {
		return err
	}
	env := getEnvFromContext(c.App)
	pc := env.Config.ProtocolConfiguration
	if s.WrongNetwork {
		return fmt.Errorf("wallet is on chain %d, switch it to %s (%d) first", s.ChainID, pc.ChainName, pc.ChainID)
	}
	endpoint := getRelayFromContext(c.App)
	if endpoint == "" {
		return ErrNoRelay
	}
	amount, err := fixedn.FromString(c.Args().Get(1), env.Decimals())
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), options.DefaultAwaitableTimeout)
	defer cancel()
	sender := cliwallet.NewGaslessSender(env, getProviderFromContext(c.App), endpoint)
	a, err := sender.Send(ctx, s.Address, c.Args().Get(0), amount)
	if err != nil {
		return err
	}
	if a.Degraded {
		fmt.Fprintln(c.App.ErrWriter, "Warning: nonce couldn't be read, the relay may reject the transfer")
	}
	fmt.Fprintln(c.App.Writer, a.TxHash.Hex())
	return nil
}

func handleDashboard(c *cli.Context) error {
	if err := cmdargs.EnsureNone(c); err != nil {
		return err
	}
	env := getEnvFromContext(c.App)
	s, _ := getSessionFromContext(c.App)
	st, err := clidashboard.Collect(env, s)
	r := dashboard.NewRenderer(dashboard.DefaultTheme, getWidthFromContext(c.App))
	fmt.Fprintln(c.App.Writer, r.Render(st, dashboard.Select(st)))
	if err != nil {
		env.Log.Warn("dashboard data is incomplete", zap.Error(err))
		if text := r.RenderNotice(dashboard.NoticeFor(err)); text != "" {
			fmt.Fprintln(c.App.Writer, text)
		}
	}
	return nil
}

func handleReport(c *cli.Context) error {
	format, err := dashboard.ParseReportFormat(c.String("format"))
	if err != nil {
		return err
	}
	m, err := accountFromArgs(c)
	if err != nil {
		return err
	}
	env := getEnvFromContext(c.App)
	acts, err := env.Cache.LoadActions(m)
	if err != nil {
		return err
	}
	d := dashboard.ReportData{
		Manufacturer: m,
		Network:      env.Config.ProtocolConfiguration.ChainName,
		GeneratedAt:  time.Now(),
		Symbol:       env.Symbol(),
		Decimals:     env.Decimals(),
		Actions:      acts,
	}
	if b, err := env.Token.BalanceOf(m); err == nil {
		d.Balance = b
	} else {
		env.Log.Warn("failed to get token balance", zap.Error(err))
	}
	w := c.App.Writer
	if out := c.String("out"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return dashboard.Report(w, d, format)
}

func handleParse(c *cli.Context) error {
	res, err := Parse(c.Args(), getEnvFromContext(c.App).Decimals())
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, res)
	return nil
}
