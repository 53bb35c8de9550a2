package query

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/ecotrack/eco-go/cli/cmdargs"
	"github.com/ecotrack/eco-go/cli/options"
	"github.com/ecotrack/eco-go/pkg/core/roles"
	"github.com/ecotrack/eco-go/pkg/core/state"
	"github.com/ecotrack/eco-go/pkg/dashboard"
	"github.com/ecotrack/eco-go/pkg/encoding/address"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/urfave/cli"
)

// DefaultEventsLimit is the default number of role change events shown.
const DefaultEventsLimit = 20

// NewCommands returns 'query' command.
func NewCommands() []cli.Command {
	queryTxFlags := append([]cli.Flag{
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: "Output gas usage and emitted events",
		},
	}, options.ConfigFlags...)
	queryTxFlags = append(queryTxFlags, options.RPC...)
	queryUsersFlags := append([]cli.Flag{
		cli.StringFlag{
			Name:  "address, a",
			Usage: "Include the account into the list even if it has no roles",
		},
	}, options.ChainFlags...)
	queryEventsFlags := append([]cli.Flag{
		cli.IntFlag{
			Name:  "limit, l",
			Usage: "Number of the newest events to show",
			Value: DefaultEventsLimit,
		},
	}, options.ChainFlags...)
	return []cli.Command{{
		Name:  "query",
		Usage: "Query EcoToken state",
		Subcommands: []cli.Command{
			{
				Name:      "roles",
				Usage:     "Show roles of the account",
				UsageText: "eco-go query roles [--historic <height>] <address>",
				Action:    queryRoles,
				Flags:     options.ChainFlags,
			},
			{
				Name:      "actions",
				Usage:     "Show eco actions of the manufacturer",
				UsageText: "eco-go query actions <address>",
				Action:    queryActions,
				Flags:     options.ChainFlags,
			},
			{
				Name:      "users",
				Usage:     "Show accounts that were ever granted a role",
				UsageText: "eco-go query users [--address <address>]",
				Action:    queryUsers,
				Flags:     queryUsersFlags,
			},
			{
				Name:      "events",
				Usage:     "Show role grants and revocations, newest first",
				UsageText: "eco-go query events [--limit <n>]",
				Action:    queryEvents,
				Flags:     queryEventsFlags,
			},
			{
				Name:      "tx",
				Usage:     "Query transaction status",
				UsageText: "eco-go query tx [--verbose] <hash>",
				Action:    queryTx,
				Flags:     queryTxFlags,
			},
		},
	}}
}

func queryRoles(ctx *cli.Context) error {
	if err := cmdargs.EnsureCount(ctx, 1, "<address>"); err != nil {
		return err
	}
	acc, perr := cmdargs.ParseAddress(ctx, 0)
	if perr != nil {
		return perr
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	env, err := options.NewEnv(gctx, ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	var set state.RoleSet
	if h := env.Invoker.Height(); h != nil {
		set, err = historicRoles(env, acc, h.Uint64())
	} else {
		set, err = env.Cache.RefreshRoles(acc)
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	DumpRoles(ctx.App.Writer, acc, set)
	return nil
}

// DumpRoles writes roles of the account.
func DumpRoles(w io.Writer, acc common.Address, set state.RoleSet) {
	buf := bytes.NewBuffer(nil)
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("Address:\t" + acc.Hex() + "\n"))
	for _, r := range roles.All {
		_, _ = tw.Write([]byte(fmt.Sprintf("%s:\t%t\n", r, set.Has(r))))
	}
	_, _ = tw.Write([]byte("Height:\t" + strconv.FormatUint(set.Height, 10) + "\n"))
	_ = tw.Flush()
	_, _ = w.Write(buf.Bytes())
}

func historicRoles(env *options.Env, acc common.Address, height uint64) (state.RoleSet, error) {
	set := state.RoleSet{Height: height}
	for _, r := range roles.All {
		id, err := env.Token.RoleHash(r)
		if err != nil {
			return set, fmt.Errorf("failed to get %s role identifier: %w", r, err)
		}
		ok, err := env.Token.HasRole(id, acc)
		if err != nil {
			return set, fmt.Errorf("failed to check %s role: %w", r, err)
		}
		set = set.Set(r, ok)
	}
	return set, nil
}

func queryActions(ctx *cli.Context) error {
	if err := cmdargs.EnsureCount(ctx, 1, "<address>"); err != nil {
		return err
	}
	m, perr := cmdargs.ParseAddress(ctx, 0)
	if perr != nil {
		return perr
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	env, err := options.NewEnv(gctx, ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	acts, err := env.Token.Actions(m).All()
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to get actions: %w", err), 1)
	}
	DumpActions(ctx.App.Writer, acts, env.Decimals(), env.Symbol())
	return nil
}

// DumpActions writes the table of actions followed by reduction totals.
func DumpActions(w io.Writer, acts []state.EcoAction, decimals int, symbol string) {
	buf := bytes.NewBuffer(nil)
	tw := tabwriter.NewWriter(buf, 0, 4, 2, ' ', 0)
	_, _ = tw.Write([]byte("ID\tReduction\tStatus\tEvidence\tDescription\n"))
	for _, a := range acts {
		status := "pending"
		if a.Verified {
			status = "verified"
		}
		_, _ = tw.Write([]byte(fmt.Sprintf("%d\t%s\t%s\t%s\t%s\n", a.ID,
			dashboard.FormatAmount(a.ReductionAmount, decimals), status, a.EvidenceHash, a.Description)))
	}
	_ = tw.Flush()
	fmt.Fprintf(buf, "Total: %s %s (verified: %s %s)\n",
		dashboard.FormatAmount(state.TotalReduction(acts, false), decimals), symbol,
		dashboard.FormatAmount(state.TotalReduction(acts, true), decimals), symbol)
	_, _ = w.Write(buf.Bytes())
}

func queryUsers(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	var current common.Address
	if s := ctx.String("address"); s != "" {
		a, err := address.StringToAddress(s)
		if err != nil {
			return cli.NewExitError(fmt.Errorf("invalid address: %w", err), 1)
		}
		current = a
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	env, err := options.NewEnv(gctx, ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	users, err := env.Cache.LoadAllUsers(current)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	DumpUsers(ctx.App.Writer, users, env.Decimals())
	return nil
}

// DumpUsers writes the table of users.
func DumpUsers(w io.Writer, users []state.UserInfo, decimals int) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No users found")
		return
	}
	buf := bytes.NewBuffer(nil)
	tw := tabwriter.NewWriter(buf, 0, 4, 2, ' ', 0)
	_, _ = tw.Write([]byte("Address\tRoles\tBalance\tActions\n"))
	for _, u := range users {
		_, _ = tw.Write([]byte(fmt.Sprintf("%s\t%s\t%s\t%d\n", u.Address.Hex(), roleNames(u.Roles),
			dashboard.FormatAmount(u.Balance, decimals), u.ActionCount)))
	}
	_ = tw.Flush()
	_, _ = w.Write(buf.Bytes())
}

func roleNames(s state.RoleSet) string {
	rs := s.Roles()
	if len(rs) == 0 {
		return "-"
	}
	names := make([]string, len(rs))
	for i := range rs {
		names[i] = rs[i].String()
	}
	return strings.Join(names, ",")
}

func queryEvents(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	limit := ctx.Int("limit")
	if limit <= 0 {
		return cli.NewExitError("limit must be positive", 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	env, err := options.NewEnv(gctx, ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if _, err := env.Cache.LoadRoleEvents(); err != nil {
		return cli.NewExitError(err, 1)
	}
	DumpEvents(ctx.App.Writer, env.Cache.RecentRoleEvents(limit))
	return nil
}

// DumpEvents writes the table of role change events.
func DumpEvents(w io.Writer, evs []state.RoleChangeEvent) {
	if len(evs) == 0 {
		fmt.Fprintln(w, "No role changes found")
		return
	}
	buf := bytes.NewBuffer(nil)
	tw := tabwriter.NewWriter(buf, 0, 4, 2, ' ', 0)
	_, _ = tw.Write([]byte("Block\tUser\tRole\tChange\tTransaction\n"))
	for _, ev := range evs {
		change := "revoked"
		if ev.Granted {
			change = "granted"
		}
		_, _ = tw.Write([]byte(fmt.Sprintf("%d\t%s\t%s\t%s\t%s\n", ev.BlockHeight, ev.User.Hex(), ev.Role, change, ev.TxHash.Hex())))
	}
	_ = tw.Flush()
	_, _ = w.Write(buf.Bytes())
}

// ParseHash parses a hex-encoded (with or without 0x prefix) transaction hash.
func ParseHash(s string) (common.Hash, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid tx hash: %s", s)
	}
	return common.BytesToHash(b), nil
}

func queryTx(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) == 0 {
		return cli.NewExitError("Transaction hash is missing", 1)
	}
	if len(args) > 1 {
		return cli.NewExitError("only one transaction hash is accepted", 1)
	}
	txHash, err := ParseHash(args[0])
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, ec := options.GetRPCClient(gctx, ctx, cfg.ApplicationConfiguration.RPCClient)
	if ec != nil {
		return ec
	}
	defer c.Close()

	rcpt, err := c.TransactionReceipt(txHash)
	if err != nil && !errors.Is(err, ethereum.NotFound) {
		return cli.NewExitError(err, 1)
	}
	dumpReceipt(ctx, txHash, rcpt)
	return nil
}

func dumpReceipt(ctx *cli.Context, h common.Hash, rcpt *types.Receipt) {
	verbose := ctx.Bool("verbose")
	buf := bytes.NewBuffer(nil)

	// Ignore the errors below because `Write` to buffer doesn't return error.
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("Hash:\t" + h.Hex() + "\n"))
	_, _ = tw.Write([]byte(fmt.Sprintf("OnChain:\t%t\n", rcpt != nil)))
	if rcpt != nil {
		if rcpt.BlockNumber != nil {
			_, _ = tw.Write([]byte("Block:\t" + rcpt.BlockNumber.String() + "\n"))
		}
		_, _ = tw.Write([]byte(fmt.Sprintf("Success:\t%t\n", rcpt.Status == types.ReceiptStatusSuccessful)))
		if verbose {
			_, _ = tw.Write([]byte("GasUsed:\t" + strconv.FormatUint(rcpt.GasUsed, 10) + "\n"))
			for _, l := range rcpt.Logs {
				var topic string
				if len(l.Topics) > 0 {
					topic = l.Topics[0].Hex()
				}
				_, _ = tw.Write([]byte(fmt.Sprintf("Event:\t%s %s\n", l.Address.Hex(), topic)))
			}
		}
	}
	_ = tw.Flush()
	fmt.Fprint(ctx.App.Writer, buf.String())
}
