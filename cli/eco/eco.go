/*
Package eco contains CLI commands changing EcoToken state: eco action
submission and verification and role management. Transactions are signed
with a local keystore account and awaited before the command returns.
*/
package eco

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ecotrack/eco-go/cli/cmdargs"
	"github.com/ecotrack/eco-go/cli/flags"
	"github.com/ecotrack/eco-go/cli/input"
	"github.com/ecotrack/eco-go/cli/options"
	"github.com/ecotrack/eco-go/cli/query"
	"github.com/ecotrack/eco-go/pkg/encoding/evidence"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli"
)

// txFlags are the flags of every command sending a transaction.
var txFlags = append(append(append([]cli.Flag{}, options.ConfigFlags...), options.RPC...),
	append(options.Wallet, options.Force)...)

// NewCommands returns 'action' and 'role' commands.
func NewCommands() []cli.Command {
	submitFlags := append([]cli.Flag{
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
			Usage: "Content hash of the evidence document (conflicts with --evidence)",
		},
	}, txFlags...)
	return []cli.Command{
		{
			Name:  "action",
			Usage: "Submit and verify eco actions",
			Subcommands: []cli.Command{
				{
					Name:      "list",
					Usage:     "List eco actions of the manufacturer (the wallet account by default)",
					UsageText: "eco-go action list [--wallet <file>] [<address>]",
					Action:    listActions,
					Flags:     append(append([]cli.Flag{}, options.ChainFlags...), options.Wallet...),
				},
				{
					Name:      "submit",
					Usage:     "Record a new eco action of the wallet account (manufacturers only)",
					UsageText: "eco-go action submit --wallet <file> --description <text> --amount <amount> --evidence <file>",
					Action:    submitAction,
					Flags:     submitFlags,
				},
				{
					Name:      "verify",
					Usage:     "Verify the action of the manufacturer (auditors only)",
					UsageText: "eco-go action verify --wallet <file> <manufacturer> <id>",
					Action:    verifyAction,
					Flags:     txFlags,
				},
			},
		},
		{
			Name:  "role",
			Usage: "Manage roles (administrators only)",
			Subcommands: []cli.Command{
				{
					Name:      "grant",
					Usage:     "Grant the role to the account",
					UsageText: "eco-go role grant --wallet <file> <address> <manufacturer|auditor|admin>",
					Description: `Manufacturer and auditor roles are granted with the dedicated
   contract methods, the admin role is granted with the generic one.`,
					Action: grantRole,
					Flags:  txFlags,
				},
				{
					Name:      "revoke",
					Usage:     "Revoke the role from the account",
					UsageText: "eco-go role revoke --wallet <file> <address> <manufacturer|auditor|admin>",
					Action:    revokeRole,
					Flags:     txFlags,
				},
			},
		},
	}
}

func listActions(ctx *cli.Context) error {
	if len(ctx.Args()) > 1 {
		return cli.NewExitError("expected at most one argument: [<address>]", 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	env, err := options.NewEnv(gctx, ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	var m common.Address
	if ctx.Args().Present() {
		a, perr := cmdargs.ParseAddress(ctx, 0)
		if perr != nil {
			return perr
		}
		m = a
	} else {
		acc, err := options.GetAccFromContext(ctx, env.Config.ApplicationConfiguration.Wallet)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		m = acc.Address
	}
	acts, err := env.Cache.LoadActions(m)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	query.DumpActions(ctx.App.Writer, acts, env.Decimals(), env.Symbol())
	return nil
}

// EvidenceFromContext returns the evidence hash given either as a file
// (--evidence) or as a hash (--evidence-hash).
func EvidenceFromContext(ctx *cli.Context) (string, error) {
	file, hash := ctx.String("evidence"), ctx.String("evidence-hash")
	switch {
	case file != "" && hash != "":
		return "", errors.New("--evidence conflicts with --evidence-hash")
	case file != "":
		h, err := evidence.FromFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read evidence: %w", err)
		}
		return h, nil
	case hash != "":
		if !evidence.IsValid(hash) {
			return "", fmt.Errorf("%w: %s", evidence.ErrInvalidHash, hash)
		}
		return hash, nil
	}
	return "", errors.New("missing --evidence or --evidence-hash")
}

// newWriter returns Writer for the account from the wallet flags (or the
// configured wallet) confirming transactions in the terminal unless --force
// is given.
func newWriter(ctx *cli.Context, env *options.Env) (*Writer, error) {
	acc, err := options.GetAccFromContext(ctx, env.Config.ApplicationConfiguration.Wallet)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	var confirm ConfirmFunc
	if !ctx.Bool("force") {
		confirm = func(what string) error {
			ok, err := input.Confirm(ctx.App.Writer, what+"?")
			if err != nil {
				return err
			}
			if !ok {
				return ErrCancelled
			}
			return nil
		}
	}
	w, err := NewWriter(env, acc, confirm)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	return w, nil
}

func submitAction(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(ctx.String("description")) == "" {
		return cli.NewExitError("missing --description", 1)
	}
	ev, err := EvidenceFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	env, err := options.NewEnv(gctx, ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	amount, err := flags.AmountFromContext(ctx, "amount", env.Decimals())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	w, err := newWriter(ctx, env)
	if err != nil {
		return err
	}
	h, err := w.Submit(ctx.String("description"), amount, ev)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, h.Hex())
	return nil
}

func verifyAction(ctx *cli.Context) error {
	if err := cmdargs.EnsureCount(ctx, 2, "<manufacturer> <id>"); err != nil {
		return err
	}
	m, perr := cmdargs.ParseAddress(ctx, 0)
	if perr != nil {
		return perr
	}
	id, perr := cmdargs.ParseUint(ctx, 1, "action ID")
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

	w, err := newWriter(ctx, env)
	if err != nil {
		return err
	}
	h, err := w.Verify(m, id)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, h.Hex())
	return nil
}

func grantRole(ctx *cli.Context) error {
	return changeRole(ctx, true)
}

func revokeRole(ctx *cli.Context) error {
	return changeRole(ctx, false)
}

func changeRole(ctx *cli.Context, grant bool) error {
	if err := cmdargs.EnsureCount(ctx, 2, "<address> <role>"); err != nil {
		return err
	}
	acc, perr := cmdargs.ParseAddress(ctx, 0)
	if perr != nil {
		return perr
	}
	r, perr := cmdargs.ParseRole(ctx, 1)
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

	w, err := newWriter(ctx, env)
	if err != nil {
		return err
	}
	h, err := w.ChangeRole(acc, r, grant)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, h.Hex())
	return nil
}
