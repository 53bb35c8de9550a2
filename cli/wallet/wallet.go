package wallet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/ecotrack/eco-go/cli/cmdargs"
	"github.com/ecotrack/eco-go/cli/flags"
	"github.com/ecotrack/eco-go/cli/input"
	"github.com/ecotrack/eco-go/cli/options"
	"github.com/ecotrack/eco-go/pkg/dashboard"
	"github.com/ecotrack/eco-go/pkg/encoding/fixedn"
	"github.com/ecotrack/eco-go/pkg/rpcclient/metatransfer"
	"github.com/ecotrack/eco-go/pkg/services/gasless"
	"github.com/ecotrack/eco-go/pkg/session"
	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// Keystore encryption parameters used by 'wallet init'.
var (
	KeystoreScryptN = keystore.StandardScryptN
	KeystoreScryptP = keystore.StandardScryptP
)

var (
	errNoPath         = errors.New("target path where the keystore should be stored is mandatory and should be passed using (--wallet, -w) flags")
	errPhraseMismatch = errors.New("the entered pass-phrases do not match. Maybe you have misspelled them")
)

// NewCommands returns 'wallet' command.
func NewCommands() []cli.Command {
	sessionFlags := append(append(append([]cli.Flag{}, options.ConfigFlags...), options.RPC...), options.Wallet...)
	sessionFlags = append(sessionFlags, options.Bridge...)
	transferFlags := append([]cli.Flag{
		cli.StringFlag{
			Name:  "to",
			Usage: "Recipient address",
		},
		flags.AmountFlag{
			Name:  "amount",
			Usage: "Amount of tokens to send",
		},
		cli.StringFlag{
			Name:  "relay",
			Usage: "Relay service URL (overrides configuration)",
		},
	}, sessionFlags...)
	return []cli.Command{{
		Name:  "wallet",
		Usage: "Create keystores, manage wallet sessions and send gasless transfers",
		Subcommands: []cli.Command{
			{
				Name:      "init",
				Usage:     "Create a keystore with a new account",
				UsageText: "eco-go wallet init --wallet <file>",
				Action:    initWallet,
				Flags: []cli.Flag{
					cli.StringFlag{
						Name:  "wallet, w",
						Usage: "Target location of the keystore file",
					},
				},
			},
			{
				Name:      "address",
				Usage:     "Print the address of the keystore account",
				UsageText: "eco-go wallet address --wallet <file> [--qr]",
				Action:    printAddress,
				Flags: append(append([]cli.Flag{
					cli.BoolFlag{
						Name:  "qr",
						Usage: "Also print the address as a QR code for the configured chain",
					},
				}, options.ConfigFlags...), options.Wallet...),
			},
			{
				Name:      "session",
				Usage:     "Connect the wallet and show the session",
				UsageText: "eco-go wallet session [--bridge | --wallet <file>]",
				Action:    showSession,
				Flags:     sessionFlags,
			},
			{
				Name:      "switch-network",
				Usage:     "Ask the wallet to switch to the configured network (adding it if needed)",
				UsageText: "eco-go wallet switch-network [--bridge | --wallet <file>]",
				Action:    switchNetwork,
				Flags:     sessionFlags,
			},
			{
				Name:      "transfer",
				Usage:     "Send tokens without paying for gas (the relay submits the transfer)",
				UsageText: "eco-go wallet transfer [--bridge | --wallet <file>] --to <address> --amount <amount>",
				Action:    transferGasless,
				Flags:     transferFlags,
			},
		},
	}}
}

func initWallet(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	path := ctx.String("wallet")
	if len(path) == 0 {
		return cli.NewExitError(errNoPath, 1)
	}
	if _, err := os.Stat(path); err == nil {
		return cli.NewExitError(fmt.Errorf("file %s already exists", path), 1)
	}
	phrase, err := input.ReadPassword("Enter passphrase > ")
	if err != nil {
		return cli.NewExitError(fmt.Errorf("Error reading password: %w", err), 1)
	}
	phraseCheck, err := input.ReadPassword("Confirm passphrase > ")
	if err != nil {
		return cli.NewExitError(fmt.Errorf("Error reading password: %w", err), 1)
	}
	if phrase != phraseCheck {
		return cli.NewExitError(errPhraseMismatch, 1)
	}
	acc, err := wallet.NewAccount()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := acc.SaveKeystore(path, phrase, KeystoreScryptN, KeystoreScryptP); err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, acc.Address.Hex())
	return nil
}

func printAddress(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	acc, err := options.GetAccFromContext(ctx, cfg.ApplicationConfiguration.Wallet)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, acc.Address.Hex())
	if ctx.Bool("qr") {
		qr, err := dashboard.AddressQR(acc.Address, cfg.ProtocolConfiguration.ChainID)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		fmt.Fprint(ctx.App.Writer, qr)
	}
	return nil
}

// connected is a wallet session with everything needed to work with it.
type connected struct {
	env      *options.Env
	provider wallet.Provider
	manager  *session.Manager
	session  *session.Session
}

func (c *connected) Close() {
	_ = c.provider.Close()
	c.env.Close()
}

// connect sets up the environment and establishes the wallet session.
func connect(gctx context.Context, ctx *cli.Context) (*connected, error) {
	env, err := options.NewEnv(gctx, ctx)
	if err != nil {
		return nil, err
	}
	p, err := options.GetProvider(gctx, ctx, env.Config, env.Log)
	if err != nil {
		env.Close()
		return nil, cli.NewExitError(err, 1)
	}
	m := session.NewManager(p, env.Client, env.Config.ProtocolConfiguration.ChainParams(), env.Log)
	s, err := m.Connect(gctx)
	if err != nil {
		_ = p.Close()
		env.Close()
		return nil, cli.NewExitError(describe(err), 1)
	}
	return &connected{env: env, provider: p, manager: m, session: s}, nil
}

// describe prefixes the error with the notice shown for it.
func describe(err error) error {
	n := dashboard.NoticeFor(err)
	if n.Text == "" || n.Text == err.Error() {
		return err
	}
	return fmt.Errorf("%s: %w", n.Text, err)
}

func showSession(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, err := connect(gctx, ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	DumpSession(ctx.App.Writer, c.env, c.session)
	return nil
}

// DumpSession writes the session along with token balance and roles of its
// account.
func DumpSession(w io.Writer, env *options.Env, s *session.Session) {
	var (
		pc     = env.Config.ProtocolConfiguration
		native = "unknown"
		token  = "unknown"
		roles  = "unknown"
	)
	if s.NativeBalance != nil {
		native = fixedn.ToString(s.NativeBalance, int(pc.NativeCurrency.Decimals)) + " " + pc.NativeCurrency.Symbol
	}
	if b, err := env.Token.BalanceOf(s.Address); err == nil {
		token = dashboard.FormatAmount(b, env.Decimals()) + " " + env.Symbol()
	} else {
		env.Log.Warn("failed to get token balance", zap.Error(err))
	}
	if set, err := env.Cache.RefreshRoles(s.Address); err == nil {
		roles = "none"
		if !set.Empty() {
			roles = ""
			for i, r := range set.Roles() {
				if i > 0 {
					roles += ", "
				}
				roles += r.String()
			}
		}
	}

	buf := bytes.NewBuffer(nil)
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("Address:\t" + s.Address.Hex() + "\n"))
	_, _ = tw.Write([]byte(fmt.Sprintf("Chain:\t%d\n", s.ChainID)))
	_, _ = tw.Write([]byte(fmt.Sprintf("WrongNetwork:\t%t\n", s.WrongNetwork)))
	_, _ = tw.Write([]byte("Balance:\t" + native + "\n"))
	_, _ = tw.Write([]byte("TokenBalance:\t" + token + "\n"))
	_, _ = tw.Write([]byte("Roles:\t" + roles + "\n"))
	_ = tw.Flush()
	_, _ = w.Write(buf.Bytes())
}

func switchNetwork(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, err := connect(gctx, ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	pc := c.env.Config.ProtocolConfiguration
	if !c.session.WrongNetwork {
		fmt.Fprintf(ctx.App.Writer, "Wallet is already on %s (%d)\n", pc.ChainName, pc.ChainID)
		return nil
	}
	if err := c.manager.SwitchNetwork(gctx); err != nil {
		return cli.NewExitError(describe(err), 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Switched to %s (%d)\n", pc.ChainName, pc.ChainID)
	return nil
}

func transferGasless(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	to := ctx.String("to")
	if to == "" {
		return cli.NewExitError("missing --to", 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, err := connect(gctx, ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	var (
		env = c.env
		pc  = env.Config.ProtocolConfiguration
		rc  = env.Config.ApplicationConfiguration.RelayClient
	)
	if c.session.WrongNetwork {
		return cli.NewExitError(fmt.Sprintf("wallet is on chain %d, switch it to %s (%d) first",
			c.session.ChainID, pc.ChainName, pc.ChainID), 1)
	}
	amount, err := flags.AmountFromContext(ctx, "amount", env.Decimals())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	endpoint := ctx.String("relay")
	if endpoint == "" {
		endpoint = rc.Endpoint
	}
	if endpoint == "" {
		return cli.NewExitError("no relay endpoint specified, use '--relay' or set it in the configuration", 1)
	}
	sender := NewGaslessSender(env, c.provider, endpoint)
	a, err := sender.Send(gctx, c.session.Address, to, amount)
	if err != nil {
		return cli.NewExitError(describe(err), 1)
	}
	if a.Degraded {
		fmt.Fprintln(ctx.App.ErrWriter, "Warning: nonce couldn't be read, the relay may reject the transfer")
	}
	fmt.Fprintln(ctx.App.Writer, a.TxHash.Hex())
	return nil
}

// NewGaslessSender returns gasless.Sender signing transfers with the wallet
// and submitting them to the relay at the endpoint.
func NewGaslessSender(env *options.Env, p wallet.Provider, endpoint string) *gasless.Sender {
	pc := env.Config.ProtocolConfiguration
	return gasless.NewSender(gasless.Config{
		Domain:   pc.Domain(),
		Validity: pc.TransferValidity,
	}, env.Token, metatransfer.NewReader(env.Invoker, pc.MetaTransfer), p,
		gasless.NewRelayClient(endpoint, gasless.RelayOptions{
			Timeout: env.Config.ApplicationConfiguration.RelayClient.Timeout,
		}), env.Log)
}
