/*
Package console implements an interactive EcoToken shell. All commands
entered in it share one chain connection, one wallet session and one signing
account.
*/
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/ecotrack/eco-go/cli/cmdargs"
	"github.com/ecotrack/eco-go/cli/eco"
	"github.com/ecotrack/eco-go/cli/options"
	"github.com/ecotrack/eco-go/pkg/dashboard"
	"github.com/ecotrack/eco-go/pkg/encoding/address"
	"github.com/ecotrack/eco-go/pkg/session"
	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/kballard/go-shellquote"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	envKey              = "env"
	managerKey          = "manager"
	providerKey         = "provider"
	writerKey           = "writer"
	exitFuncKey         = "exitFunc"
	readlineInstanceKey = "readlineKey"
	forceKey            = "force"
	relayKey            = "relay"
	widthKey            = "width"
)

var completer *readline.PrefixCompleter

func init() {
	var pcItems []readline.PrefixCompleterInterface
	for _, c := range commands {
		if !c.Hidden {
			var flagsItems []readline.PrefixCompleterInterface
			for _, f := range c.Flags {
				names := strings.SplitN(f.GetName(), ", ", 2) // only long name will be offered
				flagsItems = append(flagsItems, readline.PcItem("--"+names[0]))
			}
			pcItems = append(pcItems, readline.PcItem(c.Name, flagsItems...))
		}
	}
	completer = readline.NewPrefixCompleter(pcItems...)
}

// Various errors.
var (
	ErrNoSession = errors.New("no wallet connected")
	ErrNoAccount = errors.New("no signing account, start the console with --wallet")
	ErrNoRelay   = errors.New("no relay endpoint specified, use '--relay' or set it in the configuration")
)

// NewCommands returns 'console' command.
func NewCommands() []cli.Command {
	flags := append([]cli.Flag{
		cli.StringFlag{
			Name:  "relay",
			Usage: "Relay service URL (overrides configuration)",
		},
		cli.IntFlag{
			Name:  "width",
			Usage: "Width of dashboard panels",
			Value: dashboard.DefaultWidth,
		},
	}, options.ConfigFlags...)
	flags = append(flags, options.RPC...)
	flags = append(flags, options.Wallet...)
	flags = append(flags, options.Bridge...)
	return []cli.Command{{
		Name:      "console",
		Usage:     "Start an interactive EcoToken shell",
		UsageText: "eco-go console [--bridge] [--wallet <file>] [--relay <url>]",
		Description: `Opens the shell working with the configured network. The wallet session
   is established with the external wallet if --bridge is given and with the
   keystore account otherwise, the keystore account (if any) also signs
   transactions. Only warnings and errors are logged unless --debug is set.
   Type 'help' in the shell to get the list of commands.`,
		Action: startConsole,
		Flags:  flags,
	}}
}

func startConsole(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	if ctx.App.Metadata == nil {
		ctx.App.Metadata = make(map[string]any)
	}
	if !ctx.Bool("debug") {
		ctx.App.Metadata[options.LogFilterKey] = options.MinLevel(zapcore.WarnLevel)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	env, err := options.NewEnv(gctx, ctx)
	cancel()
	if err != nil {
		return err
	}

	cfg := Config{
		Env:   env,
		Force: ctx.Bool("force"),
		Relay: ctx.String("relay"),
		Width: ctx.Int("width"),
	}
	bridge := ctx.Bool("bridge") || ctx.String("bridge-endpoint") != ""
	if bridge {
		gctx, cancel := context.WithTimeout(context.Background(), options.DefaultTimeout)
		p, err := options.GetProvider(gctx, ctx, env.Config, env.Log)
		cancel()
		if err != nil {
			env.Close()
			return cli.NewExitError(err, 1)
		}
		cfg.Provider = p
	}
	if !bridge || ctx.String("wallet") != "" || ctx.String("wallet-config") != "" {
		acc, err := options.GetAccFromContext(ctx, env.Config.ApplicationConfiguration.Wallet)
		switch {
		case err == nil:
			cfg.Account = acc
		case bridge || ctx.String("wallet") != "" || ctx.String("wallet-config") != "":
			if cfg.Provider != nil {
				_ = cfg.Provider.Close()
			}
			env.Close()
			return cli.NewExitError(err, 1)
		default:
			env.Log.Debug("no keystore account", zap.Error(err))
		}
	}

	c, err := New(cfg, os.Exit, &readline.Config{})
	if err != nil {
		if cfg.Provider != nil {
			_ = cfg.Provider.Close()
		}
		env.Close()
		return cli.NewExitError(err, 1)
	}
	defer c.Close()
	return c.Run(context.Background())
}

// Config holds console dependencies. Only Env is mandatory.
type Config struct {
	Env *options.Env
	// Account signs transactions. It also backs the wallet session unless
	// Provider is given.
	Account *wallet.Account
	// Provider is the external wallet.
	Provider wallet.Provider
	// Force disables confirmations.
	Force bool
	// Relay overrides the configured relay endpoint.
	Relay string
	Width int
}

// Console is an interactive EcoToken shell.
type Console struct {
	shell *cli.App
}

// New returns a new Console instance. Env and wallet resources from cfg are
// released when the console exits.
func New(cfg Config, onExit func(int), c *readline.Config) (*Console, error) {
	if c.AutoComplete == nil {
		// Autocomplete commands/flags on TAB.
		c.AutoComplete = completer
	}
	l, err := readline.NewEx(c)
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %w", err)
	}
	ctl := cli.NewApp()
	ctl.Name = "EcoGo console"

	// Note: need to set empty `ctl.HelpName` and `ctl.UsageText`, otherwise
	// `filepath.Base(os.Args[0])` will be used which is `eco-go`.
	ctl.HelpName = ""
	ctl.UsageText = ""

	ctl.Writer = l.Stdout()
	ctl.ErrWriter = l.Stderr()
	ctl.Usage = "Interactive EcoToken shell"

	// Override default error handler in order not to exit on error.
	ctl.ExitErrHandler = func(context *cli.Context, err error) {}

	ctl.Commands = commands

	env := cfg.Env
	if cfg.Relay == "" {
		cfg.Relay = env.Config.ApplicationConfiguration.RelayClient.Endpoint
	}
	if cfg.Width <= 0 {
		cfg.Width = dashboard.DefaultWidth
	}
	ctl.Metadata = map[string]any{
		envKey:              env,
		readlineInstanceKey: l,
		forceKey:            cfg.Force,
		relayKey:            cfg.Relay,
		widthKey:            cfg.Width,
	}

	p := cfg.Provider
	if p == nil && cfg.Account != nil {
		approve := wallet.AutoConfirm
		if !cfg.Force {
			approve = func(_ context.Context, req wallet.ConfirmRequest) bool {
				options.DescribeRequest(ctl.Writer, req)
				return ask(ctl) == nil
			}
		}
		p = wallet.NewLocalProvider(env.Config.ProtocolConfiguration.ChainID, approve, cfg.Account)
	}
	if p != nil {
		m := session.NewManager(p, env.Client, env.Config.ProtocolConfiguration.ChainParams(), env.Log)
		m.OnChange(func(*session.Session) { changePrompt(ctl) })
		ctl.Metadata[providerKey] = p
		ctl.Metadata[managerKey] = m
	}
	if cfg.Account != nil {
		w, err := eco.NewWriter(env, cfg.Account, func(what string) error {
			return confirm(ctl, what)
		})
		if err != nil {
			_ = l.Close()
			return nil, err
		}
		ctl.Metadata[writerKey] = w
	}

	ctl.Metadata[exitFuncKey] = func(code int) {
		if p != nil {
			_ = p.Close()
		}
		env.Close()
		onExit(code)
	}
	changePrompt(ctl)
	return &Console{shell: ctl}, nil
}

func getExitFuncFromContext(app *cli.App) func(int) {
	return app.Metadata[exitFuncKey].(func(int))
}

func getReadlineInstanceFromContext(app *cli.App) *readline.Instance {
	return app.Metadata[readlineInstanceKey].(*readline.Instance)
}

func getEnvFromContext(app *cli.App) *options.Env {
	return app.Metadata[envKey].(*options.Env)
}

// getManagerFromContext returns nil if there is no wallet.
func getManagerFromContext(app *cli.App) *session.Manager {
	m, _ := app.Metadata[managerKey].(*session.Manager)
	return m
}

func getProviderFromContext(app *cli.App) wallet.Provider {
	p, _ := app.Metadata[providerKey].(wallet.Provider)
	return p
}

func getWriterFromContext(app *cli.App) (*eco.Writer, error) {
	w, ok := app.Metadata[writerKey].(*eco.Writer)
	if !ok {
		return nil, ErrNoAccount
	}
	return w, nil
}

func getForceFromContext(app *cli.App) bool {
	return app.Metadata[forceKey].(bool)
}

func getRelayFromContext(app *cli.App) string {
	return app.Metadata[relayKey].(string)
}

func getWidthFromContext(app *cli.App) int {
	return app.Metadata[widthKey].(int)
}

// getSessionFromContext returns the current wallet session.
func getSessionFromContext(app *cli.App) (*session.Session, error) {
	m := getManagerFromContext(app)
	if m == nil {
		return nil, ErrNoSession
	}
	s := m.Current()
	if s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}

func changePrompt(app *cli.App) {
	l := getReadlineInstanceFromContext(app)
	s, err := getSessionFromContext(app)
	if err != nil {
		l.SetPrompt("\033[32mECO >\033[0m ")
		return
	}
	mark := ""
	if s.WrongNetwork {
		mark = " (wrong network)"
	}
	l.SetPrompt(fmt.Sprintf("\033[32mECO %s%s >\033[0m ", address.Short(s.Address), mark))
}

// confirm prints the description of the operation and asks the user to
// approve it unless confirmations are disabled.
func confirm(app *cli.App, what string) error {
	if getForceFromContext(app) {
		return nil
	}
	fmt.Fprintln(app.Writer, what)
	return ask(app)
}

func ask(app *cli.App) error {
	l := getReadlineInstanceFromContext(app)
	defer changePrompt(app)
	l.SetPrompt("Approve? [y/N] > ")
	line, err := l.Readline()
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	}
	return eco.ErrCancelled
}

// Run connects the wallet (if any) and executes commands read from the
// input until it ends or 'exit' is entered.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if m := getManagerFromContext(c.shell); m != nil {
		cctx, ccancel := context.WithTimeout(ctx, options.DefaultAwaitableTimeout)
		_, err := m.Connect(cctx)
		ccancel()
		if err != nil {
			writeErr(c.shell.ErrWriter, fmt.Errorf("wallet is not connected: %w", err))
		}
		go func() {
			if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				getEnvFromContext(c.shell).Log.Warn("wallet event processing stopped", zap.Error(err))
			}
		}()
	}
	l := getReadlineInstanceFromContext(c.shell)
	for {
		line, err := l.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return nil // OK, stop execution.
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err) // Critical error, stop execution.
		}

		args, err := shellquote.Split(line)
		if err != nil {
			writeErr(c.shell.ErrWriter, fmt.Errorf("failed to parse arguments: %w", err))
			continue // Not a critical error, continue execution.
		}
		if len(args) == 0 {
			continue
		}

		err = c.shell.Run(append([]string{"eco"}, args...))
		if err != nil {
			writeErr(c.shell.ErrWriter, err) // Various command/flags parsing errors and execution errors.
		}
	}
}

// Close releases console resources without exiting the process.
func (c *Console) Close() {
	_ = getReadlineInstanceFromContext(c.shell).Close()
	if p := getProviderFromContext(c.shell); p != nil {
		_ = p.Close()
	}
	getEnvFromContext(c.shell).Close()
}

func writeErr(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s\n", err)
}
