/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/ecotrack/eco-go/cli/input"
	"github.com/ecotrack/eco-go/pkg/config"
	"github.com/ecotrack/eco-go/pkg/rpcclient"
	"github.com/ecotrack/eco-go/pkg/rpcclient/actor"
	"github.com/ecotrack/eco-go/pkg/rpcclient/invoker"
	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultTimeout is the default timeout used for RPC requests.
	DefaultTimeout = 10 * time.Second
	// DefaultAwaitableTimeout is the default timeout used for commands that
	// wait for transactions to be included or for the user to confirm
	// something in the wallet.
	DefaultAwaitableTimeout = 3 * time.Minute
)

// RPCEndpointFlag is a long flag name for an RPC endpoint. It can be used to
// check for flag presence in the context.
const RPCEndpointFlag = "rpc-endpoint"

// Wallet is a set of flags used for wallet operations.
var Wallet = []cli.Flag{cli.StringFlag{
	Name:  "wallet, w",
	Usage: "keystore file to use to get the key for signing; conflicts with --wallet-config flag",
}, cli.StringFlag{
	Name:  "wallet-config",
	Usage: "path to wallet config to use to get the key for signing; conflicts with --wallet flag"},
}

// Bridge is a set of flags for choosing the external wallet.
var Bridge = []cli.Flag{
	cli.BoolFlag{
		Name:  "bridge, b",
		Usage: "use the external wallet bridge from the configuration instead of a local keystore",
	},
	cli.StringFlag{
		Name:  "bridge-endpoint",
		Usage: "external wallet bridge websocket endpoint (overrides configuration, implies --bridge)",
	},
	Force,
}

// Force is a flag disabling interactive confirmations.
var Force = cli.BoolFlag{
	Name:  "force",
	Usage: "do not ask for a confirmation before signing",
}

// Network is a set of flags for choosing the network to operate on
// (privnet/testnet).
var Network = []cli.Flag{
	cli.BoolFlag{Name: "privnet, p", Usage: "use private network configuration (if --config-file option is not specified)"},
	cli.BoolFlag{Name: "testnet, t", Usage: "use testnet network configuration (if --config-file option is not specified)"},
}

// RPC is a set of flags used for RPC connections (endpoint and timeout).
var RPC = []cli.Flag{
	cli.StringFlag{
		Name:  RPCEndpointFlag + ", r",
		Usage: "RPC node address (overrides configuration)",
	},
	cli.DurationFlag{
		Name:  "timeout, s",
		Value: DefaultTimeout,
		Usage: "Timeout for the operation",
	},
}

// Historic is a flag for commands that can perform historic invocations.
var Historic = cli.StringFlag{
	Name:  "historic",
	Usage: "Use historic state (block height)",
}

// Config is a flag for commands that use node configuration.
var Config = cli.StringFlag{
	Name:  "config-path",
	Usage: "path to directory with per-network configuration files (may be overridden by --config-file option for the configuration file)",
}

// ConfigFile is a flag for commands that use node configuration and provide
// path to the specific config file instead of config path.
var ConfigFile = cli.StringFlag{
	Name:  "config-file",
	Usage: "path to the configuration file (overrides --config-path option)",
}

// Debug is a flag for commands that allow debug mode usage.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging (LOTS of output, overrides configuration)",
}

// ConfigFlags is a set of flags every configuration-dependent command has.
var ConfigFlags = append([]cli.Flag{Config, ConfigFile, Debug}, Network...)

var errNoEndpoint = errors.New("no RPC endpoint specified, use option '--" + RPCEndpointFlag + "' or '-r' or set it in the configuration")
var errInvalidHistoric = errors.New("invalid 'historic' parameter, not a block number")
var errNoWallet = errors.New("no wallet parameter found, specify it with the '--wallet' or '-w' flag or specify wallet config file with the '--wallet-config' flag")
var errConflictingWalletFlags = errors.New("--wallet flag conflicts with --wallet-config flag, please, provide one of them to specify wallet location")
var errNoBridge = errors.New("no wallet bridge endpoint specified, use '--bridge-endpoint' or set it in the configuration")

// GetNetwork examines Context's flags and returns the appropriate network
// name. It defaults to privnet if no flags are given.
func GetNetwork(ctx *cli.Context) string {
	var net = config.DefaultNetwork
	if ctx.Bool("testnet") {
		net = "testnet"
	}
	return net
}

// GetTimeoutContext returns a context.Context with the default or a user-set timeout.
func GetTimeoutContext(ctx *cli.Context) (context.Context, func()) {
	dur := ctx.Duration("timeout")
	if dur == 0 {
		dur = DefaultTimeout
	}
	if !ctx.IsSet("timeout") && ctx.Bool("await") {
		dur = DefaultAwaitableTimeout
	}
	return context.WithTimeout(context.Background(), dur)
}

// GetConfigFromContext looks at the path and the mode flags in the given config and
// returns an appropriate config.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	if configFile := ctx.String("config-file"); len(configFile) != 0 {
		return config.LoadFile(configFile)
	}
	var configPath = config.DefaultConfigPath
	if argCp := ctx.String("config-path"); argCp != "" {
		configPath = argCp
	}
	return config.Load(configPath, GetNetwork(ctx))
}

// GetRPCClient returns an RPC client instance for the given Context. The
// endpoint flag takes precedence over the configured one.
func GetRPCClient(gctx context.Context, ctx *cli.Context, cfg config.RPCClient) (*rpcclient.Client, cli.ExitCoder) {
	endpoint := ctx.String(RPCEndpointFlag)
	if len(endpoint) == 0 {
		endpoint = cfg.Endpoint
	}
	if len(endpoint) == 0 {
		return nil, cli.NewExitError(errNoEndpoint, 1)
	}
	c, err := rpcclient.New(gctx, endpoint, rpcclient.Options{
		DialTimeout:     cfg.DialTimeout,
		RequestTimeout:  cfg.RequestTimeout,
		MaxConnsPerHost: cfg.MaxConnsPerHost,
	})
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	return c, nil
}

// GetInvoker returns an invoker using the given RPC client, context and
// sender. It parses "--historic" parameter to adjust it.
func GetInvoker(c invoker.RPCInvoke, ctx *cli.Context, from *common.Address) (*invoker.Invoker, cli.ExitCoder) {
	historic := ctx.String("historic")
	if historic == "" {
		return invoker.New(c, from), nil
	}
	if index, err := strconv.ParseUint(historic, 10, 64); err == nil {
		return invoker.NewHistoricAtHeight(index, c, from), nil
	}
	return nil, cli.NewExitError(errInvalidHistoric, 1)
}

// GetRPCWithActor returns an RPC client instance and Actor instance for the
// given context and account.
func GetRPCWithActor(gctx context.Context, ctx *cli.Context, cfg config.RPCClient, acc *wallet.Account) (*rpcclient.Client, *actor.Actor, cli.ExitCoder) {
	c, err := GetRPCClient(gctx, ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	a, actorErr := actor.New(c, acc)
	if actorErr != nil {
		c.Close()
		return nil, nil, cli.NewExitError(fmt.Errorf("failed to create Actor: %w", actorErr), 1)
	}
	return c, a, nil
}

var (
	// _winfileSinkRegistered denotes whether zap has registered
	// user-supplied factory for all sinks with `winfile`-prefixed scheme.
	_winfileSinkRegistered bool
	_winfileSinkCloser     func() error
)

// HandleLoggingParams reads logging parameters.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir and a file for logging.
// If logPath is configured on Windows -- function returns closer to be
// able to close sink for the opened log output file.
func HandleLoggingParams(debug bool, cfg config.ApplicationConfiguration) (*zap.Logger, *zap.AtomicLevel, func() error, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	if logPath := cfg.LogPath; logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return nil, nil, nil, fmt.Errorf("could not create dir for logger: %w", err)
		}

		if runtime.GOOS == "windows" {
			if !_winfileSinkRegistered {
				// See https://github.com/uber-go/zap/issues/621.
				err := zap.RegisterSink("winfile", func(u *url.URL) (zap.Sink, error) {
					if u.User != nil {
						return nil, fmt.Errorf("user and password not allowed with file URLs: got %v", u)
					}
					if u.Fragment != "" {
						return nil, fmt.Errorf("fragments not allowed with file URLs: got %v", u)
					}
					if u.RawQuery != "" {
						return nil, fmt.Errorf("query parameters not allowed with file URLs: got %v", u)
					}
					// Error messages are better if we check hostname and port separately.
					if u.Port() != "" {
						return nil, fmt.Errorf("ports not allowed with file URLs: got %v", u)
					}
					if hn := u.Hostname(); hn != "" && hn != "localhost" {
						return nil, fmt.Errorf("file URLs must leave host empty or use localhost: got %v", u)
					}
					switch u.Path {
					case "stdout":
						return os.Stdout, nil
					case "stderr":
						return os.Stderr, nil
					}
					f, err := os.OpenFile(u.Path[1:], // Remove leading slash left after url.Parse.
						os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
					_winfileSinkCloser = func() error {
						_winfileSinkCloser = nil
						return f.Close()
					}
					return f, err
				})
				if err != nil {
					return nil, nil, nil, fmt.Errorf("failed to register windows-specific sinc: %w", err)
				}
				_winfileSinkRegistered = true
			}
			logPath = "winfile:///" + logPath
		}

		cc.OutputPaths = []string{logPath}
	}

	log, err := cc.Build()
	return log, &cc.Level, _winfileSinkCloser, err
}

// GetAccFromContext returns the account to sign with. The keystore is taken
// from --wallet or --wallet-config flags and from the configured wallet if
// none is given. The password is requested from the user if it's not known.
func GetAccFromContext(ctx *cli.Context, cfg config.Wallet) (*wallet.Account, error) {
	wPath := ctx.String("wallet")
	walletConfigPath := ctx.String("wallet-config")
	if len(wPath) != 0 && len(walletConfigPath) != 0 {
		return nil, errConflictingWalletFlags
	}
	var pass *string
	switch {
	case len(walletConfigPath) != 0:
		wc, err := ReadWalletConfig(walletConfigPath)
		if err != nil {
			return nil, err
		}
		wPath = wc.Path
		pass = &wc.Password
	case len(wPath) == 0 && len(cfg.Path) != 0:
		wPath = cfg.Path
		if cfg.Password != "" {
			pass = &cfg.Password
		}
	}
	if len(wPath) == 0 {
		return nil, errNoWallet
	}
	if pass == nil {
		rawPass, err := input.ReadPassword(fmt.Sprintf("Enter %s password > ", filepath.Base(wPath)))
		if err != nil {
			return nil, fmt.Errorf("Error reading password: %w", err)
		}
		pass = &rawPass
	}
	return wallet.NewAccountFromKeystoreFile(wPath, *pass)
}

// GetProvider returns the wallet to work with: the external one if --bridge
// or --bridge-endpoint is given and a local keystore-backed one otherwise.
// Local wallet requests are confirmed interactively unless --force is set.
func GetProvider(gctx context.Context, ctx *cli.Context, cfg config.Config, log *zap.Logger) (wallet.Provider, error) {
	app := cfg.ApplicationConfiguration
	if endpoint := ctx.String("bridge-endpoint"); endpoint != "" || ctx.Bool("bridge") {
		if endpoint == "" {
			endpoint = app.WalletBridge.Endpoint
		}
		if endpoint == "" {
			return nil, errNoBridge
		}
		return wallet.NewBridgeProvider(gctx, endpoint, wallet.BridgeOptions{
			DialTimeout: app.WalletBridge.DialTimeout,
			Log:         log,
		})
	}
	acc, err := GetAccFromContext(ctx, app.Wallet)
	if err != nil {
		return nil, err
	}
	confirm := wallet.AutoConfirm
	if !ctx.Bool("force") {
		confirm = TerminalConfirm(ctx.App.Writer)
	}
	return wallet.NewLocalProvider(cfg.ProtocolConfiguration.ChainID, confirm, acc), nil
}

// ReadWalletConfig reads wallet config from the given path.
func ReadWalletConfig(configPath string) (*config.Wallet, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read wallet config: %w", err)
	}

	cfg := &config.Wallet{}

	err = yaml.Unmarshal(configData, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet config YAML: %w", err)
	}
	if cfg.Path == "" {
		return nil, errors.New("wallet config has no keystore path")
	}
	return cfg, nil
}
