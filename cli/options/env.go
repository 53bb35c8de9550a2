package options

import (
	"context"

	"github.com/ecotrack/eco-go/pkg/cache"
	"github.com/ecotrack/eco-go/pkg/config"
	"github.com/ecotrack/eco-go/pkg/rpcclient"
	"github.com/ecotrack/eco-go/pkg/rpcclient/actor"
	"github.com/ecotrack/eco-go/pkg/rpcclient/ecotoken"
	"github.com/ecotrack/eco-go/pkg/rpcclient/invoker"
	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFilterKey is the cli.App metadata key of the FilterFunc applied to the
// logger created by NewEnv.
const LogFilterKey = "logFilter"

// ChainFlags is a set of flags for commands reading the chain.
var ChainFlags = append(append([]cli.Flag{}, ConfigFlags...), append(RPC, Historic)...)

// Env holds the objects commands working with EcoToken need.
type Env struct {
	Config  config.Config
	Log     *zap.Logger
	Client  *rpcclient.Client
	Invoker *invoker.Invoker
	Token   *ecotoken.Reader
	Cache   *cache.Cache

	logCloser func() error
}

// NewEnv loads the configuration, sets up logging and connects to the chain
// node. Env must be closed after use.
func NewEnv(gctx context.Context, ctx *cli.Context) (*Env, error) {
	cfg, err := GetConfigFromContext(ctx)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	log, _, logCloser, err := HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	if f, ok := ctx.App.Metadata[LogFilterKey].(FilterFunc); ok {
		log = log.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return NewFilteringCore(c, f)
		}))
	}
	e := &Env{Config: cfg, Log: log, logCloser: logCloser}
	c, ec := GetRPCClient(gctx, ctx, cfg.ApplicationConfiguration.RPCClient)
	if ec != nil {
		e.Close()
		return nil, ec
	}
	e.Client = c
	e.Invoker, ec = GetInvoker(c, ctx, nil)
	if ec != nil {
		e.Close()
		return nil, ec
	}
	e.Token = ecotoken.NewReader(e.Invoker, cfg.ProtocolConfiguration.EcoToken)
	e.Cache, err = cache.New(c, cache.Config{
		Token:     cfg.ProtocolConfiguration.EcoToken,
		FromBlock: cfg.ProtocolConfiguration.RoleEventsFromBlock,
		UsersSize: cfg.ApplicationConfiguration.Cache.UsersSize,
	}, log)
	if err != nil {
		e.Close()
		return nil, cli.NewExitError(err, 1)
	}
	return e, nil
}

// Decimals returns the number of token decimals.
func (e *Env) Decimals() int {
	return e.Config.ProtocolConfiguration.TokenDecimals
}

// Symbol returns the token symbol, "ECO" is used if it can't be read.
func (e *Env) Symbol() string {
	s, err := e.Token.Symbol()
	if err != nil || s == "" {
		e.Log.Debug("can't get token symbol", zap.Error(err))
		return "ECO"
	}
	return s
}

// Contract returns EcoToken contract bound to the account from the wallet
// flags (or the configured wallet) along with its actor.
func (e *Env) Contract(ctx *cli.Context) (*ecotoken.Contract, *actor.Actor, error) {
	acc, err := GetAccFromContext(ctx, e.Config.ApplicationConfiguration.Wallet)
	if err != nil {
		return nil, nil, cli.NewExitError(err, 1)
	}
	return e.ContractFor(acc)
}

// ContractFor returns EcoToken contract bound to the given account.
func (e *Env) ContractFor(acc *wallet.Account) (*ecotoken.Contract, *actor.Actor, error) {
	act, err := actor.New(e.Client, acc)
	if err != nil {
		return nil, nil, cli.NewExitError(err, 1)
	}
	return ecotoken.New(act, e.Config.ProtocolConfiguration.EcoToken), act, nil
}

// Close releases Env resources.
func (e *Env) Close() {
	if e.Client != nil {
		e.Client.Close()
	}
	_ = e.Log.Sync()
	if e.logCloser != nil {
		_ = e.logCloser()
	}
}
