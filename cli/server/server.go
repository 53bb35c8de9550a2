/*
Package server contains the command running the gasless transfer relay
service.
*/
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ecotrack/eco-go/cli/cmdargs"
	"github.com/ecotrack/eco-go/cli/options"
	"github.com/ecotrack/eco-go/pkg/config"
	"github.com/ecotrack/eco-go/pkg/encoding/fixedn"
	"github.com/ecotrack/eco-go/pkg/rpcclient"
	"github.com/ecotrack/eco-go/pkg/rpcclient/actor"
	"github.com/ecotrack/eco-go/pkg/rpcclient/metatransfer"
	"github.com/ecotrack/eco-go/pkg/services/metrics"
	"github.com/ecotrack/eco-go/pkg/services/relay"
	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewCommands returns 'relay' command.
func NewCommands() []cli.Command {
	flags := append([]cli.Flag{}, options.ConfigFlags...)
	flags = append(flags, options.RPC[0])
	return []cli.Command{
		{
			Name:      "relay",
			Usage:     "Start the gasless transfer relay service",
			UsageText: "eco-go relay [--config-path path] [-p/-t] [--config-file file] [-d] [-r endpoint]",
			Description: `Runs the HTTP service accepting signed transfer requests on
   ` + relay.Path + ` and executing them on behalf of the relayer account
   configured in the Relay section. Prometheus and pprof services are started
   if enabled. SIGHUP reloads the log level from the configuration.`,
			Action: startRelay,
			Flags:  flags,
		},
	}
}

// newGraceContext returns a context that is canceled on SIGINT or SIGTERM.
func newGraceContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()
	return ctx
}

func startRelay(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}

	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, logLevel, logCloser, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if logCloser != nil {
		defer func() { _ = logCloser() }()
	}
	defer func() { _ = log.Sync() }()

	grace, cancel := context.WithCancel(newGraceContext())
	defer cancel()

	errChan := make(chan error, 1)
	srv, c, err := initRelay(grace, ctx, cfg, log, errChan)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer c.Close()

	prometheus := metrics.NewPrometheusService(cfg.ApplicationConfiguration.Prometheus, log)
	pprof := metrics.NewPprofService(cfg.ApplicationConfiguration.Pprof, log)
	if err := prometheus.Start(); err != nil {
		return cli.NewExitError(fmt.Errorf("failed to start Prometheus service: %w", err), 1)
	}
	if err := pprof.Start(); err != nil {
		prometheus.ShutDown()
		return cli.NewExitError(fmt.Errorf("failed to start pprof service: %w", err), 1)
	}
	srv.Start()

	sighupCh := make(chan os.Signal, 1)
	signal.Notify(sighupCh, sighup)

	var shutdownErr error
Main:
	for {
		select {
		case err := <-errChan:
			shutdownErr = fmt.Errorf("relay error: %w", err)
			cancel()
		case <-sighupCh:
			reloadLogLevel(ctx, log, logLevel)
		case <-grace.Done():
			signal.Stop(sighupCh)
			break Main
		}
	}
	srv.Shutdown()
	pprof.ShutDown()
	prometheus.ShutDown()

	if shutdownErr != nil {
		return cli.NewExitError(shutdownErr, 1)
	}
	return nil
}

func reloadLogLevel(ctx *cli.Context, log *zap.Logger, logLevel *zap.AtomicLevel) {
	newCfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		log.Warn("can't reread the config file, signal ignored", zap.Error(err))
		return
	}
	if ctx.Bool("debug") {
		return
	}
	lvl := zapcore.InfoLevel
	if newCfg.ApplicationConfiguration.LogLevel != "" {
		lvl, err = zapcore.ParseLevel(newCfg.ApplicationConfiguration.LogLevel)
		if err != nil {
			log.Warn("wrong LogLevel in ApplicationConfiguration, signal ignored", zap.Error(err))
			return
		}
	}
	log.Info("SIGHUP received, setting log level", zap.Stringer("level", lvl))
	logLevel.SetLevel(lvl)
}

// initRelay connects to the chain and creates the relay server paying for
// transfers from the configured relayer account.
func initRelay(gctx context.Context, ctx *cli.Context, cfg config.Config, log *zap.Logger, errChan chan error) (*relay.Server, *rpcclient.Client, error) {
	relayCfg := cfg.ApplicationConfiguration.Relay
	if !relayCfg.Enabled {
		return nil, nil, errors.New("relay service is disabled in the configuration")
	}
	acc, err := wallet.NewAccountFromKeystoreFile(relayCfg.Wallet.Path, relayCfg.Wallet.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open relayer wallet: %w", err)
	}
	c, ec := options.GetRPCClient(gctx, ctx, cfg.ApplicationConfiguration.RPCClient)
	if ec != nil {
		return nil, nil, ec
	}
	act, err := actor.NewTuned(c, acc, actor.Options{
		WaitBlocks:   relayCfg.WaitBlocks,
		PollInterval: relayCfg.PollInterval,
	})
	if err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("failed to create relayer actor: %w", err)
	}
	if act.ChainID() != cfg.ProtocolConfiguration.ChainID {
		c.Close()
		return nil, nil, fmt.Errorf("node is on chain %d, %d is configured", act.ChainID(), cfg.ProtocolConfiguration.ChainID)
	}
	balance, err := act.Balance()
	if err != nil {
		log.Warn("can't get relayer balance", zap.Error(err))
	} else {
		log.Info("relayer account",
			zap.Stringer("address", acc.Address),
			zap.String("balance", fixedn.ToString(balance, int(cfg.ProtocolConfiguration.NativeCurrency.Decimals))))
	}
	executor := metatransfer.NewExecutor(act, cfg.ProtocolConfiguration.MetaTransfer)
	return relay.New(relayCfg, cfg.ProtocolConfiguration.Domain(), executor, log, errChan), c, nil
}
