/*
Package dashboard contains 'dashboard' and 'report' commands presenting
EcoToken state of the wallet account.
*/
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecotrack/eco-go/cli/cmdargs"
	"github.com/ecotrack/eco-go/cli/options"
	"github.com/ecotrack/eco-go/pkg/core/state"
	"github.com/ecotrack/eco-go/pkg/dashboard"
	"github.com/ecotrack/eco-go/pkg/session"
	"github.com/ecotrack/eco-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// eventsShown is the number of role change events shown to administrators.
const eventsShown = 20

var walletFlags = append(append([]cli.Flag{}, options.Wallet...), options.Bridge...)

// NewCommands returns 'dashboard' and 'report' commands.
func NewCommands() []cli.Command {
	dashboardFlags := append([]cli.Flag{
		cli.IntFlag{
			Name:  "width",
			Usage: "Width of panels",
			Value: dashboard.DefaultWidth,
		},
		cli.DurationFlag{
			Name:  "watch",
			Usage: "Redraw the dashboard with the given interval and on wallet changes until interrupted",
		},
	}, options.ConfigFlags...)
	dashboardFlags = append(dashboardFlags, options.RPC...)
	dashboardFlags = append(dashboardFlags, walletFlags...)

	reportFlags := append([]cli.Flag{
		cli.StringFlag{
			Name:  "format, f",
			Usage: "Report format: md or json",
			Value: "md",
		},
		cli.StringFlag{
			Name:  "out, o",
			Usage: "Write the report to the file instead of the standard output",
		},
	}, options.ChainFlags...)
	reportFlags = append(reportFlags, options.Wallet...)
	return []cli.Command{
		{
			Name:      "dashboard",
			Usage:     "Show panels available to the wallet account",
			UsageText: "eco-go dashboard [--bridge | --wallet <file>] [--watch <interval>]",
			Description: `Connects the wallet (a local keystore or the external one via the
   bridge) and shows panels available to its roles. Without a wallet only
   the connection panel is shown.`,
			Action: showDashboard,
			Flags:  dashboardFlags,
		},
		{
			Name:      "report",
			Usage:     "Generate carbon reduction compliance report of the manufacturer",
			UsageText: "eco-go report [--format md|json] [--out <file>] [--wallet <file>] [<address>]",
			Action:    makeReport,
			Flags:     reportFlags,
		},
	}
}

// wantsWallet checks whether any wallet is specified.
func wantsWallet(ctx *cli.Context, env *options.Env) bool {
	return ctx.String("wallet") != "" || ctx.String("wallet-config") != "" ||
		ctx.Bool("bridge") || ctx.String("bridge-endpoint") != "" ||
		env.Config.ApplicationConfiguration.Wallet.Path != ""
}

// Collect builds the dashboard state for the session (nil if there is no
// wallet connected). Data is reread through the cache, slices that can't be
// read are left stale and errors are returned joined along with the state.
func Collect(env *options.Env, s *session.Session) (dashboard.State, error) {
	pc := env.Config.ProtocolConfiguration
	st := dashboard.State{
		Session:  s,
		Network:  pc.ChainName,
		Symbol:   env.Symbol(),
		Decimals: env.Decimals(),
	}
	if s == nil {
		return st, nil
	}
	var errs []error
	set, err := env.Cache.RefreshRoles(s.Address)
	if err != nil {
		errs = append(errs, err)
	}
	st.Roles = set
	if b, err := env.Token.BalanceOf(s.Address); err != nil {
		errs = append(errs, err)
	} else {
		st.Balance = b
	}
	if set.IsManufacturer {
		st.Actions, err = env.Cache.LoadActions(s.Address)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if set.IsAdmin || set.IsAuditor {
		users, err := env.Cache.LoadAllUsers(s.Address)
		if err != nil {
			errs = append(errs, err)
		}
		if set.IsAdmin {
			st.Users = users
			st.Events = env.Cache.RecentRoleEvents(eventsShown)
		}
		if set.IsAuditor {
			st.Pending = pendingActions(env, users)
		}
	}
	return st, errors.Join(errs...)
}

// pendingActions returns unverified actions of manufacturers among users.
// Actions are taken from the cache, LoadAllUsers has just reloaded them.
func pendingActions(env *options.Env, users []state.UserInfo) []dashboard.PendingAction {
	var res []dashboard.PendingAction
	for _, u := range users {
		if !u.Roles.IsManufacturer {
			continue
		}
		acts, _ := env.Cache.Actions(u.Address)
		for _, a := range acts {
			if !a.Verified {
				res = append(res, dashboard.PendingAction{Manufacturer: u.Address, Action: a})
			}
		}
	}
	return res
}

func showDashboard(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	watch := ctx.Duration("watch")
	var (
		gctx   context.Context
		cancel func()
	)
	if watch > 0 {
		gctx, cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	} else {
		gctx, cancel = options.GetTimeoutContext(ctx)
	}
	defer cancel()

	env, err := options.NewEnv(gctx, ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	var (
		r       = dashboard.NewRenderer(dashboard.DefaultTheme, ctx.Int("width"))
		manager *session.Manager
		notice  dashboard.Notice
	)
	if wantsWallet(ctx, env) {
		var p wallet.Provider
		p, err = options.GetProvider(gctx, ctx, env.Config, env.Log)
		if err == nil {
			defer p.Close()
			manager = session.NewManager(p, env.Client, env.Config.ProtocolConfiguration.ChainParams(), env.Log)
			_, err = manager.Connect(gctx)
		}
		if err != nil {
			env.Log.Warn("wallet is not connected", zap.Error(err))
			notice = dashboard.NoticeFor(err)
			if notice.Level == dashboard.Silent {
				notice = dashboard.Notice{Level: dashboard.Warning, Text: err.Error()}
			}
		}
	}
	draw := func() {
		var s *session.Session
		if manager != nil {
			s = manager.Current()
		}
		st, err := Collect(env, s)
		if err != nil {
			env.Log.Warn("dashboard data is incomplete", zap.Error(err))
			if n := dashboard.NoticeFor(err); n.Level != dashboard.Silent {
				notice = n
			}
		}
		fmt.Fprintln(ctx.App.Writer, r.Render(st, dashboard.Select(st)))
		if text := r.RenderNotice(notice); text != "" {
			fmt.Fprintln(ctx.App.Writer, text)
		}
		notice = dashboard.Notice{}
	}
	draw()
	if watch <= 0 {
		return nil
	}

	changes := make(chan struct{}, 1)
	if manager != nil {
		manager.OnChange(func(*session.Session) {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
		go func() {
			if err := manager.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				env.Log.Warn("wallet event processing stopped", zap.Error(err))
			}
		}()
	}
	ticker := time.NewTicker(watch)
	defer ticker.Stop()
	for {
		select {
		case <-gctx.Done():
			return nil
		case <-changes:
		case <-ticker.C:
			if manager != nil {
				if _, err := manager.Refresh(); err != nil {
					env.Log.Debug("failed to refresh session", zap.Error(err))
				}
			}
		}
		draw()
	}
}

func makeReport(ctx *cli.Context) error {
	if len(ctx.Args()) > 1 {
		return cli.NewExitError("expected at most one argument: [<address>]", 1)
	}
	format, err := dashboard.ParseReportFormat(ctx.String("format"))
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

	w := ctx.App.Writer
	if out := ctx.String("out"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer f.Close()
		w = f
	}
	if err := dashboard.Report(w, d, format); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}
