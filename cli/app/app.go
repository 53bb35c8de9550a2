package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ecotrack/eco-go/cli/console"
	"github.com/ecotrack/eco-go/cli/dashboard"
	"github.com/ecotrack/eco-go/cli/eco"
	"github.com/ecotrack/eco-go/cli/query"
	"github.com/ecotrack/eco-go/cli/server"
	"github.com/ecotrack/eco-go/cli/wallet"
	"github.com/ecotrack/eco-go/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "EcoGo\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates an EcoGo instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "eco-go"
	ctl.Version = config.Version
	ctl.Usage = "EcoToken carbon reduction tracking client and gasless transfer relay"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	ctl.Commands = append(ctl.Commands, wallet.NewCommands()...)
	ctl.Commands = append(ctl.Commands, query.NewCommands()...)
	ctl.Commands = append(ctl.Commands, eco.NewCommands()...)
	ctl.Commands = append(ctl.Commands, dashboard.NewCommands()...)
	ctl.Commands = append(ctl.Commands, console.NewCommands()...)
	return ctl
}
