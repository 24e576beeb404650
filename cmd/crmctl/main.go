package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"funnel-crm/cmd/crmctl/internal/commands"

	"github.com/alecthomas/kong"
)

var (
	version = "dev"
	cli     struct {
		Seed          commands.SeedCmd          `cmd:"" help:"Create an account, optionally as admin"`
		Promote       commands.PromoteCmd       `cmd:"" help:"Grant the admin role to an existing account"`
		MigrateData   commands.MigrateDataCmd   `cmd:"" help:"Copy a sqlite database into the configured postgres database"`
		SyncSequences commands.SyncSequencesCmd `cmd:"" help:"Reset postgres id sequences after a bulk copy"`
		Debug         bool                      `help:"Enable debug logging."`
		Version       kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("crmctl"),
		kong.Description("Maintenance commands for the funnel CRM."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
