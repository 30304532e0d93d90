package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/tenantdesk/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode." env:"TENANTDESK_DEBUG"`
		Version kong.VersionFlag
		Serve   commands.ServeCmd   `cmd:"" default:"withargs" help:"Start the API server"`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply database migrations"`
		Seed    commands.SeedCmd    `cmd:"" help:"Load YAML fixtures into PostgreSQL"`
		Token   commands.TokenCmd   `cmd:"" help:"Print an access token for a user"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("tenantdesk"),
		kong.Description("Multi-tenant help desk API"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
