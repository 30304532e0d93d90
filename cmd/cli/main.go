package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/tenantdesk/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Login       commands.LoginCmd       `cmd:"" help:"Log in and save a credential"`
		Logout      commands.LogoutCmd      `cmd:"" help:"Remove a saved credential"`
		Whoami      commands.WhoamiCmd      `cmd:"" help:"Show the logged in user"`
		Tickets     commands.TicketsCmd     `cmd:"" help:"Manage tickets"`
		Credentials commands.CredentialsCmd `cmd:"" help:"Manage saved credentials"`
		Debug       bool                    `help:"Enable debug mode." env:"TENANTDESK_DEBUG"`
		Version     kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("tenantdesk-cli"),
		kong.Description("Command line client for the tenantdesk ticket API."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
