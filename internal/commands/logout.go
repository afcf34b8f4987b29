package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"asanapdf/internal/auth"
	"asanapdf/internal/config"
	"asanapdf/internal/exitcode"
	"asanapdf/internal/service"
	"asanapdf/internal/tokenstore"
)

func init() {
	Register(&LogoutCmd{})
}

// LogoutCmd implements the logout command.
type LogoutCmd struct{}

func (c *LogoutCmd) Name() string      { return "logout" }
func (c *LogoutCmd) Aliases() []string { return nil }
func (c *LogoutCmd) Synopsis() string  { return "Remove stored credentials" }
func (c *LogoutCmd) Usage() string     { return "asanapdf logout" }
func (c *LogoutCmd) NeedsAuth() bool   { return false }

func (c *LogoutCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	store := tokenstore.New(cfg.TokenPath())
	if !store.Exists() {
		if !cfg.Quiet {
			fmt.Fprintln(out, "not logged in")
		}
		return exitcode.Success
	}

	flow := auth.NewFlow(authSettings(cfg), nil, store, slog.Default())
	if err := flow.Logout(); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
