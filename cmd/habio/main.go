package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/habio/internal/cli"
	"github.com/julianstephens/habio/internal/config"
	"github.com/julianstephens/habio/internal/constants"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag
	Debug   bool `help:"Enable debug logging (also mirrored to stderr)."`

	config.Client `embed:""`

	Tui    cli.TuiCmd    `cmd:"" help:"Launch the interactive TUI." default:"1"`
	Signup cli.SignupCmd `cmd:"" help:"Create an account and sign in."`
	Login  cli.LoginCmd  `cmd:"" help:"Sign in."`
	Logout cli.LogoutCmd `cmd:"" help:"Sign out."`
	Whoami cli.WhoamiCmd `cmd:"" help:"Show the signed-in account."`
	Today  cli.TodayCmd  `cmd:"" help:"Show today's habits."`
	Habit  cli.HabitCmd  `cmd:"" help:"Manage habits."`
	Watch  cli.WatchCmd  `cmd:"" help:"Print changes to habits as they happen."`
	Serve  cli.ServeCmd  `cmd:"" help:"Serve the embedded backend over HTTP."`
	Doctor cli.DoctorCmd `cmd:"" help:"Run health checks and diagnostics."`
	Backup cli.BackupCmd `cmd:"" help:"Manage backups of the embedded database."`
}

func main() {
	// .env must be in the environment before kong resolves env tags
	if err := config.LoadDotEnv(""); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Track daily habits, keep streaks, stay in sync across devices"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	dataDir, err := CLI.Client.DataDir()
	if err != nil {
		errors.Fatal(err)
	}
	if err := logger.Init(logger.Config{Debug: CLI.Debug, ConfigDir: dataDir}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCtx := &cli.Context{
		Ctx:    sigCtx,
		Config: CLI.Client,
	}
	err = ctx.Run(appCtx)
	if cerr := appCtx.Close(); cerr != nil {
		logger.Warn("Failed to close backend", "error", cerr)
	}
	if err != nil {
		stop()
		errors.Fatal(err)
	}
}
