package cli

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/julianstephens/habio/internal/backend/embedded"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/keyring"
	"github.com/julianstephens/habio/internal/server"
	"github.com/julianstephens/habio/internal/session"
)

type DoctorCmd struct{}

type check struct {
	name string
	run  func(*Context) error
	// warnOnly checks report but never fail the run
	warnOnly bool
}

func (cmd *DoctorCmd) Run(ctx *Context) error {
	ctx.printf("Running diagnostics...\n\n")

	checks := []check{
		{name: "Configuration", run: checkConfig},
		{name: "Backend reachable", run: checkBackend},
		{name: "Schema version", run: checkSchemaVersion},
		{name: "OS keyring", run: checkKeyring, warnOnly: true},
		{name: "Signed in", run: checkSignedIn, warnOnly: true},
		{name: "Local server", run: checkLocalServer, warnOnly: true},
		{name: "Clock/timezone", run: checkClockTimezone},
	}

	hasError := false
	for _, c := range checks {
		err := c.run(ctx)
		switch {
		case err == nil:
			ctx.printf("✓ %s: OK\n", c.name)
		case c.warnOnly:
			ctx.printf("⚠ %s: WARNING\n", c.name)
			ctx.printf("   %v\n", err)
		default:
			ctx.printf("❌ %s: FAIL\n", c.name)
			ctx.printf("   Error: %v\n", err)
			hasError = true
		}
	}

	ctx.printf("\n")
	if hasError {
		ctx.printf("Diagnostics completed with errors.\n")
		return fmt.Errorf("one or more health checks failed")
	}
	ctx.printf("All diagnostics passed!\n")
	return nil
}

func checkConfig(ctx *Context) error {
	return ctx.Config.Validate()
}

func checkBackend(ctx *Context) error {
	app, err := ctx.App()
	if err != nil {
		return err
	}
	if c, ok := app.Client.(*embedded.Client); ok {
		return c.Backend().Ping(ctx.context())
	}
	// Any answer other than a transport failure means the server is up
	_, err = app.Client.CurrentUser(ctx.context())
	if errors.Is(err, errors.KindNetwork) {
		return err
	}
	return nil
}

func checkSchemaVersion(ctx *Context) error {
	app, err := ctx.App()
	if err != nil {
		return err
	}
	c, ok := app.Client.(*embedded.Client)
	if !ok {
		return nil
	}
	current, latest, err := c.Backend().SchemaVersion(ctx.context())
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}
	if current != latest {
		return fmt.Errorf("database schema version %d, this binary expects %d", current, latest)
	}
	return nil
}

func checkKeyring(ctx *Context) error {
	if ctx.Secrets != nil || keyring.IsAvailable() {
		return nil
	}
	return fmt.Errorf("sessions will not survive restarts: %w", keyring.ErrKeyringUnavailable)
}

func checkSignedIn(ctx *Context) error {
	app, err := ctx.App()
	if err != nil {
		return err
	}
	if app.Store.Bootstrap(ctx.context()).State != session.StateAuthenticated {
		return fmt.Errorf("no active session, run 'habio login EMAIL'")
	}
	return nil
}

func checkLocalServer(ctx *Context) error {
	dir, err := ctx.Config.DataDir()
	if err != nil {
		return err
	}
	addr, pid, err := server.FindRunning(dir)
	if stderrors.Is(err, server.ErrNotRunning) {
		if ctx.Config.Embedded() {
			return nil
		}
		return err
	}
	if err != nil {
		return err
	}
	ctx.printf("   habio serve running on %s (pid %d)\n", addr, pid)
	return nil
}

// checkClockTimezone matters because "today" is the local calendar day
func checkClockTimezone(*Context) error {
	now := time.Now()
	if now.Year() < 2024 {
		return fmt.Errorf("system clock looks wrong: %s", now.Format(time.RFC3339))
	}
	if name, _ := now.Zone(); name == "" {
		return fmt.Errorf("no local timezone configured")
	}
	return nil
}
