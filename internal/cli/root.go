// Package cli implements the habio commands. Every command receives a
// *Context; the backend and the session are built on first use so commands
// like serve never touch them.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/backend/embedded"
	"github.com/julianstephens/habio/internal/backend/remote"
	"github.com/julianstephens/habio/internal/config"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/keyring"
	"github.com/julianstephens/habio/internal/logger"
	"github.com/julianstephens/habio/internal/repository"
	"github.com/julianstephens/habio/internal/session"
	"github.com/julianstephens/habio/internal/tracker"
)

type Context struct {
	Ctx    context.Context
	Config config.Client
	Out    io.Writer
	// Secrets overrides the keyring, used by tests
	Secrets session.SecretStore

	app *App
}

// App is the wired client side of habio
type App struct {
	Client      backend.Client
	Store       *session.Store
	Habits      *repository.HabitRepository
	Completions *repository.CompletionRepository
	Today       *tracker.Today
}

func (ctx *Context) out() io.Writer {
	if ctx.Out == nil {
		return os.Stdout
	}
	return ctx.Out
}

func (ctx *Context) printf(format string, args ...any) {
	fmt.Fprintf(ctx.out(), format, args...)
}

func (ctx *Context) context() context.Context {
	if ctx.Ctx == nil {
		return context.Background()
	}
	return ctx.Ctx
}

// App builds the backend client, the session store and the repositories
func (ctx *Context) App() (*App, error) {
	if ctx.app != nil {
		return ctx.app, nil
	}
	cfg := ctx.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var client backend.Client
	if cfg.Embedded() {
		path, err := cfg.ResolvedDataPath()
		if err != nil {
			return nil, errors.Wrap(errors.KindValidation, err, "Invalid data path")
		}
		logger.Debug("Using embedded backend", "path", path)
		c, err := embedded.OpenClient(ctx.context(), path, embedded.Options{})
		if err != nil {
			return nil, err
		}
		client = c
	} else {
		logger.Debug("Using remote backend", "endpoint", cfg.Endpoint)
		client = remote.New(remote.Options{
			Endpoint:  cfg.Endpoint,
			ProjectID: cfg.ProjectID,
			Platform:  cfg.Platform,
		})
	}

	secrets := ctx.Secrets
	if secrets == nil {
		secrets = keyring.SecretStore{Profile: cfg.Profile()}
	}
	store := session.New(client, secrets)
	completions := repository.NewCompletionRepository(client, cfg.DatabaseID, cfg.CompletionsCollectionID)
	habits := repository.NewHabitRepository(client, cfg.DatabaseID, cfg.HabitsCollectionID, completions)

	ctx.app = &App{
		Client:      client,
		Store:       store,
		Habits:      habits,
		Completions: completions,
		Today: tracker.NewToday(store, habits, completions, client, tracker.Collections{
			Database:    cfg.DatabaseID,
			Habits:      cfg.HabitsCollectionID,
			Completions: cfg.CompletionsCollectionID,
		}),
	}
	return ctx.app, nil
}

// SignedIn builds the app and resumes the persisted session
func (ctx *Context) SignedIn() (*App, error) {
	app, err := ctx.App()
	if err != nil {
		return nil, err
	}
	if st := app.Store.Bootstrap(ctx.context()); st.State != session.StateAuthenticated {
		return nil, errors.New(errors.KindUnauthorized, "Not signed in. Run 'habio login EMAIL' first")
	}
	return app, nil
}

// Close releases the backend client, if one was built
func (ctx *Context) Close() error {
	if ctx.app == nil {
		return nil
	}
	err := ctx.app.Client.Close()
	ctx.app = nil
	return err
}

// Credentials carries the password flag shared by signup and login
type Credentials struct {
	Email    string `arg:"" help:"Account email."`
	Password string `help:"Account password. Prompted when empty." env:"HABIO_PASSWORD"`
}

func (c *Credentials) password() (string, error) {
	if c.Password != "" {
		return c.Password, nil
	}
	var password string
	err := huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&password).
		WithTheme(huh.ThemeDracula()).
		Run()
	if err != nil {
		return "", fmt.Errorf("password prompt failed: %w", err)
	}
	return strings.TrimRight(password, "\n"), nil
}
