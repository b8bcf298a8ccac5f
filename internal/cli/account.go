package cli

import (
	"github.com/julianstephens/habio/internal/session"
)

type SignupCmd struct {
	Credentials `embed:""`
}

func (cmd *SignupCmd) Run(ctx *Context) error {
	app, err := ctx.App()
	if err != nil {
		return err
	}
	password, err := cmd.password()
	if err != nil {
		return err
	}
	if err := app.Store.SignUp(ctx.context(), cmd.Email, password); err != nil {
		return err
	}
	identity, _ := app.Store.Identity()
	ctx.printf("✓ Created account %s\n", identity.Email)
	return nil
}

type LoginCmd struct {
	Credentials `embed:""`
}

func (cmd *LoginCmd) Run(ctx *Context) error {
	app, err := ctx.App()
	if err != nil {
		return err
	}
	password, err := cmd.password()
	if err != nil {
		return err
	}
	// Resume any saved session so SignIn can end it when it is replaced
	app.Store.Bootstrap(ctx.context())
	if err := app.Store.SignIn(ctx.context(), cmd.Email, password); err != nil {
		return err
	}
	identity, _ := app.Store.Identity()
	ctx.printf("✓ Signed in as %s\n", identity.Email)
	return nil
}

type LogoutCmd struct{}

func (cmd *LogoutCmd) Run(ctx *Context) error {
	app, err := ctx.App()
	if err != nil {
		return err
	}
	if app.Store.Bootstrap(ctx.context()).State != session.StateAuthenticated {
		ctx.printf("Not signed in\n")
		return nil
	}
	app.Store.SignOut(ctx.context())
	ctx.printf("✓ Signed out\n")
	return nil
}

type WhoamiCmd struct{}

func (cmd *WhoamiCmd) Run(ctx *Context) error {
	app, err := ctx.SignedIn()
	if err != nil {
		return err
	}
	identity, _ := app.Store.Identity()
	ctx.printf("%s (%s)\n", identity.Email, identity.ID)
	return nil
}
