package cli

import (
	"github.com/julianstephens/habio/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *Context) error {
	app, err := ctx.App()
	if err != nil {
		return err
	}
	ctx.PerformAutomaticBackup()
	return tui.Run(ctx.context(), app.Store, app.Today, app.Habits)
}
