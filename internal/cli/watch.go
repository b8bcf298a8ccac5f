package cli

import (
	"time"

	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/realtime"
)

// WatchCmd prints a line whenever the signed-in user's habits or completions
// change, on this device or any other
type WatchCmd struct{}

func (cmd *WatchCmd) Run(ctx *Context) error {
	app, err := ctx.SignedIn()
	if err != nil {
		return err
	}
	cfg := ctx.Config
	stamp := func() string { return time.Now().Format("15:04:05") }

	bridge := realtime.NewBridge(app.Client, cfg.DatabaseID, cfg.HabitsCollectionID, cfg.CompletionsCollectionID, realtime.Handlers{
		ReloadHabits: func() {
			ctx.printf("%s habits changed\n", stamp())
		},
		ReloadCompletions: func() {
			ctx.printf("%s completions changed\n", stamp())
		},
	})
	stop := bridge.Follow(ctx.context(), app.Store)
	defer stop()
	if !bridge.Active() {
		return errors.New(errors.KindNetwork, "Realtime updates are unavailable, see the log for details")
	}

	ctx.printf("Watching for changes, press Ctrl+C to stop\n")
	<-ctx.context().Done()
	return nil
}
