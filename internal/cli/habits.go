package cli

import (
	"github.com/julianstephens/habio/internal/models"
	"github.com/julianstephens/habio/internal/tracker"
)

type TodayCmd struct{}

func (cmd *TodayCmd) Run(ctx *Context) error {
	app, err := ctx.SignedIn()
	if err != nil {
		return err
	}
	if err := app.Today.Resync(ctx.context()); err != nil {
		return err
	}
	snap := app.Today.Snapshot()
	ctx.printf("Today's Habits\n\n")
	if snap.IsEmpty() {
		ctx.printf("%s\n", tracker.EmptyStateText)
		return nil
	}
	for _, h := range snap.Habits {
		mark := "○"
		if snap.Completed[h.ID] {
			mark = "✓"
		}
		ctx.printf("%s %s [%s] %s\n", mark, h.Title, h.Frequency, tracker.StreakLabel(h))
		ctx.printf("  %s\n", h.Description)
		ctx.printf("  id: %s\n", h.ID)
	}
	return nil
}

type HabitAddCmd struct {
	Title       string `arg:"" help:"Habit title."`
	Description string `help:"What the habit involves." short:"d" required:""`
	Frequency   string `help:"Daily, Weekly or Monthly." short:"f" default:"Daily"`
}

func (cmd *HabitAddCmd) Run(ctx *Context) error {
	app, err := ctx.SignedIn()
	if err != nil {
		return err
	}
	frequency, err := models.ParseFrequency(cmd.Frequency)
	if err != nil {
		return err
	}

	form := tracker.NewAddHabit(app.Store, app.Habits)
	form.Title = cmd.Title
	form.Description = cmd.Description
	form.Frequency = frequency
	h, err := form.Submit(ctx.context())
	if err != nil {
		return err
	}
	ctx.printf("✓ Added %s (%s)\n", h.Title, h.ID)
	return nil
}

type HabitListCmd struct{}

func (cmd *HabitListCmd) Run(ctx *Context) error {
	app, err := ctx.SignedIn()
	if err != nil {
		return err
	}
	identity, _ := app.Store.Identity()
	habits, err := app.Habits.List(ctx.context(), identity.ID)
	if err != nil {
		return err
	}
	if len(habits) == 0 {
		ctx.printf("%s\n", tracker.EmptyStateText)
		return nil
	}
	for _, h := range habits {
		last := "never"
		if h.StreakCount > 0 {
			last = h.LastCompletedAt.Local().Format("2006-01-02 15:04")
		}
		ctx.printf("%s  %-24s %-8s %-14s last: %s\n", h.ID, h.Title, h.Frequency, tracker.StreakLabel(h), last)
	}
	return nil
}

type HabitDoneCmd struct {
	ID string `arg:"" help:"Habit ID."`
}

func (cmd *HabitDoneCmd) Run(ctx *Context) error {
	app, err := ctx.SignedIn()
	if err != nil {
		return err
	}
	if err := app.Today.Resync(ctx.context()); err != nil {
		return err
	}
	if app.Today.IsCompleted(cmd.ID) {
		ctx.printf("%s\n", tracker.CompletedFeedback)
		return nil
	}
	done, err := app.Today.Complete(ctx.context(), cmd.ID)
	if err != nil {
		return err
	}
	if !done {
		ctx.printf("%s\n", tracker.CompletedFeedback)
		return nil
	}
	for _, h := range app.Today.Snapshot().Habits {
		if h.ID == cmd.ID {
			ctx.printf("✓ %s %s, %s\n", h.Title, tracker.CompletedFeedback, tracker.StreakLabel(h))
		}
	}
	return nil
}

type HabitDeleteCmd struct {
	ID string `arg:"" help:"Habit ID."`
}

func (cmd *HabitDeleteCmd) Run(ctx *Context) error {
	app, err := ctx.SignedIn()
	if err != nil {
		return err
	}
	if err := app.Today.Delete(ctx.context(), cmd.ID); err != nil {
		return err
	}
	ctx.printf("✓ Deleted %s\n", cmd.ID)
	return nil
}

type HabitCmd struct {
	Add    HabitAddCmd    `cmd:"" help:"Add a habit."`
	List   HabitListCmd   `cmd:"" help:"List habits."`
	Done   HabitDoneCmd   `cmd:"" help:"Complete a habit for today."`
	Delete HabitDeleteCmd `cmd:"" help:"Delete a habit."`
}
