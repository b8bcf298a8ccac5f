package tui

import (
	"context"
	stderrors "errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habio/internal/repository"
	"github.com/julianstephens/habio/internal/session"
	"github.com/julianstephens/habio/internal/tracker"
)

// Run shows the app until the user quits or ctx is done. Session and realtime
// changes are forwarded to the program as messages.
func Run(ctx context.Context, store *session.Store, today *tracker.Today, habits *repository.HabitRepository) error {
	p := tea.NewProgram(NewModel(ctx, store, today, habits), tea.WithAltScreen(), tea.WithContext(ctx))

	detach := store.OnChange(func(st session.Status) {
		p.Send(sessionMsg{status: st})
	})
	defer detach()
	today.OnChange(func() { p.Send(todayChangedMsg{}) })
	defer today.OnChange(nil)

	today.Start(ctx)
	defer today.Stop()

	_, err := p.Run()
	if stderrors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
