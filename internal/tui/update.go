package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/logger"
	"github.com/julianstephens/habio/internal/tracker"
	"github.com/julianstephens/habio/internal/tui/components/habitlist"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resize()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sessionMsg:
		m.status = msg.status
		return m, m.route()

	case todayChangedMsg:
		m.habits.SetSnapshot(m.today.Snapshot())
		return m, nil

	case toastExpiredMsg:
		if msg.id == m.toastID {
			m.toast = ""
		}
		return m, nil

	case authDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.form = newAuthForm(m.auth)
			return m, m.form.Init()
		}
		return m, nil

	case habitAddedMsg:
		m.busy = false
		if msg.err != nil {
			m.form = newHabitForm(m.addHabit)
			return m, tea.Batch(m.form.Init(), m.showToast(m.addHabit.Error, true))
		}
		m.requested = tracker.ScreenToday
		return m, tea.Batch(m.route(), m.showToast("Created "+msg.habit.Title, false))

	case completedMsg:
		if msg.err != nil {
			return m, m.showToast(errors.Format(msg.err), true)
		}
		return m, m.showToast(tracker.CompletedFeedback, false)

	case deletedMsg:
		if msg.err != nil {
			return m, m.showToast(errors.Format(msg.err), true)
		}
		return m, m.showToast("Deleted "+msg.title, false)

	case refreshedMsg:
		if msg.err != nil {
			return m, m.showToast(errors.Format(msg.err), true)
		}
		return m, nil
	}

	if m.waiting {
		if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	switch m.screen {
	case tracker.ScreenAuth:
		return m.updateAuth(msg)
	case tracker.ScreenAddHabit:
		return m.updateAddHabit(msg)
	default:
		return m.updateToday(msg)
	}
}

func (m *Model) updateForm(msg tea.Msg) (huh.FormState, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	return m.form.State, cmd
}

func (m Model) updateAuth(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.ToggleMode) {
		m.auth.Toggle()
		m.form = newAuthForm(m.auth)
		return m, m.form.Init()
	}

	state, cmd := m.updateForm(msg)
	switch state {
	case huh.StateCompleted:
		m.busy = true
		auth, ctx := m.auth, m.ctx
		return m, func() tea.Msg {
			return authDoneMsg{err: auth.Submit(ctx)}
		}
	case huh.StateAborted:
		m.quitting = true
		return m, tea.Quit
	}
	return m, cmd
}

func (m Model) updateAddHabit(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		m.requested = tracker.ScreenToday
		return m, m.route()
	}

	state, cmd := m.updateForm(msg)
	switch state {
	case huh.StateCompleted:
		if !m.addHabit.CanSubmit() {
			m.form = newHabitForm(m.addHabit)
			return m, m.form.Init()
		}
		m.busy = true
		add, ctx := m.addHabit, m.ctx
		return m, func() tea.Msg {
			h, err := add.Submit(ctx)
			return habitAddedMsg{habit: h, err: err}
		}
	case huh.StateAborted:
		m.requested = tracker.ScreenToday
		return m, m.route()
	}
	return m, cmd
}

func (m Model) updateToday(msg tea.Msg) (tea.Model, tea.Cmd) {
	today, ctx := m.today, m.ctx

	if m.pendingDelete != nil {
		if msg, ok := msg.(tea.KeyMsg); ok {
			switch {
			case key.Matches(msg, m.keys.Confirm):
				target := *m.pendingDelete
				m.pendingDelete = nil
				return m, func() tea.Msg {
					return deletedMsg{title: target.Title, err: today.Delete(ctx, target.ID)}
				}
			case key.Matches(msg, m.keys.Cancel):
				m.pendingDelete = nil
			}
		}
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m, func() tea.Msg {
				return refreshedMsg{err: today.Resync(ctx)}
			}
		case key.Matches(msg, m.keys.SignOut):
			store := m.store
			return m, func() tea.Msg {
				logger.Info("Signing out")
				store.SignOut(ctx)
				return nil
			}
		}

	case habitlist.AddHabitMsg:
		m.requested = tracker.ScreenAddHabit
		return m, m.route()

	case habitlist.CompleteHabitMsg:
		if today.IsCompleted(msg.ID) {
			return m, m.showToast(tracker.CompletedFeedback, false)
		}
		return m, func() tea.Msg {
			done, err := today.Complete(ctx, msg.ID)
			return completedMsg{done: done, err: err}
		}

	case habitlist.DeleteHabitMsg:
		m.pendingDelete = &msg
		return m, nil
	}

	var cmd tea.Cmd
	m.habits, cmd = m.habits.Update(msg)
	return m, cmd
}
