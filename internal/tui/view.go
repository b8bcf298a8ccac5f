package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habio/internal/tracker"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch {
	case m.waiting:
		content = m.viewLoading()
	case m.screen == tracker.ScreenAuth:
		content = m.viewAuth()
	case m.screen == tracker.ScreenAddHabit:
		content = docStyle.Render(m.form.View())
	case m.pendingDelete != nil:
		content = m.viewConfirmDelete()
	default:
		content = m.viewToday()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewHeader(),
		content,
		m.viewStatus(),
		m.help.View(m),
	)
}

func (m Model) viewHeader() string {
	title := "Today's Habits"
	switch m.screen {
	case tracker.ScreenAuth:
		title = m.auth.Title()
	case tracker.ScreenAddHabit:
		title = tracker.AddHabitTitle
	}
	if m.waiting {
		title = "habio"
	}
	header := titleStyle.Render(title)
	if !m.waiting && m.status.Identity.Email != "" {
		header = lipgloss.JoinHorizontal(lipgloss.Top, header, subtleStyle.Render("  "+m.status.Identity.Email))
	}
	return header
}

func (m Model) viewLoading() string {
	return lipgloss.Place(m.width, m.height-4,
		lipgloss.Center, lipgloss.Center,
		m.spinner.View()+" Loading...",
	)
}

func (m Model) viewAuth() string {
	content := m.form.View()
	if m.busy {
		content = lipgloss.JoinVertical(lipgloss.Left, content, m.spinner.View()+" "+m.auth.SubmitLabel()+"...")
	}
	if m.auth.Error != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, content, dangerStyle.Render(m.auth.Error))
	}
	return docStyle.Render(content)
}

func (m Model) viewToday() string {
	return docStyle.Render(m.habits.View())
}

func (m Model) viewConfirmDelete() string {
	return lipgloss.Place(m.width, m.height-4,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center,
			dangerStyle.Render("Delete \""+m.pendingDelete.Title+"\"?"),
			"",
			"[y] Yes",
			"[n] No",
		),
	)
}

func (m Model) viewStatus() string {
	if m.toast != "" {
		if m.toastErr {
			return dangerStyle.Render(m.toast)
		}
		return toastStyle.Render(m.toast)
	}
	if !m.waiting && m.screen == tracker.ScreenToday && !m.today.RealtimeActive() {
		return warningStyle.Render("⚠ Live updates unavailable, press r to refresh")
	}
	return ""
}
