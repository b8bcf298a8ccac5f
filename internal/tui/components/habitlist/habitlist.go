package habitlist

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habio/internal/models"
	"github.com/julianstephens/habio/internal/tracker"
)

type AddHabitMsg struct{}

type CompleteHabitMsg struct {
	ID string
}

type DeleteHabitMsg struct {
	ID    string
	Title string
}

type Item struct {
	Habit     models.Habit
	Completed bool
}

func (i Item) Title() string {
	if i.Completed {
		return "✓ " + i.Habit.Title
	}
	return "○ " + i.Habit.Title
}

func (i Item) Description() string {
	desc := fmt.Sprintf("%s | %s | %s", i.Habit.Description, i.Habit.Frequency, tracker.StreakLabel(i.Habit))
	if i.Completed {
		desc = tracker.CompletedFeedback + " | " + desc
	}
	return desc
}

func (i Item) FilterValue() string { return i.Habit.Title }

type KeyMap struct {
	Add      key.Binding
	Complete key.Binding
	Delete   key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add"),
		),
		Complete: key.NewBinding(
			key.WithKeys("enter", " ", "c"),
			key.WithHelp("enter", "complete"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
	}
}

type Model struct {
	list list.Model
	keys KeyMap
}

func New(width, height int) Model {
	l := list.New(nil, newDelegate(), width, height)
	l.Title = "Today's Habits"
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Complete, keys.Add, keys.Delete}
	}
	return Model{list: l, keys: keys}
}

// delegate dims rows of habits completed today
type delegate struct {
	list.DefaultDelegate
	completed list.DefaultDelegate
}

func newDelegate() delegate {
	completed := list.NewDefaultDelegate()
	dim := lipgloss.Color("240")
	completed.Styles.NormalTitle = completed.Styles.NormalTitle.Foreground(dim).Strikethrough(true)
	completed.Styles.NormalDesc = completed.Styles.NormalDesc.Foreground(dim)
	completed.Styles.SelectedTitle = completed.Styles.SelectedTitle.Strikethrough(true)
	return delegate{DefaultDelegate: list.NewDefaultDelegate(), completed: completed}
}

func (d delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	if i, ok := item.(Item); ok && i.Completed {
		d.completed.Render(w, m, index, item)
		return
	}
	d.DefaultDelegate.Render(w, m, index, item)
}

// SetSnapshot replaces the rows, keeping the cursor on the same habit when it
// is still listed
func (m *Model) SetSnapshot(snap tracker.TodaySnapshot) {
	selected := m.SelectedID()
	items := make([]list.Item, len(snap.Habits))
	cursor := 0
	for i, h := range snap.Habits {
		items[i] = Item{Habit: h, Completed: snap.Completed[h.ID]}
		if h.ID == selected {
			cursor = i
		}
	}
	m.list.SetItems(items)
	m.list.Select(cursor)
}

func (m Model) SelectedID() string {
	if i, ok := m.list.SelectedItem().(Item); ok {
		return i.Habit.ID
	}
	return ""
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Add):
			return m, func() tea.Msg { return AddHabitMsg{} }
		case key.Matches(msg, m.keys.Complete):
			if i, ok := m.list.SelectedItem().(Item); ok {
				return m, func() tea.Msg { return CompleteHabitMsg{ID: i.Habit.ID} }
			}
			return m, nil
		case key.Matches(msg, m.keys.Delete):
			if i, ok := m.list.SelectedItem().(Item); ok {
				return m, func() tea.Msg { return DeleteHabitMsg{ID: i.Habit.ID, Title: i.Habit.Title} }
			}
			return m, nil
		}
	}

	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return "\n  " + tracker.EmptyStateText + "\n  Press 'a' to add one."
	}
	return m.list.View()
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}
