package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habio/internal/models"
	"github.com/julianstephens/habio/internal/repository"
	"github.com/julianstephens/habio/internal/session"
	"github.com/julianstephens/habio/internal/tracker"
	"github.com/julianstephens/habio/internal/tui/components/habitlist"
)

const toastDuration = 3 * time.Second

type sessionMsg struct {
	status session.Status
}

// todayChangedMsg is sent whenever the Today state changes, including
// changes made on other devices
type todayChangedMsg struct{}

type authDoneMsg struct {
	err error
}

type habitAddedMsg struct {
	habit models.Habit
	err   error
}

type completedMsg struct {
	done bool
	err  error
}

type deletedMsg struct {
	title string
	err   error
}

type refreshedMsg struct {
	err error
}

type toastExpiredMsg struct {
	id int
}

type Model struct {
	ctx      context.Context
	store    *session.Store
	today    *tracker.Today
	auth     *tracker.AuthForm
	addHabit *tracker.AddHabit

	status    session.Status
	requested tracker.Screen
	screen    tracker.Screen
	waiting   bool
	// pendingDelete is set while the delete confirmation is shown
	pendingDelete *habitlist.DeleteHabitMsg

	form     *huh.Form
	habits   habitlist.Model
	spinner  spinner.Model
	keys     KeyMap
	help     help.Model
	busy     bool
	toast    string
	toastErr bool
	toastID  int
	quitting bool
	width    int
	height   int
}

func NewModel(ctx context.Context, store *session.Store, today *tracker.Today, habits *repository.HabitRepository) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:       ctx,
		store:     store,
		today:     today,
		auth:      tracker.NewAuthForm(store),
		addHabit:  tracker.NewAddHabit(store, habits),
		status:    store.Status(),
		requested: tracker.ScreenToday,
		waiting:   true,
		habits:    habitlist.New(0, 0),
		spinner:   sp,
		keys:      DefaultKeyMap(),
		help:      help.New(),
	}
}

func (m Model) ShortHelp() []key.Binding {
	keys := []key.Binding{m.keys.Quit, m.keys.Help}
	switch m.screen {
	case tracker.ScreenAuth:
		keys = append(keys, m.keys.ToggleMode)
	case tracker.ScreenAddHabit:
		keys = append(keys, m.keys.Back)
	case tracker.ScreenToday:
		list := habitlist.DefaultKeyMap()
		keys = append(keys, list.Complete, list.Add, list.Delete, m.keys.SignOut)
	}
	return keys
}

func (m Model) FullHelp() [][]key.Binding {
	list := habitlist.DefaultKeyMap()
	return [][]key.Binding{
		{m.keys.Quit, m.keys.Help, m.keys.Refresh, m.keys.SignOut},
		{m.keys.Up, m.keys.Down, list.Complete, list.Add, list.Delete},
		{m.keys.ToggleMode, m.keys.Back},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.bootstrap())
}

func (m Model) bootstrap() tea.Cmd {
	return func() tea.Msg {
		return sessionMsg{status: m.store.Bootstrap(m.ctx)}
	}
}

// route applies the routing guard and enters the resulting screen
func (m *Model) route() tea.Cmd {
	decision := tracker.Route(m.status, m.requested)
	if decision.Wait {
		m.waiting = true
		return nil
	}
	if !m.waiting && decision.Screen == m.screen {
		return nil
	}
	m.waiting = false
	return m.enter(decision.Screen)
}

func (m *Model) enter(screen tracker.Screen) tea.Cmd {
	m.screen = screen
	m.pendingDelete = nil
	m.busy = false
	switch screen {
	case tracker.ScreenAuth:
		m.auth.Password = ""
		m.form = newAuthForm(m.auth)
		return m.form.Init()
	case tracker.ScreenAddHabit:
		m.addHabit.Reset()
		m.form = newHabitForm(m.addHabit)
		return m.form.Init()
	default:
		m.form = nil
		m.habits.SetSnapshot(m.today.Snapshot())
		return nil
	}
}

func (m *Model) showToast(text string, isErr bool) tea.Cmd {
	m.toastID++
	m.toast = text
	m.toastErr = isErr
	id := m.toastID
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

func (m *Model) resize() {
	m.habits.SetSize(m.width-4, m.height-8)
}
