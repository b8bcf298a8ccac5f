package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/crypto/bcrypt"

	"github.com/julianstephens/habio/internal/backend/embedded"
	"github.com/julianstephens/habio/internal/models"
	"github.com/julianstephens/habio/internal/repository"
	"github.com/julianstephens/habio/internal/session"
	"github.com/julianstephens/habio/internal/tracker"
	"github.com/julianstephens/habio/internal/tui/components/habitlist"
)

func newTestModel(t *testing.T) (Model, *session.Store) {
	t.Helper()
	ctx := context.Background()
	client, err := embedded.OpenClient(ctx, filepath.Join(t.TempDir(), "habio.db"), embedded.Options{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("embedded.OpenClient failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	completions := repository.NewCompletionRepository(client, "main", "completions")
	habits := repository.NewHabitRepository(client, "main", "habits", completions)
	store := session.New(client, nil)
	today := tracker.NewToday(store, habits, completions, client, tracker.Collections{
		Database: "main", Habits: "habits", Completions: "completions",
	})
	m := NewModel(ctx, store, today, habits)
	m.width, m.height = 80, 24
	return m, store
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+t":
		return tea.KeyMsg{Type: tea.KeyCtrlT}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestLoadingUntilSessionKnown(t *testing.T) {
	m, _ := newTestModel(t)
	if !m.waiting {
		t.Fatal("model not waiting before bootstrap")
	}
	if !strings.Contains(m.View(), "Loading") {
		t.Error("loading view not shown")
	}

	m = update(t, m, sessionMsg{status: session.Status{State: session.StateAnonymous}})
	if m.waiting || m.screen != tracker.ScreenAuth {
		t.Errorf("screen = %v waiting = %v, want auth", m.screen, m.waiting)
	}
}

func TestAuthToggle(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m, sessionMsg{status: session.Status{State: session.StateAnonymous}})
	if !strings.Contains(m.View(), "Welcome Back") {
		t.Error("sign-in title not shown")
	}
	m = update(t, m, keyPress("ctrl+t"))
	if m.auth.Mode != tracker.ModeSignUp {
		t.Fatalf("Mode = %v, want sign up", m.auth.Mode)
	}
	if !strings.Contains(m.View(), "Create Account") {
		t.Error("sign-up title not shown")
	}
}

func TestTodayNavigation(t *testing.T) {
	m, store := newTestModel(t)
	if err := store.SignUp(context.Background(), "reader@example.com", "correct-horse"); err != nil {
		t.Fatal(err)
	}
	m = update(t, m, sessionMsg{status: store.Status()})
	if m.screen != tracker.ScreenToday {
		t.Fatalf("screen = %v, want today", m.screen)
	}
	if !strings.Contains(m.View(), tracker.EmptyStateText) {
		t.Error("empty state not shown")
	}

	m = update(t, m, habitlist.AddHabitMsg{})
	if m.screen != tracker.ScreenAddHabit {
		t.Fatalf("screen = %v, want add-habit", m.screen)
	}
	if m.addHabit.Frequency != models.FrequencyDaily {
		t.Errorf("form Frequency = %q", m.addHabit.Frequency)
	}
	m = update(t, m, keyPress("esc"))
	if m.screen != tracker.ScreenToday {
		t.Fatalf("screen after esc = %v, want today", m.screen)
	}

	m = update(t, m, habitlist.DeleteHabitMsg{ID: "h1", Title: "Read"})
	if m.pendingDelete == nil || !strings.Contains(m.View(), `Delete "Read"?`) {
		t.Fatal("delete confirmation not shown")
	}
	m = update(t, m, keyPress("n"))
	if m.pendingDelete != nil {
		t.Error("confirmation still pending after n")
	}

	// Signing out elsewhere sends the user back to the auth screen
	m = update(t, m, sessionMsg{status: session.Status{State: session.StateAnonymous}})
	if m.screen != tracker.ScreenAuth {
		t.Errorf("screen after sign out = %v, want auth", m.screen)
	}
}

func TestToastExpiry(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m, completedMsg{done: true})
	if m.toast != tracker.CompletedFeedback {
		t.Fatalf("toast = %q", m.toast)
	}
	first := m.toastID
	m = update(t, m, deletedMsg{title: "Read"})
	m = update(t, m, toastExpiredMsg{id: first})
	if m.toast != "Deleted Read" {
		t.Errorf("newer toast cleared by older expiry, toast = %q", m.toast)
	}
	m = update(t, m, toastExpiredMsg{id: m.toastID})
	if m.toast != "" {
		t.Errorf("toast = %q after expiry", m.toast)
	}
}
