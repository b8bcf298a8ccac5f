// Package tracker holds the view controllers of the app: the routing guard,
// the auth form, the Today list and the add-habit form. They carry no
// rendering; the TUI and the CLI drive them.
package tracker

import "github.com/julianstephens/habio/internal/session"

type Screen int

const (
	ScreenAuth Screen = iota
	ScreenToday
	ScreenAddHabit
)

func (s Screen) String() string {
	switch s {
	case ScreenAuth:
		return "auth"
	case ScreenToday:
		return "today"
	case ScreenAddHabit:
		return "add-habit"
	default:
		return "unknown"
	}
}

// Protected reports whether the screen requires a signed-in user
func (s Screen) Protected() bool {
	return s != ScreenAuth
}

// Decision is the outcome of routing
type Decision struct {
	// Wait is set while the session is still loading; no screen may be shown
	Wait   bool
	Screen Screen
}

// Route applies the routing guard to a requested screen
func Route(status session.Status, requested Screen) Decision {
	switch {
	case status.Loading():
		return Decision{Wait: true, Screen: requested}
	case status.State == session.StateAnonymous && requested.Protected():
		return Decision{Screen: ScreenAuth}
	case status.State == session.StateAuthenticated && requested == ScreenAuth:
		return Decision{Screen: ScreenToday}
	default:
		return Decision{Screen: requested}
	}
}
