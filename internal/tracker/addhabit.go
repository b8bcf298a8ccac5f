package tracker

import (
	"context"
	"strings"

	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/models"
	"github.com/julianstephens/habio/internal/repository"
	"github.com/julianstephens/habio/internal/session"
)

const (
	AddHabitTitle       = "Create a New Habit"
	createHabitFallback = "There was an error creating a habit"
)

// AddHabit is the new habit form
type AddHabit struct {
	store  *session.Store
	habits *repository.HabitRepository

	Title       string
	Description string
	Frequency   models.Frequency
	Error       string
}

func NewAddHabit(store *session.Store, habits *repository.HabitRepository) *AddHabit {
	a := &AddHabit{store: store, habits: habits}
	a.Reset()
	return a
}

// CanSubmit reports whether both text fields are filled in
func (a *AddHabit) CanSubmit() bool {
	return strings.TrimSpace(a.Title) != "" && strings.TrimSpace(a.Description) != ""
}

// Reset clears the form
func (a *AddHabit) Reset() {
	a.Title = ""
	a.Description = ""
	a.Frequency = models.FrequencyDaily
	a.Error = ""
}

// Submit creates the habit for the signed-in user and resets the form on
// success. On failure Error holds the message to display.
func (a *AddHabit) Submit(ctx context.Context) (models.Habit, error) {
	identity, ok := a.store.Identity()
	if !ok {
		err := errors.New(errors.KindUnauthorized, "Not signed in")
		a.Error = err.Error()
		return models.Habit{}, err
	}

	h, err := a.habits.Create(ctx, identity.ID, a.Title, a.Description, a.Frequency)
	if err != nil {
		a.Error = message(err, createHabitFallback)
		return models.Habit{}, err
	}
	a.Reset()
	return h, nil
}
