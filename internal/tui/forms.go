package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habio/internal/models"
	"github.com/julianstephens/habio/internal/tracker"
)

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// newAuthForm binds the email and password inputs to f
func newAuthForm(f *tracker.AuthForm) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("example@gmail.com").
				Value(&f.Email),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&f.Password),
		).Title(f.Title()).
			Description(f.ToggleLabel()+" (ctrl+t)"),
	).WithTheme(huh.ThemeDracula())
}

// newHabitForm binds the new habit fields to a. Both text fields must be
// filled in before the form can be submitted.
func newHabitForm(a *tracker.AddHabit) *huh.Form {
	options := make([]huh.Option[models.Frequency], len(models.Frequencies))
	for i, f := range models.Frequencies {
		options[i] = huh.NewOption(string(f), f)
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&a.Title).
				Validate(required("title")),
			huh.NewInput().
				Title("Description").
				Value(&a.Description).
				Validate(required("description")),
			huh.NewSelect[models.Frequency]().
				Title("Frequency").
				Options(options...).
				Value(&a.Frequency),
		).Title(tracker.AddHabitTitle),
	).WithTheme(huh.ThemeDracula())
}
