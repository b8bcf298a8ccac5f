package tracker

import (
	"context"

	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/session"
)

type AuthMode int

const (
	ModeSignIn AuthMode = iota
	ModeSignUp
)

// AuthForm drives sign-in and sign-up
type AuthForm struct {
	store *session.Store

	Mode     AuthMode
	Email    string
	Password string
	// Error is the message shown under the form, empty when there is none
	Error string
}

func NewAuthForm(store *session.Store) *AuthForm {
	return &AuthForm{store: store}
}

// Toggle switches between sign-in and sign-up
func (f *AuthForm) Toggle() {
	if f.Mode == ModeSignIn {
		f.Mode = ModeSignUp
	} else {
		f.Mode = ModeSignIn
	}
	f.Error = ""
}

func (f *AuthForm) Title() string {
	if f.Mode == ModeSignUp {
		return "Create Account"
	}
	return "Welcome Back"
}

func (f *AuthForm) SubmitLabel() string {
	if f.Mode == ModeSignUp {
		return "Sign Up"
	}
	return "Sign In"
}

func (f *AuthForm) ToggleLabel() string {
	if f.Mode == ModeSignUp {
		return "Already have an account? Sign In"
	}
	return "Don't have an account? Sign Up"
}

// Submit validates locally, then signs in or up. On failure the message is
// also kept in Error.
func (f *AuthForm) Submit(ctx context.Context) error {
	err := session.ValidateCredentials(f.Email, f.Password)
	if err == nil {
		if f.Mode == ModeSignUp {
			err = f.store.SignUp(ctx, f.Email, f.Password)
		} else {
			err = f.store.SignIn(ctx, f.Email, f.Password)
		}
	}
	if err != nil {
		f.Error = message(err, "An error occurred during authentication")
		return err
	}
	f.Error = ""
	f.Password = ""
	return nil
}

// message returns the text to show for err. Untagged errors get fallback.
func message(err error, fallback string) string {
	var e *errors.Error
	if errors.As(err, &e) && e.Error() != "" {
		return e.Error()
	}
	return fallback
}
