package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/habio/internal/constants"
)

var (
	// ErrNotFound is returned when no session secret is stored in the keyring
	ErrNotFound = errors.New("session secret not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// userFor scopes the keyring entry to a backend profile so switching between
// the embedded backend and a server does not reuse the wrong secret.
func userFor(profile string) string {
	if profile == "" {
		return constants.DefaultKeyringUser
	}
	return constants.DefaultKeyringUser + ":" + profile
}

// GetSessionSecret retrieves the session secret for profile from the OS keyring.
// Returns ErrNotFound if no secret is stored.
func GetSessionSecret(profile string) (string, error) {
	secret, err := keyring.Get(constants.AppName, userFor(profile))
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return secret, nil
}

// SetSessionSecret stores the session secret for profile in the OS keyring.
func SetSessionSecret(profile, secret string) error {
	if secret == "" {
		return errors.New("session secret cannot be empty")
	}
	if err := keyring.Set(constants.AppName, userFor(profile), secret); err != nil {
		return fmt.Errorf("failed to store session in keyring: %w", err)
	}
	return nil
}

// DeleteSessionSecret removes the session secret for profile from the OS keyring.
func DeleteSessionSecret(profile string) error {
	err := keyring.Delete(constants.AppName, userFor(profile))
	if err != nil {
		if err == keyring.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete session from keyring: %w", err)
	}
	return nil
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check and may not catch all failure scenarios.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || err == keyring.ErrNotFound
}

// SecretStore adapts the package functions to a single profile. The session
// store depends on this shape rather than on the OS keyring directly.
type SecretStore struct {
	Profile string
}

func (s SecretStore) Load() (string, error) {
	return GetSessionSecret(s.Profile)
}

func (s SecretStore) Save(secret string) error {
	return SetSessionSecret(s.Profile, secret)
}

func (s SecretStore) Clear() error {
	err := DeleteSessionSecret(s.Profile)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
