// Package session holds the authenticated identity of the running app and the
// sign-up, sign-in, sign-out and bootstrap flows around it.
package session

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/constants"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/keyring"
	"github.com/julianstephens/habio/internal/logger"
	"github.com/julianstephens/habio/internal/models"
)

// State is where the store is in its sign-in lifecycle
type State int

const (
	// StateUnknown means bootstrap has not resolved yet
	StateUnknown State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Status is a consistent view of the store
type Status struct {
	State    State
	Identity models.Identity
}

// Loading reports whether navigation decisions must still wait
func (s Status) Loading() bool {
	return s.State == StateUnknown
}

// SecretStore persists the session secret between runs.
// keyring.SecretStore is the production implementation.
type SecretStore interface {
	Load() (string, error)
	Save(secret string) error
	Clear() error
}

// Store owns the session of one backend client. Listeners registered with
// OnChange see every state change.
type Store struct {
	identity backend.Identity
	secrets  SecretStore

	bootOnce sync.Once

	mu        sync.RWMutex
	status    Status
	secret    string
	listeners map[int]func(Status)
	nextID    int
}

// New creates a store in StateUnknown. secrets may be nil, in which case
// sessions do not survive the process.
func New(identity backend.Identity, secrets SecretStore) *Store {
	return &Store{
		identity:  identity,
		secrets:   secrets,
		listeners: make(map[int]func(Status)),
	}
}

// ValidateCredentials applies the local rules checked before any remote call
func ValidateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return errors.New(errors.KindValidation, "Email and password are required")
	}
	if len(password) < constants.MinPasswordLength {
		return errors.Newf(errors.KindValidation, "Password must be at least %d characters long", constants.MinPasswordLength)
	}
	return nil
}

// Status returns the current state and identity
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Identity returns the signed-in identity, if any
func (s *Store) Identity() (models.Identity, bool) {
	st := s.Status()
	return st.Identity, st.State == StateAuthenticated
}

// OnChange registers fn to be called after every state change. fn runs on the
// goroutine that caused the change.
func (s *Store) OnChange(fn func(Status)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) set(state State, identity models.Identity) {
	s.mu.Lock()
	s.status = Status{State: state, Identity: identity}
	st := s.status
	listeners := make([]func(Status), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	logger.Debug("Session state changed", "state", state, "user", identity.ID)
	for _, fn := range listeners {
		fn(st)
	}
}

// Bootstrap resumes a persisted session. It runs once per store; later calls
// return the current status. It always leaves the store Anonymous or
// Authenticated.
func (s *Store) Bootstrap(ctx context.Context) Status {
	s.bootOnce.Do(func() {
		identity, err := s.resume(ctx)
		if err != nil {
			logger.Debug("No session to resume", "error", err)
			s.set(StateAnonymous, models.Identity{})
			return
		}
		s.set(StateAuthenticated, identity)
	})
	return s.Status()
}

func (s *Store) resume(ctx context.Context) (models.Identity, error) {
	if s.secrets == nil {
		return models.Identity{}, errors.New(errors.KindUnauthorized, "No persisted session")
	}
	secret, err := s.secrets.Load()
	if err != nil {
		if !stderrors.Is(err, keyring.ErrNotFound) {
			logger.Warn("Failed to read session from keyring", "error", err)
		}
		return models.Identity{}, errors.Wrap(errors.KindUnauthorized, err, "No persisted session")
	}

	s.identity.SetSecret(secret)
	identity, err := s.identity.CurrentUser(ctx)
	if err != nil {
		s.identity.SetSecret(s.currentSecret())
		if errors.Is(err, errors.KindUnauthorized) {
			if cerr := s.secrets.Clear(); cerr != nil {
				logger.Warn("Failed to clear stale session", "error", cerr)
			}
		}
		return models.Identity{}, err
	}
	s.setSecret(secret)
	return identity, nil
}

func (s *Store) currentSecret() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secret
}

func (s *Store) setSecret(secret string) {
	s.mu.Lock()
	s.secret = secret
	s.mu.Unlock()
}

// SignUp creates an account and signs into it
func (s *Store) SignUp(ctx context.Context, email, password string) error {
	if err := ValidateCredentials(email, password); err != nil {
		return err
	}
	if _, err := s.identity.CreateAccount(ctx, email, password); err != nil {
		return tagged(err, "Sign up failed")
	}
	return s.SignIn(ctx, email, password)
}

// SignIn opens a session and caches the identity. A session it replaces is
// ended remotely. On failure the previous session, if any, stays current.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	if err := ValidateCredentials(email, password); err != nil {
		return err
	}
	prev := s.currentSecret()
	session, err := s.identity.CreateSession(ctx, email, password)
	if err != nil {
		return tagged(err, "Sign in failed")
	}
	identity, err := s.identity.CurrentUser(ctx)
	if err != nil {
		if derr := s.identity.DeleteSession(ctx); derr != nil {
			logger.Warn("Failed to delete unusable session", "error", derr)
		}
		s.identity.SetSecret(prev)
		return tagged(err, "Sign in failed")
	}

	if prev != "" && session.Secret != "" && prev != session.Secret {
		s.identity.SetSecret(prev)
		if err := s.identity.DeleteSession(ctx); err != nil {
			logger.Warn("Failed to delete replaced session", "error", err)
		}
		s.identity.SetSecret(session.Secret)
	}
	s.setSecret(session.Secret)

	if s.secrets != nil && session.Secret != "" {
		if err := s.secrets.Save(session.Secret); err != nil {
			logger.Warn("Failed to persist session, it will end with this process", "error", err)
		}
	}
	s.set(StateAuthenticated, identity)
	return nil
}

// SignOut ends the session. Remote and keyring failures are logged, never
// returned.
func (s *Store) SignOut(ctx context.Context) {
	if err := s.identity.DeleteSession(ctx); err != nil {
		logger.Warn("Failed to delete remote session", "error", err)
	}
	s.setSecret("")
	if s.secrets != nil {
		if err := s.secrets.Clear(); err != nil {
			logger.Warn("Failed to clear persisted session", "error", err)
		}
	}
	s.set(StateAnonymous, models.Identity{})
}

// tagged makes sure err carries a kind and a readable message
func tagged(err error, fallback string) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return e
	}
	return errors.Wrap(errors.KindUnknown, err, fallback+": "+err.Error())
}
