package embedded

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	stderrors "errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/constants"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/models"
)

// storedTimeLayout is fixed width so stored timestamps order lexically
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// NormalizeEmail trims and lower-cases email and checks it is a bare address
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", errors.New(errors.KindValidation, "Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errors.Newf(errors.KindValidation, "Invalid email address: %s", email)
	}
	return email, nil
}

// CreateAccount registers a new account. The password is stored as a bcrypt hash.
func (b *Backend) CreateAccount(ctx context.Context, email, password string) (models.Identity, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return models.Identity{}, err
	}
	if len(password) < constants.MinPasswordLength {
		return models.Identity{}, errors.Newf(errors.KindValidation, "Password must be at least %d characters long", constants.MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return models.Identity{}, errors.Wrap(errors.KindValidation, err, "Password cannot be used")
	}

	identity := models.Identity{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: b.now().UTC(),
	}
	_, err = b.db.ExecContext(ctx, b.rebind(`
		INSERT INTO accounts (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)`),
		identity.ID, identity.Email, string(hash), identity.CreatedAt.Format(storedTimeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return models.Identity{}, errors.New(errors.KindConflict, "A user with the same email already exists")
		}
		return models.Identity{}, errors.Wrap(errors.KindUnknown, err, "failed to create account")
	}
	return identity, nil
}

// CreateSession checks the credentials and opens a session. The returned
// Session is the only place the secret is ever visible.
func (b *Backend) CreateSession(ctx context.Context, email, password string) (backend.Session, error) {
	invalid := errors.New(errors.KindUnauthorized, "Invalid credentials. Please check the email and password.")

	email, err := NormalizeEmail(email)
	if err != nil {
		return backend.Session{}, invalid
	}

	var accountID, hash string
	err = b.db.QueryRowContext(ctx, b.rebind(`SELECT id, password_hash FROM accounts WHERE email = ?`), email).
		Scan(&accountID, &hash)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return backend.Session{}, invalid
		}
		return backend.Session{}, errors.Wrap(errors.KindUnknown, err, "failed to look up account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return backend.Session{}, invalid
	}

	now := b.now().UTC()
	session := backend.Session{
		ID:        uuid.NewString(),
		UserID:    accountID,
		Secret:    newSecret(),
		ExpiresAt: now.Add(b.ttl),
	}
	_, err = b.db.ExecContext(ctx, b.rebind(`
		INSERT INTO sessions (id, account_id, token_hash, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`),
		session.ID, session.UserID, hashSecret(session.Secret),
		now.Format(storedTimeLayout), session.ExpiresAt.Format(storedTimeLayout))
	if err != nil {
		return backend.Session{}, errors.Wrap(errors.KindUnknown, err, "failed to create session")
	}
	return session, nil
}

// Authenticate resolves a session secret to its account
func (b *Backend) Authenticate(ctx context.Context, secret string) (models.Identity, error) {
	if secret == "" {
		return models.Identity{}, errors.New(errors.KindUnauthorized, "No active session")
	}

	var (
		identity  models.Identity
		createdAt string
		expiresAt string
	)
	err := b.db.QueryRowContext(ctx, b.rebind(`
		SELECT a.id, a.email, a.created_at, s.expires_at
		FROM sessions s
		JOIN accounts a ON a.id = s.account_id
		WHERE s.token_hash = ?`), hashSecret(secret)).
		Scan(&identity.ID, &identity.Email, &createdAt, &expiresAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return models.Identity{}, errors.New(errors.KindUnauthorized, "Session not found or expired")
		}
		return models.Identity{}, errors.Wrap(errors.KindUnknown, err, "failed to look up session")
	}

	expires, err := time.Parse(storedTimeLayout, expiresAt)
	if err != nil || !b.now().Before(expires) {
		return models.Identity{}, errors.New(errors.KindUnauthorized, "Session not found or expired")
	}
	identity.CreatedAt, _ = time.Parse(storedTimeLayout, createdAt)
	return identity, nil
}

// DeleteSession ends the session identified by secret
func (b *Backend) DeleteSession(ctx context.Context, secret string) error {
	if secret == "" {
		return errors.New(errors.KindUnauthorized, "No active session")
	}
	res, err := b.db.ExecContext(ctx, b.rebind(`DELETE FROM sessions WHERE token_hash = ?`), hashSecret(secret))
	if err != nil {
		return errors.Wrap(errors.KindUnknown, err, "failed to delete session")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New(errors.KindUnauthorized, "Session not found or expired")
	}
	return nil
}

// PurgeExpiredSessions removes sessions past their expiry and reports how many
func (b *Backend) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	res, err := b.db.ExecContext(ctx, b.rebind(`DELETE FROM sessions WHERE expires_at <= ?`),
		b.now().UTC().Format(storedTimeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func newSecret() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
