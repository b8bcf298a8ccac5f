// Package backend defines the contracts of the backend-as-a-service the app is a
// client of: an identity service, an owner-scoped document store and a realtime
// channel. Implementations live in the embedded and remote subpackages.
package backend

import (
	"context"
	"time"

	"github.com/julianstephens/habio/internal/models"
)

// UniqueID asks the backend to allocate a fresh document id.
const UniqueID = "unique()"

// Session is an authenticated session created by the identity service.
// Secret is only populated on creation.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Secret    string    `json:"secret,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Document is a stored record in a collection.
type Document struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	OwnerID    string         `json:"ownerId"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// DocumentList is the result of a list call
type DocumentList struct {
	Total     int        `json:"total"`
	Documents []Document `json:"documents"`
}

// Identity is the remote identity/session service.
type Identity interface {
	// CurrentUser returns the user of the current session
	CurrentUser(ctx context.Context) (models.Identity, error)
	CreateAccount(ctx context.Context, email, password string) (models.Identity, error)
	// CreateSession signs in and makes the new session current
	CreateSession(ctx context.Context, email, password string) (Session, error)
	// DeleteSession ends the current session
	DeleteSession(ctx context.Context) error
	// SetSecret resumes a previously created session
	SetSecret(secret string)
}

// Documents is the remote document store.
type Documents interface {
	ListDocuments(ctx context.Context, database, collection string, filters ...Filter) (DocumentList, error)
	CreateDocument(ctx context.Context, database, collection, id string, data map[string]any) (Document, error)
	// UpdateDocument merges data into the stored fields
	UpdateDocument(ctx context.Context, database, collection, id string, data map[string]any) (Document, error)
	DeleteDocument(ctx context.Context, database, collection, id string) error
}

// Unsubscribe releases a realtime subscription. It is safe to call more than once.
type Unsubscribe func()

// Realtime delivers change notifications for channels.
type Realtime interface {
	Subscribe(ctx context.Context, channel string, fn func(Event)) (Unsubscribe, error)
}

// Client bundles the three services, as handed out by a single backend connection.
type Client interface {
	Identity
	Documents
	Realtime
	Close() error
}
