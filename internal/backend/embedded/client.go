package embedded

import (
	"context"
	"sync"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/models"
)

// Client binds a Backend to the session of a single user and implements
// backend.Client, so the app can run without a server.
type Client struct {
	b      *Backend
	owned  bool
	mu     sync.RWMutex
	secret string
}

var _ backend.Client = (*Client)(nil)

// NewClient wraps b. Close on the client leaves b open.
func NewClient(b *Backend) *Client {
	return &Client{b: b}
}

// OpenClient opens a Backend at dsn that is closed together with the client.
func OpenClient(ctx context.Context, dsn string, opts Options) (*Client, error) {
	b, err := Open(ctx, dsn, opts)
	if err != nil {
		return nil, err
	}
	return &Client{b: b, owned: true}, nil
}

// Backend exposes the wrapped backend
func (c *Client) Backend() *Backend {
	return c.b
}

func (c *Client) SetSecret(secret string) {
	c.mu.Lock()
	c.secret = secret
	c.mu.Unlock()
}

func (c *Client) currentSecret() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.secret
}

func (c *Client) owner(ctx context.Context) (string, error) {
	identity, err := c.b.Authenticate(ctx, c.currentSecret())
	if err != nil {
		return "", err
	}
	return identity.ID, nil
}

func (c *Client) CurrentUser(ctx context.Context) (models.Identity, error) {
	return c.b.Authenticate(ctx, c.currentSecret())
}

func (c *Client) CreateAccount(ctx context.Context, email, password string) (models.Identity, error) {
	return c.b.CreateAccount(ctx, email, password)
}

func (c *Client) CreateSession(ctx context.Context, email, password string) (backend.Session, error) {
	session, err := c.b.CreateSession(ctx, email, password)
	if err != nil {
		return backend.Session{}, err
	}
	c.SetSecret(session.Secret)
	return session, nil
}

func (c *Client) DeleteSession(ctx context.Context) error {
	secret := c.currentSecret()
	if secret == "" {
		return errors.New(errors.KindUnauthorized, "No active session")
	}
	err := c.b.DeleteSession(ctx, secret)
	c.SetSecret("")
	return err
}

func (c *Client) ListDocuments(ctx context.Context, database, collection string, filters ...backend.Filter) (backend.DocumentList, error) {
	owner, err := c.owner(ctx)
	if err != nil {
		return backend.DocumentList{}, err
	}
	return c.b.ListDocuments(ctx, owner, database, collection, filters...)
}

func (c *Client) CreateDocument(ctx context.Context, database, collection, id string, data map[string]any) (backend.Document, error) {
	owner, err := c.owner(ctx)
	if err != nil {
		return backend.Document{}, err
	}
	return c.b.CreateDocument(ctx, owner, database, collection, id, data)
}

func (c *Client) UpdateDocument(ctx context.Context, database, collection, id string, data map[string]any) (backend.Document, error) {
	owner, err := c.owner(ctx)
	if err != nil {
		return backend.Document{}, err
	}
	return c.b.UpdateDocument(ctx, owner, database, collection, id, data)
}

func (c *Client) DeleteDocument(ctx context.Context, database, collection, id string) error {
	owner, err := c.owner(ctx)
	if err != nil {
		return err
	}
	return c.b.DeleteDocument(ctx, owner, database, collection, id)
}

func (c *Client) Subscribe(ctx context.Context, channel string, fn func(backend.Event)) (backend.Unsubscribe, error) {
	owner, err := c.owner(ctx)
	if err != nil {
		return nil, err
	}
	return c.b.Subscribe(ctx, owner, []string{channel}, fn)
}

func (c *Client) Close() error {
	if c.owned {
		return c.b.Close()
	}
	return nil
}
