// Package remote implements the backend contracts as an HTTP client of
// `habio serve`.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/constants"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/models"
)

type Options struct {
	Endpoint  string
	ProjectID string
	Platform  string
	// HTTPClient overrides the default client with a 10s timeout
	HTTPClient  *http.Client
	MaxAttempts int
	RetryDelay  time.Duration
}

// Client talks to a habio server. It is safe for concurrent use.
type Client struct {
	base     string
	project  string
	agent    string
	http     *http.Client
	stream   *http.Client
	attempts int
	delay    time.Duration

	mu     sync.RWMutex
	secret string
}

var _ backend.Client = (*Client)(nil)

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.RemoteTimeout}
	}
	c := &Client{
		base:     strings.TrimRight(opts.Endpoint, "/"),
		project:  opts.ProjectID,
		agent:    fmt.Sprintf("%s/%s (%s)", constants.AppName, constants.Version, opts.Platform),
		http:     httpClient,
		attempts: opts.MaxAttempts,
		delay:    opts.RetryDelay,
	}
	// Event streams stay open indefinitely: same transport, no timeout
	c.stream = &http.Client{Transport: httpClient.Transport}
	if c.attempts < 1 {
		c.attempts = constants.RemoteMaxAttempts
	}
	if c.delay <= 0 {
		c.delay = constants.RemoteRetryDelay
	}
	return c
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

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Request, error) {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.Wrap(errors.KindValidation, err, "invalid backend request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.agent)
	if c.project != "" {
		req.Header.Set(constants.HeaderProject, c.project)
	}
	if secret := c.currentSecret(); secret != "" {
		req.Header.Set(constants.HeaderSession, secret)
	}
	return req, nil
}

// do sends a request, retrying transport failures with a linear backoff.
// HTTP error responses are never retried.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return errors.Wrap(errors.KindValidation, err, "failed to encode request")
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		req, err := c.newRequest(ctx, method, path, query, body)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Wrap(errors.KindNetwork, ctx.Err(), "request cancelled")
			}
			lastErr = err
			if attempt < c.attempts {
				if err := sleep(ctx, time.Duration(attempt)*c.delay); err != nil {
					return errors.Wrap(errors.KindNetwork, err, "request cancelled")
				}
			}
			continue
		}
		return decodeResponse(resp, out)
	}
	return errors.Wrap(errors.KindNetwork, lastErr, fmt.Sprintf("backend unreachable after %d attempts: %v", c.attempts, lastErr))
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return responseError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(errors.KindUnknown, err, "failed to decode backend response")
	}
	return nil
}

// responseError maps an error response back to a tagged error
func responseError(resp *http.Response) error {
	var body struct {
		Type    errors.Kind `json:"type"`
		Message string      `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)

	kind := body.Type
	if kind == "" {
		switch resp.StatusCode {
		case http.StatusBadRequest:
			kind = errors.KindValidation
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = errors.KindUnauthorized
		case http.StatusNotFound:
			kind = errors.KindNotFound
		case http.StatusConflict:
			kind = errors.KindConflict
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			kind = errors.KindNetwork
		default:
			kind = errors.KindUnknown
		}
	}
	message := body.Message
	if message == "" {
		message = fmt.Sprintf("backend returned %s", resp.Status)
	}
	return errors.New(kind, message)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) CurrentUser(ctx context.Context) (models.Identity, error) {
	var identity models.Identity
	err := c.do(ctx, http.MethodGet, "/v1/account", nil, nil, &identity)
	return identity, err
}

func (c *Client) CreateAccount(ctx context.Context, email, password string) (models.Identity, error) {
	var identity models.Identity
	err := c.do(ctx, http.MethodPost, "/v1/account", nil, map[string]string{
		"email":    email,
		"password": password,
	}, &identity)
	return identity, err
}

func (c *Client) CreateSession(ctx context.Context, email, password string) (backend.Session, error) {
	var session backend.Session
	err := c.do(ctx, http.MethodPost, "/v1/account/sessions/email", nil, map[string]string{
		"email":    email,
		"password": password,
	}, &session)
	if err != nil {
		return backend.Session{}, err
	}
	c.SetSecret(session.Secret)
	return session, nil
}

func (c *Client) DeleteSession(ctx context.Context) error {
	err := c.do(ctx, http.MethodDelete, "/v1/account/sessions/current", nil, nil, nil)
	c.SetSecret("")
	return err
}

func documentsPath(database, collection string) string {
	return fmt.Sprintf("/v1/databases/%s/collections/%s/documents", url.PathEscape(database), url.PathEscape(collection))
}

func (c *Client) ListDocuments(ctx context.Context, database, collection string, filters ...backend.Filter) (backend.DocumentList, error) {
	query := url.Values{}
	for _, f := range filters {
		raw, err := json.Marshal(f)
		if err != nil {
			return backend.DocumentList{}, errors.Wrap(errors.KindValidation, err, "failed to encode filter")
		}
		query.Add("filter", string(raw))
	}
	var list backend.DocumentList
	err := c.do(ctx, http.MethodGet, documentsPath(database, collection), query, nil, &list)
	return list, err
}

func (c *Client) CreateDocument(ctx context.Context, database, collection, id string, data map[string]any) (backend.Document, error) {
	var doc backend.Document
	err := c.do(ctx, http.MethodPost, documentsPath(database, collection), nil, map[string]any{
		"documentId": id,
		"data":       data,
	}, &doc)
	return doc, err
}

func (c *Client) UpdateDocument(ctx context.Context, database, collection, id string, data map[string]any) (backend.Document, error) {
	var doc backend.Document
	err := c.do(ctx, http.MethodPatch, documentsPath(database, collection)+"/"+url.PathEscape(id), nil, map[string]any{
		"data": data,
	}, &doc)
	return doc, err
}

func (c *Client) DeleteDocument(ctx context.Context, database, collection, id string) error {
	return c.do(ctx, http.MethodDelete, documentsPath(database, collection)+"/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
