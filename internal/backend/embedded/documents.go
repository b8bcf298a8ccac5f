package embedded

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/logger"
)

const publishTimeout = 5 * time.Second

var documentIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,35}$`)

func (b *Backend) resolveID(id string) (string, error) {
	if id == "" || id == backend.UniqueID {
		return uuid.NewString(), nil
	}
	if !documentIDPattern.MatchString(id) {
		return "", errors.Newf(errors.KindValidation, "Invalid document id %q", id)
	}
	return id, nil
}

// ListDocuments returns owner's documents of a collection that satisfy every
// filter, in insertion order.
func (b *Backend) ListDocuments(ctx context.Context, owner, database, collection string, filters ...backend.Filter) (backend.DocumentList, error) {
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return backend.DocumentList{}, errors.Wrap(errors.KindValidation, err, "")
		}
	}

	rows, err := b.db.QueryContext(ctx, b.rebind(`
		SELECT id, owner_id, data, created_at, updated_at
		FROM documents
		WHERE database_id = ? AND collection_id = ? AND owner_id = ?
		ORDER BY created_at, id`), database, collection, owner)
	if err != nil {
		return backend.DocumentList{}, errors.Wrap(errors.KindUnknown, err, "failed to list documents")
	}
	defer rows.Close()

	list := backend.DocumentList{Documents: []backend.Document{}}
	for rows.Next() {
		doc, err := scanDocument(rows, collection)
		if err != nil {
			return backend.DocumentList{}, errors.Wrap(errors.KindUnknown, err, "failed to read document")
		}
		if backend.MatchAll(doc.Data, filters) {
			list.Documents = append(list.Documents, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return backend.DocumentList{}, errors.Wrap(errors.KindUnknown, err, "failed to list documents")
	}
	list.Total = len(list.Documents)
	return list, nil
}

// CreateDocument stores data as a new document owned by owner
func (b *Backend) CreateDocument(ctx context.Context, owner, database, collection, id string, data map[string]any) (backend.Document, error) {
	id, err := b.resolveID(id)
	if err != nil {
		return backend.Document{}, err
	}
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return backend.Document{}, errors.Wrap(errors.KindValidation, err, "Document data is not valid JSON")
	}

	now := b.now().UTC()
	_, err = b.db.ExecContext(ctx, b.rebind(`
		INSERT INTO documents (database_id, collection_id, id, owner_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		database, collection, id, owner, string(raw), now.UnixNano(), now.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return backend.Document{}, errors.New(errors.KindConflict, "Document with the requested ID already exists")
		}
		return backend.Document{}, errors.Wrap(errors.KindUnknown, err, "failed to create document")
	}

	// Round-trip through JSON so callers see the same types a listing returns
	var stored map[string]any
	_ = json.Unmarshal(raw, &stored)
	doc := backend.Document{
		ID:         id,
		Collection: collection,
		OwnerID:    owner,
		Data:       stored,
		CreatedAt:  time.Unix(0, now.UnixNano()).UTC(),
		UpdatedAt:  time.Unix(0, now.UnixNano()).UTC(),
	}
	b.publish(ctx, database, backend.EventCreate, doc)
	return doc, nil
}

// UpdateDocument merges data into an existing document of owner
func (b *Backend) UpdateDocument(ctx context.Context, owner, database, collection, id string, data map[string]any) (backend.Document, error) {
	doc, err := b.getDocument(ctx, owner, database, collection, id)
	if err != nil {
		return backend.Document{}, err
	}
	for k, v := range data {
		doc.Data[k] = v
	}
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return backend.Document{}, errors.Wrap(errors.KindValidation, err, "Document data is not valid JSON")
	}

	now := b.now().UTC()
	_, err = b.db.ExecContext(ctx, b.rebind(`
		UPDATE documents SET data = ?, updated_at = ?
		WHERE database_id = ? AND collection_id = ? AND id = ? AND owner_id = ?`),
		string(raw), now.UnixNano(), database, collection, id, owner)
	if err != nil {
		return backend.Document{}, errors.Wrap(errors.KindUnknown, err, "failed to update document")
	}

	doc.Data = nil
	_ = json.Unmarshal(raw, &doc.Data)
	doc.UpdatedAt = time.Unix(0, now.UnixNano()).UTC()
	b.publish(ctx, database, backend.EventUpdate, doc)
	return doc, nil
}

// DeleteDocument removes a document of owner. A missing document is NotFound.
func (b *Backend) DeleteDocument(ctx context.Context, owner, database, collection, id string) error {
	doc, err := b.getDocument(ctx, owner, database, collection, id)
	if err != nil {
		return err
	}
	res, err := b.db.ExecContext(ctx, b.rebind(`
		DELETE FROM documents
		WHERE database_id = ? AND collection_id = ? AND id = ? AND owner_id = ?`),
		database, collection, id, owner)
	if err != nil {
		return errors.Wrap(errors.KindUnknown, err, "failed to delete document")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	b.publish(ctx, database, backend.EventDelete, doc)
	return nil
}

// Subscribe delivers events on any of channels for documents owned by owner.
// The subscription ends when the returned function is called or ctx is done.
func (b *Backend) Subscribe(ctx context.Context, owner string, channels []string, fn func(backend.Event)) (backend.Unsubscribe, error) {
	if len(channels) == 0 {
		return nil, errors.New(errors.KindValidation, "at least one channel is required")
	}
	for _, ch := range channels {
		if ch == "" {
			return nil, errors.New(errors.KindValidation, "channel cannot be empty")
		}
	}
	cancel := b.broker.Subscribe(func(ev backend.Event) {
		if ev.Payload.OwnerID != owner {
			return
		}
		for _, ch := range channels {
			if ev.OnChannel(ch) {
				fn(ev)
				return
			}
		}
	})

	var once sync.Once
	unsubscribe := func() { once.Do(cancel) }
	stop := context.AfterFunc(ctx, unsubscribe)
	return func() {
		stop()
		unsubscribe()
	}, nil
}

func (b *Backend) getDocument(ctx context.Context, owner, database, collection, id string) (backend.Document, error) {
	row := b.db.QueryRowContext(ctx, b.rebind(`
		SELECT id, owner_id, data, created_at, updated_at
		FROM documents
		WHERE database_id = ? AND collection_id = ? AND id = ? AND owner_id = ?`),
		database, collection, id, owner)
	doc, err := scanDocument(row, collection)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return backend.Document{}, notFound(id)
		}
		return backend.Document{}, errors.Wrap(errors.KindUnknown, err, "failed to read document")
	}
	return doc, nil
}

func (b *Backend) publish(ctx context.Context, database string, kind backend.EventKind, doc backend.Document) {
	ev := backend.NewEvent(database, kind, doc, b.now().UTC())
	// The write has committed; publishing outlives the caller's context
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := b.broker.Publish(pctx, ev); err != nil {
		logger.Warn("Failed to publish realtime event", "event", ev.Events[0], "error", err)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, collection string) (backend.Document, error) {
	var (
		doc       backend.Document
		raw       []byte
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&doc.ID, &doc.OwnerID, &raw, &createdAt, &updatedAt); err != nil {
		return backend.Document{}, err
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return backend.Document{}, err
	}
	if doc.Data == nil {
		doc.Data = map[string]any{}
	}
	doc.Collection = collection
	doc.CreatedAt = time.Unix(0, createdAt).UTC()
	doc.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return doc, nil
}

func notFound(id string) error {
	return errors.Newf(errors.KindNotFound, "Document with the requested ID could not be found: %s", id)
}
