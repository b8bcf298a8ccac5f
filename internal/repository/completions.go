package repository

import (
	"context"
	"time"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/logger"
	"github.com/julianstephens/habio/internal/models"
	"github.com/julianstephens/habio/internal/utils"
)

// CompletionRepository appends and reads completions. Completions are never
// updated or deleted.
type CompletionRepository struct {
	docs       backend.Documents
	database   string
	collection string
	now        func() time.Time
}

// NewCompletionRepository stores completions in collection of database
func NewCompletionRepository(docs backend.Documents, database, collection string) *CompletionRepository {
	return &CompletionRepository{
		docs:       docs,
		database:   database,
		collection: collection,
		now:        time.Now,
	}
}

// SetClock replaces the time source used for "now" and "today"
func (r *CompletionRepository) SetClock(now func() time.Time) {
	r.now = now
}

// ListToday returns owner's completions since the start of the current local day
func (r *CompletionRepository) ListToday(ctx context.Context, ownerID string) ([]models.Completion, error) {
	since := utils.StartOfDay(r.now())
	list, err := r.docs.ListDocuments(ctx, r.database, r.collection,
		backend.Equal(models.FieldOwnerID, ownerID),
		backend.GreaterThanEqual(models.FieldCompletedAt, backend.FormatTime(since)),
	)
	if err != nil {
		return nil, err
	}

	completions := make([]models.Completion, 0, len(list.Documents))
	for _, doc := range list.Documents {
		c, err := models.CompletionFromFields(doc.ID, doc.Data)
		if err != nil {
			logger.Warn("Skipping malformed completion", "id", doc.ID, "error", err)
			continue
		}
		completions = append(completions, c)
	}
	return completions, nil
}

// Create appends a completion of habitID stamped now. A habit that already has
// a completion today is refused with a Conflict error. The check and the write
// are not atomic, so two devices can still race past it.
func (r *CompletionRepository) Create(ctx context.Context, habitID, ownerID string) (models.Completion, error) {
	today, err := r.ListToday(ctx, ownerID)
	if err != nil {
		return models.Completion{}, err
	}
	if CompletedToday(today)[habitID] {
		return models.Completion{}, errors.New(errors.KindConflict, "Habit already completed today")
	}

	c := models.Completion{
		HabitID:     habitID,
		OwnerID:     ownerID,
		CompletedAt: r.now(),
	}
	doc, err := r.docs.CreateDocument(ctx, r.database, r.collection, backend.UniqueID, c.Fields())
	if err != nil {
		return models.Completion{}, err
	}
	c.ID = doc.ID
	return c, nil
}

// CompletedToday indexes completions by habit id
func CompletedToday(completions []models.Completion) map[string]bool {
	done := make(map[string]bool, len(completions))
	for _, c := range completions {
		done[c.HabitID] = true
	}
	return done
}
