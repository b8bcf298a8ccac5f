// Package repository reads and writes habits and completions through the
// backend document store.
package repository

import (
	"context"
	"strings"
	"time"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/logger"
	"github.com/julianstephens/habio/internal/models"
)

// HabitRepository reads and writes habit documents. Recording a completion
// also appends to the completion repository.
type HabitRepository struct {
	docs        backend.Documents
	database    string
	collection  string
	completions *CompletionRepository
	now         func() time.Time
}

// NewHabitRepository stores habits in collection of database; completions
// receives the records written by RecordCompletion.
func NewHabitRepository(docs backend.Documents, database, collection string, completions *CompletionRepository) *HabitRepository {
	return &HabitRepository{
		docs:        docs,
		database:    database,
		collection:  collection,
		completions: completions,
		now:         time.Now,
	}
}

// SetClock replaces the time source used for timestamps
func (r *HabitRepository) SetClock(now func() time.Time) {
	r.now = now
}

// List returns every habit of owner in insertion order
func (r *HabitRepository) List(ctx context.Context, ownerID string) ([]models.Habit, error) {
	list, err := r.docs.ListDocuments(ctx, r.database, r.collection, backend.Equal(models.FieldOwnerID, ownerID))
	if err != nil {
		return nil, err
	}

	habits := make([]models.Habit, 0, len(list.Documents))
	for _, doc := range list.Documents {
		h, err := models.HabitFromFields(doc.ID, doc.Data)
		if err != nil {
			logger.Warn("Skipping malformed habit", "id", doc.ID, "error", err)
			continue
		}
		habits = append(habits, h)
	}
	return habits, nil
}

// ValidateHabit checks the fields a new habit needs
func ValidateHabit(title, description string, frequency models.Frequency) error {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(description) == "" {
		return errors.New(errors.KindValidation, "Title and description are required")
	}
	if !frequency.Valid() {
		return errors.Newf(errors.KindValidation, "Invalid frequency %q (expected Daily, Weekly or Monthly)", frequency)
	}
	return nil
}

// Create stores a new habit with a zero streak
func (r *HabitRepository) Create(ctx context.Context, ownerID, title, description string, frequency models.Frequency) (models.Habit, error) {
	if err := ValidateHabit(title, description, frequency); err != nil {
		return models.Habit{}, err
	}

	now := r.now()
	h := models.Habit{
		OwnerID:         ownerID,
		Title:           strings.TrimSpace(title),
		Description:     strings.TrimSpace(description),
		Frequency:       frequency,
		StreakCount:     0,
		LastCompletedAt: now,
		CreatedAt:       now,
	}
	doc, err := r.docs.CreateDocument(ctx, r.database, r.collection, backend.UniqueID, h.Fields())
	if err != nil {
		return models.Habit{}, err
	}
	h.ID = doc.ID
	return h, nil
}

// Delete removes a habit. Its completions are left in place.
func (r *HabitRepository) Delete(ctx context.Context, id string) error {
	return r.docs.DeleteDocument(ctx, r.database, r.collection, id)
}

// RecordCompletion appends today's completion for habit, then bumps its streak
// and last completion time. The two writes are not atomic; when the second one
// fails the stores diverge and the divergence is logged.
func (r *HabitRepository) RecordCompletion(ctx context.Context, habit models.Habit) (models.Habit, error) {
	completion, err := r.completions.Create(ctx, habit.ID, habit.OwnerID)
	if err != nil {
		return habit, err
	}

	updated := habit
	updated.StreakCount = habit.StreakCount + 1
	updated.LastCompletedAt = completion.CompletedAt
	_, err = r.docs.UpdateDocument(ctx, r.database, r.collection, habit.ID, map[string]any{
		models.FieldStreakCount:   updated.StreakCount,
		models.FieldLastCompleted: backend.FormatTime(updated.LastCompletedAt),
	})
	if err != nil {
		logger.Error("Completion recorded but habit update failed, streak is out of sync",
			"habit", habit.ID,
			"completion", completion.ID,
			"failed_step", "update_habit",
			"error", err)
		return habit, err
	}
	return updated, nil
}
