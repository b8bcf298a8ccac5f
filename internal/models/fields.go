package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Document field names shared with the backend collections
const (
	FieldOwnerID       = "user_id"
	FieldTitle         = "title"
	FieldDescription   = "description"
	FieldFrequency     = "frequency"
	FieldStreakCount   = "streak_count"
	FieldLastCompleted = "last_completed"
	FieldCreatedAt     = "created_at"
	FieldHabitID       = "habit_id"
	FieldCompletedAt   = "completed_at"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Fields returns the document data of h. The id is carried by the document.
func (h Habit) Fields() map[string]any {
	return map[string]any{
		FieldOwnerID:       h.OwnerID,
		FieldTitle:         h.Title,
		FieldDescription:   h.Description,
		FieldFrequency:     string(h.Frequency),
		FieldStreakCount:   h.StreakCount,
		FieldLastCompleted: formatTime(h.LastCompletedAt),
		FieldCreatedAt:     formatTime(h.CreatedAt),
	}
}

// HabitFromFields decodes document data into a Habit
func HabitFromFields(id string, data map[string]any) (Habit, error) {
	h := Habit{
		ID:          id,
		OwnerID:     stringField(data, FieldOwnerID),
		Title:       stringField(data, FieldTitle),
		Description: stringField(data, FieldDescription),
		Frequency:   Frequency(stringField(data, FieldFrequency)),
	}
	var err error
	if h.StreakCount, err = intField(data, FieldStreakCount); err != nil {
		return Habit{}, fmt.Errorf("habit %s: %w", id, err)
	}
	if h.LastCompletedAt, err = timeField(data, FieldLastCompleted); err != nil {
		return Habit{}, fmt.Errorf("habit %s: %w", id, err)
	}
	if h.CreatedAt, err = timeField(data, FieldCreatedAt); err != nil {
		return Habit{}, fmt.Errorf("habit %s: %w", id, err)
	}
	return h, nil
}

func (c Completion) Fields() map[string]any {
	return map[string]any{
		FieldHabitID:     c.HabitID,
		FieldOwnerID:     c.OwnerID,
		FieldCompletedAt: formatTime(c.CompletedAt),
	}
}

// CompletionFromFields decodes document data into a Completion
func CompletionFromFields(id string, data map[string]any) (Completion, error) {
	completedAt, err := timeField(data, FieldCompletedAt)
	if err != nil {
		return Completion{}, fmt.Errorf("completion %s: %w", id, err)
	}
	return Completion{
		ID:          id,
		HabitID:     stringField(data, FieldHabitID),
		OwnerID:     stringField(data, FieldOwnerID),
		CompletedAt: completedAt,
	}, nil
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func intField(data map[string]any, key string) (int, error) {
	switch v := data[key].(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	default:
		return 0, fmt.Errorf("field %s: unexpected type %T", key, v)
	}
}

func timeField(data map[string]any, key string) (time.Time, error) {
	switch v := data[key].(type) {
	case nil:
		return time.Time{}, nil
	case string:
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("field %s: %w", key, err)
		}
		return t, nil
	case time.Time:
		return v, nil
	default:
		return time.Time{}, fmt.Errorf("field %s: unexpected type %T", key, v)
	}
}
