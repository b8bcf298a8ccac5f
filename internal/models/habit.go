package models

import (
	"fmt"
	"strings"
	"time"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "Daily"
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
)

// Frequencies lists the accepted values in display order
var Frequencies = []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyMonthly}

// ParseFrequency accepts any casing of a known frequency
func ParseFrequency(s string) (Frequency, error) {
	for _, f := range Frequencies {
		if strings.EqualFold(strings.TrimSpace(s), string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid frequency %q (expected Daily, Weekly or Monthly)", s)
}

func (f Frequency) Valid() bool {
	_, err := ParseFrequency(string(f))
	return err == nil && string(f) != ""
}

// Habit represents a recurring task tracked by a user, with a streak counter
type Habit struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"user_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Frequency       Frequency `json:"frequency"`
	StreakCount     int       `json:"streak_count"`
	LastCompletedAt time.Time `json:"last_completed"`
	CreatedAt       time.Time `json:"created_at"`
}

// Completion records that a habit was done at a point in time.
// Completions are append-only.
type Completion struct {
	ID          string    `json:"id"`
	HabitID     string    `json:"habit_id"`
	OwnerID     string    `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
}
