package models

import (
	"testing"
	"time"
)

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		input   string
		want    Frequency
		wantErr bool
	}{
		{"Daily", FrequencyDaily, false},
		{"weekly", FrequencyWeekly, false},
		{" MONTHLY ", FrequencyMonthly, false},
		{"yearly", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFrequency(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFrequency(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFrequency(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFrequencyValid(t *testing.T) {
	if !FrequencyWeekly.Valid() {
		t.Error("Weekly should be valid")
	}
	if Frequency("").Valid() {
		t.Error("empty frequency should be invalid")
	}
	if Frequency("Hourly").Valid() {
		t.Error("Hourly should be invalid")
	}
}

func TestIdentityIsZero(t *testing.T) {
	if !(Identity{}).IsZero() {
		t.Error("empty identity should be zero")
	}
	if (Identity{ID: "u1", Email: "a@b.c"}).IsZero() {
		t.Error("identity with id should not be zero")
	}
}

func TestHabitFields(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	h := Habit{
		OwnerID:         "u1",
		Title:           "Read",
		Description:     "30 min",
		Frequency:       FrequencyDaily,
		StreakCount:     2,
		LastCompletedAt: created,
		CreatedAt:       created,
	}

	// Documents come back from JSON with float64 numbers
	data := h.Fields()
	data[FieldStreakCount] = float64(2)

	got, err := HabitFromFields("h1", data)
	if err != nil {
		t.Fatalf("HabitFromFields failed: %v", err)
	}
	h.ID = "h1"
	if got != h {
		t.Errorf("HabitFromFields() = %+v, want %+v", got, h)
	}
}

func TestHabitFromFieldsErrors(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
	}{
		{"bad streak", map[string]any{FieldStreakCount: "two"}},
		{"bad timestamp", map[string]any{FieldCreatedAt: "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := HabitFromFields("h1", tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCompletionFields(t *testing.T) {
	c := Completion{HabitID: "h1", OwnerID: "u1", CompletedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	got, err := CompletionFromFields("c1", c.Fields())
	if err != nil {
		t.Fatal(err)
	}
	c.ID = "c1"
	if got != c {
		t.Errorf("CompletionFromFields() = %+v, want %+v", got, c)
	}
}
