package backend

import (
	"testing"
	"time"
)

func TestFilterMatch(t *testing.T) {
	midnight := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	data := map[string]any{
		"user_id":      "u1",
		"streak_count": float64(3),
		"completed_at": FormatTime(midnight.Add(90 * time.Second)),
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"equal string", Equal("user_id", "u1"), true},
		{"equal string mismatch", Equal("user_id", "u2"), false},
		{"equal number", Equal("streak_count", 3), true},
		{"gte number", GreaterThanEqual("streak_count", 2), true},
		{"gte timestamp same day", GreaterThanEqual("completed_at", FormatTime(midnight)), true},
		{"gte timestamp next day", GreaterThanEqual("completed_at", FormatTime(midnight.AddDate(0, 0, 1))), false},
		{"missing field", Equal("habit_id", "h1"), false},
		{"type mismatch", Equal("user_id", 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(data); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterTimestampsCompareAsInstants(t *testing.T) {
	// Lexically "…:00.5Z" sorts before "…:00Z"
	f := GreaterThanEqual("at", "2026-10-18T00:00:00Z")
	if !f.Match(map[string]any{"at": "2026-10-18T00:00:00.5Z"}) {
		t.Error("sub-second timestamp after midnight should match")
	}
}

func TestFilterValidate(t *testing.T) {
	if err := Equal("title", "Read").Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
	if err := (Filter{Op: "contains", Field: "title"}).Validate(); err == nil {
		t.Error("Validate() should reject unknown operator")
	}
	if err := Equal("", "x").Validate(); err == nil {
		t.Error("Validate() should reject empty field")
	}
}

func TestNewEvent(t *testing.T) {
	doc := Document{ID: "h1", Collection: "habits"}
	ev := NewEvent("main", EventUpdate, doc, time.Now())

	if !ev.OnChannel("databases.main.collections.habits.documents") {
		t.Errorf("event channels = %v, missing collection channel", ev.Channels)
	}
	if ev.Events[0] != "databases.main.collections.habits.documents.h1.update" {
		t.Errorf("event name = %q", ev.Events[0])
	}
	if !ev.HasKind(EventUpdate) {
		t.Error("HasKind(update) = false")
	}
	if ev.HasKind(EventCreate, EventDelete) {
		t.Error("HasKind(create, delete) = true for an update event")
	}
}
