package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/backend/embedded"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/models"
)

const testPassword = "correct-horse"

type fixture struct {
	backend     *embedded.Backend
	client      *embedded.Client
	owner       string
	habits      *HabitRepository
	completions *CompletionRepository
}

// signedInClient returns a client with a fresh account signed in
func signedInClient(t *testing.T, b *embedded.Backend, email string) (*embedded.Client, string) {
	t.Helper()
	ctx := context.Background()
	client := embedded.NewClient(b)
	identity, err := client.CreateAccount(ctx, email, testPassword)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.CreateSession(ctx, email, testPassword); err != nil {
		t.Fatal(err)
	}
	return client, identity.ID
}

func newRepositories(docs backend.Documents) (*HabitRepository, *CompletionRepository) {
	completions := NewCompletionRepository(docs, "main", "completions")
	return NewHabitRepository(docs, "main", "habits", completions), completions
}

func setup(t *testing.T) fixture {
	t.Helper()
	b, err := embedded.Open(context.Background(), filepath.Join(t.TempDir(), "habio.db"), embedded.Options{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("embedded.Open failed: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	client, owner := signedInClient(t, b, "reader@example.com")
	habits, completions := newRepositories(client)
	return fixture{backend: b, client: client, owner: owner, habits: habits, completions: completions}
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		title       string
		description string
		frequency   models.Frequency
	}{
		{"empty title", "", "30 min", models.FrequencyDaily},
		{"blank description", "Read", "   ", models.FrequencyDaily},
		{"unknown frequency", "Read", "30 min", "Hourly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.habits.Create(ctx, f.owner, tt.title, tt.description, tt.frequency)
			if !errors.Is(err, errors.KindValidation) {
				t.Errorf("Create() error = %v, want validation error", err)
			}
		})
	}

	habits, err := f.habits.List(ctx, f.owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(habits) != 0 {
		t.Errorf("invalid habits were stored: %+v", habits)
	}
}

func TestHabitLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	read, err := f.habits.Create(ctx, f.owner, "Read", "30 min", models.FrequencyDaily)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if read.StreakCount != 0 || read.CreatedAt.IsZero() || read.LastCompletedAt.IsZero() {
		t.Errorf("new habit = %+v", read)
	}
	walk, err := f.habits.Create(ctx, f.owner, "Walk", "10k steps", models.FrequencyWeekly)
	if err != nil {
		t.Fatal(err)
	}

	habits, err := f.habits.List(ctx, f.owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(habits) != 2 || habits[0].ID != read.ID || habits[1].ID != walk.ID {
		t.Fatalf("List() = %+v, want Read then Walk", habits)
	}
	if habits[1].Frequency != models.FrequencyWeekly || habits[1].Description != "10k steps" {
		t.Errorf("listed habit = %+v", habits[1])
	}

	if err := f.habits.Delete(ctx, walk.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := f.habits.Delete(ctx, walk.ID); !errors.Is(err, errors.KindNotFound) {
		t.Errorf("second Delete: %v, want not found", err)
	}
	habits, _ = f.habits.List(ctx, f.owner)
	if len(habits) != 1 || habits[0].ID != read.ID {
		t.Errorf("List() after delete = %+v", habits)
	}
}

func TestRecordCompletion(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	habit, err := f.habits.Create(ctx, f.owner, "Read", "30 min", models.FrequencyDaily)
	if err != nil {
		t.Fatal(err)
	}

	updated, err := f.habits.RecordCompletion(ctx, habit)
	if err != nil {
		t.Fatalf("RecordCompletion failed: %v", err)
	}
	if updated.StreakCount != 1 {
		t.Errorf("StreakCount = %d, want 1", updated.StreakCount)
	}

	today, err := f.completions.ListToday(ctx, f.owner)
	if err != nil {
		t.Fatal(err)
	}
	if !CompletedToday(today)[habit.ID] {
		t.Errorf("ListToday() = %+v, want completion of %s", today, habit.ID)
	}

	// Second completion on the same day is refused and changes nothing
	if _, err := f.habits.RecordCompletion(ctx, updated); !errors.Is(err, errors.KindConflict) {
		t.Errorf("second RecordCompletion: %v, want conflict", err)
	}
	habits, _ := f.habits.List(ctx, f.owner)
	if habits[0].StreakCount != 1 {
		t.Errorf("stored StreakCount = %d, want 1", habits[0].StreakCount)
	}
	today, _ = f.completions.ListToday(ctx, f.owner)
	if len(today) != 1 {
		t.Errorf("completions today = %d, want 1", len(today))
	}
}

func TestListTodayExcludesEarlierDays(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	yesterday := time.Now().Add(-24 * time.Hour)
	f.completions.SetClock(func() time.Time { return yesterday })
	if _, err := f.completions.Create(ctx, "h1", f.owner); err != nil {
		t.Fatal(err)
	}

	f.completions.SetClock(time.Now)
	today, err := f.completions.ListToday(ctx, f.owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(today) != 0 {
		t.Errorf("ListToday() = %+v, want none", today)
	}

	// Yesterday's completion does not block today's
	if _, err := f.completions.Create(ctx, "h1", f.owner); err != nil {
		t.Errorf("Create today failed: %v", err)
	}
}

// failingUpdates fails every UpdateDocument call
type failingUpdates struct {
	backend.Documents
}

func (failingUpdates) UpdateDocument(ctx context.Context, database, collection, id string, data map[string]any) (backend.Document, error) {
	return backend.Document{}, errors.New(errors.KindNetwork, "connection reset")
}

func TestRecordCompletionPartialFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	habit, err := f.habits.Create(ctx, f.owner, "Read", "30 min", models.FrequencyDaily)
	if err != nil {
		t.Fatal(err)
	}

	habits, _ := newRepositories(failingUpdates{f.client})
	got, err := habits.RecordCompletion(ctx, habit)
	if !errors.Is(err, errors.KindNetwork) {
		t.Fatalf("RecordCompletion() error = %v, want network error", err)
	}
	if got.StreakCount != 0 {
		t.Errorf("returned StreakCount = %d, want unchanged 0", got.StreakCount)
	}

	// The completion was written even though the streak was not bumped
	today, _ := f.completions.ListToday(ctx, f.owner)
	if len(today) != 1 {
		t.Errorf("completions today = %d, want 1", len(today))
	}
}

func TestReadAndSwitchUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	habit, err := f.habits.Create(ctx, f.owner, "Read", "30 min", models.FrequencyDaily)
	if err != nil {
		t.Fatal(err)
	}
	habits, _ := f.habits.List(ctx, f.owner)
	if len(habits) != 1 || habits[0].StreakCount != 0 {
		t.Fatalf("List() = %+v, want one habit with zero streak", habits)
	}

	if _, err := f.habits.RecordCompletion(ctx, habit); err != nil {
		t.Fatal(err)
	}
	today, _ := f.completions.ListToday(ctx, f.owner)
	if !CompletedToday(today)[habit.ID] {
		t.Error("completion missing from ListToday")
	}
	habits, _ = f.habits.List(ctx, f.owner)
	if habits[0].StreakCount != 1 {
		t.Errorf("StreakCount = %d, want 1", habits[0].StreakCount)
	}

	if err := f.client.DeleteSession(ctx); err != nil {
		t.Fatal(err)
	}
	client, other := signedInClient(t, f.backend, "writer@example.com")
	otherHabits, _ := newRepositories(client)
	habits, err = otherHabits.List(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if len(habits) != 0 {
		t.Errorf("new user sees %d habits", len(habits))
	}
	// Even asking for the first user's habits yields nothing
	habits, _ = otherHabits.List(ctx, f.owner)
	if len(habits) != 0 {
		t.Errorf("cross-user listing returned %d habits", len(habits))
	}
}
