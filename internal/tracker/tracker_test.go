package tracker

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/backend/embedded"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/models"
	"github.com/julianstephens/habio/internal/repository"
	"github.com/julianstephens/habio/internal/session"
)

const testPassword = "correct-horse"

var testCollections = Collections{Database: "main", Habits: "habits", Completions: "completions"}

type fixture struct {
	client      *embedded.Client
	store       *session.Store
	habits      *repository.HabitRepository
	completions *repository.CompletionRepository
}

func setup(t *testing.T) fixture {
	t.Helper()
	return setupWith(t, nil)
}

// setupWith builds the controllers' dependencies. wrap, when set, decorates
// the document API the repositories use.
func setupWith(t *testing.T, wrap func(backend.Documents) backend.Documents) fixture {
	t.Helper()
	client, err := embedded.OpenClient(context.Background(), filepath.Join(t.TempDir(), "habio.db"), embedded.Options{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("embedded.OpenClient failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	var docs backend.Documents = client
	if wrap != nil {
		docs = wrap(client)
	}
	completions := repository.NewCompletionRepository(docs, testCollections.Database, testCollections.Completions)
	habits := repository.NewHabitRepository(docs, testCollections.Database, testCollections.Habits, completions)
	return fixture{
		client:      client,
		store:       session.New(client, nil),
		habits:      habits,
		completions: completions,
	}
}

func (f fixture) signUp(t *testing.T, email string) models.Identity {
	t.Helper()
	if err := f.store.SignUp(context.Background(), email, testPassword); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	identity, _ := f.store.Identity()
	return identity
}

func (f fixture) today() *Today {
	return NewToday(f.store, f.habits, f.completions, f.client, testCollections)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRoute(t *testing.T) {
	loading := session.Status{State: session.StateUnknown}
	anonymous := session.Status{State: session.StateAnonymous}
	signedIn := session.Status{State: session.StateAuthenticated, Identity: models.Identity{ID: "u1"}}

	tests := []struct {
		name      string
		status    session.Status
		requested Screen
		want      Decision
	}{
		{"loading waits", loading, ScreenToday, Decision{Wait: true, Screen: ScreenToday}},
		{"loading waits on auth", loading, ScreenAuth, Decision{Wait: true, Screen: ScreenAuth}},
		{"anonymous today", anonymous, ScreenToday, Decision{Screen: ScreenAuth}},
		{"anonymous add habit", anonymous, ScreenAddHabit, Decision{Screen: ScreenAuth}},
		{"anonymous auth", anonymous, ScreenAuth, Decision{Screen: ScreenAuth}},
		{"signed in auth", signedIn, ScreenAuth, Decision{Screen: ScreenToday}},
		{"signed in today", signedIn, ScreenToday, Decision{Screen: ScreenToday}},
		{"signed in add habit", signedIn, ScreenAddHabit, Decision{Screen: ScreenAddHabit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Route(tt.status, tt.requested); got != tt.want {
				t.Errorf("Route() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAuthFormLabels(t *testing.T) {
	form := NewAuthForm(nil)
	if form.Title() != "Welcome Back" || form.SubmitLabel() != "Sign In" {
		t.Errorf("sign-in labels = %q, %q", form.Title(), form.SubmitLabel())
	}
	form.Error = "stale"
	form.Toggle()
	if form.Mode != ModeSignUp || form.Title() != "Create Account" || form.SubmitLabel() != "Sign Up" {
		t.Errorf("sign-up labels = %q, %q", form.Title(), form.SubmitLabel())
	}
	if form.Error != "" {
		t.Errorf("Toggle() kept error %q", form.Error)
	}
	if form.ToggleLabel() != "Already have an account? Sign In" {
		t.Errorf("ToggleLabel() = %q", form.ToggleLabel())
	}
}

func TestAuthFormSubmit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	form := NewAuthForm(f.store)
	form.Email = "reader@example.com"
	form.Password = "short"
	form.Toggle()
	if err := form.Submit(ctx); !errors.Is(err, errors.KindValidation) {
		t.Fatalf("Submit() error = %v, want validation error", err)
	}
	if form.Error != "Password must be at least 8 characters long" {
		t.Errorf("Error = %q", form.Error)
	}

	form.Password = testPassword
	if err := form.Submit(ctx); err != nil {
		t.Fatalf("Submit() sign up failed: %v", err)
	}
	if form.Error != "" || form.Password != "" {
		t.Errorf("after success Error = %q, Password = %q", form.Error, form.Password)
	}
	if st := f.store.Status(); st.State != session.StateAuthenticated {
		t.Fatalf("state = %v, want authenticated", st.State)
	}

	f.store.SignOut(ctx)
	form.Toggle()
	form.Password = "wrong-password"
	if err := form.Submit(ctx); !errors.Is(err, errors.KindUnauthorized) {
		t.Fatalf("Submit() sign in error = %v, want unauthorized", err)
	}
	if form.Error == "" {
		t.Error("Error not set after failed sign in")
	}
}

func TestAddHabit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.signUp(t, "reader@example.com")

	form := NewAddHabit(f.store, f.habits)
	if form.Frequency != models.FrequencyDaily {
		t.Errorf("default Frequency = %q", form.Frequency)
	}
	if form.CanSubmit() {
		t.Error("CanSubmit() = true on empty form")
	}

	form.Title = "Read"
	form.Description = "   "
	if form.CanSubmit() {
		t.Error("CanSubmit() = true with blank description")
	}
	if _, err := form.Submit(ctx); !errors.Is(err, errors.KindValidation) {
		t.Fatalf("Submit() error = %v, want validation error", err)
	}
	if form.Error != "Title and description are required" {
		t.Errorf("Error = %q", form.Error)
	}

	form.Description = "30 min"
	form.Frequency = models.FrequencyWeekly
	h, err := form.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if h.OwnerID != owner.ID || h.Frequency != models.FrequencyWeekly || h.StreakCount != 0 {
		t.Errorf("created habit = %+v", h)
	}
	if form.Title != "" || form.Error != "" || form.Frequency != models.FrequencyDaily {
		t.Errorf("form not reset: %+v", form)
	}
}

func TestAddHabitSignedOut(t *testing.T) {
	f := setup(t)
	form := NewAddHabit(f.store, f.habits)
	form.Title = "Read"
	form.Description = "30 min"
	if _, err := form.Submit(context.Background()); !errors.Is(err, errors.KindUnauthorized) {
		t.Errorf("Submit() error = %v, want unauthorized", err)
	}
}

func TestTodayFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signUp(t, "reader@example.com")

	today := f.today()
	var mu sync.Mutex
	changes := 0
	today.OnChange(func() {
		mu.Lock()
		changes++
		mu.Unlock()
	})
	today.Start(ctx)
	defer today.Stop()
	mu.Lock()
	if changes == 0 {
		t.Error("Start() did not notify")
	}
	mu.Unlock()

	if snap := today.Snapshot(); !snap.IsEmpty() {
		t.Fatalf("new account has habits: %+v", snap.Habits)
	}
	waitFor(t, "realtime", today.RealtimeActive)

	form := NewAddHabit(f.store, f.habits)
	form.Title = "Read"
	form.Description = "30 min"
	h, err := form.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	waitFor(t, "habit to appear", func() bool { return len(today.Snapshot().Habits) == 1 })

	done, err := today.Complete(ctx, h.ID)
	if err != nil || !done {
		t.Fatalf("Complete() = %v, %v", done, err)
	}
	if !today.IsCompleted(h.ID) {
		t.Error("IsCompleted() = false after Complete")
	}
	snap := today.Snapshot()
	if got := StreakLabel(snap.Habits[0]); got != "1 day streak" {
		t.Errorf("StreakLabel() = %q", got)
	}

	done, err = today.Complete(ctx, h.ID)
	if err != nil || done {
		t.Errorf("second Complete() = %v, %v, want no-op", done, err)
	}
	completions, err := f.completions.ListToday(ctx, h.OwnerID)
	if err != nil {
		t.Fatal(err)
	}
	if len(completions) != 1 {
		t.Errorf("completions = %d, want 1", len(completions))
	}

	if err := today.Delete(ctx, h.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if snap := today.Snapshot(); !snap.IsEmpty() {
		t.Errorf("habit still listed after Delete: %+v", snap.Habits)
	}

	f.store.SignOut(ctx)
	waitFor(t, "realtime to stop", func() bool { return !today.RealtimeActive() })
}

func TestTodayClearsOnUserSwitch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.signUp(t, "first@example.com")
	if _, err := f.habits.Create(ctx, first.ID, "Read", "30 min", models.FrequencyDaily); err != nil {
		t.Fatal(err)
	}

	today := f.today()
	today.Start(ctx)
	defer today.Stop()
	if got := len(today.Snapshot().Habits); got != 1 {
		t.Fatalf("first user habits = %d, want 1", got)
	}

	f.store.SignOut(ctx)
	if snap := today.Snapshot(); !snap.IsEmpty() || len(snap.Completed) != 0 {
		t.Errorf("state kept after sign out: %+v", snap)
	}

	f.signUp(t, "second@example.com")
	if snap := today.Snapshot(); !snap.IsEmpty() {
		t.Errorf("second user sees first user's habits: %+v", snap.Habits)
	}
}

func TestCompleteAlreadyCompletedElsewhere(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.signUp(t, "reader@example.com")
	h, err := f.habits.Create(ctx, owner.ID, "Read", "30 min", models.FrequencyDaily)
	if err != nil {
		t.Fatal(err)
	}

	today := f.today()
	if err := today.Resync(ctx); err != nil {
		t.Fatal(err)
	}
	// Another device completes the habit before this one hears about it
	if _, err := f.completions.Create(ctx, h.ID, owner.ID); err != nil {
		t.Fatal(err)
	}

	done, err := today.Complete(ctx, h.ID)
	if err != nil || done {
		t.Fatalf("Complete() = %v, %v, want already completed", done, err)
	}
	if !today.IsCompleted(h.ID) {
		t.Error("IsCompleted() = false")
	}
	if got := today.Snapshot().Habits[0].StreakCount; got != 0 {
		t.Errorf("StreakCount = %d, want 0", got)
	}
}

func TestCompleteUnknownHabit(t *testing.T) {
	f := setup(t)
	f.signUp(t, "reader@example.com")
	today := f.today()
	if _, err := today.Complete(context.Background(), "missing"); !errors.Is(err, errors.KindNotFound) {
		t.Errorf("Complete() error = %v, want not found", err)
	}
}

func TestMutationPicksUpChangesFromElsewhere(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.signUp(t, "reader@example.com")
	read, err := f.habits.Create(ctx, owner.ID, "Read", "30 min", models.FrequencyDaily)
	if err != nil {
		t.Fatal(err)
	}
	run, err := f.habits.Create(ctx, owner.ID, "Run", "5 km", models.FrequencyDaily)
	if err != nil {
		t.Fatal(err)
	}

	// Realtime is not started, so nothing but the mutations reloads
	today := f.today()
	if err := today.Resync(ctx); err != nil {
		t.Fatal(err)
	}

	stretch, err := f.habits.Create(ctx, owner.ID, "Stretch", "10 min", models.FrequencyDaily)
	if err != nil {
		t.Fatal(err)
	}
	if err := today.Delete(ctx, read.ID); err != nil {
		t.Fatal(err)
	}
	snap := today.Snapshot()
	ids := make([]string, 0, len(snap.Habits))
	for _, h := range snap.Habits {
		ids = append(ids, h.ID)
	}
	if len(ids) != 2 || !slices.Contains(ids, run.ID) || !slices.Contains(ids, stretch.ID) {
		t.Errorf("habits after Delete = %v, want %s and %s", ids, run.ID, stretch.ID)
	}

	if _, err := f.completions.Create(ctx, stretch.ID, owner.ID); err != nil {
		t.Fatal(err)
	}
	if done, err := today.Complete(ctx, run.ID); err != nil || !done {
		t.Fatalf("Complete() = %v, %v", done, err)
	}
	if !today.IsCompleted(run.ID) || !today.IsCompleted(stretch.ID) {
		t.Errorf("completed set = %v, want both habits", today.Snapshot().Completed)
	}
}

// gatedDocs holds one habit listing back until released, after the
// underlying read has completed.
type gatedDocs struct {
	backend.Documents

	mu      sync.Mutex
	armed   bool
	started chan struct{}
	release chan struct{}
}

func (g *gatedDocs) arm() {
	g.mu.Lock()
	g.armed = true
	g.started = make(chan struct{})
	g.release = make(chan struct{})
	g.mu.Unlock()
}

func (g *gatedDocs) ListDocuments(ctx context.Context, database, collection string, filters ...backend.Filter) (backend.DocumentList, error) {
	list, err := g.Documents.ListDocuments(ctx, database, collection, filters...)
	g.mu.Lock()
	hold := g.armed && collection == testCollections.Habits
	started, release := g.started, g.release
	if hold {
		g.armed = false
	}
	g.mu.Unlock()
	if hold {
		close(started)
		<-release
	}
	return list, err
}

func TestStaleListingDropped(t *testing.T) {
	gate := &gatedDocs{}
	f := setupWith(t, func(docs backend.Documents) backend.Documents {
		gate.Documents = docs
		return gate
	})
	ctx := context.Background()
	owner := f.signUp(t, "reader@example.com")
	h, err := f.habits.Create(ctx, owner.ID, "Read", "30 min", models.FrequencyDaily)
	if err != nil {
		t.Fatal(err)
	}

	today := f.today()
	if err := today.Resync(ctx); err != nil {
		t.Fatal(err)
	}

	gate.arm()
	reloaded := make(chan error, 1)
	go func() { reloaded <- today.ReloadHabits(ctx) }()
	<-gate.started

	// The listing in flight still contains h
	if err := today.Delete(ctx, h.ID); err != nil {
		t.Fatal(err)
	}
	close(gate.release)
	if err := <-reloaded; err != nil {
		t.Fatal(err)
	}

	if snap := today.Snapshot(); !snap.IsEmpty() {
		t.Errorf("stale listing applied: %+v", snap.Habits)
	}
}
