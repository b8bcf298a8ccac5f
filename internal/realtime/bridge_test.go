package realtime

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/backend/embedded"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/session"
)

// fakeRealtime records subscriptions and lets tests push events
type fakeRealtime struct {
	mu       sync.Mutex
	handlers map[string]func(backend.Event)
	failOn   string
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{handlers: make(map[string]func(backend.Event))}
}

func (f *fakeRealtime) Subscribe(ctx context.Context, channel string, fn func(backend.Event)) (backend.Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if channel == f.failOn {
		return nil, errors.New(errors.KindNetwork, "offline")
	}
	f.handlers[channel] = fn
	return func() {
		f.mu.Lock()
		delete(f.handlers, channel)
		f.mu.Unlock()
	}, nil
}

func (f *fakeRealtime) subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeRealtime) emit(collection string, kind backend.EventKind) {
	channel := backend.CollectionChannel("main", collection)
	ev := backend.NewEvent("main", kind, backend.Document{ID: "d1", Collection: collection}, time.Now())
	if kind == backend.EventResync {
		ev = backend.ResyncEvent(channel, time.Now())
	}
	f.mu.Lock()
	fn := f.handlers[channel]
	f.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

type counters struct {
	habits      atomic.Int32
	completions atomic.Int32
}

func (c *counters) handlers() Handlers {
	return Handlers{
		ReloadHabits:      func() { c.habits.Add(1) },
		ReloadCompletions: func() { c.completions.Add(1) },
	}
}

func TestEventClassification(t *testing.T) {
	rt := newFakeRealtime()
	var c counters
	bridge := NewBridge(rt, "main", "habits", "completions", c.handlers())
	if err := bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer bridge.Stop()

	rt.emit("habits", backend.EventCreate)
	rt.emit("habits", backend.EventUpdate)
	rt.emit("habits", backend.EventDelete)
	rt.emit("completions", backend.EventCreate)
	rt.emit("completions", backend.EventUpdate)
	rt.emit("completions", backend.EventDelete)

	if got := c.habits.Load(); got != 3 {
		t.Errorf("habit reloads = %d, want 3", got)
	}
	if got := c.completions.Load(); got != 1 {
		t.Errorf("completion reloads = %d, want 1", got)
	}

	// A reconnected stream may have missed anything
	rt.emit("habits", backend.EventResync)
	rt.emit("completions", backend.EventResync)
	if got := c.habits.Load(); got != 4 {
		t.Errorf("habit reloads after resync = %d, want 4", got)
	}
	if got := c.completions.Load(); got != 2 {
		t.Errorf("completion reloads after resync = %d, want 2", got)
	}
}

func TestStartStop(t *testing.T) {
	rt := newFakeRealtime()
	var c counters
	bridge := NewBridge(rt, "main", "habits", "completions", c.handlers())
	ctx := context.Background()

	if err := bridge.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := bridge.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if rt.subscriptions() != 2 || !bridge.Active() {
		t.Fatalf("subscriptions = %d, want 2", rt.subscriptions())
	}

	bridge.Stop()
	bridge.Stop()
	if rt.subscriptions() != 0 || bridge.Active() {
		t.Errorf("subscriptions after Stop = %d", rt.subscriptions())
	}
	rt.emit("habits", backend.EventCreate)
	if c.habits.Load() != 0 {
		t.Error("reload after Stop")
	}
}

func TestStartFailureReleasesSubscriptions(t *testing.T) {
	rt := newFakeRealtime()
	rt.failOn = backend.CollectionChannel("main", "completions")
	bridge := NewBridge(rt, "main", "habits", "completions", Handlers{})

	if err := bridge.Start(context.Background()); !errors.Is(err, errors.KindNetwork) {
		t.Fatalf("Start() error = %v, want network error", err)
	}
	if rt.subscriptions() != 0 || bridge.Active() {
		t.Errorf("subscriptions after failed Start = %d", rt.subscriptions())
	}
}

func TestFollowSession(t *testing.T) {
	ctx := context.Background()
	client, err := embedded.OpenClient(ctx, filepath.Join(t.TempDir(), "habio.db"), embedded.Options{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	var c counters
	bridge := NewBridge(client, "main", "habits", "completions", c.handlers())
	store := session.New(client, nil)
	store.Bootstrap(ctx)

	stop := bridge.Follow(ctx, store)
	defer stop()
	if bridge.Active() {
		t.Fatal("bridge active while anonymous")
	}

	if err := store.SignUp(ctx, "reader@example.com", "correct-horse"); err != nil {
		t.Fatal(err)
	}
	if !bridge.Active() {
		t.Fatal("bridge inactive after sign in")
	}

	if _, err := client.CreateDocument(ctx, "main", "habits", backend.UniqueID, map[string]any{"title": "Read"}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.CreateDocument(ctx, "main", "completions", backend.UniqueID, map[string]any{"habit_id": "h1"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for (c.habits.Load() == 0 || c.completions.Load() == 0) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if c.habits.Load() != 1 || c.completions.Load() != 1 {
		t.Errorf("reloads = %d habits, %d completions; want 1 each", c.habits.Load(), c.completions.Load())
	}

	store.SignOut(ctx)
	if bridge.Active() {
		t.Error("bridge still active after sign out")
	}
}
