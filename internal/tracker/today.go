package tracker

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/logger"
	"github.com/julianstephens/habio/internal/models"
	"github.com/julianstephens/habio/internal/realtime"
	"github.com/julianstephens/habio/internal/repository"
	"github.com/julianstephens/habio/internal/session"
)

const (
	EmptyStateText    = "No habit found! Try adding a habit"
	CompletedFeedback = "Completed!!"
)

// StreakLabel renders the streak badge of a habit
func StreakLabel(h models.Habit) string {
	return fmt.Sprintf("%d day streak", h.StreakCount)
}

// Collections names where habits and completions live
type Collections struct {
	Database    string
	Habits      string
	Completions string
}

// TodaySnapshot is a copy of the Today state safe to render
type TodaySnapshot struct {
	Habits    []models.Habit
	Completed map[string]bool
}

// IsEmpty reports whether the empty state should be shown
func (s TodaySnapshot) IsEmpty() bool {
	return len(s.Habits) == 0
}

// reloadSeq orders reads of one collection. A response is applied only if no
// newer response or local change has been applied since its request started.
type reloadSeq struct {
	issued  uint64
	applied uint64
}

func (r *reloadSeq) next() uint64 {
	r.issued++
	return r.issued
}

func (r *reloadSeq) accept(seq uint64) bool {
	if seq <= r.applied {
		return false
	}
	r.applied = seq
	return true
}

// invalidate drops every read still in flight
func (r *reloadSeq) invalidate() {
	r.applied = r.issued
}

// Today is the list of the signed-in user's habits with the set completed
// today. It is safe for concurrent use; realtime reloads arrive on their own
// goroutines.
type Today struct {
	store       *session.Store
	habits      *repository.HabitRepository
	completions *repository.CompletionRepository
	bridge      *realtime.Bridge

	mu        sync.Mutex
	ctx       context.Context
	list      []models.Habit
	done      map[string]bool
	habitSeq  reloadSeq
	doneSeq   reloadSeq
	onChange  func()
	stopWatch func()
}

// NewToday wires the list to the session store and the repositories. Nothing
// is loaded until Start or Resync.
func NewToday(store *session.Store, habits *repository.HabitRepository, completions *repository.CompletionRepository, rt backend.Realtime, cols Collections) *Today {
	t := &Today{
		store:       store,
		habits:      habits,
		completions: completions,
		done:        make(map[string]bool),
		ctx:         context.Background(),
	}
	t.bridge = realtime.NewBridge(rt, cols.Database, cols.Habits, cols.Completions, realtime.Handlers{
		ReloadHabits: func() {
			if err := t.ReloadHabits(t.context()); err != nil {
				logger.Warn("Habit reload failed", "error", err)
			}
		},
		ReloadCompletions: func() {
			if err := t.ReloadCompletions(t.context()); err != nil {
				logger.Warn("Completion reload failed", "error", err)
			}
		},
	})
	return t
}

// OnChange sets the function called after every state change
func (t *Today) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Today) context() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ctx
}

func (t *Today) notify() {
	t.mu.Lock()
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Start attaches the realtime bridge for as long as a user is signed in, and
// resyncs whenever the signed-in user changes. Stop detaches.
func (t *Today) Start(ctx context.Context) {
	t.mu.Lock()
	if t.stopWatch != nil {
		t.mu.Unlock()
		return
	}
	t.ctx = ctx
	t.mu.Unlock()

	stopBridge := t.bridge.Follow(ctx, t.store)

	var (
		mu   sync.Mutex
		user string
	)
	apply := func(st session.Status) {
		mu.Lock()
		defer mu.Unlock()
		if st.Identity.ID == user {
			return
		}
		user = st.Identity.ID
		if st.State != session.StateAuthenticated {
			t.clear()
			return
		}
		if err := t.Resync(ctx); err != nil {
			logger.Warn("Initial resync failed", "error", err)
		}
	}
	stopSession := t.store.OnChange(apply)
	apply(t.store.Status())

	t.mu.Lock()
	t.stopWatch = func() {
		stopSession()
		stopBridge()
	}
	t.mu.Unlock()
}

// Stop releases the realtime subscriptions
func (t *Today) Stop() {
	t.mu.Lock()
	stop := t.stopWatch
	t.stopWatch = nil
	t.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// RealtimeActive reports whether change notifications are being received
func (t *Today) RealtimeActive() bool {
	return t.bridge.Active()
}

func (t *Today) clear() {
	t.mu.Lock()
	t.list = nil
	t.done = make(map[string]bool)
	t.habitSeq.invalidate()
	t.doneSeq.invalidate()
	t.mu.Unlock()
	t.notify()
}

func (t *Today) owner() (string, error) {
	identity, ok := t.store.Identity()
	if !ok {
		return "", errors.New(errors.KindUnauthorized, "Not signed in")
	}
	return identity.ID, nil
}

// Resync replaces both the habit list and the completed set
func (t *Today) Resync(ctx context.Context) error {
	herr := t.ReloadHabits(ctx)
	cerr := t.ReloadCompletions(ctx)
	if herr != nil {
		return herr
	}
	return cerr
}

// ReloadHabits replaces the habit list with a fresh listing
func (t *Today) ReloadHabits(ctx context.Context) error {
	owner, err := t.owner()
	if err != nil {
		return err
	}
	t.mu.Lock()
	seq := t.habitSeq.next()
	t.mu.Unlock()

	list, err := t.habits.List(ctx, owner)
	if err != nil {
		return err
	}

	t.mu.Lock()
	applied := t.habitSeq.accept(seq)
	if applied {
		t.list = list
	}
	t.mu.Unlock()
	if applied {
		t.notify()
	} else {
		logger.Debug("Dropped stale habit listing", "seq", seq)
	}
	return nil
}

// ReloadCompletions replaces the completed-today set
func (t *Today) ReloadCompletions(ctx context.Context) error {
	owner, err := t.owner()
	if err != nil {
		return err
	}
	t.mu.Lock()
	seq := t.doneSeq.next()
	t.mu.Unlock()

	completions, err := t.completions.ListToday(ctx, owner)
	if err != nil {
		return err
	}

	t.mu.Lock()
	applied := t.doneSeq.accept(seq)
	if applied {
		t.done = repository.CompletedToday(completions)
	}
	t.mu.Unlock()
	if applied {
		t.notify()
	} else {
		logger.Debug("Dropped stale completion listing", "seq", seq)
	}
	return nil
}

// IsCompleted reports whether the habit was completed today
func (t *Today) IsCompleted(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done[id]
}

// Snapshot copies the current state
func (t *Today) Snapshot() TodaySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := TodaySnapshot{
		Habits:    slices.Clone(t.list),
		Completed: make(map[string]bool, len(t.done)),
	}
	for id := range t.done {
		snap.Completed[id] = true
	}
	return snap
}

func (t *Today) find(id string) (models.Habit, bool) {
	for _, h := range t.list {
		if h.ID == id {
			return h, true
		}
	}
	return models.Habit{}, false
}

// Complete records today's completion of a habit. It returns false without
// touching the backend when the habit is already completed today.
func (t *Today) Complete(ctx context.Context, id string) (bool, error) {
	t.mu.Lock()
	habit, ok := t.find(id)
	already := t.done[id]
	t.mu.Unlock()
	if already {
		return false, nil
	}
	if !ok {
		return false, errors.Newf(errors.KindNotFound, "Habit %s is not in today's list", id)
	}

	updated, err := t.habits.RecordCompletion(ctx, habit)
	if err != nil && !errors.Is(err, errors.KindConflict) {
		return false, err
	}

	t.mu.Lock()
	t.done[id] = true
	t.doneSeq.invalidate()
	if err == nil {
		for i := range t.list {
			if t.list[i].ID == id {
				t.list[i] = updated
			}
		}
		t.habitSeq.invalidate()
	}
	t.mu.Unlock()
	t.notify()
	t.refresh(ctx, err == nil, true)
	return err == nil, nil
}

// Delete removes a habit remotely, then from the local list
func (t *Today) Delete(ctx context.Context, id string) error {
	if err := t.habits.Delete(ctx, id); err != nil {
		return err
	}
	t.mu.Lock()
	t.list = slices.DeleteFunc(t.list, func(h models.Habit) bool { return h.ID == id })
	t.habitSeq.invalidate()
	t.mu.Unlock()
	t.notify()
	t.refresh(ctx, true, false)
	return nil
}

// refresh reloads after a local mutation. Invalidation also drops listings
// that started after the mutation committed, so changes made elsewhere in
// that window are picked up here.
func (t *Today) refresh(ctx context.Context, habits, completions bool) {
	if habits {
		if err := t.ReloadHabits(ctx); err != nil {
			logger.Warn("Habit reload after change failed", "error", err)
		}
	}
	if completions {
		if err := t.ReloadCompletions(ctx); err != nil {
			logger.Warn("Completion reload after change failed", "error", err)
		}
	}
}
