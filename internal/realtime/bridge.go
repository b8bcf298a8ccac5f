// Package realtime turns backend change notifications into reloads of view
// state.
package realtime

import (
	"context"
	"sync"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/logger"
	"github.com/julianstephens/habio/internal/session"
)

// Handlers are invoked on the subscription goroutines. Reloads are full
// resyncs, so redundant calls are harmless.
type Handlers struct {
	ReloadHabits      func()
	ReloadCompletions func()
}

// Bridge turns document events on the habit and completion channels into
// reload calls.
type Bridge struct {
	rt                 backend.Realtime
	habitsChannel      string
	completionsChannel string
	handlers           Handlers

	mu     sync.Mutex
	cancel context.CancelFunc
	unsubs []backend.Unsubscribe
}

// NewBridge returns a stopped bridge; call Start or Follow to subscribe.
func NewBridge(rt backend.Realtime, database, habitsCollection, completionsCollection string, handlers Handlers) *Bridge {
	return &Bridge{
		rt:                 rt,
		habitsChannel:      backend.CollectionChannel(database, habitsCollection),
		completionsChannel: backend.CollectionChannel(database, completionsCollection),
		handlers:           handlers,
	}
}

// Start subscribes to both collections. Calling Start on a running bridge is
// a no-op. Subscriptions outlive ctx and end with Stop.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return nil
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	subs := []struct {
		channel string
		handle  func(backend.Event)
	}{
		{b.habitsChannel, b.handleHabit},
		{b.completionsChannel, b.handleCompletion},
	}
	var unsubs []backend.Unsubscribe
	for _, s := range subs {
		unsub, err := b.rt.Subscribe(sctx, s.channel, s.handle)
		if err != nil {
			for _, u := range unsubs {
				u()
			}
			cancel()
			logger.Error("Realtime subscription failed", "channel", s.channel, "error", err)
			return err
		}
		unsubs = append(unsubs, unsub)
	}

	b.cancel = cancel
	b.unsubs = unsubs
	logger.Debug("Realtime bridge started", "habits", b.habitsChannel, "completions", b.completionsChannel)
	return nil
}

// Stop releases the subscriptions. It is safe to call on a stopped bridge.
func (b *Bridge) Stop() {
	b.mu.Lock()
	unsubs, cancel := b.unsubs, b.cancel
	b.unsubs, b.cancel = nil, nil
	b.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	if cancel != nil {
		cancel()
		logger.Debug("Realtime bridge stopped")
	}
}

// Active reports whether the bridge holds subscriptions
func (b *Bridge) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancel != nil
}

func (b *Bridge) handleHabit(ev backend.Event) {
	if !ev.HasKind(backend.EventCreate, backend.EventUpdate, backend.EventDelete, backend.EventResync) {
		return
	}
	if b.handlers.ReloadHabits != nil {
		b.handlers.ReloadHabits()
	}
}

func (b *Bridge) handleCompletion(ev backend.Event) {
	if !ev.HasKind(backend.EventCreate, backend.EventResync) {
		return
	}
	if b.handlers.ReloadCompletions != nil {
		b.handlers.ReloadCompletions()
	}
}

// Follow keeps the bridge running exactly while store holds an authenticated
// identity. The returned function detaches from the store and stops the bridge.
func (b *Bridge) Follow(ctx context.Context, store *session.Store) (cancel func()) {
	var (
		mu   sync.Mutex
		user string
	)
	apply := func(st session.Status) {
		mu.Lock()
		defer mu.Unlock()
		if st.State != session.StateAuthenticated {
			user = ""
			b.Stop()
			return
		}
		// Subscriptions are scoped to the user that opened them
		if user != st.Identity.ID {
			b.Stop()
			user = st.Identity.ID
		}
		if err := b.Start(ctx); err != nil {
			logger.Warn("Realtime updates unavailable", "error", err)
		}
	}

	detach := store.OnChange(apply)
	apply(store.Status())
	return func() {
		detach()
		b.Stop()
	}
}
