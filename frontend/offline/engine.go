package offline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nuhaid/barakah/models"
)

// ErrNoSession is returned by Drain when no authenticated session exists.
// The queue is left untouched so it can be replayed after the next sign in.
var ErrNoSession = errors.New("no authenticated session")

// Backend is the slice of the server API the engine replays actions
// against. Implemented by the REST client; faked in tests.
type Backend interface {
	CreateLog(ctx context.Context, userID, habitID, date string) error
	DeleteLog(ctx context.Context, userID, habitID, date string) error
	IncrementPoints(ctx context.Context, userID string, amount int) error
	UpdateStreak(ctx context.Context, userID string) error
}

// SessionFunc reports the signed-in user's ID, or an empty string when no
// user is signed in. It may refresh an expired token as a side effect.
type SessionFunc func() (string, error)

// Engine owns the pending queue: the toggle path enqueues mutations through
// it while offline, and Drain replays them when connectivity returns.
type Engine struct {
	store   *Store
	api     Backend
	session SessionFunc

	// mu serializes every read-modify-write of the queue file. Enqueue and
	// the drain's final rewrite both hold it, so an action enqueued while a
	// drain is replaying on the network cannot be overwritten by the
	// drain's rewrite.
	mu sync.Mutex

	// permit is a single-slot lock. A drain holds the slot for its whole
	// run; a second Drain that cannot take the slot returns immediately
	// instead of double-replaying the queue.
	permit chan struct{}
}

// NewEngine creates an Engine over the given store, backend API and session
// source.
func NewEngine(store *Store, api Backend, session SessionFunc) *Engine {
	return &Engine{
		store:   store,
		api:     api,
		session: session,
		permit:  make(chan struct{}, 1),
	}
}

// Enqueue records a mutation for later replay. Any queued entry for the
// same habit and date is superseded or cancelled.
func (e *Engine) Enqueue(action PendingAction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	queue := e.store.Load()
	return e.store.Save(Dedupe(queue, action))
}

// HasPending reports whether any actions are waiting to be replayed.
func (e *Engine) HasPending() bool {
	return e.store.HasPending()
}

// Drain replays every queued action against the backend in order. Actions
// that fail transiently are kept, in order, for a later drain; a duplicate
// log on replay counts as success. Actions queued under a different user
// than the one currently signed in are kept untouched for a drain under
// their own session. Only one drain runs at a time, and a call that finds a
// drain already in flight is a no-op.
func (e *Engine) Drain(ctx context.Context) error {
	select {
	case e.permit <- struct{}{}:
	default:
		return nil
	}
	defer func() { <-e.permit }()

	e.mu.Lock()
	queue := e.store.Load()
	e.mu.Unlock()
	if len(queue) == 0 {
		return nil
	}

	userID, err := e.session()
	if err != nil {
		return err
	}
	if userID == "" {
		return ErrNoSession
	}

	applied := make(map[string]struct{}, len(queue))
	retained := 0
	for _, action := range queue {
		if action.UserID != userID {
			retained++
			continue
		}
		if err := e.apply(ctx, action); err != nil {
			retained++
			continue
		}
		applied[action.ID] = struct{}{}
	}

	// Rewrite against the file's current contents, not the snapshot: the
	// toggle path may have enqueued or cancelled entries while the replay
	// was on the network, and those writes must survive the drain.
	e.mu.Lock()
	current := e.store.Load()
	remaining := make([]PendingAction, 0, len(current))
	for _, action := range current {
		if _, ok := applied[action.ID]; ok {
			continue
		}
		remaining = append(remaining, action)
	}
	err = e.store.Save(remaining)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	if retained > 0 {
		return fmt.Errorf("%d of %d pending actions could not be synced", retained, len(queue))
	}
	return nil
}

// apply replays a single action: the log row mutation, then the point
// adjustment, then the streak recompute. A failure anywhere means the whole
// action is retried later; the duplicate-log tolerance on insert makes that
// retry safe even when the first attempt died between steps.
func (e *Engine) apply(ctx context.Context, action PendingAction) error {
	switch action.Kind {
	case KindComplete:
		err := e.api.CreateLog(ctx, action.UserID, action.HabitID, action.Date)
		if err != nil && !errors.Is(err, models.ErrDuplicateLog) {
			return err
		}
		if err := e.api.IncrementPoints(ctx, action.UserID, action.Points); err != nil {
			return err
		}
	case KindUncomplete:
		if err := e.api.DeleteLog(ctx, action.UserID, action.HabitID, action.Date); err != nil {
			return err
		}
		if err := e.api.IncrementPoints(ctx, action.UserID, -action.Points); err != nil {
			return err
		}
	default:
		// Nothing enqueues other kinds; drop rather than retry forever.
		return nil
	}

	return e.api.UpdateStreak(ctx, action.UserID)
}
