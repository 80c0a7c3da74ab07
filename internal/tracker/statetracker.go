package tracker

import (
	"context"
	"sync"
	"time"
)

// StateTracker owns all writes to per account polling state. It guards
// the read-modify-write of each account with a per account lock, so
// different accounts proceed in parallel while the same account is never
// updated by two goroutines at once
type StateTracker struct {
	store StateStore

	mu    sync.Mutex
	locks map[AccountId]*sync.Mutex
}

func NewStateTracker(store StateStore) *StateTracker {
	return &StateTracker{store: store, locks: make(map[AccountId]*sync.Mutex)}
}

// RecordCheck sets the last checked time. It must be called even when a
// poll finds nothing new, or due selection would pick the same account on
// every tick. The timestamp never moves backwards
func (st *StateTracker) RecordCheck(ctx context.Context, id AccountId, now time.Time) error {
	defer st.lock(id)()

	state, err := st.store.State(ctx, id)
	if err != nil {
		return err
	}
	if state.LastCheckedAt != nil && state.LastCheckedAt.After(now) {
		return nil
	}
	state.LastCheckedAt = &now
	return st.store.SetState(ctx, id, state)
}

// HasProcessed reports whether the match is the one this account last
// acted on. A single last-id comparison, not a set of all seen ids:
// O(1) state, at the price of not detecting out of order delivery
func (st *StateTracker) HasProcessed(ctx context.Context, id AccountId, match MatchId) (bool, error) {
	defer st.lock(id)()

	state, err := st.store.State(ctx, id)
	if err != nil {
		return false, err
	}
	return state.LastProcessed == match, nil
}

// MarkProcessed records that the match has been acted on. Idempotent: a
// second call with the same match id changes nothing. The last match time
// only ever moves forward
func (st *StateTracker) MarkProcessed(ctx context.Context, id AccountId, match MatchId, matchTime time.Time) error {
	defer st.lock(id)()

	state, err := st.store.State(ctx, id)
	if err != nil {
		return err
	}
	if state.LastProcessed == match {
		return nil
	}
	state.LastProcessed = match
	if state.LastMatchTime == nil || matchTime.After(*state.LastMatchTime) {
		state.LastMatchTime = &matchTime
	}
	return st.store.SetState(ctx, id, state)
}

// Backfill seeds the last match time at subscription time, without marking
// anything processed, so a freshly subscribed account is not treated as
// never active by the interval policy
func (st *StateTracker) Backfill(ctx context.Context, id AccountId, matchTime time.Time) error {
	defer st.lock(id)()

	state, err := st.store.State(ctx, id)
	if err != nil {
		return err
	}
	if state.LastMatchTime != nil && state.LastMatchTime.After(matchTime) {
		return nil
	}
	state.LastMatchTime = &matchTime
	return st.store.SetState(ctx, id, state)
}

func (st *StateTracker) lock(id AccountId) func() {
	st.mu.Lock()
	lock, ok := st.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		st.locks[id] = lock
	}
	st.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}
