package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// In memory state store with switchable failure, shared by the tests in
// this package
type memStore struct {
	mu      sync.Mutex
	states  map[AccountId]State
	failing bool
}

func newMemStore() *memStore {
	return &memStore{states: make(map[AccountId]State)}
}

func (m *memStore) State(ctx context.Context, id AccountId) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return State{}, fmt.Errorf("%w: down for the test", ErrStoreUnavailable)
	}
	return m.states[id], nil
}

func (m *memStore) SetState(ctx context.Context, id AccountId, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return fmt.Errorf("%w: down for the test", ErrStoreUnavailable)
	}
	m.states[id] = state
	return nil
}

func (m *memStore) get(id AccountId) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[id]
}

// Roster fake that always reports the accounts as never checked, so
// every cycle selects them again
type staticRoster struct {
	accounts []Account
	store    *memStore
}

func (r *staticRoster) Roster(ctx context.Context) ([]Entry, error) {
	entries := make([]Entry, 0, len(r.accounts))
	for _, account := range r.accounts {
		state := r.store.get(account.Id)
		state.LastCheckedAt = nil
		entries = append(entries, Entry{Account: account, State: state})
	}
	return entries, nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	fn    func(account Account) (*Match, error)
	calls map[AccountId]int
}

func newFakeFetcher(fn func(account Account) (*Match, error)) *fakeFetcher {
	return &fakeFetcher{fn: fn, calls: make(map[AccountId]int)}
}

func (f *fakeFetcher) LatestMatch(ctx context.Context, account Account) (*Match, error) {
	f.mu.Lock()
	f.calls[account.Id]++
	f.mu.Unlock()
	return f.fn(account)
}

func (f *fakeFetcher) callCount(id AccountId) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

type fakeDirectory map[PlayerId][]Destination

func (d fakeDirectory) Subscriptions(ctx context.Context, player PlayerId) ([]Destination, error) {
	return d[player], nil
}

// Sender that records every delivery and answers with scripted errors
// per channel id
type fakeSender struct {
	mu      sync.Mutex
	sent    []Destination
	errors  map[string]error
	blocked map[string]bool // channels failing the local capability check
	onSend  func(dest Destination)
}

func newFakeSender() *fakeSender {
	return &fakeSender{errors: make(map[string]error), blocked: make(map[string]bool)}
}

func (s *fakeSender) CanSend(dest Destination) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.blocked[dest.Channel]
}

func (s *fakeSender) Send(ctx context.Context, dest Destination, match Match) error {
	s.mu.Lock()
	onSend := s.onSend
	err := s.errors[dest.Channel]
	if err == nil {
		s.sent = append(s.sent, dest)
	}
	s.mu.Unlock()
	if onSend != nil {
		onSend(dest)
	}
	return err
}

func (s *fakeSender) sentTo(channel string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, dest := range s.sent {
		if dest.Channel == channel {
			count++
		}
	}
	return count
}

type fakeOwner struct {
	mu      sync.Mutex
	notices []string
}

func (o *fakeOwner) Notify(guild string, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notices = append(o.notices, guild)
}

func (o *fakeOwner) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.notices)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
