package tracker

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type driverFixture struct {
	store   *memStore
	sender  *fakeSender
	owner   *fakeOwner
	fetcher *fakeFetcher
	driver  *Driver
}

func newDriverFixture(accounts []Account, directory fakeDirectory, fetcher *fakeFetcher) *driverFixture {
	store := newMemStore()
	sender := newFakeSender()
	owner := &fakeOwner{}
	roster := &staticRoster{accounts: accounts, store: store}
	states := NewStateTracker(store)
	guard := NewDeliveryGuard(sender, owner, 0)
	driver := NewDriver(roster, states, fetcher, NewResolver(directory), guard, testPolicy(), 2, time.Second)
	return &driverFixture{store: store, sender: sender, owner: owner, fetcher: fetcher, driver: driver}
}

func fixedMatch(id MatchId) *Match {
	return &Match{Id: id, Time: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

// One player with two tracked accounts finishing the same game produces
// one notification, and a later cycle seeing the same match produces none
func TestDriverNotifiesAtMostOnce(t *testing.T) {
	t.Parallel()

	accounts := []Account{
		{Id: "acc-1", Player: "alice", Guild: "guild-a", External: "puuid-1"},
		{Id: "acc-2", Player: "alice", Guild: "guild-a", External: "puuid-2"},
	}
	directory := fakeDirectory{"alice": {{Channel: "chan-1", Guild: "guild-a"}}}
	fetcher := newFakeFetcher(func(account Account) (*Match, error) {
		return fixedMatch("m1"), nil
	})
	fx := newDriverFixture(accounts, directory, fetcher)

	metrics := fx.driver.RunCycle(context.Background())
	if metrics.Due != 2 || metrics.Checked != 2 || metrics.Found != 1 || metrics.Sent != 1 {
		t.Fatalf("first cycle metrics = %+v, want Due 2 Checked 2 Found 1 Sent 1", metrics)
	}
	if fx.sender.sentTo("chan-1") != 1 {
		t.Fatalf("channel notified %d times, want 1", fx.sender.sentTo("chan-1"))
	}
	for _, id := range []AccountId{"acc-1", "acc-2"} {
		if state := fx.store.get(id); state.LastProcessed != "m1" {
			t.Fatalf("account %s LastProcessed = %q, want m1", id, state.LastProcessed)
		}
	}

	// The upstream keeps returning the same latest match; nothing new to say
	metrics = fx.driver.RunCycle(context.Background())
	if metrics.Found != 0 || metrics.Sent != 0 {
		t.Fatalf("second cycle metrics = %+v, want nothing found or sent", metrics)
	}
	if fx.sender.sentTo("chan-1") != 1 {
		t.Fatalf("channel notified %d times after a repeat cycle, want 1", fx.sender.sentTo("chan-1"))
	}
}

// Two different players in the same game, subscribed from different
// guilds that share a channel: the shared channel hears about the match
// exactly once
func TestDriverDeduplicatesSharedChannels(t *testing.T) {
	t.Parallel()

	accounts := []Account{
		{Id: "acc-1", Player: "alice", Guild: "guild-a", External: "puuid-1"},
		{Id: "acc-2", Player: "bob", Guild: "guild-b", External: "puuid-2"},
	}
	directory := fakeDirectory{
		"alice": {{Channel: "chan-shared", Guild: "guild-a"}},
		"bob": {
			{Channel: "chan-shared", Guild: "guild-b"},
			{Channel: "chan-2", Guild: "guild-b"},
		},
	}
	fetcher := newFakeFetcher(func(account Account) (*Match, error) {
		return fixedMatch("m1"), nil
	})
	fx := newDriverFixture(accounts, directory, fetcher)

	metrics := fx.driver.RunCycle(context.Background())
	if metrics.Found != 1 || metrics.Sent != 2 {
		t.Fatalf("metrics = %+v, want Found 1 Sent 2", metrics)
	}
	if fx.sender.sentTo("chan-shared") != 1 {
		t.Fatalf("shared channel notified %d times, want 1", fx.sender.sentTo("chan-shared"))
	}
	if fx.sender.sentTo("chan-2") != 1 {
		t.Fatalf("second channel notified %d times, want 1", fx.sender.sentTo("chan-2"))
	}
}

// Delivery happens strictly before the match is marked processed, so a
// crash in between repeats the notification instead of losing it
func TestDriverDeliversBeforeMarkingProcessed(t *testing.T) {
	t.Parallel()

	accounts := []Account{{Id: "acc-1", Player: "alice", Guild: "guild-a", External: "puuid-1"}}
	directory := fakeDirectory{"alice": {{Channel: "chan-1", Guild: "guild-a"}}}
	fetcher := newFakeFetcher(func(account Account) (*Match, error) {
		return fixedMatch("m1"), nil
	})
	fx := newDriverFixture(accounts, directory, fetcher)

	var processedAtSendTime MatchId
	fx.sender.onSend = func(Destination) {
		processedAtSendTime = fx.store.get("acc-1").LastProcessed
	}

	fx.driver.RunCycle(context.Background())
	if processedAtSendTime != "" {
		t.Fatalf("match was marked processed before delivery: %q", processedAtSendTime)
	}
	if state := fx.store.get("acc-1"); state.LastProcessed != "m1" {
		t.Fatalf("LastProcessed = %q after the cycle, want m1", state.LastProcessed)
	}
}

// A store outage mid cycle skips the affected accounts without sending
// or losing anything; the next cycle catches up
func TestDriverSkipsAccountsWhenStoreIsDown(t *testing.T) {
	t.Parallel()

	accounts := []Account{{Id: "acc-1", Player: "alice", Guild: "guild-a", External: "puuid-1"}}
	directory := fakeDirectory{"alice": {{Channel: "chan-1", Guild: "guild-a"}}}
	fetcher := newFakeFetcher(func(account Account) (*Match, error) {
		return fixedMatch("m1"), nil
	})
	fx := newDriverFixture(accounts, directory, fetcher)

	fx.store.failing = true
	metrics := fx.driver.RunCycle(context.Background())
	if metrics.Sent != 0 {
		t.Fatalf("metrics = %+v, want nothing sent while the store is down", metrics)
	}
	if fx.sender.sentTo("chan-1") != 0 {
		t.Fatal("notification sent while the store was down")
	}

	fx.store.failing = false
	fx.driver.RunCycle(context.Background())
	if fx.sender.sentTo("chan-1") != 1 {
		t.Fatalf("channel notified %d times after recovery, want 1", fx.sender.sentTo("chan-1"))
	}
	if state := fx.store.get("acc-1"); state.LastProcessed != "m1" {
		t.Fatalf("LastProcessed = %q after recovery, want m1", state.LastProcessed)
	}
}

// An account the upstream rejects permanently leaves the rotation until
// restart instead of burning a fetch every cycle
func TestDriverQuarantinesRejectedAccounts(t *testing.T) {
	t.Parallel()

	accounts := []Account{
		{Id: "acc-bad", Player: "alice", Guild: "guild-a", External: "puuid-bad"},
		{Id: "acc-ok", Player: "bob", Guild: "guild-a", External: "puuid-ok"},
	}
	directory := fakeDirectory{"bob": {{Channel: "chan-1", Guild: "guild-a"}}}
	fetcher := newFakeFetcher(func(account Account) (*Match, error) {
		if account.Id == "acc-bad" {
			return nil, fmt.Errorf("%w: unknown puuid", ErrFetchPermanent)
		}
		return fixedMatch("m1"), nil
	})
	fx := newDriverFixture(accounts, directory, fetcher)

	fx.driver.RunCycle(context.Background())
	fx.driver.RunCycle(context.Background())

	if got := fx.fetcher.callCount("acc-bad"); got != 1 {
		t.Fatalf("quarantined account fetched %d times, want 1", got)
	}
	if got := fx.fetcher.callCount("acc-ok"); got != 2 {
		t.Fatalf("healthy account fetched %d times, want 2", got)
	}
	quarantined := fx.driver.Quarantined()
	if len(quarantined) != 1 || quarantined[0] != "acc-bad" {
		t.Fatalf("Quarantined() = %v, want [acc-bad]", quarantined)
	}
	if fx.sender.sentTo("chan-1") != 1 {
		t.Fatalf("healthy account's channel notified %d times, want 1", fx.sender.sentTo("chan-1"))
	}
}

// One broken channel never blocks delivery to the others
func TestDriverIsolatesChannelFailures(t *testing.T) {
	t.Parallel()

	accounts := []Account{{Id: "acc-1", Player: "alice", Guild: "guild-a", External: "puuid-1"}}
	directory := fakeDirectory{"alice": {
		{Channel: "chan-broken", Guild: "guild-a"},
		{Channel: "chan-ok", Guild: "guild-a"},
	}}
	fetcher := newFakeFetcher(func(account Account) (*Match, error) {
		return fixedMatch("m1"), nil
	})
	fx := newDriverFixture(accounts, directory, fetcher)
	fx.sender.errors["chan-broken"] = fmt.Errorf("%w", ErrPermissionDenied)

	metrics := fx.driver.RunCycle(context.Background())
	if metrics.Sent != 1 || metrics.Denied != 1 {
		t.Fatalf("metrics = %+v, want Sent 1 Denied 1", metrics)
	}
	if fx.sender.sentTo("chan-ok") != 1 {
		t.Fatalf("healthy channel notified %d times, want 1", fx.sender.sentTo("chan-ok"))
	}
	if fx.owner.count() != 1 {
		t.Fatalf("owner pinged %d times, want 1", fx.owner.count())
	}
	// The delivery attempt was made everywhere, so the match is processed
	if state := fx.store.get("acc-1"); state.LastProcessed != "m1" {
		t.Fatalf("LastProcessed = %q, want m1", state.LastProcessed)
	}
}

// Fetcher whose slow account blocks until the cycle context is cancelled
type deadlineFetcher struct {
	slow AccountId
}

func (f *deadlineFetcher) LatestMatch(ctx context.Context, account Account) (*Match, error) {
	if account.Id == f.slow {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", ErrFetchTransient, ctx.Err())
	}
	return fixedMatch("m1"), nil
}

// The deadline bounds the whole cycle: a fetch that never returns is
// abandoned, the slow account stays unchecked so a later cycle retries
// it, and the rest of the roster still delivers
func TestDriverAbandonsSlowFetchesAtTheDeadline(t *testing.T) {
	t.Parallel()

	accounts := []Account{
		{Id: "acc-slow", Player: "alice", Guild: "guild-a", External: "puuid-slow"},
		{Id: "acc-fast", Player: "bob", Guild: "guild-a", External: "puuid-fast"},
	}
	directory := fakeDirectory{
		"alice": {{Channel: "chan-slow", Guild: "guild-a"}},
		"bob":   {{Channel: "chan-fast", Guild: "guild-a"}},
	}
	store := newMemStore()
	sender := newFakeSender()
	owner := &fakeOwner{}
	roster := &staticRoster{accounts: accounts, store: store}
	states := NewStateTracker(store)
	guard := NewDeliveryGuard(sender, owner, 0)
	driver := NewDriver(roster, states, &deadlineFetcher{slow: "acc-slow"}, NewResolver(directory), guard, testPolicy(), 2, 50*time.Millisecond)

	start := time.Now()
	metrics := driver.RunCycle(context.Background())
	if took := time.Since(start); took > time.Second {
		t.Fatalf("cycle took %v with a 50ms deadline", took)
	}

	if metrics.Checked != 1 || metrics.Sent != 1 {
		t.Fatalf("metrics = %+v, want Checked 1 Sent 1", metrics)
	}
	if sender.sentTo("chan-fast") != 1 || sender.sentTo("chan-slow") != 0 {
		t.Fatalf("sent fast=%d slow=%d, want 1 and 0", sender.sentTo("chan-fast"), sender.sentTo("chan-slow"))
	}
	if state := store.get("acc-fast"); state.LastProcessed != "m1" {
		t.Fatalf("fast account LastProcessed = %q, want m1", state.LastProcessed)
	}
	// The abandoned account keeps its zero state, so due selection picks
	// it again next cycle
	if state := store.get("acc-slow"); state.LastCheckedAt != nil || state.LastProcessed != "" {
		t.Fatalf("slow account state = %+v, want untouched", state)
	}
}

// An account with no matches at all still gets its check recorded, or due
// selection would pick it on every tick
func TestDriverRecordsCheckWithoutMatches(t *testing.T) {
	t.Parallel()

	accounts := []Account{{Id: "acc-1", Player: "alice", Guild: "guild-a", External: "puuid-1"}}
	fetcher := newFakeFetcher(func(account Account) (*Match, error) {
		return nil, nil
	})
	fx := newDriverFixture(accounts, fakeDirectory{}, fetcher)

	metrics := fx.driver.RunCycle(context.Background())
	if metrics.Checked != 1 || metrics.Found != 0 {
		t.Fatalf("metrics = %+v, want Checked 1 Found 0", metrics)
	}
	if state := fx.store.get("acc-1"); state.LastCheckedAt == nil {
		t.Fatal("check was not recorded for an account without matches")
	}
}
