package tracker

import (
	"context"
	"errors"
	"time"
)

type AccountId string
type PlayerId string
type MatchId string

// Account is one externally tracked game account. Accounts are scoped to
// the guild that created them, so the same puuid tracked from two guilds
// is two accounts
type Account struct {
	Id       AccountId
	Player   PlayerId
	Guild    string
	External string // puuid on the Riot side
	Region   string
}

// State is the polling state kept per account. Nil pointers mean the
// account has never been seen in a match / never been checked
type State struct {
	LastMatchTime *time.Time
	LastProcessed MatchId // empty if no match has been processed yet
	LastCheckedAt *time.Time
}

// Entry pairs an account with its polling state, as loaded from the roster
type Entry struct {
	Account Account
	State   State
}

// Match is what the upstream fetch hands back for an account. Payload is
// opaque to this package; it is passed through to the channel sender,
// which knows how to render it
type Match struct {
	Id      MatchId
	Time    time.Time
	Payload any
}

// Destination is one channel that should receive a notification. The
// guild is kept for ownership and permission lookups only; deduplication
// is by channel id alone
type Destination struct {
	Channel string
	Guild   string
}

// Failure taxonomy. Collaborators classify their failures by wrapping
// these sentinels so the driver and the delivery guard can match on them
// with errors.Is
var (
	// The store cannot be reached; skip the account this cycle
	ErrStoreUnavailable = errors.New("state store unavailable")
	// The upstream fetch failed in a way that a later cycle may recover from
	ErrFetchTransient = errors.New("transient fetch failure")
	// The upstream rejected the account itself; checking again will not help
	ErrFetchPermanent = errors.New("permanent fetch failure")
	// The bot may not post in the channel
	ErrPermissionDenied = errors.New("permission denied")
	// The channel does not exist or is not a text channel
	ErrChannelNotFound = errors.New("channel not found")
	// The send failed for a reason the next cycle may recover from
	ErrSendTransient = errors.New("transient send failure")
)

// StateStore persists polling state per account
type StateStore interface {
	State(ctx context.Context, id AccountId) (State, error)
	SetState(ctx context.Context, id AccountId, state State) error
}

// RosterSource lists every tracked account with its polling state
type RosterSource interface {
	Roster(ctx context.Context) ([]Entry, error)
}

// Fetcher asks the upstream for the most recent match of an account.
// A nil match with a nil error means the account has no matches
type Fetcher interface {
	LatestMatch(ctx context.Context, account Account) (*Match, error)
}

// Directory resolves a player to the channels subscribed to it
type Directory interface {
	Subscriptions(ctx context.Context, player PlayerId) ([]Destination, error)
}

// Sender delivers one notification to one channel. CanSend is a cheap
// local capability check against cached channel data; it must not hit
// the network
type Sender interface {
	CanSend(dest Destination) bool
	Send(ctx context.Context, dest Destination, match Match) error
}

// OwnerNotifier tells a guild owner their notification channel is broken.
// Implementations must not block delivery
type OwnerNotifier interface {
	Notify(guild string, reason string)
}
