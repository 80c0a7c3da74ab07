package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"scout/internal/common"
)

// Outcome is the classification of one delivery attempt
type Outcome int

const (
	DeliveryOk Outcome = iota
	DeliveryDenied
	DeliveryDropped
)

// DeliveryGuard attempts delivery to a single channel and keeps, per
// destination, a two state machine Ok <-> Denied. A transition into
// Denied pings the guild owner once; further denials are suppressed
// until a delivery to that destination succeeds again. Transient
// failures are dropped without escalation; the next cycle that finds a
// match is the retry boundary, so a platform outage is never amplified
// by in-cycle retries
type DeliveryGuard struct {
	sender Sender
	owner  OwnerNotifier

	mu sync.Mutex
	// Destinations whose last recorded outcome was a permission denial
	denied map[Destination]struct{}
	// Minimal gap between owner pings per guild, on top of the state
	// machine suppression
	cooldowns     map[string]*common.Stopwatch
	ownerCooldown time.Duration
}

func NewDeliveryGuard(sender Sender, owner OwnerNotifier, ownerCooldown time.Duration) *DeliveryGuard {
	return &DeliveryGuard{
		sender:        sender,
		owner:         owner,
		denied:        make(map[Destination]struct{}),
		cooldowns:     make(map[string]*common.Stopwatch),
		ownerCooldown: ownerCooldown,
	}
}

// Deliver one match to one destination and classify the result. Never
// returns an error: every failure mode is absorbed here so a caller
// fanning out to many channels can simply keep going
func (g *DeliveryGuard) Deliver(ctx context.Context, dest Destination, match Match) Outcome {

	// Cheap local permission check before touching the network. The
	// send itself can still fail with a permission error if access was
	// revoked since the cache was updated; both paths classify the same
	if !g.sender.CanSend(dest) {
		g.recordDenied(dest, "missing permission to post")
		return DeliveryDenied
	}

	err := g.sender.Send(ctx, dest, match)
	switch {
	case err == nil:
		g.recordOk(dest)
		return DeliveryOk
	case errors.Is(err, ErrPermissionDenied):
		g.recordDenied(dest, "permission denied on send")
		return DeliveryDenied
	case errors.Is(err, ErrChannelNotFound):
		log.Warn().Str("guild", dest.Guild).Str("channel", dest.Channel).Str("match", string(match.Id)).
			Msg("Notification channel does not exist, dropping message")
		return DeliveryDropped
	default:
		log.Warn().Err(err).Str("guild", dest.Guild).Str("channel", dest.Channel).Str("match", string(match.Id)).
			Msg("Could not deliver notification, dropping message")
		return DeliveryDropped
	}
}

// Record a success, which also arms the owner ping again for this
// destination. A fix deserves a fresh ping if the channel breaks again,
// so the guild cooldown is cleared too
func (g *DeliveryGuard) recordOk(dest Destination) {
	g.mu.Lock()
	delete(g.denied, dest)
	if stopwatch, ok := g.cooldowns[dest.Guild]; ok {
		stopwatch.Stop()
	}
	g.mu.Unlock()
}

// Record a permission denial and ping the guild owner, unless the
// destination was already known to be denied
func (g *DeliveryGuard) recordDenied(dest Destination, reason string) {
	g.mu.Lock()
	_, suppressed := g.denied[dest]
	g.denied[dest] = struct{}{}
	notify := !suppressed && g.ownerAllowed(dest.Guild)
	g.mu.Unlock()

	log.Warn().Str("guild", dest.Guild).Str("channel", dest.Channel).Bool("suppressed", !notify).
		Msg("Notification suppressed for lack of permissions")
	if notify {
		g.owner.Notify(dest.Guild, reason)
	}
}

// Check and arm the per guild cooldown. Caller holds the lock
func (g *DeliveryGuard) ownerAllowed(guild string) bool {
	stopwatch, ok := g.cooldowns[guild]
	if !ok {
		sw := common.NewStopwatch(g.ownerCooldown)
		stopwatch = &sw
		g.cooldowns[guild] = stopwatch
	}
	if stopped, _ := stopwatch.Stopped(); !stopped {
		return false
	}
	stopwatch.Start()
	return true
}
