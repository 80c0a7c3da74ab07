package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Metrics for one poll cycle
type Metrics struct {
	Due     int
	Checked int
	Found   int
	Sent    int
	Denied  int
	Dropped int
}

// Driver runs one poll cycle per tick: select the accounts that are due,
// fetch their latest match with a bounded pool of workers, and fan every
// new match out to its deduplicated destination channels. All
// collaborators are injected; the driver owns no I/O of its own
type Driver struct {
	roster   RosterSource
	states   *StateTracker
	fetcher  Fetcher
	resolver *Resolver
	guard    *DeliveryGuard

	policy   IntervalPolicy
	workers  int
	deadline time.Duration

	// Accounts the upstream has rejected permanently. They stay out of
	// the rotation until the process restarts or an operator fixes them
	quarantineMu sync.Mutex
	quarantine   map[AccountId]struct{}

	running atomic.Bool
}

func NewDriver(roster RosterSource, states *StateTracker, fetcher Fetcher, resolver *Resolver, guard *DeliveryGuard, policy IntervalPolicy, workers int, deadline time.Duration) *Driver {
	if workers <= 0 {
		workers = 1
	}
	return &Driver{
		roster:     roster,
		states:     states,
		fetcher:    fetcher,
		resolver:   resolver,
		guard:      guard,
		policy:     policy,
		workers:    workers,
		deadline:   deadline,
		quarantine: make(map[AccountId]struct{}),
	}
}

type fetchResult struct {
	entry Entry
	match *Match
	err   error
}

// One new match together with every due account that played in it. Two
// tracked accounts finishing the same game collapse into one job, and
// so into one notification per channel
type matchJob struct {
	match    Match
	accounts []Account
}

// RunCycle performs one tick. A cycle never overlaps itself: if the
// previous one is still draining, this tick is skipped. Every per
// account and per channel failure is absorbed and logged; the cycle
// always runs to completion
func (d *Driver) RunCycle(ctx context.Context) Metrics {

	if !d.running.CompareAndSwap(false, true) {
		log.Warn().Msg("Previous poll cycle still running, skipping tick")
		return Metrics{}
	}
	defer d.running.Store(false)

	if d.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.deadline)
		defer cancel()
	}

	cycle := uuid.New().String()
	logger := log.With().Str("cycle", cycle).Logger()
	now := time.Now()

	roster, err := d.roster.Roster(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Could not load roster, skipping cycle")
		return Metrics{}
	}

	due := d.withoutQuarantined(Due(roster, &d.policy, now))
	metrics := Metrics{Due: len(due)}
	if len(due) == 0 {
		return metrics
	}
	logger.Debug().Int("due", len(due)).Int("roster", len(roster)).Msg("Accounts due for a check")

	// Fetch with a bounded pool so a large roster cannot open unbounded
	// connections to the upstream
	jobs := make(chan Entry)
	results := make(chan fetchResult)
	var wg sync.WaitGroup
	for w := 0; w < d.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				match, err := d.fetcher.LatestMatch(ctx, entry.Account)
				results <- fetchResult{entry: entry, match: match, err: err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, entry := range due {
			select {
			case jobs <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect fetch results, recording checks and grouping the new
	// matches by match id
	groups := make(map[MatchId]*matchJob)
	for result := range results {
		d.collect(ctx, logger, result, groups, now, &metrics)
	}

	// Fan out each new match, and only afterwards mark it processed for
	// the accounts involved. The order is deliberate: a crash between
	// delivery and the state write causes a harmless repeat notification
	// on the next cycle, while the opposite order could lose the message
	// entirely
	for _, job := range groups {
		d.process(ctx, logger, job, now, &metrics)
	}

	logger.Info().
		Int("due", metrics.Due).
		Int("checked", metrics.Checked).
		Int("found", metrics.Found).
		Int("sent", metrics.Sent).
		Int("denied", metrics.Denied).
		Int("dropped", metrics.Dropped).
		Dur("took", time.Since(now)).
		Msg("Poll cycle finished")
	return metrics
}

// Handle one fetch result: classify errors, drop already processed
// matches, group the genuinely new ones
func (d *Driver) collect(ctx context.Context, logger zerolog.Logger, result fetchResult, groups map[MatchId]*matchJob, now time.Time, metrics *Metrics) {

	account := result.entry.Account
	switch {
	case errors.Is(result.err, ErrFetchPermanent):
		logger.Error().Err(result.err).Str("account", string(account.Id)).Str("puuid", account.External).
			Msg("Upstream rejected account permanently, quarantining until restart")
		d.quarantineMu.Lock()
		d.quarantine[account.Id] = struct{}{}
		d.quarantineMu.Unlock()
		return
	case result.err != nil:
		// Transient, including fetches abandoned at the cycle deadline.
		// The account stays due and is retried next cycle
		logger.Warn().Err(result.err).Str("account", string(account.Id)).Msg("Fetch failed, will retry next cycle")
		return
	}

	metrics.Checked++
	if result.match == nil {
		d.recordCheck(ctx, logger, account.Id, now)
		return
	}

	processed, err := d.states.HasProcessed(ctx, account.Id, result.match.Id)
	if err != nil {
		logger.Warn().Err(err).Str("account", string(account.Id)).Msg("Could not read polling state, skipping account this cycle")
		return
	}
	if processed {
		// The upstream returned a match we already acted on; nothing new
		d.recordCheck(ctx, logger, account.Id, now)
		return
	}

	group, ok := groups[result.match.Id]
	if !ok {
		group = &matchJob{match: *result.match}
		groups[result.match.Id] = group
		metrics.Found++
	}
	group.accounts = append(group.accounts, account)
}

// Deliver one new match to every resolved channel, then update state for
// every account that played in it
func (d *Driver) process(ctx context.Context, logger zerolog.Logger, job *matchJob, now time.Time, metrics *Metrics) {

	players := make([]PlayerId, 0, len(job.accounts))
	seen := make(map[PlayerId]struct{})
	for _, account := range job.accounts {
		if _, ok := seen[account.Player]; ok {
			continue
		}
		seen[account.Player] = struct{}{}
		players = append(players, account.Player)
	}

	destinations, err := d.resolver.Channels(ctx, players)
	if err != nil {
		// Without the full destination set we cannot guarantee one
		// delivery per channel, so the match stays unprocessed and the
		// next cycle retries the whole fan out
		logger.Warn().Err(err).Str("match", string(job.match.Id)).Msg("Could not resolve destinations, retrying next cycle")
		return
	}

	logger.Info().Str("match", string(job.match.Id)).Int("accounts", len(job.accounts)).Int("channels", len(destinations)).
		Msg("New match found")

	for _, destination := range destinations {
		switch d.guard.Deliver(ctx, destination, job.match) {
		case DeliveryOk:
			metrics.Sent++
		case DeliveryDenied:
			metrics.Denied++
		case DeliveryDropped:
			metrics.Dropped++
		}
	}

	for _, account := range job.accounts {
		if err := d.states.MarkProcessed(ctx, account.Id, job.match.Id, job.match.Time); err != nil {
			logger.Warn().Err(err).Str("account", string(account.Id)).Str("match", string(job.match.Id)).
				Msg("Could not mark match processed; the channel may be notified again next cycle")
			continue
		}
		d.recordCheck(ctx, logger, account.Id, now)
	}
}

func (d *Driver) recordCheck(ctx context.Context, logger zerolog.Logger, id AccountId, now time.Time) {
	if err := d.states.RecordCheck(ctx, id, now); err != nil {
		logger.Warn().Err(err).Str("account", string(id)).Msg("Could not record check attempt")
	}
}

// Quarantined lists the accounts currently excluded from polling
func (d *Driver) Quarantined() []AccountId {
	d.quarantineMu.Lock()
	defer d.quarantineMu.Unlock()
	ids := make([]AccountId, 0, len(d.quarantine))
	for id := range d.quarantine {
		ids = append(ids, id)
	}
	return ids
}

func (d *Driver) withoutQuarantined(due []Entry) []Entry {
	d.quarantineMu.Lock()
	defer d.quarantineMu.Unlock()
	if len(d.quarantine) == 0 {
		return due
	}
	filtered := due[:0]
	for _, entry := range due {
		if _, ok := d.quarantine[entry.Account.Id]; !ok {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}
