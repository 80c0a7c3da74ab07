package riotapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"scout/internal/common"
)

// Riot schema
const RIOT_SCHEMA = "https://%s.api.riotgames.com"

// Routes inside the riot API
const ROUTE_ACCOUNT_PUUID = "/riot/account/v1/accounts/by-riot-id/%s/%s"
const ROUTE_ACCOUNT_RIOT_ID = "/riot/account/v1/accounts/by-puuid/%s"
const ROUTE_MATCH_IDS = "/lol/match/v5/matches/by-puuid/%s/ids?start=0&count=1"
const ROUTE_MATCH = "/lol/match/v5/matches/%s"

// Bound on the match detail cache. Details are immutable, but old
// matches are never asked for again, so the cache is dropped wholesale
// when it grows past this
const matchCacheLimit = 512

// IdCache persists the puuid to riot id mapping between runs
type IdCache interface {
	RiotIds(ctx context.Context) (map[Puuid]RiotId, error)
	SetRiotId(ctx context.Context, puuid Puuid, riotid RiotId) error
	KeepRiotIds(ctx context.Context, keep map[Puuid]struct{}) error
}

type RiotApi struct {
	cache  IdCache
	region string
	proxy  common.Proxy

	mu         sync.Mutex
	riotIds    map[Puuid]RiotId
	matchCache map[MatchId]*Match
}

func NewRiotApi(cache IdCache, apiKey string, region string, restrictions []common.Restriction, penalty time.Duration, timeout time.Duration) *RiotApi {

	var riotapi RiotApi

	riotapi.cache = cache
	riotapi.region = region
	riotapi.proxy = common.NewProxy(map[string]string{"X-Riot-Token": apiKey}, restrictions, penalty, timeout)
	riotapi.matchCache = map[MatchId]*Match{}

	// Initialise the riot id cache from the store if present
	riotIds, err := cache.RiotIds(context.Background())
	if err != nil {
		log.Warn().Err(err).Msg("Could not load riot id cache, starting empty")
		riotIds = map[Puuid]RiotId{}
	}
	riotapi.riotIds = riotIds

	return &riotapi
}

func (riotapi *RiotApi) Region() string {
	return riotapi.region
}

func (riotapi *RiotApi) GetPuuid(ctx context.Context, riotid RiotId) (Puuid, error) {

	// Check cache
	riotapi.mu.Lock()
	for puuid, cached := range riotapi.riotIds {
		if cached == riotid {
			riotapi.mu.Unlock()
			return puuid, nil
		}
	}
	riotapi.mu.Unlock()

	// Request. Lookups for a user typing a command are vital
	url := fmt.Sprintf(RIOT_SCHEMA, riotapi.region) + fmt.Sprintf(ROUTE_ACCOUNT_PUUID, riotid.GameName, riotid.TagLine)
	data, err := riotapi.proxy.Request(ctx, url, true)
	if err != nil {
		return "", fmt.Errorf("could not find puuid for riot id %s: %w", &riotid, err)
	}

	// Decode
	puuid, err := DecodePuuid(data)
	if err != nil {
		return "", err
	}
	log.Debug().Msg(fmt.Sprintf("Found puuid %s for riot id %s", puuid, &riotid))

	riotapi.storeRiotId(ctx, puuid, riotid)
	return puuid, nil
}

func (riotapi *RiotApi) GetRiotId(ctx context.Context, puuid Puuid) (RiotId, error) {

	// Check cache
	riotapi.mu.Lock()
	if riotid, ok := riotapi.riotIds[puuid]; ok {
		riotapi.mu.Unlock()
		return riotid, nil
	}
	riotapi.mu.Unlock()
	log.Debug().Msg(fmt.Sprintf("Riot id for puuid %s is not in the cache", puuid))

	// Request
	url := fmt.Sprintf(RIOT_SCHEMA, riotapi.region) + fmt.Sprintf(ROUTE_ACCOUNT_RIOT_ID, puuid)
	data, err := riotapi.proxy.Request(ctx, url, true)
	if err != nil {
		return RiotId{}, fmt.Errorf("could not find riot id for puuid %s: %w", puuid, err)
	}

	// Decode
	riotid, err := DecodeRiotId(data)
	if err != nil {
		return RiotId{}, err
	}
	log.Debug().Msg(fmt.Sprintf("Found riot id %s for puuid %s", &riotid, puuid))

	riotapi.storeRiotId(ctx, puuid, riotid)
	return riotid, nil
}

// GetLatestMatchId returns the id of the most recent finished match of
// the account, and whether there is one at all. Polling requests are not
// vital: when the rate limiter is saturated they are dropped and the
// account is retried on a later cycle
func (riotapi *RiotApi) GetLatestMatchId(ctx context.Context, puuid Puuid) (MatchId, bool, error) {

	url := fmt.Sprintf(RIOT_SCHEMA, riotapi.region) + fmt.Sprintf(ROUTE_MATCH_IDS, puuid)
	data, err := riotapi.proxy.Request(ctx, url, false)
	if err != nil {
		return "", false, fmt.Errorf("could not fetch match ids for puuid %s: %w", puuid, err)
	}

	matchids, err := DecodeMatchIds(data)
	if err != nil {
		return "", false, err
	}
	if len(matchids) == 0 {
		return "", false, nil
	}
	return matchids[0], true, nil
}

// GetMatch returns the detail of one match. Details are immutable, so
// they are cached: the poll cycle asks for the same match once per
// account in it
func (riotapi *RiotApi) GetMatch(ctx context.Context, matchid MatchId) (*Match, error) {

	// Check cache
	riotapi.mu.Lock()
	if match, ok := riotapi.matchCache[matchid]; ok {
		riotapi.mu.Unlock()
		return match, nil
	}
	riotapi.mu.Unlock()

	// Request
	url := fmt.Sprintf(RIOT_SCHEMA, riotapi.region) + fmt.Sprintf(ROUTE_MATCH, matchid)
	data, err := riotapi.proxy.Request(ctx, url, false)
	if err != nil {
		return nil, fmt.Errorf("could not fetch match %s: %w", matchid, err)
	}

	match, err := DecodeMatch(data)
	if err != nil {
		return nil, err
	}

	// Add match to the cache
	riotapi.mu.Lock()
	if len(riotapi.matchCache) >= matchCacheLimit {
		log.Info().Msg(fmt.Sprintf("Dropping match cache at %d entries", len(riotapi.matchCache)))
		riotapi.matchCache = map[MatchId]*Match{}
	}
	riotapi.matchCache[matchid] = &match
	riotapi.mu.Unlock()

	return &match, nil
}

// Housekeeping refreshes the riot ids of the puuids still tracked (names
// change over time) and drops cache entries for everyone else
func (riotapi *RiotApi) Housekeeping(ctx context.Context, puuidsToKeep map[Puuid]struct{}) {

	log.Info().Msg(fmt.Sprintf("Housekeeping: keeping %d puuids of %d cached", len(puuidsToKeep), len(riotapi.riotIds)))

	riotapi.mu.Lock()
	riotapi.riotIds = make(map[Puuid]RiotId, len(puuidsToKeep))
	riotapi.mu.Unlock()

	for puuid := range puuidsToKeep {
		if _, err := riotapi.GetRiotId(ctx, puuid); err != nil {
			log.Error().Err(err).Msg(fmt.Sprintf("Could not refresh riot id for puuid %s", puuid))
		}
	}

	if err := riotapi.cache.KeepRiotIds(ctx, puuidsToKeep); err != nil {
		log.Error().Err(err).Msg("Could not prune riot id cache")
	}
}

func (riotapi *RiotApi) storeRiotId(ctx context.Context, puuid Puuid, riotid RiotId) {

	riotapi.mu.Lock()
	riotapi.riotIds[puuid] = riotid
	riotapi.mu.Unlock()

	if err := riotapi.cache.SetRiotId(ctx, puuid, riotid); err != nil {
		log.Warn().Err(err).Msg(fmt.Sprintf("Could not persist riot id for puuid %s", puuid))
	}
}
