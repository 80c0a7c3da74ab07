package riotapi

import (
	"context"
	"errors"
	"fmt"

	"scout/internal/common"
	"scout/internal/tracker"
)

// Fetcher adapts the riot API client to the poll driver's upstream
// contract, translating transport errors into the driver's
// transient/permanent taxonomy
type Fetcher struct {
	api *RiotApi
}

func NewFetcher(api *RiotApi) *Fetcher {
	return &Fetcher{api: api}
}

func (f *Fetcher) LatestMatch(ctx context.Context, account tracker.Account) (*tracker.Match, error) {

	matchid, found, err := f.api.GetLatestMatchId(ctx, Puuid(account.External))
	if err != nil {
		return nil, classify(err)
	}
	if !found {
		return nil, nil
	}

	// The detail request is cached inside the client, so an account
	// sitting on an already processed match costs one ids request plus
	// a cache hit
	match, err := f.api.GetMatch(ctx, matchid)
	if err != nil {
		return nil, classify(err)
	}

	return &tracker.Match{
		Id:      tracker.MatchId(match.Id),
		Time:    match.EndTime,
		Payload: &MatchView{Match: match, Focus: Puuid(account.External)},
	}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrRejected):
		// The upstream understood the request and said no: the account
		// id itself is bad. Checking again will not help
		return fmt.Errorf("%w: %w", tracker.ErrFetchPermanent, err)
	default:
		return fmt.Errorf("%w: %w", tracker.ErrFetchTransient, err)
	}
}
