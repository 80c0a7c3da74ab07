package tracker

import (
	"context"
	"fmt"
)

// Resolver computes the set of channels to notify for a set of players.
// Duplicates appear along three independent axes: one player owning
// several accounts, one player subscribed from several guilds, and two
// guilds pointing at the same literal channel. All three collapse here,
// by channel id alone, so one channel never receives the same match twice.
// The guild kept per destination is the first one seen; it is only used
// for ownership and permission lookups downstream
type Resolver struct {
	directory Directory
}

func NewResolver(directory Directory) *Resolver {
	return &Resolver{directory: directory}
}

// Channels for the provided players, deduplicated by channel id. Players
// with no subscriptions contribute nothing; that is not an error.
// Output order is unspecified
func (r *Resolver) Channels(ctx context.Context, players []PlayerId) ([]Destination, error) {

	seen := make(map[string]struct{})
	var destinations []Destination

	for _, player := range players {
		subscriptions, err := r.directory.Subscriptions(ctx, player)
		if err != nil {
			return nil, fmt.Errorf("could not resolve subscriptions for player %s: %w", player, err)
		}
		for _, destination := range subscriptions {
			if _, ok := seen[destination.Channel]; ok {
				continue
			}
			seen[destination.Channel] = struct{}{}
			destinations = append(destinations, destination)
		}
	}
	return destinations, nil
}
