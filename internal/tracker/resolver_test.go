package tracker

import (
	"context"
	"errors"
	"testing"
)

func TestResolverDeduplicatesByChannel(t *testing.T) {
	t.Parallel()

	directory := fakeDirectory{
		// One player subscribed from two guilds that point at the same
		// literal channel
		"alice": {
			{Channel: "chan-1", Guild: "guild-a"},
			{Channel: "chan-1", Guild: "guild-b"},
		},
		// A second player sharing one channel with the first
		"bob": {
			{Channel: "chan-1", Guild: "guild-a"},
			{Channel: "chan-2", Guild: "guild-a"},
		},
	}
	resolver := NewResolver(directory)

	destinations, err := resolver.Channels(context.Background(), []PlayerId{"alice", "bob"})
	if err != nil {
		t.Fatalf("Channels() error = %v", err)
	}
	if len(destinations) != 2 {
		t.Fatalf("Channels() returned %d destinations, want 2: %v", len(destinations), destinations)
	}
	seen := make(map[string]bool)
	for _, dest := range destinations {
		if seen[dest.Channel] {
			t.Fatalf("channel %s resolved twice", dest.Channel)
		}
		seen[dest.Channel] = true
	}
	if !seen["chan-1"] || !seen["chan-2"] {
		t.Fatalf("Channels() missing a channel: %v", destinations)
	}
}

func TestResolverUnknownPlayerResolvesToNothing(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(fakeDirectory{})
	destinations, err := resolver.Channels(context.Background(), []PlayerId{"nobody"})
	if err != nil {
		t.Fatalf("Channels() error = %v", err)
	}
	if len(destinations) != 0 {
		t.Fatalf("Channels() = %v, want none", destinations)
	}
}

type failingDirectory struct{ err error }

func (d failingDirectory) Subscriptions(ctx context.Context, player PlayerId) ([]Destination, error) {
	return nil, d.err
}

func TestResolverPropagatesDirectoryErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("directory down")
	resolver := NewResolver(failingDirectory{err: boom})
	if _, err := resolver.Channels(context.Background(), []PlayerId{"alice"}); !errors.Is(err, boom) {
		t.Fatalf("Channels() error = %v, want wrapped %v", err, boom)
	}
}
