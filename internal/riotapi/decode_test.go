package riotapi

import (
	"testing"
	"time"
)

func TestDecodePuuid(t *testing.T) {
	t.Parallel()

	data := []byte(`{"puuid":"abc123","gameName":"Faker","tagLine":"KR1"}`)
	puuid, err := DecodePuuid(data)
	if err != nil {
		t.Fatalf("DecodePuuid() error = %v", err)
	}
	if puuid != "abc123" {
		t.Fatalf("DecodePuuid() = %q, want abc123", puuid)
	}
}

func TestDecodeRiotId(t *testing.T) {
	t.Parallel()

	data := []byte(`{"puuid":"abc123","gameName":"Faker","tagLine":"KR1"}`)
	riotid, err := DecodeRiotId(data)
	if err != nil {
		t.Fatalf("DecodeRiotId() error = %v", err)
	}
	if riotid.GameName != "Faker" || riotid.TagLine != "KR1" {
		t.Fatalf("DecodeRiotId() = %+v, want Faker#KR1", riotid)
	}
	if got := riotid.String(); got != "Faker#KR1" {
		t.Fatalf("String() = %q, want Faker#KR1", got)
	}
}

func TestDecodeMatchIds(t *testing.T) {
	t.Parallel()

	matchids, err := DecodeMatchIds([]byte(`["EUW1_111","EUW1_222"]`))
	if err != nil {
		t.Fatalf("DecodeMatchIds() error = %v", err)
	}
	if len(matchids) != 2 || matchids[0] != "EUW1_111" || matchids[1] != "EUW1_222" {
		t.Fatalf("DecodeMatchIds() = %v, want the two ids in order", matchids)
	}

	// An account without matches decodes to an empty list
	matchids, err = DecodeMatchIds([]byte(`[]`))
	if err != nil {
		t.Fatalf("DecodeMatchIds() error = %v", err)
	}
	if len(matchids) != 0 {
		t.Fatalf("DecodeMatchIds() = %v, want none", matchids)
	}
}

func TestDecodeMatch(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		"metadata": {"matchId": "EUW1_111"},
		"info": {
			"queueId": 420,
			"gameDuration": 1800,
			"gameEndTimestamp": 1767265200000,
			"participants": [
				{
					"puuid": "abc123",
					"riotIdGameName": "Faker",
					"riotIdTagline": "KR1",
					"championName": "Azir",
					"kills": 7,
					"deaths": 2,
					"assists": 9,
					"totalMinionsKilled": 210,
					"neutralMinionsKilled": 14,
					"goldEarned": 13500,
					"totalDamageDealtToChampions": 24800,
					"visionScore": 31,
					"win": true
				},
				{
					"puuid": "def456",
					"riotIdGameName": "Chovy",
					"riotIdTagline": "KR1",
					"championName": "Ahri",
					"kills": 3,
					"deaths": 5,
					"assists": 4,
					"totalMinionsKilled": 198,
					"neutralMinionsKilled": 2,
					"goldEarned": 11900,
					"totalDamageDealtToChampions": 18200,
					"visionScore": 25,
					"win": false
				}
			]
		}
	}`)

	match, err := DecodeMatch(data)
	if err != nil {
		t.Fatalf("DecodeMatch() error = %v", err)
	}
	if match.Id != "EUW1_111" || match.QueueId != 420 {
		t.Fatalf("match = %+v, want id EUW1_111 and queue 420", match)
	}
	if match.Duration != 30*time.Minute {
		t.Fatalf("Duration = %v, want 30m", match.Duration)
	}
	if match.EndTime.UnixMilli() != 1767265200000 {
		t.Fatalf("EndTime = %v, want the timestamp from the payload", match.EndTime)
	}
	if len(match.Participants) != 2 {
		t.Fatalf("decoded %d participants, want 2", len(match.Participants))
	}

	participant := match.Participant("abc123")
	if participant == nil {
		t.Fatal("Participant() did not find the tracked puuid")
	}
	if participant.ChampionName != "Azir" || participant.Kills != 7 || !participant.Win {
		t.Fatalf("participant = %+v, want Azir with 7 kills and a win", participant)
	}
	// Creep score counts lane and jungle minions together
	if participant.Cs != 224 {
		t.Fatalf("Cs = %d, want 224", participant.Cs)
	}

	if match.Participant("nobody") != nil {
		t.Fatal("Participant() found an absent puuid")
	}
}
