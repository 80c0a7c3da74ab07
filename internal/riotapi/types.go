package riotapi

import (
	"fmt"
	"time"
)

type Puuid string
type MatchId string

type RiotId struct {
	GameName string
	TagLine  string
}

func (riotid *RiotId) String() string {
	return fmt.Sprintf("%s#%s", riotid.GameName, riotid.TagLine)
}

// Match is the detail of one finished game, reduced to what the
// notification embed needs
type Match struct {
	Id           MatchId
	QueueId      int
	Duration     time.Duration
	EndTime      time.Time
	Participants []Participant
}

type Participant struct {
	Puuid        Puuid
	RiotId       RiotId
	ChampionName string
	Kills        int
	Deaths       int
	Assists      int
	Cs           int
	Gold         int
	Damage       int
	VisionScore  int
	Win          bool
}

// MatchView is the notification payload: one match together with the
// tracked participant it should be told from the perspective of
type MatchView struct {
	Match *Match
	Focus Puuid
}

// Find the participant with the provided puuid, or nil
func (match *Match) Participant(puuid Puuid) *Participant {
	for i := range match.Participants {
		if match.Participants[i].Puuid == puuid {
			return &match.Participants[i]
		}
	}
	return nil
}
