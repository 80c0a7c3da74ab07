package riotapi

import (
	"encoding/json"
	"time"
)

func DecodePuuid(data []byte) (Puuid, error) {

	var raw struct {
		Puuid string
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", err
	}
	return Puuid(raw.Puuid), nil
}

func DecodeRiotId(data []byte) (RiotId, error) {

	var riotid RiotId
	if err := json.Unmarshal(data, &riotid); err != nil {
		return RiotId{}, err
	}
	return riotid, nil
}

func DecodeMatchIds(data []byte) ([]MatchId, error) {

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	matchids := make([]MatchId, 0, len(raw))
	for _, id := range raw {
		matchids = append(matchids, MatchId(id))
	}
	return matchids, nil
}

func DecodeMatch(data []byte) (Match, error) {

	var raw struct {
		Metadata struct {
			MatchId string
		}
		Info struct {
			QueueId          int
			GameDuration     int64
			GameEndTimestamp int64
			Participants     []struct {
				Puuid                       string
				RiotIdGameName              string
				RiotIdTagline               string
				ChampionName                string
				Kills                       int
				Deaths                      int
				Assists                     int
				TotalMinionsKilled          int
				NeutralMinionsKilled        int
				GoldEarned                  int
				TotalDamageDealtToChampions int
				VisionScore                 int
				Win                         bool
			}
		}
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Match{}, err
	}

	match := Match{
		Id:       MatchId(raw.Metadata.MatchId),
		QueueId:  raw.Info.QueueId,
		Duration: time.Duration(raw.Info.GameDuration) * time.Second,
		EndTime:  time.UnixMilli(raw.Info.GameEndTimestamp),
	}
	for _, p := range raw.Info.Participants {
		match.Participants = append(match.Participants, Participant{
			Puuid:        Puuid(p.Puuid),
			RiotId:       RiotId{GameName: p.RiotIdGameName, TagLine: p.RiotIdTagline},
			ChampionName: p.ChampionName,
			Kills:        p.Kills,
			Deaths:       p.Deaths,
			Assists:      p.Assists,
			Cs:           p.TotalMinionsKilled + p.NeutralMinionsKilled,
			Gold:         p.GoldEarned,
			Damage:       p.TotalDamageDealtToChampions,
			VisionScore:  p.VisionScore,
			Win:          p.Win,
		})
	}
	return match, nil
}
