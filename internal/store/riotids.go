package store

import (
	"context"
	"strings"

	"scout/internal/riotapi"
)

// The store doubles as the riot id cache, so resolved names survive a
// restart without hitting the upstream again

func (s *Store) RiotIds(ctx context.Context) (map[riotapi.Puuid]riotapi.RiotId, error) {

	rows, err := s.db.QueryContext(ctx, `SELECT puuid, game_name, tag_line FROM riot_ids`)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	riotids := make(map[riotapi.Puuid]riotapi.RiotId)
	for rows.Next() {
		var puuid string
		var riotid riotapi.RiotId
		if err := rows.Scan(&puuid, &riotid.GameName, &riotid.TagLine); err != nil {
			return nil, unavailable(err)
		}
		riotids[riotapi.Puuid(puuid)] = riotid
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return riotids, nil
}

func (s *Store) SetRiotId(ctx context.Context, puuid riotapi.Puuid, riotid riotapi.RiotId) error {

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO riot_ids(puuid, game_name, tag_line) VALUES(?,?,?)
		 ON CONFLICT(puuid) DO UPDATE SET game_name=excluded.game_name, tag_line=excluded.tag_line`,
		string(puuid), riotid.GameName, riotid.TagLine,
	)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// KeepRiotIds drops every cached riot id except the provided puuids
func (s *Store) KeepRiotIds(ctx context.Context, keep map[riotapi.Puuid]struct{}) error {

	if len(keep) == 0 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM riot_ids`); err != nil {
			return unavailable(err)
		}
		return nil
	}

	placeholders := make([]string, 0, len(keep))
	args := make([]any, 0, len(keep))
	for puuid := range keep {
		placeholders = append(placeholders, "?")
		args = append(args, string(puuid))
	}
	query := `DELETE FROM riot_ids WHERE puuid NOT IN (` + strings.Join(placeholders, ",") + `)`
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable(err)
	}
	return nil
}
