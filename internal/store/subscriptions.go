package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"scout/internal/tracker"
)

type Player struct {
	Id    tracker.PlayerId
	Guild string
	Alias string
}

type Account struct {
	Id       tracker.AccountId
	Player   tracker.PlayerId
	Guild    string
	Puuid    string
	GameName string
	TagLine  string
	Region   string
}

// One row of the guild overview used by the list command
type Subscription struct {
	PlayerAlias string
	Channel     string
}

// GetOrCreatePlayer finds the player with this alias in the guild, or
// creates it. Aliases group several accounts under one player
func (s *Store) GetOrCreatePlayer(ctx context.Context, guild string, alias string) (Player, error) {

	player := Player{Guild: guild, Alias: alias}
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM players WHERE guild = ? AND alias = ?`, guild, alias,
	).Scan(&id)
	if err == nil {
		player.Id = tracker.PlayerId(id)
		return player, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Player{}, unavailable(err)
	}

	player.Id = tracker.PlayerId(uuid.New().String())
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO players(id, guild, alias) VALUES(?,?,?)`,
		string(player.Id), guild, alias,
	); err != nil {
		return Player{}, unavailable(err)
	}
	return player, nil
}

// FindAccount by puuid within a guild
func (s *Store) FindAccount(ctx context.Context, guild string, puuid string) (Account, error) {

	account := Account{Guild: guild, Puuid: puuid}
	var id, player string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, player_id, game_name, tag_line, region FROM accounts WHERE guild = ? AND puuid = ?`,
		guild, puuid,
	).Scan(&id, &player, &account.GameName, &account.TagLine, &account.Region)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, unavailable(err)
	}
	account.Id = tracker.AccountId(id)
	account.Player = tracker.PlayerId(player)
	return account, nil
}

// CreateAccount registers a new tracked account under a player. The id is
// filled in
func (s *Store) CreateAccount(ctx context.Context, account *Account) error {

	account.Id = tracker.AccountId(uuid.New().String())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts(id, player_id, guild, puuid, game_name, tag_line, region) VALUES(?,?,?,?,?,?,?)`,
		string(account.Id), string(account.Player), account.Guild, account.Puuid, account.GameName, account.TagLine, account.Region,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// CreateSubscription binds a player to a destination channel within a guild
func (s *Store) CreateSubscription(ctx context.Context, guild string, player tracker.PlayerId, channel string) error {

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions(guild, player_id, channel) VALUES(?,?,?)`,
		guild, string(player), channel,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// DeleteSubscription removes the binding. The player, its accounts and
// their polling state are kept: accounts are soft retained for history
// and resubscription
func (s *Store) DeleteSubscription(ctx context.Context, guild string, player tracker.PlayerId, channel string) (bool, error) {

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE guild = ? AND player_id = ? AND channel = ?`,
		guild, string(player), channel,
	)
	if err != nil {
		return false, unavailable(err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, unavailable(err)
	}
	return deleted > 0, nil
}

// GuildSubscriptions lists the subscriptions of one guild for the list
// command
func (s *Store) GuildSubscriptions(ctx context.Context, guild string) ([]Subscription, error) {

	rows, err := s.db.QueryContext(ctx,
		`SELECT p.alias, sub.channel
		 FROM subscriptions sub
		 JOIN players p ON p.id = sub.player_id
		 WHERE sub.guild = ?
		 ORDER BY p.alias, sub.channel`,
		guild,
	)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var subscriptions []Subscription
	for rows.Next() {
		var subscription Subscription
		if err := rows.Scan(&subscription.PlayerAlias, &subscription.Channel); err != nil {
			return nil, unavailable(err)
		}
		subscriptions = append(subscriptions, subscription)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return subscriptions, nil
}

// TrackedPuuids lists every puuid with at least one account, for riot id
// cache housekeeping
func (s *Store) TrackedPuuids(ctx context.Context) (map[string]struct{}, error) {

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT puuid FROM accounts`)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	puuids := make(map[string]struct{})
	for rows.Next() {
		var puuid string
		if err := rows.Scan(&puuid); err != nil {
			return nil, unavailable(err)
		}
		puuids[puuid] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return puuids, nil
}
