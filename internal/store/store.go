package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"scout/internal/tracker"
)

// Lookups that find nothing return ErrNotFound; writes that would break a
// uniqueness rule return ErrDuplicate. Everything else coming out of the
// database wraps tracker.ErrStoreUnavailable so the poll driver knows to
// skip the account for the cycle instead of giving up
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		guild TEXT NOT NULL,
		alias TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(guild, alias)
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		player_id TEXT NOT NULL REFERENCES players(id),
		guild TEXT NOT NULL,
		puuid TEXT NOT NULL,
		game_name TEXT NOT NULL,
		tag_line TEXT NOT NULL,
		region TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(guild, puuid)
	)`,
	`CREATE TABLE IF NOT EXISTS polling_state (
		account_id TEXT PRIMARY KEY REFERENCES accounts(id),
		last_match_time INTEGER,
		last_processed_match_id TEXT,
		last_checked_at INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		guild TEXT NOT NULL,
		player_id TEXT NOT NULL REFERENCES players(id),
		channel TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(guild, player_id, channel)
	)`,
	`CREATE TABLE IF NOT EXISTS riot_ids (
		puuid TEXT PRIMARY KEY,
		game_name TEXT NOT NULL,
		tag_line TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_player ON accounts(player_id)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_player ON subscriptions(player_id)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_guild ON subscriptions(guild)`,
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {

	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("could not open database %s: %w", path, err)
	}
	// SQLite prefers a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// State of one account. An account that has never been polled has no row
// yet; that reads as the all-null state
func (s *Store) State(ctx context.Context, id tracker.AccountId) (tracker.State, error) {

	var lastMatch, lastChecked sql.NullInt64
	var lastProcessed sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT last_match_time, last_processed_match_id, last_checked_at FROM polling_state WHERE account_id = ?`,
		string(id),
	).Scan(&lastMatch, &lastProcessed, &lastChecked)
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.State{}, nil
	}
	if err != nil {
		return tracker.State{}, unavailable(err)
	}

	var state tracker.State
	if lastMatch.Valid {
		t := time.UnixMilli(lastMatch.Int64)
		state.LastMatchTime = &t
	}
	if lastProcessed.Valid {
		state.LastProcessed = tracker.MatchId(lastProcessed.String)
	}
	if lastChecked.Valid {
		t := time.UnixMilli(lastChecked.Int64)
		state.LastCheckedAt = &t
	}
	return state, nil
}

func (s *Store) SetState(ctx context.Context, id tracker.AccountId, state tracker.State) error {

	var lastMatch, lastChecked any
	if state.LastMatchTime != nil {
		lastMatch = state.LastMatchTime.UnixMilli()
	}
	if state.LastCheckedAt != nil {
		lastChecked = state.LastCheckedAt.UnixMilli()
	}
	var lastProcessed any
	if state.LastProcessed != "" {
		lastProcessed = string(state.LastProcessed)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO polling_state(account_id, last_match_time, last_processed_match_id, last_checked_at)
		 VALUES(?,?,?,?)
		 ON CONFLICT(account_id) DO UPDATE SET
		   last_match_time=excluded.last_match_time,
		   last_processed_match_id=excluded.last_processed_match_id,
		   last_checked_at=excluded.last_checked_at`,
		string(id), lastMatch, lastProcessed, lastChecked,
	)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Roster lists every tracked account with its polling state
func (s *Store) Roster(ctx context.Context) ([]tracker.Entry, error) {

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.player_id, a.guild, a.puuid, a.region,
		        ps.last_match_time, ps.last_processed_match_id, ps.last_checked_at
		 FROM accounts a
		 LEFT JOIN polling_state ps ON ps.account_id = a.id`,
	)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var roster []tracker.Entry
	for rows.Next() {
		var entry tracker.Entry
		var lastMatch, lastChecked sql.NullInt64
		var lastProcessed sql.NullString
		var id, player string
		if err := rows.Scan(&id, &player, &entry.Account.Guild, &entry.Account.External, &entry.Account.Region,
			&lastMatch, &lastProcessed, &lastChecked); err != nil {
			return nil, unavailable(err)
		}
		entry.Account.Id = tracker.AccountId(id)
		entry.Account.Player = tracker.PlayerId(player)
		if lastMatch.Valid {
			t := time.UnixMilli(lastMatch.Int64)
			entry.State.LastMatchTime = &t
		}
		if lastProcessed.Valid {
			entry.State.LastProcessed = tracker.MatchId(lastProcessed.String)
		}
		if lastChecked.Valid {
			t := time.UnixMilli(lastChecked.Int64)
			entry.State.LastCheckedAt = &t
		}
		roster = append(roster, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return roster, nil
}

// Subscriptions of one player, across all guilds
func (s *Store) Subscriptions(ctx context.Context, player tracker.PlayerId) ([]tracker.Destination, error) {

	rows, err := s.db.QueryContext(ctx,
		`SELECT channel, guild FROM subscriptions WHERE player_id = ?`, string(player),
	)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var destinations []tracker.Destination
	for rows.Next() {
		var destination tracker.Destination
		if err := rows.Scan(&destination.Channel, &destination.Guild); err != nil {
			return nil, unavailable(err)
		}
		destinations = append(destinations, destination)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return destinations, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", tracker.ErrStoreUnavailable, err)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
