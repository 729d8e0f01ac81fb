package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"takserver/ids"
	"takserver/stats"
)

var _ stats.Store = (*Store)(nil)

// Get returns playerID's current stats, or the zero value if none are
// recorded yet — matching stats.MemoryStore's lazy-default behavior.
func (s *Store) Get(playerID ids.PlayerId) stats.PlayerStats {
	if s == nil || s.pool == nil {
		return stats.PlayerStats{}
	}
	var p stats.PlayerStats
	err := s.pool.QueryRow(context.Background(), `
		SELECT rated_games_played, games_played, games_won, games_lost, games_drawn
		FROM player_stats WHERE player_id = $1`, string(playerID)).
		Scan(&p.RatedGamesPlayed, &p.GamesPlayed, &p.GamesWon, &p.GamesLost, &p.GamesDrawn)
	if errors.Is(err, pgx.ErrNoRows) {
		return stats.PlayerStats{}
	}
	if err != nil {
		slog.Error("storage: get stats failed", "tag", "stats", "player_id", playerID, "error", err)
		return stats.PlayerStats{}
	}
	return p
}

// RecordGame upserts playerID's outcome tally in one statement, keeping
// the games_played == won+lost+drawn invariant (stats.PlayerStats'
// doc comment) by incrementing all counters atomically server-side
// rather than read-modify-write from Go.
func (s *Store) RecordGame(playerID ids.PlayerId, outcome stats.Outcome, isRated bool) {
	if s == nil || s.pool == nil {
		return
	}
	var won, lost, drawn int
	switch outcome {
	case stats.OutcomeWin:
		won = 1
	case stats.OutcomeLoss:
		lost = 1
	case stats.OutcomeDraw:
		drawn = 1
	}
	rated := 0
	if isRated {
		rated = 1
	}
	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO player_stats (player_id, rated_games_played, games_played, games_won, games_lost, games_drawn)
		VALUES ($1, $2, 1, $3, $4, $5)
		ON CONFLICT (player_id) DO UPDATE SET
			rated_games_played = player_stats.rated_games_played + $2,
			games_played = player_stats.games_played + 1,
			games_won = player_stats.games_won + $3,
			games_lost = player_stats.games_lost + $4,
			games_drawn = player_stats.games_drawn + $5`,
		string(playerID), rated, won, lost, drawn)
	if err != nil {
		slog.Error("storage: record game stats failed", "tag", "stats", "player_id", playerID, "error", err)
	}
}

// Remove deletes playerID's recorded stats.
func (s *Store) Remove(playerID ids.PlayerId) {
	if s == nil || s.pool == nil {
		return
	}
	if _, err := s.pool.Exec(context.Background(), `DELETE FROM player_stats WHERE player_id = $1`, string(playerID)); err != nil {
		slog.Error("storage: remove stats failed", "tag", "stats", "player_id", playerID, "error", err)
	}
}
