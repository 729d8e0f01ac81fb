package storage

import (
	"context"
	"encoding/json"
	"strconv"

	"takserver/finalize"
	"takserver/ids"
)

var _ finalize.GameRepository = (*Store)(nil)

// SaveCompletedGame persists a finished game's full record (spec.md §6
// "persist the completed record"). A nil *Store is a no-op, matching
// every other repository method in this package.
func (s *Store) SaveCompletedGame(ctx context.Context, g finalize.CompletedGame) error {
	if s == nil || s.pool == nil {
		return nil
	}
	settings, err := json.Marshal(g.Settings)
	if err != nil {
		return err
	}
	history, err := json.Marshal(g.History)
	if err != nil {
		return err
	}
	result, err := json.Marshal(g.Result)
	if err != nil {
		return err
	}
	var matchID *string
	if g.MatchID != nil {
		m := strconv.FormatUint(uint64(*g.MatchID), 10)
		matchID = &m
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO completed_games
			(game_id, match_id, white_id, black_id, white_username, black_username,
			 settings, is_rated, history, result, ended_at, rating_delta_white, rating_delta_black)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (game_id) DO NOTHING`,
		strconv.FormatInt(int64(g.GameID), 10), matchID, string(g.WhiteID), string(g.BlackID), g.WhiteUsername, g.BlackUsername,
		settings, g.IsRated, history, result, g.EndedAt, g.RatingDeltaWhite, g.RatingDeltaBlack)
	return err
}

// QueryGames lists a player's completed games, most recent first,
// bounded by limit (spec.md §6's "telemetry-style read queries").
func (s *Store) QueryGames(ctx context.Context, playerID ids.PlayerId, limit int) ([]finalize.CompletedGame, error) {
	if s == nil || s.pool == nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT match_id, white_id, black_id, white_username, black_username,
		       settings, is_rated, history, result, ended_at, rating_delta_white, rating_delta_black
		FROM completed_games
		WHERE white_id = $1 OR black_id = $1
		ORDER BY ended_at DESC
		LIMIT $2`, string(playerID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []finalize.CompletedGame
	for rows.Next() {
		var (
			g                       finalize.CompletedGame
			matchID                 *string
			whiteID, blackID        string
			settingsRaw, historyRaw []byte
			resultRaw               []byte
		)
		if err := rows.Scan(&matchID, &whiteID, &blackID, &g.WhiteUsername, &g.BlackUsername,
			&settingsRaw, &g.IsRated, &historyRaw, &resultRaw, &g.EndedAt, &g.RatingDeltaWhite, &g.RatingDeltaBlack); err != nil {
			return nil, err
		}
		g.WhiteID, g.BlackID = ids.PlayerId(whiteID), ids.PlayerId(blackID)
		if matchID != nil {
			n, err := strconv.ParseUint(*matchID, 10, 32)
			if err != nil {
				return nil, err
			}
			mid := ids.MatchId(n)
			g.MatchID = &mid
		}
		if err := json.Unmarshal(settingsRaw, &g.Settings); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(historyRaw, &g.History); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(resultRaw, &g.Result); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
