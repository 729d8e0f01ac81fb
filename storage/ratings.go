package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"takserver/ids"
	"takserver/rating"
)

var _ rating.Store = (*Store)(nil)

// rower and execer are satisfied by both *pgxpool.Pool and pgx.Tx, so the
// rating read/write helpers below work identically whether called inside
// UpdateBoth's transaction or standalone from Get.
type rower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Get returns playerID's current rating, lazily minting
// rating.NewPlayerRating() on first lookup — matching rating.MemoryStore's
// lazy-mint behavior so callers see the same contract regardless of
// backend. A nil *Store returns a fresh in-memory rating only (no
// persistence).
func (s *Store) Get(playerID ids.PlayerId) rating.PlayerRating {
	if s == nil || s.pool == nil {
		return rating.NewPlayerRating()
	}
	r, err := getRating(context.Background(), s.pool, playerID)
	if err != nil {
		slog.Error("storage: get rating failed", "tag", "rating", "player_id", playerID, "error", err)
		return rating.NewPlayerRating()
	}
	return r
}

// UpdateBoth reads both players' ratings inside one transaction, applies
// fn, and writes both back — same single-transaction shape as the
// an UpdateRatingsAfterGame convention, generalized from a fixed ELO formula
// to the arbitrary mutation rating.CalculateRatings needs.
func (s *Store) UpdateBoth(white, black ids.PlayerId, fn func(white, black *rating.PlayerRating)) {
	if s == nil || s.pool == nil {
		w, b := rating.NewPlayerRating(), rating.NewPlayerRating()
		fn(&w, &b)
		return
	}
	ctx := context.Background()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		slog.Error("storage: begin rating tx failed", "tag", "rating", "error", err)
		return
	}
	defer tx.Rollback(ctx)

	w, err := getRating(ctx, tx, white)
	if err != nil {
		slog.Error("storage: get white rating failed", "tag", "rating", "error", err)
		return
	}
	b, err := getRating(ctx, tx, black)
	if err != nil {
		slog.Error("storage: get black rating failed", "tag", "rating", "error", err)
		return
	}

	fn(&w, &b)

	if err := putRating(ctx, tx, white, w); err != nil {
		slog.Error("storage: put white rating failed", "tag", "rating", "error", err)
		return
	}
	if err := putRating(ctx, tx, black, b); err != nil {
		slog.Error("storage: put black rating failed", "tag", "rating", "error", err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		slog.Error("storage: commit rating tx failed", "tag", "rating", "error", err)
	}
}

func getRating(ctx context.Context, q rower, playerID ids.PlayerId) (rating.PlayerRating, error) {
	var r rating.PlayerRating
	var fatigueRaw []byte
	err := q.QueryRow(ctx, `
		SELECT rating, boost, max_rating, rated_games_played, unrated_games_played, rating_age, fatigue
		FROM player_ratings WHERE player_id = $1`, string(playerID)).
		Scan(&r.Rating, &r.Boost, &r.MaxRating, &r.RatedGamesPlayed, &r.UnratedGamesPlayed, &r.RatingAge, &fatigueRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return rating.NewPlayerRating(), nil
	}
	if err != nil {
		return rating.PlayerRating{}, err
	}
	r.Fatigue = make(map[ids.PlayerId]float64)
	if len(fatigueRaw) > 0 {
		raw := make(map[string]float64)
		if err := json.Unmarshal(fatigueRaw, &raw); err != nil {
			return rating.PlayerRating{}, err
		}
		for k, v := range raw {
			r.Fatigue[ids.PlayerId(k)] = v
		}
	}
	return r, nil
}

func putRating(ctx context.Context, e execer, playerID ids.PlayerId, r rating.PlayerRating) error {
	raw := make(map[string]float64, len(r.Fatigue))
	for k, v := range r.Fatigue {
		raw[string(k)] = v
	}
	fatigueJSON, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	_, err = e.Exec(ctx, `
		INSERT INTO player_ratings (player_id, rating, boost, max_rating, rated_games_played, unrated_games_played, rating_age, fatigue)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (player_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			boost = EXCLUDED.boost,
			max_rating = EXCLUDED.max_rating,
			rated_games_played = EXCLUDED.rated_games_played,
			unrated_games_played = EXCLUDED.unrated_games_played,
			rating_age = EXCLUDED.rating_age,
			fatigue = EXCLUDED.fatigue`,
		string(playerID), r.Rating, r.Boost, r.MaxRating, r.RatedGamesPlayed, r.UnratedGamesPlayed, r.RatingAge, fatigueJSON)
	return err
}
