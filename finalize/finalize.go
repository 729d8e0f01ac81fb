// Package finalize implements the finalize-game workflow named in
// spec.md §4.C10: once a game reaches a terminal state, compute rating
// deltas, close out its match, update both players' stats, and persist
// the completed record. Grounded on the sequencing in
// original_source/tak-server-app's finalize-adjacent workflow files
// (workflow/player/get_rating.rs, get_stats.rs) composing the
// domain/rating.rs and domain/stats.rs traits behind one orchestration
// step; every step here logs and continues on failure, matching spec.md
// §4.C10's "must not raise" requirement.
//
// Publishing GameEnded/GameOver and releasing the spectator registry
// (§4.C10 steps 1-2) already happen synchronously inside the gameplay
// actor before it calls Finalize, since that is where the spectator
// registry and listener locator already live; this workflow picks up
// at step 3 (rating), and continues through match bookkeeping, stats,
// and persistence.
package finalize

import (
	"context"
	"log/slog"
	"time"

	"takserver/gameplay"
	"takserver/ids"
	"takserver/rating"
	"takserver/rules"
	"takserver/stats"
)

// MatchEnder is the subset of match.Service the workflow needs: closing
// out the match a finished game belonged to, if any.
type MatchEnder interface {
	EndGameInMatch(matchID ids.MatchId, gameID ids.GameId, now time.Time) bool
}

// PlayerInfo resolves the display attributes the completed-game record
// and rating eligibility need, without finalize depending directly on
// the account/player packages (same "cyclic collaborators" avoidance as
// gameplay.PlayerLocator).
type PlayerInfo interface {
	Username(playerID ids.PlayerId) string
	IsGuest(playerID ids.PlayerId) bool
}

// CompletedGame is the persisted record of one finished game (spec.md
// §4.C10 step 6).
type CompletedGame struct {
	GameID            ids.GameId
	MatchID           *ids.MatchId
	WhiteID           ids.PlayerId
	BlackID           ids.PlayerId
	WhiteUsername     string
	BlackUsername     string
	Settings          rules.GameSettings
	IsRated           bool
	History           []rules.Record
	Result            rules.Outcome
	EndedAt           time.Time
	RatingDeltaWhite  float64
	RatingDeltaBlack  float64
}

// GameRepository persists completed games (spec.md §6).
type GameRepository interface {
	SaveCompletedGame(ctx context.Context, g CompletedGame) error
}

// Workflow implements gameplay.FinalizeHook.
type Workflow struct {
	log        *slog.Logger
	ratings    rating.Store
	statsStore stats.Store
	matches    MatchEnder
	players    PlayerInfo
	games      GameRepository
}

// New constructs a finalize workflow. matches may be nil for deployments
// that never create matches.
func New(log *slog.Logger, ratings rating.Store, statsStore stats.Store, matches MatchEnder, players PlayerInfo, games GameRepository) *Workflow {
	return &Workflow{log: log, ratings: ratings, statsStore: statsStore, matches: matches, players: players, games: games}
}

var _ gameplay.FinalizeHook = (*Workflow)(nil)

// Finalize runs steps 3-6 of spec.md §4.C10 for one terminated game.
func (w *Workflow) Finalize(fg gameplay.FinishedGame) {
	log := w.log.With("game_id", fg.GameID)

	var deltaWhite, deltaBlack float64
	if fg.IsRated && !w.players.IsGuest(fg.WhiteID) && !w.players.IsGuest(fg.BlackID) {
		state := rules.State{Ongoing: false, Outcome: fg.Result}
		w.ratings.UpdateBoth(fg.WhiteID, fg.BlackID, func(white, black *rating.PlayerRating) {
			info, ok := rating.CalculateRatings(fg.EndedAt, fg.WhiteID, fg.BlackID, fg.Settings, fg.IsRated, fg.Result, state, len(fg.History), white, black)
			if ok {
				deltaWhite, deltaBlack = info.RatingChangeWhite, info.RatingChangeBlack
			}
		})
	}

	if fg.MatchID != nil && w.matches != nil {
		if !w.matches.EndGameInMatch(*fg.MatchID, fg.GameID, fg.EndedAt) {
			log.Warn("finalize: match already past its InProgress entry for this game", "match_id", *fg.MatchID)
		}
	}

	whiteOutcome, blackOutcome := outcomesFor(fg.Result)
	w.statsStore.RecordGame(fg.WhiteID, whiteOutcome, fg.IsRated)
	w.statsStore.RecordGame(fg.BlackID, blackOutcome, fg.IsRated)

	record := CompletedGame{
		GameID:           fg.GameID,
		MatchID:          fg.MatchID,
		WhiteID:          fg.WhiteID,
		BlackID:          fg.BlackID,
		WhiteUsername:    w.players.Username(fg.WhiteID),
		BlackUsername:    w.players.Username(fg.BlackID),
		Settings:         fg.Settings,
		IsRated:          fg.IsRated,
		History:          fg.History,
		Result:           fg.Result,
		EndedAt:          fg.EndedAt,
		RatingDeltaWhite: deltaWhite,
		RatingDeltaBlack: deltaBlack,
	}
	if err := w.games.SaveCompletedGame(context.Background(), record); err != nil {
		log.Error("finalize: failed to persist completed game", "error", err)
	}
}

func outcomesFor(result rules.Outcome) (white, black stats.Outcome) {
	if result.IsDraw {
		return stats.OutcomeDraw, stats.OutcomeDraw
	}
	if result.Winner == rules.White {
		return stats.OutcomeWin, stats.OutcomeLoss
	}
	return stats.OutcomeLoss, stats.OutcomeWin
}
