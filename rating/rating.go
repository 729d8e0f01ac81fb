// Package rating implements the decayed-Elo engine named in spec.md
// §4.C11: eligibility policy, rating decay over inactivity, and the
// per-game update with a one-time "boost" bonus and fatigue-dampened
// repeat-opponent adjustment. Grounded nearly line-for-line on
// original_source/tak-server-app/src/domain/rating.rs's
// RatingServiceImpl; ported from f64 Rust arithmetic to Go float64 with
// the same constants and formula shape.
package rating

import (
	"math"
	"time"

	"takserver/ids"
	"takserver/rules"
)

const (
	initialRating       = 1000.0
	bonusRating         = 750.0
	bonusFactor         = 60.0
	participationLimit  = 10.0
	participationCutoff = 1500.0
	maxDrop             = 200.0
	// ratingRetention is 240 days expressed in milliseconds, matching
	// the original engine's constant; PlayerRating.RatingAge and the
	// `date` argument threaded through this package are both Unix
	// milliseconds for the same reason.
	ratingRetention = 1000.0 * 60.0 * 60.0 * 24.0 * 240.0
)

// PlayerRating is one player's rating state (spec.md §3's PlayerRating
// entity).
type PlayerRating struct {
	Rating            float64
	Boost             float64
	MaxRating         float64
	RatedGamesPlayed  int
	UnratedGamesPlayed int
	RatingAge         float64 // Unix milliseconds
	Fatigue           map[ids.PlayerId]float64
}

// NewPlayerRating returns a fresh rating at the engine's starting values.
func NewPlayerRating() PlayerRating {
	return PlayerRating{
		Rating:    initialRating,
		Boost:     bonusRating,
		MaxRating: initialRating,
		Fatigue:   make(map[ids.PlayerId]float64),
	}
}

// GameRatingInfo carries the decayed-rating deltas produced by one
// rated game, for the finalize workflow (§4.C10) to persist.
type GameRatingInfo struct {
	RatingWhiteBefore float64
	RatingBlackBefore float64
	RatingChangeWhite float64
	RatingChangeBlack float64
}

var boardSizeLimits = [4]struct {
	timeScore        int
	reserveMin       int
	reserveMax       int
	capstoneMin      int
	capstoneMax      int
}{
	{180, 20, 32, 1, 1},
	{240, 25, 40, 1, 2},
	{300, 30, 48, 1, 2},
	{360, 40, 64, 1, 3},
}

// IsEligible implements is_game_eligible_for_rating: the game must be
// rated, board size ≥5, meet the per-size time/reserve/capstone bands,
// have reached a terminal state, and have at least 7 half-moves (moves
// > 6 in the original's zero-indexed move count).
func IsEligible(settings rules.GameSettings, isRated bool, state rules.State, halfMoves int) bool {
	if !isRated {
		return false
	}
	size := settings.Base.BoardSize
	if size < 5 {
		return false
	}
	idx := size - 5
	if idx > 3 {
		idx = 3
	}
	limits := boardSizeLimits[idx]

	contingentSecs := int(settings.Time.Contingent / time.Second)
	incrementSecs := int(settings.Time.Increment / time.Second)
	timeScore := contingentSecs*3 + incrementSecs
	if timeScore < limits.timeScore || contingentSecs < 60 {
		return false
	}
	reserve := settings.Base.Reserve
	if reserve.Pieces < limits.reserveMin || reserve.Pieces > limits.reserveMax {
		return false
	}
	if reserve.Capstones < limits.capstoneMin || reserve.Capstones > limits.capstoneMax {
		return false
	}
	if state.Ongoing {
		return false
	}
	if halfMoves <= 6 {
		return false
	}
	return true
}

// DecayedRating implements calc_decayed_rating / get_current_rating: a
// player's displayed rating accounts for inactivity once their raw
// rating sits above the participation cutoff.
func DecayedRating(r PlayerRating, dateMS float64) float64 {
	if r.Rating < participationCutoff {
		return r.Rating
	}
	participation := (20.0 * math.Pow(0.5, (dateMS-r.RatingAge)/ratingRetention)) / participationLimit
	if r.Rating < participationCutoff+maxDrop {
		return math.Min(r.Rating, participationCutoff+maxDrop*participation)
	}
	drop := maxDrop * math.Max(1.0-participation, 0.0)
	return r.Rating - drop
}

// updateRating implements update_rating: the core k-factor Elo update
// plus a one-time boost drawn down from the player's bonus pool.
func updateRating(p *PlayerRating, amount, fairness, fatigueFactor, dateMS float64) {
	bonus := math.Min(
		math.Max(0.0, (fatigueFactor*amount*math.Max(p.Boost, 1.0)*bonusFactor)/bonusRating),
		p.Boost,
	)
	p.Boost -= bonus
	k := 10.0 +
		15.0*math.Pow(0.5, float64(p.RatedGamesPlayed)/200.0) +
		15.0*math.Pow(0.5, (p.MaxRating-initialRating)/300.0)
	p.Rating += fatigueFactor*amount*k + bonus
	if p.RatingAge == 0.0 {
		p.RatingAge = dateMS - ratingRetention
	}
	participation := math.Min(20.0, 20.0*math.Pow(0.5, (dateMS-p.RatingAge)/ratingRetention)+fairness*fatigueFactor)
	p.RatingAge = math.Log2(participation/20.0)*ratingRetention + dateMS
	p.RatedGamesPlayed++
	p.MaxRating = math.Max(p.MaxRating, p.Rating)
}

// updateFatigue implements update_fatigue: repeat opponents decay each
// other's future rating swings, with old fatigue entries aged out.
func updateFatigue(p *PlayerRating, opponent ids.PlayerId, gameFactor float64) {
	multiplier := 1.0 - gameFactor*0.4
	for id, f := range p.Fatigue {
		f *= multiplier
		if id != opponent && f < 0.01 {
			delete(p.Fatigue, id)
			continue
		}
		p.Fatigue[id] = f
	}
	p.Fatigue[opponent] += gameFactor
}

func updateRatingAndFatigue(p *PlayerRating, opponent ids.PlayerId, amount, fairness, fatigueFactor, dateMS float64) {
	updateRating(p, amount, fairness, fatigueFactor, dateMS)
	updateFatigue(p, opponent, fairness*fatigueFactor)
}

// CalculateRatings implements calculate_ratings: applies one game's
// outcome to both players' rating state in place and returns the
// decayed-rating deltas, or (nil, false) if the game isn't eligible.
func CalculateRatings(now time.Time, whiteID, blackID ids.PlayerId, settings rules.GameSettings, isRated bool, outcome rules.Outcome, state rules.State, halfMoves int, white, black *PlayerRating) (*GameRatingInfo, bool) {
	if !IsEligible(settings, isRated, state, halfMoves) {
		return nil, false
	}

	var result float64
	switch {
	case outcome.IsDraw:
		result = 0.5
	case outcome.Winner == rules.White:
		result = 1.0
	case outcome.Winner == rules.Black:
		result = 0.0
	default:
		return nil, false
	}

	if white.Fatigue == nil {
		white.Fatigue = make(map[ids.PlayerId]float64)
	}
	if black.Fatigue == nil {
		black.Fatigue = make(map[ids.PlayerId]float64)
	}

	dateMS := float64(now.UnixMilli())
	oldWhiteDecayed := DecayedRating(*white, dateMS)
	oldBlackDecayed := DecayedRating(*black, dateMS)

	sw := math.Pow(10, white.Rating/400.0)
	sb := math.Pow(10, black.Rating/400.0)
	expected := sw / (sw + sb)
	fairness := expected * (1.0 - expected)
	fatigueFactor := (1.0 - white.Fatigue[blackID]*0.4) * (1.0 - black.Fatigue[whiteID]*0.4)
	adjustment := result - expected

	updateRatingAndFatigue(white, blackID, adjustment, fairness, fatigueFactor, dateMS)
	updateRatingAndFatigue(black, whiteID, -adjustment, fairness, fatigueFactor, dateMS)

	newWhiteDecayed := DecayedRating(*white, dateMS)
	newBlackDecayed := DecayedRating(*black, dateMS)

	return &GameRatingInfo{
		RatingWhiteBefore: oldWhiteDecayed,
		RatingBlackBefore: oldBlackDecayed,
		RatingChangeWhite: newWhiteDecayed - oldWhiteDecayed,
		RatingChangeBlack: newBlackDecayed - oldBlackDecayed,
	}, true
}
