package rules

import (
	"strconv"
	"strings"
	"time"
)

// Record is one committed action plus the wall-clock time both sides had
// remaining the instant it was committed (spec.md §4.C7 step 4).
type Record struct {
	Action           Action
	Mover            Player
	WhiteRemaining   time.Duration
	BlackRemaining   time.Duration
	CommittedAt      time.Time
}

// Game is an ongoing Tak game: the Glossary's pure rules-library
// contract. It owns the board, reserves, action history, and a wall-clock
// time budget per side; it knows nothing about deadlines-as-timestamps or
// notification delivery, which belong to the gameplay service (C7).
type Game struct {
	settings GameSettings
	board    *board

	currentPlayer Player
	reserves      [2]Reserve // indexed by Player
	history       []Record
	hashCounts    map[string]int

	whiteRemaining time.Duration
	blackRemaining time.Duration
	lastTick       time.Time

	state State
}

// New starts a fresh game from settings. Settings are assumed valid
// (callers validate with GameSettings.IsValid before construction, as
// create_seek does in spec.md §4.C5).
func New(settings GameSettings, startedAt time.Time) *Game {
	g := &Game{
		settings:       settings,
		board:          newBoard(settings.Base.BoardSize),
		currentPlayer:  White,
		reserves:       [2]Reserve{settings.Base.Reserve, settings.Base.Reserve},
		hashCounts:     make(map[string]int),
		whiteRemaining: settings.Time.Contingent,
		blackRemaining: settings.Time.Contingent,
		lastTick:       startedAt,
		state:          State{Ongoing: true},
	}
	return g
}

// CurrentPlayer returns the side to move.
func (g *Game) CurrentPlayer() Player { return g.currentPlayer }

// ActionHistory returns the committed action records in order.
func (g *Game) ActionHistory() []Record { return g.history }

// IsOngoing reports whether the game has not yet reached a terminal state.
func (g *Game) IsOngoing() bool { return g.state.Ongoing }

// GameState returns the current (possibly terminal) state.
func (g *Game) GameState() State { return g.state }

// GetTimeRemainingBoth returns each side's remaining wall-clock budget as
// of now, accounting for time elapsed since the last committed action
// without mutating game state.
func (g *Game) GetTimeRemainingBoth(now time.Time) (white, black time.Duration) {
	elapsed := now.Sub(g.lastTick)
	if elapsed < 0 {
		elapsed = 0
	}
	white, black = g.whiteRemaining, g.blackRemaining
	if g.state.Ongoing {
		if g.currentPlayer == White {
			white -= elapsed
		} else {
			black -= elapsed
		}
	}
	return white, black
}

// CanDoAction reports whether action is legal without applying it.
func (g *Game) CanDoAction(action Action) error {
	return g.canDoAction(action)
}

func (g *Game) canDoAction(action Action) error {
	switch action.Kind {
	case ActionPlace:
		if len(g.history) < 2 && action.Variant != Flat {
			return &InvalidActionError{ReasonOpeningViolation}
		}
		reserve := g.reserves[g.currentPlayer]
		var remaining int
		switch action.Variant {
		case Flat, Standing:
			remaining = reserve.Pieces
		case Capstone:
			remaining = reserve.Capstones
		}
		if remaining == 0 {
			return &InvalidActionError{ReasonNoPiecesRemaining}
		}
		return g.board.canPlace(action.Pos)
	case ActionMove:
		if len(g.history) < 2 {
			return &InvalidActionError{ReasonOpeningViolation}
		}
		return g.board.canMove(action.From, action.Dir, action.Drops, g.currentPlayer)
	default:
		return &InvalidActionError{ReasonOutOfBounds}
	}
}

// DoAction validates and applies action as committed at time now,
// returning the record of what was played. Per spec.md §4.C7 the caller
// (gameplay service) already resolved which side is moving; DoAction
// re-derives current-player itself and simply applies it.
func (g *Game) DoAction(action Action, now time.Time) (Record, error) {
	if !g.state.Ongoing {
		return Record{}, &InvalidActionError{ReasonPositionOccupied}
	}
	if err := g.canDoAction(action); err != nil {
		return Record{}, err
	}

	mover := g.currentPlayer
	switch action.Kind {
	case ActionPlace:
		// The opening two plies place a stone for the opponent's color,
		// per Tak's swap rule, carried over from the original engine's
		// do_action (tak-core/src/base.rs).
		placingPlayer := mover
		if len(g.history) < 2 {
			placingPlayer = mover.Opponent()
		}
		reserve := &g.reserves[mover]
		switch action.Variant {
		case Flat, Standing:
			reserve.Pieces--
		case Capstone:
			reserve.Capstones--
		}
		g.board.place(action.Pos, piece{owner: placingPlayer, variant: action.Variant})
	case ActionMove:
		g.board.doMove(action.From, action.Dir, action.Drops)
	}

	elapsed := now.Sub(g.lastTick)
	if elapsed < 0 {
		elapsed = 0
	}
	if mover == White {
		g.whiteRemaining -= elapsed
		g.whiteRemaining += g.settings.Time.Increment
	} else {
		g.blackRemaining -= elapsed
		g.blackRemaining += g.settings.Time.Increment
	}
	g.lastTick = now

	hash := g.boardHash()
	g.hashCounts[hash]++

	rec := Record{
		Action:         action,
		Mover:          mover,
		WhiteRemaining: g.whiteRemaining,
		BlackRemaining: g.blackRemaining,
		CommittedAt:    now,
	}

	if outcome, ok := g.checkGameOver(hash); ok {
		g.state = State{Ongoing: false, Outcome: outcome}
	} else {
		g.currentPlayer = mover.Opponent()
	}
	g.history = append(g.history, rec)
	return rec, nil
}

// Resign ends the game immediately with a default win for the opponent of
// the resigning player (spec.md §4.C7 "Resign: always ends the game with
// Win(opposite_side, Default)").
func (g *Game) Resign(player Player) Outcome {
	outcome := Outcome{Winner: player.Opponent(), Reason: ReasonDefault}
	g.state = State{Ongoing: false, Outcome: outcome}
	return outcome
}

// ForceTimeout ends the game with a default win for winner, used by the
// timeout and disconnect-timeout runners (§4.C8, §4.C9).
func (g *Game) ForceTimeout(winner Player) Outcome {
	outcome := Outcome{Winner: winner, Reason: ReasonDefault}
	g.state = State{Ongoing: false, Outcome: outcome}
	return outcome
}

// Draw ends the game in a draw directly, used by the
// draw-offer-acceptance path (§4.C7 "offering when the opponent already
// has an active offer counts as acceptance").
func (g *Game) Draw() Outcome {
	outcome := Outcome{IsDraw: true}
	g.state = State{Ongoing: false, Outcome: outcome}
	return outcome
}

// Undo pops the last action and replays the prefix into a fresh board,
// preserving rules-library invariants exactly as spec.md §4.C7 requires
// ("roll the game back by replaying the prefix into a fresh rules
// state"). It returns false if there is no action to undo.
func (g *Game) Undo(at time.Time) bool {
	if len(g.history) == 0 {
		return false
	}
	prefix := g.history[:len(g.history)-1]
	replay := New(g.settings, at)
	for _, rec := range prefix {
		if _, err := replay.DoAction(rec.Action, rec.CommittedAt); err != nil {
			// The prefix was legal once; under fresh replay it stays legal.
			// Unreachable by construction (spec.md §7 Fatal-errors class).
			panic("rules: undo replay rejected a previously legal action: " + err.Error())
		}
	}
	if len(prefix) == 0 {
		replay.whiteRemaining = g.settings.Time.Contingent
		replay.blackRemaining = g.settings.Time.Contingent
	} else {
		replay.whiteRemaining = prefix[len(prefix)-1].WhiteRemaining
		replay.blackRemaining = prefix[len(prefix)-1].BlackRemaining
	}
	replay.lastTick = at
	*g = *replay
	return true
}

func (g *Game) checkGameOver(hash string) (Outcome, bool) {
	whiteEmpty := g.reserves[White].Pieces == 0 && g.reserves[White].Capstones == 0
	blackEmpty := g.reserves[Black].Pieces == 0 && g.reserves[Black].Capstones == 0

	if g.board.hasRoad(g.currentPlayer) {
		return Outcome{Winner: g.currentPlayer, Reason: ReasonRoad}, true
	}
	if g.board.hasRoad(g.currentPlayer.Opponent()) {
		return Outcome{Winner: g.currentPlayer.Opponent(), Reason: ReasonRoad}, true
	}
	if g.board.isFull() || whiteEmpty || blackEmpty {
		whiteFlats, blackFlats := g.board.countFlats()
		whiteScore := whiteFlats * 2
		blackScore := blackFlats*2 + g.settings.Base.HalfKomi
		switch {
		case whiteScore > blackScore:
			return Outcome{Winner: White, Reason: ReasonFlats}, true
		case blackScore > whiteScore:
			return Outcome{Winner: Black, Reason: ReasonFlats}, true
		default:
			return Outcome{IsDraw: true}, true
		}
	}
	if g.hashCounts[hash] >= 3 {
		return Outcome{IsDraw: true}, true
	}
	return Outcome{}, false
}

// boardHash is a cheap position fingerprint (stack contents + side to
// move) used for the original engine's threefold-repetition draw check.
func (g *Game) boardHash() string {
	var sb strings.Builder
	for _, stack := range g.board.cells {
		sb.WriteByte('|')
		for _, p := range stack {
			sb.WriteByte(byte('0' + p.owner))
			sb.WriteByte(byte('a' + int(p.variant)))
		}
	}
	sb.WriteByte('#')
	sb.WriteString(strconv.Itoa(int(g.currentPlayer)))
	return sb.String()
}
