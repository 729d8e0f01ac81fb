// Package rules is the pure Tak state machine named in the Glossary: it
// knows nothing about connections, clocks-as-wall-deadlines, or
// persistence. It exposes exactly the contract spec.md's Glossary names:
// New, DoAction, IsOngoing, CurrentPlayer, ActionHistory,
// GetTimeRemainingBoth, GameState. Grounded on the original engine's
// TakOngoingBaseGame (original_source/tak-core/src/base.rs): per-side
// reserves, a board, an action history, and hash-based repetition
// tracking drive the same terminal-state checks reimplemented here.
//
// This is a pragmatic implementation of Tak legality, not a certified
// rules oracle (spec.md §1 Non-goals).
package rules

import "time"

// Reserve is a side's unplaced piece pool.
type Reserve struct {
	Pieces    int
	Capstones int
}

// BaseSettings are the board and piece-count parameters shared by every
// time control.
type BaseSettings struct {
	BoardSize int
	HalfKomi  int
	Reserve   Reserve
}

var reservePieceRange = map[int][2]int{
	5: {20, 32},
	6: {25, 40},
	7: {30, 48},
	8: {40, 64},
}

var capstoneRange = map[int][2]int{
	5: {1, 1},
	6: {1, 2},
	7: {1, 2},
	8: {1, 3},
}

// IsValid reports whether the base settings describe a playable game:
// board size in [3,8] and at least one reserve piece.
func (b BaseSettings) IsValid() bool {
	return b.BoardSize >= 3 && b.BoardSize <= 8 && b.Reserve.Pieces > 0
}

// TimeControl carries the wall-clock budget for a realtime game: a
// starting contingent and a per-move increment.
type TimeControl struct {
	Contingent time.Duration
	Increment  time.Duration
}

// IsValid reports whether the time control has a positive contingent.
func (t TimeControl) IsValid() bool {
	return t.Contingent > 0
}

// GameSettings fully describes a game before it starts.
type GameSettings struct {
	Base BaseSettings
	Time TimeControl
}

// IsValid reports whether both the base settings and time control are
// individually valid (spec.md §4.C5 create_seek precondition).
func (s GameSettings) IsValid() bool {
	return s.Base.IsValid() && s.Time.IsValid()
}
