// Package match implements the match service named in spec.md §4.C6: a
// persistent pairing entity spanning multiple games (rematches), with a
// state machine (Waiting/Reserved/InProgress), a rematch handshake, and
// an idle-match reaper. Grounded on a matchmaking.Matchmaker
// lifecycle bookkeeping (activeGames/userIDToGame maps), generalized
// from "one game per pairing" to "many games per pairing over time".
package match

import (
	"math/rand"
	"sync"
	"time"

	"takserver/ids"
	"takserver/rules"
)

// ColorRule governs how colors are assigned to the next game in a match.
type ColorRule int

const (
	ColorKeep ColorRule = iota
	ColorAlternate
	ColorRandom
)

// Status is the match's current lifecycle state.
type Status int

const (
	StatusWaiting Status = iota
	StatusReserved
	StatusInProgress
)

// Match is a persistent pairing spanning potentially many games
// (spec.md §3).
type Match struct {
	ID             ids.MatchId
	Player1        ids.PlayerId
	Player2        ids.PlayerId
	InitialColor   rules.Player
	ColorRule      ColorRule
	Settings       rules.GameSettings
	IsRated        bool
	PlayedGames    []ids.GameId
	Status         Status
	CurrentGameID  ids.GameId // valid only while Status == StatusInProgress
	RematchBy      *ids.PlayerId
	LastFinishedAt time.Time
}

// Service owns the match registry and the game_id→match_id index.
type Service struct {
	mu       sync.Mutex
	counter  ids.MatchCounter
	matches  map[ids.MatchId]*Match
	byGameID map[ids.GameId]ids.MatchId
	rng      *rand.Rand
}

// NewService constructs an empty match service.
func NewService() *Service {
	return &Service{
		matches:  make(map[ids.MatchId]*Match),
		byGameID: make(map[ids.GameId]ids.MatchId),
		rng:      rand.New(rand.NewSource(1)),
	}
}

// CreateMatch allocates a new match in Waiting status. An absent
// initialColor is resolved by coin flip.
func (s *Service) CreateMatch(p1, p2 ids.PlayerId, initialColor *rules.Player, rule ColorRule, settings rules.GameSettings, isRated bool) ids.MatchId {
	s.mu.Lock()
	defer s.mu.Unlock()

	color := rules.White
	if initialColor != nil {
		color = *initialColor
	} else if s.rng.Intn(2) == 1 {
		color = rules.Black
	}

	id := s.counter.Next()
	s.matches[id] = &Match{
		ID:           id,
		Player1:      p1,
		Player2:      p2,
		InitialColor: color,
		ColorRule:    rule,
		Settings:     settings,
		IsRated:      isRated,
		Status:       StatusWaiting,
	}
	return id
}

// Get returns a copy of the match by id.
func (s *Service) Get(id ids.MatchId) (Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return Match{}, false
	}
	return *m, true
}

// MatchIDForGame resolves a game_id back to its owning match, if any.
func (s *Service) MatchIDForGame(gameID ids.GameId) (ids.MatchId, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byGameID[gameID]
	return id, ok
}

// ReserveMatchInProgress atomically transitions Waiting → Reserved.
// Returns false if the match isn't Waiting.
func (s *Service) ReserveMatchInProgress(id ids.MatchId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok || m.Status != StatusWaiting {
		return false
	}
	m.Status = StatusReserved
	return true
}

// StartGameInMatch transitions Reserved → InProgress(gameID), clears any
// pending rematch request, and registers the game→match index entry.
func (s *Service) StartGameInMatch(id ids.MatchId, gameID ids.GameId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok || m.Status != StatusReserved {
		return false
	}
	m.Status = StatusInProgress
	m.CurrentGameID = gameID
	m.RematchBy = nil
	s.byGameID[gameID] = id
	return true
}

// EndGameInMatch transitions InProgress(g) → Waiting, appends g to the
// played-games list, and stamps LastFinishedAt.
func (s *Service) EndGameInMatch(id ids.MatchId, gameID ids.GameId, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok || m.Status != StatusInProgress || m.CurrentGameID != gameID {
		return false
	}
	m.Status = StatusWaiting
	m.PlayedGames = append(m.PlayedGames, gameID)
	m.LastFinishedAt = now
	return true
}

// RematchOutcome is the result of RequestOrAcceptRematch.
type RematchOutcome int

const (
	RematchInvalid RematchOutcome = iota
	RematchPending
	RematchNoOp
	RematchAccepted
)

// RequestOrAcceptRematch implements spec.md §4.C6's handshake: only
// valid while Waiting. If no request is pending, this player's request
// becomes pending. A repeat request by the same player is a no-op. A
// request by the other player accepts (clearing the pending request) —
// the caller then calls StartGameInMatch via create_game_from_match.
func (s *Service) RequestOrAcceptRematch(id ids.MatchId, player ids.PlayerId) RematchOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok || m.Status != StatusWaiting {
		return RematchInvalid
	}
	switch {
	case m.RematchBy == nil:
		m.RematchBy = &player
		return RematchPending
	case *m.RematchBy == player:
		return RematchNoOp
	default:
		m.RematchBy = nil
		return RematchAccepted
	}
}

// GetNextMatchupColors returns (white, black) for the match's next game,
// given how many games have already been played under ColorRule.
func (s *Service) GetNextMatchupColors(id ids.MatchId) (white, black ids.PlayerId, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, exists := s.matches[id]
	if !exists {
		return "", "", false
	}

	color := m.InitialColor
	switch m.ColorRule {
	case ColorKeep:
		// initial order persists regardless of games played
	case ColorAlternate:
		if len(m.PlayedGames)%2 == 1 {
			color = color.Opponent()
		}
	case ColorRandom:
		if s.rng.Intn(2) == 1 {
			color = color.Opponent()
		}
	}

	if color == rules.White {
		return m.Player1, m.Player2, true
	}
	return m.Player2, m.Player1, true
}

// RunCleanup removes every Waiting match whose LastFinishedAt predates
// now-idleThreshold, along with its game→match index entries. A match
// that has not finished a game yet (zero LastFinishedAt) is kept. Intended
// to be invoked by a periodic ticker (spec.md §4.C6 cleanup).
func (s *Service) RunCleanup(now time.Time, idleThreshold time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, m := range s.matches {
		if m.Status != StatusWaiting {
			continue
		}
		if m.LastFinishedAt.IsZero() || now.Sub(m.LastFinishedAt) < idleThreshold {
			continue
		}
		for _, g := range m.PlayedGames {
			delete(s.byGameID, g)
		}
		delete(s.matches, id)
		removed++
	}
	return removed
}
