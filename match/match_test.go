package match

import (
	"testing"
	"time"

	"takserver/ids"
	"takserver/rules"
)

func settings() rules.GameSettings {
	return rules.GameSettings{
		Base: rules.BaseSettings{BoardSize: 5, Reserve: rules.Reserve{Pieces: 21, Capstones: 1}},
		Time: rules.TimeControl{Contingent: 5 * time.Minute},
	}
}

func TestStateMachineHappyPath(t *testing.T) {
	s := NewService()
	p1, p2 := ids.NewPlayerId(), ids.NewPlayerId()
	id := s.CreateMatch(p1, p2, nil, ColorKeep, settings(), true)

	m, _ := s.Get(id)
	if m.Status != StatusWaiting {
		t.Fatalf("initial status = %v, want Waiting", m.Status)
	}

	if !s.ReserveMatchInProgress(id) {
		t.Fatal("reserve should succeed from Waiting")
	}
	if s.ReserveMatchInProgress(id) {
		t.Fatal("reserve should fail when already Reserved")
	}

	gameID := ids.GameId(1)
	if !s.StartGameInMatch(id, gameID) {
		t.Fatal("start should succeed from Reserved")
	}
	m, _ = s.Get(id)
	if m.Status != StatusInProgress || m.CurrentGameID != gameID {
		t.Fatalf("after start: %+v", m)
	}
	if mid, ok := s.MatchIDForGame(gameID); !ok || mid != id {
		t.Fatalf("game index lookup = %v, %v", mid, ok)
	}

	if !s.EndGameInMatch(id, gameID, time.Now()) {
		t.Fatal("end should succeed from InProgress with matching game id")
	}
	m, _ = s.Get(id)
	if m.Status != StatusWaiting || len(m.PlayedGames) != 1 {
		t.Fatalf("after end: %+v", m)
	}
}

func TestRematchHandshake(t *testing.T) {
	s := NewService()
	p1, p2 := ids.NewPlayerId(), ids.NewPlayerId()
	id := s.CreateMatch(p1, p2, nil, ColorAlternate, settings(), true)

	if out := s.RequestOrAcceptRematch(id, p2); out != RematchPending {
		t.Fatalf("first request = %v, want Pending", out)
	}
	if out := s.RequestOrAcceptRematch(id, p2); out != RematchNoOp {
		t.Fatalf("repeat request = %v, want NoOp", out)
	}
	if out := s.RequestOrAcceptRematch(id, p1); out != RematchAccepted {
		t.Fatalf("other-player request = %v, want Accepted", out)
	}
	m, _ := s.Get(id)
	if m.RematchBy != nil {
		t.Error("accepted rematch should clear the pending request")
	}
}

func TestGetNextMatchupColorsAlternates(t *testing.T) {
	s := NewService()
	p1, p2 := ids.NewPlayerId(), ids.NewPlayerId()
	white := rules.White
	id := s.CreateMatch(p1, p2, &white, ColorAlternate, settings(), true)

	w, b, _ := s.GetNextMatchupColors(id)
	if w != p1 || b != p2 {
		t.Fatalf("first game colors = %v/%v, want p1 white", w, b)
	}

	s.ReserveMatchInProgress(id)
	s.StartGameInMatch(id, ids.GameId(1))
	s.EndGameInMatch(id, ids.GameId(1), time.Now())

	w, b, _ = s.GetNextMatchupColors(id)
	if w != p2 || b != p1 {
		t.Fatalf("second game colors = %v/%v, want swapped", w, b)
	}
}

func TestRunCleanupRemovesIdleWaitingMatches(t *testing.T) {
	s := NewService()
	p1, p2 := ids.NewPlayerId(), ids.NewPlayerId()
	id := s.CreateMatch(p1, p2, nil, ColorKeep, settings(), true)
	s.ReserveMatchInProgress(id)
	s.StartGameInMatch(id, ids.GameId(1))
	start := time.Now()
	s.EndGameInMatch(id, ids.GameId(1), start)

	if n := s.RunCleanup(start.Add(4*time.Hour), 5*time.Hour); n != 0 {
		t.Fatalf("removed %d matches before the idle threshold", n)
	}
	if n := s.RunCleanup(start.Add(6*time.Hour), 5*time.Hour); n != 1 {
		t.Fatalf("removed %d matches, want 1 after the idle threshold", n)
	}
	if _, ok := s.MatchIDForGame(ids.GameId(1)); ok {
		t.Error("expected the game index entry to be swept along with the match")
	}
}
