package stats

import (
	"testing"

	"takserver/ids"
)

func TestRecordGameMaintainsPlayedInvariant(t *testing.T) {
	s := NewMemoryStore()
	p := ids.NewPlayerId()

	s.RecordGame(p, OutcomeWin, true)
	s.RecordGame(p, OutcomeLoss, true)
	s.RecordGame(p, OutcomeDraw, false)

	got := s.Get(p)
	if got.GamesPlayed != 3 {
		t.Fatalf("games played = %d, want 3", got.GamesPlayed)
	}
	if sum := got.GamesWon + got.GamesLost + got.GamesDrawn; sum != got.GamesPlayed {
		t.Errorf("won+lost+drawn = %d, want %d", sum, got.GamesPlayed)
	}
	if got.RatedGamesPlayed != 2 {
		t.Errorf("rated games played = %d, want 2", got.RatedGamesPlayed)
	}
}

func TestRemoveClearsStats(t *testing.T) {
	s := NewMemoryStore()
	p := ids.NewPlayerId()
	s.RecordGame(p, OutcomeWin, true)
	s.Remove(p)
	if got := s.Get(p); got.GamesPlayed != 0 {
		t.Errorf("stats after remove = %+v, want zero value", got)
	}
}
