package finalize

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"takserver/gameplay"
	"takserver/ids"
	"takserver/rating"
	"takserver/rules"
	"takserver/stats"
)

type fakeMatchEnder struct {
	called  bool
	matchID ids.MatchId
	gameID  ids.GameId
}

func (f *fakeMatchEnder) EndGameInMatch(matchID ids.MatchId, gameID ids.GameId, now time.Time) bool {
	f.called = true
	f.matchID = matchID
	f.gameID = gameID
	return true
}

type fakePlayerInfo struct {
	usernames map[ids.PlayerId]string
	guests    map[ids.PlayerId]bool
}

func (f fakePlayerInfo) Username(playerID ids.PlayerId) string { return f.usernames[playerID] }
func (f fakePlayerInfo) IsGuest(playerID ids.PlayerId) bool    { return f.guests[playerID] }

type fakeGameRepository struct {
	saved []CompletedGame
}

func (f *fakeGameRepository) SaveCompletedGame(ctx context.Context, g CompletedGame) error {
	f.saved = append(f.saved, g)
	return nil
}

func testSettings() rules.GameSettings {
	return rules.GameSettings{
		Base: rules.BaseSettings{BoardSize: 5, Reserve: rules.Reserve{Pieces: 21, Capstones: 1}},
		Time: rules.TimeControl{Contingent: 5 * time.Minute, Increment: 10 * time.Second},
	}
}

func testLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestFinalizeUpdatesRatingStatsAndPersists(t *testing.T) {
	white, black := ids.NewPlayerId(), ids.NewPlayerId()
	ratings := rating.NewMemoryStore()
	statsStore := stats.NewMemoryStore()
	repo := &fakeGameRepository{}
	players := fakePlayerInfo{
		usernames: map[ids.PlayerId]string{white: "alice", black: "bob"},
		guests:    map[ids.PlayerId]bool{},
	}

	wf := New(testLog(), ratings, statsStore, nil, players, repo)

	history := make([]rules.Record, 10)
	fg := gameplay.FinishedGame{
		GameID:   ids.GameId(1),
		WhiteID:  white,
		BlackID:  black,
		Settings: testSettings(),
		IsRated:  true,
		History:  history,
		Result:   rules.Outcome{Winner: rules.White, Reason: rules.ReasonRoad},
		EndedAt:  time.Now(),
	}
	wf.Finalize(fg)

	if len(repo.saved) != 1 || repo.saved[0].WhiteUsername != "alice" {
		t.Fatalf("saved = %+v", repo.saved)
	}
	if repo.saved[0].RatingDeltaWhite <= 0 || repo.saved[0].RatingDeltaBlack >= 0 {
		t.Errorf("expected winner-gains/loser-drops deltas, got %+v", repo.saved[0])
	}

	whiteStats := statsStore.Get(white)
	blackStats := statsStore.Get(black)
	if whiteStats.GamesWon != 1 || blackStats.GamesLost != 1 {
		t.Errorf("stats = %+v / %+v, want a white win and black loss", whiteStats, blackStats)
	}
}

func TestFinalizeSkipsRatingForGuests(t *testing.T) {
	white, black := ids.NewPlayerId(), ids.NewPlayerId()
	ratings := rating.NewMemoryStore()
	repo := &fakeGameRepository{}
	players := fakePlayerInfo{
		usernames: map[ids.PlayerId]string{white: "alice", black: "guest42"},
		guests:    map[ids.PlayerId]bool{black: true},
	}

	wf := New(testLog(), ratings, stats.NewMemoryStore(), nil, players, repo)
	fg := gameplay.FinishedGame{
		GameID:   ids.GameId(1),
		WhiteID:  white,
		BlackID:  black,
		Settings: testSettings(),
		IsRated:  true,
		History:  make([]rules.Record, 10),
		Result:   rules.Outcome{Winner: rules.White, Reason: rules.ReasonRoad},
		EndedAt:  time.Now(),
	}
	wf.Finalize(fg)

	if repo.saved[0].RatingDeltaWhite != 0 || repo.saved[0].RatingDeltaBlack != 0 {
		t.Errorf("expected no rating change when a guest is involved, got %+v", repo.saved[0])
	}
}

func TestFinalizeEndsMatchWhenPresent(t *testing.T) {
	white, black := ids.NewPlayerId(), ids.NewPlayerId()
	matchID := ids.MatchId(7)
	ender := &fakeMatchEnder{}
	players := fakePlayerInfo{usernames: map[ids.PlayerId]string{white: "a", black: "b"}}
	repo := &fakeGameRepository{}

	wf := New(testLog(), rating.NewMemoryStore(), stats.NewMemoryStore(), ender, players, repo)
	fg := gameplay.FinishedGame{
		GameID:   ids.GameId(2),
		MatchID:  &matchID,
		WhiteID:  white,
		BlackID:  black,
		Settings: testSettings(),
		IsRated:  false,
		History:  make([]rules.Record, 3),
		Result:   rules.Outcome{IsDraw: true},
		EndedAt:  time.Now(),
	}
	wf.Finalize(fg)

	if !ender.called || ender.matchID != matchID || ender.gameID != fg.GameID {
		t.Errorf("match ender called = %v with %v/%v, want true with %v/%v", ender.called, ender.matchID, ender.gameID, matchID, fg.GameID)
	}
}
