package gameplay

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"takserver/apperrors"
	"takserver/ids"
	"takserver/notify"
	"takserver/rules"
)

type stubLocator struct {
	byPlayer map[ids.PlayerId]ids.ListenerId
}

func (s stubLocator) ListenerFor(playerID ids.PlayerId) (ids.ListenerId, bool) {
	l, ok := s.byPlayer[playerID]
	return l, ok
}

type recordingNotifier struct {
	mu  sync.Mutex
	all []notify.Message
}

func (r *recordingNotifier) NotifyListener(ids.ListenerId, notify.Message) {}
func (r *recordingNotifier) NotifyListeners(_ []ids.ListenerId, msg notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, msg)
}
func (r *recordingNotifier) NotifyAll(msg notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, msg)
}

func (r *recordingNotifier) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, len(r.all))
	for i, m := range r.all {
		out[i] = m.Kind
	}
	return out
}

type recordingFinalizer struct {
	mu    sync.Mutex
	games []FinishedGame
}

func (f *recordingFinalizer) Finalize(fg FinishedGame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.games = append(f.games, fg)
}

func (f *recordingFinalizer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.games)
}

func testSettings() rules.GameSettings {
	return rules.GameSettings{
		Base: rules.BaseSettings{BoardSize: 5, Reserve: rules.Reserve{Pieces: 21, Capstones: 1}},
		Time: rules.TimeControl{Contingent: time.Hour, Increment: time.Second},
	}
}

func newTestService(notifier notify.Port, finalize FinalizeHook) (*Service, ids.PlayerId, ids.PlayerId) {
	white, black := ids.NewPlayerId(), ids.NewPlayerId()
	locator := stubLocator{byPlayer: map[ids.PlayerId]ids.ListenerId{
		white: ids.NewListenerId(),
		black: ids.NewListenerId(),
	}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(log, notifier, locator, finalize, nil, 120*time.Second, 100*time.Millisecond)
	return svc, white, black
}

func TestCreateGameEmitsGameStarted(t *testing.T) {
	n := &recordingNotifier{}
	svc, white, black := newTestService(n, &recordingFinalizer{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gameID := svc.CreateGame(ctx, nil, white, black, testSettings(), true, time.Now())

	snap, err := svc.Snapshot(gameID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.WhiteID != white || snap.BlackID != black {
		t.Fatalf("snapshot sides = %v/%v", snap.WhiteID, snap.BlackID)
	}
	if len(n.kinds()) == 0 || n.kinds()[0] != notify.KindGameStarted {
		t.Fatalf("kinds = %v, want GameStarted first", n.kinds())
	}
}

func TestPerformActionRejectsWrongTurn(t *testing.T) {
	svc, white, black := newTestService(&recordingNotifier{}, &recordingFinalizer{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gameID := svc.CreateGame(ctx, nil, white, black, testSettings(), true, time.Now())

	err := svc.PerformAction(gameID, black, rules.Action{Kind: rules.ActionPlace, Pos: rules.Pos{X: 0, Y: 0}}, time.Now())
	if err != apperrors.ErrNotPlayersTurn {
		t.Fatalf("err = %v, want ErrNotPlayersTurn", err)
	}
}

func TestResignFinalizesAndNotifiesFinalizer(t *testing.T) {
	finalizer := &recordingFinalizer{}
	svc, white, black := newTestService(&recordingNotifier{}, finalizer)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gameID := svc.CreateGame(ctx, nil, white, black, testSettings(), true, time.Now())

	if err := svc.Resign(gameID, white); err != nil {
		t.Fatal(err)
	}
	if finalizer.count() != 1 {
		t.Fatalf("finalize calls = %d, want 1", finalizer.count())
	}
	if _, err := svc.Snapshot(gameID); err != apperrors.ErrGameNotFound {
		t.Fatalf("snapshot after finalize err = %v, want ErrGameNotFound", err)
	}
}

func TestMutualDrawOfferEndsGameInDraw(t *testing.T) {
	finalizer := &recordingFinalizer{}
	svc, white, black := newTestService(&recordingNotifier{}, finalizer)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gameID := svc.CreateGame(ctx, nil, white, black, testSettings(), true, time.Now())

	// White, to move, offers a draw; the offer must survive White's own
	// move (spec.md §4.C7) so Black can accept it by offering back once
	// it is Black's turn.
	if err := svc.OfferDraw(gameID, white); err != nil {
		t.Fatal(err)
	}
	if err := svc.PerformAction(gameID, white, rules.Action{Kind: rules.ActionPlace, Pos: rules.Pos{X: 0, Y: 0}}, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := svc.OfferDraw(gameID, black); err != nil {
		t.Fatal(err)
	}
	if finalizer.count() != 1 {
		t.Fatalf("finalize calls = %d, want 1", finalizer.count())
	}
	if !finalizer.games[0].Result.IsDraw {
		t.Error("expected a draw result")
	}
}

func TestDrawOfferSurvivesAMoveByEitherSide(t *testing.T) {
	finalizer := &recordingFinalizer{}
	svc, white, black := newTestService(&recordingNotifier{}, finalizer)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gameID := svc.CreateGame(ctx, nil, white, black, testSettings(), true, time.Now())

	// A standing offer is not implicitly declined by the opponent simply
	// moving instead of accepting (spec.md §4.C7): it remains active
	// across any number of moves by either side until matched or
	// explicitly retracted.
	if err := svc.OfferDraw(gameID, white); err != nil {
		t.Fatal(err)
	}
	if err := svc.PerformAction(gameID, white, rules.Action{Kind: rules.ActionPlace, Pos: rules.Pos{X: 0, Y: 0}}, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := svc.PerformAction(gameID, black, rules.Action{Kind: rules.ActionPlace, Pos: rules.Pos{X: 1, Y: 0}}, time.Now()); err != nil {
		t.Fatal(err)
	}
	snap, err := svc.Snapshot(gameID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.DrawOfferedBy == nil || *snap.DrawOfferedBy != rules.White {
		t.Fatalf("DrawOfferedBy = %v, want White's offer to still be standing", snap.DrawOfferedBy)
	}
	if finalizer.count() != 0 {
		t.Fatalf("finalize calls = %d, want 0 (no acceptance occurred)", finalizer.count())
	}
}

func TestMutualUndoResetsDeadlinesToPreMoveState(t *testing.T) {
	svc, white, black := newTestService(&recordingNotifier{}, &recordingFinalizer{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	settings := testSettings()
	settings.Time.Contingent = 5 * time.Minute
	settings.Time.Increment = time.Second
	start := time.Now()
	gameID := svc.CreateGame(ctx, nil, white, black, settings, true, start)

	// White's move leaves the post-move deadlines (advanceDeadline's
	// now+increment scheme) far short of a full contingent away from
	// undoAt; a mutual undo must discard that and recompute both sides'
	// deadlines from the rolled-back remaining-time budget instead.
	moveAt := start.Add(10 * time.Second)
	if err := svc.PerformAction(gameID, white, rules.Action{Kind: rules.ActionPlace, Pos: rules.Pos{X: 0, Y: 0}}, moveAt); err != nil {
		t.Fatal(err)
	}

	undoAt := moveAt.Add(time.Second)
	if err := svc.RequestUndo(gameID, white, undoAt); err != nil {
		t.Fatal(err)
	}
	if err := svc.RequestUndo(gameID, black, undoAt); err != nil {
		t.Fatal(err)
	}

	postUndoSnap, err := svc.Snapshot(gameID)
	if err != nil {
		t.Fatal(err)
	}
	if postUndoSnap.CurrentPlayer != rules.White {
		t.Fatalf("CurrentPlayer after undo = %v, want White (the undone move's mover)", postUndoSnap.CurrentPlayer)
	}
	// With the one and only move undone, both sides are back to their
	// untouched starting budget, anchored at undoAt rather than at game
	// start.
	wantDeadline := undoAt.Add(settings.Time.Contingent)
	if diff := postUndoSnap.DeadlineWhite.Sub(wantDeadline); diff < -time.Millisecond || diff > time.Millisecond {
		t.Fatalf("DeadlineWhite after undo = %v, want ~%v (pre-move state)", postUndoSnap.DeadlineWhite, wantDeadline)
	}
	if diff := postUndoSnap.DeadlineBlack.Sub(wantDeadline); diff < -time.Millisecond || diff > time.Millisecond {
		t.Fatalf("DeadlineBlack after undo = %v, want ~%v (pre-move state)", postUndoSnap.DeadlineBlack, wantDeadline)
	}
}

func TestTimeoutWatcherForfeitsExpiredSide(t *testing.T) {
	finalizer := &recordingFinalizer{}
	svc, white, black := newTestService(&recordingNotifier{}, finalizer)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	past := time.Now().Add(-time.Hour)
	settings := testSettings()
	settings.Time.Contingent = time.Millisecond
	svc.CreateGame(ctx, nil, white, black, settings, true, past)

	deadline := time.After(time.Second)
	for finalizer.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout watcher never finalized the expired game")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if finalizer.count() != 1 || finalizer.games[0].Result.Winner != rules.Black {
		t.Fatalf("finalized games = %+v, want black win by timeout", finalizer.games)
	}
}

func TestActiveGamesForTracksParticipants(t *testing.T) {
	svc, white, black := newTestService(&recordingNotifier{}, &recordingFinalizer{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gameID := svc.CreateGame(ctx, nil, white, black, testSettings(), true, time.Now())

	games := svc.ActiveGamesFor(white)
	if len(games) != 1 || games[0] != gameID {
		t.Fatalf("ActiveGamesFor(white) = %v", games)
	}
	if games := svc.ActiveGamesFor(ids.NewPlayerId()); len(games) != 0 {
		t.Fatalf("ActiveGamesFor(stranger) = %v, want empty", games)
	}
}

func TestDisconnectWatchersCancelOnReconnect(t *testing.T) {
	svc, white, _ := newTestService(&recordingNotifier{}, &recordingFinalizer{})
	watchers := NewDisconnectWatchers(svc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchers.Start(ctx, white, time.Now())
	watchers.Cancel(white)

	watchers.mu.Lock()
	_, stillRunning := watchers.cancelFn[white]
	watchers.mu.Unlock()
	if stillRunning {
		t.Error("expected the watcher entry to be cleared after Cancel")
	}
}
