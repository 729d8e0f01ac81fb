package gameplay

import (
	"time"

	"takserver/apperrors"
	"takserver/ids"
	"takserver/notify"
	"takserver/rules"
)

// gameActor is the single goroutine owning one ongoing game's mutable
// state. All commands are processed serially off the cmds channel,
// mirroring a Game.Run() select-loop over an Actions channel.
type gameActor struct {
	id       ids.GameId
	matchID  *ids.MatchId
	white    ids.PlayerId
	black    ids.PlayerId
	isRated  bool
	settings rules.GameSettings

	rules *rules.Game

	deadlineWhite time.Time
	deadlineBlack time.Time
	isTicking     bool

	drawOfferedBy   *rules.Player
	undoRequestedBy map[rules.Player]bool

	cmds chan command
	done chan struct{} // closed exactly once, when the game finalizes

	svc *Service
}

type command struct {
	kind  cmdKind
	reply chan any

	playerID          ids.PlayerId
	action            rules.Action
	now               time.Time
	disconnectedSince time.Time
}

type cmdKind int

const (
	cmdDoAction cmdKind = iota
	cmdOfferDraw
	cmdRetractDraw
	cmdRequestUndo
	cmdRetractUndo
	cmdResign
	cmdCheckTimeout
	cmdCheckDisconnectTimeout
	cmdSnapshot
)

func (a *gameActor) run() {
	for cmd := range a.cmds {
		a.handle(cmd)
	}
}

func (a *gameActor) send(kind cmdKind, mutate func(*command)) any {
	reply := make(chan any, 1)
	cmd := command{kind: kind, reply: reply}
	if mutate != nil {
		mutate(&cmd)
	}
	select {
	case a.cmds <- cmd:
	case <-a.done:
		return apperrors.ErrGameNotFound
	}
	// A queued command is always handled and answered, even when handling
	// it finalizes the game and closes done, so wait for the reply alone.
	return <-reply
}

func (a *gameActor) handle(cmd command) {
	switch cmd.kind {
	case cmdDoAction:
		cmd.reply <- a.doAction(cmd.playerID, cmd.action, cmd.now)
	case cmdOfferDraw:
		cmd.reply <- a.offerDraw(cmd.playerID)
	case cmdRetractDraw:
		cmd.reply <- a.retractDraw(cmd.playerID)
	case cmdRequestUndo:
		cmd.reply <- a.requestUndo(cmd.playerID, cmd.now)
	case cmdRetractUndo:
		cmd.reply <- a.retractUndo(cmd.playerID)
	case cmdResign:
		cmd.reply <- a.resignAction(cmd.playerID)
	case cmdCheckTimeout:
		cmd.reply <- a.checkTimeoutAction(cmd.now)
	case cmdCheckDisconnectTimeout:
		cmd.reply <- a.checkDisconnectTimeoutAction(cmd.playerID, cmd.disconnectedSince, cmd.now)
	case cmdSnapshot:
		cmd.reply <- a.snapshotLocked()
	}
}

func (a *gameActor) sideOf(playerID ids.PlayerId) (rules.Player, bool) {
	switch playerID {
	case a.white:
		return rules.White, true
	case a.black:
		return rules.Black, true
	default:
		return 0, false
	}
}

// doAction implements spec.md §4.C7's do_action: resolve side, check
// turn order, delegate legality + application to the rules library,
// append the deadline/increment bookkeeping, and finalize or broadcast.
func (a *gameActor) doAction(playerID ids.PlayerId, action rules.Action, now time.Time) error {
	side, ok := a.sideOf(playerID)
	if !ok {
		return apperrors.ErrNotPlayersGame
	}
	if side != a.rules.CurrentPlayer() {
		return apperrors.ErrNotPlayersTurn
	}
	if !a.isTicking {
		return apperrors.ErrGameAlreadyEnded
	}
	activeDeadline := a.activeDeadline()
	if !now.Before(activeDeadline) {
		// The active side's clock already expired; treat exactly like the
		// timeout runner winning the race (spec.md §5: a move that narrowly
		// loses to check_timeout returns GameNotFound-equivalent).
		a.finalizeOutcome(a.rules.ForceTimeout(side.Opponent()), now)
		return apperrors.ErrGameNotFound
	}

	rec, err := a.rules.DoAction(action, now)
	if err != nil {
		return apperrors.ErrInvalidAction
	}

	a.advanceDeadline(side, now)
	a.undoRequestedBy = nil

	if !a.rules.IsOngoing() {
		a.finalizeOutcome(a.rules.GameState().Outcome, now)
		return nil
	}

	a.svc.notifyBothAndSpectators(a, notify.Message{Kind: notify.KindGameAction, GameID: a.id, ActionRecord: rec})
	return nil
}

// advanceDeadline resets mover's deadline to now+increment and applies any
// one-time extra-time lump sum triggered by the new move index
// (spec.md §4.C7 step 4).
func (a *gameActor) advanceDeadline(mover rules.Player, now time.Time) {
	next := now.Add(a.settings.Time.Increment)
	moveIndex := len(a.rules.ActionHistory())
	for _, rule := range a.svc.extraTime {
		if rule.AtMoveIndex == moveIndex {
			next = next.Add(rule.Bonus)
		}
	}
	if mover == rules.White {
		a.deadlineWhite = next
	} else {
		a.deadlineBlack = next
	}
}

func (a *gameActor) activeDeadline() time.Time {
	if a.rules.CurrentPlayer() == rules.White {
		return a.deadlineWhite
	}
	return a.deadlineBlack
}

// offerDraw implements the draw-offer half of spec.md §4.C7's requests
// sub-state: only the side to move may offer; offering onto an existing
// opposing offer counts as acceptance.
func (a *gameActor) offerDraw(playerID ids.PlayerId) error {
	side, ok := a.sideOf(playerID)
	if !ok {
		return apperrors.ErrNotPlayersGame
	}
	if side != a.rules.CurrentPlayer() {
		return apperrors.ErrNotPlayersTurn
	}
	if a.drawOfferedBy != nil && *a.drawOfferedBy == side.Opponent() {
		a.finalizeOutcome(a.rules.Draw(), time.Now())
		return nil
	}
	a.drawOfferedBy = &side
	a.svc.notifyBoth(a, notify.Message{Kind: notify.KindGameDrawOffered, GameID: a.id})
	return nil
}

func (a *gameActor) retractDraw(playerID ids.PlayerId) error {
	side, ok := a.sideOf(playerID)
	if !ok {
		return apperrors.ErrNotPlayersGame
	}
	if a.drawOfferedBy == nil || *a.drawOfferedBy != side {
		return apperrors.ErrNoPendingRequest
	}
	a.drawOfferedBy = nil
	a.svc.notifyBoth(a, notify.Message{Kind: notify.KindGameDrawRetracted, GameID: a.id})
	return nil
}

// requestUndo implements the undo half: either side may request; once
// both sides have an active request, roll back one action by replaying
// the prefix into a fresh rules state.
func (a *gameActor) requestUndo(playerID ids.PlayerId, now time.Time) error {
	side, ok := a.sideOf(playerID)
	if !ok {
		return apperrors.ErrNotPlayersGame
	}
	if a.undoRequestedBy == nil {
		a.undoRequestedBy = make(map[rules.Player]bool)
	}
	a.undoRequestedBy[side] = true
	if len(a.undoRequestedBy) == 2 {
		a.rules.Undo(now)
		white, black := a.rules.GetTimeRemainingBoth(now)
		a.deadlineWhite = now.Add(white)
		a.deadlineBlack = now.Add(black)
		a.undoRequestedBy = nil
		a.svc.notifyBothAndSpectators(a, notify.Message{Kind: notify.KindGameActionUndone, GameID: a.id})
		return nil
	}
	a.svc.notifyBoth(a, notify.Message{Kind: notify.KindGameUndoRequested, GameID: a.id})
	return nil
}

func (a *gameActor) retractUndo(playerID ids.PlayerId) error {
	side, ok := a.sideOf(playerID)
	if !ok {
		return apperrors.ErrNotPlayersGame
	}
	if a.undoRequestedBy == nil || !a.undoRequestedBy[side] {
		return apperrors.ErrNoPendingRequest
	}
	delete(a.undoRequestedBy, side)
	a.svc.notifyBoth(a, notify.Message{Kind: notify.KindGameUndoRetracted, GameID: a.id})
	return nil
}

// resignAction always ends the game with a default win for the opponent.
func (a *gameActor) resignAction(playerID ids.PlayerId) error {
	side, ok := a.sideOf(playerID)
	if !ok {
		return apperrors.ErrNotPlayersGame
	}
	if !a.isTicking {
		return apperrors.ErrGameAlreadyEnded
	}
	a.finalizeOutcome(a.rules.Resign(side), time.Now())
	return nil
}

// checkTimeoutAction implements spec.md §4.C7's check_timeout: if the
// active side's deadline has passed, finalize a default win for the
// other side.
func (a *gameActor) checkTimeoutAction(now time.Time) timeoutResult {
	if !a.isTicking {
		return timeoutResult{finished: true}
	}
	deadline := a.activeDeadline()
	if !now.Before(deadline) {
		side := a.rules.CurrentPlayer()
		a.finalizeOutcome(a.rules.ForceTimeout(side.Opponent()), now)
		return timeoutResult{finished: true}
	}
	return timeoutResult{finished: false, nextCheck: deadline}
}

// checkDisconnectTimeoutAction implements spec.md §4.C7's
// check_disconnect_timeout: a rated game whose to-move player has been
// disconnected ≥120s is forfeited.
func (a *gameActor) checkDisconnectTimeoutAction(playerID ids.PlayerId, disconnectedSince, now time.Time) disconnectResult {
	if !a.isTicking {
		return disconnectResult{finished: true}
	}
	side, ok := a.sideOf(playerID)
	if !ok || side != a.rules.CurrentPlayer() || !a.isRated {
		return disconnectResult{finished: false, retryAfter: 0, applies: false}
	}
	threshold := a.svc.disconnectForfeitThreshold
	elapsed := now.Sub(disconnectedSince)
	if elapsed >= threshold {
		a.finalizeOutcome(a.rules.ForceTimeout(side.Opponent()), now)
		return disconnectResult{finished: true, applies: true}
	}
	return disconnectResult{finished: false, retryAfter: threshold - elapsed, applies: true}
}

func (a *gameActor) finalizeOutcome(outcome rules.Outcome, now time.Time) {
	a.isTicking = false
	fg := FinishedGame{
		GameID:   a.id,
		MatchID:  a.matchID,
		WhiteID:  a.white,
		BlackID:  a.black,
		Settings: a.settings,
		IsRated:  a.isRated,
		History:  a.rules.ActionHistory(),
		Result:   outcome,
		EndedAt:  now,
	}

	a.svc.notifyBothAndSpectators(a, notify.Message{Kind: notify.KindGameOver, GameID: a.id, Result: outcome})
	a.svc.notifier.NotifyAll(notify.Message{Kind: notify.KindGameEnded, GameID: a.id})
	a.svc.removeGame(a.id)

	if a.svc.finalize != nil {
		a.svc.finalize.Finalize(fg)
	}
	close(a.done)
}

func (a *gameActor) snapshot() Snapshot {
	snap, _ := a.send(cmdSnapshot, nil).(Snapshot)
	return snap
}

func (a *gameActor) snapshotLocked() Snapshot {
	undo := make(map[rules.Player]bool, len(a.undoRequestedBy))
	for k, v := range a.undoRequestedBy {
		undo[k] = v
	}
	return Snapshot{
		GameID:          a.id,
		MatchID:         a.matchID,
		WhiteID:         a.white,
		BlackID:         a.black,
		CurrentPlayer:   a.rules.CurrentPlayer(),
		IsRated:         a.isRated,
		DeadlineWhite:   a.deadlineWhite,
		DeadlineBlack:   a.deadlineBlack,
		DrawOfferedBy:   a.drawOfferedBy,
		UndoRequestedBy: undo,
		State:           a.rules.GameState(),
	}
}

type timeoutResult struct {
	finished  bool
	nextCheck time.Time
}

type disconnectResult struct {
	finished   bool
	applies    bool
	retryAfter time.Duration
}
