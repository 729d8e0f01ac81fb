package gameplay

import (
	"time"

	"takserver/apperrors"
	"takserver/ids"
	"takserver/rules"
)

// PerformAction implements spec.md §4.C7's do_action entry point: submit
// action on behalf of playerID and wait for the per-game actor to apply
// or reject it.
func (s *Service) PerformAction(gameID ids.GameId, playerID ids.PlayerId, action rules.Action, now time.Time) error {
	a, ok := s.actor(gameID)
	if !ok {
		return apperrors.ErrGameNotFound
	}
	return asError(a.send(cmdDoAction, func(c *command) {
		c.playerID = playerID
		c.action = action
		c.now = now
	}))
}

// OfferDraw implements the draw-offer request named in §4.C7.
func (s *Service) OfferDraw(gameID ids.GameId, playerID ids.PlayerId) error {
	a, ok := s.actor(gameID)
	if !ok {
		return apperrors.ErrGameNotFound
	}
	return asError(a.send(cmdOfferDraw, func(c *command) { c.playerID = playerID }))
}

// RetractDraw withdraws a previously offered draw.
func (s *Service) RetractDraw(gameID ids.GameId, playerID ids.PlayerId) error {
	a, ok := s.actor(gameID)
	if !ok {
		return apperrors.ErrGameNotFound
	}
	return asError(a.send(cmdRetractDraw, func(c *command) { c.playerID = playerID }))
}

// RequestUndo implements the undo-request half of §4.C7's requests
// sub-state; a matching request from both sides triggers the rollback.
func (s *Service) RequestUndo(gameID ids.GameId, playerID ids.PlayerId, now time.Time) error {
	a, ok := s.actor(gameID)
	if !ok {
		return apperrors.ErrGameNotFound
	}
	return asError(a.send(cmdRequestUndo, func(c *command) {
		c.playerID = playerID
		c.now = now
	}))
}

// RetractUndo withdraws a previously submitted undo request.
func (s *Service) RetractUndo(gameID ids.GameId, playerID ids.PlayerId) error {
	a, ok := s.actor(gameID)
	if !ok {
		return apperrors.ErrGameNotFound
	}
	return asError(a.send(cmdRetractUndo, func(c *command) { c.playerID = playerID }))
}

// Resign ends the game with a default win for playerID's opponent.
func (s *Service) Resign(gameID ids.GameId, playerID ids.PlayerId) error {
	a, ok := s.actor(gameID)
	if !ok {
		return apperrors.ErrGameNotFound
	}
	return asError(a.send(cmdResign, func(c *command) { c.playerID = playerID }))
}

// checkTimeout is the C8 timeout runner's hook into the actor; it returns
// whether the game has a terminal state after the check, and if not, the
// timestamp the runner should next wake up at.
func (s *Service) checkTimeout(gameID ids.GameId, now time.Time) (finished bool, nextCheck time.Time, ok bool) {
	a, present := s.actor(gameID)
	if !present {
		return true, time.Time{}, false
	}
	res := a.send(cmdCheckTimeout, func(c *command) { c.now = now })
	tr, valid := res.(timeoutResult)
	if !valid {
		return true, time.Time{}, false
	}
	return tr.finished, tr.nextCheck, true
}

// checkDisconnectTimeout is the C9 disconnect runner's hook into the
// actor. applies reports whether the rule was evaluated at all (it is a
// no-op outside a rated game, or when it isn't playerID's turn).
func (s *Service) checkDisconnectTimeout(gameID ids.GameId, playerID ids.PlayerId, disconnectedSince, now time.Time) (result disconnectResult, ok bool) {
	a, present := s.actor(gameID)
	if !present {
		return disconnectResult{finished: true}, false
	}
	res := a.send(cmdCheckDisconnectTimeout, func(c *command) {
		c.playerID = playerID
		c.disconnectedSince = disconnectedSince
		c.now = now
	})
	dr, valid := res.(disconnectResult)
	if !valid {
		return disconnectResult{finished: true}, false
	}
	return dr, true
}

// ActiveGamesFor returns every ongoing game where playerID is a
// participant, for the C9 disconnect runner to poll while the player
// stays disconnected.
func (s *Service) ActiveGamesFor(playerID ids.PlayerId) []ids.GameId {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ids.GameId
	for id, a := range s.games {
		if a.white == playerID || a.black == playerID {
			out = append(out, id)
		}
	}
	return out
}

func asError(res any) error {
	if res == nil {
		return nil
	}
	err, _ := res.(error)
	return err
}
