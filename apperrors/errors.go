// Package apperrors collects the sentinel errors shared across the core
// services, grouped by §7's four kinds so call sites can classify a
// failure without a type switch on error strings. Grounded on the
// matcherrors-style package: one flat sentinel-error package shared
// by every consumer, avoiding circular imports between services.
package apperrors

import "errors"

// Invalid input: surfaced to the initiating connection only.
var (
	ErrInvalidGameSettings = errors.New("invalid game settings")
	ErrInvalidOpponent     = errors.New("opponent cannot be the creator")
	ErrInvalidColor        = errors.New("invalid color preference")
	ErrInvalidAction       = errors.New("invalid action")
	ErrMalformedMessage    = errors.New("malformed message")
)

// Not found: surfaced to the initiator.
var (
	ErrSeekNotFound     = errors.New("seek not found")
	ErrGameNotFound     = errors.New("game not found")
	ErrMatchNotFound    = errors.New("match not found")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrAccountNotFound  = errors.New("account not found")
	ErrNoActiveGame     = errors.New("no active game for this account")
)

// Not permitted: surfaced to the initiator.
var (
	ErrNotPlayersGame  = errors.New("not a participant in this game")
	ErrNotPlayersTurn  = errors.New("not this player's turn")
	ErrSilenced        = errors.New("account is silenced")
	ErrInsufficientRole = errors.New("insufficient permission")
	ErrOpponentTargeted = errors.New("seek is targeted at a different opponent")
)

// Match/game state errors (not permitted / invalid-state subset).
var (
	ErrMatchNotWaiting    = errors.New("match is not waiting")
	ErrMatchNotReserved   = errors.New("match is not reserved")
	ErrGameNotInProgress  = errors.New("game is not in progress in this match")
	ErrGameAlreadyEnded   = errors.New("game already ended")
	ErrNoPendingRequest   = errors.New("no pending request to retract")
)

// Transient external: logged with context; use case degrades rather than fails the caller.
var (
	ErrRepositoryUnavailable = errors.New("repository unavailable")
	ErrIdentityProviderDown  = errors.New("identity provider unavailable")
)
