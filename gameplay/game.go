// Package gameplay implements the game service (spec.md §4.C7), the
// per-game timeout runner (§4.C8), and the per-player disconnect-timeout
// runner (§4.C9). Each ongoing game is driven by its own goroutine
// serializing all mutation through a buffered command channel, grounded
// directly on a game.Game.Run() idiom (game/game.go): a
// single actor goroutine per game processes an Actions channel so that
// do_action and the timeout runner can never race on the same game's
// state (spec.md §5 "Game action do_action and the timeout runner
// serialize on the per-game lock").
package gameplay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"takserver/apperrors"
	"takserver/concurrent"
	"takserver/ids"
	"takserver/notify"
	"takserver/rules"
)

// ExtraTimeRule grants a one-time lump-sum addition to a side's clock
// once a given move index is reached (spec.md §4.C7 "if the new move
// index triggers extra_time, add that lump sum").
type ExtraTimeRule struct {
	AtMoveIndex int
	Bonus       time.Duration
}

// FinishedGame is the immutable result of a terminated game (spec.md §3),
// handed to the finalize workflow (C10).
type FinishedGame struct {
	GameID      ids.GameId
	MatchID     *ids.MatchId
	WhiteID     ids.PlayerId
	BlackID     ids.PlayerId
	Settings    rules.GameSettings
	IsRated     bool
	History     []rules.Record
	Result      rules.Outcome
	EndedAt     time.Time
}

// FinalizeHook is invoked exactly once, synchronously, when a game
// reaches a terminal state (spec.md §9: finalize is a sequential await,
// never spawn-and-forget).
type FinalizeHook interface {
	Finalize(fg FinishedGame)
}

// PlayerLocator resolves a player to their current notification listener,
// letting gameplay stay an observer of the fabric (spec.md §9 "Cyclic
// collaborators") instead of depending on it directly.
type PlayerLocator interface {
	ListenerFor(playerID ids.PlayerId) (ids.ListenerId, bool)
}

// Snapshot is a read-only view of an ongoing game's state, used by
// protocol adapters to render a GameStarted/GameAction payload.
type Snapshot struct {
	GameID         ids.GameId
	MatchID        *ids.MatchId
	WhiteID        ids.PlayerId
	BlackID        ids.PlayerId
	CurrentPlayer  rules.Player
	IsRated        bool
	DeadlineWhite  time.Time
	DeadlineBlack  time.Time
	DrawOfferedBy  *rules.Player
	UndoRequestedBy map[rules.Player]bool
	State          rules.State
}

// Service owns every ongoing game and its spectator bindings.
type Service struct {
	log                        *slog.Logger
	notifier                   notify.Port
	locator                    PlayerLocator
	finalize                   FinalizeHook
	extraTime                  []ExtraTimeRule
	disconnectForfeitThreshold time.Duration
	minTimeoutRetryDelay       time.Duration
	gameCounter                ids.GameCounter

	mu    sync.Mutex
	games map[ids.GameId]*gameActor

	spectators *concurrent.ManyMany[ids.GameId, ids.ListenerId]
}

// NewService constructs an empty gameplay service. disconnectForfeitThreshold
// is the C9 rated-disconnect grace period and minTimeoutRetryDelay bounds
// how eagerly the C8 timeout runner re-arms (spec.md §4.C8/§4.C9); both
// come from config rather than being hardcoded so deployments can tune
// them.
func NewService(log *slog.Logger, notifier notify.Port, locator PlayerLocator, finalize FinalizeHook, extraTime []ExtraTimeRule, disconnectForfeitThreshold, minTimeoutRetryDelay time.Duration) *Service {
	return &Service{
		log:                        log,
		notifier:                   notifier,
		locator:                    locator,
		finalize:                   finalize,
		extraTime:                  extraTime,
		disconnectForfeitThreshold: disconnectForfeitThreshold,
		minTimeoutRetryDelay:       minTimeoutRetryDelay,
		games:                      make(map[ids.GameId]*gameActor),
		spectators:                 concurrent.NewManyMany[ids.GameId, ids.ListenerId](),
	}
}

// CreateGame allocates a fresh game id, builds the ongoing game, assigns
// sides, starts White's clock, emits GameStarted, and starts the game's
// timeout watcher (spec.md §4.C7 Creation). matchID is nil for unrated
// casual games created outside a match context.
func (s *Service) CreateGame(ctx context.Context, matchID *ids.MatchId, white, black ids.PlayerId, settings rules.GameSettings, isRated bool, now time.Time) ids.GameId {
	gameID := s.gameCounter.Next()
	g := rules.New(settings, now)
	deadline := now.Add(settings.Time.Contingent)

	actor := &gameActor{
		id:            gameID,
		matchID:       matchID,
		white:         white,
		black:         black,
		isRated:       isRated,
		settings:      settings,
		rules:         g,
		deadlineWhite: deadline,
		deadlineBlack: deadline,
		isTicking:     true,
		cmds:          make(chan command, 16),
		done:          make(chan struct{}),
		svc:           s,
	}

	s.mu.Lock()
	s.games[gameID] = actor
	s.mu.Unlock()

	go actor.run()
	go runTimeoutWatcher(ctx, actor)

	s.notifyBoth(actor, notify.Message{Kind: notify.KindGameStarted, GameID: gameID})
	return gameID
}

// Snapshot returns a read-only view of the game, for adapters building a
// response payload.
func (s *Service) Snapshot(gameID ids.GameId) (Snapshot, error) {
	actor, ok := s.actor(gameID)
	if !ok {
		return Snapshot{}, apperrors.ErrGameNotFound
	}
	return actor.snapshot(), nil
}

func (s *Service) actor(gameID ids.GameId) (*gameActor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.games[gameID]
	return a, ok
}

// ObserveGame binds listener as a spectator of gameID.
func (s *Service) ObserveGame(gameID ids.GameId, listener ids.ListenerId) {
	s.spectators.Insert(gameID, listener)
}

// UnobserveGame releases listener's spectatorship of gameID.
func (s *Service) UnobserveGame(gameID ids.GameId, listener ids.ListenerId) {
	s.spectators.Remove(gameID, listener)
}

// UnobserveAllGames releases every spectator binding held by listener.
func (s *Service) UnobserveAllGames(listener ids.ListenerId) {
	s.spectators.RemoveByValue(listener)
}

func (s *Service) spectatorsOf(gameID ids.GameId) []ids.ListenerId {
	return s.spectators.GetByKey(gameID)
}

func (s *Service) removeGame(gameID ids.GameId) {
	s.mu.Lock()
	delete(s.games, gameID)
	s.mu.Unlock()
	s.spectators.RemoveByKey(gameID)
}

func (s *Service) notifyBoth(a *gameActor, msg notify.Message) {
	listeners := make([]ids.ListenerId, 0, 2)
	if l, ok := s.locator.ListenerFor(a.white); ok {
		listeners = append(listeners, l)
	}
	if l, ok := s.locator.ListenerFor(a.black); ok {
		listeners = append(listeners, l)
	}
	s.notifier.NotifyListeners(listeners, msg)
}

func (s *Service) notifyBothAndSpectators(a *gameActor, msg notify.Message) {
	listeners := make([]ids.ListenerId, 0, 2)
	if l, ok := s.locator.ListenerFor(a.white); ok {
		listeners = append(listeners, l)
	}
	if l, ok := s.locator.ListenerFor(a.black); ok {
		listeners = append(listeners, l)
	}
	listeners = append(listeners, s.spectatorsOf(a.id)...)
	s.notifier.NotifyListeners(listeners, msg)
}
