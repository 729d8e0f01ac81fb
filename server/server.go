// Package server is the composition root and use-case orchestration
// layer: it wires every core service together and implements the
// cross-cutting operations that span more than one of them (accepting
// a seek spans seek+match+gameplay; a rematch spans match+gameplay).
// No single domain package owns these flows without importing its
// siblings, so — mirroring spec.md §37's "a client action reaches the
// fabric, is dispatched to the relevant use case (matchmaking,
// gameplay, chat)" framing — this package plays that dispatcher role,
// grounded on a main.go that wires Hub/Matchmaker/Store together as the
// only place in the tree that knows about all three.
package server

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"takserver/account"
	"takserver/apperrors"
	"takserver/chat"
	"takserver/fabric"
	"takserver/finalize"
	"takserver/gameplay"
	"takserver/guest"
	"takserver/ids"
	"takserver/match"
	"takserver/player"
	"takserver/rating"
	"takserver/rules"
	"takserver/seek"
	"takserver/stats"
)

// Server wires every core service together and exposes the use cases
// that a connection-level adapter (e.g. wsadapter) drives.
type Server struct {
	Accounts    account.Port // durable accounts fronted by an ephemeral-guest overlay; see directory
	Guests      *guest.Registry
	Players     *player.Resolver
	Fabric      *fabric.Fabric
	Seeks       *seek.Registry
	Matches     *match.Service
	Games       *gameplay.Service
	Ratings     rating.Store
	Stats       stats.Store
	Chat        *chat.Service
	Finalize    *finalize.Workflow
	Disconnects *gameplay.DisconnectWatchers

	rng *rand.Rand
}

// New assembles a Server from already-constructed services. accounts is
// expected to be the value NewAccountDirectory returned — the same
// instance main.go already passed to player.NewResolver — so the whole
// process shares one uniform account.Port. Construction order
// (ratings/stats/storage before gameplay, gameplay before finalize,
// finalize wired into gameplay as its FinishHook) is the caller's
// responsibility, matching a main.go wiring order.
func New(accounts account.Port, guests *guest.Registry, players *player.Resolver, fab *fabric.Fabric, seeks *seek.Registry, matches *match.Service, games *gameplay.Service, ratings rating.Store, statsStore stats.Store, chatSvc *chat.Service, fin *finalize.Workflow, disconnects *gameplay.DisconnectWatchers) *Server {
	return &Server{
		Accounts:    accounts,
		Guests:      guests,
		Players:     players,
		Fabric:      fab,
		Seeks:       seeks,
		Matches:     matches,
		Games:       games,
		Ratings:     ratings,
		Stats:       statsStore,
		Chat:        chatSvc,
		Finalize:    fin,
		Disconnects: disconnects,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// directory is the account.Port every component shares: account lookups
// and moderation fall through to the durable store, while guest
// minting/lookup is answered entirely by the in-memory guest registry
// (spec.md §4.C15's ephemeral accounts never reach Postgres). Grounded
// on the pattern of composing two narrow collaborators behind
// one interface (e.g. finalize.Workflow composing MatchEnder+PlayerInfo)
// rather than branching on account type at every call site.
type directory struct {
	persistent account.Port
	guests     *guest.Registry
}

// NewAccountDirectory composes the durable account store with the
// in-memory guest registry into one account.Port. Call once at startup
// and share the result with player.NewResolver and server.New.
func NewAccountDirectory(persistent account.Port, guests *guest.Registry) account.Port {
	return &directory{persistent: persistent, guests: guests}
}

func (d *directory) GetAccount(id ids.AccountId) (account.Account, bool) {
	if a, ok := d.persistent.GetAccount(id); ok {
		return a, true
	}
	return d.guests.Get(id)
}

func (d *directory) GetOrCreateGuest(token string) account.Account {
	return d.guests.GetOrCreateGuest(token, time.Now())
}

func (d *directory) SetRole(id ids.AccountId, role account.Role) error {
	return d.persistent.SetRole(id, role)
}

func (d *directory) AddModerationFlag(id ids.AccountId, flag account.Flag) error {
	return d.persistent.AddModerationFlag(id, flag)
}

func (d *directory) RemoveModerationFlag(id ids.AccountId, flag account.Flag) error {
	return d.persistent.RemoveModerationFlag(id, flag)
}

func (d *directory) QueryAccounts(q account.Query) []account.Account {
	return d.persistent.QueryAccounts(q)
}

// AcceptSeek implements the matchmaking use case of spec.md §4.C5/§4.C6:
// a seek is removed, a two-game-spanning match is created for the pair,
// and the first game is started in it. Returns the newly created game's
// id. acceptorID must not be the seek's own creator, and if the seek
// targets a specific opponent, acceptorID must be that opponent.
func (s *Server) AcceptSeek(acceptorID ids.PlayerId, seekID ids.SeekId, now time.Time) (ids.GameId, error) {
	sk, ok := s.Seeks.RemoveSeek(seekID)
	if !ok {
		return 0, apperrors.ErrSeekNotFound
	}
	if acceptorID == sk.CreatorID {
		return 0, apperrors.ErrInvalidOpponent
	}
	if sk.OpponentID != nil && *sk.OpponentID != acceptorID {
		return 0, apperrors.ErrOpponentTargeted
	}

	matchID := s.Matches.CreateMatch(sk.CreatorID, acceptorID, sk.Color, match.ColorAlternate, sk.Settings, sk.IsRated)
	return s.startNextGame(matchID, now)
}

// Rematch implements spec.md §4.C6's rematch handshake use case
// (S2 in spec.md's scenario walkthrough): gameID resolves to its owning
// match, and player's request is recorded or, if the other player had
// already requested one, accepted by starting a new game. Returns the
// zero GameId (with ok=false) while the request is merely pending or a
// repeat no-op.
func (s *Server) Rematch(player ids.PlayerId, gameID ids.GameId, now time.Time) (ids.GameId, bool, error) {
	matchID, ok := s.Matches.MatchIDForGame(gameID)
	if !ok {
		return 0, false, apperrors.ErrMatchNotFound
	}
	switch s.Matches.RequestOrAcceptRematch(matchID, player) {
	case match.RematchInvalid:
		return 0, false, apperrors.ErrMatchNotWaiting
	case match.RematchPending, match.RematchNoOp:
		return 0, false, nil
	default: // RematchAccepted
		newGameID, err := s.startNextGame(matchID, now)
		return newGameID, err == nil, err
	}
}

// startNextGame reserves matchID, resolves the next game's colors per
// its color rule, creates the game and marks the match InProgress.
func (s *Server) startNextGame(matchID ids.MatchId, now time.Time) (ids.GameId, error) {
	if !s.Matches.ReserveMatchInProgress(matchID) {
		return 0, apperrors.ErrMatchNotWaiting
	}
	m, ok := s.Matches.Get(matchID)
	if !ok {
		return 0, apperrors.ErrMatchNotFound
	}
	white, black, ok := s.Matches.GetNextMatchupColors(matchID)
	if !ok {
		return 0, apperrors.ErrMatchNotFound
	}
	id := matchID
	gameID := s.Games.CreateGame(context.Background(), &id, white, black, m.Settings, m.IsRated, now)
	s.Matches.StartGameInMatch(matchID, gameID)
	return gameID, nil
}

// CreateSeek validates and publishes a new open challenge (spec.md
// §4.C5). It is a thin pass-through kept here so every matchmaking
// entry point is reachable from one place.
func (s *Server) CreateSeek(creator ids.PlayerId, opponent *ids.PlayerId, color *rules.Player, settings rules.GameSettings, isRated bool) (seek.Seek, error) {
	return s.Seeks.CreateSeek(creator, opponent, color, settings, isRated)
}

// CancelSeek removes a single seek by id, as when its creator withdraws
// it (spec.md §4.C5).
func (s *Server) CancelSeek(id ids.SeekId) (seek.Seek, bool) {
	return s.Seeks.RemoveSeek(id)
}

// SetAccountOffline handles the disconnect-time cleanup spec.md §4.C4
// describes: every seek the account's player owns is withdrawn.
func (s *Server) SetAccountOffline(playerID ids.PlayerId) {
	s.Seeks.CancelAllPlayerSeeks(playerID)
}

// RunCleanupTickers runs the guest reaper (§4.C15) and the idle-match
// reaper (§4.C6) on independent time.Tickers until ctx is cancelled.
// Intended to be launched as one errgroup member alongside the HTTP
// listener.
func (s *Server) RunCleanupTickers(ctx context.Context, log *slog.Logger, guestInterval, guestThreshold, matchInterval, matchThreshold time.Duration) error {
	guestTicker := time.NewTicker(guestInterval)
	matchTicker := time.NewTicker(matchInterval)
	defer guestTicker.Stop()
	defer matchTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-guestTicker.C:
			removed := s.Guests.CleanUpGuestAccounts(now, guestThreshold)
			for _, acct := range removed {
				s.Players.RemoveAccountID(acct.AccountID)
			}
			if len(removed) > 0 {
				log.Info("reaped inactive guest accounts", "tag", "server", "count", len(removed))
			}
		case now := <-matchTicker.C:
			if n := s.Matches.RunCleanup(now, matchThreshold); n > 0 {
				log.Info("reaped idle matches", "tag", "server", "count", n)
			}
		}
	}
}
