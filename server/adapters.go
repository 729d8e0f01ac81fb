package server

import (
	"context"
	"time"

	"takserver/account"
	"takserver/fabric"
	"takserver/gameplay"
	"takserver/ids"
	"takserver/notify"
	"takserver/player"
	"takserver/seek"
)

// NotifyHub is a notify.Port that forwards to a target bound after
// construction, resolving the same kind of construction-order cycle as
// OnlineHooks: seek.NewRegistry/match collaborators need a notify.Port
// at construction time, but the only real implementation (the fabric)
// can't exist until after OnlineHooks (which needs those collaborators)
// is itself built. Calls made before Bind are silently dropped.
type NotifyHub struct {
	target notify.Port
}

// NewNotifyHub constructs an unbound forwarding notify.Port.
func NewNotifyHub() *NotifyHub {
	return &NotifyHub{}
}

// Bind supplies the real notify.Port once it exists.
func (h *NotifyHub) Bind(target notify.Port) {
	h.target = target
}

func (h *NotifyHub) NotifyListener(listener ids.ListenerId, msg notify.Message) {
	if h.target != nil {
		h.target.NotifyListener(listener, msg)
	}
}

func (h *NotifyHub) NotifyListeners(listeners []ids.ListenerId, msg notify.Message) {
	if h.target != nil {
		h.target.NotifyListeners(listeners, msg)
	}
}

func (h *NotifyHub) NotifyAll(msg notify.Message) {
	if h.target != nil {
		h.target.NotifyAll(msg)
	}
}

// playerLocator adapts player.Resolver+fabric.Fabric into
// gameplay.PlayerLocator, resolving a player to its live listener through
// the account that links them. This two-hop lookup (player→account→
// listener) is why gameplay can't just take the fabric directly: it only
// ever speaks in PlayerId, never AccountId (spec.md §9 "Cyclic
// collaborators").
type playerLocator struct {
	players *player.Resolver
	fab     *fabric.Fabric
}

// NewPlayerLocator builds the gameplay.PlayerLocator implementation
// gameplay.NewService needs.
func NewPlayerLocator(players *player.Resolver, fab *fabric.Fabric) *playerLocator {
	return &playerLocator{players: players, fab: fab}
}

func (p *playerLocator) ListenerFor(playerID ids.PlayerId) (ids.ListenerId, bool) {
	acctID, ok := p.players.GetAccountID(playerID)
	if !ok {
		return "", false
	}
	return p.fab.ListenerFor(acctID)
}

// playerInfo adapts player.Resolver+account.Port into finalize.PlayerInfo.
type playerInfo struct {
	players  *player.Resolver
	accounts account.Port
}

// NewPlayerInfo builds the finalize.PlayerInfo implementation
// finalize.New needs.
func NewPlayerInfo(players *player.Resolver, accounts account.Port) *playerInfo {
	return &playerInfo{players: players, accounts: accounts}
}

func (p *playerInfo) Username(playerID ids.PlayerId) string {
	acctID, ok := p.players.GetAccountID(playerID)
	if !ok {
		return ""
	}
	acct, ok := p.accounts.GetAccount(acctID)
	if !ok {
		return ""
	}
	return acct.Username
}

func (p *playerInfo) IsGuest(playerID ids.PlayerId) bool {
	acctID, ok := p.players.GetAccountID(playerID)
	if !ok {
		return true
	}
	acct, ok := p.accounts.GetAccount(acctID)
	if !ok {
		return true
	}
	return acct.Type == account.TypeGuest
}

// silenceChecker adapts player.Resolver.View into chat.SilenceChecker.
type silenceChecker struct {
	players *player.Resolver
}

// NewSilenceChecker builds the chat.SilenceChecker implementation
// chat.New needs.
func NewSilenceChecker(players *player.Resolver) *silenceChecker {
	return &silenceChecker{players: players}
}

func (s *silenceChecker) IsSilenced(playerID ids.PlayerId) bool {
	view, ok := s.players.View(playerID)
	return ok && view.Silenced
}

// OnlineHooks implements fabric.OnlineHooks, translating account-level
// online/offline transitions into the player-level use cases spec.md
// §4.C4 and §4.C9 describe: going offline withdraws every open seek and
// arms the disconnect-forfeit watcher; coming back online disarms it.
//
// The fabric is constructed before the gameplay service that the
// disconnect watchers wrap (gameplay needs a PlayerLocator built from
// the fabric, so the fabric must exist first), so disconnects is wired
// in after construction via Bind rather than passed to New. OnlineHooks
// is inert — both methods no-op — until Bind is called.
type OnlineHooks struct {
	ctx     context.Context
	players *player.Resolver
	seeks   *seek.Registry

	disconnects *gameplay.DisconnectWatchers
}

// NewOnlineHooks constructs a hooks adapter. Call Bind once the
// gameplay service's disconnect watchers exist, before any connection
// is accepted.
func NewOnlineHooks(ctx context.Context, players *player.Resolver, seeks *seek.Registry) *OnlineHooks {
	return &OnlineHooks{ctx: ctx, players: players, seeks: seeks}
}

// Bind completes construction by supplying the disconnect watcher
// registry, which can only be built once the gameplay service exists.
func (h *OnlineHooks) Bind(disconnects *gameplay.DisconnectWatchers) {
	h.disconnects = disconnects
}

func (h *OnlineHooks) OnAccountOnline(acctID ids.AccountId) {
	if h.disconnects == nil {
		return
	}
	// GetOrCreatePlayerID only looks up here: auth always binds the
	// player before the fabric can report this account online.
	playerID := h.players.GetOrCreatePlayerID(acctID, ids.NewPlayerId)
	h.disconnects.Cancel(playerID)
}

func (h *OnlineHooks) OnAccountOffline(acctID ids.AccountId) {
	if h.disconnects == nil {
		return
	}
	playerID := h.players.GetOrCreatePlayerID(acctID, ids.NewPlayerId)
	h.seeks.CancelAllPlayerSeeks(playerID)
	h.disconnects.Start(h.ctx, playerID, time.Now())
}
