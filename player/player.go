// Package player implements the player resolver / account directory port
// named in spec.md §4.C14 and §6: the 1-1 mapping between PlayerId (the
// gameplay-facing persona) and AccountId (the stable identity), plus a
// display-facing Player view that mirrors moderation state.
package player

import (
	"sync"

	"takserver/account"
	"takserver/ids"
)

// Player is the gameplay-facing persona (spec.md §3): 1-1 with a
// non-guest account, created lazily on first binding and never deleted.
type Player struct {
	PlayerID ids.PlayerId
	IsBot    bool
	Silenced bool
	Banned   bool
}

// Resolver maps between PlayerId and AccountId. Grounded on the
// strict-1-1 requirement spec.md §3 states for Player↔Account, it is
// backed by concurrent.BiMap-style bookkeeping but kept in its own
// package (rather than reusing BiMap directly) because it must also
// mint PlayerIds lazily via a caller-supplied factory.
type Resolver struct {
	mu             sync.RWMutex
	playerByAcct   map[ids.AccountId]ids.PlayerId
	acctByPlayer   map[ids.PlayerId]ids.AccountId
	accounts       account.Port
}

// NewResolver constructs an empty resolver backed by accounts for
// display-mirror lookups (is_bot/silenced/banned).
func NewResolver(accounts account.Port) *Resolver {
	return &Resolver{
		playerByAcct: make(map[ids.AccountId]ids.PlayerId),
		acctByPlayer: make(map[ids.PlayerId]ids.AccountId),
		accounts:     accounts,
	}
}

// GetOrCreatePlayerID returns the account's existing PlayerId, or mints
// one via factory and records the mapping if this is the account's first
// binding (spec.md §6 "get_or_create_player_id(account_id, factory)").
func (r *Resolver) GetOrCreatePlayerID(acctID ids.AccountId, factory func() ids.PlayerId) ids.PlayerId {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pid, ok := r.playerByAcct[acctID]; ok {
		return pid
	}
	pid := factory()
	r.playerByAcct[acctID] = pid
	r.acctByPlayer[pid] = acctID
	return pid
}

// GetAccountID returns the account bound to player, if any.
func (r *Resolver) GetAccountID(playerID ids.PlayerId) (ids.AccountId, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.acctByPlayer[playerID]
	return a, ok
}

// RemoveAccountID un-links an account from its player without deleting
// the player identifier itself (spec.md §3 "never deleted (only
// un-linked)").
func (r *Resolver) RemoveAccountID(acctID ids.AccountId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pid, ok := r.playerByAcct[acctID]
	if !ok {
		return
	}
	delete(r.playerByAcct, acctID)
	delete(r.acctByPlayer, pid)
}

// View builds a Player's display mirror from the linked account's
// current moderation state. Returns false if playerID has no linked
// account (the resolver never deletes a player mapping, but the account
// could have been removed by an external authority).
func (r *Resolver) View(playerID ids.PlayerId) (Player, bool) {
	acctID, ok := r.GetAccountID(playerID)
	if !ok {
		return Player{}, false
	}
	acct, ok := r.accounts.GetAccount(acctID)
	if !ok {
		return Player{}, false
	}
	return Player{
		PlayerID: playerID,
		IsBot:    acct.Type == account.TypeBot,
		Silenced: acct.HasFlag(account.FlagSilenced),
		Banned:   acct.HasFlag(account.FlagBanned),
	}, true
}
