// Package guest implements the guest registry named in spec.md §4.C15:
// ephemeral accounts keyed by an opaque client-held token, reaped after
// 24h of inactivity. Grounded on a ticker-driven cleanup
// idiom (ai.Run in the reference pack) generalized to a pure sweep
// function the server package schedules on its own ticker.
package guest

import (
	"fmt"
	"sync"
	"time"

	"takserver/account"
	"takserver/ids"
)

// Registry owns the guest-only account table: token→account, id→account,
// and username→account, each removed together on cleanup (spec.md §4.C15
// "removes them (token map, id map, username map)").
type Registry struct {
	mu sync.Mutex

	byToken    map[string]ids.AccountId
	byID       map[ids.AccountId]account.Account
	byUsername map[string]ids.AccountId
	lastAccess map[ids.AccountId]time.Time

	nextN int
}

// NewRegistry returns an empty guest registry.
func NewRegistry() *Registry {
	return &Registry{
		byToken:    make(map[string]ids.AccountId),
		byID:       make(map[ids.AccountId]account.Account),
		byUsername: make(map[string]ids.AccountId),
		lastAccess: make(map[ids.AccountId]time.Time),
	}
}

// GetOrCreateGuest implements spec.md §4.C15: with a token, reuse the
// account bound to it (bumping last_access); without one, mint a fresh
// guest account unconditionally.
func (r *Registry) GetOrCreateGuest(token string, now time.Time) account.Account {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token != "" {
		if id, ok := r.byToken[token]; ok {
			r.lastAccess[id] = now
			return r.byID[id]
		}
	}

	r.nextN++
	username := fmt.Sprintf("Guest%d", r.nextN)
	acct := account.Account{
		AccountID: ids.NewGuestAccountId(),
		Type:      account.TypeGuest,
		Username:  username,
		Flags:     map[account.Flag]struct{}{},
	}
	r.byID[acct.AccountID] = acct
	r.byUsername[username] = acct.AccountID
	if token != "" {
		r.byToken[token] = acct.AccountID
	}
	r.lastAccess[acct.AccountID] = now
	return acct
}

// Touch records fresh activity for an already-created guest account
// (e.g. on reconnect without a lookup-by-token, such as an authenticated
// guest session resuming).
func (r *Registry) Touch(id ids.AccountId, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; ok {
		r.lastAccess[id] = now
	}
}

// Get returns a guest account by id, satisfying account.Store so other
// components can resolve guest accounts the same way they resolve any
// other account.
func (r *Registry) Get(id ids.AccountId) (account.Account, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	return a, ok
}

// CleanUpGuestAccounts removes every guest account whose last access is
// older than threshold (24h per spec.md §6 defaults) and returns the
// removed accounts.
func (r *Registry) CleanUpGuestAccounts(now time.Time, threshold time.Duration) []account.Account {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []account.Account
	for id, last := range r.lastAccess {
		if now.Sub(last) <= threshold {
			continue
		}
		acct := r.byID[id]
		removed = append(removed, acct)
		delete(r.byID, id)
		delete(r.byUsername, acct.Username)
		delete(r.lastAccess, id)
		for token, tokenID := range r.byToken {
			if tokenID == id {
				delete(r.byToken, token)
			}
		}
	}
	return removed
}
