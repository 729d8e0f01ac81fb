package account

import (
	"sync"

	"takserver/ids"
)

// Store is the narrow read/write/delete capability the guest registry
// (C15) needs against whichever account backing store is in use,
// independent of the full Authentication Port surface.
type Store interface {
	Get(id ids.AccountId) (Account, bool)
	Put(a Account)
	Delete(id ids.AccountId)
}

// MemoryPort is an in-memory Authentication Port, used by tests and by
// the guest registry directly (spec.md §9 "Dynamic dispatch": tests
// substitute in-memory fakes for every port).
type MemoryPort struct {
	mu       sync.RWMutex
	accounts map[ids.AccountId]Account
}

// NewMemoryPort returns an empty in-memory account store.
func NewMemoryPort() *MemoryPort {
	return &MemoryPort{accounts: make(map[ids.AccountId]Account)}
}

var _ Port = (*MemoryPort)(nil)
var _ Store = (*MemoryPort)(nil)

func (p *MemoryPort) Get(id ids.AccountId) (Account, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.accounts[id]
	return a, ok
}

func (p *MemoryPort) Put(a Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[a.AccountID] = a
}

func (p *MemoryPort) Delete(id ids.AccountId) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.accounts, id)
}

// GetAccount implements Port.
func (p *MemoryPort) GetAccount(id ids.AccountId) (Account, bool) {
	return p.Get(id)
}

// GetOrCreateGuest implements Port for callers that don't need the
// richer TTL/cleanup semantics of the guest registry directly (e.g.
// tests); production wiring routes guest creation through the guest
// package instead (C15).
func (p *MemoryPort) GetOrCreateGuest(token string) Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range p.accounts {
		if a.Type == TypeGuest && a.Username == token {
			return a
		}
	}
	a := Account{AccountID: ids.NewGuestAccountId(), Type: TypeGuest, Username: token, Flags: map[Flag]struct{}{}}
	p.accounts[a.AccountID] = a
	return a
}

func (p *MemoryPort) SetRole(id ids.AccountId, role Role) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.accounts[id]
	if !ok {
		return errAccountNotFound
	}
	a.Role = role
	p.accounts[id] = a
	return nil
}

func (p *MemoryPort) AddModerationFlag(id ids.AccountId, flag Flag) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.accounts[id]
	if !ok {
		return errAccountNotFound
	}
	if a.Flags == nil {
		a.Flags = map[Flag]struct{}{}
	}
	a.Flags[flag] = struct{}{}
	p.accounts[id] = a
	return nil
}

func (p *MemoryPort) RemoveModerationFlag(id ids.AccountId, flag Flag) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.accounts[id]
	if !ok {
		return errAccountNotFound
	}
	delete(a.Flags, flag)
	p.accounts[id] = a
	return nil
}

func (p *MemoryPort) QueryAccounts(q Query) []Account {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Account
	for _, a := range p.accounts {
		if q.Type != nil && a.Type != *q.Type {
			continue
		}
		if q.Role != nil && a.Role != *q.Role {
			continue
		}
		if q.HasFlag != nil && !a.HasFlag(*q.HasFlag) {
			continue
		}
		if q.Username != "" && a.Username != q.Username {
			continue
		}
		out = append(out, a)
	}
	return out
}
