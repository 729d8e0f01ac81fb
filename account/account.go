// Package account models the Account entity and the Authentication port
// named in spec.md §3 and §6. Accounts are external-authority-owned:
// this package defines the port contract and an in-memory fake for
// tests; the real implementation lives in the storage package, backed
// by Postgres (grounded on a storage.Store pattern).
package account

import "takserver/ids"

// Type classifies an account's nature.
type Type int

const (
	TypePlayer Type = iota
	TypeGuest
	TypeBot
)

// Role is an account's permission level.
type Role int

const (
	RoleUser Role = iota
	RoleModerator
	RoleAdmin
)

// Flag is a moderation flag. An account may carry more than one.
type Flag int

const (
	FlagBanned Flag = iota
	FlagSilenced
)

// Account is the stable identity record (spec.md §3).
type Account struct {
	AccountID ids.AccountId
	Type      Type
	Role      Role
	Flags     map[Flag]struct{}
	Username  string
	Email     string // empty when unset
}

// HasFlag reports whether the account carries the given moderation flag.
func (a Account) HasFlag(f Flag) bool {
	_, ok := a.Flags[f]
	return ok
}

// Query narrows QueryAccounts results. Zero-value fields are unfiltered.
type Query struct {
	Type     *Type
	Role     *Role
	HasFlag  *Flag
	Username string // exact match when non-empty
}

// Port is the Authentication port contract of spec.md §6. Moderation
// operations (SetRole/AddModerationFlag/RemoveModerationFlag) are named
// in the original_source domain/account workflows and are implied but
// only sketched by §6's port list; they are implemented fully here since
// chat silencing (C13) and role-gated actions depend on them.
type Port interface {
	GetAccount(id ids.AccountId) (Account, bool)
	GetOrCreateGuest(token string) Account
	SetRole(id ids.AccountId, role Role) error
	AddModerationFlag(id ids.AccountId, flag Flag) error
	RemoveModerationFlag(id ids.AccountId, flag Flag) error
	QueryAccounts(q Query) []Account
}
