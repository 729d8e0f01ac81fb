package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"takserver/account"
	"takserver/ids"
)

var _ account.Port = (*Store)(nil)

// GetAccount looks up an account by id.
func (s *Store) GetAccount(id ids.AccountId) (account.Account, bool) {
	if s == nil || s.pool == nil {
		return account.Account{}, false
	}
	a, err := s.scanAccount(context.Background(), `SELECT account_id, account_type, role, flags, username, email FROM accounts WHERE account_id = $1`, string(id))
	if errors.Is(err, pgx.ErrNoRows) {
		return account.Account{}, false
	}
	if err != nil {
		slog.Error("storage: get account failed", "tag", "account", "account_id", id, "error", err)
		return account.Account{}, false
	}
	return a, true
}

// GetOrCreateGuest mints a fresh guest account for token on first sight,
// and returns the existing one on subsequent calls — guest identity is
// keyed by the caller-supplied token (e.g. a device-bound random value),
// not reused across tokens.
func (s *Store) GetOrCreateGuest(token string) account.Account {
	guestAccountID := ids.AccountId("guest-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(token)).String())
	if s == nil || s.pool == nil {
		return account.Account{AccountID: guestAccountID, Type: account.TypeGuest, Flags: map[account.Flag]struct{}{}}
	}
	if existing, ok := s.GetAccount(guestAccountID); ok {
		return existing
	}
	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO accounts (account_id, account_type, role, flags, username, email)
		VALUES ($1, $2, $3, '{}', $4, '')
		ON CONFLICT (account_id) DO NOTHING`,
		string(guestAccountID), account.TypeGuest, account.RoleUser, "guest-"+token[:min(8, len(token))])
	if err != nil {
		slog.Error("storage: create guest account failed", "tag", "account", "error", err)
	}
	a, _ := s.GetAccount(guestAccountID)
	return a
}

// SetRole updates an account's permission level.
func (s *Store) SetRole(id ids.AccountId, role account.Role) error {
	if s == nil || s.pool == nil {
		return nil
	}
	_, err := s.pool.Exec(context.Background(), `UPDATE accounts SET role = $1 WHERE account_id = $2`, role, string(id))
	return err
}

// AddModerationFlag sets a moderation flag on an account, idempotently.
func (s *Store) AddModerationFlag(id ids.AccountId, flag account.Flag) error {
	if s == nil || s.pool == nil {
		return nil
	}
	_, err := s.pool.Exec(context.Background(), `
		UPDATE accounts SET flags = array(SELECT DISTINCT unnest(flags || $1::text[])) WHERE account_id = $2`,
		[]string{flagName(flag)}, string(id))
	return err
}

// RemoveModerationFlag clears a moderation flag on an account.
func (s *Store) RemoveModerationFlag(id ids.AccountId, flag account.Flag) error {
	if s == nil || s.pool == nil {
		return nil
	}
	_, err := s.pool.Exec(context.Background(), `
		UPDATE accounts SET flags = array_remove(flags, $1) WHERE account_id = $2`,
		flagName(flag), string(id))
	return err
}

// QueryAccounts lists accounts matching q. Zero-value fields in q are
// unfiltered (account.Query's documented contract).
func (s *Store) QueryAccounts(q account.Query) []account.Account {
	if s == nil || s.pool == nil {
		return nil
	}
	where := "TRUE"
	args := []any{}
	if q.Type != nil {
		args = append(args, *q.Type)
		where += fmt.Sprintf(" AND account_type = $%d", len(args))
	}
	if q.Role != nil {
		args = append(args, *q.Role)
		where += fmt.Sprintf(" AND role = $%d", len(args))
	}
	if q.HasFlag != nil {
		args = append(args, flagName(*q.HasFlag))
		where += fmt.Sprintf(" AND $%d = ANY(flags)", len(args))
	}
	if q.Username != "" {
		args = append(args, q.Username)
		where += fmt.Sprintf(" AND username = $%d", len(args))
	}
	rows, err := s.pool.Query(context.Background(), `
		SELECT account_id, account_type, role, flags, username, email FROM accounts WHERE `+where, args...)
	if err != nil {
		slog.Error("storage: query accounts failed", "tag", "account", "error", err)
		return nil
	}
	defer rows.Close()

	var out []account.Account
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			slog.Error("storage: scan account row failed", "tag", "account", "error", err)
			return out
		}
		out = append(out, a)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanAccount(ctx context.Context, sql string, args ...any) (account.Account, error) {
	return scanAccountRow(s.pool.QueryRow(ctx, sql, args...))
}

func scanAccountRow(row rowScanner) (account.Account, error) {
	var (
		idStr, username, email string
		accountType            account.Type
		role                   account.Role
		flags                  []string
	)
	if err := row.Scan(&idStr, &accountType, &role, &flags, &username, &email); err != nil {
		return account.Account{}, err
	}
	flagSet := make(map[account.Flag]struct{}, len(flags))
	for _, f := range flags {
		flagSet[flagFromName(f)] = struct{}{}
	}
	return account.Account{
		AccountID: ids.AccountId(idStr),
		Type:      accountType,
		Role:      role,
		Flags:     flagSet,
		Username:  username,
		Email:     email,
	}, nil
}

func flagName(f account.Flag) string {
	switch f {
	case account.FlagBanned:
		return "banned"
	case account.FlagSilenced:
		return "silenced"
	default:
		return "unknown"
	}
}

func flagFromName(name string) account.Flag {
	switch name {
	case "silenced":
		return account.FlagSilenced
	default:
		return account.FlagBanned
	}
}
