package player

import (
	"testing"

	"takserver/account"
	"takserver/ids"
)

func TestGetOrCreatePlayerIDIsIdempotent(t *testing.T) {
	r := NewResolver(account.NewMemoryPort())
	acctID := ids.AccountId("acct-1")
	calls := 0
	factory := func() ids.PlayerId {
		calls++
		return ids.NewPlayerId()
	}

	p1 := r.GetOrCreatePlayerID(acctID, factory)
	p2 := r.GetOrCreatePlayerID(acctID, factory)

	if p1 != p2 {
		t.Fatalf("got different player ids on second call: %v vs %v", p1, p2)
	}
	if calls != 1 {
		t.Errorf("factory called %d times, want 1", calls)
	}
}

func TestRemoveAccountIDUnlinksWithoutDeletingPlayer(t *testing.T) {
	r := NewResolver(account.NewMemoryPort())
	acctID := ids.AccountId("acct-1")
	pid := r.GetOrCreatePlayerID(acctID, ids.NewPlayerId)

	r.RemoveAccountID(acctID)

	if _, ok := r.GetAccountID(pid); ok {
		t.Error("expected player-to-account mapping to be removed")
	}
	// Re-binding the same account mints a fresh player, per spec: players
	// are never deleted, only un-linked, so this account gets a new PlayerId.
	newPid := r.GetOrCreatePlayerID(acctID, ids.NewPlayerId)
	if newPid == pid {
		t.Error("expected a fresh player id after re-linking")
	}
}

func TestViewMirrorsAccountModerationState(t *testing.T) {
	accounts := account.NewMemoryPort()
	acctID := ids.AccountId("acct-1")
	accounts.Put(account.Account{
		AccountID: acctID,
		Flags:     map[account.Flag]struct{}{account.FlagSilenced: {}},
	})
	r := NewResolver(accounts)
	pid := r.GetOrCreatePlayerID(acctID, ids.NewPlayerId)

	view, ok := r.View(pid)
	if !ok {
		t.Fatal("expected a view for a linked player")
	}
	if !view.Silenced {
		t.Error("expected view to mirror the silenced flag")
	}
}
