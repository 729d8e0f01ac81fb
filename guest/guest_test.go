package guest

import (
	"testing"
	"time"
)

func TestGetOrCreateGuestWithTokenReuses(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	a1 := r.GetOrCreateGuest("tok-1", now)
	a2 := r.GetOrCreateGuest("tok-1", now.Add(time.Minute))

	if a1.AccountID != a2.AccountID {
		t.Fatalf("same token produced different accounts: %v vs %v", a1.AccountID, a2.AccountID)
	}
}

func TestGetOrCreateGuestWithoutTokenMintsUnconditionally(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	a1 := r.GetOrCreateGuest("", now)
	a2 := r.GetOrCreateGuest("", now)

	if a1.AccountID == a2.AccountID {
		t.Fatal("tokenless calls should always mint a fresh guest account")
	}
	if a1.Username == a2.Username {
		t.Errorf("expected distinct deterministic usernames, got %q twice", a1.Username)
	}
}

func TestCleanUpRemovesInactiveGuests(t *testing.T) {
	r := NewRegistry()
	start := time.Now()
	acct := r.GetOrCreateGuest("tok-1", start)

	removed := r.CleanUpGuestAccounts(start.Add(23*time.Hour), 24*time.Hour)
	if len(removed) != 0 {
		t.Fatalf("expected no removal before threshold, got %d", len(removed))
	}

	removed = r.CleanUpGuestAccounts(start.Add(25*time.Hour), 24*time.Hour)
	if len(removed) != 1 || removed[0].AccountID != acct.AccountID {
		t.Fatalf("expected the inactive guest to be removed, got %+v", removed)
	}
	if _, ok := r.Get(acct.AccountID); ok {
		t.Error("account should no longer be resolvable after cleanup")
	}
}

func TestFreshTokenAfterCleanupYieldsNewAccount(t *testing.T) {
	r := NewRegistry()
	start := time.Now()
	old := r.GetOrCreateGuest("tok-1", start)
	r.CleanUpGuestAccounts(start.Add(25*time.Hour), 24*time.Hour)

	fresh := r.GetOrCreateGuest("tok-1", start.Add(25*time.Hour))
	if fresh.AccountID == old.AccountID {
		t.Error("re-login with a fresh token should mint a new guest, not revive the old one")
	}
}
