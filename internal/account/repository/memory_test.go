package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AlibekovAA/fincore/internal/account/domain"
	"github.com/AlibekovAA/fincore/internal/common/clock"
)

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*PgRepository)(nil)
)

func newTestRepo(t *testing.T) (*MemoryRepository, *clock.MockClock) {
	t.Helper()
	clk := clock.NewMockClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	repo := NewMemoryRepository(clk)
	err := repo.Create(context.Background(), domain.Account{
		ID:              "acc-1",
		FirstName:       "Ada",
		LastName:        "Obi",
		Email:           "ada@example.com",
		TelephoneNumber: "+2348000000001",
		Role:            domain.RoleUser,
		Status:          domain.StatusPending,
	})
	if err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	return repo, clk
}

func TestMemoryRepository_CreateRejectsDuplicates(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	err := repo.Create(ctx, domain.Account{ID: "acc-2", Email: "ada@example.com", TelephoneNumber: "+2348000000002"})
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}

	err = repo.Create(ctx, domain.Account{ID: "acc-2", Email: "b@example.com", TelephoneNumber: "+2348000000001"})
	if !errors.Is(err, ErrTelephoneExists) {
		t.Errorf("expected ErrTelephoneExists, got %v", err)
	}
}

func TestMemoryRepository_NewAccountHasEmptySession(t *testing.T) {
	repo, _ := newTestRepo(t)

	session, err := repo.FindSession(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if session.TokenVersion != 0 || session.HasRefreshToken() || session.Active || session.RefreshTokenExpiry != nil {
		t.Errorf("expected empty session, got %+v", session)
	}
}

func TestMemoryRepository_ReadVersion(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	v, err := repo.ReadVersion(ctx, "acc-1", false)
	if err != nil || v != 0 {
		t.Fatalf("expected version 0, got %d (%v)", v, err)
	}

	v, err = repo.ReadVersion(ctx, "acc-1", true)
	if err != nil || v != 1 {
		t.Fatalf("expected version 1 after increment, got %d (%v)", v, err)
	}

	if _, err := repo.ReadVersion(ctx, "missing", true); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestMemoryRepository_ConcurrentIncrementsAreDistinct(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	const workers = 32
	results := make(chan int64, workers)
	start := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			v, err := repo.ReadVersion(ctx, "acc-1", true)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results <- v
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for v := range results {
		if seen[v] {
			t.Fatalf("version %d handed out twice", v)
		}
		seen[v] = true
	}
	if len(seen) != workers {
		t.Errorf("expected %d distinct versions, got %d", workers, len(seen))
	}
}

func TestMemoryRepository_StoreRefreshCompareAndSwap(t *testing.T) {
	repo, clk := newTestRepo(t)
	ctx := context.Background()
	expiry := clk.Now().Add(time.Hour)

	if err := repo.StoreRefresh(ctx, "acc-1", domain.Session{}, "hash-a", expiry); err != nil {
		t.Fatalf("expected store to succeed, got %v", err)
	}

	if err := repo.StoreRefresh(ctx, "acc-1", domain.Session{}, "hash-b", expiry); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected stale hash to conflict, got %v", err)
	}

	if _, err := repo.ReadVersion(ctx, "acc-1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stale := domain.Session{TokenVersion: 0, RefreshTokenHash: "hash-a"}
	if err := repo.StoreRefresh(ctx, "acc-1", stale, "hash-b", expiry); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected stale version to conflict, got %v", err)
	}

	session, _ := repo.FindSession(ctx, "acc-1")
	if session.RefreshTokenHash != "hash-a" || !session.Active {
		t.Errorf("expected first hash to survive, got %+v", session)
	}

	if err := repo.StoreRefresh(ctx, "missing", domain.Session{}, "h", expiry); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestMemoryRepository_RevokeSession(t *testing.T) {
	repo, clk := newTestRepo(t)
	ctx := context.Background()
	_ = repo.StoreRefresh(ctx, "acc-1", domain.Session{}, "hash-a", clk.Now().Add(time.Hour))

	v, err := repo.RevokeSession(ctx, "acc-1", 4242)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if v != 4242 {
		t.Errorf("expected version 4242, got %d", v)
	}

	session, _ := repo.FindSession(ctx, "acc-1")
	if session.HasRefreshToken() || session.RefreshTokenExpiry != nil || session.Active {
		t.Errorf("expected cleared refresh material, got %+v", session)
	}

	if _, err := repo.FindByIDAndVersion(ctx, "acc-1", 0); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected old version lookup to fail, got %v", err)
	}
	if _, err := repo.FindByIDAndVersion(ctx, "acc-1", 4242); err != nil {
		t.Errorf("expected current version lookup to succeed, got %v", err)
	}

	if _, err := repo.RevokeSession(ctx, "acc-1", 0); !errors.Is(err, ErrInvalidRevokeAmount) {
		t.Errorf("expected ErrInvalidRevokeAmount, got %v", err)
	}
}

func TestMemoryRepository_ClearRefreshKeepsVersion(t *testing.T) {
	repo, clk := newTestRepo(t)
	ctx := context.Background()
	_, _ = repo.ReadVersion(ctx, "acc-1", true)
	_ = repo.StoreRefresh(ctx, "acc-1", domain.Session{TokenVersion: 1}, "hash", clk.Now().Add(time.Hour))

	if err := repo.ClearRefresh(ctx, "acc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	session, _ := repo.FindSession(ctx, "acc-1")
	if session.TokenVersion != 1 || session.HasRefreshToken() {
		t.Errorf("unexpected session after clear: %+v", session)
	}
}

func TestMemoryRepository_ActivateAndOTP(t *testing.T) {
	repo, clk := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SetOTP(ctx, "acc-1", "otp-hash", clk.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Activate(ctx, "acc-1", "REF12345"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acc, _ := repo.FindByTelephone(ctx, "+2348000000001")
	if acc.Status != domain.StatusActive || acc.OTPHash != "" || acc.OTPExpiry != nil {
		t.Errorf("unexpected account after activation: %+v", acc)
	}
	if acc.ReferralCode != "REF12345" {
		t.Errorf("expected referral code to be assigned, got %q", acc.ReferralCode)
	}

	if err := repo.Activate(ctx, "acc-1", "OTHER"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	acc, _ = repo.FindByID(ctx, "acc-1")
	if acc.ReferralCode != "REF12345" {
		t.Errorf("expected existing referral code to be kept, got %q", acc.ReferralCode)
	}
}

func TestMemoryRepository_Sweeps(t *testing.T) {
	repo, clk := newTestRepo(t)
	ctx := context.Background()
	now := clk.Now()

	_ = repo.StoreRefresh(ctx, "acc-1", domain.Session{}, "hash", now.Add(-2*time.Hour))
	_ = repo.SetOTP(ctx, "acc-1", "otp", now.Add(-time.Minute))

	cleared, err := repo.ClearStaleSessions(ctx, now.Add(-3*time.Hour))
	if err != nil || cleared != 0 {
		t.Fatalf("expected nothing cleared before cutoff, got %d (%v)", cleared, err)
	}

	cleared, _ = repo.ClearStaleSessions(ctx, now)
	if cleared != 1 {
		t.Errorf("expected 1 stale session cleared, got %d", cleared)
	}

	cleared, _ = repo.ClearExpiredOTPs(ctx, now)
	if cleared != 1 {
		t.Errorf("expected 1 otp cleared, got %d", cleared)
	}

	session, _ := repo.FindSession(ctx, "acc-1")
	if session.HasRefreshToken() || session.TokenVersion != 0 {
		t.Errorf("expected refresh cleared and version kept, got %+v", session)
	}
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo, clk := newTestRepo(t)
	ctx := context.Background()
	_ = repo.StoreRefresh(ctx, "acc-1", domain.Session{}, "hash", clk.Now().Add(time.Hour))

	session, _ := repo.FindSession(ctx, "acc-1")
	*session.RefreshTokenExpiry = time.Time{}

	again, _ := repo.FindSession(ctx, "acc-1")
	if again.RefreshTokenExpiry.IsZero() {
		t.Fatal("mutating a returned session must not change stored state")
	}
}

func TestMemoryRepository_ListNewestFirst(t *testing.T) {
	repo, clk := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []domain.ID{"acc-3", "acc-2"} {
		clk.Advance(time.Minute)
		err := repo.Create(ctx, domain.Account{ID: id, Email: string(id) + "@example.com", TelephoneNumber: "+234800000000" + string(id[len(id)-1])})
		if err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	cases := []struct {
		limit, offset int
		want          []domain.ID
	}{
		{10, 0, []domain.ID{"acc-2", "acc-3", "acc-1"}},
		{2, 0, []domain.ID{"acc-2", "acc-3"}},
		{2, 2, []domain.ID{"acc-1"}},
		{2, 3, nil},
	}

	for _, tc := range cases {
		got, err := repo.List(ctx, tc.limit, tc.offset)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != len(tc.want) {
			t.Errorf("limit=%d offset=%d: got %d accounts, want %d", tc.limit, tc.offset, len(got), len(tc.want))
			continue
		}
		for i, id := range tc.want {
			if got[i].ID != id {
				t.Errorf("limit=%d offset=%d: position %d is %s, want %s", tc.limit, tc.offset, i, got[i].ID, id)
			}
		}
	}
}
