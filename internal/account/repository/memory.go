package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AlibekovAA/fincore/internal/account/domain"
	"github.com/AlibekovAA/fincore/internal/common/clock"
)

// MemoryRepository keeps accounts in process. Each method holds the lock for
// its whole read-modify-write, which gives the same atomicity as the
// single-statement updates of PgRepository.
type MemoryRepository struct {
	mu          sync.RWMutex
	clock       clock.Clock
	accounts    map[domain.ID]domain.Account
	byEmail     map[string]domain.ID
	byTelephone map[string]domain.ID
	byReferral  map[string]domain.ID
}

func NewMemoryRepository(clk clock.Clock) *MemoryRepository {
	return &MemoryRepository{
		clock:       clk,
		accounts:    make(map[domain.ID]domain.Account),
		byEmail:     make(map[string]domain.ID),
		byTelephone: make(map[string]domain.ID),
		byReferral:  make(map[string]domain.ID),
	}
}

func (r *MemoryRepository) Create(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[account.Email]; ok {
		return ErrEmailExists
	}
	if _, ok := r.byTelephone[account.TelephoneNumber]; ok {
		return ErrTelephoneExists
	}
	if account.ReferralCode != "" {
		if _, ok := r.byReferral[account.ReferralCode]; ok {
			return ErrReferralCodeExists
		}
	}

	now := r.clock.Now()
	account.Session = domain.Session{}
	account.CreatedAt = now
	account.UpdatedAt = now
	account.OTPExpiry = copyTime(account.OTPExpiry)

	r.accounts[account.ID] = account
	r.byEmail[account.Email] = account.ID
	r.byTelephone[account.TelephoneNumber] = account.ID
	if account.ReferralCode != "" {
		r.byReferral[account.ReferralCode] = account.ID
	}
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id domain.ID) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id)
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return domain.Account{}, ErrAccountNotFound
	}
	return r.get(id)
}

func (r *MemoryRepository) FindByTelephone(_ context.Context, telephone string) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byTelephone[telephone]
	if !ok {
		return domain.Account{}, ErrAccountNotFound
	}
	return r.get(id)
}

func (r *MemoryRepository) FindByIDAndVersion(_ context.Context, id domain.ID, version int64) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, err := r.get(id)
	if err != nil {
		return domain.Account{}, err
	}
	if account.Session.TokenVersion != version {
		return domain.Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (r *MemoryRepository) FindSession(_ context.Context, id domain.ID) (domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, err := r.get(id)
	if err != nil {
		return domain.Session{}, err
	}
	return account.Session, nil
}

func (r *MemoryRepository) ReadVersion(_ context.Context, id domain.ID, increment bool) (int64, error) {
	if !increment {
		r.mu.RLock()
		defer r.mu.RUnlock()
		account, err := r.get(id)
		if err != nil {
			return 0, err
		}
		return account.Session.TokenVersion, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return 0, ErrAccountNotFound
	}
	account.Session.TokenVersion++
	account.UpdatedAt = r.clock.Now()
	r.accounts[id] = account
	return account.Session.TokenVersion, nil
}

func (r *MemoryRepository) StoreRefresh(_ context.Context, id domain.ID, expected domain.Session, hash string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if account.Session.TokenVersion != expected.TokenVersion || account.Session.RefreshTokenHash != expected.RefreshTokenHash {
		return ErrVersionConflict
	}

	account.Session.RefreshTokenHash = hash
	account.Session.RefreshTokenExpiry = &expiry
	account.Session.Active = true
	account.UpdatedAt = r.clock.Now()
	r.accounts[id] = account
	return nil
}

func (r *MemoryRepository) ClearRefresh(_ context.Context, id domain.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	account.Session = domain.Session{TokenVersion: account.Session.TokenVersion}
	account.UpdatedAt = r.clock.Now()
	r.accounts[id] = account
	return nil
}

func (r *MemoryRepository) RevokeSession(_ context.Context, id domain.ID, bump int64) (int64, error) {
	if bump <= 0 {
		return 0, ErrInvalidRevokeAmount
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return 0, ErrAccountNotFound
	}
	account.Session = domain.Session{TokenVersion: account.Session.TokenVersion + bump}
	account.UpdatedAt = r.clock.Now()
	r.accounts[id] = account
	return account.Session.TokenVersion, nil
}

func (r *MemoryRepository) SetOTP(_ context.Context, id domain.ID, hash string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	account.OTPHash = hash
	account.OTPExpiry = &expiry
	account.UpdatedAt = r.clock.Now()
	r.accounts[id] = account
	return nil
}

func (r *MemoryRepository) Activate(_ context.Context, id domain.ID, referralCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if account.ReferralCode == "" && referralCode != "" {
		if _, taken := r.byReferral[referralCode]; taken {
			return ErrReferralCodeExists
		}
		account.ReferralCode = referralCode
		r.byReferral[referralCode] = id
	}
	account.Status = domain.StatusActive
	account.OTPHash = ""
	account.OTPExpiry = nil
	account.UpdatedAt = r.clock.Now()
	r.accounts[id] = account
	return nil
}

func (r *MemoryRepository) ClearStaleSessions(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cleared int64
	for id, account := range r.accounts {
		s := account.Session
		if s.RefreshTokenHash == "" || s.RefreshTokenExpiry == nil || !s.RefreshTokenExpiry.Before(cutoff) {
			continue
		}
		account.Session = domain.Session{TokenVersion: s.TokenVersion}
		r.accounts[id] = account
		cleared++
	}
	return cleared, nil
}

func (r *MemoryRepository) ClearExpiredOTPs(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cleared int64
	for id, account := range r.accounts {
		if account.OTPHash == "" || account.OTPExpiry == nil || !account.OTPExpiry.Before(now) {
			continue
		}
		account.OTPHash = ""
		account.OTPExpiry = nil
		r.accounts[id] = account
		cleared++
	}
	return cleared, nil
}

func (r *MemoryRepository) List(_ context.Context, limit, offset int) ([]domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]domain.ID, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := r.accounts[ids[i]], r.accounts[ids[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	if offset >= len(ids) {
		return []domain.Account{}, nil
	}
	ids = ids[offset:]
	if limit < len(ids) {
		ids = ids[:limit]
	}

	accounts := make([]domain.Account, 0, len(ids))
	for _, id := range ids {
		account, _ := r.get(id)
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// get returns a copy so callers cannot mutate stored pointers. Caller holds the lock.
func (r *MemoryRepository) get(id domain.ID) (domain.Account, error) {
	account, ok := r.accounts[id]
	if !ok {
		return domain.Account{}, ErrAccountNotFound
	}
	account.OTPExpiry = copyTime(account.OTPExpiry)
	account.Session.RefreshTokenExpiry = copyTime(account.Session.RefreshTokenExpiry)
	return account, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
