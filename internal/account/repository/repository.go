package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AlibekovAA/fincore/internal/account/domain"
)

// Repository persists accounts. Session fields are written only through
// ReadVersion, StoreRefresh, ClearRefresh and RevokeSession.
type Repository interface {
	Create(ctx context.Context, account domain.Account) error
	FindByID(ctx context.Context, id domain.ID) (domain.Account, error)
	FindByEmail(ctx context.Context, email string) (domain.Account, error)
	FindByTelephone(ctx context.Context, telephone string) (domain.Account, error)
	FindByIDAndVersion(ctx context.Context, id domain.ID, version int64) (domain.Account, error)
	FindSession(ctx context.Context, id domain.ID) (domain.Session, error)
	// List returns accounts newest first.
	List(ctx context.Context, limit, offset int) ([]domain.Account, error)

	// ReadVersion returns the current token version. With increment set the
	// version is bumped by one and the new value returned, in one statement.
	ReadVersion(ctx context.Context, id domain.ID, increment bool) (int64, error)
	// StoreRefresh writes the refresh hash and expiry only while the stored
	// version and refresh hash still equal those in expected, otherwise ErrVersionConflict.
	StoreRefresh(ctx context.Context, id domain.ID, expected domain.Session, hash string, expiry time.Time) error
	ClearRefresh(ctx context.Context, id domain.ID) error
	// RevokeSession clears refresh material and adds bump to the version, returning the new version.
	RevokeSession(ctx context.Context, id domain.ID, bump int64) (int64, error)

	SetOTP(ctx context.Context, id domain.ID, hash string, expiry time.Time) error
	Activate(ctx context.Context, id domain.ID, referralCode string) error

	ClearStaleSessions(ctx context.Context, cutoff time.Time) (int64, error)
	ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrVersionConflict     = errors.New("token version changed")
	ErrEmailExists         = errors.New("email already registered")
	ErrTelephoneExists     = errors.New("telephone number already registered")
	ErrReferralCodeExists  = errors.New("referral code already taken")
	ErrInvalidRevokeAmount = errors.New("revocation bump must be positive")
)
