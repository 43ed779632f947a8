package service

import (
	"context"
	"errors"

	"github.com/AlibekovAA/fincore/internal/account/domain"
	accountrepo "github.com/AlibekovAA/fincore/internal/account/repository"
	"github.com/AlibekovAA/fincore/internal/auth/token"
	"github.com/AlibekovAA/fincore/internal/common/logger"
	"github.com/AlibekovAA/fincore/internal/common/resilience"
)

// IdentityStrategy is the single revocation check: an access token is good
// only while its embedded version equals the account's current version.
type IdentityStrategy struct {
	repo      accountrepo.Repository
	codec     TokenCodec
	dbBreaker resilience.CircuitBreakerInterface
	log       *logger.Logger
}

func NewIdentityStrategy(
	repo accountrepo.Repository,
	codec TokenCodec,
	dbBreaker resilience.CircuitBreakerInterface,
	log *logger.Logger,
) *IdentityStrategy {
	return &IdentityStrategy{
		repo:      repo,
		codec:     codec,
		dbBreaker: dbBreaker,
		log:       log,
	}
}

func (s *IdentityStrategy) Verify(ctx context.Context, claims token.Claims) (domain.Account, error) {
	incrementIdentityVerifications()

	var account domain.Account
	err := s.dbBreaker.Call(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.repo.FindByIDAndVersion(ctx, domain.ID(claims.AccountID()), claims.TokenVersion)
		return err
	})
	if err != nil {
		mapped := mapRepositoryError(err)
		if errors.Is(mapped, ErrAccountNotFound) {
			incrementIdentityFailure("version_mismatch_or_missing")
			s.log.WithFields(ctx, logger.Fields{
				"account_id": claims.AccountID(),
				"version":    claims.TokenVersion,
				"action":     "identity_version_mismatch",
			}).Warn("account not found or token version mismatch")
			return domain.Account{}, ErrAccountNotFound
		}
		incrementIdentityFailure("store_error")
		s.log.WithFields(ctx, logger.Fields{
			"account_id": claims.AccountID(),
			"action":     "identity_lookup_failed",
		}).Errorf("identity lookup failed: %v", err)
		return domain.Account{}, mapped
	}

	return account, nil
}

// Authenticate parses a raw access token and verifies it.
func (s *IdentityStrategy) Authenticate(ctx context.Context, rawAccess string) (domain.Account, error) {
	claims, err := s.codec.Parse(token.Access, rawAccess)
	if err != nil {
		incrementIdentityFailure("token_invalid")
		return domain.Account{}, ErrInvalidToken.WithCause(err)
	}
	return s.Verify(ctx, claims)
}
