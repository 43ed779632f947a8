package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AlibekovAA/fincore/internal/account/domain"
	accountrepo "github.com/AlibekovAA/fincore/internal/account/repository"
	"github.com/AlibekovAA/fincore/internal/auth/token"
	"github.com/AlibekovAA/fincore/internal/common/clock"
	"github.com/AlibekovAA/fincore/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/fincore/internal/common/crypto"
	"github.com/AlibekovAA/fincore/internal/common/logger"
	"github.com/AlibekovAA/fincore/internal/common/resilience"
)

type TokenCodec interface {
	Sign(kind token.Kind, subject string, version int64) (token.Signed, error)
	Parse(kind token.Kind, raw string) (token.Claims, error)
}

// TokenWriter is the transport that carries tokens back to the client.
type TokenWriter interface {
	SetAccessToken(value string, maxAge time.Duration)
	SetRefreshToken(value string, maxAge time.Duration)
}

type SessionTokens struct {
	AccessToken      string        `json:"access_token"`
	AccessExpiresAt  time.Time     `json:"access_expires_at"`
	AccessMaxAge     time.Duration `json:"access_max_age"`
	RefreshToken     string        `json:"refresh_token,omitempty"`
	RefreshExpiresAt time.Time     `json:"refresh_expires_at,omitempty"`
	RefreshMaxAge    time.Duration `json:"refresh_max_age,omitempty"`
	TokenVersion     int64         `json:"token_version"`
}

// HasRefreshToken is false for a pure rotation, where only the access token changes.
func (t SessionTokens) HasRefreshToken() bool {
	return t.RefreshToken != ""
}

// TokenService owns the session fields of every account. Nothing else writes them.
type TokenService struct {
	repo      accountrepo.Repository
	codec     TokenCodec
	hasher    commoncrypto.PasswordHasher
	cache     RefreshResultCache
	dbBreaker resilience.CircuitBreakerInterface
	flights   singleflight.Group
	clock     clock.Clock
	log       *logger.Logger
}

func NewTokenService(
	repo accountrepo.Repository,
	codec TokenCodec,
	hasher commoncrypto.PasswordHasher,
	cache RefreshResultCache,
	dbBreaker resilience.CircuitBreakerInterface,
	clock clock.Clock,
	log *logger.Logger,
) *TokenService {
	return &TokenService{
		repo:      repo,
		codec:     codec,
		hasher:    hasher,
		cache:     cache,
		dbBreaker: dbBreaker,
		clock:     clock,
		log:       log,
	}
}

// IssueSession mints tokens for accountID. With rotateVersion set it bumps the
// version by one and returns only a new access token. Otherwise it keeps the
// version, mints a refresh token too and stores its hash.
func (s *TokenService) IssueSession(ctx context.Context, accountID domain.ID, rotateVersion bool) (SessionTokens, error) {
	if rotateVersion {
		return s.rotateAccess(ctx, accountID)
	}

	for attempt := 1; attempt <= constants.SessionIssueMaxAttempts; attempt++ {
		session, err := s.findSession(ctx, accountID)
		if err != nil {
			return SessionTokens{}, err
		}

		tokens, hash, err := s.mintFull(ctx, accountID, session.TokenVersion)
		if err != nil {
			return SessionTokens{}, err
		}

		err = s.storeRefresh(ctx, accountID, session, hash, tokens.RefreshExpiresAt)
		if err == nil {
			return tokens, nil
		}
		if !errors.Is(err, ErrSessionConflict) {
			return SessionTokens{}, err
		}

		incrementIssueConflicts()
		s.log.WithFields(ctx, logger.Fields{
			"account_id": string(accountID),
			"attempt":    attempt,
			"action":     "issue_session_conflict",
		}).Warn("session changed while issuing, retrying")
	}

	return SessionTokens{}, ErrSessionConflict
}

// ValidateRefresh checks a presented refresh token against the stored hash and
// rotates. Concurrent calls with the same token share one result.
func (s *TokenService) ValidateRefresh(ctx context.Context, accountID domain.ID, presented string) (SessionTokens, error) {
	key := refreshKey(accountID, presented)

	v, err, shared := s.flights.Do(key, func() (any, error) {
		return s.validateRefresh(context.WithoutCancel(ctx), accountID, presented, key)
	})
	if shared {
		incrementRefreshCoalesced("inflight")
	}
	if err != nil {
		return SessionTokens{}, err
	}
	return v.(SessionTokens), nil
}

// CompleteRefreshFlow validates and writes the resulting tokens to w. The
// refresh token is written whenever a new one was minted.
func (s *TokenService) CompleteRefreshFlow(ctx context.Context, w TokenWriter, accountID domain.ID, presented string) (SessionTokens, error) {
	tokens, err := s.ValidateRefresh(ctx, accountID, presented)
	if err != nil {
		return SessionTokens{}, err
	}

	w.SetAccessToken(tokens.AccessToken, tokens.AccessMaxAge)
	if tokens.HasRefreshToken() {
		w.SetRefreshToken(tokens.RefreshToken, tokens.RefreshMaxAge)
	}
	return tokens, nil
}

// RevokeSession clears refresh material and moves the version by a random
// amount, voiding every token issued so far.
func (s *TokenService) RevokeSession(ctx context.Context, accountID domain.ID, trigger string) (int64, error) {
	bump, err := commoncrypto.RandomInt(constants.RevocationBumpMin, constants.RevocationBumpMax)
	if err != nil {
		return 0, newInternalError("REVOCATION_RANDOM_FAILED", "failed to revoke session", err)
	}

	var version int64
	err = s.dbBreaker.Call(ctx, func(ctx context.Context) error {
		var err error
		version, err = s.repo.RevokeSession(ctx, accountID, bump)
		return err
	})
	if err != nil {
		return 0, s.repoError(ctx, accountID, "revoke_session", err)
	}

	incrementRevocations(trigger)
	s.log.WithFields(ctx, logger.Fields{
		"account_id": string(accountID),
		"trigger":    trigger,
		"action":     "session_revoked",
	}).Info("session revoked")
	return version, nil
}

// ClearRefresh drops the stored refresh token without moving the version.
func (s *TokenService) ClearRefresh(ctx context.Context, accountID domain.ID) error {
	err := s.dbBreaker.Call(ctx, func(ctx context.Context) error {
		return s.repo.ClearRefresh(ctx, accountID)
	})
	if err != nil {
		return s.repoError(ctx, accountID, "clear_refresh", err)
	}
	return nil
}

func (s *TokenService) validateRefresh(ctx context.Context, accountID domain.ID, presented, key string) (SessionTokens, error) {
	for attempt := 1; attempt <= constants.SessionIssueMaxAttempts; attempt++ {
		session, err := s.findSession(ctx, accountID)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				incrementRefreshFailure("account_not_found")
			}
			return SessionTokens{}, err
		}

		if tokens, ok := s.cachedResult(ctx, key, accountID, session); ok {
			return tokens, nil
		}

		if !session.HasRefreshToken() {
			incrementRefreshFailure("not_found")
			s.log.WithFields(ctx, logger.Fields{
				"account_id": string(accountID),
				"action":     "refresh_token_not_found",
			}).Warn("refresh attempted without a stored refresh token")
			return SessionTokens{}, ErrRefreshTokenNotFound
		}

		match, err := s.hasher.Verify(session.RefreshTokenHash, presented)
		if err != nil {
			s.log.WithFields(ctx, logger.Fields{
				"account_id": string(accountID),
				"action":     "refresh_hash_unreadable",
			}).Errorf("stored refresh hash could not be read: %v", err)
		}
		if err != nil || !match {
			incrementRefreshFailure("hash_mismatch")
			s.log.WithFields(ctx, logger.Fields{
				"account_id": string(accountID),
				"action":     "refresh_hash_mismatch",
			}).Warn("presented refresh token does not match stored hash")
			return SessionTokens{}, ErrInvalidRefreshToken
		}

		if !session.RefreshExpired(s.clock.Now()) {
			tokens, err := s.rotateAccess(ctx, accountID)
			if err != nil {
				return SessionTokens{}, err
			}
			s.remember(ctx, key, RefreshResult{
				AccountID:    string(accountID),
				TokenVersion: tokens.TokenVersion,
				StoredHash:   session.RefreshTokenHash,
				Tokens:       tokens,
			})
			s.log.WithFields(ctx, logger.Fields{
				"account_id": string(accountID),
				"version":    tokens.TokenVersion,
				"action":     "refresh_rotated",
			}).Debug("access token rotated")
			return tokens, nil
		}

		tokens, err := s.recoverSoftExpired(ctx, accountID, session, key)
		if err == nil {
			return tokens, nil
		}
		if !errors.Is(err, ErrSessionConflict) {
			return SessionTokens{}, err
		}
		incrementIssueConflicts()
	}

	return SessionTokens{}, ErrSessionConflict
}

// recoverSoftExpired reissues a full session from a refresh token whose stored
// expiry has passed. The result is claimed in the cache before the conditional
// write. A request that finds another claim waits until that claim's hash is
// stored before handing out its tokens. A claim whose write fails is released.
func (s *TokenService) recoverSoftExpired(ctx context.Context, accountID domain.ID, session domain.Session, key string) (SessionTokens, error) {
	tokens, hash, err := s.mintFull(ctx, accountID, session.TokenVersion)
	if err != nil {
		return SessionTokens{}, err
	}

	if pending, ok := s.claim(ctx, key, session, RefreshResult{
		AccountID:    string(accountID),
		TokenVersion: tokens.TokenVersion,
		StoredHash:   hash,
		Tokens:       tokens,
	}); !ok {
		if err := s.awaitStored(ctx, accountID, pending.StoredHash); err != nil {
			return SessionTokens{}, err
		}
		incrementRefreshCoalesced("pending")
		return pending.Tokens, nil
	}

	if err := s.storeRefresh(ctx, accountID, session, hash, tokens.RefreshExpiresAt); err != nil {
		s.release(ctx, key, accountID)
		return SessionTokens{}, err
	}

	incrementSoftExpiryRecoveries()
	s.log.WithFields(ctx, logger.Fields{
		"account_id": string(accountID),
		"version":    tokens.TokenVersion,
		"action":     "refresh_soft_expired",
	}).Info("session reissued from expired refresh token")
	return tokens, nil
}

func (s *TokenService) rotateAccess(ctx context.Context, accountID domain.ID) (SessionTokens, error) {
	var version int64
	err := s.dbBreaker.Call(ctx, func(ctx context.Context) error {
		var err error
		version, err = s.repo.ReadVersion(ctx, accountID, true)
		return err
	})
	if err != nil {
		return SessionTokens{}, s.repoError(ctx, accountID, "read_version", err)
	}

	access, err := s.sign(token.Access, accountID, version)
	if err != nil {
		return SessionTokens{}, err
	}

	incrementSessionRotations()
	return SessionTokens{
		AccessToken:     access.Token,
		AccessExpiresAt: access.ExpiresAt,
		AccessMaxAge:    access.MaxAge,
		TokenVersion:    version,
	}, nil
}

func (s *TokenService) mintFull(ctx context.Context, accountID domain.ID, version int64) (SessionTokens, string, error) {
	access, err := s.sign(token.Access, accountID, version)
	if err != nil {
		return SessionTokens{}, "", err
	}
	refresh, err := s.sign(token.Refresh, accountID, version)
	if err != nil {
		return SessionTokens{}, "", err
	}

	hash, err := s.hasher.Hash(refresh.Token)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": string(accountID),
			"action":     "refresh_hash_failed",
		}).Errorf("failed to hash refresh token: %v", err)
		return SessionTokens{}, "", newInternalError("TOKEN_HASH_FAILED", "failed to issue session", err)
	}

	return SessionTokens{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.ExpiresAt,
		AccessMaxAge:     access.MaxAge,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
		RefreshMaxAge:    refresh.MaxAge,
		TokenVersion:     version,
	}, hash, nil
}

func (s *TokenService) sign(kind token.Kind, accountID domain.ID, version int64) (token.Signed, error) {
	signed, err := s.codec.Sign(kind, string(accountID), version)
	if err != nil {
		return token.Signed{}, newInternalError("TOKEN_SIGN_FAILED", "failed to issue session", err)
	}
	if kind == token.Refresh {
		incrementRefreshTokensIssued()
	} else {
		incrementAccessTokensIssued()
	}
	return signed, nil
}

func (s *TokenService) storeRefresh(ctx context.Context, accountID domain.ID, expected domain.Session, hash string, expiry time.Time) error {
	err := s.dbBreaker.Call(ctx, func(ctx context.Context) error {
		return s.repo.StoreRefresh(ctx, accountID, expected, hash, expiry)
	})
	if err != nil {
		return s.repoError(ctx, accountID, "store_refresh", err)
	}
	return nil
}

func (s *TokenService) findSession(ctx context.Context, accountID domain.ID) (domain.Session, error) {
	var session domain.Session
	err := s.dbBreaker.Call(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.repo.FindSession(ctx, accountID)
		return err
	})
	if err != nil {
		return domain.Session{}, s.repoError(ctx, accountID, "find_session", err)
	}
	return session, nil
}

func (s *TokenService) cachedResult(ctx context.Context, key string, accountID domain.ID, session domain.Session) (SessionTokens, bool) {
	if s.cache == nil {
		return SessionTokens{}, false
	}

	result, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": string(accountID),
			"action":     "refresh_cache_get_failed",
		}).Warnf("refresh result cache unavailable: %v", err)
		return SessionTokens{}, false
	}
	if !ok {
		return SessionTokens{}, false
	}

	if result.AccountID != string(accountID) ||
		result.TokenVersion != session.TokenVersion ||
		result.StoredHash != session.RefreshTokenHash {
		return SessionTokens{}, false
	}

	incrementRefreshCoalesced("cache")
	return result.Tokens, true
}

func (s *TokenService) remember(ctx context.Context, key string, result RefreshResult) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, result); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": result.AccountID,
			"action":     "refresh_cache_set_failed",
		}).Warnf("failed to cache refresh result: %v", err)
	}
}

// claim caches a soft-expiry result unless another recovery of the same token
// against the same session already did, in which case that result is returned
// with ok=false. Leftover entries from earlier rotations are overwritten.
func (s *TokenService) claim(ctx context.Context, key string, session domain.Session, result RefreshResult) (RefreshResult, bool) {
	if s.cache == nil {
		return RefreshResult{}, true
	}

	added, err := s.cache.SetNX(ctx, key, result)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": result.AccountID,
			"action":     "refresh_cache_set_failed",
		}).Warnf("failed to cache refresh result: %v", err)
		return RefreshResult{}, true
	}
	if added {
		return RefreshResult{}, true
	}

	existing, ok, err := s.cache.Get(ctx, key)
	if err == nil && ok &&
		existing.AccountID == result.AccountID &&
		existing.TokenVersion == session.TokenVersion &&
		existing.StoredHash != session.RefreshTokenHash &&
		existing.Tokens.HasRefreshToken() {
		return existing, false
	}

	s.remember(ctx, key, result)
	return RefreshResult{}, true
}

// release drops a claim whose refresh hash never reached the store.
func (s *TokenService) release(ctx context.Context, key string, accountID domain.ID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": string(accountID),
			"action":     "refresh_cache_delete_failed",
		}).Warnf("failed to release refresh claim: %v", err)
	}
}

// awaitStored polls the store until storedHash is the account's refresh hash.
// A claim that is not persisted in time is reported as a conflict so the caller
// re-reads the session.
func (s *TokenService) awaitStored(ctx context.Context, accountID domain.ID, storedHash string) error {
	for poll := 0; poll < constants.RefreshPendingMaxPolls; poll++ {
		session, err := s.findSession(ctx, accountID)
		if err != nil {
			return err
		}
		if session.RefreshTokenHash == storedHash {
			return nil
		}

		timer := time.NewTimer(constants.RefreshPendingPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return ErrSessionConflict
}

func (s *TokenService) repoError(ctx context.Context, accountID domain.ID, operation string, err error) error {
	mapped := mapRepositoryError(err)
	if errors.Is(mapped, ErrPersistence) || errors.Is(mapped, ErrServiceUnavailable) {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": string(accountID),
			"operation":  operation,
			"action":     "session_store_failed",
		}).Errorf("session store failure: %v", err)
	}
	return mapped
}

// refreshKey never embeds the raw token.
func refreshKey(accountID domain.ID, presented string) string {
	sum := sha256.Sum256([]byte(presented))
	return string(accountID) + ":" + hex.EncodeToString(sum[:])
}
