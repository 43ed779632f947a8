package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AlibekovAA/fincore/internal/account/domain"
	"github.com/AlibekovAA/fincore/internal/account/mapper"
	accountrepo "github.com/AlibekovAA/fincore/internal/account/repository"
	"github.com/AlibekovAA/fincore/internal/common/clock"
	"github.com/AlibekovAA/fincore/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/fincore/internal/common/crypto"
	"github.com/AlibekovAA/fincore/internal/common/logger"
	"github.com/AlibekovAA/fincore/internal/common/resilience"
)

const referralCodeAttempts = 3

type SignupInput struct {
	FirstName       string
	LastName        string
	Email           string
	TelephoneNumber string
	DOB             string
	ReferredBy      string
}

type SessionResult struct {
	Tokens  SessionTokens
	Account mapper.Account
}

type AccountService struct {
	repo        accountrepo.Repository
	tokens      *TokenService
	hasher      commoncrypto.PasswordHasher
	idGenerator commoncrypto.IDGenerator
	otpSender   OTPSender
	dbBreaker   resilience.CircuitBreakerInterface
	otpTTL      time.Duration
	clock       clock.Clock
	log         *logger.Logger
}

func NewAccountService(
	repo accountrepo.Repository,
	tokens *TokenService,
	hasher commoncrypto.PasswordHasher,
	idGenerator commoncrypto.IDGenerator,
	otpSender OTPSender,
	dbBreaker resilience.CircuitBreakerInterface,
	otpTTL time.Duration,
	clock clock.Clock,
	log *logger.Logger,
) *AccountService {
	if otpTTL <= 0 {
		otpTTL = constants.DefaultOTPTTL
	}
	return &AccountService{
		repo:        repo,
		tokens:      tokens,
		hasher:      hasher,
		idGenerator: idGenerator,
		otpSender:   otpSender,
		dbBreaker:   dbBreaker,
		otpTTL:      otpTTL,
		clock:       clock,
		log:         log,
	}
}

// Signup creates a pending account and sends its activation OTP.
func (s *AccountService) Signup(ctx context.Context, input SignupInput) (mapper.Account, error) {
	input.Email = normalizeEmail(input.Email)
	input.TelephoneNumber = normalizeTelephone(input.TelephoneNumber)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)

	s.log.WithFields(ctx, logger.Fields{
		"email":  input.Email,
		"action": "signup_attempt",
	}).Info("signup attempt")

	if err := validateSignup(input); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"email":  input.Email,
			"action": "signup_validation_failed",
		}).Warnf("signup validation failed: %v", err)
		return mapper.Account{}, err
	}

	id, err := s.idGenerator.NewID()
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"email":  input.Email,
			"action": "signup_id_generation_failed",
		}).Errorf("signup failed: id generation error: %v", err)
		return mapper.Account{}, newInternalError("ID_GENERATION_FAILED", "failed to create account", err)
	}

	code, hash, expiry, err := s.newOTP()
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"email":  input.Email,
			"action": "signup_otp_failed",
		}).Errorf("signup failed: otp generation error: %v", err)
		return mapper.Account{}, err
	}

	account := domain.Account{
		ID:              domain.ID(id),
		FirstName:       input.FirstName,
		LastName:        input.LastName,
		Email:           input.Email,
		TelephoneNumber: input.TelephoneNumber,
		DOB:             input.DOB,
		ReferredBy:      strings.TrimSpace(input.ReferredBy),
		Role:            domain.RoleUser,
		Status:          domain.StatusPending,
		OTPHash:         hash,
		OTPExpiry:       &expiry,
	}

	err = s.call(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, account)
	})
	if err != nil {
		mapped := mapRepositoryError(err)
		if errors.Is(mapped, ErrEmailTaken) || errors.Is(mapped, ErrTelephoneTaken) {
			s.log.WithFields(ctx, logger.Fields{
				"email":  input.Email,
				"action": "signup_duplicate",
			}).Warnf("signup rejected: %v", mapped)
			return mapper.Account{}, mapped
		}
		s.log.WithFields(ctx, logger.Fields{
			"email":  input.Email,
			"action": "signup_create_failed",
		}).Errorf("signup failed: %v", err)
		return mapper.Account{}, mapped
	}

	created, err := s.findAccount(ctx, account.ID)
	if err != nil {
		return mapper.Account{}, err
	}

	s.sendOTP(ctx, created, OTPFlowActivate, code)

	s.log.WithFields(ctx, logger.Fields{
		"account_id": string(created.ID),
		"action":     "signup_success",
	}).Info("signup success")

	return mapper.AccountToDTO(created), nil
}

// VerifyOTP checks the OTP for telephone, activates the account and opens a
// new session.
func (s *AccountService) VerifyOTP(ctx context.Context, telephone, otp string) (SessionResult, error) {
	telephone = normalizeTelephone(telephone)
	otp = strings.TrimSpace(otp)

	if err := validateTelephone(telephone); err != nil {
		return SessionResult{}, err
	}
	if err := validateOTP(otp); err != nil {
		return SessionResult{}, err
	}

	account, err := s.findByTelephone(ctx, telephone)
	if err != nil {
		return SessionResult{}, err
	}

	if account.OTPHash == "" {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": string(account.ID),
			"action":     "otp_missing",
		}).Warn("otp verification without a pending otp")
		return SessionResult{}, ErrInvalidOTP
	}

	match, err := s.hasher.Verify(account.OTPHash, otp)
	if err != nil || !match {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": string(account.ID),
			"action":     "otp_mismatch",
		}).Warn("otp verification failed")
		return SessionResult{}, ErrInvalidOTP
	}

	if account.OTPExpiry != nil && account.OTPExpiry.Before(s.clock.Now()) {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": string(account.ID),
			"action":     "otp_expired",
		}).Warn("otp expired")
		return SessionResult{}, ErrInvalidOTP
	}

	if err := s.activate(ctx, account); err != nil {
		return SessionResult{}, err
	}

	tokens, err := s.tokens.IssueSession(ctx, account.ID, false)
	if err != nil {
		return SessionResult{}, err
	}

	activated, err := s.findAccount(ctx, account.ID)
	if err != nil {
		return SessionResult{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"account_id": string(account.ID),
		"version":    tokens.TokenVersion,
		"action":     "otp_verified",
	}).Info("otp verified, session issued")

	return SessionResult{Tokens: tokens, Account: mapper.AccountToDTO(activated)}, nil
}

// ResendOTP replaces the pending OTP of the account registered under email.
func (s *AccountService) ResendOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	var account domain.Account
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.repo.FindByEmail(ctx, email)
		return err
	})
	if err != nil {
		return s.lookupError(ctx, "resend_otp", err)
	}

	code, err := s.replaceOTP(ctx, account)
	if err != nil {
		return err
	}

	s.sendOTP(ctx, account, OTPFlowResend, code)
	return nil
}

// Login sends a login OTP and drops the stored refresh token, so a new session
// exists only after the OTP is verified.
func (s *AccountService) Login(ctx context.Context, telephone string) error {
	telephone = normalizeTelephone(telephone)
	if err := validateTelephone(telephone); err != nil {
		return err
	}

	s.log.WithFields(ctx, logger.Fields{
		"action": "login_attempt",
	}).Info("login attempt")

	account, err := s.findByTelephone(ctx, telephone)
	if err != nil {
		return err
	}

	code, err := s.replaceOTP(ctx, account)
	if err != nil {
		return err
	}

	if err := s.tokens.ClearRefresh(ctx, account.ID); err != nil {
		return err
	}

	s.sendOTP(ctx, account, OTPFlowLogin, code)

	s.log.WithFields(ctx, logger.Fields{
		"account_id": string(account.ID),
		"action":     "login_otp_sent",
	}).Info("login otp sent")
	return nil
}

func (s *AccountService) Logout(ctx context.Context, accountID domain.ID) error {
	_, err := s.tokens.RevokeSession(ctx, accountID, "logout")
	return err
}

// AdminLogin opens a session for a staff account with a password.
func (s *AccountService) AdminLogin(ctx context.Context, email, password string) (SessionResult, error) {
	email = normalizeEmail(email)

	s.log.WithFields(ctx, logger.Fields{
		"email":  email,
		"action": "admin_login_attempt",
	}).Info("admin login attempt")

	if email == "" || password == "" {
		return SessionResult{}, ErrInvalidCredentials
	}

	var account domain.Account
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.repo.FindByEmail(ctx, email)
		return err
	})
	if err != nil {
		mapped := s.lookupError(ctx, "admin_login", err)
		if errors.Is(mapped, ErrAccountNotFound) {
			return SessionResult{}, ErrInvalidCredentials
		}
		return SessionResult{}, mapped
	}

	if !account.Role.IsStaff() || account.PasswordHash == "" {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": string(account.ID),
			"action":     "admin_login_not_staff",
		}).Warn("admin login for a non-staff account")
		return SessionResult{}, ErrInvalidCredentials
	}

	match, err := s.hasher.Verify(account.PasswordHash, password)
	if err != nil || !match {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": string(account.ID),
			"action":     "admin_login_invalid_password",
		}).Warn("admin login failed: invalid credentials")
		return SessionResult{}, ErrInvalidCredentials
	}

	tokens, err := s.tokens.IssueSession(ctx, account.ID, false)
	if err != nil {
		return SessionResult{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"account_id": string(account.ID),
		"action":     "admin_login_success",
	}).Info("admin login success")

	return SessionResult{Tokens: tokens, Account: mapper.AccountToDTO(account)}, nil
}

// RevokeAccount ends every session of another account.
func (s *AccountService) RevokeAccount(ctx context.Context, adminID, accountID domain.ID) error {
	if _, err := s.findAccount(ctx, accountID); err != nil {
		return err
	}

	if _, err := s.tokens.RevokeSession(ctx, accountID, "admin_revoke"); err != nil {
		return err
	}

	s.log.WithFields(ctx, logger.Fields{
		"admin_id":   string(adminID),
		"account_id": string(accountID),
		"action":     "admin_revoke",
	}).Info("account sessions revoked by admin")
	return nil
}

// AdminProfile returns the caller's profile when it holds a staff role.
func (s *AccountService) AdminProfile(ctx context.Context, accountID domain.ID) (mapper.Account, error) {
	account, err := s.findAccount(ctx, accountID)
	if err != nil {
		return mapper.Account{}, err
	}
	if !account.Role.IsStaff() {
		return mapper.Account{}, ErrForbidden
	}
	return mapper.AccountToDTO(account), nil
}

func (s *AccountService) ListAccounts(ctx context.Context, staffID domain.ID, limit, offset int) ([]mapper.Account, error) {
	if limit <= 0 || limit > constants.MaxAccountListLimit {
		limit = constants.DefaultAccountListLimit
	}
	if offset < 0 {
		offset = 0
	}

	var accounts []domain.Account
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		accounts, err = s.repo.List(ctx, limit, offset)
		return err
	})
	if err != nil {
		return nil, s.lookupError(ctx, "list_accounts", err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"staff_id": string(staffID),
		"count":    len(accounts),
		"offset":   offset,
		"action":   "accounts_listed",
	}).Info("accounts listed")

	out := make([]mapper.Account, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, mapper.AccountToDTO(account))
	}
	return out, nil
}

// GetAccount looks up any account for a staff caller. Unknown ids are a 404 here,
// not the uniform 401 used on the caller's own session.
func (s *AccountService) GetAccount(ctx context.Context, staffID, accountID domain.ID) (mapper.Account, error) {
	account, err := s.findAccount(ctx, accountID)
	if errors.Is(err, ErrAccountNotFound) {
		return mapper.Account{}, ErrAccountLookupNotFound
	}
	if err != nil {
		return mapper.Account{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"staff_id":   string(staffID),
		"account_id": string(accountID),
		"action":     "account_viewed",
	}).Info("account viewed by staff")
	return mapper.AccountToDTO(account), nil
}

func (s *AccountService) Me(ctx context.Context, accountID domain.ID) (mapper.Account, error) {
	account, err := s.findAccount(ctx, accountID)
	if err != nil {
		return mapper.Account{}, err
	}
	return mapper.AccountToDTO(account), nil
}

func (s *AccountService) activate(ctx context.Context, account domain.Account) error {
	for attempt := 1; attempt <= referralCodeAttempts; attempt++ {
		code := ""
		if account.ReferralCode == "" {
			var err error
			code, err = commoncrypto.ReferralCode(constants.ReferralCodeLength)
			if err != nil {
				return newInternalError("REFERRAL_CODE_FAILED", "failed to activate account", err)
			}
		}

		err := s.call(ctx, func(ctx context.Context) error {
			return s.repo.Activate(ctx, account.ID, code)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, accountrepo.ErrReferralCodeExists) {
			return s.lookupError(ctx, "activate", err)
		}

		s.log.WithFields(ctx, logger.Fields{
			"account_id": string(account.ID),
			"attempt":    attempt,
			"action":     "referral_code_collision",
		}).Warn("referral code collision, retrying")
	}

	return newInternalError("REFERRAL_CODE_FAILED", "failed to activate account", accountrepo.ErrReferralCodeExists)
}

func (s *AccountService) replaceOTP(ctx context.Context, account domain.Account) (string, error) {
	code, hash, expiry, err := s.newOTP()
	if err != nil {
		return "", err
	}

	err = s.call(ctx, func(ctx context.Context) error {
		return s.repo.SetOTP(ctx, account.ID, hash, expiry)
	})
	if err != nil {
		return "", s.lookupError(ctx, "set_otp", err)
	}
	return code, nil
}

func (s *AccountService) newOTP() (string, string, time.Time, error) {
	code, err := commoncrypto.NumericCode(constants.OTPDigits)
	if err != nil {
		return "", "", time.Time{}, newInternalError("OTP_GENERATION_FAILED", "failed to generate otp", err)
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return "", "", time.Time{}, newInternalError("OTP_HASH_FAILED", "failed to generate otp", err)
	}
	return code, hash, s.clock.Now().Add(s.otpTTL), nil
}

// sendOTP does not fail the request: the caller can always ask for a resend.
func (s *AccountService) sendOTP(ctx context.Context, account domain.Account, flow OTPFlow, code string) {
	err := s.otpSender.SendOTP(ctx, OTPMessage{
		Flow:      flow,
		AccountID: account.ID,
		FirstName: account.FirstName,
		LastName:  account.LastName,
		Email:     account.Email,
		Code:      code,
	})
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": string(account.ID),
			"flow":       string(flow),
			"action":     "otp_send_failed",
		}).Errorf("failed to send otp: %v", err)
		return
	}
	incrementOTPsSent(string(flow))
}

func (s *AccountService) findAccount(ctx context.Context, id domain.ID) (domain.Account, error) {
	var account domain.Account
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return domain.Account{}, s.lookupError(ctx, "find_account", err)
	}
	return account, nil
}

func (s *AccountService) findByTelephone(ctx context.Context, telephone string) (domain.Account, error) {
	var account domain.Account
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.repo.FindByTelephone(ctx, telephone)
		return err
	})
	if err != nil {
		return domain.Account{}, s.lookupError(ctx, "find_by_telephone", err)
	}
	return account, nil
}

func (s *AccountService) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.dbBreaker.Call(ctx, fn)
}

func (s *AccountService) lookupError(ctx context.Context, operation string, err error) error {
	mapped := mapRepositoryError(err)
	if errors.Is(mapped, ErrPersistence) || errors.Is(mapped, ErrServiceUnavailable) {
		s.log.WithFields(ctx, logger.Fields{
			"operation": operation,
			"action":    "account_store_failed",
		}).Errorf("account store failure: %v", err)
	}
	return mapped
}
