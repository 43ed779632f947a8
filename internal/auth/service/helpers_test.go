package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AlibekovAA/fincore/internal/account/domain"
	accountrepo "github.com/AlibekovAA/fincore/internal/account/repository"
	"github.com/AlibekovAA/fincore/internal/auth/service"
	"github.com/AlibekovAA/fincore/internal/auth/token"
	"github.com/AlibekovAA/fincore/internal/common/clock"
	"github.com/AlibekovAA/fincore/internal/common/config"
	commoncrypto "github.com/AlibekovAA/fincore/internal/common/crypto"
	"github.com/AlibekovAA/fincore/internal/common/logger"
)

var testTokenConfig = config.TokenConfig{
	AccessSecret:  "access-secret-for-tests-0123456789abcdef",
	AccessTTL:     15 * time.Minute,
	RefreshSecret: "refresh-secret-for-tests-0123456789abcdef",
	RefreshTTL:    7 * 24 * time.Hour,
	RefreshGrace:  24 * time.Hour,
}

const (
	testAccountID = domain.ID("account-1")
	testEmail     = "ada@example.com"
	testTelephone = "+2348012345678"
)

type passThroughBreaker struct{}

func (passThroughBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type mockBreaker struct {
	callFunc func(ctx context.Context, fn func(context.Context) error) error
}

func (m *mockBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	return m.callFunc(ctx, fn)
}

// faultyRepo overrides selected calls of an in-memory repository.
type faultyRepo struct {
	*accountrepo.MemoryRepository
	findSessionFunc        func(ctx context.Context, id domain.ID) (domain.Session, error)
	findByIDAndVersionFunc func(ctx context.Context, id domain.ID, version int64) (domain.Account, error)
	storeRefreshFunc       func(ctx context.Context, id domain.ID, expected domain.Session, hash string, expiry time.Time) error
}

func (r *faultyRepo) FindSession(ctx context.Context, id domain.ID) (domain.Session, error) {
	if r.findSessionFunc != nil {
		return r.findSessionFunc(ctx, id)
	}
	return r.MemoryRepository.FindSession(ctx, id)
}

func (r *faultyRepo) FindByIDAndVersion(ctx context.Context, id domain.ID, version int64) (domain.Account, error) {
	if r.findByIDAndVersionFunc != nil {
		return r.findByIDAndVersionFunc(ctx, id, version)
	}
	return r.MemoryRepository.FindByIDAndVersion(ctx, id, version)
}

func (r *faultyRepo) StoreRefresh(ctx context.Context, id domain.ID, expected domain.Session, hash string, expiry time.Time) error {
	if r.storeRefreshFunc != nil {
		return r.storeRefreshFunc(ctx, id, expected, hash, expiry)
	}
	return r.MemoryRepository.StoreRefresh(ctx, id, expected, hash, expiry)
}

type recordingWriter struct {
	access       string
	accessMaxAge time.Duration
	refresh      string
	refreshCalls int
}

func (w *recordingWriter) SetAccessToken(value string, maxAge time.Duration) {
	w.access = value
	w.accessMaxAge = maxAge
}

func (w *recordingWriter) SetRefreshToken(value string, maxAge time.Duration) {
	w.refresh = value
	w.refreshCalls++
}

type recordingOTPSender struct {
	mu       sync.Mutex
	messages []service.OTPMessage
	sendErr  error
}

func (s *recordingOTPSender) SendOTP(_ context.Context, msg service.OTPMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordingOTPSender) last(t *testing.T) service.OTPMessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		t.Fatal("expected an otp to be sent")
	}
	return s.messages[len(s.messages)-1]
}

type testEnv struct {
	repo     *accountrepo.MemoryRepository
	codec    *token.Codec
	hasher   commoncrypto.PasswordHasher
	cache    *service.MemoryRefreshCache
	clock    *clock.MockClock
	log      *logger.Logger
	tokens   *service.TokenService
	identity *service.IdentityStrategy
}

func newTestHasher(t *testing.T) commoncrypto.PasswordHasher {
	t.Helper()
	hasher, err := commoncrypto.NewArgon2Hasher(commoncrypto.Argon2Params{MemoryKB: 8 * 1024, Time: 1, Parallelism: 1})
	if err != nil {
		t.Fatalf("failed to create hasher: %v", err)
	}
	return hasher
}

func setupTokenService(t *testing.T) *testEnv {
	t.Helper()

	clk := clock.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	log := logger.NewDiscard()

	codec, err := token.NewCodec(testTokenConfig, commoncrypto.NewUUIDGenerator(), clk)
	if err != nil {
		t.Fatalf("failed to create codec: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	env := &testEnv{
		repo:   accountrepo.NewMemoryRepository(clk),
		codec:  codec,
		hasher: newTestHasher(t),
		cache:  service.NewMemoryRefreshCache(ctx, clk, log),
		clock:  clk,
		log:    log,
	}
	t.Cleanup(env.cache.Close)

	env.tokens = service.NewTokenService(env.repo, codec, env.hasher, env.cache, passThroughBreaker{}, clk, log)
	env.identity = service.NewIdentityStrategy(env.repo, codec, passThroughBreaker{}, log)
	return env
}

func (e *testEnv) seedAccount(t *testing.T, id domain.ID) {
	t.Helper()
	err := e.repo.Create(context.Background(), domain.Account{
		ID:              id,
		FirstName:       "Ada",
		LastName:        "Obi",
		Email:           string(id) + "@example.com",
		TelephoneNumber: "+23480" + string(id[len(id)-1]) + "0000000",
		Role:            domain.RoleUser,
		Status:          domain.StatusActive,
	})
	if err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
}

func (e *testEnv) session(t *testing.T, id domain.ID) domain.Session {
	t.Helper()
	session, err := e.repo.FindSession(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to read session: %v", err)
	}
	return session
}
