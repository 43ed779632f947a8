package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AlibekovAA/fincore/internal/common/clock"
	"github.com/AlibekovAA/fincore/internal/common/config"
	commoncrypto "github.com/AlibekovAA/fincore/internal/common/crypto"
)

var testTokenConfig = config.TokenConfig{
	AccessSecret:  "access-secret-for-tests-0123456789abcdef",
	AccessTTL:     15 * time.Minute,
	RefreshSecret: "refresh-secret-for-tests-0123456789abcdef",
	RefreshTTL:    7 * 24 * time.Hour,
	RefreshGrace:  24 * time.Hour,
}

func newTestCodec(t *testing.T) (*Codec, *clock.MockClock) {
	t.Helper()
	clk := clock.NewMockClock(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	codec, err := NewCodec(testTokenConfig, commoncrypto.NewUUIDGenerator(), clk)
	if err != nil {
		t.Fatalf("failed to create codec: %v", err)
	}
	return codec, clk
}

func TestCodec_SignAndParse(t *testing.T) {
	codec, clk := newTestCodec(t)

	signed, err := codec.Sign(Access, "account-1", 7)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !signed.ExpiresAt.Equal(clk.Now().Add(15 * time.Minute)) {
		t.Errorf("unexpected access expiry %v", signed.ExpiresAt)
	}

	claims, err := codec.Parse(Access, signed.Token)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if claims.AccountID() != "account-1" || claims.TokenVersion != 7 {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Error("expected jti to be set")
	}
}

func TestCodec_SignedLifetimes(t *testing.T) {
	codec, clk := newTestCodec(t)
	now := clk.Now()

	cases := []struct {
		kind      Kind
		expiresAt time.Time
		maxAge    time.Duration
	}{
		{Access, now.Add(15 * time.Minute), 15 * time.Minute},
		{Refresh, now.Add(7 * 24 * time.Hour), 8 * 24 * time.Hour},
	}

	for _, tc := range cases {
		signed, err := codec.Sign(tc.kind, "account-1", 0)
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", tc.kind, err)
		}
		if !signed.ExpiresAt.Equal(tc.expiresAt) {
			t.Errorf("%s: ExpiresAt = %v, want %v", tc.kind, signed.ExpiresAt, tc.expiresAt)
		}
		if signed.MaxAge != tc.maxAge {
			t.Errorf("%s: MaxAge = %v, want %v", tc.kind, signed.MaxAge, tc.maxAge)
		}
		if codec.MaxAge(tc.kind) != tc.maxAge {
			t.Errorf("%s: codec MaxAge = %v, want %v", tc.kind, codec.MaxAge(tc.kind), tc.maxAge)
		}
	}
}

func TestCodec_DistinctJTIPerToken(t *testing.T) {
	codec, _ := newTestCodec(t)

	a, _ := codec.Sign(Access, "account-1", 0)
	b, _ := codec.Sign(Access, "account-1", 0)
	if a.Token == b.Token {
		t.Fatal("expected two tokens minted in the same second to differ")
	}
}

func TestCodec_AccessExpires(t *testing.T) {
	codec, clk := newTestCodec(t)

	signed, _ := codec.Sign(Access, "account-1", 0)
	clk.Advance(16 * time.Minute)

	if _, err := codec.Parse(Access, signed.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestCodec_RefreshHardCapIncludesGrace(t *testing.T) {
	codec, clk := newTestCodec(t)

	signed, _ := codec.Sign(Refresh, "account-1", 3)
	if !signed.ExpiresAt.Equal(clk.Now().Add(7 * 24 * time.Hour)) {
		t.Errorf("expected soft deadline at refresh ttl, got %v", signed.ExpiresAt)
	}
	if signed.MaxAge != 8*24*time.Hour {
		t.Errorf("expected max age ttl+grace, got %v", signed.MaxAge)
	}

	clk.Advance(7*24*time.Hour + time.Hour)
	if _, err := codec.Parse(Refresh, signed.Token); err != nil {
		t.Fatalf("expected refresh token to parse inside grace window, got %v", err)
	}

	clk.Advance(24 * time.Hour)
	if _, err := codec.Parse(Refresh, signed.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired past hard cap, got %v", err)
	}
}

func TestCodec_KindsUseSeparateSecrets(t *testing.T) {
	codec, _ := newTestCodec(t)

	refresh, _ := codec.Sign(Refresh, "account-1", 0)
	if _, err := codec.Parse(Access, refresh.Token); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}
}

func TestCodec_RejectsTamperedAndForeignTokens(t *testing.T) {
	codec, clk := newTestCodec(t)

	signed, _ := codec.Sign(Access, "account-1", 0)
	parts := strings.Split(signed.Token, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := codec.Parse(Access, tampered); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}

	if _, err := codec.Parse(Access, "not-a-jwt"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}

	claims := Claims{
		TokenVersion: 0,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "account-1",
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
		},
	}
	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testTokenConfig.AccessSecret))
	if _, err := codec.Parse(Access, hs512); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected other algorithms to be rejected, got %v", err)
	}
}

func TestCodec_RequiresSubjectAndExpiry(t *testing.T) {
	codec, _ := newTestCodec(t)

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "account-1"},
	}).SignedString([]byte(testTokenConfig.AccessSecret))
	if _, err := codec.Parse(Access, noExp); err == nil {
		t.Fatal("expected token without exp to be rejected")
	}

	noSub, _ := codec.Sign(Access, "", 0)
	if _, err := codec.Parse(Access, noSub.Token); !errors.Is(err, ErrTokenClaims) {
		t.Fatalf("expected ErrTokenClaims for empty subject, got %v", err)
	}
}

func TestNewCodec_RejectsNonPositiveTTL(t *testing.T) {
	cfg := testTokenConfig
	cfg.AccessTTL = 0
	if _, err := NewCodec(cfg, commoncrypto.NewUUIDGenerator(), clock.NewRealClock()); !errors.Is(err, ErrInvalidTokenTTL) {
		t.Fatalf("expected ErrInvalidTokenTTL, got %v", err)
	}
}
