package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AlibekovAA/fincore/internal/common/constants"
)

var (
	ErrInvalidJWTSecret = errors.New("token secret must be at least 32 bytes")
	ErrInvalidExpiry    = errors.New("invalid expiry")
)

type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	RefreshGrace  time.Duration
	// UsingFallbackSecrets is set when either secret came from the built-in development default.
	UsingFallbackSecrets bool
}

type Argon2Config struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type AuthConfig struct {
	HTTPPort                string
	DatabaseURL             string
	Redis                   RedisConfig
	Tokens                  TokenConfig
	Argon2                  Argon2Config
	OTPTTL                  time.Duration
	CookieSecure            bool
	RequestTimeout          time.Duration
	CircuitBreakerThreshold int32
	CircuitBreakerTimeout   time.Duration
	CircuitBreakerReset     time.Duration
}

func LoadAuthConfig() (AuthConfig, error) {
	tokens, err := loadTokenConfig()
	if err != nil {
		return AuthConfig{}, err
	}

	cfg := AuthConfig{
		HTTPPort:    getEnv("AUTH_HTTP_PORT", constants.DefaultAuthHTTPPort),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Tokens: tokens,
		Argon2: Argon2Config{
			MemoryKB:    uint32(getIntEnv("ARGON2_MEMORY_KB", constants.DefaultArgon2MemoryKB)),
			Time:        uint32(getIntEnv("ARGON2_TIME", constants.DefaultArgon2Time)),
			Parallelism: uint8(getIntEnv("ARGON2_PARALLELISM", constants.DefaultArgon2Parallelism)),
		},
		CookieSecure:            getBoolEnv("COOKIE_SECURE", true),
		CircuitBreakerThreshold: int32(getIntEnv("CIRCUIT_BREAKER_THRESHOLD", constants.DefaultCircuitBreakerThreshold)),
	}

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"OTP_TTL", constants.DefaultOTPTTL, &cfg.OTPTTL},
		{"AUTH_REQUEST_TIMEOUT", constants.DefaultAuthRequestTimeout, &cfg.RequestTimeout},
		{"CIRCUIT_BREAKER_TIMEOUT", constants.DefaultCircuitBreakerTimeout, &cfg.CircuitBreakerTimeout},
		{"CIRCUIT_BREAKER_RESET", constants.DefaultCircuitBreakerReset, &cfg.CircuitBreakerReset},
	}
	for _, d := range durations {
		if *d.dst, err = getDurationEnv(d.key, d.fallback); err != nil {
			return AuthConfig{}, err
		}
	}

	return cfg, nil
}

func loadTokenConfig() (TokenConfig, error) {
	accessSecret, accessFallback := getSecretEnv("SECRET_KEY", constants.DefaultAccessTokenSecret)
	refreshSecret, refreshFallback := getSecretEnv("REFRESH_SECRET_KEY", constants.DefaultRefreshTokenSecret)

	if !accessFallback {
		if err := validateJWTSecret(accessSecret); err != nil {
			return TokenConfig{}, fmt.Errorf("SECRET_KEY: %w", err)
		}
	}
	if !refreshFallback {
		if err := validateJWTSecret(refreshSecret); err != nil {
			return TokenConfig{}, fmt.Errorf("REFRESH_SECRET_KEY: %w", err)
		}
	}

	accessTTL, err := getExpiryEnv("ACCESS_TOKEN_EXPIRY", constants.DefaultAccessTokenExpiry)
	if err != nil {
		return TokenConfig{}, err
	}
	refreshTTL, err := getExpiryEnv("REFRESH_TOKEN_EXPIRY", constants.DefaultRefreshTokenExpiry)
	if err != nil {
		return TokenConfig{}, err
	}
	grace, err := getExpiryEnv("REFRESH_TOKEN_GRACE", constants.DefaultRefreshTokenGrace)
	if err != nil {
		return TokenConfig{}, err
	}

	return TokenConfig{
		AccessSecret:         accessSecret,
		AccessTTL:            accessTTL,
		RefreshSecret:        refreshSecret,
		RefreshTTL:           refreshTTL,
		RefreshGrace:         grace,
		UsingFallbackSecrets: accessFallback || refreshFallback,
	}, nil
}

// ParseExpiry accepts Go durations ("90s", "1h30m") and the short "<n>d" form for days.
func ParseExpiry(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrInvalidExpiry
	}

	if strings.HasSuffix(value, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(value, "d"))
		if err != nil || days < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidExpiry, value)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidExpiry, value)
	}
	return d, nil
}

func validateJWTSecret(secret string) error {
	if len(secret) < constants.JWTSecretMinLength {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidJWTSecret, len(secret))
	}
	return nil
}

func getSecretEnv(key, fallback string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, true
	}
	return v, false
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// getExpiryEnv treats an empty value as unset.
func getExpiryEnv(key, fallback string) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		v = fallback
	}
	d, err := ParseExpiry(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	d, err := ParseExpiry(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getIntEnv(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBoolEnv(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
