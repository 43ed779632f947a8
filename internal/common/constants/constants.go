package constants

import "time"

const (
	JWTSecretMinLength = 32

	DefaultAccessTokenSecret  = "fallback-secret"
	DefaultRefreshTokenSecret = "fallback-refresh-secret"
	DefaultAccessTokenExpiry  = "15m"
	DefaultRefreshTokenExpiry = "7d"
	DefaultRefreshTokenGrace  = "1d"

	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	// Logout and revocation bump the token version by a random amount in this range.
	RevocationBumpMin = 2
	RevocationBumpMax = 1_000_000

	SessionIssueMaxAttempts = 3

	RefreshResultCacheTTL             = 10 * time.Second
	RefreshResultCacheCleanupInterval = 30 * time.Second
	RefreshResultCacheKeyPrefix       = "fincore:refresh:"
	RefreshPendingMaxPolls            = 20
	RefreshPendingPollInterval        = 10 * time.Millisecond

	OTPDigits          = 6
	DefaultOTPTTL      = 10 * time.Minute
	ReferralCodeLength = 8

	DefaultAccountListLimit = 20
	MaxAccountListLimit     = 100

	DefaultArgon2MemoryKB    = 64 * 1024
	DefaultArgon2Time        = 3
	DefaultArgon2Parallelism = 4
	Argon2SaltLength         = 16
	Argon2KeyLength          = 32

	DefaultMaxRequestSize = 1 << 20

	DBPoolMaxConns        = 25
	DBPoolMinConns        = 5
	DBPoolConnMaxLifetime = time.Hour
	DBPoolConnMaxIdleTime = 30 * time.Minute
	DBPoolHealthCheck     = 1 * time.Minute
	DBPoolConnectTimeout  = 5 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = 1 * time.Second
	DBPoolMetricsInterval = 30 * time.Second
	DBQueryTimeout        = 30 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second
	ServerMaxHeaderBytes    = 16 << 10

	ShutdownTimeout = 30 * time.Second
	DrainTimeout    = 10 * time.Second

	SessionCleanupInterval = time.Hour

	DefaultAuthHTTPPort = "8081"

	DefaultCircuitBreakerThreshold = 500
	DefaultCircuitBreakerTimeout   = 15 * time.Second
	DefaultCircuitBreakerReset     = 10 * time.Second

	DefaultAuthRequestTimeout = 30 * time.Second

	RateLimitCleanupInterval          = 5 * time.Minute
	RateLimitLoginRequestsPerSecond   = 0.2
	RateLimitLoginBurst               = 5
	RateLimitSignupRequestsPerSecond  = 0.1
	RateLimitSignupBurst              = 3
	RateLimitVerifyRequestsPerSecond  = 0.5
	RateLimitVerifyBurst              = 5
	RateLimitResendRequestsPerSecond  = 0.05
	RateLimitResendBurst              = 2
	RateLimitLogoutRequestsPerSecond  = 1
	RateLimitLogoutBurst              = 5
	RateLimitGeneralRequestsPerSecond = 20
	RateLimitGeneralBurst             = 40

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28
	DefaultLogDir    = "/var/log/fincore"
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"
