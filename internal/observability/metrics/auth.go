package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuthRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_requests_total",
			Help: "Total number of auth requests",
		},
		[]string{"method", "path"},
	)

	AuthRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auth_requests_in_flight",
			Help: "Number of auth requests currently being processed",
		},
	)

	AuthRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auth_request_duration_seconds",
			Help:    "Duration of auth requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AccessTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "access_tokens_issued_total",
			Help: "Total number of access tokens issued",
		},
	)

	RefreshTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refresh_tokens_issued_total",
			Help: "Total number of refresh tokens issued and stored",
		},
	)

	SessionRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_rotations_total",
			Help: "Total number of pure access token rotations",
		},
	)

	SessionSoftExpiryRecoveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_soft_expiry_recoveries_total",
			Help: "Total number of sessions reissued from a refresh token past its stored expiry",
		},
	)

	SessionIssueConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_issue_conflicts_total",
			Help: "Total number of refresh hash writes that lost a version compare-and-swap",
		},
	)

	RefreshFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_failures_total",
			Help: "Total number of failed refresh attempts by reason",
		},
		[]string{"reason"},
	)

	RefreshCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_coalesced_total",
			Help: "Total number of refresh attempts served from a concurrent or cached result",
		},
		[]string{"source"},
	)

	SessionRevocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_revocations_total",
			Help: "Total number of token version bumps by trigger",
		},
		[]string{"trigger"},
	)

	SessionCleanupCleared = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_cleanup_cleared_total",
			Help: "Total number of rows cleared by the session sweeper",
		},
		[]string{"kind"},
	)

	GuardDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_guard_decisions_total",
			Help: "Access guard outcomes by entry state and result",
		},
		[]string{"state", "outcome"},
	)

	IdentityVerificationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "identity_verifications_total",
			Help: "Total number of access token identity verifications",
		},
	)

	IdentityVerificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_verifications_failed_total",
			Help: "Total number of failed identity verifications by reason",
		},
		[]string{"reason"},
	)

	OTPsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otps_sent_total",
			Help: "Total number of one-time passwords sent by flow",
		},
		[]string{"flow"},
	)
)
