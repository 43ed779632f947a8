package service

import (
	"github.com/AlibekovAA/fincore/internal/observability/metrics"
)

func incrementAccessTokensIssued() {
	metrics.AccessTokensIssued.Inc()
}

func incrementRefreshTokensIssued() {
	metrics.RefreshTokensIssued.Inc()
}

func incrementSessionRotations() {
	metrics.SessionRotations.Inc()
}

func incrementSoftExpiryRecoveries() {
	metrics.SessionSoftExpiryRecoveries.Inc()
}

func incrementIssueConflicts() {
	metrics.SessionIssueConflicts.Inc()
}

func incrementRefreshFailure(reason string) {
	metrics.RefreshFailures.WithLabelValues(reason).Inc()
}

func incrementRefreshCoalesced(source string) {
	metrics.RefreshCoalesced.WithLabelValues(source).Inc()
}

func incrementRevocations(trigger string) {
	metrics.SessionRevocations.WithLabelValues(trigger).Inc()
}

func incrementIdentityVerifications() {
	metrics.IdentityVerificationsTotal.Inc()
}

func incrementIdentityFailure(reason string) {
	metrics.IdentityVerificationsFailed.WithLabelValues(reason).Inc()
}

func incrementOTPsSent(flow string) {
	metrics.OTPsSent.WithLabelValues(flow).Inc()
}
