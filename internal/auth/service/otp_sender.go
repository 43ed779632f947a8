package service

import (
	"context"

	"github.com/AlibekovAA/fincore/internal/account/domain"
	"github.com/AlibekovAA/fincore/internal/common/logger"
)

type OTPFlow string

const (
	OTPFlowActivate OTPFlow = "activate"
	OTPFlowResend   OTPFlow = "resend"
	OTPFlowLogin    OTPFlow = "login"
)

type OTPMessage struct {
	Flow      OTPFlow
	AccountID domain.ID
	FirstName string
	LastName  string
	Email     string
	Code      string
}

// OTPSender delivers one-time codes to the account holder.
type OTPSender interface {
	SendOTP(ctx context.Context, msg OTPMessage) error
}

// LogOTPSender stands in for a mail gateway. The code itself is only written at
// DEBUG, which production log levels filter out.
type LogOTPSender struct {
	log *logger.Logger
}

func NewLogOTPSender(log *logger.Logger) *LogOTPSender {
	return &LogOTPSender{log: log}
}

func (s *LogOTPSender) SendOTP(ctx context.Context, msg OTPMessage) error {
	fields := logger.Fields{
		"account_id": string(msg.AccountID),
		"flow":       string(msg.Flow),
		"action":     "otp_dispatched",
	}
	s.log.WithFields(ctx, fields).Info("otp dispatched")

	if s.log.ShouldLog(logger.DEBUG) {
		s.log.WithFields(ctx, fields).Debugf("otp for %s: %s", msg.Email, msg.Code)
	}
	return nil
}
