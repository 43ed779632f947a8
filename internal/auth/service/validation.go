package service

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/AlibekovAA/fincore/internal/common/constants"
)

var (
	telephoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	otpRegex       = regexp.MustCompile(`^[0-9]+$`)
)

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func normalizeTelephone(value string) string {
	value = strings.TrimSpace(value)
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(value)
}

func validateSignup(input SignupInput) error {
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return ErrValidationName
	}
	if err := validateEmail(input.Email); err != nil {
		return err
	}
	if err := validateTelephone(input.TelephoneNumber); err != nil {
		return err
	}
	if input.DOB != "" {
		if _, err := time.Parse(time.DateOnly, input.DOB); err != nil {
			return ErrValidationDOB
		}
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrValidationEmail
	}
	return nil
}

func validateTelephone(telephone string) error {
	if !telephoneRegex.MatchString(telephone) {
		return ErrValidationTelephone
	}
	return nil
}

func validateOTP(otp string) error {
	if len(otp) != constants.OTPDigits || !otpRegex.MatchString(otp) {
		return ErrValidationOTPFormat
	}
	return nil
}
