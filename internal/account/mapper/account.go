package mapper

import (
	"time"

	"github.com/AlibekovAA/fincore/internal/account/domain"
)

// Account is the public view of an account. Credential and session fields never leave the service.
type Account struct {
	ID              string    `json:"id"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Email           string    `json:"email"`
	TelephoneNumber string    `json:"telephoneNumber"`
	DOB             string    `json:"dob,omitempty"`
	ReferralCode    string    `json:"referralCode,omitempty"`
	Role            string    `json:"role"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

func AccountToDTO(account domain.Account) Account {
	return Account{
		ID:              string(account.ID),
		FirstName:       account.FirstName,
		LastName:        account.LastName,
		Email:           account.Email,
		TelephoneNumber: account.TelephoneNumber,
		DOB:             account.DOB,
		ReferralCode:    account.ReferralCode,
		Role:            string(account.Role),
		Status:          string(account.Status),
		CreatedAt:       account.CreatedAt,
	}
}
