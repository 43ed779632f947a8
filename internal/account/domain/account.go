package domain

import "time"

type ID string

type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleDeveloper  Role = "DEVELOPER"
	RoleFinance    Role = "FINANCE"
	RoleSupport    Role = "SUPPORT"
)

// IsStaff reports whether the role may sign in to the admin console.
func (r Role) IsStaff() bool {
	switch r {
	case RoleAdmin, RoleSuperAdmin, RoleDeveloper, RoleFinance, RoleSupport:
		return true
	}
	return false
}

type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
)

type Account struct {
	ID              ID
	FirstName       string
	LastName        string
	Email           string
	TelephoneNumber string
	DOB             string
	ReferralCode    string
	ReferredBy      string
	Role            Role
	Status          Status
	PasswordHash    string
	OTPHash         string
	OTPExpiry       *time.Time
	Session         Session
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Session is the subset of an account row that the token service owns.
// TokenVersion never decreases; RefreshTokenHash holds the argon2 digest of the one live refresh token.
type Session struct {
	TokenVersion       int64
	RefreshTokenHash   string
	RefreshTokenExpiry *time.Time
	Active             bool
}

func (s Session) HasRefreshToken() bool {
	return s.RefreshTokenHash != ""
}

func (s Session) RefreshExpired(now time.Time) bool {
	return s.RefreshTokenExpiry != nil && s.RefreshTokenExpiry.Before(now)
}

func (a Account) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
