package domain

import (
	"testing"
	"time"
)

func TestSession_RefreshExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	if (Session{}).RefreshExpired(now) {
		t.Error("session without expiry must not be expired")
	}
	if !(Session{RefreshTokenExpiry: &past}).RefreshExpired(now) {
		t.Error("expected past expiry to be expired")
	}
	if (Session{RefreshTokenExpiry: &future}).RefreshExpired(now) {
		t.Error("expected future expiry not to be expired")
	}
}

func TestAccount_HasRole(t *testing.T) {
	acc := Account{Role: RoleSuperAdmin}

	if !acc.HasRole(RoleAdmin, RoleSuperAdmin) {
		t.Error("expected super admin to match")
	}
	if acc.HasRole(RoleUser) {
		t.Error("expected user role not to match")
	}
}

func TestRole_IsStaff(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleSuperAdmin, RoleDeveloper, RoleFinance, RoleSupport} {
		if !role.IsStaff() {
			t.Errorf("expected %s to be staff", role)
		}
	}
	if RoleUser.IsStaff() || Role("").IsStaff() {
		t.Error("expected user and empty roles not to be staff")
	}
}
