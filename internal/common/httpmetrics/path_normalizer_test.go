package httpmetrics

import "testing"

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/health", "/health"},
		{"/api/v1/users/me", "/api/v1/users/me"},
		{"/api/v1/admin/accounts/6f1c1a52-2a4f-4f8b-9d0a-6f4f3a1e2b10/revoke", "/api/v1/admin/accounts/{id}/revoke"},
		{"/api/v1/admin/accounts/42/revoke", "/api/v1/admin/accounts/{param}/revoke"},
		{"/wp-login.php", "/{unmatched}"},
		{"/api/v2/anything", "/{unmatched}"},
	}

	for _, tc := range cases {
		if got := NormalizePath(tc.in); got != tc.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
