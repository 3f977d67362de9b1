package otpAuth

import (
	"errors"
	"testing"
	"time"
)

func TestRoleHierarchy(t *testing.T) {
	order := []Role{RoleBuyer, RoleSeller, RoleSupport, RoleAdmin}
	for i, have := range order {
		if have.Rank() != i+1 {
			t.Fatalf("%s: expected rank %d, got %d", have, i+1, have.Rank())
		}
		for j, need := range order {
			if got, want := have.AtLeast(need), i >= j; got != want {
				t.Fatalf("%s.AtLeast(%s) = %v, want %v", have, need, got, want)
			}
		}
	}
}

func TestRoleUnknownFailsClosed(t *testing.T) {
	cases := []struct {
		have, need Role
	}{
		{"", RoleBuyer},
		{"root", RoleBuyer},
		{RoleAdmin, ""},
		{RoleAdmin, "superadmin"},
	}
	for _, tc := range cases {
		if tc.have.AtLeast(tc.need) {
			t.Fatalf("%q.AtLeast(%q) must be false", tc.have, tc.need)
		}
	}
}

func TestIdentityRequireRole(t *testing.T) {
	var nilID *Identity
	if nilID.HasRole(RoleBuyer) {
		t.Fatal("nil identity must not have any role")
	}
	if err := nilID.RequireRole(RoleBuyer); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	id := &Identity{User: User{ID: "s1", Role: RoleSeller}}
	if err := id.RequireRole(RoleBuyer); err != nil {
		t.Fatalf("seller must satisfy buyer: %v", err)
	}
	if err := id.RequireRole(RoleSupport); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRateLimitErrorRetryAfter(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	err := &RateLimitError{Policy: "cooldown", ResetAt: now.Add(12 * time.Second)}

	if got := err.RetryAfter(now); got != 12*time.Second {
		t.Fatalf("expected 12s, got %s", got)
	}
	if got := err.RetryAfter(now.Add(time.Minute)); got != 0 {
		t.Fatalf("expected 0 after reset, got %s", got)
	}
	if !errors.Is(err, ErrOTPRateLimited) || errors.Is(err, ErrVerificationFailed) {
		t.Fatal("RateLimitError must match only ErrOTPRateLimited")
	}
}
