package model

import (
	"errors"
	"testing"
)

func TestCanSwitchRole(t *testing.T) {
	roles := []Role{RoleAdmin, RoleOwner, RoleStaff, RoleCustomer}
	for _, cur := range roles {
		for _, target := range roles {
			want := cur.Ordinal() < target.Ordinal()
			if got := CanSwitchRole(cur, target); got != want {
				t.Errorf("CanSwitchRole(%s, %s) = %v, want %v", cur, target, got, want)
			}
		}
	}
	if CanSwitchRole(RoleAdmin, Role(0)) {
		t.Fatal("invalid target must be rejected")
	}
}

func TestEffectiveRoleSwitching(t *testing.T) {
	admin := Persisted(RoleAdmin)

	asStaff, err := admin.SwitchTo(RoleStaff)
	if err != nil {
		t.Fatalf("downgrade failed: %v", err)
	}
	if asStaff.Current() != RoleStaff || asStaff.Persisted() != RoleAdmin || !asStaff.IsDowngraded() {
		t.Fatalf("unexpected effective role %+v", asStaff)
	}

	// Switching again is evaluated against the persisted role.
	asOwner, err := asStaff.SwitchTo(RoleOwner)
	if err != nil || asOwner.Current() != RoleOwner {
		t.Fatalf("expected owner, got %v (%v)", asOwner.Current(), err)
	}

	back, err := asOwner.SwitchTo(RoleAdmin)
	if err != nil || back != admin || back.IsDowngraded() {
		t.Fatalf("switch back must restore persisted role, got %+v (%v)", back, err)
	}

	if _, err := Persisted(RoleStaff).SwitchTo(RoleAdmin); !errors.Is(err, ErrRoleEscalation) {
		t.Fatalf("expected escalation error, got %v", err)
	}
	if _, err := Persisted(RoleCustomer).SwitchTo(RoleStaff); err == nil {
		t.Fatal("customer cannot switch to anything else")
	}
}
