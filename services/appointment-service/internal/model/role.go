package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role orders privilege: a lower ordinal is a more privileged role.
type Role uint8

const (
	RoleAdmin Role = iota + 1
	RoleOwner
	RoleStaff
	RoleCustomer
)

var ErrRoleEscalation = errors.New("role switch may only lower privilege")

func (r Role) Ordinal() int { return int(r) }

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOwner, RoleStaff, RoleCustomer:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleOwner:
		return "owner"
	case RoleStaff:
		return "staff"
	case RoleCustomer:
		return "customer"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "owner":
		return RoleOwner, nil
	case "staff":
		return RoleStaff, nil
	case "customer":
		return RoleCustomer, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid %s", r)
	}
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("role must be a string")
	}
	v, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// CanSwitchRole allows only downgrades: current must be strictly more
// privileged than target.
func CanSwitchRole(current, target Role) bool {
	return current.Valid() && target.Valid() && current.Ordinal() < target.Ordinal()
}

// EffectiveRole is either the persisted role or a session-scoped downgrade of
// it. It is derived per request and never written back.
type EffectiveRole struct {
	persisted Role
	current   Role
}

func Persisted(r Role) EffectiveRole {
	return EffectiveRole{persisted: r, current: r}
}

func Downgraded(original, current Role) (EffectiveRole, error) {
	if !CanSwitchRole(original, current) {
		return EffectiveRole{}, fmt.Errorf("%w: %s to %s", ErrRoleEscalation, original, current)
	}
	return EffectiveRole{persisted: original, current: current}, nil
}

func (e EffectiveRole) Current() Role      { return e.current }
func (e EffectiveRole) Persisted() Role    { return e.persisted }
func (e EffectiveRole) IsDowngraded() bool { return e.current != e.persisted }

// SwitchTo evaluates a switch against the persisted role. Switching to the
// persisted role restores it exactly.
func (e EffectiveRole) SwitchTo(target Role) (EffectiveRole, error) {
	if target == e.persisted {
		return Persisted(e.persisted), nil
	}
	return Downgraded(e.persisted, target)
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID string
	Role   EffectiveRole
}

func (p Principal) Is(r Role) bool { return p.Role.Current() == r }

func (p Principal) String() string {
	if p.Role.IsDowngraded() {
		return fmt.Sprintf("%s(%s as %s)", p.UserID, p.Role.Persisted(), p.Role.Current())
	}
	return fmt.Sprintf("%s(%s)", p.UserID, p.Role.Current())
}
