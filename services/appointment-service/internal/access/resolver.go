// Package access decides which appointments a principal may read, mutate or
// move through the status workflow.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/directory"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
)

type Capability uint8

const (
	Read Capability = iota + 1
	// Mutate covers reschedule, cancel and delete.
	Mutate
	ChangeStatus
)

func (c Capability) String() string {
	switch c {
	case Read:
		return "read"
	case Mutate:
		return "mutate"
	case ChangeStatus:
		return "change status"
	default:
		return "unknown"
	}
}

type Resolver struct {
	companies directory.CompanyDirectory
	staff     directory.StaffDirectory
}

func NewResolver(companies directory.CompanyDirectory, staff directory.StaffDirectory) *Resolver {
	return &Resolver{companies: companies, staff: staff}
}

// Authorize returns nil when p holds capability c on appt, and a
// PermissionDenied error otherwise.
func (r *Resolver) Authorize(ctx context.Context, p model.Principal, appt model.Appointment, c Capability) error {
	switch p.Role.Current() {
	case model.RoleAdmin:
		return nil
	case model.RoleOwner:
		owns, err := r.ownsCompany(ctx, p.UserID, appt.CompanyID)
		if err != nil {
			return err
		}
		if owns {
			return nil
		}
	case model.RoleStaff:
		if c == ChangeStatus {
			break
		}
		ids, err := r.staffIDs(ctx, p.UserID)
		if err != nil {
			return err
		}
		if appt.HasStaff(ids) {
			return nil
		}
	case model.RoleCustomer:
		if c == ChangeStatus {
			break
		}
		if appt.CustomerID == p.UserID {
			return nil
		}
	default:
	}
	return apperr.New(apperr.PermissionDenied, "%s may not %s appointment %s", p.Role.Current(), c, appt.ID)
}

// AuthorizeCreate checks who may book on behalf of whom.
func (r *Resolver) AuthorizeCreate(ctx context.Context, p model.Principal, customerID, companyID string) error {
	switch p.Role.Current() {
	case model.RoleAdmin:
		return nil
	case model.RoleOwner:
		owns, err := r.ownsCompany(ctx, p.UserID, companyID)
		if err != nil {
			return err
		}
		if owns {
			return nil
		}
	case model.RoleStaff:
		records, err := r.staff.FindStaffByUserID(ctx, p.UserID)
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "load staff records")
		}
		for _, s := range records {
			if s.Active && s.CompanyID == companyID {
				return nil
			}
		}
	case model.RoleCustomer:
		if customerID == p.UserID {
			return nil
		}
	default:
	}
	return apperr.New(apperr.PermissionDenied, "%s may not book this appointment", p.Role.Current())
}

func (r *Resolver) ownsCompany(ctx context.Context, userID, companyID string) (bool, error) {
	company, err := r.companies.GetCompany(ctx, companyID)
	if errors.Is(err, directory.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.Internal, err, "load company")
	}
	return company.OwnerID == userID, nil
}

// staffIDs returns every staff record the user holds, active or not. Staff
// keep access to appointments assigned while their record was active.
func (r *Resolver) staffIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	records, err := r.staff.FindStaffByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "load staff records")
	}
	ids := make(map[string]struct{}, len(records))
	for _, s := range records {
		ids[s.ID] = struct{}{}
	}
	return ids, nil
}

// Scope restricts listings. Exactly one of its fields is meaningful, picked by
// the principal's effective role.
type Scope struct {
	All        bool
	CompanyIDs []string
	StaffIDs   []string
	CustomerID string
}

// Empty reports a scope that can match nothing.
func (s Scope) Empty() bool {
	return !s.All && len(s.CompanyIDs) == 0 && len(s.StaffIDs) == 0 && s.CustomerID == ""
}

func (s Scope) Allows(a model.Appointment) bool {
	switch {
	case s.All:
		return true
	case s.CustomerID != "":
		return a.CustomerID == s.CustomerID
	case len(s.CompanyIDs) > 0:
		for _, id := range s.CompanyIDs {
			if a.CompanyID == id {
				return true
			}
		}
	case len(s.StaffIDs) > 0:
		for _, id := range s.StaffIDs {
			if a.StaffID != nil && *a.StaffID == id {
				return true
			}
		}
	}
	return false
}

func (r *Resolver) Scope(ctx context.Context, p model.Principal) (Scope, error) {
	switch p.Role.Current() {
	case model.RoleAdmin:
		return Scope{All: true}, nil
	case model.RoleOwner:
		companies, err := r.companies.ListCompaniesByOwner(ctx, p.UserID)
		if err != nil {
			return Scope{}, apperr.Wrap(apperr.Internal, err, "list owned companies")
		}
		ids := make([]string, 0, len(companies))
		for _, c := range companies {
			ids = append(ids, c.ID)
		}
		return Scope{CompanyIDs: ids}, nil
	case model.RoleStaff:
		set, err := r.staffIDs(ctx, p.UserID)
		if err != nil {
			return Scope{}, err
		}
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		return Scope{StaffIDs: ids}, nil
	case model.RoleCustomer:
		return Scope{CustomerID: p.UserID}, nil
	default:
		return Scope{}, fmt.Errorf("scope for %s: %w", p.Role.Current(), apperr.New(apperr.PermissionDenied, "unknown role"))
	}
}
