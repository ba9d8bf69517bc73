package access

import (
	"context"
	"testing"

	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/directory"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
)

func ptr(s string) *string { return &s }

func fixture() *Resolver {
	dir := directory.NewMemory().
		PutCompany(directory.Company{ID: "c1", OwnerID: "owner-1", Status: directory.CompanyActive}).
		PutCompany(directory.Company{ID: "c2", OwnerID: "owner-2", Status: directory.CompanyActive}).
		PutStaff(directory.Staff{ID: "st-1", UserID: "staff-user", CompanyID: "c1", Active: true}).
		PutStaff(directory.Staff{ID: "st-2", UserID: "staff-user", CompanyID: "c2", Active: true}).
		PutStaff(directory.Staff{ID: "st-old", UserID: "staff-user", CompanyID: "c2", Active: false}).
		PutStaff(directory.Staff{ID: "st-9", UserID: "other-staff", CompanyID: "c1", Active: true})
	return NewResolver(dir, dir)
}

func principal(user string, role model.Role) model.Principal {
	return model.Principal{UserID: user, Role: model.Persisted(role)}
}

func TestAuthorize(t *testing.T) {
	appt := model.Appointment{ID: "a1", CustomerID: "cust-1", CompanyID: "c1", StaffID: ptr("st-1")}
	foreign := model.Appointment{ID: "a2", CustomerID: "cust-2", CompanyID: "c1", StaffID: ptr("st-9")}
	inactive := model.Appointment{ID: "a3", CustomerID: "cust-2", CompanyID: "c2", StaffID: ptr("st-old")}

	tests := []struct {
		name  string
		p     model.Principal
		appt  model.Appointment
		cap   Capability
		allow bool
	}{
		{"admin changes status", principal("root", model.RoleAdmin), appt, ChangeStatus, true},
		{"owner reads own company", principal("owner-1", model.RoleOwner), appt, Read, true},
		{"owner changes status in own company", principal("owner-1", model.RoleOwner), appt, ChangeStatus, true},
		{"owner of other company", principal("owner-2", model.RoleOwner), appt, Read, false},
		{"staff reads assigned", principal("staff-user", model.RoleStaff), appt, Read, true},
		{"staff mutates assigned", principal("staff-user", model.RoleStaff), appt, Mutate, true},
		{"staff cannot change status", principal("staff-user", model.RoleStaff), appt, ChangeStatus, false},
		{"staff reads foreign staff id", principal("staff-user", model.RoleStaff), foreign, Read, false},
		{"inactive staff record still reads its appointments", principal("staff-user", model.RoleStaff), inactive, Read, true},
		{"customer reads own", principal("cust-1", model.RoleCustomer), appt, Read, true},
		{"customer cancels own", principal("cust-1", model.RoleCustomer), appt, Mutate, true},
		{"customer reads other", principal("cust-1", model.RoleCustomer), foreign, Read, false},
		{"customer cannot change status", principal("cust-1", model.RoleCustomer), appt, ChangeStatus, false},
		{"unassigned appointment hidden from staff", principal("staff-user", model.RoleStaff), model.Appointment{ID: "a4", CompanyID: "c1"}, Read, false},
	}

	r := fixture()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Authorize(context.Background(), tt.p, tt.appt, tt.cap)
			if tt.allow && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tt.allow && !apperr.Is(err, apperr.PermissionDenied) {
				t.Fatalf("expected PermissionDenied, got %v", err)
			}
		})
	}
}

func TestDowngradedAdminActsAsCustomer(t *testing.T) {
	role, err := model.Downgraded(model.RoleAdmin, model.RoleCustomer)
	if err != nil {
		t.Fatal(err)
	}
	p := model.Principal{UserID: "root", Role: role}
	appt := model.Appointment{ID: "a1", CustomerID: "cust-1", CompanyID: "c1"}

	if err := fixture().Authorize(context.Background(), p, appt, Read); !apperr.Is(err, apperr.PermissionDenied) {
		t.Fatalf("downgraded admin must be limited to customer rights, got %v", err)
	}
}

func TestAuthorizeCreate(t *testing.T) {
	r := fixture()
	ctx := context.Background()

	if err := r.AuthorizeCreate(ctx, principal("cust-1", model.RoleCustomer), "cust-1", "c1"); err != nil {
		t.Fatalf("customer booking for self: %v", err)
	}
	if err := r.AuthorizeCreate(ctx, principal("cust-1", model.RoleCustomer), "cust-2", "c1"); err == nil {
		t.Fatal("customer booking for someone else must be denied")
	}
	if err := r.AuthorizeCreate(ctx, principal("owner-1", model.RoleOwner), "cust-2", "c2"); err == nil {
		t.Fatal("owner booking in a foreign company must be denied")
	}
	if err := r.AuthorizeCreate(ctx, principal("staff-user", model.RoleStaff), "cust-2", "c2"); err != nil {
		t.Fatalf("staff with an active record in c2: %v", err)
	}
	if err := r.AuthorizeCreate(ctx, principal("other-staff", model.RoleStaff), "cust-2", "c2"); err == nil {
		t.Fatal("staff without record in c2 must be denied")
	}
}

func TestScope(t *testing.T) {
	r := fixture()
	ctx := context.Background()

	s, err := r.Scope(ctx, principal("staff-user", model.RoleStaff))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.StaffIDs) != 3 {
		t.Fatalf("expected all three staff ids, got %v", s.StaffIDs)
	}
	if !s.Allows(model.Appointment{StaffID: ptr("st-2")}) || !s.Allows(model.Appointment{StaffID: ptr("st-old")}) || s.Allows(model.Appointment{StaffID: ptr("st-9")}) {
		t.Fatal("staff scope mismatch")
	}

	s, _ = r.Scope(ctx, principal("nobody", model.RoleOwner))
	if !s.Empty() {
		t.Fatalf("owner without companies should have an empty scope, got %+v", s)
	}

	s, _ = r.Scope(ctx, principal("root", model.RoleAdmin))
	if !s.All || !s.Allows(model.Appointment{}) {
		t.Fatal("admin scope must allow everything")
	}
}
