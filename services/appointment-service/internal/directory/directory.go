// Package directory describes the records this service reads from the
// company, service, staff and product subsystems.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups that find no record.
var ErrNotFound = errors.New("not found")

type CompanyStatus string

const (
	CompanyActive   CompanyStatus = "active"
	CompanyInactive CompanyStatus = "inactive"
	CompanyPending  CompanyStatus = "pending"
)

type Company struct {
	ID      string
	OwnerID string
	Status  CompanyStatus
}

type Service struct {
	ID        string
	CompanyID string
	Active    bool
}

type Staff struct {
	ID        string
	UserID    string
	CompanyID string
	Active    bool
}

type Product struct {
	ID        string
	CompanyID string
}

type CompanyDirectory interface {
	GetCompany(ctx context.Context, id string) (Company, error)
	ListCompaniesByOwner(ctx context.Context, ownerID string) ([]Company, error)
}

type ServiceCatalog interface {
	GetService(ctx context.Context, id string) (Service, error)
}

type StaffDirectory interface {
	FindStaffByUserID(ctx context.Context, userID string) ([]Staff, error)
	GetStaff(ctx context.Context, id string) (Staff, error)
}

type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (Product, error)
}

// Directory bundles every collaborator lookup.
type Directory interface {
	CompanyDirectory
	ServiceCatalog
	StaffDirectory
	ProductCatalog
}
