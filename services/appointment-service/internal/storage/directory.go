package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/appointly/libs/db"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/directory"
)

// Directory reads the company, service, staff and product tables owned by
// other subsystems.
type Directory struct {
	pool *db.Pool
}

func NewDirectory(pool *db.Pool) *Directory {
	return &Directory{pool: pool}
}

func notFound(err error, what string) error {
	if db.IsNoRows(err) {
		return directory.ErrNotFound
	}
	return fmt.Errorf("get %s: %w", what, err)
}

func (d *Directory) GetCompany(ctx context.Context, id string) (directory.Company, error) {
	var c directory.Company
	err := d.pool.QueryRow(ctx, `SELECT id, owner_id, status FROM companies WHERE id = $1`, id).
		Scan(&c.ID, &c.OwnerID, &c.Status)
	if err != nil {
		return directory.Company{}, notFound(err, "company")
	}
	return c, nil
}

func (d *Directory) ListCompaniesByOwner(ctx context.Context, ownerID string) ([]directory.Company, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, owner_id, status FROM companies WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[directory.Company])
}

func (d *Directory) GetService(ctx context.Context, id string) (directory.Service, error) {
	var s directory.Service
	err := d.pool.QueryRow(ctx, `SELECT id, company_id, active FROM services WHERE id = $1`, id).
		Scan(&s.ID, &s.CompanyID, &s.Active)
	if err != nil {
		return directory.Service{}, notFound(err, "service")
	}
	return s, nil
}

func (d *Directory) FindStaffByUserID(ctx context.Context, userID string) ([]directory.Staff, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, user_id, company_id, active FROM staff_members WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("find staff: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[directory.Staff])
}

func (d *Directory) GetStaff(ctx context.Context, id string) (directory.Staff, error) {
	var s directory.Staff
	err := d.pool.QueryRow(ctx, `SELECT id, user_id, company_id, active FROM staff_members WHERE id = $1`, id).
		Scan(&s.ID, &s.UserID, &s.CompanyID, &s.Active)
	if err != nil {
		return directory.Staff{}, notFound(err, "staff member")
	}
	return s, nil
}

func (d *Directory) GetProduct(ctx context.Context, id string) (directory.Product, error) {
	var p directory.Product
	err := d.pool.QueryRow(ctx, `SELECT id, company_id FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.CompanyID)
	if err != nil {
		return directory.Product{}, notFound(err, "product")
	}
	return p, nil
}

var _ directory.Directory = (*Directory)(nil)
