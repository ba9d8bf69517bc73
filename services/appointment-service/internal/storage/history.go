package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/appointly/libs/db"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
)

func (t *Tx) HistoryExists(ctx context.Context, appointmentID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointment_history WHERE appointment_id = $1)`, appointmentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("history exists: %w", err)
	}
	return exists, nil
}

func (t *Tx) InsertHistory(ctx context.Context, h model.HistoryRecord) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointment_history
			(id, appointment_id, customer_id, company_id, staff_id, service_id, total_cost_cents, notes, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, h.ID, h.AppointmentID, h.CustomerID, h.CompanyID, h.StaffID, h.ServiceID, int64(h.TotalCost), h.Notes, h.CompletedAt)
	if err != nil {
		return mapWriteErr(fmt.Errorf("insert history: %w", err))
	}

	if len(h.Products) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(h.Products))
	for _, p := range h.Products {
		rows = append(rows, []any{h.ID, p.ProductID, p.Quantity})
	}
	if _, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{"appointment_history_products"},
		[]string{"history_id", "product_id", "quantity"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("insert history products: %w", err)
	}
	return nil
}

func (s *Store) GetHistory(ctx context.Context, appointmentID string) (model.HistoryRecord, error) {
	var (
		h     model.HistoryRecord
		cents int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, appointment_id, customer_id, company_id, staff_id, service_id, total_cost_cents, notes, completed_at
		FROM appointment_history
		WHERE appointment_id = $1
	`, appointmentID).Scan(&h.ID, &h.AppointmentID, &h.CustomerID, &h.CompanyID, &h.StaffID, &h.ServiceID, &cents, &h.Notes, &h.CompletedAt)
	if db.IsNoRows(err) {
		return model.HistoryRecord{}, apperr.New(apperr.NotFound, "appointment %s has no history", appointmentID)
	}
	if err != nil {
		return model.HistoryRecord{}, fmt.Errorf("get history: %w", err)
	}
	h.TotalCost = model.Money(cents)

	rows, err := s.pool.Query(ctx, `
		SELECT product_id, quantity
		FROM appointment_history_products
		WHERE history_id = $1
		ORDER BY product_id
	`, h.ID)
	if err != nil {
		return model.HistoryRecord{}, fmt.Errorf("get history products: %w", err)
	}
	h.Products, err = pgx.CollectRows(rows, pgx.RowToStructByPos[model.ProductUsage])
	if err != nil {
		return model.HistoryRecord{}, fmt.Errorf("get history products: %w", err)
	}
	return h, nil
}
