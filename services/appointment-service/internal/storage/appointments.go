package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/appointly/libs/db"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/access"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/lifecycle"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
)

const appointmentColumns = `
	id, customer_id, company_id, service_id, staff_id,
	to_char(appointment_date, 'YYYY-MM-DD'), to_char(appointment_time, 'HH24:MI'),
	status, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a           model.Appointment
		date, clock string
	)
	err := row.Scan(&a.ID, &a.CustomerID, &a.CompanyID, &a.ServiceID, &a.StaffID,
		&date, &clock, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	slot, err := model.NewSlot(date, clock)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	a.Slot = slot
	return a, nil
}

func getAppointment(ctx context.Context, q querier, id string, forUpdate bool) (model.Appointment, error) {
	sql := `SELECT` + appointmentColumns + ` FROM appointments WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	a, err := scanAppointment(q.QueryRow(ctx, sql, id))
	if db.IsNoRows(err) {
		return model.Appointment{}, apperr.New(apperr.NotFound, "appointment %s not found", id)
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func countActiveInSlot(ctx context.Context, q querier, companyID, serviceID string, slot model.Slot, excludeID string) (int, error) {
	var n int
	err := q.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE company_id = $1 AND service_id = $2
		  AND appointment_date = $3::date AND appointment_time = $4::time
		  AND status IN ('pending', 'confirmed')
		  AND ($5 = '' OR id <> $5)
	`, companyID, serviceID, slot.DateString(), slot.Time.String(), excludeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count slot: %w", err)
	}
	return n, nil
}

func (s *Store) Get(ctx context.Context, id string) (model.Appointment, error) {
	return getAppointment(ctx, s.pool, id, false)
}

func (s *Store) CountActiveInSlot(ctx context.Context, companyID, serviceID string, slot model.Slot, excludeID string) (int, error) {
	return countActiveInSlot(ctx, s.pool, companyID, serviceID, slot, excludeID)
}

func (s *Store) TakenTimes(ctx context.Context, companyID, serviceID string, date time.Time) ([]model.Clock, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(appointment_time, 'HH24:MI')
		FROM appointments
		WHERE company_id = $1 AND service_id = $2 AND appointment_date = $3::date
		  AND status IN ('pending', 'confirmed')
	`, companyID, serviceID, date.Format(model.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("taken times: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Clock, error) {
		var raw string
		if err := row.Scan(&raw); err != nil {
			return 0, err
		}
		return model.ParseClock(raw)
	})
}

func (s *Store) List(ctx context.Context, scope access.Scope, f lifecycle.ListFilter) ([]model.Appointment, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch {
	case scope.All:
	case scope.CustomerID != "":
		where = append(where, "customer_id = "+arg(scope.CustomerID))
	case len(scope.CompanyIDs) > 0:
		where = append(where, "company_id = ANY("+arg(scope.CompanyIDs)+")")
	case len(scope.StaffIDs) > 0:
		where = append(where, "staff_id = ANY("+arg(scope.StaffIDs)+")")
	default:
		return []model.Appointment{}, nil
	}
	if f.Status != nil {
		where = append(where, "status = "+arg(f.Status.String()))
	}
	if f.Date != nil {
		where = append(where, "appointment_date = "+arg(f.Date.Format(model.DateLayout))+"::date")
	}
	if f.CompanyID != "" {
		where = append(where, "company_id = "+arg(f.CompanyID))
	}

	sql := `SELECT` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY appointment_date, appointment_time, id LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Appointment, error) {
		return scanAppointment(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return out, nil
}

func (t *Tx) CountActiveInSlot(ctx context.Context, companyID, serviceID string, slot model.Slot, excludeID string) (int, error) {
	return countActiveInSlot(ctx, t.tx, companyID, serviceID, slot, excludeID)
}

func (t *Tx) GetForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	return getAppointment(ctx, t.tx, id, true)
}

func (t *Tx) InsertAppointment(ctx context.Context, a model.Appointment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, customer_id, company_id, service_id, staff_id, appointment_date, appointment_time, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7::time, $8, $9, $10, $11)
	`, a.ID, a.CustomerID, a.CompanyID, a.ServiceID, a.StaffID,
		a.Slot.DateString(), a.Slot.Time.String(), a.Status, a.Notes, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return mapWriteErr(fmt.Errorf("insert appointment: %w", err))
	}
	return nil
}

func (t *Tx) UpdateAppointment(ctx context.Context, a model.Appointment) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET staff_id = $2,
			appointment_date = $3::date,
			appointment_time = $4::time,
			status = $5,
			notes = $6,
			updated_at = $7
		WHERE id = $1
	`, a.ID, a.StaffID, a.Slot.DateString(), a.Slot.Time.String(), a.Status, a.Notes, a.UpdatedAt)
	if err != nil {
		return mapWriteErr(fmt.Errorf("update appointment: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "appointment %s not found", a.ID)
	}
	return nil
}

func (t *Tx) DeleteAppointment(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "appointment %s not found", id)
	}
	return nil
}

// mapWriteErr turns the active-slot unique index into a SlotConflict.
func mapWriteErr(err error) error {
	if db.IsConflict(err) && db.ConstraintName(err) == activeSlotIndex {
		return apperr.Wrap(apperr.SlotConflict, err, "slot is already booked")
	}
	if db.IsConflict(err) && db.ConstraintName(err) == historyAppointmentKey {
		return apperr.Wrap(apperr.AlreadyRecorded, err, "appointment already has a history record")
	}
	return err
}

const (
	activeSlotIndex       = "appointments_active_slot_uidx"
	historyAppointmentKey = "appointment_history_appointment_id_key"
)
