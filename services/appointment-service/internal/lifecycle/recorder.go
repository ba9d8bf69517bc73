package lifecycle

import (
	"context"
	"errors"

	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/access"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/directory"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/outbox"
)

// HistoryRecorder writes the completion record of an appointment and marks it
// Completed in the same transaction.
type HistoryRecorder struct {
	svc *Service
}

// RecordCompletion completes an appointment with the products used and the
// amount charged. An appointment has at most one history record.
func (r *HistoryRecorder) RecordCompletion(ctx context.Context, p model.Principal, appointmentID string, in CompletionInput) (rec model.HistoryRecord, err error) {
	s := r.svc
	ctx, span := s.start(ctx, "RecordCompletion", p)
	defer func() { endSpan(span, err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if err := s.access.Authorize(ctx, p, current, access.ChangeStatus); err != nil {
			return err
		}
		_, rec, err = r.record(ctx, tx, p, current, in)
		return err
	})
	if err != nil {
		return model.HistoryRecord{}, err
	}
	s.logger.InfoContext(ctx, "appointment completed",
		"appointment_id", appointmentID, "history_id", rec.ID, "principal", p.String(), "total_cost", rec.TotalCost.String())
	return rec, nil
}

// record expects appt to be locked by tx and the principal to be authorized.
// An existing history record wins over the state machine; the state machine
// wins over the completion details.
func (r *HistoryRecorder) record(ctx context.Context, tx Tx, p model.Principal, appt model.Appointment, in CompletionInput) (model.Appointment, model.HistoryRecord, error) {
	s := r.svc

	exists, err := tx.HistoryExists(ctx, appt.ID)
	if err != nil {
		return model.Appointment{}, model.HistoryRecord{}, apperr.Wrap(apperr.Internal, err, "check history")
	}
	if exists {
		return model.Appointment{}, model.HistoryRecord{}, apperr.New(apperr.AlreadyRecorded, "appointment %s already has a history record", appt.ID)
	}

	if !model.CanTransition(appt.Status, model.StatusCompleted) {
		return model.Appointment{}, model.HistoryRecord{}, apperr.New(apperr.InvalidTransition, "cannot move appointment from %s to %s", appt.Status, model.StatusCompleted)
	}

	if err := in.validate(); err != nil {
		return model.Appointment{}, model.HistoryRecord{}, err
	}
	for _, used := range in.Products {
		product, err := s.dir.GetProduct(ctx, used.ProductID)
		if errors.Is(err, directory.ErrNotFound) {
			return model.Appointment{}, model.HistoryRecord{}, apperr.New(apperr.NotFound, "product %s not found", used.ProductID)
		}
		if err != nil {
			return model.Appointment{}, model.HistoryRecord{}, apperr.Wrap(apperr.Internal, err, "load product")
		}
		if product.CompanyID != appt.CompanyID {
			return model.Appointment{}, model.HistoryRecord{}, apperr.New(apperr.Validation, "product %s does not belong to company %s", used.ProductID, appt.CompanyID)
		}
	}

	now := s.now()
	rec := model.HistoryRecord{
		ID:            s.newID(),
		AppointmentID: appt.ID,
		CustomerID:    appt.CustomerID,
		CompanyID:     appt.CompanyID,
		StaffID:       appt.StaffID,
		ServiceID:     appt.ServiceID,
		Products:      append([]model.ProductUsage(nil), in.Products...),
		TotalCost:     in.TotalCost,
		Notes:         in.Notes,
		CompletedAt:   now,
	}
	if err := tx.InsertHistory(ctx, rec); err != nil {
		return model.Appointment{}, model.HistoryRecord{}, err
	}

	next := appt
	next.Status = model.StatusCompleted
	next.UpdatedAt = now
	if err := tx.UpdateAppointment(ctx, next); err != nil {
		return model.Appointment{}, model.HistoryRecord{}, err
	}

	payload := outbox.PayloadFor(next, p.String(), now)
	payload.PreviousStatus = appt.Status.String()
	payload.HistoryID = rec.ID
	payload.TotalCost = rec.TotalCost.String()
	if err := s.emit(ctx, tx, outbox.TypeCompleted, payload); err != nil {
		return model.Appointment{}, model.HistoryRecord{}, err
	}
	return next, rec, nil
}
