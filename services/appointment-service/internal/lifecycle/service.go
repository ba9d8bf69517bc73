// Package lifecycle orchestrates booking, rescheduling, status changes and
// deletion of appointments.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/access"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/availability"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/directory"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/outbox"
)

type Service struct {
	store    Store
	dir      directory.Directory
	access   *access.Resolver
	recorder *HistoryRecorder
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	loc      *time.Location
	newID    func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone slot dates and times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(store Store, dir directory.Directory, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		dir:    dir,
		access: access.NewResolver(dir, dir),
		logger: logger,
		tracer: otel.Tracer("appointment-service/lifecycle"),
		now:    time.Now,
		loc:    time.UTC,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = &HistoryRecorder{svc: s}
	return s
}

func (s *Service) Recorder() *HistoryRecorder { return s.recorder }

func (s *Service) Access() *access.Resolver { return s.access }

func (s *Service) Create(ctx context.Context, p model.Principal, in CreateInput) (appt model.Appointment, err error) {
	ctx, span := s.start(ctx, "Create", p)
	defer func() { endSpan(span, err) }()

	if in.CustomerID == "" && p.Is(model.RoleCustomer) {
		in.CustomerID = p.UserID
	}
	slot, err := in.validate()
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.requireFuture(slot); err != nil {
		return model.Appointment{}, err
	}
	if err := s.checkCompanyAndService(ctx, in.CompanyID, in.ServiceID); err != nil {
		return model.Appointment{}, err
	}
	if in.StaffID != nil && *in.StaffID == "" {
		in.StaffID = nil
	}
	if in.StaffID != nil {
		if err := s.checkStaff(ctx, in.CompanyID, *in.StaffID); err != nil {
			return model.Appointment{}, err
		}
	}
	if err := s.access.AuthorizeCreate(ctx, p, in.CustomerID, in.CompanyID); err != nil {
		return model.Appointment{}, err
	}

	now := s.now()
	appt = model.Appointment{
		ID:         s.newID(),
		CustomerID: in.CustomerID,
		CompanyID:  in.CompanyID,
		ServiceID:  in.ServiceID,
		StaffID:    in.StaffID,
		Slot:       slot,
		Status:     model.StatusPending,
		Notes:      in.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	span.SetAttributes(attribute.String("appointment.id", appt.ID))

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockSlot(ctx, slot.Key(appt.CompanyID, appt.ServiceID)); err != nil {
			return apperr.Wrap(apperr.Internal, err, "lock slot")
		}
		if err := availability.Require(ctx, tx, availability.Query{
			CompanyID: appt.CompanyID,
			ServiceID: appt.ServiceID,
			Slot:      slot,
		}); err != nil {
			return err
		}
		if err := tx.InsertAppointment(ctx, appt); err != nil {
			return err
		}
		return s.emit(ctx, tx, outbox.TypeBooked, outbox.PayloadFor(appt, p.String(), now))
	})
	if err != nil {
		return model.Appointment{}, err
	}

	s.logger.InfoContext(ctx, "appointment created",
		"appointment_id", appt.ID, "principal", p.String(), "slot", slot.String(), "status", appt.Status.String())
	return appt, nil
}

func (s *Service) Get(ctx context.Context, p model.Principal, id string) (model.Appointment, error) {
	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.access.Authorize(ctx, p, appt, access.Read); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// History returns the completion record of an appointment the principal can read.
func (s *Service) History(ctx context.Context, p model.Principal, id string) (model.HistoryRecord, error) {
	if _, err := s.Get(ctx, p, id); err != nil {
		return model.HistoryRecord{}, err
	}
	return s.store.GetHistory(ctx, id)
}

func (s *Service) List(ctx context.Context, p model.Principal, f ListFilter) ([]model.Appointment, error) {
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit < 0 || f.Limit > MaxListLimit {
		return nil, apperr.New(apperr.Validation, "limit must be between 1 and %d", MaxListLimit)
	}
	if f.Offset < 0 {
		return nil, apperr.New(apperr.Validation, "offset must not be negative")
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, apperr.New(apperr.Validation, "invalid status filter")
	}

	scope, err := s.access.Scope(ctx, p)
	if err != nil {
		return nil, err
	}
	if scope.Empty() {
		return []model.Appointment{}, nil
	}
	return s.store.List(ctx, scope, f)
}

// IsAvailable answers a slot query outside of any write.
func (s *Service) IsAvailable(ctx context.Context, q availability.Query) (bool, error) {
	return availability.IsAvailable(ctx, s.store, q)
}

// FreeTimes lists the open grid times of a day for one company service.
func (s *Service) FreeTimes(ctx context.Context, companyID, serviceID string, date time.Time, day availability.Day) ([]model.Clock, error) {
	taken, err := s.store.TakenTimes(ctx, companyID, serviceID, date)
	if err != nil {
		return nil, err
	}
	return availability.FreeTimes(day, date, taken, s.now(), s.loc), nil
}

func (s *Service) Reschedule(ctx context.Context, p model.Principal, id string, in RescheduleInput) (appt model.Appointment, err error) {
	ctx, span := s.start(ctx, "Reschedule", p)
	defer func() { endSpan(span, err) }()

	if in.Notes != nil {
		if err := validateNotes(*in.Notes); err != nil {
			return model.Appointment{}, err
		}
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.access.Authorize(ctx, p, current, access.Mutate); err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return apperr.New(apperr.InvalidTransition, "cannot reschedule a %s appointment", current.Status)
		}

		next := current
		date, clock := current.Slot.DateString(), current.Slot.Time.String()
		if in.Date != nil {
			date = *in.Date
		}
		if in.Time != nil {
			clock = *in.Time
		}
		slot, err := model.NewSlot(date, clock)
		if err != nil {
			return apperr.Wrap(apperr.Validation, err, "%s", err.Error())
		}
		next.Slot = slot

		if in.StaffID != nil {
			if *in.StaffID == "" {
				next.StaffID = nil
			} else {
				if err := s.checkStaff(ctx, current.CompanyID, *in.StaffID); err != nil {
					return err
				}
				staffID := *in.StaffID
				next.StaffID = &staffID
			}
		}
		if in.Notes != nil {
			next.Notes = *in.Notes
		}

		moved := !slot.Equal(current.Slot)
		if moved {
			if err := s.requireFuture(slot); err != nil {
				return err
			}
			if err := tx.LockSlot(ctx, slot.Key(current.CompanyID, current.ServiceID)); err != nil {
				return apperr.Wrap(apperr.Internal, err, "lock slot")
			}
			if err := availability.Require(ctx, tx, availability.Query{
				CompanyID: current.CompanyID,
				ServiceID: current.ServiceID,
				Slot:      slot,
				ExcludeID: current.ID,
			}); err != nil {
				return err
			}
		}

		next.UpdatedAt = s.now()
		if err := tx.UpdateAppointment(ctx, next); err != nil {
			return err
		}

		payload := outbox.PayloadFor(next, p.String(), next.UpdatedAt)
		if moved {
			payload.PreviousDate = current.Slot.DateString()
			payload.PreviousTime = current.Slot.Time.String()
		}
		if err := s.emit(ctx, tx, outbox.TypeRescheduled, payload); err != nil {
			return err
		}
		appt = next
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}

	s.logger.InfoContext(ctx, "appointment rescheduled",
		"appointment_id", appt.ID, "principal", p.String(), "slot", appt.Slot.String())
	return appt, nil
}

// Cancel is available to anyone who may mutate the appointment, including
// staff and customers who cannot otherwise change its status.
func (s *Service) Cancel(ctx context.Context, p model.Principal, id string) (appt model.Appointment, err error) {
	ctx, span := s.start(ctx, "Cancel", p)
	defer func() { endSpan(span, err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.access.Authorize(ctx, p, current, access.Mutate); err != nil {
			return err
		}
		appt, err = s.transition(ctx, tx, p, current, model.StatusCancelled)
		return err
	})
	if err != nil {
		return model.Appointment{}, err
	}
	s.logger.InfoContext(ctx, "appointment cancelled", "appointment_id", appt.ID, "principal", p.String())
	return appt, nil
}

// ChangeStatus moves an appointment through the status workflow. Moving to
// Completed records the completion history in the same transaction; a nil
// completion records no products and a zero cost.
func (s *Service) ChangeStatus(ctx context.Context, p model.Principal, id string, requested model.Status, completion *CompletionInput) (appt model.Appointment, err error) {
	ctx, span := s.start(ctx, "ChangeStatus", p)
	span.SetAttributes(attribute.String("appointment.requested_status", requested.String()))
	defer func() { endSpan(span, err) }()

	if !requested.Valid() {
		return model.Appointment{}, apperr.New(apperr.Validation, "invalid status")
	}
	if completion != nil && requested != model.StatusCompleted {
		return model.Appointment{}, apperr.New(apperr.Validation, "completion details are only accepted when completing")
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.access.Authorize(ctx, p, current, access.ChangeStatus); err != nil {
			return err
		}
		if !model.CanTransition(current.Status, requested) {
			return apperr.New(apperr.InvalidTransition, "cannot move appointment from %s to %s", current.Status, requested)
		}
		if requested == model.StatusCompleted {
			var in CompletionInput
			if completion != nil {
				in = *completion
			}
			appt, _, err = s.recorder.record(ctx, tx, p, current, in)
			return err
		}
		appt, err = s.transition(ctx, tx, p, current, requested)
		return err
	})
	if err != nil {
		return model.Appointment{}, err
	}
	s.logger.InfoContext(ctx, "appointment status changed",
		"appointment_id", appt.ID, "principal", p.String(), "status", appt.Status.String())
	return appt, nil
}

func (s *Service) Delete(ctx context.Context, p model.Principal, id string) (err error) {
	ctx, span := s.start(ctx, "Delete", p)
	defer func() { endSpan(span, err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		for _, c := range []access.Capability{access.Read, access.Mutate} {
			if err := s.access.Authorize(ctx, p, current, c); err != nil {
				return err
			}
		}
		if err := tx.DeleteAppointment(ctx, id); err != nil {
			return err
		}
		return s.emit(ctx, tx, outbox.TypeDeleted, outbox.PayloadFor(current, p.String(), s.now()))
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "appointment deleted", "appointment_id", id, "principal", p.String())
	return nil
}

// transition applies a non-completing status change.
func (s *Service) transition(ctx context.Context, tx Tx, p model.Principal, current model.Appointment, to model.Status) (model.Appointment, error) {
	if !model.CanTransition(current.Status, to) {
		return model.Appointment{}, apperr.New(apperr.InvalidTransition, "cannot move appointment from %s to %s", current.Status, to)
	}
	next := current
	next.Status = to
	next.UpdatedAt = s.now()
	if err := tx.UpdateAppointment(ctx, next); err != nil {
		return model.Appointment{}, err
	}
	payload := outbox.PayloadFor(next, p.String(), next.UpdatedAt)
	payload.PreviousStatus = current.Status.String()
	if err := s.emit(ctx, tx, outbox.TypeStatusChanged, payload); err != nil {
		return model.Appointment{}, err
	}
	return next, nil
}

func (s *Service) requireFuture(slot model.Slot) error {
	if !slot.At(s.loc).After(s.now()) {
		return apperr.New(apperr.Validation, "appointment time %s must be in the future", slot)
	}
	return nil
}

func (s *Service) checkCompanyAndService(ctx context.Context, companyID, serviceID string) error {
	company, err := s.dir.GetCompany(ctx, companyID)
	if err != nil {
		return lookupErr(err, "company", companyID)
	}
	switch company.Status {
	case directory.CompanyActive:
	case directory.CompanyInactive, directory.CompanyPending:
		return apperr.New(apperr.InactiveResource, "company %s is %s", companyID, company.Status)
	default:
		return apperr.New(apperr.InactiveResource, "company %s is not active", companyID)
	}

	svc, err := s.dir.GetService(ctx, serviceID)
	if err != nil {
		return lookupErr(err, "service", serviceID)
	}
	if svc.CompanyID != companyID {
		return apperr.New(apperr.Validation, "service %s does not belong to company %s", serviceID, companyID)
	}
	if !svc.Active {
		return apperr.New(apperr.InactiveResource, "service %s is not active", serviceID)
	}
	return nil
}

func (s *Service) checkStaff(ctx context.Context, companyID, staffID string) error {
	staff, err := s.dir.GetStaff(ctx, staffID)
	if err != nil {
		return lookupErr(err, "staff member", staffID)
	}
	if staff.CompanyID != companyID {
		return apperr.New(apperr.Validation, "staff member %s does not work for company %s", staffID, companyID)
	}
	if !staff.Active {
		return apperr.New(apperr.InactiveResource, "staff member %s is not active", staffID)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, tx Tx, eventType string, payload outbox.AppointmentPayload) error {
	evt, err := outbox.NewAppointmentEvent(eventType, payload)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "build event")
	}
	if err := tx.InsertEvent(ctx, evt); err != nil {
		return apperr.Wrap(apperr.Internal, err, "write outbox event")
	}
	return nil
}

func (s *Service) start(ctx context.Context, op string, p model.Principal) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "lifecycle."+op, trace.WithAttributes(
		attribute.String("principal.role", p.Role.Current().String()),
		attribute.Bool("principal.downgraded", p.Role.IsDowngraded()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.KindOf(err).String())
	}
	span.End()
}

func lookupErr(err error, what, id string) error {
	if errors.Is(err, directory.ErrNotFound) {
		return apperr.New(apperr.NotFound, "%s %s not found", what, id)
	}
	return apperr.Wrap(apperr.Internal, err, "load %s", strings.ReplaceAll(what, " ", "_"))
}
