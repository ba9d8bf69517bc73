// Package lifecycletest provides an in-memory lifecycle.Store for tests.
package lifecycletest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/access"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/lifecycle"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/outbox"
)

// Store serializes transactions behind one mutex and restores a snapshot
// when a transaction fails. It enforces the active-slot uniqueness the
// database index provides.
type Store struct {
	mu      sync.Mutex
	appts   map[string]model.Appointment
	history map[string]model.HistoryRecord
	events  []outbox.Event

	// FailUpdate, when set, is returned by every UpdateAppointment.
	FailUpdate error
}

func NewStore() *Store {
	return &Store{
		appts:   map[string]model.Appointment{},
		history: map[string]model.HistoryRecord{},
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx lifecycle.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	appts := make(map[string]model.Appointment, len(s.appts))
	for k, v := range s.appts {
		appts[k] = v
	}
	history := make(map[string]model.HistoryRecord, len(s.history))
	for k, v := range s.history {
		history[k] = v
	}
	events := append([]outbox.Event(nil), s.events...)

	if err := fn(ctx, txn{s}); err != nil {
		s.appts, s.history, s.events = appts, history, events
		return err
	}
	return nil
}

func (s *Store) Get(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return txn{s}.get(id)
}

func (s *Store) List(_ context.Context, scope access.Scope, f lifecycle.ListFilter) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Appointment
	for _, a := range s.appts {
		if !scope.Allows(a) {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Date != nil && a.Slot.DateString() != f.Date.Format(model.DateLayout) {
			continue
		}
		if f.CompanyID != "" && a.CompanyID != f.CompanyID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Slot.String() != out[j].Slot.String() {
			return out[i].Slot.String() < out[j].Slot.String()
		}
		return out[i].ID < out[j].ID
	})
	if f.Offset >= len(out) {
		return []model.Appointment{}, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) GetHistory(_ context.Context, appointmentID string) (model.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.history[appointmentID]
	if !ok {
		return model.HistoryRecord{}, apperr.New(apperr.NotFound, "history not found")
	}
	return h, nil
}

func (s *Store) CountActiveInSlot(ctx context.Context, companyID, serviceID string, slot model.Slot, excludeID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return txn{s}.CountActiveInSlot(ctx, companyID, serviceID, slot, excludeID)
}

func (s *Store) TakenTimes(_ context.Context, companyID, serviceID string, date time.Time) ([]model.Clock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Clock
	for _, a := range s.appts {
		if a.CompanyID == companyID && a.ServiceID == serviceID && a.Status.IsActive() &&
			a.Slot.DateString() == date.Format(model.DateLayout) {
			out = append(out, a.Slot.Time)
		}
	}
	return out, nil
}

// EventTypes lists the outbox events written so far, oldest first.
func (s *Store) EventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// HistoryCount is 1 when the appointment has a history record.
func (s *Store) HistoryCount(appointmentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.history[appointmentID]; ok {
		return 1
	}
	return 0
}

// txn assumes the store mutex is held.
type txn struct{ s *Store }

func (t txn) get(id string) (model.Appointment, error) {
	a, ok := t.s.appts[id]
	if !ok {
		return model.Appointment{}, apperr.New(apperr.NotFound, "appointment %s not found", id)
	}
	return a, nil
}

func (t txn) LockSlot(context.Context, string) error { return nil }

func (t txn) CountActiveInSlot(_ context.Context, companyID, serviceID string, slot model.Slot, excludeID string) (int, error) {
	n := 0
	for _, a := range t.s.appts {
		if a.ID == excludeID || !a.Status.IsActive() {
			continue
		}
		if a.CompanyID == companyID && a.ServiceID == serviceID && a.Slot.Equal(slot) {
			n++
		}
	}
	return n, nil
}

func (t txn) GetForUpdate(_ context.Context, id string) (model.Appointment, error) {
	return t.get(id)
}

func (t txn) checkUnique(a model.Appointment) error {
	if !a.Status.IsActive() {
		return nil
	}
	n, _ := t.CountActiveInSlot(context.Background(), a.CompanyID, a.ServiceID, a.Slot, a.ID)
	if n > 0 {
		return apperr.New(apperr.SlotConflict, "slot %s is already booked", a.Slot)
	}
	return nil
}

func (t txn) InsertAppointment(_ context.Context, a model.Appointment) error {
	if err := t.checkUnique(a); err != nil {
		return err
	}
	t.s.appts[a.ID] = a
	return nil
}

func (t txn) UpdateAppointment(_ context.Context, a model.Appointment) error {
	if t.s.FailUpdate != nil {
		return t.s.FailUpdate
	}
	if _, err := t.get(a.ID); err != nil {
		return err
	}
	if err := t.checkUnique(a); err != nil {
		return err
	}
	t.s.appts[a.ID] = a
	return nil
}

func (t txn) DeleteAppointment(_ context.Context, id string) error {
	if _, err := t.get(id); err != nil {
		return err
	}
	delete(t.s.appts, id)
	delete(t.s.history, id)
	return nil
}

func (t txn) HistoryExists(_ context.Context, appointmentID string) (bool, error) {
	_, ok := t.s.history[appointmentID]
	return ok, nil
}

func (t txn) InsertHistory(_ context.Context, h model.HistoryRecord) error {
	if _, ok := t.s.history[h.AppointmentID]; ok {
		return apperr.New(apperr.AlreadyRecorded, "already recorded")
	}
	t.s.history[h.AppointmentID] = h
	return nil
}

func (t txn) InsertEvent(_ context.Context, evt outbox.Event) error {
	t.s.events = append(t.s.events, evt)
	return nil
}

var (
	_ lifecycle.Store = (*Store)(nil)
	_ lifecycle.Tx    = txn{}
)
