package lifecycle_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/availability"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/directory"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/lifecycle"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/lifecycle/lifecycletest"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/outbox"
)

var testNow = time.Date(2029, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *lifecycle.Service
	store *lifecycletest.Store
	dir   *directory.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := directory.NewMemory().
		PutCompany(directory.Company{ID: "7", OwnerID: "owner-1", Status: directory.CompanyActive}).
		PutCompany(directory.Company{ID: "8", OwnerID: "owner-2", Status: directory.CompanyActive}).
		PutCompany(directory.Company{ID: "9", OwnerID: "owner-1", Status: directory.CompanyPending}).
		PutService(directory.Service{ID: "3", CompanyID: "7", Active: true}).
		PutService(directory.Service{ID: "4", CompanyID: "7", Active: false}).
		PutService(directory.Service{ID: "30", CompanyID: "8", Active: true}).
		PutService(directory.Service{ID: "90", CompanyID: "9", Active: true}).
		PutStaff(directory.Staff{ID: "st-1", UserID: "staff-user", CompanyID: "7", Active: true}).
		PutStaff(directory.Staff{ID: "st-2", UserID: "other-staff", CompanyID: "7", Active: true}).
		PutStaff(directory.Staff{ID: "st-8", UserID: "staff-8", CompanyID: "8", Active: true}).
		PutProduct(directory.Product{ID: "5", CompanyID: "7"}).
		PutProduct(directory.Product{ID: "6", CompanyID: "8"})

	store := lifecycletest.NewStore()
	var seq int
	var mu sync.Mutex
	svc := lifecycle.NewService(store, dir, slog.New(slog.NewTextHandler(io.Discard, nil)),
		lifecycle.WithClock(func() time.Time { return testNow }),
		lifecycle.WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	return fixture{svc: svc, store: store, dir: dir}
}

func as(user string, role model.Role) model.Principal {
	return model.Principal{UserID: user, Role: model.Persisted(role)}
}

var (
	admin    = as("root", model.RoleAdmin)
	owner    = as("owner-1", model.RoleOwner)
	customer = as("cust-1", model.RoleCustomer)
)

func ptr(s string) *string { return &s }

func (f fixture) book(t *testing.T, date, clock string) model.Appointment {
	t.Helper()
	appt, err := f.svc.Create(context.Background(), customer, lifecycle.CreateInput{
		CompanyID: "7", ServiceID: "3", StaffID: ptr("st-1"), Date: date, Time: clock,
	})
	if err != nil {
		t.Fatalf("create %s %s: %v", date, clock, err)
	}
	return appt
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if !apperr.Is(err, kind) {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}

func TestDoubleBookingConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Create(ctx, customer, lifecycle.CreateInput{
		CustomerID: "cust-1", CompanyID: "7", ServiceID: "3", Date: "2030-01-10", Time: "09:00",
	})
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if appt.Status != model.StatusPending {
		t.Fatalf("expected pending, got %s", appt.Status)
	}

	_, err = f.svc.Create(ctx, as("cust-2", model.RoleCustomer), lifecycle.CreateInput{
		CompanyID: "7", ServiceID: "3", Date: "2030-01-10", Time: "09:00",
	})
	wantKind(t, err, apperr.SlotConflict)

	if got := f.store.EventTypes(); len(got) != 1 || got[0] != outbox.TypeBooked {
		t.Fatalf("expected one booked event, got %v", got)
	}
}

func TestCancelledAppointmentFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "2030-01-10", "09:00")

	if _, err := f.svc.Cancel(ctx, customer, appt.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := f.svc.Create(ctx, as("cust-2", model.RoleCustomer), lifecycle.CreateInput{
		CompanyID: "7", ServiceID: "3", Date: "2030-01-10", Time: "09:00",
	}); err != nil {
		t.Fatalf("slot should be free after cancellation: %v", err)
	}
}

// TestConcurrentCreateBooksOnce covers the service-level check inside one
// transaction. The in-memory store serializes transactions and treats LockSlot
// as a no-op, so the advisory lock and appointments_active_slot_uidx are
// covered by the integration tests in internal/storage.
func TestConcurrentCreateBooksOnce(t *testing.T) {
	f := newFixture(t)
	const attempts = 20

	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), as(fmt.Sprintf("cust-%d", i), model.RoleCustomer), lifecycle.CreateInput{
				CompanyID: "7", ServiceID: "3", Date: "2030-01-10", Time: "09:00",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.Is(err, apperr.SlotConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful booking, got %d", ok)
	}
}

func TestCreateRejectsNonFutureSlots(t *testing.T) {
	f := newFixture(t)
	cases := [][2]string{
		{"2029-06-01", "12:00"}, // exactly now
		{"2029-06-01", "11:59"},
		{"2020-01-01", "09:00"},
	}
	for _, c := range cases {
		_, err := f.svc.Create(context.Background(), customer, lifecycle.CreateInput{
			CompanyID: "7", ServiceID: "3", Date: c[0], Time: c[1],
		})
		wantKind(t, err, apperr.Validation)
	}
	if _, err := f.svc.Create(context.Background(), customer, lifecycle.CreateInput{
		CompanyID: "7", ServiceID: "3", Date: "2029-06-01", Time: "12:01",
	}); err != nil {
		t.Fatalf("one minute ahead should be bookable: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		p    model.Principal
		in   lifecycle.CreateInput
		kind apperr.Kind
	}{
		{"bad date", customer, lifecycle.CreateInput{CompanyID: "7", ServiceID: "3", Date: "10/01/2030", Time: "09:00"}, apperr.Validation},
		{"bad time", customer, lifecycle.CreateInput{CompanyID: "7", ServiceID: "3", Date: "2030-01-10", Time: "9am"}, apperr.Validation},
		{"missing service", customer, lifecycle.CreateInput{CompanyID: "7", Date: "2030-01-10", Time: "09:00"}, apperr.Validation},
		{"unknown company", customer, lifecycle.CreateInput{CompanyID: "404", ServiceID: "3", Date: "2030-01-10", Time: "09:00"}, apperr.NotFound},
		{"company not active", customer, lifecycle.CreateInput{CompanyID: "9", ServiceID: "90", Date: "2030-01-10", Time: "09:00"}, apperr.InactiveResource},
		{"unknown service", customer, lifecycle.CreateInput{CompanyID: "7", ServiceID: "404", Date: "2030-01-10", Time: "09:00"}, apperr.NotFound},
		{"inactive service", customer, lifecycle.CreateInput{CompanyID: "7", ServiceID: "4", Date: "2030-01-10", Time: "09:00"}, apperr.InactiveResource},
		{"service of other company", customer, lifecycle.CreateInput{CompanyID: "7", ServiceID: "30", Date: "2030-01-10", Time: "09:00"}, apperr.Validation},
		{"staff of other company", customer, lifecycle.CreateInput{CompanyID: "7", ServiceID: "3", StaffID: ptr("st-8"), Date: "2030-01-10", Time: "09:00"}, apperr.Validation},
		{"customer books for someone else", customer, lifecycle.CreateInput{CustomerID: "cust-2", CompanyID: "7", ServiceID: "3", Date: "2030-01-10", Time: "09:00"}, apperr.PermissionDenied},
		{"owner books in foreign company", owner, lifecycle.CreateInput{CustomerID: "cust-2", CompanyID: "8", ServiceID: "30", Date: "2030-01-10", Time: "09:00"}, apperr.PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tt.p, tt.in)
			wantKind(t, err, tt.kind)
		})
	}
}

func TestPendingCannotComplete(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "2030-01-10", "09:00")

	_, err := f.svc.ChangeStatus(context.Background(), owner, appt.ID, model.StatusCompleted, nil)
	wantKind(t, err, apperr.InvalidTransition)
	if f.store.HistoryCount(appt.ID) != 0 {
		t.Fatal("no history may be written for a rejected completion")
	}
}

func TestCompletionRecordsHistoryOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "2030-01-10", "09:00")

	if _, err := f.svc.ChangeStatus(ctx, owner, appt.ID, model.StatusConfirmed, nil); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	completion := &lifecycle.CompletionInput{Products: []model.ProductUsage{{ProductID: "5", Quantity: 2}}, TotalCost: 4000}
	done, err := f.svc.ChangeStatus(ctx, owner, appt.ID, model.StatusCompleted, completion)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if done.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if f.store.HistoryCount(appt.ID) != 1 {
		t.Fatal("expected exactly one history record")
	}
	h, _ := f.store.GetHistory(ctx, appt.ID)
	if h.TotalCost.String() != "40.00" || len(h.Products) != 1 || h.Products[0].Quantity != 2 || h.CompanyID != "7" {
		t.Fatalf("unexpected history %+v", h)
	}

	_, err = f.svc.Recorder().RecordCompletion(ctx, owner, appt.ID, *completion)
	wantKind(t, err, apperr.AlreadyRecorded)
	if f.store.HistoryCount(appt.ID) != 1 {
		t.Fatal("second record must not be written")
	}
}

func TestCancelledIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "2030-01-10", "09:00")
	if _, err := f.svc.ChangeStatus(ctx, owner, appt.ID, model.StatusCancelled, nil); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	for _, s := range []model.Status{model.StatusPending, model.StatusConfirmed, model.StatusCompleted, model.StatusCancelled} {
		_, err := f.svc.ChangeStatus(ctx, admin, appt.ID, s, nil)
		wantKind(t, err, apperr.InvalidTransition)
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "2030-01-10", "09:00")
	if _, err := f.svc.ChangeStatus(ctx, owner, appt.ID, model.StatusConfirmed, nil); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if _, err := f.svc.ChangeStatus(ctx, owner, appt.ID, model.StatusCompleted, nil); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	for _, s := range []model.Status{model.StatusPending, model.StatusConfirmed, model.StatusCompleted, model.StatusCancelled} {
		_, err := f.svc.ChangeStatus(ctx, admin, appt.ID, s, nil)
		wantKind(t, err, apperr.InvalidTransition)
	}
	completion := &lifecycle.CompletionInput{Products: []model.ProductUsage{{ProductID: "5", Quantity: 1}}}
	_, err := f.svc.ChangeStatus(ctx, admin, appt.ID, model.StatusCompleted, completion)
	wantKind(t, err, apperr.InvalidTransition)
	if f.store.HistoryCount(appt.ID) != 1 {
		t.Fatal("completed appointment must keep exactly one history record")
	}
}

func TestIllegalCompletionReportedBeforeProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "2030-01-10", "09:00")

	bad := lifecycle.CompletionInput{Products: []model.ProductUsage{{ProductID: "404", Quantity: 1}}}
	_, err := f.svc.ChangeStatus(ctx, owner, appt.ID, model.StatusCompleted, &bad)
	wantKind(t, err, apperr.InvalidTransition)

	_, err = f.svc.Recorder().RecordCompletion(ctx, owner, appt.ID, bad)
	wantKind(t, err, apperr.InvalidTransition)
	if f.store.HistoryCount(appt.ID) != 0 {
		t.Fatal("no history may be written for a pending appointment")
	}
}

func TestStaffCannotReadForeignAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt, err := f.svc.Create(ctx, customer, lifecycle.CreateInput{
		CompanyID: "7", ServiceID: "3", StaffID: ptr("st-2"), Date: "2030-01-10", Time: "09:00",
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.Get(ctx, as("staff-user", model.RoleStaff), appt.ID)
	wantKind(t, err, apperr.PermissionDenied)

	if _, err := f.svc.Get(ctx, as("other-staff", model.RoleStaff), appt.ID); err != nil {
		t.Fatalf("assigned staff should read: %v", err)
	}
}

func TestRecordCompletionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "2030-01-10", "09:00")
	if _, err := f.svc.ChangeStatus(ctx, owner, appt.ID, model.StatusConfirmed, nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		in   lifecycle.CompletionInput
		kind apperr.Kind
	}{
		{"unknown product", lifecycle.CompletionInput{Products: []model.ProductUsage{{ProductID: "404", Quantity: 1}}}, apperr.NotFound},
		{"foreign product", lifecycle.CompletionInput{Products: []model.ProductUsage{{ProductID: "6", Quantity: 1}}}, apperr.Validation},
		{"zero quantity", lifecycle.CompletionInput{Products: []model.ProductUsage{{ProductID: "5", Quantity: 0}}}, apperr.Validation},
		{"negative cost", lifecycle.CompletionInput{TotalCost: -1}, apperr.Validation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Recorder().RecordCompletion(ctx, owner, appt.ID, tt.in)
			wantKind(t, err, tt.kind)
		})
	}

	got, _ := f.store.Get(ctx, appt.ID)
	if got.Status != model.StatusConfirmed || f.store.HistoryCount(appt.ID) != 0 {
		t.Fatal("failed completions must leave no trace")
	}

	_, err := f.svc.Recorder().RecordCompletion(ctx, as("staff-user", model.RoleStaff), appt.ID, lifecycle.CompletionInput{})
	wantKind(t, err, apperr.PermissionDenied)
}

func TestCompletionIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "2030-01-10", "09:00")
	if _, err := f.svc.ChangeStatus(ctx, owner, appt.ID, model.StatusConfirmed, nil); err != nil {
		t.Fatal(err)
	}

	f.store.FailUpdate = errors.New("connection reset")
	_, err := f.svc.ChangeStatus(ctx, owner, appt.ID, model.StatusCompleted, &lifecycle.CompletionInput{TotalCost: 100})
	if err == nil {
		t.Fatal("expected failure")
	}
	f.store.FailUpdate = nil

	got, _ := f.store.Get(ctx, appt.ID)
	if got.Status != model.StatusConfirmed {
		t.Fatalf("status must be unchanged, got %s", got.Status)
	}
	if f.store.HistoryCount(appt.ID) != 0 {
		t.Fatal("history must be rolled back with the status change")
	}
}

func TestStaffAndCustomerCannotChangeStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "2030-01-10", "09:00")

	_, err := f.svc.ChangeStatus(ctx, as("staff-user", model.RoleStaff), appt.ID, model.StatusConfirmed, nil)
	wantKind(t, err, apperr.PermissionDenied)
	_, err = f.svc.ChangeStatus(ctx, customer, appt.ID, model.StatusConfirmed, nil)
	wantKind(t, err, apperr.PermissionDenied)

	if _, err := f.svc.Cancel(ctx, as("staff-user", model.RoleStaff), appt.ID); err != nil {
		t.Fatalf("assigned staff may cancel: %v", err)
	}
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.book(t, "2030-01-10", "09:00")
	second := f.book(t, "2030-01-10", "10:00")

	_, err := f.svc.Reschedule(ctx, customer, second.ID, lifecycle.RescheduleInput{Time: ptr("09:00")})
	wantKind(t, err, apperr.SlotConflict)

	// Same slot, notes only: must not conflict with itself.
	got, err := f.svc.Reschedule(ctx, customer, first.ID, lifecycle.RescheduleInput{Notes: ptr("bring forms")})
	if err != nil {
		t.Fatalf("notes-only reschedule failed: %v", err)
	}
	if got.Notes != "bring forms" {
		t.Fatalf("notes not updated: %q", got.Notes)
	}

	_, err = f.svc.Reschedule(ctx, customer, first.ID, lifecycle.RescheduleInput{Date: ptr("2020-01-01")})
	wantKind(t, err, apperr.Validation)

	moved, err := f.svc.Reschedule(ctx, customer, first.ID, lifecycle.RescheduleInput{Date: ptr("2030-02-01"), StaffID: ptr("")})
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if moved.Slot.String() != "2030-02-01 09:00" || moved.StaffID != nil {
		t.Fatalf("unexpected moved appointment %+v", moved)
	}

	_, err = f.svc.Reschedule(ctx, as("cust-2", model.RoleCustomer), first.ID, lifecycle.RescheduleInput{Time: ptr("11:00")})
	wantKind(t, err, apperr.PermissionDenied)

	if _, err := f.svc.Cancel(ctx, customer, second.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Reschedule(ctx, customer, second.ID, lifecycle.RescheduleInput{Time: ptr("12:00")})
	wantKind(t, err, apperr.InvalidTransition)
}

func TestDeleteCascadesHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "2030-01-10", "09:00")
	if _, err := f.svc.ChangeStatus(ctx, owner, appt.ID, model.StatusConfirmed, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ChangeStatus(ctx, owner, appt.ID, model.StatusCompleted, nil); err != nil {
		t.Fatal(err)
	}

	wantKind(t, f.svc.Delete(ctx, as("owner-2", model.RoleOwner), appt.ID), apperr.PermissionDenied)

	if err := f.svc.Delete(ctx, owner, appt.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, err := f.svc.Get(ctx, admin, appt.ID)
	wantKind(t, err, apperr.NotFound)
	if f.store.HistoryCount(appt.ID) != 0 {
		t.Fatal("history must go with the appointment")
	}

	types := f.store.EventTypes()
	if types[len(types)-1] != outbox.TypeDeleted {
		t.Fatalf("expected deleted event last, got %v", types)
	}
}

func TestListIsRoleScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book(t, "2030-01-10", "09:00")
	f.book(t, "2030-01-11", "09:00")
	if _, err := f.svc.Create(ctx, as("cust-2", model.RoleCustomer), lifecycle.CreateInput{
		CompanyID: "8", ServiceID: "30", Date: "2030-01-10", Time: "09:00",
	}); err != nil {
		t.Fatal(err)
	}

	count := func(p model.Principal, filter lifecycle.ListFilter) int {
		t.Helper()
		got, err := f.svc.List(ctx, p, filter)
		if err != nil {
			t.Fatalf("list as %s: %v", p, err)
		}
		return len(got)
	}

	if n := count(admin, lifecycle.ListFilter{}); n != 3 {
		t.Fatalf("admin sees %d, want 3", n)
	}
	if n := count(owner, lifecycle.ListFilter{}); n != 2 {
		t.Fatalf("owner sees %d, want 2", n)
	}
	if n := count(as("staff-8", model.RoleStaff), lifecycle.ListFilter{}); n != 0 {
		t.Fatalf("unassigned staff sees %d, want 0", n)
	}
	if n := count(as("staff-user", model.RoleStaff), lifecycle.ListFilter{}); n != 2 {
		t.Fatalf("assigned staff sees %d, want 2", n)
	}
	if n := count(as("cust-2", model.RoleCustomer), lifecycle.ListFilter{}); n != 1 {
		t.Fatalf("customer sees %d, want 1", n)
	}
	day := time.Date(2030, 1, 11, 0, 0, 0, 0, time.UTC)
	if n := count(owner, lifecycle.ListFilter{Date: &day}); n != 1 {
		t.Fatalf("date filter: got %d, want 1", n)
	}
	if n := count(admin, lifecycle.ListFilter{Limit: 1, Offset: 2}); n != 1 {
		t.Fatalf("paging: got %d, want 1", n)
	}

	if _, err := f.svc.List(ctx, admin, lifecycle.ListFilter{Limit: lifecycle.MaxListLimit + 1}); !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation error for oversized limit, got %v", err)
	}
}

func TestFreeTimes(t *testing.T) {
	f := newFixture(t)
	f.book(t, "2030-01-10", "09:00")

	day, _ := time.Parse(model.DateLayout, "2030-01-10")
	open, _ := model.ParseClock("09:00")
	closing, _ := model.ParseClock("10:00")
	free, err := f.svc.FreeTimes(context.Background(), "7", "3", day, availabilityDay(open, closing))
	if err != nil {
		t.Fatal(err)
	}
	if len(free) != 1 || free[0].String() != "09:30" {
		t.Fatalf("unexpected free times %v", free)
	}
}

func availabilityDay(open, closing model.Clock) availability.Day {
	return availability.Day{Open: open, Close: closing, Step: 30 * time.Minute}
}
