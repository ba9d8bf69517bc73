package lifecycle

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/access"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/outbox"
)

// Store is the persistence the lifecycle needs. Lookups of a missing
// appointment fail with an apperr.NotFound error. Writes that would put two
// active appointments in one slot fail with apperr.SlotConflict.
type Store interface {
	// WithinTx runs fn in one transaction, committing only if fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Get(ctx context.Context, id string) (model.Appointment, error)
	List(ctx context.Context, scope access.Scope, f ListFilter) ([]model.Appointment, error)
	GetHistory(ctx context.Context, appointmentID string) (model.HistoryRecord, error)
	CountActiveInSlot(ctx context.Context, companyID, serviceID string, slot model.Slot, excludeID string) (int, error)
	TakenTimes(ctx context.Context, companyID, serviceID string, date time.Time) ([]model.Clock, error)
}

// Tx is the transactional view of the store.
type Tx interface {
	// LockSlot serializes writers of one slot until the transaction ends.
	LockSlot(ctx context.Context, key string) error
	CountActiveInSlot(ctx context.Context, companyID, serviceID string, slot model.Slot, excludeID string) (int, error)

	GetForUpdate(ctx context.Context, id string) (model.Appointment, error)
	InsertAppointment(ctx context.Context, a model.Appointment) error
	UpdateAppointment(ctx context.Context, a model.Appointment) error
	DeleteAppointment(ctx context.Context, id string) error

	HistoryExists(ctx context.Context, appointmentID string) (bool, error)
	InsertHistory(ctx context.Context, h model.HistoryRecord) error

	InsertEvent(ctx context.Context, evt outbox.Event) error
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type ListFilter struct {
	Status    *model.Status
	Date      *time.Time
	CompanyID string
	Limit     int
	Offset    int
}
