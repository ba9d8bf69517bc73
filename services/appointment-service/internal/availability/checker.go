package availability

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
)

// Counter counts appointments with an active status in one slot of a
// company's service, ignoring excludeID when it is non-empty.
type Counter interface {
	CountActiveInSlot(ctx context.Context, companyID, serviceID string, slot model.Slot, excludeID string) (int, error)
}

type Query struct {
	CompanyID string
	ServiceID string
	Slot      model.Slot
	// ExcludeID is the appointment being rescheduled, if any.
	ExcludeID string
}

// IsAvailable reports whether no active appointment holds the slot. Staff
// assignment is not considered.
func IsAvailable(ctx context.Context, c Counter, q Query) (bool, error) {
	n, err := c.CountActiveInSlot(ctx, q.CompanyID, q.ServiceID, q.Slot, q.ExcludeID)
	if err != nil {
		return false, fmt.Errorf("count active appointments: %w", err)
	}
	return n == 0, nil
}

// Require is IsAvailable that fails with a SlotConflict error.
func Require(ctx context.Context, c Counter, q Query) error {
	ok, err := IsAvailable(ctx, c, q)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.SlotConflict, "slot %s is already booked", q.Slot)
	}
	return nil
}
