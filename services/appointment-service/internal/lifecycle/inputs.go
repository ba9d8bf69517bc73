package lifecycle

import (
	"strings"

	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
)

const maxNotesLen = 2000

type CreateInput struct {
	CustomerID string
	CompanyID  string
	ServiceID  string
	StaffID    *string
	Date       string
	Time       string
	Notes      string
}

// RescheduleInput changes only the fields that are set. An empty StaffID
// unassigns the appointment.
type RescheduleInput struct {
	Date    *string
	Time    *string
	StaffID *string
	Notes   *string
}

type CompletionInput struct {
	Products  []model.ProductUsage
	TotalCost model.Money
	Notes     string
}

func (in CreateInput) validate() (model.Slot, error) {
	var missing []string
	if strings.TrimSpace(in.CustomerID) == "" {
		missing = append(missing, "customer_id")
	}
	if strings.TrimSpace(in.CompanyID) == "" {
		missing = append(missing, "company_id")
	}
	if strings.TrimSpace(in.ServiceID) == "" {
		missing = append(missing, "service_id")
	}
	if strings.TrimSpace(in.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(in.Time) == "" {
		missing = append(missing, "time")
	}
	if len(missing) > 0 {
		return model.Slot{}, apperr.New(apperr.Validation, "missing required fields: %s", strings.Join(missing, ", "))
	}
	if err := validateNotes(in.Notes); err != nil {
		return model.Slot{}, err
	}
	slot, err := model.NewSlot(in.Date, in.Time)
	if err != nil {
		return model.Slot{}, apperr.Wrap(apperr.Validation, err, "%s", err.Error())
	}
	return slot, nil
}

func (in CompletionInput) validate() error {
	if in.TotalCost < 0 {
		return apperr.New(apperr.Validation, "total_cost must not be negative")
	}
	seen := make(map[string]struct{}, len(in.Products))
	for _, p := range in.Products {
		if strings.TrimSpace(p.ProductID) == "" {
			return apperr.New(apperr.Validation, "product_id is required")
		}
		if p.Quantity <= 0 {
			return apperr.New(apperr.Validation, "quantity for product %s must be positive", p.ProductID)
		}
		if _, dup := seen[p.ProductID]; dup {
			return apperr.New(apperr.Validation, "product %s listed twice", p.ProductID)
		}
		seen[p.ProductID] = struct{}{}
	}
	return validateNotes(in.Notes)
}

func validateNotes(notes string) error {
	if len(notes) > maxNotesLen {
		return apperr.New(apperr.Validation, "notes must be at most %d characters", maxNotesLen)
	}
	return nil
}
