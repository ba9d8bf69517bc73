package model

import "time"

type Appointment struct {
	ID         string
	CustomerID string
	CompanyID  string
	ServiceID  string
	StaffID    *string
	Slot       Slot
	Status     Status
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (a Appointment) HasStaff(ids map[string]struct{}) bool {
	if a.StaffID == nil {
		return false
	}
	_, ok := ids[*a.StaffID]
	return ok
}

type ProductUsage struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// HistoryRecord is written once, when an appointment is completed.
type HistoryRecord struct {
	ID            string
	AppointmentID string
	CustomerID    string
	CompanyID     string
	StaffID       *string
	ServiceID     string
	Products      []ProductUsage
	TotalCost     Money
	Notes         string
	CompletedAt   time.Time
}
