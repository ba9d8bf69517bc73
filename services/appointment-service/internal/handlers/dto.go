package handlers

import (
	"time"

	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/lifecycle"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
)

type createAppointmentRequest struct {
	CustomerID string  `json:"customer_id"`
	CompanyID  string  `json:"company_id"`
	ServiceID  string  `json:"service_id"`
	StaffID    *string `json:"staff_id"`
	Date       string  `json:"date"`
	Time       string  `json:"time"`
	Notes      string  `json:"notes"`
}

func (r createAppointmentRequest) input() lifecycle.CreateInput {
	return lifecycle.CreateInput{
		CustomerID: r.CustomerID,
		CompanyID:  r.CompanyID,
		ServiceID:  r.ServiceID,
		StaffID:    r.StaffID,
		Date:       r.Date,
		Time:       r.Time,
		Notes:      r.Notes,
	}
}

type rescheduleRequest struct {
	Date    *string `json:"date"`
	Time    *string `json:"time"`
	StaffID *string `json:"staff_id"`
	Notes   *string `json:"notes"`
}

type completionRequest struct {
	Products  []model.ProductUsage `json:"products"`
	TotalCost model.Money          `json:"total_cost"`
	Notes     string               `json:"notes"`
}

func (r completionRequest) input() lifecycle.CompletionInput {
	return lifecycle.CompletionInput{Products: r.Products, TotalCost: r.TotalCost, Notes: r.Notes}
}

// statusRequest accepts the status as a string or as the legacy integer code.
type statusRequest struct {
	Status     model.Status       `json:"status"`
	Completion *completionRequest `json:"completion"`
}

type appointmentResponse struct {
	ID         string       `json:"id"`
	CustomerID string       `json:"customer_id"`
	CompanyID  string       `json:"company_id"`
	ServiceID  string       `json:"service_id"`
	StaffID    *string      `json:"staff_id"`
	Date       string       `json:"date"`
	Time       string       `json:"time"`
	Status     model.Status `json:"status"`
	Notes      string       `json:"notes,omitempty"`
	CreatedAt  string       `json:"created_at"`
	UpdatedAt  string       `json:"updated_at"`
}

func toAppointmentResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:         a.ID,
		CustomerID: a.CustomerID,
		CompanyID:  a.CompanyID,
		ServiceID:  a.ServiceID,
		StaffID:    a.StaffID,
		Date:       a.Slot.DateString(),
		Time:       a.Slot.Time.String(),
		Status:     a.Status,
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type listResponse struct {
	Items  []appointmentResponse `json:"items"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

type historyResponse struct {
	ID            string               `json:"id"`
	AppointmentID string               `json:"appointment_id"`
	CustomerID    string               `json:"customer_id"`
	CompanyID     string               `json:"company_id"`
	StaffID       *string              `json:"staff_id"`
	ServiceID     string               `json:"service_id"`
	Products      []model.ProductUsage `json:"products"`
	TotalCost     model.Money          `json:"total_cost"`
	Notes         string               `json:"notes,omitempty"`
	CompletedAt   string               `json:"completed_at"`
}

func toHistoryResponse(h model.HistoryRecord) historyResponse {
	products := h.Products
	if products == nil {
		products = []model.ProductUsage{}
	}
	return historyResponse{
		ID:            h.ID,
		AppointmentID: h.AppointmentID,
		CustomerID:    h.CustomerID,
		CompanyID:     h.CompanyID,
		StaffID:       h.StaffID,
		ServiceID:     h.ServiceID,
		Products:      products,
		TotalCost:     h.TotalCost,
		Notes:         h.Notes,
		CompletedAt:   h.CompletedAt.UTC().Format(time.RFC3339),
	}
}
