package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
)

// Event types double as Kafka topic names.
const (
	TypeBooked        = "appointment.booked.v1"
	TypeRescheduled   = "appointment.rescheduled.v1"
	TypeStatusChanged = "appointment.status_changed.v1"
	TypeCompleted     = "appointment.completed.v1"
	TypeDeleted       = "appointment.deleted.v1"
)

const aggregateAppointment = "appointment"

// Event is the envelope written to outbox_events in the same transaction as
// the change it describes.
type Event struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// AppointmentPayload is the JSON body of every appointment event.
type AppointmentPayload struct {
	AppointmentID  string  `json:"appointment_id"`
	CustomerID     string  `json:"customer_id"`
	CompanyID      string  `json:"company_id"`
	ServiceID      string  `json:"service_id"`
	StaffID        *string `json:"staff_id,omitempty"`
	Date           string  `json:"date"`
	Time           string  `json:"time"`
	Status         string  `json:"status"`
	PreviousStatus string  `json:"previous_status,omitempty"`
	PreviousDate   string  `json:"previous_date,omitempty"`
	PreviousTime   string  `json:"previous_time,omitempty"`
	HistoryID      string  `json:"history_id,omitempty"`
	TotalCost      string  `json:"total_cost,omitempty"`
	Actor          string  `json:"actor"`
	OccurredAt     string  `json:"occurred_at"`
}

func PayloadFor(a model.Appointment, actor string, at time.Time) AppointmentPayload {
	return AppointmentPayload{
		AppointmentID: a.ID,
		CustomerID:    a.CustomerID,
		CompanyID:     a.CompanyID,
		ServiceID:     a.ServiceID,
		StaffID:       a.StaffID,
		Date:          a.Slot.DateString(),
		Time:          a.Slot.Time.String(),
		Status:        a.Status.String(),
		Actor:         actor,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}

func NewAppointmentEvent(eventType string, p AppointmentPayload) (Event, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:            uuid.NewString(),
		AggregateType: aggregateAppointment,
		AggregateID:   p.AppointmentID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}
