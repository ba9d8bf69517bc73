package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/appointly/libs/httpx"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/availability"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/lifecycle"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
)

type AppointmentHandler struct {
	svc    *lifecycle.Service
	logger *slog.Logger
	day    availability.Day
}

func NewAppointmentHandler(svc *lifecycle.Service, logger *slog.Logger, day availability.Day) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger, day: day}
}

// Register mounts the appointment API on mux behind authn.
func (h *AppointmentHandler) Register(mux *http.ServeMux, authn func(http.Handler) http.Handler) {
	route := func(pattern string, fn func(http.ResponseWriter, *http.Request, model.Principal)) {
		mux.Handle(pattern, authn(withPrincipal(fn)))
	}
	route("POST /api/v1/appointments", h.Create)
	route("GET /api/v1/appointments", h.List)
	route("GET /api/v1/appointments/{id}", h.Get)
	route("PATCH /api/v1/appointments/{id}", h.Reschedule)
	route("DELETE /api/v1/appointments/{id}", h.Delete)
	route("POST /api/v1/appointments/{id}/cancel", h.Cancel)
	route("POST /api/v1/appointments/{id}/status", h.ChangeStatus)
	route("GET /api/v1/appointments/{id}/history", h.History)
	route("POST /api/v1/appointments/{id}/history", h.RecordCompletion)
	route("GET /api/v1/slots/availability", h.Availability)
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request, p model.Principal) {
	var req createAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	appt, err := h.svc.Create(r.Context(), p, req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request, p model.Principal) {
	appt, err := h.svc.Get(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request, p model.Principal) {
	q := r.URL.Query()
	var f lifecycle.ListFilter

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		st, err := model.ParseStatus(raw)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		f.Status = &st
	}
	if raw := strings.TrimSpace(q.Get("date")); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		f.Date = &d
	}
	f.CompanyID = strings.TrimSpace(q.Get("company_id"))

	var ok bool
	if f.Limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if f.Offset, ok = intParam(w, q.Get("offset"), "offset"); !ok {
		return
	}

	items, err := h.svc.List(r.Context(), p, f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp := listResponse{Items: make([]appointmentResponse, 0, len(items)), Limit: f.Limit, Offset: f.Offset}
	if resp.Limit == 0 {
		resp.Limit = lifecycle.DefaultListLimit
	}
	for _, a := range items {
		resp.Items = append(resp.Items, toAppointmentResponse(a))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request, p model.Principal) {
	var req rescheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	appt, err := h.svc.Reschedule(r.Context(), p, r.PathValue("id"), lifecycle.RescheduleInput{
		Date:    req.Date,
		Time:    req.Time,
		StaffID: req.StaffID,
		Notes:   req.Notes,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request, p model.Principal) {
	appt, err := h.svc.Cancel(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *AppointmentHandler) ChangeStatus(w http.ResponseWriter, r *http.Request, p model.Principal) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	var completion *lifecycle.CompletionInput
	if req.Completion != nil {
		in := req.Completion.input()
		completion = &in
	}
	appt, err := h.svc.ChangeStatus(r.Context(), p, r.PathValue("id"), req.Status, completion)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *AppointmentHandler) RecordCompletion(w http.ResponseWriter, r *http.Request, p model.Principal) {
	var req completionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	rec, err := h.svc.Recorder().RecordCompletion(r.Context(), p, r.PathValue("id"), req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toHistoryResponse(rec))
}

func (h *AppointmentHandler) History(w http.ResponseWriter, r *http.Request, p model.Principal) {
	rec, err := h.svc.History(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toHistoryResponse(rec))
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request, p model.Principal) {
	if err := h.svc.Delete(r.Context(), p, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type availabilityResponse struct {
	CompanyID string   `json:"company_id"`
	ServiceID string   `json:"service_id"`
	Date      string   `json:"date"`
	Time      string   `json:"time,omitempty"`
	Available *bool    `json:"available,omitempty"`
	FreeTimes []string `json:"free_times,omitempty"`
}

// Availability answers for one slot when time is given, and lists the free
// grid times of the day otherwise.
func (h *AppointmentHandler) Availability(w http.ResponseWriter, r *http.Request, _ model.Principal) {
	q := r.URL.Query()
	companyID := strings.TrimSpace(q.Get("company_id"))
	serviceID := strings.TrimSpace(q.Get("service_id"))
	if companyID == "" || serviceID == "" {
		badRequest(w, "company_id and service_id are required")
		return
	}
	date, err := model.ParseDate(q.Get("date"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	resp := availabilityResponse{CompanyID: companyID, ServiceID: serviceID, Date: date.Format(model.DateLayout)}

	if raw := strings.TrimSpace(q.Get("time")); raw != "" {
		clock, err := model.ParseClock(raw)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		ok, err := h.svc.IsAvailable(r.Context(), availability.Query{
			CompanyID: companyID,
			ServiceID: serviceID,
			Slot:      model.Slot{Date: date, Time: clock},
		})
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		resp.Time = clock.String()
		resp.Available = &ok
		httpx.WriteJSON(w, http.StatusOK, resp)
		return
	}

	free, err := h.svc.FreeTimes(r.Context(), companyID, serviceID, date, h.day)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp.FreeTimes = make([]string, 0, len(free))
	for _, c := range free {
		resp.FreeTimes = append(resp.FreeTimes, c.String())
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(w, name+" must be an integer")
		return 0, false
	}
	return n, true
}

// DefaultDay is the slot grid used when none is configured.
func DefaultDay() availability.Day {
	return availability.Day{Open: 9 * 60, Close: 17 * 60, Step: 30 * time.Minute}
}
