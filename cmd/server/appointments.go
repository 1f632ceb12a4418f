package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"carevault/internal/store"
	"carevault/pkg/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (a *app) registerAppointmentRoutes(api chi.Router) {
	api.Route("/appointments", func(ar chi.Router) {
		ar.Get("/", func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r)
			var (
				appts []store.Appointment
				err   error
			)
			if claims.UserType == store.UserTypeDoctor {
				appts, err = a.store.ListAppointmentsByDoctor(r.Context(), claims.ProfileID)
			} else {
				appts, err = a.store.ListAppointmentsByPatient(r.Context(), claims.ProfileID)
			}
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.OK(w, 200, map[string]any{"appointments": appts, "count": len(appts)})
		})

		ar.Post("/", a.handleCreateAppointment)
		ar.Get("/{appointment_id}", a.handleGetAppointment)
		ar.Put("/{appointment_id}", a.handleUpdateAppointment)
		ar.Post("/{appointment_id}/cancel", a.handleCancelAppointment)
		ar.Post("/{appointment_id}/complete", a.handleCompleteAppointment)
	})
}

func (a *app) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	var req struct {
		PatientID   string `json:"patient_id"`
		DoctorID    string `json:"doctor_id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		ScheduledAt string `json:"scheduled_at"`
		Duration    int    `json:"duration_minutes"`
		Location    string `json:"location"`
		IsVirtual   bool   `json:"is_virtual"`
		MeetingLink string `json:"meeting_link"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}

	// The caller's own profile fills in their side of the visit.
	if claims.UserType == store.UserTypeDoctor {
		req.DoctorID = claims.ProfileID
	} else {
		req.PatientID = claims.ProfileID
	}
	if strings.TrimSpace(req.PatientID) == "" || strings.TrimSpace(req.DoctorID) == "" || strings.TrimSpace(req.Title) == "" {
		httpx.WriteError(w, 400, "BAD_REQUEST", "patient_id, doctor_id and title are required", nil)
		return
	}
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduledAt))
	if err != nil {
		httpx.WriteError(w, 400, "BAD_REQUEST", "scheduled_at must be RFC 3339", nil)
		return
	}
	if req.Duration <= 0 {
		req.Duration = 30
	}

	pat, err := a.store.GetPatient(r.Context(), strings.TrimSpace(req.PatientID))
	if err != nil {
		httpx.WriteError(w, 404, "NOT_FOUND", "patient not found", nil)
		return
	}
	doc, err := a.store.GetDoctor(r.Context(), strings.TrimSpace(req.DoctorID))
	if err != nil {
		httpx.WriteError(w, 404, "NOT_FOUND", "doctor not found", nil)
		return
	}

	a.handleIdempotentMutation(r, w, pat.PatientID, claims.ProfileID, "POST /api/appointments", func() (int, map[string]any, error) {
		taken, err := a.store.HasConflictingAppointment(r.Context(), doc.DoctorID, at, req.Duration)
		if err != nil {
			return 500, nil, err
		}
		if taken {
			return 409, nil, errors.New("the doctor already has an appointment in this slot")
		}
		appt := store.Appointment{
			AppointmentID: "apt_" + uuid.NewString(),
			PatientID:     pat.PatientID,
			DoctorID:      doc.DoctorID,
			Title:         strings.TrimSpace(req.Title),
			Description:   req.Description,
			ScheduledAt:   at,
			Duration:      req.Duration,
			Location:      req.Location,
			IsVirtual:     req.IsVirtual,
			MeetingLink:   req.MeetingLink,
		}
		if err := a.store.CreateAppointment(r.Context(), appt); err != nil {
			return 500, nil, err
		}

		when := at.Format("Jan 2 2006 15:04")
		if claims.UserType == store.UserTypeDoctor {
			a.notify(r, store.Notification{
				UserID:        pat.UserID,
				Title:         "New appointment",
				Message:       "Dr. " + doc.FullName + " scheduled an appointment for " + when,
				Kind:          store.NotifyAppointment,
				ReferenceID:   appt.AppointmentID,
				ReferenceType: "appointment",
			})
		} else {
			a.notify(r, store.Notification{
				UserID:        doc.UserID,
				Title:         "New appointment",
				Message:       pat.FullName + " booked an appointment for " + when,
				Kind:          store.NotifyAppointment,
				ReferenceID:   appt.AppointmentID,
				ReferenceType: "appointment",
			})
		}
		created, err := a.store.GetAppointment(r.Context(), appt.AppointmentID)
		if err != nil {
			return 500, nil, err
		}
		return 201, map[string]any{"request_id": httpx.NewRequestID(), "appointment": created}, nil
	})
}

func (a *app) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	appt, ok := a.loadParticipantAppointment(w, r)
	if !ok {
		return
	}
	httpx.OK(w, 200, map[string]any{"appointment": appt})
}

func (a *app) handleUpdateAppointment(w http.ResponseWriter, r *http.Request) {
	appt, ok := a.loadParticipantAppointment(w, r)
	if !ok {
		return
	}
	if appt.Status != store.AppointmentScheduled {
		httpx.WriteError(w, 409, "APPOINTMENT_CLOSED", "only scheduled appointments can be changed", nil)
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		ScheduledAt string `json:"scheduled_at"`
		Duration    int    `json:"duration_minutes"`
		Location    string `json:"location"`
		IsVirtual   *bool  `json:"is_virtual"`
		MeetingLink string `json:"meeting_link"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Title) != "" {
		appt.Title = strings.TrimSpace(req.Title)
	}
	if req.Description != "" {
		appt.Description = req.Description
	}
	if req.Duration > 0 {
		appt.Duration = req.Duration
	}
	if req.Location != "" {
		appt.Location = req.Location
	}
	if req.IsVirtual != nil {
		appt.IsVirtual = *req.IsVirtual
	}
	if req.MeetingLink != "" {
		appt.MeetingLink = req.MeetingLink
	}
	if strings.TrimSpace(req.ScheduledAt) != "" {
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduledAt))
		if err != nil {
			httpx.WriteError(w, 400, "BAD_REQUEST", "scheduled_at must be RFC 3339", nil)
			return
		}
		if !at.Equal(appt.ScheduledAt) {
			taken, err := a.store.HasConflictingAppointment(r.Context(), appt.DoctorID, at, appt.Duration)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			if taken {
				httpx.WriteError(w, 409, "SLOT_TAKEN", "the doctor already has an appointment in this slot", nil)
				return
			}
			appt.ScheduledAt = at
		}
	}
	if err := a.store.UpdateAppointment(r.Context(), appt); err != nil {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	updated, err := a.store.GetAppointment(r.Context(), appt.AppointmentID)
	if err != nil {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	httpx.OK(w, 200, map[string]any{"appointment": updated})
}

func (a *app) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	appt, ok := a.loadParticipantAppointment(w, r)
	if !ok {
		return
	}
	if appt.Status != store.AppointmentScheduled {
		httpx.WriteError(w, 409, "APPOINTMENT_CLOSED", "only scheduled appointments can be cancelled", nil)
		return
	}
	if err := a.store.SetAppointmentStatus(r.Context(), appt.AppointmentID, store.AppointmentCancelled); err != nil {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	a.notifyCounterpart(r, appt, "Appointment cancelled", "The appointment \""+appt.Title+"\" was cancelled")
	httpx.OK(w, 200, map[string]any{"appointment_id": appt.AppointmentID, "status": store.AppointmentCancelled})
}

func (a *app) handleCompleteAppointment(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if !requireDoctor(w, claims) {
		return
	}
	appt, ok := a.loadParticipantAppointment(w, r)
	if !ok {
		return
	}
	if appt.Status != store.AppointmentScheduled {
		httpx.WriteError(w, 409, "APPOINTMENT_CLOSED", "only scheduled appointments can be completed", nil)
		return
	}
	if err := a.store.SetAppointmentStatus(r.Context(), appt.AppointmentID, store.AppointmentCompleted); err != nil {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	httpx.OK(w, 200, map[string]any{"appointment_id": appt.AppointmentID, "status": store.AppointmentCompleted})
}

// loadParticipantAppointment fetches the path appointment and requires
// the caller to be its doctor or its patient.
func (a *app) loadParticipantAppointment(w http.ResponseWriter, r *http.Request) (store.Appointment, bool) {
	claims := claimsFrom(r)
	appt, err := a.store.GetAppointment(r.Context(), chi.URLParam(r, "appointment_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, 404, "NOT_FOUND", "appointment not found", nil)
			return store.Appointment{}, false
		}
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return store.Appointment{}, false
	}
	if claims.ProfileID != appt.DoctorID && claims.ProfileID != appt.PatientID {
		httpx.WriteError(w, 403, "FORBIDDEN", "only the appointment's participants can access it", nil)
		return store.Appointment{}, false
	}
	return appt, true
}

// notifyCounterpart sends a notification to the participant who did not
// make the request.
func (a *app) notifyCounterpart(r *http.Request, appt store.Appointment, title, message string) {
	claims := claimsFrom(r)
	var userID string
	if claims.ProfileID == appt.DoctorID {
		if pat, err := a.store.GetPatient(r.Context(), appt.PatientID); err == nil {
			userID = pat.UserID
		}
	} else {
		if doc, err := a.store.GetDoctor(r.Context(), appt.DoctorID); err == nil {
			userID = doc.UserID
		}
	}
	if userID == "" {
		return
	}
	a.notify(r, store.Notification{
		UserID:        userID,
		Title:         title,
		Message:       message,
		Kind:          store.NotifyAppointment,
		ReferenceID:   appt.AppointmentID,
		ReferenceType: "appointment",
	})
}
